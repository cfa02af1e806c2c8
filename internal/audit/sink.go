package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/TimurManjosov/playmate/internal/store"
)

// StoreSink keeps the most recent events in a key/value store, one key per event.
// Keys sort by time so the oldest entries are pruned first.
type StoreSink struct {
	st         store.Store
	maxEntries int
	mu         sync.Mutex
}

// NewStoreSink creates a sink over st that keeps at most maxEntries events (0 keeps all).
func NewStoreSink(st store.Store, maxEntries int) *StoreSink {
	return &StoreSink{st: st, maxEntries: maxEntries}
}

func eventKey(e Event) string {
	return fmt.Sprintf("%020d-%s", e.OccurredAt.UnixNano(), e.ID)
}

// Write stores event and prunes the oldest entries beyond the limit.
func (s *StoreSink) Write(ctx context.Context, event Event) error {
	raw, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode audit event: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.st.Set(ctx, eventKey(event), string(raw)); err != nil {
		return fmt.Errorf("store audit event: %w", err)
	}
	if s.maxEntries <= 0 {
		return nil
	}
	keys, err := s.st.Keys(ctx)
	if err != nil {
		return fmt.Errorf("list audit events: %w", err)
	}
	sort.Strings(keys)
	for len(keys) > s.maxEntries {
		if err := s.st.Remove(ctx, keys[0]); err != nil {
			return fmt.Errorf("prune audit events: %w", err)
		}
		keys = keys[1:]
	}
	return nil
}

// Recent returns up to limit events, newest first. Unreadable entries are skipped.
func (s *StoreSink) Recent(ctx context.Context, limit int) ([]Event, error) {
	keys, err := s.st.Keys(ctx)
	if err != nil {
		return nil, err
	}
	sort.Sort(sort.Reverse(sort.StringSlice(keys)))

	events := make([]Event, 0, min(limit, len(keys)))
	for _, k := range keys {
		if limit > 0 && len(events) >= limit {
			break
		}
		raw, err := s.st.Get(ctx, k)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		var e Event
		if json.Unmarshal([]byte(raw), &e) != nil {
			continue
		}
		events = append(events, e)
	}
	return events, nil
}

// LogSink writes events to a zerolog logger.
type LogSink struct {
	log zerolog.Logger
}

// NewLogSink creates a sink that logs every event at info level.
func NewLogSink(log zerolog.Logger) *LogSink {
	return &LogSink{log: log}
}

func (s *LogSink) Write(_ context.Context, e Event) error {
	s.log.Info().
		Str("audit_id", e.ID).
		Str("action", e.Action).
		Str("resource", e.Resource).
		Str("status", e.Status).
		Str("actor", e.Actor.Display).
		Str("ip", e.Source.IPAddress).
		Str("request_id", e.RequestID).
		Msg("audit")
	return nil
}

// MultiSink writes to every sink and reads back from the first Lister among them.
type MultiSink []Sink

func (m MultiSink) Write(ctx context.Context, e Event) error {
	var errs []error
	for _, s := range m {
		if err := s.Write(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m MultiSink) Recent(ctx context.Context, limit int) ([]Event, error) {
	for _, s := range m {
		if l, ok := s.(Lister); ok {
			return l.Recent(ctx, limit)
		}
	}
	return nil, nil
}
