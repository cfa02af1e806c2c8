// Package audit records administrative actions on player data (imports, resets and rejected
// admin credentials) through an asynchronous queue into a pluggable sink.
package audit

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Action constants for audit logging
const (
	ActionImported   = "imported"
	ActionReset      = "reset"
	ActionAuthFailed = "auth_failed"
)

// Status constants for audit logging
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// ActorKind constants for audit logging
const (
	ActorKindAdmin     = "admin"
	ActorKindAnonymous = "anonymous"
)

// Clock interface for testable time operations
type Clock interface {
	Now() time.Time
}

// SystemClock implements Clock using time.Now()
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// Actor represents who performed the action
type Actor struct {
	Kind    string `json:"kind"`
	Display string `json:"display"`
}

// Source represents request metadata
type Source struct {
	IPAddress string `json:"ip_address"`
	UserAgent string `json:"user_agent"`
}

// Event is one audited action.
type Event struct {
	ID           string         `json:"id"`
	OccurredAt   time.Time      `json:"occurred_at"`
	RequestID    string         `json:"request_id,omitempty"`
	Actor        Actor          `json:"actor"`
	Source       Source         `json:"source"`
	Action       string         `json:"action"`
	Resource     string         `json:"resource"` // progress, purchases, all, bundle, or the denied path
	Details      map[string]any `json:"details,omitempty"`
	Status       string         `json:"status"`
	ErrorMessage string         `json:"error_message,omitempty"`
}

// Sink persists audit events.
type Sink interface {
	Write(ctx context.Context, event Event) error
}

// Lister is implemented by sinks that can read events back.
type Lister interface {
	Recent(ctx context.Context, limit int) ([]Event, error)
}

// Service queues events and writes them to the sink on a background worker.
type Service struct {
	sink   Sink
	clock  Clock
	log    zerolog.Logger
	queue  chan Event
	stopCh chan struct{}
	done   sync.WaitGroup
	closed atomic.Bool
}

// NewService starts a service with a queue of queueSize events.
func NewService(sink Sink, clock Clock, log zerolog.Logger, queueSize int) *Service {
	if clock == nil {
		clock = SystemClock{}
	}
	s := &Service{
		sink:   sink,
		clock:  clock,
		log:    log.With().Str("component", "audit").Logger(),
		queue:  make(chan Event, queueSize),
		stopCh: make(chan struct{}),
	}
	s.done.Add(1)
	go s.worker()
	return s
}

func (s *Service) worker() {
	defer s.done.Done()
	for {
		select {
		case event := <-s.queue:
			s.write(event)
		case <-s.stopCh:
			// drain before exiting
			for {
				select {
				case event := <-s.queue:
					s.write(event)
				default:
					return
				}
			}
		}
	}
}

func (s *Service) write(event Event) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.sink.Write(ctx, event); err != nil {
		s.log.Error().Err(err).Str("action", event.Action).Msg("failed to write audit event")
	}
}

// Log queues event, filling in its id and time. Events are dropped when the queue is full
// or the service is closed.
func (s *Service) Log(event Event) {
	if s.closed.Load() {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = s.clock.Now().UTC()
	}
	select {
	case s.queue <- event:
	default:
		s.log.Warn().Str("action", event.Action).Str("resource", event.Resource).Msg("audit queue full, dropping event")
	}
}

// Recent returns up to limit events, newest first, when the sink can read them back.
func (s *Service) Recent(ctx context.Context, limit int) ([]Event, bool, error) {
	l, ok := s.sink.(Lister)
	if !ok {
		return nil, false, nil
	}
	events, err := l.Recent(ctx, limit)
	return events, true, err
}

// Close stops the worker after the queued events are written.
// Close is safe to call multiple times.
func (s *Service) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(s.stopCh)
	s.done.Wait()
	return nil
}
