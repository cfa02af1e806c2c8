package audit

import (
	"bytes"
	"context"
	"errors"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TimurManjosov/playmate/internal/store"
)

// MockSink is a test implementation of Sink
type MockSink struct {
	mu     sync.Mutex
	events []Event
	err    error
}

func (m *MockSink) Write(_ context.Context, event Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.events = append(m.events, event)
	return nil
}

func (m *MockSink) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Event(nil), m.events...)
}

// MockClock is a test implementation of Clock
type MockClock struct {
	now time.Time
}

func (m *MockClock) Now() time.Time { return m.now }

func TestServiceFillsIDAndTime(t *testing.T) {
	sink := &MockSink{}
	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	svc := NewService(sink, &MockClock{now: now}, zerolog.Nop(), 10)

	svc.Log(Event{Action: ActionReset, Resource: "progress", Status: StatusSuccess})
	require.NoError(t, svc.Close())

	events := sink.Events()
	require.Len(t, events, 1)
	assert.NotEmpty(t, events[0].ID)
	assert.Equal(t, now, events[0].OccurredAt)
}

func TestServiceCloseDrainsQueue(t *testing.T) {
	sink := &MockSink{}
	svc := NewService(sink, nil, zerolog.Nop(), 100)

	for i := 0; i < 50; i++ {
		svc.Log(Event{Action: ActionImported})
	}
	require.NoError(t, svc.Close())
	require.NoError(t, svc.Close(), "second close is a no-op")

	assert.Len(t, sink.Events(), 50)

	svc.Log(Event{Action: ActionImported})
	assert.Len(t, sink.Events(), 50, "events after close are dropped")
}

func TestServiceSinkErrorIsLogged(t *testing.T) {
	var buf bytes.Buffer
	sink := &MockSink{err: errors.New("disk full")}
	svc := NewService(sink, nil, zerolog.New(&buf), 1)

	svc.Log(Event{Action: ActionReset})
	require.NoError(t, svc.Close())

	assert.Contains(t, buf.String(), "disk full")
}

func TestEventBuilder(t *testing.T) {
	r := httptest.NewRequest("POST", "/v1/reset/all", nil)
	r.RemoteAddr = "10.0.0.1"
	r.Header.Set("User-Agent", "playmate-cli")

	e := NewEventBuilder(r).
		ForResource("all").
		WithAction(ActionReset).
		WithDetails(map[string]any{"token": "abc", "scope": "all"}).
		Failure("boom").
		Build()

	assert.Equal(t, ActorKindAdmin, e.Actor.Kind)
	assert.Equal(t, "10.0.0.1", e.Source.IPAddress)
	assert.Equal(t, "playmate-cli", e.Source.UserAgent)
	assert.Equal(t, StatusFailure, e.Status)
	assert.Equal(t, "boom", e.ErrorMessage)
	assert.Equal(t, "[REDACTED]", e.Details["token"])
	assert.Equal(t, "all", e.Details["scope"])

	anon := NewEventBuilder(r).AsAnonymous().WithAction(ActionAuthFailed).Build()
	assert.Equal(t, ActorKindAnonymous, anon.Actor.Kind)
	assert.Equal(t, StatusSuccess, anon.Status)
}

func TestRedactNested(t *testing.T) {
	out := Redact(map[string]any{
		"headers": map[string]any{"authorization": "Bearer x", "accept": "*/*"},
	})
	nested := out["headers"].(map[string]any)
	assert.Equal(t, "[REDACTED]", nested["authorization"])
	assert.Equal(t, "*/*", nested["accept"])
	assert.Nil(t, Redact(nil))
}

func TestStoreSinkPrunesAndListsNewestFirst(t *testing.T) {
	ctx := context.Background()
	sink := NewStoreSink(store.NewMemoryStore(), 3)
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		require.NoError(t, sink.Write(ctx, Event{
			ID:         string(rune('a' + i)),
			OccurredAt: base.Add(time.Duration(i) * time.Minute),
			Action:     ActionReset,
		}))
	}

	events, err := sink.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, "e", events[0].ID)
	assert.Equal(t, "c", events[2].ID)

	events, err = sink.Recent(ctx, 1)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "e", events[0].ID)
}

func TestServiceRecent(t *testing.T) {
	ctx := context.Background()
	svc := NewService(MultiSink{NewLogSink(zerolog.Nop()), NewStoreSink(store.NewMemoryStore(), 0)}, nil, zerolog.Nop(), 10)
	svc.Log(Event{Action: ActionImported, Resource: "bundle"})
	require.NoError(t, svc.Close())

	events, ok, err := svc.Recent(ctx, 10)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, events, 1)
	assert.Equal(t, "bundle", events[0].Resource)

	plain := NewService(&MockSink{}, nil, zerolog.Nop(), 1)
	defer plain.Close()
	_, ok, err = plain.Recent(ctx, 10)
	require.NoError(t, err)
	assert.False(t, ok)
}
