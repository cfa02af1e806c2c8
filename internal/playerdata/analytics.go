package playerdata

import (
	"context"

	"github.com/TimurManjosov/playmate/internal/telemetry"
)

// Event names recorded by the tracking helpers.
const (
	EventGameStart    = "game_start"
	EventGameComplete = "game_complete"
	EventPurchase     = "purchase"
	EventPlayTime     = "play_time"
)

// Events returns the analytics log, oldest first.
func (m *Manager) Events(ctx context.Context) EventLog {
	return load(ctx, m, AnalyticsKey, eventLogCodec)
}

// TrackEvent appends an event to the ring buffer, evicting the oldest entries beyond
// capacity. Tracking is best effort: failures are logged and swallowed.
func (m *Manager) TrackEvent(ctx context.Context, name string, data map[string]any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trackEventLocked(ctx, name, data)
}

func (m *Manager) trackEventLocked(ctx context.Context, name string, data map[string]any) {
	if data == nil {
		data = map[string]any{}
	}
	log := load(ctx, m, AnalyticsKey, eventLogCodec)
	log.Events = append(log.Events, Event{Event: name, Timestamp: m.now(), Data: data})
	if over := len(log.Events) - m.maxEvents; over > 0 {
		log.Events = log.Events[over:]
	}
	if err := save(ctx, m, AnalyticsKey, eventLogCodec, log); err != nil {
		m.log.Warn().Err(err).Str("event", name).Msg("analytics event dropped")
		return
	}
	telemetry.AnalyticsEvents.WithLabelValues(name).Inc()
}

// TrackGameStart records a game start and bumps the play summary.
func (m *Manager) TrackGameStart(ctx context.Context, gameID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.trackEventLocked(ctx, EventGameStart, map[string]any{"gameId": gameID})
	now := m.now()
	sum := m.state.updateSummary(func(s *Summary) {
		s.GamesPlayed++
		s.LastPlayed = &now
	})
	m.saveSummaryLocked(ctx, sum)
}

// TrackGameComplete records a finished game.
func (m *Manager) TrackGameComplete(ctx context.Context, gameID string, score, level int) {
	m.TrackEvent(ctx, EventGameComplete, map[string]any{"gameId": gameID, "score": score, "level": level})
}

// TrackPurchase records a purchase event without touching the purchase history.
func (m *Manager) TrackPurchase(ctx context.Context, gameID string, price float64) {
	m.TrackEvent(ctx, EventPurchase, map[string]any{"gameId": gameID, "price": price})
}

// TrackPlayTime adds seconds to the total play time.
func (m *Manager) TrackPlayTime(ctx context.Context, gameID string, seconds int) {
	if seconds <= 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.trackEventLocked(ctx, EventPlayTime, map[string]any{"gameId": gameID, "seconds": seconds})
	sum := m.state.updateSummary(func(s *Summary) { s.TotalPlayTime += seconds })
	m.saveSummaryLocked(ctx, sum)
}

// Summary returns the mirrored play summary.
func (m *Manager) Summary() Summary { return m.state.Summary() }

func (m *Manager) saveSummaryLocked(ctx context.Context, sum Summary) {
	if err := save(ctx, m, SummaryKey, summaryCodec, sum); err != nil {
		m.log.Warn().Err(err).Msg("analytics summary not saved")
	}
}
