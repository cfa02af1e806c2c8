// Package playerdata persists everything a player accumulates: settings, per-game progress,
// unlocks, purchases and analytics. Reads never fail; absent or corrupt values yield defaults.
package playerdata

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/TimurManjosov/playmate/internal/notify"
	"github.com/TimurManjosov/playmate/internal/store"
	"github.com/TimurManjosov/playmate/internal/telemetry"
)

// DefaultMaxEvents is the analytics ring buffer capacity.
const DefaultMaxEvents = 100

// Notifier shows a message to the user.
type Notifier interface {
	Notify(level notify.Level, message string)
}

// Clock provides the current time.
type Clock interface {
	Now() time.Time
}

// SystemClock implements Clock using the system time.
type SystemClock struct{}

// Now returns the current system time.
func (SystemClock) Now() time.Time { return time.Now() }

type nopNotifier struct{}

func (nopNotifier) Notify(notify.Level, string) {}

// Options configures a Manager. Zero values select defaults.
type Options struct {
	MaxEvents int
	Clock     Clock
	Notifier  Notifier
	Logger    zerolog.Logger
}

// Manager is the single entry point to persisted player data.
type Manager struct {
	store     store.Store
	state     *AppState
	notifier  Notifier
	clock     Clock
	log       zerolog.Logger
	maxEvents int

	// mu serializes read-modify-write sequences; the store itself only guarantees
	// atomicity per key.
	mu sync.Mutex
}

// NewManager creates a Manager over st that mirrors settings and summary into state.
func NewManager(st store.Store, state *AppState, opts Options) *Manager {
	if state == nil {
		state = NewAppState()
	}
	if opts.MaxEvents <= 0 {
		opts.MaxEvents = DefaultMaxEvents
	}
	if opts.Clock == nil {
		opts.Clock = SystemClock{}
	}
	if opts.Notifier == nil {
		opts.Notifier = nopNotifier{}
	}
	return &Manager{
		store:     st,
		state:     state,
		notifier:  opts.Notifier,
		clock:     opts.Clock,
		log:       opts.Logger.With().Str("component", "playerdata").Logger(),
		maxEvents: opts.MaxEvents,
	}
}

// State returns the mirror this manager writes to.
func (m *Manager) State() *AppState { return m.state }

// Load hydrates the mirror from the store.
func (m *Manager) Load(ctx context.Context) {
	settings := load(ctx, m, SettingsKey, settingsCodec)
	summary := load(ctx, m, SummaryKey, summaryCodec)
	m.state.setSettings(settings)
	m.state.updateSummary(func(s *Summary) { *s = summary })
	m.log.Debug().Str("theme", settings.Theme).Int("games_played", summary.GamesPlayed).Msg("player data loaded")
}

func load[T any](ctx context.Context, m *Manager, key string, c codec[T]) T {
	raw, err := m.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			m.log.Warn().Err(err).Str("key", key).Msg("read failed, using defaults")
		}
		return c.defaults()
	}
	v, err := c.decode(raw)
	if err != nil {
		m.log.Warn().Err(err).Str("key", key).Msg("stored value unreadable, using defaults")
	}
	return v
}

func save[T any](ctx context.Context, m *Manager, key string, c codec[T], v T) error {
	raw, err := c.encode(v)
	if err != nil {
		return err
	}
	return m.write(ctx, c.entity, key, raw)
}

func (m *Manager) write(ctx context.Context, entity, key, value string) error {
	if err := m.store.Set(ctx, key, value); err != nil {
		telemetry.StoreWriteFailures.WithLabelValues(entity).Inc()
		m.log.Error().Err(err).Str("key", key).Str("entity", entity).Msg("write failed")
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

func (m *Manager) now() string { return formatTimestamp(m.clock.Now()) }

// GameProgress returns the saved progress of gameID, or the default.
func (m *Manager) GameProgress(ctx context.Context, gameID string) Progress {
	return load(ctx, m, ProgressKey(gameID), progressCodec)
}

// SetGameProgress saves the progress of gameID. On failure the user is warned and the
// error is returned; caller state is not rolled back.
func (m *Manager) SetGameProgress(ctx context.Context, gameID string, p Progress) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := save(ctx, m, ProgressKey(gameID), progressCodec, p); err != nil {
		m.notifier.Notify(notify.LevelWarning, "Failed to save progress")
		return err
	}
	return nil
}

// IsGameUnlocked reports whether gameID carries an unlock marker.
func (m *Manager) IsGameUnlocked(ctx context.Context, gameID string) bool {
	v, err := m.store.Get(ctx, UnlockKey(gameID))
	return err == nil && v == unlockedValue
}

// UnlockGame marks gameID as unlocked. Repeated calls leave the same state.
func (m *Manager) UnlockGame(ctx context.Context, gameID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.write(ctx, "unlock", UnlockKey(gameID), unlockedValue)
}

// Settings reads the stored settings, or the defaults.
func (m *Manager) Settings(ctx context.Context) Settings {
	return load(ctx, m, SettingsKey, settingsCodec)
}

// SetSettings persists s and then swaps it into the mirror. On failure the mirror keeps
// its previous value and the user is warned.
func (m *Manager) SetSettings(ctx context.Context, s Settings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.setSettingsLocked(ctx, s)
}

func (m *Manager) setSettingsLocked(ctx context.Context, s Settings) error {
	settingsCodec.normalize(&s)
	if err := save(ctx, m, SettingsKey, settingsCodec, s); err != nil {
		m.notifier.Notify(notify.LevelWarning, "Failed to save settings")
		return err
	}
	m.state.setSettings(s)
	return nil
}

// Purchases returns the purchase history, oldest first.
func (m *Manager) Purchases(ctx context.Context) []Purchase {
	return load(ctx, m, PurchasesKey, purchasesCodec)
}

// AddPurchase appends a purchase of gameID and records a purchase event.
func (m *Manager) AddPurchase(ctx context.Context, gameID string, price float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	purchases := load(ctx, m, PurchasesKey, purchasesCodec)
	purchases = append(purchases, Purchase{GameID: gameID, Price: price, Date: m.now()})
	if err := save(ctx, m, PurchasesKey, purchasesCodec, purchases); err != nil {
		return err
	}
	m.trackEventLocked(ctx, EventPurchase, map[string]any{"gameId": gameID, "price": price})
	return nil
}

// ResetGameProgress removes the saved progress of one game.
func (m *Manager) ResetGameProgress(ctx context.Context, gameID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.store.Remove(ctx, ProgressKey(gameID))
}

// ResetAllProgress removes every progress key and returns how many were removed.
func (m *Manager) ResetAllProgress(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.removeMatching(ctx, isProgressKey)
}

// ResetAllPurchases removes the purchase history and every unlock marker. It returns the
// number of unlock markers removed.
func (m *Manager) ResetAllPurchases(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.store.Remove(ctx, PurchasesKey); err != nil {
		return 0, fmt.Errorf("remove purchases: %w", err)
	}
	return m.removeMatching(ctx, isUnlockKey)
}

// ResetAllData wipes the namespace and resets the mirror to defaults.
func (m *Manager) ResetAllData(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.store.Clear(ctx); err != nil {
		return fmt.Errorf("clear store: %w", err)
	}
	m.state.reset()
	m.log.Info().Msg("all player data cleared")
	return nil
}

func (m *Manager) removeMatching(ctx context.Context, match func(string) bool) (int, error) {
	keys, err := m.store.Keys(ctx)
	if err != nil {
		return 0, fmt.Errorf("list keys: %w", err)
	}
	n := 0
	for _, k := range keys {
		if !match(k) {
			continue
		}
		if err := m.store.Remove(ctx, k); err != nil {
			return n, fmt.Errorf("remove %s: %w", k, err)
		}
		n++
	}
	return n, nil
}
