package playerdata

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TimurManjosov/playmate/internal/notify"
	"github.com/TimurManjosov/playmate/internal/store"
)

type fixedClock struct{ t time.Time }

func (c *fixedClock) Now() time.Time { return c.t }

func (c *fixedClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

type recordedToast struct {
	Level   notify.Level
	Message string
}

type recordingNotifier struct {
	mu     sync.Mutex
	toasts []recordedToast
}

func (n *recordingNotifier) Notify(level notify.Level, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.toasts = append(n.toasts, recordedToast{level, message})
}

func (n *recordingNotifier) Toasts() []recordedToast {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]recordedToast(nil), n.toasts...)
}

// failingStore rejects writes while failWrites is set.
type failingStore struct {
	*store.MemoryStore
	failWrites bool
}

func (s *failingStore) Set(ctx context.Context, key, value string) error {
	if s.failWrites {
		return store.ErrQuotaExceeded
	}
	return s.MemoryStore.Set(ctx, key, value)
}

type fixture struct {
	mgr      *Manager
	store    *failingStore
	notifier *recordingNotifier
	clock    *fixedClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:    &failingStore{MemoryStore: store.NewMemoryStore()},
		notifier: &recordingNotifier{},
		clock:    &fixedClock{t: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)},
	}
	f.mgr = NewManager(f.store, NewAppState(), Options{
		Clock:    f.clock,
		Notifier: f.notifier,
		Logger:   zerolog.Nop(),
	})
	return f
}

func TestGameProgress_DefaultWhenAbsent(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, Progress{Level: 1}, f.mgr.GameProgress(context.Background(), "snake"))
}

func TestGameProgress_RoundTrip(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	require.NoError(t, f.mgr.SetGameProgress(ctx, "snake", Progress{Level: 3, Score: 40, HighScore: 120}))
	assert.Equal(t, Progress{Level: 3, Score: 40, HighScore: 120}, f.mgr.GameProgress(ctx, "snake"))

	raw, err := f.store.Get(ctx, "snake_progress")
	require.NoError(t, err)
	assert.JSONEq(t, `{"v":1,"level":3,"score":40,"highScore":120}`, raw)
}

func TestGameProgress_CorruptOrForeignValues(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name string
		raw  string
		want Progress
	}{
		{"not json", "{level:", Progress{Level: 1}},
		{"array", "[1,2]", Progress{Level: 1}},
		{"unversioned", `{"level":4,"score":10,"highScore":10}`, Progress{Level: 4, Score: 10, HighScore: 10}},
		{"missing fields", `{"score":7}`, Progress{Level: 1, Score: 7}},
		{"future version", `{"v":9,"level":4}`, Progress{Level: 1}},
		{"coerced", `{"level":0,"score":-5,"highScore":-1}`, Progress{Level: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			require.NoError(t, f.store.Set(ctx, "2048_progress", tt.raw))
			assert.Equal(t, tt.want, f.mgr.GameProgress(ctx, "2048"))
		})
	}
}

func TestSetGameProgress_WriteFailureWarnsUser(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.store.failWrites = true

	err := f.mgr.SetGameProgress(ctx, "snake", Progress{Level: 2})
	require.ErrorIs(t, err, store.ErrQuotaExceeded)
	assert.Equal(t, []recordedToast{{notify.LevelWarning, "Failed to save progress"}}, f.notifier.Toasts())
	assert.Equal(t, DefaultProgress(), f.mgr.GameProgress(ctx, "snake"))
}

func TestSetGameProgress_QuotaExceeded(t *testing.T) {
	ctx := context.Background()
	n := &recordingNotifier{}
	mgr := NewManager(store.NewMemoryStoreWithQuota(16), nil, Options{Notifier: n, Logger: zerolog.Nop()})

	err := mgr.SetGameProgress(ctx, "brick-breaker", Progress{Level: 2, Score: 100})
	require.ErrorIs(t, err, store.ErrQuotaExceeded)
	require.Len(t, n.Toasts(), 1)
	assert.Equal(t, notify.LevelWarning, n.Toasts()[0].Level)
}

func TestUnlockGame_Idempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	assert.False(t, f.mgr.IsGameUnlocked(ctx, "snake"))
	require.NoError(t, f.mgr.UnlockGame(ctx, "snake"))
	require.NoError(t, f.mgr.UnlockGame(ctx, "snake"))
	assert.True(t, f.mgr.IsGameUnlocked(ctx, "snake"))

	keys, err := f.store.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"snake_unlocked"}, keys)
}

func TestIsGameUnlocked_OnlyLiteralTrue(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.store.Set(ctx, "snake_unlocked", "yes"))
	assert.False(t, f.mgr.IsGameUnlocked(ctx, "snake"))
}

func TestSettings_DefaultsAndMirror(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	assert.Equal(t, DefaultSettings(), f.mgr.Settings(ctx))

	s := Settings{SoundEnabled: false, Theme: "dark", Difficulty: DifficultyHard, AutoSave: true}
	require.NoError(t, f.mgr.SetSettings(ctx, s))
	assert.Equal(t, s, f.mgr.Settings(ctx))
	assert.Equal(t, s, f.mgr.State().Settings())
}

func TestSetSettings_FailureKeepsMirror(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.store.failWrites = true

	err := f.mgr.SetSettings(ctx, Settings{Theme: "dark", Difficulty: DifficultyEasy})
	require.Error(t, err)
	assert.Equal(t, DefaultSettings(), f.mgr.State().Settings())
	assert.Equal(t, []recordedToast{{notify.LevelWarning, "Failed to save settings"}}, f.notifier.Toasts())
}

func TestSettings_CoercesInvalidValues(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.store.Set(ctx, SettingsKey, `{"difficulty":"insane","theme":"","soundEnabled":false}`))

	got := f.mgr.Settings(ctx)
	assert.Equal(t, DifficultyNormal, got.Difficulty)
	assert.Equal(t, "default", got.Theme)
	assert.False(t, got.SoundEnabled)
	assert.True(t, got.AutoSave)
}

func TestLoad_HydratesState(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.store.Set(ctx, SettingsKey, `{"v":1,"theme":"neon","difficulty":"easy"}`))
	require.NoError(t, f.store.Set(ctx, SummaryKey, `{"v":1,"gamesPlayed":7,"totalPlayTime":90,"lastPlayed":null}`))

	f.mgr.Load(ctx)
	assert.Equal(t, "neon", f.mgr.State().Settings().Theme)
	assert.Equal(t, 7, f.mgr.Summary().GamesPlayed)
	assert.Equal(t, 90, f.mgr.Summary().TotalPlayTime)
}

func TestAddPurchase(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	require.NoError(t, f.mgr.AddPurchase(ctx, "snake", 0.05))
	f.clock.Advance(time.Minute)
	require.NoError(t, f.mgr.AddPurchase(ctx, "maze-runner", 0.10))

	got := f.mgr.Purchases(ctx)
	require.Len(t, got, 2)
	assert.Equal(t, Purchase{GameID: "snake", Price: 0.05, Date: "2024-03-01T12:00:00.000Z"}, got[0])
	assert.Equal(t, "maze-runner", got[1].GameID)

	events := f.mgr.Events(ctx).Events
	require.Len(t, events, 2)
	assert.Equal(t, EventPurchase, events[0].Event)
}

func TestResetAllProgress(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.mgr.SetGameProgress(ctx, "snake", Progress{Level: 2}))
	require.NoError(t, f.mgr.SetGameProgress(ctx, "2048", Progress{Level: 5}))
	require.NoError(t, f.mgr.UnlockGame(ctx, "snake"))

	n, err := f.mgr.ResetAllProgress(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, DefaultProgress(), f.mgr.GameProgress(ctx, "snake"))
	assert.Equal(t, DefaultProgress(), f.mgr.GameProgress(ctx, "2048"))
	assert.True(t, f.mgr.IsGameUnlocked(ctx, "snake"))
}

func TestResetGameProgress(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.mgr.SetGameProgress(ctx, "snake", Progress{Level: 2}))
	require.NoError(t, f.mgr.SetGameProgress(ctx, "2048", Progress{Level: 5}))

	require.NoError(t, f.mgr.ResetGameProgress(ctx, "snake"))
	require.NoError(t, f.mgr.ResetGameProgress(ctx, "snake"))
	assert.Equal(t, DefaultProgress(), f.mgr.GameProgress(ctx, "snake"))
	assert.Equal(t, 5, f.mgr.GameProgress(ctx, "2048").Level)
}

func TestResetAllPurchases(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.mgr.UnlockGame(ctx, "snake"))
	require.NoError(t, f.mgr.UnlockGame(ctx, "maze-runner"))
	require.NoError(t, f.mgr.AddPurchase(ctx, "snake", 0.05))
	require.NoError(t, f.mgr.SetGameProgress(ctx, "snake", Progress{Level: 3}))

	n, err := f.mgr.ResetAllPurchases(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Empty(t, f.mgr.Purchases(ctx))
	assert.False(t, f.mgr.IsGameUnlocked(ctx, "snake"))
	assert.False(t, f.mgr.IsGameUnlocked(ctx, "maze-runner"))
	assert.Equal(t, 3, f.mgr.GameProgress(ctx, "snake").Level)
}

func TestResetAllData_RestoresDefaults(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.mgr.SetSettings(ctx, Settings{Theme: "dark", Difficulty: DifficultyHard}))
	require.NoError(t, f.mgr.SetGameProgress(ctx, "snake", Progress{Level: 9}))
	require.NoError(t, f.mgr.UnlockGame(ctx, "snake"))
	require.NoError(t, f.mgr.AddPurchase(ctx, "snake", 0.05))
	f.mgr.TrackGameStart(ctx, "snake")

	require.NoError(t, f.mgr.ResetAllData(ctx))

	assert.Equal(t, DefaultSettings(), f.mgr.Settings(ctx))
	assert.Equal(t, DefaultSettings(), f.mgr.State().Settings())
	assert.Equal(t, DefaultProgress(), f.mgr.GameProgress(ctx, "snake"))
	assert.False(t, f.mgr.IsGameUnlocked(ctx, "snake"))
	assert.Empty(t, f.mgr.Purchases(ctx))
	assert.Empty(t, f.mgr.Events(ctx).Events)
	assert.Equal(t, Summary{}, f.mgr.Summary())

	keys, err := f.store.Keys(ctx)
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestManager_ConcurrentPurchases(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, f.mgr.AddPurchase(ctx, "snake", 0.05))
		}()
	}
	wg.Wait()
	assert.Len(t, f.mgr.Purchases(ctx), 20)
}
