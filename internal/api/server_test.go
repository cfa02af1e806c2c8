package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/TimurManjosov/playmate/internal/notify"
	"github.com/TimurManjosov/playmate/internal/playerdata"
	"github.com/TimurManjosov/playmate/internal/shell"
	"github.com/TimurManjosov/playmate/internal/store"
)

const testAdminKey = "test-key"

type testEnv struct {
	srv     *Server
	handler http.Handler
	data    *playerdata.Manager
	hub     *notify.Hub
	store   *store.MemoryStore
}

func newTestEnv(t *testing.T, opts Options) *testEnv {
	t.Helper()
	st := store.NewMemoryStore()
	hub := notify.NewHub()
	data := playerdata.NewManager(st, nil, playerdata.Options{Notifier: hub, Logger: zerolog.Nop()})
	actions := shell.NewActions(data, hub, hub, zerolog.Nop())
	if opts.AdminAPIKey == "" {
		opts.AdminAPIKey = testAdminKey
	}
	opts.Logger = zerolog.Nop()
	srv := NewServer(data, actions, hub, opts)
	return &testEnv{srv: srv, handler: srv.Router(), data: data, hub: hub, store: st}
}

func (e *testEnv) do(t *testing.T, method, path, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rr := httptest.NewRecorder()
	e.handler.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rr.Body).Decode(&v); err != nil {
		t.Fatalf("Failed to decode response: %v (body %q)", err, rr.Body.String())
	}
	return v
}

func TestHandleHealth(t *testing.T) {
	e := newTestEnv(t, Options{})
	rr := e.do(t, http.MethodGet, "/healthz", "")

	if rr.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", rr.Code)
	}
	if rr.Body.String() != "ok" {
		t.Errorf("Expected body 'ok', got %s", rr.Body.String())
	}
}

func TestReadyz(t *testing.T) {
	ready := false
	e := newTestEnv(t, Options{Ready: func() bool { return ready }})

	if rr := e.do(t, http.MethodGet, "/readyz", ""); rr.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected status 503 before activation, got %d", rr.Code)
	}
	ready = true
	if rr := e.do(t, http.MethodGet, "/readyz", ""); rr.Code != http.StatusOK {
		t.Errorf("Expected status 200 after activation, got %d", rr.Code)
	}
}

func TestSettings_GetDefaults(t *testing.T) {
	e := newTestEnv(t, Options{})
	rr := e.do(t, http.MethodGet, "/v1/settings", "")

	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rr.Code)
	}
	got := decode[playerdata.Settings](t, rr)
	if got != playerdata.DefaultSettings() {
		t.Errorf("Expected default settings, got %+v", got)
	}
}

func TestSettings_PartialUpdate(t *testing.T) {
	e := newTestEnv(t, Options{})
	rr := e.do(t, http.MethodPut, "/v1/settings", `{"difficulty":"hard","soundEnabled":false}`)

	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	got := e.data.Settings(context.Background())
	if got.Difficulty != playerdata.DifficultyHard || got.SoundEnabled {
		t.Errorf("Update not applied: %+v", got)
	}
	if got.Theme != "default" || !got.AutoSave {
		t.Errorf("Untouched fields changed: %+v", got)
	}
}

func TestSettings_InvalidDifficulty(t *testing.T) {
	e := newTestEnv(t, Options{})
	rr := e.do(t, http.MethodPut, "/v1/settings", `{"difficulty":"insane"}`)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("Expected status 400, got %d", rr.Code)
	}
	resp := decode[ErrorResponse](t, rr)
	if resp.Code != ErrCodeValidation || resp.Fields["difficulty"] == "" {
		t.Errorf("Expected difficulty validation error, got %+v", resp)
	}
}

func TestSettings_InvalidJSON(t *testing.T) {
	e := newTestEnv(t, Options{})
	rr := e.do(t, http.MethodPut, "/v1/settings", `{not json`)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("Expected status 400, got %d", rr.Code)
	}
	if resp := decode[ErrorResponse](t, rr); resp.Code != ErrCodeInvalidJSON {
		t.Errorf("Expected INVALID_JSON, got %s", resp.Code)
	}
}

func TestProgress_Lifecycle(t *testing.T) {
	e := newTestEnv(t, Options{})

	rr := e.do(t, http.MethodGet, "/v1/games/snake/progress", "")
	if got := decode[playerdata.Progress](t, rr); got != playerdata.DefaultProgress() {
		t.Errorf("Expected default progress, got %+v", got)
	}

	rr = e.do(t, http.MethodPut, "/v1/games/snake/progress", `{"level":3,"score":10,"highScore":50}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if got := e.data.GameProgress(context.Background(), "snake"); got.Level != 3 || got.HighScore != 50 {
		t.Errorf("Progress not saved: %+v", got)
	}

	rr = e.do(t, http.MethodDelete, "/v1/games/snake/progress", "")
	if rr.Code != http.StatusNoContent {
		t.Errorf("Expected status 204, got %d", rr.Code)
	}
	if got := e.data.GameProgress(context.Background(), "snake"); got != playerdata.DefaultProgress() {
		t.Errorf("Progress not reset: %+v", got)
	}
}

func TestProgress_Validation(t *testing.T) {
	e := newTestEnv(t, Options{})

	rr := e.do(t, http.MethodPut, "/v1/games/snake/progress", `{"level":0,"score":-1}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("Expected status 400, got %d", rr.Code)
	}

	rr = e.do(t, http.MethodGet, "/v1/games/Snake_unlocked/progress", "")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("Expected status 400 for invalid id, got %d", rr.Code)
	}
	if resp := decode[ErrorResponse](t, rr); resp.Code != ErrCodeInvalidGameID {
		t.Errorf("Expected INVALID_GAME_ID, got %s", resp.Code)
	}
}

func TestProgress_QuotaExceeded(t *testing.T) {
	st := store.NewMemoryStoreWithQuota(20)
	hub := notify.NewHub()
	data := playerdata.NewManager(st, nil, playerdata.Options{Notifier: hub, Logger: zerolog.Nop()})
	srv := NewServer(data, shell.NewActions(data, hub, hub, zerolog.Nop()), hub, Options{Logger: zerolog.Nop()})

	ch, unsub := hub.Subscribe(4)
	defer unsub()

	req := httptest.NewRequest(http.MethodPut, "/v1/games/brick-breaker/progress", strings.NewReader(`{"level":2}`))
	rr := httptest.NewRecorder()
	srv.Router().ServeHTTP(rr, req)

	if rr.Code != http.StatusInsufficientStorage {
		t.Fatalf("Expected status 507, got %d", rr.Code)
	}
	select {
	case n := <-ch:
		if n.Level != notify.LevelWarning || n.Message != "Failed to save progress" {
			t.Errorf("Unexpected notification %+v", n)
		}
	default:
		t.Error("Expected a warning toast")
	}
}

func TestListGames(t *testing.T) {
	e := newTestEnv(t, Options{})
	if err := e.data.UnlockGame(context.Background(), "snake"); err != nil {
		t.Fatal(err)
	}

	rr := e.do(t, http.MethodGet, "/v1/games", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rr.Code)
	}
	resp := decode[struct {
		Games []gameView `json:"games"`
		Total int        `json:"total"`
	}](t, rr)
	if resp.Total != 10 {
		t.Errorf("Expected 10 games, got %d", resp.Total)
	}
	unlocked := 0
	for _, g := range resp.Games {
		if g.Unlocked {
			unlocked++
		}
	}
	if unlocked != 8 {
		t.Errorf("Expected 8 unlocked games, got %d", unlocked)
	}

	rr = e.do(t, http.MethodGet, "/v1/games?category=action", "")
	resp = decode[struct {
		Games []gameView `json:"games"`
		Total int        `json:"total"`
	}](t, rr)
	if resp.Total != 3 {
		t.Errorf("Expected 3 action games, got %d", resp.Total)
	}
}

func TestGetGame_Unknown(t *testing.T) {
	e := newTestEnv(t, Options{})
	rr := e.do(t, http.MethodGet, "/v1/games/tetris", "")
	if rr.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", rr.Code)
	}
}

func TestUnlock_Flow(t *testing.T) {
	e := newTestEnv(t, Options{})
	ch, unsub := e.hub.Subscribe(8)
	defer unsub()

	rr := e.do(t, http.MethodPost, "/v1/games/maze-runner/unlock", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	resp := decode[unlockResponse](t, rr)
	if !resp.Unlocked || resp.Price != 0.10 {
		t.Errorf("Unexpected response %+v", resp)
	}

	toast := <-ch
	card := <-ch
	if toast.Kind != notify.KindToast || toast.Message != shell.MsgUnlocked {
		t.Errorf("Expected unlock toast, got %+v", toast)
	}
	if card.Kind != notify.KindCard || card.GameID != "maze-runner" {
		t.Errorf("Expected card refresh, got %+v", card)
	}

	rr = e.do(t, http.MethodPost, "/v1/games/maze-runner/unlock", "")
	if resp := decode[unlockResponse](t, rr); resp.Unlocked {
		t.Error("Second unlock should report unlocked=false")
	}
	if n := len(e.data.Purchases(context.Background())); n != 1 {
		t.Errorf("Expected 1 purchase, got %d", n)
	}
}

func TestUnlock_FreeAndUnknown(t *testing.T) {
	e := newTestEnv(t, Options{})

	rr := e.do(t, http.MethodPost, "/v1/games/2048/unlock", "")
	if rr.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for free game, got %d", rr.Code)
	}
	rr = e.do(t, http.MethodPost, "/v1/games/tetris/unlock", "")
	if rr.Code != http.StatusNotFound {
		t.Errorf("Expected status 404 for unknown game, got %d", rr.Code)
	}
}

func TestStartAndComplete(t *testing.T) {
	e := newTestEnv(t, Options{})

	rr := e.do(t, http.MethodPost, "/v1/games/snake/start", "")
	if sum := decode[playerdata.Summary](t, rr); sum.GamesPlayed != 1 {
		t.Errorf("Expected gamesPlayed 1, got %d", sum.GamesPlayed)
	}

	rr = e.do(t, http.MethodPost, "/v1/games/snake/complete", `{"score":120,"level":2}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rr.Code)
	}
	resp := decode[completeResponse](t, rr)
	if !resp.NewHighScore || resp.Progress.HighScore != 120 {
		t.Errorf("Unexpected completion %+v", resp)
	}

	rr = e.do(t, http.MethodPost, "/v1/games/snake/playtime", `{"seconds":90}`)
	if sum := decode[playerdata.Summary](t, rr); sum.TotalPlayTime != 90 {
		t.Errorf("Expected totalPlayTime 90, got %d", sum.TotalPlayTime)
	}

	rr = e.do(t, http.MethodGet, "/v1/stats", "")
	stats := decode[playerdata.Stats](t, rr)
	if stats.BestScore != 120 || stats.GamesPlayed != 1 {
		t.Errorf("Unexpected stats %+v", stats)
	}
	if len(stats.RecentActivity) == 0 || stats.RecentActivity[0].Event != playerdata.EventPlayTime {
		t.Errorf("Expected newest activity first, got %+v", stats.RecentActivity)
	}
}

func TestEvents(t *testing.T) {
	e := newTestEnv(t, Options{})

	rr := e.do(t, http.MethodPost, "/v1/events", `{"event":"tutorial_done","data":{"step":3}}`)
	if rr.Code != http.StatusAccepted {
		t.Fatalf("Expected status 202, got %d", rr.Code)
	}
	rr = e.do(t, http.MethodPost, "/v1/events", `{"event":"Bad Name"}`)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", rr.Code)
	}

	rr = e.do(t, http.MethodGet, "/v1/events", "")
	log := decode[playerdata.EventLog](t, rr)
	if len(log.Events) != 1 || log.Events[0].Event != "tutorial_done" {
		t.Errorf("Unexpected events %+v", log.Events)
	}
}

func TestExport_ETag_NotModified(t *testing.T) {
	e := newTestEnv(t, Options{})

	rr := e.do(t, http.MethodGet, "/v1/export", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rr.Code)
	}
	etag := rr.Header().Get("ETag")
	if etag == "" {
		t.Fatal("Expected ETag header")
	}

	rr = e.do(t, http.MethodGet, "/v1/export", "", "If-None-Match", etag)
	if rr.Code != http.StatusNotModified {
		t.Errorf("Expected status 304, got %d", rr.Code)
	}
	if rr.Body.Len() != 0 {
		t.Error("Expected empty body for 304")
	}
}

func TestExport_OnlyDeliveredDownloadsNotify(t *testing.T) {
	e := newTestEnv(t, Options{})
	events, cancel := e.hub.Subscribe(8)
	defer cancel()

	etag := e.do(t, http.MethodGet, "/v1/export", "").Header().Get("ETag")
	for i := 0; i < 3; i++ {
		if rr := e.do(t, http.MethodGet, "/v1/export", "", "If-None-Match", etag); rr.Code != http.StatusNotModified {
			t.Fatalf("Expected status 304, got %d", rr.Code)
		}
	}

	var toasts []string
	for len(events) > 0 {
		n := <-events
		toasts = append(toasts, n.Message)
	}
	if len(toasts) != 1 || toasts[0] != shell.MsgExported {
		t.Errorf("Expected a single export toast, got %v", toasts)
	}
}

func TestExport_ETagChangesAfterMutation(t *testing.T) {
	e := newTestEnv(t, Options{})
	first := e.do(t, http.MethodGet, "/v1/export", "").Header().Get("ETag")

	e.do(t, http.MethodPut, "/v1/games/snake/progress", `{"level":2}`)

	rr := e.do(t, http.MethodGet, "/v1/export", "", "If-None-Match", first)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200 after mutation, got %d", rr.Code)
	}
	if rr.Header().Get("ETag") == first {
		t.Error("Expected ETag to change")
	}
}

func TestExport_YAML(t *testing.T) {
	e := newTestEnv(t, Options{})
	e.do(t, http.MethodPut, "/v1/settings", `{"theme":"dark"}`)

	rr := e.do(t, http.MethodGet, "/v1/export?format=yaml", "")
	if ct := rr.Header().Get("Content-Type"); ct != "application/yaml" {
		t.Fatalf("Expected yaml content type, got %s", ct)
	}
	var b playerdata.Bundle
	if err := yaml.Unmarshal(rr.Body.Bytes(), &b); err != nil {
		t.Fatalf("Invalid yaml: %v", err)
	}
	if b.Settings.Theme != "dark" {
		t.Errorf("Expected theme dark, got %s", b.Settings.Theme)
	}
}

func TestImport_RoundTrip(t *testing.T) {
	e := newTestEnv(t, Options{})
	e.do(t, http.MethodPut, "/v1/games/2048/progress", `{"level":5,"score":10,"highScore":2048}`)
	e.do(t, http.MethodPost, "/v1/games/snake/unlock", "")
	exported := e.do(t, http.MethodGet, "/v1/export", "").Body.String()

	auth := []string{"Authorization", "Bearer " + testAdminKey}
	rr := e.do(t, http.MethodPost, "/v1/reset/all?confirm=true", "", auth...)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected reset status 200, got %d", rr.Code)
	}
	if e.data.IsGameUnlocked(context.Background(), "snake") {
		t.Fatal("Reset did not clear unlocks")
	}

	rr = e.do(t, http.MethodPost, "/v1/import", exported, auth...)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected import status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if !e.data.IsGameUnlocked(context.Background(), "snake") {
		t.Error("Unlock not restored")
	}
	if got := e.data.GameProgress(context.Background(), "2048"); got.HighScore != 2048 {
		t.Errorf("Progress not restored: %+v", got)
	}
}

func TestImport_InvalidBundle(t *testing.T) {
	e := newTestEnv(t, Options{})
	rr := e.do(t, http.MethodPost, "/v1/import", `[1,2,3]`, "Authorization", "Bearer "+testAdminKey)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("Expected status 400, got %d", rr.Code)
	}
	if resp := decode[ErrorResponse](t, rr); resp.Code != ErrCodeInvalidBundle {
		t.Errorf("Expected INVALID_BUNDLE, got %s", resp.Code)
	}
}

func TestImport_DryRunWritesNothing(t *testing.T) {
	e := newTestEnv(t, Options{})
	rr := e.do(t, http.MethodPost, "/v1/import?dry_run=true", `{"games":{"snake_unlocked":"true"}}`,
		"Authorization", "Bearer "+testAdminKey)

	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rr.Code)
	}
	if e.data.IsGameUnlocked(context.Background(), "snake") {
		t.Error("Dry run must not write")
	}
}

func TestImport_Unauthorized(t *testing.T) {
	e := newTestEnv(t, Options{})

	rr := e.do(t, http.MethodPost, "/v1/import", `{}`)
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401, got %d", rr.Code)
	}
	rr = e.do(t, http.MethodPost, "/v1/import", `{}`, "Authorization", "Bearer wrong")
	if rr.Code != http.StatusForbidden {
		t.Errorf("Expected status 403, got %d", rr.Code)
	}
}

func TestReset_RequiresConfirmation(t *testing.T) {
	e := newTestEnv(t, Options{})
	e.do(t, http.MethodPut, "/v1/games/snake/progress", `{"level":4}`)
	auth := []string{"Authorization", "Bearer " + testAdminKey}

	rr := e.do(t, http.MethodPost, "/v1/reset/progress", "", auth...)
	if rr.Code != http.StatusPreconditionRequired {
		t.Fatalf("Expected status 428, got %d", rr.Code)
	}
	if resp := decode[ErrorResponse](t, rr); resp.Message != shell.PromptResetProgress {
		t.Errorf("Expected prompt in message, got %q", resp.Message)
	}
	if got := e.data.GameProgress(context.Background(), "snake"); got.Level != 4 {
		t.Error("Unconfirmed reset must not change data")
	}

	rr = e.do(t, http.MethodPost, "/v1/reset/progress?confirm=true", "", auth...)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rr.Code)
	}
	if got := e.data.GameProgress(context.Background(), "snake"); got.Level != 1 {
		t.Errorf("Progress not reset: %+v", got)
	}
}

func TestReset_UnknownScope(t *testing.T) {
	e := newTestEnv(t, Options{})
	rr := e.do(t, http.MethodPost, "/v1/reset/everything?confirm=true", "", "Authorization", "Bearer "+testAdminKey)
	if rr.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", rr.Code)
	}
}

func TestUnknownAPIPath_ReturnsJSON404(t *testing.T) {
	assets := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("asset"))
	})
	e := newTestEnv(t, Options{Assets: assets})

	rr := e.do(t, http.MethodGet, "/v1/nope", "")
	if rr.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", rr.Code)
	}

	rr = e.do(t, http.MethodGet, "/games/snake.html", "")
	if rr.Body.String() != "asset" {
		t.Errorf("Expected non-API path to reach assets, got %q", rr.Body.String())
	}
}

func TestRateLimit(t *testing.T) {
	e := newTestEnv(t, Options{RateLimitPerIP: 2})

	for i := 0; i < 2; i++ {
		if rr := e.do(t, http.MethodGet, "/v1/settings", ""); rr.Code != http.StatusOK {
			t.Fatalf("Request %d: expected 200, got %d", i, rr.Code)
		}
	}
	rr := e.do(t, http.MethodGet, "/v1/settings", "")
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("Expected status 429, got %d", rr.Code)
	}
	if resp := decode[ErrorResponse](t, rr); resp.Code != ErrCodeRateLimited {
		t.Errorf("Expected RATE_LIMITED, got %s", resp.Code)
	}
}
