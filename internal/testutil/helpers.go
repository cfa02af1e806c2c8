// Package testutil wires the full HTTP stack over an in-memory store for tests.
package testutil

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"

	"github.com/TimurManjosov/playmate/internal/api"
	"github.com/TimurManjosov/playmate/internal/notify"
	"github.com/TimurManjosov/playmate/internal/playerdata"
	"github.com/TimurManjosov/playmate/internal/shell"
	"github.com/TimurManjosov/playmate/internal/store"
)

// Env bundles the components behind a test server.
type Env struct {
	Server *api.Server
	Store  *store.MemoryStore
	Data   *playerdata.Manager
	Hub    *notify.Hub
}

// NewTestServer creates a test server with in-memory store for testing.
func NewTestServer(t *testing.T, adminKey string) *Env {
	t.Helper()
	memStore := store.NewMemoryStore()
	hub := notify.NewHub()
	data := playerdata.NewManager(memStore, nil, playerdata.Options{Notifier: hub, Logger: zerolog.Nop()})
	actions := shell.NewActions(data, hub, hub, zerolog.Nop())
	server := api.NewServer(data, actions, hub, api.Options{AdminAPIKey: adminKey, Logger: zerolog.Nop()})
	return &Env{Server: server, Store: memStore, Data: data, Hub: hub}
}

// HTTPRequest is a helper for making test HTTP requests.
type HTTPRequest struct {
	Method  string
	Path    string
	Body    string
	Headers map[string]string
}

// Do executes the HTTP request and returns the response recorder.
func (r *HTTPRequest) Do(t *testing.T, handler http.Handler) *httptest.ResponseRecorder {
	t.Helper()
	var body io.Reader
	if r.Body != "" {
		body = bytes.NewBufferString(r.Body)
	}
	req := httptest.NewRequest(r.Method, r.Path, body)
	if r.Body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range r.Headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

// SeedProgress saves progress for each game in the map.
func SeedProgress(ctx context.Context, data *playerdata.Manager, progress map[string]playerdata.Progress) error {
	for id, p := range progress {
		if err := data.SetGameProgress(ctx, id, p); err != nil {
			return err
		}
	}
	return nil
}

// SeedUnlocks marks each game as unlocked without recording a purchase.
func SeedUnlocks(ctx context.Context, data *playerdata.Manager, gameIDs ...string) error {
	for _, id := range gameIDs {
		if err := data.UnlockGame(ctx, id); err != nil {
			return err
		}
	}
	return nil
}
