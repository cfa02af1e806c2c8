package api

import (
	"context"
	"net/http"
	"testing"

	"github.com/rs/zerolog"

	"github.com/TimurManjosov/playmate/internal/audit"
	"github.com/TimurManjosov/playmate/internal/store"
)

func newAuditedEnv(t *testing.T) (*testEnv, *audit.Service) {
	t.Helper()
	svc := audit.NewService(audit.NewStoreSink(store.NewMemoryStore(), 100), nil, zerolog.Nop(), 64)
	t.Cleanup(func() { _ = svc.Close() })
	return newTestEnv(t, Options{Audit: svc}), svc
}

// recent flushes the queue by closing the service and reads the stored events.
func recent(t *testing.T, svc *audit.Service) []audit.Event {
	t.Helper()
	if err := svc.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	events, ok, err := svc.Recent(context.Background(), 100)
	if err != nil || !ok {
		t.Fatalf("Recent failed: ok=%v err=%v", ok, err)
	}
	return events
}

func TestAudit_RecordsResetAndRejectedCredentials(t *testing.T) {
	e, svc := newAuditedEnv(t)
	auth := []string{"Authorization", "Bearer " + testAdminKey}

	e.do(t, http.MethodPost, "/v1/reset/purchases?confirm=true", "", auth...)
	e.do(t, http.MethodPost, "/v1/reset/all", "", auth...) // unconfirmed, not an action
	e.do(t, http.MethodPost, "/v1/reset/all?confirm=true", "", "Authorization", "Bearer wrong")

	events := recent(t, svc)
	if len(events) != 2 {
		t.Fatalf("Expected 2 audit events, got %d: %+v", len(events), events)
	}

	var reset, denied *audit.Event
	for i := range events {
		switch events[i].Action {
		case audit.ActionReset:
			reset = &events[i]
		case audit.ActionAuthFailed:
			denied = &events[i]
		}
	}
	if reset == nil || reset.Resource != "purchases" || reset.Status != audit.StatusSuccess {
		t.Errorf("Unexpected reset event: %+v", reset)
	}
	if denied == nil || denied.Actor.Kind != audit.ActorKindAnonymous || denied.Status != audit.StatusFailure {
		t.Errorf("Unexpected auth event: %+v", denied)
	}
}

func TestAudit_RecordsImport(t *testing.T) {
	e, svc := newAuditedEnv(t)
	auth := []string{"Authorization", "Bearer " + testAdminKey}

	e.do(t, http.MethodPost, "/v1/import", `{"purchases":[{"gameId":"snake","price":0.05,"date":"2025-01-01T00:00:00.000Z"}]}`, auth...)
	e.do(t, http.MethodPost, "/v1/import?dry_run=true", `{"purchases":[]}`, auth...)
	e.do(t, http.MethodPost, "/v1/import", `[1,2]`, auth...)

	events := recent(t, svc)
	if len(events) != 2 {
		t.Fatalf("Expected 2 audit events (dry run excluded), got %d", len(events))
	}
	statuses := map[string]int{}
	for _, ev := range events {
		if ev.Action != audit.ActionImported {
			t.Errorf("Unexpected action %q", ev.Action)
		}
		statuses[ev.Status]++
	}
	if statuses[audit.StatusSuccess] != 1 || statuses[audit.StatusFailure] != 1 {
		t.Errorf("Expected one success and one failure, got %v", statuses)
	}
}

func TestAudit_Endpoint(t *testing.T) {
	e, svc := newAuditedEnv(t)
	auth := []string{"Authorization", "Bearer " + testAdminKey}

	e.do(t, http.MethodPost, "/v1/reset/progress?confirm=true", "", auth...)
	_ = svc.Close() // flush

	rr := e.do(t, http.MethodGet, "/v1/audit?limit=10", "", auth...)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	resp := decode[struct {
		Events []audit.Event `json:"events"`
		Total  int           `json:"total"`
	}](t, rr)
	if resp.Total != 1 || resp.Events[0].Resource != "progress" {
		t.Errorf("Unexpected audit listing: %+v", resp)
	}

	if rr := e.do(t, http.MethodGet, "/v1/audit?limit=0", "", auth...); rr.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for bad limit, got %d", rr.Code)
	}
	if rr := e.do(t, http.MethodGet, "/v1/audit", ""); rr.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401 without token, got %d", rr.Code)
	}
}

func TestAudit_DisabledEndpoint(t *testing.T) {
	e := newTestEnv(t, Options{})
	rr := e.do(t, http.MethodGet, "/v1/audit", "", "Authorization", "Bearer "+testAdminKey)
	if rr.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", rr.Code)
	}
}
