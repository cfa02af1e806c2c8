package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"gopkg.in/yaml.v3"

	"github.com/TimurManjosov/playmate/internal/audit"
	"github.com/TimurManjosov/playmate/internal/playerdata"
	"github.com/TimurManjosov/playmate/internal/shell"
	"github.com/TimurManjosov/playmate/internal/validation"
)

type trackRequest struct {
	Event string         `json:"event"`
	Data  map[string]any `json:"data"`
}

func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.data.Events(r.Context()))
}

func (s *Server) handleTrackEvent(w http.ResponseWriter, r *http.Request) {
	var req trackRequest
	if !decodeJSON(w, r, maxBodySize, &req) {
		return
	}
	res := validation.ValidateEventName(req.Event)
	if req.Data != nil {
		raw, _ := json.Marshal(req.Data)
		res.Merge(validation.ValidateEventDataSize(raw))
	}
	if !res.Valid {
		ValidationError(w, r, "Invalid event", res.Errors)
		return
	}
	s.data.TrackEvent(r.Context(), req.Event, req.Data)
	w.WriteHeader(http.StatusAccepted)
}

// handleExport serves the backup bundle as JSON, or YAML with ?format=yaml. Only a
// delivered download is reported to the player; a 304 stays silent.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	bundle, err := s.data.Export(r.Context())
	if err != nil {
		s.actions.ReportExport(err)
		storageError(w, r, err, "Failed to export data")
		return
	}

	var body []byte
	contentType := "application/json"
	if r.URL.Query().Get("format") == "yaml" {
		body, err = yaml.Marshal(bundle)
		contentType = "application/yaml"
	} else {
		body, err = json.Marshal(bundle)
	}
	if err != nil {
		InternalError(w, r, "Failed to encode export")
		return
	}

	etag := computeETag(body)
	if notModified(r, etag) {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Content-Disposition", `attachment; filename="playmate-backup.`+extension(contentType)+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
	s.actions.ReportExport(nil)
}

func extension(contentType string) string {
	if contentType == "application/yaml" {
		return "yaml"
	}
	return "json"
}

// handleImport restores a bundle. With ?dry_run=true it only validates the document.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, validation.MaxBundleSize))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			RequestTooLargeError(w, r, "Import document too large")
			return
		}
		BadRequestError(w, r, ErrCodeBadRequest, "Failed to read request body")
		return
	}
	raw = bytes.TrimSpace(raw)

	if queryBool(r, "dry_run") {
		res, err := playerdata.ParseBundle(raw)
		if err != nil {
			BadRequestError(w, r, ErrCodeInvalidBundle, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"dryRun": true, "result": res})
		return
	}

	res, err := s.actions.Import(r.Context(), raw)
	ev := audit.NewEventBuilder(r).WithAction(audit.ActionImported).ForResource("bundle")
	switch {
	case isInvalidBundle(err):
		s.record(ev.Failure(err.Error()))
		BadRequestError(w, r, ErrCodeInvalidBundle, err.Error())
		return
	case err != nil:
		s.record(ev.Failure(err.Error()))
		storageError(w, r, err, "Import stopped after a failed write")
		return
	}
	s.record(ev.WithDetails(map[string]any{
		"settings":  res.Settings,
		"purchases": res.Purchases,
		"gameKeys":  res.GameKeys,
	}))
	writeJSON(w, http.StatusOK, map[string]any{"dryRun": false, "result": res})
}

func isInvalidBundle(err error) bool { return errors.Is(err, playerdata.ErrInvalidBundle) }

type resetResponse struct {
	Scope string `json:"scope"`
	Reset bool   `json:"reset"`
}

// handleReset runs a destructive reset; the caller confirms with ?confirm=true.
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	scope := chi.URLParam(r, "scope")
	confirm := shell.Answer(queryBool(r, "confirm"))
	ctx := r.Context()

	var (
		done   bool
		err    error
		prompt string
	)
	switch scope {
	case "progress":
		prompt = shell.PromptResetProgress
		done, err = s.actions.ResetAllProgress(ctx, confirm)
	case "purchases":
		prompt = shell.PromptResetPurchases
		done, err = s.actions.ResetAllPurchases(ctx, confirm)
	case "all":
		prompt = shell.PromptResetData
		done, err = s.actions.ResetAllData(ctx, confirm)
	default:
		NotFoundError(w, r, ErrCodeNotFound, "Unknown reset scope: "+scope)
		return
	}
	ev := audit.NewEventBuilder(r).WithAction(audit.ActionReset).ForResource(scope)
	if err != nil {
		s.record(ev.Failure(err.Error()))
		storageError(w, r, err, "Reset failed")
		return
	}
	if !done {
		ConfirmationRequiredError(w, r, prompt)
		return
	}
	s.record(ev)
	s.log.Info().Str("scope", scope).Msg("player data reset")
	writeJSON(w, http.StatusOK, resetResponse{Scope: scope, Reset: true})
}

// handleAudit lists recent administrative actions, newest first.
func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	if s.audit == nil {
		NotFoundError(w, r, ErrCodeNotFound, "Audit log is disabled")
		return
	}
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 500 {
			BadRequestError(w, r, ErrCodeBadRequest, "limit must be between 1 and 500")
			return
		}
		limit = n
	}
	events, ok, err := s.audit.Recent(r.Context(), limit)
	if err != nil {
		storageError(w, r, err, "Failed to read audit log")
		return
	}
	if !ok {
		NotFoundError(w, r, ErrCodeNotFound, "Audit log is write-only")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events, "total": len(events)})
}

func (s *Server) record(b *audit.EventBuilder) {
	if s.audit != nil {
		s.audit.Log(b.Build())
	}
}
