package api

import (
	"net/http"

	"github.com/TimurManjosov/playmate/internal/playerdata"
	"github.com/TimurManjosov/playmate/internal/validation"
)

// settingsRequest is a partial update; absent fields keep their current value.
type settingsRequest struct {
	SoundEnabled *bool   `json:"soundEnabled"`
	Theme        *string `json:"theme"`
	Difficulty   *string `json:"difficulty"`
	AutoSave     *bool   `json:"autoSave"`
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.data.Settings(r.Context()))
}

func (s *Server) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	var req settingsRequest
	if !decodeJSON(w, r, maxBodySize, &req) {
		return
	}

	next := s.data.Settings(r.Context())
	if req.SoundEnabled != nil {
		next.SoundEnabled = *req.SoundEnabled
	}
	if req.Theme != nil {
		next.Theme = *req.Theme
	}
	if req.Difficulty != nil {
		next.Difficulty = playerdata.Difficulty(*req.Difficulty)
	}
	if req.AutoSave != nil {
		next.AutoSave = *req.AutoSave
	}

	res := validation.ValidateSettings(validation.SettingsParams{
		Theme:      next.Theme,
		Difficulty: string(next.Difficulty),
	})
	if !res.Valid {
		ValidationError(w, r, "Invalid settings", res.Errors)
		return
	}

	if err := s.actions.SaveSettings(r.Context(), next); err != nil {
		storageError(w, r, err, "Failed to save settings")
		return
	}
	writeJSON(w, http.StatusOK, next)
}
