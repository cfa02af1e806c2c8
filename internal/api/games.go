package api

import (
	"net/http"

	"github.com/TimurManjosov/playmate/internal/catalog"
	"github.com/TimurManjosov/playmate/internal/playerdata"
	"github.com/TimurManjosov/playmate/internal/validation"
)

// gameView is a catalog entry with the player's state.
type gameView struct {
	catalog.Game
	Unlocked bool                `json:"unlocked"`
	Progress playerdata.Progress `json:"progress"`
}

func (s *Server) view(r *http.Request, g catalog.Game) gameView {
	ctx := r.Context()
	return gameView{
		Game:     g,
		Unlocked: g.Free || s.data.IsGameUnlocked(ctx, g.ID),
		Progress: s.data.GameProgress(ctx, g.ID),
	}
}

func (s *Server) lookup(id string) (catalog.Game, bool) {
	for _, g := range s.games {
		if g.ID == id {
			return g, true
		}
	}
	return catalog.Game{}, false
}

func (s *Server) handleListGames(w http.ResponseWriter, r *http.Request) {
	category := catalog.Category(r.URL.Query().Get("category"))
	out := make([]gameView, 0, len(s.games))
	for _, g := range s.games {
		if category != "" && g.Category != category {
			continue
		}
		out = append(out, s.view(r, g))
	}
	writeJSON(w, http.StatusOK, map[string]any{"games": out, "total": len(out)})
}

func (s *Server) handleGetGame(w http.ResponseWriter, r *http.Request) {
	id, ok := gameIDParam(w, r)
	if !ok {
		return
	}
	g, found := s.lookup(id)
	if !found {
		NotFoundError(w, r, ErrCodeUnknownGame, "Unknown game: "+id)
		return
	}
	writeJSON(w, http.StatusOK, s.view(r, g))
}

func (s *Server) handleGetProgress(w http.ResponseWriter, r *http.Request) {
	id, ok := gameIDParam(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.data.GameProgress(r.Context(), id))
}

func (s *Server) handlePutProgress(w http.ResponseWriter, r *http.Request) {
	id, ok := gameIDParam(w, r)
	if !ok {
		return
	}
	var p playerdata.Progress
	if !decodeJSON(w, r, maxBodySize, &p) {
		return
	}
	res := validation.ValidateProgress(validation.ProgressParams{Level: p.Level, Score: p.Score, HighScore: p.HighScore})
	if !res.Valid {
		ValidationError(w, r, "Invalid progress", res.Errors)
		return
	}
	if err := s.data.SetGameProgress(r.Context(), id, p); err != nil {
		storageError(w, r, err, "Failed to save progress")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleDeleteProgress(w http.ResponseWriter, r *http.Request) {
	id, ok := gameIDParam(w, r)
	if !ok {
		return
	}
	if err := s.data.ResetGameProgress(r.Context(), id); err != nil {
		storageError(w, r, err, "Failed to reset progress")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type unlockResponse struct {
	GameID   string  `json:"gameId"`
	Price    float64 `json:"price"`
	Unlocked bool    `json:"unlocked"` // false when it already was
}

func (s *Server) handleUnlock(w http.ResponseWriter, r *http.Request) {
	id, ok := gameIDParam(w, r)
	if !ok {
		return
	}
	g, found := s.lookup(id)
	if !found {
		NotFoundError(w, r, ErrCodeUnknownGame, "Unknown game: "+id)
		return
	}
	if g.Free {
		BadRequestError(w, r, ErrCodeGameIsFree, "Free games do not need to be unlocked")
		return
	}
	unlocked, err := s.actions.Unlock(r.Context(), g.ID, g.Price)
	if err != nil {
		storageError(w, r, err, "Failed to unlock game")
		return
	}
	writeJSON(w, http.StatusOK, unlockResponse{GameID: g.ID, Price: g.Price, Unlocked: unlocked})
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	id, ok := gameIDParam(w, r)
	if !ok {
		return
	}
	s.actions.StartGame(r.Context(), id)
	writeJSON(w, http.StatusOK, s.data.Summary())
}

type completeRequest struct {
	Score int `json:"score"`
	Level int `json:"level"`
}

type completeResponse struct {
	Progress     playerdata.Progress `json:"progress"`
	NewHighScore bool                `json:"newHighScore"`
}

func (s *Server) handleComplete(w http.ResponseWriter, r *http.Request) {
	id, ok := gameIDParam(w, r)
	if !ok {
		return
	}
	var req completeRequest
	if !decodeJSON(w, r, maxBodySize, &req) {
		return
	}
	if req.Level == 0 {
		req.Level = 1
	}
	res := validation.ValidateProgress(validation.ProgressParams{Level: req.Level, Score: req.Score})
	if !res.Valid {
		ValidationError(w, r, "Invalid result", res.Errors)
		return
	}
	p, high, err := s.actions.CompleteGame(r.Context(), id, req.Score, req.Level)
	if err != nil {
		storageError(w, r, err, "Failed to save progress")
		return
	}
	writeJSON(w, http.StatusOK, completeResponse{Progress: p, NewHighScore: high})
}

type playTimeRequest struct {
	Seconds int `json:"seconds"`
}

func (s *Server) handlePlayTime(w http.ResponseWriter, r *http.Request) {
	id, ok := gameIDParam(w, r)
	if !ok {
		return
	}
	var req playTimeRequest
	if !decodeJSON(w, r, maxBodySize, &req) {
		return
	}
	if res := validation.ValidatePlayTime(req.Seconds); !res.Valid {
		ValidationError(w, r, "Invalid play time", res.Errors)
		return
	}
	s.data.TrackPlayTime(r.Context(), id, req.Seconds)
	writeJSON(w, http.StatusOK, s.data.Summary())
}

func (s *Server) handleListPurchases(w http.ResponseWriter, r *http.Request) {
	purchases := s.data.Purchases(r.Context())
	total := 0.0
	for _, p := range purchases {
		total += p.Price
	}
	writeJSON(w, http.StatusOK, map[string]any{"purchases": purchases, "totalSpent": total})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.data.Stats(r.Context(), s.games))
}
