package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/cespare/xxhash/v2"
	"github.com/go-chi/chi/v5"

	"github.com/TimurManjosov/playmate/internal/store"
	"github.com/TimurManjosov/playmate/internal/validation"
)

// maxBodySize bounds ordinary JSON request bodies.
const maxBodySize = 64 * 1024

// ===== HTTP Helpers =====

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// decodeJSON decodes a size-limited request body into v and writes the error response
// itself. It reports whether decoding succeeded.
func decodeJSON(w http.ResponseWriter, r *http.Request, limit int64, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			RequestTooLargeError(w, r, "Request body too large")
			return false
		}
		BadRequestError(w, r, ErrCodeInvalidJSON, "Invalid JSON in request body")
		return false
	}
	return true
}

// gameIDParam reads and validates the {id} URL parameter.
func gameIDParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := chi.URLParam(r, "id")
	if res := validation.ValidateGameID(id); !res.Valid {
		BadRequestErrorWithFields(w, r, ErrCodeInvalidGameID, "Invalid game id", res.Errors)
		return "", false
	}
	return id, true
}

// storageError maps a store failure to a response.
func storageError(w http.ResponseWriter, r *http.Request, err error, message string) {
	if errors.Is(err, store.ErrQuotaExceeded) {
		QuotaExceededError(w, r, message+": storage quota exceeded")
		return
	}
	errResp := NewErrorResponse(http.StatusInternalServerError, ErrCodeStorage, message)
	writeErrorResponse(w, r, http.StatusInternalServerError, errResp)
}

// ===== ETag Helpers =====

// computeETag returns a strong ETag for body.
func computeETag(body []byte) string {
	return `"` + strconv.FormatUint(xxhash.Sum64(body), 16) + `"`
}

// notModified reports whether the request's If-None-Match matches etag.
func notModified(r *http.Request, etag string) bool {
	inm := r.Header.Get("If-None-Match")
	return inm != "" && inm == etag
}

func queryBool(r *http.Request, name string) bool {
	v, _ := strconv.ParseBool(r.URL.Query().Get(name))
	return v
}
