// Package api exposes player data over HTTP and forwards every other path to the
// asset origin through the offline cache.
package api

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/rs/zerolog"

	"github.com/TimurManjosov/playmate/internal/audit"
	"github.com/TimurManjosov/playmate/internal/catalog"
	"github.com/TimurManjosov/playmate/internal/notify"
	"github.com/TimurManjosov/playmate/internal/playerdata"
	"github.com/TimurManjosov/playmate/internal/shell"
	"github.com/TimurManjosov/playmate/internal/telemetry"
)

// Options configures a Server.
type Options struct {
	AdminAPIKey    string
	RateLimitPerIP int          // requests per minute on /v1; 0 disables limiting
	Assets         http.Handler // serves every non-API path; nil answers 404
	Ready          func() bool  // readiness of the offline layer; nil means always ready
	Games          []catalog.Game
	Audit          *audit.Service // records imports, resets and rejected admin credentials; nil disables
	Logger         zerolog.Logger
}

type Server struct {
	data        *playerdata.Manager
	actions     *shell.Actions
	hub         *notify.Hub
	adminAPIKey string
	rateLimit   int
	assets      http.Handler
	ready       func() bool
	games       []catalog.Game
	audit       *audit.Service
	log         zerolog.Logger
	pingEvery   time.Duration
}

func NewServer(data *playerdata.Manager, actions *shell.Actions, hub *notify.Hub, opts Options) *Server {
	if opts.Ready == nil {
		opts.Ready = func() bool { return true }
	}
	if opts.Games == nil {
		opts.Games = catalog.Games()
	}
	return &Server{
		data:        data,
		actions:     actions,
		hub:         hub,
		adminAPIKey: opts.AdminAPIKey,
		rateLimit:   opts.RateLimitPerIP,
		assets:      opts.Assets,
		ready:       opts.Ready,
		games:       opts.Games,
		audit:       opts.Audit,
		log:         opts.Logger.With().Str("component", "api").Logger(),
		pingEvery:   25 * time.Second,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)
	r.Use(telemetry.Middleware)
	r.Use(s.requestLogger)

	// health
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/readyz", func(w http.ResponseWriter, req *http.Request) {
		if !s.ready() {
			UnavailableError(w, req, "offline cache not ready")
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	r.Route("/v1", func(r chi.Router) {
		if s.rateLimit > 0 {
			r.Use(httprate.Limit(s.rateLimit, time.Minute,
				httprate.WithKeyFuncs(httprate.KeyByIP),
				httprate.WithLimitHandler(func(w http.ResponseWriter, req *http.Request) {
					errResp := NewErrorResponse(http.StatusTooManyRequests, ErrCodeRateLimited, "Rate limit exceeded")
					writeErrorResponse(w, req, http.StatusTooManyRequests, errResp)
				}),
			))
		}
		r.NotFound(func(w http.ResponseWriter, req *http.Request) {
			NotFoundError(w, req, ErrCodeNotFound, "No such endpoint")
		})

		// long-lived; must not run under the request timeout
		r.Get("/notifications/stream", s.handleStream)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(5 * time.Second))

			r.Get("/settings", s.handleGetSettings)
			r.Put("/settings", s.handlePutSettings)

			r.Get("/games", s.handleListGames)
			r.Get("/games/{id}", s.handleGetGame)
			r.Get("/games/{id}/progress", s.handleGetProgress)
			r.Put("/games/{id}/progress", s.handlePutProgress)
			r.Delete("/games/{id}/progress", s.handleDeleteProgress)
			r.Post("/games/{id}/unlock", s.handleUnlock)
			r.Post("/games/{id}/start", s.handleStart)
			r.Post("/games/{id}/complete", s.handleComplete)
			r.Post("/games/{id}/playtime", s.handlePlayTime)

			r.Get("/purchases", s.handleListPurchases)
			r.Get("/stats", s.handleStats)
			r.Get("/events", s.handleListEvents)
			r.Post("/events", s.handleTrackEvent)

			r.Get("/export", s.handleExport)

			// admin (protected)
			r.Post("/import", s.authAdmin(s.handleImport))
			r.Post("/reset/{scope}", s.authAdmin(s.handleReset))
			r.Get("/audit", s.authAdmin(s.handleAudit))
		})
	})

	if s.assets != nil {
		r.NotFound(s.assets.ServeHTTP)
	}
	return r
}

// ---- middleware ----

func (s *Server) authAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		got := strings.TrimSpace(strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer"))
		if got == "" {
			s.record(audit.NewEventBuilder(r).AsAnonymous().WithAction(audit.ActionAuthFailed).ForResource(r.URL.Path).Failure("missing bearer token"))
			UnauthorizedError(w, r, "missing bearer token")
			return
		}
		// constant-time compare
		if subtle.ConstantTimeCompare([]byte(got), []byte(s.adminAPIKey)) != 1 {
			s.record(audit.NewEventBuilder(r).AsAnonymous().WithAction(audit.ActionAuthFailed).ForResource(r.URL.Path).Failure("invalid token"))
			ForbiddenError(w, r, "invalid token")
			return
		}
		next.ServeHTTP(w, r)
	}
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		ev := s.log.Debug()
		if ww.Status() >= 500 {
			ev = s.log.Warn()
		}
		ev.Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("elapsed", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("request")
	})
}
