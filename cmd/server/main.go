package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/TimurManjosov/playmate/internal/api"
	"github.com/TimurManjosov/playmate/internal/audit"
	"github.com/TimurManjosov/playmate/internal/config"
	"github.com/TimurManjosov/playmate/internal/logging"
	"github.com/TimurManjosov/playmate/internal/notify"
	"github.com/TimurManjosov/playmate/internal/offline"
	"github.com/TimurManjosov/playmate/internal/playerdata"
	"github.com/TimurManjosov/playmate/internal/shell"
	"github.com/TimurManjosov/playmate/internal/store"
	"github.com/TimurManjosov/playmate/internal/telemetry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.New("info", "json").Fatal().Err(err).Msg("config")
	}
	log := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	telemetry.Init()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := store.NewStore(ctx, store.Options{
		Type:       cfg.StoreType,
		DSN:        cfg.DatabaseDSN,
		BadgerPath: cfg.BadgerPath,
		SQLitePath: cfg.SQLitePath,
		Origin:     cfg.OriginID,
	})
	if err != nil {
		log.Fatal().Err(err).Str("store", cfg.StoreType).Msg("store")
	}
	defer st.Close()

	scopes := splitStore(st, cfg.StorageQuotaBytes)
	hub := notify.NewHub()
	data := playerdata.NewManager(scopes.data, nil, playerdata.Options{
		MaxEvents: cfg.AnalyticsMaxEvents,
		Notifier:  hub,
		Logger:    log,
	})
	data.Load(ctx)
	actions := shell.NewActions(data, hub, hub, log)

	origin, err := url.Parse(cfg.AssetOrigin)
	if err != nil {
		log.Fatal().Err(err).Msg("asset origin")
	}
	cache, err := offline.NewManager(offline.NewCacheStorage(scopes.cache), http.DefaultTransport, offline.Config{
		Prefix:   cfg.CachePrefix,
		Version:  cfg.CacheVersion,
		Origin:   cfg.AssetOrigin,
		Manifest: cfg.StaticManifest,
		Fallback: cfg.OfflineFallback,
	}, log)
	if err != nil {
		log.Fatal().Err(err).Msg("offline cache")
	}
	go func() {
		if err := offline.NewLifecycle(cache, uint(cfg.CacheInstallMaxTries), log).Start(ctx); err != nil && ctx.Err() == nil {
			log.Error().Err(err).Msg("offline cache not activated; serving assets from the network only")
		}
	}()

	auditSvc := audit.NewService(audit.MultiSink{
		audit.NewLogSink(log),
		audit.NewStoreSink(scopes.audit, cfg.AuditMaxEntries),
	}, nil, log, 256)
	defer auditSvc.Close()

	srvAPI := api.NewServer(data, actions, hub, api.Options{
		AdminAPIKey:    cfg.AdminAPIKey,
		RateLimitPerIP: cfg.RateLimitPerIP,
		Assets:         assetProxy(origin, cache, log),
		Ready:          cache.Ready,
		Audit:          auditSvc,
		Logger:         log,
	})

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      srvAPI.Router(),
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 0, // notification stream
		IdleTimeout:  60 * time.Second,
	}
	metricsSrv := &http.Server{
		Addr:    cfg.MetricsAddr,
		Handler: promhttp.Handler(),
	}

	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Str("env", cfg.AppEnv).Str("store", cfg.StoreType).Msg("listening")
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server")
		}
	}()
	go func() {
		log.Info().Str("addr", cfg.MetricsAddr).Msg("metrics listening")
		if err := metricsSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("metrics server")
		}
	}()

	// graceful shutdown
	<-ctx.Done()
	ctxShut, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctxShut)
	_ = metricsSrv.Shutdown(ctxShut)
	log.Info().Msg("stopped")
}

// storeScopes are the views of the single backend. They share one origin but never each
// other's keys, and only player data counts against the storage quota.
type storeScopes struct {
	data  store.Store
	cache store.Store
	audit store.Store
}

func splitStore(st store.Store, quota int64) storeScopes {
	return storeScopes{
		data:  store.ScopedWithQuota(st, "data/", quota),
		cache: store.Scoped(st, "cache/"),
		audit: store.Scoped(st, "audit/"),
	}
}

// assetProxy forwards non-API paths to origin through the offline cache. Paths under
// offline.RemotePrefix reach the cross-origin manifest entries they name.
func assetProxy(origin *url.URL, cache *offline.Manager, log zerolog.Logger) http.Handler {
	proxy := &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			if target, ok := cache.RemoteURL(pr.In.URL); ok {
				pr.Out.URL = target
				pr.Out.Host = target.Host
				return
			}
			pr.SetURL(origin)
			pr.Out.Host = origin.Host
		},
		Transport: cache,
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			log.Warn().Err(err).Str("path", r.URL.Path).Msg("asset unavailable")
			api.UnavailableError(w, r, "Asset unavailable while offline")
		},
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, offline.RemotePrefix) {
			if _, ok := cache.RemoteURL(r.URL); !ok {
				api.NotFoundError(w, r, api.ErrCodeNotFound, "Unknown remote asset")
				return
			}
		}
		proxy.ServeHTTP(w, r)
	})
}
