package telemetry

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
)

// Offline cache outcomes recorded in OfflineRequests.
const (
	CacheHit         = "hit"
	CacheMiss        = "miss"
	CacheFallback    = "fallback"
	CachePlaceholder = "placeholder"
	CacheBypass      = "bypass"
	CacheError       = "error"
)

var (
	httpReqs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"route", "method", "status"},
	)
	httpDur = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)

	OfflineRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "offline_cache_requests_total",
			Help: "Requests intercepted by the offline cache, by outcome",
		},
		[]string{"result"},
	)
	OfflineWriteFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "offline_cache_write_failures_total",
		Help: "Responses that could not be written to the dynamic cache",
	})
	StoreWriteFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "playerdata_write_failures_total",
			Help: "Failed writes to the player data store, by entity",
		},
		[]string{"entity"},
	)
	AnalyticsEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "analytics_events_total",
			Help: "Analytics events tracked, by event name",
		},
		[]string{"event"},
	)
	NotificationClients = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "notification_stream_clients",
		Help: "Number of currently connected notification stream clients",
	})
)

func Init() {
	prometheus.MustRegister(httpReqs, httpDur, OfflineRequests, OfflineWriteFailures,
		StoreWriteFailures, AnalyticsEvents, NotificationClients)
}

func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &statusWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(ww, r)

		// route pattern is only known once chi has routed the request
		// unmatched paths (proxied assets) share one label
		route := "other"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}

		httpReqs.WithLabelValues(route, r.Method, http.StatusText(ww.status)).Inc()
		httpDur.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
