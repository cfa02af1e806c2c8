package offline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"
	"sync/atomic"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/TimurManjosov/playmate/internal/telemetry"
)

// ErrInstallFailed is returned when a manifest entry could not be fetched.
var ErrInstallFailed = errors.New("offline install failed")

// RemotePrefix is the local path under which cross-origin manifest assets are served:
// /_remote/<scheme>/<host>/<path> stands for <scheme>://<host>/<path>.
const RemotePrefix = "/_remote/"

// installConcurrency bounds parallel manifest fetches.
const installConcurrency = 6

// Config describes one cache generation.
type Config struct {
	Prefix   string   // namespace prefix, e.g. "playmate"
	Version  string   // semantic version of the generation
	Origin   string   // the asset origin; relative manifest entries resolve against it
	Manifest []string // assets fetched at install time
	Fallback string   // root document served to page requests when offline
}

// Manager owns the current cache generation and intercepts asset requests.
type Manager struct {
	storage  *CacheStorage
	next     http.RoundTripper
	log      zerolog.Logger
	origin   *url.URL
	version  *semver.Version
	static   string
	dynamic  string
	manifest []string
	remotes  map[string]bool // scheme://host of cross-origin manifest entries
	fallback string
	active   atomic.Bool
	now      func() time.Time
}

// NewManager validates cfg and creates a manager that fetches through next
// (http.DefaultTransport when nil).
func NewManager(storage *CacheStorage, next http.RoundTripper, cfg Config, log zerolog.Logger) (*Manager, error) {
	if next == nil {
		next = http.DefaultTransport
	}
	v, err := semver.NewVersion(cfg.Version)
	if err != nil {
		return nil, fmt.Errorf("invalid cache version %q: %w", cfg.Version, err)
	}
	origin, err := url.Parse(cfg.Origin)
	if err != nil || origin.Scheme == "" || origin.Host == "" {
		return nil, fmt.Errorf("invalid asset origin %q", cfg.Origin)
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "playmate"
	}
	if cfg.Fallback == "" {
		cfg.Fallback = "/index.html"
	}

	m := &Manager{
		storage:  storage,
		next:     next,
		log:      log.With().Str("component", "offline").Logger(),
		origin:   origin,
		version:  v,
		static:   namespace(cfg.Prefix, kindStatic, cfg.Version),
		dynamic:  namespace(cfg.Prefix, kindDynamic, cfg.Version),
		fallback: origin.ResolveReference(&url.URL{Path: cfg.Fallback}).String(),
		remotes:  map[string]bool{},
		now:      time.Now,
	}
	for _, entry := range cfg.Manifest {
		u, err := m.resolve(entry)
		if err != nil {
			return nil, fmt.Errorf("manifest entry %q: %w", entry, err)
		}
		m.manifest = append(m.manifest, u)
		if pu, _ := url.Parse(u); !m.sameOrigin(pu) {
			m.remotes[strings.ToLower(pu.Scheme+"://"+pu.Host)] = true
		}
	}
	return m, nil
}

const (
	kindStatic  = "static"
	kindDynamic = "dynamic"
)

func namespace(prefix, kind, version string) string {
	return prefix + "-" + kind + "-" + version
}

// namespaceVersion extracts the version of a namespace produced by namespace.
func namespaceVersion(name string) (*semver.Version, bool) {
	for _, kind := range []string{kindStatic, kindDynamic} {
		marker := "-" + kind + "-"
		if i := strings.LastIndex(name, marker); i >= 0 {
			v, err := semver.NewVersion(name[i+len(marker):])
			return v, err == nil
		}
	}
	return nil, false
}

func (m *Manager) resolve(entry string) (string, error) {
	ref, err := url.Parse(entry)
	if err != nil {
		return "", err
	}
	return m.origin.ResolveReference(ref).String(), nil
}

// RemoteURL maps a local RemotePrefix path back to the cross-origin URL it stands for.
// Only origins named in the manifest are mapped.
func (m *Manager) RemoteURL(local *url.URL) (*url.URL, bool) {
	rest, ok := strings.CutPrefix(local.Path, RemotePrefix)
	if !ok {
		return nil, false
	}
	parts := strings.SplitN(rest, "/", 3)
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return nil, false
	}
	target := &url.URL{Scheme: parts[0], Host: parts[1], Path: "/", RawQuery: local.RawQuery}
	if len(parts) == 3 {
		target.Path += parts[2]
	}
	if !m.remotes[strings.ToLower(target.Scheme+"://"+target.Host)] {
		return nil, false
	}
	return target, true
}

// StaticNamespace returns the name of the current static namespace.
func (m *Manager) StaticNamespace() string { return m.static }

// DynamicNamespace returns the name of the current dynamic namespace.
func (m *Manager) DynamicNamespace() string { return m.dynamic }

// Storage returns the underlying cache storage.
func (m *Manager) Storage() *CacheStorage { return m.storage }

// Ready reports whether the current generation has been activated.
func (m *Manager) Ready() bool { return m.active.Load() }

// Install fetches every manifest entry into the static namespace. Either all entries are
// written or none are.
func (m *Manager) Install(ctx context.Context) error {
	fetched := make([]*CachedResponse, len(m.manifest))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(installConcurrency)
	for i, u := range m.manifest {
		g.Go(func() error {
			cr, err := m.fetch(gctx, u)
			if err != nil {
				return err
			}
			fetched[i] = cr
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("%w: %v", ErrInstallFailed, err)
	}

	cache := m.storage.Open(m.static)
	for _, cr := range fetched {
		if err := cache.Put(ctx, cr); err != nil {
			if derr := m.storage.Delete(ctx, m.static); derr != nil {
				m.log.Error().Err(derr).Str("namespace", m.static).Msg("failed to discard partial install")
			}
			return fmt.Errorf("%w: store %s: %v", ErrInstallFailed, cr.URL, err)
		}
	}
	m.log.Info().Str("namespace", m.static).Int("entries", len(fetched)).Msg("static assets cached")
	return nil
}

// Installed reports whether the static namespace already holds an entry for every manifest
// URL, as left behind by an earlier successful install of the same version.
func (m *Manager) Installed(ctx context.Context) (bool, error) {
	cache := m.storage.Open(m.static)
	for _, u := range m.manifest {
		_, ok, err := cache.Match(ctx, u)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

func (m *Manager) fetch(ctx context.Context, u string) (*CachedResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := m.next.RoundTrip(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", u, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("fetch %s: status %d", u, resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", u, err)
	}
	return &CachedResponse{URL: u, Status: resp.StatusCode, Header: resp.Header.Clone(), Body: body, StoredAt: m.now().UTC()}, nil
}

// Activate deletes every namespace other than the current static and dynamic ones and
// starts intercepting requests. It returns the deleted namespaces.
func (m *Manager) Activate(ctx context.Context) ([]string, error) {
	names, err := m.storage.Names(ctx)
	if err != nil {
		return nil, fmt.Errorf("list caches: %w", err)
	}
	var deleted []string
	for _, name := range names {
		if name == m.static || name == m.dynamic {
			continue
		}
		if err := m.storage.Delete(ctx, name); err != nil {
			return deleted, fmt.Errorf("delete cache %s: %w", name, err)
		}
		if v, ok := namespaceVersion(name); ok && v.GreaterThan(m.version) {
			m.log.Warn().Str("namespace", name).Str("current", m.version.Original()).Msg("deleted cache from a newer version")
		} else {
			m.log.Info().Str("namespace", name).Msg("deleted old cache")
		}
		deleted = append(deleted, name)
	}
	m.active.Store(true)
	m.log.Info().Str("static", m.static).Str("dynamic", m.dynamic).Msg("offline cache activated")
	return deleted, nil
}

// RoundTrip serves GET requests cache first. Before activation, and for every other
// method, requests go straight to the network.
func (m *Manager) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Method != http.MethodGet || !m.active.Load() {
		telemetry.OfflineRequests.WithLabelValues(telemetry.CacheBypass).Inc()
		return m.next.RoundTrip(req)
	}
	ctx := req.Context()
	u := req.URL.String()

	cr, ok, err := m.storage.Match(ctx, u)
	if err != nil {
		m.log.Warn().Err(err).Str("url", u).Msg("cache lookup failed")
	}
	if ok {
		telemetry.OfflineRequests.WithLabelValues(telemetry.CacheHit).Inc()
		return cr.Response(req), nil
	}

	resp, err := m.next.RoundTrip(req)
	if err != nil {
		return m.offline(req, err)
	}
	telemetry.OfflineRequests.WithLabelValues(telemetry.CacheMiss).Inc()
	if resp.StatusCode != http.StatusOK {
		return resp, nil
	}

	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return m.offline(req, err)
	}
	resp.Body = io.NopCloser(bytes.NewReader(body))

	entry := &CachedResponse{URL: u, Status: resp.StatusCode, Header: resp.Header.Clone(), Body: body, StoredAt: m.now().UTC()}
	if err := m.storage.Open(m.dynamic).Put(ctx, entry); err != nil {
		// not retried; the caller still gets the response
		telemetry.OfflineWriteFailures.Inc()
		m.log.Warn().Err(err).Str("url", u).Msg("failed to cache response")
	}
	return resp, nil
}

// offline handles a failed network fetch.
func (m *Manager) offline(req *http.Request, cause error) (*http.Response, error) {
	ctx := req.Context()
	if m.sameOrigin(req.URL) {
		if strings.Contains(req.Header.Get("Accept"), "text/html") {
			cr, ok, err := m.storage.Match(ctx, m.fallback)
			if err == nil && ok {
				telemetry.OfflineRequests.WithLabelValues(telemetry.CacheFallback).Inc()
				m.log.Debug().Str("url", req.URL.String()).Msg("serving offline page")
				return cr.Response(req), nil
			}
		}
		telemetry.OfflineRequests.WithLabelValues(telemetry.CacheError).Inc()
		return nil, cause
	}

	telemetry.OfflineRequests.WithLabelValues(telemetry.CachePlaceholder).Inc()
	h := http.Header{}
	h.Set("Content-Type", placeholderType(req.URL.Path))
	return newResponse(req, http.StatusOK, h, nil), nil
}

func (m *Manager) sameOrigin(u *url.URL) bool {
	return strings.EqualFold(u.Scheme, m.origin.Scheme) && strings.EqualFold(u.Host, m.origin.Host)
}

// placeholderType guesses a content type from the extension; remote style sheets such
// as font CSS often have none.
func placeholderType(p string) string {
	if t := mime.TypeByExtension(path.Ext(p)); t != "" {
		return t
	}
	return "text/css"
}

func newResponse(req *http.Request, status int, h http.Header, body []byte) *http.Response {
	if h == nil {
		h = http.Header{}
	}
	return &http.Response{
		Status:        fmt.Sprintf("%d %s", status, http.StatusText(status)),
		StatusCode:    status,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        h,
		Body:          io.NopCloser(bytes.NewReader(body)),
		ContentLength: int64(len(body)),
		Request:       req,
	}
}
