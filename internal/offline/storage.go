// Package offline implements the cache-first offline layer: versioned cache namespaces
// persisted in a store.Store, the install/activate lifecycle, and an http.RoundTripper
// that serves from cache before going to the network.
package offline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/TimurManjosov/playmate/internal/store"
)

// CachedResponse is a response persisted in a cache namespace.
type CachedResponse struct {
	URL      string      `json:"url"`
	Status   int         `json:"status"`
	Header   http.Header `json:"header"`
	Body     []byte      `json:"body"`
	StoredAt time.Time   `json:"storedAt"`
}

// Response rebuilds an *http.Response for req.
func (c *CachedResponse) Response(req *http.Request) *http.Response {
	return newResponse(req, c.Status, c.Header.Clone(), c.Body)
}

// CacheStorage keeps named caches in a key/value store. Entries live under
// "<namespace>/<xxhash64 of url>".
type CacheStorage struct {
	st store.Store
}

// NewCacheStorage wraps st. The store should be dedicated to the cache, for example
// through store.Scoped.
func NewCacheStorage(st store.Store) *CacheStorage {
	return &CacheStorage{st: st}
}

// Open returns the cache named ns. Caches exist once they hold an entry.
func (s *CacheStorage) Open(ns string) *Cache {
	return &Cache{st: s.st, ns: ns}
}

// Names returns every namespace holding at least one entry, sorted.
func (s *CacheStorage) Names(ctx context.Context) ([]string, error) {
	keys, err := s.st.Keys(ctx)
	if err != nil {
		return nil, err
	}
	seen := map[string]struct{}{}
	var names []string
	for _, k := range keys {
		ns, _, ok := strings.Cut(k, "/")
		if !ok {
			continue
		}
		if _, dup := seen[ns]; !dup {
			seen[ns] = struct{}{}
			names = append(names, ns)
		}
	}
	sort.Strings(names)
	return names, nil
}

// Delete removes the namespace ns and all its entries.
func (s *CacheStorage) Delete(ctx context.Context, ns string) error {
	keys, err := store.KeysWithPrefix(ctx, s.st, ns+"/")
	if err != nil {
		return err
	}
	for _, k := range keys {
		if err := s.st.Remove(ctx, k); err != nil {
			return fmt.Errorf("delete %s: %w", k, err)
		}
	}
	return nil
}

// Match looks url up in every namespace, in name order.
func (s *CacheStorage) Match(ctx context.Context, url string) (*CachedResponse, bool, error) {
	names, err := s.Names(ctx)
	if err != nil {
		return nil, false, err
	}
	for _, ns := range names {
		cr, ok, err := s.Open(ns).Match(ctx, url)
		if err != nil || ok {
			return cr, ok, err
		}
	}
	return nil, false, nil
}

// Cache is one namespace.
type Cache struct {
	st store.Store
	ns string
}

// Name returns the namespace name.
func (c *Cache) Name() string { return c.ns }

func (c *Cache) key(url string) string {
	return c.ns + "/" + strconv.FormatUint(xxhash.Sum64String(url), 16)
}

// Match returns the entry stored for url.
func (c *Cache) Match(ctx context.Context, url string) (*CachedResponse, bool, error) {
	raw, err := c.st.Get(ctx, c.key(url))
	if errors.Is(err, store.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var cr CachedResponse
	if err := json.Unmarshal([]byte(raw), &cr); err != nil {
		return nil, false, fmt.Errorf("decode cache entry %s: %w", url, err)
	}
	if cr.URL != url {
		// hash collision
		return nil, false, nil
	}
	return &cr, true, nil
}

// Put stores cr under its URL, replacing any previous entry.
func (c *Cache) Put(ctx context.Context, cr *CachedResponse) error {
	raw, err := json.Marshal(cr)
	if err != nil {
		return err
	}
	return c.st.Set(ctx, c.key(cr.URL), string(raw))
}

// Keys returns the URLs held by the cache.
func (c *Cache) Keys(ctx context.Context) ([]string, error) {
	keys, err := store.KeysWithPrefix(ctx, c.st, c.ns+"/")
	if err != nil {
		return nil, err
	}
	urls := make([]string, 0, len(keys))
	for _, k := range keys {
		raw, err := c.st.Get(ctx, k)
		if err != nil {
			continue
		}
		var cr CachedResponse
		if json.Unmarshal([]byte(raw), &cr) == nil {
			urls = append(urls, cr.URL)
		}
	}
	sort.Strings(urls)
	return urls, nil
}

// Len returns the number of entries.
func (c *Cache) Len(ctx context.Context) (int, error) {
	keys, err := store.KeysWithPrefix(ctx, c.st, c.ns+"/")
	return len(keys), err
}
