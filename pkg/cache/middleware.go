package cache

import (
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/skyhookdb/skyhook-go/internal/keys"
	"github.com/skyhookdb/skyhook-go/pkg/logger"
)

// Responses smaller than this are not worth a cache slot; they are mostly
// empty result sets and error envelopes.
const minCacheableBody = 20

const generationKeyPrefix = "skyhook:gen:"

// Middleware sits in front of the transport: Before answers idempotent
// requests from the store, After captures cacheable responses, and any
// mutating request bumps the collection's generation, orphaning every cached
// read for that collection regardless of backend.
type Middleware struct {
	store      Store
	defaultTTL time.Duration
	logger     logger.Logger

	group singleflight.Group
}

func NewMiddleware(store Store, defaultTTL time.Duration, log logger.Logger) *Middleware {
	if log == nil {
		log = logger.NewNoopLogger()
	}
	return &Middleware{
		store:      store,
		defaultTTL: defaultTTL,
		logger:     log,
	}
}

// Enabled reports whether the middleware can cache at all.
func (m *Middleware) Enabled() bool {
	return m != nil && m.store != nil && m.defaultTTL != 0
}

// ResolveTTL applies the TTL precedence: per-query override, then the global
// default, then nothing when explicitly disabled.
func (m *Middleware) ResolveTTL(override time.Duration, hasOverride, disabled bool) time.Duration {
	if disabled || m == nil || m.store == nil {
		return 0
	}
	if hasOverride {
		return override
	}
	return m.defaultTTL
}

// Before consults the cache. For idempotent requests it returns a hit if one
// is stored and fresh. For mutating requests it bumps the collection
// generation and always misses.
func (m *Middleware) Before(method string, u *url.URL, body []byte, collection string, ttl time.Duration) (*Entry, bool) {
	if m == nil || m.store == nil {
		return nil, false
	}
	if method != http.MethodGet {
		if collection != "" {
			m.invalidate(collection)
		}
		return nil, false
	}
	if ttl <= 0 {
		return nil, false
	}

	fp, err := m.fingerprint(method, u, body, collection)
	if err != nil {
		return nil, false
	}
	raw, ok := m.store.Get(fp)
	if !ok {
		return nil, false
	}
	entry, err := decodeEntry(raw)
	if err != nil {
		m.store.Delete(fp)
		return nil, false
	}
	if entry.Expired(time.Now()) {
		m.store.Delete(fp)
		return nil, false
	}
	m.logger.Debug("cache hit", zap.String("collection", collection), zap.String("url", u.String()))
	return entry, true
}

// After stores a response when it qualifies: idempotent method, successful
// status, a body large enough to be useful, and a positive TTL. Absence
// statuses (404/410) are never stored.
func (m *Middleware) After(method string, u *url.URL, body []byte, collection string, entry *Entry, ttl time.Duration) {
	if m == nil || m.store == nil || ttl <= 0 {
		return
	}
	if method != http.MethodGet {
		return
	}
	if entry.StatusCode < 200 || entry.StatusCode >= 300 {
		return
	}
	if entry.StatusCode == http.StatusNotFound || entry.StatusCode == http.StatusGone {
		return
	}
	if len(entry.Body) < minCacheableBody {
		return
	}

	fp, err := m.fingerprint(method, u, body, collection)
	if err != nil {
		return
	}
	entry.ExpiresAt = time.Now().Add(ttl)
	raw, err := encodeEntry(entry)
	if err != nil {
		return
	}
	m.store.Set(fp, raw, ttl)
	m.logger.Debug("cache store", zap.String("collection", collection), zap.Int("bytes", len(entry.Body)))
}

// Do collapses concurrent identical fetches: callers racing on the same
// fingerprint share one round trip.
func (m *Middleware) Do(key string, fn func() (any, error)) (any, error) {
	if m == nil {
		return fn()
	}
	v, err, _ := m.group.Do(key, fn)
	return v, err
}

// FingerprintKey exposes the request fingerprint for singleflight grouping.
func (m *Middleware) FingerprintKey(method string, u *url.URL, body []byte, collection string) string {
	fp, err := m.fingerprint(method, u, body, collection)
	if err != nil {
		return u.String()
	}
	return fp
}

func (m *Middleware) fingerprint(method string, u *url.URL, body []byte, collection string) (string, error) {
	fp, err := keys.RequestFingerprint(method, u, body, m.generation(collection))
	if err != nil {
		return "", err
	}
	return strconv.FormatUint(fp.ToUInt64(), 16), nil
}

// generation reads the collection's invalidation counter. A missing counter
// is generation zero.
func (m *Middleware) generation(collection string) uint64 {
	raw, ok := m.store.Get(generationKeyPrefix + collection)
	if !ok {
		return 0
	}
	gen, err := strconv.ParseUint(string(raw), 10, 64)
	if err != nil {
		return 0
	}
	return gen
}

// Invalidate drops every cached read for a collection. Batch writes call this
// per touched collection, since one batch POST can mutate several.
func (m *Middleware) Invalidate(collection string) {
	if m == nil || m.store == nil {
		return
	}
	m.invalidate(collection)
}

// invalidate bumps the generation, which changes every future fingerprint for
// the collection. Entries written under the old generation become
// unreachable and age out of the store on their own.
func (m *Middleware) invalidate(collection string) {
	gen := m.generation(collection) + 1
	m.store.Set(generationKeyPrefix+collection, []byte(strconv.FormatUint(gen, 10)), 0)
	m.logger.Debug("cache invalidate", zap.String("collection", collection), zap.Uint64("generation", gen))
}
