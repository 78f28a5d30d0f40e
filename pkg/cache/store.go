// Package cache implements the request-caching middleware and its pluggable
// backing store. The store is a plain key-value abstraction so the cache can
// be memory-local or shared across processes.
package cache

import (
	"time"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Store is the injectable key-value backend. Implementations must replace
// values atomically; a reader never observes a partial write.
type Store interface {
	// Get returns the bytes stored for key, if present.
	Get(key string) ([]byte, bool)

	// Set stores bytes under key. A non-positive ttl stores without expiry.
	Set(key string, value []byte, ttl time.Duration)

	// Delete removes the key.
	Delete(key string)

	// Close releases any residual resources.
	Close()
}

// Entry is one cached response.
type Entry struct {
	Body       []byte            `json:"body"`
	Header     map[string]string `json:"header,omitempty"`
	StatusCode int               `json:"statusCode"`
	ExpiresAt  time.Time         `json:"expiresAt"`
}

// Expired reports whether the entry's own clock has run out. External stores
// may outlive the TTL they were handed, so expiry is re-checked on read.
func (e *Entry) Expired(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && now.After(e.ExpiresAt)
}

func encodeEntry(e *Entry) ([]byte, error) {
	return json.Marshal(e)
}

func decodeEntry(data []byte) (*Entry, error) {
	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	return &e, nil
}
