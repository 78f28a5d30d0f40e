package cache

import (
	"sync"
	"time"

	"github.com/Yiling-J/theine-go"
)

const defaultMaxEntries = 10000

// MemoryStore is the default Store, backed by an in-process theine cache.
type MemoryStore struct {
	cache      *theine.Cache[string, []byte]
	maxEntries int64
	closeOnce  *sync.Once
}

type MemoryStoreOpt func(*MemoryStore)

// WithMaxEntries bounds the number of entries held in memory.
func WithMaxEntries(n int64) MemoryStoreOpt {
	return func(m *MemoryStore) {
		m.maxEntries = n
	}
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore(opts ...MemoryStoreOpt) *MemoryStore {
	m := &MemoryStore{
		maxEntries: defaultMaxEntries,
		closeOnce:  &sync.Once{},
	}
	for _, opt := range opts {
		opt(m)
	}

	// the builder only fails on a non-positive size
	cache, err := theine.NewBuilder[string, []byte](m.maxEntries).Build()
	if err != nil {
		panic(err)
	}
	m.cache = cache
	return m
}

func (m *MemoryStore) Get(key string) ([]byte, bool) {
	return m.cache.Get(key)
}

func (m *MemoryStore) Set(key string, value []byte, ttl time.Duration) {
	if ttl > 0 {
		m.cache.SetWithTTL(key, value, 1, ttl)
		return
	}
	m.cache.Set(key, value, 1)
}

func (m *MemoryStore) Delete(key string) {
	m.cache.Delete(key)
}

func (m *MemoryStore) Close() {
	m.closeOnce.Do(func() {
		m.cache.Close()
	})
}
