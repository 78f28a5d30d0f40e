package cache

import (
	"net/http"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakeStore is a plain map-backed Store for middleware tests.
type fakeStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: make(map[string][]byte)}
}

func (s *fakeStore) Get(key string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[key]
	return v, ok
}

func (s *fakeStore) Set(key string, value []byte, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
}

func (s *fakeStore) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
}

func (s *fakeStore) Close() {}

func testURL(t *testing.T) *url.URL {
	t.Helper()
	u, err := url.Parse("https://api.example.com/1/classes/Song?limit=10")
	require.NoError(t, err)
	return u
}

func entry(status int, body string) *Entry {
	return &Entry{StatusCode: status, Body: []byte(body)}
}

const largeBody = `{"results":[{"objectId":"abc","name":"Nina"}]}`

func TestStoreAndHit(t *testing.T) {
	m := NewMiddleware(newFakeStore(), time.Minute, nil)
	u := testURL(t)

	_, ok := m.Before(http.MethodGet, u, nil, "Song", time.Minute)
	require.False(t, ok)

	m.After(http.MethodGet, u, nil, "Song", entry(200, largeBody), time.Minute)

	got, ok := m.Before(http.MethodGet, u, nil, "Song", time.Minute)
	require.True(t, ok)
	require.Equal(t, []byte(largeBody), got.Body)
	require.Equal(t, 200, got.StatusCode)
}

func TestNeverStoresShortBodies(t *testing.T) {
	m := NewMiddleware(newFakeStore(), time.Minute, nil)
	u := testURL(t)

	m.After(http.MethodGet, u, nil, "Song", entry(200, `{"x":1}`), time.Minute)

	_, ok := m.Before(http.MethodGet, u, nil, "Song", time.Minute)
	require.False(t, ok)
}

func TestNeverStoresAbsenceStatuses(t *testing.T) {
	m := NewMiddleware(newFakeStore(), time.Minute, nil)
	u := testURL(t)

	for _, status := range []int{404, 410, 500, 403} {
		m.After(http.MethodGet, u, nil, "Song", entry(status, largeBody), time.Minute)
		_, ok := m.Before(http.MethodGet, u, nil, "Song", time.Minute)
		require.False(t, ok, "status %d", status)
	}
}

func TestNeverStoresMutatingMethods(t *testing.T) {
	m := NewMiddleware(newFakeStore(), time.Minute, nil)
	u := testURL(t)

	m.After(http.MethodPost, u, nil, "Song", entry(200, largeBody), time.Minute)
	_, ok := m.Before(http.MethodGet, u, nil, "Song", time.Minute)
	require.False(t, ok)
}

func TestMutationInvalidatesCollection(t *testing.T) {
	m := NewMiddleware(newFakeStore(), time.Minute, nil)
	u := testURL(t)

	m.After(http.MethodGet, u, nil, "Song", entry(200, largeBody), time.Minute)
	_, ok := m.Before(http.MethodGet, u, nil, "Song", time.Minute)
	require.True(t, ok)

	// a write against the same collection orphans the cached read
	_, ok = m.Before(http.MethodPost, u, []byte(`{"name":"B"}`), "Song", 0)
	require.False(t, ok)

	_, ok = m.Before(http.MethodGet, u, nil, "Song", time.Minute)
	require.False(t, ok)
}

func TestMutationLeavesOtherCollectionsAlone(t *testing.T) {
	m := NewMiddleware(newFakeStore(), time.Minute, nil)
	u := testURL(t)

	m.After(http.MethodGet, u, nil, "Song", entry(200, largeBody), time.Minute)

	_, _ = m.Before(http.MethodPost, u, nil, "Artist", 0)

	_, ok := m.Before(http.MethodGet, u, nil, "Song", time.Minute)
	require.True(t, ok)
}

func TestExpiredEntriesMiss(t *testing.T) {
	store := newFakeStore()
	m := NewMiddleware(store, time.Minute, nil)
	u := testURL(t)

	e := entry(200, largeBody)
	m.After(http.MethodGet, u, nil, "Song", e, time.Nanosecond)
	time.Sleep(2 * time.Millisecond)

	_, ok := m.Before(http.MethodGet, u, nil, "Song", time.Minute)
	require.False(t, ok)
}

func TestResolveTTL(t *testing.T) {
	m := NewMiddleware(newFakeStore(), time.Minute, nil)

	// explicit per-query TTL wins
	require.Equal(t, time.Hour, m.ResolveTTL(time.Hour, true, false))
	// global default otherwise
	require.Equal(t, time.Minute, m.ResolveTTL(0, false, false))
	// explicitly disabled
	require.Zero(t, m.ResolveTTL(time.Hour, true, true))

	// no store means no caching at all
	var nilMW *Middleware
	require.Zero(t, nilMW.ResolveTTL(time.Hour, true, false))
}

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore(WithMaxEntries(16))
	defer s.Close()

	s.Set("k", []byte("value"), time.Minute)
	v, ok := s.Get("k")
	require.True(t, ok)
	require.Equal(t, []byte("value"), v)

	s.Delete("k")
	_, ok = s.Get("k")
	require.False(t, ok)
}

func TestDoCollapsesConcurrentFetches(t *testing.T) {
	m := NewMiddleware(newFakeStore(), time.Minute, nil)

	var mu sync.Mutex
	calls := 0
	gate := make(chan struct{})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = m.Do("same-key", func() (any, error) {
				mu.Lock()
				calls++
				mu.Unlock()
				<-gate
				return "r", nil
			})
		}()
	}

	// let the goroutines pile up on the same key before releasing
	time.Sleep(20 * time.Millisecond)
	close(gate)
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, 1, calls)
}
