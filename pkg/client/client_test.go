package client

import (
	"context"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/skyhookdb/skyhook-go/pkg/cache"
	"github.com/skyhookdb/skyhook-go/pkg/object"
	"github.com/skyhookdb/skyhook-go/pkg/query"
)

const songResults = `{"results":[{"objectId":"s1","name":"Nina","createdAt":"2026-01-01T00:00:00.000Z"}]}`

func TestFindCompilesQueryParams(t *testing.T) {
	var gotWhere, gotOrder, gotLimit string
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/1/classes/Song", r.URL.Path)
		gotWhere = r.URL.Query().Get("where")
		gotOrder = r.URL.Query().Get("order")
		gotLimit = r.URL.Query().Get("limit")
		w.Write([]byte(songResults))
	}))

	q := c.Query("Song").Where(query.F("name").Eq("Nina")).Order("-createdAt").Limit(5)
	records, err := c.Find(context.Background(), q)
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, "s1", records[0].ID())

	require.JSONEq(t, `{"name":"Nina"}`, gotWhere)
	require.Equal(t, "-createdAt", gotOrder)
	require.Equal(t, "5", gotLimit)
}

func TestLimitSentinels(t *testing.T) {
	var gotLimit []string
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		limit, present := r.URL.Query()["limit"]
		if present {
			gotLimit = append(gotLimit, limit[0])
		} else {
			gotLimit = append(gotLimit, "<absent>")
		}
		w.Write([]byte(songResults))
	}), WithLimitCap(11000))

	_, err := c.Find(context.Background(), c.Query("Song").Limit(query.MaxLimit))
	require.NoError(t, err)
	_, err = c.Find(context.Background(), c.Query("Song").Limit(query.Unlimited))
	require.NoError(t, err)

	require.Equal(t, []string{"11000", "<absent>"}, gotLimit)
}

func TestRequestHeaders(t *testing.T) {
	var got http.Header
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		w.Write([]byte(songResults))
	}), WithMasterKey("master"))

	q := c.Query("Song").UseMasterKey()
	require.NoError(t, q.UseSession("r:tok"))
	_, err := c.Find(context.Background(), q)
	require.NoError(t, err)

	require.Equal(t, "app", got.Get(HeaderAppID))
	require.Equal(t, "master", got.Get(HeaderMasterKey))
	require.Empty(t, got.Get(HeaderAPIKey))
	require.Equal(t, "r:tok", got.Get(HeaderSessionToken))
	require.NotEmpty(t, got.Get(HeaderRequestID))
}

func TestCachedFindSkipsSecondRoundTrip(t *testing.T) {
	var hits atomic.Int32
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte(songResults))
	}), WithCache(cache.NewMemoryStore(), time.Minute))

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		records, err := c.Find(ctx, c.Query("Song"))
		require.NoError(t, err)
		require.Len(t, records, 1)
	}
	require.Equal(t, int32(1), hits.Load())
}

func TestMutationInvalidatesCachedFind(t *testing.T) {
	var gets atomic.Int32
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			gets.Add(1)
			w.Write([]byte(songResults))
		case http.MethodPut:
			w.Write([]byte(`{"updatedAt":"2026-01-02T00:00:00.000Z"}`))
		}
	}), WithCache(cache.NewMemoryStore(), time.Minute))

	ctx := context.Background()

	_, err := c.Find(ctx, c.Query("Song"))
	require.NoError(t, err)
	_, err = c.Find(ctx, c.Query("Song"))
	require.NoError(t, err)
	require.Equal(t, int32(1), gets.Load())

	// a write against the collection forces the next read back to the server
	rec := object.Decode("Song", map[string]any{"objectId": "s1", "name": "A"}, nil)
	rec.Set("name", "B")
	require.NoError(t, c.Update(ctx, rec))

	_, err = c.Find(ctx, c.Query("Song"))
	require.NoError(t, err)
	require.Equal(t, int32(3), gets.Load())
}

func TestPerQueryCacheControls(t *testing.T) {
	var hits atomic.Int32
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte(songResults))
	}), WithCache(cache.NewMemoryStore(), time.Minute))

	ctx := context.Background()

	// NoCache bypasses the store entirely
	_, err := c.Find(ctx, c.Query("Song").NoCache())
	require.NoError(t, err)
	_, err = c.Find(ctx, c.Query("Song").NoCache())
	require.NoError(t, err)
	require.Equal(t, int32(2), hits.Load())
}

func TestCreateAppliesServerIdentity(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/1/classes/Song", r.URL.Path)
		w.Write([]byte(`{"objectId":"new1","createdAt":"2026-08-23T00:00:00.000Z"}`))
	}))

	rec := c.NewRecord("Song")
	rec.Set("name", "A")
	require.NoError(t, c.Create(context.Background(), rec))
	require.Equal(t, "new1", rec.ID())
	require.False(t, rec.IsNew())
	require.False(t, rec.Dirty())
}

func TestCountQuery(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "1", r.URL.Query().Get("count"))
		require.Equal(t, "0", r.URL.Query().Get("limit"))
		w.Write([]byte(`{"results":[],"count":42}`))
	}))

	n, err := c.CountQuery(context.Background(), c.Query("Song"))
	require.NoError(t, err)
	require.Equal(t, 42, n)
}

func TestEachRejectsReservedCursorFilters(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"results":[]}`))
	}))

	q := c.Query("Song").Where(query.F("created_at").After("2020"))
	err := c.Each(context.Background(), q, func(r *object.Record) error { return nil })
	require.ErrorIs(t, err, query.ErrInvalidArgument)
}
