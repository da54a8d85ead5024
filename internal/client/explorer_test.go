package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/easytrip-api/internal/catalog"
	"github.com/FACorreiaa/easytrip-api/internal/types"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func catalogFixture() []types.Place {
	day := func(d int) time.Time { return time.Date(2025, 1, d, 0, 0, 0, 0, time.UTC) }
	return []types.Place{
		{ID: 1, Name: "Varkala Cliff", Location: "Varkala", Themes: []string{"beach"}, Tags: []string{"sunset"}, RatingCount: 4, RatingSum: 18, CreatedAt: day(1)},
		{ID: 2, Name: "Munnar", Location: "Munnar", Themes: []string{"hill station"}, Tags: []string{"tea"}, RatingCount: 2, RatingSum: 6, CreatedAt: day(3)},
		{ID: 3, Name: "Hampi", Location: "Hampi", Themes: []string{"heritage"}, CreatedAt: day(2)},
	}
}

type fakeAPI struct {
	searchStatus atomic.Int32
	listCalls    atomic.Int32
	lastQuery    atomic.Value
}

func (f *fakeAPI) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/places", func(w http.ResponseWriter, r *http.Request) {
		f.listCalls.Add(1)
		assert.NoError(t, json.NewEncoder(w).Encode(catalogFixture()))
	})
	mux.HandleFunc("GET /api/v1/places/search", func(w http.ResponseWriter, r *http.Request) {
		f.lastQuery.Store(r.URL.RawQuery)
		if status := int(f.searchStatus.Load()); status != 0 {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"success":false,"error":"boom"}`))
			return
		}
		assert.NoError(t, json.NewEncoder(w).Encode(catalogFixture()[:2]))
	})
	return mux
}

func TestExplorer_Search(t *testing.T) {
	t.Run("server answers", func(t *testing.T) {
		api := &fakeAPI{}
		srv := httptest.NewServer(api.handler(t))
		defer srv.Close()

		e := NewExplorer(srv.URL, time.Second, discardLogger())
		got, fallback, err := e.Search(context.Background(), catalog.Criteria{Themes: []string{"beach", "hill station"}, MinRating: 3}, catalog.SortRating)
		require.NoError(t, err)
		assert.False(t, fallback)
		assert.Equal(t, []int64{1, 2}, []int64{got[0].ID, got[1].ID})
		assert.Equal(t, "minRating=3&sort=rating&themes=beach%2Chill+station", api.lastQuery.Load())
	})

	t.Run("5xx falls back to the last listing", func(t *testing.T) {
		api := &fakeAPI{}
		api.searchStatus.Store(http.StatusServiceUnavailable)
		srv := httptest.NewServer(api.handler(t))
		defer srv.Close()

		e := NewExplorer(srv.URL, time.Second, discardLogger())
		_, err := e.ListPlaces(context.Background())
		require.NoError(t, err)

		got, fallback, err := e.Search(context.Background(), catalog.Criteria{MinRating: 4}, catalog.SortNewest)
		require.NoError(t, err)
		assert.True(t, fallback)
		require.Len(t, got, 1)
		assert.Equal(t, int64(1), got[0].ID)
		assert.Equal(t, int32(1), api.listCalls.Load())
	})

	t.Run("4xx is returned as is", func(t *testing.T) {
		api := &fakeAPI{}
		api.searchStatus.Store(http.StatusBadRequest)
		srv := httptest.NewServer(api.handler(t))
		defer srv.Close()

		_, _, err := NewExplorer(srv.URL, time.Second, discardLogger()).Search(context.Background(), catalog.Criteria{}, catalog.SortNewest)
		var se *StatusError
		require.True(t, errors.As(err, &se))
		assert.Equal(t, http.StatusBadRequest, se.Status)
		assert.Equal(t, "boom", se.Message)
		assert.Zero(t, api.listCalls.Load())
	})

	t.Run("unreachable server without listing", func(t *testing.T) {
		e := NewExplorer("http://127.0.0.1:1", 200*time.Millisecond, discardLogger())
		_, fallback, err := e.Search(context.Background(), catalog.Criteria{}, catalog.SortNewest)
		assert.True(t, fallback)
		assert.ErrorIs(t, err, ErrUnavailable)
	})
}

func TestExplorer_LoadMore(t *testing.T) {
	api := &fakeAPI{}
	api.searchStatus.Store(http.StatusInternalServerError)
	srv := httptest.NewServer(api.handler(t))
	defer srv.Close()

	e := NewExplorer(srv.URL, time.Second, discardLogger())
	ctx := context.Background()
	all := catalog.Criteria{}

	res, err := e.Explore(ctx, all, catalog.SortName, 2)
	require.NoError(t, err)
	assert.Len(t, res.Visible, 2)
	assert.True(t, res.HasMore)

	res, err = e.LoadMore(ctx, all, catalog.SortName, 2)
	require.NoError(t, err)
	assert.Len(t, res.Visible, 3)
	assert.False(t, res.HasMore)

	res, err = e.Explore(ctx, catalog.Criteria{SearchTerm: "a"}, catalog.SortName, 2)
	require.NoError(t, err)
	assert.Len(t, res.Visible, 2)
	assert.Equal(t, 3, res.Total)
	assert.True(t, res.HasMore)
}
