package router

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appMiddleware "github.com/FACorreiaa/easytrip-api/app/middleware"
)

// named answers every route with the handler's name.
type named struct{}

func reply(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(name))
	}
}

func (named) ListPlaces(w http.ResponseWriter, r *http.Request)          { reply("ListPlaces")(w, r) }
func (named) GetPlace(w http.ResponseWriter, r *http.Request)            { reply("GetPlace")(w, r) }
func (named) SearchPlaces(w http.ResponseWriter, r *http.Request)        { reply("SearchPlaces")(w, r) }
func (named) ExplorePlaces(w http.ResponseWriter, r *http.Request)       { reply("ExplorePlaces")(w, r) }
func (named) RelatedPlaces(w http.ResponseWriter, r *http.Request)       { reply("RelatedPlaces")(w, r) }
func (named) Themes(w http.ResponseWriter, r *http.Request)              { reply("Themes")(w, r) }
func (named) CreatePlace(w http.ResponseWriter, r *http.Request)         { reply("CreatePlace")(w, r) }
func (named) UpdatePlace(w http.ResponseWriter, r *http.Request)         { reply("UpdatePlace")(w, r) }
func (named) DeletePlace(w http.ResponseWriter, r *http.Request)         { reply("DeletePlace")(w, r) }
func (named) ReplacePrimaryImage(w http.ResponseWriter, r *http.Request) { reply("ReplacePrimaryImage")(w, r) }
func (named) AddPlaceImage(w http.ResponseWriter, r *http.Request)       { reply("AddPlaceImage")(w, r) }
func (named) DeletePlaceImage(w http.ResponseWriter, r *http.Request)    { reply("DeletePlaceImage")(w, r) }
func (named) ListReviews(w http.ResponseWriter, r *http.Request)         { reply("ListReviews")(w, r) }
func (named) SubmitReview(w http.ResponseWriter, r *http.Request)        { reply("SubmitReview")(w, r) }
func (named) Me(w http.ResponseWriter, r *http.Request)                  { reply("Me")(w, r) }
func (named) ListAdmins(w http.ResponseWriter, r *http.Request)          { reply("ListAdmins")(w, r) }
func (named) GrantAdmin(w http.ResponseWriter, r *http.Request)          { reply("GrantAdmin")(w, r) }
func (named) RevokeAdmin(w http.ResponseWriter, r *http.Request)         { reply("RevokeAdmin")(w, r) }

func gate(header, want string, status int) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.Header.Get(header)
			if got == "" || (want != "" && got != want) {
				w.WriteHeader(status)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func testRouter(withCache bool) http.Handler {
	cfg := &Config{
		PlaceHandler:  named{},
		ReviewHandler: named{},
		UserHandler:   named{},
		Authenticate:  gate("Authorization", "", http.StatusUnauthorized),
		RequireAdmin:  gate("X-Role", "admin", http.StatusForbidden),
	}
	if withCache {
		cfg.Cache = func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("X-Cache", "MISS")
				next.ServeHTTP(w, r)
			})
		}
	}
	return SetupRouter(cfg)
}

func TestSetupRouter_Routes(t *testing.T) {
	h := testRouter(true)
	tests := []struct {
		method, path, user, role string
		wantStatus               int
		wantBody                 string
	}{
		{http.MethodGet, "/api/v1/places", "", "", http.StatusOK, "ListPlaces"},
		{http.MethodGet, "/api/v1/places/search", "", "", http.StatusOK, "SearchPlaces"},
		{http.MethodGet, "/api/v1/places/explore", "", "", http.StatusOK, "ExplorePlaces"},
		{http.MethodGet, "/api/v1/places/7", "", "", http.StatusOK, "GetPlace"},
		{http.MethodGet, "/api/v1/places/7/related", "", "", http.StatusOK, "RelatedPlaces"},
		{http.MethodGet, "/api/v1/places/7/reviews", "", "", http.StatusOK, "ListReviews"},
		{http.MethodGet, "/api/v1/themes", "", "", http.StatusOK, "Themes"},
		{http.MethodPost, "/api/v1/places/7/reviews", "", "", http.StatusUnauthorized, ""},
		{http.MethodPost, "/api/v1/places/7/reviews", "Bearer t", "", http.StatusOK, "SubmitReview"},
		{http.MethodGet, "/api/v1/me", "Bearer t", "", http.StatusOK, "Me"},
		{http.MethodPost, "/api/v1/admin/places", "", "", http.StatusUnauthorized, ""},
		{http.MethodPost, "/api/v1/admin/places", "Bearer t", "", http.StatusForbidden, ""},
		{http.MethodPost, "/api/v1/admin/places", "Bearer t", "admin", http.StatusOK, "CreatePlace"},
		{http.MethodPut, "/api/v1/admin/places/7", "Bearer t", "admin", http.StatusOK, "UpdatePlace"},
		{http.MethodDelete, "/api/v1/admin/places/7", "Bearer t", "admin", http.StatusOK, "DeletePlace"},
		{http.MethodPost, "/api/v1/admin/places/7/image", "Bearer t", "admin", http.StatusOK, "ReplacePrimaryImage"},
		{http.MethodPost, "/api/v1/admin/places/7/images", "Bearer t", "admin", http.StatusOK, "AddPlaceImage"},
		{http.MethodDelete, "/api/v1/admin/places/7/images/3", "Bearer t", "admin", http.StatusOK, "DeletePlaceImage"},
		{http.MethodGet, "/api/v1/admin/admins", "Bearer t", "admin", http.StatusOK, "ListAdmins"},
		{http.MethodPost, "/api/v1/admin/admins", "Bearer t", "admin", http.StatusOK, "GrantAdmin"},
		{http.MethodDelete, "/api/v1/admin/admins/u1", "Bearer t", "admin", http.StatusOK, "RevokeAdmin"},
	}
	for _, tc := range tests {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, tc.path, nil)
			if tc.user != "" {
				req.Header.Set("Authorization", tc.user)
			}
			if tc.role != "" {
				req.Header.Set("X-Role", tc.role)
			}
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)
			assert.Equal(t, tc.wantStatus, rr.Code)
			if tc.wantBody != "" {
				assert.Equal(t, tc.wantBody, rr.Body.String())
			}
		})
	}
}

func TestSetupRouter_CacheOnlyOnPublicReads(t *testing.T) {
	h := testRouter(true)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/places", nil))
	assert.Equal(t, "MISS", rr.Header().Get("X-Cache"))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
	req.Header.Set("Authorization", "Bearer t")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Empty(t, rr.Header().Get("X-Cache"))
}

func TestSetupRouter_Ops(t *testing.T) {
	h := testRouter(false)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/ping", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "pong", rr.Body.String())

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/swagger/doc.json", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "/places/search")
}

func TestSetupRouter_ReviewRateLimit(t *testing.T) {
	h := SetupRouter(&Config{
		PlaceHandler:     named{},
		ReviewHandler:    named{},
		UserHandler:      named{},
		Authenticate:     gate("Authorization", "", http.StatusUnauthorized),
		RequireAdmin:     gate("X-Role", "admin", http.StatusForbidden),
		ReviewsPerMinute: 2,
	})

	submit := func() int {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/places/7/reviews", nil)
		req.Header.Set("Authorization", "Bearer t")
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		return rr.Code
	}
	assert.Equal(t, http.StatusOK, submit())
	assert.Equal(t, http.StatusOK, submit())
	assert.Equal(t, http.StatusTooManyRequests, submit())

	// Reads are not limited.
	for range 3 {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/places/7/reviews", nil))
		assert.Equal(t, http.StatusOK, rr.Code)
	}
}

type mapStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

func (m *mapStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return nil, appMiddleware.ErrCacheMiss
	}
	return v, nil
}

func (m *mapStore) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *mapStore) DeletePrefix(_ context.Context, prefix string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k := range m.data {
		if strings.HasPrefix(k, prefix) {
			delete(m.data, k)
		}
	}
	return nil
}

func TestSetupRouter_CachedReadsAnswerEachOrigin(t *testing.T) {
	cache := appMiddleware.NewResponseCache(&mapStore{data: map[string][]byte{}}, "test:", time.Minute,
		slog.New(slog.NewTextHandler(io.Discard, nil)))
	h := SetupRouter(&Config{
		PlaceHandler:   named{},
		ReviewHandler:  named{},
		UserHandler:    named{},
		Authenticate:   gate("Authorization", "", http.StatusUnauthorized),
		RequireAdmin:   gate("X-Role", "admin", http.StatusForbidden),
		Cache:          cache.Middleware,
		AllowedOrigins: []string{"http://a.example", "http://b.example"},
	})

	for i, origin := range []string{"http://a.example", "http://a.example", "http://b.example"} {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/places", nil)
		req.Header.Set("Origin", origin)
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)

		require.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "ListPlaces", rr.Body.String())
		if i > 0 {
			assert.Equal(t, "HIT", rr.Header().Get("X-Cache"))
		}
		assert.Equal(t, []string{origin}, rr.Header().Values("Access-Control-Allow-Origin"), "request %d", i)
		assert.Equal(t, []string{"true"}, rr.Header().Values("Access-Control-Allow-Credentials"), "request %d", i)
		assert.Equal(t, []string{"Origin"}, rr.Header().Values("Vary"), "request %d", i)
	}
}
