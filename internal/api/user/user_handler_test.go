package user

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/easytrip-api/internal/api/auth"
	"github.com/FACorreiaa/easytrip-api/internal/types"
)

type MockUserService struct {
	mock.Mock
}

func (m *MockUserService) Sync(ctx context.Context, id types.Identity) (types.User, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(types.User), args.Error(1)
}

func (m *MockUserService) GetUser(ctx context.Context, userID string) (*types.User, error) {
	args := m.Called(ctx, userID)
	u, _ := args.Get(0).(*types.User)
	return u, args.Error(1)
}

func (m *MockUserService) ListAdmins(ctx context.Context) ([]types.User, error) {
	args := m.Called(ctx)
	users, _ := args.Get(0).([]types.User)
	return users, args.Error(1)
}

func (m *MockUserService) GrantAdmin(ctx context.Context, userID string) (*types.User, error) {
	args := m.Called(ctx, userID)
	u, _ := args.Get(0).(*types.User)
	return u, args.Error(1)
}

func (m *MockUserService) RevokeAdmin(ctx context.Context, actingUserID, userID string) (*types.User, error) {
	args := m.Called(ctx, actingUserID, userID)
	u, _ := args.Get(0).(*types.User)
	return u, args.Error(1)
}

func withPrincipal(r *http.Request, uid string, admin bool) *http.Request {
	p := auth.Principal{
		Identity: types.Identity{UserID: uid},
		User:     types.User{ID: uid, Name: "Asha", CreatedAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)},
		IsAdmin:  admin,
	}
	return r.WithContext(auth.WithPrincipal(r.Context(), p))
}

func TestHandler_Me(t *testing.T) {
	h := NewHandlerImpl(new(MockUserService), discardLogger())

	t.Run("anonymous", func(t *testing.T) {
		rr := httptest.NewRecorder()
		h.Me(rr, httptest.NewRequest(http.MethodGet, "/api/v1/me", nil))
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("effective admin flag", func(t *testing.T) {
		rr := httptest.NewRecorder()
		h.Me(rr, withPrincipal(httptest.NewRequest(http.MethodGet, "/api/v1/me", nil), "uid-1", true))
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), `"is_admin":true`)
	})

	unmirrored := func() *http.Request {
		p := auth.Principal{
			Identity: types.Identity{UserID: "uid-2", Email: "ravi@example.com"},
			User:     types.User{ID: "uid-2", Email: "ravi@example.com", Name: "ravi"},
		}
		return httptest.NewRequest(http.MethodGet, "/api/v1/me", nil).WithContext(auth.WithPrincipal(context.Background(), p))
	}

	t.Run("unmirrored principal reads the stored user", func(t *testing.T) {
		svc := new(MockUserService)
		created := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
		svc.On("GetUser", mock.Anything, "uid-2").
			Return(&types.User{ID: "uid-2", Name: "Ravi Kumar", IsAdmin: true, CreatedAt: created}, nil).Once()

		rr := httptest.NewRecorder()
		NewHandlerImpl(svc, discardLogger()).Me(rr, unmirrored())
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), `"name":"Ravi Kumar"`)
		assert.Contains(t, rr.Body.String(), `"created_at":"2024-06-01T00:00:00Z"`)
		assert.Contains(t, rr.Body.String(), `"is_admin":false`, "the principal's flag wins")
		svc.AssertExpectations(t)
	})

	t.Run("store unavailable falls back to the token", func(t *testing.T) {
		svc := new(MockUserService)
		svc.On("GetUser", mock.Anything, "uid-2").Return(nil, errors.New("db down")).Once()

		rr := httptest.NewRecorder()
		NewHandlerImpl(svc, discardLogger()).Me(rr, unmirrored())
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), `"name":"ravi"`)
		svc.AssertExpectations(t)
	})
}

func TestHandler_GrantAdmin(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		svc := new(MockUserService)
		svc.On("GrantAdmin", mock.Anything, "uid-2").Return(&types.User{ID: "uid-2", IsAdmin: true}, nil).Once()
		h := NewHandlerImpl(svc, discardLogger())

		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/admins", bytes.NewBufferString(`{"user_id":"uid-2"}`))
		req.Header.Set("Content-Type", "application/json")
		h.GrantAdmin(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		svc.AssertExpectations(t)
	})

	t.Run("malformed body", func(t *testing.T) {
		h := NewHandlerImpl(new(MockUserService), discardLogger())
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/admins", bytes.NewBufferString(`{`))
		req.Header.Set("Content-Type", "application/json")
		h.GrantAdmin(rr, req)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("unknown user", func(t *testing.T) {
		svc := new(MockUserService)
		svc.On("GrantAdmin", mock.Anything, "ghost").Return(nil, types.ErrNotFound).Once()
		h := NewHandlerImpl(svc, discardLogger())

		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/admins", bytes.NewBufferString(`{"user_id":"ghost"}`))
		req.Header.Set("Content-Type", "application/json")
		h.GrantAdmin(rr, req)
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})
}

func TestHandler_RevokeAdmin(t *testing.T) {
	svc := new(MockUserService)
	svc.On("RevokeAdmin", mock.Anything, "uid-1", "uid-1").Return(nil, types.ErrConflict).Once()
	h := NewHandlerImpl(svc, discardLogger())

	r := chi.NewRouter()
	r.Delete("/admin/admins/{userID}", h.RevokeAdmin)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, withPrincipal(httptest.NewRequest(http.MethodDelete, "/admin/admins/uid-1", nil), "uid-1", true))
	assert.Equal(t, http.StatusConflict, rr.Code)
	svc.AssertExpectations(t)
}
