package user

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/easytrip-api/internal/types"
)

type MockUserRepo struct {
	mock.Mock
}

func (m *MockUserRepo) Upsert(ctx context.Context, id types.Identity) (*types.User, error) {
	args := m.Called(ctx, id)
	u, _ := args.Get(0).(*types.User)
	return u, args.Error(1)
}

func (m *MockUserRepo) GetUserByID(ctx context.Context, userID string) (*types.User, error) {
	args := m.Called(ctx, userID)
	u, _ := args.Get(0).(*types.User)
	return u, args.Error(1)
}

func (m *MockUserRepo) ListAdmins(ctx context.Context) ([]types.User, error) {
	args := m.Called(ctx)
	users, _ := args.Get(0).([]types.User)
	return users, args.Error(1)
}

func (m *MockUserRepo) SetAdmin(ctx context.Context, userID string, isAdmin bool) (*types.User, error) {
	args := m.Called(ctx, userID, isAdmin)
	u, _ := args.Get(0).(*types.User)
	return u, args.Error(1)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setupUserServiceTest() (*UserServiceImpl, *MockUserRepo) {
	repo := new(MockUserRepo)
	return NewUserService(repo, discardLogger()), repo
}

func TestUserService_Sync(t *testing.T) {
	ctx := context.Background()

	t.Run("stores the display name", func(t *testing.T) {
		svc, repo := setupUserServiceTest()
		repo.On("Upsert", mock.Anything, types.Identity{UserID: "uid-1", Email: "meera@example.com", Name: "meera"}).
			Return(&types.User{ID: "uid-1", Email: "meera@example.com", Name: "meera"}, nil).Once()

		u, err := svc.Sync(ctx, types.Identity{UserID: "uid-1", Email: "meera@example.com"})
		require.NoError(t, err)
		assert.Equal(t, "meera", u.Name)
		repo.AssertExpectations(t)
	})

	t.Run("missing uid", func(t *testing.T) {
		svc, repo := setupUserServiceTest()
		_, err := svc.Sync(ctx, types.Identity{Email: "x@example.com"})
		assert.ErrorIs(t, err, types.ErrValidation)
		repo.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything)
	})

	t.Run("repository error", func(t *testing.T) {
		svc, repo := setupUserServiceTest()
		repo.On("Upsert", mock.Anything, mock.Anything).Return(nil, errors.New("db down")).Once()
		_, err := svc.Sync(ctx, types.Identity{UserID: "uid-1"})
		assert.EqualError(t, err, "db down")
	})
}

func TestUserService_GetUser(t *testing.T) {
	svc, repo := setupUserServiceTest()
	repo.On("GetUserByID", mock.Anything, "uid-1").Return(&types.User{ID: "uid-1", Name: "Asha"}, nil).Once()
	repo.On("GetUserByID", mock.Anything, "ghost").Return(nil, types.ErrNotFound).Once()

	u, err := svc.GetUser(context.Background(), "uid-1")
	require.NoError(t, err)
	assert.Equal(t, "Asha", u.Name)

	_, err = svc.GetUser(context.Background(), "ghost")
	assert.ErrorIs(t, err, types.ErrNotFound)
	repo.AssertExpectations(t)
}

func TestUserService_GrantAdmin(t *testing.T) {
	ctx := context.Background()

	t.Run("promotes a known user", func(t *testing.T) {
		svc, repo := setupUserServiceTest()
		repo.On("SetAdmin", mock.Anything, "uid-2", true).Return(&types.User{ID: "uid-2", IsAdmin: true}, nil).Once()

		u, err := svc.GrantAdmin(ctx, " uid-2 ")
		require.NoError(t, err)
		assert.True(t, u.IsAdmin)
		repo.AssertExpectations(t)
	})

	t.Run("blank id", func(t *testing.T) {
		svc, _ := setupUserServiceTest()
		_, err := svc.GrantAdmin(ctx, "  ")
		assert.ErrorIs(t, err, types.ErrValidation)
	})

	t.Run("unknown user", func(t *testing.T) {
		svc, repo := setupUserServiceTest()
		repo.On("SetAdmin", mock.Anything, "ghost", true).Return(nil, types.ErrNotFound).Once()
		_, err := svc.GrantAdmin(ctx, "ghost")
		assert.ErrorIs(t, err, types.ErrNotFound)
	})
}

func TestUserService_RevokeAdmin(t *testing.T) {
	ctx := context.Background()

	t.Run("self revoke is refused", func(t *testing.T) {
		svc, repo := setupUserServiceTest()
		_, err := svc.RevokeAdmin(ctx, "uid-1", "uid-1")
		assert.ErrorIs(t, err, types.ErrConflict)
		repo.AssertNotCalled(t, "SetAdmin", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("revokes another admin", func(t *testing.T) {
		svc, repo := setupUserServiceTest()
		repo.On("SetAdmin", mock.Anything, "uid-2", false).Return(&types.User{ID: "uid-2"}, nil).Once()
		u, err := svc.RevokeAdmin(ctx, "uid-1", "uid-2")
		require.NoError(t, err)
		assert.False(t, u.IsAdmin)
		repo.AssertExpectations(t)
	})
}

func TestUserService_ListAdmins(t *testing.T) {
	ctx := context.Background()
	svc, repo := setupUserServiceTest()
	repo.On("ListAdmins", mock.Anything).Return([]types.User{{ID: "uid-1", IsAdmin: true}}, nil).Once()

	admins, err := svc.ListAdmins(ctx)
	require.NoError(t, err)
	assert.Len(t, admins, 1)

	repo.On("ListAdmins", mock.Anything).Return(nil, errors.New("boom")).Once()
	_, err = svc.ListAdmins(ctx)
	assert.ErrorContains(t, err, "error listing admins")
}
