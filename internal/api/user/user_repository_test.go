package user

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/easytrip-api/internal/types"
)

var userRowColumns = []string{"id", "email", "name", "is_admin", "created_at", "updated_at"}

func TestPostgresUserRepo_Upsert(t *testing.T) {
	pool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer pool.Close()

	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	pool.ExpectQuery(`INSERT INTO users`).
		WithArgs("uid-1", "asha@example.com", "Asha").
		WillReturnRows(pgxmock.NewRows(userRowColumns).AddRow("uid-1", "asha@example.com", "Asha", false, now, now))

	repo := NewPostgresUserRepo(pool, discardLogger())
	u, err := repo.Upsert(context.Background(), types.Identity{UserID: "uid-1", Email: "asha@example.com", Name: "Asha"})
	require.NoError(t, err)
	assert.Equal(t, "Asha", u.Name)
	assert.Equal(t, now, u.CreatedAt)
	assert.NoError(t, pool.ExpectationsWereMet())
}

func TestPostgresUserRepo_SetAdmin(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		pool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer pool.Close()

		now := time.Now()
		pool.ExpectQuery(`UPDATE users SET is_admin`).
			WithArgs("uid-2", true).
			WillReturnRows(pgxmock.NewRows(userRowColumns).AddRow("uid-2", "", "", true, now, now))

		u, err := NewPostgresUserRepo(pool, discardLogger()).SetAdmin(context.Background(), "uid-2", true)
		require.NoError(t, err)
		assert.True(t, u.IsAdmin)
		assert.NoError(t, pool.ExpectationsWereMet())
	})

	t.Run("unknown user", func(t *testing.T) {
		pool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer pool.Close()

		pool.ExpectQuery(`UPDATE users SET is_admin`).
			WithArgs("ghost", true).
			WillReturnError(pgx.ErrNoRows)

		_, err = NewPostgresUserRepo(pool, discardLogger()).SetAdmin(context.Background(), "ghost", true)
		assert.ErrorIs(t, err, types.ErrNotFound)
		assert.NoError(t, pool.ExpectationsWereMet())
	})
}

func TestPostgresUserRepo_ListAdmins(t *testing.T) {
	pool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer pool.Close()

	now := time.Now()
	pool.ExpectQuery(`FROM users WHERE is_admin`).
		WillReturnRows(pgxmock.NewRows(userRowColumns).
			AddRow("uid-1", "a@example.com", "A", true, now, now).
			AddRow("uid-2", "b@example.com", "B", true, now, now))

	admins, err := NewPostgresUserRepo(pool, discardLogger()).ListAdmins(context.Background())
	require.NoError(t, err)
	require.Len(t, admins, 2)
	assert.Equal(t, "uid-2", admins[1].ID)
	assert.NoError(t, pool.ExpectationsWereMet())
}

func TestPostgresUserRepo_GetUserByID(t *testing.T) {
	pool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer pool.Close()

	pool.ExpectQuery(`FROM users WHERE id`).WithArgs("nobody").WillReturnError(pgx.ErrNoRows)

	_, err = NewPostgresUserRepo(pool, discardLogger()).GetUserByID(context.Background(), "nobody")
	assert.ErrorIs(t, err, types.ErrNotFound)
}
