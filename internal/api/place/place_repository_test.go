package place

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.openly.dev/pointy"

	"github.com/FACorreiaa/easytrip-api/internal/catalog"
	"github.com/FACorreiaa/easytrip-api/internal/types"
)

var placeRowColumns = []string{
	"id", "name", "description", "location", "district", "state", "locality", "pin_code",
	"latitude", "longitude", "themes", "tags", "custom_keys", "primary_image_url",
	"rating_count", "rating_sum", "created_by", "updated_by", "created_at", "updated_at",
}

var rowTime = time.Date(2025, 1, 15, 9, 30, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func addPlaceRow(rows *pgxmock.Rows, id int64, name string, count, sum int) *pgxmock.Rows {
	return rows.AddRow(
		id, name, "", "Varkala", "", "Kerala", "", "",
		(*float64)(nil), (*float64)(nil),
		[]string{"beach"}, []string{"sunset"},
		[]byte(`{"Best Time to Visit":"October to March","created_by":"uid-1"}`),
		(*string)(nil), count, sum, "", "", rowTime, rowTime,
	)
}

func newMockRepo(t *testing.T) (pgxmock.PgxPoolIface, *RepositoryImpl) {
	t.Helper()
	pool, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool, NewRepository(pool, discardLogger())
}

func TestRepository_Create(t *testing.T) {
	pool, repo := newMockRepo(t)

	params := types.CreatePlaceParams{
		Name:       "Varkala Cliff",
		Location:   "Varkala",
		State:      "Kerala",
		Latitude:   pointy.Float64(8.73),
		Themes:     []string{"beach"},
		CustomKeys: types.CustomKeys{{Key: types.BestTimeToVisitKey, Value: "October to March"}},
		CreatedBy:  "uid-1",
	}
	pool.ExpectQuery(`INSERT INTO places`).
		WithArgs("Varkala Cliff", "", "Varkala", "", "Kerala", "", "", params.Latitude, (*float64)(nil),
			[]string{"beach"}, []string{}, `{"Best Time to Visit":"October to March"}`, "uid-1").
		WillReturnRows(addPlaceRow(pgxmock.NewRows(placeRowColumns), 7, "Varkala Cliff", 0, 0))

	p, err := repo.Create(context.Background(), params)
	require.NoError(t, err)
	assert.Equal(t, int64(7), p.ID)
	v, ok := p.CustomKeys.Get(types.BestTimeToVisitKey)
	assert.True(t, ok)
	assert.Equal(t, "October to March", v)
	assert.NoError(t, pool.ExpectationsWereMet())
}

func TestRepository_GetByID(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		pool, repo := newMockRepo(t)
		pool.ExpectQuery(`FROM places WHERE id = \$1`).WithArgs(int64(1)).
			WillReturnRows(addPlaceRow(pgxmock.NewRows(placeRowColumns), 1, "Varkala Cliff", 2, 9))

		p, err := repo.GetByID(context.Background(), 1)
		require.NoError(t, err)
		assert.Equal(t, 2, p.RatingCount)
		assert.Equal(t, []string{"beach"}, p.Themes)
		assert.Nil(t, p.PrimaryImageURL)
		assert.NoError(t, pool.ExpectationsWereMet())
	})

	t.Run("missing", func(t *testing.T) {
		pool, repo := newMockRepo(t)
		pool.ExpectQuery(`FROM places WHERE id = \$1`).WithArgs(int64(404)).WillReturnError(pgx.ErrNoRows)

		_, err := repo.GetByID(context.Background(), 404)
		assert.ErrorIs(t, err, types.ErrNotFound)
	})
}

func TestRepository_GetAll(t *testing.T) {
	pool, repo := newMockRepo(t)
	rows := pgxmock.NewRows(placeRowColumns)
	addPlaceRow(rows, 2, "Munnar", 0, 0)
	addPlaceRow(rows, 1, "Varkala Cliff", 1, 5)
	pool.ExpectQuery(`ORDER BY created_at DESC, id`).WillReturnRows(rows)

	places, err := repo.GetAll(context.Background())
	require.NoError(t, err)
	require.Len(t, places, 2)
	assert.Equal(t, "Munnar", places[0].Name)
	assert.NoError(t, pool.ExpectationsWereMet())
}

func TestRepository_Update(t *testing.T) {
	t.Run("only supplied fields are set", func(t *testing.T) {
		pool, repo := newMockRepo(t)
		pool.ExpectQuery(`UPDATE places SET name = \$1, district = NULLIF\(\$2, ''\), updated_by = NULLIF\(\$3, ''\), updated_at = now\(\) WHERE id = \$4`).
			WithArgs("Varkala Beach", "", "uid-9", int64(1)).
			WillReturnRows(addPlaceRow(pgxmock.NewRows(placeRowColumns), 1, "Varkala Beach", 0, 0))

		p, err := repo.Update(context.Background(), 1, types.UpdatePlaceParams{
			Name:      pointy.String("Varkala Beach"),
			District:  pointy.String(""),
			UpdatedBy: "uid-9",
		})
		require.NoError(t, err)
		assert.Equal(t, "Varkala Beach", p.Name)
		assert.NoError(t, pool.ExpectationsWereMet())
	})

	t.Run("custom keys are cast to json", func(t *testing.T) {
		pool, repo := newMockRepo(t)
		keys := types.CustomKeys{{Key: "Entry Fee", Value: "Free"}}
		pool.ExpectQuery(`custom_keys = \$1::json`).
			WithArgs(`{"Entry Fee":"Free"}`, "", int64(3)).
			WillReturnError(pgx.ErrNoRows)

		_, err := repo.Update(context.Background(), 3, types.UpdatePlaceParams{CustomKeys: &keys})
		assert.ErrorIs(t, err, types.ErrNotFound)
		assert.NoError(t, pool.ExpectationsWereMet())
	})

	t.Run("nothing to update", func(t *testing.T) {
		_, repo := newMockRepo(t)
		_, err := repo.Update(context.Background(), 1, types.UpdatePlaceParams{UpdatedBy: "uid-9"})
		assert.ErrorIs(t, err, types.ErrValidation)
	})
}

func TestRepository_Delete(t *testing.T) {
	pool, repo := newMockRepo(t)
	pool.ExpectExec(`DELETE FROM places`).WithArgs(int64(1)).WillReturnResult(pgxmock.NewResult("DELETE", 1))
	pool.ExpectExec(`DELETE FROM places`).WithArgs(int64(2)).WillReturnResult(pgxmock.NewResult("DELETE", 0))

	require.NoError(t, repo.Delete(context.Background(), 1))
	assert.ErrorIs(t, repo.Delete(context.Background(), 2), types.ErrNotFound)
	assert.NoError(t, pool.ExpectationsWereMet())
}

func TestBuildSearchQuery(t *testing.T) {
	t.Run("no criteria lists everything", func(t *testing.T) {
		query, args := buildSearchQuery(catalog.Criteria{SearchTerm: "   "})
		assert.NotContains(t, query, "WHERE")
		assert.Empty(t, args)
	})

	t.Run("every field", func(t *testing.T) {
		query, args := buildSearchQuery(catalog.Criteria{
			SearchTerm: " Cliff ",
			Location:   "Varkala",
			State:      "KERALA",
			Themes:     []string{"Beach", "beach"},
			Tags:       []string{"Sunset"},
			MinRating:  4,
			Season:     "Winter",
		})

		assert.Contains(t, query, "strpos(lower(name), $1) > 0")
		assert.Contains(t, query, "lower(btrim(COALESCE(location, ''))) = $2")
		assert.Contains(t, query, "lower(btrim(COALESCE(state, ''))) = $3")
		assert.Contains(t, query, "ANY($4::text[])")
		assert.Contains(t, query, "ANY($5::text[])")
		assert.Contains(t, query, "ROUND(rating_sum::numeric / rating_count, 1)::float8 >= $6")
		assert.Contains(t, query, "custom_keys->>$7 IS NULL")
		assert.Contains(t, query, "unnest($8::text[])")
		assert.Equal(t, 1, strings.Count(query, "WHERE (strpos"))
		assert.Equal(t, []any{
			"cliff", "varkala", "kerala",
			[]string{"beach"}, []string{"sunset"},
			4.0,
			types.BestTimeToVisitKey,
			[]string{"october", "november", "december", "january"},
		}, args)
	})

	t.Run("unknown season is ignored", func(t *testing.T) {
		query, args := buildSearchQuery(catalog.Criteria{Season: "autumn"})
		assert.NotContains(t, query, "custom_keys->>")
		assert.NotContains(t, query, "WHERE")
		assert.Empty(t, args)
	})
}

func TestRepository_Search(t *testing.T) {
	pool, repo := newMockRepo(t)
	pool.ExpectQuery(`FROM places WHERE`).
		WithArgs([]string{"beach"}).
		WillReturnRows(addPlaceRow(pgxmock.NewRows(placeRowColumns), 1, "Varkala Cliff", 0, 0))

	places, err := repo.Search(context.Background(), catalog.Criteria{Themes: []string{"Beach"}})
	require.NoError(t, err)
	assert.Len(t, places, 1)
	assert.NoError(t, pool.ExpectationsWereMet())
}

func TestRepository_Images(t *testing.T) {
	imageCols := []string{"id", "place_id", "image_url", "caption", "display_order", "created_at"}

	t.Run("add appends at the end", func(t *testing.T) {
		pool, repo := newMockRepo(t)
		pool.ExpectQuery(`INSERT INTO place_images`).
			WithArgs(int64(1), "https://img/1.jpg", "Sunset").
			WillReturnRows(pgxmock.NewRows(imageCols).AddRow(int64(5), int64(1), "https://img/1.jpg", "Sunset", 2, rowTime))

		img, err := repo.AddImage(context.Background(), 1, "https://img/1.jpg", "Sunset")
		require.NoError(t, err)
		assert.Equal(t, 2, img.DisplayOrder)
		assert.NoError(t, pool.ExpectationsWereMet())
	})

	t.Run("add to a deleted place", func(t *testing.T) {
		pool, repo := newMockRepo(t)
		pool.ExpectQuery(`INSERT INTO place_images`).
			WithArgs(int64(9), "https://img/1.jpg", "").
			WillReturnError(&pgconn.PgError{Code: pgForeignKeyViolation})

		_, err := repo.AddImage(context.Background(), 9, "https://img/1.jpg", "")
		assert.ErrorIs(t, err, types.ErrNotFound)
	})

	t.Run("list", func(t *testing.T) {
		pool, repo := newMockRepo(t)
		pool.ExpectQuery(`FROM place_images WHERE place_id`).WithArgs(int64(1)).
			WillReturnRows(pgxmock.NewRows(imageCols).
				AddRow(int64(5), int64(1), "https://img/1.jpg", "", 0, rowTime).
				AddRow(int64(6), int64(1), "https://img/2.jpg", "", 1, rowTime))

		images, err := repo.ListImages(context.Background(), 1)
		require.NoError(t, err)
		assert.Len(t, images, 2)
	})

	t.Run("delete unknown", func(t *testing.T) {
		pool, repo := newMockRepo(t)
		pool.ExpectExec(`DELETE FROM place_images`).WithArgs(int64(6), int64(1)).
			WillReturnResult(pgxmock.NewResult("DELETE", 0))
		assert.ErrorIs(t, repo.DeleteImage(context.Background(), 1, 6), types.ErrNotFound)
	})

	t.Run("set primary", func(t *testing.T) {
		pool, repo := newMockRepo(t)
		pool.ExpectExec(`UPDATE places SET primary_image_url`).WithArgs(int64(1), "https://img/p.jpg").
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		assert.NoError(t, repo.SetPrimaryImage(context.Background(), 1, "https://img/p.jpg"))
	})
}

func TestRepository_Related(t *testing.T) {
	pool, repo := newMockRepo(t)
	rows := pgxmock.NewRows(placeRowColumns)
	addPlaceRow(rows, 3, "Kovalam", 2, 10)
	pool.ExpectQuery(`themes && \(SELECT themes FROM places WHERE id = \$1\)`).
		WithArgs(int64(1), RelatedLimit).
		WillReturnRows(rows)

	related, err := repo.Related(context.Background(), 1, RelatedLimit)
	require.NoError(t, err)
	require.Len(t, related, 1)
	assert.Equal(t, int64(3), related[0].ID)
	assert.NoError(t, pool.ExpectationsWereMet())
}
