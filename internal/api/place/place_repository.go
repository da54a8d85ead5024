package place

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	database "github.com/FACorreiaa/easytrip-api/app/db"
	"github.com/FACorreiaa/easytrip-api/app/observability/metrics"
	"github.com/FACorreiaa/easytrip-api/internal/catalog"
	"github.com/FACorreiaa/easytrip-api/internal/types"
)

var _ Repository = (*RepositoryImpl)(nil)

// Repository is the place store.
type Repository interface {
	Create(ctx context.Context, params types.CreatePlaceParams) (*types.Place, error)
	GetByID(ctx context.Context, id int64) (*types.Place, error)
	// GetAll returns every place, newest first.
	GetAll(ctx context.Context) ([]types.Place, error)
	Update(ctx context.Context, id int64, params types.UpdatePlaceParams) (*types.Place, error)
	Delete(ctx context.Context, id int64) error
	// Search evaluates the catalog predicate in SQL.
	Search(ctx context.Context, c catalog.Criteria) ([]types.Place, error)

	SetPrimaryImage(ctx context.Context, id int64, imageURL string) error
	AddImage(ctx context.Context, placeID int64, imageURL, caption string) (*types.PlaceImage, error)
	ListImages(ctx context.Context, placeID int64) ([]types.PlaceImage, error)
	DeleteImage(ctx context.Context, placeID, imageID int64) error

	// Related returns places sharing a theme with id, best rated first.
	Related(ctx context.Context, id int64, limit int) ([]types.Place, error)
}

type RepositoryImpl struct {
	logger *slog.Logger
	pgpool database.Pool
}

func NewRepository(pgpool database.Pool, logger *slog.Logger) *RepositoryImpl {
	return &RepositoryImpl{
		logger: logger,
		pgpool: pgpool,
	}
}

const placeColumns = `id, name, COALESCE(description, ''), location, COALESCE(district, ''),
	COALESCE(state, ''), COALESCE(locality, ''), COALESCE(pin_code, ''), latitude, longitude,
	themes, tags, custom_keys, primary_image_url, rating_count, rating_sum,
	COALESCE(created_by, ''), COALESCE(updated_by, ''), created_at, updated_at`

const imageColumns = `id, place_id, image_url, COALESCE(caption, ''), display_order, created_at`

// pgForeignKeyViolation is the SQLSTATE of a missing referenced row.
const pgForeignKeyViolation = "23503"

func scanPlace(row pgx.Row) (*types.Place, error) {
	var (
		p          types.Place
		customKeys []byte
	)
	err := row.Scan(
		&p.ID, &p.Name, &p.Description, &p.Location, &p.District,
		&p.State, &p.Locality, &p.PinCode, &p.Latitude, &p.Longitude,
		&p.Themes, &p.Tags, &customKeys, &p.PrimaryImageURL, &p.RatingCount, &p.RatingSum,
		&p.CreatedBy, &p.UpdatedBy, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(customKeys) > 0 {
		if err := json.Unmarshal(customKeys, &p.CustomKeys); err != nil {
			return nil, fmt.Errorf("decoding custom_keys of place %d: %w", p.ID, err)
		}
	}
	if p.Themes == nil {
		p.Themes = []string{}
	}
	if p.Tags == nil {
		p.Tags = []string{}
	}
	return &p, nil
}

func collectPlaces(rows pgx.Rows) ([]types.Place, error) {
	defer rows.Close()
	places := []types.Place{}
	for rows.Next() {
		p, err := scanPlace(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan place row: %w", err)
		}
		places = append(places, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating place rows: %w", err)
	}
	return places, nil
}

func encodeCustomKeys(keys types.CustomKeys) (string, error) {
	if keys == nil {
		return "{}", nil
	}
	b, err := json.Marshal(keys)
	if err != nil {
		return "", fmt.Errorf("encoding custom_keys: %w", err)
	}
	return string(b), nil
}

func nonNil(labels []string) []string {
	if labels == nil {
		return []string{}
	}
	return labels
}

func (r *RepositoryImpl) Create(ctx context.Context, params types.CreatePlaceParams) (*types.Place, error) {
	ctx, span := otel.Tracer("PlaceRepo").Start(ctx, "Create", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "INSERT"),
		attribute.String("db.sql.table", "places"),
		attribute.String("place.name", params.Name),
	))
	defer span.End()
	start := time.Now()

	customKeys, err := encodeCustomKeys(params.CustomKeys)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	// custom_keys is a json column, not jsonb: jsonb would reorder the keys.
	query := `
		INSERT INTO places (
			name, description, location, district, state, locality, pin_code,
			latitude, longitude, themes, tags, custom_keys, created_by, updated_by
		) VALUES (
			$1, NULLIF($2, ''), $3, NULLIF($4, ''), NULLIF($5, ''), NULLIF($6, ''), NULLIF($7, ''),
			$8, $9, $10, $11, $12::json, NULLIF($13, ''), NULLIF($13, '')
		)
		RETURNING ` + placeColumns

	p, err := scanPlace(r.pgpool.QueryRow(ctx, query,
		params.Name, params.Description, params.Location, params.District, params.State,
		params.Locality, params.PinCode, params.Latitude, params.Longitude,
		nonNil(params.Themes), nonNil(params.Tags), customKeys, params.CreatedBy,
	))
	metrics.Get().ObserveQuery(ctx, "places.create", start, err)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to insert place", slog.String("method", "Create"), slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB insert failed")
		return nil, fmt.Errorf("error inserting place: %w", err)
	}
	span.SetAttributes(attribute.Int64("place.id", p.ID))
	span.SetStatus(codes.Ok, "Place created")
	return p, nil
}

func (r *RepositoryImpl) GetByID(ctx context.Context, id int64) (*types.Place, error) {
	ctx, span := otel.Tracer("PlaceRepo").Start(ctx, "GetByID", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.Int64("place.id", id),
	))
	defer span.End()
	start := time.Now()

	p, err := scanPlace(r.pgpool.QueryRow(ctx, `SELECT `+placeColumns+` FROM places WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		metrics.Get().ObserveQuery(ctx, "places.get", start, nil)
		span.SetStatus(codes.Error, "Place not found")
		return nil, fmt.Errorf("place %d: %w", id, types.ErrNotFound)
	}
	metrics.Get().ObserveQuery(ctx, "places.get", start, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB query failed")
		return nil, fmt.Errorf("error fetching place %d: %w", id, err)
	}
	return p, nil
}

func (r *RepositoryImpl) GetAll(ctx context.Context) ([]types.Place, error) {
	ctx, span := otel.Tracer("PlaceRepo").Start(ctx, "GetAll", trace.WithAttributes(semconv.DBSystemPostgreSQL))
	defer span.End()
	start := time.Now()

	rows, err := r.pgpool.Query(ctx, `SELECT `+placeColumns+` FROM places ORDER BY created_at DESC, id`)
	if err != nil {
		metrics.Get().ObserveQuery(ctx, "places.list", start, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB query failed")
		return nil, fmt.Errorf("error listing places: %w", err)
	}
	places, err := collectPlaces(rows)
	metrics.Get().ObserveQuery(ctx, "places.list", start, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB scan failed")
		return nil, err
	}
	span.SetAttributes(attribute.Int("places.count", len(places)))
	return places, nil
}

func (r *RepositoryImpl) Update(ctx context.Context, id int64, params types.UpdatePlaceParams) (*types.Place, error) {
	ctx, span := otel.Tracer("PlaceRepo").Start(ctx, "Update", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "UPDATE"),
		attribute.String("db.sql.table", "places"),
		attribute.Int64("place.id", id),
	))
	defer span.End()

	setClauses := []string{}
	args := []any{}
	// wrap is a format with a single %s for the placeholder.
	set := func(column string, value any, wrap string) {
		args = append(args, value)
		setClauses = append(setClauses, column+" = "+fmt.Sprintf(wrap, fmt.Sprintf("$%d", len(args))))
	}
	optional := func(column string, value *string) {
		if value != nil {
			set(column, *value, "NULLIF(%s, '')")
		}
	}

	if params.Name != nil {
		set("name", *params.Name, "%s")
	}
	if params.Location != nil {
		set("location", *params.Location, "%s")
	}
	optional("description", params.Description)
	optional("district", params.District)
	optional("state", params.State)
	optional("locality", params.Locality)
	optional("pin_code", params.PinCode)
	if params.Latitude != nil {
		set("latitude", *params.Latitude, "%s")
	}
	if params.Longitude != nil {
		set("longitude", *params.Longitude, "%s")
	}
	if params.Themes != nil {
		set("themes", nonNil(*params.Themes), "%s")
	}
	if params.Tags != nil {
		set("tags", nonNil(*params.Tags), "%s")
	}
	if params.CustomKeys != nil {
		encoded, err := encodeCustomKeys(*params.CustomKeys)
		if err != nil {
			span.RecordError(err)
			return nil, err
		}
		set("custom_keys", encoded, "%s::json")
	}

	if len(setClauses) == 0 {
		span.AddEvent("No fields provided for update.")
		return nil, fmt.Errorf("%w: no fields to update for place %d", types.ErrValidation, id)
	}

	set("updated_by", params.UpdatedBy, "NULLIF(%s, '')")
	setClauses = append(setClauses, "updated_at = now()")
	args = append(args, id)

	query := fmt.Sprintf(`UPDATE places SET %s WHERE id = $%d RETURNING %s`,
		strings.Join(setClauses, ", "), len(args), placeColumns)

	r.logger.DebugContext(ctx, "Executing place update", slog.String("method", "Update"), slog.Int("args_count", len(args)))

	start := time.Now()
	p, err := scanPlace(r.pgpool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		metrics.Get().ObserveQuery(ctx, "places.update", start, nil)
		span.SetStatus(codes.Error, "Place not found")
		return nil, fmt.Errorf("place %d: %w", id, types.ErrNotFound)
	}
	metrics.Get().ObserveQuery(ctx, "places.update", start, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB update failed")
		return nil, fmt.Errorf("error updating place %d: %w", id, err)
	}
	span.SetStatus(codes.Ok, "Place updated")
	return p, nil
}

func (r *RepositoryImpl) Delete(ctx context.Context, id int64) error {
	ctx, span := otel.Tracer("PlaceRepo").Start(ctx, "Delete", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "DELETE"),
		attribute.Int64("place.id", id),
	))
	defer span.End()
	start := time.Now()

	tag, err := r.pgpool.Exec(ctx, `DELETE FROM places WHERE id = $1`, id)
	metrics.Get().ObserveQuery(ctx, "places.delete", start, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB delete failed")
		return fmt.Errorf("error deleting place %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		span.SetStatus(codes.Error, "Place not found")
		return fmt.Errorf("place %d: %w", id, types.ErrNotFound)
	}
	span.SetStatus(codes.Ok, "Place deleted")
	return nil
}

// buildSearchQuery renders the catalog predicate as a WHERE clause. Each
// branch mirrors the in-process matcher in internal/catalog.
func buildSearchQuery(c catalog.Criteria) (string, []any) {
	n := c.Normalize()
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if n.SearchTerm != "" {
		p := arg(n.SearchTerm)
		where = append(where, fmt.Sprintf(
			"(strpos(lower(name), %s) > 0 OR strpos(lower(COALESCE(description, '')), %s) > 0)", p, p))
	}
	for _, facet := range []struct{ column, value string }{
		{"location", n.Location},
		{"district", n.District},
		{"state", n.State},
	} {
		if facet.value != "" {
			where = append(where, fmt.Sprintf("lower(btrim(COALESCE(%s, ''))) = %s", facet.column, arg(facet.value)))
		}
	}
	if len(n.Themes) > 0 {
		where = append(where, fmt.Sprintf(
			"EXISTS (SELECT 1 FROM unnest(themes) t WHERE lower(btrim(t)) = ANY(%s::text[]))", arg(n.Themes)))
	}
	if len(n.Tags) > 0 {
		where = append(where, fmt.Sprintf(
			"EXISTS (SELECT 1 FROM unnest(tags) t WHERE lower(btrim(t)) = ANY(%s::text[]))", arg(n.Tags)))
	}
	if n.MinRating > 0 {
		where = append(where, fmt.Sprintf(
			"(rating_count > 0 AND ROUND(rating_sum::numeric / rating_count, 1)::float8 >= %s)", arg(n.MinRating)))
	}
	if months, ok := catalog.SeasonMonths(n.Season); ok {
		key := arg(types.BestTimeToVisitKey)
		where = append(where, fmt.Sprintf(
			"(custom_keys->>%s IS NULL OR EXISTS (SELECT 1 FROM unnest(%s::text[]) m WHERE strpos(lower(custom_keys->>%s), m) > 0))",
			key, arg(months), key))
	}

	query := `SELECT ` + placeColumns + ` FROM places`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at DESC, id`
	return query, args
}

func (r *RepositoryImpl) Search(ctx context.Context, c catalog.Criteria) ([]types.Place, error) {
	ctx, span := otel.Tracer("PlaceRepo").Start(ctx, "Search", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("search.term", c.SearchTerm),
		attribute.StringSlice("search.themes", c.Themes),
		attribute.Float64("search.min_rating", c.MinRating),
		attribute.String("search.season", c.Season),
	))
	defer span.End()
	l := r.logger.With(slog.String("method", "Search"))
	start := time.Now()

	query, args := buildSearchQuery(c)
	l.DebugContext(ctx, "Executing place search query", slog.String("query", query), slog.Any("args", args))

	rows, err := r.pgpool.Query(ctx, query, args...)
	if err != nil {
		metrics.Get().ObserveQuery(ctx, "places.search", start, err)
		l.ErrorContext(ctx, "Failed to query places", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Database query failed")
		return nil, fmt.Errorf("failed to search places: %w", err)
	}
	places, err := collectPlaces(rows)
	metrics.Get().ObserveQuery(ctx, "places.search", start, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Database scan failed")
		return nil, err
	}
	span.SetAttributes(attribute.Int("places.count", len(places)))
	span.SetStatus(codes.Ok, "Search completed")
	return places, nil
}

func (r *RepositoryImpl) SetPrimaryImage(ctx context.Context, id int64, imageURL string) error {
	ctx, span := otel.Tracer("PlaceRepo").Start(ctx, "SetPrimaryImage", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.Int64("place.id", id),
	))
	defer span.End()

	tag, err := r.pgpool.Exec(ctx,
		`UPDATE places SET primary_image_url = $2, updated_at = now() WHERE id = $1`, id, imageURL)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB update failed")
		return fmt.Errorf("error setting primary image of place %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("place %d: %w", id, types.ErrNotFound)
	}
	return nil
}

func (r *RepositoryImpl) AddImage(ctx context.Context, placeID int64, imageURL, caption string) (*types.PlaceImage, error) {
	ctx, span := otel.Tracer("PlaceRepo").Start(ctx, "AddImage", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "place_images"),
		attribute.Int64("place.id", placeID),
	))
	defer span.End()

	query := `
		INSERT INTO place_images (place_id, image_url, caption, display_order)
		SELECT $1, $2, NULLIF($3, ''), COALESCE(MAX(display_order) + 1, 0)
		FROM place_images WHERE place_id = $1
		RETURNING ` + imageColumns

	var img types.PlaceImage
	err := r.pgpool.QueryRow(ctx, query, placeID, imageURL, caption).Scan(
		&img.ID, &img.PlaceID, &img.ImageURL, &img.Caption, &img.DisplayOrder, &img.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation {
			return nil, fmt.Errorf("place %d: %w", placeID, types.ErrNotFound)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB insert failed")
		return nil, fmt.Errorf("error adding image to place %d: %w", placeID, err)
	}
	return &img, nil
}

func (r *RepositoryImpl) ListImages(ctx context.Context, placeID int64) ([]types.PlaceImage, error) {
	ctx, span := otel.Tracer("PlaceRepo").Start(ctx, "ListImages", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.Int64("place.id", placeID),
	))
	defer span.End()

	rows, err := r.pgpool.Query(ctx,
		`SELECT `+imageColumns+` FROM place_images WHERE place_id = $1 ORDER BY display_order, id`, placeID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB query failed")
		return nil, fmt.Errorf("error listing images of place %d: %w", placeID, err)
	}
	defer rows.Close()

	images := []types.PlaceImage{}
	for rows.Next() {
		var img types.PlaceImage
		if err := rows.Scan(&img.ID, &img.PlaceID, &img.ImageURL, &img.Caption, &img.DisplayOrder, &img.CreatedAt); err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("failed to scan image row: %w", err)
		}
		images = append(images, img)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("error iterating image rows: %w", err)
	}
	return images, nil
}

func (r *RepositoryImpl) DeleteImage(ctx context.Context, placeID, imageID int64) error {
	ctx, span := otel.Tracer("PlaceRepo").Start(ctx, "DeleteImage", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.Int64("place.id", placeID),
		attribute.Int64("image.id", imageID),
	))
	defer span.End()

	tag, err := r.pgpool.Exec(ctx, `DELETE FROM place_images WHERE id = $1 AND place_id = $2`, imageID, placeID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB delete failed")
		return fmt.Errorf("error deleting image %d: %w", imageID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("image %d of place %d: %w", imageID, placeID, types.ErrNotFound)
	}
	return nil
}

func (r *RepositoryImpl) Related(ctx context.Context, id int64, limit int) ([]types.Place, error) {
	ctx, span := otel.Tracer("PlaceRepo").Start(ctx, "Related", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.Int64("place.id", id),
		attribute.Int("limit", limit),
	))
	defer span.End()

	// Ranked on the one-decimal average the API reports, so two places shown
	// as 4.5 tie and fall through to rating_count. Unrated places rank as 0.
	query := `
		SELECT ` + placeColumns + `
		FROM places
		WHERE id <> $1
		  AND themes && (SELECT themes FROM places WHERE id = $1)
		ORDER BY
			CASE WHEN rating_count > 0 THEN ROUND(rating_sum::numeric / rating_count, 1) ELSE 0 END DESC,
			rating_count DESC,
			id
		LIMIT $2`

	rows, err := r.pgpool.Query(ctx, query, id, limit)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB query failed")
		return nil, fmt.Errorf("error fetching places related to %d: %w", id, err)
	}
	places, err := collectPlaces(rows)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return places, nil
}
