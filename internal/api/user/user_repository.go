package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	database "github.com/FACorreiaa/easytrip-api/app/db"
	"github.com/FACorreiaa/easytrip-api/app/observability/metrics"
	"github.com/FACorreiaa/easytrip-api/internal/types"
)

var _ UserRepo = (*PostgresUserRepo)(nil)

// UserRepo persists the local mirror of Firebase users.
type UserRepo interface {
	// Upsert creates the user or refreshes email and name. is_admin is never
	// touched here.
	Upsert(ctx context.Context, id types.Identity) (*types.User, error)
	GetUserByID(ctx context.Context, userID string) (*types.User, error)
	ListAdmins(ctx context.Context) ([]types.User, error)
	// SetAdmin returns types.ErrNotFound for unknown users.
	SetAdmin(ctx context.Context, userID string, isAdmin bool) (*types.User, error)
}

type PostgresUserRepo struct {
	logger *slog.Logger
	pgpool database.Pool
}

func NewPostgresUserRepo(pgpool database.Pool, logger *slog.Logger) *PostgresUserRepo {
	return &PostgresUserRepo{
		logger: logger,
		pgpool: pgpool,
	}
}

const userColumns = `id, COALESCE(email, ''), COALESCE(name, ''), is_admin, created_at, updated_at`

func scanUser(row pgx.Row) (*types.User, error) {
	var u types.User
	if err := row.Scan(&u.ID, &u.Email, &u.Name, &u.IsAdmin, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *PostgresUserRepo) Upsert(ctx context.Context, id types.Identity) (*types.User, error) {
	ctx, span := otel.Tracer("UserRepo").Start(ctx, "Upsert", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "users"),
		attribute.String("user.id", id.UserID),
	))
	defer span.End()
	start := time.Now()

	query := `
		INSERT INTO users (id, email, name)
		VALUES ($1, NULLIF($2, ''), NULLIF($3, ''))
		ON CONFLICT (id) DO UPDATE SET
			email = COALESCE(EXCLUDED.email, users.email),
			name = COALESCE(EXCLUDED.name, users.name),
			updated_at = now()
		RETURNING ` + userColumns

	u, err := scanUser(r.pgpool.QueryRow(ctx, query, id.UserID, id.Email, id.Name))
	metrics.Get().ObserveQuery(ctx, "users.upsert", start, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB upsert failed")
		return nil, fmt.Errorf("error upserting user %s: %w", id.UserID, err)
	}
	span.SetStatus(codes.Ok, "User upserted")
	return u, nil
}

func (r *PostgresUserRepo) GetUserByID(ctx context.Context, userID string) (*types.User, error) {
	ctx, span := otel.Tracer("UserRepo").Start(ctx, "GetUserByID", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("user.id", userID),
	))
	defer span.End()

	u, err := scanUser(r.pgpool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		span.SetStatus(codes.Error, "User not found")
		return nil, fmt.Errorf("user %s: %w", userID, types.ErrNotFound)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB query failed")
		return nil, fmt.Errorf("error fetching user %s: %w", userID, err)
	}
	return u, nil
}

func (r *PostgresUserRepo) ListAdmins(ctx context.Context) ([]types.User, error) {
	ctx, span := otel.Tracer("UserRepo").Start(ctx, "ListAdmins", trace.WithAttributes(semconv.DBSystemPostgreSQL))
	defer span.End()

	rows, err := r.pgpool.Query(ctx, `SELECT `+userColumns+` FROM users WHERE is_admin ORDER BY created_at, id`)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB query failed")
		return nil, fmt.Errorf("error listing admins: %w", err)
	}
	defer rows.Close()

	admins := []types.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("error scanning admin row: %w", err)
		}
		admins = append(admins, *u)
	}
	if err = rows.Err(); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("error iterating admin rows: %w", err)
	}
	span.SetAttributes(attribute.Int("admins.count", len(admins)))
	return admins, nil
}

func (r *PostgresUserRepo) SetAdmin(ctx context.Context, userID string, isAdmin bool) (*types.User, error) {
	ctx, span := otel.Tracer("UserRepo").Start(ctx, "SetAdmin", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("user.id", userID),
		attribute.Bool("user.is_admin", isAdmin),
	))
	defer span.End()

	query := `UPDATE users SET is_admin = $2, updated_at = now() WHERE id = $1 RETURNING ` + userColumns
	u, err := scanUser(r.pgpool.QueryRow(ctx, query, userID, isAdmin))
	if errors.Is(err, pgx.ErrNoRows) {
		span.SetStatus(codes.Error, "User not found")
		return nil, fmt.Errorf("user %s: %w", userID, types.ErrNotFound)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB update failed")
		return nil, fmt.Errorf("error updating admin flag for %s: %w", userID, err)
	}
	r.logger.InfoContext(ctx, "Admin flag updated", slog.String("userID", userID), slog.Bool("isAdmin", isAdmin))
	span.SetStatus(codes.Ok, "Admin flag updated")
	return u, nil
}
