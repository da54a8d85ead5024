package review

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

var _ Repository = (*RepositoryImpl)(nil)

type Repository interface {
	// Submit stores the review and bumps the place aggregate in one
	// transaction.
	Submit(ctx context.Context, review types.PlaceReview) (*types.PlaceReview, *types.RatingAggregate, error)
	// ListByPlace returns the reviews of a place, newest first. An unknown
	// place is types.ErrNotFound rather than an empty list.
	ListByPlace(ctx context.Context, placeID int64) ([]types.PlaceReview, error)
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

func (r *RepositoryImpl) Submit(ctx context.Context, review types.PlaceReview) (*types.PlaceReview, *types.RatingAggregate, error) {
	ctx, span := otel.Tracer("ReviewRepo").Start(ctx, "Submit", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "place_reviews"),
		attribute.Int64("place.id", review.PlaceID),
		attribute.Int("review.rating", review.Rating),
	))
	defer span.End()
	l := r.logger.With(slog.String("method", "Submit"), slog.Int64("placeID", review.PlaceID))
	start := time.Now()

	tx, err := r.pgpool.Begin(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to begin transaction")
		return nil, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				l.ErrorContext(ctx, "Failed to rollback review transaction", slog.Any("error", rbErr))
			}
		}
		metrics.Get().ObserveQuery(ctx, "reviews.submit", start, err)
	}()

	agg := types.RatingAggregate{PlaceID: review.PlaceID}
	err = tx.QueryRow(ctx, `
		UPDATE places
		SET rating_count = rating_count + 1,
		    rating_sum = rating_sum + $2,
		    updated_at = now()
		WHERE id = $1
		RETURNING rating_count, rating_sum`,
		review.PlaceID, review.Rating,
	).Scan(&agg.RatingCount, &agg.RatingSum)
	if errors.Is(err, pgx.ErrNoRows) {
		err = fmt.Errorf("place %d: %w", review.PlaceID, types.ErrNotFound)
		span.SetStatus(codes.Error, "Place not found")
		return nil, nil, err
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to update rating aggregate")
		err = fmt.Errorf("failed to update rating aggregate: %w", err)
		return nil, nil, err
	}

	stored := review
	err = tx.QueryRow(ctx, `
		INSERT INTO place_reviews (place_id, user_id, user_name, rating, comment)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''))
		RETURNING id, created_at`,
		review.PlaceID, review.UserID, review.UserName, review.Rating, review.Comment,
	).Scan(&stored.ID, &stored.CreatedAt)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to insert review")
		err = fmt.Errorf("failed to insert review: %w", err)
		return nil, nil, err
	}

	if err = tx.Commit(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to commit transaction")
		err = fmt.Errorf("failed to commit review transaction: %w", err)
		return nil, nil, err
	}

	span.SetAttributes(
		attribute.String("review.id", stored.ID.String()),
		attribute.Int("place.rating_count", agg.RatingCount),
	)
	span.SetStatus(codes.Ok, "Review stored")
	return &stored, &agg, nil
}

func (r *RepositoryImpl) ListByPlace(ctx context.Context, placeID int64) ([]types.PlaceReview, error) {
	ctx, span := otel.Tracer("ReviewRepo").Start(ctx, "ListByPlace", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.Int64("place.id", placeID),
	))
	defer span.End()
	start := time.Now()

	rows, err := r.pgpool.Query(ctx, `
		SELECT id, place_id, user_id, user_name, rating, COALESCE(comment, ''), created_at
		FROM place_reviews
		WHERE place_id = $1
		ORDER BY created_at DESC, id`, placeID)
	if err != nil {
		metrics.Get().ObserveQuery(ctx, "reviews.list", start, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB query failed")
		return nil, fmt.Errorf("error listing reviews of place %d: %w", placeID, err)
	}
	defer rows.Close()

	reviews := []types.PlaceReview{}
	for rows.Next() {
		var rv types.PlaceReview
		if err = rows.Scan(&rv.ID, &rv.PlaceID, &rv.UserID, &rv.UserName, &rv.Rating, &rv.Comment, &rv.CreatedAt); err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("failed to scan review row: %w", err)
		}
		reviews = append(reviews, rv)
	}
	if err = rows.Err(); err != nil {
		metrics.Get().ObserveQuery(ctx, "reviews.list", start, err)
		span.RecordError(err)
		return nil, fmt.Errorf("error iterating review rows: %w", err)
	}
	rows.Close()

	if len(reviews) == 0 {
		var exists bool
		err = r.pgpool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM places WHERE id = $1)`, placeID).Scan(&exists)
		if err == nil && !exists {
			metrics.Get().ObserveQuery(ctx, "reviews.list", start, nil)
			span.SetStatus(codes.Error, "Place not found")
			return nil, fmt.Errorf("place %d: %w", placeID, types.ErrNotFound)
		}
		if err != nil {
			metrics.Get().ObserveQuery(ctx, "reviews.list", start, err)
			span.RecordError(err)
			return nil, fmt.Errorf("error checking place %d: %w", placeID, err)
		}
	}
	metrics.Get().ObserveQuery(ctx, "reviews.list", start, nil)
	return reviews, nil
}
