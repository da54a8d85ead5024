package review

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/easytrip-api/app/observability/metrics"
	"github.com/FACorreiaa/easytrip-api/internal/api/place"
	"github.com/FACorreiaa/easytrip-api/internal/types"
)

var _ Service = (*ServiceImpl)(nil)

type Service interface {
	Submit(ctx context.Context, placeID int64, author types.Identity, params types.CreateReviewParams) (*types.ReviewSubmission, error)
	List(ctx context.Context, placeID int64) ([]types.PlaceReview, error)
}

type ServiceImpl struct {
	logger      *slog.Logger
	repo        Repository
	invalidator place.Invalidator
}

func NewService(repo Repository, invalidator place.Invalidator, logger *slog.Logger) *ServiceImpl {
	if invalidator == nil {
		invalidator = place.NoopInvalidator{}
	}
	return &ServiceImpl{
		logger:      logger,
		repo:        repo,
		invalidator: invalidator,
	}
}

// Submit records a rating. The author name is captured now and not kept in
// sync afterwards.
func (s *ServiceImpl) Submit(ctx context.Context, placeID int64, author types.Identity, params types.CreateReviewParams) (*types.ReviewSubmission, error) {
	ctx, span := otel.Tracer("ReviewService").Start(ctx, "Submit", trace.WithAttributes(
		attribute.Int64("place.id", placeID),
		attribute.String("user.id", author.UserID),
	))
	defer span.End()
	l := s.logger.With(slog.String("method", "Submit"), slog.Int64("placeID", placeID))

	if author.UserID == "" {
		return nil, fmt.Errorf("%w: sign in to leave a review", types.ErrUnauthenticated)
	}
	if err := params.Validate(); err != nil {
		span.SetStatus(codes.Error, "Invalid review")
		return nil, err
	}

	stored, agg, err := s.repo.Submit(ctx, types.PlaceReview{
		PlaceID:  placeID,
		UserID:   author.UserID,
		UserName: author.DisplayName(),
		Rating:   params.Rating,
		Comment:  params.Comment,
	})
	if err != nil {
		l.WarnContext(ctx, "Failed to store review", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to store review")
		return nil, err
	}

	metrics.Get().ReviewSubmissionsTotal.Add(ctx, 1, metric.WithAttributes(attribute.Int("rating", params.Rating)))
	if err := s.invalidator.Invalidate(ctx); err != nil {
		l.WarnContext(ctx, "Failed to invalidate response cache", slog.Any("error", err))
	}
	l.InfoContext(ctx, "Review stored", slog.String("reviewID", stored.ID.String()), slog.Int("ratingCount", agg.RatingCount))
	span.SetStatus(codes.Ok, "Review stored")

	return &types.ReviewSubmission{
		Review:        *stored,
		Aggregate:     *agg,
		AverageRating: types.AverageRating(agg.RatingSum, agg.RatingCount),
	}, nil
}

func (s *ServiceImpl) List(ctx context.Context, placeID int64) ([]types.PlaceReview, error) {
	ctx, span := otel.Tracer("ReviewService").Start(ctx, "List", trace.WithAttributes(attribute.Int64("place.id", placeID)))
	defer span.End()

	reviews, err := s.repo.ListByPlace(ctx, placeID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to list reviews")
		return nil, err
	}
	return reviews, nil
}
