package review

import (
	"log/slog"
	"net/http"

	"go.opentelemetry.io/otel"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/easytrip-api/internal/api"
	"github.com/FACorreiaa/easytrip-api/internal/api/auth"
	"github.com/FACorreiaa/easytrip-api/internal/types"
)

type Handler interface {
	ListReviews(w http.ResponseWriter, r *http.Request)
	SubmitReview(w http.ResponseWriter, r *http.Request)
}

var _ Handler = (*HandlerImpl)(nil)

type HandlerImpl struct {
	reviewService Service
	logger        *slog.Logger
}

func NewHandlerImpl(reviewService Service, logger *slog.Logger) *HandlerImpl {
	return &HandlerImpl{
		reviewService: reviewService,
		logger:        logger,
	}
}

// ListReviews godoc
// @Summary      List reviews
// @Description  Reviews of a place, newest first.
// @Tags         Reviews
// @Produce      json
// @Param        id path int true "Place ID"
// @Success      200 {array} types.PlaceReview
// @Failure      400 {object} api.ErrorBody "Invalid ID"
// @Failure      404 {object} api.ErrorBody "Place not found"
// @Router       /places/{id}/reviews [get]
func (h *HandlerImpl) ListReviews(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("ReviewHandler").Start(r.Context(), "ListReviews", trace.WithAttributes(
		semconv.HTTPRequestMethodKey.String(r.Method),
		semconv.HTTPRouteKey.String("/api/v1/places/{id}/reviews"),
	))
	defer span.End()
	l := h.logger.With(slog.String("HandlerImpl", "ListReviews"))

	id, err := api.PathID(r, "id")
	if err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	reviews, err := h.reviewService.List(ctx, id)
	if err != nil {
		api.DomainErrorResponse(w, r, l, err, "Failed to list reviews")
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, reviews)
}

// SubmitReview godoc
// @Summary      Submit review
// @Description  Rates a place from 1 to 5 and returns the new aggregate.
// @Tags         Reviews
// @Accept       json
// @Produce      json
// @Param        id path int true "Place ID"
// @Param        body body types.CreateReviewParams true "Review"
// @Success      201 {object} types.ReviewSubmission
// @Failure      400 {object} api.ErrorBody "Invalid input"
// @Failure      401 {object} api.ErrorBody "Unauthorized"
// @Failure      404 {object} api.ErrorBody "Place not found"
// @Security     BearerAuth
// @Router       /places/{id}/reviews [post]
func (h *HandlerImpl) SubmitReview(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("ReviewHandler").Start(r.Context(), "SubmitReview", trace.WithAttributes(
		semconv.HTTPRequestMethodKey.String(r.Method),
		semconv.HTTPRouteKey.String("/api/v1/places/{id}/reviews"),
	))
	defer span.End()
	l := h.logger.With(slog.String("HandlerImpl", "SubmitReview"))

	principal, ok := auth.PrincipalFromContext(ctx)
	if !ok {
		api.ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}
	id, err := api.PathID(r, "id")
	if err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	var params types.CreateReviewParams
	if err = api.DecodeJSONBody(w, r, &params); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	submission, err := h.reviewService.Submit(ctx, id, principal.Identity, params)
	if err != nil {
		api.DomainErrorResponse(w, r, l, err, "Failed to submit review")
		return
	}
	api.WriteJSONResponse(w, r, http.StatusCreated, submission)
}
