package user

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/easytrip-api/internal/api"
	"github.com/FACorreiaa/easytrip-api/internal/api/auth"
	"github.com/FACorreiaa/easytrip-api/internal/types"
)

var _ Handler = (*HandlerImpl)(nil)

type Handler interface {
	Me(w http.ResponseWriter, r *http.Request)
	ListAdmins(w http.ResponseWriter, r *http.Request)
	GrantAdmin(w http.ResponseWriter, r *http.Request)
	RevokeAdmin(w http.ResponseWriter, r *http.Request)
}

type HandlerImpl struct {
	userService UserService
	logger      *slog.Logger
}

func NewHandlerImpl(userService UserService, logger *slog.Logger) *HandlerImpl {
	if logger == nil {
		panic("PANIC: Attempting to create HandlerImpl with nil logger!")
	}
	return &HandlerImpl{
		userService: userService,
		logger:      logger,
	}
}

// Me godoc
// @Summary      Current user
// @Description  Returns the authenticated caller with the effective admin flag.
// @Tags         User
// @Produce      json
// @Success      200 {object} types.User
// @Failure      401 {object} api.ErrorBody "Unauthorized"
// @Security     BearerAuth
// @Router       /me [get]
func (h *HandlerImpl) Me(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("UserHandler").Start(r.Context(), "Me", trace.WithAttributes(
		semconv.HTTPRequestMethodKey.String(r.Method),
		semconv.HTTPRouteKey.String("/api/v1/me"),
	))
	defer span.End()

	p, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		api.ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}
	me := p.User
	// A zero CreatedAt means the mirror failed during authentication and
	// the principal only carries token claims.
	if me.CreatedAt.IsZero() {
		if stored, err := h.userService.GetUser(ctx, p.Identity.UserID); err == nil {
			me = *stored
		}
	}
	me.IsAdmin = p.IsAdmin
	api.WriteJSONResponse(w, r, http.StatusOK, me)
}

// ListAdmins godoc
// @Summary      List admins
// @Tags         Admin
// @Produce      json
// @Success      200 {array} types.User
// @Failure      403 {object} api.ErrorBody "Forbidden"
// @Failure      500 {object} api.ErrorBody "Internal Server Error"
// @Security     BearerAuth
// @Router       /admin/admins [get]
func (h *HandlerImpl) ListAdmins(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("UserHandler").Start(r.Context(), "ListAdmins", trace.WithAttributes(
		semconv.HTTPRequestMethodKey.String(r.Method),
		semconv.HTTPRouteKey.String("/api/v1/admin/admins"),
	))
	defer span.End()
	l := h.logger.With(slog.String("handler", "ListAdmins"))

	admins, err := h.userService.ListAdmins(ctx)
	if err != nil {
		api.DomainErrorResponse(w, r, l, err, "Failed to list admins")
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, admins)
}

// GrantAdmin godoc
// @Summary      Grant admin
// @Description  Flags a user who has signed in at least once as admin.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        body body types.GrantAdminRequest true "User to promote"
// @Success      200 {object} types.User
// @Failure      400 {object} api.ErrorBody "Invalid input"
// @Failure      404 {object} api.ErrorBody "User not found"
// @Security     BearerAuth
// @Router       /admin/admins [post]
func (h *HandlerImpl) GrantAdmin(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("UserHandler").Start(r.Context(), "GrantAdmin", trace.WithAttributes(
		semconv.HTTPRequestMethodKey.String(r.Method),
		semconv.HTTPRouteKey.String("/api/v1/admin/admins"),
	))
	defer span.End()
	l := h.logger.With(slog.String("handler", "GrantAdmin"))

	var req types.GrantAdminRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	u, err := h.userService.GrantAdmin(ctx, req.UserID)
	if err != nil {
		api.DomainErrorResponse(w, r, l, err, "Failed to grant admin")
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, u)
}

// RevokeAdmin godoc
// @Summary      Revoke admin
// @Tags         Admin
// @Produce      json
// @Param        userID path string true "User ID"
// @Success      200 {object} types.User
// @Failure      404 {object} api.ErrorBody "User not found"
// @Failure      409 {object} api.ErrorBody "Self revoke"
// @Security     BearerAuth
// @Router       /admin/admins/{userID} [delete]
func (h *HandlerImpl) RevokeAdmin(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("UserHandler").Start(r.Context(), "RevokeAdmin", trace.WithAttributes(
		semconv.HTTPRequestMethodKey.String(r.Method),
		semconv.HTTPRouteKey.String("/api/v1/admin/admins/{userID}"),
	))
	defer span.End()
	l := h.logger.With(slog.String("handler", "RevokeAdmin"))

	p, _ := auth.PrincipalFromContext(ctx)
	u, err := h.userService.RevokeAdmin(ctx, p.Identity.UserID, chi.URLParam(r, "userID"))
	if err != nil {
		api.DomainErrorResponse(w, r, l, err, "Failed to revoke admin")
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, u)
}
