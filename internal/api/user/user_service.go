package user

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/easytrip-api/internal/api/auth"
	"github.com/FACorreiaa/easytrip-api/internal/types"
)

var (
	_ UserService     = (*UserServiceImpl)(nil)
	_ auth.UserMirror = (*UserServiceImpl)(nil)
)

// UserService covers the user mirror and admin management.
type UserService interface {
	Sync(ctx context.Context, id types.Identity) (types.User, error)
	GetUser(ctx context.Context, userID string) (*types.User, error)
	ListAdmins(ctx context.Context) ([]types.User, error)
	GrantAdmin(ctx context.Context, userID string) (*types.User, error)
	RevokeAdmin(ctx context.Context, actingUserID, userID string) (*types.User, error)
}

type UserServiceImpl struct {
	logger *slog.Logger
	repo   UserRepo
}

func NewUserService(repo UserRepo, logger *slog.Logger) *UserServiceImpl {
	return &UserServiceImpl{
		logger: logger,
		repo:   repo,
	}
}

// Sync mirrors the caller into the users table.
func (s *UserServiceImpl) Sync(ctx context.Context, id types.Identity) (types.User, error) {
	if id.UserID == "" {
		return types.User{}, fmt.Errorf("%w: identity has no user id", types.ErrValidation)
	}
	u, err := s.repo.Upsert(ctx, types.Identity{UserID: id.UserID, Email: id.Email, Name: id.DisplayName()})
	if err != nil {
		return types.User{}, err
	}
	return *u, nil
}

// GetUser reads the mirrored row of a user.
func (s *UserServiceImpl) GetUser(ctx context.Context, userID string) (*types.User, error) {
	l := s.logger.With(slog.String("method", "GetUser"), slog.String("userID", userID))
	u, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		l.WarnContext(ctx, "Failed to fetch user", slog.Any("error", err))
		return nil, fmt.Errorf("error fetching user: %w", err)
	}
	return u, nil
}

func (s *UserServiceImpl) ListAdmins(ctx context.Context) ([]types.User, error) {
	ctx, span := otel.Tracer("UserService").Start(ctx, "ListAdmins")
	defer span.End()

	admins, err := s.repo.ListAdmins(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to list admins", slog.String("method", "ListAdmins"), slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to list admins")
		return nil, fmt.Errorf("error listing admins: %w", err)
	}
	span.SetStatus(codes.Ok, "Admins listed")
	return admins, nil
}

// GrantAdmin flags a known user as admin. The user must have signed in at
// least once so that the mirror row exists.
func (s *UserServiceImpl) GrantAdmin(ctx context.Context, userID string) (*types.User, error) {
	ctx, span := otel.Tracer("UserService").Start(ctx, "GrantAdmin", trace.WithAttributes(attribute.String("user.id", userID)))
	defer span.End()

	userID = strings.TrimSpace(userID)
	if userID == "" {
		span.SetStatus(codes.Error, "Missing user id")
		return nil, fmt.Errorf("%w: user_id is required", types.ErrValidation)
	}
	u, err := s.repo.SetAdmin(ctx, userID, true)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to grant admin")
		return nil, fmt.Errorf("error granting admin: %w", err)
	}
	s.logger.InfoContext(ctx, "Admin granted", slog.String("method", "GrantAdmin"), slog.String("userID", userID))
	span.SetStatus(codes.Ok, "Admin granted")
	return u, nil
}

// RevokeAdmin clears the flag. Admins cannot revoke themselves.
func (s *UserServiceImpl) RevokeAdmin(ctx context.Context, actingUserID, userID string) (*types.User, error) {
	ctx, span := otel.Tracer("UserService").Start(ctx, "RevokeAdmin", trace.WithAttributes(attribute.String("user.id", userID)))
	defer span.End()

	if userID == actingUserID {
		span.SetStatus(codes.Error, "Self revoke")
		return nil, fmt.Errorf("%w: admins cannot revoke their own access", types.ErrConflict)
	}
	u, err := s.repo.SetAdmin(ctx, userID, false)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to revoke admin")
		return nil, fmt.Errorf("error revoking admin: %w", err)
	}
	s.logger.InfoContext(ctx, "Admin revoked", slog.String("method", "RevokeAdmin"), slog.String("userID", userID))
	span.SetStatus(codes.Ok, "Admin revoked")
	return u, nil
}
