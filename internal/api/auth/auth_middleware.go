package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/FACorreiaa/easytrip-api/internal/api"
	"github.com/FACorreiaa/easytrip-api/internal/types"
)

type contextKey string

const principalKey contextKey = "principal"

// Principal is the authenticated caller attached to the request context.
type Principal struct {
	Identity types.Identity
	User     types.User
	IsAdmin  bool
}

// WithPrincipal stores p in ctx.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFromContext returns the caller set by Authenticate.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey).(Principal)
	return p, ok
}

// UserMirror keeps the local users table in sync with the identity provider.
type UserMirror interface {
	Sync(ctx context.Context, id types.Identity) (types.User, error)
}

// AdminPolicy decides who may use the admin surface: the configured
// allow-lists, the users.is_admin flag, or everybody in stub mode.
type AdminPolicy struct {
	stub   bool
	emails map[string]struct{}
	uids   map[string]struct{}
}

func NewAdminPolicy(stub bool, emails, uids []string) AdminPolicy {
	p := AdminPolicy{
		stub:   stub,
		emails: make(map[string]struct{}, len(emails)),
		uids:   make(map[string]struct{}, len(uids)),
	}
	for _, e := range emails {
		if e = strings.ToLower(strings.TrimSpace(e)); e != "" {
			p.emails[e] = struct{}{}
		}
	}
	for _, u := range uids {
		if u = strings.TrimSpace(u); u != "" {
			p.uids[u] = struct{}{}
		}
	}
	return p
}

func (p AdminPolicy) IsAdmin(id types.Identity, user types.User) bool {
	if p.stub || user.IsAdmin {
		return true
	}
	if _, ok := p.uids[id.UserID]; ok {
		return true
	}
	// Anyone can sign up with an arbitrary unverified address.
	if id.Email == "" || !id.EmailVerified {
		return false
	}
	_, ok := p.emails[strings.ToLower(id.Email)]
	return ok
}

// Authenticate verifies the bearer token, mirrors the user and stores the
// Principal in the request context.
func Authenticate(logger *slog.Logger, verifier Verifier, mirror UserMirror, policy AdminPolicy) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			l := logger.With(slog.String("middleware", "Authenticate"))

			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				l.WarnContext(ctx, "Invalid Authorization header format")
				api.ErrorResponse(w, r, http.StatusUnauthorized, "Authorization header format must be Bearer {token}")
				return
			}

			identity, err := verifier.Verify(ctx, token)
			if err != nil {
				l.WarnContext(ctx, "Token verification failed", slog.Any("error", err))
				api.ErrorResponse(w, r, http.StatusUnauthorized, err.Error())
				return
			}

			user := types.User{ID: identity.UserID, Email: identity.Email, Name: identity.DisplayName()}
			if mirror != nil {
				synced, err := mirror.Sync(ctx, identity)
				if err != nil {
					l.WarnContext(ctx, "Failed to mirror user, continuing with token identity",
						slog.String("userID", identity.UserID), slog.Any("error", err))
				} else {
					user = synced
				}
			}

			principal := Principal{
				Identity: identity,
				User:     user,
				IsAdmin:  policy.IsAdmin(identity, user),
			}
			l.DebugContext(ctx, "Authentication successful", slog.String("userID", identity.UserID), slog.Bool("admin", principal.IsAdmin))
			next.ServeHTTP(w, r.WithContext(WithPrincipal(ctx, principal)))
		})
	}
}

// RequireAdmin rejects callers without the admin flag. It must run after
// Authenticate.
func RequireAdmin(logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := PrincipalFromContext(r.Context())
			if !ok {
				api.ErrorResponse(w, r, http.StatusUnauthorized, "authentication required")
				return
			}
			if !p.IsAdmin {
				logger.WarnContext(r.Context(), "Non-admin on admin route",
					slog.String("middleware", "RequireAdmin"),
					slog.String("userID", p.Identity.UserID),
					slog.String("path", r.URL.Path))
				api.ErrorResponse(w, r, http.StatusForbidden, "admin access required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// bearerToken returns "" with ok for a missing header; the verifier decides
// whether anonymous callers are allowed.
func bearerToken(header string) (string, bool) {
	if header == "" {
		return "", true
	}
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
