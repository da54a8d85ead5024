package auth

import (
	"context"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/patrickmn/go-cache"

	"github.com/FACorreiaa/easytrip-api/config"
	"github.com/FACorreiaa/easytrip-api/internal/api"
	"github.com/FACorreiaa/easytrip-api/internal/types"
)

const (
	// GoogleCertsURL publishes the x509 certificates signing Firebase ID tokens.
	GoogleCertsURL = "https://www.googleapis.com/robot/v1/metadata/x509/securetoken@system.gserviceaccount.com"
	firebaseIssuer = "https://securetoken.google.com/"
	certsCacheKey  = "google-certs"
)

// Verifier turns a bearer token into the caller's identity.
type Verifier interface {
	Verify(ctx context.Context, token string) (types.Identity, error)
}

type firebaseClaims struct {
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	jwt.RegisteredClaims
}

// FirebaseVerifier checks Firebase ID tokens: RS256 signed by one of
// Google's rotating certificates, issued for the configured project.
type FirebaseVerifier struct {
	projectID  string
	certsURL   string
	certsTTL   time.Duration
	httpClient *http.Client
	keys       *cache.Cache
	logger     *slog.Logger
}

var _ Verifier = (*FirebaseVerifier)(nil)

func NewFirebaseVerifier(cfg config.AuthConfig, logger *slog.Logger) *FirebaseVerifier {
	certsURL := cfg.CertsURL
	if certsURL == "" {
		certsURL = GoogleCertsURL
	}
	ttl := cfg.CertsTTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &FirebaseVerifier{
		projectID:  cfg.FirebaseProjectID,
		certsURL:   certsURL,
		certsTTL:   ttl,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		keys:       cache.New(ttl, 2*ttl),
		logger:     logger,
	}
}

func (v *FirebaseVerifier) Verify(ctx context.Context, token string) (types.Identity, error) {
	if token == "" {
		return types.Identity{}, fmt.Errorf("%w: missing token", types.ErrUnauthenticated)
	}

	claims := &firebaseClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, errors.New("token has no kid header")
		}
		return v.publicKey(ctx, kid)
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithIssuer(firebaseIssuer+v.projectID),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
	)
	if err != nil {
		return types.Identity{}, fmt.Errorf("%w: %s", types.ErrUnauthenticated, tokenErrorMessage(err))
	}
	if !api.VerifyAudience(claims.Audience, v.projectID) {
		return types.Identity{}, fmt.Errorf("%w: invalid token audience", types.ErrUnauthenticated)
	}
	if claims.Subject == "" {
		return types.Identity{}, fmt.Errorf("%w: token has no subject", types.ErrUnauthenticated)
	}

	return types.Identity{
		UserID:        claims.Subject,
		Email:         claims.Email,
		EmailVerified: claims.EmailVerified,
		Name:          claims.Name,
	}, nil
}

func tokenErrorMessage(err error) string {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return "token has expired"
	case errors.Is(err, jwt.ErrTokenMalformed):
		return "malformed token"
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return "invalid token signature"
	case errors.Is(err, jwt.ErrTokenInvalidIssuer):
		return "invalid token issuer"
	default:
		return "invalid token"
	}
}

// publicKey looks kid up in the cached certificate set and refreshes the set
// once when the kid is unknown.
func (v *FirebaseVerifier) publicKey(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	if cached, ok := v.keys.Get(certsCacheKey); ok {
		if key, ok := cached.(map[string]*rsa.PublicKey)[kid]; ok {
			return key, nil
		}
	}
	keys, ttl, err := v.fetchKeys(ctx)
	if err != nil {
		v.logger.ErrorContext(ctx, "Failed to fetch Google signing certificates", slog.Any("error", err))
		return nil, err
	}
	v.keys.Set(certsCacheKey, keys, ttl)

	key, ok := keys[kid]
	if !ok {
		return nil, fmt.Errorf("unknown signing key %q", kid)
	}
	return key, nil
}

func (v *FirebaseVerifier) fetchKeys(ctx context.Context) (map[string]*rsa.PublicKey, time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.certsURL, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("build certs request: %w", err)
	}
	resp, err := v.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("fetch certs: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, 0, fmt.Errorf("fetch certs: unexpected status %d", resp.StatusCode)
	}

	var pems map[string]string
	if err = json.NewDecoder(resp.Body).Decode(&pems); err != nil {
		return nil, 0, fmt.Errorf("decode certs: %w", err)
	}

	keys := make(map[string]*rsa.PublicKey, len(pems))
	for kid, raw := range pems {
		block, _ := pem.Decode([]byte(raw))
		if block == nil {
			return nil, 0, fmt.Errorf("cert %q is not PEM encoded", kid)
		}
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, 0, fmt.Errorf("parse cert %q: %w", kid, err)
		}
		key, ok := cert.PublicKey.(*rsa.PublicKey)
		if !ok {
			return nil, 0, fmt.Errorf("cert %q does not hold an RSA key", kid)
		}
		keys[kid] = key
	}
	return keys, maxAge(resp.Header.Get("Cache-Control"), v.certsTTL), nil
}

// maxAge reads max-age from a Cache-Control header.
func maxAge(header string, fallback time.Duration) time.Duration {
	for _, directive := range strings.Split(header, ",") {
		name, value, ok := strings.Cut(strings.TrimSpace(directive), "=")
		if !ok || !strings.EqualFold(name, "max-age") {
			continue
		}
		if secs, err := strconv.Atoi(value); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return fallback
}

// StubIdentity is the caller assumed by the stub verifier when the request
// carries no usable token.
var StubIdentity = types.Identity{
	UserID:        "local-dev",
	Email:         "dev@easytrip.local",
	EmailVerified: true,
	Name:          "Local Developer",
}

// StubVerifier accepts every request. It reads the claims of a JWT-shaped
// token without checking the signature, and otherwise returns StubIdentity.
type StubVerifier struct{}

var _ Verifier = StubVerifier{}

func (StubVerifier) Verify(_ context.Context, token string) (types.Identity, error) {
	if token == "" {
		return StubIdentity, nil
	}
	claims := &firebaseClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil || claims.Subject == "" {
		return StubIdentity, nil
	}
	return types.Identity{
		UserID:        claims.Subject,
		Email:         claims.Email,
		EmailVerified: claims.EmailVerified,
		Name:          claims.Name,
	}, nil
}
