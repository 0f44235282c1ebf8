// ABOUTME: Bearer token verification against rotating issuer key sets
// ABOUTME: RS256 JWTs verified via JWKS discovery with typed failure reasons

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DevSubjectHeader is the identity header accepted in development mode in
// place of a bearer token. See Config.DevelopmentMode.
const DevSubjectHeader = "X-Dev-Subject"

// Identity is the subject extracted from a successfully verified token.
// It exists only for the duration of one request and is never persisted.
type Identity struct {
	Subject   string
	Issuer    string
	ExpiresAt time.Time
}

// Config holds verifier construction options.
type Config struct {
	// KeyTTL is how long fetched key sets are cached per issuer.
	KeyTTL time.Duration

	// HTTPClient fetches JWKS documents; defaults to a 10s-timeout client.
	HTTPClient *http.Client

	// DevelopmentMode accepts the X-Dev-Subject header as an identity.
	// Must never be enabled in production.
	DevelopmentMode bool

	Logger *slog.Logger
}

// Verifier validates bearer tokens against issuer signing-key sets.
type Verifier struct {
	cache   *keyCache
	parser  *jwt.Parser
	devMode bool
	logger  *slog.Logger
}

// Sentinel causes surfaced out of the jwt keyfunc so failures can be mapped
// to reason codes after parsing.
var (
	errUnsupportedAlg = errors.New("unsupported signing algorithm")
	errMissingKid     = errors.New("token header missing kid")
	errMissingIssuer  = errors.New("token payload missing issuer")
	errKeyNotFound    = errors.New("signing key not found in issuer key set")
	errKeyFetch       = errors.New("fetching issuer key set failed")
)

// NewVerifier creates a token verifier with the given configuration.
func NewVerifier(cfg Config) *Verifier {
	ttl := cfg.KeyTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Verifier{
		cache: newKeyCache(ttl, cfg.HTTPClient),
		parser: jwt.NewParser(
			jwt.WithExpirationRequired(),
		),
		devMode: cfg.DevelopmentMode,
		logger:  logger,
	}
}

// Authenticate resolves the identity for an inbound request.
// Returns ErrNoCredentials when the request carries no token at all, and an
// *AuthError (wrapped) when a token is present but rejected.
func (v *Verifier) Authenticate(r *http.Request) (*Identity, error) {
	if v.devMode {
		if subject := r.Header.Get(DevSubjectHeader); subject != "" {
			v.logger.Warn("development-mode identity accepted", "subject", subject)
			return &Identity{Subject: subject, Issuer: "dev"}, nil
		}
	}

	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return nil, ErrNoCredentials
	}

	return v.VerifyHeader(r.Context(), authHeader)
}

// VerifyHeader validates an Authorization header value of the form
// "Bearer <token>" and returns the verified identity.
func (v *Verifier) VerifyHeader(ctx context.Context, authHeader string) (*Identity, error) {
	token, err := extractBearerToken(authHeader)
	if err != nil {
		return nil, authError(ReasonMalformed, err)
	}
	return v.Verify(ctx, token)
}

// Verify validates a compact JWT and extracts the subject identity.
// Fails closed: any verification error yields a typed AuthError.
func (v *Verifier) Verify(ctx context.Context, tokenString string) (*Identity, error) {
	claims := jwt.MapClaims{}
	token, err := v.parser.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("%w: %v", errUnsupportedAlg, t.Header["alg"])
		}

		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, errMissingKid
		}

		issuer, issErr := t.Claims.GetIssuer()
		if issErr != nil || issuer == "" {
			return nil, errMissingIssuer
		}

		keys, fetchErr := v.cache.get(ctx, issuer)
		if fetchErr != nil {
			return nil, fmt.Errorf("%w: %v", errKeyFetch, fetchErr)
		}

		key, ok := keys[kid]
		if !ok {
			// Likely key rotation: the caller should retry after the
			// cache TTL expires, not immediately.
			return nil, fmt.Errorf("%w: kid %q", errKeyNotFound, kid)
		}
		return key, nil
	})

	if err != nil {
		return nil, classifyParseError(err)
	}
	if !token.Valid {
		return nil, authError(ReasonBadSignature, nil)
	}

	subject, err := claims.GetSubject()
	if err != nil || subject == "" {
		return nil, authError(ReasonMalformed, fmt.Errorf("missing sub claim"))
	}
	issuer, _ := claims.GetIssuer()

	var expiresAt time.Time
	if exp, expErr := claims.GetExpirationTime(); expErr == nil && exp != nil {
		expiresAt = exp.Time
	}

	return &Identity{
		Subject:   subject,
		Issuer:    issuer,
		ExpiresAt: expiresAt,
	}, nil
}

// classifyParseError maps jwt parse failures onto stable reason codes.
func classifyParseError(err error) *AuthError {
	switch {
	case errors.Is(err, errUnsupportedAlg):
		return authError(ReasonUnsupportedAlg, err)
	case errors.Is(err, errMissingKid):
		return authError(ReasonMissingKid, err)
	case errors.Is(err, errMissingIssuer):
		return authError(ReasonMalformed, err)
	case errors.Is(err, errKeyNotFound), errors.Is(err, errKeyFetch):
		return authError(ReasonKeyNotFound, err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return authError(ReasonExpired, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return authError(ReasonBadSignature, err)
	case errors.Is(err, jwt.ErrTokenMalformed):
		return authError(ReasonMalformed, err)
	default:
		return authError(ReasonBadSignature, err)
	}
}

// extractBearerToken extracts a bearer token from the Authorization header.
func extractBearerToken(authHeader string) (string, error) {
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", fmt.Errorf("invalid authorization header format")
	}
	token := strings.TrimPrefix(authHeader, "Bearer ")
	if token == "" {
		return "", fmt.Errorf("empty token")
	}
	return token, nil
}
