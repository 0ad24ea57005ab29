package auth

import (
	"errors"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/Abraxas-365/eventcraft/errx"
)

// Scopes granted by inspector tokens.
const (
	ScopeRead  = "events:read"
	ScopeAdmin = "events:admin"
)

var ErrorRegistry = errx.NewRegistry("AUTH")

var (
	ErrMissingToken      = ErrorRegistry.Register("MISSING_TOKEN", errx.TypeAccess, http.StatusUnauthorized, "bearer token required")
	ErrInvalidToken      = ErrorRegistry.Register("INVALID_TOKEN", errx.TypeAccess, http.StatusUnauthorized, "token is invalid")
	ErrTokenExpired      = ErrorRegistry.Register("TOKEN_EXPIRED", errx.TypeAccess, http.StatusUnauthorized, "token has expired")
	ErrInsufficientScope = ErrorRegistry.Register("INSUFFICIENT_SCOPE", errx.TypeAccess, http.StatusForbidden, "token lacks the required scope")
)

// Claims carried by inspector tokens
type Claims struct {
	jwt.RegisteredClaims
	Scopes []string `json:"scopes,omitempty"`
}

// HasScope reports whether the claims grant scope. Admin implies every scope.
func (c *Claims) HasScope(scope string) bool {
	return slices.Contains(c.Scopes, scope) || slices.Contains(c.Scopes, ScopeAdmin)
}

// TokenService issues and validates HS256 tokens
type TokenService struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// Option configures a TokenService
type Option func(*TokenService)

// WithIssuer sets the iss claim written and required.
func WithIssuer(issuer string) Option {
	return func(s *TokenService) { s.issuer = issuer }
}

// WithTTL sets the token lifetime.
func WithTTL(ttl time.Duration) Option {
	return func(s *TokenService) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *TokenService) { s.now = now }
}

func NewTokenService(secret []byte, opts ...Option) *TokenService {
	s := &TokenService{
		secret: secret,
		issuer: "eventcraft",
		ttl:    time.Hour,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GenerateToken signs a token for subject with the given scopes.
func (s *TokenService) GenerateToken(subject string, scopes ...string) (string, error) {
	now := s.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    s.issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
		Scopes: scopes,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", errx.Wrap(err, "failed to sign token", errx.TypeInternal)
	}
	return signed, nil
}

// ValidateToken parses and verifies a token.
func (s *TokenService) ValidateToken(token string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithTimeFunc(s.now),
	)
	switch {
	case err == nil:
		return claims, nil
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, ErrorRegistry.NewWithCause(ErrTokenExpired, err)
	default:
		return nil, ErrorRegistry.NewWithCause(ErrInvalidToken, err)
	}
}

// Authorize validates an Authorization header value and checks scope.
func (s *TokenService) Authorize(header, scope string) (*Claims, error) {
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || strings.TrimSpace(token) == "" {
		return nil, ErrorRegistry.New(ErrMissingToken)
	}
	claims, err := s.ValidateToken(strings.TrimSpace(token))
	if err != nil {
		return nil, err
	}
	if scope != "" && !claims.HasScope(scope) {
		return nil, ErrorRegistry.New(ErrInsufficientScope).
			WithDetail("scope", scope).
			WithDetail("subject", claims.Subject)
	}
	return claims, nil
}
