package auth_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Abraxas-365/eventcraft/auth"
	"github.com/Abraxas-365/eventcraft/errx"
)

func TestTokenService_RoundTrip(t *testing.T) {
	s := auth.NewTokenService([]byte("secret"))

	token, err := s.GenerateToken("ops", auth.ScopeRead)
	require.NoError(t, err)

	claims, err := s.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "ops", claims.Subject)
	assert.Equal(t, "eventcraft", claims.Issuer)
	assert.True(t, claims.HasScope(auth.ScopeRead))
	assert.False(t, claims.HasScope(auth.ScopeAdmin))
	assert.NotEmpty(t, claims.ID)
}

func TestTokenService_Rejects(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	issuer := auth.NewTokenService([]byte("secret"), auth.WithTTL(time.Minute), auth.WithClock(func() time.Time { return now }))
	token, err := issuer.GenerateToken("ops", auth.ScopeRead)
	require.NoError(t, err)

	tests := []struct {
		name    string
		service *auth.TokenService
		token   string
		code    errx.Code
	}{
		{
			name:    "wrong secret",
			service: auth.NewTokenService([]byte("other"), auth.WithClock(func() time.Time { return now })),
			token:   token,
			code:    auth.ErrInvalidToken,
		},
		{
			name:    "wrong issuer",
			service: auth.NewTokenService([]byte("secret"), auth.WithIssuer("x"), auth.WithClock(func() time.Time { return now })),
			token:   token,
			code:    auth.ErrInvalidToken,
		},
		{
			name:    "expired",
			service: auth.NewTokenService([]byte("secret"), auth.WithClock(func() time.Time { return now.Add(time.Hour) })),
			token:   token,
			code:    auth.ErrTokenExpired,
		},
		{
			name:    "garbage",
			service: issuer,
			token:   "not.a.token",
			code:    auth.ErrInvalidToken,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.service.ValidateToken(tt.token)
			assert.True(t, errx.IsCode(err, tt.code), errx.Print(err))
		})
	}
}

func TestTokenService_Authorize(t *testing.T) {
	s := auth.NewTokenService([]byte("secret"))
	reader, err := s.GenerateToken("reader", auth.ScopeRead)
	require.NoError(t, err)
	admin, err := s.GenerateToken("admin", auth.ScopeAdmin)
	require.NoError(t, err)

	_, err = s.Authorize("", auth.ScopeRead)
	assert.True(t, errx.IsCode(err, auth.ErrMissingToken))
	_, err = s.Authorize("Basic abc", auth.ScopeRead)
	assert.True(t, errx.IsCode(err, auth.ErrMissingToken))

	claims, err := s.Authorize("Bearer "+reader, auth.ScopeRead)
	require.NoError(t, err)
	assert.Equal(t, "reader", claims.Subject)

	_, err = s.Authorize("Bearer "+reader, auth.ScopeAdmin)
	assert.True(t, errx.IsCode(err, auth.ErrInsufficientScope))

	_, err = s.Authorize("Bearer "+admin, auth.ScopeRead)
	assert.NoError(t, err)
}
