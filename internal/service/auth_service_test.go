package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/course-ops-api/internal/models"
	appErrors "github.com/noah-isme/course-ops-api/pkg/errors"
)

func newAuthService(t *testing.T, plaintext bool) *AuthService {
	t.Helper()
	cfg := AuthConfig{
		Username:    "admin",
		TokenSecret: "test-secret",
		TokenExpiry: time.Hour,
		Issuer:      "course-ops-api",
	}
	if plaintext {
		cfg.Password = "s3cret"
	} else {
		hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
		require.NoError(t, err)
		cfg.PasswordHash = string(hash)
	}
	return NewAuthService(nil, nil, cfg)
}

func TestLoginIssuesToken(t *testing.T) {
	svc := newAuthService(t, false)

	resp, err := svc.Login(models.LoginRequest{Username: "admin", Password: "s3cret"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.Equal(t, int64(3600), resp.ExpiresIn)

	claims, err := svc.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "admin", claims.Username)
	assert.Equal(t, "course-ops-api", claims.Issuer)
}

func TestLoginPlaintextFallback(t *testing.T) {
	svc := newAuthService(t, true)

	_, err := svc.Login(models.LoginRequest{Username: "admin", Password: "s3cret"})
	require.NoError(t, err)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	svc := newAuthService(t, false)

	cases := []models.LoginRequest{
		{Username: "admin", Password: "wrong"},
		{Username: "other", Password: "s3cret"},
	}
	for _, req := range cases {
		_, err := svc.Login(req)
		require.Error(t, err)
		assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
	}
}

func TestLoginValidatesPayload(t *testing.T) {
	svc := newAuthService(t, false)

	_, err := svc.Login(models.LoginRequest{Username: "admin"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestLoginRejectsWhenNoCredentialConfigured(t *testing.T) {
	svc := NewAuthService(nil, nil, AuthConfig{Username: "admin", TokenSecret: "x"})

	_, err := svc.Login(models.LoginRequest{Username: "admin", Password: "anything"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestValidateTokenRejectsExpired(t *testing.T) {
	svc := newAuthService(t, false)
	svc.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }

	resp, err := svc.Login(models.LoginRequest{Username: "admin", Password: "s3cret"})
	require.NoError(t, err)

	svc.now = time.Now
	_, err = svc.ValidateToken(resp.AccessToken)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestValidateTokenRejectsTampered(t *testing.T) {
	svc := newAuthService(t, false)

	resp, err := svc.Login(models.LoginRequest{Username: "admin", Password: "s3cret"})
	require.NoError(t, err)

	other := NewAuthService(nil, nil, AuthConfig{
		Username:    "admin",
		Password:    "s3cret",
		TokenSecret: "different-secret",
		TokenExpiry: time.Hour,
	})
	_, err = other.ValidateToken(resp.AccessToken)
	require.Error(t, err)
}
