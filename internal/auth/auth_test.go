package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	jwttoken "github.com/spwotton/sms/internal/jwt_token"
	dErrors "github.com/spwotton/sms/pkg/domain-errors"
)

func testTokens() *jwttoken.JWTService {
	return jwttoken.NewJWTService("test-signing-key", "sms-hub", "sms-api")
}

func TestLogin_PlainCredential(t *testing.T) {
	svc := New(Credential{Username: "admin", Password: "admin123"}, testTokens())

	token, err := svc.Login(context.Background(), "admin", "admin123")
	require.NoError(t, err)
	assert.NotEmpty(t, token.AccessToken)
	assert.Equal(t, "Bearer", token.TokenType)
	assert.Equal(t, int64((24 * time.Hour).Seconds()), token.ExpiresIn)
}

func TestLogin_BcryptHashWinsOverPlain(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)

	svc := New(Credential{
		Username:     "admin",
		PasswordHash: string(hash),
		Password:     "admin123",
	}, testTokens())

	_, err = svc.Login(context.Background(), "admin", "s3cret")
	require.NoError(t, err)

	// The plain fallback must be ignored once a hash is configured.
	_, err = svc.Login(context.Background(), "admin", "admin123")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func TestLogin_RejectsWrongCredentials(t *testing.T) {
	svc := New(Credential{Username: "admin", Password: "admin123"}, testTokens())

	cases := []struct {
		name     string
		username string
		password string
	}{
		{name: "wrong password", username: "admin", password: "nope"},
		{name: "wrong username", username: "root", password: "admin123"},
		{name: "both empty", username: "", password: ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Login(context.Background(), tc.username, tc.password)
			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
		})
	}
}

func TestLogin_NoCredentialConfiguredDeniesAll(t *testing.T) {
	svc := New(Credential{Username: "admin"}, testTokens())

	_, err := svc.Login(context.Background(), "admin", "")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func TestLogin_IssuedTokenValidates(t *testing.T) {
	tokens := testTokens()
	svc := New(Credential{Username: "admin", Password: "admin123"}, tokens, WithTokenTTL(time.Hour))

	token, err := svc.Login(context.Background(), "admin", "admin123")
	require.NoError(t, err)
	assert.Equal(t, int64(3600), token.ExpiresIn)

	claims, err := tokens.ValidateToken(token.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "admin", claims.Username)
}
