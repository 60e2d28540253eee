// Package auth issues API access tokens against the static operator
// credential the hub is configured with. There is no user store; one
// credential guards the whole API surface.
package auth

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"time"

	"golang.org/x/crypto/bcrypt"

	jwttoken "github.com/spwotton/sms/internal/jwt_token"
	dErrors "github.com/spwotton/sms/pkg/domain-errors"
)

// DefaultTokenTTL is how long issued tokens stay valid.
const DefaultTokenTTL = 24 * time.Hour

// Credential is the configured operator login. PasswordHash is a bcrypt
// hash and wins over Password when both are set; the plain form exists for
// development setups.
type Credential struct {
	Username     string
	PasswordHash string
	Password     string
}

// Token is an issued access token with its lifetime.
type Token struct {
	AccessToken string
	TokenType   string
	ExpiresIn   int64
}

type Service struct {
	credential Credential
	tokens     *jwttoken.JWTService
	tokenTTL   time.Duration
	logger     *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithTokenTTL(ttl time.Duration) Option {
	return func(s *Service) {
		s.tokenTTL = ttl
	}
}

func New(credential Credential, tokens *jwttoken.JWTService, opts ...Option) *Service {
	s := &Service{
		credential: credential,
		tokens:     tokens,
		tokenTTL:   DefaultTokenTTL,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Login verifies the credential and returns a signed access token.
// Errors: CodeUnauthorized on any mismatch, with no hint about which field
// was wrong.
func (s *Service) Login(ctx context.Context, username, password string) (Token, error) {
	if !s.credentialsMatch(username, password) {
		if s.logger != nil {
			s.logger.WarnContext(ctx, "login rejected", "username", username)
		}
		return Token{}, dErrors.New(dErrors.CodeUnauthorized, "invalid username or password")
	}

	access, err := s.tokens.GenerateAccessToken(username, s.tokenTTL)
	if err != nil {
		return Token{}, dErrors.Wrap(err, dErrors.CodeInternal, "token generation failed")
	}

	if s.logger != nil {
		s.logger.InfoContext(ctx, "login succeeded", "username", username)
	}
	return Token{
		AccessToken: access,
		TokenType:   "Bearer",
		ExpiresIn:   int64(s.tokenTTL.Seconds()),
	}, nil
}

func (s *Service) credentialsMatch(username, password string) bool {
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(s.credential.Username)) == 1

	switch {
	case s.credential.PasswordHash != "":
		err := bcrypt.CompareHashAndPassword([]byte(s.credential.PasswordHash), []byte(password))
		return userOK && err == nil
	case s.credential.Password != "":
		passOK := subtle.ConstantTimeCompare([]byte(password), []byte(s.credential.Password)) == 1
		return userOK && passOK
	default:
		// No credential configured means nobody logs in.
		return false
	}
}
