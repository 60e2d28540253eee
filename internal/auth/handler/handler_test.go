package handler

import (
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spwotton/sms/internal/auth"
	jwttoken "github.com/spwotton/sms/internal/jwt_token"
	"github.com/spwotton/sms/pkg/testutil"
)

func newTestRouter(t *testing.T) (chi.Router, *jwttoken.JWTService) {
	t.Helper()

	tokens := jwttoken.NewJWTService("test-signing-key", "sms-hub", "sms-api")
	svc := auth.New(auth.Credential{Username: "admin", Password: "hub-secret"}, tokens)
	h := New(svc, slog.New(slog.NewTextHandler(io.Discard, nil)))

	r := chi.NewRouter()
	h.Register(r)
	return r, tokens
}

func TestLogin(t *testing.T) {
	router, tokens := newTestRouter(t)

	rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPost, "/auth/login", LoginRequest{
		Username: "admin",
		Password: "hub-secret",
	}))

	testutil.AssertStatus(t, rr, http.StatusOK)
	resp := testutil.UnmarshalResponse[loginResponse](t, rr)
	assert.Equal(t, "Bearer", resp.TokenType)
	assert.Equal(t, int64(auth.DefaultTokenTTL.Seconds()), resp.ExpiresIn)

	claims, err := tokens.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "admin", claims.Username)
}

func TestLogin_WrongPassword(t *testing.T) {
	router, _ := newTestRouter(t)

	rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPost, "/auth/login", LoginRequest{
		Username: "admin",
		Password: "guess",
	}))

	testutil.AssertStatusAndError(t, rr, http.StatusUnauthorized, "unauthorized")
}

func TestLogin_MissingFields(t *testing.T) {
	router, _ := newTestRouter(t)

	tests := []struct {
		name string
		req  LoginRequest
	}{
		{name: "no username", req: LoginRequest{Password: "hub-secret"}},
		{name: "no password", req: LoginRequest{Username: "admin"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPost, "/auth/login", tt.req))
			testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, "validation_error")
		})
	}
}

func TestLogin_MalformedBody(t *testing.T) {
	router, _ := newTestRouter(t)

	rr := testutil.DoRequest(router, testutil.NewRawRequest(t, http.MethodPost, "/auth/login", "{not json"))

	testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, "bad_request")
}
