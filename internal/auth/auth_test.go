package auth

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/repository/memstore"
	apperrors "github.com/spec-kit/support-desk/pkg/util/errorutil"
)

func TestTokenRoundTrip(t *testing.T) {
	tm := NewTokenManager("secret", 5)
	token, exp, err := tm.GenerateToken("agent-1", domain.SubjectTypeAgent)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(5*time.Minute), exp, time.Minute)

	claims, err := tm.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, "agent-1", claims.Subject)
	assert.Equal(t, domain.SubjectTypeAgent, claims.Kind)
}

func TestParseTokenRejectsForeignSecretAndExpiry(t *testing.T) {
	tm := NewTokenManager("secret", 1)
	token, _, err := tm.GenerateToken("agent-1", domain.SubjectTypeAgent)
	require.NoError(t, err)

	_, err = NewTokenManager("other", 1).ParseToken(token)
	assert.Error(t, err)

	later := NewTokenManager("secret", 1)
	later.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	_, err = later.ParseToken(token)
	assert.Error(t, err)
}

func TestParseTokenRejectsForeignIssuerAndAlgorithm(t *testing.T) {
	tm := NewTokenManager("secret", 5)
	claims := &Claims{
		Kind: domain.SubjectTypeAgent,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "someone-else",
			Subject:   "agent-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
	}
	foreign, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)
	_, err = tm.ParseToken(foreign)
	assert.Error(t, err)

	claims.Issuer = tokenIssuer
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = tm.ParseToken(unsigned)
	assert.Error(t, err)
}

func TestPasswordHashing(t *testing.T) {
	passwords := NewPasswords(4)
	hash, err := passwords.Hash("hunter22")
	require.NoError(t, err)
	assert.NoError(t, passwords.Compare(hash, "hunter22"))
	assert.Error(t, passwords.Compare(hash, "hunter23"))
	passwords.CompareDecoy("hunter22")
}

func TestPasswordPolicy(t *testing.T) {
	assert.ErrorIs(t, CheckPolicy("short"), ErrPasswordTooShort)
	assert.ErrorIs(t, CheckPolicy(strings.Repeat("a", 73)), ErrPasswordTooLong)
	assert.NoError(t, CheckPolicy("long enough"))
}

func newAuthApp(t *testing.T) (*fiber.App, *TokenManager, *domain.Agent) {
	t.Helper()
	repos := memstore.New().Repos()
	agent := &domain.Agent{Name: "Sam", Email: "sam@desk.test", PasswordHash: "x"}
	require.NoError(t, repos.Agents.Create(context.Background(), agent))

	tm := NewTokenManager("secret", 5)
	mw := NewAuthMiddleware(tm, repos.Agents)
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			if fe, ok := err.(*fiber.Error); ok {
				return c.Status(fe.Code).SendString(fe.Message)
			}
			de := apperrors.ToDomainError(err)
			return c.Status(de.HTTPStatus).SendString(de.Code)
		},
	})
	app.Get("/me", mw.Handle, RequireAgent(), func(c *fiber.Ctx) error {
		p, _ := PrincipalFromContext(c)
		return c.SendString(p.Actor().Identity)
	})
	return app, tm, agent
}

func TestAuthMiddleware(t *testing.T) {
	app, tm, agent := newAuthApp(t)
	token, _, err := tm.GenerateToken(agent.ID, domain.SubjectTypeAgent)
	require.NoError(t, err)
	ghost, _, err := tm.GenerateToken("ghost", domain.SubjectTypeAgent)
	require.NoError(t, err)

	cases := []struct {
		name   string
		header string
		status int
		body   string
	}{
		{name: "valid", header: "Bearer " + token, status: http.StatusOK, body: agent.ID},
		{name: "missing", header: "", status: http.StatusUnauthorized, body: apperrors.CodeUnauthorized},
		{name: "wrong scheme", header: "Basic abc", status: http.StatusUnauthorized, body: apperrors.CodeUnauthorized},
		{name: "garbage", header: "Bearer nope", status: http.StatusUnauthorized, body: apperrors.CodeUnauthorized},
		{name: "unknown agent", header: "Bearer " + ghost, status: http.StatusUnauthorized, body: apperrors.CodeUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			defer resp.Body.Close()
			body, _ := io.ReadAll(resp.Body)
			assert.Equal(t, tc.status, resp.StatusCode)
			assert.Equal(t, tc.body, string(body))
		})
	}
}
