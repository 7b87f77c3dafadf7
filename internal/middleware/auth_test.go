package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/session"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func newAuthApp(secret string) *fiber.App {
	auth := NewAuth(session.New(), secret)
	app := fiber.New()
	app.Use(auth.Locate)
	app.Get("/whoami", func(c *fiber.Ctx) error {
		userID, _ := c.Locals("user_id").(string)
		return c.SendString(userID)
	})
	app.Get("/api/private", auth.RequireLogin, func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})
	app.Get("/private", auth.RequireLogin, func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})
	return app
}

func TestLocateWithBearerToken(t *testing.T) {
	app := newAuthApp("secret")
	token := signToken(t, "secret", jwt.MapClaims{
		"user_id": "abc123",
		"exp":     time.Now().Add(time.Hour).Unix(),
	})

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "abc123", string(body))
}

func TestLocateRejectsBadTokens(t *testing.T) {
	app := newAuthApp("secret")

	for name, token := range map[string]string{
		"wrong secret": signToken(t, "other-secret", jwt.MapClaims{"user_id": "abc123"}),
		"expired": signToken(t, "secret", jwt.MapClaims{
			"user_id": "abc123",
			"exp":     time.Now().Add(-time.Hour).Unix(),
		}),
		"garbage": "not.a.token",
	} {
		req := httptest.NewRequest(http.MethodGet, "/api/private", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		resp, err := app.Test(req)
		require.NoError(t, err, name)
		resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, name)
	}
}

func TestRequireLoginRedirectsBrowserRoutes(t *testing.T) {
	app := newAuthApp("secret")

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/private", nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/login", resp.Header.Get("Location"))
}

func TestRequireLoginRejectsAPIRoutes(t *testing.T) {
	app := newAuthApp("secret")

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/private", nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
