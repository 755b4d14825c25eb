package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GoPowerDNS-Admin/oidc-rp/internal/oidc/token"
	"github.com/GoPowerDNS-Admin/oidc-rp/internal/web/cookie"
	"github.com/GoPowerDNS-Admin/oidc-rp/internal/web/session"
)

func TestRequireAuthenticatedSession(t *testing.T) {
	sessions := session.New(nil, time.Minute)

	valid, err := sessions.Create(&session.Data{
		UserID:   1,
		Username: "a@b.com",
		Tokens:   &token.Set{AccessToken: "at"},
	})
	require.NoError(t, err)

	noToken, err := sessions.Create(&session.Data{UserID: 1, Username: "a@b.com"})
	require.NoError(t, err)

	app := fiber.New()
	guard := RequireAuthenticatedSession(sessions)
	handler := func(c *fiber.Ctx) error {
		data, id := Session(c)

		return c.SendString(data.Username + " " + id + " " + c.Locals(LocalUsername).(string))
	}

	app.Get("/", guard, handler)
	app.Post("/userinfo", guard, handler)

	tests := []struct {
		name     string
		method   string
		target   string
		cookie   string
		status   int
		location string
	}{
		{name: "no cookie get", method: http.MethodGet, target: "/", status: fiber.StatusFound, location: "/login"},
		{name: "no cookie post", method: http.MethodPost, target: "/userinfo", status: fiber.StatusUnauthorized},
		{name: "unknown session", method: http.MethodGet, target: "/", cookie: "nope", status: fiber.StatusFound, location: "/login"},
		{name: "session without token", method: http.MethodPost, target: "/userinfo", cookie: noToken, status: fiber.StatusUnauthorized},
		{name: "valid get", method: http.MethodGet, target: "/", cookie: valid, status: fiber.StatusOK},
		{name: "valid post", method: http.MethodPost, target: "/userinfo", cookie: valid, status: fiber.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.target, nil)
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: cookie.Session, Value: tt.cookie})
			}

			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)

			if tt.location != "" {
				assert.Equal(t, tt.location, resp.Header.Get("Location"))
			}
		})
	}
}
