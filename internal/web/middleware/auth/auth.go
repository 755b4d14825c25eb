package auth

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/GoPowerDNS-Admin/oidc-rp/internal/web/cookie"
	"github.com/GoPowerDNS-Admin/oidc-rp/internal/web/handler"
	"github.com/GoPowerDNS-Admin/oidc-rp/internal/web/session"
)

// Keys of the values stored in fiber.Locals.
const (
	LocalSession   = "session"
	LocalSessionID = "session_id"
	LocalUsername  = "username"
)

// RequireAuthenticatedSession only lets requests with an authenticated
// session pass.
func RequireAuthenticatedSession(sessions session.Store) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Cookies(cookie.Session)
		if id == "" {
			return reject(c)
		}

		data, err := sessions.Get(id)
		if err != nil {
			log.Debug().Err(err).Msg("no session for cookie")

			return reject(c)
		}

		if !data.Authenticated() {
			log.Warn().Uint64("user_id", data.UserID).Msg("session without access token")

			return reject(c)
		}

		c.Locals(LocalSession, data)
		c.Locals(LocalSessionID, id)
		c.Locals(LocalUsername, data.Username)

		return c.Next()
	}
}

// Session returns the session loaded by RequireAuthenticatedSession.
func Session(c *fiber.Ctx) (*session.Data, string) {
	data, _ := c.Locals(LocalSession).(*session.Data)
	id, _ := c.Locals(LocalSessionID).(string)

	return data, id
}

func reject(c *fiber.Ctx) error {
	if c.Method() == fiber.MethodGet {
		return c.Redirect(handler.LoginPath)
	}

	return c.Status(fiber.StatusUnauthorized).SendString("Unauthorized")
}
