// Package callback completes the authorization code flow.
package callback

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/GoPowerDNS-Admin/oidc-rp/internal/auth"
	"github.com/GoPowerDNS-Admin/oidc-rp/internal/web/cookie"
	"github.com/GoPowerDNS-Admin/oidc-rp/internal/web/handler"
	"github.com/GoPowerDNS-Admin/oidc-rp/internal/web/session"
)

// Path is the redirect URI path registered at the provider.
const Path = "/callback"

// Service is the callback handler service.
type Service struct {
	handler.Service
	deps *handler.Deps
}

// Init initializes the callback handler.
func (s *Service) Init(app *fiber.App, deps *handler.Deps) error {
	if app == nil || !deps.Valid() {
		return handler.ErrNilDeps
	}

	s.deps = deps

	app.Get(Path, s.Get)
	app.Post(Path, s.Post)

	return nil
}

// Get handles the provider redirect. The oauth-* cookies are single use and
// cleared whatever the outcome.
func (s *Service) Get(c *fiber.Ctx) error {
	in := auth.CallbackInput{
		Code:        c.Query("code"),
		State:       c.Query("state"),
		Error:       c.Query("error"),
		CookieState: c.Cookies(cookie.State),
		CookieNonce: c.Cookies(cookie.Nonce),
	}

	s.deps.Cookies.ClearAuth(c)

	res := s.deps.RP.HandleCallback(c.UserContext(), in)

	switch res.Outcome {
	case auth.OutcomeAuthenticated:
		return s.login(c, res)
	case auth.OutcomeDiscoveryFailed:
		return handler.RenderError(c, fiber.StatusInternalServerError, "The identity provider is not available.")
	default:
		return c.Redirect(handler.LoginPath)
	}
}

// login replaces any previous session with a new one.
func (s *Service) login(c *fiber.Ctx, res auth.CallbackResult) error {
	if old := c.Cookies(cookie.Session); old != "" {
		if err := s.deps.Sessions.Destroy(old); err != nil {
			log.Warn().Err(err).Msg("failed to destroy previous session")
		}
	}

	id, err := s.deps.Sessions.Create(&session.Data{
		Tokens:   res.Tokens,
		UserID:   res.User.ID,
		Username: res.User.Username,
	})
	if err != nil {
		log.Error().Err(err).Uint64("user_id", res.User.ID).Msg("failed to write session")

		return handler.RenderError(c, fiber.StatusInternalServerError, "Internal server error")
	}

	s.deps.Cookies.Set(c, cookie.Session, id, s.deps.Cfg.Webserver.Session.ExpiryTime)

	return c.Redirect(handler.RootPath)
}

// Post is not part of the flow, the provider redirects with GET.
func (s *Service) Post(c *fiber.Ctx) error {
	return c.Status(fiber.StatusMethodNotAllowed).JSON(fiber.Map{"error": "Endpoint not supported"})
}
