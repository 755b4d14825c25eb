// Package logout ends the local session.
package logout

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/GoPowerDNS-Admin/oidc-rp/internal/web/cookie"
	"github.com/GoPowerDNS-Admin/oidc-rp/internal/web/handler"
)

// Path is the logout path.
const Path = "/logout"

// Service is the logout handler service.
type Service struct {
	handler.Service
	deps *handler.Deps
}

// Init initializes the logout handler.
func (s *Service) Init(app *fiber.App, deps *handler.Deps) error {
	if app == nil || !deps.Valid() {
		return handler.ErrNilDeps
	}

	s.deps = deps

	// logout route (outside auth middleware protection)
	app.Get(Path, s.Logout)
	app.Post(Path, s.Logout)

	return nil
}

// Logout destroys the session and clears the session cookie. With end
// session logout enabled the browser continues to the provider.
func (s *Service) Logout(c *fiber.Ctx) error {
	var idToken string

	if id := c.Cookies(cookie.Session); id != "" {
		if data, err := s.deps.Sessions.Get(id); err == nil && data.Tokens != nil {
			idToken = data.Tokens.IDToken
		}

		if err := s.deps.Sessions.Destroy(id); err != nil {
			log.Error().Err(err).Msg("failed to delete session")
		}
	}

	s.deps.Cookies.Clear(c, cookie.Session)

	postLogout := s.deps.Cfg.Webserver.URL + handler.LoginPath
	if target, ok := s.deps.RP.LogoutURL(c.UserContext(), idToken, postLogout); ok {
		return c.Redirect(target)
	}

	return c.Redirect(handler.LoginPath)
}
