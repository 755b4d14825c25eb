// Package login renders the login page and starts the authorization request.
package login

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/GoPowerDNS-Admin/oidc-rp/internal/web/cookie"
	"github.com/GoPowerDNS-Admin/oidc-rp/internal/web/handler"
	"github.com/GoPowerDNS-Admin/oidc-rp/internal/web/navigation"
)

const (
	// Path is the path to the login page.
	Path = handler.LoginPath

	// RedirectPath starts the authorization request.
	RedirectPath = Path + "/redirect"

	// TemplateName is the login page template.
	TemplateName = "login"
)

// Service is the login handler service.
type Service struct {
	handler.Service
	deps *handler.Deps
}

// Init initializes the login handler.
func (s *Service) Init(app *fiber.App, deps *handler.Deps) error {
	if app == nil || !deps.Valid() {
		return handler.ErrNilDeps
	}

	s.deps = deps

	app.Route(Path, func(router fiber.Router) {
		router.Get(handler.RootPath, s.Get)
		router.Get("/redirect", s.Redirect)
	})

	return nil
}

// Get renders the provider configuration and a login button. Leftovers of
// an earlier attempt are cleared.
func (s *Service) Get(c *fiber.Ctx) error {
	s.deps.Cookies.ClearAuth(c)

	oidc := s.deps.RP.Config()

	return c.Render(TemplateName, fiber.Map{
		"Navigation": navigation.NewContext("Login", navigation.PageLogin, ""),
		"Title":      s.deps.Cfg.Title,
		"Config": fiber.Map{
			"ClientID":    oidc.ClientID,
			"Audience":    oidc.Audience,
			"Issuer":      oidc.Issuer,
			"RedirectURI": oidc.RedirectURI,
			"Scopes":      oidc.Scopes,
			"IDP":         oidc.IDP,
		},
		"RedirectPath": RedirectPath,
	}, handler.BaseLayout)
}

// Redirect sets the state, nonce and redirect params cookies and sends the
// browser to the authorization endpoint.
func (s *Service) Redirect(c *fiber.Ctx) error {
	req, err := s.deps.RP.NewAuthRequest(c.UserContext())
	if err != nil {
		log.Error().Err(err).Msg("failed to create authorization request")

		return handler.RenderError(c, fiber.StatusInternalServerError, "The identity provider is not available.")
	}

	ttl := s.deps.Cfg.Webserver.AuthCookieTTL
	jar := s.deps.Cookies

	jar.ClearAuth(c)
	jar.Set(c, cookie.State, req.State, ttl)
	jar.Set(c, cookie.Nonce, req.Nonce, ttl)
	jar.Set(c, cookie.RedirectParams, req.RedirectParams, ttl)

	return c.Redirect(req.URL, fiber.StatusFound)
}
