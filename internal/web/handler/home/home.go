// Package home renders the profile page of the logged in user.
package home

import (
	"github.com/gofiber/fiber/v2"

	"github.com/GoPowerDNS-Admin/oidc-rp/internal/web/handler"
	authmiddleware "github.com/GoPowerDNS-Admin/oidc-rp/internal/web/middleware/auth"
	"github.com/GoPowerDNS-Admin/oidc-rp/internal/web/navigation"
)

// TemplateName is the profile page template.
const TemplateName = "home"

// Service is the home handler service.
type Service struct {
	handler.Service
	deps *handler.Deps
}

// Init initializes the home handler.
func (s *Service) Init(app *fiber.App, deps *handler.Deps) error {
	if app == nil || !deps.Valid() {
		return handler.ErrNilDeps
	}

	s.deps = deps

	app.Get(handler.RootPath, authmiddleware.RequireAuthenticatedSession(deps.Sessions), s.Get)

	return nil
}

// Get shows the claims of the ID token and the results of earlier resource calls.
func (s *Service) Get(c *fiber.Ctx) error {
	data, _ := authmiddleware.Session(c)
	tokens := data.Tokens

	claims := ""
	if tokens.Claims != nil {
		claims = tokens.Claims.PrettyJSON()
	}

	return c.Render(TemplateName, fiber.Map{
		"Navigation":   navigation.NewContext("Profile", navigation.PageHome, data.Username),
		"Title":        s.deps.Cfg.Title,
		"Username":     data.Username,
		"Claims":       claims,
		"AccessToken":  tokens.AccessToken,
		"IDToken":      tokens.IDToken,
		"RefreshToken": tokens.RefreshToken,
		"Expiry":       tokens.Expiry,
		"UserInfo":     data.UserInfo,
		"Introspect":   data.Introspect,
		"Revocation":   data.Revocation,
	}, handler.BaseLayout)
}
