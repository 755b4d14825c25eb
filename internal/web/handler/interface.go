package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/GoPowerDNS-Admin/oidc-rp/internal/auth"
	"github.com/GoPowerDNS-Admin/oidc-rp/internal/config"
	"github.com/GoPowerDNS-Admin/oidc-rp/internal/web/cookie"
	"github.com/GoPowerDNS-Admin/oidc-rp/internal/web/session"
)

// ErrNilDeps is returned by Init if app or a dependency is nil.
var ErrNilDeps = errors.New(ErrNilDepsFatalLogMsg)

// Deps are the dependencies shared by all handlers.
type Deps struct {
	Cfg      *config.Config
	RP       *auth.RelyingParty
	Sessions session.Store
	Cookies  cookie.Jar
}

// Valid reports whether all dependencies are set.
func (d *Deps) Valid() bool {
	return d != nil && d.Cfg != nil && d.RP != nil && d.Sessions != nil
}

// Service is the interface for a web handler service.
type Service interface {
	Init(app *fiber.App, deps *Deps) error
}

// RenderError renders the generic error page with status.
func RenderError(c *fiber.Ctx, status int, msg string) error {
	return c.Status(status).Render(TemplateError, fiber.Map{
		"Title": "Error",
		"Error": msg,
	}, BaseLayout)
}
