// Package resource forwards userinfo, introspection and revocation calls for
// the session's access token and stores the results in the session.
package resource

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/GoPowerDNS-Admin/oidc-rp/internal/oidc/resource"
	"github.com/GoPowerDNS-Admin/oidc-rp/internal/web/handler"
	authmiddleware "github.com/GoPowerDNS-Admin/oidc-rp/internal/web/middleware/auth"
	"github.com/GoPowerDNS-Admin/oidc-rp/internal/web/session"
)

// Paths of the resource calls.
const (
	UserinfoPath   = "/userinfo"
	IntrospectPath = "/introspect"
	RevokePath     = "/revoke"

	// FormAccessToken is the optional form field overriding the session token.
	FormAccessToken = "accessToken"

	// MsgRevoked is stored after a successful revocation.
	MsgRevoked = "Access Token Revoked"
)

// Service is the resource handler service.
type Service struct {
	handler.Service
	deps *handler.Deps
}

// Init initializes the resource handler.
func (s *Service) Init(app *fiber.App, deps *handler.Deps) error {
	if app == nil || !deps.Valid() {
		return handler.ErrNilDeps
	}

	s.deps = deps

	guard := authmiddleware.RequireAuthenticatedSession(deps.Sessions)

	app.Post(UserinfoPath, guard, s.Userinfo)
	app.Post(IntrospectPath, guard, s.Introspect)
	app.Post(RevokePath, guard, s.Revoke)

	return nil
}

// Userinfo stores the userinfo response. A failed call keeps the previous value.
func (s *Service) Userinfo(c *fiber.Ctx) error {
	return s.call(c, "userinfo", func(data *session.Data, accessToken string) error {
		info, err := s.deps.RP.Userinfo(c.UserContext(), accessToken)
		if err != nil {
			return err
		}

		data.UserInfo = resource.PrettyJSON(info)

		return nil
	})
}

// Introspect stores the introspection response. A failed call keeps the previous value.
func (s *Service) Introspect(c *fiber.Ctx) error {
	return s.call(c, "introspect", func(data *session.Data, accessToken string) error {
		in, err := s.deps.RP.Introspect(c.UserContext(), accessToken)
		if err != nil {
			return err
		}

		data.Introspect = resource.PrettyJSON(in.Raw)

		return nil
	})
}

// Revoke stores MsgRevoked or the provider response.
func (s *Service) Revoke(c *fiber.Ctx) error {
	return s.call(c, "revoke", func(data *session.Data, accessToken string) error {
		rev, err := s.deps.RP.Revoke(c.UserContext(), accessToken)
		if err != nil {
			return err
		}

		if rev.Revoked {
			data.Revocation = MsgRevoked
		} else {
			data.Revocation = rev.Raw
		}

		return nil
	})
}

// call runs fn for the requested access token and saves the session. The
// token set itself is never changed. Concurrent calls on one session are last
// write wins, only the display fields can be lost that way.
func (s *Service) call(c *fiber.Ctx, name string, fn func(data *session.Data, accessToken string) error) error {
	data, id := authmiddleware.Session(c)

	accessToken := c.FormValue(FormAccessToken)
	if accessToken == "" {
		accessToken = data.Tokens.AccessToken
	}

	if err := fn(data, accessToken); err != nil {
		log.Warn().Err(err).Str("call", name).Str("username", data.Username).Msg("resource call failed")

		return c.Redirect(handler.RootPath, fiber.StatusSeeOther)
	}

	if err := s.deps.Sessions.Set(id, data); err != nil {
		log.Error().Err(err).Str("call", name).Msg("failed to write session")

		return handler.RenderError(c, fiber.StatusInternalServerError, "Internal server error")
	}

	return c.Redirect(handler.RootPath, fiber.StatusSeeOther)
}
