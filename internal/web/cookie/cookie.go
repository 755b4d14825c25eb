// Package cookie writes and clears the cookies of the login flow.
package cookie

import (
	"time"

	"github.com/gofiber/fiber/v2"
)

// Cookie names.
const (
	State          = "oauth-state"
	Nonce          = "oauth-nonce"
	RedirectParams = "oauth-redirect-params"
	Session        = "session"
)

// AuthCookies are the single use cookies of one authorization attempt.
var AuthCookies = []string{State, Nonce, RedirectParams} //nolint:gochecknoglobals

// Jar sets HttpOnly, SameSite=Lax cookies scoped to "/". Secure is off only
// in dev mode.
type Jar struct {
	Secure bool
}

// New returns a Jar. devMode disables the Secure flag for plain http.
func New(devMode bool) Jar {
	return Jar{Secure: !devMode}
}

// Set writes cookie name with the given lifetime.
func (j Jar) Set(c *fiber.Ctx, name, value string, ttl time.Duration) {
	c.Cookie(&fiber.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		Expires:  time.Now().Add(ttl),
		Secure:   j.Secure,
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

// Clear expires the named cookies on the client.
func (j Jar) Clear(c *fiber.Ctx, names ...string) {
	for _, name := range names {
		c.Cookie(&fiber.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			Expires:  time.Unix(0, 0),
			Secure:   j.Secure,
			HTTPOnly: true,
			SameSite: fiber.CookieSameSiteLaxMode,
		})
	}
}

// ClearAuth expires the oauth-* cookies.
func (j Jar) ClearAuth(c *fiber.Ctx) {
	j.Clear(c, AuthCookies...)
}
