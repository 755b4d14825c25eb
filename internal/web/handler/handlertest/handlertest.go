// Package handlertest wires handlers against a fake identity provider and an
// in-memory database for tests.
package handlertest

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"slices"
	"testing"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/GoPowerDNS-Admin/oidc-rp/internal/auth"
	"github.com/GoPowerDNS-Admin/oidc-rp/internal/config"
	"github.com/GoPowerDNS-Admin/oidc-rp/internal/db/models"
	"github.com/GoPowerDNS-Admin/oidc-rp/internal/oidc/oidctest"
	"github.com/GoPowerDNS-Admin/oidc-rp/internal/web/cookie"
	"github.com/GoPowerDNS-Admin/oidc-rp/internal/web/handler"
	"github.com/GoPowerDNS-Admin/oidc-rp/internal/web/session"
)

// RedirectURI is the redirect URI configured for the fake provider.
const RedirectURI = "http://localhost:8080/callback"

// Views is a fiber Views engine writing the template name followed by all
// string values of the bound fiber.Map as "key: value" lines.
type Views struct{}

// Load implements fiber.Views.
func (Views) Load() error { return nil }

// Render implements fiber.Views.
func (Views) Render(w io.Writer, name string, data any, _ ...string) error {
	_, _ = io.WriteString(w, name+"\n")

	m, ok := data.(fiber.Map)
	if !ok {
		return nil
	}

	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}

	slices.Sort(keys)

	for _, k := range keys {
		if v, ok := m[k].(string); ok {
			_, _ = fmt.Fprintf(w, "%s: %s\n", k, v)
		}
	}

	return nil
}

// Env is a wired test environment.
type Env struct {
	Provider *oidctest.Provider
	App      *fiber.App
	DB       *gorm.DB
	Sessions *session.Manager
	Deps     *handler.Deps
}

// New creates an Env. Handlers register themselves on Env.App.
func New(t *testing.T) *Env {
	t.Helper()

	orig := models.SubjectHashParams
	models.SubjectHashParams = &argon2id.Params{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}

	t.Cleanup(func() { models.SubjectHashParams = orig })

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&models.User{}))

	p := oidctest.New(t)

	cfg := &config.Config{
		Title: "Test",
		Webserver: config.Webserver{
			Port:          8080,
			URL:           "http://localhost:8080",
			AuthCookieTTL: 5 * time.Minute,
			Session:       config.Session{ExpiryTime: time.Hour},
		},
		OIDC: config.OIDC{
			ClientID:          oidctest.ClientID,
			ClientSecret:      oidctest.ClientSecret,
			Audience:          p.URL(),
			Issuer:            p.URL(),
			RedirectURI:       RedirectURI,
			Scopes:            []string{"openid", "profile", "email"},
			DiscoveryPath:     config.DefaultDiscoveryPath,
			DiscoveryTTL:      time.Hour,
			DiscoveryMaxStale: 24 * time.Hour,
			HTTPTimeout:       5 * time.Second,
			ClockSkew:         2 * time.Minute,
		},
	}

	sessions := session.New(nil, cfg.Webserver.Session.ExpiryTime)

	return &Env{
		Provider: p,
		App:      fiber.New(fiber.Config{Views: Views{}}),
		DB:       db,
		Sessions: sessions,
		Deps: &handler.Deps{
			Cfg:      cfg,
			RP:       auth.NewRelyingParty(&cfg.OIDC, auth.NewIdentityResolver(db), p.Client()),
			Sessions: sessions,
			Cookies:  cookie.New(false),
		},
	}
}

// Login runs a successful callback against the provider and stores the
// session. It returns the session ID.
func (e *Env) Login(t *testing.T) string {
	t.Helper()

	e.Provider.SetNonce("n")

	res := e.Deps.RP.HandleCallback(context.Background(), auth.CallbackInput{
		Code:        oidctest.Code,
		State:       "s",
		CookieState: "s",
		CookieNonce: "n",
	})
	require.NoError(t, res.Err)

	id, err := e.Sessions.Create(&session.Data{
		Tokens:   res.Tokens,
		UserID:   res.User.ID,
		Username: res.User.Username,
	})
	require.NoError(t, err)

	return id
}

// Do sends req with the given cookies.
func (e *Env) Do(t *testing.T, req *http.Request, cookies map[string]string) *http.Response {
	t.Helper()

	for name, value := range cookies {
		req.AddCookie(&http.Cookie{Name: name, Value: value})
	}

	resp, err := e.App.Test(req, -1)
	require.NoError(t, err)

	return resp
}

// Body reads the response body.
func Body(t *testing.T, resp *http.Response) string {
	t.Helper()

	defer func() {
		_ = resp.Body.Close()
	}()

	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return string(b)
}

// Cookies returns the Set-Cookie headers of resp by name.
func Cookies(resp *http.Response) map[string]*http.Cookie {
	out := make(map[string]*http.Cookie)
	for _, c := range resp.Cookies() {
		out[c.Name] = c
	}

	return out
}

// Cleared reports whether resp expires the cookie name.
func Cleared(resp *http.Response, name string) bool {
	c, ok := Cookies(resp)[name]

	return ok && c.Value == "" && c.Expires.Before(time.Now())
}
