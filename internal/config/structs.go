package config

import (
	"time"

	"github.com/GoPowerDNS-Admin/oidc-rp/internal/logger"
)

// Session settings.
type Session struct {
	ExpiryTime time.Duration
}

// Config overall data structure.
type Config struct {
	DevMode   bool // enable dev mode for development
	DB        DB
	Log       logger.Log
	Title     string
	Webserver Webserver
	OIDC      OIDC
}

// Webserver implement webserver settings.
type Webserver struct {
	DisableRecover      bool          // disable recover middleware
	Domain              string        // domain name for the webserver
	Port                int           // listening port for the webserver
	ShutDownTime        int           // wait time for shutdown
	URL                 string        // base url for the webserver
	CookieEncryptionKey string        // base64 key for the encrypt cookie middleware, empty disables it
	AuthCookieTTL       time.Duration // lifetime of the oauth-state/oauth-nonce cookies
	Session             Session       // session settings
}

// OIDC is the relying party configuration for the single identity provider.
// It is read once at startup and must not be modified afterwards.
type OIDC struct {
	ClientID     string `validate:"required"`
	ClientSecret string
	Audience     string   `validate:"required,url"` // issuer base url the discovery document is fetched from
	Issuer       string   `validate:"omitempty,url"`
	RedirectURI  string   `validate:"required,url"`
	Scopes       []string `validate:"omitempty,dive,required"`
	IDP          string   // optional identity provider selector forwarded as "idp"

	DiscoveryPath     string
	DiscoveryTTL      time.Duration
	DiscoveryMaxStale time.Duration
	HTTPTimeout       time.Duration
	ClockSkew         time.Duration

	// EndSessionLogout redirects to the provider end_session_endpoint on logout.
	EndSessionLogout bool
}
