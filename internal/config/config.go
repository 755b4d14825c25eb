// Package config handles input from etc/*.toml files
package config

import (
	"bytes"
	"encoding/json"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
)

const (
	// EnvConfigJSON holds a JSON document merged over the TOML config.
	EnvConfigJSON = "OIDC_RP_CONFIG_JSON"

	// EnvClientSecret overrides OIDC.ClientSecret so it never has to live in a file.
	EnvClientSecret = "OIDC_RP_CLIENT_SECRET" //nolint:gosec // env var name, not a secret

	// DefaultDiscoveryPath is appended to the audience to fetch provider metadata.
	DefaultDiscoveryPath = "/.well-known/openid-configuration"
)

// ReadConfig from config file.
func ReadConfig(path string) (Config, error) {
	var (
		c             Config
		JSONConfigEnv string
		err           error
	)

	// Read main configuration
	if path == "" {
		path = "./etc/"
	}

	if _, err = toml.DecodeFile(path+"main.toml", &c); err != nil {
		return Config{}, errors.Wrap(err, "failed to read main config file")
	}

	// override it from env
	JSONConfigEnv = os.Getenv(EnvConfigJSON)

	if JSONConfigEnv != "" {
		c, err = decodeAndMergeConfig(c, JSONConfigEnv)
		if err != nil {
			return c, err
		}
	}

	if secret := os.Getenv(EnvClientSecret); secret != "" {
		c.OIDC.ClientSecret = secret
	}

	err = validate(&c)

	return c, err
}

func decodeAndMergeConfig(c Config, configAsJSON string) (Config, error) {
	err := json.Unmarshal([]byte(configAsJSON), &c)
	if err != nil {
		return Config{}, errors.Wrap(err, "failed to decode json config override")
	}

	return c, nil
}

// DumpConfig config as TOML String.
func DumpConfig(c *Config) (string, error) {
	var buffer bytes.Buffer
	t := toml.NewEncoder(&buffer)

	if err := t.Encode(c.redacted()); err != nil {
		return "", err //nolint: wrapcheck
	}

	return buffer.String(), nil
}

// DumpConfigJSON config as JSON String.
func DumpConfigJSON(c *Config) (string, error) {
	var buffer bytes.Buffer
	j := json.NewEncoder(&buffer)
	j.SetIndent("", "  ")

	if err := j.Encode(c.redacted()); err != nil {
		return "", err //nolint: wrapcheck
	}

	return buffer.String(), nil
}

// redacted returns a copy safe for printing.
func (c *Config) redacted() Config {
	out := *c
	if out.OIDC.ClientSecret != "" {
		out.OIDC.ClientSecret = "*****"
	}

	if out.DB.Password != "" {
		out.DB.Password = "*****"
	}

	out.Webserver.CookieEncryptionKey = ""

	return out
}

// validate the config and fill in defaults.
func validate(c *Config) error {
	invalidErrMessage := "invalid config"

	if c.Webserver.Port == 0 {
		return errors.Wrap(ErrWebServerPortCanNotBeZero, invalidErrMessage)
	}

	if c.Webserver.URL == "" {
		return errors.Wrap(ErrEmptyURL, invalidErrMessage)
	}

	if c.Webserver.ShutDownTime == 0 {
		c.Webserver.ShutDownTime = 5 // set default of 5 seconds
	}

	if c.Webserver.Session.ExpiryTime == 0 {
		c.Webserver.Session.ExpiryTime = time.Hour
	}

	if c.Webserver.AuthCookieTTL == 0 {
		c.Webserver.AuthCookieTTL = 5 * time.Minute
	}

	if err := validator.New().Struct(c.OIDC); err != nil {
		return errors.Wrap(err, "invalid oidc config")
	}

	c.OIDC.applyDefaults()

	if !strings.HasPrefix(c.OIDC.DiscoveryPath, "/") {
		return errors.Wrap(ErrInvalidDiscoveryPath, invalidErrMessage)
	}

	return nil
}

// applyDefaults fills optional provider settings.
func (o *OIDC) applyDefaults() {
	o.Audience = strings.TrimSuffix(o.Audience, "/")

	if o.Issuer == "" {
		o.Issuer = o.Audience
	}

	if len(o.Scopes) == 0 {
		o.Scopes = []string{"openid", "profile", "email"}
	}

	if o.DiscoveryPath == "" {
		o.DiscoveryPath = DefaultDiscoveryPath
	}

	if o.DiscoveryTTL == 0 {
		o.DiscoveryTTL = time.Hour
	}

	if o.DiscoveryMaxStale == 0 {
		o.DiscoveryMaxStale = 24 * time.Hour
	}

	if o.HTTPTimeout == 0 {
		o.HTTPTimeout = 10 * time.Second
	}

	if o.ClockSkew == 0 {
		o.ClockSkew = 2 * time.Minute
	}
}
