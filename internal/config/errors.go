package config

import (
	"errors"
)

var (
	// ErrNilConfig is returned when a nil config is passed.
	ErrNilConfig = errors.New("config is nil")

	// ErrEmptyURL error if config webserver.URL is empty.
	ErrEmptyURL = errors.New("toml config webserver.url can not be empty")

	// ErrWebServerPortCanNotBeZero error if config webserver listening port is 0.
	ErrWebServerPortCanNotBeZero = errors.New("toml config webserver.port listening port can not be 0")

	// ErrInvalidDiscoveryPath error if oidc.discoveryPath does not start with a slash.
	ErrInvalidDiscoveryPath = errors.New("toml config oidc.discoveryPath must start with /")
)
