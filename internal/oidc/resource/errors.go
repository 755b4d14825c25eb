package resource

import "errors"

// ErrResourceCall is returned when a userinfo, introspection or revocation call fails.
var ErrResourceCall = errors.New("resource call failed")
