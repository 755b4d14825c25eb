package token

import "errors"

// ErrExchange is returned when the provider rejects the code or the token endpoint is unreachable.
var ErrExchange = errors.New("token exchange failed")
