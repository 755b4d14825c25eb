package auth

import "errors"

var (
	// ErrStateMismatch is returned when the callback state does not equal the state cookie.
	ErrStateMismatch = errors.New("state mismatch")

	// ErrNoIDToken is returned when the token response doesn't contain an ID token.
	ErrNoIDToken = errors.New("no id_token in token response")

	// ErrProviderError is returned when the provider redirected back with an error parameter.
	ErrProviderError = errors.New("provider returned an error")

	// ErrIdentityClaims is returned when the claims lack sub or email.
	ErrIdentityClaims = errors.New("claims lack sub or email")

	// ErrIdentityConflict is returned when the email is bound to a different subject.
	ErrIdentityConflict = errors.New("email is bound to another subject")

	// ErrUserAccountDisabled is returned when the resolved identity is inactive.
	ErrUserAccountDisabled = errors.New("user account is disabled")

	// ErrNoEndpoint is returned when the provider publishes no endpoint for a call.
	ErrNoEndpoint = errors.New("provider publishes no endpoint")
)
