package validator

import (
	"errors"
)

var (
	// ErrValidation wraps every ID token rejection.
	ErrValidation = errors.New("id token validation failed")

	// ErrMalformed is returned for tokens that are no JWS or carry no JSON claims.
	ErrMalformed = errors.New("malformed token")
	// ErrSignature is returned when no published key verifies the signature.
	ErrSignature = errors.New("invalid signature")
	// ErrIssuer is returned when iss does not equal the configured issuer.
	ErrIssuer = errors.New("issuer mismatch")
	// ErrAudience is returned when aud does not contain the client id.
	ErrAudience = errors.New("audience mismatch")
	// ErrExpired is returned when exp is missing or not in the future.
	ErrExpired = errors.New("token expired")
	// ErrIssuedInFuture is returned when iat lies beyond the allowed clock skew.
	ErrIssuedInFuture = errors.New("token issued in the future")
	// ErrNonce is returned when the nonce claim does not equal the expected nonce.
	ErrNonce = errors.New("nonce mismatch")
)

var reasons = []struct {
	err   error
	label string
}{
	{ErrMalformed, "malformed"},
	{ErrSignature, "signature"},
	{ErrIssuer, "issuer"},
	{ErrAudience, "audience"},
	{ErrExpired, "expired"},
	{ErrIssuedInFuture, "issued_in_future"},
	{ErrNonce, "nonce"},
}

// Reason returns a short label for the rejection reason of err, e.g. "nonce".
func Reason(err error) string {
	for _, r := range reasons {
		if errors.Is(err, r.err) {
			return r.label
		}
	}

	return "unknown"
}
