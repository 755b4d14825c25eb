// Package uniuri generates cryptographically secure random strings.
// The relying party uses them for the state and nonce values of an
// authorization request and for server side session identifiers.
package uniuri
