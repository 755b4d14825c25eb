// Package main provides the entry point of oidc-rp, a web service acting as
// OpenID Connect relying party. It logs users in with the authorization code
// flow of a single provider, validates the returned ID token, keeps the
// tokens in a server side session and forwards userinfo, introspection and
// revocation calls for the session's access token.
package main
