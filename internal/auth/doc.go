// Package auth drives the OpenID Connect authorization code flow of the
// relying party.
//
// RelyingParty builds authorization requests and handles the callback:
//
//	state check -> discovery -> code exchange -> ID token validation -> identity
//
// Every callback yields a CallbackResult tagged with an Outcome. Only
// OutcomeAuthenticated carries a token set and a user; every other outcome
// carries the error explaining it and must not lead to a session.
//
// IdentityResolver materializes the local user for validated claims. The
// gorm backed resolver looks users up by email and binds them to the
// argon2id hash of the subject on first login.
//
// After login RelyingParty forwards userinfo, introspection and revocation
// calls to the endpoints published in the discovery document.
package auth
