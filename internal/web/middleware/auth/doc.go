// Package auth provides the session middleware of the web application.
//
// RequireAuthenticatedSession reads the "session" cookie, loads the session
// and rejects requests without an authenticated session:
//   - GET requests are redirected to the login page
//   - other methods get 401
//
// On success the session, its ID and the username are stored in
// fiber.Locals for handlers, templates and the access log.
//
// Usage:
//
//	app.Get("/", authmiddleware.RequireAuthenticatedSession(sessions), home)
package auth
