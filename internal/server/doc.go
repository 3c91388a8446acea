// Package server provides HTTP routing, middleware, signed sessions, and the Google sign-in flow.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
//
// The [BasicRouter] implementation uses [http.ServeMux] method patterns ("GET /playlists/{playlistId}/videos").
//
// # Sessions
//
// [Sessions] signs a cookie holding the user id with HMAC-SHA256. Handlers that need a user are wrapped
// with [Sessions.Require], which passes the verified [Session] as an argument rather than through the
// request context.
//
// # OAuth Handler
//
// [OAuthHandler] serves /auth/url, /auth/login, /auth/callback and /auth/logout. The callback validates
// the state cookie (CSRF protection), exchanges the authorization code, stores the credential keyed by
// the user's channel id, sets the session cookie and redirects.
//
// Completed callbacks are also published on [OAuthHandler.Logins], which lets the CLI run a temporary
// server, wait for one sign-in, and shut down.
//
// # Handler Interface
//
// Custom handlers implement the [Handler] interface, which wraps the stdlib handler interface and adds routes,
// allowing handlers to register multiple routes to encapsulate route definitions within the implementation.
package server
