// Package services talks to Google: the YouTube Data API v3 and the Google OAuth2 token endpoint.
//
// # Upstream
//
// [YouTubeService] implements [Upstream] on top of google.golang.org/api/youtube/v3. Every call is
// authorized by an [Auth] value that carries either a user's bearer token or the application API key,
// never both. Responses are normalized to the types in the models package: optional fields become nil
// rather than empty strings, and thumbnails prefer the medium rendition, then default, then high.
//
// Failures are mapped onto the shared error taxonomy:
//   - 401: [shared.ErrAuthExpired]
//   - 403: [shared.ErrQuotaOrPermission]
//   - 404 or an empty lookup: [shared.ErrNotFound]
//   - 5xx, timeouts, transport failures: [shared.ErrUpstreamUnavailable]
//
// Only [shared.ErrUpstreamUnavailable] is retried, with a doubling delay. A token bucket paces calls
// so a burst of page loads does not burn through the daily quota.
//
// # Authentication
//
// [GoogleAuth] wraps an [oauth2.Config] for the consent URL, the code exchange, and the refresh grant.
// [TokenRefresher] decides when a stored access token is stale and persists the refreshed pair.
package services
