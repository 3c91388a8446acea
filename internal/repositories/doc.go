// Package repositories implements SQL persistence for credentials and the playlist cache.
//
// Key Implementations:
//   - [CredentialRepository] : one OAuth credential row per user, upserted so a missing refresh token keeps the stored one
//   - [PlaylistRepository] : playlist metadata deduplicated by YouTube playlist id
//   - [VideoRepository] : playlist items, replaced wholesale per playlist inside one transaction
//
// Queries are written with "?" placeholders and rebound by [shared.Database] for the active driver.
// Failures are wrapped with [shared.ErrStorage]; missing rows map to [shared.ErrNoCredential] or [shared.ErrNotFound].
package repositories
