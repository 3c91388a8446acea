// Package models defines the domain types shared by the repositories, the upstream client, and the web handlers.
//
//   - [Credential] : stored OAuth2 access/refresh token pair and expiry for one user
//   - [Playlist] : playlist metadata, one row per YouTube playlist id
//   - [PlaylistVideo] : one item of a playlist, ordered by position
//   - [Channel] : public channel metadata
//   - [UserProfile] : the signed-in user's channel snippet
//
// Optional upstream fields are pointers so they serialize as JSON null instead of being omitted.
package models
