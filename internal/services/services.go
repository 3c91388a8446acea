package services

import (
	"context"
	"fmt"

	"github.com/desertthunder/ytpl/internal/models"
	"github.com/desertthunder/ytpl/internal/shared"
	"golang.org/x/oauth2"
)

// Upstream is the read-only slice of the YouTube Data API the catalog depends on.
type Upstream interface {
	// MyPlaylists lists playlists owned by the user behind auth.
	MyPlaylists(ctx context.Context, auth Auth, pageToken string) (*models.PlaylistPage, error)

	// ChannelPlaylists lists the public playlists of a channel.
	ChannelPlaylists(ctx context.Context, auth Auth, channelID, pageToken string) (*models.PlaylistPage, error)

	// Playlist fetches metadata for one playlist.
	Playlist(ctx context.Context, auth Auth, playlistID string) (*models.Playlist, error)

	// PlaylistItems fetches one page of a playlist's videos.
	PlaylistItems(ctx context.Context, auth Auth, playlistID, pageToken string) (*models.VideoPage, error)

	// Channel fetches public channel metadata.
	Channel(ctx context.Context, auth Auth, channelID string) (*models.Channel, error)

	// MyChannel fetches the channel of the user behind auth.
	MyChannel(ctx context.Context, auth Auth) (*models.UserProfile, error)
}

// Authenticator performs the OAuth2 authorization code flow against Google.
type Authenticator interface {
	// AuthCodeURL returns the consent page URL carrying state.
	AuthCodeURL(state string) string

	// Exchange trades an authorization code for a token.
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)

	// Refresh runs the refresh-token grant.
	Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error)
}

// Auth selects how an upstream call is authorized.
//
// Use [UserAuth] or [KeyAuth]; exactly one field is set.
type Auth struct {
	AccessToken string
	APIKey      string
}

// UserAuth authorizes calls with a user's OAuth2 access token.
func UserAuth(accessToken string) Auth {
	return Auth{AccessToken: accessToken}
}

// KeyAuth authorizes calls with the application API key.
func KeyAuth(apiKey string) Auth {
	return Auth{APIKey: apiKey}
}

// IsUser reports whether the call acts on behalf of a signed-in user.
func (a Auth) IsUser() bool {
	return a.AccessToken != ""
}

func (a Auth) validate() error {
	switch {
	case a.AccessToken != "" && a.APIKey != "":
		return fmt.Errorf("%w: both access token and API key set", shared.ErrInvalidArgument)
	case a.AccessToken == "" && a.APIKey == "":
		return fmt.Errorf("%w: no access token or API key", shared.ErrMissingCredentials)
	}
	return nil
}
