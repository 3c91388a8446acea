package models

import (
	"errors"
	"time"
)

// RefreshMargin is how long before expiry an access token is already treated as expired.
const RefreshMargin = 5 * time.Minute

// Credential is the stored OAuth2 token pair for a user.
type Credential struct {
	UserID       string
	AccessToken  string
	RefreshToken *string
	ExpiryDate   *int64 // epoch milliseconds
}

// Validate checks required fields.
func (c *Credential) Validate() error {
	if c.UserID == "" {
		return errors.New("user id is required")
	}
	if c.AccessToken == "" {
		return errors.New("access token is required")
	}
	return nil
}

// Expired reports whether the access token should be refreshed at time now.
//
// A credential with no recorded expiry is always expired.
func (c *Credential) Expired(now time.Time) bool {
	if c.ExpiryDate == nil {
		return true
	}
	expiry := time.UnixMilli(*c.ExpiryDate)
	return !now.Before(expiry.Add(-RefreshMargin))
}

// HasRefreshToken reports whether a non-empty refresh token is stored.
func (c *Credential) HasRefreshToken() bool {
	return c.RefreshToken != nil && *c.RefreshToken != ""
}

// Expiry returns the expiry as a [time.Time], or the zero time when unknown.
func (c *Credential) Expiry() time.Time {
	if c.ExpiryDate == nil {
		return time.Time{}
	}
	return time.UnixMilli(*c.ExpiryDate)
}

// Playlist is normalized playlist metadata.
type Playlist struct {
	ID           string  `json:"id"`
	OwnerUserID  string  `json:"-"`
	Title        string  `json:"title"`
	Description  *string `json:"description"`
	ThumbnailURL *string `json:"thumbnailUrl"`
	VideoCount   int64   `json:"itemCount"`
}

// Validate checks required fields.
func (p *Playlist) Validate() error {
	if p.ID == "" {
		return errors.New("playlist id is required")
	}
	if p.OwnerUserID == "" {
		return errors.New("playlist owner is required")
	}
	return nil
}

// PlaylistVideo is one item of a playlist.
type PlaylistVideo struct {
	ID           string  `json:"id"`
	PlaylistID   string  `json:"-"`
	Title        string  `json:"title"`
	Description  *string `json:"description"`
	ThumbnailURL *string `json:"thumbnailUrl"`
	VideoID      string  `json:"videoId"`
	Position     int64   `json:"position"`
}

// Complete reports whether the item has the fields required to cache it.
func (v *PlaylistVideo) Complete() bool {
	return v.ID != "" && v.Title != "" && v.VideoID != ""
}

// Channel is public channel metadata.
type Channel struct {
	ID              string  `json:"id"`
	Title           string  `json:"title"`
	Description     *string `json:"description"`
	CustomURL       *string `json:"customUrl"`
	ThumbnailURL    *string `json:"thumbnailUrl"`
	SubscriberCount uint64  `json:"subscriberCount"`
	VideoCount      uint64  `json:"videoCount"`
	ViewCount       uint64  `json:"viewCount"`
}

// Thumbnail is a single image rendition.
type Thumbnail struct {
	URL    string `json:"url"`
	Width  int64  `json:"width"`
	Height int64  `json:"height"`
}

// Thumbnails holds the renditions exposed to clients.
type Thumbnails struct {
	Default *Thumbnail `json:"default,omitempty"`
	Medium  *Thumbnail `json:"medium,omitempty"`
}

// UserProfile is the snippet of the signed-in user's channel.
type UserProfile struct {
	ChannelID  string     `json:"-"`
	Title      string     `json:"title"`
	Thumbnails Thumbnails `json:"thumbnails"`
}

// PlaylistPage is one page of a playlist listing.
type PlaylistPage struct {
	Items         []Playlist `json:"items"`
	NextPageToken *string    `json:"nextPageToken"`
	PrevPageToken *string    `json:"prevPageToken"`
	TotalResults  int64      `json:"totalResults"`
}

// VideoPage is one page of a playlist's videos.
type VideoPage struct {
	Items         []PlaylistVideo `json:"items"`
	NextPageToken *string         `json:"nextPageToken"`
	TotalResults  int64           `json:"totalResults"`
	Cached        bool            `json:"cached"`
}

// StringPtr returns nil for the empty string and a pointer to s otherwise.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// StringValue dereferences p, returning "" for nil.
func StringValue(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

// PlaylistExport is a cached playlist with its videos in position order.
type PlaylistExport struct {
	Playlist Playlist        `json:"playlist"`
	Videos   []PlaylistVideo `json:"videos"`
}

// WatchURL returns the YouTube watch page for a video id.
func WatchURL(videoID string) string {
	return "https://www.youtube.com/watch?v=" + videoID
}
