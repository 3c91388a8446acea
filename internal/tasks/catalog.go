package tasks

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/ytpl/internal/models"
	"github.com/desertthunder/ytpl/internal/services"
	"github.com/desertthunder/ytpl/internal/shared"
)

const (
	channelIDPrefix         = "UC"
	defaultWriteBackTimeout = 30 * time.Second
)

// TokenSource resolves a valid access token for a user.
type TokenSource interface {
	GetValidAccessToken(ctx context.Context, userID string) (string, error)
}

// PlaylistStore persists playlist metadata.
type PlaylistStore interface {
	Upsert(ctx context.Context, p *models.Playlist) error
	UpsertMany(ctx context.Context, ownerID string, playlists []models.Playlist) error
	Ensure(ctx context.Context, id, ownerID string, videoCount int64) error
}

// VideoStore persists playlist items.
type VideoStore interface {
	List(ctx context.Context, playlistID string) ([]models.PlaylistVideo, error)
	Replace(ctx context.Context, playlistID string, videos []models.PlaylistVideo) (int, error)
}

// CatalogConfig wires a [Catalog].
type CatalogConfig struct {
	Upstream  services.Upstream
	Tokens    TokenSource
	Playlists PlaylistStore
	Videos    VideoStore
	APIKey    string // used for public channel lookups

	SyncWriteBack    bool
	WriteBackTimeout time.Duration
	Logger           *log.Logger
}

// Catalog serves playlists, videos, channels, and profiles, reading through the local cache.
type Catalog struct {
	upstream  services.Upstream
	tokens    TokenSource
	playlists PlaylistStore
	videos    VideoStore
	apiKey    string

	syncWriteBack    bool
	writeBackTimeout time.Duration
	logger           *log.Logger

	wg sync.WaitGroup
}

// NewCatalog creates a [Catalog].
func NewCatalog(cfg CatalogConfig) *Catalog {
	timeout := cfg.WriteBackTimeout
	if timeout <= 0 {
		timeout = defaultWriteBackTimeout
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &Catalog{
		upstream:         cfg.Upstream,
		tokens:           cfg.Tokens,
		playlists:        cfg.Playlists,
		videos:           cfg.Videos,
		apiKey:           cfg.APIKey,
		syncWriteBack:    cfg.SyncWriteBack,
		writeBackTimeout: timeout,
		logger:           logger,
	}
}

// ValidChannelID reports whether id follows the YouTube channel id convention.
func ValidChannelID(id string) bool {
	return strings.HasPrefix(id, channelIDPrefix) && len(id) > len(channelIDPrefix)
}

// PlaylistVideos returns one page of a playlist's videos for userID.
//
// Without a page token, cached rows are returned when present. Otherwise the page is fetched upstream
// and written back to the cache without blocking the caller.
//
// Cached responses never carry a nextPageToken and report TotalResults as the number of cached rows;
// clients page past the cached snapshot by sending a pageToken explicitly.
func (c *Catalog) PlaylistVideos(ctx context.Context, userID, playlistID, pageToken string) (*models.VideoPage, error) {
	token, err := c.tokens.GetValidAccessToken(ctx, userID)
	if err != nil {
		return nil, err
	}

	if pageToken == "" {
		cached, err := c.videos.List(ctx, playlistID)
		switch {
		case err != nil:
			c.logger.Warn("cache read failed, fetching upstream", "playlist", playlistID, "error", err)
		case len(cached) > 0:
			c.logger.Debug("serving playlist from cache", "playlist", playlistID, "count", len(cached))
			return &models.VideoPage{
				Items:        cached,
				TotalResults: int64(len(cached)),
				Cached:       true,
			}, nil
		}
	}

	auth := services.UserAuth(token)
	page, err := c.upstream.PlaylistItems(ctx, auth, playlistID, pageToken)
	if err != nil {
		return nil, err
	}

	items := append([]models.PlaylistVideo(nil), page.Items...)
	c.background(ctx, "playlist write-back", func(ctx context.Context) {
		c.storePlaylist(ctx, userID, auth, playlistID, items)
	})
	return page, nil
}

// MyPlaylists returns one page of the playlists owned by userID and records them in the cache.
func (c *Catalog) MyPlaylists(ctx context.Context, userID, pageToken string) (*models.PlaylistPage, error) {
	token, err := c.tokens.GetValidAccessToken(ctx, userID)
	if err != nil {
		return nil, err
	}

	page, err := c.upstream.MyPlaylists(ctx, services.UserAuth(token), pageToken)
	if err != nil {
		return nil, err
	}

	if len(page.Items) > 0 {
		playlists := append([]models.Playlist(nil), page.Items...)
		c.background(ctx, "playlists write-back", func(ctx context.Context) {
			if err := c.playlists.UpsertMany(ctx, userID, playlists); err != nil {
				c.logger.Error("failed to cache playlists", "user", userID, "error", err)
			}
		})
	}
	return page, nil
}

// ChannelPlaylists returns one page of a channel's public playlists using the application API key.
func (c *Catalog) ChannelPlaylists(ctx context.Context, channelID, pageToken string) (*models.PlaylistPage, error) {
	auth, err := c.publicAuth(channelID)
	if err != nil {
		return nil, err
	}
	return c.upstream.ChannelPlaylists(ctx, auth, channelID, pageToken)
}

// Channel returns public metadata for channelID using the application API key.
func (c *Catalog) Channel(ctx context.Context, channelID string) (*models.Channel, error) {
	auth, err := c.publicAuth(channelID)
	if err != nil {
		return nil, err
	}
	return c.upstream.Channel(ctx, auth, channelID)
}

// Profile returns the channel snippet of userID.
func (c *Catalog) Profile(ctx context.Context, userID string) (*models.UserProfile, error) {
	token, err := c.tokens.GetValidAccessToken(ctx, userID)
	if err != nil {
		return nil, err
	}
	return c.upstream.MyChannel(ctx, services.UserAuth(token))
}

// Wait blocks until every background write-back has finished.
func (c *Catalog) Wait() {
	c.wg.Wait()
}

func (c *Catalog) publicAuth(channelID string) (services.Auth, error) {
	if !ValidChannelID(channelID) {
		return services.Auth{}, shared.NewValidationError("Invalid channel ID format")
	}
	if c.apiKey == "" {
		return services.Auth{}, fmt.Errorf("%w: youtube api key not configured", shared.ErrMissingCredentials)
	}
	return services.KeyAuth(c.apiKey), nil
}

// storePlaylist upserts playlist metadata, then replaces the cached videos.
//
// When the metadata cannot be fetched or stored (LL and WL have none), a placeholder row is
// ensured instead so the videos still have a parent.
func (c *Catalog) storePlaylist(ctx context.Context, userID string, auth services.Auth, playlistID string, items []models.PlaylistVideo) {
	logger := shared.WithLogger(c.logger, "playlist", playlistID)

	stored := false
	meta, err := c.upstream.Playlist(ctx, auth, playlistID)
	if err != nil {
		logger.Warn("failed to fetch playlist metadata", "error", err)
	} else {
		meta.OwnerUserID = userID
		if err := c.playlists.Upsert(ctx, meta); err != nil {
			logger.Warn("failed to cache playlist metadata", "error", err)
		} else {
			stored = true
		}
	}

	if !stored {
		if err := c.playlists.Ensure(ctx, playlistID, userID, int64(len(items))); err != nil {
			logger.Warn("failed to ensure playlist row", "error", err)
		}
	}

	n, err := c.videos.Replace(ctx, playlistID, items)
	if err != nil {
		logger.Error("failed to cache playlist videos", "error", err)
		return
	}
	logger.Debug("cached playlist videos", "count", n)
}

// background runs fn on a context detached from ctx's cancellation, inline when
// write-backs are configured synchronous and on a tracked goroutine otherwise.
func (c *Catalog) background(ctx context.Context, name string, fn func(context.Context)) {
	run := func() {
		defer func() {
			if r := recover(); r != nil {
				c.logger.Error("background task panicked", "task", name, "panic", r)
			}
		}()

		bctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.writeBackTimeout)
		defer cancel()
		fn(bctx)
	}

	if c.syncWriteBack {
		run()
		return
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		run()
	}()
}
