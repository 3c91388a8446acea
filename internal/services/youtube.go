package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/ytpl/internal/models"
	"github.com/desertthunder/ytpl/internal/shared"
	"golang.org/x/time/rate"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"
)

const defaultPageSize int64 = 50

var (
	playlistParts = []string{"snippet", "contentDetails"}
	itemParts     = []string{"snippet", "contentDetails"}
	channelParts  = []string{"snippet", "statistics"}
)

// YouTubeOptions configures a [YouTubeService].
type YouTubeOptions struct {
	BaseURL           string // API root, empty for the public Google endpoint
	HTTPClient        *http.Client
	Timeout           time.Duration
	RequestsPerSecond float64 // zero or less disables pacing
	MaxRetries        int
	RetryDelay        time.Duration
	PageSize          int64
	Logger            *log.Logger
}

// YouTubeOptionsFromConfig maps the upstream section of the config file onto [YouTubeOptions].
func YouTubeOptionsFromConfig(cfg shared.UpstreamConfig, logger *log.Logger) YouTubeOptions {
	return YouTubeOptions{
		BaseURL:           cfg.BaseURL,
		Timeout:           cfg.Timeout,
		RequestsPerSecond: cfg.RequestsPerSecond,
		MaxRetries:        cfg.MaxRetries,
		RetryDelay:        cfg.RetryDelay,
		PageSize:          cfg.PageSize,
		Logger:            logger,
	}
}

// YouTubeService implements [Upstream] with the YouTube Data API v3 client.
type YouTubeService struct {
	yt         *youtube.Service
	limiter    *rate.Limiter
	maxRetries int
	retryDelay time.Duration
	pageSize   int64
	logger     *log.Logger
}

// NewYouTubeService builds the API client.
//
// Credentials are attached per call from an [Auth] value, so the underlying HTTP client carries none.
func NewYouTubeService(ctx context.Context, opts YouTubeOptions) (*YouTubeService, error) {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}

	clientOpts := []option.ClientOption{option.WithHTTPClient(client)}
	if opts.BaseURL != "" {
		clientOpts = append(clientOpts, option.WithEndpoint(strings.TrimRight(opts.BaseURL, "/")+"/"))
	}

	yt, err := youtube.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create youtube client: %w", err)
	}

	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}

	pageSize := opts.PageSize
	if pageSize <= 0 || pageSize > defaultPageSize {
		pageSize = defaultPageSize
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &YouTubeService{
		yt:         yt,
		limiter:    rate.NewLimiter(limit, 1),
		maxRetries: max(opts.MaxRetries, 0),
		retryDelay: opts.RetryDelay,
		pageSize:   pageSize,
		logger:     logger,
	}, nil
}

// MyPlaylists lists playlists owned by the user behind auth.
func (s *YouTubeService) MyPlaylists(ctx context.Context, auth Auth, pageToken string) (*models.PlaylistPage, error) {
	if !auth.IsUser() {
		return nil, fmt.Errorf("%w: own playlists need a user token", shared.ErrReauthRequired)
	}

	call := s.yt.Playlists.List(playlistParts).Mine(true).MaxResults(s.pageSize).Context(ctx)
	if pageToken != "" {
		call = call.PageToken(pageToken)
	}

	resp, err := execute(ctx, s, auth, "playlists.mine", call.Header(), call.Do)
	if err != nil {
		return nil, err
	}
	return playlistPage(resp), nil
}

// ChannelPlaylists lists the public playlists of channelID.
func (s *YouTubeService) ChannelPlaylists(ctx context.Context, auth Auth, channelID, pageToken string) (*models.PlaylistPage, error) {
	call := s.yt.Playlists.List(playlistParts).ChannelId(channelID).MaxResults(s.pageSize).Context(ctx)
	if pageToken != "" {
		call = call.PageToken(pageToken)
	}

	resp, err := execute(ctx, s, auth, "playlists.channel", call.Header(), call.Do)
	if err != nil {
		return nil, err
	}
	return playlistPage(resp), nil
}

// Playlist fetches metadata for playlistID.
func (s *YouTubeService) Playlist(ctx context.Context, auth Auth, playlistID string) (*models.Playlist, error) {
	call := s.yt.Playlists.List(playlistParts).Id(playlistID).Context(ctx)

	resp, err := execute(ctx, s, auth, "playlists.get", call.Header(), call.Do)
	if err != nil {
		return nil, err
	}
	if len(resp.Items) == 0 || resp.Items[0] == nil {
		return nil, fmt.Errorf("%w: playlist %s", shared.ErrNotFound, playlistID)
	}

	p := convertPlaylist(resp.Items[0])
	return &p, nil
}

// PlaylistItems fetches one page of playlistID's videos.
func (s *YouTubeService) PlaylistItems(ctx context.Context, auth Auth, playlistID, pageToken string) (*models.VideoPage, error) {
	call := s.yt.PlaylistItems.List(itemParts).PlaylistId(playlistID).MaxResults(s.pageSize).Context(ctx)
	if pageToken != "" {
		call = call.PageToken(pageToken)
	}

	resp, err := execute(ctx, s, auth, "playlistItems", call.Header(), call.Do)
	if err != nil {
		return nil, err
	}

	page := &models.VideoPage{
		Items:         make([]models.PlaylistVideo, 0, len(resp.Items)),
		NextPageToken: models.StringPtr(resp.NextPageToken),
	}
	if resp.PageInfo != nil {
		page.TotalResults = resp.PageInfo.TotalResults
	}

	for _, item := range resp.Items {
		if item == nil {
			continue
		}
		page.Items = append(page.Items, convertPlaylistItem(playlistID, item))
	}
	return page, nil
}

// Channel fetches public metadata for channelID.
func (s *YouTubeService) Channel(ctx context.Context, auth Auth, channelID string) (*models.Channel, error) {
	call := s.yt.Channels.List(channelParts).Id(channelID).Context(ctx)

	resp, err := execute(ctx, s, auth, "channels.get", call.Header(), call.Do)
	if err != nil {
		return nil, err
	}
	if len(resp.Items) == 0 || resp.Items[0] == nil {
		return nil, fmt.Errorf("%w: channel %s", shared.ErrNotFound, channelID)
	}

	ch := resp.Items[0]
	channel := &models.Channel{ID: ch.Id}
	if sn := ch.Snippet; sn != nil {
		channel.Title = sn.Title
		channel.Description = models.StringPtr(sn.Description)
		channel.CustomURL = models.StringPtr(sn.CustomUrl)
		channel.ThumbnailURL = pickThumbnail(sn.Thumbnails)
	}
	if st := ch.Statistics; st != nil {
		channel.SubscriberCount = st.SubscriberCount
		channel.VideoCount = st.VideoCount
		channel.ViewCount = st.ViewCount
	}
	return channel, nil
}

// MyChannel fetches the channel of the user behind auth.
func (s *YouTubeService) MyChannel(ctx context.Context, auth Auth) (*models.UserProfile, error) {
	if !auth.IsUser() {
		return nil, fmt.Errorf("%w: own channel needs a user token", shared.ErrReauthRequired)
	}

	call := s.yt.Channels.List([]string{"snippet"}).Mine(true).Context(ctx)

	resp, err := execute(ctx, s, auth, "channels.mine", call.Header(), call.Do)
	if err != nil {
		return nil, err
	}
	if len(resp.Items) == 0 || resp.Items[0] == nil {
		return nil, fmt.Errorf("%w: no channel for user", shared.ErrNotFound)
	}

	ch := resp.Items[0]
	profile := &models.UserProfile{ChannelID: ch.Id}
	if sn := ch.Snippet; sn != nil {
		profile.Title = sn.Title
		if sn.Thumbnails != nil {
			profile.Thumbnails.Default = convertThumbnail(sn.Thumbnails.Default)
			profile.Thumbnails.Medium = convertThumbnail(sn.Thumbnails.Medium)
		}
	}
	return profile, nil
}

// execute authorizes and runs one API call, pacing it through the limiter and
// retrying [shared.ErrUpstreamUnavailable] failures with a doubling delay.
func execute[T any](
	ctx context.Context, s *YouTubeService, auth Auth, op string, header http.Header,
	do func(...googleapi.CallOption) (T, error),
) (T, error) {
	var zero T
	if err := auth.validate(); err != nil {
		return zero, err
	}

	var opts []googleapi.CallOption
	if auth.IsUser() {
		header.Set("Authorization", "Bearer "+auth.AccessToken)
	} else {
		opts = append(opts, googleapi.QueryParameter("key", auth.APIKey))
	}

	delay := s.retryDelay
	for attempt := 0; ; attempt++ {
		if err := s.limiter.Wait(ctx); err != nil {
			return zero, fmt.Errorf("%w: %s: %v", shared.ErrUpstreamUnavailable, op, err)
		}

		res, err := do(opts...)
		if err == nil {
			return res, nil
		}

		err = classify(op, err)
		if !errors.Is(err, shared.ErrUpstreamUnavailable) || attempt >= s.maxRetries {
			return zero, err
		}

		s.logger.Warn("retrying upstream call", "op", op, "attempt", attempt+1, "delay", delay, "error", err)

		select {
		case <-ctx.Done():
			return zero, fmt.Errorf("%w: %s: %v", shared.ErrUpstreamUnavailable, op, ctx.Err())
		case <-time.After(delay):
		}
		delay *= 2
	}
}

// classify maps an API client error onto the shared taxonomy.
func classify(op string, err error) error {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return fmt.Errorf("%w: %s: %v", shared.ErrUpstreamUnavailable, op, err)
	}

	switch {
	case gerr.Code == http.StatusUnauthorized:
		return fmt.Errorf("%w: %s: %s", shared.ErrAuthExpired, op, gerr.Message)
	case gerr.Code == http.StatusForbidden:
		return fmt.Errorf("%w: %s: %s", shared.ErrQuotaOrPermission, op, gerr.Message)
	case gerr.Code == http.StatusNotFound:
		return fmt.Errorf("%w: %s: %s", shared.ErrNotFound, op, gerr.Message)
	case gerr.Code == http.StatusBadRequest:
		return fmt.Errorf("%w: %s", shared.NewValidationError("Invalid request parameters"), gerr.Message)
	default:
		return fmt.Errorf("%w: %s: status %d: %s", shared.ErrUpstreamUnavailable, op, gerr.Code, gerr.Message)
	}
}

func playlistPage(resp *youtube.PlaylistListResponse) *models.PlaylistPage {
	page := &models.PlaylistPage{
		Items:         make([]models.Playlist, 0, len(resp.Items)),
		NextPageToken: models.StringPtr(resp.NextPageToken),
		PrevPageToken: models.StringPtr(resp.PrevPageToken),
	}
	if resp.PageInfo != nil {
		page.TotalResults = resp.PageInfo.TotalResults
	}

	for _, item := range resp.Items {
		if item == nil {
			continue
		}
		page.Items = append(page.Items, convertPlaylist(item))
	}
	return page
}

func convertPlaylist(item *youtube.Playlist) models.Playlist {
	p := models.Playlist{ID: item.Id}
	if sn := item.Snippet; sn != nil {
		p.OwnerUserID = sn.ChannelId
		p.Title = sn.Title
		p.Description = models.StringPtr(sn.Description)
		p.ThumbnailURL = pickThumbnail(sn.Thumbnails)
	}
	if cd := item.ContentDetails; cd != nil {
		p.VideoCount = cd.ItemCount
	}
	return p
}

func convertPlaylistItem(playlistID string, item *youtube.PlaylistItem) models.PlaylistVideo {
	v := models.PlaylistVideo{ID: item.Id, PlaylistID: playlistID}
	if sn := item.Snippet; sn != nil {
		v.Title = sn.Title
		v.Description = models.StringPtr(sn.Description)
		v.ThumbnailURL = pickThumbnail(sn.Thumbnails)
		v.Position = sn.Position
		if sn.ResourceId != nil {
			v.VideoID = sn.ResourceId.VideoId
		}
	}
	if v.VideoID == "" && item.ContentDetails != nil {
		v.VideoID = item.ContentDetails.VideoId
	}
	return v
}

// pickThumbnail prefers medium, then default, then high.
func pickThumbnail(t *youtube.ThumbnailDetails) *string {
	if t == nil {
		return nil
	}
	for _, th := range []*youtube.Thumbnail{t.Medium, t.Default, t.High} {
		if th != nil && th.Url != "" {
			return models.StringPtr(th.Url)
		}
	}
	return nil
}

func convertThumbnail(t *youtube.Thumbnail) *models.Thumbnail {
	if t == nil || t.Url == "" {
		return nil
	}
	return &models.Thumbnail{URL: t.Url, Width: t.Width, Height: t.Height}
}
