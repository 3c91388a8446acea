package tasks

import (
	"context"
	"fmt"
	"sync"

	"github.com/desertthunder/ytpl/internal/models"
	"github.com/desertthunder/ytpl/internal/services"
)

const (
	defaultRefreshWorkers = 3
	maxRefreshWorkers     = 8
	defaultMaxPages       = 20
)

// RefreshOpts controls [Catalog.Refresh].
type RefreshOpts struct {
	NumWorkers int // concurrent playlist fetches (default 3, max 8)
	MaxPages   int // page limit per listing, bounds quota use on very large playlists (default 20)
}

// PlaylistRefreshResult is the outcome for one playlist.
type PlaylistRefreshResult struct {
	PlaylistID string
	Title      string
	Videos     int
	Error      error
}

// RefreshResult summarizes a [Catalog.Refresh] run.
type RefreshResult struct {
	TotalPlaylists int
	SuccessCount   int
	FailedCount    int
	Results        []PlaylistRefreshResult
}

// Refresh rebuilds the cache for every playlist userID owns.
//
// Playlists are listed page by page and upserted, then each playlist's videos are fetched across all
// pages and written with a full replace. Per-playlist failures are collected in the result and do not
// stop the run. Updates are sent to progress without blocking; progress may be nil.
func (c *Catalog) Refresh(ctx context.Context, progress chan<- ProgressUpdate, userID string, opts RefreshOpts) (*RefreshResult, error) {
	if opts.NumWorkers <= 0 {
		opts.NumWorkers = defaultRefreshWorkers
	}
	opts.NumWorkers = min(opts.NumWorkers, maxRefreshWorkers)
	if opts.MaxPages <= 0 {
		opts.MaxPages = defaultMaxPages
	}

	token, err := c.tokens.GetValidAccessToken(ctx, userID)
	if err != nil {
		return nil, err
	}
	auth := services.UserAuth(token)

	playlists, err := c.listAllPlaylists(ctx, progress, auth, userID, opts.MaxPages)
	if err != nil {
		return nil, err
	}

	result := &RefreshResult{
		TotalPlaylists: len(playlists),
		Results:        make([]PlaylistRefreshResult, 0, len(playlists)),
	}

	jobs := make(chan models.Playlist, len(playlists))
	results := make(chan PlaylistRefreshResult, len(playlists))

	var wg sync.WaitGroup
	for range opts.NumWorkers {
		wg.Add(1)
		go c.refreshWorker(ctx, &wg, jobs, results, auth, opts.MaxPages)
	}

	for i, p := range playlists {
		sendProgress(progress, fetchingVideosUpdate(i+1, len(playlists), p.Title))
		jobs <- p
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(results)
	}()

	completed := 0
	for res := range results {
		completed++
		result.Results = append(result.Results, res)

		if res.Error == nil {
			result.SuccessCount++
			sendProgress(progress, storedVideosUpdate(completed, len(playlists), res))
		} else {
			result.FailedCount++
			sendProgress(progress, failedVideosUpdate(completed, len(playlists), res))
		}
	}

	if err := ctx.Err(); err != nil {
		return result, fmt.Errorf("refresh interrupted: %w", err)
	}
	return result, nil
}

func (c *Catalog) listAllPlaylists(
	ctx context.Context, progress chan<- ProgressUpdate, auth services.Auth, userID string, maxPages int,
) ([]models.Playlist, error) {
	var (
		all       []models.Playlist
		pageToken string
	)

	for page := 1; page <= maxPages; page++ {
		resp, err := c.upstream.MyPlaylists(ctx, auth, pageToken)
		if err != nil {
			return nil, err
		}

		if err := c.playlists.UpsertMany(ctx, userID, resp.Items); err != nil {
			return nil, err
		}

		for _, p := range resp.Items {
			p.OwnerUserID = userID
			all = append(all, p)
		}
		sendProgress(progress, playlistPageUpdate(page, len(all)))

		if resp.NextPageToken == nil {
			break
		}
		pageToken = *resp.NextPageToken
	}
	return all, nil
}

func (c *Catalog) refreshWorker(
	ctx context.Context,
	wg *sync.WaitGroup,
	jobs <-chan models.Playlist,
	results chan<- PlaylistRefreshResult,
	auth services.Auth,
	maxPages int,
) {
	defer wg.Done()

	for p := range jobs {
		res := PlaylistRefreshResult{PlaylistID: p.ID, Title: p.Title}

		select {
		case <-ctx.Done():
			res.Error = ctx.Err()
			results <- res
			continue
		default:
		}

		res.Videos, res.Error = c.refreshPlaylist(ctx, auth, p.ID, maxPages)
		results <- res
	}
}

// refreshPlaylist fetches every page of a playlist and replaces its cached videos with the union.
func (c *Catalog) refreshPlaylist(ctx context.Context, auth services.Auth, playlistID string, maxPages int) (int, error) {
	var (
		items     []models.PlaylistVideo
		pageToken string
	)

	for range maxPages {
		page, err := c.upstream.PlaylistItems(ctx, auth, playlistID, pageToken)
		if err != nil {
			return 0, fmt.Errorf("failed to fetch videos: %w", err)
		}
		items = append(items, page.Items...)

		if page.NextPageToken == nil {
			break
		}
		pageToken = *page.NextPageToken
	}

	n, err := c.videos.Replace(ctx, playlistID, items)
	if err != nil {
		return 0, fmt.Errorf("failed to store videos: %w", err)
	}
	return n, nil
}
