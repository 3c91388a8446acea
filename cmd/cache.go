package main

import (
	"context"
	"fmt"
	"sync"

	"github.com/desertthunder/ytpl/internal/formatter"
	"github.com/desertthunder/ytpl/internal/models"
	"github.com/desertthunder/ytpl/internal/tasks"
	"github.com/urfave/cli/v3"
)

// CachePlaylists lists cached playlists owned by --user.
func (r *Runner) CachePlaylists(ctx context.Context, cmd *cli.Command) error {
	s, err := r.openStore()
	if err != nil {
		return err
	}
	defer s.close()

	userID := cmd.String("user")
	playlists, err := s.playlists.ListByOwner(ctx, userID)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(playlists, true)
	}

	if len(playlists) == 0 {
		return r.writePlain("%s\n", styles.Help("No cached playlists. Run 'ytpl cache refresh --user "+userID+"'."))
	}

	r.writePlainHeader(fmt.Sprintf("Cached playlists for %s (%d)", userID, len(playlists)))
	for _, p := range playlists {
		cached, err := s.videos.Count(ctx, p.ID)
		if err != nil {
			return err
		}
		r.writePlain("%-36s %s %s\n", p.ID, p.Title, styles.Help(fmt.Sprintf("(%d/%d videos cached)", cached, p.VideoCount)))
	}
	return nil
}

// CacheVideos lists the cached videos of --playlist in position order.
func (r *Runner) CacheVideos(ctx context.Context, cmd *cli.Command) error {
	s, err := r.openStore()
	if err != nil {
		return err
	}
	defer s.close()

	playlistID := cmd.String("playlist")
	videos, err := s.videos.List(ctx, playlistID)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(videos, true)
	}

	if len(videos) == 0 {
		return r.writePlain("%s\n", styles.Help("No cached videos for "+playlistID+"."))
	}

	r.writePlainHeader(fmt.Sprintf("Cached videos for %s (%d)", playlistID, len(videos)))
	for _, v := range videos {
		r.writePlain("%4d. %s %s\n", v.Position, v.Title, styles.Help(models.WatchURL(v.VideoID)))
	}
	return nil
}

// CacheExport writes a cached playlist and its videos in the requested format.
func (r *Runner) CacheExport(ctx context.Context, cmd *cli.Command) error {
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	s, err := r.openStore()
	if err != nil {
		return err
	}
	defer s.close()

	playlistID := cmd.String("playlist")
	playlist, err := s.playlists.Get(ctx, playlistID)
	if err != nil {
		return err
	}

	videos, err := s.videos.List(ctx, playlistID)
	if err != nil {
		return err
	}

	export := &models.PlaylistExport{Playlist: *playlist, Videos: videos}

	output := cmd.String("output")
	if output == "-" {
		return formatter.Write(r.output, export, format)
	}

	files, err := formatter.WriteExport(r.httpClient, export, format, output)
	if err != nil {
		return err
	}

	r.logger.Info("exported playlist", "playlist", playlistID, "format", format, "videos", len(videos))
	for _, f := range files {
		r.writePlain("%s %s\n", styles.OK("✓"), f)
	}
	return nil
}

// CacheRefresh fetches every playlist --user owns and rewrites the cache, printing progress as it goes.
func (r *Runner) CacheRefresh(ctx context.Context, cmd *cli.Command) error {
	a, err := r.openApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	progress := make(chan tasks.ProgressUpdate, 16)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for update := range progress {
			r.logger.Debug("refresh progress", "phase", update.Phase, "step", update.Step, "total", update.Total)
			r.writePlain("%s\n", update.Message)
		}
	}()

	result, err := a.catalog.Refresh(ctx, progress, cmd.String("user"), tasks.RefreshOpts{
		NumWorkers: cmd.Int("workers"),
		MaxPages:   cmd.Int("max-pages"),
	})
	close(progress)
	wg.Wait()

	if err != nil {
		return err
	}

	r.writePlainln("%s %d playlists refreshed, %d failed", styles.OK("✓"), result.SuccessCount, result.FailedCount)
	for _, res := range result.Results {
		if res.Error != nil {
			r.writePlain("  %s %s: %v\n", styles.Err("✗"), res.Title, res.Error)
		}
	}
	return nil
}

// CacheDelete removes --playlist and its videos from the cache.
func (r *Runner) CacheDelete(ctx context.Context, cmd *cli.Command) error {
	s, err := r.openStore()
	if err != nil {
		return err
	}
	defer s.close()

	playlistID := cmd.String("playlist")
	if err := s.playlists.Delete(ctx, playlistID); err != nil {
		return err
	}
	return r.writePlain("%s Removed %s from the cache\n", styles.OK("✓"), playlistID)
}
