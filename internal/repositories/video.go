package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/desertthunder/ytpl/internal/models"
	"github.com/desertthunder/ytpl/internal/shared"
)

// VideoRepository caches playlist items.
//
// Rows for a playlist are never merged: [VideoRepository.Replace] swaps the whole set.
type VideoRepository struct {
	db *shared.Database
}

// NewVideoRepository creates a new VideoRepository with the given database connection
func NewVideoRepository(db *shared.Database) *VideoRepository {
	return &VideoRepository{db: db}
}

// Replace deletes every cached item of playlistID and inserts videos in one transaction.
//
// Items missing an id, title, or video id are skipped. Any insert failure rolls back the
// delete, leaving the previous set in place. Returns the number of rows written.
func (r *VideoRepository) Replace(ctx context.Context, playlistID string, videos []models.PlaylistVideo) (int, error) {
	written := 0

	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, r.db.Rebind("DELETE FROM playlist_videos WHERE playlist_id = ?"), playlistID); err != nil {
			return fmt.Errorf("%w: failed to clear playlist videos: %v", shared.ErrStorage, err)
		}

		stmt, err := tx.PrepareContext(ctx, r.db.Rebind(`
			INSERT INTO playlist_videos (id, playlist_id, title, description, thumbnail_url, video_id, position)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`))
		if err != nil {
			return fmt.Errorf("%w: failed to prepare insert: %v", shared.ErrStorage, err)
		}
		defer stmt.Close()

		for _, v := range videos {
			if !v.Complete() {
				continue
			}

			if _, err := stmt.ExecContext(ctx, v.ID, playlistID, v.Title, v.Description, v.ThumbnailURL, v.VideoID, v.Position); err != nil {
				return fmt.Errorf("%w: failed to insert video %s: %v", shared.ErrStorage, v.ID, err)
			}
			written++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return written, nil
}

// List returns the cached items of playlistID ordered by position ascending.
func (r *VideoRepository) List(ctx context.Context, playlistID string) ([]models.PlaylistVideo, error) {
	query := r.db.Rebind(`
		SELECT id, playlist_id, title, description, thumbnail_url, video_id, position
		FROM playlist_videos
		WHERE playlist_id = ?
		ORDER BY position ASC, id ASC
	`)

	rows, err := r.db.QueryContext(ctx, query, playlistID)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query playlist videos: %v", shared.ErrStorage, err)
	}
	defer rows.Close()

	videos := []models.PlaylistVideo{}
	for rows.Next() {
		var (
			v            models.PlaylistVideo
			description  sql.NullString
			thumbnailURL sql.NullString
		)

		if err := rows.Scan(&v.ID, &v.PlaylistID, &v.Title, &description, &thumbnailURL, &v.VideoID, &v.Position); err != nil {
			return nil, fmt.Errorf("%w: failed to scan playlist video: %v", shared.ErrStorage, err)
		}

		v.Description = nullString(description)
		v.ThumbnailURL = nullString(thumbnailURL)
		videos = append(videos, v)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: row iteration error: %v", shared.ErrStorage, err)
	}
	return videos, nil
}

// Count returns how many items are cached for playlistID.
func (r *VideoRepository) Count(ctx context.Context, playlistID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, r.db.Rebind("SELECT COUNT(*) FROM playlist_videos WHERE playlist_id = ?"), playlistID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("%w: failed to count playlist videos: %v", shared.ErrStorage, err)
	}
	return n, nil
}
