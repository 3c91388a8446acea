package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/desertthunder/ytpl/internal/models"
	"github.com/desertthunder/ytpl/internal/shared"
)

const upsertPlaylistQuery = `
	INSERT INTO playlists (id, owner_user_id, title, description, thumbnail_url, video_count, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
	ON CONFLICT (id) DO UPDATE SET
		owner_user_id = excluded.owner_user_id,
		title = excluded.title,
		description = excluded.description,
		thumbnail_url = excluded.thumbnail_url,
		video_count = excluded.video_count,
		updated_at = CURRENT_TIMESTAMP
`

// PlaylistRepository caches playlist metadata, one row per YouTube playlist id.
type PlaylistRepository struct {
	db *shared.Database
}

// NewPlaylistRepository creates a new PlaylistRepository with the given database connection
func NewPlaylistRepository(db *shared.Database) *PlaylistRepository {
	return &PlaylistRepository{db: db}
}

// Upsert inserts the playlist or overwrites every column of the existing row.
func (r *PlaylistRepository) Upsert(ctx context.Context, p *models.Playlist) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("%w: validation failed: %v", shared.ErrStorage, err)
	}

	_, err := r.db.ExecContext(ctx, r.db.Rebind(upsertPlaylistQuery),
		p.ID, p.OwnerUserID, p.Title, p.Description, p.ThumbnailURL, p.VideoCount,
	)
	if err != nil {
		return fmt.Errorf("%w: failed to upsert playlist: %v", shared.ErrStorage, err)
	}
	return nil
}

// UpsertMany upserts every playlist for ownerID in one transaction.
func (r *PlaylistRepository) UpsertMany(ctx context.Context, ownerID string, playlists []models.Playlist) error {
	if len(playlists) == 0 {
		return nil
	}

	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, r.db.Rebind(upsertPlaylistQuery))
		if err != nil {
			return fmt.Errorf("%w: failed to prepare upsert: %v", shared.ErrStorage, err)
		}
		defer stmt.Close()

		for i := range playlists {
			p := playlists[i]
			p.OwnerUserID = ownerID
			if err := p.Validate(); err != nil {
				return fmt.Errorf("%w: validation failed: %v", shared.ErrStorage, err)
			}

			if _, err := stmt.ExecContext(ctx, p.ID, p.OwnerUserID, p.Title, p.Description, p.ThumbnailURL, p.VideoCount); err != nil {
				return fmt.Errorf("%w: failed to upsert playlist %s: %v", shared.ErrStorage, p.ID, err)
			}
		}
		return nil
	})
}

// Ensure inserts a placeholder row for id unless one exists, so its videos can be cached
// when the playlist metadata is unavailable. An existing row is left untouched.
func (r *PlaylistRepository) Ensure(ctx context.Context, id, ownerID string, videoCount int64) error {
	p := models.Playlist{ID: id, OwnerUserID: ownerID}
	if err := p.Validate(); err != nil {
		return fmt.Errorf("%w: validation failed: %v", shared.ErrStorage, err)
	}

	_, err := r.db.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO playlists (id, owner_user_id, title, video_count)
		VALUES (?, ?, '', ?)
		ON CONFLICT (id) DO NOTHING
	`), id, ownerID, videoCount)
	if err != nil {
		return fmt.Errorf("%w: failed to ensure playlist: %v", shared.ErrStorage, err)
	}
	return nil
}

// Get retrieves a cached playlist by YouTube id.
func (r *PlaylistRepository) Get(ctx context.Context, id string) (*models.Playlist, error) {
	query := r.db.Rebind(`
		SELECT id, owner_user_id, title, description, thumbnail_url, video_count
		FROM playlists
		WHERE id = ?
	`)

	p, err := scanPlaylist(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: playlist %s", shared.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to scan playlist: %v", shared.ErrStorage, err)
	}
	return p, nil
}

// ListByOwner returns the playlists last fetched by ownerID, ordered by title.
func (r *PlaylistRepository) ListByOwner(ctx context.Context, ownerID string) ([]models.Playlist, error) {
	query := r.db.Rebind(`
		SELECT id, owner_user_id, title, description, thumbnail_url, video_count
		FROM playlists
		WHERE owner_user_id = ?
		ORDER BY title ASC, id ASC
	`)

	rows, err := r.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query playlists: %v", shared.ErrStorage, err)
	}
	defer rows.Close()

	playlists := []models.Playlist{}
	for rows.Next() {
		p, err := scanPlaylist(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to scan playlist: %v", shared.ErrStorage, err)
		}
		playlists = append(playlists, *p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: row iteration error: %v", shared.ErrStorage, err)
	}
	return playlists, nil
}

// Delete removes a playlist and, through the foreign key, its cached videos.
func (r *PlaylistRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, r.db.Rebind("DELETE FROM playlists WHERE id = ?"), id)
	if err != nil {
		return fmt.Errorf("%w: failed to delete playlist: %v", shared.ErrStorage, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: failed to get affected rows: %v", shared.ErrStorage, err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: playlist %s", shared.ErrNotFound, id)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPlaylist(row scanner) (*models.Playlist, error) {
	var (
		p            models.Playlist
		description  sql.NullString
		thumbnailURL sql.NullString
	)

	if err := row.Scan(&p.ID, &p.OwnerUserID, &p.Title, &description, &thumbnailURL, &p.VideoCount); err != nil {
		return nil, err
	}

	p.Description = nullString(description)
	p.ThumbnailURL = nullString(thumbnailURL)
	return &p, nil
}
