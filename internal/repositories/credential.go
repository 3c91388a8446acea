package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/desertthunder/ytpl/internal/models"
	"github.com/desertthunder/ytpl/internal/shared"
)

// CredentialRepository persists [models.Credential] rows keyed by user id.
type CredentialRepository struct {
	db *shared.Database
}

// NewCredentialRepository creates a new [CredentialRepository] with the given database connection
func NewCredentialRepository(db *shared.Database) *CredentialRepository {
	return &CredentialRepository{db: db}
}

// Get retrieves the credential for userID.
//
// Returns [shared.ErrNoCredential] when the user has never signed in.
func (r *CredentialRepository) Get(ctx context.Context, userID string) (*models.Credential, error) {
	query := r.db.Rebind(`
		SELECT user_id, access_token, refresh_token, expiry_date
		FROM credentials
		WHERE user_id = ?
	`)

	var (
		id           string
		accessToken  string
		refreshToken sql.NullString
		expiryDate   sql.NullInt64
	)

	err := r.db.QueryRowContext(ctx, query, userID).Scan(&id, &accessToken, &refreshToken, &expiryDate)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", shared.ErrNoCredential, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query credential: %v", shared.ErrStorage, err)
	}

	return &models.Credential{
		UserID:       id,
		AccessToken:  accessToken,
		RefreshToken: nullString(refreshToken),
		ExpiryDate:   nullInt64(expiryDate),
	}, nil
}

// Save inserts or replaces the credential for c.UserID.
//
// A nil or empty refresh token keeps the one already stored.
func (r *CredentialRepository) Save(ctx context.Context, c *models.Credential) error {
	if err := c.Validate(); err != nil {
		return fmt.Errorf("%w: validation failed: %v", shared.ErrStorage, err)
	}

	var refreshToken *string
	if c.HasRefreshToken() {
		refreshToken = c.RefreshToken
	}

	query := r.db.Rebind(`
		INSERT INTO credentials (user_id, access_token, refresh_token, expiry_date, updated_at)
		VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT (user_id) DO UPDATE SET
			access_token = excluded.access_token,
			refresh_token = COALESCE(excluded.refresh_token, credentials.refresh_token),
			expiry_date = excluded.expiry_date,
			updated_at = CURRENT_TIMESTAMP
	`)

	if _, err := r.db.ExecContext(ctx, query, c.UserID, c.AccessToken, refreshToken, c.ExpiryDate); err != nil {
		return fmt.Errorf("%w: failed to save credential: %v", shared.ErrStorage, err)
	}
	return nil
}

// List returns the ids of all users with a stored credential.
func (r *CredentialRepository) List(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT user_id FROM credentials ORDER BY user_id ASC")
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query credentials: %v", shared.ErrStorage, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("%w: failed to scan credential: %v", shared.ErrStorage, err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: row iteration error: %v", shared.ErrStorage, err)
	}
	return ids, nil
}
