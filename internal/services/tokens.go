package services

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/ytpl/internal/models"
	"github.com/desertthunder/ytpl/internal/shared"
)

// fallbackLifetime is stored when the token endpoint omits an expiry.
const fallbackLifetime = time.Hour

// CredentialStore reads and writes per-user credentials.
type CredentialStore interface {
	Get(ctx context.Context, userID string) (*models.Credential, error)
	Save(ctx context.Context, c *models.Credential) error
}

// TokenRefresher hands out access tokens that are valid for at least [models.RefreshMargin].
type TokenRefresher struct {
	store  CredentialStore
	auth   Authenticator
	logger *log.Logger
	now    func() time.Time
}

// NewTokenRefresher creates a [TokenRefresher].
func NewTokenRefresher(store CredentialStore, auth Authenticator, logger *log.Logger) *TokenRefresher {
	if logger == nil {
		logger = log.Default()
	}
	return &TokenRefresher{store: store, auth: auth, logger: logger, now: time.Now}
}

// GetValidAccessToken returns a usable access token for userID, refreshing and persisting it first when
// it expires within [models.RefreshMargin] or has no recorded expiry.
//
// Errors:
//   - [shared.ErrNoCredential]: the user never signed in
//   - [shared.ErrReauthRequired]: no refresh token is stored, or Google rejected it
//   - [shared.ErrUpstreamUnavailable]: the token endpoint failed
//   - [shared.ErrStorage]: the refreshed token could not be saved
func (r *TokenRefresher) GetValidAccessToken(ctx context.Context, userID string) (string, error) {
	cred, err := r.store.Get(ctx, userID)
	if err != nil {
		return "", err
	}

	now := r.now()
	if !cred.Expired(now) {
		return cred.AccessToken, nil
	}

	if !cred.HasRefreshToken() {
		return "", fmt.Errorf("%w: access token expired and no refresh token stored", shared.ErrReauthRequired)
	}

	token, err := r.auth.Refresh(ctx, *cred.RefreshToken)
	if err != nil {
		return "", err
	}

	refreshToken := *cred.RefreshToken
	if token.RefreshToken != "" {
		refreshToken = token.RefreshToken
	}

	expiry := token.Expiry
	if expiry.IsZero() || (cred.ExpiryDate != nil && !expiry.After(cred.Expiry())) {
		expiry = now.Add(fallbackLifetime)
	}
	expiryMillis := expiry.UnixMilli()

	updated := &models.Credential{
		UserID:       userID,
		AccessToken:  token.AccessToken,
		RefreshToken: &refreshToken,
		ExpiryDate:   &expiryMillis,
	}
	if err := r.store.Save(ctx, updated); err != nil {
		return "", err
	}

	r.logger.Debug("refreshed access token", "user", userID, "expiry", expiry)
	return updated.AccessToken, nil
}
