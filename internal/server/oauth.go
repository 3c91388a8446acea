package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/ytpl/internal/models"
	"github.com/desertthunder/ytpl/internal/services"
	"github.com/desertthunder/ytpl/internal/shared"
	"golang.org/x/oauth2"
)

// CredentialSaver persists the credential created at sign-in.
type CredentialSaver interface {
	Save(ctx context.Context, c *models.Credential) error
}

// ChannelLookup resolves the signed-in user's channel, whose id becomes the user id.
type ChannelLookup interface {
	MyChannel(ctx context.Context, auth services.Auth) (*models.UserProfile, error)
}

// LoginResult is published after each completed callback.
type LoginResult struct {
	UserID string
	Err    error
}

// OAuthConfig wires an [OAuthHandler].
type OAuthConfig struct {
	Auth        services.Authenticator
	Credentials CredentialSaver
	Channels    ChannelLookup
	Sessions    *Sessions
	Redirect    string // where the browser lands after sign-in
	Logger      *log.Logger
}

// OAuthHandler serves the Google sign-in flow.
//
// Implements the [Handler] interface for registration with a [Router].
type OAuthHandler struct {
	auth        services.Authenticator
	credentials CredentialSaver
	channels    ChannelLookup
	sessions    *Sessions
	redirect    string
	logger      *log.Logger
	logins      chan LoginResult
	now         func() time.Time
}

// NewOAuthHandler creates an [OAuthHandler].
func NewOAuthHandler(cfg OAuthConfig) *OAuthHandler {
	redirect := cfg.Redirect
	if redirect == "" {
		redirect = "/"
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &OAuthHandler{
		auth:        cfg.Auth,
		credentials: cfg.Credentials,
		channels:    cfg.Channels,
		sessions:    cfg.Sessions,
		redirect:    redirect,
		logger:      logger,
		logins:      make(chan LoginResult, 1),
		now:         time.Now,
	}
}

// Routes returns the HTTP routes this handler serves.
func (h *OAuthHandler) Routes() []string {
	return []string{
		"GET /auth/url",
		"GET /auth/login",
		"GET /auth/callback",
		"POST /auth/logout",
	}
}

func (h *OAuthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/auth/url":
		state := h.sessions.IssueState(w)
		WriteJSON(w, http.StatusOK, map[string]string{"url": h.auth.AuthCodeURL(state)})
	case "/auth/login":
		state := h.sessions.IssueState(w)
		http.Redirect(w, r, h.auth.AuthCodeURL(state), http.StatusFound)
	case "/auth/callback":
		h.callback(w, r)
	case "/auth/logout":
		h.sessions.Clear(w)
		WriteJSON(w, http.StatusOK, map[string]bool{"ok": true})
	default:
		http.NotFound(w, r)
	}
}

// Logins returns the channel receiving callback outcomes. Results are dropped when nobody is reading.
func (h *OAuthHandler) Logins() <-chan LoginResult {
	return h.logins
}

func (h *OAuthHandler) publish(res LoginResult) {
	select {
	case h.logins <- res:
	default:
	}
}

func (h *OAuthHandler) fail(w http.ResponseWriter, status int, msg string, err error) {
	h.logger.Warn("sign-in failed", "status", status, "error", err)
	h.publish(LoginResult{Err: err})
	WriteError(w, status, msg)
}

// callback validates state, exchanges the code, stores the credential, and sets the session cookie.
func (h *OAuthHandler) callback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	ctx := r.Context()

	if denied := q.Get("error"); denied != "" {
		h.fail(w, http.StatusBadRequest, "Authorization denied", errors.New(denied))
		return
	}

	code := q.Get("code")
	if code == "" {
		h.fail(w, http.StatusBadRequest, "Missing authorization code", shared.ErrMissingArgument)
		return
	}

	if !h.sessions.VerifyState(w, r, q.Get("state")) {
		h.fail(w, http.StatusBadRequest, "Invalid state parameter", shared.ErrInvalidArgument)
		return
	}

	token, err := h.auth.Exchange(ctx, code)
	if err != nil {
		if errors.Is(err, shared.ErrReauthRequired) {
			h.fail(w, http.StatusBadRequest, "Authorization code rejected", err)
		} else {
			h.fail(w, http.StatusInternalServerError, "Failed to complete sign in", err)
		}
		return
	}

	userID := h.resolveUserID(ctx, token)
	cred := h.credential(userID, token)

	if err := h.credentials.Save(ctx, cred); err != nil {
		h.fail(w, http.StatusInternalServerError, "Failed to save credentials", err)
		return
	}

	h.sessions.Issue(w, userID)
	h.logger.Info("user signed in", "user", userID)
	h.publish(LoginResult{UserID: userID})
	http.Redirect(w, r, h.redirect, http.StatusFound)
}

// resolveUserID uses the channel id of the signed-in account, or a fresh id when the account has no channel.
func (h *OAuthHandler) resolveUserID(ctx context.Context, token *oauth2.Token) string {
	if h.channels != nil {
		profile, err := h.channels.MyChannel(ctx, services.UserAuth(token.AccessToken))
		if err == nil && profile.ChannelID != "" {
			return profile.ChannelID
		}
		h.logger.Warn("could not resolve channel for new sign-in", "error", err)
	}
	return shared.GenerateID()
}

func (h *OAuthHandler) credential(userID string, token *oauth2.Token) *models.Credential {
	expiry := token.Expiry
	if expiry.IsZero() {
		expiry = h.now().Add(time.Hour)
	}
	ms := expiry.UnixMilli()

	return &models.Credential{
		UserID:       userID,
		AccessToken:  token.AccessToken,
		RefreshToken: models.StringPtr(token.RefreshToken),
		ExpiryDate:   &ms,
	}
}
