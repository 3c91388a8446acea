// Package web serves the JSON API consumed by the playlist browser.
//
// # Routes
//
//	GET /channels/{channelId}               public channel metadata (API key)
//	GET /playlists?channelId=&pageToken=    channel playlists (API key), or the signed-in user's playlists
//	GET /playlists/{playlistId}/videos      playlist videos, read through the cache (session)
//	GET /user                               signed-in user's channel snippet (session)
//	GET /healthz                            database ping
//
// # Errors
//
// This is the only package that turns errors into HTTP statuses. Every error body is {"error": string}
// and never carries upstream bodies or internal details:
//
//	no credential, reauth required, auth expired    401, with needsAuth:true
//	not found                                       404
//	quota or permission                             403
//	validation                                      400, with the validation message
//	anything else                                   500
package web

import (
	"context"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/ytpl/internal/models"
	"github.com/desertthunder/ytpl/internal/server"
)

// Catalog is the read surface handlers depend on, implemented by tasks.Catalog.
type Catalog interface {
	PlaylistVideos(ctx context.Context, userID, playlistID, pageToken string) (*models.VideoPage, error)
	MyPlaylists(ctx context.Context, userID, pageToken string) (*models.PlaylistPage, error)
	ChannelPlaylists(ctx context.Context, channelID, pageToken string) (*models.PlaylistPage, error)
	Channel(ctx context.Context, channelID string) (*models.Channel, error)
	Profile(ctx context.Context, userID string) (*models.UserProfile, error)
}

// Pinger reports database health.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Handlers serves the JSON API.
type Handlers struct {
	catalog  Catalog
	sessions *server.Sessions
	db       Pinger
	logger   *log.Logger
}

// New creates the API handlers. db may be nil, in which case /healthz always reports ok.
func New(catalog Catalog, sessions *server.Sessions, db Pinger, logger *log.Logger) *Handlers {
	if logger == nil {
		logger = log.Default()
	}
	return &Handlers{catalog: catalog, sessions: sessions, db: db, logger: logger}
}

// Register adds every API route to r.
func (h *Handlers) Register(r server.Router) {
	r.Handle(http.MethodGet, "/channels/{channelId}", http.HandlerFunc(h.channel))
	r.Handle(http.MethodGet, "/playlists", http.HandlerFunc(h.playlists))
	r.Handle(http.MethodGet, "/playlists/{playlistId}/videos", h.sessions.Require(h.videos, h.unauthenticated))
	r.Handle(http.MethodGet, "/user", http.HandlerFunc(h.user))
	r.Handle(http.MethodGet, "/healthz", http.HandlerFunc(h.health))
}

func (h *Handlers) channel(w http.ResponseWriter, r *http.Request) {
	ch, err := h.catalog.Channel(r.Context(), r.PathValue("channelId"))
	if err != nil {
		h.writeError(w, r, err, "Channel not found")
		return
	}
	server.WriteJSON(w, http.StatusOK, ch)
}

// playlists serves a channel's public playlists when channelId is given, and the
// signed-in user's own playlists otherwise.
func (h *Handlers) playlists(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	if channelID := q.Get("channelId"); channelID != "" {
		page, err := h.catalog.ChannelPlaylists(r.Context(), channelID, q.Get("pageToken"))
		if err != nil {
			h.writeError(w, r, err, "Channel not found")
			return
		}
		server.WriteJSON(w, http.StatusOK, page)
		return
	}

	h.sessions.Require(h.myPlaylists, h.unauthenticated)(w, r)
}

func (h *Handlers) myPlaylists(w http.ResponseWriter, r *http.Request, sess server.Session) {
	page, err := h.catalog.MyPlaylists(r.Context(), sess.UserID, r.URL.Query().Get("pageToken"))
	if err != nil {
		h.writeError(w, r, err, "Playlists not found")
		return
	}
	server.WriteJSON(w, http.StatusOK, page)
}

func (h *Handlers) videos(w http.ResponseWriter, r *http.Request, sess server.Session) {
	playlistID := r.PathValue("playlistId")

	page, err := h.catalog.PlaylistVideos(r.Context(), sess.UserID, playlistID, r.URL.Query().Get("pageToken"))
	if err != nil {
		h.writeError(w, r, err, "Playlist not found")
		return
	}
	server.WriteJSON(w, http.StatusOK, page)
}

type userResponse struct {
	IsLoggedIn bool                `json:"isLoggedIn"`
	Snippet    *models.UserProfile `json:"snippet,omitempty"`
	Error      string              `json:"error,omitempty"`
	NeedsAuth  bool                `json:"needsAuth,omitempty"`
}

func (h *Handlers) user(w http.ResponseWriter, r *http.Request) {
	sess, err := h.sessions.Read(r)
	if err != nil {
		server.WriteJSON(w, http.StatusUnauthorized, userResponse{
			Error:     "Not authenticated",
			NeedsAuth: true,
		})
		return
	}

	profile, err := h.catalog.Profile(r.Context(), sess.UserID)
	if err != nil {
		h.writeError(w, r, err, "Channel not found")
		return
	}
	server.WriteJSON(w, http.StatusOK, userResponse{IsLoggedIn: true, Snippet: profile})
}

func (h *Handlers) health(w http.ResponseWriter, r *http.Request) {
	if h.db != nil {
		if err := h.db.PingContext(r.Context()); err != nil {
			h.logger.Error("health check failed", "error", err)
			server.WriteError(w, http.StatusServiceUnavailable, "Database unavailable")
			return
		}
	}
	server.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
