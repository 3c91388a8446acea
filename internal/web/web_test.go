package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/ytpl/internal/models"
	"github.com/desertthunder/ytpl/internal/repositories"
	"github.com/desertthunder/ytpl/internal/server"
	"github.com/desertthunder/ytpl/internal/services"
	"github.com/desertthunder/ytpl/internal/shared"
	"github.com/desertthunder/ytpl/internal/tasks"
	tu "github.com/desertthunder/ytpl/internal/testing"
)

type testAPI struct {
	router   *server.BasicRouter
	upstream *tu.MockUpstream
	catalog  *tasks.Catalog
	sessions *server.Sessions
	creds    *repositories.CredentialRepository
	videos   *repositories.VideoRepository
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()

	logger := log.New(io.Discard)
	db := tu.SetupDB(t)

	sessions, err := server.NewSessions("test-secret", false)
	if err != nil {
		t.Fatalf("failed to create sessions: %v", err)
	}

	api := &testAPI{
		router:   server.NewBasicRouter(),
		upstream: tu.NewMockUpstream(),
		sessions: sessions,
		creds:    repositories.NewCredentialRepository(db),
		videos:   repositories.NewVideoRepository(db),
	}

	refresher := services.NewTokenRefresher(api.creds, &tu.MockAuthenticator{}, logger)
	api.catalog = tasks.NewCatalog(tasks.CatalogConfig{
		Upstream:  api.upstream,
		Tokens:    refresher,
		Playlists: repositories.NewPlaylistRepository(db),
		Videos:    api.videos,
		APIKey:    "app-key",
		Logger:    logger,
	})

	api.router.Use(server.Recoverer(logger))
	New(api.catalog, sessions, db, logger).Register(api.router)

	expiry := time.Now().Add(time.Hour).UnixMilli()
	err = api.creds.Save(context.Background(), &models.Credential{
		UserID:       "UCuser",
		AccessToken:  "user-token",
		RefreshToken: models.StringPtr("refresh"),
		ExpiryDate:   &expiry,
	})
	if err != nil {
		t.Fatalf("failed to seed credential: %v", err)
	}
	return api
}

func (a *testAPI) sessionCookie(userID string) *http.Cookie {
	rec := httptest.NewRecorder()
	a.sessions.Issue(rec, userID)
	return rec.Result().Cookies()[0]
}

func (a *testAPI) do(t *testing.T, path string, cookie *http.Cookie) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, path, nil)
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode %s response %q: %v", path, rec.Body.String(), err)
	}
	return rec, body
}

func sampleVideos(playlistID string, ids ...string) []models.PlaylistVideo {
	videos := make([]models.PlaylistVideo, 0, len(ids))
	for i, id := range ids {
		videos = append(videos, models.PlaylistVideo{
			ID:         id,
			PlaylistID: playlistID,
			Title:      "Video " + id,
			VideoID:    "vid-" + id,
			Position:   int64(i),
		})
	}
	return videos
}

func TestPlaylistVideos(t *testing.T) {
	t.Run("empty cache is fetched then served from cache", func(t *testing.T) {
		api := newTestAPI(t)
		api.upstream.Playlists["PL1"] = &models.Playlist{ID: "PL1", Title: "Mix"}
		api.upstream.SetVideos("PL1", "", &models.VideoPage{Items: sampleVideos("PL1", "a", "b"), TotalResults: 2})
		cookie := api.sessionCookie("UCuser")

		rec, body := api.do(t, "/playlists/PL1/videos", cookie)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %v", rec.Code, body)
		}
		if body["cached"] != false {
			t.Errorf("expected cached false, got %v", body["cached"])
		}
		if _, ok := body["nextPageToken"]; !ok || body["nextPageToken"] != nil {
			t.Errorf("expected explicit null nextPageToken, got %v", body["nextPageToken"])
		}

		api.catalog.Wait()

		rec, body = api.do(t, "/playlists/PL1/videos", cookie)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if body["cached"] != true {
			t.Errorf("expected cached true, got %v", body["cached"])
		}
		items, _ := body["items"].([]any)
		if len(items) != 2 {
			t.Fatalf("expected 2 items, got %d", len(items))
		}
		first := items[0].(map[string]any)
		for _, key := range []string{"id", "title", "description", "thumbnailUrl", "videoId", "position"} {
			if _, ok := first[key]; !ok {
				t.Errorf("expected key %s in item", key)
			}
		}
		if n := api.upstream.Calls(tu.OpPlaylistItems); n != 1 {
			t.Errorf("expected 1 upstream fetch, got %d", n)
		}
	})

	t.Run("cache hit makes no upstream call", func(t *testing.T) {
		api := newTestAPI(t)
		api.upstream.Playlists["PL1"] = &models.Playlist{ID: "PL1", Title: "Mix"}
		api.upstream.SetVideos("PL1", "", &models.VideoPage{Items: sampleVideos("PL1", "a")})
		cookie := api.sessionCookie("UCuser")

		api.do(t, "/playlists/PL1/videos", cookie)
		api.catalog.Wait()
		before := api.upstream.TotalCalls()

		_, body := api.do(t, "/playlists/PL1/videos", cookie)
		if body["cached"] != true {
			t.Errorf("expected cached response, got %v", body)
		}
		if api.upstream.TotalCalls() != before {
			t.Errorf("expected no new upstream calls, got %d", api.upstream.TotalCalls()-before)
		}
	})

	t.Run("missing session", func(t *testing.T) {
		api := newTestAPI(t)

		rec, body := api.do(t, "/playlists/PL1/videos", nil)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("expected 401, got %d", rec.Code)
		}
		if body["needsAuth"] != true {
			t.Errorf("expected needsAuth, got %v", body)
		}
	})

	t.Run("playlist not found", func(t *testing.T) {
		api := newTestAPI(t)

		rec, body := api.do(t, "/playlists/PL404/videos", api.sessionCookie("UCuser"))
		if rec.Code != http.StatusNotFound {
			t.Errorf("expected 404, got %d", rec.Code)
		}
		if body["error"] != "Playlist not found" {
			t.Errorf("unexpected body %v", body)
		}
	})

	t.Run("session without credential", func(t *testing.T) {
		api := newTestAPI(t)

		rec, body := api.do(t, "/playlists/PL1/videos", api.sessionCookie("UCghost"))
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("expected 401, got %d", rec.Code)
		}
		if body["needsAuth"] != true {
			t.Errorf("expected needsAuth, got %v", body)
		}
	})
}

func TestPlaylists(t *testing.T) {
	t.Run("unauthenticated own playlists", func(t *testing.T) {
		api := newTestAPI(t)

		rec, body := api.do(t, "/playlists", nil)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("expected 401, got %d", rec.Code)
		}
		if body["needsAuth"] != true || body["error"] == "" {
			t.Errorf("unexpected body %v", body)
		}
	})

	t.Run("own playlists", func(t *testing.T) {
		api := newTestAPI(t)
		api.upstream.MyPages[""] = &models.PlaylistPage{
			Items:        []models.Playlist{{ID: "PL1", Title: "Mine", VideoCount: 3}},
			TotalResults: 1,
		}

		rec, body := api.do(t, "/playlists", api.sessionCookie("UCuser"))
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		items := body["items"].([]any)
		if len(items) != 1 {
			t.Fatalf("expected 1 playlist, got %d", len(items))
		}
		item := items[0].(map[string]any)
		if item["itemCount"] != float64(3) {
			t.Errorf("expected itemCount 3, got %v", item["itemCount"])
		}
		if _, ok := item["description"]; !ok {
			t.Error("expected description key present as null")
		}
		for _, key := range []string{"nextPageToken", "prevPageToken", "totalResults"} {
			if _, ok := body[key]; !ok {
				t.Errorf("expected key %s", key)
			}
		}
		api.catalog.Wait()
	})

	t.Run("public channel playlists need no session", func(t *testing.T) {
		api := newTestAPI(t)
		api.upstream.ChannelPages["UCpublic"] = &models.PlaylistPage{Items: []models.Playlist{{ID: "PL9", Title: "Public"}}}

		rec, _ := api.do(t, "/playlists?channelId=UCpublic", nil)
		if rec.Code != http.StatusOK {
			t.Errorf("expected 200, got %d", rec.Code)
		}
		if got := api.upstream.LastAuth(); got.APIKey != "app-key" {
			t.Errorf("expected api key auth, got %+v", got)
		}
	})

	t.Run("quota errors are 403", func(t *testing.T) {
		api := newTestAPI(t)
		api.upstream.SetError(tu.OpChannelPlaylists, fmt.Errorf("%w: quotaExceeded", shared.ErrQuotaOrPermission))

		rec, _ := api.do(t, "/playlists?channelId=UCpublic", nil)
		if rec.Code != http.StatusForbidden {
			t.Errorf("expected 403, got %d", rec.Code)
		}
	})
}

func TestChannel(t *testing.T) {
	t.Run("invalid channel id", func(t *testing.T) {
		api := newTestAPI(t)

		rec, body := api.do(t, "/channels/notAChannelId", nil)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
		if len(body) != 1 || body["error"] != "Invalid channel ID format" {
			t.Errorf(`expected {"error":"Invalid channel ID format"}, got %v`, body)
		}
	})

	t.Run("found", func(t *testing.T) {
		api := newTestAPI(t)
		api.upstream.Channels["UCabc"] = &models.Channel{ID: "UCabc", Title: "Abc", SubscriberCount: 5}

		rec, body := api.do(t, "/channels/UCabc", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if body["title"] != "Abc" || body["subscriberCount"] != float64(5) {
			t.Errorf("unexpected body %v", body)
		}
	})

	t.Run("not found", func(t *testing.T) {
		api := newTestAPI(t)

		rec, body := api.do(t, "/channels/UCmissing", nil)
		if rec.Code != http.StatusNotFound || body["error"] != "Channel not found" {
			t.Errorf("expected 404 Channel not found, got %d %v", rec.Code, body)
		}
	})
}

func TestUser(t *testing.T) {
	t.Run("not logged in", func(t *testing.T) {
		api := newTestAPI(t)

		rec, body := api.do(t, "/user", nil)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("expected 401, got %d", rec.Code)
		}
		if body["isLoggedIn"] != false || body["needsAuth"] != true || body["error"] == nil {
			t.Errorf("unexpected body %v", body)
		}
	})

	t.Run("logged in", func(t *testing.T) {
		api := newTestAPI(t)
		api.upstream.Profile = &models.UserProfile{
			ChannelID: "UCuser",
			Title:     "Me",
			Thumbnails: models.Thumbnails{
				Default: &models.Thumbnail{URL: "https://i.ytimg.com/me.jpg", Width: 88, Height: 88},
			},
		}

		rec, body := api.do(t, "/user", api.sessionCookie("UCuser"))
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if body["isLoggedIn"] != true {
			t.Errorf("expected isLoggedIn, got %v", body)
		}
		snippet := body["snippet"].(map[string]any)
		if snippet["title"] != "Me" {
			t.Errorf("expected title Me, got %v", snippet["title"])
		}
	})

	t.Run("expired upstream auth", func(t *testing.T) {
		api := newTestAPI(t)
		api.upstream.SetError(tu.OpMyChannel, fmt.Errorf("%w: 401", shared.ErrAuthExpired))

		rec, body := api.do(t, "/user", api.sessionCookie("UCuser"))
		if rec.Code != http.StatusUnauthorized || body["needsAuth"] != true {
			t.Errorf("expected 401 needsAuth, got %d %v", rec.Code, body)
		}
	})
}

func TestHealth(t *testing.T) {
	api := newTestAPI(t)

	rec, body := api.do(t, "/healthz", nil)
	if rec.Code != http.StatusOK || body["status"] != "ok" {
		t.Errorf("expected ok, got %d %v", rec.Code, body)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		msg    string
	}{
		{"no credential", shared.ErrNoCredential, http.StatusUnauthorized, "Please sign in again"},
		{"reauth", fmt.Errorf("%w: x", shared.ErrReauthRequired), http.StatusUnauthorized, "Please sign in again"},
		{"expired", shared.ErrAuthExpired, http.StatusUnauthorized, "Please sign in again"},
		{"not found", shared.ErrNotFound, http.StatusNotFound, "Thing not found"},
		{"quota", shared.ErrQuotaOrPermission, http.StatusForbidden, "YouTube quota exceeded or access denied"},
		{"validation", shared.NewValidationError("Bad input"), http.StatusBadRequest, "Bad input"},
		{"config", shared.ErrMissingCredentials, http.StatusInternalServerError, "Server configuration error"},
		{"storage", shared.ErrStorage, http.StatusInternalServerError, "Internal server error"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "Internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, msg := classify(tt.err, "Thing not found")
			if status != tt.status || msg != tt.msg {
				t.Errorf("classify(%v) = %d %q, want %d %q", tt.err, status, msg, tt.status, tt.msg)
			}
		})
	}
}
