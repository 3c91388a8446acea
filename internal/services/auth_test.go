package services

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/desertthunder/ytpl/internal/shared"
)

func newTestAuth(t *testing.T, handler http.HandlerFunc) *GoogleAuth {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	auth, err := NewGoogleAuth(shared.GoogleConfig{
		ClientID:     "client",
		ClientSecret: "secret",
		RedirectURI:  "http://localhost:3000/auth/callback",
		AuthURL:      srv.URL + "/auth",
		TokenURL:     srv.URL + "/token",
	}, srv.Client())
	if err != nil {
		t.Fatalf("failed to create auth: %v", err)
	}
	return auth
}

func TestGoogleAuth(t *testing.T) {
	ctx := context.Background()

	t.Run("NewGoogleAuth requires client credentials", func(t *testing.T) {
		_, err := NewGoogleAuth(shared.GoogleConfig{ClientID: "client"}, nil)
		if !errors.Is(err, shared.ErrMissingCredentials) {
			t.Errorf("expected ErrMissingCredentials, got %v", err)
		}
	})

	t.Run("AuthCodeURL", func(t *testing.T) {
		auth := newTestAuth(t, func(w http.ResponseWriter, r *http.Request) {})

		u, err := url.Parse(auth.AuthCodeURL("state-123"))
		if err != nil {
			t.Fatalf("failed to parse url: %v", err)
		}

		q := u.Query()
		checks := map[string]string{
			"state":         "state-123",
			"access_type":   "offline",
			"prompt":        "consent",
			"client_id":     "client",
			"response_type": "code",
			"redirect_uri":  "http://localhost:3000/auth/callback",
		}
		for key, want := range checks {
			if got := q.Get(key); got != want {
				t.Errorf("expected %s=%s, got %s", key, want, got)
			}
		}
		if !strings.Contains(q.Get("scope"), "youtube.readonly") {
			t.Errorf("expected youtube scope, got %s", q.Get("scope"))
		}
	})

	t.Run("Exchange", func(t *testing.T) {
		auth := newTestAuth(t, func(w http.ResponseWriter, r *http.Request) {
			if err := r.ParseForm(); err != nil {
				t.Errorf("failed to parse form: %v", err)
			}
			if got := r.PostForm.Get("code"); got != "auth-code" {
				t.Errorf("expected code auth-code, got %s", got)
			}
			writeJSON(w, http.StatusOK, map[string]any{
				"access_token":  "access",
				"refresh_token": "refresh",
				"token_type":    "Bearer",
				"expires_in":    3600,
			})
		})

		token, err := auth.Exchange(ctx, "auth-code")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if token.AccessToken != "access" || token.RefreshToken != "refresh" {
			t.Errorf("unexpected token %+v", token)
		}
		if token.Expiry.IsZero() {
			t.Error("expected expiry to be set")
		}
	})

	t.Run("Exchange rejected", func(t *testing.T) {
		auth := newTestAuth(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid_grant"})
		})

		if _, err := auth.Exchange(ctx, "bad"); !errors.Is(err, shared.ErrReauthRequired) {
			t.Errorf("expected ErrReauthRequired, got %v", err)
		}
	})

	t.Run("Refresh", func(t *testing.T) {
		t.Run("sends refresh grant", func(t *testing.T) {
			auth := newTestAuth(t, func(w http.ResponseWriter, r *http.Request) {
				if err := r.ParseForm(); err != nil {
					t.Errorf("failed to parse form: %v", err)
				}
				if got := r.PostForm.Get("grant_type"); got != "refresh_token" {
					t.Errorf("expected refresh_token grant, got %s", got)
				}
				if got := r.PostForm.Get("refresh_token"); got != "refresh" {
					t.Errorf("expected refresh token, got %s", got)
				}
				writeJSON(w, http.StatusOK, map[string]any{
					"access_token": "fresh",
					"token_type":   "Bearer",
					"expires_in":   3600,
				})
			})

			token, err := auth.Refresh(ctx, "refresh")
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if token.AccessToken != "fresh" {
				t.Errorf("expected fresh token, got %s", token.AccessToken)
			}
		})

		t.Run("invalid grant needs reauth", func(t *testing.T) {
			auth := newTestAuth(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid_grant"})
			})

			if _, err := auth.Refresh(ctx, "revoked"); !errors.Is(err, shared.ErrReauthRequired) {
				t.Errorf("expected ErrReauthRequired, got %v", err)
			}
		})

		t.Run("server error is unavailable", func(t *testing.T) {
			auth := newTestAuth(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			})

			if _, err := auth.Refresh(ctx, "refresh"); !errors.Is(err, shared.ErrUpstreamUnavailable) {
				t.Errorf("expected ErrUpstreamUnavailable, got %v", err)
			}
		})

		t.Run("empty refresh token", func(t *testing.T) {
			auth := newTestAuth(t, func(w http.ResponseWriter, r *http.Request) {
				t.Error("expected no token request")
			})

			if _, err := auth.Refresh(ctx, ""); !errors.Is(err, shared.ErrReauthRequired) {
				t.Errorf("expected ErrReauthRequired, got %v", err)
			}
		})
	})
}
