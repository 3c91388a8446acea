package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/ytpl/internal/models"
	"github.com/desertthunder/ytpl/internal/shared"
	tu "github.com/desertthunder/ytpl/internal/testing"
	"golang.org/x/oauth2"
)

func quietLogger() *log.Logger {
	return log.New(io.Discard)
}

func TestBasicRouter(t *testing.T) {
	t.Run("routes by method and path value", func(t *testing.T) {
		r := NewBasicRouter()
		r.HandleFunc(http.MethodGet, "/playlists/{playlistId}/videos", func(w http.ResponseWriter, req *http.Request) {
			WriteJSON(w, http.StatusOK, map[string]string{"id": req.PathValue("playlistId")})
		})

		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/playlists/PL1/videos", nil))

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		var body map[string]string
		if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
			t.Fatalf("failed to decode body: %v", err)
		}
		if body["id"] != "PL1" {
			t.Errorf("expected path value PL1, got %s", body["id"])
		}

		rec = httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/playlists/PL1/videos", nil))
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("expected 405, got %d", rec.Code)
		}
	})

	t.Run("unmatched routes answer json", func(t *testing.T) {
		r := NewBasicRouter()
		r.HandleFunc(http.MethodGet, "/playlists", func(w http.ResponseWriter, req *http.Request) {
			WriteJSON(w, http.StatusOK, []string{})
		})

		tests := []struct {
			name   string
			method string
			path   string
			status int
		}{
			{"unknown path", http.MethodGet, "/nope", http.StatusNotFound},
			{"wrong method", http.MethodDelete, "/playlists", http.StatusMethodNotAllowed},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				rec := httptest.NewRecorder()
				r.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))

				if rec.Code != tt.status {
					t.Fatalf("expected %d, got %d", tt.status, rec.Code)
				}
				if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
					t.Errorf("expected json content type, got %q", ct)
				}
				var body map[string]string
				if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
					t.Fatalf("failed to decode body: %v", err)
				}
				if body["error"] != http.StatusText(tt.status) {
					t.Errorf("expected error %q, got %q", http.StatusText(tt.status), body["error"])
				}
			})
		}

		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/playlists", nil))
		if allow := rec.Header().Get("Allow"); !strings.Contains(allow, http.MethodGet) {
			t.Errorf("expected Allow header listing GET, got %q", allow)
		}
	})

	t.Run("applies middleware in order", func(t *testing.T) {
		var order []string
		mark := func(name string) Middleware {
			return func(next http.Handler) http.Handler {
				return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
					order = append(order, name)
					next.ServeHTTP(w, req)
				})
			}
		}

		r := NewBasicRouter()
		r.Use(mark("first"), mark("second"))
		r.HandleFunc(http.MethodGet, "/", func(w http.ResponseWriter, req *http.Request) {
			order = append(order, "handler")
		})

		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

		if strings.Join(order, ",") != "first,second,handler" {
			t.Errorf("unexpected order %v", order)
		}
	})
}

func TestMiddleware(t *testing.T) {
	t.Run("Recoverer returns json 500", func(t *testing.T) {
		h := Recoverer(quietLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			panic("boom")
		}))

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		if rec.Code != http.StatusInternalServerError {
			t.Errorf("expected 500, got %d", rec.Code)
		}
		if !strings.Contains(rec.Body.String(), `"error":"Internal server error"`) {
			t.Errorf("unexpected body %s", rec.Body.String())
		}
	})

	t.Run("RequestLogger records status", func(t *testing.T) {
		var buf strings.Builder
		logger := log.New(&buf)

		h := RequestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTeapot)
		}))
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/brew", nil))

		out := buf.String()
		if !strings.Contains(out, "status=418") || !strings.Contains(out, "path=/brew") {
			t.Errorf("expected status and path in log, got %q", out)
		}
	})
}

func TestSessions(t *testing.T) {
	t.Run("round trip", func(t *testing.T) {
		s, err := NewSessions("secret", false)
		if err != nil {
			t.Fatalf("failed to create sessions: %v", err)
		}

		rec := httptest.NewRecorder()
		s.Issue(rec, "UCuser")

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		for _, c := range rec.Result().Cookies() {
			req.AddCookie(c)
		}

		sess, err := s.Read(req)
		if err != nil {
			t.Fatalf("expected valid session, got %v", err)
		}
		if sess.UserID != "UCuser" {
			t.Errorf("expected UCuser, got %s", sess.UserID)
		}

		cookie := rec.Result().Cookies()[0]
		if !cookie.HttpOnly {
			t.Error("expected HttpOnly cookie")
		}
	})

	t.Run("missing cookie", func(t *testing.T) {
		s, _ := NewSessions("secret", false)
		if _, err := s.Read(httptest.NewRequest(http.MethodGet, "/", nil)); !errors.Is(err, ErrNoSession) {
			t.Errorf("expected ErrNoSession, got %v", err)
		}
	})

	t.Run("tampered cookie is rejected", func(t *testing.T) {
		s, _ := NewSessions("secret", false)
		rec := httptest.NewRecorder()
		s.Issue(rec, "UCuser")
		value := rec.Result().Cookies()[0].Value

		forged, _ := NewSessions("other-secret", false)
		forgedRec := httptest.NewRecorder()
		forged.Issue(forgedRec, "UCadmin")

		tests := map[string]string{
			"garbage":        "not-a-cookie",
			"flipped sig":    value[:len(value)-2] + "xx",
			"foreign secret": forgedRec.Result().Cookies()[0].Value,
		}
		for name, v := range tests {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.AddCookie(&http.Cookie{Name: SessionCookie, Value: v})
			if _, err := s.Read(req); !errors.Is(err, ErrInvalidSession) {
				t.Errorf("%s: expected ErrInvalidSession, got %v", name, err)
			}
		}
	})

	t.Run("expired cookie is rejected", func(t *testing.T) {
		s, _ := NewSessions("secret", false)
		s.now = func() time.Time { return time.Now().Add(-sessionLifetime - time.Hour) }

		rec := httptest.NewRecorder()
		s.Issue(rec, "UCuser")
		s.now = time.Now

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(rec.Result().Cookies()[0])
		if _, err := s.Read(req); !errors.Is(err, ErrInvalidSession) {
			t.Errorf("expected ErrInvalidSession, got %v", err)
		}
	})

	t.Run("Require passes session or denies", func(t *testing.T) {
		s, _ := NewSessions("secret", false)
		var got Session
		h := s.Require(
			func(w http.ResponseWriter, r *http.Request, sess Session) { got = sess },
			func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusUnauthorized) },
		)

		rec := httptest.NewRecorder()
		h(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("expected 401, got %d", rec.Code)
		}

		issue := httptest.NewRecorder()
		s.Issue(issue, "UCuser")
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(issue.Result().Cookies()[0])
		h(httptest.NewRecorder(), req)
		if got.UserID != "UCuser" {
			t.Errorf("expected session for UCuser, got %+v", got)
		}
	})
}

type oauthFixture struct {
	handler  *OAuthHandler
	sessions *Sessions
	auth     *tu.MockAuthenticator
	upstream *tu.MockUpstream
	creds    *memoryCredentials
	router   *BasicRouter
}

type memoryCredentials struct {
	saved map[string]*models.Credential
	err   error
}

func (m *memoryCredentials) Save(_ context.Context, c *models.Credential) error {
	if m.err != nil {
		return m.err
	}
	m.saved[c.UserID] = c
	return nil
}

func newOAuthFixture(t *testing.T) *oauthFixture {
	t.Helper()

	sessions, err := NewSessions("secret", false)
	if err != nil {
		t.Fatalf("failed to create sessions: %v", err)
	}

	f := &oauthFixture{
		sessions: sessions,
		auth: &tu.MockAuthenticator{Token: &oauth2.Token{
			AccessToken:  "access",
			RefreshToken: "refresh",
			Expiry:       time.Now().Add(time.Hour),
		}},
		upstream: tu.NewMockUpstream(),
		creds:    &memoryCredentials{saved: map[string]*models.Credential{}},
		router:   NewBasicRouter(),
	}
	f.upstream.Profile = &models.UserProfile{ChannelID: "UCuser", Title: "Me"}

	f.handler = NewOAuthHandler(OAuthConfig{
		Auth:        f.auth,
		Credentials: f.creds,
		Channels:    f.upstream,
		Sessions:    sessions,
		Redirect:    "/app",
		Logger:      quietLogger(),
	})
	f.router.Handler(f.handler)
	return f
}

// startLogin hits /auth/url and returns the issued state with its cookie.
func (f *oauthFixture) startLogin(t *testing.T) (string, *http.Cookie) {
	t.Helper()

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auth/url", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 from /auth/url, got %d", rec.Code)
	}

	var body struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}

	state := body.URL[strings.Index(body.URL, "state=")+len("state="):]
	for _, c := range rec.Result().Cookies() {
		if c.Name == StateCookie {
			return state, c
		}
	}
	t.Fatal("expected state cookie")
	return "", nil
}

func TestOAuthHandler(t *testing.T) {
	t.Run("callback stores credential and sets session", func(t *testing.T) {
		f := newOAuthFixture(t)
		state, cookie := f.startLogin(t)

		req := httptest.NewRequest(http.MethodGet, "/auth/callback?code=abc&state="+state, nil)
		req.AddCookie(cookie)
		rec := httptest.NewRecorder()
		f.router.ServeHTTP(rec, req)

		if rec.Code != http.StatusFound {
			t.Fatalf("expected 302, got %d: %s", rec.Code, rec.Body.String())
		}
		if loc := rec.Header().Get("Location"); loc != "/app" {
			t.Errorf("expected redirect to /app, got %s", loc)
		}
		if f.auth.LastCode != "abc" {
			t.Errorf("expected code abc exchanged, got %s", f.auth.LastCode)
		}

		cred, ok := f.creds.saved["UCuser"]
		if !ok {
			t.Fatal("expected credential saved under channel id")
		}
		if cred.AccessToken != "access" || models.StringValue(cred.RefreshToken) != "refresh" || cred.ExpiryDate == nil {
			t.Errorf("unexpected credential %+v", cred)
		}

		var session *http.Cookie
		for _, c := range rec.Result().Cookies() {
			if c.Name == SessionCookie {
				session = c
			}
		}
		if session == nil {
			t.Fatal("expected session cookie")
		}

		check := httptest.NewRequest(http.MethodGet, "/", nil)
		check.AddCookie(session)
		if sess, err := f.sessions.Read(check); err != nil || sess.UserID != "UCuser" {
			t.Errorf("expected readable session for UCuser, got %+v, %v", sess, err)
		}

		select {
		case res := <-f.handler.Logins():
			if res.UserID != "UCuser" || res.Err != nil {
				t.Errorf("unexpected login result %+v", res)
			}
		default:
			t.Error("expected login result")
		}
	})

	t.Run("callback rejects bad state", func(t *testing.T) {
		f := newOAuthFixture(t)
		_, cookie := f.startLogin(t)

		req := httptest.NewRequest(http.MethodGet, "/auth/callback?code=abc&state=forged", nil)
		req.AddCookie(cookie)
		rec := httptest.NewRecorder()
		f.router.ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
		if len(f.creds.saved) != 0 {
			t.Error("expected no credential saved")
		}
	})

	t.Run("callback rejects missing state cookie", func(t *testing.T) {
		f := newOAuthFixture(t)
		state, _ := f.startLogin(t)

		rec := httptest.NewRecorder()
		f.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auth/callback?code=abc&state="+state, nil))

		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("callback requires code", func(t *testing.T) {
		f := newOAuthFixture(t)

		rec := httptest.NewRecorder()
		f.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auth/callback", nil))

		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
		if !strings.Contains(rec.Body.String(), "Missing authorization code") {
			t.Errorf("unexpected body %s", rec.Body.String())
		}
	})

	t.Run("rejected exchange is 400", func(t *testing.T) {
		f := newOAuthFixture(t)
		f.auth.Err = shared.ErrReauthRequired
		state, cookie := f.startLogin(t)

		req := httptest.NewRequest(http.MethodGet, "/auth/callback?code=abc&state="+state, nil)
		req.AddCookie(cookie)
		rec := httptest.NewRecorder()
		f.router.ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("storage failure is 500", func(t *testing.T) {
		f := newOAuthFixture(t)
		f.creds.err = shared.ErrStorage
		state, cookie := f.startLogin(t)

		req := httptest.NewRequest(http.MethodGet, "/auth/callback?code=abc&state="+state, nil)
		req.AddCookie(cookie)
		rec := httptest.NewRecorder()
		f.router.ServeHTTP(rec, req)

		if rec.Code != http.StatusInternalServerError {
			t.Errorf("expected 500, got %d", rec.Code)
		}
		if strings.Contains(rec.Body.String(), "storage") {
			t.Errorf("expected internal error hidden, got %s", rec.Body.String())
		}
	})

	t.Run("falls back to generated user id", func(t *testing.T) {
		f := newOAuthFixture(t)
		f.upstream.Profile = nil
		state, cookie := f.startLogin(t)

		req := httptest.NewRequest(http.MethodGet, "/auth/callback?code=abc&state="+state, nil)
		req.AddCookie(cookie)
		rec := httptest.NewRecorder()
		f.router.ServeHTTP(rec, req)

		if rec.Code != http.StatusFound {
			t.Fatalf("expected 302, got %d", rec.Code)
		}
		if len(f.creds.saved) != 1 {
			t.Fatalf("expected 1 saved credential, got %d", len(f.creds.saved))
		}
		for id := range f.creds.saved {
			if id == "" || strings.HasPrefix(id, "UC") {
				t.Errorf("expected generated id, got %q", id)
			}
		}
	})

	t.Run("login redirects to consent", func(t *testing.T) {
		f := newOAuthFixture(t)

		rec := httptest.NewRecorder()
		f.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auth/login", nil))

		if rec.Code != http.StatusFound {
			t.Errorf("expected 302, got %d", rec.Code)
		}
		if loc := rec.Header().Get("Location"); !strings.HasPrefix(loc, "https://accounts.example.com/") {
			t.Errorf("unexpected redirect %s", loc)
		}
	})

	t.Run("logout clears session", func(t *testing.T) {
		f := newOAuthFixture(t)

		rec := httptest.NewRecorder()
		f.router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/auth/logout", nil))

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		cookies := rec.Result().Cookies()
		if len(cookies) != 1 || cookies[0].Name != SessionCookie || cookies[0].MaxAge >= 0 {
			t.Errorf("expected expired session cookie, got %+v", cookies)
		}
	})
}

func TestServerShutdown(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}

	srv := New(ln.Addr().String(), http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}), quietLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("expected clean shutdown, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
