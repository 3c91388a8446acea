package server

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/ytpl/internal/shared"
)

// Cookie names.
const (
	SessionCookie = "ytpl_session"
	StateCookie   = "ytpl_oauth_state"
)

const (
	sessionLifetime = 30 * 24 * time.Hour
	stateLifetime   = 10 * time.Minute
)

var (
	ErrNoSession      = errors.New("no session")
	ErrInvalidSession = errors.New("invalid session")
)

// Session identifies the signed-in user of a request.
type Session struct {
	UserID    string
	ExpiresAt time.Time
}

// SessionHandlerFunc handles a request that carries a verified [Session].
type SessionHandlerFunc func(w http.ResponseWriter, r *http.Request, s Session)

// Sessions issues and verifies HMAC-signed session cookies.
//
// The cookie value is base64(userID|expiry).base64(hmac-sha256).
type Sessions struct {
	secret []byte
	secure bool
	now    func() time.Time
}

// NewSessions creates a cookie signer. An empty secret gets a random one, which invalidates
// every session on restart.
func NewSessions(secret string, secure bool) (*Sessions, error) {
	key := []byte(secret)
	if len(key) == 0 {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("failed to generate session secret: %w", err)
		}
	}
	return &Sessions{secret: key, secure: secure, now: time.Now}, nil
}

// Issue sets the session cookie for userID.
func (s *Sessions) Issue(w http.ResponseWriter, userID string) {
	expires := s.now().Add(sessionLifetime)
	payload := userID + "|" + strconv.FormatInt(expires.Unix(), 10)

	http.SetCookie(w, s.cookie(SessionCookie, s.sign(payload), expires))
}

// Clear expires the session cookie.
func (s *Sessions) Clear(w http.ResponseWriter) {
	c := s.cookie(SessionCookie, "", time.Unix(0, 0))
	c.MaxAge = -1
	http.SetCookie(w, c)
}

// Read verifies the session cookie of r.
func (s *Sessions) Read(r *http.Request) (Session, error) {
	c, err := r.Cookie(SessionCookie)
	if err != nil || c.Value == "" {
		return Session{}, ErrNoSession
	}

	payload, ok := s.verify(c.Value)
	if !ok {
		return Session{}, ErrInvalidSession
	}

	userID, rawExpiry, found := strings.Cut(payload, "|")
	if !found || userID == "" {
		return Session{}, ErrInvalidSession
	}

	unix, err := strconv.ParseInt(rawExpiry, 10, 64)
	if err != nil {
		return Session{}, ErrInvalidSession
	}

	expires := time.Unix(unix, 0)
	if !s.now().Before(expires) {
		return Session{}, ErrInvalidSession
	}
	return Session{UserID: userID, ExpiresAt: expires}, nil
}

// Require passes the verified [Session] to next, or calls deny when the cookie is missing or invalid.
func (s *Sessions) Require(next SessionHandlerFunc, deny http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := s.Read(r)
		if err != nil {
			deny(w, r)
			return
		}
		next(w, r, sess)
	}
}

// IssueState sets a short-lived cookie holding a fresh OAuth state value and returns it.
func (s *Sessions) IssueState(w http.ResponseWriter) string {
	state := shared.GenerateID()
	http.SetCookie(w, s.cookie(StateCookie, s.sign(state), s.now().Add(stateLifetime)))
	return state
}

// VerifyState reports whether state matches the state cookie, clearing the cookie either way.
func (s *Sessions) VerifyState(w http.ResponseWriter, r *http.Request, state string) bool {
	c := s.cookie(StateCookie, "", time.Unix(0, 0))
	c.MaxAge = -1
	http.SetCookie(w, c)

	if state == "" {
		return false
	}

	cookie, err := r.Cookie(StateCookie)
	if err != nil {
		return false
	}

	stored, ok := s.verify(cookie.Value)
	return ok && hmac.Equal([]byte(stored), []byte(state))
}

func (s *Sessions) cookie(name, value string, expires time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	}
}

func (s *Sessions) sign(payload string) string {
	enc := base64.RawURLEncoding.EncodeToString([]byte(payload))
	return enc + "." + base64.RawURLEncoding.EncodeToString(s.mac(enc))
}

func (s *Sessions) verify(value string) (string, bool) {
	enc, sig, found := strings.Cut(value, ".")
	if !found {
		return "", false
	}

	got, err := base64.RawURLEncoding.DecodeString(sig)
	if err != nil || !hmac.Equal(got, s.mac(enc)) {
		return "", false
	}

	payload, err := base64.RawURLEncoding.DecodeString(enc)
	if err != nil {
		return "", false
	}
	return string(payload), true
}

func (s *Sessions) mac(data string) []byte {
	h := hmac.New(sha256.New, s.secret)
	h.Write([]byte(data))
	return h.Sum(nil)
}
