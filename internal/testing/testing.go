// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"testing"

	"github.com/desertthunder/ytpl/internal/models"
	"github.com/desertthunder/ytpl/internal/services"
	"github.com/desertthunder/ytpl/internal/shared"
	"golang.org/x/oauth2"
)

// Upstream operation names counted by [MockUpstream].
const (
	OpMyPlaylists      = "MyPlaylists"
	OpChannelPlaylists = "ChannelPlaylists"
	OpPlaylist         = "Playlist"
	OpPlaylistItems    = "PlaylistItems"
	OpChannel          = "Channel"
	OpMyChannel        = "MyChannel"
)

// MockUpstream is a test double for [services.Upstream].
//
// Responses are looked up by id and page token. A missing entry returns [shared.ErrNotFound].
// Safe for use from background goroutines.
type MockUpstream struct {
	mu sync.Mutex

	MyPages      map[string]*models.PlaylistPage         // page token -> page
	ChannelPages map[string]*models.PlaylistPage         // channel id -> page
	Playlists    map[string]*models.Playlist             // playlist id -> metadata
	Videos       map[string]map[string]*models.VideoPage // playlist id -> page token -> page
	Channels     map[string]*models.Channel              // channel id -> channel
	Profile      *models.UserProfile
	Errors       map[string]error // op -> error

	calls map[string]int
	auths []services.Auth
}

func NewMockUpstream() *MockUpstream {
	return &MockUpstream{
		MyPages:      map[string]*models.PlaylistPage{},
		ChannelPages: map[string]*models.PlaylistPage{},
		Playlists:    map[string]*models.Playlist{},
		Videos:       map[string]map[string]*models.VideoPage{},
		Channels:     map[string]*models.Channel{},
		Errors:       map[string]error{},
		calls:        map[string]int{},
	}
}

// SetVideos registers the page returned for playlistID at pageToken.
func (m *MockUpstream) SetVideos(playlistID, pageToken string, page *models.VideoPage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Videos[playlistID] == nil {
		m.Videos[playlistID] = map[string]*models.VideoPage{}
	}
	m.Videos[playlistID][pageToken] = page
}

// SetError makes op fail with err.
func (m *MockUpstream) SetError(op string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Errors[op] = err
}

// Calls returns how many times op was invoked.
func (m *MockUpstream) Calls(op string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[op]
}

// TotalCalls returns the number of upstream calls of any kind.
func (m *MockUpstream) TotalCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := 0
	for _, n := range m.calls {
		total += n
	}
	return total
}

// LastAuth returns the [services.Auth] of the most recent call.
func (m *MockUpstream) LastAuth() services.Auth {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.auths) == 0 {
		return services.Auth{}
	}
	return m.auths[len(m.auths)-1]
}

func (m *MockUpstream) record(op string, auth services.Auth) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[op]++
	m.auths = append(m.auths, auth)
	return m.Errors[op]
}

func (m *MockUpstream) MyPlaylists(_ context.Context, auth services.Auth, pageToken string) (*models.PlaylistPage, error) {
	if err := m.record(OpMyPlaylists, auth); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if page, ok := m.MyPages[pageToken]; ok {
		return page, nil
	}
	return nil, fmt.Errorf("%w: playlists page %q", shared.ErrNotFound, pageToken)
}

func (m *MockUpstream) ChannelPlaylists(_ context.Context, auth services.Auth, channelID, _ string) (*models.PlaylistPage, error) {
	if err := m.record(OpChannelPlaylists, auth); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if page, ok := m.ChannelPages[channelID]; ok {
		return page, nil
	}
	return nil, fmt.Errorf("%w: channel %s", shared.ErrNotFound, channelID)
}

func (m *MockUpstream) Playlist(_ context.Context, auth services.Auth, playlistID string) (*models.Playlist, error) {
	if err := m.record(OpPlaylist, auth); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.Playlists[playlistID]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, fmt.Errorf("%w: playlist %s", shared.ErrNotFound, playlistID)
}

func (m *MockUpstream) PlaylistItems(_ context.Context, auth services.Auth, playlistID, pageToken string) (*models.VideoPage, error) {
	if err := m.record(OpPlaylistItems, auth); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if page, ok := m.Videos[playlistID][pageToken]; ok {
		cp := *page
		return &cp, nil
	}
	return nil, fmt.Errorf("%w: playlist %s", shared.ErrNotFound, playlistID)
}

func (m *MockUpstream) Channel(_ context.Context, auth services.Auth, channelID string) (*models.Channel, error) {
	if err := m.record(OpChannel, auth); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if ch, ok := m.Channels[channelID]; ok {
		return ch, nil
	}
	return nil, fmt.Errorf("%w: channel %s", shared.ErrNotFound, channelID)
}

func (m *MockUpstream) MyChannel(_ context.Context, auth services.Auth) (*models.UserProfile, error) {
	if err := m.record(OpMyChannel, auth); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Profile == nil {
		return nil, fmt.Errorf("%w: no channel", shared.ErrNotFound)
	}
	return m.Profile, nil
}

// MockTokens is a test double for a token source keyed by user id.
type MockTokens struct {
	mu     sync.Mutex
	Tokens map[string]string
	Err    error
	calls  int
}

func NewMockTokens(tokens map[string]string) *MockTokens {
	return &MockTokens{Tokens: tokens}
}

func (m *MockTokens) GetValidAccessToken(_ context.Context, userID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.Err != nil {
		return "", m.Err
	}
	if tok, ok := m.Tokens[userID]; ok {
		return tok, nil
	}
	return "", fmt.Errorf("%w: %s", shared.ErrNoCredential, userID)
}

func (m *MockTokens) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// MockAuthenticator is a test double for [services.Authenticator].
type MockAuthenticator struct {
	Token      *oauth2.Token
	Err        error
	LastCode   string
	RefreshErr error
}

func (m *MockAuthenticator) AuthCodeURL(state string) string {
	return "https://accounts.example.com/o/oauth2/auth?state=" + state
}

func (m *MockAuthenticator) Exchange(_ context.Context, code string) (*oauth2.Token, error) {
	m.LastCode = code
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Token, nil
}

func (m *MockAuthenticator) Refresh(context.Context, string) (*oauth2.Token, error) {
	if m.RefreshErr != nil {
		return nil, m.RefreshErr
	}
	return m.Token, nil
}

// SetupDB creates an in-memory SQLite database with migrations applied and closes it on cleanup.
func SetupDB(t *testing.T) *shared.Database {
	t.Helper()

	db, err := shared.NewDatabase(shared.DriverSQLite, ":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() { db.Close() })
	return db
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
