package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/desertthunder/ytpl/internal/shared"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// Scopes requested at consent. force-ssl is the narrowest scope that also covers later write calls.
var Scopes = []string{
	"https://www.googleapis.com/auth/youtube.readonly",
	"https://www.googleapis.com/auth/youtube.force-ssl",
}

// GoogleAuth implements [Authenticator] with an [oauth2.Config] for Google.
type GoogleAuth struct {
	config     *oauth2.Config
	httpClient *http.Client
}

// NewGoogleAuth creates a [GoogleAuth] from the configured client credentials.
//
// AuthURL and TokenURL override [google.Endpoint] when set. httpClient may be nil.
func NewGoogleAuth(cfg shared.GoogleConfig, httpClient *http.Client) (*GoogleAuth, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, fmt.Errorf("%w: google client_id and client_secret are required", shared.ErrMissingCredentials)
	}

	endpoint := google.Endpoint
	if cfg.AuthURL != "" {
		endpoint.AuthURL = cfg.AuthURL
	}
	if cfg.TokenURL != "" {
		endpoint.TokenURL = cfg.TokenURL
	}

	return &GoogleAuth{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURI,
			Scopes:       Scopes,
			Endpoint:     endpoint,
		},
		httpClient: httpClient,
	}, nil
}

// AuthCodeURL returns the consent URL. Offline access with forced approval
// makes Google return a refresh token on every sign-in.
func (g *GoogleAuth) AuthCodeURL(state string) string {
	return g.config.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// Exchange trades an authorization code for a token.
func (g *GoogleAuth) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	token, err := g.config.Exchange(g.context(ctx), code)
	if err != nil {
		return nil, classifyTokenError("exchange", err)
	}
	return token, nil
}

// Refresh runs the refresh-token grant once.
func (g *GoogleAuth) Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	if refreshToken == "" {
		return nil, fmt.Errorf("%w: no refresh token", shared.ErrReauthRequired)
	}

	src := g.config.TokenSource(g.context(ctx), &oauth2.Token{RefreshToken: refreshToken})
	token, err := src.Token()
	if err != nil {
		return nil, classifyTokenError("refresh", err)
	}
	return token, nil
}

func (g *GoogleAuth) context(ctx context.Context) context.Context {
	if g.httpClient == nil {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, g.httpClient)
}

// classifyTokenError treats a rejected grant as needing a new consent and
// everything else as the token endpoint being unreachable.
func classifyTokenError(op string, err error) error {
	var rerr *oauth2.RetrieveError
	if errors.As(err, &rerr) && rerr.Response != nil {
		code := rerr.Response.StatusCode
		if code >= 400 && code < 500 {
			return fmt.Errorf("%w: %s rejected: %s", shared.ErrReauthRequired, op, rerr.ErrorCode)
		}
		return fmt.Errorf("%w: %s: token endpoint status %d", shared.ErrUpstreamUnavailable, op, code)
	}
	return fmt.Errorf("%w: %s: %v", shared.ErrUpstreamUnavailable, op, err)
}
