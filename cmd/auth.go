package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/desertthunder/ytpl/internal/server"
	"github.com/urfave/cli/v3"
)

const defaultLoginTimeout = 5 * time.Minute

// AuthLogin runs the sign-in routes on a temporary server, opens the browser at /auth/login
// and waits for the callback to store a credential.
func (r *Runner) AuthLogin(ctx context.Context, cmd *cli.Command) error {
	a, err := r.openApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	router, oauth, err := r.handler(a)
	if err != nil {
		return err
	}
	router.HandleFunc(http.MethodGet, "/{$}", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write([]byte("Signed in. You can close this window.\n"))
	})

	addr := r.config.Server.Addr()
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	srvCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- server.New(addr, router, r.logger).Serve(srvCtx, ln)
	}()

	url := loginURL(r.config.Server.BaseURL, ln.Addr())
	if cmd.Bool("no-browser") {
		r.writePlain("Open %s to sign in\n", url)
	} else if err := r.openBrowser(url); err != nil {
		r.logger.Warn("could not open browser", "error", err)
		r.writePlain("Open %s to sign in\n", url)
	}

	timer := time.NewTimer(cmd.Duration("timeout"))
	defer timer.Stop()

	var res server.LoginResult
	select {
	case res = <-oauth.Logins():
	case <-timer.C:
		res.Err = errors.New("timed out waiting for sign-in")
	case <-ctx.Done():
		res.Err = ctx.Err()
	}

	cancel()
	if err := <-done; err != nil {
		r.logger.Warn("login server stopped with error", "error", err)
	}

	if res.Err != nil {
		return fmt.Errorf("sign-in failed: %w", res.Err)
	}
	return r.writePlain("%s Signed in as %s\n", styles.OK("✓"), res.UserID)
}

// loginURL prefers the configured base URL so the state cookie and the OAuth redirect share a host.
func loginURL(baseURL string, addr net.Addr) string {
	base := strings.TrimRight(baseURL, "/")
	if base == "" {
		base = "http://" + addr.String()
	}
	return base + "/auth/login"
}

// AuthStatus prints the stored credential for --user, refreshing it first with --refresh.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	userID := cmd.String("user")

	var s *store
	if cmd.Bool("refresh") {
		a, err := r.openApp(ctx)
		if err != nil {
			return err
		}
		defer a.close()

		if _, err := a.tokens.GetValidAccessToken(ctx, userID); err != nil {
			return fmt.Errorf("refresh failed: %w", err)
		}
		s = a.store
	} else {
		var err error
		if s, err = r.openStore(); err != nil {
			return err
		}
		defer s.close()
	}

	cred, err := s.credentials.Get(ctx, userID)
	if err != nil {
		return err
	}

	expiry := "unknown"
	if exp := cred.Expiry(); !exp.IsZero() {
		expiry = exp.Local().Format(time.RFC1123)
	}

	status := styles.OK("valid")
	if cred.Expired(time.Now()) {
		status = styles.Warn("expired")
	}

	refresh := "yes"
	if !cred.HasRefreshToken() {
		refresh = styles.Err("no (sign in again when the token expires)")
	}

	r.writePlainHeader("Credential for " + cred.UserID)
	r.writePlain("Status:        %s\n", status)
	r.writePlain("Expires:       %s\n", expiry)
	return r.writePlain("Refresh token: %s\n", refresh)
}

// AuthUsers lists the users with a stored credential.
func (r *Runner) AuthUsers(ctx context.Context, cmd *cli.Command) error {
	s, err := r.openStore()
	if err != nil {
		return err
	}
	defer s.close()

	users, err := s.credentials.List(ctx)
	if err != nil {
		return err
	}

	if len(users) == 0 {
		return r.writePlain("%s\n", styles.Help("No stored credentials. Run 'ytpl auth login'."))
	}
	for _, u := range users {
		r.writePlain("%s\n", u)
	}
	return nil
}
