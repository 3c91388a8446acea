package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/desertthunder/ytpl/internal/server"
	"github.com/desertthunder/ytpl/internal/shared"
	"github.com/desertthunder/ytpl/internal/web"
	"github.com/urfave/cli/v3"
)

// Serve runs the proxy until SIGINT or SIGTERM, then drains requests and pending cache writes.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	r.applyServeFlags(cmd)
	if err := r.config.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := r.openApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	handler, _, err := r.handler(a)
	if err != nil {
		return err
	}

	srv := server.New(r.config.Server.Addr(), handler, r.logger)
	err = srv.Run(ctx)

	r.logger.Info("waiting for cache writes")
	a.catalog.Wait()
	return err
}

// applyServeFlags copies flag and environment overrides onto the loaded config.
func (r *Runner) applyServeFlags(cmd *cli.Command) {
	cfg := r.config

	if v := cmd.String("host"); v != "" {
		cfg.Server.Host = v
	}
	if v := cmd.Int("port"); v > 0 {
		cfg.Server.Port = v
	}
	if v := cmd.String("client-id"); v != "" {
		cfg.Credentials.Google.ClientID = v
	}
	if v := cmd.String("client-secret"); v != "" {
		cfg.Credentials.Google.ClientSecret = v
	}
	if v := cmd.String("redirect-uri"); v != "" {
		cfg.Credentials.Google.RedirectURI = v
	}
	if v := cmd.String("api-key"); v != "" {
		cfg.Credentials.Google.APIKey = v
	}
	if v := cmd.String("session-secret"); v != "" {
		cfg.Server.SessionSecret = v
	}
	if v := cmd.String("database-url"); v != "" {
		applyDatabaseURL(&cfg.Database, v)
	}
}

// applyDatabaseURL selects Postgres for postgres:// URLs and treats anything else as a SQLite path.
func applyDatabaseURL(db *shared.DatabaseConfig, url string) {
	if strings.HasPrefix(url, "postgres://") || strings.HasPrefix(url, "postgresql://") {
		db.Driver = shared.DriverPostgres
		db.DSN = url
		return
	}
	db.Driver = shared.DriverSQLite
	db.Path = url
}

// handler builds the full route table on a.
func (r *Runner) handler(a *app) (*server.BasicRouter, *server.OAuthHandler, error) {
	sessions, err := server.NewSessions(r.config.Server.SessionSecret, r.config.Server.SecureCookies)
	if err != nil {
		return nil, nil, err
	}
	if r.config.Server.SessionSecret == "" {
		r.logger.Warn("no session secret configured, sessions will not survive a restart")
	}

	oauth := server.NewOAuthHandler(server.OAuthConfig{
		Auth:        a.auth,
		Credentials: a.credentials,
		Channels:    a.upstream,
		Sessions:    sessions,
		Redirect:    r.config.Server.PostLoginRedirect,
		Logger:      shared.WithLogger(r.logger, "component", "oauth"),
	})

	router := server.NewBasicRouter()
	router.Use(server.Recoverer(r.logger), server.RequestLogger(shared.WithLogger(r.logger, "component", "http")))
	router.Handler(oauth)
	web.New(a.catalog, sessions, a.db, shared.WithLogger(r.logger, "component", "web")).Register(router)

	return router, oauth, nil
}
