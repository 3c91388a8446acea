package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/ytpl/internal/repositories"
	"github.com/desertthunder/ytpl/internal/services"
	"github.com/desertthunder/ytpl/internal/shared"
	"github.com/desertthunder/ytpl/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config      *shared.Config
	configPath  string
	db          *shared.Database
	upstream    services.Upstream
	auth        services.Authenticator
	httpClient  *http.Client
	logger      *log.Logger
	output      io.Writer
	openBrowser func(string) error
}

// RunnerOpts contains configuration options for creating a Runner.
//
// DB, Upstream and Auth replace the ones built from config when set.
type RunnerOpts struct {
	Config      *shared.Config
	ConfigPath  string
	DB          *shared.Database
	Upstream    services.Upstream
	Auth        services.Authenticator
	HTTPClient  *http.Client
	Logger      *log.Logger
	Output      io.Writer
	OpenBrowser func(string) error
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.OpenBrowser == nil {
		opts.OpenBrowser = shared.OpenBrowser
	}

	return &Runner{
		config:      opts.Config,
		configPath:  opts.ConfigPath,
		db:          opts.DB,
		upstream:    opts.Upstream,
		auth:        opts.Auth,
		httpClient:  opts.HTTPClient,
		logger:      opts.Logger,
		output:      opts.Output,
		openBrowser: opts.OpenBrowser,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		serveCommand, setupCommand, authCommand, cacheCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// Before loads the config file named by --config, when present, and applies the log level.
func (r *Runner) Before(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	path := cmd.String("config")
	if path == "" {
		path = r.configPath
	}

	if _, err := os.Stat(path); err == nil {
		config, err := shared.LoadConfig(path)
		if err != nil {
			return ctx, err
		}
		r.config = config
		r.configPath = path
	} else if cmd.IsSet("config") {
		r.logger.Warn("config file not found, using defaults", "path", path)
	}

	if path := r.config.Log.File; path != "" {
		logger, err := shared.NewFileLogger(path)
		if err != nil {
			return ctx, err
		}
		r.logger = logger
	}

	level, err := shared.ParseLogLevel(r.config.Log.Level)
	if err != nil {
		return ctx, err
	}
	if cmd.Bool("debug") {
		level = log.DebugLevel
	}
	shared.SetLogLevel(r.logger, level)

	return ctx, nil
}

// store holds the repositories for one command run.
type store struct {
	db          *shared.Database
	credentials *repositories.CredentialRepository
	playlists   *repositories.PlaylistRepository
	videos      *repositories.VideoRepository
	close       func()
}

// openStore opens the configured database and applies pending migrations.
func (r *Runner) openStore() (*store, error) {
	db := r.db
	closeFn := func() {}

	if db == nil {
		cfg := r.config.Database
		r.logger.Debug("opening database", "driver", cfg.Driver)

		var err error
		db, err = shared.NewDatabase(cfg.Driver, cfg.DataSource())
		if err != nil {
			return nil, err
		}
		shared.ConfigureDatabase(db, cfg.MaxOpenConns, cfg.MaxIdleConns)
		closeFn = func() { db.Close() }
	}

	if err := shared.RunMigrations(db); err != nil {
		closeFn()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &store{
		db:          db,
		credentials: repositories.NewCredentialRepository(db),
		playlists:   repositories.NewPlaylistRepository(db),
		videos:      repositories.NewVideoRepository(db),
		close:       closeFn,
	}, nil
}

// app is a [store] plus the upstream-facing services built on it.
type app struct {
	*store
	auth     services.Authenticator
	upstream services.Upstream
	tokens   *services.TokenRefresher
	catalog  *tasks.Catalog
}

func (r *Runner) openApp(ctx context.Context) (*app, error) {
	s, err := r.openStore()
	if err != nil {
		return nil, err
	}

	auth := r.auth
	if auth == nil {
		if auth, err = services.NewGoogleAuth(r.config.Credentials.Google, r.httpClient); err != nil {
			s.close()
			return nil, err
		}
	}

	upstream := r.upstream
	if upstream == nil {
		opts := services.YouTubeOptionsFromConfig(r.config.Upstream, shared.WithLogger(r.logger, "component", "youtube"))
		if upstream, err = services.NewYouTubeService(ctx, opts); err != nil {
			s.close()
			return nil, err
		}
	}

	tokens := services.NewTokenRefresher(s.credentials, auth, shared.WithLogger(r.logger, "component", "tokens"))
	catalog := tasks.NewCatalog(tasks.CatalogConfig{
		Upstream:         upstream,
		Tokens:           tokens,
		Playlists:        s.playlists,
		Videos:           s.videos,
		APIKey:           r.config.Credentials.Google.APIKey,
		SyncWriteBack:    r.config.Cache.SyncWriteBack,
		WriteBackTimeout: r.config.Cache.WriteBackTimeout,
		Logger:           shared.WithLogger(r.logger, "component", "catalog"),
	})

	return &app{store: s, auth: auth, upstream: upstream, tokens: tokens, catalog: catalog}, nil
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", styles.Title(title))
	r.writePlain("═══════════════════════════════════════\n")
}
