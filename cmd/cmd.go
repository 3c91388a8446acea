// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

// command returns the root command.
func (r *Runner) command() *cli.Command {
	return &cli.Command{
		Name:    "ytpl",
		Usage:   "Browse YouTube playlists through a caching JSON proxy",
		Version: "0.1.0",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				Value:   "config.toml",
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "Enable debug logging",
			},
		},
		Before:   r.Before,
		Commands: r.register(),
	}
}

// serveCommand runs the HTTP server.
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the playlist proxy server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "host",
				Usage: "Listen host",
			},
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Listen port",
			},
			&cli.StringFlag{
				Name:    "client-id",
				Usage:   "Google OAuth client id",
				Sources: cli.EnvVars("GOOGLE_CLIENT_ID"),
			},
			&cli.StringFlag{
				Name:    "client-secret",
				Usage:   "Google OAuth client secret",
				Sources: cli.EnvVars("GOOGLE_CLIENT_SECRET"),
			},
			&cli.StringFlag{
				Name:    "redirect-uri",
				Usage:   "OAuth redirect URI registered with Google",
				Sources: cli.EnvVars("REDIRECT_URI"),
			},
			&cli.StringFlag{
				Name:    "api-key",
				Usage:   "YouTube Data API key for public lookups",
				Sources: cli.EnvVars("YOUTUBE_API_KEY"),
			},
			&cli.StringFlag{
				Name:    "database-url",
				Usage:   "postgres:// connection string or SQLite path",
				Sources: cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "session-secret",
				Usage:   "Key used to sign session cookies",
				Sources: cli.EnvVars("SESSION_SECRET"),
			},
		},
		Action: r.Serve,
	}
}

// setupCommand handles setup operations for the database and configuration.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:   "database",
				Usage:  "Initialize database and run migrations",
				Action: r.SetupDatabase,
			},
			{
				Name:   "rollback",
				Usage:  "Roll back the most recent migration",
				Action: r.SetupRollback,
			},
			{
				Name:  "config",
				Usage: "Write a config file from the built-in template",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Path of the new config file (defaults to --config)",
					},
				},
				Action: r.SetupConfig,
			},
		},
	}
}

// authCommand handles authentication operations
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Manage Google sign-in",
		Commands: []*cli.Command{
			{
				Name:  "login",
				Usage: "Sign in through the browser and store the credential",
				Flags: []cli.Flag{
					&cli.DurationFlag{
						Name:  "timeout",
						Usage: "How long to wait for the browser sign-in",
						Value: defaultLoginTimeout,
					},
					&cli.BoolFlag{
						Name:  "no-browser",
						Usage: "Print the sign-in URL instead of opening a browser",
					},
				},
				Action: r.AuthLogin,
			},
			{
				Name:  "status",
				Usage: "Show the stored credential for a user",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "user",
						Aliases:  []string{"u"},
						Usage:    "User (channel) id",
						Required: true,
					},
					&cli.BoolFlag{
						Name:  "refresh",
						Usage: "Refresh the access token if it is stale",
					},
				},
				Action: r.AuthStatus,
			},
			{
				Name:   "users",
				Usage:  "List users with a stored credential",
				Action: r.AuthUsers,
			},
		},
	}
}

// cacheCommand inspects and maintains the local playlist cache
func cacheCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "cache",
		Usage: "Inspect and refresh the local playlist cache",
		Commands: []*cli.Command{
			{
				Name:  "playlists",
				Usage: "List cached playlists owned by a user",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "user",
						Aliases:  []string{"u"},
						Usage:    "User (channel) id",
						Required: true,
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.CachePlaylists,
			},
			{
				Name:  "videos",
				Usage: "List cached videos of a playlist",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "playlist",
						Usage:    "Playlist id",
						Required: true,
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.CacheVideos,
			},
			{
				Name:  "export",
				Usage: "Export a cached playlist",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "playlist",
						Usage:    "Playlist id",
						Required: true,
					},
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "csv, markdown, txt or json",
						Value:   "json",
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Output path, or - for stdout (markdown writes a directory)",
					},
				},
				Action: r.CacheExport,
			},
			{
				Name:  "refresh",
				Usage: "Fetch every playlist a user owns and rebuild the cache",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "user",
						Aliases:  []string{"u"},
						Usage:    "User (channel) id",
						Required: true,
					},
					&cli.IntFlag{
						Name:  "workers",
						Usage: "Concurrent playlist fetches",
						Value: 3,
					},
					&cli.IntFlag{
						Name:  "max-pages",
						Usage: "Page limit per listing",
						Value: 20,
					},
				},
				Action: r.CacheRefresh,
			},
			{
				Name:  "delete",
				Usage: "Remove a playlist and its videos from the cache",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "playlist",
						Usage:    "Playlist id",
						Required: true,
					},
				},
				Action: r.CacheDelete,
			},
		},
	}
}
