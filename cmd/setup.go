package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/ytpl/internal/shared"
	"github.com/urfave/cli/v3"
)

// SetupDatabase initializes the database and runs migrations.
func (r *Runner) SetupDatabase(ctx context.Context, cmd *cli.Command) error {
	cfg := r.config.Database
	r.logger.Info("initializing database", "driver", cfg.Driver)

	s, err := r.openStore()
	if err != nil {
		return fmt.Errorf("failed to set up database: %w", err)
	}
	defer s.close()

	version, err := shared.CurrentVersion(s.db)
	if err != nil {
		return err
	}

	r.logger.Infof("setup complete for database: %v", cfg.DataSource())
	return r.writePlain("%s Database ready (schema version %d)\n", styles.OK("✓"), version)
}

// SetupRollback rolls back the most recent migration.
func (r *Runner) SetupRollback(ctx context.Context, cmd *cli.Command) error {
	db := r.db
	if db == nil {
		cfg := r.config.Database
		var err error
		if db, err = shared.NewDatabase(cfg.Driver, cfg.DataSource()); err != nil {
			return err
		}
		defer db.Close()
	}

	if err := shared.RollbackMigration(db); err != nil {
		return fmt.Errorf("rollback failed: %w", err)
	}

	version, err := shared.CurrentVersion(db)
	if err != nil {
		return err
	}
	r.logger.Info("rolled back migration", "version", version)
	return r.writePlain("%s Rolled back to schema version %d\n", styles.OK("✓"), version)
}

// SetupConfig writes the config template to --output, or the --config path.
func (r *Runner) SetupConfig(ctx context.Context, cmd *cli.Command) error {
	path := cmd.String("output")
	if path == "" {
		path = cmd.String("config")
	}
	if path == "" {
		return fmt.Errorf("%w: --output", shared.ErrMissingArgument)
	}

	if err := shared.CreateConfigFile(path); err != nil {
		return err
	}

	r.logger.Info("config file created", "path", path)
	r.writePlain("%s Config written to %s\n", styles.OK("✓"), path)
	r.writePlainln("Next steps:")
	r.writePlain("1. Set credentials.google.client_id and client_secret\n")
	r.writePlain("2. Run 'ytpl setup database'\n")
	return r.writePlain("3. Run 'ytpl auth login' or 'ytpl serve'\n")
}
