package cli

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/R3E-Network/microblog/internal/app/runtime"
	"github.com/R3E-Network/microblog/internal/platform/migrations"
)

var errNoDatabase = errors.New("MICROBLOG_DATABASE_URL is required")

func openConfiguredDatabase() (*sql.DB, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if cfg.Database.DSN == "" {
		return nil, errNoDatabase
	}
	db, err := runtime.OpenDatabase(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return db, nil
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back schema migrations",
	}

	up := &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := openConfiguredDatabase()
			if err != nil {
				return err
			}
			defer db.Close()

			if err := migrations.Up(cmd.Context(), db); err != nil {
				return err
			}
			return reportVersion(cmd, db)
		},
	}

	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if steps <= 0 {
				return fmt.Errorf("--steps must be positive, got %d", steps)
			}
			db, err := openConfiguredDatabase()
			if err != nil {
				return err
			}
			defer db.Close()

			if err := migrations.Down(cmd.Context(), db, steps); err != nil {
				return err
			}
			return reportVersion(cmd, db)
		},
	}
	down.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back")

	cmd.AddCommand(up, down)
	return cmd
}

func reportVersion(cmd *cobra.Command, db *sql.DB) error {
	version, dirty, err := migrations.Version(cmd.Context(), db)
	if err != nil {
		return err
	}
	p := newPrinter(cmd.OutOrStdout())
	if dirty {
		p.Warning(fmt.Sprintf("schema version %d is dirty", version))
		return nil
	}
	p.Success(fmt.Sprintf("schema at version %d", version))
	return nil
}
