package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/R3E-Network/microblog/internal/app/runtime"
	"github.com/R3E-Network/microblog/internal/app/seed"
	"github.com/R3E-Network/microblog/internal/app/services/users"
	"github.com/R3E-Network/microblog/internal/app/storage/postgres"
	"github.com/R3E-Network/microblog/internal/platform/migrations"
)

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Insert the demo users into the configured database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.Database.DSN == "" {
				return errNoDatabase
			}
			db, err := runtime.OpenDatabase(cfg.Database)
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer db.Close()

			if cfg.Database.AutoMigrate {
				if err := migrations.Up(cmd.Context(), db); err != nil {
					return err
				}
			}

			log := runtime.NewLogger(cfg).Named("seed")
			store := postgres.New(db)
			created, err := seed.Run(cmd.Context(), users.New(store, store, log), log)
			if err != nil {
				return err
			}

			p := newPrinter(cmd.OutOrStdout())
			if len(created) == 0 {
				p.Info("demo data already present")
				return nil
			}
			for _, u := range created {
				p.Success(fmt.Sprintf("user %d %q api-key=%s", u.ID, u.Name, u.APIKey))
			}
			return nil
		},
	}
}
