package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/R3E-Network/microblog/internal/app/runtime"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			application, err := runtime.NewApplication(cfg)
			if err != nil {
				return fmt.Errorf("initialise application: %w", err)
			}

			runErr := application.Run(cmd.Context())

			shutdownErr := application.Shutdown(context.Background())
			if runErr != nil {
				return fmt.Errorf("server error: %w", runErr)
			}
			if shutdownErr != nil {
				return fmt.Errorf("shutdown: %w", shutdownErr)
			}
			newPrinter(cmd.OutOrStdout()).Success("server stopped")
			return nil
		},
	}
}
