// Package cli implements the microblog command line.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/R3E-Network/microblog/internal/config"
)

// Build metadata, set with -ldflags at link time.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// VersionString describes the running build.
func VersionString() string {
	return fmt.Sprintf("microblog %s (commit=%s, date=%s)", Version, Commit, Date)
}

// Execute runs the root command with process arguments and returns the exit
// code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := NewRootCmd(os.Stdout, os.Stderr)
	if err := cmd.ExecuteContext(ctx); err != nil {
		newPrinter(os.Stderr).Error(err.Error())
		return 1
	}
	return 0
}

// NewRootCmd builds the command tree.
func NewRootCmd(out, errOut io.Writer) *cobra.Command {
	var configFile string

	cmd := &cobra.Command{
		Use:           "microblog",
		Short:         "Microblog API server",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			if configFile != "" {
				return os.Setenv("MICROBLOG_CONFIG_FILE", configFile)
			}
			return nil
		},
	}
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "YAML config file (overrides MICROBLOG_CONFIG_FILE)")

	cmd.AddCommand(
		serveCmd(),
		migrateCmd(),
		seedCmd(),
		versionCmd(),
	)
	return cmd
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), VersionString())
		},
	}
}
