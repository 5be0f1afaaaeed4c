// Package cli implements the reciclamt command line.
package cli

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/dukerupert/reciclamt/internal/config"
	"github.com/dukerupert/reciclamt/internal/logging"
	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	EnvFile  string
	LogLevel string
}

// NewRootCommand creates the root command for the reciclamt CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:           "reciclamt",
		Short:         "ReciclaMT points ledger and rewards server",
		Long:          "Records recycling drop-offs, credits points and redeems them for rewards.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.EnvFile, "env-file", ".env", "environment file to load if present")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "override RECICLAMT_LOG_LEVEL (debug|info|warn|error)")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewSeedCommand(opts))

	return cmd
}

// environment is the loaded configuration plus the logger built from it.
type environment struct {
	cfg    config.Config
	logger *slog.Logger
	closer io.Closer
}

func loadEnvironment(opts *RootOptions) (*environment, error) {
	cfg, err := config.Load(opts.EnvFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if opts.LogLevel != "" {
		cfg.LogLevel = opts.LogLevel
	}
	logger, closer := logging.Setup(cfg.LogLevel, cfg.LogFile)
	return &environment{cfg: cfg, logger: logger, closer: closer}, nil
}

func (e *environment) Close() error {
	return e.closer.Close()
}
