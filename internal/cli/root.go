// Package cli holds the tpms command tree.
package cli

import (
	"log/slog"
	"os"

	"github.com/aevon-lab/project-tpms/internal/core/config"
	"github.com/aevon-lab/project-tpms/internal/logging"
	"github.com/spf13/cobra"
)

const appName = "tpms"

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
}

// NewRootCommand creates the root command. Without a subcommand it runs
// the service.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   appName,
		Short: "TPMS gateway backend",
		Long: `Polls a CAN gateway for tire pressure sensor frames, keeps live
per-sensor aggregates and exports the session incrementally to named targets.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, opts)
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "tpms.yaml", "path to configuration file")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewDecodeCommand(opts))
	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewConfigCommand(opts))

	return cmd
}

// loadConfig loads the configuration and installs the default logger.
// A missing default config file is not an error; defaults and TPMS_
// variables still apply.
func loadConfig(opts *RootOptions) (*config.Config, error) {
	path := opts.ConfigPath
	if path == "tpms.yaml" {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			path = ""
		}
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logging.New(os.Stderr, cfg.Logging, appName))
	return cfg, nil
}
