package cli

import (
	"errors"
	"fmt"

	"github.com/aevon-lab/project-tpms/internal/core/storage/postgres"
	"github.com/aevon-lab/project-tpms/internal/migrations"
	"github.com/spf13/cobra"
)

// NewMigrateCommand creates the migrate command.
func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:          "migrate",
		Short:        "Apply the embedded postgres migrations and exit",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(rootOpts)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if cfg.Database.DSN == "" {
				return errors.New("database.dsn is not configured")
			}

			db, err := postgres.Open(cfg.Database.DSN, cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := migrations.RunMigrations(db, true); err != nil {
				return err
			}

			versions, err := migrations.Versions()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "migrations applied (latest version %d)\n", versions[len(versions)-1])
			return nil
		},
	}
}
