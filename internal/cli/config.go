package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

const redacted = "******"

// NewConfigCommand creates the config command.
func NewConfigCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:          "config",
		Short:        "Print the effective configuration as YAML",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(rootOpts)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			out := *cfg
			if out.Database.DSN != "" {
				out.Database.DSN = redacted
			}
			out.Export.Targets = append(out.Export.Targets[:0:0], cfg.Export.Targets...)
			for i := range out.Export.Targets {
				if out.Export.Targets[i].Password != "" {
					out.Export.Targets[i].Password = redacted
				}
			}

			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(out); err != nil {
				return err
			}
			return enc.Close()
		},
	}
}
