package cli

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	v1 "github.com/aevon-lab/project-tpms/internal/api/v1"
	"github.com/aevon-lab/project-tpms/internal/core/decoder"
	"github.com/spf13/cobra"
)

// NewDecodeCommand creates the decode command.
func NewDecodeCommand(_ *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "decode <hex bytes...>",
		Short: "Decode one sensor payload and print the reading",
		Long: `Decode one TPMS payload offline. Bytes are hex, separated by spaces or
given as separate arguments:

  tpms decode 00 01 00 26 70 26 0A 00`,
		Args:         cobra.MinimumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			payload := v1.PayloadFromHex(strings.Join(args, " "))
			data, ok := payload.Bytes()
			if !ok {
				return payload.Err()
			}

			reading, ok := decoder.DecodeBytes(data, time.Now().UTC())
			if !ok {
				return errors.New("payload too short: at least 2 bytes are required")
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(reading)
		},
	}
}
