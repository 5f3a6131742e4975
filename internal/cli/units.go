package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/example/galley/internal/wire"
)

// UnitsCmd returns the units command
func UnitsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "units",
		Short: "Unit lookup table",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "infer [item name]",
		Short: "Show the unit an item name maps to",
		Args:  cobra.MinimumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			wire.DispatchAdapter().InferUnit(strings.Join(args, " "))
		},
	})

	return cmd
}
