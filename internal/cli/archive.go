package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/example/galley/internal/core/access"
	"github.com/example/galley/internal/ports/primary"
	"github.com/example/galley/internal/wire"
)

// ArchiveCmd returns the archive command
func ArchiveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "archive",
		Short: "Browse deleted manifests",
	}

	cmd.AddCommand(archiveListCmd())
	cmd.AddCommand(archiveShowCmd())

	return cmd
}

func archiveListCmd() *cobra.Command {
	var filters primary.ArchiveFilters

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List archived manifests, most recently deleted first",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			if _, err := authorize(ctx, access.CanRead); err != nil {
				return err
			}
			return wire.DispatchAdapter().ListArchived(ctx, filters)
		},
	}

	cmd.Flags().StringVarP(&filters.DeliveryDate, "delivery-date", "d", "", "Filter by delivery date")
	cmd.Flags().IntVarP(&filters.Limit, "limit", "n", 0, "Maximum number of manifests")

	return cmd
}

func archiveShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show [manifest-id]",
		Short: "Show an archived manifest",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			if _, err := authorize(ctx, access.CanRead); err != nil {
				return err
			}
			return wire.DispatchAdapter().Show(ctx, args[0], true)
		},
	}
}
