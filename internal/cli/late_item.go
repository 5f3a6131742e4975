package cli

import (
	"context"

	"github.com/spf13/cobra"

	cliadapter "github.com/example/galley/internal/adapters/cli"
	"github.com/example/galley/internal/core/access"
	"github.com/example/galley/internal/ports/primary"
	"github.com/example/galley/internal/wire"
)

// LateItemCmd returns the late-item command
func LateItemCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "late-item",
		Short: "Add items to a manifest after it was created",
	}
	cmd.AddCommand(lateItemAddCmd())
	return cmd
}

func lateItemAddCmd() *cobra.Command {
	var name, unit, reason string
	var branches []string

	cmd := &cobra.Command{
		Use:   "add [manifest-id]",
		Short: "Add a late item to one or more branches",
		Long: `Append an item to every listed branch that is still pending or packing.
Branches already packed or further along are skipped and reported.

Examples:
  galley late-item add MAN-ID --name "Coriander Powder" --branch north=500 --branch south=250
  galley late-item add MAN-ID --name Ghee --unit KG --branch east=2 --reason "festival menu"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			actor, err := authorize(ctx, access.CanAddLateItems)
			if err != nil {
				return err
			}

			quantities, err := cliadapter.ParseBranchQuantities(branches)
			if err != nil {
				return err
			}

			return wire.DispatchAdapter().AddLateItem(ctx, primary.AddLateItemRequest{
				ManifestID: args[0],
				ItemName:   name,
				Unit:       unit,
				Reason:     reason,
				AddedBy:    actor.Label(),
				Branches:   quantities,
			})
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Item name")
	cmd.Flags().StringVarP(&unit, "unit", "u", "", "Unit (inferred from the name when omitted)")
	cmd.Flags().StringVarP(&reason, "reason", "r", "", "Why the item is late")
	cmd.Flags().StringArrayVarP(&branches, "branch", "b", nil, "Branch quantity as slug=qty (repeatable)")
	cmd.MarkFlagRequired("name")
	cmd.MarkFlagRequired("branch")

	return cmd
}
