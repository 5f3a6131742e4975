package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/example/galley/internal/core/access"
	"github.com/example/galley/internal/ports/primary"
	"github.com/example/galley/internal/wire"
)

// ManifestCmd returns the manifest command
func ManifestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "manifest",
		Short: "Manage dispatch manifests",
		Long:  "Create, list, show and delete the daily dispatch manifests.",
	}

	cmd.AddCommand(manifestCreateCmd())
	cmd.AddCommand(manifestListCmd())
	cmd.AddCommand(manifestShowCmd())
	cmd.AddCommand(manifestDeleteCmd())

	return cmd
}

func manifestCreateCmd() *cobra.Command {
	var planPath string
	var deliveryDate string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a manifest from a YAML plan",
		Long: `Create a manifest with one pending sub-dispatch per branch in the plan.
Units left out of the plan are inferred from the item name.

Examples:
  galley manifest create --plan tomorrow.yaml
  galley manifest create --plan standard.yaml --delivery-date 2026-10-16`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			actor, err := authorize(ctx, access.CanManageManifests)
			if err != nil {
				return err
			}

			req, err := loadPlan(planPath)
			if err != nil {
				return err
			}
			if deliveryDate != "" {
				req.DeliveryDate = deliveryDate
			}
			req.CreatedBy = actor.Label()

			_, err = wire.DispatchAdapter().Create(ctx, req)
			return err
		},
	}

	cmd.Flags().StringVarP(&planPath, "plan", "p", "", "Plan file (YAML)")
	cmd.Flags().StringVarP(&deliveryDate, "delivery-date", "d", "", "Delivery date YYYY-MM-DD (overrides the plan)")
	cmd.MarkFlagRequired("plan")

	return cmd
}

func manifestListCmd() *cobra.Command {
	var filters primary.ManifestFilters

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List active manifests",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			if _, err := authorize(ctx, access.CanRead); err != nil {
				return err
			}
			return wire.DispatchAdapter().List(ctx, filters)
		},
	}

	cmd.Flags().StringVarP(&filters.DeliveryDate, "delivery-date", "d", "", "Filter by delivery date")
	cmd.Flags().StringVarP(&filters.BranchSlug, "branch", "b", "", "Filter by branch slug")
	cmd.Flags().StringVarP(&filters.Status, "status", "s", "", "Only manifests with a branch in this status")
	cmd.Flags().IntVarP(&filters.Limit, "limit", "n", 0, "Maximum number of manifests")

	return cmd
}

func manifestShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show [manifest-id]",
		Short: "Show a manifest with every branch and item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			if _, err := authorize(ctx, access.CanRead); err != nil {
				return err
			}
			return wire.DispatchAdapter().Show(ctx, args[0], false)
		},
	}
}

func manifestDeleteCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "delete [manifest-id]",
		Short: "Archive a manifest",
		Long:  "Move a manifest into the archive. It stays readable with 'galley archive show'.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			actor, err := authorize(ctx, access.CanManageManifests)
			if err != nil {
				return err
			}

			if !force {
				fmt.Printf("Archive manifest %s? [y/N] ", args[0])
				var response string
				fmt.Scanln(&response)
				if response != "y" && response != "Y" {
					fmt.Println("Aborted.")
					return nil
				}
			}

			return wire.DispatchAdapter().Delete(ctx, primary.DeleteManifestRequest{
				ManifestID: args[0],
				DeletedBy:  actor.Label(),
			})
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Skip confirmation")

	return cmd
}
