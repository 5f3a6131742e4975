package cli

import (
	"context"

	"github.com/spf13/cobra"

	cliadapter "github.com/example/galley/internal/adapters/cli"
	"github.com/example/galley/internal/core/access"
	"github.com/example/galley/internal/ports/primary"
	"github.com/example/galley/internal/wire"
)

// BranchCmd returns the branch command
func BranchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "branch",
		Short: "Work on one branch's sub-dispatch",
	}

	cmd.AddCommand(branchUpdateCmd())
	cmd.AddCommand(branchResolveCmd())

	return cmd
}

func branchUpdateCmd() *cobra.Command {
	var u cliadapter.BranchUpdate

	cmd := &cobra.Command{
		Use:   "update [manifest-id] [branch-slug]",
		Short: "Record packing or receiving progress",
		Long: `Update the status and quantities of one branch's sub-dispatch.
Items are named by id or by name. Other branches are not touched.

Examples:
  galley branch update MAN-ID north --status packing
  galley branch update MAN-ID north --packed north-1=48 --packed "sunflower oil=12" --status packed
  galley branch update MAN-ID north --received north-1=47 --status received
  galley branch update MAN-ID north --status issue --issue-note "van broke down"`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			u.ManifestID, u.BranchSlug = args[0], args[1]

			if _, err := authorize(ctx, func(a access.Actor) access.GuardResult {
				return access.CanUpdateBranch(a, u.BranchSlug)
			}); err != nil {
				return err
			}

			return wire.DispatchAdapter().UpdateBranch(ctx, u)
		},
	}

	cmd.Flags().StringVarP(&u.Status, "status", "s", "", "New status (pending, packing, packed, dispatched, received, issue)")
	cmd.Flags().StringVar(&u.IssueNote, "issue-note", "", "Note recorded with an issue")
	cmd.Flags().StringArrayVar(&u.Packed, "packed", nil, "Packed quantity as item=qty (repeatable)")
	cmd.Flags().StringArrayVar(&u.Received, "received", nil, "Received quantity as item=qty (repeatable)")

	return cmd
}

func branchResolveCmd() *cobra.Command {
	var note string

	cmd := &cobra.Command{
		Use:   "resolve [manifest-id] [branch-slug]",
		Short: "Resolve an issue and return the branch to its earlier status",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			if _, err := authorize(ctx, access.CanResolveIssues); err != nil {
				return err
			}

			return wire.DispatchAdapter().Resolve(ctx, primary.ResolveIssueRequest{
				ManifestID: args[0],
				BranchSlug: args[1],
				Note:       note,
			})
		},
	}

	cmd.Flags().StringVarP(&note, "note", "m", "", "Resolution note")

	return cmd
}
