package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/galley/internal/core/access"
	"github.com/example/galley/internal/wire"
)

// TokenCmd returns the token command
func TokenCmd() *cobra.Command {
	var id, name, role string
	var branches []string
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for the REST API",
		Long: `Sign an HS256 token with the configured JWT secret.

Examples:
  galley token --id u-17 --name "Asha" --role branch_manager --branch north
  galley token --id ops --role operations --ttl 1h`,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, ok := access.ParseRole(role)
			if !ok {
				return fmt.Errorf("unknown role %q", role)
			}

			verifier, err := wire.Verifier()
			if err != nil {
				return err
			}

			token, err := verifier.Sign(access.Actor{ID: id, Name: name, Role: r, Branches: branches}, ttl, time.Now())
			if err != nil {
				return fmt.Errorf("failed to sign token: %w", err)
			}
			fmt.Println(token)
			return nil
		},
	}

	cmd.Flags().StringVar(&id, "id", "", "Subject (user id)")
	cmd.Flags().StringVar(&name, "name", "", "Display name")
	cmd.Flags().StringVarP(&role, "role", "r", string(access.RoleViewer), "Role")
	cmd.Flags().StringSliceVarP(&branches, "branch", "b", nil, "Branch slugs for branch roles")
	cmd.Flags().DurationVar(&ttl, "ttl", 12*time.Hour, "Token lifetime")
	cmd.MarkFlagRequired("id")

	return cmd
}
