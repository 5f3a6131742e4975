package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/example/galley/internal/config"
	"github.com/example/galley/internal/core/access"
	"github.com/example/galley/internal/wire"
)

// RootCmd returns the galley root command with every subcommand attached.
func RootCmd(version string) *cobra.Command {
	var configPath string
	var as string

	cmd := &cobra.Command{
		Use:     "galley",
		Short:   "Galley - dispatch manifests from the central kitchen to branches",
		Version: version,
		Long: `Galley tracks daily dispatch manifests from the central kitchen to each branch:
packing, dispatch, receipt, late additions and the archive of deleted manifests.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			wire.SetConfigPath(configPath)
			if as != "" {
				op, err := parseOperator(as)
				if err != nil {
					return err
				}
				wire.SetOperator(op)
			}
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			wire.Close()
		},
	}

	cmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default $GALLEY_CONFIG or ./galley.yaml)")
	cmd.PersistentFlags().StringVar(&as, "as", "", "Act as name:role[:branch,branch] instead of the configured operator")

	cmd.AddCommand(ServeCmd())
	cmd.AddCommand(MigrateCmd())
	cmd.AddCommand(ManifestCmd())
	cmd.AddCommand(BranchCmd())
	cmd.AddCommand(LateItemCmd())
	cmd.AddCommand(ArchiveCmd())
	cmd.AddCommand(UnitsCmd())
	cmd.AddCommand(TokenCmd())
	cmd.AddCommand(DevCmd())

	return cmd
}

// parseOperator parses name:role[:branch,branch].
func parseOperator(s string) (config.OperatorConfig, error) {
	parts := strings.SplitN(s, ":", 3)
	op := config.OperatorConfig{Name: strings.TrimSpace(parts[0])}
	if op.Name == "" {
		return op, fmt.Errorf("--as needs a name, got %q", s)
	}
	if len(parts) > 1 {
		role, ok := access.ParseRole(parts[1])
		if !ok {
			return op, fmt.Errorf("unknown role %q in --as", parts[1])
		}
		op.Role = string(role)
	}
	if len(parts) > 2 {
		for _, b := range strings.Split(parts[2], ",") {
			if b = strings.TrimSpace(b); b != "" {
				op.Branches = append(op.Branches, b)
			}
		}
	}
	return op, nil
}

// authorize resolves the operator and checks it against guard.
func authorize(ctx context.Context, guard func(access.Actor) access.GuardResult) (access.Actor, error) {
	provider, err := wire.Operator()
	if err != nil {
		return access.Actor{}, err
	}
	actor, err := provider.CurrentActor(ctx)
	if err != nil {
		return access.Actor{}, err
	}
	if err := guard(actor).Error(); err != nil {
		return access.Actor{}, err
	}
	return actor, nil
}
