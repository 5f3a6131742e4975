package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/example/galley/internal/db"
	"github.com/example/galley/internal/wire"
)

// DevCmd returns the dev command group for development utilities.
func DevCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dev",
		Short: "Development utilities",
	}

	cmd.AddCommand(devSeedCmd())
	return cmd
}

func devSeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Seed the sqlite database with a sample manifest",
		Long: `Insert a manifest for tomorrow's delivery with three branches
at different points of the workflow. Only the sqlite store is supported.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			sqlDB := wire.SQLiteDB()
			if sqlDB == nil {
				return fmt.Errorf("dev seed needs the sqlite store (got %s)", wire.Config().Store.Driver)
			}
			if err := db.SeedFixtures(sqlDB); err != nil {
				return fmt.Errorf("failed to seed: %w", err)
			}
			fmt.Println("✓ Seeded sample manifest MAN-SEED-001")
			return nil
		},
	}
}
