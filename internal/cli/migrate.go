package cli

import (
	"fmt"

	"github.com/dukerupert/reciclamt/internal/database"
	"github.com/spf13/cobra"
)

// NewMigrateCommand creates the migrate command.
func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Long: `Open the configured database (RECICLAMT_DATABASE_URL), apply any
pending migrations and print the resulting schema version.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := loadEnvironment(rootOpts)
			if err != nil {
				return err
			}
			defer env.Close()

			db, err := database.Open(env.cfg.DatabaseURL)
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer db.Close()

			v, err := database.Version(db)
			if err != nil {
				return err
			}
			env.logger.Info("migrations applied", "dialect", db.Dialect(), "version", v)
			fmt.Fprintf(cmd.OutOrStdout(), "%s schema at version %d\n", db.Dialect(), v)
			return nil
		},
	}
}
