package cli

import (
	"fmt"
	"os"

	"github.com/dukerupert/reciclamt/internal/database"
	"github.com/dukerupert/reciclamt/internal/seed"
	"github.com/dukerupert/reciclamt/internal/store"
	"github.com/spf13/cobra"
)

// NewSeedCommand creates the seed command.
func NewSeedCommand(rootOpts *RootOptions) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load the starter reward catalog and ecopoints",
		Long: `Insert the reward catalog and ecopoint list. Entries carry fixed ids,
so running seed again skips what is already present. Without --file the
built-in catalog is used.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := loadEnvironment(rootOpts)
			if err != nil {
				return err
			}
			defer env.Close()

			catalog, err := loadCatalog(file)
			if err != nil {
				return err
			}

			db, err := database.Open(env.cfg.DatabaseURL)
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer db.Close()

			res, err := seed.Load(cmd.Context(), catalog, store.NewRewardStore(db), store.NewEcopointStore(db), env.logger)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "rewards: %d created, %d skipped\necopoints: %d created, %d skipped\n",
				res.RewardsCreated, res.RewardsSkipped, res.EcopointsCreated, res.EcopointsSkipped)
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "YAML catalog to load instead of the built-in one")
	return cmd
}

func loadCatalog(path string) (*seed.Catalog, error) {
	if path == "" {
		return seed.Default()
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer f.Close()
	return seed.Parse(f)
}
