package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/barberfinder/internal/directory"
	"github.com/sells-group/barberfinder/internal/model"
)

var migrateSeed string

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create tables and indexes, optionally seeding providers",
	Long:  "Migrates the sqlite/postgres stores or creates the Elasticsearch index, then loads providers from --seed (a YAML fixture) when given.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		// initApp migrates every SQL store it opens.
		env, err := initApp(ctx, "cli")
		if err != nil {
			return err
		}
		defer env.Close()

		if env.Elastic != nil {
			if err := env.Elastic.EnsureIndex(ctx); err != nil {
				return err
			}
		}
		zap.L().Info("migrations complete",
			zap.String("directory", cfg.Directory.Driver),
			zap.String("notify", cfg.Notify.Driver),
		)

		if migrateSeed == "" {
			return nil
		}

		providers, err := directory.LoadYAML(migrateSeed)
		if err != nil {
			return err
		}
		n, err := seedProviders(ctx, env, providers)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "Seeded %d providers from %s.\n", n, migrateSeed)
		return nil
	},
}

func init() {
	migrateCmd.Flags().StringVar(&migrateSeed, "seed", "", "YAML provider fixture to load")
	rootCmd.AddCommand(migrateCmd)
}

// seedProviders writes providers to the configured directory backend and
// drops any cached listing.
func seedProviders(ctx context.Context, env *appEnv, providers []model.Provider) (int, error) {
	var (
		n   int
		err error
	)
	switch {
	case env.Providers != nil:
		n, err = env.Providers.UpsertProviders(ctx, providers)
	case env.Elastic != nil:
		n, err = env.Elastic.Index(ctx, providers)
	default:
		return 0, eris.Errorf("migrate: directory driver %s cannot be seeded", cfg.Directory.Driver)
	}
	if err != nil {
		return 0, eris.Wrap(err, "migrate: seed providers")
	}

	if c, ok := env.Directory.(*directory.Cached); ok {
		if err := c.Invalidate(ctx); err != nil {
			zap.L().Warn("directory cache invalidate failed", zap.Error(err))
		}
	}
	return n, nil
}
