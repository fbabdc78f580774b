// Package migrate implements the schema migration command.
package migrate

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Timvanhoudt/VirtualTeamLeader/internal/conf"
	"github.com/Timvanhoudt/VirtualTeamLeader/internal/datastore"
	"github.com/Timvanhoudt/VirtualTeamLeader/internal/logger"
)

// migrateTimeout bounds a migration run.
const migrateTimeout = 5 * time.Minute

// Command creates the migrate command.
func Command() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		Long:  "Open the configured database, apply pending schema migrations and print the schema version.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings := conf.GetSettings()
			if settings == nil {
				return fmt.Errorf("configuration not loaded")
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), migrateTimeout)
			defer cancel()

			version, err := Run(ctx, settings, logger.Global().Module("migrate"))
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "schema version %d (%s)\n", version, settings.Database.Type)
			return err
		},
	}
}

// Run migrates the configured database and returns the resulting schema version.
func Run(ctx context.Context, settings *conf.Settings, log logger.Logger) (int, error) {
	manager, err := datastore.NewManager(settings, log)
	if err != nil {
		return 0, err
	}
	defer func() {
		if cerr := manager.Close(); cerr != nil {
			log.Warn("failed to close database", logger.Error(cerr))
		}
	}()

	before, err := manager.SchemaVersion(ctx)
	if err != nil {
		return 0, err
	}

	if err := manager.Initialize(ctx); err != nil {
		return 0, err
	}

	after, err := manager.SchemaVersion(ctx)
	if err != nil {
		return 0, err
	}

	log.Info("database migrated",
		logger.String("dialect", manager.Dialect()),
		logger.Int("from_version", before),
		logger.Int("to_version", after),
		logger.Int("latest_version", datastore.LatestSchemaVersion()))
	return after, nil
}
