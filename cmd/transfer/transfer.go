// Package transfer implements the command that copies an SQLite database
// into the configured database.
package transfer

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/Timvanhoudt/VirtualTeamLeader/internal/conf"
	"github.com/Timvanhoudt/VirtualTeamLeader/internal/datastore"
	"github.com/Timvanhoudt/VirtualTeamLeader/internal/logger"
)

const transferTimeout = 2 * time.Hour

// Options configures Run.
type Options struct {
	From      string
	BatchSize int
	Verify    bool
}

// Command creates the transfer command.
func Command() *cobra.Command {
	var opts Options

	cmd := &cobra.Command{
		Use:   "transfer",
		Short: "Copy an SQLite database into the configured database",
		Long: "Copy workplaces, models, analyses, training images and dataset exports from an " +
			"SQLite file into the database selected in the configuration, usually MySQL or Postgres. " +
			"Rows that already exist in the target are skipped.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings := conf.GetSettings()
			if settings == nil {
				return fmt.Errorf("configuration not loaded")
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), transferTimeout)
			defer cancel()

			stats, err := Run(ctx, settings, opts, logger.Global().Module("transfer"))
			if stats != nil {
				if perr := PrintStats(cmd.OutOrStdout(), stats); perr != nil && err == nil {
					err = perr
				}
			}
			return err
		},
	}

	cmd.Flags().StringVar(&opts.From, "from", "", "Source SQLite file (default: database.sqlite.path)")
	cmd.Flags().IntVar(&opts.BatchSize, "batch-size", datastore.DefaultTransferBatchSize, "Rows per insert")
	cmd.Flags().BoolVar(&opts.Verify, "verify", true, "Compare row counts after copying")
	return cmd
}

// Run copies the source SQLite file into the configured database.
func Run(ctx context.Context, settings *conf.Settings, opts Options, log logger.Logger) (*datastore.TransferStats, error) {
	source, err := datastore.OpenSource(settings, opts.From, log)
	if err != nil {
		return nil, err
	}
	defer closeLogged(source, log)

	target, err := datastore.NewManager(settings, log)
	if err != nil {
		return nil, err
	}
	defer closeLogged(target, log)

	if target.Dialect() == conf.DatabaseSQLite && samePath(target.Path(), source.Path()) {
		return nil, fmt.Errorf("source and target are the same database: %s", source.Path())
	}

	log.Info("transferring database",
		logger.String("from", source.Path()),
		logger.String("to", target.Path()),
		logger.String("dialect", target.Dialect()))

	stats, err := datastore.Transfer(ctx, source.DB(), target.DB(), datastore.TransferOptions{
		BatchSize: opts.BatchSize,
		Log:       log,
	})
	if err != nil || !opts.Verify {
		return stats, err
	}

	mismatches, err := datastore.VerifyTransfer(ctx, source.DB(), target.DB())
	if err != nil {
		return stats, err
	}
	if len(mismatches) > 0 {
		for _, m := range mismatches {
			log.Warn("row count mismatch",
				logger.String("table", m.Table),
				logger.Int64("source", m.Source),
				logger.Int64("target", m.Target))
		}
		return stats, fmt.Errorf("verification failed for %d table(s)", len(mismatches))
	}
	return stats, nil
}

// PrintStats writes a per table summary.
func PrintStats(w io.Writer, stats *datastore.TransferStats) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TABLE\tSOURCE\tCOPIED\tSKIPPED\tERRORS")
	for _, t := range stats.Tables {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\n", t.Name, t.Source, t.Copied, t.Skipped, t.Errors)
	}
	return tw.Flush()
}

func samePath(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	if errA != nil || errB != nil {
		return a == b
	}
	return absA == absB
}

func closeLogged(c interface{ Close() error }, log logger.Logger) {
	if err := c.Close(); err != nil {
		log.Warn("failed to close database", logger.Error(err))
	}
}
