package datastore

import (
	"context"
	"fmt"
	"os"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Timvanhoudt/VirtualTeamLeader/internal/conf"
	"github.com/Timvanhoudt/VirtualTeamLeader/internal/datastore/entities"
	"github.com/Timvanhoudt/VirtualTeamLeader/internal/errors"
	"github.com/Timvanhoudt/VirtualTeamLeader/internal/logger"
)

// DefaultTransferBatchSize is the number of rows copied per insert.
const DefaultTransferBatchSize = 500

// TransferOptions configures Transfer.
type TransferOptions struct {
	BatchSize int
	Log       logger.Logger
}

// TableStats tracks the copy of one table.
type TableStats struct {
	Name     string        `json:"name"`
	Source   int64         `json:"source"`
	Copied   int64         `json:"copied"`
	Skipped  int64         `json:"skipped"`
	Errors   int64         `json:"errors"`
	Duration time.Duration `json:"duration"`
}

// TransferStats summarizes a Transfer run.
type TransferStats struct {
	StartTime time.Time    `json:"start_time"`
	EndTime   time.Time    `json:"end_time"`
	Tables    []TableStats `json:"tables"`
}

// Totals sums copied, skipped and failed rows over all tables.
func (s *TransferStats) Totals() (copied, skipped, failed int64) {
	for _, t := range s.Tables {
		copied += t.Copied
		skipped += t.Skipped
		failed += t.Errors
	}
	return copied, skipped, failed
}

// CountMismatch is a table whose row count differs after a transfer.
type CountMismatch struct {
	Table  string
	Source int64
	Target int64
}

// transferTables lists the tables in foreign key order.
var transferTables = []struct {
	name string
	copy func(ctx context.Context, name string, src, dst *gorm.DB, batch int, log logger.Logger) (TableStats, error)
	mdl  any
}{
	{"workplaces", copyTable[entities.Workplace], &entities.Workplace{}},
	{"models", copyTable[entities.Model], &entities.Model{}},
	{"analyses", copyTable[entities.Analysis], &entities.Analysis{}},
	{"training_images", copyTable[entities.TrainingImage], &entities.TrainingImage{}},
	{"dataset_exports", copyTable[entities.DatasetExport], &entities.DatasetExport{}},
}

// Transfer copies every row from source into target, for example when moving
// an SQLite installation onto MySQL or Postgres. The target schema is
// migrated first. Rows whose primary key already exists in the target are
// skipped, so an interrupted transfer can be repeated.
func Transfer(ctx context.Context, source, target *gorm.DB, opts TransferOptions) (*TransferStats, error) {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultTransferBatchSize
	}
	log := opts.Log
	if log == nil {
		log = GetLogger()
	}

	if err := Migrate(ctx, target, log); err != nil {
		return nil, err
	}

	stats := &TransferStats{StartTime: time.Now()}
	for _, t := range transferTables {
		ts, err := t.copy(ctx, t.name, source, target, opts.BatchSize, log)
		stats.Tables = append(stats.Tables, ts)
		if err != nil {
			return stats, transferError(err, t.name)
		}
	}

	if target.Dialector.Name() == "postgres" {
		if err := resetSequences(ctx, target); err != nil {
			return stats, transferError(err, "sequences")
		}
	}

	stats.EndTime = time.Now()
	copied, skipped, failed := stats.Totals()
	log.Info("database transfer finished",
		logger.Int64("copied", copied),
		logger.Int64("skipped", skipped),
		logger.Int64("errors", failed),
		logger.Duration("duration", stats.EndTime.Sub(stats.StartTime)))
	return stats, nil
}

func copyTable[T any](ctx context.Context, name string, src, dst *gorm.DB, batchSize int, log logger.Logger) (TableStats, error) {
	start := time.Now()
	stats := TableStats{Name: name}

	if err := src.WithContext(ctx).Model(new(T)).Count(&stats.Source).Error; err != nil {
		return stats, fmt.Errorf("failed to count source rows: %w", err)
	}
	if stats.Source == 0 {
		stats.Duration = time.Since(start)
		return stats, nil
	}

	batch := 0
	err := src.WithContext(ctx).Model(new(T)).FindInBatches(new([]T), batchSize, func(tx *gorm.DB, _ int) error {
		batch++
		records, ok := tx.Statement.Dest.(*[]T)
		if !ok || len(*records) == 0 {
			return nil
		}

		// Select("*") writes zero values too; columns with a default such as
		// workplaces.active would otherwise take the default
		result := dst.WithContext(ctx).
			Select("*").
			Clauses(clause.OnConflict{DoNothing: true}).
			Create(records)
		if result.Error != nil {
			// A failed batch is counted and the copy continues with the next one
			stats.Errors += int64(len(*records))
			log.Warn("transfer batch failed",
				logger.String("table", stats.Name),
				logger.Int("batch", batch),
				logger.Error(result.Error))
			return nil
		}

		stats.Copied += result.RowsAffected
		stats.Skipped += int64(len(*records)) - result.RowsAffected
		return nil
	}).Error

	stats.Duration = time.Since(start)
	log.Info("table transferred",
		logger.String("table", stats.Name),
		logger.Int64("copied", stats.Copied),
		logger.Int64("skipped", stats.Skipped),
		logger.Int64("errors", stats.Errors))
	return stats, err
}

// VerifyTransfer compares row counts of source and target.
func VerifyTransfer(ctx context.Context, source, target *gorm.DB) ([]CountMismatch, error) {
	var mismatches []CountMismatch
	for _, t := range transferTables {
		var src, dst int64
		if err := source.WithContext(ctx).Model(t.mdl).Count(&src).Error; err != nil {
			return nil, transferError(err, t.name)
		}
		if err := target.WithContext(ctx).Model(t.mdl).Count(&dst).Error; err != nil {
			return nil, transferError(err, t.name)
		}
		if src != dst {
			mismatches = append(mismatches, CountMismatch{Table: t.name, Source: src, Target: dst})
		}
	}
	return mismatches, nil
}

// resetSequences moves Postgres id sequences past the copied ids. Explicit
// ids in INSERT do not advance them.
func resetSequences(ctx context.Context, db *gorm.DB) error {
	for _, t := range transferTables {
		stmt := fmt.Sprintf(
			"SELECT setval(pg_get_serial_sequence('%[1]s', 'id'), COALESCE((SELECT MAX(id) FROM %[1]s), 0) + 1, false)",
			t.name)
		if err := db.WithContext(ctx).Exec(stmt).Error; err != nil {
			return err
		}
	}
	return nil
}

func transferError(err error, table string) error {
	return errors.New(fmt.Errorf("database transfer failed: %w", err)).
		Component("datastore").
		Category(errors.CategoryDatabase).
		Context("operation", "transfer").
		Context("table", table).
		Build()
}

// OpenSource opens the SQLite file a transfer reads from. Only SQLite files are
// supported as source, the layout of every earlier installation.
func OpenSource(settings *conf.Settings, path string, log logger.Logger) (*SQLiteManager, error) {
	if path == "" {
		path = settings.ResolvePath(settings.Database.SQLite.Path)
	}
	// Opening would create an empty file
	if _, err := os.Stat(path); err != nil {
		return nil, errors.New(fmt.Errorf("source database unavailable: %w", err)).
			Component("datastore").
			Category(errors.CategoryFileIO).
			Context("operation", "transfer").
			Build()
	}
	return NewSQLiteManager(path, nil, log)
}
