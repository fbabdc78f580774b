package datastore

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/Timvanhoudt/VirtualTeamLeader/internal/datastore/entities"
	"github.com/Timvanhoudt/VirtualTeamLeader/internal/errors"
	"github.com/Timvanhoudt/VirtualTeamLeader/internal/logger"
)

// MigrationStep is one ordered, idempotent schema change.
type MigrationStep struct {
	Version     int
	Description string
	Up          func(tx *gorm.DB) error
}

// migrationSteps are applied in order; a step runs only when the stored
// version is below its number. Append new steps, never renumber.
var migrationSteps = []MigrationStep{
	{
		Version:     1,
		Description: "create core tables",
		Up: func(tx *gorm.DB) error {
			return tx.AutoMigrate(
				&entities.Workplace{},
				&entities.Model{},
				&entities.TrainingImage{},
				&entities.DatasetExport{},
				&entities.Analysis{},
			)
		},
	},
	{
		Version:     2,
		Description: "backfill scheme and model type on legacy analyses",
		Up: func(tx *gorm.DB) error {
			if err := tx.Model(&entities.Analysis{}).
				Where("scheme IS NULL OR scheme = ''").
				Update("scheme", "seven_class").Error; err != nil {
				return err
			}
			return tx.Model(&entities.Analysis{}).
				Where("model_type IS NULL OR model_type = ''").
				Update("model_type", string(entities.ModelTypeClassification)).Error
		},
	},
	{
		Version:     3,
		Description: "normalize empty device ids",
		Up: func(tx *gorm.DB) error {
			return tx.Model(&entities.Analysis{}).
				Where("device_id = ''").
				Update("device_id", entities.DefaultDeviceID).Error
		},
	},
	{
		Version:     4,
		Description: "keep workplace active model in sync with active models",
		Up: func(tx *gorm.DB) error {
			var active []entities.Model
			if err := tx.Where("status = ?", entities.ModelStatusActive).Find(&active).Error; err != nil {
				return err
			}
			for i := range active {
				modelType := string(active[i].ModelType)
				if err := tx.Model(&entities.Workplace{}).
					Where("id = ? AND active_model_path IS NULL", active[i].WorkplaceID).
					Updates(map[string]any{
						"active_model_type": modelType,
						"active_model_path": active[i].ModelPath,
					}).Error; err != nil {
					return err
				}
			}
			return nil
		},
	},
}

// LatestSchemaVersion is the version after all steps have been applied.
func LatestSchemaVersion() int {
	return migrationSteps[len(migrationSteps)-1].Version
}

// Migrate applies all pending migration steps, each in its own transaction.
func Migrate(ctx context.Context, db *gorm.DB, log logger.Logger) error {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return applySteps(ctx, db, migrationSteps, log)
}

func applySteps(ctx context.Context, db *gorm.DB, steps []MigrationStep, log logger.Logger) error {
	db = db.WithContext(ctx)

	if err := db.AutoMigrate(&entities.SchemaVersion{}); err != nil {
		return migrationError(err, 0, "create_schema_version")
	}

	// Singleton row; FirstOrCreate tolerates concurrent initializers
	state := entities.SchemaVersion{ID: 1}
	if err := db.FirstOrCreate(&state, entities.SchemaVersion{ID: 1}).Error; err != nil {
		return migrationError(err, 0, "init_schema_version")
	}

	if state.Dirty {
		log.Warn("previous migration did not finish, retrying",
			logger.Int("version", state.Version))
	}

	for _, step := range steps {
		if step.Version <= state.Version {
			continue
		}

		start := time.Now()
		err := db.Transaction(func(tx *gorm.DB) error {
			if err := step.Up(tx); err != nil {
				return err
			}
			now := time.Now()
			return tx.Model(&entities.SchemaVersion{}).Where("id = ?", 1).
				Updates(map[string]any{"version": step.Version, "dirty": false, "applied_at": &now}).Error
		})
		if err != nil {
			_ = db.Model(&entities.SchemaVersion{}).Where("id = ?", 1).Update("dirty", true).Error
			return migrationError(err, step.Version, "apply_step")
		}

		state.Version = step.Version
		log.Info("applied schema migration",
			logger.Int("version", step.Version),
			logger.String("description", step.Description),
			logger.Duration("elapsed", time.Since(start)))
	}

	return nil
}

// CurrentVersion returns the stored schema version, 0 when nothing was applied.
func CurrentVersion(ctx context.Context, db *gorm.DB) (int, error) {
	db = db.WithContext(ctx)
	if !db.Migrator().HasTable(&entities.SchemaVersion{}) {
		return 0, nil
	}
	var state entities.SchemaVersion
	if err := db.Where("id = ?", 1).Limit(1).Find(&state).Error; err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return state.Version, nil
}

func migrationError(err error, version int, operation string) error {
	return errors.New(fmt.Errorf("schema migration failed: %w", err)).
		Component("datastore").
		Category(errors.CategoryDatabase).
		Context("operation", operation).
		Context("step", version).
		Build()
}
