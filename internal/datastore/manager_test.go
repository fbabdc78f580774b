package datastore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/Timvanhoudt/VirtualTeamLeader/internal/conf"
	"github.com/Timvanhoudt/VirtualTeamLeader/internal/datastore/entities"
	"github.com/Timvanhoudt/VirtualTeamLeader/internal/errors"
	"github.com/Timvanhoudt/VirtualTeamLeader/internal/logger"
)

func newMemoryManager(t *testing.T) *SQLiteManager {
	t.Helper()
	mgr, err := NewSQLiteManager(":memory:", nil, logger.NewNopLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = mgr.Close() })
	return mgr
}

func TestSQLiteManager_InitializeIsIdempotent(t *testing.T) {
	mgr := newMemoryManager(t)
	ctx := context.Background()

	require.NoError(t, mgr.Initialize(ctx))
	require.NoError(t, mgr.Initialize(ctx))

	version, err := mgr.SchemaVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, LatestSchemaVersion(), version)

	for _, table := range []any{
		&entities.Workplace{},
		&entities.Analysis{},
		&entities.Model{},
		&entities.TrainingImage{},
		&entities.DatasetExport{},
	} {
		assert.True(t, mgr.DB().Migrator().HasTable(table), "table for %T", table)
	}
	assert.Equal(t, conf.DatabaseSQLite, mgr.Dialect())
}

func TestSQLiteManager_FileDatabase(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "inspections.db")
	mgr, err := NewSQLiteManager(path, nil, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = mgr.Close() })

	require.NoError(t, mgr.Initialize(context.Background()))
	assert.True(t, mgr.Exists())
	assert.Equal(t, path, mgr.Path())
}

func TestSchemaVersion_BeforeMigration(t *testing.T) {
	mgr := newMemoryManager(t)

	version, err := mgr.SchemaVersion(context.Background())
	require.NoError(t, err)
	assert.Zero(t, version)
}

func TestApplySteps_FailingStepMarksDirty(t *testing.T) {
	mgr := newMemoryManager(t)
	ctx := context.Background()
	db := mgr.DB()

	steps := []MigrationStep{
		migrationSteps[0],
		{
			Version:     2,
			Description: "always fails",
			Up: func(tx *gorm.DB) error {
				return errors.NewStd("boom")
			},
		},
	}

	err := applySteps(ctx, db, steps, logger.NewNopLogger())
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryDatabase))

	var state entities.SchemaVersion
	require.NoError(t, db.First(&state, 1).Error)
	assert.Equal(t, 1, state.Version, "first step stays applied")
	assert.True(t, state.Dirty)

	// A fixed step clears the dirty flag on the next run
	steps[1].Up = func(tx *gorm.DB) error { return nil }
	require.NoError(t, applySteps(ctx, db, steps, logger.NewNopLogger()))

	require.NoError(t, db.First(&state, 1).Error)
	assert.Equal(t, 2, state.Version)
	assert.False(t, state.Dirty)
	assert.NotNil(t, state.AppliedAt)
}

func TestMigrations_BackfillLegacyRows(t *testing.T) {
	mgr := newMemoryManager(t)
	ctx := context.Background()
	db := mgr.DB()

	// Create the tables at version 1 and insert a row the way an older build stored it
	require.NoError(t, applySteps(ctx, db, migrationSteps[:1], logger.NewNopLogger()))
	require.NoError(t, db.Exec(
		"INSERT INTO analyses (timestamp, predicted_class, predicted_label, confidence, status, missing_items, device_id, scheme, model_type, created_at) VALUES (?, 0, 'ok', 0.9, 'OK', '[]', '', '', '', ?)",
		"2025-01-06 10:00:00", "2025-01-06 10:00:00").Error)

	wp := entities.Workplace{Name: "Werkbank 1"}
	require.NoError(t, db.Create(&wp).Error)
	require.NoError(t, db.Create(&entities.Model{
		WorkplaceID: wp.ID,
		Version:     "v1.0",
		ModelPath:   "models/workplace_1/model_v1.0.tflite",
		ModelType:   entities.ModelTypeDetection,
		Status:      entities.ModelStatusActive,
	}).Error)

	require.NoError(t, Migrate(ctx, db, nil))

	var a entities.Analysis
	require.NoError(t, db.First(&a).Error)
	assert.Equal(t, "seven_class", a.Scheme)
	assert.Equal(t, string(entities.ModelTypeClassification), a.ModelType)
	assert.Equal(t, entities.DefaultDeviceID, a.DeviceID)

	var got entities.Workplace
	require.NoError(t, db.First(&got, wp.ID).Error)
	require.NotNil(t, got.ActiveModelPath)
	assert.Equal(t, "models/workplace_1/model_v1.0.tflite", *got.ActiveModelPath)
	require.NotNil(t, got.ActiveModelType)
	assert.Equal(t, "detection", *got.ActiveModelType)
}

func TestNewManager_UnsupportedType(t *testing.T) {
	t.Parallel()

	settings := &conf.Settings{}
	settings.Database.Type = "oracle"

	_, err := NewManager(settings, logger.NewNopLogger())
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
}
