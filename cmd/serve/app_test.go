package serve

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Timvanhoudt/VirtualTeamLeader/internal/buildinfo"
	"github.com/Timvanhoudt/VirtualTeamLeader/internal/conf"
	"github.com/Timvanhoudt/VirtualTeamLeader/internal/datastore"
	"github.com/Timvanhoudt/VirtualTeamLeader/internal/logger"
)

func appSettings(t *testing.T) *conf.Settings {
	t.Helper()
	return &conf.Settings{
		Main: conf.MainSettings{Name: "test", DataDir: t.TempDir()},
		WebServer: conf.WebServerSettings{
			Listen:    "127.0.0.1:0",
			BodyLimit: "20M",
		},
		Database: conf.DatabaseSettings{
			Type:   conf.DatabaseSQLite,
			SQLite: conf.SQLiteSettings{Path: "data/inspections.db"},
		},
		Model: conf.ModelSettings{
			Path:          "models/missing.tflite",
			Type:          "classification",
			Scheme:        "seven_class",
			Version:       "test",
			DummyFallback: true,
		},
		Inspection: conf.InspectionSettings{
			ConfidenceThreshold: 0.25,
			NMSThreshold:        0.45,
			UploadsDir:          "uploads",
			JPEGQuality:         90,
			ProgressTTL:         time.Minute,
		},
		Training: conf.TrainingSettings{
			Target:             200,
			ExportDir:          "training_data",
			DatasetExportDir:   "data/exports",
			TrainingImagesDir:  "data/training_images",
			ReferencePhotosDir: "data/reference_photos",
			ModelsDir:          "models",
			TrainSplit:         0.8,
		},
		Telemetry: conf.TelemetrySettings{Enabled: true},
	}
}

func TestNewAppWiresServices(t *testing.T) {
	settings := appSettings(t)

	app, err := NewApp(context.Background(), settings, buildinfo.New("test", "", ""), logger.NewNopLogger())
	require.NoError(t, err)

	svc := app.Services
	assert.NotNil(t, svc.Store)
	assert.NotNil(t, svc.Pipeline)
	assert.NotNil(t, svc.Review)
	assert.NotNil(t, svc.Datasets)
	assert.NotNil(t, svc.History)
	assert.NotNil(t, svc.Workplaces)
	assert.NotNil(t, svc.Tracker)
	assert.NotNil(t, app.Metrics)
	assert.Equal(t, filepath.Join(settings.Main.DataDir, "models", "missing.tflite"), svc.DefaultModel.Path)

	version, err := svc.Database.SchemaVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, datastore.LatestSchemaVersion(), version)
	assert.Equal(t, "sqlite", svc.Database.Dialect())

	for _, dir := range []string{"uploads", "training_data", "data/exports", "data/training_images", "data/reference_photos", "models"} {
		info, err := os.Stat(filepath.Join(settings.Main.DataDir, dir))
		require.NoError(t, err, dir)
		assert.True(t, info.IsDir(), dir)
	}

	require.NoError(t, app.Close(context.Background()))
}

func TestNewAppWithoutMetrics(t *testing.T) {
	settings := appSettings(t)
	settings.Telemetry.Enabled = false

	app, err := NewApp(context.Background(), settings, nil, nil)
	require.NoError(t, err)
	assert.Nil(t, app.Metrics)
	require.NoError(t, app.Close(context.Background()))
}

func TestNewAppRejectsUnknownDatabase(t *testing.T) {
	settings := appSettings(t)
	settings.Database.Type = "oracle"

	app, err := NewApp(context.Background(), settings, nil, logger.NewNopLogger())
	assert.Error(t, err)
	assert.Nil(t, app)
}

func TestCloseEmptyApp(t *testing.T) {
	t.Parallel()
	assert.NoError(t, (&App{}).Close(context.Background()))
}
