package conf

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadFromFile(t *testing.T, content string) (*Settings, error) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	viper.Set("config", path)

	return Load()
}

func TestLoadAppliesDefaults(t *testing.T) {
	settings, err := loadFromFile(t, "main:\n  name: line-3\n")
	require.NoError(t, err)

	assert.Equal(t, "line-3", settings.Main.Name)
	assert.Equal(t, DatabaseSQLite, settings.Database.Type)
	assert.Equal(t, "data/inspections.db", settings.Database.SQLite.Path)
	assert.Equal(t, "seven_class", settings.Model.Scheme)
	assert.True(t, settings.Model.DummyFallback)
	assert.InDelta(t, 0.25, settings.Inspection.ConfidenceThreshold, 1e-9)
	assert.InDelta(t, 0.45, settings.Inspection.NMSThreshold, 1e-9)
	assert.Equal(t, 2*time.Minute, settings.Inspection.ProgressTTL)
	assert.Equal(t, 200, settings.Training.Target)
	assert.Equal(t, 99, settings.Privacy.BlurStrength)
	assert.Equal(t, "info", settings.Logging.DefaultLevel)
	assert.Same(t, settings, GetSettings())
}

func TestLoadEmbeddedDefaultConfigIsValid(t *testing.T) {
	data, err := configFiles.ReadFile("config.yaml")
	require.NoError(t, err)

	settings, err := loadFromFile(t, string(data))
	require.NoError(t, err)
	assert.Equal(t, ":8000", settings.WebServer.Listen)
	assert.Equal(t, 5*time.Second, settings.Notification.Webhook.Timeout)
	assert.Equal(t, 200*time.Millisecond, settings.Database.SlowThreshold)
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("VTL_DATABASE_TYPE", "mysql")
	t.Setenv("VTL_MYSQL_USER", "inspector")
	t.Setenv("VTL_MYSQL_HOST", "db.internal")
	t.Setenv("VTL_MODEL_SCHEME", "eight_class")

	settings, err := loadFromFile(t, "")
	require.NoError(t, err)

	assert.Equal(t, DatabaseMySQL, settings.Database.Type)
	assert.Equal(t, "inspector", settings.Database.MySQL.Username)
	assert.Equal(t, "db.internal", settings.Database.MySQL.Host)
	assert.Equal(t, "eight_class", settings.Model.Scheme)
}

func TestInvalidEnvironmentValueFailsLoad(t *testing.T) {
	t.Setenv("VTL_MODEL_THREADS", "-2")

	_, err := loadFromFile(t, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "VTL_MODEL_THREADS")
}

func TestResolvePath(t *testing.T) {
	s := &Settings{Main: MainSettings{DataDir: "/srv/vtl"}}
	assert.Equal(t, filepath.Join("/srv/vtl", "uploads"), s.ResolvePath("uploads"))
	assert.Equal(t, "/abs/file", s.ResolvePath("/abs/file"))
	assert.Empty(t, s.ResolvePath(""))
}
