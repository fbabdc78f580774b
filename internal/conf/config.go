// config.go: settings struct for the inspection service and functions to load it.
package conf

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/Timvanhoudt/VirtualTeamLeader/internal/logger"
)

//go:embed config.yaml
var configFiles embed.FS

// MainSettings contains general application settings
type MainSettings struct {
	Name    string // instance name shown in health output
	DataDir string // base directory for relative data paths
}

// WebServerSettings contains settings for the HTTP API
type WebServerSettings struct {
	Listen         string   // listen address, e.g. ":8000"
	BodyLimit      string   // maximum request body, e.g. "20M"
	RateLimit      float64  // requests per second per client on /inspect (0 disables)
	RateLimitBurst int      // burst size for the rate limiter
	CORSOrigins    []string // allowed CORS origins
	Debug          bool     // verbose request logging
}

// SQLiteSettings contains settings for the SQLite backend
type SQLiteSettings struct {
	Path string
}

// MySQLSettings contains settings for the MySQL backend
type MySQLSettings struct {
	Host     string
	Port     string
	Username string
	Password string
	Database string
}

// PostgresSettings contains settings for the PostgreSQL backend
type PostgresSettings struct {
	Host     string
	Port     string
	Username string
	Password string
	Database string
	SSLMode  string
}

// DatabaseSettings selects and configures the persistence backend
type DatabaseSettings struct {
	Type          string // sqlite, mysql or postgres
	SlowThreshold time.Duration
	SQLite        SQLiteSettings
	MySQL         MySQLSettings
	Postgres      PostgresSettings
}

// ModelSettings describes the process-wide default model
type ModelSettings struct {
	Path          string // path to the default .tflite model
	Type          string // classification or detection
	Scheme        string // binary, seven_class or eight_class
	Version       string // version label recorded with each analysis
	Threads       int    // interpreter threads, 0 = physical cores
	DummyFallback bool   // use the placeholder model when the file is missing
}

// InspectionSettings contains settings for the inspection pipeline
type InspectionSettings struct {
	ConfidenceThreshold float64       // default detector threshold when a workplace has none
	NMSThreshold        float64       // IoU threshold for non-maximum suppression
	UploadsDir          string        // processed inspection images
	BlurFaces           bool          // blur faces instead of only counting them
	JPEGQuality         int           // quality of stored and returned images
	ProgressTTL         time.Duration // lifetime of progress entries
}

// PrivacySettings configures face detection
type PrivacySettings struct {
	Enabled      bool
	CascadePath  string // Haar cascade XML file
	BlurStrength int    // Gaussian kernel size, forced odd
	Padding      int    // pixels added around each face before blurring
}

// TrainingSettings configures review and dataset handling
type TrainingSettings struct {
	Target             int     // images needed before a retraining round
	ExportDir          string  // root directory for training exports
	DatasetExportDir   string  // root directory for dataset zip archives
	TrainingImagesDir  string  // uploaded training images
	ReferencePhotosDir string  // workplace reference photos
	ModelsDir          string  // uploaded models
	TrainSplit         float64 // share of images placed in train/
}

// MQTTSettings contains settings for the MQTT notification sink
type MQTTSettings struct {
	Enabled  bool
	Broker   string
	Topic    string
	ClientID string
	Username string
	Password string
}

// WebhookSettings contains settings for the webhook notification sink
type WebhookSettings struct {
	Enabled bool
	URL     string
	Timeout time.Duration
}

// NotificationSettings contains settings for inspection event notifications
type NotificationSettings struct {
	OnlyNOK bool // publish only NOK verdicts
	MQTT    MQTTSettings
	Webhook WebhookSettings
}

// SentrySettings contains settings for error telemetry
type SentrySettings struct {
	Enabled     bool
	DSN         string
	Environment string
}

// TelemetrySettings contains settings for Prometheus metrics
type TelemetrySettings struct {
	Enabled bool
}

// Settings contains all configuration options for the service
type Settings struct {
	Debug bool

	Main         MainSettings
	Logging      logger.LoggingConfig
	WebServer    WebServerSettings
	Database     DatabaseSettings
	Model        ModelSettings
	Inspection   InspectionSettings
	Privacy      PrivacySettings
	Training     TrainingSettings
	Notification NotificationSettings
	Sentry       SentrySettings
	Telemetry    TelemetrySettings
}

var (
	settingsInstance *Settings
	settingsMutex    sync.RWMutex
)

// Load reads .env files, the configuration file and environment variables into Settings.
func Load() (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	// A missing .env file is normal outside development
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	if err := initViper(); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	if err := bindEnvVars(); err != nil {
		return nil, err
	}

	settings := &Settings{}
	if err := viper.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}

	settingsInstance = settings
	return settingsInstance, nil
}

// initViper initializes viper with default values and reads the configuration file.
func initViper() error {
	setDefaultConfig()

	if explicit := viper.GetString("config"); explicit != "" {
		viper.SetConfigFile(explicit)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("error reading config file %s: %w", explicit, err)
		}
		return nil
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}
	for _, path := range configPaths {
		viper.AddConfigPath(path)
	}

	if err := viper.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			return createDefaultConfig(configPaths[0])
		}
		return fmt.Errorf("fatal error reading config file: %w", err)
	}

	return nil
}

// createDefaultConfig writes the embedded config.yaml to dir and reads it back
func createDefaultConfig(dir string) error {
	configPath := filepath.Join(dir, "config.yaml")

	data, err := fs.ReadFile(configFiles, "config.yaml")
	if err != nil {
		return fmt.Errorf("error reading embedded config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return fmt.Errorf("error creating directories for config file: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		return fmt.Errorf("error writing default config file: %w", err)
	}

	GetLogger().Info("created default config file", logger.String("path", configPath))
	viper.SetConfigFile(configPath)
	return viper.ReadInConfig()
}

// GetSettings returns the current settings instance
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// ResolvePath joins a relative path onto the data directory.
func (s *Settings) ResolvePath(path string) string {
	if path == "" || filepath.IsAbs(path) || s.Main.DataDir == "" {
		return path
	}
	return filepath.Join(s.Main.DataDir, path)
}
