// env.go - Environment variable configuration and validation
package conf

import (
	"fmt"
	"net/url"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// envBinding holds metadata for environment variable bindings (internal use)
type envBinding struct {
	ConfigKey string             // Viper config key
	EnvVar    string             // Environment variable name
	Validate  func(string) error // Optional validation function
}

// getEnvBindings returns all environment variable bindings with validation
func getEnvBindings() []envBinding {
	return []envBinding{
		{"debug", "VTL_DEBUG", validateEnvBool},
		{"main.datadir", "VTL_DATADIR", nil},

		{"webserver.listen", "VTL_LISTEN", nil},
		{"webserver.ratelimit", "VTL_RATELIMIT", validateEnvNonNegativeFloat},

		{"database.type", "VTL_DATABASE_TYPE", validateEnvDatabaseType},
		{"database.sqlite.path", "VTL_SQLITE_PATH", nil},
		{"database.mysql.host", "VTL_MYSQL_HOST", nil},
		{"database.mysql.port", "VTL_MYSQL_PORT", validateEnvPort},
		{"database.mysql.username", "VTL_MYSQL_USER", nil},
		{"database.mysql.password", "VTL_MYSQL_PASSWORD", nil},
		{"database.mysql.database", "VTL_MYSQL_DATABASE", nil},
		{"database.postgres.host", "VTL_POSTGRES_HOST", nil},
		{"database.postgres.port", "VTL_POSTGRES_PORT", validateEnvPort},
		{"database.postgres.username", "VTL_POSTGRES_USER", nil},
		{"database.postgres.password", "VTL_POSTGRES_PASSWORD", nil},
		{"database.postgres.database", "VTL_POSTGRES_DATABASE", nil},

		{"model.path", "VTL_MODEL_PATH", nil},
		{"model.type", "VTL_MODEL_TYPE", validateEnvModelType},
		{"model.scheme", "VTL_MODEL_SCHEME", validateEnvScheme},
		{"model.threads", "VTL_MODEL_THREADS", validateEnvThreads},

		{"inspection.progressttl", "VTL_PROGRESS_TTL", validateEnvDuration},

		{"notification.mqtt.broker", "VTL_MQTT_BROKER", validateEnvURL},
		{"notification.mqtt.username", "VTL_MQTT_USERNAME", nil},
		{"notification.mqtt.password", "VTL_MQTT_PASSWORD", nil},
		{"notification.webhook.url", "VTL_WEBHOOK_URL", validateEnvURL},

		{"sentry.dsn", "VTL_SENTRY_DSN", nil},
	}
}

// bindEnvVars sets up environment variable bindings with validation (internal)
func bindEnvVars() error {
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	var warnings []string
	for _, binding := range getEnvBindings() {
		if err := viper.BindEnv(binding.ConfigKey, binding.EnvVar); err != nil {
			warnings = append(warnings, fmt.Sprintf("Failed to bind %s: %v", binding.EnvVar, err))
			continue
		}

		if binding.Validate != nil {
			if envValue := os.Getenv(binding.EnvVar); envValue != "" {
				if err := binding.Validate(envValue); err != nil {
					warnings = append(warnings, fmt.Sprintf("Invalid %s value '%s': %v", binding.EnvVar, envValue, err))
				}
			}
		}
	}

	if len(warnings) > 0 {
		return fmt.Errorf("environment variable issues:\n  - %s", strings.Join(warnings, "\n  - "))
	}

	return nil
}

func validateEnvBool(value string) error {
	if _, err := strconv.ParseBool(value); err != nil {
		return fmt.Errorf("invalid boolean value '%s': must be true/false, 1/0", value)
	}
	return nil
}

func validateEnvNonNegativeFloat(value string) error {
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("invalid number: %w", err)
	}
	if f < 0 {
		return fmt.Errorf("must not be negative, got %g", f)
	}
	return nil
}

func validateEnvDatabaseType(value string) error {
	if !slices.Contains([]string{DatabaseSQLite, DatabaseMySQL, DatabasePostgres}, value) {
		return fmt.Errorf("must be one of sqlite, mysql, postgres")
	}
	return nil
}

func validateEnvPort(value string) error {
	port, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid port: %w", err)
	}
	if port < 1 || port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", port)
	}
	return nil
}

func validateEnvModelType(value string) error {
	if value != "classification" && value != "detection" {
		return fmt.Errorf("must be classification or detection")
	}
	return nil
}

func validateEnvScheme(value string) error {
	if !slices.Contains(validSchemes, value) {
		return fmt.Errorf("must be one of %s", strings.Join(validSchemes, ", "))
	}
	return nil
}

func validateEnvThreads(value string) error {
	threads, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid thread count: %w", err)
	}
	if threads < 0 {
		return fmt.Errorf("thread count must not be negative, got %d", threads)
	}
	return nil
}

func validateEnvDuration(value string) error {
	if _, err := time.ParseDuration(value); err != nil {
		return fmt.Errorf("invalid duration: %w", err)
	}
	return nil
}

func validateEnvURL(value string) error {
	u, err := url.Parse(value)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("URL must include scheme and host")
	}
	return nil
}
