// conf/validate.go

package conf

import (
	"fmt"
	"slices"
	"strings"

	"github.com/labstack/gommon/bytes"
)

// validSchemes are the classification schemes a model can declare
var validSchemes = []string{"binary", "seven_class", "eight_class"}

// ValidationError represents a collection of validation errors
type ValidationError struct {
	Errors []string
}

// Error returns a string representation of the validation errors
func (ve ValidationError) Error() string {
	return fmt.Sprintf("Validation errors: %v", ve.Errors)
}

// ValidateSettings validates the entire Settings struct. Some values are
// normalized in place (an even blur kernel is bumped to the next odd size).
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}

	validators := []func(*Settings) error{
		validateWebServerSettings,
		validateDatabaseSettings,
		validateModelSettings,
		validateInspectionSettings,
		validatePrivacySettings,
		validateTrainingSettings,
		validateNotificationSettings,
		validateSentrySettings,
	}

	for _, validate := range validators {
		if err := validate(settings); err != nil {
			ve.Errors = append(ve.Errors, err.Error())
		}
	}

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

func validateWebServerSettings(s *Settings) error {
	var errs []string
	if s.WebServer.Listen == "" {
		errs = append(errs, "webserver listen address must not be empty")
	}
	if s.WebServer.BodyLimit != "" {
		if _, err := bytes.Parse(s.WebServer.BodyLimit); err != nil {
			errs = append(errs, fmt.Sprintf("invalid webserver body limit %q: %v", s.WebServer.BodyLimit, err))
		}
	}
	if s.WebServer.RateLimit < 0 {
		errs = append(errs, "webserver rate limit must not be negative")
	}
	if s.WebServer.RateLimit > 0 && s.WebServer.RateLimitBurst < 1 {
		s.WebServer.RateLimitBurst = 1
	}
	return joinErrors(errs)
}

func validateDatabaseSettings(s *Settings) error {
	db := &s.Database
	switch db.Type {
	case DatabaseSQLite:
		if db.SQLite.Path == "" {
			return fmt.Errorf("sqlite path must not be empty")
		}
	case DatabaseMySQL:
		if db.MySQL.Host == "" || db.MySQL.Username == "" || db.MySQL.Database == "" {
			return fmt.Errorf("mysql requires host, username and database")
		}
	case DatabasePostgres:
		if db.Postgres.Host == "" || db.Postgres.Username == "" || db.Postgres.Database == "" {
			return fmt.Errorf("postgres requires host, username and database")
		}
	default:
		return fmt.Errorf("unsupported database type %q", db.Type)
	}
	return nil
}

func validateModelSettings(s *Settings) error {
	var errs []string
	if s.Model.Type != "classification" && s.Model.Type != "detection" {
		errs = append(errs, fmt.Sprintf("model type must be classification or detection, got %q", s.Model.Type))
	}
	if !slices.Contains(validSchemes, s.Model.Scheme) {
		errs = append(errs, fmt.Sprintf("model scheme must be one of %s, got %q", strings.Join(validSchemes, ", "), s.Model.Scheme))
	}
	if s.Model.Threads < 0 {
		errs = append(errs, "model threads must not be negative")
	}
	return joinErrors(errs)
}

func validateInspectionSettings(s *Settings) error {
	var errs []string
	in := &s.Inspection
	if in.ConfidenceThreshold < 0 || in.ConfidenceThreshold > 1 {
		errs = append(errs, fmt.Sprintf("inspection confidence threshold must be between 0 and 1, got %g", in.ConfidenceThreshold))
	}
	if in.NMSThreshold <= 0 || in.NMSThreshold > 1 {
		errs = append(errs, fmt.Sprintf("inspection nms threshold must be in (0, 1], got %g", in.NMSThreshold))
	}
	if in.JPEGQuality < 1 || in.JPEGQuality > 100 {
		errs = append(errs, fmt.Sprintf("inspection jpeg quality must be between 1 and 100, got %d", in.JPEGQuality))
	}
	if in.UploadsDir == "" {
		errs = append(errs, "inspection uploads directory must not be empty")
	}
	if in.ProgressTTL <= 0 {
		errs = append(errs, "inspection progress ttl must be positive")
	}
	return joinErrors(errs)
}

func validatePrivacySettings(s *Settings) error {
	p := &s.Privacy
	if p.BlurStrength < 1 {
		return fmt.Errorf("privacy blur strength must be positive, got %d", p.BlurStrength)
	}
	if p.BlurStrength%2 == 0 {
		p.BlurStrength++
	}
	if p.Padding < 0 {
		return fmt.Errorf("privacy padding must not be negative, got %d", p.Padding)
	}
	return nil
}

func validateTrainingSettings(s *Settings) error {
	var errs []string
	if s.Training.Target < 1 {
		errs = append(errs, "training target must be at least 1")
	}
	if s.Training.TrainSplit <= 0 || s.Training.TrainSplit >= 1 {
		errs = append(errs, fmt.Sprintf("training train split must be between 0 and 1, got %g", s.Training.TrainSplit))
	}
	return joinErrors(errs)
}

func validateNotificationSettings(s *Settings) error {
	var errs []string
	if s.Notification.MQTT.Enabled {
		if s.Notification.MQTT.Broker == "" {
			errs = append(errs, "mqtt broker must be set when mqtt is enabled")
		}
		if s.Notification.MQTT.Topic == "" {
			errs = append(errs, "mqtt topic must be set when mqtt is enabled")
		}
	}
	if s.Notification.Webhook.Enabled && s.Notification.Webhook.URL == "" {
		errs = append(errs, "webhook url must be set when the webhook is enabled")
	}
	return joinErrors(errs)
}

func validateSentrySettings(s *Settings) error {
	if s.Sentry.Enabled && s.Sentry.DSN == "" {
		return fmt.Errorf("sentry dsn must be set when sentry is enabled")
	}
	return nil
}

func joinErrors(errs []string) error {
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%s", strings.Join(errs, "; "))
}
