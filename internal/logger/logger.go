// Package logger provides a structured, module-aware logging system built on go.uber.org/zap.
//
// Components receive the Logger interface and scope it with Module:
//
//	log := logger.Global().Module("inspection")
//	log.Info("inspection stored",
//	    logger.Int64("inspection_id", id),
//	    logger.String("status", "NOK"),
//	    logger.Float64("confidence", 0.91))
//
// Console output is human-readable text without timestamps; the optional file
// output is JSON with RFC3339 timestamps and size-based rotation.
//
// Configure via YAML:
//
//	logging:
//	  default_level: "info"
//	  timezone: "Local"
//	  console:
//	    enabled: true
//	    level: "info"
//	  file_output:
//	    enabled: true
//	    path: "logs/inspector.log"
//	    level: "debug"
//	    max_size: 50
//	  module_levels:
//	    datastore: "trace"
//
// Available levels from most to least verbose: trace, debug, info, warn, error.
// SQL statements from GORM are logged at trace level through SQLLogger.
package logger

import (
	"context"
	"time"
	"unique"
)

// LogLevel represents log severity levels
type LogLevel string

const (
	LogLevelTrace LogLevel = "trace"
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// Field represents a structured log field.
// Keys are interned using unique.Make() so repeated keys share one allocation.
type Field struct {
	Key   string
	Value any
}

// internKey returns an interned version of the key string.
// This ensures repeated keys share the same underlying memory.
func internKey(key string) string {
	return unique.Make(key).Value()
}

// Pre-interned common keys for zero-allocation access
var (
	errorKey = internKey("error")
)

// Logger is the centralized logging interface for dependency injection
type Logger interface {
	// Module returns a logger scoped to a specific module
	Module(name string) Logger

	// Leveled logging methods
	Trace(msg string, fields ...Field)
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)

	// Context-aware logging
	With(fields ...Field) Logger
	WithContext(ctx context.Context) Logger

	// Log with explicit level
	Log(level LogLevel, msg string, fields ...Field)

	// Flush ensures all buffered logs are written
	Flush() error
}

// Field Constructors
//
// The following functions create type-safe field values for structured logging.
// Use these instead of string concatenation or formatting to ensure logs are
// machine-parseable and queryable.
//
// Example usage:
//
//	log.Info("correction saved",
//	    logger.Int64("inspection_id", 42),
//	    logger.String("corrected_label", "nok_hamer_weg"),
//	    logger.Bool("training_candidate", true))

// String creates a string field for structured logging.
//
// Use this for text values like IDs, names, statuses, etc.
// The key is interned for memory efficiency across repeated log calls.
//
// Example:
//
//	log.Info("Request processed",
//	    logger.String("method", "POST"),
//	    logger.String("endpoint", "/api/inspect"))
func String(key, value string) Field {
	return Field{Key: internKey(key), Value: value}
}

// Int creates an integer field for structured logging.
//
// Use this for counts, sizes, port numbers, status codes, etc.
// The key is interned for memory efficiency across repeated log calls.
//
// Example:
//
//	log.Info("training export finished",
//	    logger.Int("exported", 95),
//	    logger.Int("failed", 5))
func Int(key string, value int) Field {
	return Field{Key: internKey(key), Value: value}
}

// Int64 creates a 64-bit integer field.
func Int64(key string, value int64) Field {
	return Field{Key: internKey(key), Value: value}
}

// Uint64 creates a uint64 field.
func Uint64(key string, value uint64) Field {
	return Field{Key: internKey(key), Value: value}
}

// Float32 creates a 32-bit float field for structured logging.
//
// Use this for decimal numbers, percentages, confidence scores, etc.
// The key is interned for memory efficiency across repeated log calls.
//
// Example:
//
//	log.Info("Detection result",
//	    logger.String("label", "schaar"),
//	    logger.Float32("confidence", 0.95))
func Float32(key string, value float32) Field {
	return Field{Key: internKey(key), Value: value}
}

// Float64 creates a float64 field.
func Float64(key string, value float64) Field {
	return Field{Key: internKey(key), Value: value}
}

// Bool creates a boolean field for flags and success indicators.
func Bool(key string, value bool) Field {
	return Field{Key: internKey(key), Value: value}
}

// Error creates an error field for structured logging.
//
// The field key is always "error" (pre-interned for zero allocation).
// If err is nil, the value will be nil.
// Use this to log errors with additional context fields.
//
// Example:
//
//	if err := repo.Save(ctx, inspection); err != nil {
//	    log.Error("failed to store inspection",
//	        logger.Error(err),
//	        logger.Int64("workplace_id", inspection.WorkplaceID),
//	        logger.String("operation", "save"))
//	    return err
//	}
func Error(err error) Field {
	if err == nil {
		return Field{Key: errorKey, Value: nil}
	}
	return Field{Key: errorKey, Value: err.Error()}
}

// Duration creates a duration field for structured logging.
//
// Use this for elapsed time, timeouts, latencies, etc.
// The duration is converted to a string representation (e.g., "1.5s", "200ms").
// The key is interned for memory efficiency across repeated log calls.
//
// Example:
//
//	start := time.Now()
//	// ... run inference ...
//	log.Debug("inference completed",
//	    logger.String("model_type", "classification"),
//	    logger.Duration("elapsed", time.Since(start)))
func Duration(key string, value time.Duration) Field {
	return Field{Key: internKey(key), Value: value.String()}
}

// Time creates a time field.
func Time(key string, value time.Time) Field {
	return Field{Key: internKey(key), Value: value}
}

// Any creates a field with any value for structured logging.
//
// Use this for complex types that will be serialized to JSON.
// Avoid using this for simple types - prefer the type-specific constructors instead.
// The key is interned for memory efficiency across repeated log calls.
//
// Example:
//
//	log.Debug("detections",
//	    logger.Any("missing_items", verdict.MissingItems))
//
// Warning: Ensure the value is JSON-serializable or it may cause logging errors.
func Any(key string, value any) Field {
	return Field{Key: internKey(key), Value: value}
}
