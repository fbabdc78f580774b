package logger

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// TraceLevel sits one step below zap's debug level.
const TraceLevel = zapcore.DebugLevel - 1

const (
	moduleKey  = "module"
	traceIDKey = "trace_id"

	floatPrecisionRatio = 1000
)

var (
	globalLogger   *CentralLogger
	globalLoggerMu sync.Mutex
)

// SetGlobal sets the global CentralLogger instance.
// This should be called once during application startup after loading configuration.
func SetGlobal(cl *CentralLogger) {
	globalLoggerMu.Lock()
	defer globalLoggerMu.Unlock()
	globalLogger = cl
}

// Global returns the global CentralLogger instance.
// If no logger has been set via SetGlobal, it returns a fallback console logger.
func Global() *CentralLogger {
	globalLoggerMu.Lock()
	defer globalLoggerMu.Unlock()

	if globalLogger != nil {
		return globalLogger
	}

	globalLogger = newCentralFromCore(
		zapcore.NewCore(newConsoleEncoder(), zapcore.Lock(os.Stdout), zap.NewAtomicLevelAt(zapcore.InfoLevel)),
		zapcore.InfoLevel, nil)
	return globalLogger
}

// loggerContextKey is a typed key for context values to avoid string collisions.
type loggerContextKey struct{ name string }

// TraceIDKey is the context key for trace IDs. Use WithTraceID() to set values.
var TraceIDKey = loggerContextKey{"trace_id"}

// WithTraceID returns a new context with the trace ID set
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, TraceIDKey, traceID)
}

// CentralLogger owns the zap cores and per-module levels.
type CentralLogger struct {
	core         zapcore.Core
	defaultLevel zapcore.Level
	moduleLevels map[string]zapcore.Level
	fileWriter   *lumberjack.Logger
	mu           sync.RWMutex
}

// NewCentralLogger creates a centralized logger from configuration
func NewCentralLogger(cfg *LoggingConfig) (*CentralLogger, error) {
	if cfg == nil {
		return nil, fmt.Errorf("logging config cannot be nil")
	}

	applyConfigDefaults(cfg)

	tz, err := loadTimezone(cfg.Timezone)
	if err != nil {
		return nil, err
	}

	var cores []zapcore.Core
	var fileWriter *lumberjack.Logger

	if cfg.Console != nil && cfg.Console.Enabled {
		cores = append(cores, zapcore.NewCore(
			newConsoleEncoder(),
			zapcore.Lock(os.Stdout),
			zap.NewAtomicLevelAt(parseLevel(cfg.Console.Level))))
	}

	if cfg.FileOutput != nil && cfg.FileOutput.Enabled {
		if err := os.MkdirAll(filepath.Dir(cfg.FileOutput.Path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		fileWriter = &lumberjack.Logger{
			Filename:   cfg.FileOutput.Path,
			MaxSize:    cfg.FileOutput.MaxSize,
			MaxAge:     cfg.FileOutput.MaxAge,
			MaxBackups: cfg.FileOutput.MaxRotatedFiles,
			Compress:   cfg.FileOutput.Compress,
			LocalTime:  tz != time.UTC,
		}
		cores = append(cores, zapcore.NewCore(
			newJSONEncoder(tz),
			zapcore.AddSync(fileWriter),
			zap.NewAtomicLevelAt(parseLevel(cfg.FileOutput.Level))))
	}

	if len(cores) == 0 {
		cores = append(cores, zapcore.NewCore(newConsoleEncoder(), zapcore.Lock(os.Stdout),
			zap.NewAtomicLevelAt(parseLevel(cfg.DefaultLevel))))
	}

	cl := newCentralFromCore(zapcore.NewTee(cores...), parseLevel(cfg.DefaultLevel), cfg.ModuleLevels)
	cl.fileWriter = fileWriter
	return cl, nil
}

// NewWriterLogger creates a JSON logger writing to w, mostly useful in tests
func NewWriterLogger(w io.Writer, level LogLevel) *CentralLogger {
	lvl := parseLevel(string(level))
	core := zapcore.NewCore(newJSONEncoder(time.UTC), zapcore.AddSync(w), zap.NewAtomicLevelAt(lvl))
	return newCentralFromCore(core, lvl, nil)
}

func newCentralFromCore(core zapcore.Core, defaultLevel zapcore.Level, moduleLevels map[string]string) *CentralLogger {
	cl := &CentralLogger{
		core:         core,
		defaultLevel: defaultLevel,
		moduleLevels: make(map[string]zapcore.Level, len(moduleLevels)),
	}
	for module, levelStr := range moduleLevels {
		cl.moduleLevels[module] = parseLevel(levelStr)
	}
	return cl
}

// Module returns a logger scoped to a specific module
func (cl *CentralLogger) Module(name string) Logger {
	if cl == nil {
		return nil
	}
	return &moduleLogger{
		central: cl,
		module:  name,
		level:   cl.levelFor(name),
		zl:      zap.New(cl.core),
	}
}

// SetModuleLevel changes the level for loggers created after the call.
func (cl *CentralLogger) SetModuleLevel(module string, level LogLevel) {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	cl.moduleLevels[module] = parseLevel(string(level))
}

// levelFor resolves a dotted module name, falling back to its parents
func (cl *CentralLogger) levelFor(module string) zapcore.Level {
	cl.mu.RLock()
	defer cl.mu.RUnlock()

	name := module
	for name != "" {
		if level, ok := cl.moduleLevels[name]; ok {
			return level
		}
		idx := strings.LastIndex(name, ".")
		if idx < 0 {
			break
		}
		name = name[:idx]
	}
	return cl.defaultLevel
}

// Flush syncs the underlying cores
func (cl *CentralLogger) Flush() error {
	if cl == nil {
		return nil
	}
	// Syncing stdout fails on some platforms; only file errors matter
	if err := cl.core.Sync(); err != nil && cl.fileWriter != nil {
		return err
	}
	return nil
}

// Close flushes and closes the rotating file writer
func (cl *CentralLogger) Close() error {
	if cl == nil {
		return nil
	}
	_ = cl.core.Sync()
	if cl.fileWriter != nil {
		return cl.fileWriter.Close()
	}
	return nil
}

func loadTimezone(name string) (*time.Location, error) {
	switch name {
	case "", "Local":
		return time.Local, nil
	case "UTC":
		return time.UTC, nil
	default:
		tz, err := time.LoadLocation(name)
		if err != nil {
			return nil, fmt.Errorf("invalid timezone %s: %w", name, err)
		}
		return tz, nil
	}
}

func parseLevel(level string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return TraceLevel
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func levelEncoder(l zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	if l == TraceLevel {
		enc.AppendString("TRACE")
		return
	}
	zapcore.CapitalLevelEncoder(l, enc)
}

func newConsoleEncoder() zapcore.Encoder {
	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = ""
	cfg.CallerKey = ""
	cfg.EncodeLevel = levelEncoder
	return zapcore.NewConsoleEncoder(cfg)
}

func newJSONEncoder(tz *time.Location) zapcore.Encoder {
	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = "time"
	cfg.MessageKey = "msg"
	cfg.CallerKey = ""
	cfg.EncodeLevel = levelEncoder
	cfg.EncodeTime = func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendString(t.In(tz).Format(time.RFC3339))
	}
	return zapcore.NewJSONEncoder(cfg)
}

// moduleLogger implements Logger for a specific module
type moduleLogger struct {
	central *CentralLogger
	module  string
	level   zapcore.Level
	zl      *zap.Logger
	fields  []Field
}

// Module creates a sub-module logger with its own copy of the accumulated fields
func (m *moduleLogger) Module(name string) Logger {
	if m == nil {
		return nil
	}
	module := m.module + "." + name
	return &moduleLogger{
		central: m.central,
		module:  module,
		level:   m.central.levelFor(module),
		zl:      m.zl,
		fields:  slices.Clone(m.fields),
	}
}

func (m *moduleLogger) Trace(msg string, fields ...Field) { m.log(TraceLevel, msg, fields...) }
func (m *moduleLogger) Debug(msg string, fields ...Field) { m.log(zapcore.DebugLevel, msg, fields...) }
func (m *moduleLogger) Info(msg string, fields ...Field)  { m.log(zapcore.InfoLevel, msg, fields...) }
func (m *moduleLogger) Warn(msg string, fields ...Field)  { m.log(zapcore.WarnLevel, msg, fields...) }
func (m *moduleLogger) Error(msg string, fields ...Field) { m.log(zapcore.ErrorLevel, msg, fields...) }

// Log logs a message with explicit level
func (m *moduleLogger) Log(level LogLevel, msg string, fields ...Field) {
	m.log(parseLevel(string(level)), msg, fields...)
}

// With returns a new logger with accumulated fields
func (m *moduleLogger) With(fields ...Field) Logger {
	if m == nil {
		return nil
	}
	return &moduleLogger{
		central: m.central,
		module:  m.module,
		level:   m.level,
		zl:      m.zl,
		fields:  slices.Concat(m.fields, fields),
	}
}

// WithContext returns a logger carrying the trace ID found in ctx, if any
func (m *moduleLogger) WithContext(ctx context.Context) Logger {
	if m == nil {
		return nil
	}
	traceID := getTraceIDFromContext(ctx)
	if traceID == "" {
		return m
	}
	return m.With(String(traceIDKey, traceID))
}

// Flush ensures all buffered logs are written
func (m *moduleLogger) Flush() error {
	if m == nil {
		return nil
	}
	return m.central.Flush()
}

func (m *moduleLogger) log(level zapcore.Level, msg string, fields ...Field) {
	if m == nil || level < m.level {
		return
	}

	ce := m.zl.Check(level, msg)
	if ce == nil {
		return
	}

	zfields := make([]zap.Field, 0, len(m.fields)+len(fields)+1)
	if m.module != "" {
		zfields = append(zfields, zap.String(moduleKey, m.module))
	}
	for i := range m.fields {
		zfields = append(zfields, toZapField(m.fields[i]))
	}
	for i := range fields {
		zfields = append(zfields, toZapField(fields[i]))
	}
	ce.Write(zfields...)
}

// toZapField converts Field to zap.Field, rounding floats for cleaner output
func toZapField(f Field) zap.Field {
	switch v := f.Value.(type) {
	case nil:
		return zap.Skip()
	case string:
		return zap.String(f.Key, v)
	case int:
		return zap.Int(f.Key, v)
	case int64:
		return zap.Int64(f.Key, v)
	case uint64:
		return zap.Uint64(f.Key, v)
	case float32:
		return zap.Float64(f.Key, roundFloat(float64(v)))
	case float64:
		return zap.Float64(f.Key, roundFloat(v))
	case bool:
		return zap.Bool(f.Key, v)
	case time.Time:
		return zap.Time(f.Key, v)
	default:
		return zap.Any(f.Key, v)
	}
}

func roundFloat(val float64) float64 {
	return math.Round(val*floatPrecisionRatio) / floatPrecisionRatio
}

func getTraceIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if traceID, ok := ctx.Value(TraceIDKey).(string); ok {
		return traceID
	}
	return ""
}
