package logger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	gorm_logger "gorm.io/gorm/logger"
	"gorm.io/gorm/utils"
)

// DefaultMaxSQLLength bounds the statement text written to the log. Batch
// inserts of a database transfer are far longer.
const DefaultMaxSQLLength = 2048

// SQLLogger writes GORM statements to a module logger.
//
// Statements go to trace level. Slow statements and unexpected failures go to
// warn. Failures the repositories turn into domain results (missing rows,
// duplicate workplace names, cancelled requests) stay at debug.
type SQLLogger struct {
	log           Logger
	slowThreshold time.Duration
	maxSQLLength  int
	silent        bool
}

// NewSQLLogger creates a GORM logger. A slowThreshold of 0 disables slow
// statement warnings.
func NewSQLLogger(log Logger, slowThreshold time.Duration) *SQLLogger {
	if log == nil {
		log = NewNopLogger()
	}
	return &SQLLogger{log: log, slowThreshold: slowThreshold, maxSQLLength: DefaultMaxSQLLength}
}

// LogMode only distinguishes Silent from the rest; levels come from the
// module configuration.
func (l *SQLLogger) LogMode(level gorm_logger.LogLevel) gorm_logger.Interface {
	c := *l
	c.silent = level == gorm_logger.Silent
	return &c
}

func (l *SQLLogger) Info(ctx context.Context, msg string, data ...any) {
	l.message(ctx, LogLevelDebug, msg, data)
}

func (l *SQLLogger) Warn(ctx context.Context, msg string, data ...any) {
	l.message(ctx, LogLevelWarn, msg, data)
}

func (l *SQLLogger) Error(ctx context.Context, msg string, data ...any) {
	l.message(ctx, LogLevelError, msg, data)
}

func (l *SQLLogger) message(ctx context.Context, level LogLevel, msg string, data []any) {
	if l.silent {
		return
	}
	text := fmt.Sprintf(msg, data...)
	log := l.log.WithContext(ctx)
	switch level {
	case LogLevelError:
		log.Error(text)
	case LogLevelWarn:
		log.Warn(text)
	default:
		log.Debug(text)
	}
}

// Trace is called by GORM after every statement.
func (l *SQLLogger) Trace(ctx context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error) {
	if l.silent {
		return
	}
	elapsed := time.Since(begin)
	sql, rows := fc()

	fields := []Field{
		String("sql", l.truncate(sql)),
		Int64("rows", rows),
		Duration("elapsed", elapsed),
		String("caller", utils.FileWithLineNum()),
	}
	log := l.log.WithContext(ctx)

	switch {
	case err != nil && expectedQueryError(err):
		log.Debug("query returned no usable result", append(fields, Error(err))...)
	case err != nil:
		log.Warn("query failed", append(fields, Error(err))...)
	case l.slowThreshold > 0 && elapsed > l.slowThreshold:
		log.Warn("slow query", append(fields, Duration("threshold", l.slowThreshold))...)
	default:
		log.Trace("query", fields...)
	}
}

func (l *SQLLogger) truncate(sql string) string {
	if l.maxSQLLength <= 0 || len(sql) <= l.maxSQLLength {
		return sql
	}
	return fmt.Sprintf("%s... (%d bytes)", sql[:l.maxSQLLength], len(sql))
}

func expectedQueryError(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound) ||
		errors.Is(err, gorm.ErrDuplicatedKey) ||
		errors.Is(err, context.Canceled)
}
