package datastore

import (
	"time"

	"gorm.io/gorm"

	"github.com/Timvanhoudt/VirtualTeamLeader/internal/errors"
	"github.com/Timvanhoudt/VirtualTeamLeader/internal/observability/metrics"
)

const startTimeKey = "metrics:start_time"

// OperationRecorder receives one observation per database statement.
type OperationRecorder interface {
	RecordDbOperation(operation, table, status string)
	RecordDbOperationDuration(operation, table string, seconds float64)
	RecordDbOperationError(operation, table, errorType string)
}

var _ OperationRecorder = (*metrics.DatastoreMetrics)(nil)

// Instrument registers gorm callbacks that time every create, query, update,
// delete and raw statement.
func Instrument(db *gorm.DB, rec OperationRecorder) error {
	if rec == nil {
		return nil
	}

	cb := db.Callback()
	register := []struct {
		op     string
		before func() error
		after  func() error
	}{
		{metrics.OpDbInsert,
			func() error { return cb.Create().Before("gorm:create").Register("metrics:before_create", startTimer) },
			func() error { return cb.Create().After("gorm:create").Register("metrics:after_create", observe(rec, metrics.OpDbInsert)) }},
		{metrics.OpDbQuery,
			func() error { return cb.Query().Before("gorm:query").Register("metrics:before_query", startTimer) },
			func() error { return cb.Query().After("gorm:query").Register("metrics:after_query", observe(rec, metrics.OpDbQuery)) }},
		{metrics.OpDbUpdate,
			func() error { return cb.Update().Before("gorm:update").Register("metrics:before_update", startTimer) },
			func() error { return cb.Update().After("gorm:update").Register("metrics:after_update", observe(rec, metrics.OpDbUpdate)) }},
		{metrics.OpDbDelete,
			func() error { return cb.Delete().Before("gorm:delete").Register("metrics:before_delete", startTimer) },
			func() error { return cb.Delete().After("gorm:delete").Register("metrics:after_delete", observe(rec, metrics.OpDbDelete)) }},
		{metrics.OpDbRaw,
			func() error { return cb.Raw().Before("gorm:raw").Register("metrics:before_raw", startTimer) },
			func() error { return cb.Raw().After("gorm:raw").Register("metrics:after_raw", observe(rec, metrics.OpDbRaw)) }},
	}

	for _, r := range register {
		if err := r.before(); err != nil {
			return instrumentError(err, r.op)
		}
		if err := r.after(); err != nil {
			return instrumentError(err, r.op)
		}
	}
	return nil
}

func instrumentError(err error, op string) error {
	return errors.New(err).
		Component("datastore").
		Category(errors.CategoryConfiguration).
		Context("operation", "register_metrics_callback").
		Context("db_operation", op).
		Build()
}

func startTimer(db *gorm.DB) {
	db.InstanceSet(startTimeKey, time.Now())
}

func observe(rec OperationRecorder, op string) func(*gorm.DB) {
	return func(db *gorm.DB) {
		table := db.Statement.Table
		if table == "" {
			table = "unknown"
		}
		if v, ok := db.InstanceGet(startTimeKey); ok {
			if start, ok := v.(time.Time); ok {
				rec.RecordDbOperationDuration(op, table, time.Since(start).Seconds())
			}
		}

		// a missing row is a result, not a failure
		if db.Error != nil && !errors.Is(db.Error, gorm.ErrRecordNotFound) {
			rec.RecordDbOperation(op, table, metrics.StatusError)
			rec.RecordDbOperationError(op, table, classifyError(db.Error))
			return
		}
		rec.RecordDbOperation(op, table, metrics.StatusSuccess)
	}
}

func classifyError(err error) string {
	switch {
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return "duplicate_key"
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		return "foreign_key"
	default:
		return "query_error"
	}
}
