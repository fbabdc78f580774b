// Package repository provides the persistence interfaces and their gorm
// implementations for the inspection schema.
package repository

import (
	"github.com/go-sql-driver/mysql"
	"github.com/mattn/go-sqlite3"
	"gorm.io/gorm"

	"github.com/Timvanhoudt/VirtualTeamLeader/internal/errors"
)

// Sentinel errors for repository operations.
// These typed errors let callers distinguish failure modes without relying
// on string matching or GORM-specific errors.
var (
	// ErrAnalysisNotFound indicates the requested analysis does not exist.
	ErrAnalysisNotFound = errors.NewStd("analysis not found")

	// ErrWorkplaceNotFound indicates the requested workplace does not exist.
	ErrWorkplaceNotFound = errors.NewStd("workplace not found")

	// ErrModelNotFound indicates the requested model does not exist.
	ErrModelNotFound = errors.NewStd("model not found")

	// ErrTrainingImageNotFound indicates the requested training image does not exist.
	ErrTrainingImageNotFound = errors.NewStd("training image not found")

	// ErrDatasetExportNotFound indicates the requested dataset export does not exist.
	ErrDatasetExportNotFound = errors.NewStd("dataset export not found")

	// ErrDuplicateKey indicates a unique constraint violation.
	ErrDuplicateKey = errors.NewStd("duplicate key")

	// ErrInvalidInput indicates invalid input parameters.
	ErrInvalidInput = errors.NewStd("invalid input")
)

const mysqlDuplicateEntry = 1062

// IsDuplicateKey reports whether err is a unique constraint violation from
// any supported backend.
func IsDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrDuplicateKey) || errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) && myErr.Number == mysqlDuplicateEntry {
		return true
	}

	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) && liteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
		return true
	}

	return false
}

// mapWriteError converts driver constraint errors to ErrDuplicateKey.
func mapWriteError(err error) error {
	if IsDuplicateKey(err) {
		return ErrDuplicateKey
	}
	return err
}
