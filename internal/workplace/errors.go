package workplace

import (
	"github.com/Timvanhoudt/VirtualTeamLeader/internal/datastore/repository"
	"github.com/Timvanhoudt/VirtualTeamLeader/internal/errors"
)

func validationError(format string, args ...any) error {
	return errors.Newf(format, args...).
		Component("workplace").
		Category(errors.CategoryValidation).
		Build()
}

// classify attaches a category to repository errors. The original error
// stays reachable through errors.Is.
func classify(err error, operation string) error {
	if err == nil {
		return nil
	}
	var category errors.ErrorCategory
	switch {
	case errors.Is(err, repository.ErrWorkplaceNotFound),
		errors.Is(err, repository.ErrModelNotFound),
		errors.Is(err, repository.ErrTrainingImageNotFound),
		errors.Is(err, repository.ErrDatasetExportNotFound):
		category = errors.CategoryNotFound
	case errors.Is(err, repository.ErrDuplicateKey):
		category = errors.CategoryConflict
	case errors.Is(err, repository.ErrInvalidInput):
		category = errors.CategoryValidation
	default:
		var ee *errors.EnhancedError
		if errors.As(err, &ee) {
			return err
		}
		category = errors.CategoryDatabase
	}
	return errors.New(err).
		Component("workplace").
		Category(category).
		Context("operation", operation).
		Build()
}

func fileError(err error, operation, path string) error {
	return errors.New(err).
		Component("workplace").
		Category(errors.CategoryFileIO).
		Context("operation", operation).
		FileContext(path, 0).
		Build()
}
