package api

import (
	"net/http"

	"github.com/Timvanhoudt/VirtualTeamLeader/internal/datastore/repository"
	"github.com/Timvanhoudt/VirtualTeamLeader/internal/errors"
)

// StatusFor maps a service error to an HTTP status code. Repository
// sentinels win over the category of the outermost enhanced error.
func StatusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, repository.ErrAnalysisNotFound),
		errors.Is(err, repository.ErrWorkplaceNotFound),
		errors.Is(err, repository.ErrModelNotFound),
		errors.Is(err, repository.ErrTrainingImageNotFound),
		errors.Is(err, repository.ErrDatasetExportNotFound):
		return http.StatusNotFound
	case errors.Is(err, repository.ErrDuplicateKey):
		return http.StatusConflict
	case errors.Is(err, repository.ErrInvalidInput):
		return http.StatusBadRequest
	}

	var ee *errors.EnhancedError
	if !errors.As(err, &ee) {
		return http.StatusInternalServerError
	}
	switch ee.Category {
	case errors.CategoryValidation, errors.CategoryImageDecode:
		return http.StatusBadRequest
	case errors.CategoryPrivacyPolicy:
		return http.StatusForbidden
	case errors.CategoryNotFound:
		return http.StatusNotFound
	case errors.CategoryConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// createStatusFor is StatusFor for create endpoints, where a duplicate is
// reported as a bad request.
func createStatusFor(err error) int {
	if code := StatusFor(err); code != http.StatusConflict {
		return code
	}
	return http.StatusBadRequest
}
