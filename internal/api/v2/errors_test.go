package api

import (
	"fmt"
	"net/http"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Timvanhoudt/VirtualTeamLeader/internal/datastore/repository"
	"github.com/Timvanhoudt/VirtualTeamLeader/internal/errors"
)

func categorized(category errors.ErrorCategory) error {
	return errors.Newf("boom").Component("test").Category(category).Build()
}

func TestStatusFor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, http.StatusOK},
		{"analysis not found", fmt.Errorf("get: %w", repository.ErrAnalysisNotFound), http.StatusNotFound},
		{"workplace not found", repository.ErrWorkplaceNotFound, http.StatusNotFound},
		{"model not found", repository.ErrModelNotFound, http.StatusNotFound},
		{"duplicate", repository.ErrDuplicateKey, http.StatusConflict},
		{"invalid input", repository.ErrInvalidInput, http.StatusBadRequest},
		{"validation", categorized(errors.CategoryValidation), http.StatusBadRequest},
		{"image decode", categorized(errors.CategoryImageDecode), http.StatusBadRequest},
		{"privacy", categorized(errors.CategoryPrivacyPolicy), http.StatusForbidden},
		{"not found category", categorized(errors.CategoryNotFound), http.StatusNotFound},
		{"conflict", categorized(errors.CategoryConflict), http.StatusConflict},
		{"database", categorized(errors.CategoryDatabase), http.StatusInternalServerError},
		{"model load", categorized(errors.CategoryModelLoad), http.StatusInternalServerError},
		{"plain", errors.NewStd("disk on fire"), http.StatusInternalServerError},
		{
			"sentinel wins over category",
			errors.New(repository.ErrWorkplaceNotFound).Category(errors.CategoryDatabase).Build(),
			http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, StatusFor(tt.err))
		})
	}
}

func TestCreateStatusForDuplicate(t *testing.T) {
	t.Parallel()

	assert.Equal(t, http.StatusBadRequest, createStatusFor(repository.ErrDuplicateKey))
	assert.Equal(t, http.StatusBadRequest, createStatusFor(categorized(errors.CategoryConflict)))
	assert.Equal(t, http.StatusInternalServerError, createStatusFor(categorized(errors.CategoryDatabase)))
}

func TestNewErrorResponse(t *testing.T) {
	t.Parallel()

	resp := NewErrorResponse(nil, "Invalid upload", http.StatusBadRequest)
	assert.Equal(t, "Invalid upload", resp.Error)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Len(t, resp.CorrelationID, 8)

	resp = NewErrorResponse(errors.NewStd("bad"), "Invalid upload", http.StatusBadRequest)
	assert.Equal(t, "bad", resp.Error)
	assert.NotEqual(t, resp.CorrelationID, NewErrorResponse(nil, "x", 400).CorrelationID)
}

func TestValidateMediaPath(t *testing.T) {
	t.Parallel()
	c := &Controller{}
	base := t.TempDir()

	path, err := c.validateMediaPath(base, "inspect_20250101_120000_abcd1234.jpg")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(base, "inspect_20250101_120000_abcd1234.jpg"), path)

	for _, name := range []string{"", "..", "../secret.jpg", "a/b.jpg", "name with space.jpg", "..hidden"} {
		_, err := c.validateMediaPath(base, name)
		assert.Error(t, err, name)
	}

	_, err = c.validateMediaPath("", "ok.jpg")
	assert.Error(t, err)
}
