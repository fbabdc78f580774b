package review

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Timvanhoudt/VirtualTeamLeader/internal/datastore"
	"github.com/Timvanhoudt/VirtualTeamLeader/internal/datastore/entities"
	"github.com/Timvanhoudt/VirtualTeamLeader/internal/datastore/repository"
	"github.com/Timvanhoudt/VirtualTeamLeader/internal/logger"
)

func setupStore(t *testing.T) *repository.Store {
	t.Helper()
	mgr, err := datastore.NewSQLiteManager(":memory:", nil, logger.NewNopLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = mgr.Close() })
	require.NoError(t, mgr.Initialize(context.Background()))
	return repository.NewStore(mgr.DB())
}

func ptr[T any](v T) *T { return &v }

// writeImage creates a small placeholder file and returns its path.
func writeImage(t *testing.T, dir, name string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("jpeg:"+name), 0o644))
	return path
}

func createAnalysis(t *testing.T, store *repository.Store, label string, confidence float64, imagePath string) *entities.Analysis {
	t.Helper()
	status := entities.StatusNOK
	if label == "ok" {
		status = entities.StatusOK
	}
	a := &entities.Analysis{
		Timestamp:      time.Now(),
		PredictedLabel: label,
		Confidence:     confidence,
		Status:         status,
		ModelVersion:   "v1.0",
	}
	if imagePath != "" {
		a.ImagePath = ptr(imagePath)
	}
	require.NoError(t, store.Analyses.Create(context.Background(), a))
	return a
}

type fakeCorrections struct {
	candidates, others int
}

func (f *fakeCorrections) RecordCorrection(candidate bool) {
	if candidate {
		f.candidates++
		return
	}
	f.others++
}
