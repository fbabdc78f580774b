package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/Timvanhoudt/VirtualTeamLeader/internal/datastore"
	"github.com/Timvanhoudt/VirtualTeamLeader/internal/datastore/entities"
	"github.com/Timvanhoudt/VirtualTeamLeader/internal/logger"
)

// setupTestDB returns a migrated private in-memory database.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	mgr, err := datastore.NewSQLiteManager(":memory:", nil, logger.NewNopLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = mgr.Close() })
	require.NoError(t, mgr.Initialize(context.Background()))
	return mgr.DB()
}

func ptr[T any](v T) *T { return &v }

type analysisOpt func(*entities.Analysis)

func withCreated(ts time.Time) analysisOpt {
	return func(a *entities.Analysis) {
		a.Timestamp = ts
		a.CreatedAt = ts
	}
}

func withCorrection(label string, candidate bool) analysisOpt {
	return func(a *entities.Analysis) {
		a.CorrectedLabel = ptr(label)
		a.CorrectedClass = ptr(0)
		a.TrainingCandidate = candidate
	}
}

func withWorkplace(id uint) analysisOpt {
	return func(a *entities.Analysis) { a.WorkplaceID = ptr(id) }
}

func createAnalysis(t *testing.T, repo AnalysisRepository, label string, confidence float64, opts ...analysisOpt) *entities.Analysis {
	t.Helper()
	status := entities.StatusNOK
	if label == "ok" {
		status = entities.StatusOK
	}
	a := &entities.Analysis{
		PredictedLabel: label,
		Confidence:     confidence,
		Status:         status,
		ImagePath:      ptr("uploads/inspect_" + label + ".jpg"),
		ModelVersion:   "v1.0",
	}
	for _, opt := range opts {
		opt(a)
	}
	require.NoError(t, repo.Create(context.Background(), a))
	return a
}
