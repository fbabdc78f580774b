package review

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Timvanhoudt/VirtualTeamLeader/internal/datastore/repository"
	"github.com/Timvanhoudt/VirtualTeamLeader/internal/errors"
)

func TestCorrect(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := setupStore(t)
	uploads := t.TempDir()
	rec := &fakeCorrections{}
	svc := NewService(store.Analyses, t.TempDir(), 200, rec)

	t.Run("confirmed verdict purges the image", func(t *testing.T) {
		img := writeImage(t, uploads, "inspect_ok.jpg")
		a := createAnalysis(t, store, "ok", 0.93, img)

		res, err := svc.Correct(ctx, a.ID, Correction{CorrectedClass: 0, CorrectedLabel: "ok"})
		require.NoError(t, err)
		assert.False(t, res.Decision.Candidate)
		assert.True(t, res.ImagePurged)
		assert.NoFileExists(t, img)

		got, err := store.Analyses.GetByID(ctx, a.ID)
		require.NoError(t, err)
		assert.Nil(t, got.ImagePath)
		require.NotNil(t, got.CorrectedLabel)
		assert.Equal(t, "ok", *got.CorrectedLabel)
		assert.Equal(t, "ok", got.PredictedLabel, "prediction is untouched")
		assert.Nil(t, got.Notes)
	})

	t.Run("display name confirms the stored label", func(t *testing.T) {
		img := writeImage(t, uploads, "inspect_display.jpg")
		a := createAnalysis(t, store, "ok", 0.95, img)

		res, err := svc.Correct(ctx, a.ID, Correction{CorrectedClass: 0, CorrectedLabel: "OK", ThresholdPercent: 70})
		require.NoError(t, err)
		assert.Equal(t, Decision{}, res.Decision)
		assert.True(t, res.ImagePurged)
		assert.NoFileExists(t, img)

		got, err := store.Analyses.GetByID(ctx, a.ID)
		require.NoError(t, err)
		require.NotNil(t, got.CorrectedLabel)
		assert.Equal(t, "ok", *got.CorrectedLabel, "display name is stored as the class label")
		assert.False(t, got.TrainingCandidate)
	})

	t.Run("display name of another class is incorrect", func(t *testing.T) {
		a := createAnalysis(t, store, "ok", 0.95, "")

		res, err := svc.Correct(ctx, a.ID, Correction{CorrectedClass: 2, CorrectedLabel: "NOK - Hamer weg"})
		require.NoError(t, err)
		assert.True(t, res.Decision.Incorrect)

		got, err := store.Analyses.GetByID(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, "nok_hamer_weg", *got.CorrectedLabel)
	})

	t.Run("wrong verdict keeps the image", func(t *testing.T) {
		img := writeImage(t, uploads, "inspect_wrong.jpg")
		a := createAnalysis(t, store, "ok", 0.93, img)

		res, err := svc.Correct(ctx, a.ID, Correction{CorrectedClass: 2, CorrectedLabel: "nok_hamer_weg", Notes: "hamer lag achter de kast"})
		require.NoError(t, err)
		assert.True(t, res.Decision.Incorrect)
		assert.True(t, res.Decision.Candidate)
		assert.False(t, res.ImagePurged)
		assert.FileExists(t, img)

		got, err := store.Analyses.GetByID(ctx, a.ID)
		require.NoError(t, err)
		assert.True(t, got.TrainingCandidate)
		require.NotNil(t, got.Notes)
		assert.Equal(t, "hamer lag achter de kast", *got.Notes)

		// resubmitting recomputes the same flag
		res, err = svc.Correct(ctx, a.ID, Correction{CorrectedClass: 2, CorrectedLabel: "nok_hamer_weg"})
		require.NoError(t, err)
		assert.True(t, res.Decision.Candidate)
	})

	t.Run("missing image file still clears the path", func(t *testing.T) {
		a := createAnalysis(t, store, "ok", 0.99, filepath.Join(uploads, "gone.jpg"))

		res, err := svc.Correct(ctx, a.ID, Correction{CorrectedLabel: "ok", ThresholdPercent: 50})
		require.NoError(t, err)
		assert.True(t, res.ImagePurged)
	})

	t.Run("custom threshold", func(t *testing.T) {
		a := createAnalysis(t, store, "ok", 0.85, "")

		res, err := svc.Correct(ctx, a.ID, Correction{CorrectedLabel: "ok", ThresholdPercent: 90})
		require.NoError(t, err)
		assert.True(t, res.Decision.LowConfidence)
		assert.False(t, res.ImagePurged)
	})

	t.Run("validation", func(t *testing.T) {
		_, err := svc.Correct(ctx, 1, Correction{CorrectedLabel: " "})
		assert.True(t, errors.IsCategory(err, errors.CategoryValidation))

		_, err = svc.Correct(ctx, 1, Correction{CorrectedLabel: "ok", ThresholdPercent: 120})
		assert.True(t, errors.IsCategory(err, errors.CategoryValidation))

		_, err = svc.Correct(ctx, 1, Correction{CorrectedLabel: "ok", CorrectedClass: -1})
		assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
	})

	t.Run("unknown analysis", func(t *testing.T) {
		_, err := svc.Correct(ctx, 9999, Correction{CorrectedLabel: "ok"})
		assert.ErrorIs(t, err, repository.ErrAnalysisNotFound)
	})
}

func TestCorrectRecordsMetric(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := setupStore(t)
	rec := &fakeCorrections{}
	svc := NewService(store.Analyses, t.TempDir(), 200, rec)

	a := createAnalysis(t, store, "ok", 0.9, "")
	b := createAnalysis(t, store, "ok", 0.9, "")
	_, err := svc.Correct(ctx, a.ID, Correction{CorrectedLabel: "ok"})
	require.NoError(t, err)
	_, err = svc.Correct(ctx, b.ID, Correction{CorrectedLabel: "nok_alles_weg", CorrectedClass: 1})
	require.NoError(t, err)

	assert.Equal(t, 1, rec.others)
	assert.Equal(t, 1, rec.candidates)
}

func TestExportForTraining(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := setupStore(t)
	uploads := t.TempDir()
	exportDir := t.TempDir()
	svc := NewService(store.Analyses, exportDir, 200, nil)

	wrong := createAnalysis(t, store, "ok", 0.9, writeImage(t, uploads, "inspect_1.jpg"))
	_, err := svc.Correct(ctx, wrong.ID, Correction{CorrectedClass: 3, CorrectedLabel: "nok_schaar_weg"})
	require.NoError(t, err)

	lost := createAnalysis(t, store, "ok", 0.9, filepath.Join(uploads, "inspect_lost.jpg"))
	_, err = svc.Correct(ctx, lost.ID, Correction{CorrectedClass: 2, CorrectedLabel: "nok_hamer_weg"})
	require.NoError(t, err)

	unreviewed := createAnalysis(t, store, "ok", 0.9, writeImage(t, uploads, "inspect_3.jpg"))

	candidates, err := svc.TrainingCandidates(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, candidates, 2)

	ids := []uint{wrong.ID, lost.ID, unreviewed.ID, 4242}
	res, err := svc.ExportForTraining(ctx, ids, "batch1")
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(exportDir, "batch1"), res.ExportPath)
	assert.Equal(t, 4, res.Requested)
	assert.Equal(t, 1, res.TotalExported)
	assert.Equal(t, map[string]int{"3": 1}, res.ClassDistribution)
	assert.FileExists(t, filepath.Join(exportDir, "batch1", "3", "inspect_1.jpg"))

	reasons := map[uint]string{}
	for _, s := range res.Skipped {
		reasons[s.ID] = s.Reason
	}
	assert.Equal(t, map[uint]string{lost.ID: "image missing", unreviewed.ID: "not reviewed", 4242: "not found"}, reasons)

	got, err := store.Analyses.GetByID(ctx, wrong.ID)
	require.NoError(t, err)
	assert.True(t, got.ExportedForTraining)

	got, err = store.Analyses.GetByID(ctx, unreviewed.ID)
	require.NoError(t, err)
	assert.False(t, got.ExportedForTraining, "skipped records are not marked")

	// the candidate whose image is missing stays in the queue
	candidates, err = svc.TrainingCandidates(ctx, 0)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, lost.ID, candidates[0].ID)

	// exporting again is harmless
	_, err = svc.ExportForTraining(ctx, ids, "batch1")
	require.NoError(t, err)

	stats, err := svc.TrainingStatistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.ExportedCount)
	assert.Equal(t, 200, stats.TrainingTarget)
}

func TestExportForTrainingValidation(t *testing.T) {
	t.Parallel()

	store := setupStore(t)
	svc := NewService(store.Analyses, t.TempDir(), 200, nil)
	svc.now = func() time.Time { return time.Date(2025, 5, 6, 7, 8, 9, 0, time.UTC) }

	_, err := svc.ExportForTraining(context.Background(), nil, "x")
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))

	_, err = svc.ExportForTraining(context.Background(), []uint{1}, "../escape")
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))

	res, err := svc.ExportForTraining(context.Background(), []uint{1}, "")
	require.NoError(t, err)
	assert.Equal(t, "export_20250506_070809", filepath.Base(res.ExportPath))
	_, statErr := os.Stat(res.ExportPath)
	assert.NoError(t, statErr)
}

func TestDelete(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := setupStore(t)
	svc := NewService(store.Analyses, t.TempDir(), 200, nil)

	img := writeImage(t, t.TempDir(), "inspect_delete.jpg")
	a := createAnalysis(t, store, "nok_hamer_weg", 0.6, img)

	require.NoError(t, svc.Delete(ctx, a.ID))
	assert.NoFileExists(t, img)

	_, err := store.Analyses.GetByID(ctx, a.ID)
	assert.ErrorIs(t, err, repository.ErrAnalysisNotFound)

	err = svc.Delete(ctx, a.ID)
	assert.ErrorIs(t, err, repository.ErrAnalysisNotFound)
}
