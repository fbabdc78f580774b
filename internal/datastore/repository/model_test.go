package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Timvanhoudt/VirtualTeamLeader/internal/datastore/entities"
)

func TestModelRepository_ActivateArchivesSiblings(t *testing.T) {
	t.Parallel()
	store := NewStore(setupTestDB(t))
	ctx := context.Background()

	w := newWorkplace("Werkbank 1")
	require.NoError(t, store.Workplaces.Create(ctx, w))
	other := newWorkplace("Werkbank 2")
	require.NoError(t, store.Workplaces.Create(ctx, other))

	v1 := &entities.Model{WorkplaceID: w.ID, Version: "v1.0", ModelPath: "models/workplace_1/model_v1.0.tflite"}
	v2 := &entities.Model{
		WorkplaceID: w.ID, Version: "v2.0", ModelPath: "models/workplace_1/model_v2.0.tflite",
		ModelType: entities.ModelTypeDetection, Scheme: "eight_class",
	}
	foreign := &entities.Model{WorkplaceID: other.ID, Version: "v1.0", ModelPath: "models/workplace_2/model_v1.0.tflite"}
	for _, m := range []*entities.Model{v1, v2, foreign} {
		require.NoError(t, store.Models.Create(ctx, m))
	}

	_, err := store.Models.Activate(ctx, v1.ID)
	require.NoError(t, err)
	_, err = store.Models.Activate(ctx, foreign.ID)
	require.NoError(t, err)

	activated, err := store.Models.Activate(ctx, v2.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.ModelStatusActive, activated.Status)

	got, err := store.Models.GetByID(ctx, v1.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.ModelStatusArchived, got.Status)

	active, err := store.Models.Active(ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, v2.ID, active.ID)

	// Other workplaces are untouched
	active, err = store.Models.Active(ctx, other.ID)
	require.NoError(t, err)
	assert.Equal(t, foreign.ID, active.ID)

	wp, err := store.Workplaces.GetByID(ctx, w.ID)
	require.NoError(t, err)
	require.NotNil(t, wp.ActiveModelPath)
	assert.Equal(t, v2.ModelPath, *wp.ActiveModelPath)
	assert.Equal(t, "detection", *wp.ActiveModelType)

	activeList, err := store.Models.List(ctx, w.ID, entities.ModelStatusActive)
	require.NoError(t, err)
	assert.Len(t, activeList, 1)

	count, err := store.Models.Count(ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	_, err = store.Models.Activate(ctx, 999)
	assert.ErrorIs(t, err, ErrModelNotFound)
}

func TestModelRepository_ActiveNone(t *testing.T) {
	t.Parallel()
	repo := NewModelRepository(setupTestDB(t))

	_, err := repo.Active(context.Background(), 1)
	assert.ErrorIs(t, err, ErrModelNotFound)

	err = repo.Create(context.Background(), &entities.Model{WorkplaceID: 1})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestTrainingImageRepository_Lifecycle(t *testing.T) {
	t.Parallel()
	store := NewStore(setupTestDB(t))
	ctx := context.Background()

	w := newWorkplace("Werkbank 1")
	require.NoError(t, store.Workplaces.Create(ctx, w))

	img := &entities.TrainingImage{WorkplaceID: w.ID, Label: "ok", ImagePath: "data/training_images/a.jpg"}
	require.NoError(t, store.TrainingImages.Create(ctx, img))
	assert.Equal(t, entities.SourceManualUpload, img.Source)

	updated, err := store.TrainingImages.Update(ctx, img.ID, TrainingImageUpdate{Label: ptr("nok_hamer_weg"), ClassID: ptr(2), Validated: ptr(true)})
	require.NoError(t, err)
	assert.Equal(t, "nok_hamer_weg", updated.Label)
	assert.Equal(t, 2, *updated.ClassID)
	assert.True(t, updated.Validated)

	validated, err := store.TrainingImages.List(ctx, w.ID, true)
	require.NoError(t, err)
	assert.Len(t, validated, 1)

	require.NoError(t, store.TrainingImages.Delete(ctx, img.ID))
	_, err = store.TrainingImages.GetByID(ctx, img.ID)
	assert.ErrorIs(t, err, ErrTrainingImageNotFound)
	assert.ErrorIs(t, store.TrainingImages.Delete(ctx, img.ID), ErrTrainingImageNotFound)
}

func TestDatasetExportRepository_Distribution(t *testing.T) {
	t.Parallel()
	store := NewStore(setupTestDB(t))
	repo := store.DatasetExports
	ctx := context.Background()

	w := newWorkplace("Werkbank 1")
	require.NoError(t, store.Workplaces.Create(ctx, w))

	e := &entities.DatasetExport{WorkplaceID: w.ID, ExportPath: "data/exports/dataset_x.zip", ImageCount: 3}
	e.SetDistribution(map[string]int{"ok": 2, "nok_hamer_weg": 1})
	require.NoError(t, repo.Create(ctx, e))

	got, err := repo.GetByID(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"ok": 2, "nok_hamer_weg": 1}, got.Distribution())
	assert.Equal(t, "admin", got.ExportedBy)

	_, err = repo.GetByID(ctx, 99)
	assert.ErrorIs(t, err, ErrDatasetExportNotFound)
}
