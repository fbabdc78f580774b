package inference

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Timvanhoudt/VirtualTeamLeader/internal/conf"
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

func TestDefaultModelRef(t *testing.T) {
	t.Parallel()

	ref := DefaultModelRef(&conf.ModelSettings{Path: "models/default.tflite", Version: "v1.0"})
	assert.Equal(t, entities.ModelTypeClassification, ref.Type)
	assert.Equal(t, SchemeSevenClass, ref.Scheme)

	det := DefaultModelRef(&conf.ModelSettings{Path: "models/det.tflite", Type: "detection"})
	assert.Equal(t, SchemeEightClass, det.Scheme)
}

func TestSelector(t *testing.T) {
	t.Parallel()

	store := setupStore(t)
	ctx := context.Background()
	fallback := ModelRef{Type: entities.ModelTypeClassification, Path: "models/default.tflite", Version: "v1.0", Scheme: SchemeSevenClass}
	sel := NewSelector(store.Models, store.Workplaces, fallback)

	t.Run("no workplace uses default", func(t *testing.T) {
		ref, err := sel.Select(ctx, nil)
		require.NoError(t, err)
		assert.Equal(t, fallback, ref)
	})

	t.Run("unknown workplace falls back", func(t *testing.T) {
		ref, err := sel.Select(ctx, ptr(uint(999)))
		require.NoError(t, err)
		assert.Equal(t, fallback, ref)
	})

	w := &entities.Workplace{Name: "Werkbank A", Active: true}
	require.NoError(t, store.Workplaces.Create(ctx, w))

	t.Run("workplace without model uses default", func(t *testing.T) {
		ref, err := sel.Select(ctx, &w.ID)
		require.NoError(t, err)
		assert.Equal(t, fallback, ref)
	})

	m := &entities.Model{
		WorkplaceID: w.ID,
		Version:     "v2.0",
		ModelPath:   "models/workplace_1/model_v2.0.tflite",
		ModelType:   entities.ModelTypeDetection,
		Scheme:      string(SchemeEightClass),
		Config:      ptr(`{"names":["kunstofhamer","schaar","sleutel"]}`),
	}
	require.NoError(t, store.Models.Create(ctx, m))
	_, err := store.Models.Activate(ctx, m.ID)
	require.NoError(t, err)

	t.Run("active model wins", func(t *testing.T) {
		ref, err := sel.Select(ctx, &w.ID)
		require.NoError(t, err)
		assert.Equal(t, entities.ModelTypeDetection, ref.Type)
		assert.Equal(t, m.ModelPath, ref.Path)
		assert.Equal(t, "v2.0", ref.Version)
		assert.Equal(t, SchemeEightClass, ref.Scheme)
		assert.Equal(t, []string{"kunstofhamer", "schaar", "sleutel"}, ref.Labels)
	})
}

func TestSelectorLegacyWorkplacePath(t *testing.T) {
	t.Parallel()

	store := setupStore(t)
	ctx := context.Background()
	sel := NewSelector(store.Models, store.Workplaces, ModelRef{Path: "default.tflite", Version: "v1.0"})

	w := &entities.Workplace{
		Name:            "Werkbank B",
		Active:          true,
		ActiveModelType: ptr("detection"),
		ActiveModelPath: ptr("models/workplace_2/model_v3.0.tflite"),
	}
	require.NoError(t, store.Workplaces.Create(ctx, w))

	ref, err := sel.Select(ctx, &w.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.ModelTypeDetection, ref.Type)
	assert.Equal(t, "v3.0", ref.Version)
	assert.Equal(t, SchemeEightClass, ref.Scheme)
}
