package inspection

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Timvanhoudt/VirtualTeamLeader/internal/datastore"
	"github.com/Timvanhoudt/VirtualTeamLeader/internal/datastore/entities"
	"github.com/Timvanhoudt/VirtualTeamLeader/internal/datastore/repository"
	"github.com/Timvanhoudt/VirtualTeamLeader/internal/errors"
	"github.com/Timvanhoudt/VirtualTeamLeader/internal/inference"
	"github.com/Timvanhoudt/VirtualTeamLeader/internal/logger"
	"github.com/Timvanhoudt/VirtualTeamLeader/internal/notification"
	"github.com/Timvanhoudt/VirtualTeamLeader/internal/privacy"
	"github.com/Timvanhoudt/VirtualTeamLeader/internal/progress"
)

type fakeInferrer struct {
	classID    int
	confidence float64

	mu         sync.Mutex
	thresholds []float64
	regions    []*entities.Region
}

func (f *fakeInferrer) Infer(_ context.Context, _ image.Image, threshold float64, opts ...inference.InferOption) (*inference.Verdict, error) {
	var o inference.InferOptions
	for _, fn := range opts {
		fn(&o)
	}
	f.mu.Lock()
	f.thresholds = append(f.thresholds, threshold)
	f.regions = append(f.regions, o.Region)
	f.mu.Unlock()

	info, err := f.Scheme().Map(f.classID)
	if err != nil {
		return nil, err
	}
	return &inference.Verdict{
		ClassID:    f.classID,
		Confidence: f.confidence,
		Class:      info,
		Scheme:     inference.SchemeSevenClass,
		ModelType:  entities.ModelTypeClassification,
	}, nil
}

func (f *fakeInferrer) Type() entities.ModelType { return entities.ModelTypeClassification }

func (f *fakeInferrer) Scheme() inference.ClassificationScheme {
	return inference.MustScheme(inference.SchemeSevenClass)
}

func (f *fakeInferrer) Close() error { return nil }

type staticModels struct {
	inf inference.Inferrer
	err error
}

func (s staticModels) Get(context.Context, inference.ModelRef) (inference.Inferrer, error) {
	return s.inf, s.err
}

type fakeDetector struct {
	faces []image.Rectangle
	err   error
}

func (f fakeDetector) DetectFaces(image.Image) ([]image.Rectangle, error) {
	return f.faces, f.err
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []notification.InspectionEvent
}

func (r *recordingPublisher) Notify(e notification.InspectionEvent) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return true
}

type countingRecorder struct {
	nopRecorder
	outcomes      map[string]int
	rejected      int
	storeFailures int
	loads         map[string]int
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{outcomes: map[string]int{}, loads: map[string]int{}}
}

func (c *countingRecorder) RecordInspection(status, outcome string) { c.outcomes[status+"/"+outcome]++ }
func (c *countingRecorder) RecordModelLoad(modelType, status string) { c.loads[modelType+"/"+status]++ }
func (c *countingRecorder) IncFacesRejected()                        { c.rejected++ }
func (c *countingRecorder) IncStoreFailures()                        { c.storeFailures++ }

type failingAnalyses struct {
	repository.AnalysisRepository
}

func (failingAnalyses) Create(context.Context, *entities.Analysis) error {
	return errors.NewStd("database is locked")
}

func setupStore(t *testing.T) *repository.Store {
	t.Helper()
	mgr, err := datastore.NewSQLiteManager(":memory:", nil, logger.NewNopLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = mgr.Close() })
	require.NoError(t, mgr.Initialize(context.Background()))
	return repository.NewStore(mgr.DB())
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 32, 24))
	for y := 0; y < 24; y++ {
		for x := 0; x < 32; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 8), G: uint8(y * 10), B: 90, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func ptr[T any](v T) *T { return &v }

type fixture struct {
	store     *repository.Store
	inferrer  *fakeInferrer
	publisher *recordingPublisher
	recorder  *countingRecorder
	tracker   *progress.Tracker
	uploads   string
	deps      Deps
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := setupStore(t)
	f := &fixture{
		store:     store,
		inferrer:  &fakeInferrer{classID: 2, confidence: 0.40},
		publisher: &recordingPublisher{},
		recorder:  newCountingRecorder(),
		tracker:   progress.NewTracker(0, 0),
		uploads:   filepath.Join(t.TempDir(), "uploads"),
	}
	fallback := inference.ModelRef{
		Type:    entities.ModelTypeClassification,
		Path:    "/models/default.tflite",
		Version: "v1.0",
		Scheme:  inference.SchemeSevenClass,
	}
	f.deps = Deps{
		Selector:   inference.NewSelector(store.Models, store.Workplaces, fallback),
		Models:     staticModels{inf: f.inferrer},
		Privacy:    privacy.NewFilter(fakeDetector{}, privacy.Options{}, logger.NewNopLogger()),
		Analyses:   store.Analyses,
		Workplaces: store.Workplaces,
		Tracker:    f.tracker,
		Notifier:   f.publisher,
		Metrics:    f.recorder,
	}
	return f
}

func (f *fixture) pipeline() *Pipeline {
	return NewPipeline(f.deps, Config{UploadsDir: f.uploads, ConfidenceThreshold: 0.25})
}

func TestRunStoresVerdict(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	res := f.pipeline().Run(ctx, Request{
		Image:        pngBytes(t),
		DeviceID:     "tablet-3",
		SessionToken: "tok-1",
	})

	ok, isOk := res.(*Ok)
	require.True(t, isOk, "expected Ok, got %T", res)
	assert.True(t, ok.Stored())
	assert.NotZero(t, ok.AnalysisID)
	assert.Equal(t, "v1.0", ok.Verdict.ModelVersion)
	assert.NotEmpty(t, ok.ImageJPEG)
	require.NotEmpty(t, ok.ImageName)
	assert.Regexp(t, `^inspect_\d{8}_\d{6}_[0-9a-f]{8}\.jpg$`, ok.ImageName)

	suggestions := ok.Verdict.Suggestions()
	require.Len(t, suggestions, 1)
	assert.Equal(t, inference.ItemHamer, suggestions[0].Item)

	stored, err := f.store.Analyses.GetByID(ctx, ok.AnalysisID)
	require.NoError(t, err)
	assert.Equal(t, entities.StatusNOK, stored.Status)
	assert.Equal(t, 2, stored.PredictedClass)
	assert.Equal(t, "nok_hamer_weg", stored.PredictedLabel)
	assert.InDelta(t, 0.40, stored.Confidence, 1e-9)
	assert.Equal(t, []string{"hamer"}, stored.MissingItemList())
	assert.Equal(t, "tablet-3", stored.DeviceID)
	require.NotNil(t, stored.ImagePath)
	assert.FileExists(t, *stored.ImagePath)

	p, found := f.tracker.Get("tok-1")
	require.True(t, found)
	assert.True(t, p.Done)
	assert.Equal(t, progress.StageDone, p.Stage)
	assert.Equal(t, 100, p.Percent)

	require.Len(t, f.publisher.events, 1)
	event := f.publisher.events[0]
	assert.Equal(t, ok.AnalysisID, event.AnalysisID)
	assert.True(t, event.IsNOK())
	assert.True(t, event.Stored)

	assert.Equal(t, 1, f.recorder.outcomes["NOK/ok"])
	assert.Equal(t, 1, f.recorder.loads["classification/loaded"])
}

func TestRunRejectsFaces(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.deps.Privacy = privacy.NewFilter(fakeDetector{faces: []image.Rectangle{image.Rect(2, 2, 10, 10)}},
		privacy.Options{}, logger.NewNopLogger())
	ctx := context.Background()

	res := f.pipeline().Run(ctx, Request{Image: pngBytes(t), SessionToken: "tok-2"})

	rejected, isRejected := res.(*Rejected)
	require.True(t, isRejected, "expected Rejected, got %T", res)
	assert.Equal(t, 1, rejected.FaceCount)
	assert.Contains(t, rejected.Reason, "remove people")

	count, err := f.store.Analyses.Count(ctx, repository.AnalysisFilter{})
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.NoDirExists(t, f.uploads)
	assert.Empty(t, f.inferrer.thresholds)
	assert.Empty(t, f.publisher.events)
	assert.Equal(t, 1, f.recorder.rejected)

	p, found := f.tracker.Get("tok-2")
	require.True(t, found)
	assert.Equal(t, progress.StageFailed, p.Stage)
	assert.Equal(t, rejected.Reason, p.Message)
}

func TestRunDetectorErrorCountsAsNoFaces(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.deps.Privacy = privacy.NewFilter(fakeDetector{err: errors.NewStd("cascade not loaded")},
		privacy.Options{}, logger.NewNopLogger())

	res := f.pipeline().Run(context.Background(), Request{Image: pngBytes(t)})

	ok, isOk := res.(*Ok)
	require.True(t, isOk, "expected Ok, got %T", res)
	assert.Zero(t, ok.FacesFound)
	assert.True(t, ok.Stored())
}

func TestRunInvalidImage(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	for name, data := range map[string][]byte{
		"empty":   nil,
		"corrupt": []byte("not an image"),
	} {
		t.Run(name, func(t *testing.T) {
			res := f.pipeline().Run(ctx, Request{Image: data})
			failed, isFailed := res.(*Failed)
			require.True(t, isFailed, "expected Failed, got %T", res)
			assert.True(t,
				errors.IsCategory(failed.Err, errors.CategoryValidation) ||
					errors.IsCategory(failed.Err, errors.CategoryImageDecode))
		})
	}

	count, err := f.store.Analyses.Count(ctx, repository.AnalysisFilter{})
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestRunRejectsThresholdOutOfRange(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	res := f.pipeline().Run(context.Background(), Request{Image: pngBytes(t), ConfidenceThreshold: ptr(1.5)})

	failed, isFailed := res.(*Failed)
	require.True(t, isFailed)
	assert.True(t, errors.IsCategory(failed.Err, errors.CategoryValidation))
}

func TestRunServesVerdictWhenStoreFails(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.deps.Analyses = failingAnalyses{AnalysisRepository: f.store.Analyses}

	res := f.pipeline().Run(context.Background(), Request{Image: pngBytes(t)})

	ok, isOk := res.(*Ok)
	require.True(t, isOk, "expected Ok, got %T", res)
	assert.False(t, ok.Stored())
	assert.Zero(t, ok.AnalysisID)
	require.Error(t, ok.StoreErr)
	assert.True(t, errors.IsCategory(ok.StoreErr, errors.CategoryDatabase))
	assert.Equal(t, "nok_hamer_weg", ok.Verdict.Class.Label)
	assert.Equal(t, 1, f.recorder.storeFailures)

	require.Len(t, f.publisher.events, 1)
	assert.False(t, f.publisher.events[0].Stored)
}

func TestRunUsesWorkplaceSettings(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	w := &entities.Workplace{Name: "Werkbank 1", Active: true, ConfidenceThreshold: 0.4}
	w.SetItems([]string{"hamer", "schaar", "sleutel"})
	w.SetRegion(&entities.Region{X1: 0.1, Y1: 0.1, X2: 0.9, Y2: 0.9})
	require.NoError(t, f.store.Workplaces.Create(ctx, w))

	p := f.pipeline()
	res := p.Run(ctx, Request{Image: pngBytes(t), WorkplaceID: &w.ID})
	ok, isOk := res.(*Ok)
	require.True(t, isOk, "expected Ok, got %T", res)
	require.NotNil(t, ok.Workplace)
	assert.Equal(t, "Werkbank 1", f.publisher.events[0].Workplace)

	res = p.Run(ctx, Request{Image: pngBytes(t), WorkplaceID: &w.ID, ConfidenceThreshold: ptr(0.6)})
	require.IsType(t, &Ok{}, res)

	require.Len(t, f.inferrer.thresholds, 2)
	assert.InDelta(t, 0.4, f.inferrer.thresholds[0], 1e-9)
	assert.InDelta(t, 0.6, f.inferrer.thresholds[1], 1e-9)
	require.NotNil(t, f.inferrer.regions[0])
	assert.InDelta(t, 0.9, f.inferrer.regions[0].X2, 1e-9)

	stored, err := f.store.Analyses.GetByID(ctx, ok.AnalysisID)
	require.NoError(t, err)
	require.NotNil(t, stored.WorkplaceID)
	assert.Equal(t, w.ID, *stored.WorkplaceID)
}

func TestRunUnknownWorkplaceUsesDefaults(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	res := f.pipeline().Run(ctx, Request{Image: pngBytes(t), WorkplaceID: ptr(uint(999))})

	ok, isOk := res.(*Ok)
	require.True(t, isOk, "expected Ok, got %T", res)
	assert.Nil(t, ok.Workplace)
	assert.Equal(t, "v1.0", ok.Verdict.ModelVersion)
	require.Len(t, f.inferrer.thresholds, 1)
	assert.InDelta(t, 0.25, f.inferrer.thresholds[0], 1e-9)
	assert.Nil(t, f.inferrer.regions[0])

	require.True(t, ok.Stored())
	stored, err := f.store.Analyses.GetByID(ctx, ok.AnalysisID)
	require.NoError(t, err)
	assert.Nil(t, stored.WorkplaceID, "records never point at a missing workplace")
}

func TestRunModelLoadFailure(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.deps.Models = staticModels{err: errors.NewStd("model file not available")}

	res := f.pipeline().Run(context.Background(), Request{Image: pngBytes(t)})

	failed, isFailed := res.(*Failed)
	require.True(t, isFailed, "expected Failed, got %T", res)
	assert.True(t, errors.IsCategory(failed.Err, errors.CategoryModelLoad))
	assert.Equal(t, 1, f.recorder.loads["classification/failed"])
}

func TestRunFallsBackToDummyModel(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	registry := inference.NewRegistry(inference.RegistryOptions{DummyFallback: true, DummyVersion: "dummy"})
	t.Cleanup(func() { _ = registry.Close() })
	f.deps.Models = registry

	res := f.pipeline().Run(context.Background(), Request{Image: pngBytes(t)})

	ok, isOk := res.(*Ok)
	require.True(t, isOk, "expected Ok, got %T", res)
	assert.Equal(t, entities.ModelTypeDummy, ok.Verdict.ModelType)
	assert.Equal(t, inference.DummyClassID, ok.Verdict.ClassID)
	assert.InDelta(t, inference.DummyConfidence, ok.Verdict.Confidence, 1e-9)
	assert.Equal(t, 1, f.recorder.loads["dummy/fallback"])
}

func TestRunWithoutUploadsDirStillStores(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	p := NewPipeline(f.deps, Config{})

	res := p.Run(context.Background(), Request{Image: pngBytes(t)})

	ok, isOk := res.(*Ok)
	require.True(t, isOk, "expected Ok, got %T", res)
	assert.Empty(t, ok.ImageName)

	stored, err := f.store.Analyses.GetByID(context.Background(), ok.AnalysisID)
	require.NoError(t, err)
	assert.Nil(t, stored.ImagePath)
}

func TestSavedImageIsReadable(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	res := f.pipeline().Run(context.Background(), Request{Image: pngBytes(t)})
	ok := res.(*Ok)

	data, err := os.ReadFile(filepath.Join(f.uploads, ok.ImageName))
	require.NoError(t, err)
	assert.Equal(t, ok.ImageJPEG, data)
}
