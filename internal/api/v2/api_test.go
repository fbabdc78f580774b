package api

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mw "github.com/Timvanhoudt/VirtualTeamLeader/internal/api/middleware"
	"github.com/Timvanhoudt/VirtualTeamLeader/internal/conf"
	"github.com/Timvanhoudt/VirtualTeamLeader/internal/datastore"
	"github.com/Timvanhoudt/VirtualTeamLeader/internal/datastore/entities"
	"github.com/Timvanhoudt/VirtualTeamLeader/internal/datastore/repository"
	"github.com/Timvanhoudt/VirtualTeamLeader/internal/inference"
	"github.com/Timvanhoudt/VirtualTeamLeader/internal/inspection"
	"github.com/Timvanhoudt/VirtualTeamLeader/internal/logger"
	"github.com/Timvanhoudt/VirtualTeamLeader/internal/privacy"
	"github.com/Timvanhoudt/VirtualTeamLeader/internal/progress"
	"github.com/Timvanhoudt/VirtualTeamLeader/internal/review"
	"github.com/Timvanhoudt/VirtualTeamLeader/internal/workplace"
)

type fakeInferrer struct {
	classID    int
	confidence float64
}

func (f *fakeInferrer) Infer(context.Context, image.Image, float64, ...inference.InferOption) (*inference.Verdict, error) {
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
}

func (s staticModels) Get(context.Context, inference.ModelRef) (inference.Inferrer, error) {
	return s.inf, nil
}

func (s staticModels) Loaded() []inference.LoadedModel {
	return []inference.LoadedModel{{Path: "/models/default.tflite", Type: entities.ModelTypeClassification,
		Scheme: inference.SchemeSevenClass, Arity: 7}}
}

type fakeDetector struct {
	faces []image.Rectangle
}

func (f fakeDetector) DetectFaces(image.Image) ([]image.Rectangle, error) {
	return f.faces, nil
}

type testEnv struct {
	e        *echo.Echo
	store    *repository.Store
	settings *conf.Settings
	tracker  *progress.Tracker
}

func newTestEnv(t *testing.T, detector privacy.FaceDetector) *testEnv {
	t.Helper()

	mgr, err := datastore.NewSQLiteManager(":memory:", nil, logger.NewNopLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = mgr.Close() })
	require.NoError(t, mgr.Initialize(context.Background()))
	store := repository.NewStore(mgr.DB())

	settings := &conf.Settings{}
	settings.Main.DataDir = t.TempDir()
	settings.Inspection.UploadsDir = "uploads"
	settings.Inspection.ConfidenceThreshold = 0.25
	settings.Training.Target = 200
	settings.Training.ExportDir = "training_exports"
	settings.Training.DatasetExportDir = "dataset_exports"
	settings.Training.TrainingImagesDir = "training_images"
	settings.Training.ReferencePhotosDir = "reference_photos"
	settings.Training.ModelsDir = "models"
	settings.Training.TrainSplit = 0.8

	fallback := inference.ModelRef{
		Type:    entities.ModelTypeClassification,
		Path:    "/models/default.tflite",
		Version: "v1.0",
		Scheme:  inference.SchemeSevenClass,
	}
	selector := inference.NewSelector(store.Models, store.Workplaces, fallback)
	models := staticModels{inf: &fakeInferrer{classID: 2, confidence: 0.4}}
	filter := privacy.NewFilter(detector, privacy.Options{}, logger.NewNopLogger())
	tracker := progress.NewTracker(0, 0)

	pipeline := inspection.NewPipeline(inspection.Deps{
		Selector:   selector,
		Models:     models,
		Privacy:    filter,
		Analyses:   store.Analyses,
		Workplaces: store.Workplaces,
		Tracker:    tracker,
	}, inspection.ConfigFromSettings(settings))

	e := echo.New()
	New(e, settings, Services{
		Store:        store,
		Database:     mgr,
		Pipeline:     pipeline,
		Privacy:      filter,
		Tracker:      tracker,
		Selector:     selector,
		Models:       models,
		DefaultModel: fallback,
		Review:       review.NewService(store.Analyses, settings.ResolvePath(settings.Training.ExportDir), settings.Training.Target, nil),
		Datasets:     review.NewDatasetExporter(store, settings.ResolvePath(settings.Training.DatasetExportDir), settings.Training.TrainSplit),
		History:      review.NewHistoryExporter(store.Analyses),
		Workplaces: workplace.NewService(store, nil, workplace.Paths{
			ReferencePhotos: settings.ResolvePath(settings.Training.ReferencePhotosDir),
			TrainingImages:  settings.ResolvePath(settings.Training.TrainingImagesDir),
			Models:          settings.ResolvePath(settings.Training.ModelsDir),
		}),
	}, WithLogger(logger.NewNopLogger()))

	return &testEnv{e: e, store: store, settings: settings, tracker: tracker}
}

func (env *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	env.e.ServeHTTP(rec, req)
	return rec
}

func (env *testEnv) doJSON(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return env.do(req)
}

func (env *testEnv) inspect(t *testing.T, fields map[string]string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := multipartRequest(t, "/api/v2/inspect", fields, map[string][]byte{"file": pngBytes(t)})
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return env.do(req)
}

func multipartRequest(t *testing.T, path string, fields map[string]string, files map[string][]byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for name, data := range files {
		fw, err := w.CreateFormFile(name, name+".png")
		require.NoError(t, err)
		_, err = fw.Write(data)
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set(echo.HeaderContentType, w.FormDataContentType())
	return req
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

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestHealthCheck(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, nil)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/api/v2/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode[HealthResponse](t, rec)
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, "connected", resp.DatabaseStatus)
	assert.Equal(t, "sqlite", resp.DatabaseDialect)
	assert.Positive(t, resp.SchemaVersion)
	assert.True(t, resp.ModelLoaded)
}

func TestInspectStoresAndListsAnalysis(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, nil)

	rec := env.inspect(t, map[string]string{"device_id": "tablet-1"}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decode[InspectResponse](t, rec)
	assert.True(t, resp.Success)
	assert.True(t, resp.Stored)
	require.NotNil(t, resp.AnalysisID)
	assert.Equal(t, "tablet-1", resp.DeviceID)
	assert.Equal(t, entities.StatusNOK, resp.Classification.Status)
	assert.Equal(t, 2, resp.Analysis.ClassID)
	assert.Equal(t, []string{inference.ItemHamer}, resp.Analysis.MissingItems)
	require.Len(t, resp.Suggestions, 1)
	assert.Equal(t, inference.ItemHamer, resp.Suggestions[0].Item)
	assert.True(t, strings.HasPrefix(resp.Image.Base64, "data:image/jpeg;base64,"))
	require.NotEmpty(t, resp.Image.Filename)

	rec = env.do(httptest.NewRequest(http.MethodGet, "/api/v2/history?status=nok", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	history := decode[HistoryResponse](t, rec)
	require.Len(t, history.Analyses, 1)
	assert.Equal(t, *resp.AnalysisID, history.Analyses[0].ID)
	assert.Equal(t, int64(1), history.Statistics.NOKCount)
	assert.Equal(t, Pagination{Limit: defaultHistoryLimit, Count: 1, Total: 1}, history.Pagination)

	rec = env.do(httptest.NewRequest(http.MethodGet, "/api/v2/uploads/"+resp.Image.Filename, nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestInspectRejectsFaces(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, fakeDetector{faces: []image.Rectangle{image.Rect(2, 2, 10, 10)}})

	rec := env.inspect(t, nil, map[string]string{mw.HeaderProgressSession: "tok-faces"})
	require.Equal(t, http.StatusForbidden, rec.Code)

	resp := decode[PrivacyRejection](t, rec)
	assert.Equal(t, 1, resp.FacesDetected)
	assert.Equal(t, http.StatusForbidden, resp.Code)
	assert.Contains(t, resp.Message, "remove people from the frame")

	count, err := env.store.Analyses.Count(context.Background(), repository.AnalysisFilter{})
	require.NoError(t, err)
	assert.Zero(t, count)

	p, ok := env.tracker.Get("tok-faces")
	require.True(t, ok)
	assert.True(t, p.Done)
	assert.Equal(t, progress.StageFailed, p.Stage)
}

func TestInspectInputErrors(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, nil)

	t.Run("missing file", func(t *testing.T) {
		req := multipartRequest(t, "/api/v2/inspect", map[string]string{"device_id": "x"}, nil)
		assert.Equal(t, http.StatusBadRequest, env.do(req).Code)
	})

	t.Run("corrupt image", func(t *testing.T) {
		req := multipartRequest(t, "/api/v2/inspect", nil, map[string][]byte{"file": []byte("not an image")})
		assert.Equal(t, http.StatusBadRequest, env.do(req).Code)
	})

	t.Run("threshold out of range", func(t *testing.T) {
		rec := env.inspect(t, map[string]string{"confidence_threshold": "1.5"}, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestInspectUnknownWorkplaceUsesDefaultModel(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, nil)

	rec := env.inspect(t, map[string]string{"workplace_id": "999"}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode[InspectResponse](t, rec)
	assert.True(t, resp.Stored)
	assert.Nil(t, resp.WorkplaceID)
	require.NotNil(t, resp.AnalysisID)

	stored, err := env.store.Analyses.GetByID(context.Background(), *resp.AnalysisID)
	require.NoError(t, err)
	assert.Nil(t, stored.WorkplaceID)
}

func TestProgressEndpoint(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, nil)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/api/v2/progress/unknown", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.inspect(t, nil, map[string]string{mw.HeaderProgressSession: "tok-1"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(httptest.NewRequest(http.MethodGet, "/api/v2/progress/tok-1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	p := decode[progress.Progress](t, rec)
	assert.True(t, p.Done)
	assert.Equal(t, 100, p.Percent)
}

func TestBlurPreview(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, nil)

	req := multipartRequest(t, "/api/v2/blur-preview", nil, map[string][]byte{"file": pngBytes(t)})
	rec := env.do(req)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode[BlurPreviewResponse](t, rec)
	assert.Zero(t, resp.FaceCount)
	assert.False(t, resp.HasFaces)
	assert.True(t, strings.HasPrefix(resp.BlurredImage, "data:image/jpeg;base64,"))
}

func TestCompareSameModelMatches(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, nil)

	req := multipartRequest(t, "/api/v2/compare", nil, map[string][]byte{
		"reference": pngBytes(t),
		"test":      pngBytes(t),
	})
	rec := env.do(req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decode[CompareResponse](t, rec)
	assert.True(t, resp.Match)
	assert.Empty(t, resp.Suggestions)
	assert.Equal(t, 2, resp.Test.ClassID)
}

func TestCorrectionAndDelete(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, nil)

	rec := env.inspect(t, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	id := *decode[InspectResponse](t, rec).AnalysisID
	base := "/api/v2/analyses/" + itoa(id)

	rec = env.doJSON(t, http.MethodPost, base+"/correction", review.Correction{
		CorrectedClass: 0,
		CorrectedLabel: "ok",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, id, decode[CorrectionResponse](t, rec).AnalysisID)

	a, err := env.store.Analyses.GetByID(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, a.CorrectedLabel)
	assert.Equal(t, "ok", *a.CorrectedLabel)

	rec = env.doJSON(t, http.MethodPost, base+"/correction", review.Correction{CorrectedClass: 1})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.doJSON(t, http.MethodDelete, base, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.doJSON(t, http.MethodDelete, base, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.doJSON(t, http.MethodPost, base+"/correction", review.Correction{CorrectedLabel: "ok"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.doJSON(t, http.MethodDelete, "/api/v2/analyses/abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTrainingEndpoints(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, nil)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/api/v2/training/statistics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decode[TrainingStatisticsResponse](t, rec)
	assert.Equal(t, 200, stats.Statistics.TrainingTarget)

	rec = env.do(httptest.NewRequest(http.MethodGet, "/api/v2/training/candidates", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Zero(t, decode[CandidatesResponse](t, rec).Count)

	rec = env.do(httptest.NewRequest(http.MethodGet, "/api/v2/training/candidates?confidence_threshold=abc", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.doJSON(t, http.MethodPost, "/api/v2/training/export", TrainingExportRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWorkplaceLifecycle(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, nil)

	rec := env.doJSON(t, http.MethodPost, "/api/v2/workplaces", workplace.CreateInput{
		Name:  "Werkbank 1",
		Items: []string{inference.ItemHamer, inference.ItemSchaar},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	first := decode[WorkplaceResponse](t, rec).Workplace
	require.NotNil(t, first)

	rec = env.doJSON(t, http.MethodPost, "/api/v2/workplaces", workplace.CreateInput{Name: "Werkbank 1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "duplicate name on create")

	rec = env.doJSON(t, http.MethodPost, "/api/v2/workplaces", workplace.CreateInput{Name: "Werkbank 2"})
	require.Equal(t, http.StatusCreated, rec.Code)
	second := decode[WorkplaceResponse](t, rec).Workplace

	rec = env.doJSON(t, http.MethodPut, "/api/v2/workplaces/"+itoa(second.ID), map[string]any{"name": "Werkbank 1"})
	assert.Equal(t, http.StatusConflict, rec.Code, "duplicate name on update")

	rec = env.doJSON(t, http.MethodPut, "/api/v2/workplaces/"+itoa(first.ID), map[string]any{
		"confidence_threshold": 0.4,
		"whiteboard_region":    map[string]float64{"x1": 0.1, "y1": 0.1, "x2": 0.9, "y2": 0.8},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode[WorkplaceResponse](t, rec).Workplace
	assert.InDelta(t, 0.4, updated.ConfidenceThreshold, 1e-9)
	require.NotNil(t, updated.Region())

	rec = env.doJSON(t, http.MethodPut, "/api/v2/workplaces/"+itoa(first.ID), map[string]any{"whiteboard_region": nil})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, decode[WorkplaceResponse](t, rec).Workplace.Region())

	rec = env.do(httptest.NewRequest(http.MethodGet, "/api/v2/workplaces", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, decode[WorkplacesResponse](t, rec).Count)

	rec = env.do(httptest.NewRequest(http.MethodGet, "/api/v2/workplaces/"+itoa(first.ID), nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"dataset_stats"`)

	rec = env.inspect(t, map[string]string{"workplace_id": itoa(first.ID)}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, first.ID, *decode[InspectResponse](t, rec).WorkplaceID)

	rec = env.do(httptest.NewRequest(http.MethodGet, "/api/v2/workplaces/"+itoa(first.ID)+"/models?status=bogus", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.doJSON(t, http.MethodPost, "/api/v2/models/42/activate", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.doJSON(t, http.MethodDelete, "/api/v2/workplaces/"+itoa(second.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = env.do(httptest.NewRequest(http.MethodGet, "/api/v2/workplaces/"+itoa(second.ID), nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTrainingImageUpload(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, nil)

	rec := env.doJSON(t, http.MethodPost, "/api/v2/workplaces", workplace.CreateInput{Name: "Werkbank"})
	require.Equal(t, http.StatusCreated, rec.Code)
	wid := itoa(decode[WorkplaceResponse](t, rec).Workplace.ID)

	req := multipartRequest(t, "/api/v2/workplaces/"+wid+"/training-images",
		map[string]string{"label": "ok", "class_id": "0"}, map[string][]byte{"file": pngBytes(t)})
	rec = env.do(req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	img := decode[TrainingImageResponse](t, rec).Image
	require.NotNil(t, img)

	rec = env.doJSON(t, http.MethodPut, "/api/v2/training-images/"+itoa(img.ID), map[string]any{"validated": true})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, decode[TrainingImageResponse](t, rec).Image.Validated)

	rec = env.do(httptest.NewRequest(http.MethodGet, "/api/v2/workplaces/"+wid+"/training-images?validated_only=true", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decode[TrainingImagesResponse](t, rec).Count)

	rec = env.doJSON(t, http.MethodDelete, "/api/v2/training-images/"+itoa(img.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = env.doJSON(t, http.MethodDelete, "/api/v2/training-images/"+itoa(img.ID), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHistoryExportCSV(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, nil)
	require.Equal(t, http.StatusOK, env.inspect(t, nil, nil).Code)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/api/v2/export/csv", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get(echo.HeaderContentDisposition), "analyses_export_")
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	assert.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "id,timestamp"))
}

func TestClassesAndModelInfo(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, nil)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/api/v2/classes?scheme=binary", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[ClassesResponse](t, rec).Classes, 2)

	rec = env.do(httptest.NewRequest(http.MethodGet, "/api/v2/classes", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[ClassesResponse](t, rec).Classes, 7)

	rec = env.do(httptest.NewRequest(http.MethodGet, "/api/v2/classes?scheme=nine", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(httptest.NewRequest(http.MethodGet, "/api/v2/debug/model-info", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	info := decode[ModelInfoResponse](t, rec)
	assert.True(t, info.ModelLoaded)
	assert.False(t, info.ModelExists)
	assert.Equal(t, 7, info.ExpectedClasses)
	assert.Equal(t, "nok_hamer_weg", info.ClassMapping["2"])
}

func TestServeUploadMissing(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, nil)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/api/v2/uploads/missing.jpg", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.CorrelationID, 8)
}

func itoa(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}
