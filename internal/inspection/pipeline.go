// Package inspection runs the inspection decision pipeline: decode the photo,
// enforce the privacy policy, select and run the workplace model, store the
// verdict in the audit log and notify subscribers.
package inspection

import (
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/Timvanhoudt/VirtualTeamLeader/internal/conf"
	"github.com/Timvanhoudt/VirtualTeamLeader/internal/datastore/entities"
	"github.com/Timvanhoudt/VirtualTeamLeader/internal/datastore/repository"
	"github.com/Timvanhoudt/VirtualTeamLeader/internal/errors"
	"github.com/Timvanhoudt/VirtualTeamLeader/internal/imaging"
	"github.com/Timvanhoudt/VirtualTeamLeader/internal/inference"
	"github.com/Timvanhoudt/VirtualTeamLeader/internal/logger"
	"github.com/Timvanhoudt/VirtualTeamLeader/internal/notification"
	"github.com/Timvanhoudt/VirtualTeamLeader/internal/privacy"
	"github.com/Timvanhoudt/VirtualTeamLeader/internal/progress"
)

// DefaultConfidenceThreshold is used when neither the request, the workplace
// nor the settings provide a detector threshold.
const DefaultConfidenceThreshold = 0.25

// ModelSelector resolves the model of a workplace.
type ModelSelector interface {
	Select(ctx context.Context, workplaceID *uint) (inference.ModelRef, error)
}

// ModelProvider hands out loaded inferrers.
type ModelProvider interface {
	Get(ctx context.Context, ref inference.ModelRef) (inference.Inferrer, error)
}

// EventPublisher receives finished inspections. Notify must not block.
type EventPublisher interface {
	Notify(event notification.InspectionEvent) bool
}

// Recorder collects pipeline metrics.
type Recorder interface {
	RecordInspection(status, outcome string)
	ObserveInference(modelType string, seconds float64)
	RecordModelLoad(modelType, status string)
	IncFacesRejected()
	IncStoreFailures()
}

type nopRecorder struct{}

func (nopRecorder) RecordInspection(string, string)  {}
func (nopRecorder) ObserveInference(string, float64) {}
func (nopRecorder) RecordModelLoad(string, string)   {}
func (nopRecorder) IncFacesRejected()                {}
func (nopRecorder) IncStoreFailures()                {}

type nopPublisher struct{}

func (nopPublisher) Notify(notification.InspectionEvent) bool { return false }

// Request is one uploaded inspection photo with its form fields.
type Request struct {
	Image               []byte
	WorkplaceID         *uint
	DeviceID            string
	UserAgent           string
	SessionToken        string   // progress token, optional
	BlurFaces           bool     // blur detected faces in the privacy result
	ConfidenceThreshold *float64 // overrides the workplace threshold
}

// Result is the outcome of a pipeline run: *Ok, *Rejected or *Failed.
type Result interface {
	outcome() string
}

// Ok carries a verdict. The verdict is served even when storing it failed;
// StoreErr is set and AnalysisID is 0 in that case.
type Ok struct {
	Verdict      *inference.Verdict
	AnalysisID   uint
	StoreErr     error
	Timestamp    time.Time
	DeviceID     string
	Workplace    *entities.Workplace
	WorkplaceID  *uint // workplace the record is stored under, nil for unknown ids
	FacesFound   int
	FacesBlurred int
	ImageJPEG    []byte // processed image as returned to the client
	ImageName    string // file name under the uploads directory, empty when not saved
	Duration     time.Duration
}

// Stored reports whether the verdict reached the audit log.
func (o *Ok) Stored() bool { return o.StoreErr == nil && o.AnalysisID != 0 }

// Rejected means the photo violated the privacy policy. Nothing was stored.
type Rejected struct {
	Reason    string
	FaceCount int
}

// Failed means the photo could not be processed.
type Failed struct {
	Err error
}

func (*Ok) outcome() string       { return "ok" }
func (*Rejected) outcome() string { return "rejected" }
func (*Failed) outcome() string   { return "failed" }

// Config holds the pipeline settings.
type Config struct {
	UploadsDir          string
	ConfidenceThreshold float64
	JPEGQuality         int
	BlurFaces           bool
}

// ConfigFromSettings derives the pipeline config from the service settings.
func ConfigFromSettings(s *conf.Settings) Config {
	return Config{
		UploadsDir:          s.ResolvePath(s.Inspection.UploadsDir),
		ConfidenceThreshold: s.Inspection.ConfidenceThreshold,
		JPEGQuality:         s.Inspection.JPEGQuality,
		BlurFaces:           s.Inspection.BlurFaces,
	}
}

// Deps are the collaborators of a Pipeline. Privacy, Tracker, Notifier and
// Metrics are optional.
type Deps struct {
	Selector   ModelSelector
	Models     ModelProvider
	Privacy    *privacy.Filter
	Analyses   repository.AnalysisRepository
	Workplaces repository.WorkplaceRepository
	Tracker    *progress.Tracker
	Notifier   EventPublisher
	Metrics    Recorder
}

// Pipeline turns uploaded photos into stored verdicts.
type Pipeline struct {
	deps Deps
	cfg  Config
	log  logger.Logger
	now  func() time.Time
}

// NewPipeline creates a pipeline.
func NewPipeline(deps Deps, cfg Config) *Pipeline {
	if deps.Privacy == nil {
		deps.Privacy = privacy.NewFilter(nil, privacy.Options{}, nil)
	}
	if deps.Metrics == nil {
		deps.Metrics = nopRecorder{}
	}
	if deps.Notifier == nil {
		deps.Notifier = nopPublisher{}
	}
	if cfg.ConfidenceThreshold <= 0 || cfg.ConfidenceThreshold > 1 {
		cfg.ConfidenceThreshold = DefaultConfidenceThreshold
	}
	if cfg.JPEGQuality <= 0 {
		cfg.JPEGQuality = imaging.DefaultJPEGQuality
	}
	return &Pipeline{
		deps: deps,
		cfg:  cfg,
		log:  GetLogger(),
		now:  time.Now,
	}
}

// Run executes the pipeline for one photo.
func (p *Pipeline) Run(ctx context.Context, req Request) Result {
	start := p.now()
	token := req.SessionToken
	p.advance(token, progress.StageReceived)

	res := p.run(ctx, req, start)

	switch r := res.(type) {
	case *Ok:
		r.Duration = p.now().Sub(start)
		p.deps.Metrics.RecordInspection(r.Verdict.Status(), r.outcome())
		p.publish(r)
		if p.deps.Tracker != nil {
			p.deps.Tracker.Complete(token)
		}
	case *Rejected:
		p.deps.Metrics.IncFacesRejected()
		p.deps.Metrics.RecordInspection("", r.outcome())
		p.fail(token, r.Reason)
	case *Failed:
		p.deps.Metrics.RecordInspection("", r.outcome())
		p.fail(token, r.Err.Error())
	}
	return res
}

func (p *Pipeline) run(ctx context.Context, req Request, start time.Time) Result {
	if len(req.Image) == 0 {
		return &Failed{Err: errors.Newf("no image uploaded").
			Component("inspection").
			Category(errors.CategoryValidation).
			Build()}
	}
	if req.ConfidenceThreshold != nil && (*req.ConfidenceThreshold <= 0 || *req.ConfidenceThreshold > 1) {
		return &Failed{Err: errors.Newf("confidence threshold must be in (0,1], got %v", *req.ConfidenceThreshold).
			Component("inspection").
			Category(errors.CategoryValidation).
			Build()}
	}

	img, format, err := imaging.Decode(req.Image)
	if err != nil {
		return &Failed{Err: err}
	}

	check := p.deps.Privacy.Check(img, req.BlurFaces || p.cfg.BlurFaces)
	if check.FaceCount > 0 {
		p.log.Info("inspection rejected by privacy policy",
			logger.Int("faces", check.FaceCount))
		return &Rejected{Reason: privacy.RejectionMessage(check.FaceCount), FaceCount: check.FaceCount}
	}
	p.advance(req.SessionToken, progress.StagePrivacy)

	workplace, workplaceID, err := p.workplace(ctx, req.WorkplaceID)
	if err != nil {
		return &Failed{Err: err}
	}

	verdict, err := p.infer(ctx, check.Image, req, workplace)
	if err != nil {
		return &Failed{Err: err}
	}
	p.advance(req.SessionToken, progress.StageInference)

	ok := &Ok{
		Verdict:      verdict,
		Timestamp:    start,
		DeviceID:     DeviceID(req.DeviceID, req.UserAgent),
		Workplace:    workplace,
		WorkplaceID:  workplaceID,
		FacesFound:   check.FaceCount,
		FacesBlurred: blurredCount(check),
	}

	processed := check.Image
	if len(verdict.Boxes) > 0 {
		processed = imaging.Annotate(processed, verdict.Boxes)
	}
	ok.ImageJPEG, err = imaging.EncodeJPEG(processed, p.cfg.JPEGQuality)
	if err != nil {
		p.log.Warn("failed to encode processed image",
			logger.String("format", format),
			logger.Error(err))
	}

	var imagePath *string
	if len(ok.ImageJPEG) > 0 {
		name, saveErr := p.saveImage(ok.ImageJPEG, start)
		if saveErr != nil {
			p.log.Warn("failed to save inspection image, storing verdict without image",
				logger.Error(saveErr))
		} else {
			ok.ImageName = name
			path := filepath.ToSlash(filepath.Join(p.cfg.UploadsDir, name))
			imagePath = &path
		}
	}

	record := newAnalysis(ok, imagePath)
	if err := p.deps.Analyses.Create(ctx, record); err != nil {
		p.deps.Metrics.IncStoreFailures()
		ok.StoreErr = errors.New(err).
			Component("inspection").
			Category(errors.CategoryDatabase).
			Context("operation", "store_analysis").
			Build()
		p.log.Error("failed to store analysis, serving verdict anyway",
			logger.String("status", verdict.Status()),
			logger.Int("class_id", verdict.ClassID),
			logger.Error(err))
	} else {
		ok.AnalysisID = record.ID
	}
	p.advance(req.SessionToken, progress.StageStored)

	p.log.Info("inspection completed",
		logger.Uint64("analysis_id", uint64(ok.AnalysisID)),
		logger.String("status", verdict.Status()),
		logger.String("label", verdict.Class.Label),
		logger.Float64("confidence", verdict.Confidence),
		logger.String("model_type", string(verdict.ModelType)),
		logger.Duration("elapsed", p.now().Sub(start)))
	return ok
}

// workplace loads the workplace of the request and returns the id the audit
// record is stored under. An unknown id continues with the default model and
// settings and the record is stored without workplace. A lookup error also
// continues with defaults but keeps the id.
func (p *Pipeline) workplace(ctx context.Context, id *uint) (*entities.Workplace, *uint, error) {
	if id == nil || p.deps.Workplaces == nil {
		return nil, id, nil
	}
	w, err := p.deps.Workplaces.GetByID(ctx, *id)
	switch {
	case err == nil:
		return w, id, nil
	case errors.Is(err, repository.ErrWorkplaceNotFound):
		p.log.Warn("unknown workplace, using default model and settings",
			logger.Uint64("workplace_id", uint64(*id)))
		return nil, nil, nil
	default:
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, nil, ctxErr
		}
		p.log.Warn("workplace lookup failed, using default settings",
			logger.Uint64("workplace_id", uint64(*id)),
			logger.Error(err))
		return nil, id, nil
	}
}

func (p *Pipeline) infer(ctx context.Context, img image.Image, req Request, w *entities.Workplace) (*inference.Verdict, error) {
	ref, err := p.deps.Selector.Select(ctx, req.WorkplaceID)
	if err != nil {
		return nil, err
	}

	model, err := p.deps.Models.Get(ctx, ref)
	if err != nil {
		p.deps.Metrics.RecordModelLoad(string(ref.Type), "failed")
		return nil, errors.New(err).
			Component("inspection").
			Category(errors.CategoryModelLoad).
			ModelContext(ref.Path, string(ref.Type)).
			Build()
	}
	loadStatus := "loaded"
	if model.Type() == entities.ModelTypeDummy && ref.Type != entities.ModelTypeDummy {
		loadStatus = "fallback"
	}
	p.deps.Metrics.RecordModelLoad(string(model.Type()), loadStatus)

	threshold := p.cfg.ConfidenceThreshold
	var opts []inference.InferOption
	if w != nil {
		if w.ConfidenceThreshold > 0 {
			threshold = w.ConfidenceThreshold
		}
		if region := w.Region(); region != nil {
			opts = append(opts, inference.WithRegion(region))
		}
	}
	if req.ConfidenceThreshold != nil {
		threshold = *req.ConfidenceThreshold
	}

	// A client disconnect does not abort an inference that already started.
	started := time.Now()
	verdict, err := model.Infer(context.WithoutCancel(ctx), img, threshold, opts...)
	p.deps.Metrics.ObserveInference(string(model.Type()), time.Since(started).Seconds())
	if err != nil {
		return nil, errors.New(err).
			Component("inspection").
			Category(errors.CategoryModelInference).
			ModelContext(ref.Path, string(model.Type())).
			Timing("infer", time.Since(started)).
			Build()
	}
	if verdict.ModelVersion == "" {
		verdict.ModelVersion = ref.Version
	}
	return verdict, nil
}

func (p *Pipeline) saveImage(data []byte, ts time.Time) (string, error) {
	if p.cfg.UploadsDir == "" {
		return "", fmt.Errorf("uploads directory not configured")
	}
	if err := os.MkdirAll(p.cfg.UploadsDir, 0o755); err != nil {
		return "", err
	}
	name := fmt.Sprintf("inspect_%s_%s.jpg", ts.Format("20060102_150405"), uuid.NewString()[:8])
	if err := os.WriteFile(filepath.Join(p.cfg.UploadsDir, name), data, 0o644); err != nil {
		return "", errors.New(err).
			Component("inspection").
			Category(errors.CategoryFileIO).
			FileContext(name, int64(len(data))).
			Build()
	}
	return name, nil
}

func (p *Pipeline) publish(ok *Ok) {
	v := ok.Verdict
	event := notification.InspectionEvent{
		AnalysisID:   ok.AnalysisID,
		Status:       v.Status(),
		ClassID:      v.ClassID,
		ClassName:    v.Class.Name,
		Label:        v.Class.Label,
		Confidence:   v.Confidence,
		MissingItems: v.Class.MissingItems,
		DeviceID:     ok.DeviceID,
		ModelType:    string(v.ModelType),
		ModelVersion: v.ModelVersion,
		Stored:       ok.Stored(),
		Timestamp:    ok.Timestamp,
	}
	if ok.Workplace != nil {
		id := ok.Workplace.ID
		event.WorkplaceID = &id
		event.Workplace = ok.Workplace.Name
	}
	p.deps.Notifier.Notify(event)
}

func (p *Pipeline) advance(token string, stage progress.Stage) {
	if p.deps.Tracker != nil {
		p.deps.Tracker.Advance(token, stage)
	}
}

func (p *Pipeline) fail(token, message string) {
	if p.deps.Tracker != nil {
		p.deps.Tracker.Fail(token, message)
	}
}

func blurredCount(check privacy.Result) int {
	if check.Blurred {
		return check.FaceCount
	}
	return 0
}

func newAnalysis(ok *Ok, imagePath *string) *entities.Analysis {
	v := ok.Verdict
	a := &entities.Analysis{
		Timestamp:       ok.Timestamp,
		ImagePath:       imagePath,
		PredictedClass:  v.ClassID,
		PredictedLabel:  v.Class.Label,
		Confidence:      v.Confidence,
		Status:          v.Status(),
		FaceCount:       ok.FacesFound,
		DeviceID:        ok.DeviceID,
		WorkplaceID:     ok.WorkplaceID,
		ModelType:       string(v.ModelType),
		ModelVersion:    v.ModelVersion,
		Scheme:          string(v.Scheme),
		DetectedHamer:   v.Counts["hamer"],
		DetectedSchaar:  v.Counts["schaar"],
		DetectedSleutel: v.Counts["sleutel"],
		TotalDetections: v.TotalDetections(),
	}
	a.SetMissingItems(v.Class.MissingItems)
	return a
}
