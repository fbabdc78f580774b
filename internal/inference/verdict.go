package inference

import (
	"context"
	"image"

	"github.com/Timvanhoudt/VirtualTeamLeader/internal/datastore/entities"
	"github.com/Timvanhoudt/VirtualTeamLeader/internal/imaging"
)

// Verdict is the normalised result of one inference.
type Verdict struct {
	ClassID      int
	Confidence   float64
	Class        ClassInfo
	Scheme       SchemeKind
	ModelType    entities.ModelType
	ModelVersion string

	// Detector only
	Counts map[string]int
	Boxes  []imaging.Box
}

// Status returns OK or NOK.
func (v *Verdict) Status() string { return v.Class.Status }

// IsOK reports whether the workplace passed the inspection.
func (v *Verdict) IsOK() bool { return v.Class.Status == entities.StatusOK }

// TotalDetections returns the number of retained detector boxes.
func (v *Verdict) TotalDetections() int { return len(v.Boxes) }

// Suggestions returns remediation hints for the missing items.
func (v *Verdict) Suggestions() []Suggestion {
	if v.IsOK() {
		return []Suggestion{}
	}
	return Suggestions(v.Class.MissingItems)
}

// newVerdict maps a class id through the scheme.
func newVerdict(scheme ClassificationScheme, classID int, confidence float64, modelType entities.ModelType) (*Verdict, error) {
	info, err := scheme.Map(classID)
	if err != nil {
		return nil, err
	}
	return &Verdict{
		ClassID:    classID,
		Confidence: confidence,
		Class:      info,
		Scheme:     scheme.Kind(),
		ModelType:  modelType,
	}, nil
}

// InferOptions carries per-request inference parameters.
type InferOptions struct {
	Region *entities.Region
}

// InferOption configures a single Infer call.
type InferOption func(*InferOptions)

// WithRegion restricts detector boxes to a normalised whiteboard region.
func WithRegion(r *entities.Region) InferOption {
	return func(o *InferOptions) { o.Region = r }
}

// Inferrer produces verdicts from images.
//
// Infer is safe for concurrent use. The threshold is the minimum box score for
// detectors and is ignored by classifiers.
type Inferrer interface {
	Infer(ctx context.Context, img image.Image, threshold float64, opts ...InferOption) (*Verdict, error)
	Type() entities.ModelType
	Scheme() ClassificationScheme
	Close() error
}

func collectOptions(opts []InferOption) InferOptions {
	var o InferOptions
	for _, fn := range opts {
		fn(&o)
	}
	return o
}
