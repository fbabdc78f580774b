package inference

import (
	"context"
	"image"

	"github.com/Timvanhoudt/VirtualTeamLeader/internal/datastore/entities"
)

// Placeholder verdict of the dummy model.
const (
	DummyClassID    = 2
	DummyConfidence = 0.10
)

// Dummy stands in for a model file that does not exist. It always reports
// class 2 of the seven-class table with a confidence low enough to make the
// record a training candidate once reviewed.
type Dummy struct {
	version string
}

// NewDummy returns the placeholder inferrer.
func NewDummy(version string) *Dummy {
	return &Dummy{version: version}
}

// Infer returns the placeholder verdict.
func (d *Dummy) Infer(ctx context.Context, _ image.Image, _ float64, _ ...InferOption) (*Verdict, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	v, err := newVerdict(d.Scheme(), DummyClassID, DummyConfidence, entities.ModelTypeDummy)
	if err != nil {
		return nil, err
	}
	v.ModelVersion = d.version
	return v, nil
}

// Type returns dummy.
func (d *Dummy) Type() entities.ModelType { return entities.ModelTypeDummy }

// Scheme returns the seven-class table.
func (d *Dummy) Scheme() ClassificationScheme { return MustScheme(SchemeSevenClass) }

// Close is a no-op.
func (d *Dummy) Close() error { return nil }
