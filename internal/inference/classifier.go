package inference

import (
	"context"
	"fmt"
	"image"
	"math"

	"github.com/Timvanhoudt/VirtualTeamLeader/internal/datastore/entities"
	"github.com/Timvanhoudt/VirtualTeamLeader/internal/errors"
	"github.com/Timvanhoudt/VirtualTeamLeader/internal/imaging"
)

// Classifier runs a whole-image tflite classifier.
type Classifier struct {
	it      *interpreter
	scheme  ClassificationScheme
	version string
}

// NewClassifier loads the classifier model referenced by ref.
func NewClassifier(ref ModelRef, threads int) (*Classifier, error) {
	scheme, err := SchemeFor(string(ref.Scheme))
	if err != nil {
		return nil, err
	}
	it, err := newInterpreter(ref.Path, entities.ModelTypeClassification, threads)
	if err != nil {
		return nil, err
	}
	return &Classifier{it: it, scheme: scheme, version: ref.Version}, nil
}

// Infer classifies img. The threshold is not used by classifiers.
func (c *Classifier) Infer(ctx context.Context, img image.Image, _ float64, _ ...InferOption) (*Verdict, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	input := imaging.ToTensorNHWC(img, c.it.width, c.it.height)
	output, shape, err := c.it.run(input)
	if err != nil {
		return nil, err
	}

	predSize := len(output)
	if len(shape) > 0 {
		predSize = shape[len(shape)-1]
	}
	if predSize != c.scheme.Arity() || len(output) < predSize {
		return nil, errors.New(fmt.Errorf("model outputs %d classes, scheme %s expects %d", predSize, c.scheme.Kind(), c.scheme.Arity())).
			Component("inference").
			Category(errors.CategoryModelInference).
			ModelContext(c.it.path, string(entities.ModelTypeClassification)).
			Build()
	}

	classID, confidence := argmax(toProbabilities(output[:predSize]))
	v, err := newVerdict(c.scheme, classID, confidence, entities.ModelTypeClassification)
	if err != nil {
		return nil, err
	}
	v.ModelVersion = c.version
	return v, nil
}

// Type returns classification.
func (c *Classifier) Type() entities.ModelType { return entities.ModelTypeClassification }

// Scheme returns the class table of the model.
func (c *Classifier) Scheme() ClassificationScheme { return c.scheme }

// Close frees the interpreter.
func (c *Classifier) Close() error {
	c.it.close()
	return nil
}

// toProbabilities returns values unchanged when they already form a
// probability distribution, otherwise their softmax.
func toProbabilities(values []float32) []float64 {
	out := make([]float64, len(values))
	sum := 0.0
	isDistribution := true
	for i, v := range values {
		out[i] = float64(v)
		if v < 0 || v > 1 {
			isDistribution = false
		}
		sum += float64(v)
	}
	if isDistribution && math.Abs(sum-1) <= 0.01 {
		return out
	}

	maxVal := math.Inf(-1)
	for _, v := range out {
		maxVal = math.Max(maxVal, v)
	}
	total := 0.0
	for i, v := range out {
		out[i] = math.Exp(v - maxVal)
		total += out[i]
	}
	for i := range out {
		out[i] /= total
	}
	return out
}

func argmax(values []float64) (int, float64) {
	best, bestVal := 0, math.Inf(-1)
	for i, v := range values {
		if v > bestVal {
			best, bestVal = i, v
		}
	}
	return best, bestVal
}
