package inference

import (
	"context"
	"fmt"
	"image"
	"math"
	"sort"

	"github.com/Timvanhoudt/VirtualTeamLeader/internal/datastore/entities"
	"github.com/Timvanhoudt/VirtualTeamLeader/internal/errors"
	"github.com/Timvanhoudt/VirtualTeamLeader/internal/imaging"
)

const (
	// DefaultNMSThreshold is the IoU above which overlapping boxes of the
	// same label are suppressed.
	DefaultNMSThreshold = 0.45

	// FallbackConfidence is reported when no box passes the threshold. It is
	// not a model confidence.
	FallbackConfidence = 0.5
)

// DefaultDetectorLabels is the class order of the workplace detector.
var DefaultDetectorLabels = []string{ItemHamer, ItemSchaar, ItemSleutel}

// labelAliases folds raw detector labels into tool buckets.
var labelAliases = map[string]string{
	"kunstofhamer": ItemHamer,
}

// bucketFor returns the tool bucket of a raw label, or "" when it is not a tool.
func bucketFor(label string) string {
	if alias, ok := labelAliases[label]; ok {
		return alias
	}
	for _, t := range Tools {
		if t == label {
			return t
		}
	}
	return ""
}

// candidate is a detector box in normalised [0,1] corner coordinates.
type candidate struct {
	label          string
	score          float64
	x1, y1, x2, y2 float64
}

func (c candidate) center() (float64, float64) {
	return (c.x1 + c.x2) / 2, (c.y1 + c.y2) / 2
}

func (c candidate) area() float64 {
	return math.Max(0, c.x2-c.x1) * math.Max(0, c.y2-c.y1)
}

// Detector runs a YOLO object detector and maps tool presence onto the
// eight-class table.
type Detector struct {
	it      *interpreter
	version string
	labels  []string
	nms     float64
}

// NewDetector loads the detector model referenced by ref. Labels default to
// DefaultDetectorLabels and nmsThreshold <= 0 selects DefaultNMSThreshold.
func NewDetector(ref ModelRef, threads int, nmsThreshold float64) (*Detector, error) {
	labels := ref.Labels
	if len(labels) == 0 {
		labels = DefaultDetectorLabels
	}
	if nmsThreshold <= 0 {
		nmsThreshold = DefaultNMSThreshold
	}
	it, err := newInterpreter(ref.Path, entities.ModelTypeDetection, threads)
	if err != nil {
		return nil, err
	}
	return &Detector{it: it, version: ref.Version, labels: labels, nms: nmsThreshold}, nil
}

// Infer detects tools with a score of at least threshold.
func (d *Detector) Infer(ctx context.Context, img image.Image, threshold float64, opts ...InferOption) (*Verdict, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	o := collectOptions(opts)

	input := imaging.ToTensorNHWC(img, d.it.width, d.it.height)
	output, shape, err := d.it.run(input)
	if err != nil {
		return nil, err
	}

	cands, err := decodeYOLO(output, shape, d.labels, threshold, d.it.width, d.it.height)
	if err != nil {
		return nil, errors.New(err).
			Component("inference").
			Category(errors.CategoryModelInference).
			ModelContext(d.it.path, string(entities.ModelTypeDetection)).
			Build()
	}

	v, err := detectionVerdict(cands, d.nms, o.Region, img.Bounds())
	if err != nil {
		return nil, err
	}
	v.ModelVersion = d.version
	return v, nil
}

// Type returns detection.
func (d *Detector) Type() entities.ModelType { return entities.ModelTypeDetection }

// Scheme returns the eight-class table.
func (d *Detector) Scheme() ClassificationScheme { return MustScheme(SchemeEightClass) }

// Close frees the interpreter.
func (d *Detector) Close() error {
	d.it.close()
	return nil
}

// decodeYOLO reads a [1, 4+nc, N] output (or its [1, N, 4+nc] transpose)
// with center-size boxes and returns candidates whose best class score is at
// least threshold. Boxes in pixel units are normalised by the input size.
func decodeYOLO(output []float32, shape []int, labels []string, threshold float64, inputW, inputH int) ([]candidate, error) {
	if len(shape) != 3 {
		return nil, fmt.Errorf("unexpected detector output rank %d, want 3", len(shape))
	}
	rows, cols := shape[1], shape[2]
	transposed := false
	if rows > cols {
		rows, cols = cols, rows
		transposed = true
	}
	numClasses := rows - 4
	if numClasses <= 0 {
		return nil, fmt.Errorf("detector output has %d rows, need at least 5", rows)
	}
	if len(output) < rows*cols {
		return nil, fmt.Errorf("detector output has %d values, shape needs %d", len(output), rows*cols)
	}

	at := func(row, box int) float64 {
		if transposed {
			return float64(output[box*rows+row])
		}
		return float64(output[row*cols+box])
	}

	var cands []candidate
	pixelUnits := false
	for i := 0; i < cols; i++ {
		classID, score := 0, -1.0
		for j := 0; j < numClasses; j++ {
			if s := at(4+j, i); s > score {
				classID, score = j, s
			}
		}
		if score < threshold {
			continue
		}
		if classID >= len(labels) {
			continue
		}

		cx, cy, w, h := at(0, i), at(1, i), at(2, i), at(3, i)
		if cx > 2 || cy > 2 || w > 2 || h > 2 {
			pixelUnits = true
		}
		cands = append(cands, candidate{
			label: labels[classID],
			score: score,
			x1:    cx - w/2,
			y1:    cy - h/2,
			x2:    cx + w/2,
			y2:    cy + h/2,
		})
	}

	if pixelUnits && inputW > 0 && inputH > 0 {
		for i := range cands {
			cands[i].x1 /= float64(inputW)
			cands[i].x2 /= float64(inputW)
			cands[i].y1 /= float64(inputH)
			cands[i].y2 /= float64(inputH)
		}
	}
	return cands, nil
}

// iou computes the intersection over union of two boxes.
func iou(a, b candidate) float64 {
	x1 := math.Max(a.x1, b.x1)
	y1 := math.Max(a.y1, b.y1)
	x2 := math.Min(a.x2, b.x2)
	y2 := math.Min(a.y2, b.y2)

	inter := math.Max(0, x2-x1) * math.Max(0, y2-y1)
	union := a.area() + b.area() - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

// nonMaxSuppression keeps the highest scoring box of every overlapping group
// of the same label.
func nonMaxSuppression(cands []candidate, threshold float64) []candidate {
	sorted := make([]candidate, len(cands))
	copy(sorted, cands)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].score > sorted[j].score })

	suppressed := make([]bool, len(sorted))
	var kept []candidate
	for i := range sorted {
		if suppressed[i] {
			continue
		}
		kept = append(kept, sorted[i])
		for j := i + 1; j < len(sorted); j++ {
			if suppressed[j] || sorted[j].label != sorted[i].label {
				continue
			}
			if iou(sorted[i], sorted[j]) > threshold {
				suppressed[j] = true
			}
		}
	}
	return kept
}

// detectionVerdict suppresses overlaps, applies the whiteboard region, tallies
// the tool buckets and maps presence onto the eight-class table.
func detectionVerdict(cands []candidate, nmsThreshold float64, region *entities.Region, bounds image.Rectangle) (*Verdict, error) {
	counts := map[string]int{ItemHamer: 0, ItemSchaar: 0, ItemSleutel: 0}
	var boxes []imaging.Box
	maxScore := 0.0

	for _, c := range nonMaxSuppression(cands, nmsThreshold) {
		bucket := bucketFor(c.label)
		if bucket == "" {
			continue
		}
		if region != nil {
			if cx, cy := c.center(); !region.Contains(cx, cy) {
				continue
			}
		}
		counts[bucket]++
		maxScore = math.Max(maxScore, c.score)
		boxes = append(boxes, imaging.Box{Label: bucket, Score: c.score, Rect: toPixels(c, bounds)})
	}

	confidence := maxScore
	if len(boxes) == 0 {
		confidence = FallbackConfidence
	}

	classID := DetectorClass(counts[ItemHamer] > 0, counts[ItemSchaar] > 0, counts[ItemSleutel] > 0)
	v, err := newVerdict(MustScheme(SchemeEightClass), classID, confidence, entities.ModelTypeDetection)
	if err != nil {
		return nil, err
	}
	v.Counts = counts
	v.Boxes = boxes
	return v, nil
}

func toPixels(c candidate, bounds image.Rectangle) image.Rectangle {
	w, h := float64(bounds.Dx()), float64(bounds.Dy())
	clamp := func(v float64) float64 { return math.Min(1, math.Max(0, v)) }
	return image.Rect(
		bounds.Min.X+int(math.Round(clamp(c.x1)*w)),
		bounds.Min.Y+int(math.Round(clamp(c.y1)*h)),
		bounds.Min.X+int(math.Round(clamp(c.x2)*w)),
		bounds.Min.Y+int(math.Round(clamp(c.y2)*h)),
	)
}
