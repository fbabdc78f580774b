// Package review handles reviewer corrections, the retraining queue and the
// export of analyses and training images.
package review

import "strings"

// DefaultThresholdPercent is the confidence below which a reviewed analysis
// becomes a training candidate.
const DefaultThresholdPercent = 70.0

// Decision explains why an analysis is or is not kept for retraining.
type Decision struct {
	Incorrect     bool `json:"incorrect"`
	LowConfidence bool `json:"low_confidence"`
	HasNotes      bool `json:"has_notes"`
	Candidate     bool `json:"candidate"`
}

// Decide classifies a correction. confidence is a probability in [0,1],
// thresholdPercent is in percent.
func Decide(predictedLabel, correctedLabel string, confidence, thresholdPercent float64, notes string) Decision {
	d := Decision{
		Incorrect:     !sameLabel(predictedLabel, correctedLabel),
		LowConfidence: confidence < thresholdPercent/100,
		HasNotes:      meaningfulNotes(notes),
	}
	d.Candidate = d.Incorrect || d.LowConfidence || d.HasNotes
	return d
}

// sameLabel compares class labels ignoring case and surrounding space.
func sameLabel(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

// meaningfulNotes treats blank notes and an empty JSON object as absent.
func meaningfulNotes(notes string) bool {
	trimmed := strings.TrimSpace(notes)
	return trimmed != "" && trimmed != "{}"
}
