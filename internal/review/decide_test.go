package review

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecide(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		predicted  string
		corrected  string
		confidence float64
		threshold  float64
		notes      string
		want       Decision
	}{
		{
			name: "correct and confident", predicted: "ok", corrected: "ok",
			confidence: 0.95, threshold: 70,
			want: Decision{},
		},
		{
			name: "wrong prediction", predicted: "ok", corrected: "nok_hamer_weg",
			confidence: 0.95, threshold: 70,
			want: Decision{Incorrect: true, Candidate: true},
		},
		{
			name: "low confidence", predicted: "ok", corrected: "ok",
			confidence: 0.65, threshold: 70,
			want: Decision{LowConfidence: true, Candidate: true},
		},
		{
			name: "exactly at threshold is not low", predicted: "ok", corrected: "ok",
			confidence: 0.7, threshold: 70,
			want: Decision{},
		},
		{
			name: "notes make a candidate", predicted: "ok", corrected: "ok",
			confidence: 0.99, threshold: 70, notes: `{"missing_items":["hamer"]}`,
			want: Decision{HasNotes: true, Candidate: true},
		},
		{
			name: "empty object notes are trivial", predicted: "ok", corrected: "ok",
			confidence: 0.99, threshold: 70, notes: " {} ",
			want: Decision{},
		},
		{
			name: "label case is ignored", predicted: "ok", corrected: " OK ",
			confidence: 0.95, threshold: 70,
			want: Decision{},
		},
		{
			name: "blank notes are trivial", predicted: "ok", corrected: "ok",
			confidence: 0.99, threshold: 70, notes: "   ",
			want: Decision{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Decide(tt.predicted, tt.corrected, tt.confidence, tt.threshold, tt.notes))
		})
	}
}
