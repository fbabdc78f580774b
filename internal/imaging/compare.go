package imaging

import (
	"image"

	"github.com/Timvanhoudt/VirtualTeamLeader/internal/errors"
)

// ErrCompareUnavailable is returned when the binary is built without OpenCV.
var ErrCompareUnavailable = errors.NewStd("image comparison requires the gocv build tag")

// Comparison tuning shared by both builds.
const (
	compareMaxSide      = 1024
	compareDiffLevel    = 25
	compareMinAreaRatio = 0.001
)

// CompareResult lists the regions where a test photo differs from the reference.
type CompareResult struct {
	Width   int               `json:"width"`
	Height  int               `json:"height"`
	Regions []image.Rectangle `json:"regions"`
	Changed bool              `json:"changed"`
}
