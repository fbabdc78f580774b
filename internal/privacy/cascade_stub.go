//go:build !gocv

package privacy

import (
	"image"

	"github.com/Timvanhoudt/VirtualTeamLeader/internal/errors"
)

// errNoOpenCV is returned by every DetectFaces call in builds without OpenCV.
var errNoOpenCV = errors.Newf("face detection requires a build with the gocv tag").
	Component("privacy").
	Category(errors.CategoryConfiguration).
	Build()

// CascadeDetector is a placeholder used when the binary is built without OpenCV.
type CascadeDetector struct{}

// NewCascadeDetector returns a detector whose every call fails, so the
// filter degrades to "no faces" as it does for any detector error.
func NewCascadeDetector(string) (*CascadeDetector, error) {
	return &CascadeDetector{}, nil
}

// DetectFaces always returns an error without the gocv build tag.
func (d *CascadeDetector) DetectFaces(image.Image) ([]image.Rectangle, error) {
	return nil, errNoOpenCV
}

// Close is a no-op.
func (d *CascadeDetector) Close() error { return nil }
