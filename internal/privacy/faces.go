// Package privacy keeps people out of stored inspection photos and scrubs
// sensitive data from log and telemetry messages.
package privacy

import (
	"fmt"
	"image"

	"github.com/Timvanhoudt/VirtualTeamLeader/internal/imaging"
	"github.com/Timvanhoudt/VirtualTeamLeader/internal/logger"
)

// Defaults of the Haar cascade face search.
const (
	DefaultScaleFactor  = 1.1
	DefaultMinNeighbors = 5
	DefaultMinFaceSize  = 30
	DefaultPadding      = 20
	DefaultBlurStrength = 99
)

// FaceDetector finds faces in an image.
type FaceDetector interface {
	DetectFaces(img image.Image) ([]image.Rectangle, error)
}

// RegionBlurrer is implemented by detectors that can blur regions natively.
type RegionBlurrer interface {
	BlurRegions(img image.Image, regions []image.Rectangle, strength int) (image.Image, error)
}

// Result is the outcome of a privacy check.
type Result struct {
	Image       image.Image       // input image, blurred when requested and faces were found
	FaceCount   int               // number of faces found
	Faces       []image.Rectangle // face rectangles in image coordinates
	Blurred     bool              // true when Image differs from the input
	DetectorErr error             // set when detection failed and FaceCount was forced to 0
}

// RejectionMessage is the user-facing reason for a privacy rejection.
func RejectionMessage(faceCount int) string {
	return fmt.Sprintf("Photo rejected: %d face(s) detected. Privacy required - remove people from the frame.", faceCount)
}

// Options configures a Filter.
type Options struct {
	BlurStrength int // Gaussian kernel size, forced odd
	Padding      int // pixels added around each face before blurring
}

// Filter runs face detection on inspection photos.
type Filter struct {
	detector FaceDetector
	opts     Options
	log      logger.Logger
}

// NewFilter creates a Filter. A nil detector finds no faces.
func NewFilter(detector FaceDetector, opts Options, log logger.Logger) *Filter {
	if opts.BlurStrength <= 0 {
		opts.BlurStrength = DefaultBlurStrength
	}
	if opts.BlurStrength%2 == 0 {
		opts.BlurStrength++
	}
	if opts.Padding < 0 {
		opts.Padding = DefaultPadding
	}
	if log == nil {
		log = GetLogger()
	}
	return &Filter{detector: detector, opts: opts, log: log}
}

// Check counts faces and optionally blurs them. A failing detector is
// treated as "no faces" and reported through Result.DetectorErr.
func (f *Filter) Check(img image.Image, blur bool) Result {
	res := Result{Image: img}
	if f.detector == nil {
		return res
	}

	faces, err := f.detector.DetectFaces(img)
	if err != nil {
		f.log.Warn("face detection failed, continuing without privacy check",
			logger.Error(err))
		res.DetectorErr = err
		return res
	}

	res.Faces = faces
	res.FaceCount = len(faces)
	if !blur || len(faces) == 0 {
		return res
	}

	blurred, err := f.blur(img, faces)
	if err != nil {
		f.log.Warn("face blur failed, returning original image", logger.Error(err))
		return res
	}
	res.Image = blurred
	res.Blurred = true
	return res
}

// BlurPreview always blurs detected faces and returns the resulting image.
func (f *Filter) BlurPreview(img image.Image) Result {
	return f.Check(img, true)
}

func (f *Filter) blur(img image.Image, faces []image.Rectangle) (image.Image, error) {
	bounds := img.Bounds()
	padded := make([]image.Rectangle, 0, len(faces))
	for _, r := range faces {
		padded = append(padded, imaging.PadRect(r, f.opts.Padding, bounds))
	}

	if b, ok := f.detector.(RegionBlurrer); ok {
		return b.BlurRegions(img, padded, f.opts.BlurStrength)
	}

	out := imaging.Clone(img)
	radius := f.opts.BlurStrength / 6
	if radius < 1 {
		radius = 1
	}
	for _, r := range padded {
		imaging.BoxBlur(out, r.Sub(bounds.Min), radius)
	}
	return out, nil
}
