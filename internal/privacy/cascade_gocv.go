//go:build gocv

package privacy

import (
	"fmt"
	"image"
	"sync"

	"gocv.io/x/gocv"
)

// cascadeScaleImage is OpenCV's CASCADE_SCALE_IMAGE flag.
const cascadeScaleImage = 2

// CascadeDetector finds frontal faces with an OpenCV Haar cascade.
type CascadeDetector struct {
	mu         sync.Mutex // CascadeClassifier is not safe for concurrent use
	classifier gocv.CascadeClassifier
}

// NewCascadeDetector loads the cascade XML at path.
func NewCascadeDetector(path string) (*CascadeDetector, error) {
	classifier := gocv.NewCascadeClassifier()
	if !classifier.Load(path) {
		_ = classifier.Close()
		return nil, fmt.Errorf("failed to load face cascade from %s", path)
	}
	return &CascadeDetector{classifier: classifier}, nil
}

// DetectFaces returns face rectangles in img coordinates.
func (d *CascadeDetector) DetectFaces(img image.Image) ([]image.Rectangle, error) {
	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return nil, fmt.Errorf("failed to convert image: %w", err)
	}
	defer mat.Close()

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(mat, &gray, gocv.ColorBGRToGray)

	d.mu.Lock()
	faces := d.classifier.DetectMultiScaleWithParams(gray,
		DefaultScaleFactor, DefaultMinNeighbors, cascadeScaleImage,
		image.Pt(DefaultMinFaceSize, DefaultMinFaceSize), image.Pt(0, 0))
	d.mu.Unlock()

	offset := img.Bounds().Min
	for i := range faces {
		faces[i] = faces[i].Add(offset)
	}
	return faces, nil
}

// BlurRegions applies a Gaussian blur of kernel size strength to each region.
func (d *CascadeDetector) BlurRegions(img image.Image, regions []image.Rectangle, strength int) (image.Image, error) {
	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return nil, fmt.Errorf("failed to convert image: %w", err)
	}
	defer mat.Close()

	offset := img.Bounds().Min
	for _, r := range regions {
		r = r.Sub(offset).Intersect(image.Rect(0, 0, mat.Cols(), mat.Rows()))
		if r.Empty() {
			continue
		}
		roi := mat.Region(r)
		gocv.GaussianBlur(roi, &roi, image.Pt(strength, strength), 0, 0, gocv.BorderDefault)
		roi.Close()
	}

	return mat.ToImage()
}

// Close releases the classifier.
func (d *CascadeDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.classifier.Close()
}
