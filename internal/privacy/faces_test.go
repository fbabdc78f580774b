package privacy

import (
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Timvanhoudt/VirtualTeamLeader/internal/logger"
)

type fakeDetector struct {
	faces []image.Rectangle
	err   error
	calls int
}

func (f *fakeDetector) DetectFaces(image.Image) ([]image.Rectangle, error) {
	f.calls++
	return f.faces, f.err
}

func stripes(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := uint8(0)
			if x%2 == 0 {
				v = 255
			}
			img.SetRGBA(x, y, color.RGBA{R: v, G: v, B: v, A: 255})
		}
	}
	return img
}

func TestFilter_NoFaces(t *testing.T) {
	t.Parallel()

	img := stripes(64, 64)
	f := NewFilter(&fakeDetector{}, Options{}, logger.NewNopLogger())
	res := f.Check(img, true)

	assert.Zero(t, res.FaceCount)
	assert.False(t, res.Blurred)
	assert.Same(t, img, res.Image)
	assert.NoError(t, res.DetectorErr)
}

func TestFilter_DetectorErrorMeansZeroFaces(t *testing.T) {
	t.Parallel()

	boom := errors.New("cascade exploded")
	f := NewFilter(&fakeDetector{err: boom}, Options{}, logger.NewNopLogger())
	res := f.Check(stripes(32, 32), false)

	assert.Zero(t, res.FaceCount)
	assert.ErrorIs(t, res.DetectorErr, boom)
}

func TestFilter_StubDetectorDegrades(t *testing.T) {
	t.Parallel()

	det, err := NewCascadeDetector("data/haarcascade_frontalface_default.xml")
	if err != nil {
		t.Skipf("cascade not available: %v", err)
	}
	t.Cleanup(func() { _ = det.Close() })

	// A flat image never contains a face, with or without OpenCV
	res := NewFilter(det, Options{}, logger.NewNopLogger()).Check(stripes(64, 64), false)
	assert.Zero(t, res.FaceCount)
}

func TestFilter_BlursPaddedFaceOnCopy(t *testing.T) {
	t.Parallel()

	img := stripes(100, 100)
	face := image.Rect(40, 40, 60, 60)
	det := &fakeDetector{faces: []image.Rectangle{face}}
	f := NewFilter(det, Options{BlurStrength: 12, Padding: 10}, logger.NewNopLogger())

	res := f.Check(img, true)
	require.Equal(t, 1, res.FaceCount)
	require.True(t, res.Blurred)

	out, ok := res.Image.(*image.RGBA)
	require.True(t, ok)

	// Inside the face the stripes are smoothed
	c := out.RGBAAt(50, 50)
	assert.Greater(t, c.R, uint8(40))
	assert.Less(t, c.R, uint8(215))
	// Padding is blurred too
	p := out.RGBAAt(34, 50)
	assert.Greater(t, p.R, uint8(40))
	assert.Less(t, p.R, uint8(215))
	// Far outside stays sharp
	assert.Equal(t, uint8(255), out.RGBAAt(10, 10).R)
	// The caller's image is untouched
	assert.Equal(t, uint8(255), img.RGBAAt(50, 50).R)
}

func TestFilter_CountWithoutBlur(t *testing.T) {
	t.Parallel()

	img := stripes(50, 50)
	det := &fakeDetector{faces: []image.Rectangle{image.Rect(1, 1, 20, 20), image.Rect(25, 25, 45, 45)}}
	res := NewFilter(det, Options{}, logger.NewNopLogger()).Check(img, false)

	assert.Equal(t, 2, res.FaceCount)
	assert.False(t, res.Blurred)
	assert.Same(t, img, res.Image)
	assert.Equal(t,
		"Photo rejected: 2 face(s) detected. Privacy required - remove people from the frame.",
		RejectionMessage(res.FaceCount))
}

func TestFilter_NilDetector(t *testing.T) {
	t.Parallel()

	res := NewFilter(nil, Options{}, logger.NewNopLogger()).BlurPreview(stripes(8, 8))
	assert.Zero(t, res.FaceCount)
}
