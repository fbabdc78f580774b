package imaging

import (
	"image"
	"image/draw"

	xdraw "golang.org/x/image/draw"
)

// Resize scales img to w x h with bilinear interpolation.
func Resize(img image.Image, w, h int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.BiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), xdraw.Src, nil)
	return dst
}

// ToRGBA returns img as an RGBA image with its origin at (0,0), copying only when needed.
func ToRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok && rgba.Bounds().Min == (image.Point{}) {
		return rgba
	}
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}

// Clone copies img into a new RGBA image with its origin at (0,0).
func Clone(img image.Image) *image.RGBA {
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}

// ToTensorNHWC resizes img to w x h and returns float32 RGB values in [0,1]
// laid out in NHWC order with shape (1, h, w, 3).
func ToTensorNHWC(img image.Image, w, h int) []float32 {
	rgba := Resize(img, w, h)
	out := make([]float32, h*w*3)

	// iterate rows (y) then columns (x) so memory layout matches NHWC
	for y := 0; y < h; y++ {
		row := rgba.Pix[y*rgba.Stride:]
		for x := 0; x < w; x++ {
			px := row[x*4:]
			base := ((y * w) + x) * 3
			out[base+0] = float32(px[0]) / 255.0
			out[base+1] = float32(px[1]) / 255.0
			out[base+2] = float32(px[2]) / 255.0
		}
	}
	return out
}
