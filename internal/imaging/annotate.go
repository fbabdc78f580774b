package imaging

import (
	"fmt"
	"image"
	"image/color"

	"github.com/fogleman/gg"
)

// Box is a labelled detection in pixel coordinates of the source image.
type Box struct {
	Label string
	Score float64
	Rect  image.Rectangle
}

var labelColors = map[string]color.RGBA{
	"hamer":   {R: 220, G: 38, B: 38, A: 255},
	"schaar":  {R: 37, G: 99, B: 235, A: 255},
	"sleutel": {R: 22, G: 163, B: 74, A: 255},
}

var defaultBoxColor = color.RGBA{R: 234, G: 179, B: 8, A: 255}

// Annotate draws the boxes with their label and score onto a copy of img.
func Annotate(img image.Image, boxes []Box) image.Image {
	dc := gg.NewContextForImage(ToRGBA(img))
	offset := img.Bounds().Min

	lineWidth := float64(img.Bounds().Dx()) / 300
	if lineWidth < 2 {
		lineWidth = 2
	}

	for _, b := range boxes {
		c, ok := labelColors[b.Label]
		if !ok {
			c = defaultBoxColor
		}
		r := b.Rect.Sub(offset)

		dc.SetColor(c)
		dc.SetLineWidth(lineWidth)
		dc.DrawRectangle(float64(r.Min.X), float64(r.Min.Y), float64(r.Dx()), float64(r.Dy()))
		dc.Stroke()

		text := fmt.Sprintf("%s %.0f%%", b.Label, b.Score*100)
		tw, th := dc.MeasureString(text)
		ty := float64(r.Min.Y) - th - 4
		if ty < 0 {
			ty = float64(r.Min.Y)
		}
		dc.DrawRectangle(float64(r.Min.X), ty, tw+8, th+4)
		dc.Fill()

		dc.SetColor(color.White)
		dc.DrawStringAnchored(text, float64(r.Min.X)+4, ty+2, 0, 1)
	}

	return dc.Image()
}
