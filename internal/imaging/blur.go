package imaging

import (
	"image"
)

// BoxBlur blurs the rectangle r of img in place with a box filter of the
// given radius, applied three times to approximate a Gaussian.
func BoxBlur(img *image.RGBA, r image.Rectangle, radius int) {
	r = r.Intersect(img.Bounds())
	if r.Empty() || radius < 1 {
		return
	}
	for range 3 {
		blurPass(img, r, radius, true)
		blurPass(img, r, radius, false)
	}
}

func blurPass(img *image.RGBA, r image.Rectangle, radius int, horizontal bool) {
	outer, inner := r.Dy(), r.Dx()
	if !horizontal {
		outer, inner = inner, outer
	}
	line := make([]uint8, inner*4)

	for o := 0; o < outer; o++ {
		at := func(i int) int {
			if horizontal {
				return img.PixOffset(r.Min.X+i, r.Min.Y+o)
			}
			return img.PixOffset(r.Min.X+o, r.Min.Y+i)
		}

		for i := 0; i < inner; i++ {
			var sum [4]int
			n := 0
			for k := i - radius; k <= i+radius; k++ {
				if k < 0 || k >= inner {
					continue
				}
				p := at(k)
				for c := 0; c < 4; c++ {
					sum[c] += int(img.Pix[p+c])
				}
				n++
			}
			for c := 0; c < 4; c++ {
				line[i*4+c] = uint8(sum[c] / n)
			}
		}

		for i := 0; i < inner; i++ {
			copy(img.Pix[at(i):at(i)+4], line[i*4:i*4+4])
		}
	}
}

// PadRect grows r by pad pixels on every side, clamped to bounds.
func PadRect(r image.Rectangle, pad int, bounds image.Rectangle) image.Rectangle {
	return image.Rect(r.Min.X-pad, r.Min.Y-pad, r.Max.X+pad, r.Max.Y+pad).Intersect(bounds)
}
