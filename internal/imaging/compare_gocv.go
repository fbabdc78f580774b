//go:build gocv

package imaging

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

// Compare finds the regions where test differs from reference. Both images
// are scaled to the smaller common size before a blurred absolute difference
// is thresholded into contours.
func Compare(reference, test image.Image) (*CompareResult, error) {
	refMat, err := toBoundedMat(reference)
	if err != nil {
		return nil, err
	}
	defer refMat.Close()

	testMat, err := toBoundedMat(test)
	if err != nil {
		return nil, err
	}
	defer testMat.Close()

	w := min(refMat.Cols(), testMat.Cols())
	h := min(refMat.Rows(), testMat.Rows())
	resizeTo(&refMat, w, h)
	resizeTo(&testMat, w, h)

	refGray := gocv.NewMat()
	defer refGray.Close()
	gocv.CvtColor(refMat, &refGray, gocv.ColorBGRToGray)

	testGray := gocv.NewMat()
	defer testGray.Close()
	gocv.CvtColor(testMat, &testGray, gocv.ColorBGRToGray)

	diff := gocv.NewMat()
	defer diff.Close()
	gocv.AbsDiff(refGray, testGray, &diff)

	blur := gocv.NewMat()
	defer blur.Close()
	gocv.GaussianBlur(diff, &blur, image.Pt(5, 5), 0, 0, gocv.BorderDefault)

	thresh := gocv.NewMat()
	defer thresh.Close()
	gocv.Threshold(blur, &thresh, compareDiffLevel, 255, gocv.ThresholdBinary)

	contours := gocv.FindContours(thresh, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	minArea := int(float64(w*h) * compareMinAreaRatio)
	regions := make([]image.Rectangle, 0, contours.Size())
	for i := 0; i < contours.Size(); i++ {
		rect := gocv.BoundingRect(contours.At(i))
		if rect.Dx()*rect.Dy() < minArea {
			continue
		}
		regions = append(regions, rect)
	}

	return &CompareResult{Width: w, Height: h, Regions: regions, Changed: len(regions) > 0}, nil
}

func toBoundedMat(img image.Image) (gocv.Mat, error) {
	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return gocv.NewMat(), fmt.Errorf("failed to convert image: %w", err)
	}
	if mat.Empty() {
		mat.Close()
		return gocv.NewMat(), ErrInvalidImage
	}
	if side := max(mat.Cols(), mat.Rows()); side > compareMaxSide {
		scale := float64(compareMaxSide) / float64(side)
		resizeTo(&mat, int(float64(mat.Cols())*scale), int(float64(mat.Rows())*scale))
	}
	return mat, nil
}

func resizeTo(mat *gocv.Mat, w, h int) {
	if mat.Cols() == w && mat.Rows() == h {
		return
	}
	resized := gocv.NewMat()
	gocv.Resize(*mat, &resized, image.Pt(w, h), 0, 0, gocv.InterpolationArea)
	mat.Close()
	*mat = resized
}
