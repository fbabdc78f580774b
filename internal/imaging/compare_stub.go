//go:build !gocv

package imaging

import "image"

// Compare is unavailable without the gocv build tag.
func Compare(reference, test image.Image) (*CompareResult, error) {
	_, _ = reference, test
	return nil, ErrCompareUnavailable
}
