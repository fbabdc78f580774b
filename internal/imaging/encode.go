package imaging

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/jpeg"

	"github.com/Timvanhoudt/VirtualTeamLeader/internal/errors"
)

// DefaultJPEGQuality is used when no quality is configured.
const DefaultJPEGQuality = 90

// EncodeJPEG encodes img as JPEG. Quality outside 1..100 falls back to DefaultJPEGQuality.
func EncodeJPEG(img image.Image, quality int) ([]byte, error) {
	if quality < 1 || quality > 100 {
		quality = DefaultJPEGQuality
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, errors.New(err).
			Component("imaging").
			Category(errors.CategoryFileIO).
			Context("operation", "encode_jpeg").
			Build()
	}
	return buf.Bytes(), nil
}

// DataURL wraps JPEG bytes as a data URL for inline display.
func DataURL(jpegBytes []byte) string {
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(jpegBytes)
}
