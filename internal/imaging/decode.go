// Package imaging decodes uploaded photos and prepares them for the models
// and for the client response.
package imaging

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"  // register GIF decoder
	_ "image/jpeg" // register JPEG decoder
	_ "image/png"  // register PNG decoder

	_ "golang.org/x/image/bmp"  // register BMP decoder
	_ "golang.org/x/image/webp" // register WEBP decoder

	"github.com/Timvanhoudt/VirtualTeamLeader/internal/errors"
)

// MaxPixels bounds the decoded image area. Phone cameras stay well below it.
const MaxPixels = 50_000_000

// ErrInvalidImage is returned for empty, corrupt or unsupported uploads.
var ErrInvalidImage = errors.NewStd("invalid image")

// Decode decodes JPEG, PNG, GIF, BMP or WEBP bytes. The format name is
// returned alongside the image.
func Decode(data []byte) (image.Image, string, error) {
	if len(data) == 0 {
		return nil, "", decodeError(fmt.Errorf("%w: empty upload", ErrInvalidImage))
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, "", decodeError(fmt.Errorf("%w: %w", ErrInvalidImage, err))
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || cfg.Width*cfg.Height > MaxPixels {
		return nil, "", decodeError(fmt.Errorf("%w: unsupported dimensions %dx%d", ErrInvalidImage, cfg.Width, cfg.Height))
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", decodeError(fmt.Errorf("%w: %w", ErrInvalidImage, err))
	}
	return img, format, nil
}

func decodeError(err error) error {
	return errors.New(err).
		Component("imaging").
		Category(errors.CategoryImageDecode).
		Context("operation", "decode_image").
		Build()
}
