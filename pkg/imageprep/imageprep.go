// Package imageprep normalizes uploaded images before they are sent to a
// vision model: any supported format in, a bounded JPEG out.
package imageprep

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/png"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
)

const (
	DefaultMaxSide = 1024
	jpegQuality    = 85
	MIMEJPEG       = "image/jpeg"
)

var ErrEmptyImage = errors.New("empty image")

// Result is a prepared image.
type Result struct {
	Data   []byte
	MIME   string
	Width  int
	Height int
	Format string // formato original detectado
}

// Prepare decodes data, applies EXIF orientation, scales it down so neither
// side exceeds maxSide and re-encodes it as JPEG. Smaller images are not
// upscaled.
func Prepare(data []byte, maxSide int) (Result, error) {
	if len(data) == 0 {
		return Result{}, ErrEmptyImage
	}
	if maxSide <= 0 {
		maxSide = DefaultMaxSide
	}

	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Result{}, fmt.Errorf("unsupported image: %w", err)
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return Result{}, fmt.Errorf("failed to decode image: %w", err)
	}

	b := img.Bounds()
	if b.Dx() > maxSide || b.Dy() > maxSide {
		img = imaging.Fit(img, maxSide, maxSide, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(jpegQuality)); err != nil {
		return Result{}, fmt.Errorf("failed to encode image: %w", err)
	}

	out := img.Bounds()
	return Result{
		Data:   buf.Bytes(),
		MIME:   MIMEJPEG,
		Width:  out.Dx(),
		Height: out.Dy(),
		Format: format,
	}, nil
}
