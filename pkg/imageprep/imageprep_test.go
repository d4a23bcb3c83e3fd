package imageprep

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngOf(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{uint8(x), uint8(y), 128, 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestPrepare_Downscales(t *testing.T) {
	res, err := Prepare(pngOf(t, 400, 200), 100)
	require.NoError(t, err)
	assert.Equal(t, MIMEJPEG, res.MIME)
	assert.Equal(t, "png", res.Format)
	assert.Equal(t, 100, res.Width)
	assert.Equal(t, 50, res.Height)

	cfg, format, err := image.DecodeConfig(bytes.NewReader(res.Data))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	assert.Equal(t, 100, cfg.Width)
}

func TestPrepare_NoUpscale(t *testing.T) {
	res, err := Prepare(pngOf(t, 40, 30), 0)
	require.NoError(t, err)
	assert.Equal(t, 40, res.Width)
	assert.Equal(t, 30, res.Height)
}

func TestPrepare_Invalid(t *testing.T) {
	_, err := Prepare(nil, 100)
	assert.ErrorIs(t, err, ErrEmptyImage)

	_, err = Prepare([]byte("not an image"), 100)
	assert.Error(t, err)
}
