package imaging

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestImage(width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{
				R: uint8(x % 256),
				G: uint8(y % 256),
				B: uint8((x + y) % 256),
				A: 255,
			})
		}
	}
	return img
}

func writePNG(t *testing.T, dir, name string, width, height int) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, createTestImage(width, height)))
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0644))
	return path
}

func TestLoad(t *testing.T) {
	path := writePNG(t, t.TempDir(), "src.png", 160, 90)

	img := Load(path)
	require.True(t, img.Valid())
	assert.NoError(t, img.Err())
	assert.Equal(t, 160, img.Width())
	assert.Equal(t, 90, img.Height())
	assert.Equal(t, path, img.SourcePath())
	assert.Equal(t, "png", img.Format())
}

func TestLoadFormatFollowsExtension(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name string
		want string
	}{
		{"photo.jpg", "jpg"},
		{"photo.JPEG", "jpg"},
		{"photo.webp", "png"},
		{"photo", "png"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			img := Load(writePNG(t, dir, tc.name, 32, 32))
			require.True(t, img.Valid())
			assert.Equal(t, tc.want, img.Format())
		})
	}
}

func TestLoadInvalid(t *testing.T) {
	dir := t.TempDir()
	garbage := filepath.Join(dir, "garbage.jpg")
	require.NoError(t, os.WriteFile(garbage, []byte("not an image"), 0644))

	for _, path := range []string{garbage, filepath.Join(dir, "missing.jpg")} {
		img := Load(path)
		assert.False(t, img.Valid())
		assert.Error(t, img.Err())
		assert.Equal(t, 0, img.Width())
		assert.Error(t, img.Scale(10, 10))
		assert.Error(t, img.Convert("png"))
		assert.Error(t, img.Encode(&bytes.Buffer{}))
	}
}

func TestScale(t *testing.T) {
	tests := []struct {
		name         string
		srcW, srcH   int
		boxW, boxH   int
		wantW, wantH int
	}{
		{name: "clip to box", srcW: 1600, srcH: 900, boxW: 500, boxH: 281, wantW: 500, wantH: 281},
		{name: "width only", srcW: 800, srcH: 400, boxW: 600, wantW: 600, wantH: 300},
		{name: "height only", srcW: 800, srcH: 400, boxH: 100, wantW: 200, wantH: 100},
		{name: "height is the tighter bound", srcW: 400, srcH: 400, boxW: 300, boxH: 100, wantW: 100, wantH: 100},
		{name: "never upscale", srcW: 400, srcH: 300, boxW: 1000, boxH: 1000, wantW: 400, wantH: 300},
		{name: "no bounds", srcW: 400, srcH: 300, wantW: 400, wantH: 300},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, png.Encode(&buf, createTestImage(tc.srcW, tc.srcH)))
			img := Decode(&buf, "src.png")
			require.True(t, img.Valid())

			require.NoError(t, img.Scale(tc.boxW, tc.boxH))
			assert.Equal(t, tc.wantW, img.Width())
			assert.Equal(t, tc.wantH, img.Height())
		})
	}
}

func TestScaleRejectsNegative(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, createTestImage(10, 10)))
	img := Decode(&buf, "src.png")
	assert.Error(t, img.Scale(-1, 5))
}

func TestConvertAndEncode(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, createTestImage(64, 48)))
	img := Decode(&buf, "src.png")

	require.NoError(t, img.Convert(".JPEG"))
	assert.Equal(t, "jpg", img.Format())

	var out bytes.Buffer
	require.NoError(t, img.Encode(&out))
	decoded, err := jpeg.Decode(&out)
	require.NoError(t, err)
	assert.Equal(t, 64, decoded.Bounds().Dx())

	for _, ext := range []string{"gif", "bmp", "tif", "png"} {
		require.NoError(t, img.Convert(ext))
		out.Reset()
		require.NoError(t, img.Encode(&out))
		_, format, err := image.Decode(&out)
		require.NoError(t, err, ext)
		assert.NotEmpty(t, format)
	}

	err = img.Convert("webp")
	assert.ErrorIs(t, err, ErrNoEncoder)
	assert.Equal(t, "png", img.Format(), "failed convert keeps the previous format")
}

func TestEncodeDeterministic(t *testing.T) {
	path := writePNG(t, t.TempDir(), "src.png", 300, 200)

	render := func() []byte {
		img := Load(path)
		require.NoError(t, img.Scale(100, 100))
		require.NoError(t, img.Convert("jpg"))
		var out bytes.Buffer
		require.NoError(t, img.Encode(&out))
		return out.Bytes()
	}

	assert.Equal(t, render(), render())
}

func TestOutputExtension(t *testing.T) {
	tests := []struct {
		source, requested string
		want              string
		wantErr           bool
	}{
		{source: "jpg", want: "jpg"},
		{source: "JPEG", want: "jpg"},
		{source: "jpg", requested: "png", want: "png"},
		{source: "webp", want: "png"},
		{source: "jpg", requested: "webp", wantErr: true},
		{source: "tiff", want: "tiff"},
	}

	for _, tc := range tests {
		got, err := OutputExtension(tc.source, tc.requested)
		if tc.wantErr {
			assert.ErrorIs(t, err, ErrNoEncoder)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tc.want, got)
	}
}

func TestDimensions(t *testing.T) {
	dir := t.TempDir()
	path := writePNG(t, dir, "src.png", 123, 45)

	w, h, err := Dimensions(path)
	require.NoError(t, err)
	assert.Equal(t, 123, w)
	assert.Equal(t, 45, h)

	_, _, err = Dimensions(filepath.Join(dir, "missing.png"))
	assert.Error(t, err)
}
