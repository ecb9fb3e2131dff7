// Package imaging is the in-process image capability derivatives are built
// with. Decoding covers the standard library formats plus WebP, BMP and TIFF;
// scaling uses Catmull-Rom resampling. No cgo.
package imaging

import (
	"errors"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"math"
	"os"
	"path/filepath"

	"golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	"golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"image-derivatives/internal/codec"
)

// JPEGQuality is used for every JPEG derivative.
const JPEGQuality = 90

// ErrNoEncoder is returned for output formats that can be read but not written.
var ErrNoEncoder = errors.New("no encoder for format")

type encoder func(w io.Writer, m image.Image) error

var encoders = map[string]encoder{
	"jpg": func(w io.Writer, m image.Image) error {
		return jpeg.Encode(w, m, &jpeg.Options{Quality: JPEGQuality})
	},
	"png": png.Encode,
	"gif": func(w io.Writer, m image.Image) error {
		return gif.Encode(w, m, nil)
	},
	"bmp": bmp.Encode,
	"tif": func(w io.Writer, m image.Image) error {
		return tiff.Encode(w, m, &tiff.Options{Compression: tiff.Deflate})
	},
}

func init() {
	encoders["tiff"] = encoders["tif"]
}

// CanEncode reports whether derivatives can be written as ext.
func CanEncode(ext string) bool {
	_, ok := encoders[codec.NormalizeExtension(ext)]
	return ok
}

// OutputExtension resolves the extension a derivative will be written with:
// the requested one if any, otherwise the source's own, falling back to png
// for sources that can be decoded but not encoded (webp).
func OutputExtension(sourceExt, requested string) (string, error) {
	if requested = codec.NormalizeExtension(requested); requested != "" {
		if !CanEncode(requested) {
			return "", fmt.Errorf("%w: %s", ErrNoEncoder, requested)
		}
		return requested, nil
	}
	sourceExt = codec.NormalizeExtension(sourceExt)
	if CanEncode(sourceExt) {
		return sourceExt, nil
	}
	return "png", nil
}

// Dimensions reads only the header of the image at path.
func Dimensions(path string) (int, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0, fmt.Errorf("reading image header %s: %w", path, err)
	}
	return cfg.Width, cfg.Height, nil
}

// Image is a decoded source image plus the pending output format. An Image
// that failed to load reports !Valid and refuses every operation.
type Image struct {
	path   string
	img    image.Image
	format string
	err    error
}

// Load decodes the image at path. Failures are recorded on the returned
// Image rather than returned, so callers check Valid.
func Load(path string) *Image {
	f, err := os.Open(path)
	if err != nil {
		return &Image{path: path, err: err}
	}
	defer f.Close()

	return Decode(f, path)
}

// Decode reads an image from r. The output format follows the extension of
// path, since derivative URLs and file names are derived from it; the sniffed
// format is only used when path has no extension.
func Decode(r io.Reader, path string) *Image {
	img, format, err := image.Decode(r)
	if err != nil {
		return &Image{path: path, err: fmt.Errorf("decoding %s: %w", path, err)}
	}

	if ext := filepath.Ext(path); ext != "" {
		format = ext
	}
	out, _ := OutputExtension(format, "")
	return &Image{path: path, img: img, format: out}
}

func (i *Image) Valid() bool {
	return i.err == nil && i.img != nil
}

// Err returns why the image is invalid, or nil.
func (i *Image) Err() error {
	return i.err
}

func (i *Image) Width() int {
	if !i.Valid() {
		return 0
	}
	return i.img.Bounds().Dx()
}

func (i *Image) Height() int {
	if !i.Valid() {
		return 0
	}
	return i.img.Bounds().Dy()
}

func (i *Image) SourcePath() string {
	return i.path
}

// Format returns the extension Encode will write.
func (i *Image) Format() string {
	return i.format
}

// Scale shrinks the image to fit inside width x height keeping its aspect
// ratio. A zero bound leaves that side unconstrained. Images are never
// enlarged and never cropped.
func (i *Image) Scale(width, height int) error {
	if !i.Valid() {
		return i.invalid()
	}
	if width < 0 || height < 0 {
		return fmt.Errorf("invalid scale bounds %dx%d", width, height)
	}
	if width == 0 && height == 0 {
		return nil
	}

	srcW, srcH := i.Width(), i.Height()
	factor := math.Inf(1)
	if width > 0 {
		factor = float64(width) / float64(srcW)
	}
	if height > 0 {
		factor = math.Min(factor, float64(height)/float64(srcH))
	}
	if factor >= 1 {
		return nil
	}

	dstW := max(1, int(math.Round(float64(srcW)*factor)))
	dstH := max(1, int(math.Round(float64(srcH)*factor)))

	dst := image.NewRGBA(image.Rect(0, 0, dstW, dstH))
	draw.CatmullRom.Scale(dst, dst.Bounds(), i.img, i.img.Bounds(), draw.Over, nil)
	i.img = dst
	return nil
}

// Convert sets the output format.
func (i *Image) Convert(ext string) error {
	if !i.Valid() {
		return i.invalid()
	}
	ext = codec.NormalizeExtension(ext)
	if !CanEncode(ext) {
		return fmt.Errorf("%w: %s", ErrNoEncoder, ext)
	}
	i.format = ext
	return nil
}

// Encode writes the image in its output format.
func (i *Image) Encode(w io.Writer) error {
	if !i.Valid() {
		return i.invalid()
	}
	return encoders[i.format](w, i.img)
}

func (i *Image) invalid() error {
	if i.err != nil {
		return fmt.Errorf("image %s is invalid: %w", i.path, i.err)
	}
	return fmt.Errorf("image %s is invalid", i.path)
}
