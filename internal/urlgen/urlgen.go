// Package urlgen is the entry point templates use to turn "this image at
// roughly this size" into a signed derivative URL.
package urlgen

import (
	"errors"
	"fmt"
	"path"
	"strings"

	"image-derivatives/internal/bucket"
	"image-derivatives/internal/codec"
	"image-derivatives/internal/imaging"
	"image-derivatives/internal/metrics"
	"image-derivatives/internal/sources"
)

var (
	// ErrInvalidDimension rejects negative widths or heights.
	ErrInvalidDimension = errors.New("dimensions must not be negative")
	// ErrUnsupportedExtension rejects output formats that cannot be written.
	ErrUnsupportedExtension = errors.New("unsupported output extension")
	// ErrBadPath is returned by ParsePath for paths outside the derivative prefix.
	ErrBadPath = errors.New("not a derivative path")
)

// Options is what a caller asks for. Zero dimensions mean "not requested";
// an empty Fit means clip.
type Options struct {
	Width     int
	Height    int
	Extension string
	Fit       codec.Fit
}

// URL is a generated derivative location plus the bucketed size it encodes.
type URL struct {
	Path      string
	Width     *int
	Height    *int
	Extension string
}

// Generator builds derivative URLs. Safe for concurrent use.
type Generator struct {
	catalogue bucket.Catalogue
	codec     *codec.Codec
	prefix    string
}

// New creates a generator emitting /<prefix>/<token>.<ext> paths.
func New(catalogue bucket.Catalogue, c *codec.Codec, prefix string) *Generator {
	return &Generator{
		catalogue: catalogue,
		codec:     c,
		prefix:    strings.Trim(prefix, "/"),
	}
}

// Prefix returns the path prefix without slashes.
func (g *Generator) Prefix() string {
	return g.prefix
}

// Request builds the bucketed transform request for src without sealing it.
func (g *Generator) Request(src sources.Source, opts Options) (codec.TransformRequest, string, error) {
	fit := opts.Fit
	if fit == "" {
		fit = codec.FitClip
	}
	if !fit.Valid() {
		return codec.TransformRequest{}, "", &codec.UnsupportedFitError{Fit: fit}
	}
	if opts.Width < 0 || opts.Height < 0 {
		return codec.TransformRequest{}, "", fmt.Errorf("%w: %dx%d", ErrInvalidDimension, opts.Width, opts.Height)
	}

	ext, err := imaging.OutputExtension(src.Extension, opts.Extension)
	if err != nil {
		return codec.TransformRequest{}, "", fmt.Errorf("%w: %s", ErrUnsupportedExtension, opts.Extension)
	}

	var width, height *int
	if opts.Width > 0 {
		width = &opts.Width
	}
	if opts.Height > 0 {
		height = &opts.Height
	}
	width, height = g.catalogue.Derive(width, height, src.Width, src.Height)

	req := codec.TransformRequest{
		SourceID: src.ID,
		Fit:      fit,
		Width:    width,
		Height:   height,
	}
	if ext != codec.NormalizeExtension(src.Extension) {
		req.Extension = ext
	}
	return req, ext, nil
}

// Generate returns the derivative URL for src.
func (g *Generator) Generate(src sources.Source, opts Options) (URL, error) {
	req, ext, err := g.Request(src, opts)
	if err != nil {
		return URL{}, err
	}

	token, err := g.codec.Encode(req, src.Extension)
	metrics.RecordToken("encode", err)
	if err != nil {
		return URL{}, err
	}

	return URL{
		Path:      "/" + path.Join(g.prefix, token+"."+ext),
		Width:     req.Width,
		Height:    req.Height,
		Extension: ext,
	}, nil
}

// ParsePath splits /<prefix>/<token>.<ext> into token and extension.
func (g *Generator) ParsePath(p string) (token, ext string, err error) {
	rest, ok := strings.CutPrefix(strings.TrimPrefix(p, "/"), g.prefix+"/")
	if !ok {
		return "", "", fmt.Errorf("%w: %s", ErrBadPath, p)
	}
	return SplitFile(rest)
}

// SplitFile splits "<token>.<ext>". Tokens never contain dots.
func SplitFile(file string) (token, ext string, err error) {
	if strings.Contains(file, "/") {
		return "", "", fmt.Errorf("%w: %s", ErrBadPath, file)
	}
	i := strings.LastIndexByte(file, '.')
	if i <= 0 || i == len(file)-1 {
		return "", "", fmt.Errorf("%w: %s", ErrBadPath, file)
	}
	return file[:i], codec.NormalizeExtension(file[i+1:]), nil
}
