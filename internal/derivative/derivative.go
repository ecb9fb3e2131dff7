// Package derivative renders a decoded transform request against a source
// image and stores the result at a path derived only from the bucketed
// parameters, so every token that buckets the same way shares one file.
//
// Concurrent requests for the same missing derivative all render it; the
// store's create-or-fail write decides which copy lands; the others observe
// the finished file and report success without having written it.
package derivative

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"image-derivatives/internal/codec"
	"image-derivatives/internal/metrics"
	"image-derivatives/internal/pool"
	"image-derivatives/internal/store"
)

// Image is the image manipulation capability a derivative is rendered with.
type Image interface {
	Valid() bool
	Width() int
	Height() int
	SourcePath() string
	// Scale fits the image inside width x height; 0 leaves a side free.
	Scale(width, height int) error
	Convert(extension string) error
	Encode(w io.Writer) error
}

// ErrSourceImageInvalid is returned when the source could not be read.
var ErrSourceImageInvalid = errors.New("source image is missing or corrupt")

// DirectoryCreationError reports a failure to create the destination directory.
type DirectoryCreationError struct {
	Dir string
	Err error
}

func (e *DirectoryCreationError) Error() string {
	return fmt.Sprintf("creating derivative directory %s: %v", e.Dir, e.Err)
}

func (e *DirectoryCreationError) Unwrap() error {
	return e.Err
}

// WriteError reports a failure to persist a derivative when no file ended up
// at the destination.
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("writing derivative %s: %v", e.Path, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

// Result describes where a derivative lives. Created is false when another
// writer produced the file first.
type Result struct {
	Path    string
	Created bool
}

// Generator renders and stores derivatives under a dedicated root.
type Generator struct {
	root          string
	originalsRoot string
	store         store.FileStore
	buffers       *pool.BufferPool
}

// NewGenerator creates a generator writing below root. Destination paths
// mirror each source's location relative to originalsRoot. buffers may be nil.
func NewGenerator(root, originalsRoot string, fs store.FileStore, buffers *pool.BufferPool) *Generator {
	return &Generator{
		root:          filepath.Clean(root),
		originalsRoot: filepath.Clean(originalsRoot),
		store:         fs,
		buffers:       buffers,
	}
}

// Root returns the derivative root directory.
func (g *Generator) Root() string {
	return g.root
}

// Apply performs the requested transforms on img: scale when a dimension is
// present, format conversion when an extension is present.
func Apply(img Image, req codec.TransformRequest) error {
	if req.HasSize() {
		var w, h int
		if req.Width != nil {
			w = *req.Width
		}
		if req.Height != nil {
			h = *req.Height
		}
		if err := img.Scale(w, h); err != nil {
			return fmt.Errorf("scaling to %dx%d: %w", w, h, err)
		}
	}
	if req.Extension != "" {
		if err := img.Convert(req.Extension); err != nil {
			return fmt.Errorf("converting to %s: %w", req.Extension, err)
		}
	}
	return nil
}

// DestinationPath returns root/<fit>/<size>/<source path relative to the
// originals root>, with the output extension appended when it differs from
// the source's. Sources outside the originals root are filed under their id.
func (g *Generator) DestinationPath(req codec.TransformRequest, sourcePath string) string {
	rel, err := filepath.Rel(g.originalsRoot, sourcePath)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		rel = filepath.Join(req.SourceID, filepath.Base(sourcePath))
	}

	if ext := codec.NormalizeExtension(req.Extension); ext != "" && ext != codec.NormalizeExtension(filepath.Ext(rel)) {
		rel += "." + ext
	}

	return filepath.Join(g.root, string(req.Fit), sizeSegment(req), rel)
}

func sizeSegment(req codec.TransformRequest) string {
	if !req.HasSize() {
		return "original"
	}
	var b strings.Builder
	if req.Width != nil {
		b.WriteString(strconv.Itoa(*req.Width))
	}
	b.WriteByte('x')
	if req.Height != nil {
		b.WriteString(strconv.Itoa(*req.Height))
	}
	return b.String()
}

// Generate renders req from img and stores it. Losing a write race to an
// identical derivative is not an error: the result carries Created false.
func (g *Generator) Generate(ctx context.Context, img Image, req codec.TransformRequest) (Result, error) {
	start := time.Now()
	format := codec.NormalizeExtension(req.Extension)
	if format == "" {
		format = codec.NormalizeExtension(filepath.Ext(img.SourcePath()))
	}

	if !img.Valid() {
		metrics.RecordGenerate(metrics.OutcomeInvalid, format, 0)
		return Result{}, fmt.Errorf("%w: %s", ErrSourceImageInvalid, img.SourcePath())
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	path := g.DestinationPath(req, img.SourcePath())
	dir := filepath.Dir(path)
	if err := g.store.MkdirAll(dir); err != nil {
		log.Error().Err(err).Str("dir", dir).Msg("could not create derivative directory")
		metrics.RecordGenerate(metrics.OutcomeMkdir, format, 0)
		return Result{}, &DirectoryCreationError{Dir: dir, Err: err}
	}

	if err := Apply(img, req); err != nil {
		metrics.RecordGenerate(metrics.OutcomeApply, format, 0)
		return Result{}, err
	}

	buf := g.getBuffer()
	defer g.putBuffer(buf)

	if err := img.Encode(buf); err != nil {
		log.Error().Err(err).Str("path", path).Msg("could not encode derivative")
		metrics.RecordGenerate(metrics.OutcomeWrite, format, 0)
		return Result{}, &WriteError{Path: path, Err: err}
	}

	if err := g.store.WriteNew(path, buf.Bytes()); err != nil {
		if g.store.Exists(path) {
			log.Warn().Str("path", path).Str("source", req.SourceID).Msg("derivative already written by a concurrent request")
			metrics.RecordGenerate(metrics.OutcomeRaced, format, time.Since(start).Seconds())
			return Result{Path: path, Created: false}, nil
		}
		log.Error().Err(err).Str("path", path).Msg("could not write derivative")
		metrics.RecordGenerate(metrics.OutcomeWrite, format, 0)
		return Result{}, &WriteError{Path: path, Err: err}
	}

	log.Debug().
		Str("path", path).
		Int("bytes", buf.Len()).
		Dur("took", time.Since(start)).
		Msg("derivative created")
	metrics.RecordGenerate(metrics.OutcomeCreated, format, time.Since(start).Seconds())

	return Result{Path: path, Created: true}, nil
}

func (g *Generator) getBuffer() *bytes.Buffer {
	if g.buffers == nil {
		return &bytes.Buffer{}
	}
	return g.buffers.Get()
}

func (g *Generator) putBuffer(buf *bytes.Buffer) {
	if g.buffers != nil {
		g.buffers.Put(buf)
	}
}
