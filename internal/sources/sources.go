// Package sources maps source ids to original image files. It stands in for
// the entity storage that owns originals: a YAML manifest of id and path
// pairs, with dimensions read from the image headers on demand.
package sources

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"image-derivatives/internal/codec"
	"image-derivatives/internal/imaging"
)

// ErrNotFound is returned for ids the registry does not know.
var ErrNotFound = errors.New("source image not found")

// Source describes one original image.
type Source struct {
	ID        string
	Path      string // absolute path on disk
	RelPath   string // path relative to the originals root
	Extension string // normalised, without the dot
	// Width and Height are 0 when the header could not be read.
	Width  int
	Height int
}

type manifestEntry struct {
	ID   string `yaml:"id"`
	Path string `yaml:"path"`
}

type manifest struct {
	Sources []manifestEntry `yaml:"sources"`
}

// Registry is an immutable id to file index.
type Registry struct {
	root    string
	entries map[string]string // id -> relative path
}

// New builds a registry from id to relative path pairs under root.
func New(root string, entries map[string]string) (*Registry, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving originals root %s: %w", root, err)
	}

	r := &Registry{root: absRoot, entries: make(map[string]string, len(entries))}
	for id, rel := range entries {
		if err := r.add(id, rel); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Load reads a YAML manifest of the form
//
//	sources:
//	  - id: 6f1c2a4e-8d3b-4c5a-9e7f-0a1b2c3d4e5f
//	    path: articles/2024/cover.jpg
func Load(manifestPath, root string) (*Registry, error) {
	data, err := os.ReadFile(manifestPath)
	if err != nil {
		return nil, fmt.Errorf("reading sources manifest %s: %w", manifestPath, err)
	}

	var m manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing sources manifest %s: %w", manifestPath, err)
	}

	r, err := New(root, nil)
	if err != nil {
		return nil, err
	}
	for _, e := range m.Sources {
		if err := r.add(e.ID, e.Path); err != nil {
			return nil, fmt.Errorf("sources manifest %s: %w", manifestPath, err)
		}
	}

	log.Info().Int("sources", len(r.entries)).Str("root", r.root).Msg("loaded sources manifest")
	return r, nil
}

func (r *Registry) add(id, rel string) error {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return fmt.Errorf("source id %q: %w", id, err)
	}
	id = parsed.String()

	if _, dup := r.entries[id]; dup {
		return fmt.Errorf("duplicate source id %s", id)
	}

	rel = filepath.Clean(filepath.FromSlash(rel))
	if rel == "." || filepath.IsAbs(rel) || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("source %s: path %q must be relative to the originals root", id, rel)
	}

	r.entries[id] = rel
	return nil
}

// Root returns the absolute originals root.
func (r *Registry) Root() string {
	return r.root
}

// Len returns the number of registered sources.
func (r *Registry) Len() int {
	return len(r.entries)
}

// Lookup resolves id. Missing files are not an error here; dimensions are
// simply left at 0.
func (r *Registry) Lookup(id string) (Source, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return Source{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	id = parsed.String()

	rel, ok := r.entries[id]
	if !ok {
		return Source{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	src := Source{
		ID:        id,
		Path:      filepath.Join(r.root, rel),
		RelPath:   rel,
		Extension: codec.NormalizeExtension(filepath.Ext(rel)),
	}

	w, h, err := imaging.Dimensions(src.Path)
	if err != nil {
		log.Debug().Err(err).Str("source", id).Msg("source dimensions unavailable")
		return src, nil
	}
	src.Width, src.Height = w, h
	return src, nil
}
