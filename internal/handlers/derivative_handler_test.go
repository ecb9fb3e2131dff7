package handlers

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"image-derivatives/internal/bucket"
	"image-derivatives/internal/cache"
	"image-derivatives/internal/codec"
	"image-derivatives/internal/derivative"
	"image-derivatives/internal/models"
	"image-derivatives/internal/pool"
	"image-derivatives/internal/sources"
	"image-derivatives/internal/store"
	"image-derivatives/internal/urlgen"
)

const (
	sourceID  = "6f1c2a4e-8d3b-4c5a-9e7f-0a1b2c3d4e5f"
	missingID = "0b7d9a52-1c3e-4f6a-8b9c-d0e1f2a3b4c5"
)

type fixture struct {
	app   *fiber.App
	codec *codec.Codec
	urls  *urlgen.Generator
	root  string
}

func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	originals := filepath.Join(dir, "originals")
	derivatives := filepath.Join(dir, "derivatives")
	writePNG(t, filepath.Join(originals, "photos", "a.png"), 160, 90)

	registry, err := sources.New(originals, map[string]string{sourceID: "photos/a.png"})
	require.NoError(t, err)

	pub, priv, err := codec.GenerateKeyPair(codec.SchemeAge)
	require.NoError(t, err)
	c, err := codec.New(codec.SchemeAge, pub, priv)
	require.NoError(t, err)

	tokens, err := cache.NewTokenCache(16)
	require.NoError(t, err)

	workers := pool.NewWorkerPool(2)
	require.NoError(t, workers.Start())
	t.Cleanup(workers.Stop)

	buffers := pool.NewBufferPool(2, 1024)
	fs := store.NewLocal()
	urls := urlgen.New(bucket.Default(), c, "derivatives")

	h := NewDerivativeHandler(Deps{
		Sources:    registry,
		Codec:      c,
		Tokens:     tokens,
		URLs:       urls,
		Generator:  derivative.NewGenerator(derivatives, registry.Root(), fs, buffers),
		Store:      fs,
		WorkerPool: workers,
		BufferPool: buffers,
	}, 10*time.Second)

	app := fiber.New()
	app.Get("/derivatives/:file", h.Serve)
	app.Post("/api/urls", h.CreateURL)
	app.Get("/api/health", h.Health)

	return &fixture{app: app, codec: c, urls: urls, root: derivatives}
}

func (f *fixture) get(t *testing.T, path string) *http.Response {
	t.Helper()
	resp, err := f.app.Test(httptest.NewRequest(http.MethodGet, path, nil))
	require.NoError(t, err)
	return resp
}

func (f *fixture) post(t *testing.T, body string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/urls", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := f.app.Test(req)
	require.NoError(t, err)
	return resp
}

func (f *fixture) urlFor(t *testing.T, opts urlgen.Options) string {
	t.Helper()
	src := sources.Source{ID: sourceID, Extension: "png", Width: 160, Height: 90}
	u, err := f.urls.Generate(src, opts)
	require.NoError(t, err)
	return u.Path
}

func TestServeGeneratesThenServesExisting(t *testing.T) {
	f := newFixture(t)
	path := f.urlFor(t, urlgen.Options{Width: 100})

	for i := 0; i < 2; i++ {
		resp := f.get(t, path)
		require.Equal(t, fiber.StatusOK, resp.StatusCode)
		assert.Contains(t, resp.Header.Get("Cache-Control"), "immutable")

		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		cfg, err := png.DecodeConfig(bytes.NewReader(body))
		require.NoError(t, err)
		assert.LessOrEqual(t, cfg.Width, 100)
		assert.LessOrEqual(t, cfg.Height, 56)
		assert.Positive(t, cfg.Width)
	}

	_, err := os.Stat(filepath.Join(f.root, "clip", "100x56", "photos", "a.png"))
	assert.NoError(t, err)
}

func TestServeConvertsFormat(t *testing.T) {
	f := newFixture(t)
	path := f.urlFor(t, urlgen.Options{Extension: "jpg"})
	require.True(t, strings.HasSuffix(path, ".jpg"))

	resp := f.get(t, path)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	_, format, err := image.DecodeConfig(bytes.NewReader(body))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
}

func TestServeNotFound(t *testing.T) {
	f := newFixture(t)
	valid := f.urlFor(t, urlgen.Options{Width: 44})
	token := strings.TrimSuffix(strings.TrimPrefix(valid, "/derivatives/"), ".png")

	tampered := "A" + token[1:]
	if token[0] == 'A' {
		tampered = "B" + token[1:]
	}

	foreign, err := f.codec.Encode(codec.TransformRequest{SourceID: missingID, Fit: codec.FitClip}, "png")
	require.NoError(t, err)

	tests := []struct {
		name string
		path string
	}{
		{"garbage token", "/derivatives/not-a-token.png"},
		{"tampered token", "/derivatives/" + tampered + ".png"},
		{"extension mismatch", "/derivatives/" + token + ".jpg"},
		{"no extension", "/derivatives/" + token},
		{"unknown source", "/derivatives/" + foreign + ".png"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			resp := f.get(t, tc.path)
			assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

			var body models.ErrorResponse
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			assert.False(t, body.Success)
			assert.Empty(t, body.Details)
		})
	}
}

func TestCreateURL(t *testing.T) {
	f := newFixture(t)

	resp := f.post(t, `{"source_id":"`+sourceID+`","width":700}`)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body models.URLResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.True(t, body.Success)
	assert.True(t, strings.HasPrefix(body.URL, "/derivatives/"))
	assert.Equal(t, "png", body.Extension)
	require.NotNil(t, body.Width)
	require.NotNil(t, body.Height)
	assert.Equal(t, 500, *body.Width)
	assert.Equal(t, 281, *body.Height)

	served := f.get(t, body.URL)
	assert.Equal(t, fiber.StatusOK, served.StatusCode)
}

func TestCreateURLErrors(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"invalid json", `{"source_id":`, fiber.StatusBadRequest},
		{"missing source id", `{"width":100}`, fiber.StatusBadRequest},
		{"unknown source", `{"source_id":"` + missingID + `"}`, fiber.StatusNotFound},
		{"unsupported fit", `{"source_id":"` + sourceID + `","fit":"crop"}`, fiber.StatusBadRequest},
		{"negative width", `{"source_id":"` + sourceID + `","width":-5}`, fiber.StatusBadRequest},
		{"unwritable extension", `{"source_id":"` + sourceID + `","extension":"webp"}`, fiber.StatusBadRequest},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			resp := f.post(t, tc.body)
			assert.Equal(t, tc.want, resp.StatusCode)
		})
	}
}

func TestHealth(t *testing.T) {
	f := newFixture(t)

	resp := f.get(t, "/api/health")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body models.HealthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "healthy", body.Status)
	assert.Equal(t, "age", body.KeyScheme)
	assert.Equal(t, 1, body.Sources)
	assert.Equal(t, true, body.TokenCache["enabled"])
}
