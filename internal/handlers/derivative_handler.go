package handlers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/rs/zerolog/log"

	"image-derivatives/internal/cache"
	"image-derivatives/internal/codec"
	"image-derivatives/internal/derivative"
	"image-derivatives/internal/imaging"
	"image-derivatives/internal/metrics"
	"image-derivatives/internal/models"
	"image-derivatives/internal/pool"
	"image-derivatives/internal/sources"
	"image-derivatives/internal/store"
	"image-derivatives/internal/urlgen"
)

// DerivativeHandler serves derivative images and hands out their URLs
type DerivativeHandler struct {
	sources        *sources.Registry
	codec          *codec.Codec
	tokens         *cache.TokenCache
	urls           *urlgen.Generator
	generator      *derivative.Generator
	store          store.FileStore
	workerPool     *pool.WorkerPool
	bufferPool     *pool.BufferPool
	requestTimeout time.Duration
}

// Deps groups the collaborators a DerivativeHandler needs
type Deps struct {
	Sources    *sources.Registry
	Codec      *codec.Codec
	Tokens     *cache.TokenCache
	URLs       *urlgen.Generator
	Generator  *derivative.Generator
	Store      store.FileStore
	WorkerPool *pool.WorkerPool
	BufferPool *pool.BufferPool
}

// NewDerivativeHandler creates a new derivative handler
func NewDerivativeHandler(deps Deps, requestTimeout time.Duration) *DerivativeHandler {
	if requestTimeout <= 0 {
		requestTimeout = time.Minute
	}

	return &DerivativeHandler{
		sources:        deps.Sources,
		codec:          deps.Codec,
		tokens:         deps.Tokens,
		urls:           deps.URLs,
		generator:      deps.Generator,
		store:          deps.Store,
		workerPool:     deps.WorkerPool,
		bufferPool:     deps.BufferPool,
		requestTimeout: requestTimeout,
	}
}

// Serve handles GET /<prefix>/:file
func (h *DerivativeHandler) Serve(c fiber.Ctx) error {
	start := time.Now()

	token, ext, err := urlgen.SplitFile(c.Params("file"))
	if err != nil {
		return h.fail(c, err)
	}

	req, err := h.tokens.Decode(h.codec, token)
	metrics.RecordToken("decode", err)
	if err != nil {
		log.Debug().Err(err).Msg("rejected derivative token")
		return h.fail(c, err)
	}

	src, err := h.sources.Lookup(req.SourceID)
	if err != nil {
		return h.fail(c, err)
	}

	want := req.Extension
	if want == "" {
		want, _ = imaging.OutputExtension(src.Extension, "")
		if want != src.Extension {
			req.Extension = want
		}
	}
	if ext != want {
		return h.fail(c, fmt.Errorf("%w: extension %s does not match token", urlgen.ErrBadPath, ext))
	}

	path := h.generator.DestinationPath(req, src.Path)
	if h.store.Exists(path) {
		metrics.RecordServed(true)
		return h.sendFile(c, path)
	}
	metrics.RecordServed(false)

	ctx, cancel := context.WithTimeout(context.Background(), h.requestTimeout)
	defer cancel()

	var result derivative.Result
	err = h.workerPool.Do(ctx, func(ctx context.Context) error {
		img := imaging.Load(src.Path)
		if !img.Valid() {
			log.Warn().Err(img.Err()).Str("source", src.ID).Msg("source image unreadable")
		}
		res, err := h.generator.Generate(ctx, img, req)
		if err != nil {
			return err
		}
		result = res
		return nil
	})
	if err != nil {
		log.Error().Err(err).Str("source", src.ID).Msg("derivative generation failed")
		return h.fail(c, err)
	}

	log.Info().
		Str("source", src.ID).
		Str("path", result.Path).
		Bool("created", result.Created).
		Dur("took", time.Since(start)).
		Msg("derivative generated")

	return h.sendFile(c, result.Path)
}

// CreateURL handles POST /api/urls
func (h *DerivativeHandler) CreateURL(c fiber.Ctx) error {
	var body models.URLRequest
	if err := c.Bind().JSON(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{
			Success: false,
			Error:   "Invalid request body",
			Details: err.Error(),
		})
	}

	if body.SourceID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{
			Success: false,
			Error:   "source_id is required",
		})
	}

	src, err := h.sources.Lookup(body.SourceID)
	if err != nil {
		return h.fail(c, err)
	}

	u, err := h.urls.Generate(src, urlgen.Options{
		Width:     body.Width,
		Height:    body.Height,
		Extension: body.Extension,
		Fit:       codec.Fit(body.Fit),
	})
	if err != nil {
		return h.fail(c, err)
	}

	return c.JSON(models.URLResponse{
		Success:   true,
		URL:       u.Path,
		Width:     u.Width,
		Height:    u.Height,
		Extension: u.Extension,
	})
}

// Health handles GET /api/health
func (h *DerivativeHandler) Health(c fiber.Ctx) error {
	workerStats := h.workerPool.GetStats()
	bufferStats := h.bufferPool.GetStats()

	return c.JSON(models.HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().Format(time.RFC3339),
		KeyScheme: string(h.codec.Scheme()),
		Sources:   h.sources.Len(),
		WorkerPool: map[string]interface{}{
			"max_workers":    workerStats.MaxWorkers,
			"active_workers": workerStats.ActiveWorkers,
			"total_jobs":     workerStats.TotalJobs,
			"failed_jobs":    workerStats.FailedJobs,
			"avg_exec_time":  workerStats.AvgExecTime.String(),
			"queue_size":     workerStats.QueueSize,
		},
		BufferPool: map[string]interface{}{
			"allocated": bufferStats.Allocated,
			"in_use":    bufferStats.InUse,
			"available": bufferStats.Available,
			"hit_rate":  fmt.Sprintf("%.2f%%", bufferStats.HitRate),
		},
		TokenCache: h.tokens.GetStats(),
	})
}

// Helper functions

// statusFor maps domain errors to HTTP status codes. Anything that means
// "this URL does not name a derivative" is a 404.
func statusFor(err error) int {
	var fitErr *codec.UnsupportedFitError

	switch {
	case codec.IsInvalidToken(err),
		errors.Is(err, urlgen.ErrBadPath),
		errors.Is(err, sources.ErrNotFound),
		errors.Is(err, derivative.ErrSourceImageInvalid):
		return fiber.StatusNotFound
	case errors.As(err, &fitErr),
		errors.Is(err, urlgen.ErrInvalidDimension),
		errors.Is(err, codec.ErrInvalidDimension),
		errors.Is(err, urlgen.ErrUnsupportedExtension),
		errors.Is(err, codec.ErrMissingSource):
		return fiber.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return fiber.StatusGatewayTimeout
	default:
		return fiber.StatusInternalServerError
	}
}

func (h *DerivativeHandler) fail(c fiber.Ctx, err error) error {
	code := statusFor(err)

	resp := models.ErrorResponse{Success: false, Error: errorTitle(code)}
	// Token and source details stay out of 404 bodies.
	if code != fiber.StatusNotFound {
		resp.Details = err.Error()
	}
	return c.Status(code).JSON(resp)
}

func errorTitle(code int) string {
	switch code {
	case fiber.StatusNotFound:
		return "Not Found"
	case fiber.StatusBadRequest:
		return "Bad Request"
	case fiber.StatusGatewayTimeout:
		return "Derivative generation timed out"
	default:
		return "Derivative generation failed"
	}
}

// sendFile streams a derivative. A derivative path never changes content.
func (h *DerivativeHandler) sendFile(c fiber.Ctx, filePath string) error {
	c.Set("Cache-Control", "public, max-age=31536000, immutable")
	return c.SendFile(filePath)
}
