package main

import (
	"os"
	"os/signal"
	"path"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"image-derivatives/internal/bucket"
	"image-derivatives/internal/cache"
	"image-derivatives/internal/codec"
	"image-derivatives/internal/config"
	"image-derivatives/internal/derivative"
	"image-derivatives/internal/handlers"
	"image-derivatives/internal/keys"
	"image-derivatives/internal/pool"
	"image-derivatives/internal/sources"
	"image-derivatives/internal/store"
	"image-derivatives/internal/urlgen"
)

func main() {
	// Load configuration
	cfg := config.Load()
	cfg.SetupLogging()

	log.Info().Str("env", cfg.AppEnv).Msg("starting image derivative service")

	// Bucket catalogue
	catalogue, err := bucket.Load(cfg.CatalogueFile)
	if err != nil {
		log.Fatal().Err(err).Str("file", cfg.CatalogueFile).Msg("failed to load bucket catalogue")
	}
	log.Info().Ints("sizes", catalogue.Sizes).Int("ratios", len(catalogue.Ratios)).Msg("bucket catalogue ready")

	// Source images
	registry, err := sources.Load(cfg.SourcesFile, cfg.OriginalsDir)
	if err != nil {
		log.Fatal().Err(err).Str("file", cfg.SourcesFile).Msg("failed to load sources manifest")
	}

	// Token codec; missing keys stop the service here rather than per request
	scheme, err := codec.ParseScheme(cfg.KeyScheme)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid key scheme")
	}
	tokenCodec, err := codec.FromProvider(scheme, keys.NewFileProvider(cfg.PublicKeyPath, cfg.PrivateKeyPath))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load token keys")
	}

	tokenCache, err := cache.NewTokenCache(cfg.TokenCacheSize)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create token cache")
	}

	// Initialize buffer pool
	log.Info().Int("count", cfg.BufferPoolSize).Int("size", cfg.BufferSize).Msg("initializing buffer pool")
	bufferPool := pool.NewBufferPool(cfg.BufferPoolSize, cfg.BufferSize)

	// Initialize worker pool
	log.Info().Int("workers", cfg.MaxWorkers).Msg("initializing worker pool")
	workerPool := pool.NewWorkerPool(cfg.MaxWorkers)
	if err := workerPool.Start(); err != nil {
		log.Fatal().Err(err).Msg("failed to start worker pool")
	}

	fileStore := store.NewLocal()
	generator := derivative.NewGenerator(cfg.DerivativesDir, registry.Root(), fileStore, bufferPool)
	urls := urlgen.New(catalogue, tokenCodec, cfg.DerivativePrefix)

	derivativeHandler := handlers.NewDerivativeHandler(handlers.Deps{
		Sources:    registry,
		Codec:      tokenCodec,
		Tokens:     tokenCache,
		URLs:       urls,
		Generator:  generator,
		Store:      fileStore,
		WorkerPool: workerPool,
		BufferPool: bufferPool,
	}, cfg.RequestTimeout)

	// Create Fiber app
	app := fiber.New(fiber.Config{
		ServerHeader:     "ImageDerivatives",
		AppName:          "Image Derivatives API",
		ReadTimeout:      cfg.ReadTimeout,
		WriteTimeout:     cfg.WriteTimeout,
		DisableKeepalive: false,
		ErrorHandler: func(c fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			message := "Internal Server Error"

			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
				message = e.Message
			}

			return c.Status(code).JSON(fiber.Map{
				"success":   false,
				"error":     message,
				"timestamp": time.Now().Unix(),
			})
		},
	})

	// Middleware
	app.Use(recover.New())

	if cfg.EnableCORS {
		app.Use(cors.New(cors.Config{
			AllowOrigins: []string{"*"},
			AllowMethods: []string{"GET", "POST", "HEAD", "OPTIONS"},
			AllowHeaders: []string{"Origin", "Content-Type", "Accept"},
		}))
	}

	if cfg.EnablePerformanceLogs {
		app.Use(logger.New(logger.Config{
			Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
		}))
	}

	// Routes
	servePath := "/" + path.Join(urls.Prefix(), ":file")
	app.Get(servePath, derivativeHandler.Serve)

	api := app.Group("/api")
	api.Post("/urls", derivativeHandler.CreateURL)

	if cfg.EnableHealthCheck {
		api.Get("/health", derivativeHandler.Health)
	}

	if cfg.EnableMetrics {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
	}

	// Root endpoint
	app.Get("/", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"service": "Image Derivatives API",
			"version": "1.0.0",
			"status":  "running",
			"endpoints": []string{
				"GET  " + servePath,
				"POST /api/urls",
				"GET  /api/health",
				"GET  /metrics",
			},
		})
	})

	// Graceful shutdown
	go func() {
		sigint := make(chan os.Signal, 1)
		signal.Notify(sigint, os.Interrupt, syscall.SIGTERM)
		<-sigint

		log.Info().Msg("shutting down gracefully")

		// Shutdown Fiber first so no new jobs arrive
		if err := app.Shutdown(); err != nil {
			log.Warn().Err(err).Msg("error during shutdown")
		}

		workerPool.Stop()

		log.Info().Msg("goodbye")
		os.Exit(0)
	}()

	// Start server
	log.Info().
		Str("port", cfg.Port).
		Str("scheme", string(tokenCodec.Scheme())).
		Int("sources", registry.Len()).
		Str("derivatives", generator.Root()).
		Msg("server starting")

	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatal().Err(err).Msg("failed to start server")
	}
}
