package config

import (
	"os"
	"runtime"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	Port           string
	AppEnv         string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	RequestTimeout time.Duration

	// Worker pool configuration
	MaxWorkers int

	// Buffer pool configuration
	BufferPoolSize int
	BufferSize     int

	// Storage layout
	OriginalsDir     string
	DerivativesDir   string
	DerivativePrefix string
	SourcesFile      string
	CatalogueFile    string

	// Token keys
	KeyScheme      string // rsa/age
	PublicKeyPath  string
	PrivateKeyPath string
	TokenCacheSize int

	// Logging configuration
	LogLevel              string
	EnablePerformanceLogs bool

	// Production settings
	EnableCORS bool

	// Monitoring settings
	EnableHealthCheck bool
	EnableMetrics     bool
}

// Load loads configuration from environment variables and .env file
func Load() *Config {
	// Try to load .env file (optional)
	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg(".env file not loaded")
	} else {
		log.Info().Msg("loaded configuration from .env file")
	}

	return &Config{
		// Server configuration
		Port:           getEnv("PORT", "5001"),
		AppEnv:         getEnv("APP_ENV", "development"),
		ReadTimeout:    getDuration("READ_TIMEOUT", 30*time.Second),
		WriteTimeout:   getDuration("WRITE_TIMEOUT", 2*time.Minute),
		RequestTimeout: getDuration("REQUEST_TIMEOUT", time.Minute),

		// Worker pool - smart defaults based on CPU
		MaxWorkers: getWorkerCount(),

		// Buffer pool
		BufferPoolSize: getInt("BUFFER_POOL_SIZE", 16),
		BufferSize:     getInt("BUFFER_SIZE", 512*1024), // 512KB

		// Storage layout
		OriginalsDir:     getEnv("ORIGINALS_DIR", "./originals"),
		DerivativesDir:   getEnv("DERIVATIVES_DIR", "./derivatives"),
		DerivativePrefix: getEnv("DERIVATIVE_PREFIX", "derivatives"),
		SourcesFile:      getEnv("SOURCES_FILE", "./sources.yaml"),
		CatalogueFile:    getEnv("CATALOGUE_FILE", ""),

		// Token keys
		KeyScheme:      getEnv("KEY_SCHEME", "rsa"),
		PublicKeyPath:  getEnv("PUBLIC_KEY_PATH", "./keys/public.pem"),
		PrivateKeyPath: getEnv("PRIVATE_KEY_PATH", "./keys/private.pem"),
		TokenCacheSize: getInt("TOKEN_CACHE_SIZE", 4096),

		// Logging configuration
		LogLevel:              getEnv("LOG_LEVEL", "info"),
		EnablePerformanceLogs: getBool("ENABLE_PERFORMANCE_LOGS", true),

		// Production settings
		EnableCORS: getBool("ENABLE_CORS", true),

		// Monitoring settings
		EnableHealthCheck: getBool("ENABLE_HEALTH_CHECK", true),
		EnableMetrics:     getBool("ENABLE_METRICS", true),
	}
}

// Helper functions for environment variable parsing

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
		log.Warn().Str("key", key).Str("value", value).Int("default", defaultValue).Msg("invalid integer value, using default")
	}
	return defaultValue
}

func getBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
		log.Warn().Str("key", key).Str("value", value).Bool("default", defaultValue).Msg("invalid boolean value, using default")
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
		log.Warn().Str("key", key).Str("value", value).Dur("default", defaultValue).Msg("invalid duration value, using default")
	}
	return defaultValue
}

func getWorkerCount() int {
	if value := os.Getenv("MAX_WORKERS"); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
			return parsed
		}
	}

	// Default: number of CPU cores * 2
	numCPU := runtime.NumCPU()
	if numCPU < 2 {
		return 4
	}
	return numCPU * 2
}
