package handler

import (
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Kosench/go-shortener/internal/metrics"
)

type RouterConfig struct {
	URLs           *URLHandler
	Health         *HealthHandler
	Logger         *zap.Logger
	Metrics        *metrics.Metrics
	MetricsPath    string
	AllowedOrigins []string
}

// NewRouter wires middleware and routes. /:shortCode is registered last and
// only matches single-segment paths, so it does not shadow /api or /health.
func NewRouter(cfg RouterConfig) *gin.Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	var gzipOpts []gzip.Option
	if cfg.MetricsPath != "" {
		// promhttp negotiates its own encoding.
		gzipOpts = append(gzipOpts, gzip.WithExcludedPaths([]string{cfg.MetricsPath}))
	}

	router := gin.New()

	router.Use(
		RequestID(),
		Logger(logger),
		Recovery(logger),
		cfg.Metrics.Middleware(),
		gzip.Gzip(gzip.DefaultCompression, gzipOpts...),
		cors.New(cors.Config{
			AllowOrigins:     origins,
			AllowMethods:     []string{"GET", "POST", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", RequestIDHeader},
			ExposeHeaders:    []string{"Content-Length", RequestIDHeader},
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}),
	)

	if cfg.Health != nil {
		router.GET("/health", cfg.Health.Health)
		router.GET("/info", cfg.Health.Info)
	}

	if cfg.Metrics != nil && cfg.MetricsPath != "" {
		router.GET(cfg.MetricsPath, gin.WrapH(cfg.Metrics.Handler()))
	}

	api := router.Group("/api")
	{
		api.POST("/shorten", cfg.URLs.CreateURL)
		api.GET("/stats/:shortCode", cfg.URLs.GetStats)
	}

	router.GET("/:shortCode", cfg.URLs.RedirectURL)

	return router
}

// ReservedCodes lists the single-segment paths registered ahead of
// /:shortCode. A short code equal to one of them could never be redirected.
func ReservedCodes(metricsPath string) []string {
	codes := []string{"api", "health", "info"}
	if first, _, _ := strings.Cut(strings.TrimPrefix(metricsPath, "/"), "/"); first != "" {
		codes = append(codes, first)
	}
	return codes
}
