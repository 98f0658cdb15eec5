package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Kosench/go-shortener/internal/config"
	"github.com/Kosench/go-shortener/internal/database"
	"github.com/Kosench/go-shortener/internal/handler"
	"github.com/Kosench/go-shortener/internal/logger"
	"github.com/Kosench/go-shortener/internal/metrics"
	"github.com/Kosench/go-shortener/internal/repository"
	"github.com/Kosench/go-shortener/internal/service"
	"github.com/Kosench/go-shortener/internal/utils"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config: ", err)
	}

	zl, err := logger.New(logger.Config{
		Development: !cfg.IsProduction(),
		Level:       cfg.Log.Level,
		Encoding:    cfg.Log.Encoding,
	})
	if err != nil {
		log.Fatal("Failed to build logger: ", err)
	}

	os.Exit(serve(cfg, zl))
}

// serve runs the server and returns the process exit code. zl is flushed
// on every path.
func serve(cfg *config.Config, zl *zap.Logger) int {
	defer func() { _ = logger.Sync(zl) }()

	if err := run(cfg, zl); err != nil {
		zl.Error("server stopped with error", zap.Error(err))
		return 1
	}
	return 0
}

func run(cfg *config.Config, zl *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repo, checker, cleanup, err := openStorage(ctx, cfg, zl)
	if err != nil {
		return err
	}
	defer cleanup()

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
	}

	urlService := service.NewURLService(service.Deps{
		Repo:          repo,
		Validator:     utils.NewURLValidator(cfg.App.MaxURLLength, cfg.App.BlockedHosts),
		Generator:     utils.RandomGenerator{},
		Logger:        zl.Named("service"),
		Metrics:       m,
		CodeLength:    cfg.App.ShortCodeLength,
		MaxRetries:    cfg.App.MaxRetries,
		ReservedCodes: handler.ReservedCodes(cfg.Metrics.Path),
	})

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := handler.NewRouter(handler.RouterConfig{
		URLs:           handler.NewURLHandler(urlService, cfg.GetBaseURL()),
		Health:         handler.NewHealthHandler(cfg.Storage.Backend, checker),
		Logger:         zl.Named("http"),
		Metrics:        m,
		MetricsPath:    cfg.Metrics.Path,
		AllowedOrigins: cfg.GetAllowedOrigins(),
	})

	srv := &http.Server{
		Addr:           cfg.GetServerAddress(),
		Handler:        router,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		MaxHeaderBytes: 1 << 20,
	}

	serverErr := make(chan error, 1)
	go func() {
		zl.Info("server starting",
			zap.String("addr", srv.Addr),
			zap.String("storage", cfg.Storage.Backend),
			zap.String("base_url", cfg.GetBaseURL()))

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	zl.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	zl.Info("server gracefully stopped")
	return nil
}

// openStorage connects the configured backend. The returned cleanup closes
// whatever was opened.
func openStorage(ctx context.Context, cfg *config.Config, zl *zap.Logger) (repository.URLRepository, repository.HealthChecker, func(), error) {
	switch cfg.Storage.Backend {
	case config.BackendPostgres:
		if cfg.Database.AutoMigrate {
			if err := migrate(cfg.GetDatabaseURL(), zl.Named("migrate")); err != nil {
				return nil, nil, nil, err
			}
		}

		pool, err := database.NewPool(ctx, database.PoolConfig{
			URL:      cfg.GetDatabaseURL(),
			MaxConns: cfg.Database.MaxConns,
			MinConns: cfg.Database.MinConns,
		})
		if err != nil {
			return nil, nil, nil, err
		}
		zl.Info("connected to postgres", zap.Int32("max_conns", cfg.Database.MaxConns))

		repo := repository.NewPostgresURLRepository(pool, cfg.Database.AcquireTimeout)
		return repo, repo, pool.Close, nil

	case config.BackendRedis:
		client, err := database.NewRedisClient(ctx, database.RedisConfig{
			Addr:         cfg.GetRedisAddress(),
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
			MaxRetries:   cfg.Redis.MaxRetries,
			PoolTimeout:  cfg.Redis.PoolTimeout,
		})
		if err != nil {
			return nil, nil, nil, err
		}
		zl.Info("connected to redis", zap.String("addr", cfg.GetRedisAddress()))

		repo := repository.NewRedisURLRepository(client, cfg.Redis.Namespace)
		return repo, repo, func() { _ = client.Close() }, nil

	case config.BackendMemory:
		zl.Warn("using in-memory storage, mappings are lost on restart")
		return repository.NewMemoryURLRepository(), nil, func() {}, nil

	default:
		return nil, nil, nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

func migrate(databaseURL string, zl *zap.Logger) error {
	migrator, err := database.NewMigrator(databaseURL, zl)
	if err != nil {
		return err
	}
	defer func() {
		if err := migrator.Close(); err != nil {
			zl.Warn("failed to close migrator", zap.Error(err))
		}
	}()

	if err := migrator.Up(); err != nil {
		return err
	}

	version, dirty, err := migrator.Version()
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	if dirty {
		return fmt.Errorf("schema version %d is dirty", version)
	}
	zl.Info("schema ready", zap.Uint("version", version))
	return nil
}
