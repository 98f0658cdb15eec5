// Package testutils starts throwaway Postgres and Redis containers for
// integration tests. Containers are terminated through t.Cleanup, and the
// helpers skip the test under -short or when no Docker daemon is reachable.
package testutils

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"

	"github.com/Kosench/go-shortener/internal/database"
)

// StartPostgres runs postgres:16-alpine, applies the embedded migrations and
// returns a pool capped at maxConns connections.
func StartPostgres(t *testing.T, maxConns int32) *pgxpool.Pool {
	t.Helper()
	skipUnlessIntegration(t)

	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("testdb"),
		tcpostgres.WithUsername("testuser"),
		tcpostgres.WithPassword("testpass"),
		tc.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}
	t.Cleanup(func() {
		_ = container.Terminate(context.Background())
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("failed to get postgres connection string: %v", err)
	}

	migrator, err := database.NewMigrator(dsn, zap.NewNop())
	if err != nil {
		t.Fatalf("failed to create migrator: %v", err)
	}
	if err := migrator.Up(); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}
	if version, dirty, err := migrator.Version(); err != nil || dirty || version == 0 {
		t.Fatalf("unexpected schema state: version=%d dirty=%v err=%v", version, dirty, err)
	}
	_ = migrator.Close()

	pool, err := database.NewPool(ctx, database.PoolConfig{URL: dsn, MaxConns: maxConns})
	if err != nil {
		t.Fatalf("failed to create postgres pool: %v", err)
	}
	t.Cleanup(pool.Close)

	return pool
}

// TruncateURLs empties the urls table and restarts its id sequence.
func TruncateURLs(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()

	if _, err := pool.Exec(context.Background(), "TRUNCATE TABLE urls RESTART IDENTITY"); err != nil {
		t.Fatalf("failed to truncate urls: %v", err)
	}
}

// StartRedis runs redis:7-alpine and returns a connected client.
func StartRedis(t *testing.T) *redis.Client {
	t.Helper()
	skipUnlessIntegration(t)

	ctx := context.Background()

	container, err := tcredis.Run(ctx, "redis:7-alpine")
	if err != nil {
		t.Fatalf("failed to start redis container: %v", err)
	}
	t.Cleanup(func() {
		_ = container.Terminate(context.Background())
	})

	endpoint, err := container.Endpoint(ctx, "")
	if err != nil {
		t.Fatalf("failed to get redis endpoint: %v", err)
	}

	client, err := database.NewRedisClient(ctx, database.RedisConfig{
		Addr:        endpoint,
		PoolSize:    20,
		PoolTimeout: 5 * time.Second,
	})
	if err != nil {
		t.Fatalf("failed to connect to redis: %v", err)
	}
	t.Cleanup(func() {
		_ = client.Close()
	})

	return client
}

// FlushRedis clears the current database between tests.
func FlushRedis(t *testing.T, client *redis.Client) {
	t.Helper()

	if err := client.FlushDB(context.Background()).Err(); err != nil {
		t.Fatalf("failed to flush redis: %v", err)
	}
}

func skipUnlessIntegration(t *testing.T) {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	tc.SkipIfProviderIsNotHealthy(t)
}
