package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Kosench/go-shortener/internal/database"
	apperrors "github.com/Kosench/go-shortener/internal/errors"
	"github.com/Kosench/go-shortener/internal/model"
)

const (
	DefaultAcquireTimeout = 5 * time.Second

	urlColumns = "id, code, original_url, visit_count, created_at"

	pgUniqueViolation = "23505"
)

var (
	_ URLRepository = (*PostgresURLRepository)(nil)
	_ HealthChecker = (*PostgresURLRepository)(nil)
)

type PostgresURLRepository struct {
	pool           *pgxpool.Pool
	acquireTimeout time.Duration
}

// NewPostgresURLRepository uses pool for every call. Waiting for a pooled
// connection is bounded by acquireTimeout.
func NewPostgresURLRepository(pool *pgxpool.Pool, acquireTimeout time.Duration) *PostgresURLRepository {
	if acquireTimeout <= 0 {
		acquireTimeout = DefaultAcquireTimeout
	}
	return &PostgresURLRepository{
		pool:           pool,
		acquireTimeout: acquireTimeout,
	}
}

func (r *PostgresURLRepository) Create(ctx context.Context, code, originalURL string) (*model.URL, error) {
	query := `
	INSERT INTO urls (original_url, code)
	VALUES ($1, $2)
	ON CONFLICT (code) DO NOTHING
	RETURNING ` + urlColumns

	conn, err := r.acquire(ctx, opCreate, code)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	url, err := scanURL(conn.QueryRow(ctx, query, originalURL, code))
	if err != nil {
		// DO NOTHING returns no row when the code is already taken.
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewStorageError(opCreate, code, apperrors.ErrShortCodeExists, nil)
		}
		return nil, apperrors.NewStorageError(opCreate, code, classify(err), err)
	}

	return url, nil
}

func (r *PostgresURLRepository) GetByCode(ctx context.Context, code string) (*model.URL, error) {
	return r.selectByCode(ctx, opGet, code)
}

func (r *PostgresURLRepository) GetStats(ctx context.Context, code string) (*model.URL, error) {
	return r.selectByCode(ctx, opStats, code)
}

func (r *PostgresURLRepository) IncrementAndGet(ctx context.Context, code string) (*model.URL, error) {
	query := `
	UPDATE urls
	SET visit_count = visit_count + 1
	WHERE code = $1
	RETURNING ` + urlColumns

	conn, err := r.acquire(ctx, opIncrement, code)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	url, err := scanURL(conn.QueryRow(ctx, query, code))
	if err != nil {
		return nil, apperrors.NewStorageError(opIncrement, code, classify(err), err)
	}

	return url, nil
}

func (r *PostgresURLRepository) Ping(ctx context.Context) error {
	return database.HealthCheck(ctx, r.pool)
}

func (r *PostgresURLRepository) Version(ctx context.Context) (string, error) {
	return database.GetVersion(ctx, r.pool)
}

func (r *PostgresURLRepository) selectByCode(ctx context.Context, op, code string) (*model.URL, error) {
	query := `
	SELECT ` + urlColumns + `
	FROM urls
	WHERE code = $1
	`

	conn, err := r.acquire(ctx, op, code)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	url, err := scanURL(conn.QueryRow(ctx, query, code))
	if err != nil {
		return nil, apperrors.NewStorageError(op, code, classify(err), err)
	}

	return url, nil
}

func (r *PostgresURLRepository) acquire(ctx context.Context, op, code string) (*pgxpool.Conn, error) {
	acquireCtx, cancel := context.WithTimeout(ctx, r.acquireTimeout)
	defer cancel()

	conn, err := r.pool.Acquire(acquireCtx)
	if err != nil {
		return nil, apperrors.NewStorageError(op, code, apperrors.ErrStorageUnavailable, err)
	}
	return conn, nil
}

func scanURL(row pgx.Row) (*model.URL, error) {
	url := &model.URL{}
	err := row.Scan(
		&url.ID,
		&url.Code,
		&url.OriginalURL,
		&url.VisitCount,
		&url.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return url, nil
}

// classify maps a pgx error onto the storage sentinels. Anything that is not
// a server-side error is treated as a connectivity problem.
func classify(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return apperrors.ErrURLNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == pgUniqueViolation:
			return apperrors.ErrShortCodeExists
		// 08 connection exception, 53 insufficient resources, 57P admin shutdown
		case strings.HasPrefix(pgErr.Code, "08"),
			strings.HasPrefix(pgErr.Code, "53"),
			strings.HasPrefix(pgErr.Code, "57P"):
			return apperrors.ErrStorageUnavailable
		default:
			return apperrors.ErrStorageFailure
		}
	}

	return apperrors.ErrStorageUnavailable
}
