package repository

import (
	"context"

	"github.com/Kosench/go-shortener/internal/model"
)

// URLRepository is implemented by every storage backend. Uniqueness of codes
// and atomicity of visit increments are the backend's responsibility.
//
// Errors are built with errors.NewStorageError and match ErrShortCodeExists,
// ErrURLNotFound, ErrStorageUnavailable or ErrStorageFailure.
type URLRepository interface {
	// Create inserts a new mapping with zero visits, or fails with
	// ErrShortCodeExists when code is taken. The check and the insert are
	// one operation.
	Create(ctx context.Context, code, originalURL string) (*model.URL, error)
	GetByCode(ctx context.Context, code string) (*model.URL, error)
	// IncrementAndGet adds one visit and returns the row as it is after
	// that increment.
	IncrementAndGet(ctx context.Context, code string) (*model.URL, error)
	// GetStats reads the row without changing it.
	GetStats(ctx context.Context, code string) (*model.URL, error)
}

// HealthChecker is implemented by backends that talk to a server.
type HealthChecker interface {
	Ping(ctx context.Context) error
	Version(ctx context.Context) (string, error)
}

const (
	opCreate    = "create"
	opGet       = "get"
	opIncrement = "increment"
	opStats     = "stats"
)
