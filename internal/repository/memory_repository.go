package repository

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	apperrors "github.com/Kosench/go-shortener/internal/errors"
	"github.com/Kosench/go-shortener/internal/model"
)

var _ URLRepository = (*MemoryURLRepository)(nil)

type memoryEntry struct {
	id          int64
	code        string
	originalURL string
	createdAt   time.Time
	visits      atomic.Int64
}

func (e *memoryEntry) snapshot(visits int64) *model.URL {
	return &model.URL{
		ID:          e.id,
		Code:        e.code,
		OriginalURL: e.originalURL,
		VisitCount:  visits,
		CreatedAt:   e.createdAt,
	}
}

// MemoryURLRepository keeps mappings in process memory. Entries are never
// removed, so the map only needs the write lock on insert; visit counts are
// per-entry atomics and increments do not contend with each other.
type MemoryURLRepository struct {
	mu      sync.RWMutex
	entries map[string]*memoryEntry
	lastID  atomic.Int64
	now     func() time.Time
}

func NewMemoryURLRepository() *MemoryURLRepository {
	return &MemoryURLRepository{
		entries: make(map[string]*memoryEntry),
		now:     time.Now,
	}
}

func (r *MemoryURLRepository) Create(ctx context.Context, code, originalURL string) (*model.URL, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.NewStorageError(opCreate, code, apperrors.ErrStorageUnavailable, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[code]; exists {
		return nil, apperrors.NewStorageError(opCreate, code, apperrors.ErrShortCodeExists, nil)
	}

	entry := &memoryEntry{
		id:          r.lastID.Add(1),
		code:        code,
		originalURL: originalURL,
		createdAt:   r.now().UTC(),
	}
	r.entries[code] = entry

	return entry.snapshot(0), nil
}

func (r *MemoryURLRepository) GetByCode(ctx context.Context, code string) (*model.URL, error) {
	entry, err := r.lookup(ctx, opGet, code)
	if err != nil {
		return nil, err
	}
	return entry.snapshot(entry.visits.Load()), nil
}

func (r *MemoryURLRepository) GetStats(ctx context.Context, code string) (*model.URL, error) {
	entry, err := r.lookup(ctx, opStats, code)
	if err != nil {
		return nil, err
	}
	return entry.snapshot(entry.visits.Load()), nil
}

func (r *MemoryURLRepository) IncrementAndGet(ctx context.Context, code string) (*model.URL, error) {
	entry, err := r.lookup(ctx, opIncrement, code)
	if err != nil {
		return nil, err
	}
	return entry.snapshot(entry.visits.Add(1)), nil
}

// Len reports how many mappings are stored.
func (r *MemoryURLRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

func (r *MemoryURLRepository) lookup(ctx context.Context, op, code string) (*memoryEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.NewStorageError(op, code, apperrors.ErrStorageUnavailable, err)
	}

	r.mu.RLock()
	entry, ok := r.entries[code]
	r.mu.RUnlock()

	if !ok {
		return nil, apperrors.NewStorageError(op, code, apperrors.ErrURLNotFound, nil)
	}
	return entry, nil
}
