package repository

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Kosench/go-shortener/internal/errors"
)

// runContract checks the behaviour every backend must share. newRepo returns
// an empty repository for each subtest.
func runContract(t *testing.T, newRepo func(t *testing.T) URLRepository) {
	ctx := context.Background()

	t.Run("create then get", func(t *testing.T) {
		repo := newRepo(t)

		created, err := repo.Create(ctx, "abc123", "https://example.com/a")
		require.NoError(t, err)
		assert.Positive(t, created.ID)
		assert.Equal(t, "abc123", created.Code)
		assert.Equal(t, "https://example.com/a", created.OriginalURL)
		assert.Zero(t, created.VisitCount)
		assert.False(t, created.CreatedAt.IsZero())

		got, err := repo.GetByCode(ctx, "abc123")
		require.NoError(t, err)
		assert.Equal(t, created.ID, got.ID)
		assert.Equal(t, created.OriginalURL, got.OriginalURL)
		assert.True(t, created.CreatedAt.Equal(got.CreatedAt))
	})

	t.Run("ids are distinct", func(t *testing.T) {
		repo := newRepo(t)

		a, err := repo.Create(ctx, "aaaaaa", "https://example.com/a")
		require.NoError(t, err)
		b, err := repo.Create(ctx, "bbbbbb", "https://example.com/b")
		require.NoError(t, err)
		assert.NotEqual(t, a.ID, b.ID)
	})

	t.Run("duplicate code is a conflict", func(t *testing.T) {
		repo := newRepo(t)

		_, err := repo.Create(ctx, "dup001", "https://example.com/first")
		require.NoError(t, err)

		_, err = repo.Create(ctx, "dup001", "https://example.com/second")
		require.Error(t, err)
		assert.True(t, errors.Is(err, apperrors.ErrShortCodeExists))
		assert.Equal(t, apperrors.KindConflict, apperrors.KindOf(err))

		got, err := repo.GetByCode(ctx, "dup001")
		require.NoError(t, err)
		assert.Equal(t, "https://example.com/first", got.OriginalURL)
	})

	t.Run("missing code is not found", func(t *testing.T) {
		repo := newRepo(t)

		_, err := repo.GetByCode(ctx, "nope00")
		assert.True(t, errors.Is(err, apperrors.ErrURLNotFound))

		_, err = repo.GetStats(ctx, "nope00")
		assert.True(t, errors.Is(err, apperrors.ErrURLNotFound))

		_, err = repo.IncrementAndGet(ctx, "nope00")
		assert.True(t, errors.Is(err, apperrors.ErrURLNotFound))
	})

	t.Run("increment returns post increment value", func(t *testing.T) {
		repo := newRepo(t)

		_, err := repo.Create(ctx, "inc001", "https://example.com")
		require.NoError(t, err)

		for want := int64(1); want <= 3; want++ {
			got, err := repo.IncrementAndGet(ctx, "inc001")
			require.NoError(t, err)
			assert.Equal(t, want, got.VisitCount)
			assert.Equal(t, "https://example.com", got.OriginalURL)
		}
	})

	t.Run("stats does not mutate", func(t *testing.T) {
		repo := newRepo(t)

		_, err := repo.Create(ctx, "sta001", "https://example.com")
		require.NoError(t, err)
		_, err = repo.IncrementAndGet(ctx, "sta001")
		require.NoError(t, err)

		first, err := repo.GetStats(ctx, "sta001")
		require.NoError(t, err)
		second, err := repo.GetStats(ctx, "sta001")
		require.NoError(t, err)

		assert.Equal(t, int64(1), first.VisitCount)
		assert.Equal(t, first.VisitCount, second.VisitCount)
	})

	t.Run("long URL round trips", func(t *testing.T) {
		repo := newRepo(t)
		long := "https://example.com/" + strings.Repeat("x", 5000)

		_, err := repo.Create(ctx, "long01", long)
		require.NoError(t, err)

		got, err := repo.GetByCode(ctx, "long01")
		require.NoError(t, err)
		assert.Equal(t, long, got.OriginalURL)
	})

	t.Run("concurrent increments are not lost", func(t *testing.T) {
		repo := newRepo(t)

		_, err := repo.Create(ctx, "hot001", "https://example.com")
		require.NoError(t, err)

		const workers = 100
		seen := make(chan int64, workers)
		var wg sync.WaitGroup
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				url, err := repo.IncrementAndGet(ctx, "hot001")
				if err != nil {
					t.Errorf("IncrementAndGet() error = %v", err)
					return
				}
				seen <- url.VisitCount
			}()
		}
		wg.Wait()
		close(seen)

		// Every caller observes a different post-increment value.
		values := make(map[int64]bool)
		for v := range seen {
			assert.False(t, values[v], "visit count %d returned twice", v)
			values[v] = true
		}
		assert.Len(t, values, workers)

		stats, err := repo.GetStats(ctx, "hot001")
		require.NoError(t, err)
		assert.Equal(t, int64(workers), stats.VisitCount)
	})

	t.Run("concurrent creates of one code have one winner", func(t *testing.T) {
		repo := newRepo(t)

		const workers = 20
		var (
			wg        sync.WaitGroup
			mu        sync.Mutex
			wins      int
			conflicts int
		)
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := repo.Create(ctx, "race01", "https://example.com")
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					wins++
				case errors.Is(err, apperrors.ErrShortCodeExists):
					conflicts++
				default:
					t.Errorf("Create() unexpected error = %v", err)
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, 1, wins)
		assert.Equal(t, workers-1, conflicts)
	})
}
