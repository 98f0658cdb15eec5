package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Kosench/go-shortener/internal/database"
	apperrors "github.com/Kosench/go-shortener/internal/errors"
	"github.com/Kosench/go-shortener/internal/model"
)

var (
	_ URLRepository = (*RedisURLRepository)(nil)
	_ HealthChecker = (*RedisURLRepository)(nil)
)

const (
	fieldID          = "id"
	fieldCode        = "code"
	fieldOriginalURL = "original_url"
	fieldVisitCount  = "visit_count"
	fieldCreatedSec  = "created_s"
	fieldCreatedUsec = "created_us"
)

// KEYS[1] mapping hash, KEYS[2] id sequence; ARGV[1] code, ARGV[2] URL.
// Returns 0 when the code is taken, the new hash otherwise.
var createScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
	return 0
end
local id = redis.call('INCR', KEYS[2])
local now = redis.call('TIME')
redis.call('HSET', KEYS[1],
	'id', id,
	'code', ARGV[1],
	'original_url', ARGV[2],
	'visit_count', 0,
	'created_s', now[1],
	'created_us', now[2])
return redis.call('HGETALL', KEYS[1])
`)

// KEYS[1] mapping hash. Returns nil when it does not exist; nil is a null
// reply under both RESP2 and RESP3, a Lua false is not.
var incrementScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
	return nil
end
redis.call('HINCRBY', KEYS[1], 'visit_count', 1)
return redis.call('HGETALL', KEYS[1])
`)

// RedisURLRepository stores each mapping as a hash. Create and
// IncrementAndGet run as Lua scripts, so each is a single atomic step on the
// server.
type RedisURLRepository struct {
	client *redis.Client
	keys   *KeyBuilder
}

func NewRedisURLRepository(client *redis.Client, namespace string) *RedisURLRepository {
	return &RedisURLRepository{
		client: client,
		keys:   NewKeyBuilder(namespace),
	}
}

func (r *RedisURLRepository) Create(ctx context.Context, code, originalURL string) (*model.URL, error) {
	res, err := createScript.Run(ctx, r.client, []string{r.keys.URL(code), r.keys.Sequence()}, code, originalURL).Result()
	if err != nil {
		return nil, apperrors.NewStorageError(opCreate, code, classifyRedis(err), err)
	}

	if n, ok := res.(int64); ok && n == 0 {
		return nil, apperrors.NewStorageError(opCreate, code, apperrors.ErrShortCodeExists, nil)
	}

	url, err := parseHashReply(res)
	if err != nil {
		return nil, apperrors.NewStorageError(opCreate, code, apperrors.ErrStorageFailure, err)
	}
	return url, nil
}

func (r *RedisURLRepository) GetByCode(ctx context.Context, code string) (*model.URL, error) {
	return r.fetch(ctx, opGet, code)
}

func (r *RedisURLRepository) GetStats(ctx context.Context, code string) (*model.URL, error) {
	return r.fetch(ctx, opStats, code)
}

func (r *RedisURLRepository) IncrementAndGet(ctx context.Context, code string) (*model.URL, error) {
	res, err := incrementScript.Run(ctx, r.client, []string{r.keys.URL(code)}).Result()
	if err != nil {
		return nil, apperrors.NewStorageError(opIncrement, code, classifyRedis(err), err)
	}
	if missingReply(res) {
		return nil, apperrors.NewStorageError(opIncrement, code, apperrors.ErrURLNotFound, nil)
	}

	url, err := parseHashReply(res)
	if err != nil {
		return nil, apperrors.NewStorageError(opIncrement, code, apperrors.ErrStorageFailure, err)
	}
	return url, nil
}

func (r *RedisURLRepository) Ping(ctx context.Context) error {
	return database.RedisHealthCheck(ctx, r.client)
}

func (r *RedisURLRepository) Version(ctx context.Context) (string, error) {
	return database.RedisVersion(ctx, r.client)
}

func (r *RedisURLRepository) fetch(ctx context.Context, op, code string) (*model.URL, error) {
	fields, err := r.client.HGetAll(ctx, r.keys.URL(code)).Result()
	if err != nil {
		return nil, apperrors.NewStorageError(op, code, classifyRedis(err), err)
	}
	if len(fields) == 0 {
		return nil, apperrors.NewStorageError(op, code, apperrors.ErrURLNotFound, nil)
	}

	url, err := parseHash(fields)
	if err != nil {
		return nil, apperrors.NewStorageError(op, code, apperrors.ErrStorageFailure, err)
	}
	return url, nil
}

// classifyRedis maps a go-redis error onto the storage sentinels. Errors the
// server replied with are failures, everything else is connectivity.
func classifyRedis(err error) error {
	if errors.Is(err, redis.Nil) {
		return apperrors.ErrURLNotFound
	}

	var redisErr redis.Error
	if errors.As(err, &redisErr) && !errors.Is(err, redis.ErrPoolTimeout) {
		return apperrors.ErrStorageFailure
	}

	return apperrors.ErrStorageUnavailable
}

// missingReply reports a script result that means "no such key". A RESP3
// connection turns a Lua false into a boolean instead of redis.Nil.
func missingReply(res interface{}) bool {
	switch v := res.(type) {
	case nil:
		return true
	case bool:
		return !v
	}
	return false
}

// parseHashReply converts the flat field/value array HGETALL returns from a
// script.
func parseHashReply(res interface{}) (*model.URL, error) {
	items, ok := res.([]interface{})
	if !ok || len(items)%2 != 0 {
		return nil, fmt.Errorf("unexpected script reply %T", res)
	}

	fields := make(map[string]string, len(items)/2)
	for i := 0; i < len(items); i += 2 {
		key, _ := items[i].(string)
		value, _ := items[i+1].(string)
		fields[key] = value
	}
	return parseHash(fields)
}

func parseHash(fields map[string]string) (*model.URL, error) {
	id, err := strconv.ParseInt(fields[fieldID], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("bad %s: %w", fieldID, err)
	}
	visits, err := strconv.ParseInt(fields[fieldVisitCount], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("bad %s: %w", fieldVisitCount, err)
	}
	sec, err := strconv.ParseInt(fields[fieldCreatedSec], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("bad %s: %w", fieldCreatedSec, err)
	}
	usec, err := strconv.ParseInt(fields[fieldCreatedUsec], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("bad %s: %w", fieldCreatedUsec, err)
	}

	return &model.URL{
		ID:          id,
		Code:        fields[fieldCode],
		OriginalURL: fields[fieldOriginalURL],
		VisitCount:  visits,
		CreatedAt:   time.Unix(sec, usec*int64(time.Microsecond)).UTC(),
	}, nil
}
