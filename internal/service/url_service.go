package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	apperrors "github.com/Kosench/go-shortener/internal/errors"
	"github.com/Kosench/go-shortener/internal/metrics"
	"github.com/Kosench/go-shortener/internal/model"
	"github.com/Kosench/go-shortener/internal/repository"
	"github.com/Kosench/go-shortener/internal/utils"
)

const (
	DefaultMaxRetries = 5

	opShorten = "shorten"
	opResolve = "resolve"
	opStats   = "stats"
)

// Validator checks a candidate URL before anything is written.
type Validator interface {
	Validate(rawURL string) error
}

type Deps struct {
	Repo       repository.URLRepository
	Validator  Validator
	Generator  utils.CodeGenerator
	Logger     *zap.Logger
	Metrics    *metrics.Metrics
	CodeLength int
	MaxRetries int
	// ReservedCodes are paths the router serves itself. A generated code
	// equal to one of them is handled like a collision.
	ReservedCodes []string
}

// URLService implements Shorten, Resolve and Stats on top of a storage
// backend. It keeps no state between calls.
type URLService struct {
	urlRepo    repository.URLRepository
	validator  Validator
	generator  utils.CodeGenerator
	logger     *zap.Logger
	metrics    *metrics.Metrics
	codeLength int
	maxRetries int
	reserved   map[string]struct{}
}

func NewURLService(deps Deps) *URLService {
	s := &URLService{
		urlRepo:    deps.Repo,
		validator:  deps.Validator,
		generator:  deps.Generator,
		logger:     deps.Logger,
		metrics:    deps.Metrics,
		codeLength: deps.CodeLength,
		maxRetries: deps.MaxRetries,
		reserved:   make(map[string]struct{}, len(deps.ReservedCodes)),
	}
	for _, code := range deps.ReservedCodes {
		s.reserved[code] = struct{}{}
	}

	if s.validator == nil {
		s.validator = utils.NewURLValidator(utils.DefaultMaxURLLength, nil)
	}
	if s.generator == nil {
		s.generator = utils.RandomGenerator{}
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.codeLength <= 0 || s.codeLength > model.MaxCodeLength {
		s.codeLength = utils.DefaultShortCodeLength
	}
	if s.maxRetries <= 0 {
		s.maxRetries = DefaultMaxRetries
	}

	return s
}

// Shorten validates rawURL and stores it under a freshly generated code.
// A code the backend reports as taken is retried with a new one, up to
// maxRetries attempts in total.
func (s *URLService) Shorten(ctx context.Context, rawURL string) (url *model.URL, err error) {
	start := time.Now()
	defer func() { s.observe(opShorten, start, err) }()

	originalURL := utils.SanitizeInput(rawURL)

	if err := s.validator.Validate(originalURL); err != nil {
		s.logger.Warn("rejected URL", zap.Error(err))
		return nil, err
	}

	var lastConflict error
	for attempt := 1; attempt <= s.maxRetries; attempt++ {
		code, err := s.generator.Generate(s.codeLength)
		if err != nil {
			return nil, fmt.Errorf("failed to generate short code: %w", err)
		}

		if _, reserved := s.reserved[code]; reserved {
			lastConflict = fmt.Errorf("short code %q is reserved: %w", code, apperrors.ErrShortCodeExists)
			s.metrics.IncCollision()
			s.logger.Debug("short code is reserved", zap.String("short_code", code), zap.Int("attempt", attempt))
			continue
		}

		url, err := s.urlRepo.Create(ctx, code, originalURL)
		if err == nil {
			s.metrics.IncCreated()
			s.logger.Info("short URL created",
				zap.String("short_code", url.Code),
				zap.Int64("id", url.ID),
				zap.Int("attempt", attempt))
			return url, nil
		}

		if !errors.Is(err, apperrors.ErrShortCodeExists) {
			s.logger.Error("failed to store short URL", zap.String("short_code", code), zap.Error(err))
			return nil, fmt.Errorf("failed to create URL: %w", err)
		}

		lastConflict = err
		s.metrics.IncCollision()
		s.logger.Debug("short code collision", zap.String("short_code", code), zap.Int("attempt", attempt))
	}

	s.logger.Error("short code space exhausted", zap.Int("attempts", s.maxRetries))
	return nil, apperrors.NewCodeGenerationExhaustedError(s.maxRetries, lastConflict)
}

// Resolve records one visit and returns the mapping with the new count.
func (s *URLService) Resolve(ctx context.Context, shortCode string) (url *model.URL, err error) {
	start := time.Now()
	defer func() { s.observe(opResolve, start, err) }()

	if err := checkShortCode(shortCode); err != nil {
		return nil, err
	}

	url, err = s.urlRepo.IncrementAndGet(ctx, shortCode)
	if err != nil {
		s.logStorageError("failed to resolve short code", shortCode, err)
		return nil, fmt.Errorf("failed to resolve URL: %w", err)
	}

	return url, nil
}

// Stats returns the mapping without counting a visit.
func (s *URLService) Stats(ctx context.Context, shortCode string) (url *model.URL, err error) {
	start := time.Now()
	defer func() { s.observe(opStats, start, err) }()

	if err := checkShortCode(shortCode); err != nil {
		return nil, err
	}

	url, err = s.urlRepo.GetStats(ctx, shortCode)
	if err != nil {
		s.logStorageError("failed to read stats", shortCode, err)
		return nil, fmt.Errorf("failed to get stats: %w", err)
	}

	return url, nil
}

func checkShortCode(shortCode string) error {
	if !utils.IsValidShortCode(shortCode, model.MaxCodeLength) {
		return apperrors.NewValidationError(apperrors.KindInvalidShortCode, "short_code",
			fmt.Sprintf("short code must be 1 to %d letters or digits", model.MaxCodeLength))
	}
	return nil
}

func (s *URLService) logStorageError(msg, shortCode string, err error) {
	if errors.Is(err, apperrors.ErrURLNotFound) {
		s.logger.Debug("unknown short code", zap.String("short_code", shortCode))
		return
	}
	s.logger.Error(msg, zap.String("short_code", shortCode), zap.Error(err))
}

func (s *URLService) observe(op string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = string(apperrors.KindOf(err))
	}
	s.metrics.ObserveOperation(op, outcome, time.Since(start))
}
