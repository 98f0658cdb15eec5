package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "github.com/Kosench/go-shortener/internal/errors"
	"github.com/Kosench/go-shortener/internal/model"
	"github.com/Kosench/go-shortener/internal/repository"
	"github.com/Kosench/go-shortener/internal/service"
)

type mockURLService struct {
	urls    map[string]*model.URL
	failErr error
}

func newMockURLService() *mockURLService {
	return &mockURLService{
		urls: make(map[string]*model.URL),
	}
}

func (m *mockURLService) Shorten(ctx context.Context, rawURL string) (*model.URL, error) {
	if m.failErr != nil {
		return nil, m.failErr
	}

	url := &model.URL{
		ID:          1,
		Code:        "abc123",
		OriginalURL: rawURL,
		CreatedAt:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	m.urls[url.Code] = url
	return url, nil
}

func (m *mockURLService) Resolve(ctx context.Context, shortCode string) (*model.URL, error) {
	if m.failErr != nil {
		return nil, m.failErr
	}

	url, exists := m.urls[shortCode]
	if !exists {
		return nil, apperrors.NewStorageError("increment", shortCode, apperrors.ErrURLNotFound, nil)
	}
	url.VisitCount++
	copied := *url
	return &copied, nil
}

func (m *mockURLService) Stats(ctx context.Context, shortCode string) (*model.URL, error) {
	if m.failErr != nil {
		return nil, m.failErr
	}

	url, exists := m.urls[shortCode]
	if !exists {
		return nil, apperrors.NewStorageError("stats", shortCode, apperrors.ErrURLNotFound, nil)
	}
	copied := *url
	return &copied, nil
}

func setupRouter(svc URLShortener) *gin.Engine {
	gin.SetMode(gin.TestMode)

	return NewRouter(RouterConfig{
		URLs:   NewURLHandler(svc, "http://localhost:8080"),
		Health: NewHealthHandler("memory", nil),
	})
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) model.ErrorResponse {
	t.Helper()

	var resp model.ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode error body %q: %v", w.Body.String(), err)
	}
	return resp
}

func TestURLHandler_CreateURL(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		failErr        error
		expectedStatus int
		expectedKind   string
	}{
		{
			name:           "valid request",
			body:           `{"original_url": "https://example.com"}`,
			expectedStatus: http.StatusCreated,
		},
		{
			name:           "invalid JSON",
			body:           `{"original_url": `,
			expectedStatus: http.StatusBadRequest,
			expectedKind:   "invalid_request",
		},
		{
			name:           "missing field",
			body:           `{"url": "https://example.com"}`,
			expectedStatus: http.StatusBadRequest,
			expectedKind:   "invalid_request",
		},
		{
			name:           "invalid URL",
			body:           `{"original_url": "not-a-url"}`,
			failErr:        apperrors.NewValidationError(apperrors.KindInvalidURL, "url", "URL must start with http:// or https://"),
			expectedStatus: http.StatusBadRequest,
			expectedKind:   "invalid_url",
		},
		{
			name:           "URL too long",
			body:           `{"original_url": "https://example.com"}`,
			failErr:        apperrors.NewValidationError(apperrors.KindURLTooLong, "url", "URL is too long"),
			expectedStatus: http.StatusBadRequest,
			expectedKind:   "url_too_long",
		},
		{
			name:           "blocked URL",
			body:           `{"original_url": "https://blocked.example"}`,
			failErr:        apperrors.NewValidationError(apperrors.KindBlockedURL, "url", "host 'blocked.example' is not allowed"),
			expectedStatus: http.StatusForbidden,
			expectedKind:   "blocked_url",
		},
		{
			name:           "code space exhausted",
			body:           `{"original_url": "https://example.com"}`,
			failErr:        apperrors.NewCodeGenerationExhaustedError(5, nil),
			expectedStatus: http.StatusInternalServerError,
			expectedKind:   "code_generation_exhausted",
		},
		{
			name:           "storage unavailable",
			body:           `{"original_url": "https://example.com"}`,
			failErr:        apperrors.NewStorageError("create", "abc123", apperrors.ErrStorageUnavailable, errors.New("pool timeout")),
			expectedStatus: http.StatusServiceUnavailable,
			expectedKind:   "unavailable",
		},
		{
			name:           "unexpected error",
			body:           `{"original_url": "https://example.com"}`,
			failErr:        errors.New("boom"),
			expectedStatus: http.StatusInternalServerError,
			expectedKind:   "internal",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newMockURLService()
			svc.failErr = tt.failErr
			router := setupRouter(svc)

			req := httptest.NewRequest(http.MethodPost, "/api/shorten", bytes.NewBufferString(tt.body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			if w.Code != tt.expectedStatus {
				t.Fatalf("expected status %d, got %d: %s", tt.expectedStatus, w.Code, w.Body.String())
			}

			if tt.expectedKind != "" {
				resp := decodeError(t, w)
				if resp.Error != tt.expectedKind {
					t.Errorf("expected error %q, got %q", tt.expectedKind, resp.Error)
				}
				if resp.Status != tt.expectedStatus {
					t.Errorf("expected status field %d, got %d", tt.expectedStatus, resp.Status)
				}
				if resp.Message == "" {
					t.Error("error message must not be empty")
				}
				return
			}

			var resp model.CreateURLResponse
			if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if resp.ShortCode != "abc123" {
				t.Errorf("expected short code abc123, got %q", resp.ShortCode)
			}
			if resp.ShortURL != "http://localhost:8080/abc123" {
				t.Errorf("unexpected short URL %q", resp.ShortURL)
			}
			if resp.OriginalURL != "https://example.com" {
				t.Errorf("unexpected original URL %q", resp.OriginalURL)
			}
		})
	}
}

func TestURLHandler_ErrorDoesNotLeakCause(t *testing.T) {
	svc := newMockURLService()
	svc.failErr = apperrors.NewStorageError("create", "abc123", apperrors.ErrStorageFailure, errors.New("password authentication failed"))
	router := setupRouter(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/shorten", strings.NewReader(`{"original_url": "https://example.com"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d", w.Code)
	}
	if strings.Contains(w.Body.String(), "password") {
		t.Errorf("response leaks storage cause: %s", w.Body.String())
	}
}

func TestURLHandler_RedirectURL(t *testing.T) {
	svc := newMockURLService()
	svc.urls["abc123"] = &model.URL{ID: 1, Code: "abc123", OriginalURL: "https://example.com/target"}
	router := setupRouter(svc)

	tests := []struct {
		name           string
		path           string
		expectedStatus int
		expectedLoc    string
	}{
		{"existing code", "/abc123", http.StatusFound, "https://example.com/target"},
		{"unknown code", "/zzz999", http.StatusNotFound, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			if w.Code != tt.expectedStatus {
				t.Fatalf("expected status %d, got %d", tt.expectedStatus, w.Code)
			}
			if loc := w.Header().Get("Location"); loc != tt.expectedLoc {
				t.Errorf("expected Location %q, got %q", tt.expectedLoc, loc)
			}
		})
	}

	if svc.urls["abc123"].VisitCount != 1 {
		t.Errorf("redirect must record exactly one visit, got %d", svc.urls["abc123"].VisitCount)
	}
}

func TestURLHandler_GetStats(t *testing.T) {
	svc := newMockURLService()
	svc.urls["abc123"] = &model.URL{ID: 1, Code: "abc123", OriginalURL: "https://example.com", VisitCount: 7}
	router := setupRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/stats/abc123", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}

	var resp model.URLStatsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Visits != 7 || resp.ShortURL != "http://localhost:8080/abc123" {
		t.Errorf("unexpected stats %+v", resp)
	}
}

func TestStatusForKind(t *testing.T) {
	tests := []struct {
		kind apperrors.Kind
		want int
	}{
		{apperrors.KindInvalidURL, http.StatusBadRequest},
		{apperrors.KindURLTooLong, http.StatusBadRequest},
		{apperrors.KindInvalidShortCode, http.StatusBadRequest},
		{apperrors.KindBlockedURL, http.StatusForbidden},
		{apperrors.KindNotFound, http.StatusNotFound},
		{apperrors.KindUnavailable, http.StatusServiceUnavailable},
		{apperrors.KindCodeGenerationExhausted, http.StatusInternalServerError},
		{apperrors.KindConflict, http.StatusInternalServerError},
		{apperrors.KindInternal, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			if got := StatusForKind(tt.kind); got != tt.want {
				t.Errorf("StatusForKind(%s) = %d, want %d", tt.kind, got, tt.want)
			}
		})
	}
}

// The full stack over the in-memory backend.
func TestRouter_EndToEnd(t *testing.T) {
	svc := service.NewURLService(service.Deps{Repo: repository.NewMemoryURLRepository()})
	router := setupRouter(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/shorten", strings.NewReader(`{"original_url": "https://example.com/a"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("shorten: expected 201, got %d: %s", w.Code, w.Body.String())
	}

	var created model.CreateURLResponse
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	req = httptest.NewRequest(http.MethodGet, "/"+created.ShortCode, nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusFound || w.Header().Get("Location") != "https://example.com/a" {
		t.Fatalf("redirect: got %d to %q", w.Code, w.Header().Get("Location"))
	}

	for i := 0; i < 2; i++ {
		req = httptest.NewRequest(http.MethodGet, "/api/stats/"+created.ShortCode, nil)
		w = httptest.NewRecorder()
		router.ServeHTTP(w, req)

		var stats model.URLStatsResponse
		if err := json.Unmarshal(w.Body.Bytes(), &stats); err != nil {
			t.Fatalf("failed to decode stats: %v", err)
		}
		if stats.Visits != 1 {
			t.Errorf("stats: expected 1 visit, got %d", stats.Visits)
		}
	}

	req = httptest.NewRequest(http.MethodGet, "/not-an-alphanumeric-code!", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest || decodeError(t, w).Error != "invalid_short_code" {
		t.Errorf("malformed code: expected 400 invalid_short_code, got %d %s", w.Code, w.Body.String())
	}
}
