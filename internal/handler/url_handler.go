package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/Kosench/go-shortener/internal/errors"
	"github.com/Kosench/go-shortener/internal/model"
)

const kindInvalidRequest = "invalid_request"

// URLShortener is the service the handler serves.
type URLShortener interface {
	Shorten(ctx context.Context, rawURL string) (*model.URL, error)
	Resolve(ctx context.Context, shortCode string) (*model.URL, error)
	Stats(ctx context.Context, shortCode string) (*model.URL, error)
}

type URLHandler struct {
	urlService URLShortener
	baseURL    string
}

func NewURLHandler(urlService URLShortener, baseURL string) *URLHandler {
	return &URLHandler{
		urlService: urlService,
		baseURL:    baseURL,
	}
}

func (h *URLHandler) CreateURL(c *gin.Context) {
	var req model.CreateURLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, kindInvalidRequest, "request body must be JSON with an original_url field")
		return
	}

	url, err := h.urlService.Shorten(c.Request.Context(), req.OriginalURL)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, model.CreateURLResponse{
		ShortCode:   url.Code,
		ShortURL:    h.buildShortURL(url.Code),
		OriginalURL: url.OriginalURL,
		CreatedAt:   url.CreatedAt,
	})
}

// RedirectURL counts the visit before redirecting, so a 302 always means the
// visit was stored.
func (h *URLHandler) RedirectURL(c *gin.Context) {
	url, err := h.urlService.Resolve(c.Request.Context(), c.Param("shortCode"))
	if err != nil {
		h.handleError(c, err)
		return
	}

	// Выполняем редирект (HTTP 302 - Found)
	c.Redirect(http.StatusFound, url.OriginalURL)
}

func (h *URLHandler) GetStats(c *gin.Context) {
	url, err := h.urlService.Stats(c.Request.Context(), c.Param("shortCode"))
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, model.URLStatsResponse{
		ShortCode:   url.Code,
		ShortURL:    h.buildShortURL(url.Code),
		OriginalURL: url.OriginalURL,
		Visits:      url.VisitCount,
		CreatedAt:   url.CreatedAt,
	})
}

// handleError обрабатывает ошибки и возвращает соответствующие HTTP коды
func (h *URLHandler) handleError(c *gin.Context, err error) {
	kind := apperrors.KindOf(err)
	status := StatusForKind(kind)

	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
	}

	writeError(c, status, string(kind), apperrors.MessageOf(err))
}

// StatusForKind is the fixed mapping from error kind to HTTP status.
func StatusForKind(kind apperrors.Kind) int {
	switch kind {
	case apperrors.KindInvalidURL, apperrors.KindURLTooLong, apperrors.KindInvalidShortCode:
		return http.StatusBadRequest
	case apperrors.KindBlockedURL:
		return http.StatusForbidden
	case apperrors.KindNotFound:
		return http.StatusNotFound
	case apperrors.KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(c *gin.Context, status int, kind, message string) {
	c.AbortWithStatusJSON(status, model.ErrorResponse{
		Error:   kind,
		Message: message,
		Status:  status,
	})
}

func (h *URLHandler) buildShortURL(shortCode string) string {
	return fmt.Sprintf("%s/%s", h.baseURL, shortCode)
}
