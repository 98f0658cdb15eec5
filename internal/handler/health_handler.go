package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Kosench/go-shortener/internal/repository"
)

const serviceVersion = "1.0.0"

// HealthHandler reports on the storage backend. checker is nil for backends
// with nothing to ping.
type HealthHandler struct {
	backend string
	checker repository.HealthChecker
}

func NewHealthHandler(backend string, checker repository.HealthChecker) *HealthHandler {
	return &HealthHandler{
		backend: backend,
		checker: checker,
	}
}

func (h *HealthHandler) Health(c *gin.Context) {
	storage := "healthy"
	if h.checker != nil {
		if err := h.checker.Ping(c.Request.Context()); err != nil {
			_ = c.Error(err)
			storage = "unhealthy"
		}
	}

	status, code := "healthy", http.StatusOK
	if storage != "healthy" {
		status, code = "degraded", http.StatusServiceUnavailable
	}

	c.JSON(code, gin.H{
		"status": status,
		"services": gin.H{
			"storage": storage,
		},
	})
}

func (h *HealthHandler) Info(c *gin.Context) {
	info := gin.H{
		"service":         "URL Shortener",
		"version":         serviceVersion,
		"storage_backend": h.backend,
	}

	if h.checker != nil {
		if version, err := h.checker.Version(c.Request.Context()); err == nil {
			info["storage_version"] = version
		}
	}

	c.JSON(http.StatusOK, info)
}
