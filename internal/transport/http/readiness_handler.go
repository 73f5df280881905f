package http

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/io-pipeline/platform-registration-service/internal/config"
	"github.com/io-pipeline/platform-registration-service/internal/readiness"
)

// Checker is the slice of C9 this handler drives.
type Checker interface {
	Check(ctx context.Context) readiness.Status
}

// ReadinessHandler exposes the aggregate readiness probe over HTTP.
type ReadinessHandler struct {
	checker Checker
	logger  config.Logger
}

// NewReadinessHandler builds a ReadinessHandler.
func NewReadinessHandler(checker Checker, logger config.Logger) *ReadinessHandler {
	return &ReadinessHandler{checker: checker, logger: logger}
}

// RegisterRoutes mounts /readyz directly on the root echo instance, outside
// the /v1 group per convention for health/readiness probes.
func (h *ReadinessHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/readyz", h.readyz)
}

func (h *ReadinessHandler) readyz(c echo.Context) error {
	status := h.checker.Check(c.Request().Context())
	code := http.StatusOK
	if !status.Up {
		code = http.StatusServiceUnavailable
	}
	return c.JSON(code, status)
}
