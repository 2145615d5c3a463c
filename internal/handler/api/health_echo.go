package api

import (
	"context"
	"net/http"
	"sort"
	"time"

	xhttp "FeatPipe/pkg/http"
	xlogger "FeatPipe/pkg/logger"

	"github.com/labstack/echo/v4"
)

// Checker reports whether a backing service is reachable.
type Checker func(ctx context.Context) error

// ReadinessHandler serves /readyz from a set of named checks.
type ReadinessHandler struct {
	logger  *xlogger.Logger
	checks  map[string]Checker
	timeout time.Duration
}

func NewReadinessHandler(logger *xlogger.Logger, checks map[string]Checker) *ReadinessHandler {
	return &ReadinessHandler{logger: logger, checks: checks, timeout: 3 * time.Second}
}

func (h *ReadinessHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/readyz", h.Ready)
}

func (h *ReadinessHandler) Ready(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	status := make(map[string]string, len(names))
	ready := true
	for _, name := range names {
		if err := h.checks[name](ctx); err != nil {
			h.logger.Warn("readiness check failed", xlogger.String("check", name), xlogger.Error(err))
			status[name] = err.Error()
			ready = false
			continue
		}
		status[name] = "ok"
	}
	if !ready {
		return xhttp.DataResponse(c, http.StatusServiceUnavailable, status)
	}
	return xhttp.SuccessResponse(c, status)
}
