package handler

import (
	"net/http"
	"time"

	"storefront/internal/metrics"

	"github.com/labstack/echo/v4"
)

type HealthHandler struct {
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewHealthHandler(m *metrics.Metrics) *HealthHandler {
	return &HealthHandler{metrics: m, now: time.Now}
}

type HealthResponse struct {
	OK bool  `json:"ok"`
	TS int64 `json:"ts"`
}

func (h *HealthHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", h.health)
	if h.metrics != nil {
		e.GET("/metrics", echo.WrapHandler(h.metrics.Handler()))
	}
}

func (h *HealthHandler) health(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{OK: true, TS: h.now().UnixMilli()})
}
