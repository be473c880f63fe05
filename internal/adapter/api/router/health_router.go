package router

import (
	"github.com/labstack/echo/v4"

	"recipehub/internal/adapter/api/handler"
	"recipehub/internal/infrastructure/metrics"
)

func SetupHealthRouter(e *echo.Echo, h *handler.HealthHandler) {
	e.GET("/health", h.CheckHealth)
	e.GET("/metrics", metrics.Handler())
}
