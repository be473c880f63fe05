package router

import (
	"github.com/labstack/echo/v4"

	"recipehub/internal/adapter/api/handler"
	"recipehub/internal/adapter/api/middleware"
	"recipehub/internal/infrastructure/ratelimit"
)

func SetupNotificationRouter(e *echo.Echo, h *handler.NotificationHandler, authMiddleware *middleware.AuthMiddleware, limiter *ratelimit.RateLimiter) {
	notifications := e.Group("/v1/notifications")
	notifications.Use(authMiddleware.Authenticate)

	notifications.GET("", h.ListNotifications)
	notifications.GET("/counts", h.Counts)
	notifications.POST("", h.CreateNotification, middleware.RateLimit(limiter, ratelimit.ActionNotify))
	notifications.DELETE("/likes", h.RemoveLike)
	notifications.POST("/open", h.OpenPanel)
	notifications.PUT("/read-all", h.MarkAllRead)
	notifications.PUT("/:id/read", h.MarkRead)
	notifications.DELETE("/:id", h.DeleteNotification)
}
