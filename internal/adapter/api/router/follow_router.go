package router

import (
	"github.com/labstack/echo/v4"

	"recipehub/internal/adapter/api/handler"
	"recipehub/internal/adapter/api/middleware"
)

func SetupFollowRouter(e *echo.Echo, h *handler.FollowHandler, authMiddleware *middleware.AuthMiddleware) {
	users := e.Group("/v1/users")
	users.Use(authMiddleware.Authenticate)

	users.POST("/:id/follow", h.Follow)
	users.DELETE("/:id/follow", h.Unfollow)
	users.GET("/:id/following-status", h.FollowingStatus)
}
