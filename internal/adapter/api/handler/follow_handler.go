package handler

import (
	"github.com/labstack/echo/v4"

	"recipehub/internal/adapter/api/middleware"
	"recipehub/internal/usecase"
	"recipehub/pkg/response"
)

type FollowHandler struct {
	relationshipUseCase *usecase.RelationshipUseCase
}

func NewFollowHandler(relationshipUseCase *usecase.RelationshipUseCase) *FollowHandler {
	return &FollowHandler{
		relationshipUseCase: relationshipUseCase,
	}
}

type followStatus struct {
	UserID    string `json:"user_id"`
	Following bool   `json:"following"`
}

func (h *FollowHandler) Follow(c echo.Context) error {
	if err := h.relationshipUseCase.FollowUser(c.Request().Context(), middleware.UserID(c), c.Param("id")); err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, followStatus{UserID: c.Param("id"), Following: true})
}

func (h *FollowHandler) Unfollow(c echo.Context) error {
	if err := h.relationshipUseCase.UnfollowUser(c.Request().Context(), middleware.UserID(c), c.Param("id")); err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, followStatus{UserID: c.Param("id"), Following: false})
}

func (h *FollowHandler) FollowingStatus(c echo.Context) error {
	following, err := h.relationshipUseCase.IsFollowing(c.Request().Context(), middleware.UserID(c), c.Param("id"))
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, followStatus{UserID: c.Param("id"), Following: following})
}
