package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"boomscore/identity/internal/models"
)

type statusRequest struct {
	Status string `json:"status" binding:"required"`
}

type roleRequest struct {
	Role string `json:"role" binding:"required"`
}

func (h HandlerSet) SetUserStatus(c *gin.Context) {
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	user, err := h.accounts.SetUserStatus(c.Request.Context(), c.Param("id"), models.UserStatus(req.Status))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": toUserResponse(user)})
}

func (h HandlerSet) SetUserRole(c *gin.Context) {
	var req roleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	user, err := h.accounts.SetUserRole(c.Request.Context(), c.Param("id"), models.UserRole(req.Role))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": toUserResponse(user)})
}
