package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"boomscore/identity/internal/middleware"
)

func (h HandlerSet) ListSessions(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)

	sessions, err := h.accounts.ListSessions(c.Request.Context(), user.ID)
	if err != nil {
		h.fail(c, err)
		return
	}

	var currentToken string
	if claims, ok := middleware.CurrentClaims(c); ok {
		currentToken = claims.SessionToken()
	}

	items := make([]sessionResponse, 0, len(sessions))
	for _, s := range sessions {
		items = append(items, toSessionResponse(s, currentToken))
	}
	c.JSON(http.StatusOK, gin.H{"sessions": items})
}

func (h HandlerSet) RevokeSession(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)

	if err := h.accounts.RevokeSession(c.Request.Context(), user.ID, c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h HandlerSet) ListDevices(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)

	devices, err := h.accounts.ListDevices(c.Request.Context(), user.ID)
	if err != nil {
		h.fail(c, err)
		return
	}

	items := make([]deviceResponse, 0, len(devices))
	for _, d := range devices {
		items = append(items, toDeviceResponse(d))
	}
	c.JSON(http.StatusOK, gin.H{"devices": items})
}

func (h HandlerSet) TrustDevice(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)

	device, err := h.accounts.TrustDevice(c.Request.Context(), user.ID, c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"device": toDeviceResponse(device)})
}

type blockDeviceRequest struct {
	Reason string `json:"reason"`
}

func (h HandlerSet) BlockDevice(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)

	var req blockDeviceRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
	}

	device, err := h.accounts.BlockDevice(c.Request.Context(), user.ID, c.Param("id"), req.Reason)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"device": toDeviceResponse(device)})
}
