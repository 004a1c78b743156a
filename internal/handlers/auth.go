package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"boomscore/identity/internal/authcookie"
	"boomscore/identity/internal/middleware"
	"boomscore/identity/internal/service"
)

type registerRequest struct {
	Email     string `json:"email"`
	Username  string `json:"username"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Timezone  string `json:"timezone"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type profileRequest struct {
	FirstName *string `json:"firstName"`
	LastName  *string `json:"lastName"`
	Timezone  *string `json:"timezone"`
	Username  *string `json:"username"`
}

type authResponse struct {
	User             userResponse `json:"user"`
	AccessExpiresAt  time.Time    `json:"accessExpiresAt"`
	RefreshExpiresAt time.Time    `json:"refreshExpiresAt"`
	AccessToken      string       `json:"accessToken,omitempty"`
	RefreshToken     string       `json:"refreshToken,omitempty"`
	DeviceID         string       `json:"deviceId,omitempty"`
}

func (h HandlerSet) RegisterAccount(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	result, err := h.auth.Register(c.Request.Context(), service.RegisterInput{
		Email:     req.Email,
		Username:  req.Username,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Timezone:  req.Timezone,
	}, middleware.ClientInfo(c))
	if err != nil {
		h.fail(c, err)
		return
	}

	h.respondWithTokens(c, http.StatusCreated, result)
}

func (h HandlerSet) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	result, err := h.auth.Login(c.Request.Context(), service.LoginInput{
		Email:    req.Email,
		Password: req.Password,
	}, middleware.ClientInfo(c))
	if err != nil {
		h.fail(c, err)
		return
	}

	h.respondWithTokens(c, http.StatusOK, result)
}

// Refresh rotates the refresh token. The token comes from the request body or,
// for browsers, the refresh cookie.
func (h HandlerSet) Refresh(c *gin.Context) {
	var req refreshRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
	}
	token := req.RefreshToken
	if token == "" {
		token, _ = h.transport.Refresh.Read(c.Request)
	}
	if token == "" {
		middleware.Abort(c, http.StatusUnauthorized, "unauthorized", "refresh token required")
		return
	}

	result, err := h.auth.Refresh(c.Request.Context(), token, middleware.ClientInfo(c))
	if err != nil {
		if errors.Is(err, service.ErrUnauthorized) {
			h.transport.Clear(c.Writer)
		}
		h.fail(c, err)
		return
	}

	h.respondWithTokens(c, http.StatusOK, result)
}

// Logout always clears the cookies, even when there was no session to end.
func (h HandlerSet) Logout(c *gin.Context) {
	access, _ := h.transport.AccessToken(c.Request)
	refresh, _ := h.transport.Refresh.Read(c.Request)

	var req refreshRequest
	if c.Request.ContentLength > 0 {
		_ = c.ShouldBindJSON(&req)
	}
	if req.RefreshToken != "" {
		refresh = req.RefreshToken
	}

	h.transport.Clear(c.Writer)
	if err := h.auth.Logout(c.Request.Context(), access, refresh); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h HandlerSet) Me(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)
	c.JSON(http.StatusOK, gin.H{"user": toUserResponse(user)})
}

func (h HandlerSet) UpdateProfile(c *gin.Context) {
	var req profileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	current, _ := middleware.CurrentUser(c)

	user, err := h.auth.UpdateProfile(c.Request.Context(), current.ID, service.ProfileInput{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Timezone:  req.Timezone,
		Username:  req.Username,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": toUserResponse(user)})
}

func (h HandlerSet) UploadAvatar(c *gin.Context) {
	current, _ := middleware.CurrentUser(c)

	// multipart overhead on top of the file itself
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, service.MaxAvatarBytes+64<<10)
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			middleware.Abort(c, http.StatusRequestEntityTooLarge, "file_too_large", "avatar must be at most 2MB")
			return
		}
		middleware.Abort(c, http.StatusBadRequest, "validation_error", "file is required")
		return
	}
	defer file.Close()

	user, err := h.avatars.Upload(c.Request.Context(), service.AvatarInput{
		UserID: current.ID,
		File:   file,
		Header: http.Header(header.Header),
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": toUserResponse(user)})
}

// respondWithTokens hands the pair to the client: cookies by default, the body
// when the client asked for bearer transport.
func (h HandlerSet) respondWithTokens(c *gin.Context, status int, result service.AuthResult) {
	resp := authResponse{
		User:             toUserResponse(result.User),
		AccessExpiresAt:  result.AccessExpiresAt,
		RefreshExpiresAt: result.RefreshExpiresAt,
	}
	if result.Device != nil {
		resp.DeviceID = result.Device.ID
	}

	if authcookie.WantsBearer(c.Request) {
		resp.AccessToken = result.AccessToken
		resp.RefreshToken = result.RefreshToken
		c.Header("Cache-Control", "no-store")
	} else {
		h.transport.Write(c.Writer, result.AccessToken, result.RefreshToken)
	}
	c.JSON(status, resp)
}
