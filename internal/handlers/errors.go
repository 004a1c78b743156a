package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"boomscore/identity/internal/middleware"
	"boomscore/identity/internal/oauth"
	"boomscore/identity/internal/service"
)

type errorMapping struct {
	target  error
	status  int
	code    string
	message string
}

// Order matters: more specific errors come before the ones they wrap.
var errorMappings = []errorMapping{
	{service.ErrValidation, http.StatusBadRequest, "validation_error", ""},
	{service.ErrDuplicateEmail, http.StatusConflict, "duplicate_email", "email already registered"},
	{service.ErrDuplicateUsername, http.StatusConflict, "duplicate_username", "username already taken"},
	{service.ErrDuplicateAccount, http.StatusConflict, "duplicate_account", "account already exists"},
	{service.ErrInvalidCredentials, http.StatusUnauthorized, "invalid_credentials", "invalid email or password"},
	{service.ErrRefreshReuse, http.StatusUnauthorized, "refresh_reuse", "session ended, sign in again"},
	{service.ErrUnauthorized, http.StatusUnauthorized, "unauthorized", "authentication required"},
	{service.ErrAccountInactive, http.StatusUnauthorized, "account_inactive", "account is not active"},
	{service.ErrDeviceBlocked, http.StatusForbidden, "device_blocked", "this device has been blocked"},
	{service.ErrForbidden, http.StatusForbidden, "forbidden", "forbidden"},
	{service.ErrNotFound, http.StatusNotFound, "not_found", "not found"},
	{service.ErrAvatarStorageDisabled, http.StatusServiceUnavailable, "storage_unavailable", "avatar storage is not configured"},
	{oauth.ErrProviderDisabled, http.StatusServiceUnavailable, "provider_disabled", "sign-in provider not configured"},
	{oauth.ErrInvalidState, http.StatusBadRequest, "invalid_state", "sign-in link expired, try again"},
	{oauth.ErrEmailNotVerified, http.StatusForbidden, "email_not_verified", "provider email is not verified"},
}

// classify maps err to the HTTP status and error code the API answers with.
func classify(err error) (int, string, string) {
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			msg := m.message
			if msg == "" {
				msg = err.Error()
			}
			return m.status, m.code, msg
		}
	}
	return http.StatusInternalServerError, "internal_error", "internal server error"
}

func (h HandlerSet) fail(c *gin.Context, err error) {
	status, code, message := classify(err)
	if status == http.StatusInternalServerError {
		h.log.Error().Err(err).
			Str("request_id", middleware.RequestIDFrom(c)).
			Str("path", c.FullPath()).
			Msg("request failed")
	}
	_ = c.Error(err)
	middleware.Abort(c, status, code, message)
}

func badRequest(c *gin.Context, err error) {
	middleware.Abort(c, http.StatusBadRequest, "validation_error", err.Error())
}
