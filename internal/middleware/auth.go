package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"boomscore/identity/internal/authcookie"
	"boomscore/identity/internal/models"
	"boomscore/identity/internal/observe"
	"boomscore/identity/internal/security"
	"boomscore/identity/internal/service"
)

const (
	currentUserKey     = "current_user"
	accessClaimsKey    = "access_claims"
	anonymousReasonKey = "anonymous_reason"

	FingerprintHeader = "X-Device-Fingerprint"
	DeviceNameHeader  = "X-Device-Name"
)

type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string, client service.ClientInfo) (service.Principal, error)
}

// Authenticate resolves the caller from the access cookie or bearer header. It
// never rejects a request for a bad token: the caller just stays anonymous and
// Guard decides. Only storage failures end the request here.
func Authenticate(auth Authenticator, transport authcookie.Transport, recorder observe.Recorder, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := transport.AccessToken(c.Request)
		if !ok {
			c.Next()
			return
		}

		principal, err := auth.Authenticate(c.Request.Context(), token, ClientInfo(c))
		if err != nil {
			if errors.Is(err, service.ErrUnauthorized) {
				recorder.Record(c.Request.Context(), observe.Event{
					Kind:   observe.EventTokenRejected,
					IP:     c.ClientIP(),
					Reason: err.Error(),
				})
				c.Set(anonymousReasonKey, err.Error())
				c.Next()
				return
			}
			log.Error().Err(err).Str("request_id", RequestIDFrom(c)).Msg("authenticate request")
			Abort(c, http.StatusInternalServerError, "internal_error", "internal server error")
			return
		}

		c.Set(currentUserKey, principal.User)
		c.Set(accessClaimsKey, principal.Claims)
		c.Request = c.Request.WithContext(service.ContextWithPrincipal(c.Request.Context(), principal))

		c.Next()
	}
}

// ClientInfo describes the caller as the auth services expect it.
func ClientInfo(c *gin.Context) service.ClientInfo {
	return service.ClientInfo{
		IP:          c.ClientIP(),
		UserAgent:   c.Request.UserAgent(),
		Fingerprint: c.GetHeader(FingerprintHeader),
		DeviceName:  c.GetHeader(DeviceNameHeader),
		Location:    c.GetHeader("CF-IPCountry"),
	}
}

func CurrentUser(c *gin.Context) (models.User, bool) {
	v, ok := c.Get(currentUserKey)
	if !ok {
		return models.User{}, false
	}
	user, ok := v.(models.User)
	return user, ok
}

func CurrentClaims(c *gin.Context) (*security.Claims, bool) {
	v, ok := c.Get(accessClaimsKey)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*security.Claims)
	return claims, ok && claims != nil
}

// AnonymousReason explains why a presented token did not authenticate.
func AnonymousReason(c *gin.Context) string {
	return c.GetString(anonymousReasonKey)
}

// Abort ends the request with the JSON error body used across the API.
func Abort(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, gin.H{"error": code, "message": message})
}
