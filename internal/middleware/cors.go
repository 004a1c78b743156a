package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

var corsAllowHeaders = strings.Join([]string{
	"Authorization",
	"Content-Type",
	requestIDHeader,
	FingerprintHeader,
	DeviceNameHeader,
	"X-Auth-Transport",
}, ", ")

// CORS reflects allowed origins with credentials, since auth rides on cookies.
// An empty allow list reflects any origin.
func CORS(allowedOrigins []string) gin.HandlerFunc {
	allowAll := len(allowedOrigins) == 0
	originMap := make(map[string]struct{}, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		originMap[strings.TrimRight(strings.TrimSpace(origin), "/")] = struct{}{}
	}

	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin != "" {
			c.Writer.Header().Add("Vary", "Origin")
			_, allowed := originMap[origin]
			if allowAll || allowed {
				c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
				c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
			}
		}

		c.Writer.Header().Set("Access-Control-Allow-Headers", corsAllowHeaders)
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Expose-Headers", requestIDHeader)

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
