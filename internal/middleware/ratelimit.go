package middleware

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"boomscore/identity/internal/observe"
)

type HitCounter interface {
	Hit(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
}

// RateLimit caps attempts per client IP and scope inside a window. Counter
// outages let requests through.
func RateLimit(counter HitCounter, scope string, max int, window time.Duration, recorder observe.Recorder, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if counter == nil || max <= 0 {
			c.Next()
			return
		}

		count, remaining, err := counter.Hit(c.Request.Context(), scope+":"+c.ClientIP(), window)
		if err != nil {
			log.Warn().Err(err).Str("scope", scope).Msg("rate limit counter unavailable")
			c.Next()
			return
		}

		if count > int64(max) {
			seconds := int(remaining.Round(time.Second) / time.Second)
			if seconds < 1 {
				seconds = 1
			}
			c.Header("Retry-After", strconv.Itoa(seconds))
			recorder.Record(c.Request.Context(), observe.Event{Kind: observe.EventRateLimited, IP: c.ClientIP(), Reason: scope})
			Abort(c, http.StatusTooManyRequests, "rate_limited", "too many attempts, try again later")
			return
		}

		c.Next()
	}
}
