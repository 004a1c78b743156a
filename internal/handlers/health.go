package handlers

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
)

func (h HandlerSet) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	status := "ok"
	checks := make(map[string]string, len(names))
	for _, name := range names {
		if err := h.checks[name](ctx); err != nil {
			h.log.Warn().Err(err).Str("check", name).Msg("health check failed")
			checks[name] = "error"
			status = "degraded"
			continue
		}
		checks[name] = "ok"
	}

	c.JSON(http.StatusOK, gin.H{
		"status": status,
		"checks": checks,
		"time":   time.Now().UTC(),
	})
}
