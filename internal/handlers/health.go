package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
)

type pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	db    pinger
	redis *redis.Client
}

// NewHealthHandler checks rdb only when it is non-nil.
func NewHealthHandler(db pinger, rdb *redis.Client) *HealthHandler {
	return &HealthHandler{db: db, redis: rdb}
}

func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	checks := gin.H{"database": "ok"}
	healthy := true

	if err := h.db.Ping(ctx); err != nil {
		checks["database"] = "unavailable"
		healthy = false
	}
	if h.redis != nil {
		checks["redis"] = "ok"
		if err := h.redis.Ping(ctx).Err(); err != nil {
			checks["redis"] = "unavailable"
			healthy = false
		}
	}

	if !healthy {
		c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "data": checks})
		return
	}
	respond(c, http.StatusOK, checks)
}
