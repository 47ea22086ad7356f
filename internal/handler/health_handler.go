package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

var startTime = time.Now()

// Pinger is a dependency whose reachability is reported by the health check.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler provides health endpoint.
type HealthHandler struct {
	mongo Pinger
	redis Pinger
}

// NewHealthHandler creates a new HealthHandler. redis may be nil when caching is disabled.
func NewHealthHandler(mongo, redis Pinger) *HealthHandler {
	return &HealthHandler{mongo: mongo, redis: redis}
}

// GetHealth responds 200 when MongoDB answers and 503 otherwise. Redis is
// reported but not required.
func (h *HealthHandler) GetHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	code := http.StatusOK
	status := "healthy"
	mongoStatus := "connected"
	if err := h.mongo.Ping(ctx); err != nil {
		code = http.StatusServiceUnavailable
		status = "unhealthy"
		mongoStatus = "disconnected"
	}

	redisStatus := "disabled"
	if h.redis != nil {
		redisStatus = "connected"
		if err := h.redis.Ping(ctx); err != nil {
			redisStatus = "disconnected"
		}
	}

	c.JSON(code, gin.H{
		"status":  status,
		"version": "1.0.0",
		"uptime":  int(time.Since(startTime).Seconds()),
		"mongodb": mongoStatus,
		"redis":   redisStatus,
	})
}
