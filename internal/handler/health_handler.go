package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/zonelab/geozone/pkg/database"
	"github.com/zonelab/geozone/pkg/redis"
)

// HealthHandler serves liveness and readiness probes
type HealthHandler struct {
	db    *database.PostgresDB
	redis *redis.Client
}

// NewHealthHandler creates a new HealthHandler
func NewHealthHandler(db *database.PostgresDB, redisClient *redis.Client) *HealthHandler {
	return &HealthHandler{db: db, redis: redisClient}
}

// Health handles GET /health - process liveness
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Ready handles GET /ready - dependency readiness. Redis is optional, only
// the database gates readiness.
func (h *HealthHandler) Ready(c *gin.Context) {
	ctx := c.Request.Context()

	checks := gin.H{}
	healthy := true

	start := time.Now()
	if err := h.db.Ping(ctx); err != nil {
		checks["database"] = gin.H{"status": "down", "error": err.Error()}
		healthy = false
	} else {
		stats := h.db.Stats()
		checks["database"] = gin.H{
			"status":      "up",
			"latency_ms":  time.Since(start).Milliseconds(),
			"total_conns": stats.TotalConns(),
			"idle_conns":  stats.IdleConns(),
		}
	}

	if h.redis != nil {
		if err := h.redis.Ping(ctx); err != nil {
			checks["redis"] = gin.H{"status": "down", "error": err.Error()}
		} else {
			checks["redis"] = gin.H{"status": "up"}
		}
	}

	if !healthy {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "checks": checks})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready", "checks": checks})
}
