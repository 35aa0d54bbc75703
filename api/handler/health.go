package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/figscrape/models"
)

// Health returns a handler for GET /api/v1/health.
//
// Status is "degraded" once the pool is initialized but has no idle browser
// and no emergency headroom left, i.e. the next acquire would fail.
func Health(pool Pool, startTime time.Time, version string) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats := pool.Stats()

		status := "healthy"
		if stats.Initialized && stats.Available == 0 && stats.Emergency >= stats.MaxEmergency {
			status = "degraded"
		}

		c.JSON(http.StatusOK, models.HealthResponse{
			Status:    status,
			Uptime:    time.Since(startTime).Round(time.Second).String(),
			PoolStats: stats,
			Version:   version,
		})
	}
}
