package handler

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/figscrape/models"
)

// ResetPool returns a handler for POST /api/v1/admin/pool/reset. It is
// refused in production.
func ResetPool(pool Pool, production bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if production {
			c.JSON(http.StatusForbidden, models.ResetResponse{
				Error: &models.ErrorDetail{
					Code:    models.ErrCodeForbidden,
					Message: "pool reset is disabled in production",
				},
			})
			return
		}

		slog.Warn("pool reset requested", "client_ip", c.ClientIP())
		if err := pool.Reset(c.Request.Context()); err != nil {
			// The pool is reset even when some closes failed.
			c.JSON(http.StatusInternalServerError, models.ResetResponse{
				Error: &models.ErrorDetail{Code: models.ErrCodeInternal, Message: err.Error()},
			})
			return
		}
		c.JSON(http.StatusOK, models.ResetResponse{Success: true})
	}
}
