package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/figscrape/models"
)

// Sites returns a handler for GET /api/v1/sites.
func Sites(sites SiteLister) gin.HandlerFunc {
	return func(c *gin.Context) {
		keys := sites.Keys()
		if keys == nil {
			keys = []string{}
		}
		c.JSON(http.StatusOK, models.SitesResponse{Sites: keys})
	}
}
