// Package handler holds the gin handlers of the HTTP API.
package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/figscrape/models"
)

// Scraper runs scrapes. *scraper.Scraper implements it.
type Scraper interface {
	ScrapeGeneric(ctx context.Context, url string, cfg *models.ScrapeConfig) (*models.ScrapedData, error)
	ScrapeSite(ctx context.Context, site, url string) (*models.ScrapedData, error)
}

// SiteLister exposes the registered site configurations. *sites.Registry
// implements it.
type SiteLister interface {
	Get(key string) (*models.ScrapeConfig, bool)
	Keys() []string
}

// Pool is the browser pool surface the API needs. *engine.Pool implements it.
type Pool interface {
	Stats() models.PoolStats
	Reset(ctx context.Context) error
}

// respondError maps a ScrapeError to the correct HTTP status code and writes
// a structured JSON error response.
func respondError(c *gin.Context, err error, timing models.TimingInfo) {
	var scrapeErr *models.ScrapeError
	if !errors.As(err, &scrapeErr) {
		scrapeErr = models.NewScrapeError(models.ErrCodeInternal, "internal error", err)
	}

	c.JSON(mapErrorToStatus(scrapeErr), models.ScrapeResponse{
		Success: false,
		Error:   scrapeErr.ToDetail(),
		Timing:  timing,
	})
}

// mapErrorToStatus translates error codes to HTTP status codes.
func mapErrorToStatus(e *models.ScrapeError) int {
	switch e.Code {
	case models.ErrCodeInvalidInput:
		return http.StatusBadRequest // 400
	case models.ErrCodeUnauthorized:
		return http.StatusUnauthorized // 401
	case models.ErrCodeForbidden:
		return http.StatusForbidden // 403
	case models.ErrCodeUnknownSite:
		return http.StatusNotFound // 404
	case models.ErrCodeRateLimited:
		return http.StatusTooManyRequests // 429
	case models.ErrCodeNavigation:
		return http.StatusBadGateway // 502
	case models.ErrCodePoolExhausted:
		return http.StatusServiceUnavailable // 503
	case models.ErrCodeTimeout:
		return http.StatusGatewayTimeout // 504
	default:
		return http.StatusInternalServerError // 500
	}
}
