package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/figscrape/cache"
	"github.com/use-agent/figscrape/models"
	"github.com/use-agent/figscrape/scraper"
)

// Scrape returns a handler for POST /api/v1/scrape.
//
// Orchestration flow:
//  1. Parse the request and validate its selectors.
//  2. Serve from cache when max_age allows.
//  3. ScrapeGeneric.
//  4. Cache a clean result and respond.
func Scrape(sc Scraper, cc *cache.Cache) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		// ── 1. Parse request ────────────────────────────────────────
		var req models.ScrapeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, models.NewScrapeError(models.ErrCodeInvalidInput, err.Error(), err), models.TimingInfo{})
			return
		}
		if err := scraper.ValidateConfig(req.Config); err != nil {
			respondError(c, err, models.TimingInfo{})
			return
		}

		run := func(ctx context.Context) (*models.ScrapedData, error) {
			return sc.ScrapeGeneric(ctx, req.URL, req.Config)
		}
		serveScrape(c, cc, cache.Key(req.URL, req.Config), req.MaxAge, start, run)
	}
}

// ScrapeSite returns a handler for POST /api/v1/scrape/:site.
func ScrapeSite(sc Scraper, sites SiteLister, cc *cache.Cache) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		site := c.Param("site")

		var req models.SiteScrapeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, models.NewScrapeError(models.ErrCodeInvalidInput, err.Error(), err), models.TimingInfo{})
			return
		}

		// The registered config is part of the cache key, so an updated
		// sites file never serves results scraped with old selectors.
		cfg, ok := sites.Get(site)
		if !ok {
			respondError(c, models.NewScrapeError(models.ErrCodeUnknownSite, "unknown site \""+site+"\"", nil), models.TimingInfo{})
			return
		}

		run := func(ctx context.Context) (*models.ScrapedData, error) {
			return sc.ScrapeSite(ctx, site, req.URL)
		}
		serveScrape(c, cc, cache.Key(req.URL, cfg), req.MaxAge, start, run)
	}
}

func serveScrape(
	c *gin.Context,
	cc *cache.Cache,
	key string,
	maxAge int,
	start time.Time,
	run func(context.Context) (*models.ScrapedData, error),
) {
	// ── 2. Cache lookup ─────────────────────────────────────────────
	useCache := cc != nil && maxAge > 0
	if useCache {
		if cached, hit := cc.Get(key, maxAge); hit {
			c.JSON(http.StatusOK, models.ScrapeResponse{
				Success:     true,
				Data:        cached,
				Timing:      models.TimingInfo{TotalMs: time.Since(start).Milliseconds()},
				CacheStatus: "hit",
			})
			return
		}
	}

	// ── 3. Scrape ───────────────────────────────────────────────────
	data, err := run(c.Request.Context())
	timing := models.TimingInfo{TotalMs: time.Since(start).Milliseconds()}
	if err != nil {
		slog.Warn("scrape failed",
			"code", models.CodeOf(err),
			"error", err,
			"request_id", c.GetString("request_id"),
		)
		respondError(c, err, timing)
		return
	}

	// ── 4. Cache store + respond ────────────────────────────────────
	resp := models.ScrapeResponse{Success: true, Data: data, Timing: timing}
	if useCache {
		cc.Set(key, data)
		resp.CacheStatus = "miss"
	}
	c.JSON(http.StatusOK, resp)
}
