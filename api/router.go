package api

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/figscrape/api/handler"
	"github.com/use-agent/figscrape/api/middleware"
	"github.com/use-agent/figscrape/cache"
	"github.com/use-agent/figscrape/config"
)

// Deps are the components the router serves.
type Deps struct {
	Scraper   handler.Scraper
	Sites     handler.SiteLister
	Pool      handler.Pool
	Cache     *cache.Cache // nil disables caching
	StartTime time.Time
	Version   string
}

// NewRouter creates a configured Gin engine with all routes and middleware.
// Background work started for the router stops when ctx is done.
//
// Middleware chain:
//
//	Global:  Recovery → RequestID → Logger
//	API:     Auth (if enabled) → RateLimit
//	Admin:   AdminAuth
//
// Health is outside auth so monitoring probes always work.
func NewRouter(ctx context.Context, cfg *config.Config, d Deps) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())

	v1 := r.Group("/api/v1")

	v1.GET("/health", handler.Health(d.Pool, d.StartTime, d.Version))

	protected := v1.Group("")
	if cfg.Auth.Enabled {
		protected.Use(middleware.Auth(cfg.Auth.APIKeys))
	}
	protected.Use(middleware.RateLimit(ctx, cfg.RateLimit))

	protected.GET("/sites", handler.Sites(d.Sites))
	protected.POST("/scrape", handler.Scrape(d.Scraper, d.Cache))
	protected.POST("/scrape/:site", handler.ScrapeSite(d.Scraper, d.Sites, d.Cache))

	admin := v1.Group("/admin", middleware.AdminAuth(cfg.Auth.AdminKey))
	admin.POST("/pool/reset", handler.ResetPool(d.Pool, cfg.Server.IsProduction()))

	return r
}
