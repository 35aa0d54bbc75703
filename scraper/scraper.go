package scraper

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/use-agent/figscrape/config"
	"github.com/use-agent/figscrape/engine"
	"github.com/use-agent/figscrape/models"
	"github.com/use-agent/figscrape/sites"
)

// BrowserSource hands out browsers the caller then owns. *engine.Pool
// implements it.
type BrowserSource interface {
	Acquire(ctx context.Context) (engine.Browser, error)
}

// Scraper drives one browser per scrape through navigation, challenge
// handling and extraction. It is safe for concurrent use.
type Scraper struct {
	browsers BrowserSource
	sites    *sites.Registry
	cfg      config.ScraperConfig
}

// New creates a Scraper. Zero durations in cfg take the package defaults.
func New(browsers BrowserSource, registry *sites.Registry, cfg config.ScraperConfig) *Scraper {
	if registry == nil {
		registry = sites.Default()
	}
	return &Scraper{
		browsers: browsers,
		sites:    registry,
		cfg:      withDefaults(cfg),
	}
}

func withDefaults(cfg config.ScraperConfig) config.ScraperConfig {
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = 20 * time.Second
	}
	if cfg.DefaultWaitTime <= 0 {
		cfg.DefaultWaitTime = time.Second
	}
	if cfg.ChallengeTimeout <= 0 {
		cfg.ChallengeTimeout = 10 * time.Second
	}
	if cfg.ChallengePollInterval <= 0 {
		cfg.ChallengePollInterval = 250 * time.Millisecond
	}
	if cfg.ChallengeSettle <= 0 {
		cfg.ChallengeSettle = 1500 * time.Millisecond
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 10 * time.Second
	}
	return cfg
}

// Sites returns the registry used by ScrapeSite.
func (s *Scraper) Sites() *sites.Registry {
	return s.sites
}

// ScrapeGeneric scrapes rawURL with a caller-supplied configuration.
//
// Fatal failures are returned as *models.ScrapeError carrying the original
// message. A recoverable extraction failure is not an error: the result
// then holds only Error.
//
// Once started the scrape is not cancelled by ctx; it runs to completion or
// to a fatal error.
func (s *Scraper) ScrapeGeneric(ctx context.Context, rawURL string, cfg *models.ScrapeConfig) (*models.ScrapedData, error) {
	if cfg == nil {
		return nil, models.NewScrapeError(models.ErrCodeInvalidInput, "scrape config is required", nil)
	}
	if err := validateURL(rawURL); err != nil {
		return nil, err
	}
	return s.scrape(context.WithoutCancel(ctx), rawURL, cfg)
}

// ScrapeSite scrapes rawURL with the registered configuration for siteKey.
func (s *Scraper) ScrapeSite(ctx context.Context, siteKey, rawURL string) (*models.ScrapedData, error) {
	cfg, ok := s.sites.Get(siteKey)
	if !ok {
		return nil, models.NewScrapeError(
			models.ErrCodeUnknownSite,
			fmt.Sprintf("unknown site %q", siteKey),
			nil,
		)
	}
	return s.ScrapeGeneric(ctx, rawURL, cfg)
}

func validateURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return models.NewScrapeError(models.ErrCodeInvalidInput, "invalid url", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return models.NewScrapeError(models.ErrCodeInvalidInput, "url must be http or https", nil)
	}
	if u.Host == "" {
		return models.NewScrapeError(models.ErrCodeInvalidInput, "url has no host", nil)
	}
	return nil
}
