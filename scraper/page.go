package scraper

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/use-agent/figscrape/challenge"
	"github.com/use-agent/figscrape/engine"
	"github.com/use-agent/figscrape/models"
)

const (
	viewportWidth  = 1920
	viewportHeight = 1080

	defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"
)

// browserHeaders are sent with every navigation.
var browserHeaders = map[string]string{
	"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8",
	"Accept-Language":           "en-US,en;q=0.9",
	"Accept-Encoding":           "gzip, deflate, br",
	"DNT":                       "1",
	"Upgrade-Insecure-Requests": "1",
	"Sec-Fetch-Dest":            "document",
	"Sec-Fetch-Mode":            "navigate",
	"Sec-Fetch-Site":            "none",
	"Sec-Fetch-User":            "?1",
}

// scrape runs one scrape on a dedicated browser.
//
// Lifecycle (numbered steps match the inline comments):
//
//  1. Acquire    – take a browser from the pool
//  2. Prepare    – open a page; viewport, user agent, headers
//  3. Navigate   – load the URL, DOM ready only
//  4. Settle     – wait for late content
//  5. Challenge  – detect an interstitial and wait for it to clear
//  6. Extract    – evaluate selectors against the rendered HTML
//  7. Cleanup    – DEFERRED: close page, then browser
//
// Failures in 1-3 are fatal. Failures in 5-6 are fatal only when
// IsCritical says so; otherwise they become ScrapedData.Error.
func (s *Scraper) scrape(ctx context.Context, rawURL string, cfg *models.ScrapeConfig) (*models.ScrapedData, error) {
	start := time.Now()
	log := slog.With("url", rawURL)

	// ── 1. Acquire ────────────────────────────────────────────────────
	browser, err := s.browsers.Acquire(ctx)
	if err != nil {
		log.Warn("scrape: no browser available", "error", err)
		return nil, err
	}

	// ── 7. CRITICAL DEFER: the browser must never leak ────────────────
	var page engine.Page
	defer func() {
		if page != nil {
			if err := page.Close(); err != nil {
				log.Warn("cleanup: failed to close page", "error", err)
			}
		}
		if err := browser.Close(); err != nil {
			log.Warn("cleanup: failed to close browser", "error", err)
		}
	}()

	// ── 2. Prepare ────────────────────────────────────────────────────
	page, err = browser.NewPage(ctx)
	if err != nil {
		return nil, models.WrapError(models.ErrCodeBrowserCrash, err)
	}
	if err := preparePage(page, cfg); err != nil {
		return nil, models.WrapError(models.ErrCodeBrowserCrash, err)
	}

	// ── 3. Navigate ───────────────────────────────────────────────────
	if err := page.Navigate(ctx, rawURL, s.cfg.NavigationTimeout); err != nil {
		log.Warn("scrape: navigation failed", "error", err)
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, models.WrapError(models.ErrCodeTimeout, err)
		}
		return nil, models.WrapError(models.ErrCodeNavigation, err)
	}
	log.Debug("scrape: navigated", "elapsed", time.Since(start))

	// ── 4. Settle ─────────────────────────────────────────────────────
	wait := s.cfg.DefaultWaitTime
	if cfg.WaitTime > 0 {
		wait = time.Duration(cfg.WaitTime) * time.Millisecond
	}
	time.Sleep(wait)

	// ── 5. Challenge ──────────────────────────────────────────────────
	if cfg.CloudflareDetection != nil {
		if err := s.awaitChallenge(ctx, log, page, cfg.CloudflareDetection); err != nil {
			return degrade(log, err)
		}
	}

	// ── 6. Extract ────────────────────────────────────────────────────
	hctx, cancel := context.WithTimeout(ctx, s.cfg.ReadTimeout)
	html, err := page.HTML(hctx)
	cancel()
	if err != nil {
		return degrade(log, err)
	}
	base := page.URL()
	if base == "" {
		base = rawURL
	}
	data, err := extract(html, base, cfg)
	if err != nil {
		return degrade(log, err)
	}

	log.Info("scrape: done", "elapsed", time.Since(start))
	return data, nil
}

func preparePage(page engine.Page, cfg *models.ScrapeConfig) error {
	if err := page.SetViewport(viewportWidth, viewportHeight); err != nil {
		return err
	}
	ua := cfg.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}
	if err := page.SetUserAgent(ua); err != nil {
		return err
	}
	return page.SetExtraHeaders(browserHeaders)
}

// awaitChallenge checks for a challenge page and, if one is showing, polls
// until none of the caller's own patterns remain in the title or body.
// Every read runs under ChallengeTimeout; running out of it, even inside a
// hung read, is logged and tolerated.
func (s *Scraper) awaitChallenge(ctx context.Context, log *slog.Logger, page engine.Page, det *models.CloudflareDetection) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.ChallengeTimeout)
	defer cancel()

	title, body, err := readPage(ctx, page)
	if err != nil {
		return challengeReadErr(ctx, log, err)
	}
	if !challenge.Detect(title, body, det.TitleIncludes, det.BodyIncludes) {
		return nil
	}
	log.Info("scrape: challenge detected, waiting", "title", title, "timeout", s.cfg.ChallengeTimeout)

	ticker := time.NewTicker(s.cfg.ChallengePollInterval)
	defer ticker.Stop()

	for {
		if !challenge.ContainsAny(title, det.TitleIncludes) && !challenge.ContainsAny(body, det.BodyIncludes) {
			log.Info("scrape: challenge cleared")
			time.Sleep(s.cfg.ChallengeSettle)
			return nil
		}

		select {
		case <-ctx.Done():
			log.Warn("scrape: challenge still present after timeout, extracting anyway", "title", title)
			return nil
		case <-ticker.C:
		}
		if title, body, err = readPage(ctx, page); err != nil {
			return challengeReadErr(ctx, log, err)
		}
	}
}

// challengeReadErr tolerates a read cut short by the challenge deadline and
// passes any other failure through.
func challengeReadErr(ctx context.Context, log *slog.Logger, err error) error {
	if ctx.Err() != nil {
		log.Warn("scrape: challenge check ran out of time, extracting anyway", "error", err)
		return nil
	}
	return err
}

func readPage(ctx context.Context, page engine.Page) (title, body string, err error) {
	if title, err = page.Title(ctx); err != nil {
		return "", "", err
	}
	if body, err = page.BodyText(ctx); err != nil {
		return "", "", err
	}
	return title, body, nil
}

// degrade turns a post-navigation failure into either a fatal error or a
// partial result.
func degrade(log *slog.Logger, err error) (*models.ScrapedData, error) {
	if code := criticalCode(err); code != "" {
		log.Warn("scrape: critical failure", "code", code, "error", err)
		return nil, models.WrapError(code, err)
	}
	log.Info("scrape: extraction degraded", "error", err)
	return &models.ScrapedData{Error: err.Error()}, nil
}
