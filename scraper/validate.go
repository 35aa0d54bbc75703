package scraper

import (
	"fmt"

	"github.com/andybalholm/cascadia"
	"github.com/use-agent/figscrape/models"
)

// ValidateConfig checks that every selector in cfg parses. Rejected
// configs would otherwise silently extract nothing.
func ValidateConfig(cfg *models.ScrapeConfig) error {
	if cfg == nil {
		return models.NewScrapeError(models.ErrCodeInvalidInput, "scrape config is required", nil)
	}
	if cfg.WaitTime < 0 {
		return models.NewScrapeError(models.ErrCodeInvalidInput, "waitTime must not be negative", nil)
	}

	fields := []struct{ name, sel string }{
		{"imageSelector", cfg.ImageSelector},
		{"manufacturerSelector", cfg.ManufacturerSelector},
		{"nameSelector", cfg.NameSelector},
		{"scaleSelector", cfg.ScaleSelector},
	}
	if cfg.FieldLayout != nil {
		fields = append(fields,
			struct{ name, sel string }{"fieldLayout.container", cfg.FieldLayout.Container},
			struct{ name, sel string }{"fieldLayout.label", cfg.FieldLayout.Label},
		)
	}

	for _, f := range fields {
		if f.sel == "" {
			continue
		}
		if _, err := cascadia.ParseGroup(f.sel); err != nil {
			return models.NewScrapeError(
				models.ErrCodeInvalidInput,
				fmt.Sprintf("invalid %s %q: %v", f.name, f.sel, err),
				err,
			)
		}
	}
	return nil
}
