package scraper

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/use-agent/figscrape/models"
)

// Labels the two-step field lookup searches for.
const (
	manufacturerLabel = "Company"
	nameLabel         = "Character"
)

var scalePattern = regexp.MustCompile(`(\d+)\s*/\s*(\d+)`)

// imageAttrs are tried in order; lazy loaders keep the real URL in data-src
// and gallery links in href.
var imageAttrs = []string{"src", "data-src", "href"}

// extract evaluates cfg's selectors against rendered HTML. Selectors that
// match nothing leave their field empty.
func extract(html, pageURL string, cfg *models.ScrapeConfig) (*models.ScrapedData, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse rendered html: %w", err)
	}

	data := &models.ScrapedData{
		Manufacturer: fieldValue(doc, cfg.ManufacturerSelector, cfg.FieldLayout, manufacturerLabel),
		Name:         fieldValue(doc, cfg.NameSelector, cfg.FieldLayout, nameLabel),
	}
	if cfg.ImageSelector != "" {
		data.ImageURL = imageURL(doc.Find(cfg.ImageSelector).First(), pageURL)
	}
	if cfg.ScaleSelector != "" {
		if raw := text(doc.Find(cfg.ScaleSelector).First()); raw != "" {
			data.Scale = NormalizeScale(raw)
		}
	}
	return data, nil
}

// fieldValue reads a value either from the label/value row whose label
// contains label, or, when there is no layout or no such row, straight
// from selector.
func fieldValue(doc *goquery.Document, selector string, layout *models.FieldLayout, label string) string {
	if selector == "" {
		return ""
	}

	if layout != nil && layout.Container != "" && layout.Label != "" {
		want := strings.ToLower(label)
		var value string
		doc.Find(layout.Container).EachWithBreak(func(_ int, row *goquery.Selection) bool {
			rowLabel := strings.ToLower(text(row.Find(layout.Label).First()))
			if !strings.Contains(rowLabel, want) {
				return true
			}
			value = text(row.Find(selector).First())
			return value == ""
		})
		if value != "" {
			return value
		}
	}

	return text(doc.Find(selector).First())
}

func imageURL(sel *goquery.Selection, pageURL string) string {
	if sel.Length() == 0 {
		return ""
	}
	for _, attr := range imageAttrs {
		if v, ok := sel.Attr(attr); ok {
			if v = strings.TrimSpace(v); v != "" {
				return resolveURL(pageURL, v)
			}
		}
	}
	return ""
}

func resolveURL(base, ref string) string {
	b, err := url.Parse(base)
	if err != nil {
		return ref
	}
	r, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return b.ResolveReference(r).String()
}

// NormalizeScale pulls a "1/7"-style fraction out of noisy text. Text
// without one is returned trimmed.
func NormalizeScale(s string) string {
	if m := scalePattern.FindStringSubmatch(s); m != nil {
		return m[1] + "/" + m[2]
	}
	return strings.TrimSpace(s)
}

func text(sel *goquery.Selection) string {
	return strings.TrimSpace(sel.Text())
}
