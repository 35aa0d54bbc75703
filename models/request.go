package models

// ScrapeRequest is the payload for POST /api/v1/scrape.
type ScrapeRequest struct {
	// URL is the target page to scrape. Required.
	URL string `json:"url" binding:"required,url"`

	// Config holds the selectors and challenge patterns. Required.
	Config *ScrapeConfig `json:"config" binding:"required"`

	// MaxAge allows serving a cached result younger than this many
	// milliseconds. Zero disables the cache for this request.
	MaxAge int `json:"max_age,omitempty" binding:"omitempty,min=0"`
}

// SiteScrapeRequest is the payload for POST /api/v1/scrape/:site.
type SiteScrapeRequest struct {
	// URL is the target page to scrape. Required.
	URL string `json:"url" binding:"required,url"`

	// MaxAge behaves as in ScrapeRequest.
	MaxAge int `json:"max_age,omitempty" binding:"omitempty,min=0"`
}
