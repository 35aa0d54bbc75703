package models

// ScrapeConfig describes how to scrape one kind of page. Every selector is
// optional; an empty selector means the field is not extracted.
//
// Values are created by a caller or loaded from the site registry and are not
// mutated afterwards.
type ScrapeConfig struct {
	ImageSelector        string `json:"imageSelector,omitempty" yaml:"imageSelector"`
	ManufacturerSelector string `json:"manufacturerSelector,omitempty" yaml:"manufacturerSelector"`
	NameSelector         string `json:"nameSelector,omitempty" yaml:"nameSelector"`
	ScaleSelector        string `json:"scaleSelector,omitempty" yaml:"scaleSelector"`

	// FieldLayout enables the label/value lookup for manufacturer and name
	// on sites that render data as repeated "label: value" rows.
	FieldLayout *FieldLayout `json:"fieldLayout,omitempty" yaml:"fieldLayout"`

	// CloudflareDetection turns on the challenge check after navigation.
	CloudflareDetection *CloudflareDetection `json:"cloudflareDetection,omitempty" yaml:"cloudflareDetection"`

	// WaitTime is the settle delay after navigation, in milliseconds.
	// Zero means the scraper default (1000 ms).
	WaitTime int `json:"waitTime,omitempty" yaml:"waitTime" binding:"omitempty,min=0,max=60000"`

	// UserAgent overrides the default browser user agent.
	UserAgent string `json:"userAgent,omitempty" yaml:"userAgent"`
}

// FieldLayout locates label/value rows. Container matches each row and
// Label matches the label element inside it; the value is then read with
// the field's own selector, relative to the matched row.
type FieldLayout struct {
	Container string `json:"container" yaml:"container"`
	Label     string `json:"label" yaml:"label"`
}

// CloudflareDetection holds caller-supplied challenge phrases. They are
// merged with the built-in pattern set during detection, and on their own
// decide when a detected challenge has cleared.
type CloudflareDetection struct {
	TitleIncludes []string `json:"titleIncludes,omitempty" yaml:"titleIncludes"`
	BodyIncludes  []string `json:"bodyIncludes,omitempty" yaml:"bodyIncludes"`
}

// ScrapedData is the result of one scrape. Fields that could not be found
// are left empty and omitted from JSON. Error is set when extraction failed
// in a recoverable way.
type ScrapedData struct {
	ImageURL     string `json:"imageUrl,omitempty"`
	Manufacturer string `json:"manufacturer,omitempty"`
	Name         string `json:"name,omitempty"`
	Scale        string `json:"scale,omitempty"`
	Error        string `json:"error,omitempty"`
}
