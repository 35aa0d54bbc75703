package models

// ScrapeResponse is the response for both scrape endpoints.
type ScrapeResponse struct {
	// Success is false only for fatal failures. A degraded extraction is
	// still a success with Data.Error set.
	Success bool `json:"success"`

	// Data holds the extracted fields.
	Data *ScrapedData `json:"data,omitempty"`

	// Timing provides duration breakdowns for the operation.
	Timing TimingInfo `json:"timing"`

	// CacheStatus indicates whether the response was served from cache.
	// Values: "hit", "miss", or empty (caching not requested).
	CacheStatus string `json:"cache_status,omitempty"`

	// Error is populated only when Success is false.
	Error *ErrorDetail `json:"error,omitempty"`
}

// TimingInfo breaks down the time spent serving a request.
type TimingInfo struct {
	TotalMs int64 `json:"total_ms"`
}

// SitesResponse is the response for GET /api/v1/sites.
type SitesResponse struct {
	Sites []string `json:"sites"`
}

// HealthResponse is the response for GET /api/v1/health.
type HealthResponse struct {
	Status    string    `json:"status"` // "healthy" or "degraded"
	Uptime    string    `json:"uptime"`
	PoolStats PoolStats `json:"pool_stats"`
	Version   string    `json:"version"`
}

// PoolStats reports the state of the browser pool.
type PoolStats struct {
	Size         int  `json:"size"`
	Available    int  `json:"available"`
	Live         int  `json:"live"`
	Emergency    int  `json:"emergency"`
	MaxEmergency int  `json:"max_emergency"`
	Replenishing bool `json:"replenishing"`
	Initialized  bool `json:"initialized"`
}

// ResetResponse is the response for POST /api/v1/admin/pool/reset.
type ResetResponse struct {
	Success bool         `json:"success"`
	Error   *ErrorDetail `json:"error,omitempty"`
}
