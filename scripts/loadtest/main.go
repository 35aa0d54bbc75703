package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"slices"
	"strings"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/use-agent/figscrape/models"
	"golang.org/x/sync/errgroup"
)

// CLI flags
var (
	apiURL      = flag.String("api-url", "http://localhost:8080", "figscrape API base URL")
	apiKey      = flag.String("api-key", "", "API key for authenticated requests")
	site        = flag.String("site", "mfc", "site key to scrape")
	target      = flag.String("url", "https://myfigurecollection.net/item/1", "product page URL")
	requests    = flag.Int("requests", 20, "total number of scrapes")
	concurrency = flag.Int("concurrency", 8, "scrapes in flight at once")
	output      = flag.String("output", "loadtest-results.json", "JSON output file path")
)

// --- Result types ---

type callResult struct {
	Index     int    `json:"index"`
	HTTPCode  int    `json:"http_code"`
	Outcome   string `json:"outcome"` // "ok", "degraded", or an error code
	LatencyMs int64  `json:"latency_ms"`
	Error     string `json:"error,omitempty"`
}

type outcomeSummary struct {
	Outcome string `json:"outcome"`
	Count   int    `json:"count"`
	P50Ms   int64  `json:"p50_ms"`
	P95Ms   int64  `json:"p95_ms"`
	MaxMs   int64  `json:"max_ms"`
}

type report struct {
	Timestamp   string            `json:"timestamp"`
	APIURL      string            `json:"api_url"`
	Site        string            `json:"site"`
	Requests    int               `json:"requests"`
	Concurrency int               `json:"concurrency"`
	WallMs      int64             `json:"wall_ms"`
	Summary     []outcomeSummary  `json:"summary"`
	PoolBefore  *models.PoolStats `json:"pool_before,omitempty"`
	PoolAfter   *models.PoolStats `json:"pool_after,omitempty"`
	Calls       []callResult      `json:"calls"`
}

func main() {
	flag.Parse()

	fmt.Println("=== figscrape load test ===")
	fmt.Printf("API URL:      %s\n", *apiURL)
	fmt.Printf("Site:         %s\n", *site)
	fmt.Printf("Requests:     %d\n", *requests)
	fmt.Printf("Concurrency:  %d\n", *concurrency)
	fmt.Println()

	client := &http.Client{Timeout: 2 * time.Minute}

	before, err := poolStats(client)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: cannot reach API at %s: %v\n", *apiURL, err)
		os.Exit(1)
	}
	printPool("Pool before", before)

	rep := report{
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
		APIURL:      *apiURL,
		Site:        *site,
		Requests:    *requests,
		Concurrency: *concurrency,
		PoolBefore:  before,
		Calls:       make([]callResult, *requests),
	}

	// Sample pool stats while the load runs to catch emergency overflow.
	var (
		peakMu        sync.Mutex
		peakEmergency int
	)
	ctx, cancel := context.WithCancel(context.Background())
	sampled := make(chan struct{})
	go func() {
		defer close(sampled)
		ticker := time.NewTicker(200 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if s, err := poolStats(client); err == nil {
					peakMu.Lock()
					peakEmergency = max(peakEmergency, s.Emergency)
					peakMu.Unlock()
				}
			}
		}
	}()

	start := time.Now()
	var eg errgroup.Group
	eg.SetLimit(max(*concurrency, 1))
	for i := range *requests {
		eg.Go(func() error {
			rep.Calls[i] = scrape(client, i)
			return nil
		})
	}
	_ = eg.Wait()
	rep.WallMs = time.Since(start).Milliseconds()
	cancel()
	<-sampled

	rep.Summary = summarize(rep.Calls)
	printTable(rep.Summary)
	fmt.Printf("Wall time: %dms, peak emergency browsers: %d\n\n", rep.WallMs, peakEmergency)

	if after, err := poolStats(client); err == nil {
		rep.PoolAfter = after
		printPool("Pool after", after)
	}

	if err := writeJSON(*output, rep); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing JSON output: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("\nDetailed results written to %s\n", *output)
}

func poolStats(client *http.Client) (*models.PoolStats, error) {
	resp, err := client.Get(*apiURL + "/api/v1/health")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var h models.HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&h); err != nil {
		return nil, err
	}
	return &h.PoolStats, nil
}

func scrape(client *http.Client, i int) callResult {
	cr := callResult{Index: i}

	body, err := json.Marshal(models.SiteScrapeRequest{URL: *target})
	if err != nil {
		cr.Outcome, cr.Error = "client", err.Error()
		return cr
	}

	req, err := http.NewRequest(http.MethodPost, *apiURL+"/api/v1/scrape/"+*site, bytes.NewReader(body))
	if err != nil {
		cr.Outcome, cr.Error = "client", err.Error()
		return cr
	}
	req.Header.Set("Content-Type", "application/json")
	if *apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+*apiKey)
	}

	start := time.Now()
	resp, err := client.Do(req)
	cr.LatencyMs = time.Since(start).Milliseconds()
	if err != nil {
		cr.Outcome, cr.Error = "transport", err.Error()
		return cr
	}
	defer resp.Body.Close()
	cr.HTTPCode = resp.StatusCode

	var sr models.ScrapeResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		cr.Outcome, cr.Error = "decode", err.Error()
		return cr
	}

	switch {
	case sr.Error != nil:
		cr.Outcome, cr.Error = sr.Error.Code, sr.Error.Message
	case sr.Data != nil && sr.Data.Error != "":
		cr.Outcome, cr.Error = "degraded", sr.Data.Error
	default:
		cr.Outcome = "ok"
	}
	return cr
}

func summarize(calls []callResult) []outcomeSummary {
	latencies := map[string][]int64{}
	for _, c := range calls {
		latencies[c.Outcome] = append(latencies[c.Outcome], c.LatencyMs)
	}

	var out []outcomeSummary
	for outcome, ls := range latencies {
		slices.Sort(ls)
		out = append(out, outcomeSummary{
			Outcome: outcome,
			Count:   len(ls),
			P50Ms:   percentile(ls, 50),
			P95Ms:   percentile(ls, 95),
			MaxMs:   ls[len(ls)-1],
		})
	}
	slices.SortFunc(out, func(a, b outcomeSummary) int { return b.Count - a.Count })
	return out
}

// percentile expects sorted input.
func percentile(sorted []int64, p int) int64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := (len(sorted)*p + 99) / 100
	return sorted[min(max(idx-1, 0), len(sorted)-1)]
}

func printTable(summary []outcomeSummary) {
	fmt.Println(strings.Repeat("─", 60))
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Outcome\tCount\tp50\tp95\tMax\n")
	fmt.Fprintf(w, "───────\t─────\t───\t───\t───\n")
	for _, s := range summary {
		fmt.Fprintf(w, "%s\t%d\t%dms\t%dms\t%dms\n", s.Outcome, s.Count, s.P50Ms, s.P95Ms, s.MaxMs)
	}
	w.Flush()
	fmt.Println(strings.Repeat("─", 60))
}

func printPool(label string, s *models.PoolStats) {
	fmt.Printf("%s: available=%d/%d live=%d emergency=%d/%d replenishing=%v\n",
		label, s.Available, s.Size, s.Live, s.Emergency, s.MaxEmergency, s.Replenishing)
}

func writeJSON(path string, rep report) error {
	data, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
