package main

import (
	"fmt"
	"os"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

func main() {
	apiURL := os.Getenv("FIGSCRAPE_API_URL")
	if apiURL == "" {
		apiURL = "http://127.0.0.1:8080"
	}
	apiKey := os.Getenv("FIGSCRAPE_API_KEY")
	if apiKey == "" {
		fmt.Fprintln(os.Stderr, "FIGSCRAPE_API_KEY is required")
		os.Exit(1)
	}

	s := newServer(newAPIClient(apiURL, apiKey, 120*time.Second))
	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

func newServer(api *apiClient) *server.MCPServer {
	s := server.NewMCPServer(
		"figscrape",
		"1.0.0",
		server.WithToolCapabilities(false),
	)

	scrapeURLTool := mcp.NewTool("scrape_url",
		mcp.WithDescription("Scrape a product page with caller-supplied CSS selectors and return the image URL, manufacturer, name and scale. Uses a real browser and waits out anti-bot challenges."),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("The URL of the product page"),
		),
		mcp.WithString("config",
			mcp.Required(),
			mcp.Description(`Scrape configuration as JSON, e.g. {"nameSelector":"h1","imageSelector":".gallery img","scaleSelector":".scale"}`),
		),
		mcp.WithNumber("max_age",
			mcp.Description("Serve a cached result younger than this many milliseconds (default: 0, no cache)"),
		),
	)
	s.AddTool(scrapeURLTool, handleScrapeURL(api))

	scrapeSiteTool := mcp.NewTool("scrape_site",
		mcp.WithDescription("Scrape a product page using a built-in site configuration (see list_sites)."),
		mcp.WithString("site",
			mcp.Required(),
			mcp.Description("Site key, e.g. 'mfc'"),
		),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("The URL of the product page"),
		),
		mcp.WithNumber("max_age",
			mcp.Description("Serve a cached result younger than this many milliseconds (default: 0, no cache)"),
		),
	)
	s.AddTool(scrapeSiteTool, handleScrapeSite(api))

	listSitesTool := mcp.NewTool("list_sites",
		mcp.WithDescription("List the site keys usable with scrape_site."),
	)
	s.AddTool(listSitesTool, handleListSites(api))

	return s
}
