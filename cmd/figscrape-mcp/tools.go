package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/use-agent/figscrape/models"
)

// apiClient talks to a running figscrape server.
type apiClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func newAPIClient(baseURL, apiKey string, timeout time.Duration) *apiClient {
	return &apiClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: timeout},
	}
}

// do sends a request to the API and decodes the JSON response into out.
func (c *apiClient) do(ctx context.Context, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-API-Key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("parse response (status %d): %w", resp.StatusCode, err)
	}
	return nil
}

func handleScrapeURL(api *apiClient) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		target, err := request.RequireString("url")
		if err != nil {
			return mcp.NewToolResultError("url is required"), nil
		}
		rawCfg, err := request.RequireString("config")
		if err != nil {
			return mcp.NewToolResultError("config is required"), nil
		}

		var cfg models.ScrapeConfig
		if err := json.Unmarshal([]byte(rawCfg), &cfg); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("config must be valid JSON: %v", err)), nil
		}

		payload := models.ScrapeRequest{
			URL:    target,
			Config: &cfg,
			MaxAge: request.GetInt("max_age", 0),
		}

		var resp models.ScrapeResponse
		if err := api.do(ctx, http.MethodPost, "/api/v1/scrape", payload, &resp); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return scrapeResult(target, &resp), nil
	}
}

func handleScrapeSite(api *apiClient) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		site, err := request.RequireString("site")
		if err != nil {
			return mcp.NewToolResultError("site is required"), nil
		}
		target, err := request.RequireString("url")
		if err != nil {
			return mcp.NewToolResultError("url is required"), nil
		}

		payload := models.SiteScrapeRequest{
			URL:    target,
			MaxAge: request.GetInt("max_age", 0),
		}

		var resp models.ScrapeResponse
		path := "/api/v1/scrape/" + url.PathEscape(site)
		if err := api.do(ctx, http.MethodPost, path, payload, &resp); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return scrapeResult(target, &resp), nil
	}
}

func handleListSites(api *apiClient) server.ToolHandlerFunc {
	return func(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var resp models.SitesResponse
		if err := api.do(ctx, http.MethodGet, "/api/v1/sites", nil, &resp); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if len(resp.Sites) == 0 {
			return mcp.NewToolResultText("No sites configured."), nil
		}
		return mcp.NewToolResultText("Available sites:\n" + strings.Join(resp.Sites, "\n")), nil
	}
}

// scrapeResult renders a scrape response as tool output.
func scrapeResult(target string, resp *models.ScrapeResponse) *mcp.CallToolResult {
	if !resp.Success {
		errMsg := "scrape failed"
		if resp.Error != nil {
			errMsg = fmt.Sprintf("[%s] %s", resp.Error.Code, resp.Error.Message)
		}
		return mcp.NewToolResultError(errMsg)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Source: %s\n", target)
	if resp.CacheStatus != "" {
		fmt.Fprintf(&sb, "Cache: %s\n", resp.CacheStatus)
	}
	sb.WriteString("\n")

	d := resp.Data
	if d == nil {
		d = &models.ScrapedData{}
	}
	writeField(&sb, "Name", d.Name)
	writeField(&sb, "Manufacturer", d.Manufacturer)
	writeField(&sb, "Scale", d.Scale)
	writeField(&sb, "Image", d.ImageURL)
	if d.Error != "" {
		fmt.Fprintf(&sb, "\nExtraction warning: %s\n", d.Error)
	}
	return mcp.NewToolResultText(sb.String())
}

func writeField(sb *strings.Builder, label, value string) {
	if value == "" {
		value = "(not found)"
	}
	fmt.Fprintf(sb, "%s: %s\n", label, value)
}
