// Package discovery announces this instance to a service directory so
// other services can route scrape requests to it.
package discovery

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/use-agent/figscrape/config"
)

// SignatureHeader carries the HMAC-SHA256 of the request body.
const SignatureHeader = "X-Figscrape-Signature"

// Announcement is the payload sent to the directory.
type Announcement struct {
	Type       string   `json:"type"` // "register", "heartbeat" or "deregister"
	Service    string   `json:"service"`
	InstanceID string   `json:"instance_id"`
	URL        string   `json:"url"`
	Version    string   `json:"version"`
	Sites      []string `json:"sites,omitempty"`
	Timestamp  int64    `json:"timestamp"`
}

// Client registers, heartbeats and deregisters one instance.
type Client struct {
	cfg        config.DirectoryConfig
	instanceID string
	version    string
	sites      []string
	http       *http.Client

	// retryDelays are the pauses between registration attempts.
	retryDelays []time.Duration
}

// New creates a Client. sites is advertised with every announcement.
func New(cfg config.DirectoryConfig, version string, sites []string) *Client {
	return &Client{
		cfg:         cfg,
		instanceID:  uuid.NewString(),
		version:     version,
		sites:       sites,
		http:        &http.Client{Timeout: 10 * time.Second},
		retryDelays: []time.Duration{0, 1 * time.Second, 5 * time.Second, 30 * time.Second},
	}
}

// InstanceID returns the identifier this instance registers under.
func (c *Client) InstanceID() string { return c.instanceID }

// Register announces the instance.
func (c *Client) Register(ctx context.Context) error {
	return c.send(ctx, "register")
}

// Heartbeat refreshes the registration.
func (c *Client) Heartbeat(ctx context.Context) error {
	return c.send(ctx, "heartbeat")
}

// Deregister removes the instance from the directory.
func (c *Client) Deregister(ctx context.Context) error {
	return c.send(ctx, "deregister")
}

func (c *Client) send(ctx context.Context, kind string) error {
	body, err := json.Marshal(&Announcement{
		Type:       kind,
		Service:    c.cfg.ServiceName,
		InstanceID: c.instanceID,
		URL:        c.cfg.AdvertiseURL,
		Version:    c.version,
		Sites:      c.sites,
		Timestamp:  time.Now().Unix(),
	})
	if err != nil {
		return fmt.Errorf("discovery: marshal %s: %w", kind, err)
	}

	endpoint := strings.TrimRight(c.cfg.URL, "/") + "/" + kind
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("discovery: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Figscrape-Discovery/1.0")

	if c.cfg.Secret != "" {
		req.Header.Set(SignatureHeader, "sha256="+Sign(c.cfg.Secret, body))
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("discovery: %s: %w", kind, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("discovery: %s: directory returned status %d", kind, resp.StatusCode)
	}
	return nil
}

// Sign returns the hex HMAC-SHA256 of body under secret.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Run registers (retrying on failure), heartbeats every
// HeartbeatInterval until ctx is done, then deregisters. It blocks.
func (c *Client) Run(ctx context.Context) {
	if !c.registerWithRetry(ctx) {
		return
	}

	interval := c.cfg.HeartbeatInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			if err := c.Deregister(dctx); err != nil {
				slog.Warn("discovery: deregister failed", "error", err)
			} else {
				slog.Info("discovery: deregistered", "instance", c.instanceID)
			}
			return
		case <-ticker.C:
			hctx, cancel := context.WithTimeout(ctx, 10*time.Second)
			err := c.Heartbeat(hctx)
			cancel()
			if err != nil {
				slog.Warn("discovery: heartbeat failed", "error", err)
			}
		}
	}
}

func (c *Client) registerWithRetry(ctx context.Context) bool {
	for attempt, delay := range c.retryDelays {
		if delay > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return false
			case <-timer.C:
			}
		}

		rctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		err := c.Register(rctx)
		cancel()
		if err == nil {
			slog.Info("discovery: registered",
				"directory", c.cfg.URL,
				"instance", c.instanceID,
				"attempt", attempt+1,
			)
			return true
		}
		slog.Warn("discovery: registration failed",
			"directory", c.cfg.URL,
			"attempt", attempt+1,
			"error", err,
		)
	}
	slog.Error("discovery: registration exhausted all retries", "directory", c.cfg.URL)
	return false
}
