package engine

import (
	"context"
	"time"
)

// Launcher starts browser processes. Implementations must be safe for
// concurrent use; the pool calls Launch from several goroutines.
type Launcher interface {
	Launch(ctx context.Context) (Browser, error)
}

// LauncherFunc adapts an ordinary function to the Launcher interface.
type LauncherFunc func(ctx context.Context) (Browser, error)

// Launch calls f(ctx).
func (f LauncherFunc) Launch(ctx context.Context) (Browser, error) { return f(ctx) }

// Browser is one live browser process. Whoever holds it is responsible
// for calling Close exactly once.
type Browser interface {
	// NewPage opens a blank tab.
	NewPage(ctx context.Context) (Page, error)

	// IsConnected reports whether the process still answers the protocol.
	IsConnected() bool

	// Close kills the process. Closing a disconnected browser is not an error.
	Close() error
}

// Page is a single tab. All reads operate on the live, rendered DOM.
type Page interface {
	SetViewport(width, height int) error
	SetUserAgent(ua string) error
	SetExtraHeaders(headers map[string]string) error

	// Navigate loads url and returns once the DOM is ready or timeout expires.
	// HTTP error statuses do not fail navigation; challenge pages are
	// frequently served as 403 or 503.
	Navigate(ctx context.Context, url string, timeout time.Duration) error

	Title(ctx context.Context) (string, error)
	BodyText(ctx context.Context) (string, error)
	HTML(ctx context.Context) (string, error)

	// URL returns the page's current location, after redirects.
	URL() string

	Close() error
}
