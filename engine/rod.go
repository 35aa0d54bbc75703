package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/use-agent/figscrape/config"
	"github.com/ysmood/gson"
)

// launchFlags is applied to every browser. Tuned for sandboxless containers:
// subsystems a headless scraper never needs are switched off.
var launchFlags = []struct {
	name  flags.Flag
	value []string
}{
	{"disable-blink-features", []string{"AutomationControlled"}},
	{"disable-features", []string{"AudioServiceOutOfProcess,TranslateUI,IsolateOrigins,site-per-process"}},
	{"disable-gpu", nil},
	{"disable-dev-shm-usage", nil},
	{"disable-extensions", nil},
	{"disable-background-networking", nil},
	{"disable-background-timer-throttling", nil},
	{"disable-backgrounding-occluded-windows", nil},
	{"disable-renderer-backgrounding", nil},
	{"disable-ipc-flooding-protection", nil},
	{"disable-component-update", nil},
	{"disable-default-apps", nil},
	{"disable-sync", nil},
	{"disable-popup-blocking", nil},
	{"disable-prompt-on-repost", nil},
	{"metrics-recording-only", nil},
	{"mute-audio", nil},
	{"no-first-run", nil},
	{"no-zygote", nil},
}

// RodLauncher starts Chromium processes through go-rod.
type RodLauncher struct {
	cfg     config.BrowserConfig
	blocked map[proto.NetworkResourceType]struct{}
}

// NewRodLauncher creates a launcher for the given browser configuration.
func NewRodLauncher(cfg config.BrowserConfig) *RodLauncher {
	return &RodLauncher{
		cfg:     cfg,
		blocked: blockedSet(cfg.BlockedResourceTypes),
	}
}

// newLauncher builds the launcher with the fixed flag table applied.
func (r *RodLauncher) newLauncher() *launcher.Launcher {
	l := launcher.New().
		Headless(r.cfg.Headless).
		NoSandbox(r.cfg.NoSandbox)

	if r.cfg.BrowserBin != "" {
		l = l.Bin(r.cfg.BrowserBin)
	}
	if r.cfg.Proxy != "" {
		l = l.Proxy(r.cfg.Proxy)
	}

	for _, f := range launchFlags {
		l.Set(f.name, f.value...)
	}
	l.Delete(flags.Flag("enable-automation"))
	return l
}

// Launch starts a browser process and connects to it.
//
// ctx only gates the start: rod kills the process when its launcher context
// ends, and a pooled browser outlives the request that launched it.
func (r *RodLauncher) Launch(ctx context.Context) (Browser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l := r.newLauncher()
	controlURL, err := l.Launch()
	if err != nil {
		l.Kill()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		l.Kill()
		l.Cleanup()
		return nil, fmt.Errorf("failed to launch browser: connect: %w", err)
	}
	slog.Debug("browser launched", "controlURL", controlURL, "pid", l.PID())

	return &rodBrowser{
		browser:  browser,
		launcher: l,
		stealth:  r.cfg.Stealth,
		blocked:  r.blocked,
	}, nil
}

type rodBrowser struct {
	browser  *rod.Browser
	launcher *launcher.Launcher
	stealth  bool
	blocked  map[proto.NetworkResourceType]struct{}

	closeOnce sync.Once
	closeErr  error
}

func (b *rodBrowser) NewPage(ctx context.Context) (Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var (
		page *rod.Page
		err  error
	)
	if b.stealth {
		page, err = stealth.Page(b.browser)
	} else {
		page, err = b.browser.Page(proto.TargetCreateTarget{})
	}
	if err != nil {
		return nil, fmt.Errorf("open page: %w", err)
	}

	return &rodPage{
		page:   page,
		router: setupHijack(page, b.blocked),
	}, nil
}

func (b *rodBrowser) IsConnected() bool {
	_, err := proto.BrowserGetVersion{}.Call(b.browser)
	return err == nil
}

func (b *rodBrowser) Close() error {
	b.closeOnce.Do(func() {
		if b.IsConnected() {
			b.closeErr = b.browser.Close()
		}
		b.launcher.Kill()
		b.launcher.Cleanup()
	})
	return b.closeErr
}

type rodPage struct {
	page   *rod.Page
	router *rod.HijackRouter
}

func (p *rodPage) SetViewport(width, height int) error {
	return p.page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             width,
		Height:            height,
		DeviceScaleFactor: 1,
	})
}

func (p *rodPage) SetUserAgent(ua string) error {
	return p.page.SetUserAgent(&proto.NetworkSetUserAgentOverride{
		UserAgent:      ua,
		AcceptLanguage: "en-US,en;q=0.9",
	})
}

func (p *rodPage) SetExtraHeaders(headers map[string]string) error {
	if len(headers) == 0 {
		return nil
	}
	return proto.NetworkSetExtraHTTPHeaders{
		Headers: toHeadersMap(headers),
	}.Call(p.page)
}

func (p *rodPage) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	page := p.page.Context(ctx)

	// The waiter must be registered before Navigate or the event is missed.
	wait := page.WaitNavigation(proto.PageLifecycleEventNameDOMContentLoaded)
	if err := page.Navigate(url); err != nil {
		return err
	}
	wait()

	// WaitNavigation swallows cancellation; surface it here.
	return ctx.Err()
}

func (p *rodPage) Title(ctx context.Context) (string, error) {
	return p.evalString(ctx, `() => document.title || ""`)
}

func (p *rodPage) BodyText(ctx context.Context) (string, error) {
	return p.evalString(ctx, `() => document.body ? document.body.innerText : ""`)
}

func (p *rodPage) HTML(ctx context.Context) (string, error) {
	return p.page.Context(ctx).HTML()
}

func (p *rodPage) URL() string {
	info, err := p.page.Info()
	if err != nil {
		return ""
	}
	return info.URL
}

func (p *rodPage) Close() error {
	if p.router != nil {
		if err := p.router.Stop(); err != nil {
			slog.Debug("hijack router stop failed", "error", err)
		}
	}
	return p.page.Close()
}

func (p *rodPage) evalString(ctx context.Context, js string) (string, error) {
	obj, err := p.page.Context(ctx).Eval(js)
	if err != nil {
		return "", err
	}
	return obj.Value.Str(), nil
}

// toHeadersMap converts a plain string map to the proto.NetworkHeaders type
// (map[string]gson.JSON) required by NetworkSetExtraHTTPHeaders.
func toHeadersMap(headers map[string]string) proto.NetworkHeaders {
	m := make(proto.NetworkHeaders, len(headers))
	for k, v := range headers {
		m[k] = gson.New(v)
	}
	return m
}
