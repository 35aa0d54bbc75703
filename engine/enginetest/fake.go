// Package enginetest provides in-memory implementations of the engine
// interfaces for tests.
package enginetest

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/use-agent/figscrape/engine"
)

// ErrLaunch is returned by a FakeLauncher told to fail.
var ErrLaunch = errors.New("failed to launch browser process")

// FakeLauncher creates FakeBrowsers. NewPage on each browser returns the
// page built by PageFunc, or an empty FakePage.
type FakeLauncher struct {
	// PageFunc builds the page for every NewPage call.
	PageFunc func() *FakePage

	// OnClose, when set, runs inside Close of every launched browser.
	OnClose func()

	delay    atomic.Int64
	stall    atomic.Pointer[chan struct{}]
	launches atomic.Int32
	failNext atomic.Int32
	failAll  atomic.Bool

	mu       sync.Mutex
	browsers []*FakeBrowser
}

// SetDelay makes every subsequent launch take d, or until its context ends.
func (l *FakeLauncher) SetDelay(d time.Duration) { l.delay.Store(int64(d)) }

// Stall makes every subsequent launch wait until release is closed,
// ignoring its context. A nil release clears the stall.
func (l *FakeLauncher) Stall(release chan struct{}) {
	if release == nil {
		l.stall.Store(nil)
		return
	}
	l.stall.Store(&release)
}

// FailNext makes the next n launches fail.
func (l *FakeLauncher) FailNext(n int) { l.failNext.Store(int32(n)) }

// FailAll makes every launch fail until called with false.
func (l *FakeLauncher) FailAll(fail bool) { l.failAll.Store(fail) }

// Launches returns the number of Launch calls, failed ones included.
func (l *FakeLauncher) Launches() int { return int(l.launches.Load()) }

// Browsers returns every browser launched so far.
func (l *FakeLauncher) Browsers() []*FakeBrowser {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]*FakeBrowser(nil), l.browsers...)
}

// Open returns how many launched browsers have not been closed.
func (l *FakeLauncher) Open() int {
	n := 0
	for _, b := range l.Browsers() {
		if b.CloseCalls() == 0 {
			n++
		}
	}
	return n
}

// Launch implements engine.Launcher.
func (l *FakeLauncher) Launch(ctx context.Context) (engine.Browser, error) {
	l.launches.Add(1)

	if release := l.stall.Load(); release != nil {
		<-*release
	}
	if d := time.Duration(l.delay.Load()); d > 0 {
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if l.failAll.Load() {
		return nil, ErrLaunch
	}
	for {
		n := l.failNext.Load()
		if n <= 0 {
			break
		}
		if l.failNext.CompareAndSwap(n, n-1) {
			return nil, ErrLaunch
		}
	}

	b := &FakeBrowser{PageFunc: l.PageFunc, onClose: l.OnClose}
	b.connected.Store(true)

	l.mu.Lock()
	l.browsers = append(l.browsers, b)
	l.mu.Unlock()
	return b, nil
}

// FakeBrowser records close calls and hands out pages.
type FakeBrowser struct {
	PageFunc func() *FakePage

	// NewPageErr, when set, is returned by NewPage.
	NewPageErr error

	// CloseErr, when set, is returned by Close.
	CloseErr error

	onClose    func()
	connected  atomic.Bool
	closeCalls atomic.Int32

	mu    sync.Mutex
	pages []*FakePage
}

// NewFakeBrowser returns a connected browser serving page.
func NewFakeBrowser(page *FakePage) *FakeBrowser {
	b := &FakeBrowser{PageFunc: func() *FakePage { return page }}
	b.connected.Store(true)
	return b
}

// Disconnect simulates the process going away.
func (b *FakeBrowser) Disconnect() { b.connected.Store(false) }

// CloseCalls returns how many times Close was called.
func (b *FakeBrowser) CloseCalls() int { return int(b.closeCalls.Load()) }

// Pages returns every page opened on this browser.
func (b *FakeBrowser) Pages() []*FakePage {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*FakePage(nil), b.pages...)
}

// NewPage implements engine.Browser.
func (b *FakeBrowser) NewPage(context.Context) (engine.Page, error) {
	if b.NewPageErr != nil {
		return nil, b.NewPageErr
	}
	var p *FakePage
	if b.PageFunc != nil {
		p = b.PageFunc()
	}
	if p == nil {
		p = &FakePage{}
	}
	b.mu.Lock()
	b.pages = append(b.pages, p)
	b.mu.Unlock()
	return p, nil
}

// IsConnected implements engine.Browser.
func (b *FakeBrowser) IsConnected() bool { return b.connected.Load() }

// Close implements engine.Browser.
func (b *FakeBrowser) Close() error {
	b.closeCalls.Add(1)
	if b.onClose != nil {
		b.onClose()
	}
	b.connected.Store(false)
	return b.CloseErr
}

// FakePage serves canned content. Fields are read concurrently and must
// not be changed after the page is in use, except through TitleFunc and
// BodyFunc which may return changing values.
type FakePage struct {
	PageTitle string
	Body      string
	Content   string
	FinalURL  string

	// TitleFunc and BodyFunc, when set, override PageTitle and Body.
	TitleFunc func() string
	BodyFunc  func() string

	// ReadHook, when set, runs before every Title, BodyText and HTML read
	// with the read's context and its name ("title", "body" or "html").
	// A non-nil error is returned from the read.
	ReadHook func(ctx context.Context, read string) error

	SetupErr    error
	NavigateErr error
	TitleErr    error
	BodyErr     error
	HTMLErr     error
	CloseErr    error

	mu         sync.Mutex
	userAgent  string
	headers    map[string]string
	width      int
	height     int
	navigated  []string
	closeCalls int
}

func (p *FakePage) SetViewport(width, height int) error {
	if p.SetupErr != nil {
		return p.SetupErr
	}
	p.mu.Lock()
	p.width, p.height = width, height
	p.mu.Unlock()
	return nil
}

func (p *FakePage) SetUserAgent(ua string) error {
	if p.SetupErr != nil {
		return p.SetupErr
	}
	p.mu.Lock()
	p.userAgent = ua
	p.mu.Unlock()
	return nil
}

func (p *FakePage) SetExtraHeaders(headers map[string]string) error {
	if p.SetupErr != nil {
		return p.SetupErr
	}
	p.mu.Lock()
	p.headers = headers
	p.mu.Unlock()
	return nil
}

func (p *FakePage) Navigate(_ context.Context, url string, _ time.Duration) error {
	p.mu.Lock()
	p.navigated = append(p.navigated, url)
	p.mu.Unlock()
	return p.NavigateErr
}

func (p *FakePage) Title(ctx context.Context) (string, error) {
	if err := p.hook(ctx, "title"); err != nil {
		return "", err
	}
	if p.TitleErr != nil {
		return "", p.TitleErr
	}
	if p.TitleFunc != nil {
		return p.TitleFunc(), nil
	}
	return p.PageTitle, nil
}

func (p *FakePage) BodyText(ctx context.Context) (string, error) {
	if err := p.hook(ctx, "body"); err != nil {
		return "", err
	}
	if p.BodyErr != nil {
		return "", p.BodyErr
	}
	if p.BodyFunc != nil {
		return p.BodyFunc(), nil
	}
	return p.Body, nil
}

func (p *FakePage) HTML(ctx context.Context) (string, error) {
	if err := p.hook(ctx, "html"); err != nil {
		return "", err
	}
	if p.HTMLErr != nil {
		return "", p.HTMLErr
	}
	return p.Content, nil
}

func (p *FakePage) hook(ctx context.Context, read string) error {
	if p.ReadHook == nil {
		return nil
	}
	return p.ReadHook(ctx, read)
}

func (p *FakePage) URL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.FinalURL != "" {
		return p.FinalURL
	}
	if n := len(p.navigated); n > 0 {
		return p.navigated[n-1]
	}
	return ""
}

func (p *FakePage) Close() error {
	p.mu.Lock()
	p.closeCalls++
	p.mu.Unlock()
	return p.CloseErr
}

// CloseCalls returns how many times Close was called.
func (p *FakePage) CloseCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closeCalls
}

// UserAgent returns the user agent set on the page.
func (p *FakePage) UserAgent() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.userAgent
}

// Headers returns the extra headers set on the page.
func (p *FakePage) Headers() map[string]string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.headers
}

// Viewport returns the viewport size set on the page.
func (p *FakePage) Viewport() (int, int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.width, p.height
}

// Navigated returns the URLs passed to Navigate.
func (p *FakePage) Navigated() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.navigated...)
}

var (
	_ engine.Launcher = (*FakeLauncher)(nil)
	_ engine.Browser  = (*FakeBrowser)(nil)
	_ engine.Page     = (*FakePage)(nil)
)
