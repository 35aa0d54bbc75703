package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/use-agent/figscrape/models"
	"golang.org/x/sync/errgroup"
)

// PoolOptions configures a Pool. Zero values select the defaults.
type PoolOptions struct {
	Size             int           // idle browsers kept ready; default 3
	MaxEmergency     int           // on-demand launches while empty; default 5
	RetryBackoff     time.Duration // pause before retrying an emergency launch; default 250ms
	ReplenishBackoff time.Duration // pause after a failed replenish; default 1s
}

func (o PoolOptions) withDefaults() PoolOptions {
	if o.Size < 0 {
		o.Size = 0
	}
	if o.MaxEmergency < 0 {
		o.MaxEmergency = 0
	}
	if o.RetryBackoff <= 0 {
		o.RetryBackoff = 250 * time.Millisecond
	}
	if o.ReplenishBackoff <= 0 {
		o.ReplenishBackoff = time.Second
	}
	return o
}

// Pool keeps a small set of pre-launched browsers and hands them out to
// callers, launching extra "emergency" browsers when it runs dry.
//
// Ownership of an acquired Browser passes to the caller, who must Close it.
// A browser is never returned to the pool; replenishment launches a fresh
// one in the background instead.
//
// Live browsers (idle, checked out, or being launched) never exceed
// Size + MaxEmergency.
type Pool struct {
	launcher Launcher
	opts     PoolOptions

	// initMu serializes Initialize and CloseAll.
	initMu sync.Mutex

	mu          sync.Mutex
	available   []Browser
	initialized bool
	emergency   int
	live        int

	// replenishDone is non-nil while a replenish is in flight and is
	// closed when it finishes.
	replenishDone chan struct{}

	// gen is cancelled by CloseAll so in-flight launches can tell the
	// pool they were launched for has gone away.
	gen       context.Context
	genCancel context.CancelFunc
	genID     uint64
}

// NewPool creates an empty pool. No browser is launched until Initialize
// or the first Acquire.
func NewPool(launcher Launcher, opts PoolOptions) *Pool {
	p := &Pool{
		launcher: launcher,
		opts:     opts.withDefaults(),
	}
	p.gen, p.genCancel = context.WithCancel(context.Background())
	return p
}

func (p *Pool) liveCap() int {
	return p.opts.Size + p.opts.MaxEmergency
}

// Initialize launches Size browsers one after another. It is a no-op once
// the pool is initialized. Individual launch failures are logged and leave
// a smaller pool; the pool counts as initialized regardless.
func (p *Pool) Initialize(ctx context.Context) error {
	p.initMu.Lock()
	defer p.initMu.Unlock()

	p.mu.Lock()
	if p.initialized {
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	launched := 0
	for i := 0; i < p.opts.Size; i++ {
		if ctx.Err() != nil {
			slog.Warn("pool: initialization interrupted", "launched", launched, "error", ctx.Err())
			break
		}

		p.mu.Lock()
		if len(p.available) >= p.opts.Size || p.live >= p.liveCap() {
			p.mu.Unlock()
			break
		}
		p.live++
		p.mu.Unlock()

		b, err := p.launcher.Launch(ctx)
		if err != nil {
			p.release()
			slog.Warn("pool: initial browser launch failed", "attempt", i+1, "error", err)
			continue
		}

		p.mu.Lock()
		p.available = append(p.available, p.wrap(b))
		p.mu.Unlock()
		launched++
	}

	p.mu.Lock()
	p.initialized = true
	available := len(p.available)
	p.mu.Unlock()

	if launched < p.opts.Size {
		slog.Warn("pool: initialized degraded", "launched", launched, "size", p.opts.Size)
	} else {
		slog.Info("pool: initialized", "available", available)
	}
	return nil
}

// Acquire hands out a browser. The pool is initialized on first use.
//
// An idle browser is preferred; taking one schedules a background
// replenish. With no idle browser an emergency launch is attempted, retried
// once after RetryBackoff. Fails with ErrCodePoolExhausted once the
// emergency budget is spent and with ErrCodeLaunch when both launch
// attempts fail.
func (p *Pool) Acquire(ctx context.Context) (Browser, error) {
	if err := p.Initialize(ctx); err != nil {
		return nil, models.NewScrapeError(models.ErrCodeLaunch, "pool initialization aborted", err)
	}

	p.mu.Lock()
	if n := len(p.available); n > 0 {
		b := p.available[n-1]
		p.available[n-1] = nil
		p.available = p.available[:n-1]
		p.mu.Unlock()

		p.scheduleReplenish()
		return b, nil
	}

	if p.emergency >= p.opts.MaxEmergency || p.live >= p.liveCap() {
		emergency, live := p.emergency, p.live
		p.mu.Unlock()
		slog.Warn("pool: exhausted", "emergency", emergency, "live", live)
		return nil, models.NewScrapeError(
			models.ErrCodePoolExhausted,
			fmt.Sprintf("browser pool exhausted (%d emergency browsers in use)", emergency),
			nil,
		)
	}
	// Claimed before launching so concurrent callers see the slot as taken.
	p.emergency++
	p.live++
	emergency := p.emergency
	p.mu.Unlock()

	slog.Info("pool: empty, launching emergency browser", "emergency", emergency)

	b, err := p.launchWithRetry(ctx)
	if err != nil {
		p.mu.Lock()
		p.emergency--
		p.live--
		p.mu.Unlock()
		return nil, models.NewScrapeError(models.ErrCodeLaunch, "failed to launch emergency browser", err)
	}

	p.scheduleReplenish()
	return p.wrap(b), nil
}

func (p *Pool) launchWithRetry(ctx context.Context) (Browser, error) {
	b, err := p.launcher.Launch(ctx)
	if err == nil {
		return b, nil
	}
	slog.Warn("pool: emergency launch failed, retrying", "backoff", p.opts.RetryBackoff, "error", err)

	timer := time.NewTimer(p.opts.RetryBackoff)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
		return nil, errors.Join(err, ctx.Err())
	}

	return p.launcher.Launch(ctx)
}

// Replenish launches one browser into the pool if it is below Size and no
// other replenish is running. It blocks until the launch finishes. Failures
// are logged and followed by ReplenishBackoff, during which further
// replenishes are refused.
func (p *Pool) Replenish(ctx context.Context) {
	done, gen, genID, ok := p.beginReplenish()
	if !ok {
		return
	}
	p.runReplenish(ctx, gen, genID, done)
}

func (p *Pool) scheduleReplenish() {
	done, gen, genID, ok := p.beginReplenish()
	if !ok {
		return
	}
	go p.runReplenish(context.Background(), gen, genID, done)
}

// beginReplenish claims the single replenish slot and a live slot in one
// critical section.
func (p *Pool) beginReplenish() (chan struct{}, context.Context, uint64, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.replenishDone != nil ||
		len(p.available) >= p.opts.Size ||
		p.live >= p.liveCap() ||
		p.gen.Err() != nil {
		return nil, nil, 0, false
	}

	p.live++
	done := make(chan struct{})
	p.replenishDone = done
	return done, p.gen, p.genID, true
}

func (p *Pool) runReplenish(ctx context.Context, gen context.Context, genID uint64, done chan struct{}) {
	defer func() {
		p.mu.Lock()
		if p.replenishDone == done {
			p.replenishDone = nil
		}
		p.mu.Unlock()
		close(done)
	}()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(gen, cancel)
	defer stop()

	b, err := p.launcher.Launch(ctx)
	if err != nil {
		p.release()
		slog.Warn("pool: replenish failed", "backoff", p.opts.ReplenishBackoff, "error", err)

		timer := time.NewTimer(p.opts.ReplenishBackoff)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
		}
		return
	}

	wrapped := p.wrap(b)

	p.mu.Lock()
	if p.genID != genID || len(p.available) >= p.opts.Size {
		p.mu.Unlock()
		slog.Debug("pool: discarding replenished browser")
		if err := wrapped.Close(); err != nil {
			slog.Warn("pool: failed to close discarded browser", "error", err)
		}
		return
	}
	p.available = append(p.available, wrapped)
	if p.emergency > 0 {
		p.emergency--
	}
	available, emergency := len(p.available), p.emergency
	p.mu.Unlock()

	slog.Debug("pool: replenished", "available", available, "emergency", emergency)
}

// CloseAll closes every idle browser at once, one goroutine each, and marks
// the pool uninitialized. An in-flight replenish is cancelled and waited
// for until ctx ends; a launch that ignores cancellation is then detached,
// and its browser is closed on arrival because the generation moved on.
// Disconnected browsers are skipped. Every close failure is logged and the
// failures are returned joined; none of them stops the others.
//
// Browsers checked out by callers are not touched.
func (p *Pool) CloseAll(ctx context.Context) error {
	p.initMu.Lock()
	defer p.initMu.Unlock()

	p.mu.Lock()
	p.genCancel()
	done := p.replenishDone
	p.mu.Unlock()

	if done != nil {
		select {
		case <-done:
		case <-ctx.Done():
			slog.Warn("pool: gave up waiting for replenish, detaching it", "error", ctx.Err())
			p.mu.Lock()
			if p.replenishDone == done {
				p.replenishDone = nil
			}
			p.mu.Unlock()
		}
	}

	p.mu.Lock()
	browsers := p.available
	p.available = nil
	p.initialized = false
	p.genID++
	p.gen, p.genCancel = context.WithCancel(context.Background())
	p.mu.Unlock()

	slog.Info("pool: closing browsers", "count", len(browsers))

	var (
		errMu sync.Mutex
		errs  []error
	)
	eg := new(errgroup.Group)
	for _, b := range browsers {
		eg.Go(func() error {
			if !b.IsConnected() {
				p.forget(b)
				return nil
			}
			if err := b.Close(); err != nil {
				slog.Warn("pool: failed to close browser", "error", err)
				errMu.Lock()
				errs = append(errs, err)
				errMu.Unlock()
			}
			return nil
		})
	}
	_ = eg.Wait()

	return errors.Join(errs...)
}

// Reset closes all idle browsers and clears the emergency counter so the
// next Acquire starts from a fresh pool. A replenish still stuck in launch
// when ctx ends no longer blocks the fresh pool's replenishes.
func (p *Pool) Reset(ctx context.Context) error {
	err := p.CloseAll(ctx)

	p.mu.Lock()
	p.emergency = 0
	p.mu.Unlock()

	slog.Info("pool: reset")
	return err
}

// Stats returns a snapshot of the pool's counters.
func (p *Pool) Stats() models.PoolStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return models.PoolStats{
		Size:         p.opts.Size,
		Available:    len(p.available),
		Live:         p.live,
		Emergency:    p.emergency,
		MaxEmergency: p.opts.MaxEmergency,
		Replenishing: p.replenishDone != nil,
		Initialized:  p.initialized,
	}
}

func (p *Pool) release() {
	p.mu.Lock()
	if p.live > 0 {
		p.live--
	}
	p.mu.Unlock()
}

// forget drops a disconnected browser's live slot without closing it.
func (p *Pool) forget(b Browser) {
	if pb, ok := b.(*pooledBrowser); ok {
		pb.once.Do(p.release)
		return
	}
	p.release()
}

func (p *Pool) wrap(b Browser) Browser {
	return &pooledBrowser{Browser: b, pool: p}
}

// pooledBrowser gives back its live slot when closed.
type pooledBrowser struct {
	Browser
	pool *Pool

	once     sync.Once
	closeErr error
}

func (b *pooledBrowser) Close() error {
	b.once.Do(func() {
		b.closeErr = b.Browser.Close()
		b.pool.release()
	})
	return b.closeErr
}
