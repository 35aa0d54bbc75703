package engine_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/use-agent/figscrape/engine"
	"github.com/use-agent/figscrape/engine/enginetest"
	"github.com/use-agent/figscrape/models"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newPool(t *testing.T, l *enginetest.FakeLauncher, opts engine.PoolOptions) *engine.Pool {
	t.Helper()
	if opts.RetryBackoff == 0 {
		opts.RetryBackoff = time.Millisecond
	}
	if opts.ReplenishBackoff == 0 {
		opts.ReplenishBackoff = 10 * time.Millisecond
	}
	p := engine.NewPool(l, opts)
	t.Cleanup(func() { _ = p.CloseAll(context.Background()) })
	return p
}

func TestPool_InitializeIdempotent(t *testing.T) {
	l := &enginetest.FakeLauncher{}
	l.SetDelay(2 * time.Millisecond)
	p := newPool(t, l, engine.PoolOptions{Size: 3, MaxEmergency: 5})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, p.Initialize(context.Background()))
		}()
	}
	wg.Wait()
	require.NoError(t, p.Initialize(context.Background()))

	assert.Equal(t, 3, l.Launches())
	stats := p.Stats()
	assert.Equal(t, 3, stats.Available)
	assert.Equal(t, 3, stats.Live)
	assert.True(t, stats.Initialized)
}

func TestPool_InitializeDegraded(t *testing.T) {
	l := &enginetest.FakeLauncher{}
	l.FailNext(2)
	p := newPool(t, l, engine.PoolOptions{Size: 3, MaxEmergency: 5})

	require.NoError(t, p.Initialize(context.Background()))

	stats := p.Stats()
	assert.Equal(t, 1, stats.Available)
	assert.Equal(t, 1, stats.Live)
	assert.True(t, stats.Initialized)
}

func TestPool_InitializeCancelled(t *testing.T) {
	l := &enginetest.FakeLauncher{}
	p := newPool(t, l, engine.PoolOptions{Size: 3})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := p.Initialize(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, l.Launches())
	assert.False(t, p.Stats().Initialized)
}

func TestPool_AcquireInitializesAndReplenishes(t *testing.T) {
	l := &enginetest.FakeLauncher{}
	p := newPool(t, l, engine.PoolOptions{Size: 2, MaxEmergency: 5})

	b, err := p.Acquire(context.Background())
	require.NoError(t, err)
	require.NotNil(t, b)

	require.Eventually(t, func() bool {
		s := p.Stats()
		return s.Available == 2 && !s.Replenishing
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 3, l.Launches())

	require.NoError(t, b.Close())
	assert.Equal(t, 2, p.Stats().Live)
}

func TestPool_EmergencyCap(t *testing.T) {
	l := &enginetest.FakeLauncher{}
	l.SetDelay(5 * time.Millisecond)
	p := newPool(t, l, engine.PoolOptions{Size: 0, MaxEmergency: 5})

	const callers = 6
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		acquired  []engine.Browser
		exhausted int
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b, err := p.Acquire(context.Background())
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				assert.Equal(t, models.ErrCodePoolExhausted, models.CodeOf(err))
				exhausted++
				return
			}
			acquired = append(acquired, b)
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, len(acquired), 5)
	assert.GreaterOrEqual(t, exhausted, 1)
	assert.Equal(t, callers, len(acquired)+exhausted)
	assert.Equal(t, 5, p.Stats().Emergency)

	for _, b := range acquired {
		require.NoError(t, b.Close())
	}
	assert.Equal(t, 0, p.Stats().Live)
}

func TestPool_EmergencyRetry(t *testing.T) {
	l := &enginetest.FakeLauncher{}
	p := newPool(t, l, engine.PoolOptions{Size: 0, MaxEmergency: 1})
	l.FailNext(1)

	b, err := p.Acquire(context.Background())
	require.NoError(t, err)
	defer b.Close()

	assert.Equal(t, 2, l.Launches())
	assert.Equal(t, 1, p.Stats().Emergency)
}

func TestPool_EmergencyLaunchFailure(t *testing.T) {
	l := &enginetest.FakeLauncher{}
	l.FailAll(true)
	p := newPool(t, l, engine.PoolOptions{Size: 0, MaxEmergency: 2})

	_, err := p.Acquire(context.Background())
	require.Error(t, err)
	assert.Equal(t, models.ErrCodeLaunch, models.CodeOf(err))
	assert.ErrorIs(t, err, enginetest.ErrLaunch)
	assert.Equal(t, 2, l.Launches())

	stats := p.Stats()
	assert.Equal(t, 0, stats.Emergency, "failed launch must give back its emergency slot")
	assert.Equal(t, 0, stats.Live)
}

func TestPool_ReplenishRelievesEmergency(t *testing.T) {
	l := &enginetest.FakeLauncher{}
	l.FailAll(true)
	p := newPool(t, l, engine.PoolOptions{Size: 1, MaxEmergency: 2})

	require.NoError(t, p.Initialize(context.Background()))
	require.Equal(t, 0, p.Stats().Available)

	l.FailAll(false)
	b, err := p.Acquire(context.Background())
	require.NoError(t, err)
	defer b.Close()

	require.Eventually(t, func() bool {
		s := p.Stats()
		return s.Available == 1 && s.Emergency == 0 && !s.Replenishing
	}, time.Second, 5*time.Millisecond)
}

func TestPool_ReplenishFailureIsSwallowed(t *testing.T) {
	l := &enginetest.FakeLauncher{}
	p := newPool(t, l, engine.PoolOptions{Size: 2})
	l.FailAll(true)

	p.Replenish(context.Background())

	stats := p.Stats()
	assert.Equal(t, 0, stats.Available)
	assert.Equal(t, 0, stats.Live)
	assert.False(t, stats.Replenishing)
}

func TestPool_SizeInvariantUnderConcurrency(t *testing.T) {
	l := &enginetest.FakeLauncher{}
	l.SetDelay(time.Millisecond)
	opts := engine.PoolOptions{Size: 3, MaxEmergency: 5}
	p := newPool(t, l, opts)
	require.NoError(t, p.Initialize(context.Background()))

	stop := make(chan struct{})
	sampled := make(chan struct{})
	go func() {
		defer close(sampled)
		for {
			select {
			case <-stop:
				return
			default:
			}
			s := p.Stats()
			assert.LessOrEqual(t, s.Available, opts.Size)
			assert.LessOrEqual(t, s.Live, opts.Size+opts.MaxEmergency)
			assert.LessOrEqual(t, l.Open(), opts.Size+opts.MaxEmergency)
			time.Sleep(100 * time.Microsecond)
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			b, err := p.Acquire(context.Background())
			if err != nil {
				return
			}
			time.Sleep(2 * time.Millisecond)
			_ = b.Close()
		}()
		go func() {
			defer wg.Done()
			p.Replenish(context.Background())
		}()
	}
	wg.Wait()
	close(stop)
	<-sampled

	require.Eventually(t, func() bool { return !p.Stats().Replenishing }, time.Second, 5*time.Millisecond)
	s := p.Stats()
	assert.LessOrEqual(t, s.Available, opts.Size)
	assert.Equal(t, s.Available, s.Live, "only idle browsers remain live")
}

func TestPool_CloseAll(t *testing.T) {
	l := &enginetest.FakeLauncher{}
	p := newPool(t, l, engine.PoolOptions{Size: 3})
	require.NoError(t, p.Initialize(context.Background()))

	browsers := l.Browsers()
	require.Len(t, browsers, 3)
	closeErr := errors.New("browser refused to die")
	browsers[0].Disconnect()
	browsers[1].CloseErr = closeErr

	err := p.CloseAll(context.Background())
	require.ErrorIs(t, err, closeErr)

	assert.Equal(t, 0, browsers[0].CloseCalls(), "disconnected browser is skipped")
	assert.Equal(t, 1, browsers[1].CloseCalls())
	assert.Equal(t, 1, browsers[2].CloseCalls())

	stats := p.Stats()
	assert.Equal(t, 0, stats.Available)
	assert.Equal(t, 0, stats.Live)
	assert.False(t, stats.Initialized)
}

func TestPool_CloseAllCancelsReplenish(t *testing.T) {
	l := &enginetest.FakeLauncher{}
	p := newPool(t, l, engine.PoolOptions{Size: 1, MaxEmergency: 1})
	require.NoError(t, p.Initialize(context.Background()))

	// The replenish triggered by Acquire blocks on a slow launch.
	l.SetDelay(time.Hour)
	b, err := p.Acquire(context.Background())
	require.NoError(t, err)
	defer b.Close()
	require.True(t, p.Stats().Replenishing)

	require.NoError(t, p.CloseAll(context.Background()))

	stats := p.Stats()
	assert.False(t, stats.Replenishing)
	assert.Equal(t, 0, stats.Available)
}

func TestPool_CloseAllClosesAllAtOnce(t *testing.T) {
	const size = 6

	// Every close waits until all of them have started.
	var arrived, stalled atomic.Int32
	l := &enginetest.FakeLauncher{
		OnClose: func() {
			arrived.Add(1)
			deadline := time.Now().Add(time.Second)
			for arrived.Load() < size {
				if time.Now().After(deadline) {
					stalled.Add(1)
					return
				}
				time.Sleep(time.Millisecond)
			}
		},
	}
	p := newPool(t, l, engine.PoolOptions{Size: size})
	require.NoError(t, p.Initialize(context.Background()))
	require.Len(t, l.Browsers(), size)

	start := time.Now()
	require.NoError(t, p.CloseAll(context.Background()))

	assert.Zero(t, stalled.Load(), "a close waited on another close")
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, 0, l.Open())
}

func TestPool_ResetDetachesStuckReplenish(t *testing.T) {
	l := &enginetest.FakeLauncher{}
	p := newPool(t, l, engine.PoolOptions{Size: 1, MaxEmergency: 1})
	require.NoError(t, p.Initialize(context.Background()))

	// The replenish triggered by Acquire hangs in a launch that ignores
	// cancellation.
	release := make(chan struct{})
	l.Stall(release)
	b, err := p.Acquire(context.Background())
	require.NoError(t, err)
	require.Eventually(t, func() bool { return l.Launches() == 2 }, time.Second, time.Millisecond)
	require.True(t, p.Stats().Replenishing)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	require.NoError(t, p.Reset(ctx))

	stats := p.Stats()
	assert.False(t, stats.Replenishing)
	assert.False(t, stats.Initialized)
	assert.Equal(t, 2, stats.Live, "acquired browser and stuck launch")

	// The late browser belongs to the old generation and is closed.
	l.Stall(nil)
	close(release)
	require.Eventually(t, func() bool { return p.Stats().Live == 1 }, time.Second, time.Millisecond)
	require.Len(t, l.Browsers(), 2)
	assert.Equal(t, 1, l.Browsers()[1].CloseCalls())
	assert.Equal(t, 1, l.Open())

	require.NoError(t, b.Close())
	assert.Equal(t, 0, p.Stats().Live)
}

func TestPool_ResetReinitializes(t *testing.T) {
	l := &enginetest.FakeLauncher{}
	p := newPool(t, l, engine.PoolOptions{Size: 2, MaxEmergency: 1})

	require.NoError(t, p.Initialize(context.Background()))
	require.Equal(t, 2, l.Launches())

	require.NoError(t, p.Reset(context.Background()))
	stats := p.Stats()
	assert.False(t, stats.Initialized)
	assert.Equal(t, 0, stats.Available)
	assert.Equal(t, 0, stats.Emergency)
	for _, b := range l.Browsers() {
		assert.Equal(t, 1, b.CloseCalls())
	}

	b, err := p.Acquire(context.Background())
	require.NoError(t, err)
	defer b.Close()

	assert.True(t, p.Stats().Initialized)
	assert.GreaterOrEqual(t, l.Launches(), 4)
}
