package poller

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/letsur-dev/claude-peak/internal/types"
)

type fakeCreds struct {
	token        string
	tokenErr     error
	refreshed    string
	refreshErr   error
	getCalls     int
	refreshCalls int
	invalidates  int
	logouts      int
}

func (c *fakeCreds) GetValidAccessToken(context.Context) (string, error) {
	c.getCalls++
	if c.tokenErr != nil {
		return "", c.tokenErr
	}
	return c.token, nil
}

func (c *fakeCreds) ForceRefresh(context.Context) (string, error) {
	c.refreshCalls++
	if c.refreshErr != nil {
		return "", c.refreshErr
	}
	return c.refreshed, nil
}

func (c *fakeCreds) Invalidate() { c.invalidates++ }

func (c *fakeCreds) Logout() error {
	c.logouts++
	return nil
}

func (c *fakeCreds) HandleLogin(types.TokenPair) error {
	c.tokenErr = nil
	return nil
}

// fakeFetcher returns canned results in sequence, repeating the last
// one once the script runs out. Guarded because some tests fetch from
// the poller's own goroutine.
type fakeFetcher struct {
	mu     sync.Mutex
	script []fetchResult
	count  int
	tokens []string
}

type fetchResult struct {
	snap *types.UsageSnapshot
	err  error
}

func (f *fakeFetcher) FetchUsage(_ context.Context, token string) (*types.UsageSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.count
	f.count++
	f.tokens = append(f.tokens, token)
	if i >= len(f.script) {
		i = len(f.script) - 1
	}
	r := f.script[i]
	return r.snap, r.err
}

func (f *fakeFetcher) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.count
}

func (f *fakeFetcher) seenTokens() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.tokens...)
}

func snapshot(fiveHour float64) *types.UsageSnapshot {
	return &types.UsageSnapshot{
		FiveHour: types.UsageBucket{Utilization: fiveHour, ResetsAt: time.Now().Add(2 * time.Hour)},
		SevenDay: types.UsageBucket{Utilization: fiveHour / 2, ResetsAt: time.Now().Add(72 * time.Hour)},
	}
}

func TestFreshInstallNeedsLogin(t *testing.T) {
	creds := &fakeCreds{tokenErr: types.ErrNoCredential}
	fetcher := &fakeFetcher{script: []fetchResult{{snap: snapshot(1)}}}
	p := New(creds, fetcher, time.Minute)

	p.FetchNow(context.Background())

	st := p.State()
	assert.True(t, st.NeedsLogin)
	assert.Empty(t, st.Err)
	assert.Nil(t, st.Usage)
	assert.Equal(t, 0, fetcher.calls())
}

func TestFirstFetchPublishesZeroDelta(t *testing.T) {
	creds := &fakeCreds{token: "at-1"}
	fetcher := &fakeFetcher{script: []fetchResult{{snap: snapshot(42.0)}}}
	p := New(creds, fetcher, time.Minute)

	p.FetchNow(context.Background())

	st := p.State()
	require.NotNil(t, st.Usage)
	assert.Equal(t, 42, st.Usage.FiveHour.Percentage())
	assert.Zero(t, st.UsageDelta)
	assert.False(t, st.NeedsLogin)
	assert.Empty(t, st.Err)
	assert.Equal(t, []string{"at-1"}, fetcher.seenTokens())
}

func TestDeltaIsConsumptionNotRawChange(t *testing.T) {
	creds := &fakeCreds{token: "at-1"}
	fetcher := &fakeFetcher{script: []fetchResult{
		{snap: snapshot(40)},
		{snap: snapshot(45.5)},
		{snap: snapshot(2)}, // window reset
	}}
	p := New(creds, fetcher, time.Minute)
	ctx := context.Background()

	p.FetchNow(ctx)
	assert.Zero(t, p.State().UsageDelta)

	p.FetchNow(ctx)
	assert.InDelta(t, 5.5, p.State().UsageDelta, 0.001)

	p.FetchNow(ctx)
	assert.Zero(t, p.State().UsageDelta, "delta clamps to zero across a window reset")
}

func TestUnauthorizedRetriesOnceAndRecovers(t *testing.T) {
	creds := &fakeCreds{token: "at-stale", refreshed: "at-fresh"}
	fetcher := &fakeFetcher{script: []fetchResult{
		{err: types.ErrUnauthorized},
		{snap: snapshot(10)},
	}}
	p := New(creds, fetcher, time.Minute)

	p.FetchNow(context.Background())

	st := p.State()
	require.NotNil(t, st.Usage)
	assert.False(t, st.NeedsLogin)
	assert.Empty(t, st.Err)
	assert.Equal(t, 1, creds.invalidates)
	assert.Equal(t, 1, creds.refreshCalls)
	assert.Equal(t, []string{"at-stale", "at-fresh"}, fetcher.seenTokens())
}

func TestSecondUnauthorizedExpiresSession(t *testing.T) {
	creds := &fakeCreds{token: "at-stale", refreshed: "at-still-bad"}
	fetcher := &fakeFetcher{script: []fetchResult{
		{err: types.ErrUnauthorized},
		{err: types.ErrUnauthorized},
	}}
	p := New(creds, fetcher, time.Minute)

	p.FetchNow(context.Background())

	st := p.State()
	assert.True(t, st.NeedsLogin)
	assert.Equal(t, sessionExpiredMsg, st.Err)
	assert.Equal(t, 1, creds.logouts)
	assert.Equal(t, 2, fetcher.calls(), "exactly one retry per tick")
	assert.Equal(t, 1, creds.refreshCalls)
}

func TestRefreshFailedExpiresSession(t *testing.T) {
	creds := &fakeCreds{tokenErr: types.ErrRefreshFailed}
	fetcher := &fakeFetcher{script: []fetchResult{{snap: snapshot(1)}}}
	p := New(creds, fetcher, time.Minute)

	p.FetchNow(context.Background())

	st := p.State()
	assert.True(t, st.NeedsLogin)
	assert.Equal(t, sessionExpiredMsg, st.Err)
	assert.Equal(t, 1, creds.logouts)
	assert.Equal(t, 0, fetcher.calls())
}

func TestTransientErrorKeepsStaleSnapshot(t *testing.T) {
	creds := &fakeCreds{token: "at-1"}
	fetcher := &fakeFetcher{script: []fetchResult{
		{snap: snapshot(30)},
		{err: types.HTTPError{StatusCode: 502}},
	}}
	p := New(creds, fetcher, time.Minute)
	ctx := context.Background()

	p.FetchNow(ctx)
	p.FetchNow(ctx)

	st := p.State()
	require.NotNil(t, st.Usage, "stale data preferred over blanking the display")
	assert.Equal(t, 30, st.Usage.FiveHour.Percentage())
	assert.Contains(t, st.Err, "502")
	assert.False(t, st.NeedsLogin)
	assert.Equal(t, 0, creds.refreshCalls, "non-401 failures are not retried")
}

func TestLogoutClearsPublishedState(t *testing.T) {
	creds := &fakeCreds{token: "at-1"}
	fetcher := &fakeFetcher{script: []fetchResult{{snap: snapshot(30)}}}
	p := New(creds, fetcher, time.Minute)

	p.FetchNow(context.Background())
	require.NotNil(t, p.State().Usage)

	require.NoError(t, p.Logout())

	st := p.State()
	assert.Nil(t, st.Usage)
	assert.Zero(t, st.UsageDelta)
	assert.True(t, st.NeedsLogin)
	assert.Empty(t, st.Err)
	assert.Equal(t, 1, creds.logouts)
}

func TestHandleLoginResultFetchesImmediately(t *testing.T) {
	creds := &fakeCreds{tokenErr: types.ErrNoCredential}
	fetcher := &fakeFetcher{script: []fetchResult{{snap: snapshot(5)}}}
	p := New(creds, fetcher, time.Minute)
	ctx := context.Background()

	p.FetchNow(ctx)
	assert.True(t, p.State().NeedsLogin)

	p.HandleLoginResult(ctx, types.TokenPair{AccessToken: "at-1", ExpiresIn: 3600}, nil)

	st := p.State()
	assert.False(t, st.NeedsLogin)
	require.NotNil(t, st.Usage)
	assert.Equal(t, 1, fetcher.calls())
}

func TestObserversSeeEveryPublish(t *testing.T) {
	creds := &fakeCreds{token: "at-1"}
	fetcher := &fakeFetcher{script: []fetchResult{{snap: snapshot(30)}}}
	p := New(creds, fetcher, time.Minute)

	var states []State
	p.Subscribe(func(s State) { states = append(states, s) })

	p.FetchNow(context.Background())

	// isFetching=true, snapshot accepted, isFetching=false.
	require.Len(t, states, 3)
	assert.True(t, states[0].IsFetching)
	assert.NotNil(t, states[1].Usage)
	assert.False(t, states[2].IsFetching)
	assert.NotNil(t, states[2].Usage)
}

// fakeTicker counts arms and lets the test drive ticks by hand.
type fakeTicker struct {
	ch      chan time.Time
	stopped atomic.Bool
}

func (t *fakeTicker) C() <-chan time.Time { return t.ch }
func (t *fakeTicker) Stop()               { t.stopped.Store(true) }

type tickerFactory struct {
	mu      sync.Mutex
	tickers []*fakeTicker
	armed   chan *fakeTicker
}

func newTickerFactory() *tickerFactory {
	return &tickerFactory{armed: make(chan *fakeTicker, 8)}
}

func (f *tickerFactory) new(time.Duration) ticker {
	tk := &fakeTicker{ch: make(chan time.Time, 1)}
	f.mu.Lock()
	f.tickers = append(f.tickers, tk)
	f.mu.Unlock()
	f.armed <- tk
	return tk
}

func (f *tickerFactory) liveCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, tk := range f.tickers {
		if !tk.stopped.Load() {
			n++
		}
	}
	return n
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestStartIsIdempotent(t *testing.T) {
	creds := &fakeCreds{token: "at-1"}
	fetcher := &fakeFetcher{script: []fetchResult{{snap: snapshot(10)}}}
	p := New(creds, fetcher, time.Minute)
	factory := newTickerFactory()
	p.newTicker = factory.new

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p.Start(ctx)
	<-factory.armed
	p.Start(ctx)
	p.Start(ctx)

	waitFor(t, func() bool { return p.State().Usage != nil })
	assert.Equal(t, 1, factory.liveCount(), "only one timer may be armed")
	assert.Equal(t, 1, fetcher.calls(), "one immediate fetch, not one per Start call")
}

func TestRestartNeverLeavesTwoTimers(t *testing.T) {
	creds := &fakeCreds{token: "at-1"}
	fetcher := &fakeFetcher{script: []fetchResult{{snap: snapshot(10)}}}
	p := New(creds, fetcher, time.Minute)
	factory := newTickerFactory()
	p.newTicker = factory.new

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p.Start(ctx)
	first := <-factory.armed

	p.Restart(30 * time.Second)
	<-factory.armed

	waitFor(t, func() bool { return fetcher.calls() >= 2 })
	assert.True(t, first.stopped.Load(), "old timer cancelled before the new one is armed")
	assert.Equal(t, 1, factory.liveCount())

	p.Restart(2 * time.Minute)
	<-factory.armed
	waitFor(t, func() bool { return factory.liveCount() == 1 })
}

func TestTickTriggersFetch(t *testing.T) {
	creds := &fakeCreds{token: "at-1"}
	fetcher := &fakeFetcher{script: []fetchResult{{snap: snapshot(10)}}}
	p := New(creds, fetcher, time.Minute)
	factory := newTickerFactory()
	p.newTicker = factory.new

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p.Start(ctx)
	tk := <-factory.armed
	waitFor(t, func() bool { return fetcher.calls() == 1 })

	tk.ch <- time.Now()
	waitFor(t, func() bool { return fetcher.calls() == 2 })

	tk.ch <- time.Now()
	waitFor(t, func() bool { return fetcher.calls() == 3 })
}
