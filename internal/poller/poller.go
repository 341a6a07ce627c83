package poller

import (
	"context"
	"errors"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/letsur-dev/claude-peak/internal/types"
)

const sessionExpiredMsg = "Session expired. Please login again."

// Fetcher is the usage-read side of the API client.
type Fetcher interface {
	FetchUsage(ctx context.Context, accessToken string) (*types.UsageSnapshot, error)
}

// Credentials is the slice of the credential manager the poller drives.
type Credentials interface {
	GetValidAccessToken(ctx context.Context) (string, error)
	ForceRefresh(ctx context.Context) (string, error)
	Invalidate()
	Logout() error
	HandleLogin(pair types.TokenPair) error
}

// State is the coherent view published to observers. Usage is nil
// until the first successful fetch; it is deliberately left in place
// across transient errors so the display never blanks data it already
// had.
type State struct {
	Usage      *types.UsageSnapshot
	Err        string
	NeedsLogin bool
	IsFetching bool
	UsageDelta float64
}

// Poller drives the recurring fetch. All fetches run on the poller's
// own goroutine, so two fetches can never overlap; an external
// FetchNow that races a tick is skipped via the isFetching guard.
type Poller struct {
	creds   Credentials
	fetcher Fetcher

	mu        sync.Mutex
	state     State
	observers []func(State)
	interval  time.Duration
	running   bool

	restartCh chan time.Duration
	newTicker func(time.Duration) ticker
}

type ticker interface {
	C() <-chan time.Time
	Stop()
}

type realTicker struct{ *time.Ticker }

func (t realTicker) C() <-chan time.Time { return t.Ticker.C }

func New(creds Credentials, fetcher Fetcher, interval time.Duration) *Poller {
	return &Poller{
		creds:     creds,
		fetcher:   fetcher,
		interval:  interval,
		restartCh: make(chan time.Duration, 1),
		newTicker: func(d time.Duration) ticker { return realTicker{time.NewTicker(d)} },
	}
}

// Subscribe registers an observer. Observers are invoked synchronously
// with a copy of the state on every publish.
func (p *Poller) Subscribe(fn func(State)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.observers = append(p.observers, fn)
}

// State returns a copy of the current published state.
func (p *Poller) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Start performs one immediate fetch and arms the repeating timer.
// Calling Start while already polling is a no-op.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return
	}
	p.running = true
	interval := p.interval
	p.mu.Unlock()

	go p.loop(ctx, interval)
}

func (p *Poller) loop(ctx context.Context, interval time.Duration) {
	p.FetchNow(ctx)

	tk := p.newTicker(interval)
	defer tk.Stop()

	for {
		select {
		case <-ctx.Done():
			p.mu.Lock()
			p.running = false
			p.mu.Unlock()
			return
		case d := <-p.restartCh:
			// Stop before arming: there is never a moment with two
			// live tickers.
			tk.Stop()
			tk = p.newTicker(d)
			p.FetchNow(ctx)
		case <-tk.C():
			p.FetchNow(ctx)
		}
	}
}

// Restart changes the polling cadence. The pending timer is cancelled
// and re-armed; a fetch already in flight is unaffected and its result
// is still applied.
func (p *Poller) Restart(interval time.Duration) {
	p.mu.Lock()
	p.interval = interval
	running := p.running
	p.mu.Unlock()

	if !running {
		return
	}
	// Keep only the latest requested interval.
	select {
	case <-p.restartCh:
	default:
	}
	p.restartCh <- interval
}

// Logout clears published usage and delegates credential clearing.
// Polling continues; subsequent ticks observe the missing credential
// and keep NeedsLogin set.
func (p *Poller) Logout() error {
	err := p.creds.Logout()
	p.publish(func(s *State) {
		s.Usage = nil
		s.UsageDelta = 0
		s.Err = ""
		s.NeedsLogin = true
	})
	return err
}

// HandleLoginResult consumes the outcome of the interactive login
// flow. On success the pair is persisted and a fetch is kicked off
// immediately.
func (p *Poller) HandleLoginResult(ctx context.Context, pair types.TokenPair, loginErr error) {
	if loginErr != nil {
		log.WithError(loginErr).Error("login failed")
		p.publish(func(s *State) { s.Err = loginErr.Error() })
		return
	}
	if err := p.creds.HandleLogin(pair); err != nil {
		p.publish(func(s *State) { s.Err = "Failed to save tokens" })
		return
	}
	p.publish(func(s *State) {
		s.NeedsLogin = false
		s.Err = ""
	})
	p.FetchNow(ctx)
}

// FetchNow runs one fetch-with-retry pass. If a fetch is already in
// flight the call is skipped; persistent failure is reported through
// the published state, never looped on.
func (p *Poller) FetchNow(ctx context.Context) {
	if !p.beginFetch() {
		log.Debug("fetch already in flight, skipping tick")
		return
	}
	defer p.endFetch()

	token, err := p.creds.GetValidAccessToken(ctx)
	if err != nil {
		p.handleCredentialError(err)
		return
	}

	snap, err := p.fetcher.FetchUsage(ctx, token)
	if err == nil {
		p.accept(snap)
		return
	}

	if errors.Is(err, types.ErrUnauthorized) {
		// The server rejected a token we considered valid. Drop the
		// cache, force one refresh, and retry exactly once.
		p.creds.Invalidate()
		log.Warn("token unauthorized, attempting refresh")

		if retryToken, rerr := p.creds.ForceRefresh(ctx); rerr == nil {
			if snap, ferr := p.fetcher.FetchUsage(ctx, retryToken); ferr == nil {
				p.accept(snap)
				return
			}
		}

		p.expireSession()
		return
	}

	// Transient failure classes: surface the message, keep the last
	// good snapshot, wait for the next tick.
	log.WithError(err).Error("usage fetch failed")
	msg := err.Error()
	p.publish(func(s *State) { s.Err = msg })
}

func (p *Poller) handleCredentialError(err error) {
	switch {
	case errors.Is(err, types.ErrNoCredential):
		// Expected on fresh installs; prompt for login, not an error.
		log.Info("no credential, login required")
		p.publish(func(s *State) {
			s.NeedsLogin = true
			s.Err = ""
		})
	case errors.Is(err, types.ErrRefreshFailed):
		p.expireSession()
	default:
		msg := err.Error()
		p.publish(func(s *State) { s.Err = msg })
	}
}

// expireSession is the terminal failure path: the refresh token no
// longer works, so the persisted record is cleared and the user is
// asked to log in again.
func (p *Poller) expireSession() {
	if err := p.creds.Logout(); err != nil {
		log.WithError(err).Error("clear credentials")
	}
	log.Error("session expired, credentials cleared")
	p.publish(func(s *State) {
		s.NeedsLogin = true
		s.Err = sessionExpiredMsg
	})
}

// accept publishes a fully parsed snapshot. The delta against the
// previous five-hour utilization is clamped to zero so a window reset
// never reads as negative consumption.
func (p *Poller) accept(snap *types.UsageSnapshot) {
	p.publish(func(s *State) {
		delta := 0.0
		if s.Usage != nil {
			delta = snap.FiveHour.Utilization - s.Usage.FiveHour.Utilization
			if delta < 0 {
				delta = 0
			}
		}
		s.Usage = snap
		s.UsageDelta = delta
		s.Err = ""
		s.NeedsLogin = false
	})
	log.Infof("usage fetched: 5h=%.1f%%, 7d=%.1f%%", snap.FiveHour.Utilization, snap.SevenDay.Utilization)
}

func (p *Poller) beginFetch() bool {
	p.mu.Lock()
	if p.state.IsFetching {
		p.mu.Unlock()
		return false
	}
	p.state.IsFetching = true
	state := p.state
	observers := p.observers
	p.mu.Unlock()
	notify(observers, state)
	return true
}

func (p *Poller) endFetch() {
	p.publish(func(s *State) { s.IsFetching = false })
}

func (p *Poller) publish(mutate func(*State)) {
	p.mu.Lock()
	mutate(&p.state)
	state := p.state
	observers := p.observers
	p.mu.Unlock()
	notify(observers, state)
}

func notify(observers []func(State), state State) {
	for _, fn := range observers {
		fn(state)
	}
}
