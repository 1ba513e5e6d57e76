package watch

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"orchestrator/cli/api"
	"orchestrator/cli/logger"
)

// DefaultInterval is the streaming poll period.
const DefaultInterval = 10 * time.Second

// ErrNotStarted is returned by Refresh before Start.
var ErrNotStarted = errors.New("watch: poller not started")

// State is the poll scheduler's lifecycle state.
type State int

const (
	StateIdle      State = iota // created, nothing fetched yet
	StateStreaming              // timer armed, fetch every interval
	StatePaused                 // timer suspended, snapshot retained
	StateManual                 // timer off; fetch only on Refresh
	StateClosed                 // torn down; results are discarded
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStreaming:
		return "streaming"
	case StatePaused:
		return "paused"
	case StateManual:
		return "manual"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// StatusFetcher reads a deployment's current status.
type StatusFetcher interface {
	FetchStatus(ctx context.Context, deploymentID string) (*api.DeploymentStatus, error)
}

// View is the renderable state of a watched deployment.
type View struct {
	State State
	Snapshot
	Loaded    bool      // a response has been applied
	Loading   bool      // at least one fetch is in flight
	Err       error     // last fetch failure; cleared by the next success
	UpdatedAt time.Time // when the snapshot was applied
}

type Option func(*Poller)

// WithInterval sets the streaming period.
func WithInterval(d time.Duration) Option {
	return func(p *Poller) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithManual starts the poller with the timer disabled.
func WithManual(manual bool) Option {
	return func(p *Poller) { p.manual = manual }
}

// WithStrictOrdering discards any response issued before the one currently
// applied. Without it the last response to arrive wins.
func WithStrictOrdering(strict bool) Option {
	return func(p *Poller) { p.strict = strict }
}

// WithFetchOnResume controls whether re-arming the timer also fetches
// immediately. On by default.
func WithFetchOnResume(fetch bool) Option {
	return func(p *Poller) { p.fetchOnResume = fetch }
}

// WithObserver registers a hook called after every state change, in order.
// The hook runs on the poller's goroutines and must not call any Poller
// method; it receives the view it needs.
func WithObserver(f func(View)) Option {
	return func(p *Poller) { p.observe = f }
}

func WithNormalizer(n Normalizer) Option {
	return func(p *Poller) { p.norm = n }
}

func WithClock(c Clock) Option {
	return func(p *Poller) { p.clock = c }
}

func WithLogger(l *zap.Logger) Option {
	return func(p *Poller) { p.log = logger.OrNop(l) }
}

// Poller owns the repeating status fetch for one deployment. It holds a
// single timer handle, applies responses in the order they resolve (or issue
// order with WithStrictOrdering) and keeps the last good snapshot when a
// fetch fails.
type Poller struct {
	id            string
	fetcher       StatusFetcher
	norm          Normalizer
	interval      time.Duration
	manual        bool
	strict        bool
	fetchOnResume bool
	clock         Clock
	log           *zap.Logger
	observe       func(View)

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	notifyMu sync.Mutex // orders observer calls; acquired before mu is released

	mu       sync.Mutex
	state    State
	timer    Timer
	gen      uint64 // invalidates callbacks of stopped timers
	issued   uint64
	applied  uint64
	inFlight int
	view     View
}

func New(deploymentID string, fetcher StatusFetcher, opts ...Option) *Poller {
	ctx, cancel := context.WithCancel(context.Background())
	p := &Poller{
		id:            deploymentID,
		fetcher:       fetcher,
		interval:      DefaultInterval,
		fetchOnResume: true,
		clock:         systemClock{},
		log:           zap.NewNop(),
		ctx:           ctx,
		cancel:        cancel,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.log = p.log.With(zap.String("deployment", deploymentID))
	return p
}

func (p *Poller) DeploymentID() string    { return p.id }
func (p *Poller) Interval() time.Duration { return p.interval }

// Start performs the first fetch and enters streaming, or manual when the
// poller was built WithManual. It may be called once.
func (p *Poller) Start() error {
	p.mu.Lock()
	switch p.state {
	case StateClosed:
		p.mu.Unlock()
		return ErrClosed
	case StateIdle:
	default:
		p.mu.Unlock()
		return errors.New("watch: poller already started")
	}

	p.issueLocked("start")
	if p.manual {
		p.transitionLocked(StateManual)
	} else {
		p.transitionLocked(StateStreaming)
		p.armLocked()
	}
	p.unlockAndPublish()
	return nil
}

// SetPaused moves between streaming and paused. Other states are unchanged.
func (p *Poller) SetPaused(paused bool) (State, error) {
	p.mu.Lock()
	if p.state == StateClosed {
		p.mu.Unlock()
		return StateClosed, ErrClosed
	}
	switch {
	case paused && p.state == StateStreaming:
		p.disarmLocked()
		p.transitionLocked(StatePaused)
	case !paused && p.state == StatePaused:
		p.transitionLocked(StateStreaming)
		p.armLocked()
		if p.fetchOnResume {
			p.issueLocked("resume")
		}
	}
	s := p.state
	p.unlockAndPublish()
	return s, nil
}

// SetStreaming moves between streaming (or paused) and manual. Before Start
// it only chooses the mode Start will enter.
func (p *Poller) SetStreaming(on bool) (State, error) {
	p.mu.Lock()
	switch {
	case p.state == StateClosed:
		p.mu.Unlock()
		return StateClosed, ErrClosed
	case p.state == StateIdle:
		p.manual = !on
		p.mu.Unlock()
		return StateIdle, nil
	case !on && (p.state == StateStreaming || p.state == StatePaused):
		p.disarmLocked()
		p.transitionLocked(StateManual)
	case on && p.state == StateManual:
		p.transitionLocked(StateStreaming)
		p.armLocked()
		if p.fetchOnResume {
			p.issueLocked("streaming")
		}
	}
	s := p.state
	p.unlockAndPublish()
	return s, nil
}

// TogglePause flips between streaming and paused.
func (p *Poller) TogglePause() (State, error) {
	return p.SetPaused(p.State() == StateStreaming)
}

// ToggleStreaming flips between manual and streaming.
func (p *Poller) ToggleStreaming() (State, error) {
	return p.SetStreaming(p.State() == StateManual)
}

// Refresh fetches now, whatever the mode. It is the explicit user action and
// leaves the timer alone.
func (p *Poller) Refresh() error {
	p.mu.Lock()
	switch p.state {
	case StateClosed:
		p.mu.Unlock()
		return ErrClosed
	case StateIdle:
		p.mu.Unlock()
		return ErrNotStarted
	}
	p.issueLocked("refresh")
	p.unlockAndPublish()
	return nil
}

// Nudge fetches now only while streaming; used for server update notices so
// that paused and manual views stay frozen.
func (p *Poller) Nudge() bool {
	p.mu.Lock()
	if p.state != StateStreaming {
		p.mu.Unlock()
		return false
	}
	p.issueLocked("notice")
	p.unlockAndPublish()
	return true
}

// Close stops the timer and discards every later response. In-flight
// requests are cancelled. Safe to call more than once.
func (p *Poller) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == StateClosed {
		return
	}
	p.disarmLocked()
	p.transitionLocked(StateClosed)
	p.cancel()
}

func (p *Poller) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Poller) View() View {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.viewLocked()
}

func (p *Poller) viewLocked() View {
	v := p.view
	v.State = p.state
	v.Loading = p.inFlight > 0
	return v
}

func (p *Poller) transitionLocked(to State) {
	if p.state == to {
		return
	}
	p.log.Debug("poll state", zap.Stringer("from", p.state), zap.Stringer("to", to))
	p.state = to
}

// armLocked replaces the timer handle with a fresh one.
func (p *Poller) armLocked() {
	p.disarmLocked()
	gen := p.gen
	p.timer = p.clock.AfterFunc(p.interval, func() { p.tick(gen) })
}

func (p *Poller) disarmLocked() {
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
	p.gen++
}

func (p *Poller) tick(gen uint64) {
	p.mu.Lock()
	if gen != p.gen || p.state != StateStreaming {
		p.mu.Unlock()
		return
	}
	p.issueLocked("tick")
	p.armLocked()
	p.unlockAndPublish()
}

func (p *Poller) issueLocked(reason string) {
	p.issued++
	seq := p.issued
	p.inFlight++
	p.wg.Add(1)
	p.log.Debug("status fetch", zap.String("reason", reason), zap.Uint64("seq", seq))
	go p.fetch(seq)
}

func (p *Poller) fetch(seq uint64) {
	defer p.wg.Done()
	status, err := p.fetcher.FetchStatus(p.ctx, p.id)

	p.mu.Lock()
	p.inFlight--
	if p.state == StateClosed {
		p.mu.Unlock()
		p.log.Debug("discarding response after close", zap.Uint64("seq", seq))
		return
	}
	if p.strict && seq < p.applied {
		p.log.Debug("discarding out-of-order response", zap.Uint64("seq", seq), zap.Uint64("applied", p.applied))
		p.unlockAndPublish()
		return
	}

	if err != nil {
		p.log.Warn("status fetch failed", zap.Uint64("seq", seq), zap.Error(err))
		p.view.Err = &FetchError{DeploymentID: p.id, Err: err}
		p.unlockAndPublish()
		return
	}

	res := p.norm.Normalize(status)
	if res.Run.ID == "" {
		res.Run.ID = p.id
	}
	for _, w := range res.Warnings {
		p.log.Debug("malformed status data", zap.String("warning", w.Error()))
	}
	p.applied = seq
	p.view.Snapshot = res.Snapshot
	p.view.Loaded = true
	p.view.Err = nil
	p.view.UpdatedAt = p.clock.Now()
	p.unlockAndPublish()
}

// unlockAndPublish releases mu and hands the current view to the observer.
// notifyMu is taken before mu is released so observers see changes in the
// order they were made.
func (p *Poller) unlockAndPublish() {
	v := p.viewLocked()
	p.notifyMu.Lock()
	p.mu.Unlock()
	defer p.notifyMu.Unlock()
	if p.observe != nil && v.State != StateClosed {
		p.observe(v)
	}
}
