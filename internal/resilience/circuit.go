// Package resilience provides retry and circuit-breaking for document store
// and cache calls.
package resilience

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// State is a breaker state.
type State int

const (
	// StateClosed lets calls through.
	StateClosed State = iota
	// StateOpen rejects calls until the reset timeout elapses.
	StateOpen
	// StateHalfOpen lets probe calls through to test recovery.
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	}
	return "unknown"
}

// MarshalText renders the state by name in JSON output.
func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// ErrBreakerOpen is returned for calls rejected by an open breaker.
var ErrBreakerOpen = eris.New("resilience: circuit breaker open")

// BreakerConfig controls a Breaker.
type BreakerConfig struct {
	// FailureThreshold is the number of consecutive tripping failures that
	// opens the breaker. Default: 5.
	FailureThreshold int

	// ResetTimeout is how long the breaker stays open. Default: 30s.
	ResetTimeout time.Duration

	// HalfOpenProbes is the number of successful probes that close a
	// half-open breaker. Default: 1.
	HalfOpenProbes int

	// ShouldTrip decides which errors count as failures. Default: IsTransient.
	ShouldTrip func(err error) bool

	// OnStateChange runs on every transition, under the breaker lock.
	OnStateChange func(from, to State)
}

// DefaultBreakerConfig returns the breaker policy used for the document store.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 5,
		ResetTimeout:     30 * time.Second,
		HalfOpenProbes:   1,
	}
}

// Breaker stops calling a backend that keeps failing.
type Breaker struct {
	name string
	cfg  BreakerConfig

	mu        sync.Mutex
	state     State
	failures  int
	openedAt  time.Time
	probeWins int
	nowFunc   func() time.Time
}

// NewBreaker creates a closed breaker. name shows up in logs.
func NewBreaker(name string, cfg BreakerConfig) *Breaker {
	def := DefaultBreakerConfig()
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = def.FailureThreshold
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = def.ResetTimeout
	}
	if cfg.HalfOpenProbes <= 0 {
		cfg.HalfOpenProbes = def.HalfOpenProbes
	}
	if cfg.ShouldTrip == nil {
		cfg.ShouldTrip = IsTransient
	}
	return &Breaker{name: name, cfg: cfg, nowFunc: time.Now}
}

// Execute runs fn unless the breaker is open.
func (b *Breaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	_, err := ExecuteVal(ctx, b, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// ExecuteVal is Execute for calls that return a value.
func ExecuteVal[T any](ctx context.Context, b *Breaker, fn func(ctx context.Context) (T, error)) (T, error) {
	if err := b.admit(); err != nil {
		var zero T
		return zero, err
	}
	val, err := fn(ctx)
	b.record(err)
	return val, err
}

// State returns the current state, reporting half-open once an open
// breaker's timeout has elapsed.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateOpen && b.nowFunc().Sub(b.openedAt) >= b.cfg.ResetTimeout {
		return StateHalfOpen
	}
	return b.state
}

// Failures returns the current consecutive failure count.
func (b *Breaker) Failures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures
}

// Reset closes the breaker.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
	b.probeWins = 0
	if b.state != StateClosed {
		b.moveTo(StateClosed)
	}
}

func (b *Breaker) admit() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != StateOpen {
		return nil
	}
	if b.nowFunc().Sub(b.openedAt) >= b.cfg.ResetTimeout {
		b.moveTo(StateHalfOpen)
		return nil
	}
	return eris.Wrapf(ErrBreakerOpen, "resilience: %s", b.name)
}

func (b *Breaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err == nil || !b.cfg.ShouldTrip(err) {
		switch b.state {
		case StateHalfOpen:
			b.probeWins++
			if b.probeWins >= b.cfg.HalfOpenProbes {
				b.failures = 0
				b.probeWins = 0
				b.moveTo(StateClosed)
			}
		case StateClosed:
			b.failures = 0
		}
		return
	}

	b.failures++
	switch b.state {
	case StateClosed:
		if b.failures >= b.cfg.FailureThreshold {
			b.openedAt = b.nowFunc()
			b.moveTo(StateOpen)
		}
	case StateHalfOpen:
		b.probeWins = 0
		b.openedAt = b.nowFunc()
		b.moveTo(StateOpen)
	}
}

func (b *Breaker) moveTo(to State) {
	from := b.state
	b.state = to
	zap.L().Info("resilience: breaker state change",
		zap.String("breaker", b.name),
		zap.Stringer("from", from),
		zap.Stringer("to", to),
	)
	if b.cfg.OnStateChange != nil {
		b.cfg.OnStateChange(from, to)
	}
}

// Breakers holds one breaker per collection.
type Breakers struct {
	cfg BreakerConfig

	mu       sync.Mutex
	breakers map[string]*Breaker
}

// NewBreakers creates an empty registry.
func NewBreakers(cfg BreakerConfig) *Breakers {
	return &Breakers{cfg: cfg, breakers: make(map[string]*Breaker)}
}

// Get returns the breaker for name, creating it on first use.
func (r *Breakers) Get(name string) *Breaker {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.breakers[name]
	if !ok {
		b = NewBreaker(name, r.cfg)
		r.breakers[name] = b
	}
	return b
}

// States returns a snapshot of every breaker's state.
func (r *Breakers) States() map[string]State {
	r.mu.Lock()
	all := make([]*Breaker, 0, len(r.breakers))
	for _, b := range r.breakers {
		all = append(all, b)
	}
	r.mu.Unlock()

	out := make(map[string]State, len(all))
	for _, b := range all {
		out[b.name] = b.State()
	}
	return out
}
