// v1
// internal/circuitbreaker/breaker.go
package circuitbreaker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

type State int

const (
	Closed State = iota
	Open
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// GaugeValue is the cb_state metric encoding: 0 closed, 1 half-open, 2 open.
func (s State) GaugeValue() float64 {
	switch s {
	case HalfOpen:
		return 1
	case Open:
		return 2
	default:
		return 0
	}
}

var ErrOpen = errors.New("circuit breaker is open; fast-fail")

// Config holds the breaker tunables.
type Config struct {
	MaxFailures      int           // consecutive failures before opening
	ResetTimeout     time.Duration // time spent open before a trial call is let through
	SuccessesToClose int           // successes required in HalfOpen before closing
}

// Breaker is a three-state circuit breaker. Closed counts consecutive failures and
// opens at MaxFailures. Open fails fast until ResetTimeout elapses, then moves to
// HalfOpen (running the optional probe first). HalfOpen closes after SuccessesToClose
// successes and reopens on the first failure.
type Breaker struct {
	name   string
	cfg    Config
	logger *slog.Logger
	probe  func(ctx context.Context) error

	mu        sync.Mutex
	state     State
	failures  int
	successes int
	openedAt  time.Time
	changed   bool
	onChange  func(name string, s State)
}

func New(name string, cfg Config, probe func(ctx context.Context) error, logger *slog.Logger) *Breaker {
	if cfg.MaxFailures < 1 {
		cfg.MaxFailures = 1
	}
	if cfg.SuccessesToClose < 1 {
		cfg.SuccessesToClose = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	b := &Breaker{name: name, cfg: cfg, logger: logger, probe: probe, state: Closed}
	b.logger.Info("breaker_created", "name", name, "max_failures", cfg.MaxFailures,
		"reset_timeout", cfg.ResetTimeout.String(), "successes_to_close", cfg.SuccessesToClose)
	return b
}

func (b *Breaker) Name() string { return b.name }

// OnStateChange registers fn to be called (outside the lock) after every transition.
func (b *Breaker) OnStateChange(fn func(name string, s State)) {
	b.mu.Lock()
	b.onChange = fn
	b.mu.Unlock()
}

func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Execute runs op under breaker protection. A failure that trips the breaker is
// returned wrapped with ErrOpen.
func (b *Breaker) Execute(ctx context.Context, op func(ctx context.Context) error) error {
	b.mu.Lock()
	probe := false
	if b.state == Open {
		since := time.Since(b.openedAt)
		if since < b.cfg.ResetTimeout {
			b.mu.Unlock()
			b.logger.Debug("breaker_fast_fail", "name", b.name, "since_open", since.String())
			return ErrOpen
		}
		b.transition(HalfOpen)
		probe = b.probe != nil
	}
	notify := b.pending()
	b.mu.Unlock()
	notify()

	if probe {
		if err := b.probe(ctx); err != nil {
			b.logger.Warn("breaker_probe_failed", "name", b.name, "error", err)
			b.mu.Lock()
			b.trip()
			notify = b.pending()
			b.mu.Unlock()
			notify()
			return fmt.Errorf("%w: probe: %w", ErrOpen, err)
		}
	}

	err := op(ctx)

	b.mu.Lock()
	if err == nil {
		b.onSuccess()
	} else {
		b.onFailure(err)
	}
	opened := b.state == Open
	notify = b.pending()
	b.mu.Unlock()
	notify()

	if err != nil && opened {
		return fmt.Errorf("%w: %w", ErrOpen, err)
	}
	return err
}

func (b *Breaker) onSuccess() {
	switch b.state {
	case HalfOpen:
		b.successes++
		if b.successes >= b.cfg.SuccessesToClose {
			b.transition(Closed)
		}
	default:
		b.failures = 0
	}
}

func (b *Breaker) onFailure(err error) {
	switch b.state {
	case HalfOpen:
		b.logger.Warn("breaker_half_open_failure", "name", b.name, "error", err)
		b.trip()
	default:
		b.failures++
		b.logger.Warn("operation_failure", "name", b.name, "failures", b.failures, "error", err)
		if b.failures >= b.cfg.MaxFailures {
			b.trip()
		}
	}
}

func (b *Breaker) trip() {
	b.openedAt = time.Now()
	b.transition(Open)
}

// transition must be called with mu held.
func (b *Breaker) transition(to State) {
	if b.state == to {
		return
	}
	from := b.state
	b.state = to
	b.failures = 0
	b.successes = 0
	b.changed = true
	switch to {
	case Open:
		b.logger.Error("breaker_opened", "name", b.name, "from", from.String())
	case HalfOpen:
		b.logger.Info("breaker_half_open", "name", b.name)
	case Closed:
		b.logger.Info("breaker_closed", "name", b.name, "from", from.String())
	}
}

// pending returns the change callback to run once mu is released.
func (b *Breaker) pending() func() {
	if !b.changed || b.onChange == nil {
		b.changed = false
		return func() {}
	}
	b.changed = false
	fn, name, s := b.onChange, b.name, b.state
	return func() { fn(name, s) }
}
