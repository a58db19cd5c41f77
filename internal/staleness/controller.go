// Package staleness turns bursts of slider edits into a single background
// re-run once the user pauses.
package staleness

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/kingrea/greenlight/internal/borrower"
)

// DefaultDelay is the quiet period after the last watched edit.
const DefaultDelay = 800 * time.Millisecond

// Runner is the part of the orchestrator the controller drives.
type Runner interface {
	HasNormalized() bool
	RunBackground(ctx context.Context, input borrower.Input)
}

// InputSource returns the borrower record as it is right now.
type InputSource func() borrower.Input

// Timer is the handle returned by an AfterFunc.
type Timer interface {
	Stop() bool
}

// AfterFunc schedules f after d.
type AfterFunc func(d time.Duration, f func()) Timer

func realAfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Option customizes a Controller.
type Option func(*Controller)

// WithDelay sets the debounce window.
func WithDelay(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.delay = d
		}
	}
}

// WithAfterFunc replaces the timer factory (tests).
func WithAfterFunc(fn AfterFunc) Option {
	return func(c *Controller) {
		if fn != nil {
			c.afterFunc = fn
		}
	}
}

// WithContext sets the context background runs inherit.
func WithContext(ctx context.Context) Option {
	return func(c *Controller) {
		if ctx != nil {
			c.ctx = ctx
		}
	}
}

// WithLogger sets the controller logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Controller owns at most one pending timer. Arming replaces the previous
// timer; each callback carries the sequence number it was armed with and does
// nothing once a newer arm or Stop has happened.
type Controller struct {
	runner    Runner
	source    InputSource
	delay     time.Duration
	afterFunc AfterFunc
	ctx       context.Context
	logger    *slog.Logger

	mu       sync.Mutex
	timer    Timer
	seq      uint64
	stopped  bool
	triggers uint64
	inflight sync.WaitGroup
}

// New returns a controller that re-runs runner with the input from source.
func New(runner Runner, source InputSource, opts ...Option) (*Controller, error) {
	if runner == nil {
		return nil, fmt.Errorf("staleness: runner is required")
	}
	if source == nil {
		return nil, fmt.Errorf("staleness: input source is required")
	}
	c := &Controller{
		runner:    runner,
		source:    source,
		delay:     DefaultDelay,
		afterFunc: realAfterFunc,
		ctx:       context.Background(),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

// Delay reports the debounce window.
func (c *Controller) Delay() time.Duration {
	return c.delay
}

// Observe arms the timer when any watched field differs between prev and
// next. It reports whether a timer is now pending because of this call.
func (c *Controller) Observe(prev, next borrower.Input) bool {
	for _, field := range borrower.Changed(prev, next) {
		if borrower.IsWatched(field) {
			return c.arm(field)
		}
	}
	return false
}

// Touch arms the timer for a single edited field.
func (c *Controller) Touch(field borrower.Field) bool {
	if !borrower.IsWatched(field) {
		return false
	}
	return c.arm(field)
}

func (c *Controller) arm(field borrower.Field) bool {
	// Nothing to refresh until a first run has produced normalized data.
	if !c.runner.HasNormalized() {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return false
	}
	if c.timer != nil {
		c.timer.Stop()
	}
	c.seq++
	seq := c.seq
	c.timer = c.afterFunc(c.delay, func() { c.fire(seq) })
	c.logger.Debug("staleness armed", "field", field, "seq", seq, "delay", c.delay)
	return true
}

func (c *Controller) fire(seq uint64) {
	c.mu.Lock()
	if c.stopped || seq != c.seq {
		c.mu.Unlock()
		return
	}
	c.timer = nil
	c.triggers++
	c.inflight.Add(1)
	c.mu.Unlock()

	input := c.source()
	c.logger.Debug("staleness fired", "seq", seq)
	go func() {
		defer c.inflight.Done()
		c.runner.RunBackground(c.ctx, input)
	}()
}

// Pending reports whether a timer is armed.
func (c *Controller) Pending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.timer != nil
}

// Triggered counts background runs started by the controller.
func (c *Controller) Triggered() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.triggers
}

// Stop cancels the pending timer and refuses further arming. Runs already
// started are left to finish.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopped = true
	c.seq++
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

// Wait blocks until every background run the controller started returns.
func (c *Controller) Wait() {
	c.inflight.Wait()
}
