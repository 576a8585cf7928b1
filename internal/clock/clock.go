package clock

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"quiz-attempt/internal/domain"
)

// DefaultInterval is how often a running clock re-evaluates its deadline.
const DefaultInterval = time.Second

// Clock counts down to a fixed wall-clock deadline.
//
// Remaining time is re-derived from the deadline on every tick, so throttled or
// missed ticks self-correct. The expiry callback fires exactly once, at the first
// evaluation that observes remaining <= 0.
type Clock struct {
	deadline time.Time
	interval time.Duration
	now      func() time.Time
	onTick   func(remaining time.Duration)
	onExpire func()

	started  atomic.Bool
	expired  atomic.Bool
	stopped  atomic.Bool
	stopOnce sync.Once
	stopCh   chan struct{}
	done     chan struct{}
}

// Option customizes a Clock.
type Option func(*Clock)

// WithNow replaces the wall clock, mainly for tests.
func WithNow(now func() time.Time) Option {
	return func(c *Clock) { c.now = now }
}

// WithInterval sets the tick period. Non-positive values keep the default.
func WithInterval(d time.Duration) Option {
	return func(c *Clock) {
		if d > 0 {
			c.interval = d
		}
	}
}

// OnTick registers a callback invoked with the clamped remaining time on every evaluation.
func OnTick(fn func(remaining time.Duration)) Option {
	return func(c *Clock) { c.onTick = fn }
}

// OnExpire registers the one-shot expiry callback.
func OnExpire(fn func()) Option {
	return func(c *Clock) { c.onExpire = fn }
}

// New builds a clock for an absolute deadline.
func New(deadline time.Time, opts ...Option) *Clock {
	c := &Clock{
		deadline: deadline,
		interval: DefaultInterval,
		now:      time.Now,
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FromDuration builds a clock expiring d after start. A non-positive d expires on the first tick.
func FromDuration(start time.Time, d time.Duration, opts ...Option) *Clock {
	return New(start.Add(d), opts...)
}

// FromWindow builds a clock for an explicit start/end pair.
func FromWindow(start, end time.Time, opts ...Option) (*Clock, error) {
	if !end.After(start) {
		return nil, domain.ErrInvalidWindow
	}
	return New(end, opts...), nil
}

// Start begins ticking in a background goroutine. The first evaluation happens
// immediately. Calling Start more than once has no effect.
func (c *Clock) Start() {
	if !c.started.CompareAndSwap(false, true) {
		return
	}
	go c.run()
}

func (c *Clock) run() {
	defer close(c.done)

	c.Tick()
	if c.expired.Load() {
		return
	}

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.Tick()
			if c.expired.Load() {
				return
			}
		}
	}
}

// Tick performs one evaluation against the deadline and returns the clamped remaining time.
// It is what the background loop calls; tests drive it directly with a fake clock.
func (c *Clock) Tick() time.Duration {
	remaining := c.Remaining()
	if c.stopped.Load() {
		return remaining
	}
	if c.onTick != nil {
		c.onTick(remaining)
	}
	if remaining <= 0 && c.expired.CompareAndSwap(false, true) {
		if c.onExpire != nil && !c.stopped.Load() {
			c.onExpire()
		}
	}
	return remaining
}

// Stop cancels the ticker. No callback starts after Stop returns; it is safe to
// call from within a callback and more than once.
func (c *Clock) Stop() {
	c.stopOnce.Do(func() {
		c.stopped.Store(true)
		close(c.stopCh)
	})
}

// Done is closed when the background loop exits, either on expiry or Stop.
// It never closes for a clock that was not started.
func (c *Clock) Done() <-chan struct{} {
	return c.done
}

// Remaining returns max(0, deadline - now).
func (c *Clock) Remaining() time.Duration {
	remaining := c.deadline.Sub(c.now())
	if remaining < 0 {
		return 0
	}
	return remaining
}

// RemainingSeconds rounds up, so 0 is only shown once the deadline has passed.
func (c *Clock) RemainingSeconds() int {
	return Seconds(c.Remaining())
}

// Deadline returns the instant the clock expires.
func (c *Clock) Deadline() time.Time {
	return c.deadline
}

// Expired reports whether the expiry callback has been claimed.
func (c *Clock) Expired() bool {
	return c.expired.Load()
}

// Seconds converts a remaining duration to whole seconds, rounding up.
func Seconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int((d + time.Second - 1) / time.Second)
}

// Format renders seconds as m:ss, or h:mm:ss from one hour up.
func Format(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	hours := seconds / 3600
	minutes := (seconds % 3600) / 60
	secs := seconds % 60
	if hours > 0 {
		return fmt.Sprintf("%d:%02d:%02d", hours, minutes, secs)
	}
	return fmt.Sprintf("%d:%02d", minutes, secs)
}
