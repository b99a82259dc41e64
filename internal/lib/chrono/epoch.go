// Package chrono implements the epoch clock: a fixed period, a start time
// and a counter that only this package increments.  Everything else in the
// protocol reads the epoch through a shared *Clock and never advances it.
package chrono

import (
	"sync"
	"time"

	sdkerrors "cosmossdk.io/errors"
)

// ErrNotDue is returned by AdvanceIfDue before the next epoch point.
var ErrNotDue = sdkerrors.Register("chrono", 2, "epoch not due yet")

type Clock struct {
	mu     sync.Mutex
	period time.Duration
	start  time.Time
	epoch  uint64
	now    func() time.Time
}

func New(period time.Duration, start time.Time) *Clock {
	return &Clock{period: period, start: start, now: time.Now}
}

// NewWithNow is New with an injected time source for tests.
func NewWithNow(period time.Duration, start time.Time, now func() time.Time) *Clock {
	return &Clock{period: period, start: start, now: now}
}

func (c *Clock) Period() time.Duration {
	return c.period
}

func (c *Clock) StartTime() time.Time {
	return c.start
}

func (c *Clock) Epoch() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.epoch
}

// NextEpochPoint is start + epoch*period: the instant the pending epoch
// becomes due.  Monotonically non-decreasing since the counter only grows.
func (c *Clock) NextEpochPoint() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.nextEpochPointLocked()
}

func (c *Clock) nextEpochPointLocked() time.Time {
	return c.start.Add(time.Duration(c.epoch) * c.period)
}

// TimeUntilNext is zero once the epoch is due.
func (c *Clock) TimeUntilNext() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	d := c.nextEpochPointLocked().Sub(c.now())
	if d < 0 {
		return 0
	}
	return d
}

// Due reports whether AdvanceIfDue would currently succeed.
func (c *Clock) Due() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.now().Before(c.nextEpochPointLocked())
}

// AdvanceIfDue increments the epoch by exactly one and returns the new
// value.  It never catches up: a clock that is three periods behind needs
// three calls.  Before the epoch point it fails with ErrNotDue.
func (c *Clock) AdvanceIfDue() (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.now().Before(c.nextEpochPointLocked()) {
		return c.epoch, ErrNotDue
	}
	c.epoch++
	return c.epoch, nil
}
