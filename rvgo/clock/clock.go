package clock

import (
	"context"
	"fmt"
	"strconv"
	"time"
)

// Counter is the machine cycle counter. Stepping moves it forward by one per retired instruction.
type Counter struct {
	cycles uint64
}

func (c *Counter) Tick() {
	c.cycles++
}

func (c *Counter) Cycles() uint64 {
	return c.cycles
}

func (c *Counter) Reset() {
	c.cycles = 0
}

// Restore rewinds or advances the counter to a previously saved value.
func (c *Counter) Restore(cycles uint64) {
	c.cycles = cycles
}

// Pacer throttles a stepping loop against host time.
type Pacer interface {
	// Wait blocks until the next tick is due and reports how many ticks were missed.
	Wait(ctx context.Context) (missed uint64, err error)
	// Reset restarts the timer from now.
	Reset()
}

// Free never waits.
type Free struct{}

func (Free) Wait(ctx context.Context) (uint64, error) {
	return 0, ctx.Err()
}

func (Free) Reset() {}

// Fixed ticks at a fixed period. When the caller falls behind, the missed ticks are
// skipped so the schedule stays aligned to the original start time.
type Fixed struct {
	period time.Duration
	prev   time.Time
}

func NewFixed(period time.Duration) *Fixed {
	if period <= 0 {
		panic("clock period must be positive")
	}
	return &Fixed{period: period, prev: time.Now()}
}

func (f *Fixed) Period() time.Duration {
	return f.period
}

func (f *Fixed) Wait(ctx context.Context) (uint64, error) {
	wait := f.period
	var missed uint64
	if elapsed := time.Since(f.prev); elapsed > wait {
		missed = uint64(elapsed / f.period)
		wait += time.Duration(missed) * f.period
	}
	deadline := f.prev.Add(wait)
	if d := time.Until(deadline); d > 0 {
		t := time.NewTimer(d)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-t.C:
		}
	}
	f.prev = deadline
	return missed, nil
}

func (f *Fixed) Reset() {
	f.prev = time.Now()
}

// ParsePacer parses "free" or a frequency in Hz.
func ParsePacer(spec string) (Pacer, error) {
	if spec == "free" {
		return Free{}, nil
	}
	hz, err := strconv.ParseUint(spec, 10, 64)
	if err != nil || hz == 0 {
		return nil, fmt.Errorf("invalid clock %q: expected \"free\" or a frequency in Hz", spec)
	}
	if hz > uint64(time.Second) {
		return nil, fmt.Errorf("clock frequency %d Hz exceeds 1 GHz", hz)
	}
	return NewFixed(time.Second / time.Duration(hz)), nil
}
