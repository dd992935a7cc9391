package timectrl

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// DefaultDeltaCap is the largest real delta a single tick may apply.
const DefaultDeltaCap = 250 * time.Millisecond

// ErrInvalidClock is returned for a non-positive delta cap.
var ErrInvalidClock = errors.New("invalid simulation clock")

// SimClock is the canonical simulation time base. Elapsed time is kept in
// integer nanoseconds so long sessions accumulate no rounding drift, and
// every tick is capped so a stalled host does not produce one huge step on
// resume.
//
// SimClock is not safe for concurrent use; it is owned by the frame driver.
type SimClock struct {
	cap     time.Duration
	elapsed time.Duration
	frames  uint64
	clamped uint64
}

// NewSimClock constructs a clock with the given delta cap in seconds.
func NewSimClock(capSeconds float64) (*SimClock, error) {
	if math.IsNaN(capSeconds) || capSeconds <= 0 {
		return nil, fmt.Errorf("%w: delta cap %v must be positive", ErrInvalidClock, capSeconds)
	}
	return &SimClock{cap: secondsToDuration(capSeconds)}, nil
}

// Tick advances the clock by min(realElapsedSeconds, cap) and returns the
// applied delta in seconds. Negative or NaN input advances by zero.
func (c *SimClock) Tick(realElapsedSeconds float64) float64 {
	c.frames++
	if math.IsNaN(realElapsedSeconds) || realElapsedSeconds <= 0 {
		return 0
	}
	delta := c.cap
	if realElapsedSeconds < c.cap.Seconds() {
		delta = secondsToDuration(realElapsedSeconds)
	} else if realElapsedSeconds > c.cap.Seconds() {
		c.clamped++
	}
	c.elapsed += delta
	return delta.Seconds()
}

// Elapsed returns total simulated seconds since construction or Reset.
func (c *SimClock) Elapsed() float64 {
	return c.elapsed.Seconds()
}

// Cap returns the delta ceiling in seconds.
func (c *SimClock) Cap() float64 {
	return c.cap.Seconds()
}

// Frames returns the number of ticks seen.
func (c *SimClock) Frames() uint64 { return c.frames }

// Clamped returns how many ticks hit the delta cap.
func (c *SimClock) Clamped() uint64 { return c.clamped }

// Reset rewinds the clock to zero.
func (c *SimClock) Reset() {
	c.elapsed = 0
	c.frames = 0
	c.clamped = 0
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(math.Round(s * float64(time.Second)))
}
