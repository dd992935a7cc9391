package timectrl

import (
	"context"
	"sync"
	"time"
)

// Mode describes how the TimeController paces frames.
type Mode int

const (
	// RealTime paces frames on a wall-clock ticker and reports the measured
	// wall-clock gap between frames.
	RealTime Mode = iota
	// Accelerated runs frames back to back and reports the nominal Tick.
	Accelerated
)

func (m Mode) String() string {
	switch m {
	case RealTime:
		return "realtime"
	case Accelerated:
		return "accelerated"
	default:
		return "unknown"
	}
}

// ParseMode maps a config string onto a Mode, defaulting to RealTime.
func ParseMode(s string) Mode {
	if s == "accelerated" {
		return Accelerated
	}
	return RealTime
}

// TimeController is the host frame loop. It decides when frames happen and
// hands each listener the real seconds elapsed since the previous frame;
// simulation time itself lives in SimClock.
type TimeController struct {
	mu   sync.RWMutex
	Tick time.Duration
	Mode Mode

	now       func() time.Time
	frames    uint64
	listeners []func(realDeltaSeconds float64)
}

// NewTimeController constructs a controller.
func NewTimeController(tick time.Duration, mode Mode) *TimeController {
	if tick <= 0 {
		tick = 16 * time.Millisecond
	}
	return &TimeController{
		Tick: tick,
		Mode: mode,
		now:  time.Now,
	}
}

// AddListener registers a callback invoked on every frame.
func (tc *TimeController) AddListener(fn func(realDeltaSeconds float64)) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.listeners = append(tc.listeners, fn)
}

// Frames returns the number of frames dispatched so far.
func (tc *TimeController) Frames() uint64 {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	return tc.frames
}

// Start runs the loop in a separate goroutine until ctx is cancelled or the
// summed frame deltas reach duration (0 means no limit). It returns a
// channel that is closed when the loop exits.
func (tc *TimeController) Start(ctx context.Context, duration time.Duration) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)

		var ticker *time.Ticker
		if tc.Mode == RealTime {
			ticker = time.NewTicker(tc.Tick)
			defer ticker.Stop()
		}

		last := tc.now()
		elapsed := time.Duration(0)
		for {
			if duration > 0 && elapsed >= duration {
				return
			}

			var delta time.Duration
			if ticker != nil {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
				}
				now := tc.now()
				delta = now.Sub(last)
				last = now
			} else {
				select {
				case <-ctx.Done():
					return
				default:
				}
				delta = tc.Tick
			}
			elapsed += delta

			tc.mu.Lock()
			tc.frames++
			listeners := append([]func(float64){}, tc.listeners...)
			tc.mu.Unlock()

			for _, fn := range listeners {
				fn(delta.Seconds())
			}
		}
	}()
	return done
}
