package timectrl

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"
)

func TestSimClockCapsDelta(t *testing.T) {
	c, err := NewSimClock(0.25)
	if err != nil {
		t.Fatalf("NewSimClock: %v", err)
	}

	if got := c.Tick(0.1); math.Abs(got-0.1) > 1e-12 {
		t.Fatalf("Tick(0.1) = %v, want 0.1", got)
	}
	// A stalled host resuming after 30s only advances by the cap.
	if got := c.Tick(30); got != 0.25 {
		t.Fatalf("Tick(30) = %v, want 0.25", got)
	}
	if got := c.Elapsed(); math.Abs(got-0.35) > 1e-12 {
		t.Fatalf("Elapsed() = %v, want 0.35", got)
	}
	if c.Clamped() != 1 || c.Frames() != 2 {
		t.Fatalf("Clamped=%d Frames=%d, want 1 and 2", c.Clamped(), c.Frames())
	}
}

func TestSimClockIgnoresNegativeAndNaN(t *testing.T) {
	c, err := NewSimClock(0.25)
	if err != nil {
		t.Fatalf("NewSimClock: %v", err)
	}
	if got := c.Tick(-1); got != 0 {
		t.Fatalf("Tick(-1) = %v, want 0", got)
	}
	if got := c.Tick(math.NaN()); got != 0 {
		t.Fatalf("Tick(NaN) = %v, want 0", got)
	}
	if c.Elapsed() != 0 {
		t.Fatalf("Elapsed() = %v, want 0", c.Elapsed())
	}
}

func TestSimClockNoDriftOverManyTicks(t *testing.T) {
	c, err := NewSimClock(0.25)
	if err != nil {
		t.Fatalf("NewSimClock: %v", err)
	}
	for i := 0; i < 100000; i++ {
		c.Tick(0.01)
	}
	if got := c.Elapsed(); got != 1000 {
		t.Fatalf("Elapsed() after 1e5 ticks of 10ms = %v, want exactly 1000", got)
	}

	c.Reset()
	if c.Elapsed() != 0 || c.Frames() != 0 {
		t.Fatalf("Reset did not rewind clock")
	}
}

func TestNewSimClockRejectsNonPositiveCap(t *testing.T) {
	for _, capSeconds := range []float64{0, -1, math.NaN()} {
		if _, err := NewSimClock(capSeconds); !errors.Is(err, ErrInvalidClock) {
			t.Fatalf("NewSimClock(%v) err = %v, want ErrInvalidClock", capSeconds, err)
		}
	}
}

func TestTimeControllerAcceleratedStopsAtDuration(t *testing.T) {
	tc := NewTimeController(5*time.Millisecond, Accelerated)

	var sum float64
	tc.AddListener(func(delta float64) {
		sum += delta
	})

	done := tc.Start(context.Background(), 15*time.Millisecond)
	<-done

	if got := tc.Frames(); got != 3 {
		t.Fatalf("Frames() = %d, want 3", got)
	}
	if math.Abs(sum-0.015) > 1e-9 {
		t.Fatalf("summed deltas = %v, want 0.015", sum)
	}
}

func TestTimeControllerRealTimeStopsOnCancel(t *testing.T) {
	tc := NewTimeController(2*time.Millisecond, RealTime)

	calls := make(chan float64, 1024)
	tc.AddListener(func(delta float64) {
		calls <- delta
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := tc.Start(ctx, 0)
	time.Sleep(30 * time.Millisecond)
	cancel()
	<-done

	if tc.Frames() == 0 {
		t.Fatalf("expected at least one frame before cancel")
	}
	close(calls)
	for delta := range calls {
		if delta <= 0 {
			t.Fatalf("real-time delta = %v, want > 0", delta)
		}
	}
}

func TestParseMode(t *testing.T) {
	if ParseMode("accelerated") != Accelerated {
		t.Fatalf("ParseMode(accelerated) != Accelerated")
	}
	if ParseMode("") != RealTime || ParseMode("bogus") != RealTime {
		t.Fatalf("ParseMode should default to RealTime")
	}
	if Accelerated.String() != "accelerated" {
		t.Fatalf("Accelerated.String() = %q", Accelerated.String())
	}
}
