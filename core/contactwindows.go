package core

import (
	"fmt"
	"math"
	"sort"
)

// MaxPlanSamples bounds the number of instants one ContactPlan call may
// evaluate.
const MaxPlanSamples = 100_000

// ContactWindow is one predicted interval during which a station is in
// contact with the satellite. Times are simulated seconds.
type ContactWindow struct {
	StationID        string
	Start            float64
	End              float64
	PeakIntensity    float64
	MinSeparationDeg float64
	// Open is set when the window was still open at the end of the horizon.
	Open bool
}

// Duration returns End - Start.
func (w ContactWindow) Duration() float64 { return w.End - w.Start }

// ContactPlan groups windows by station id, each list ordered by Start.
type ContactPlan map[string][]ContactWindow

// ContactPlan predicts contact windows from the current elapsed time up to
// horizon seconds ahead by sampling the world every step seconds. Bodies
// follow their models; commands applied later are not anticipated. Window
// edges are accurate to one step.
func (e *Engine) ContactPlan(horizon, step float64) (ContactPlan, error) {
	if badNumber(horizon) || horizon <= 0 {
		return nil, invalidf("contact plan horizon %v must be positive", horizon)
	}
	if badNumber(step) || step <= 0 {
		return nil, invalidf("contact plan step %v must be positive", step)
	}
	if horizon/step > MaxPlanSamples {
		return nil, invalidf("contact plan needs %.0f samples, limit is %d", math.Ceil(horizon/step), MaxPlanSamples)
	}

	now := e.clock.Elapsed()
	end := now + horizon
	plan := make(ContactPlan)
	open := make(map[string]*ContactWindow)

	n := int(math.Ceil(horizon / step))
	for i := 0; i <= n; i++ {
		t := now + float64(i)*step
		if t > end {
			t = end
		}
		frame := newFrameTargets(e.prop.PropagateAll(t), e.prop, t)
		for _, c := range e.contacts(frame) {
			w, isOpen := open[c.StationID]
			if c.Available && c.InContact {
				if !isOpen {
					w = &ContactWindow{StationID: c.StationID, Start: t, MinSeparationDeg: c.AngularSeparationDeg}
					open[c.StationID] = w
				}
				w.End = t
				w.PeakIntensity = math.Max(w.PeakIntensity, c.Intensity)
				w.MinSeparationDeg = math.Min(w.MinSeparationDeg, c.AngularSeparationDeg)
				continue
			}
			if isOpen {
				w.End = t
				plan[c.StationID] = append(plan[c.StationID], *w)
				delete(open, c.StationID)
			}
		}
	}

	for id, w := range open {
		w.End = end
		w.Open = true
		plan[id] = append(plan[id], *w)
	}
	for id := range plan {
		ws := plan[id]
		sort.Slice(ws, func(i, j int) bool { return ws[i].Start < ws[j].Start })
	}
	return plan, nil
}

// Windows flattens the plan ordered by start time, then station id.
func (p ContactPlan) Windows() []ContactWindow {
	var out []ContactWindow
	for _, ws := range p {
		out = append(out, ws...)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Start != out[j].Start {
			return out[i].Start < out[j].Start
		}
		return out[i].StationID < out[j].StationID
	})
	return out
}

func (w ContactWindow) String() string {
	return fmt.Sprintf("%s [%.2fs, %.2fs] peak=%.2f", w.StationID, w.Start, w.End, w.PeakIntensity)
}
