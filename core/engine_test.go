package core

import (
	"context"
	"errors"
	"math"
	"testing"

	"gonum.org/v1/gonum/floats/scalar"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/signalsfoundry/intercept-engine/kb"
	"github.com/signalsfoundry/intercept-engine/model"
)

type captureRecorder struct {
	frames []FrameStats
}

func (c *captureRecorder) ObserveFrame(s FrameStats) { c.frames = append(c.frames, s) }

func testScenario() *model.Scenario {
	return &model.Scenario{
		DeltaCapSeconds: 0.25,
		Bodies: []model.BodyDefinition{
			{ID: "sun", Kind: model.BodyKindStar},
			{ID: "earth", Kind: model.BodyKindPlanet, ParentID: "sun", OrbitRadius: 130, AngularRate: 0.06},
			{ID: "nanosat", Kind: model.BodyKindSatellite, ParentID: "earth", OrbitRadius: 25, AngularRate: 0.5, Inclination: math.Pi / 4},
			{ID: "oumuamua", Kind: model.BodyKindForeign, OrbitRadius: 800, AngularRate: 0.09, Eccentricity: 0.3, Tilt: math.Pi / 6},
		},
		Stations: []model.GroundPoint{
			{ID: "gs-null", Name: "Null Island", Latitude: 0, Longitude: 0, ReferenceID: "earth"},
			{ID: "gs-delhi", Name: "Delhi", Latitude: 28.6, Longitude: 77.2},
		},
		Visibility: model.VisibilityDefinition{SatelliteID: "nanosat", ThresholdDeg: 8},
		Swarm: model.SwarmDefinition{
			Count: 4, TargetID: "oumuamua", LaunchID: "nanosat",
			SpeedMin: 0.5, SpeedMax: 0.5, Seed: 7, PathSamples: 8,
		},
	}
}

func newTestEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	e, err := NewEngine(testScenario(), opts...)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	t.Cleanup(e.Close)
	return e
}

func TestEngine_TickProducesConsistentSnapshot(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	snap, err := e.Tick(ctx, 0.1)
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if snap.Frame != 1 || snap.Delta != 0.1 || !scalar.EqualWithinAbs(snap.Elapsed, 0.1, 1e-12) {
		t.Fatalf("frame/delta/elapsed = %d/%v/%v", snap.Frame, snap.Delta, snap.Elapsed)
	}
	if len(snap.Bodies) != 4 || len(snap.Contacts) != 2 || len(snap.Interceptors) != 4 {
		t.Fatalf("snapshot sizes = %d bodies, %d contacts, %d interceptors",
			len(snap.Bodies), len(snap.Contacts), len(snap.Interceptors))
	}

	// The satellite is composed onto where its parent is in the same frame.
	earth, _ := snap.Body("earth")
	sat, _ := snap.Body("nanosat")
	offset := (&EllipticalMotionModel{Radius: 25, Rate: 0.5, Inclination: math.Pi / 4}).Offset(snap.Elapsed)
	if !vecNear(sat.Position, r3.Add(earth.Position, offset), 1e-9) {
		t.Fatalf("nanosat %+v not composed onto earth %+v", sat.Position, earth.Position)
	}

	// Contacts are computed from the satellite relative to earth.
	want := Contact(r3.Sub(sat.Position, earth.Position), model.GroundPoint{}, 8)
	got, ok := snap.Contact("gs-null")
	if !ok || !got.Available {
		t.Fatalf("gs-null contact missing: %+v", got)
	}
	if !scalar.EqualWithinAbs(got.AngularSeparationDeg, want.AngularSeparationDeg, 1e-9) || got.InContact != want.InContact {
		t.Fatalf("contact = %+v, want %+v", got.ContactState, want)
	}
	// A station with no reference falls back to the satellite's parent.
	if delhi, _ := snap.Contact("gs-delhi"); !delhi.Available {
		t.Fatalf("gs-delhi contact unavailable")
	}

	for _, ic := range snap.Interceptors {
		if ic.State != StatePursuing || !scalar.EqualWithinAbs(ic.Progress, 0.05, 1e-12) {
			t.Fatalf("%s after one tick: state %v progress %v", ic.ID, ic.State, ic.Progress)
		}
		if !finite(ic.Position) || len(ic.Path) != 8 {
			t.Fatalf("%s position %+v path %d", ic.ID, ic.Position, len(ic.Path))
		}
	}
}

func TestEngine_DeltaIsCappedAndRecorded(t *testing.T) {
	rec := &captureRecorder{}
	e := newTestEngine(t, WithRecorder(rec))

	snap, err := e.Tick(context.Background(), 30)
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if snap.Delta != 0.25 {
		t.Fatalf("Delta = %v, want 0.25", snap.Delta)
	}
	if len(rec.frames) != 1 || !rec.frames[0].Clamped {
		t.Fatalf("recorded frames = %+v, want one clamped", rec.frames)
	}
	if rec.frames[0].Bodies != 4 || rec.frames[0].Interceptors[StatePursuing] != 4 {
		t.Fatalf("recorded stats = %+v", rec.frames[0])
	}
}

func TestEngine_SwarmCompletes(t *testing.T) {
	e := newTestEngine(t)
	var snap *Snapshot
	for i := 0; i < 20; i++ {
		var err error
		if snap, err = e.Tick(context.Background(), 0.1); err != nil {
			t.Fatalf("Tick: %v", err)
		}
	}
	for _, ic := range snap.Interceptors {
		if ic.State != StateComplete || ic.Progress != 1 {
			t.Fatalf("%s after 20 ticks: state %v progress %v", ic.ID, ic.State, ic.Progress)
		}
	}
}

func TestEngine_RemovingTargetFreezesInterceptors(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	var before *Snapshot
	for i := 0; i < 3; i++ {
		before, _ = e.Tick(ctx, 0.1)
	}
	if err := e.RemoveBody(ctx, "oumuamua"); err != nil {
		t.Fatalf("RemoveBody: %v", err)
	}

	after, err := e.Tick(ctx, 0.1)
	if err != nil {
		t.Fatalf("Tick after removal: %v", err)
	}
	if _, ok := after.Body("oumuamua"); ok {
		t.Fatalf("removed body still in snapshot")
	}
	for _, ic := range after.Interceptors {
		prev, _ := before.Interceptor(ic.ID)
		if ic.State != StateInert {
			t.Fatalf("%s state = %v, want INERT", ic.ID, ic.State)
		}
		if ic.Position != prev.Position {
			t.Fatalf("%s moved after target removal: %+v -> %+v", ic.ID, prev.Position, ic.Position)
		}
	}
}

func TestEngine_RemoveBodyErrors(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	if err := e.RemoveBody(ctx, "earth"); !errors.Is(err, kb.ErrBodyInUse) {
		t.Fatalf("RemoveBody(earth) err = %v, want ErrBodyInUse", err)
	}
	if err := e.RemoveBody(ctx, "ghost"); !errors.Is(err, kb.ErrBodyNotFound) {
		t.Fatalf("RemoveBody(ghost) err = %v, want ErrBodyNotFound", err)
	}
}

func TestEngine_RemovingSatelliteMakesContactsUnavailable(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	if err := e.RemoveBody(ctx, "nanosat"); err != nil {
		t.Fatalf("RemoveBody: %v", err)
	}
	snap, _ := e.Tick(ctx, 0.1)
	for _, c := range snap.Contacts {
		if c.Available || c.InContact {
			t.Fatalf("contact %s = %+v, want unavailable", c.StationID, c)
		}
	}
	// Launch body gone: the swarm goes inert at its launch position.
	for _, ic := range snap.Interceptors {
		if ic.State != StateInert || !finite(ic.Position) {
			t.Fatalf("%s = %+v, want finite INERT", ic.ID, ic)
		}
	}
}

func TestEngine_ResetAndRetarget(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	for i := 0; i < 20; i++ {
		e.Tick(ctx, 0.1)
	}

	e.ResetInterceptors(ctx)
	snap, _ := e.Tick(ctx, 0.1)
	for _, ic := range snap.Interceptors {
		if ic.State != StatePursuing || !scalar.EqualWithinAbs(ic.Progress, 0.05, 1e-12) {
			t.Fatalf("%s after reset: %v %v", ic.ID, ic.State, ic.Progress)
		}
	}

	if err := e.Retarget(ctx, "ghost"); !errors.Is(err, kb.ErrBodyNotFound) {
		t.Fatalf("Retarget(ghost) err = %v, want ErrBodyNotFound", err)
	}
	if err := e.Retarget(ctx, "earth"); err != nil {
		t.Fatalf("Retarget(earth): %v", err)
	}
	snap, _ = e.Tick(ctx, 0.1)
	for _, ic := range snap.Interceptors {
		if ic.TargetID != "earth" || ic.State != StatePursuing {
			t.Fatalf("%s after retarget: target %q state %v", ic.ID, ic.TargetID, ic.State)
		}
	}
}

func TestEngine_SnapshotsAreIndependent(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	first, _ := e.Tick(ctx, 0.1)
	firstEarth := first.Bodies[1].Position
	firstPath := append([]Vec3(nil), first.Interceptors[0].Path...)

	second, _ := e.Tick(ctx, 0.1)
	if first.Bodies[1].Position != firstEarth {
		t.Fatalf("earlier snapshot mutated by a later tick")
	}
	for i := range firstPath {
		if first.Interceptors[0].Path[i] != firstPath[i] {
			t.Fatalf("earlier interceptor path mutated")
		}
	}
	if second.Bodies[1].Position == firstEarth {
		t.Fatalf("earth did not move between frames")
	}
	if e.Last() != second {
		t.Fatalf("Last() is not the latest snapshot")
	}
}

func TestEngine_TickRespectsContext(t *testing.T) {
	e := newTestEngine(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := e.Tick(ctx, 0.1); !errors.Is(err, context.Canceled) {
		t.Fatalf("Tick err = %v, want context.Canceled", err)
	}
	if e.Clock().Frames() != 0 {
		t.Fatalf("cancelled tick advanced the clock")
	}
}

func TestEngine_PathOf(t *testing.T) {
	e := newTestEngine(t)
	pts, err := e.PathOf("oumuamua", 0)
	if err != nil {
		t.Fatalf("PathOf: %v", err)
	}
	if len(pts) != DefaultPathSamples {
		t.Fatalf("len = %d, want %d", len(pts), DefaultPathSamples)
	}
	if _, err := e.PathOf("ghost", 8); !errors.Is(err, kb.ErrBodyNotFound) {
		t.Fatalf("PathOf(ghost) err = %v", err)
	}
}

func TestNewEngine_RejectsInvalidConfiguration(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*model.Scenario)
	}{
		{"negative threshold", func(sc *model.Scenario) { sc.Visibility.ThresholdDeg = -1 }},
		{"stations without satellite", func(sc *model.Scenario) { sc.Visibility.SatelliteID = "" }},
		{"unknown satellite", func(sc *model.Scenario) { sc.Visibility.SatelliteID = "ghost" }},
		{"unknown swarm target", func(sc *model.Scenario) { sc.Swarm.TargetID = "ghost" }},
		{"inverted speed range", func(sc *model.Scenario) { sc.Swarm.SpeedMin, sc.Swarm.SpeedMax = 2, 1 }},
		{"negative delta cap", func(sc *model.Scenario) { sc.DeltaCapSeconds = -1 }},
		{"bad orbit radius", func(sc *model.Scenario) { sc.Bodies[1].OrbitRadius = -5 }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			sc := testScenario()
			tc.mutate(sc)
			if _, err := NewEngine(sc); !errors.Is(err, ErrInvalidConfiguration) {
				t.Fatalf("err = %v, want ErrInvalidConfiguration", err)
			}
		})
	}
}
