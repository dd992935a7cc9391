package core

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/signalsfoundry/intercept-engine/internal/logging"
	"github.com/signalsfoundry/intercept-engine/kb"
	"github.com/signalsfoundry/intercept-engine/model"
	"github.com/signalsfoundry/intercept-engine/timectrl"
)

const (
	tracerName = "github.com/signalsfoundry/intercept-engine/core"

	// DefaultPathSamples is the resolution of body path polylines.
	DefaultPathSamples = 128
)

// FrameStats summarises one tick for metrics.
type FrameStats struct {
	Frame        uint64
	Duration     time.Duration
	Clamped      bool
	Bodies       int
	InContact    int
	Interceptors map[InterceptorState]int
}

// FrameRecorder receives per-tick statistics.
type FrameRecorder interface {
	ObserveFrame(FrameStats)
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine's logger.
func WithLogger(l logging.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// WithRecorder reports every tick to r.
func WithRecorder(r FrameRecorder) Option {
	return func(e *Engine) { e.recorder = r }
}

// WithTracer replaces the tracer taken from the global provider.
func WithTracer(t trace.Tracer) Option {
	return func(e *Engine) {
		if t != nil {
			e.tracer = t
		}
	}
}

// WithClock drives the engine from an existing clock instead of one built
// from the scenario's delta cap.
func WithClock(c *timectrl.SimClock) Option {
	return func(e *Engine) {
		if c != nil {
			e.clock = c
		}
	}
}

// Engine is the frame driver. Each Tick advances the clock, propagates every
// body, recomputes every station contact, advances every interceptor and
// emits a Snapshot, in that order.
//
// Engine is not safe for concurrent use; a host loop owns it and applies
// commands between ticks.
type Engine struct {
	clock   *timectrl.SimClock
	reg     *kb.Registry
	prop    *Propagator
	planner *Planner

	swarm      []*Interceptor
	swarmDef   model.SwarmDefinition
	visibility model.VisibilityDefinition

	log      logging.Logger
	recorder FrameRecorder
	tracer   trace.Tracer

	last *Snapshot
}

// NewEngine validates sc, loads it into a fresh registry and builds the
// swarm. Invalid configuration is rejected with ErrInvalidConfiguration.
func NewEngine(sc *model.Scenario, opts ...Option) (*Engine, error) {
	if sc == nil {
		return nil, fmt.Errorf("NewEngine: %w: nil scenario", ErrInvalidConfiguration)
	}
	e := &Engine{
		reg:    kb.NewRegistry(),
		log:    logging.Noop(),
		tracer: otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.clock == nil {
		capSeconds := sc.DeltaCapSeconds
		if capSeconds == 0 {
			capSeconds = timectrl.DefaultDeltaCap.Seconds()
		}
		clock, err := timectrl.NewSimClock(capSeconds)
		if err != nil {
			return nil, fmt.Errorf("NewEngine: %w: %v", ErrInvalidConfiguration, err)
		}
		e.clock = clock
	}

	if _, err := LoadScenario(e.reg, sc); err != nil {
		return nil, err
	}
	if err := e.configureVisibility(sc.Visibility, len(sc.Stations) > 0); err != nil {
		return nil, fmt.Errorf("NewEngine: %w", err)
	}
	if err := e.configureSwarm(sc.Swarm); err != nil {
		return nil, fmt.Errorf("NewEngine: %w", err)
	}

	prop, err := NewPropagator(e.reg)
	if err != nil {
		return nil, fmt.Errorf("NewEngine: %w", err)
	}
	e.prop = prop

	start := Vec3{}
	if e.swarmDef.LaunchID != "" {
		start, _ = e.prop.Position(e.swarmDef.LaunchID, e.clock.Elapsed())
	}
	e.swarm = NewSwarm(e.swarmDef, start)
	return e, nil
}

func (e *Engine) configureVisibility(v model.VisibilityDefinition, haveStations bool) error {
	if v.ThresholdDeg == 0 {
		v.ThresholdDeg = DefaultThresholdDeg
	}
	if err := ValidateThreshold(v.ThresholdDeg); err != nil {
		return err
	}
	if badNumber(v.ReferenceRadius) || v.ReferenceRadius < 0 {
		return invalidf("reference_radius %v must be non-negative", v.ReferenceRadius)
	}
	if haveStations {
		if v.SatelliteID == "" {
			return invalidf("stations configured without a visibility satellite")
		}
		if _, ok := e.reg.Body(v.SatelliteID); !ok {
			return invalidf("visibility satellite %q is not a known body", v.SatelliteID)
		}
	}
	e.visibility = v
	return nil
}

func (e *Engine) configureSwarm(s model.SwarmDefinition) error {
	if err := ValidateSwarm(&s); err != nil {
		return err
	}
	if s.Count > 0 {
		if _, ok := e.reg.Body(s.TargetID); !ok {
			return invalidf("swarm target %q is not a known body", s.TargetID)
		}
		if _, ok := e.reg.Body(s.LaunchID); !ok {
			return invalidf("swarm launch %q is not a known body", s.LaunchID)
		}
	}
	e.swarmDef = s
	e.planner = NewPlanner(PlannerConfigFromSwarm(s))
	return nil
}

// Close detaches the engine from its registry.
func (e *Engine) Close() {
	e.prop.Close()
}

// Tick advances the world by one frame given the real seconds since the
// previous frame. It fails only if ctx is already done.
func (e *Engine) Tick(ctx context.Context, realElapsedSeconds float64) (*Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ctx, span := e.tracer.Start(ctx, "engine.Tick")
	defer span.End()
	start := time.Now()

	// 1) Clock
	clampedBefore := e.clock.Clamped()
	delta := e.clock.Tick(realElapsedSeconds)
	elapsed := e.clock.Elapsed()
	clamped := e.clock.Clamped() != clampedBefore
	if clamped {
		e.log.Debug(ctx, "frame delta capped",
			logging.Float64("real_seconds", realElapsedSeconds),
			logging.Float64("delta_seconds", delta),
		)
	}

	// 2) Bodies
	bodies := e.prop.PropagateAll(elapsed)
	frame := newFrameTargets(bodies, e.prop, elapsed)

	// 3) Contacts
	contacts := e.contacts(frame)

	// 4) Interceptors
	interceptors := make([]InterceptorSnapshot, 0, len(e.swarm))
	for _, ic := range e.swarm {
		e.advance(ctx, ic, frame, delta)
		interceptors = append(interceptors, snapshotInterceptor(ic))
	}

	// 5) Emit
	snap := &Snapshot{
		Frame:        e.clock.Frames(),
		Elapsed:      elapsed,
		Delta:        delta,
		Bodies:       bodies,
		Contacts:     contacts,
		Interceptors: interceptors,
	}
	e.last = snap

	span.SetAttributes(
		attribute.Int64("engine.frame", int64(snap.Frame)),
		attribute.Float64("engine.delta", delta),
		attribute.Bool("engine.clamped", clamped),
		attribute.Int("engine.bodies", len(bodies)),
	)
	if e.recorder != nil {
		e.recorder.ObserveFrame(FrameStats{
			Frame:        snap.Frame,
			Duration:     time.Since(start),
			Clamped:      clamped,
			Bodies:       len(bodies),
			InContact:    snap.InContact(),
			Interceptors: snap.CountByState(),
		})
	}
	return snap, nil
}

func (e *Engine) contacts(frame *frameTargets) []StationContact {
	stations := e.reg.Stations()
	out := make([]StationContact, 0, len(stations))
	satPos, satOK := frame.position(e.visibility.SatelliteID)
	for _, s := range stations {
		sc := StationContact{
			StationID: s.ID,
			Name:      s.Name,
			Latitude:  s.Latitude,
			Longitude: s.Longitude,
		}
		refPos, refOK := e.referencePosition(frame, s)
		if satOK && refOK {
			sc.Available = true
			sc.ContactState = ContactWithElevation(r3.Sub(satPos, refPos), s, e.visibility.ThresholdDeg, e.visibility.ReferenceRadius)
		}
		out = append(out, sc)
	}
	return out
}

// referencePosition locates the centre of the sphere a station sits on: its
// own reference body, or else the satellite's parent.
func (e *Engine) referencePosition(frame *frameTargets, s model.GroundPoint) (Vec3, bool) {
	ref := s.ReferenceID
	if ref == "" {
		if sat, ok := e.reg.Body(e.visibility.SatelliteID); ok {
			ref = sat.ParentID
		}
	}
	if ref == "" {
		return Vec3{}, true
	}
	return frame.position(ref)
}

func (e *Engine) advance(ctx context.Context, ic *Interceptor, frame *frameTargets, delta float64) {
	before := ic.State()
	launch, ok := frame.position(ic.LaunchID)
	if ok {
		e.planner.Advance(ic, launch, delta, frame)
	} else {
		ic.setInert()
	}
	if after := ic.State(); after != before {
		switch after {
		case StateInert:
			e.log.Info(ctx, "interceptor inert",
				logging.String("interceptor_id", ic.ID),
				logging.String("target_id", ic.TargetID),
				logging.String("launch_id", ic.LaunchID),
			)
		case StateComplete:
			e.log.Debug(ctx, "interceptor complete",
				logging.String("interceptor_id", ic.ID),
				logging.Float64("speed", ic.Speed),
			)
		}
	}
}

func snapshotInterceptor(ic *Interceptor) InterceptorSnapshot {
	var path []Vec3
	if p := ic.Path(); len(p) > 0 {
		path = append([]Vec3(nil), p...)
	}
	return InterceptorSnapshot{
		ID:       ic.ID,
		TargetID: ic.TargetID,
		Position: ic.Position(),
		Heading:  ic.Heading(),
		Progress: ic.Progress(),
		Speed:    ic.Speed,
		State:    ic.State(),
		Path:     path,
	}
}

// Last returns the most recent snapshot, or nil before the first tick.
func (e *Engine) Last() *Snapshot { return e.last }

// Elapsed returns simulated seconds since start.
func (e *Engine) Elapsed() float64 { return e.clock.Elapsed() }

// Clock exposes the engine's clock.
func (e *Engine) Clock() *timectrl.SimClock { return e.clock }

// Registry exposes the body and station registry.
func (e *Engine) Registry() *kb.Registry { return e.reg }

// Interceptors returns the swarm in index order.
func (e *Engine) Interceptors() []*Interceptor { return e.swarm }

// RemoveBody drops a body from the world. Interceptors pursuing it go inert
// on the next tick. Bodies that are parents of others cannot be removed.
func (e *Engine) RemoveBody(ctx context.Context, id string) error {
	if err := e.reg.RemoveBody(id); err != nil {
		return err
	}
	e.log.Info(ctx, "body removed", logging.String("body_id", id))
	return nil
}

// ResetInterceptors restarts every interceptor's pursuit from zero
// progress.
func (e *Engine) ResetInterceptors(ctx context.Context) {
	for _, ic := range e.swarm {
		ic.Reset()
	}
	e.log.Info(ctx, "swarm reset", logging.Int("interceptors", len(e.swarm)))
}

// Retarget points the whole swarm at another body and restarts pursuit.
func (e *Engine) Retarget(ctx context.Context, targetID string) error {
	if _, ok := e.reg.Body(targetID); !ok {
		return fmt.Errorf("%w: %q", kb.ErrBodyNotFound, targetID)
	}
	for _, ic := range e.swarm {
		ic.Retarget(targetID)
	}
	e.swarmDef.TargetID = targetID
	e.log.Info(ctx, "swarm retargeted", logging.String("target_id", targetID))
	return nil
}

// PathOf samples n points along a body's path at the current elapsed time.
// n <= 0 uses DefaultPathSamples.
func (e *Engine) PathOf(id string, n int) ([]Vec3, error) {
	if n <= 0 {
		n = DefaultPathSamples
	}
	pts, ok := e.prop.SamplePath(id, e.clock.Elapsed(), n)
	if !ok {
		return nil, fmt.Errorf("%w: %q", kb.ErrBodyNotFound, id)
	}
	return pts, nil
}
