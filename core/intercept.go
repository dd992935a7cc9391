package core

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/signalsfoundry/intercept-engine/model"
)

// InterceptorState is the pursuit state of one interceptor.
type InterceptorState int

const (
	StatePursuing InterceptorState = iota
	StateComplete
	// StateInert means the target or launch body could not be resolved; the
	// interceptor holds its last position until reset.
	StateInert
)

func (s InterceptorState) String() string {
	switch s {
	case StatePursuing:
		return "PURSUING"
	case StateComplete:
		return "COMPLETE"
	case StateInert:
		return "INERT"
	default:
		return fmt.Sprintf("InterceptorState(%d)", int(s))
	}
}

const (
	DefaultLeadDistance = 200.0
	DefaultSpreadStep   = 8.0
	DefaultCurvature    = 80.0

	// Accumulated speed·delta can land a hair below 1.
	progressEpsilon = 1e-9
)

// Interceptor is one swarm member. TargetID and LaunchID are identifiers
// resolved every tick; the interceptor never holds a body directly.
type Interceptor struct {
	ID        string
	Index     int
	SwarmSize int
	TargetID  string
	LaunchID  string
	Speed     float64

	progress float64
	state    InterceptorState
	position Vec3
	heading  Vec3
	control  [3]Vec3
	path     []Vec3
}

// NewInterceptor creates an interceptor parked at start.
func NewInterceptor(id string, index, swarmSize int, targetID, launchID string, speed float64, start Vec3) *Interceptor {
	return &Interceptor{
		ID:        id,
		Index:     index,
		SwarmSize: swarmSize,
		TargetID:  targetID,
		LaunchID:  launchID,
		Speed:     speed,
		position:  start,
	}
}

func (ic *Interceptor) Progress() float64       { return ic.progress }
func (ic *Interceptor) State() InterceptorState { return ic.state }
func (ic *Interceptor) Position() Vec3          { return ic.position }
func (ic *Interceptor) Heading() Vec3           { return ic.heading }
func (ic *Interceptor) ControlPoints() [3]Vec3  { return ic.control }
func (ic *Interceptor) Path() []Vec3            { return ic.path }
func (ic *Interceptor) Terminal() bool          { return ic.state != StatePursuing }
func (ic *Interceptor) setInert()               { ic.state = StateInert; ic.path = nil }

// Reset restarts pursuit from zero progress. The position is kept until the
// next tick recomputes it.
func (ic *Interceptor) Reset() {
	ic.progress = 0
	ic.state = StatePursuing
	ic.path = nil
}

// Retarget points the interceptor at a different body and restarts pursuit.
func (ic *Interceptor) Retarget(targetID string) {
	ic.TargetID = targetID
	ic.Reset()
}

// Target is the resolved state of a body for one frame.
type Target struct {
	Position Vec3
	// Direction is the unit direction of travel, zero if unknown.
	Direction Vec3
}

// TargetLookup resolves body identifiers for the current frame.
type TargetLookup interface {
	Lookup(id string) (Target, bool)
}

// PlannerConfig holds the free shaping parameters of pursuit curves.
type PlannerConfig struct {
	LeadDistance float64
	SpreadStep   float64
	Curvature    float64
	Alpha        float64
	PathSamples  int
}

// DefaultPlannerConfig matches the built-in mission's look.
func DefaultPlannerConfig() PlannerConfig {
	return PlannerConfig{
		LeadDistance: DefaultLeadDistance,
		SpreadStep:   DefaultSpreadStep,
		Curvature:    DefaultCurvature,
		Alpha:        CentripetalAlpha,
	}
}

// PlannerConfigFromSwarm takes the shaping parameters from a swarm
// definition, using defaults for the zero values.
func PlannerConfigFromSwarm(s model.SwarmDefinition) PlannerConfig {
	cfg := DefaultPlannerConfig()
	if s.LeadDistance != 0 {
		cfg.LeadDistance = s.LeadDistance
	}
	if s.SpreadStep != 0 {
		cfg.SpreadStep = s.SpreadStep
	}
	if s.Curvature != 0 {
		cfg.Curvature = s.Curvature
	}
	if s.Alpha != 0 {
		cfg.Alpha = s.Alpha
	}
	cfg.PathSamples = s.PathSamples
	return cfg
}

// Planner re-plans pursuit curves. It keeps no state between ticks; every
// call rebuilds the curve from the current endpoints.
type Planner struct {
	cfg PlannerConfig
}

func NewPlanner(cfg PlannerConfig) *Planner {
	return &Planner{cfg: cfg}
}

// Config returns the planner's shaping parameters.
func (p *Planner) Config() PlannerConfig { return p.cfg }

// Advance moves one interceptor forward by delta seconds along a curve from
// launchPoint to a projected point ahead of its target and returns the new
// position. An unresolvable target makes the interceptor inert at its last
// position.
func (p *Planner) Advance(ic *Interceptor, launchPoint Vec3, delta float64, targets TargetLookup) Vec3 {
	target, ok := targets.Lookup(ic.TargetID)
	if !ok || !finite(target.Position) || !finite(launchPoint) {
		ic.setInert()
		return ic.position
	}
	if ic.state != StatePursuing {
		return ic.position
	}

	curve := p.Plan(ic, launchPoint, target)

	if delta > 0 && !math.IsNaN(delta) {
		ic.progress += ic.Speed * delta
	}
	if ic.progress >= 1-progressEpsilon {
		ic.progress = 1
	}

	pos := curve.PointAt(ic.progress)
	if !finite(pos) {
		ic.setInert()
		return ic.position
	}
	ic.position = pos
	if dir, ok := curve.TangentAt(ic.progress); ok {
		ic.heading = dir
	}
	ic.control = curve.ControlPoints()
	if p.cfg.PathSamples > 0 {
		ic.path = curve.Samples(p.cfg.PathSamples)
	}
	if ic.progress == 1 {
		ic.state = StateComplete
	}
	return pos
}

// Plan builds the pursuit curve for one interceptor without advancing it.
func (p *Planner) Plan(ic *Interceptor, launchPoint Vec3, target Target) *CatmullRom {
	end := p.projectedIntercept(ic, target)
	mid := p.shapingPoint(ic, launchPoint, end)
	return NewCatmullRom(launchPoint, mid, end, p.cfg.Alpha)
}

// projectedIntercept leads the target along its direction of travel. Each
// swarm member's lead differs by SpreadStep so the swarm fans out.
func (p *Planner) projectedIntercept(ic *Interceptor, target Target) Vec3 {
	dir, ok := unit(target.Direction)
	if !ok {
		return target.Position
	}
	lead := p.cfg.LeadDistance + (float64(ic.Index)-float64(ic.SwarmSize)/2)*p.cfg.SpreadStep
	return r3.Add(target.Position, r3.Scale(lead, dir))
}

// shapingPoint displaces the chord midpoint perpendicular to the chord by
// Curvature, at an angle around the chord that depends on the index.
func (p *Planner) shapingPoint(ic *Interceptor, start, end Vec3) Vec3 {
	mid := lerp(start, end, 0.5)
	n1, n2 := perpendicularBasis(r3.Sub(end, start))
	theta := 0.0
	if ic.SwarmSize > 0 {
		theta = 2 * math.Pi * float64(ic.Index) / float64(ic.SwarmSize)
	}
	s, c := math.Sincos(theta)
	offset := r3.Add(r3.Scale(c, n1), r3.Scale(s, n2))
	return r3.Add(mid, r3.Scale(p.cfg.Curvature, offset))
}

// perpendicularBasis returns two unit vectors orthogonal to d and to each
// other. A zero d yields the X and Y axes.
func perpendicularBasis(d Vec3) (Vec3, Vec3) {
	axis, ok := unit(d)
	if !ok {
		return Vec3{X: 1}, Vec3{Y: 1}
	}
	ref := Vec3{Z: 1}
	if math.Abs(axis.Z) > 0.9 {
		ref = Vec3{X: 1}
	}
	n1, _ := unit(r3.Cross(axis, ref))
	n2 := r3.Cross(axis, n1)
	return n1, n2
}

// NewSwarm creates def.Count interceptors parked at start, with speeds drawn
// uniformly from [SpeedMin, SpeedMax] by a generator seeded from def.Seed.
func NewSwarm(def model.SwarmDefinition, start Vec3) []*Interceptor {
	if def.Count <= 0 {
		return nil
	}
	rng := rand.New(rand.NewPCG(def.Seed, def.Seed^0x9e3779b97f4a7c15))
	out := make([]*Interceptor, def.Count)
	for i := range out {
		speed := def.SpeedMin + rng.Float64()*(def.SpeedMax-def.SpeedMin)
		out[i] = NewInterceptor(fmt.Sprintf("interceptor-%02d", i), i, def.Count, def.TargetID, def.LaunchID, speed, start)
	}
	return out
}
