package core

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/signalsfoundry/intercept-engine/kb"
	"github.com/signalsfoundry/intercept-engine/model"
)

// MotionModel yields a body's position and velocity relative to its parent
// as a pure function of absolute simulated seconds.
type MotionModel interface {
	Offset(elapsed float64) Vec3
	Velocity(elapsed float64) Vec3
}

// StaticMotionModel keeps a body fixed at its parent's origin.
type StaticMotionModel struct{}

func (StaticMotionModel) Offset(float64) Vec3   { return Vec3{} }
func (StaticMotionModel) Velocity(float64) Vec3 { return Vec3{} }

// EllipticalMotionModel moves a body along a closed ellipse. The angle is
// derived from absolute elapsed time on every call, never accumulated.
type EllipticalMotionModel struct {
	Radius       float64
	Rate         float64
	InitialPhase float64
	Eccentricity float64
	Tilt         float64
	Inclination  float64
}

// NewEllipticalMotionModel constructs the ellipse model for a parametric body.
func NewEllipticalMotionModel(b *model.BodyDefinition) *EllipticalMotionModel {
	return &EllipticalMotionModel{
		Radius:       b.OrbitRadius,
		Rate:         b.AngularRate,
		InitialPhase: b.InitialPhase,
		Eccentricity: b.Eccentricity,
		Tilt:         b.Tilt,
		Inclination:  b.Inclination,
	}
}

// Phase returns the unwrapped angle at elapsed.
func (m *EllipticalMotionModel) Phase(elapsed float64) float64 {
	return m.InitialPhase + m.Rate*elapsed
}

// Offset returns the position at elapsed relative to the ellipse centre.
func (m *EllipticalMotionModel) Offset(elapsed float64) Vec3 {
	return m.pointAt(m.Phase(elapsed))
}

// Velocity is the analytic time derivative of Offset.
func (m *EllipticalMotionModel) Velocity(elapsed float64) Vec3 {
	return r3.Scale(m.Rate, m.Tangent(m.Phase(elapsed)))
}

// Tangent is d(position)/d(angle) at the given angle. It does not depend on
// the rate, so a stationary body still has a well-defined path direction.
func (m *EllipticalMotionModel) Tangent(angle float64) Vec3 {
	s, c := math.Sincos(angle)
	local := Vec3{X: -s * m.Radius, Y: c * m.Radius * (1 - m.Eccentricity)}
	return m.orient(local)
}

func (m *EllipticalMotionModel) pointAt(angle float64) Vec3 {
	s, c := math.Sincos(angle)
	local := Vec3{X: c * m.Radius, Y: s * m.Radius * (1 - m.Eccentricity)}
	return m.orient(local)
}

func (m *EllipticalMotionModel) orient(v Vec3) Vec3 {
	return rotateX(rotateZ(v, m.Tilt), m.Inclination)
}

// OrbitalSGP4MotionModel propagates a TLE with SGP4 and maps the
// Earth-fixed result into scene units. go-satellite resolves whole seconds,
// so positions are interpolated between neighbouring seconds to stay smooth
// from frame to frame.
type OrbitalSGP4MotionModel struct {
	sat       satellite.Satellite
	epoch     time.Time
	kmPerUnit float64
}

// NewOrbitalModelFromTLE constructs an orbital model from TLE lines.
func NewOrbitalModelFromTLE(tle model.TLE, kmPerUnit float64) (*OrbitalSGP4MotionModel, error) {
	epoch, err := parseTLEEpoch(tle.Line1)
	if err != nil {
		return nil, err
	}
	if kmPerUnit <= 0 {
		kmPerUnit = 1
	}
	if len(tle.Line2) < 69 || !strings.HasPrefix(tle.Line1, "1 ") || !strings.HasPrefix(tle.Line2, "2 ") {
		return nil, fmt.Errorf("%w: malformed TLE lines", ErrInvalidConfiguration)
	}
	sat := satellite.TLEToSat(tle.Line1, tle.Line2, satellite.GravityWGS72)
	m := &OrbitalSGP4MotionModel{sat: sat, epoch: epoch, kmPerUnit: kmPerUnit}
	if m.ecefAt(0) == (Vec3{}) {
		return nil, fmt.Errorf("%w: SGP4 propagation failed at epoch", ErrInvalidConfiguration)
	}
	return m, nil
}

// Offset returns the scene-space ECEF position at epoch + elapsed.
func (m *OrbitalSGP4MotionModel) Offset(elapsed float64) Vec3 {
	whole := math.Floor(elapsed)
	frac := elapsed - whole
	a := m.ecefAt(whole)
	if frac == 0 {
		return a
	}
	return lerp(a, m.ecefAt(whole+1), frac)
}

// Velocity is the per-second secant around elapsed.
func (m *OrbitalSGP4MotionModel) Velocity(elapsed float64) Vec3 {
	whole := math.Floor(elapsed)
	return r3.Sub(m.ecefAt(whole+1), m.ecefAt(whole))
}

func (m *OrbitalSGP4MotionModel) ecefAt(second float64) Vec3 {
	t := m.epoch.Add(time.Duration(second) * time.Second)
	year, month, day := t.Date()
	hour, min, sec := t.Clock()

	posECI, _ := satellite.Propagate(m.sat, year, int(month), day, hour, min, sec)
	jd := satellite.JDay(year, int(month), day, hour, min, sec)
	gmst := satellite.ThetaG_JD(jd)
	posECEF := satellite.ECIToECEF(posECI, gmst)

	v := Vec3{X: posECEF.X, Y: posECEF.Y, Z: posECEF.Z}
	if !finite(v) {
		return Vec3{}
	}
	return r3.Scale(1/m.kmPerUnit, v)
}

// parseTLEEpoch converts the YYDDD.DDDDDDDD epoch field of line 1.
// Year 00-56 → 2000s, 57-99 → 1900s.
func parseTLEEpoch(line1 string) (time.Time, error) {
	if len(line1) < 69 {
		return time.Time{}, fmt.Errorf("%w: TLE line 1 too short", ErrInvalidConfiguration)
	}
	s := strings.TrimSpace(line1[18:32])
	if len(s) < 5 {
		return time.Time{}, fmt.Errorf("%w: TLE epoch %q too short", ErrInvalidConfiguration, s)
	}
	year, err := strconv.Atoi(s[:2])
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: TLE epoch year %q: %v", ErrInvalidConfiguration, s[:2], err)
	}
	if year >= 57 {
		year += 1900
	} else {
		year += 2000
	}
	day, err := strconv.ParseFloat(s[2:], 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: TLE epoch day %q: %v", ErrInvalidConfiguration, s[2:], err)
	}
	start := time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC)
	return start.Add(time.Duration((day - 1) * float64(24*time.Hour))), nil
}

// NewMotionModel chooses the MotionModel for a body: SGP4 when a TLE is
// present, static for a radius-less star, otherwise the ellipse.
func NewMotionModel(b *model.BodyDefinition) (MotionModel, error) {
	switch {
	case !b.Parametric():
		return NewOrbitalModelFromTLE(b.TLE, b.KmPerUnit)
	case b.Kind == model.BodyKindStar && b.OrbitRadius == 0:
		return StaticMotionModel{}, nil
	default:
		return NewEllipticalMotionModel(b), nil
	}
}

// BodyState is the propagated state of one body at one instant.
type BodyState struct {
	ID       string
	ParentID string
	Position Vec3
	Velocity Vec3
	Phase    float64 // wrapped to [0, 2π) for display; 0 for non-parametric bodies
}

// Propagator resolves absolute body positions by composing each body's
// motion onto its parent's. It tracks the registry so removed bodies stop
// resolving.
type Propagator struct {
	reg    *kb.Registry
	models map[string]MotionModel
	defs   map[string]model.BodyDefinition
	order  []string // parents before children

	unsubscribe func()
}

// NewPropagator builds motion models for every body already in reg and
// follows subsequent additions and removals.
func NewPropagator(reg *kb.Registry) (*Propagator, error) {
	p := &Propagator{
		reg:    reg,
		models: make(map[string]MotionModel),
		defs:   make(map[string]model.BodyDefinition),
	}
	for _, b := range reg.Bodies() {
		if err := p.track(b); err != nil {
			return nil, err
		}
	}
	p.unsubscribe = reg.Subscribe(func(ev kb.Event) {
		switch ev.Type {
		case kb.EventBodyAdded:
			// Bodies are validated before they reach the registry.
			_ = p.track(ev.Body)
		case kb.EventBodyRemoved:
			delete(p.models, ev.Body.ID)
			delete(p.defs, ev.Body.ID)
			p.order = nil
		}
	})
	return p, nil
}

// Close detaches the propagator from registry events.
func (p *Propagator) Close() {
	if p.unsubscribe != nil {
		p.unsubscribe()
		p.unsubscribe = nil
	}
}

func (p *Propagator) track(b model.BodyDefinition) error {
	m, err := NewMotionModel(&b)
	if err != nil {
		return fmt.Errorf("body %q: %w", b.ID, err)
	}
	p.models[b.ID] = m
	p.defs[b.ID] = b
	p.order = nil
	return nil
}

// Position returns the absolute position of body at elapsed, composing
// parent positions. It reports false if the body or an ancestor is unknown.
func (p *Propagator) Position(id string, elapsed float64) (Vec3, bool) {
	st, ok := p.State(id, elapsed)
	return st.Position, ok
}

// State returns the absolute position and velocity of one body.
func (p *Propagator) State(id string, elapsed float64) (BodyState, bool) {
	pos, vel := Vec3{}, Vec3{}
	cur := id
	for depth := 0; cur != ""; depth++ {
		if depth > len(p.defs) {
			return BodyState{}, false
		}
		m, ok := p.models[cur]
		if !ok {
			return BodyState{}, false
		}
		pos = r3.Add(pos, m.Offset(elapsed))
		vel = r3.Add(vel, m.Velocity(elapsed))
		cur = p.defs[cur].ParentID
	}
	return BodyState{
		ID:       id,
		ParentID: p.defs[id].ParentID,
		Position: pos,
		Velocity: vel,
		Phase:    p.DisplayPhase(id, elapsed),
	}, true
}

// Phase returns the unwrapped angle of a parametric body.
func (p *Propagator) Phase(id string, elapsed float64) float64 {
	if m, ok := p.models[id].(*EllipticalMotionModel); ok {
		return m.Phase(elapsed)
	}
	return 0
}

// DisplayPhase returns the angle wrapped to [0, 2π).
func (p *Propagator) DisplayPhase(id string, elapsed float64) float64 {
	a := math.Mod(p.Phase(id, elapsed), 2*math.Pi)
	if a < 0 {
		a += 2 * math.Pi
	}
	return a
}

// PathTangent returns the unit direction of travel of a body. When the
// body is not moving, the geometric tangent of its path is used instead.
func (p *Propagator) PathTangent(id string, elapsed float64) (Vec3, bool) {
	st, ok := p.State(id, elapsed)
	if !ok {
		return Vec3{}, false
	}
	if dir, ok := unit(st.Velocity); ok {
		return dir, true
	}
	if m, ok := p.models[id].(*EllipticalMotionModel); ok {
		return unit(m.Tangent(m.Phase(elapsed)))
	}
	return Vec3{}, false
}

// PropagateAll computes every body's state at elapsed in parent-first
// order. Each body's own motion is evaluated once and composed onto its
// already-computed parent.
func (p *Propagator) PropagateAll(elapsed float64) []BodyState {
	order := p.topoOrder()
	byID := make(map[string]BodyState, len(order))
	out := make([]BodyState, 0, len(order))
	for _, id := range order {
		def := p.defs[id]
		m := p.models[id]
		st := BodyState{
			ID:       id,
			ParentID: def.ParentID,
			Position: m.Offset(elapsed),
			Velocity: m.Velocity(elapsed),
			Phase:    p.DisplayPhase(id, elapsed),
		}
		if def.ParentID != "" {
			parent, ok := byID[def.ParentID]
			if !ok {
				continue
			}
			st.Position = r3.Add(parent.Position, st.Position)
			st.Velocity = r3.Add(parent.Velocity, st.Velocity)
		}
		byID[id] = st
		out = append(out, st)
	}
	return out
}

// SamplePath returns n points around one revolution of a parametric
// body's path, composed onto its parent's position at elapsed. Sampling is
// by angle, so stationary bodies still have a path.
func (p *Propagator) SamplePath(id string, elapsed float64, n int) ([]Vec3, bool) {
	m, ok := p.models[id]
	if !ok || n <= 0 {
		return nil, false
	}
	origin := Vec3{}
	if parent := p.defs[id].ParentID; parent != "" {
		if origin, ok = p.Position(parent, elapsed); !ok {
			return nil, false
		}
	}

	pts := make([]Vec3, n)
	switch mm := m.(type) {
	case *EllipticalMotionModel:
		for i := range pts {
			pts[i] = r3.Add(origin, mm.pointAt(2*math.Pi*float64(i)/float64(n)))
		}
	default:
		// Non-parametric bodies have no closed-form path; report the
		// current position for every sample.
		pos, _ := p.Position(id, elapsed)
		for i := range pts {
			pts[i] = pos
		}
	}
	return pts, true
}

// topoOrder returns body IDs with every parent before its children,
// ties broken by ID for a stable snapshot order.
func (p *Propagator) topoOrder() []string {
	if p.order != nil {
		return p.order
	}
	ids := make([]string, 0, len(p.defs))
	for id := range p.defs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	visited := make(map[string]bool, len(ids))
	order := make([]string, 0, len(ids))
	var visit func(id string, depth int)
	visit = func(id string, depth int) {
		if visited[id] || depth > len(ids) {
			return
		}
		if parent := p.defs[id].ParentID; parent != "" {
			if _, ok := p.defs[parent]; ok {
				visit(parent, depth+1)
			}
		}
		if !visited[id] {
			visited[id] = true
			order = append(order, id)
		}
	}
	for _, id := range ids {
		visit(id, 0)
	}
	p.order = order
	return order
}
