package core

import (
	"errors"
	"fmt"
	"math"

	"github.com/signalsfoundry/intercept-engine/model"
)

// ErrInvalidConfiguration is returned at construction for inputs the engine
// refuses to clamp: non-positive radii, out-of-range coordinates and the like.
var ErrInvalidConfiguration = errors.New("invalid configuration")

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfiguration, fmt.Sprintf(format, args...))
}

func badNumber(x float64) bool {
	return math.IsNaN(x) || math.IsInf(x, 0)
}

// ValidateBody checks a body definition in isolation.
func ValidateBody(b *model.BodyDefinition) error {
	if b == nil {
		return invalidf("nil body")
	}
	if b.ID == "" {
		return invalidf("body with empty id")
	}
	for name, v := range map[string]float64{
		"orbit_radius":  b.OrbitRadius,
		"angular_rate":  b.AngularRate,
		"initial_phase": b.InitialPhase,
		"eccentricity":  b.Eccentricity,
		"tilt":          b.Tilt,
		"inclination":   b.Inclination,
	} {
		if badNumber(v) {
			return invalidf("body %q: %s is not finite", b.ID, name)
		}
	}
	if b.ParentID == b.ID {
		return invalidf("body %q is its own parent", b.ID)
	}
	if !b.Parametric() {
		if b.TLE.Line1 == "" || b.TLE.Line2 == "" {
			return invalidf("body %q: TLE needs both lines", b.ID)
		}
		if b.KmPerUnit < 0 {
			return invalidf("body %q: km_per_unit %v must be positive", b.ID, b.KmPerUnit)
		}
		return nil
	}
	if b.Kind == model.BodyKindStar && b.OrbitRadius == 0 {
		return nil
	}
	if b.OrbitRadius <= 0 {
		return invalidf("body %q: orbit_radius %v must be positive", b.ID, b.OrbitRadius)
	}
	if b.Eccentricity < 0 || b.Eccentricity >= 1 {
		return invalidf("body %q: eccentricity %v outside [0,1)", b.ID, b.Eccentricity)
	}
	return nil
}

// ValidateGroundPoint checks a station's coordinates.
func ValidateGroundPoint(s *model.GroundPoint) error {
	if s == nil {
		return invalidf("nil station")
	}
	if s.ID == "" {
		return invalidf("station with empty id")
	}
	if badNumber(s.Latitude) || s.Latitude < -90 || s.Latitude > 90 {
		return invalidf("station %q: latitude %v outside [-90,90]", s.ID, s.Latitude)
	}
	if badNumber(s.Longitude) || s.Longitude <= -180 || s.Longitude > 180 {
		return invalidf("station %q: longitude %v outside (-180,180]", s.ID, s.Longitude)
	}
	return nil
}

// ValidateThreshold checks a contact threshold in degrees.
func ValidateThreshold(deg float64) error {
	if badNumber(deg) || deg <= 0 || deg > 180 {
		return invalidf("threshold_deg %v outside (0,180]", deg)
	}
	return nil
}

// ValidateSwarm checks the swarm parameters that do not depend on bodies.
func ValidateSwarm(s *model.SwarmDefinition) error {
	if s.Count < 0 {
		return invalidf("swarm count %d is negative", s.Count)
	}
	if s.Count == 0 {
		return nil
	}
	if badNumber(s.SpeedMin) || badNumber(s.SpeedMax) || s.SpeedMin <= 0 || s.SpeedMax < s.SpeedMin {
		return invalidf("swarm speed range [%v,%v] must be positive and ordered", s.SpeedMin, s.SpeedMax)
	}
	if s.TargetID == "" || s.LaunchID == "" {
		return invalidf("swarm needs target and launch bodies")
	}
	if badNumber(s.Alpha) || s.Alpha < 0 || s.Alpha > 1 {
		return invalidf("swarm alpha %v outside [0,1]", s.Alpha)
	}
	if s.PathSamples < 0 {
		return invalidf("swarm path_samples %d is negative", s.PathSamples)
	}
	for name, v := range map[string]float64{
		"lead_distance": s.LeadDistance,
		"spread_step":   s.SpreadStep,
		"curvature":     s.Curvature,
	} {
		if badNumber(v) {
			return invalidf("swarm %s is not finite", name)
		}
	}
	return nil
}
