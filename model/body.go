package model

// BodyKind classifies a body for the renderer and for validation.
type BodyKind string

const (
	BodyKindStar      BodyKind = "star"
	BodyKindPlanet    BodyKind = "planet"
	BodyKindSatellite BodyKind = "satellite"
	BodyKindForeign   BodyKind = "foreign"
)

// TLE holds the two element-set lines for an SGP4-driven body.
type TLE struct {
	Line1 string
	Line2 string
}

// IsZero reports whether no element set was supplied.
func (t TLE) IsZero() bool {
	return t.Line1 == "" && t.Line2 == ""
}

// BodyDefinition describes anything moving on a closed path: a planet, a
// satellite or a foreign object. Angles are radians, distances scene units.
type BodyDefinition struct {
	ID   string
	Name string
	Kind BodyKind

	OrbitRadius  float64 // semi-major axis
	AngularRate  float64 // rad per simulated second, sign is direction
	InitialPhase float64
	Eccentricity float64 // 0 circular, <1 flattens the minor axis

	// ParentID makes the body's position relative to another body's.
	ParentID string

	Tilt        float64 // in-plane rotation of the path
	Inclination float64 // rotation of the path plane about X

	// TLE switches the body to SGP4 propagation. KmPerUnit scales the
	// propagated kilometres into scene units.
	TLE       TLE
	KmPerUnit float64
}

// Parametric reports whether the body follows the closed-form ellipse.
func (b *BodyDefinition) Parametric() bool {
	return b.TLE.IsZero()
}
