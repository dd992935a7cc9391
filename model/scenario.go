package model

// SwarmDefinition describes the interceptor swarm launched from one body
// toward another.
type SwarmDefinition struct {
	Count    int
	TargetID string
	LaunchID string

	SpeedMin float64 // progress units per simulated second
	SpeedMax float64
	Seed     uint64

	LeadDistance float64
	SpreadStep   float64
	Curvature    float64
	Alpha        float64 // Catmull-Rom knot exponent: 0 uniform, 0.5 centripetal
	PathSamples  int
}

// VisibilityDefinition configures ground-station contact evaluation.
type VisibilityDefinition struct {
	SatelliteID     string
	ThresholdDeg    float64
	ReferenceRadius float64 // radius of the reference sphere, for elevation
}

// Scenario is the full input configuration of one engine instance.
type Scenario struct {
	DeltaCapSeconds float64

	Bodies     []BodyDefinition
	Stations   []GroundPoint
	Visibility VisibilityDefinition
	Swarm      SwarmDefinition
}
