package core

// StationContact is one station's contact state for a frame.
type StationContact struct {
	StationID string
	Name      string
	Latitude  float64
	Longitude float64
	// Available is false when the satellite or the station's reference body
	// could not be resolved this frame; the contact fields are then zero.
	Available bool
	ContactState
}

// InterceptorSnapshot is one interceptor's output for a frame.
type InterceptorSnapshot struct {
	ID       string
	TargetID string
	Position Vec3
	Heading  Vec3
	Progress float64
	Speed    float64
	State    InterceptorState
	Path     []Vec3
}

// Snapshot is the immutable world state emitted at the end of a tick. It
// shares no memory with the engine.
type Snapshot struct {
	Frame        uint64
	Elapsed      float64
	Delta        float64
	Bodies       []BodyState
	Contacts     []StationContact
	Interceptors []InterceptorSnapshot
}

// Body returns the state of one body by id.
func (s *Snapshot) Body(id string) (BodyState, bool) {
	for _, b := range s.Bodies {
		if b.ID == id {
			return b, true
		}
	}
	return BodyState{}, false
}

// Contact returns the contact state of one station by id.
func (s *Snapshot) Contact(stationID string) (StationContact, bool) {
	for _, c := range s.Contacts {
		if c.StationID == stationID {
			return c, true
		}
	}
	return StationContact{}, false
}

// Interceptor returns the output of one interceptor by id.
func (s *Snapshot) Interceptor(id string) (InterceptorSnapshot, bool) {
	for _, ic := range s.Interceptors {
		if ic.ID == id {
			return ic, true
		}
	}
	return InterceptorSnapshot{}, false
}

// InContact counts stations currently in contact.
func (s *Snapshot) InContact() int {
	n := 0
	for _, c := range s.Contacts {
		if c.InContact {
			n++
		}
	}
	return n
}

// CountByState tallies interceptors per state.
func (s *Snapshot) CountByState() map[InterceptorState]int {
	out := make(map[InterceptorState]int, 3)
	for _, ic := range s.Interceptors {
		out[ic.State]++
	}
	return out
}

// frameTargets resolves body identifiers against one frame's propagated
// states.
type frameTargets struct {
	bodies map[string]BodyState
	prop   *Propagator
	at     float64
}

func newFrameTargets(bodies []BodyState, prop *Propagator, elapsed float64) *frameTargets {
	m := make(map[string]BodyState, len(bodies))
	for _, b := range bodies {
		m[b.ID] = b
	}
	return &frameTargets{bodies: m, prop: prop, at: elapsed}
}

func (f *frameTargets) Lookup(id string) (Target, bool) {
	b, ok := f.bodies[id]
	if !ok {
		return Target{}, false
	}
	dir, ok := unit(b.Velocity)
	if !ok {
		dir, _ = f.prop.PathTangent(id, f.at)
	}
	return Target{Position: b.Position, Direction: dir}, true
}

func (f *frameTargets) position(id string) (Vec3, bool) {
	b, ok := f.bodies[id]
	return b.Position, ok
}
