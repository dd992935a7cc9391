package kb

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/signalsfoundry/intercept-engine/model"
)

var (
	ErrBodyExists      = errors.New("body already exists")
	ErrBodyNotFound    = errors.New("body not found")
	ErrBodyInUse       = errors.New("body is a parent of other bodies")
	ErrStationExists   = errors.New("station already exists")
	ErrStationNotFound = errors.New("station not found")
)

// EventType indicates what kind of change happened in the registry.
type EventType int

const (
	EventBodyAdded EventType = iota
	EventBodyRemoved
	EventStationAdded
)

// Event is emitted to subscribers when the registry changes.
type Event struct {
	Type    EventType
	Body    model.BodyDefinition
	Station model.GroundPoint
}

// Registry is an in-memory store of bodies and ground stations keyed by ID.
// Everything that refers to a body does so by ID and resolves it here, so a
// removed body simply stops resolving.
type Registry struct {
	mu sync.RWMutex

	bodies   map[string]*model.BodyDefinition
	stations map[string]*model.GroundPoint

	subs []func(Event)
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		bodies:   make(map[string]*model.BodyDefinition),
		stations: make(map[string]*model.GroundPoint),
	}
}

// AddBody adds a new body. The parent, when set, must already exist.
func (r *Registry) AddBody(b *model.BodyDefinition) error {
	if b == nil || b.ID == "" {
		return fmt.Errorf("%w: empty body ID", ErrBodyNotFound)
	}

	r.mu.Lock()
	if _, exists := r.bodies[b.ID]; exists {
		r.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrBodyExists, b.ID)
	}
	if b.ParentID != "" {
		if _, ok := r.bodies[b.ParentID]; !ok {
			r.mu.Unlock()
			return fmt.Errorf("%w: parent %q of %q", ErrBodyNotFound, b.ParentID, b.ID)
		}
	}
	stored := *b
	r.bodies[b.ID] = &stored
	subs := append([]func(Event){}, r.subs...)
	r.mu.Unlock()

	notify(subs, Event{Type: EventBodyAdded, Body: stored})
	return nil
}

// AddStation adds a new ground station.
func (r *Registry) AddStation(s *model.GroundPoint) error {
	if s == nil || s.ID == "" {
		return fmt.Errorf("%w: empty station ID", ErrStationNotFound)
	}

	r.mu.Lock()
	if _, exists := r.stations[s.ID]; exists {
		r.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrStationExists, s.ID)
	}
	stored := *s
	r.stations[s.ID] = &stored
	subs := append([]func(Event){}, r.subs...)
	r.mu.Unlock()

	notify(subs, Event{Type: EventStationAdded, Station: stored})
	return nil
}

// Body returns a copy of the body with the given ID.
func (r *Registry) Body(id string) (model.BodyDefinition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.bodies[id]
	if !ok {
		return model.BodyDefinition{}, false
	}
	return *b, true
}

// Station returns a copy of the station with the given ID.
func (r *Registry) Station(id string) (model.GroundPoint, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.stations[id]
	if !ok {
		return model.GroundPoint{}, false
	}
	return *s, true
}

// Bodies returns copies of all bodies ordered by ID.
func (r *Registry) Bodies() []model.BodyDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	res := make([]model.BodyDefinition, 0, len(r.bodies))
	for _, b := range r.bodies {
		res = append(res, *b)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res
}

// Stations returns copies of all stations ordered by ID.
func (r *Registry) Stations() []model.GroundPoint {
	r.mu.RLock()
	defer r.mu.RUnlock()

	res := make([]model.GroundPoint, 0, len(r.stations))
	for _, s := range r.stations {
		res = append(res, *s)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res
}

// RemoveBody deletes a body. Bodies that other bodies compose onto cannot be
// removed until their children are gone.
func (r *Registry) RemoveBody(id string) error {
	r.mu.Lock()
	b, ok := r.bodies[id]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrBodyNotFound, id)
	}
	for _, other := range r.bodies {
		if other.ParentID == id {
			r.mu.Unlock()
			return fmt.Errorf("%w: %q is parent of %q", ErrBodyInUse, id, other.ID)
		}
	}
	delete(r.bodies, id)
	removed := *b
	subs := append([]func(Event){}, r.subs...)
	r.mu.Unlock()

	notify(subs, Event{Type: EventBodyRemoved, Body: removed})
	return nil
}

// Subscribe registers a callback for registry events. It returns an
// unsubscribe function.
func (r *Registry) Subscribe(fn func(Event)) (unsubscribe func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subs = append(r.subs, fn)
	idx := len(r.subs) - 1

	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if idx < 0 || idx >= len(r.subs) {
			return
		}
		r.subs = append(r.subs[:idx], r.subs[idx+1:]...)
		idx = -1
	}
}

// Notify subscribers outside the lock to avoid deadlocks.
func notify(subs []func(Event), ev Event) {
	for _, sub := range subs {
		sub(ev)
	}
}
