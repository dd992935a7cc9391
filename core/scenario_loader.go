// core/scenario_loader.go
package core

import (
	"fmt"

	"github.com/signalsfoundry/intercept-engine/kb"
	"github.com/signalsfoundry/intercept-engine/model"
)

// LoadedScenario is a small summary of what was placed in the registry.
// It's mainly useful for logging from main().
type LoadedScenario struct {
	BodyIDs    []string
	StationIDs []string
}

// LoadScenario validates sc and populates reg with its bodies (parents
// before children) and stations. Nothing is added if any definition is
// invalid.
func LoadScenario(reg *kb.Registry, sc *model.Scenario) (*LoadedScenario, error) {
	if reg == nil {
		return nil, fmt.Errorf("LoadScenario: registry is nil")
	}
	if sc == nil {
		return nil, fmt.Errorf("LoadScenario: %w: nil scenario", ErrInvalidConfiguration)
	}

	order, err := bodyLoadOrder(sc.Bodies)
	if err != nil {
		return nil, fmt.Errorf("LoadScenario: %w", err)
	}
	known := make(map[string]bool, len(order))
	for _, b := range order {
		known[b.ID] = true
	}
	for i := range sc.Stations {
		s := &sc.Stations[i]
		if err := ValidateGroundPoint(s); err != nil {
			return nil, fmt.Errorf("LoadScenario: %w", err)
		}
		if s.ReferenceID != "" && !known[s.ReferenceID] {
			return nil, fmt.Errorf("LoadScenario: %w: station %q references unknown body %q",
				ErrInvalidConfiguration, s.ID, s.ReferenceID)
		}
	}

	result := &LoadedScenario{
		BodyIDs:    make([]string, 0, len(order)),
		StationIDs: make([]string, 0, len(sc.Stations)),
	}

	// 1) Bodies, parents first so the registry can check links.
	for _, b := range order {
		if err := reg.AddBody(b); err != nil {
			return nil, fmt.Errorf("LoadScenario: body %q: %w", b.ID, err)
		}
		result.BodyIDs = append(result.BodyIDs, b.ID)
	}

	// 2) Stations
	for i := range sc.Stations {
		s := sc.Stations[i]
		if err := reg.AddStation(&s); err != nil {
			return nil, fmt.Errorf("LoadScenario: station %q: %w", s.ID, err)
		}
		result.StationIDs = append(result.StationIDs, s.ID)
	}

	return result, nil
}

// bodyLoadOrder validates every body and returns them with each parent
// ahead of its children. Unknown parents, duplicate ids and parent cycles
// are configuration errors.
func bodyLoadOrder(bodies []model.BodyDefinition) ([]*model.BodyDefinition, error) {
	byID := make(map[string]*model.BodyDefinition, len(bodies))
	for i := range bodies {
		b := &bodies[i]
		if err := ValidateBody(b); err != nil {
			return nil, err
		}
		if _, dup := byID[b.ID]; dup {
			return nil, invalidf("duplicate body id %q", b.ID)
		}
		byID[b.ID] = b
	}
	for _, b := range bodies {
		if b.ParentID != "" {
			if _, ok := byID[b.ParentID]; !ok {
				return nil, invalidf("body %q references unknown parent %q", b.ID, b.ParentID)
			}
		}
	}

	const (
		unvisited = iota
		visiting
		done
	)
	mark := make(map[string]int, len(bodies))
	order := make([]*model.BodyDefinition, 0, len(bodies))
	var visit func(id string) error
	visit = func(id string) error {
		switch mark[id] {
		case visiting:
			return invalidf("parent cycle through body %q", id)
		case done:
			return nil
		}
		mark[id] = visiting
		b := byID[id]
		if b.ParentID != "" {
			if err := visit(b.ParentID); err != nil {
				return err
			}
		}
		mark[id] = done
		order = append(order, b)
		return nil
	}
	// Declaration order is kept where parents allow it.
	for _, b := range bodies {
		if err := visit(b.ID); err != nil {
			return nil, err
		}
	}
	return order, nil
}
