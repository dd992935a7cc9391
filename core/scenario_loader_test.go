// core/scenario_loader_test.go
package core

import (
	"errors"
	"testing"

	"github.com/signalsfoundry/intercept-engine/kb"
	"github.com/signalsfoundry/intercept-engine/model"
)

func TestLoadScenario_PopulatesRegistry(t *testing.T) {
	sc := &model.Scenario{
		Bodies: []model.BodyDefinition{
			// Child declared before its parent.
			{ID: "nanosat", ParentID: "earth", OrbitRadius: 25, AngularRate: 0.5},
			{ID: "earth", ParentID: "sun", OrbitRadius: 130, AngularRate: 0.06},
			{ID: "sun", Kind: model.BodyKindStar},
		},
		Stations: []model.GroundPoint{
			{ID: "gs-london", Latitude: 51.5, Longitude: -0.12, ReferenceID: "earth"},
		},
	}

	reg := kb.NewRegistry()
	loaded, err := LoadScenario(reg, sc)
	if err != nil {
		t.Fatalf("LoadScenario returned error: %v", err)
	}
	want := []string{"sun", "earth", "nanosat"}
	if len(loaded.BodyIDs) != len(want) {
		t.Fatalf("BodyIDs = %v, want %v", loaded.BodyIDs, want)
	}
	for i := range want {
		if loaded.BodyIDs[i] != want[i] {
			t.Fatalf("BodyIDs = %v, want %v", loaded.BodyIDs, want)
		}
	}
	if _, ok := reg.Body("nanosat"); !ok {
		t.Fatalf("nanosat missing from registry")
	}
	if _, ok := reg.Station("gs-london"); !ok {
		t.Fatalf("station missing from registry")
	}
}

func TestLoadScenario_RejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		sc   model.Scenario
	}{
		{
			name: "non-positive radius",
			sc:   model.Scenario{Bodies: []model.BodyDefinition{{ID: "p", OrbitRadius: 0}}},
		},
		{
			name: "eccentricity out of range",
			sc:   model.Scenario{Bodies: []model.BodyDefinition{{ID: "p", OrbitRadius: 1, Eccentricity: 1}}},
		},
		{
			name: "unknown parent",
			sc:   model.Scenario{Bodies: []model.BodyDefinition{{ID: "p", OrbitRadius: 1, ParentID: "ghost"}}},
		},
		{
			name: "parent cycle",
			sc: model.Scenario{Bodies: []model.BodyDefinition{
				{ID: "a", OrbitRadius: 1, ParentID: "b"},
				{ID: "b", OrbitRadius: 1, ParentID: "a"},
			}},
		},
		{
			name: "duplicate id",
			sc: model.Scenario{Bodies: []model.BodyDefinition{
				{ID: "a", OrbitRadius: 1},
				{ID: "a", OrbitRadius: 2},
			}},
		},
		{
			name: "latitude out of range",
			sc:   model.Scenario{Stations: []model.GroundPoint{{ID: "s", Latitude: 91}}},
		},
		{
			name: "longitude -180",
			sc:   model.Scenario{Stations: []model.GroundPoint{{ID: "s", Longitude: -180}}},
		},
		{
			name: "station on unknown body",
			sc:   model.Scenario{Stations: []model.GroundPoint{{ID: "s", ReferenceID: "earth"}}},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			reg := kb.NewRegistry()
			_, err := LoadScenario(reg, &tc.sc)
			if !errors.Is(err, ErrInvalidConfiguration) {
				t.Fatalf("err = %v, want ErrInvalidConfiguration", err)
			}
			if len(reg.Bodies()) != 0 || len(reg.Stations()) != 0 {
				t.Fatalf("registry populated despite error")
			}
		})
	}
}

func TestLoadScenario_NilRegistry(t *testing.T) {
	if _, err := LoadScenario(nil, &model.Scenario{}); err == nil {
		t.Fatalf("expected error for nil registry")
	}
}
