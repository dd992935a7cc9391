package feed

import (
	"fmt"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/signalsfoundry/intercept-engine/core"
)

// EncodeSnapshot converts a snapshot into the wire Struct shared by the gRPC
// and HTTP surfaces. Field names are snake_case.
func EncodeSnapshot(snap *core.Snapshot) (*structpb.Struct, error) {
	if snap == nil {
		return nil, fmt.Errorf("encode snapshot: nil")
	}

	bodies := make([]any, 0, len(snap.Bodies))
	for _, b := range snap.Bodies {
		bodies = append(bodies, map[string]any{
			"id":        b.ID,
			"parent_id": b.ParentID,
			"position":  vec(b.Position),
			"velocity":  vec(b.Velocity),
			"phase":     b.Phase,
		})
	}

	contacts := make([]any, 0, len(snap.Contacts))
	for _, c := range snap.Contacts {
		contacts = append(contacts, map[string]any{
			"station_id":             c.StationID,
			"name":                   c.Name,
			"latitude":               c.Latitude,
			"longitude":              c.Longitude,
			"available":              c.Available,
			"in_contact":             c.InContact,
			"angular_separation_deg": c.AngularSeparationDeg,
			"intensity":              c.Intensity,
			"elevation_deg":          c.ElevationDeg,
			"sub_point": map[string]any{
				"latitude":  c.SubPoint.Latitude,
				"longitude": c.SubPoint.Longitude,
			},
		})
	}

	interceptors := make([]any, 0, len(snap.Interceptors))
	for _, ic := range snap.Interceptors {
		interceptors = append(interceptors, map[string]any{
			"id":        ic.ID,
			"target_id": ic.TargetID,
			"position":  vec(ic.Position),
			"heading":   vec(ic.Heading),
			"progress":  ic.Progress,
			"speed":     ic.Speed,
			"state":     ic.State.String(),
			"path":      vecs(ic.Path),
		})
	}

	return structpb.NewStruct(map[string]any{
		"frame":        float64(snap.Frame),
		"elapsed":      snap.Elapsed,
		"delta":        snap.Delta,
		"bodies":       bodies,
		"contacts":     contacts,
		"interceptors": interceptors,
	})
}

// EncodePath converts a sampled body path into a Struct.
func EncodePath(bodyID string, pts []core.Vec3) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"body_id": bodyID,
		"points":  vecs(pts),
	})
}

// EncodeContactPlan converts a contact plan into a Struct with one flat,
// start-ordered windows list.
func EncodeContactPlan(plan core.ContactPlan, horizon, step float64) (*structpb.Struct, error) {
	windows := make([]any, 0)
	for _, w := range plan.Windows() {
		windows = append(windows, map[string]any{
			"station_id":         w.StationID,
			"start":              w.Start,
			"end":                w.End,
			"peak_intensity":     w.PeakIntensity,
			"min_separation_deg": w.MinSeparationDeg,
			"open":               w.Open,
		})
	}
	return structpb.NewStruct(map[string]any{
		"horizon": horizon,
		"step":    step,
		"windows": windows,
	})
}

func vec(v core.Vec3) map[string]any {
	return map[string]any{"x": v.X, "y": v.Y, "z": v.Z}
}

func vecs(pts []core.Vec3) []any {
	out := make([]any, 0, len(pts))
	for _, p := range pts {
		out = append(out, vec(p))
	}
	return out
}
