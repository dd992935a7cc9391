package core

import (
	"math"

	"github.com/signalsfoundry/intercept-engine/model"
)

// DefaultThresholdDeg is the line-of-sight cone half-angle used when the
// configuration does not set one.
const DefaultThresholdDeg = 8.0

// ContactState is the per-tick relationship between a station and the
// satellite. It is derived every tick and never cached.
type ContactState struct {
	AngularSeparationDeg float64
	InContact            bool
	// Intensity fades linearly from 1 overhead to 0 at the threshold so the
	// renderer can blend instead of flickering at the boundary.
	Intensity float64
	SubPoint  model.GroundPoint
	// ElevationDeg is only filled in when a reference radius is known.
	ElevationDeg float64
}

// AngularSeparationDeg returns the great-circle angle between two points in
// degrees using the haversine formula. The result is in [0, 180], symmetric,
// and zero for identical points.
func AngularSeparationDeg(a, b model.GroundPoint) float64 {
	lat1 := a.Latitude * radPerDeg
	lat2 := b.Latitude * radPerDeg
	dLat := lat2 - lat1
	dLon := (b.Longitude - a.Longitude) * radPerDeg

	sinLat := math.Sin(dLat / 2)
	sinLon := math.Sin(dLon / 2)
	h := sinLat*sinLat + math.Cos(lat1)*math.Cos(lat2)*sinLon*sinLon

	// Rounding can push h a hair outside [0,1] at identical or antipodal
	// points; asin would then return NaN.
	c := 2 * math.Asin(math.Sqrt(clamp(h, 0, 1)))
	return clamp(c*degPerRad, 0, 180)
}

// SubPoint returns the geographic point directly below satPos, which is
// relative to the reference sphere's centre.
func SubPoint(satPos Vec3) model.GroundPoint {
	lat, lon := ToGeographic(satPos)
	return model.GroundPoint{Latitude: lat, Longitude: lon}
}

// Contact evaluates whether the satellite at satPos (relative to the
// station's reference body) lies within thresholdDeg of the station.
func Contact(satPos Vec3, station model.GroundPoint, thresholdDeg float64) ContactState {
	sub := SubPoint(satPos)
	return contactFromSubPoint(sub, station, thresholdDeg)
}

func contactFromSubPoint(sub, station model.GroundPoint, thresholdDeg float64) ContactState {
	sep := AngularSeparationDeg(sub, station)
	intensity := 0.0
	if thresholdDeg > 0 {
		intensity = math.Max(0, 1-sep/thresholdDeg)
	}
	return ContactState{
		AngularSeparationDeg: sep,
		InContact:            sep < thresholdDeg,
		Intensity:            intensity,
		SubPoint:             sub,
	}
}

// ContactWithElevation is Contact plus the elevation of the satellite above
// the station's local horizon on a sphere of the given radius.
func ContactWithElevation(satPos Vec3, station model.GroundPoint, thresholdDeg, radius float64) ContactState {
	cs := Contact(satPos, station, thresholdDeg)
	if radius > 0 {
		observer := FromGeographic(station.Latitude, station.Longitude, radius)
		cs.ElevationDeg = ElevationDegrees(observer, satPos)
	}
	return cs
}
