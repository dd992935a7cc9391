package core

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Vec3 is a scene-space position or direction.
type Vec3 = r3.Vec

const (
	degPerRad = 180.0 / math.Pi
	radPerDeg = math.Pi / 180.0
)

// unit returns v normalised, or false for a zero or non-finite vector.
// r3.Unit yields NaN for the zero vector, which must never reach a snapshot.
func unit(v Vec3) (Vec3, bool) {
	n := r3.Norm(v)
	if n == 0 || math.IsNaN(n) || math.IsInf(n, 0) {
		return Vec3{}, false
	}
	return r3.Scale(1/n, v), true
}

func finite(v Vec3) bool {
	for _, c := range [3]float64{v.X, v.Y, v.Z} {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}

func lerp(a, b Vec3, t float64) Vec3 {
	return r3.Add(a, r3.Scale(t, r3.Sub(b, a)))
}

// rotateZ rotates v by angle about the Z axis.
func rotateZ(v Vec3, angle float64) Vec3 {
	if angle == 0 {
		return v
	}
	s, c := math.Sincos(angle)
	return Vec3{X: v.X*c - v.Y*s, Y: v.X*s + v.Y*c, Z: v.Z}
}

// rotateX rotates v by angle about the X axis.
func rotateX(v Vec3, angle float64) Vec3 {
	if angle == 0 {
		return v
	}
	s, c := math.Sincos(angle)
	return Vec3{X: v.X, Y: v.Y*c - v.Z*s, Z: v.Y*s + v.Z*c}
}

// ToGeographic converts a position relative to a sphere's centre into
// geocentric latitude and longitude in degrees. The zero vector maps to
// (0, 0).
func ToGeographic(v Vec3) (lat, lon float64) {
	if v == (Vec3{}) {
		return 0, 0
	}
	lat = math.Atan2(v.Z, math.Hypot(v.X, v.Y)) * degPerRad
	lon = math.Atan2(v.Y, v.X) * degPerRad
	if lon == -180 {
		lon = 180
	}
	return lat, lon
}

// FromGeographic returns the point at the given latitude/longitude on a
// sphere of the given radius centred at the origin.
func FromGeographic(lat, lon, radius float64) Vec3 {
	sinLat, cosLat := math.Sincos(lat * radPerDeg)
	sinLon, cosLon := math.Sincos(lon * radPerDeg)
	return Vec3{
		X: radius * cosLat * cosLon,
		Y: radius * cosLat * sinLon,
		Z: radius * sinLat,
	}
}

// ElevationDegrees returns the elevation angle of the target as seen from
// the observer, in degrees. 0° = geometric horizon, 90° = overhead.
func ElevationDegrees(observer, target Vec3) float64 {
	v := r3.Sub(target, observer)
	vNorm := r3.Norm(v)
	if vNorm == 0 {
		return 90
	}
	zenith, ok := unit(observer)
	if !ok {
		return 90
	}

	cosGamma := clamp(r3.Dot(v, zenith)/vNorm, -1, 1)
	return 90.0 - math.Acos(cosGamma)*degPerRad
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
