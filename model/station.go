package model

// GroundPoint is a station fixed on the reference sphere of a body.
// Latitude is in [-90, 90] and longitude in (-180, 180], both degrees.
type GroundPoint struct {
	ID          string
	Name        string
	Latitude    float64
	Longitude   float64
	ReferenceID string // body the reference sphere is centred on
}
