package config

// Rates are radians per simulated second; the mission was tuned at 60
// frames per second.
const (
	missionFPS         = 60.0
	nanosatOrbitRadius = 25.0
	earthRadius        = 13.0
)

// DefaultMission returns the built-in world: the Sun with eight planets, a
// nanosat in inclined orbit around Earth, two interstellar bodies on
// flattened tilted paths, six ground stations and a 24-strong swarm aimed at
// the first interstellar body.
func DefaultMission() Config {
	planets := []struct {
		id     string
		name   string
		radius float64
		rate   float64 // per frame
	}{
		{"mercury", "Mercury", 60, 0.0015},
		{"venus", "Venus", 90, 0.0012},
		{"earth", "Earth", 130, 0.001},
		{"mars", "Mars", 170, 0.0008},
		{"jupiter", "Jupiter", 240, 0.0005},
		{"saturn", "Saturn", 300, 0.0004},
		{"uranus", "Uranus", 360, 0.0003},
		{"neptune", "Neptune", 420, 0.00025},
	}

	bodies := []BodyConfig{{ID: "sun", Name: "Sun", Kind: "star"}}
	for i, p := range planets {
		bodies = append(bodies, BodyConfig{
			ID:              p.id,
			Name:            p.name,
			Kind:            "planet",
			Parent:          "sun",
			OrbitRadius:     p.radius,
			AngularRate:     p.rate * missionFPS,
			InitialPhaseDeg: float64(i) * 47,
		})
	}
	bodies = append(bodies,
		BodyConfig{
			ID:             "nanosat",
			Name:           "Nanosat",
			Kind:           "satellite",
			Parent:         "earth",
			OrbitRadius:    nanosatOrbitRadius,
			AngularRate:    0.5,
			InclinationDeg: 45,
		},
		BodyConfig{
			ID:           "oumuamua-1",
			Name:         "Oumuamua-1",
			Kind:         "foreign",
			OrbitRadius:  800,
			AngularRate:  0.0015 * missionFPS,
			Eccentricity: 0.3,
			TiltDeg:      30,
		},
		BodyConfig{
			ID:              "oumuamua-2",
			Name:            "Oumuamua-2",
			Kind:            "foreign",
			OrbitRadius:     950,
			AngularRate:     0.0015 * missionFPS,
			InitialPhaseDeg: 120,
			Eccentricity:    0.3,
			TiltDeg:         45,
		},
	)

	stations := []StationConfig{
		{ID: "gs-1", Name: "Station 1", Latitude: 40.0, Longitude: -75.0},
		{ID: "gs-2", Name: "Station 2", Latitude: 34.0, Longitude: -118.2},
		{ID: "gs-3", Name: "Station 3", Latitude: 51.5, Longitude: -0.12},
		{ID: "gs-4", Name: "Station 4", Latitude: 35.7, Longitude: 139.7},
		{ID: "gs-5", Name: "Station 5", Latitude: -33.9, Longitude: 151.2},
		{ID: "gs-6", Name: "Station 6", Latitude: 28.6, Longitude: 77.2},
	}
	for i := range stations {
		stations[i].Reference = "earth"
	}

	return Config{
		Bodies:   bodies,
		Stations: stations,
		Visibility: VisibilityConfig{
			Satellite:       "nanosat",
			ReferenceRadius: earthRadius,
		},
		Swarm: SwarmConfig{
			Count:    24,
			Target:   "oumuamua-1",
			Launch:   "nanosat",
			SpeedMin: 0.0015 * missionFPS,
			SpeedMax: 0.0035 * missionFPS,
		},
	}
}
