// Package config loads engine, server and logging settings with viper from
// an optional file plus INTERCEPT_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/signalsfoundry/intercept-engine/core"
	"github.com/signalsfoundry/intercept-engine/internal/logging"
	"github.com/signalsfoundry/intercept-engine/internal/observability"
	"github.com/signalsfoundry/intercept-engine/model"
	"github.com/signalsfoundry/intercept-engine/timectrl"
)

// EnvPrefix is prepended to every environment override, e.g.
// INTERCEPT_CLOCK_MODE or INTERCEPT_SWARM_COUNT.
const EnvPrefix = "INTERCEPT"

type ClockConfig struct {
	DeltaCapSeconds float64       `mapstructure:"delta_cap_seconds"`
	Tick            time.Duration `mapstructure:"tick"`
	Mode            string        `mapstructure:"mode"`
}

type VisibilityConfig struct {
	ThresholdDeg    float64 `mapstructure:"threshold_deg"`
	Satellite       string  `mapstructure:"satellite"`
	ReferenceRadius float64 `mapstructure:"reference_radius"`
}

type SwarmConfig struct {
	Count        int     `mapstructure:"count"`
	SpeedMin     float64 `mapstructure:"speed_min"`
	SpeedMax     float64 `mapstructure:"speed_max"`
	Target       string  `mapstructure:"target"`
	Launch       string  `mapstructure:"launch"`
	LeadDistance float64 `mapstructure:"lead_distance"`
	SpreadStep   float64 `mapstructure:"spread_step"`
	Curvature    float64 `mapstructure:"curvature"`
	Alpha        float64 `mapstructure:"alpha"`
	Seed         uint64  `mapstructure:"seed"`
	PathSamples  int     `mapstructure:"path_samples"`
}

// BodyConfig is one body entry. Angles are in degrees.
type BodyConfig struct {
	ID              string  `mapstructure:"id"`
	Name            string  `mapstructure:"name"`
	Kind            string  `mapstructure:"kind"`
	Parent          string  `mapstructure:"parent"`
	OrbitRadius     float64 `mapstructure:"orbit_radius"`
	AngularRate     float64 `mapstructure:"angular_rate"`
	InitialPhaseDeg float64 `mapstructure:"initial_phase_deg"`
	Eccentricity    float64 `mapstructure:"eccentricity"`
	TiltDeg         float64 `mapstructure:"tilt_deg"`
	InclinationDeg  float64 `mapstructure:"inclination_deg"`
	TLELine1        string  `mapstructure:"tle_line1"`
	TLELine2        string  `mapstructure:"tle_line2"`
	KmPerUnit       float64 `mapstructure:"km_per_unit"`
}

type StationConfig struct {
	ID        string  `mapstructure:"id"`
	Name      string  `mapstructure:"name"`
	Latitude  float64 `mapstructure:"latitude"`
	Longitude float64 `mapstructure:"longitude"`
	Reference string  `mapstructure:"reference"`
}

type ServerConfig struct {
	GRPCAddr string `mapstructure:"grpc_addr"`
	HTTPAddr string `mapstructure:"http_addr"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type TracingConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	ServiceName string  `mapstructure:"service_name"`
	Exporter    string  `mapstructure:"exporter"`
	Endpoint    string  `mapstructure:"endpoint"`
	SampleRatio float64 `mapstructure:"sample_ratio"`
}

// Config is the full process configuration.
type Config struct {
	Clock      ClockConfig      `mapstructure:"clock"`
	Visibility VisibilityConfig `mapstructure:"visibility"`
	Swarm      SwarmConfig      `mapstructure:"swarm"`
	Bodies     []BodyConfig     `mapstructure:"bodies"`
	Stations   []StationConfig  `mapstructure:"stations"`
	Server     ServerConfig     `mapstructure:"server"`
	Log        LogConfig        `mapstructure:"log"`
	Tracing    TracingConfig    `mapstructure:"tracing"`
}

// Load reads path (YAML, JSON or TOML by extension) when non-empty, applies
// environment overrides and validates the result. With no bodies configured
// the built-in mission is used for the whole world.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if len(cfg.Bodies) == 0 {
		applyMission(&cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("clock.delta_cap_seconds", timectrl.DefaultDeltaCap.Seconds())
	v.SetDefault("clock.tick", 16*time.Millisecond)
	v.SetDefault("clock.mode", timectrl.RealTime.String())

	v.SetDefault("visibility.threshold_deg", core.DefaultThresholdDeg)
	v.SetDefault("visibility.satellite", "")
	v.SetDefault("visibility.reference_radius", 0.0)

	v.SetDefault("swarm.count", 0)
	v.SetDefault("swarm.speed_min", 0.0)
	v.SetDefault("swarm.speed_max", 0.0)
	v.SetDefault("swarm.target", "")
	v.SetDefault("swarm.launch", "")
	v.SetDefault("swarm.lead_distance", core.DefaultLeadDistance)
	v.SetDefault("swarm.spread_step", core.DefaultSpreadStep)
	v.SetDefault("swarm.curvature", core.DefaultCurvature)
	v.SetDefault("swarm.alpha", core.CentripetalAlpha)
	v.SetDefault("swarm.seed", 1)
	v.SetDefault("swarm.path_samples", 64)

	v.SetDefault("server.grpc_addr", ":50061")
	v.SetDefault("server.http_addr", ":9090")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	td := observability.DefaultTracingConfig()
	v.SetDefault("tracing.enabled", td.Enabled)
	v.SetDefault("tracing.service_name", td.ServiceName)
	v.SetDefault("tracing.exporter", td.Exporter)
	v.SetDefault("tracing.endpoint", td.Endpoint)
	v.SetDefault("tracing.sample_ratio", td.SampleRatio)
}

// applyMission fills the world from DefaultMission. Swarm and visibility
// settings given explicitly are kept.
func applyMission(cfg *Config) {
	m := DefaultMission()
	cfg.Bodies = m.Bodies
	if len(cfg.Stations) == 0 {
		cfg.Stations = m.Stations
	}
	if cfg.Visibility.Satellite == "" {
		cfg.Visibility.Satellite = m.Visibility.Satellite
	}
	if cfg.Visibility.ReferenceRadius == 0 {
		cfg.Visibility.ReferenceRadius = m.Visibility.ReferenceRadius
	}
	if cfg.Swarm.Count == 0 {
		cfg.Swarm.Count = m.Swarm.Count
	}
	if cfg.Swarm.Target == "" {
		cfg.Swarm.Target = m.Swarm.Target
	}
	if cfg.Swarm.Launch == "" {
		cfg.Swarm.Launch = m.Swarm.Launch
	}
	if cfg.Swarm.SpeedMin == 0 && cfg.Swarm.SpeedMax == 0 {
		cfg.Swarm.SpeedMin = m.Swarm.SpeedMin
		cfg.Swarm.SpeedMax = m.Swarm.SpeedMax
	}
}

// Validate checks the settings that the engine does not see itself.
// Scenario consistency is checked by core.NewEngine.
func (c *Config) Validate() error {
	var errs []error
	if c.Clock.Tick <= 0 {
		errs = append(errs, fmt.Errorf("clock.tick must be positive, got %s", c.Clock.Tick))
	}
	switch c.Clock.Mode {
	case timectrl.RealTime.String(), timectrl.Accelerated.String():
	default:
		errs = append(errs, fmt.Errorf("clock.mode must be %q or %q, got %q",
			timectrl.RealTime, timectrl.Accelerated, c.Clock.Mode))
	}
	if c.Clock.DeltaCapSeconds <= 0 || math.IsNaN(c.Clock.DeltaCapSeconds) {
		errs = append(errs, fmt.Errorf("clock.delta_cap_seconds must be positive, got %v", c.Clock.DeltaCapSeconds))
	}
	if err := c.TracingSettings().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("tracing: %w", err))
	}
	for i, b := range c.Bodies {
		switch model.BodyKind(b.Kind) {
		case model.BodyKindStar, model.BodyKindPlanet, model.BodyKindSatellite, model.BodyKindForeign, "":
		default:
			errs = append(errs, fmt.Errorf("bodies[%d].kind %q is unknown", i, b.Kind))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", core.ErrInvalidConfiguration, errors.Join(errs...))
	}
	return nil
}

// Scenario converts the configuration into the engine's scenario model.
func (c *Config) Scenario() *model.Scenario {
	sc := &model.Scenario{
		DeltaCapSeconds: c.Clock.DeltaCapSeconds,
		Visibility: model.VisibilityDefinition{
			SatelliteID:     c.Visibility.Satellite,
			ThresholdDeg:    c.Visibility.ThresholdDeg,
			ReferenceRadius: c.Visibility.ReferenceRadius,
		},
		Swarm: model.SwarmDefinition{
			Count:        c.Swarm.Count,
			TargetID:     c.Swarm.Target,
			LaunchID:     c.Swarm.Launch,
			SpeedMin:     c.Swarm.SpeedMin,
			SpeedMax:     c.Swarm.SpeedMax,
			Seed:         c.Swarm.Seed,
			LeadDistance: c.Swarm.LeadDistance,
			SpreadStep:   c.Swarm.SpreadStep,
			Curvature:    c.Swarm.Curvature,
			Alpha:        c.Swarm.Alpha,
			PathSamples:  c.Swarm.PathSamples,
		},
	}
	for _, b := range c.Bodies {
		sc.Bodies = append(sc.Bodies, model.BodyDefinition{
			ID:           b.ID,
			Name:         b.Name,
			Kind:         model.BodyKind(b.Kind),
			ParentID:     b.Parent,
			OrbitRadius:  b.OrbitRadius,
			AngularRate:  b.AngularRate,
			InitialPhase: radians(b.InitialPhaseDeg),
			Eccentricity: b.Eccentricity,
			Tilt:         radians(b.TiltDeg),
			Inclination:  radians(b.InclinationDeg),
			TLE:          model.TLE{Line1: b.TLELine1, Line2: b.TLELine2},
			KmPerUnit:    b.KmPerUnit,
		})
	}
	for _, s := range c.Stations {
		sc.Stations = append(sc.Stations, model.GroundPoint{
			ID:          s.ID,
			Name:        s.Name,
			Latitude:    s.Latitude,
			Longitude:   s.Longitude,
			ReferenceID: s.Reference,
		})
	}
	return sc
}

// LoggerConfig maps the log section onto logging.Config.
func (c *Config) LoggerConfig() logging.Config {
	return logging.Config{Level: c.Log.Level, Format: c.Log.Format}
}

// TracingSettings maps the tracing section onto observability.TracingConfig.
func (c *Config) TracingSettings() observability.TracingConfig {
	return observability.TracingConfig{
		Enabled:     c.Tracing.Enabled,
		ServiceName: c.Tracing.ServiceName,
		Exporter:    strings.ToLower(c.Tracing.Exporter),
		Endpoint:    c.Tracing.Endpoint,
		SampleRatio: c.Tracing.SampleRatio,
	}
}

// Mode returns the parsed clock mode.
func (c *Config) Mode() timectrl.Mode {
	return timectrl.ParseMode(c.Clock.Mode)
}

func radians(deg float64) float64 { return deg * math.Pi / 180 }
