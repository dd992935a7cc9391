package observability

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/signalsfoundry/intercept-engine/core"
)

// EngineCollector exposes frame-driver Prometheus metrics. It implements
// core.FrameRecorder.
type EngineCollector struct {
	gatherer prometheus.Gatherer

	FramesTotal       prometheus.Counter
	TickDuration      prometheus.Histogram
	ClampedTicksTotal prometheus.Counter
	Bodies            prometheus.Gauge
	Interceptors      *prometheus.GaugeVec
	StationsInContact prometheus.Gauge
}

// NewEngineCollector registers engine metrics against the provided registerer.
func NewEngineCollector(reg prometheus.Registerer) (*EngineCollector, error) {
	reg, gatherer := registryPair(reg)
	c := &EngineCollector{gatherer: gatherer}
	var err error

	if c.FramesTotal, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Subsystem: "engine", Name: "frames_total",
		Help: "Frames ticked by the engine.",
	})); err != nil {
		return nil, err
	}
	if c.TickDuration, err = register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Subsystem: "engine", Name: "tick_duration_seconds",
		Help:    "Wall time spent computing one frame.",
		Buckets: []float64{0.00005, 0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.016, 0.033},
	})); err != nil {
		return nil, err
	}
	if c.ClampedTicksTotal, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Subsystem: "engine", Name: "clamped_ticks_total",
		Help: "Frames whose real delta exceeded the clock's cap.",
	})); err != nil {
		return nil, err
	}
	if c.Bodies, err = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Subsystem: "engine", Name: "bodies",
		Help: "Bodies propagated in the latest frame.",
	})); err != nil {
		return nil, err
	}
	if c.Interceptors, err = register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Subsystem: "engine", Name: "interceptors",
		Help: "Interceptors per pursuit state in the latest frame.",
	}, []string{"state"})); err != nil {
		return nil, err
	}
	if c.StationsInContact, err = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Subsystem: "engine", Name: "stations_in_contact",
		Help: "Ground stations in contact with the satellite in the latest frame.",
	})); err != nil {
		return nil, err
	}
	return c, nil
}

// Gatherer returns the Prometheus gatherer associated with the collector.
func (c *EngineCollector) Gatherer() prometheus.Gatherer {
	if c == nil {
		return nil
	}
	return c.gatherer
}

// ObserveFrame records one tick.
func (c *EngineCollector) ObserveFrame(s core.FrameStats) {
	if c == nil {
		return
	}
	c.FramesTotal.Inc()
	c.TickDuration.Observe(s.Duration.Seconds())
	if s.Clamped {
		c.ClampedTicksTotal.Inc()
	}
	c.Bodies.Set(float64(s.Bodies))
	c.StationsInContact.Set(float64(s.InContact))
	// Every state is written so a state that empties drops to zero.
	for _, st := range []core.InterceptorState{core.StatePursuing, core.StateComplete, core.StateInert} {
		c.Interceptors.WithLabelValues(st.String()).Set(float64(s.Interceptors[st]))
	}
}
