package observability

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

// FeedCollector holds the request metrics of the gRPC and HTTP feed.
type FeedCollector struct {
	gatherer prometheus.Gatherer

	Requests  *prometheus.CounterVec
	Durations *prometheus.HistogramVec
	Watchers  prometheus.Gauge
}

// NewFeedCollector registers the feed metrics on reg (the default registry
// when nil). Registering twice on one registry returns the existing metrics.
func NewFeedCollector(reg prometheus.Registerer) (*FeedCollector, error) {
	reg, gatherer := registryPair(reg)

	requests, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Subsystem: "feed",
		Name:      "requests_total",
		Help:      "Feed requests by service, method and status code.",
	}, []string{"service", "method", "code"}))
	if err != nil {
		return nil, err
	}
	durations, err := register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Subsystem: "feed",
		Name:      "request_duration_seconds",
		Help:      "Feed request latency; streams count their whole lifetime.",
		Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	}, []string{"service", "method"}))
	if err != nil {
		return nil, err
	}
	watchers, err := register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Subsystem: "feed",
		Name:      "watchers",
		Help:      "Open WatchFrames streams.",
	}))
	if err != nil {
		return nil, err
	}

	return &FeedCollector{gatherer: gatherer, Requests: requests, Durations: durations, Watchers: watchers}, nil
}

// UnaryServerInterceptor counts and times unary calls.
func (c *FeedCollector) UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		c.observeRPC(info.FullMethod, err, time.Since(start))
		return resp, err
	}
}

// StreamServerInterceptor counts streams and keeps the watcher gauge.
func (c *FeedCollector) StreamServerInterceptor() grpc.StreamServerInterceptor {
	return func(srv interface{}, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		start := time.Now()
		c.Watchers.Inc()
		defer c.Watchers.Dec()
		err := handler(srv, ss)
		c.observeRPC(info.FullMethod, err, time.Since(start))
		return err
	}
}

// ObserveHTTP records one HTTP request under service "http".
func (c *FeedCollector) ObserveHTTP(route string, code int, d time.Duration) {
	c.observe("http", route, strconv.Itoa(code), d)
}

func (c *FeedCollector) observeRPC(fullMethod string, err error, d time.Duration) {
	service, method := SplitMethod(fullMethod)
	c.observe(service, method, status.Code(err).String(), d)
}

func (c *FeedCollector) observe(service, method, code string, d time.Duration) {
	c.Requests.WithLabelValues(service, method, code).Inc()
	c.Durations.WithLabelValues(service, method).Observe(d.Seconds())
}

// Handler serves the collector's registry in the Prometheus text format.
func (c *FeedCollector) Handler() http.Handler {
	return promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{})
}

// SplitMethod turns "/pkg.Service/Method" into ("Service", "Method"). Anything
// it cannot parse is reported as unknown.
func SplitMethod(fullMethod string) (service, method string) {
	svc, m, ok := strings.Cut(strings.TrimPrefix(fullMethod, "/"), "/")
	if !ok || svc == "" || m == "" || strings.Contains(m, "/") {
		return "unknown", "unknown"
	}
	if dot := strings.LastIndexByte(svc, '.'); dot >= 0 {
		svc = svc[dot+1:]
	}
	if svc == "" {
		return "unknown", "unknown"
	}
	return svc, m
}

func registryPair(reg prometheus.Registerer) (prometheus.Registerer, prometheus.Gatherer) {
	if reg == nil {
		return prometheus.DefaultRegisterer, prometheus.DefaultGatherer
	}
	if g, ok := reg.(prometheus.Gatherer); ok {
		return reg, g
	}
	return reg, prometheus.DefaultGatherer
}

// register adds c to reg, handing back the already registered collector when
// an identical one exists.
func register[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	err := reg.Register(c)
	if err == nil {
		return c, nil
	}
	are, ok := err.(prometheus.AlreadyRegisteredError)
	if !ok {
		return c, err
	}
	existing, ok := are.ExistingCollector.(T)
	if !ok {
		return c, fmt.Errorf("collector already registered with a different type: %w", err)
	}
	return existing, nil
}
