package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/signalsfoundry/intercept-engine/core"
)

func TestUnaryInterceptorRecordsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewFeedCollector(reg)
	if err != nil {
		t.Fatalf("NewFeedCollector: %v", err)
	}

	interceptor := collector.UnaryServerInterceptor()
	info := &grpc.UnaryServerInfo{FullMethod: "/intercept.feed.v1.FrameFeed/GetFrame"}

	_, err = interceptor(context.Background(), struct{}{}, info, func(ctx context.Context, req interface{}) (interface{}, error) {
		time.Sleep(5 * time.Millisecond)
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("interceptor handler returned error: %v", err)
	}

	if got := testutil.ToFloat64(collector.Requests.WithLabelValues("FrameFeed", "GetFrame", "OK")); got != 1 {
		t.Fatalf("feed_requests_total = %v, want 1", got)
	}
	if count := histogramSampleCount(t, reg, "feed_request_duration_seconds", map[string]string{
		"service": "FrameFeed",
		"method":  "GetFrame",
	}); count != 1 {
		t.Fatalf("feed_request_duration_seconds sample_count = %d, want 1", count)
	}
}

func TestUnaryInterceptorRecordsErrorCode(t *testing.T) {
	collector, err := NewFeedCollector(prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("NewFeedCollector: %v", err)
	}

	interceptor := collector.UnaryServerInterceptor()
	info := &grpc.UnaryServerInfo{FullMethod: "/intercept.feed.v1.FrameFeed/RemoveBody"}

	_, _ = interceptor(context.Background(), struct{}{}, info, func(ctx context.Context, req interface{}) (interface{}, error) {
		return nil, status.Error(codes.FailedPrecondition, "body has children")
	})

	if got := testutil.ToFloat64(collector.Requests.WithLabelValues("FrameFeed", "RemoveBody", "FailedPrecondition")); got != 1 {
		t.Fatalf("feed_requests_total error label = %v, want 1", got)
	}
}

type stubStream struct {
	grpc.ServerStream
}

func TestStreamInterceptorTracksWatchers(t *testing.T) {
	collector, err := NewFeedCollector(prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("NewFeedCollector: %v", err)
	}

	interceptor := collector.StreamServerInterceptor()
	info := &grpc.StreamServerInfo{FullMethod: "/intercept.feed.v1.FrameFeed/WatchFrames", IsServerStream: true}

	var during float64
	err = interceptor(nil, stubStream{}, info, func(srv interface{}, ss grpc.ServerStream) error {
		during = testutil.ToFloat64(collector.Watchers)
		return nil
	})
	if err != nil {
		t.Fatalf("stream handler returned error: %v", err)
	}
	if during != 1 {
		t.Fatalf("feed_watchers during stream = %v, want 1", during)
	}
	if got := testutil.ToFloat64(collector.Watchers); got != 0 {
		t.Fatalf("feed_watchers after stream = %v, want 0", got)
	}
	if got := testutil.ToFloat64(collector.Requests.WithLabelValues("FrameFeed", "WatchFrames", "OK")); got != 1 {
		t.Fatalf("feed_requests_total stream = %v, want 1", got)
	}
}

func TestObserveHTTP(t *testing.T) {
	collector, err := NewFeedCollector(prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("NewFeedCollector: %v", err)
	}
	collector.ObserveHTTP("/v1/frame", http.StatusOK, time.Millisecond)
	collector.ObserveHTTP("/v1/frame", http.StatusServiceUnavailable, time.Millisecond)

	if got := testutil.ToFloat64(collector.Requests.WithLabelValues("http", "/v1/frame", "503")); got != 1 {
		t.Fatalf("http 503 count = %v, want 1", got)
	}
}

func TestCollectorsShareRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	if _, err := NewFeedCollector(reg); err != nil {
		t.Fatalf("NewFeedCollector: %v", err)
	}
	if _, err := NewFeedCollector(reg); err != nil {
		t.Fatalf("second NewFeedCollector: %v", err)
	}
	if _, err := NewEngineCollector(reg); err != nil {
		t.Fatalf("NewEngineCollector: %v", err)
	}
	if _, err := NewEngineCollector(reg); err != nil {
		t.Fatalf("second NewEngineCollector: %v", err)
	}
}

func TestEngineCollectorObservesFrames(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewEngineCollector(reg)
	if err != nil {
		t.Fatalf("NewEngineCollector: %v", err)
	}

	collector.ObserveFrame(core.FrameStats{
		Frame:        1,
		Duration:     200 * time.Microsecond,
		Clamped:      true,
		Bodies:       12,
		InContact:    2,
		Interceptors: map[core.InterceptorState]int{core.StatePursuing: 20, core.StateComplete: 4},
	})
	collector.ObserveFrame(core.FrameStats{
		Frame:        2,
		Duration:     100 * time.Microsecond,
		Bodies:       11,
		Interceptors: map[core.InterceptorState]int{core.StateInert: 24},
	})

	if got := testutil.ToFloat64(collector.FramesTotal); got != 2 {
		t.Fatalf("engine_frames_total = %v, want 2", got)
	}
	if got := testutil.ToFloat64(collector.ClampedTicksTotal); got != 1 {
		t.Fatalf("engine_clamped_ticks_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(collector.Bodies); got != 11 {
		t.Fatalf("engine_bodies = %v, want 11", got)
	}
	if got := testutil.ToFloat64(collector.StationsInContact); got != 0 {
		t.Fatalf("engine_stations_in_contact = %v, want 0", got)
	}
	if got := testutil.ToFloat64(collector.Interceptors.WithLabelValues("PURSUING")); got != 0 {
		t.Fatalf("engine_interceptors{PURSUING} = %v, want 0", got)
	}
	if got := testutil.ToFloat64(collector.Interceptors.WithLabelValues("INERT")); got != 24 {
		t.Fatalf("engine_interceptors{INERT} = %v, want 24", got)
	}
	if count := histogramSampleCount(t, collector.Gatherer(), "engine_tick_duration_seconds", nil); count != 2 {
		t.Fatalf("engine_tick_duration_seconds sample_count = %d, want 2", count)
	}
}

func TestMetricsHandlerExposesFeedAndEngine(t *testing.T) {
	reg := prometheus.NewRegistry()
	feed, err := NewFeedCollector(reg)
	if err != nil {
		t.Fatalf("NewFeedCollector: %v", err)
	}
	engine, err := NewEngineCollector(reg)
	if err != nil {
		t.Fatalf("NewEngineCollector: %v", err)
	}
	feed.Requests.WithLabelValues("FrameFeed", "GetFrame", "OK").Inc()
	engine.ObserveFrame(core.FrameStats{Frame: 1, Bodies: 3})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	feed.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("/metrics status = %d, want 200", rr.Code)
	}
	body := rr.Body.String()
	for _, metric := range []string{
		"feed_requests_total",
		"feed_watchers",
		"engine_frames_total",
		"engine_bodies 3",
		"engine_interceptors",
	} {
		if !strings.Contains(body, metric) {
			t.Fatalf("expected %q in /metrics output", metric)
		}
	}
}

func TestSplitMethod(t *testing.T) {
	tests := []struct {
		in      string
		service string
		method  string
	}{
		{"/intercept.feed.v1.FrameFeed/GetFrame", "FrameFeed", "GetFrame"},
		{"FrameFeed/WatchFrames", "FrameFeed", "WatchFrames"},
		{"", "unknown", "unknown"},
		{"/nomethod", "unknown", "unknown"},
	}
	for _, tc := range tests {
		service, method := SplitMethod(tc.in)
		if service != tc.service || method != tc.method {
			t.Fatalf("SplitMethod(%q) = %q, %q; want %q, %q", tc.in, service, method, tc.service, tc.method)
		}
	}
}

func histogramSampleCount(t *testing.T, gatherer prometheus.Gatherer, name string, labels map[string]string) uint64 {
	t.Helper()

	metrics, err := gatherer.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	for _, mf := range metrics {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.Metric {
			if matchLabels(m.GetLabel(), labels) && m.GetHistogram() != nil {
				return m.GetHistogram().GetSampleCount()
			}
		}
	}
	return 0
}

func matchLabels(got []*dto.LabelPair, want map[string]string) bool {
	if len(got) < len(want) {
		return false
	}
	matched := 0
	for _, lp := range got {
		if val, ok := want[lp.GetName()]; ok && val == lp.GetValue() {
			matched++
		}
	}
	return matched == len(want)
}
