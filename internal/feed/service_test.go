package feed

import (
	"context"
	"fmt"
	"net"
	"sync"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/signalsfoundry/intercept-engine/core"
	"github.com/signalsfoundry/intercept-engine/internal/logging"
	"github.com/signalsfoundry/intercept-engine/kb"
)

type fakeController struct {
	mu      sync.Mutex
	bodies  map[string]bool
	resets  []string
	removed []string
	reqIDs  []string
}

func newFakeController(ids ...string) *fakeController {
	c := &fakeController{bodies: make(map[string]bool)}
	for _, id := range ids {
		c.bodies[id] = true
	}
	return c
}

func (c *fakeController) RemoveBody(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reqIDs = append(c.reqIDs, logging.RequestIDFromContext(ctx))
	if id == "earth" {
		return fmt.Errorf("%w: %q", kb.ErrBodyInUse, id)
	}
	if !c.bodies[id] {
		return fmt.Errorf("%w: %q", kb.ErrBodyNotFound, id)
	}
	delete(c.bodies, id)
	c.removed = append(c.removed, id)
	return nil
}

func (c *fakeController) ResetSwarm(_ context.Context, target string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if target != "" && !c.bodies[target] {
		return fmt.Errorf("%w: %q", kb.ErrBodyNotFound, target)
	}
	c.resets = append(c.resets, target)
	return nil
}

func (c *fakeController) BodyPath(_ context.Context, id string, n int) ([]core.Vec3, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.bodies[id] {
		return nil, fmt.Errorf("%w: %q", kb.ErrBodyNotFound, id)
	}
	if n <= 0 {
		n = 3
	}
	pts := make([]core.Vec3, n)
	for i := range pts {
		pts[i] = core.Vec3{X: float64(i)}
	}
	return pts, nil
}

func (c *fakeController) ContactPlan(_ context.Context, horizon, step float64) (core.ContactPlan, error) {
	if step > horizon {
		return nil, fmt.Errorf("%w: step %v exceeds horizon %v", core.ErrInvalidConfiguration, step, horizon)
	}
	return core.ContactPlan{
		"gs-b": {{StationID: "gs-b", Start: 5, End: horizon, PeakIntensity: 0.4, Open: true}},
		"gs-a": {{StationID: "gs-a", Start: 1, End: 2, PeakIntensity: 0.9, MinSeparationDeg: 0.8}},
	}, nil
}

func testFrame(n uint64) *core.Snapshot {
	return &core.Snapshot{
		Frame:   n,
		Elapsed: float64(n) * 0.25,
		Delta:   0.25,
		Bodies: []core.BodyState{
			{ID: "sun"},
			{ID: "earth", ParentID: "sun", Position: core.Vec3{X: 130}, Phase: 1.5},
		},
		Contacts: []core.StationContact{
			{StationID: "gs-null", Name: "Null Island", Available: true,
				ContactState: core.ContactState{InContact: true, Intensity: 0.5, AngularSeparationDeg: 4}},
		},
		Interceptors: []core.InterceptorSnapshot{
			{ID: "interceptor-00", TargetID: "earth", Progress: 0.25, Speed: 0.5, State: core.StatePursuing,
				Path: []core.Vec3{{X: 1}, {X: 2}}},
		},
	}
}

func startFeed(t *testing.T, hub *Hub, ctrl Controller) *FrameFeedClient {
	t.Helper()

	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			RequestIDUnaryServerInterceptor(logging.Noop()),
			TracingUnaryServerInterceptor(),
		),
		grpc.ChainStreamInterceptor(
			RequestIDStreamServerInterceptor(logging.Noop()),
			TracingStreamServerInterceptor(),
		),
	)
	RegisterFrameFeedServer(srv, NewService(hub, ctrl, logging.Noop()))
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return NewFrameFeedClient(conn)
}

func TestGetFrameBeforeFirstFrame(t *testing.T) {
	client := startFeed(t, NewHub(), nil)
	_, err := client.GetFrame(context.Background())
	if code := status.Code(err); code != codes.Unavailable {
		t.Fatalf("GetFrame code = %v, want %v", code, codes.Unavailable)
	}
}

func TestGetFrameEncodesSnapshot(t *testing.T) {
	hub := NewHub()
	hub.Publish(testFrame(3))
	client := startFeed(t, hub, nil)

	out, err := client.GetFrame(context.Background())
	if err != nil {
		t.Fatalf("GetFrame: %v", err)
	}
	fields := out.GetFields()
	if got := fields["frame"].GetNumberValue(); got != 3 {
		t.Fatalf("frame = %v, want 3", got)
	}
	bodies := fields["bodies"].GetListValue().GetValues()
	if len(bodies) != 2 {
		t.Fatalf("len(bodies) = %d, want 2", len(bodies))
	}
	earth := bodies[1].GetStructValue().GetFields()
	if got := earth["parent_id"].GetStringValue(); got != "sun" {
		t.Fatalf("earth parent_id = %q, want sun", got)
	}
	if got := earth["position"].GetStructValue().GetFields()["x"].GetNumberValue(); got != 130 {
		t.Fatalf("earth position.x = %v, want 130", got)
	}
	contact := fields["contacts"].GetListValue().GetValues()[0].GetStructValue().GetFields()
	if !contact["in_contact"].GetBoolValue() {
		t.Fatalf("contact in_contact = false, want true")
	}
	ic := fields["interceptors"].GetListValue().GetValues()[0].GetStructValue().GetFields()
	if got := ic["state"].GetStringValue(); got != "PURSUING" {
		t.Fatalf("interceptor state = %q, want PURSUING", got)
	}
	if got := len(ic["path"].GetListValue().GetValues()); got != 2 {
		t.Fatalf("len(path) = %d, want 2", got)
	}
}

func TestWatchFramesStreamsNewFrames(t *testing.T) {
	hub := NewHub()
	hub.Publish(testFrame(1))
	client := startFeed(t, hub, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	stream, err := client.WatchFrames(ctx)
	if err != nil {
		t.Fatalf("WatchFrames: %v", err)
	}
	first, err := stream.Recv()
	if err != nil {
		t.Fatalf("Recv: %v", err)
	}
	if got := first.GetFields()["frame"].GetNumberValue(); got != 1 {
		t.Fatalf("first frame = %v, want 1", got)
	}

	hub.Publish(testFrame(2))
	second, err := stream.Recv()
	if err != nil {
		t.Fatalf("Recv: %v", err)
	}
	if got := second.GetFields()["frame"].GetNumberValue(); got != 2 {
		t.Fatalf("second frame = %v, want 2", got)
	}
}

func TestRemoveBodyMapsErrors(t *testing.T) {
	ctrl := newFakeController("earth", "oumuamua")
	client := startFeed(t, NewHub(), ctrl)

	ctx := metadata.AppendToOutgoingContext(context.Background(), requestIDMetadataKey, "req-42")
	if err := client.RemoveBody(ctx, "oumuamua"); err != nil {
		t.Fatalf("RemoveBody(oumuamua): %v", err)
	}
	if got := ctrl.reqIDs[0]; got != "req-42" {
		t.Fatalf("request id = %q, want req-42", got)
	}

	tests := []struct {
		id   string
		code codes.Code
	}{
		{id: "oumuamua", code: codes.NotFound},
		{id: "earth", code: codes.FailedPrecondition},
		{id: "", code: codes.InvalidArgument},
	}
	for _, tc := range tests {
		err := client.RemoveBody(context.Background(), tc.id)
		if code := status.Code(err); code != tc.code {
			t.Fatalf("RemoveBody(%q) code = %v, want %v", tc.id, code, tc.code)
		}
	}
}

func TestResetSwarmAndBodyPath(t *testing.T) {
	ctrl := newFakeController("earth")
	client := startFeed(t, NewHub(), ctrl)
	ctx := context.Background()

	if err := client.ResetSwarm(ctx, ""); err != nil {
		t.Fatalf("ResetSwarm: %v", err)
	}
	if err := client.ResetSwarm(ctx, "earth"); err != nil {
		t.Fatalf("ResetSwarm(earth): %v", err)
	}
	if err := client.ResetSwarm(ctx, "ghost"); status.Code(err) != codes.NotFound {
		t.Fatalf("ResetSwarm(ghost) code = %v, want %v", status.Code(err), codes.NotFound)
	}
	if len(ctrl.resets) != 2 || ctrl.resets[1] != "earth" {
		t.Fatalf("resets = %v, want [\"\" earth]", ctrl.resets)
	}

	path, err := client.GetBodyPath(ctx, "earth", 5)
	if err != nil {
		t.Fatalf("GetBodyPath: %v", err)
	}
	if got := len(path.GetFields()["points"].GetListValue().GetValues()); got != 5 {
		t.Fatalf("len(points) = %d, want 5", got)
	}
	if _, err := client.GetBodyPath(ctx, "earth", MaxPathSamples+1); status.Code(err) != codes.InvalidArgument {
		t.Fatalf("oversized GetBodyPath code = %v, want %v", status.Code(err), codes.InvalidArgument)
	}
}

func TestCommandsOnReadOnlyFeed(t *testing.T) {
	client := startFeed(t, NewHub(), nil)
	err := client.RemoveBody(context.Background(), "earth")
	if code := status.Code(err); code != codes.FailedPrecondition {
		t.Fatalf("RemoveBody code = %v, want %v", code, codes.FailedPrecondition)
	}
}

func TestGetContactPlan(t *testing.T) {
	client := startFeed(t, NewHub(), newFakeController("earth"))
	ctx := context.Background()

	out, err := client.GetContactPlan(ctx, 10, 0)
	if err != nil {
		t.Fatalf("GetContactPlan: %v", err)
	}
	if got := out.GetFields()["step"].GetNumberValue(); got != DefaultPlanStep {
		t.Fatalf("step = %v, want %v", got, DefaultPlanStep)
	}
	windows := out.GetFields()["windows"].GetListValue().GetValues()
	if len(windows) != 2 {
		t.Fatalf("windows = %d, want 2", len(windows))
	}
	first := windows[0].GetStructValue().GetFields()
	if id := first["station_id"].GetStringValue(); id != "gs-a" {
		t.Fatalf("first window station = %q, want gs-a", id)
	}
	last := windows[1].GetStructValue().GetFields()
	if !last["open"].GetBoolValue() || last["end"].GetNumberValue() != 10 {
		t.Fatalf("last window = %v, want open until 10", last)
	}

	if _, err := client.GetContactPlan(ctx, 0, 0); status.Code(err) != codes.InvalidArgument {
		t.Fatalf("zero horizon code = %v, want %v", status.Code(err), codes.InvalidArgument)
	}
	if _, err := client.GetContactPlan(ctx, 1, 5); status.Code(err) != codes.InvalidArgument {
		t.Fatalf("step > horizon code = %v, want %v", status.Code(err), codes.InvalidArgument)
	}
}
