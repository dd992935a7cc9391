package feed

import (
	"context"
	"fmt"
	"math"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/signalsfoundry/intercept-engine/core"
	"github.com/signalsfoundry/intercept-engine/internal/logging"
)

const (
	// MaxPathSamples bounds GetBodyPath requests.
	MaxPathSamples = 4096
	// DefaultPlanStep is the sampling step used when a contact plan request
	// leaves it unset.
	DefaultPlanStep = 0.1
)

// Controller applies commands to the running engine. Implementations
// serialise commands with frame production.
type Controller interface {
	RemoveBody(ctx context.Context, bodyID string) error
	ResetSwarm(ctx context.Context, targetID string) error
	BodyPath(ctx context.Context, bodyID string, samples int) ([]core.Vec3, error)
	ContactPlan(ctx context.Context, horizon, step float64) (core.ContactPlan, error)
}

// Service implements FrameFeedServer on top of a Hub and a Controller.
type Service struct {
	hub  *Hub
	ctrl Controller
	log  logging.Logger
}

// NewService constructs a Service. ctrl may be nil for a read-only feed.
func NewService(hub *Hub, ctrl Controller, log logging.Logger) *Service {
	if log == nil {
		log = logging.Noop()
	}
	return &Service{hub: hub, ctrl: ctrl, log: log}
}

var _ FrameFeedServer = (*Service)(nil)

// GetFrame returns the latest published snapshot.
func (s *Service) GetFrame(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	snap := s.hub.Latest()
	if snap == nil {
		return nil, ToStatusError(ErrNoFrame)
	}
	out, err := EncodeSnapshot(snap)
	if err != nil {
		return nil, ToStatusError(err)
	}
	return out, nil
}

// WatchFrames sends the latest frame, if any, and then every new frame until
// the client goes away or the hub closes.
func (s *Service) WatchFrames(_ *emptypb.Empty, stream WatchFramesServer) error {
	ctx := stream.Context()
	log := s.logger(ctx)

	ch, cancel := s.hub.Subscribe()
	defer cancel()

	var lastFrame uint64
	sent := false
	send := func(snap *core.Snapshot) error {
		if sent && snap.Frame <= lastFrame {
			return nil
		}
		msg, err := EncodeSnapshot(snap)
		if err != nil {
			return ToStatusError(err)
		}
		if err := stream.Send(msg); err != nil {
			return err
		}
		lastFrame, sent = snap.Frame, true
		return nil
	}

	if snap := s.hub.Latest(); snap != nil {
		if err := send(snap); err != nil {
			return err
		}
	}

	log.Debug(ctx, "frame watcher attached")
	for {
		select {
		case <-ctx.Done():
			return nil
		case snap, ok := <-ch:
			if !ok {
				return nil
			}
			if err := send(snap); err != nil {
				log.Debug(ctx, "frame watcher send failed", logging.Err(err))
				return err
			}
		}
	}
}

// GetBodyPath samples a body's path at the current simulated time.
func (s *Service) GetBodyPath(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if err := s.ensureReady(); err != nil {
		return nil, err
	}
	id, err := requiredString(in, "body_id")
	if err != nil {
		return nil, ToStatusError(err)
	}
	samples, err := optionalInt(in, "samples")
	if err != nil {
		return nil, ToStatusError(err)
	}
	if samples > MaxPathSamples {
		return nil, status.Errorf(codes.InvalidArgument, "samples must be at most %d", MaxPathSamples)
	}

	ctx, span := StartChildSpan(ctx, "feed.GetBodyPath", id)
	defer span.End()

	pts, err := s.ctrl.BodyPath(ctx, id, samples)
	if err != nil {
		span.RecordError(err)
		return nil, ToStatusError(err)
	}
	out, err := EncodePath(id, pts)
	if err != nil {
		return nil, ToStatusError(err)
	}
	return out, nil
}

// RemoveBody removes a body from the running world.
func (s *Service) RemoveBody(ctx context.Context, in *structpb.Struct) (*emptypb.Empty, error) {
	if err := s.ensureReady(); err != nil {
		return nil, err
	}
	id, err := requiredString(in, "body_id")
	if err != nil {
		return nil, ToStatusError(err)
	}

	ctx, span := StartChildSpan(ctx, "feed.RemoveBody", id)
	defer span.End()

	if err := s.ctrl.RemoveBody(ctx, id); err != nil {
		span.RecordError(err)
		s.logger(ctx).Warn(ctx, "remove body rejected",
			logging.String("body_id", id),
			logging.Err(err),
		)
		return nil, ToStatusError(err)
	}
	return &emptypb.Empty{}, nil
}

// ResetSwarm restarts the swarm, optionally retargeting it first.
func (s *Service) ResetSwarm(ctx context.Context, in *structpb.Struct) (*emptypb.Empty, error) {
	if err := s.ensureReady(); err != nil {
		return nil, err
	}
	target, err := optionalString(in, "target_id")
	if err != nil {
		return nil, ToStatusError(err)
	}

	ctx, span := StartChildSpan(ctx, "feed.ResetSwarm", target)
	defer span.End()

	if err := s.ctrl.ResetSwarm(ctx, target); err != nil {
		span.RecordError(err)
		return nil, ToStatusError(err)
	}
	return &emptypb.Empty{}, nil
}

// GetContactPlan predicts station contact windows from the current
// simulated time.
func (s *Service) GetContactPlan(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if err := s.ensureReady(); err != nil {
		return nil, err
	}
	horizon, err := optionalFloat(in, "horizon")
	if err != nil {
		return nil, ToStatusError(err)
	}
	if horizon <= 0 {
		return nil, ToStatusError(fmt.Errorf("%w: horizon must be positive", ErrInvalidRequest))
	}
	step, err := optionalFloat(in, "step")
	if err != nil {
		return nil, ToStatusError(err)
	}
	if step == 0 {
		step = DefaultPlanStep
	}

	ctx, span := StartChildSpan(ctx, "feed.GetContactPlan", "")
	defer span.End()

	plan, err := s.ctrl.ContactPlan(ctx, horizon, step)
	if err != nil {
		span.RecordError(err)
		return nil, ToStatusError(err)
	}
	out, err := EncodeContactPlan(plan, horizon, step)
	if err != nil {
		return nil, ToStatusError(err)
	}
	return out, nil
}

func (s *Service) logger(ctx context.Context) logging.Logger {
	return logging.FromContext(ctx, s.log)
}

func (s *Service) ensureReady() error {
	if s == nil || s.ctrl == nil {
		return status.Error(codes.FailedPrecondition, "feed is read-only")
	}
	return nil
}

func requiredString(in *structpb.Struct, key string) (string, error) {
	v, err := optionalString(in, key)
	if err != nil {
		return "", err
	}
	if v == "" {
		return "", fmt.Errorf("%w: %s is required", ErrInvalidRequest, key)
	}
	return v, nil
}

func optionalString(in *structpb.Struct, key string) (string, error) {
	f, ok := in.GetFields()[key]
	if !ok {
		return "", nil
	}
	sv, ok := f.GetKind().(*structpb.Value_StringValue)
	if !ok {
		return "", fmt.Errorf("%w: %s must be a string", ErrInvalidRequest, key)
	}
	return sv.StringValue, nil
}

func optionalFloat(in *structpb.Struct, key string) (float64, error) {
	f, ok := in.GetFields()[key]
	if !ok {
		return 0, nil
	}
	nv, ok := f.GetKind().(*structpb.Value_NumberValue)
	if !ok {
		return 0, fmt.Errorf("%w: %s must be a number", ErrInvalidRequest, key)
	}
	if math.IsNaN(nv.NumberValue) || math.IsInf(nv.NumberValue, 0) || nv.NumberValue < 0 {
		return 0, fmt.Errorf("%w: %s must be a finite non-negative number", ErrInvalidRequest, key)
	}
	return nv.NumberValue, nil
}

func optionalInt(in *structpb.Struct, key string) (int, error) {
	f, ok := in.GetFields()[key]
	if !ok {
		return 0, nil
	}
	nv, ok := f.GetKind().(*structpb.Value_NumberValue)
	if !ok {
		return 0, fmt.Errorf("%w: %s must be a number", ErrInvalidRequest, key)
	}
	n := nv.NumberValue
	if n < 0 || n != math.Trunc(n) || math.IsInf(n, 0) {
		return 0, fmt.Errorf("%w: %s must be a non-negative integer", ErrInvalidRequest, key)
	}
	return int(n), nil
}
