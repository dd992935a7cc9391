package feed

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// Service and method names of the frame feed. Messages are well-known types
// so that clients need no generated code.
const (
	ServiceName = "intercept.feed.v1.FrameFeed"

	GetFrameMethod    = "/" + ServiceName + "/GetFrame"
	WatchFramesMethod = "/" + ServiceName + "/WatchFrames"
	GetBodyPathMethod = "/" + ServiceName + "/GetBodyPath"
	RemoveBodyMethod  = "/" + ServiceName + "/RemoveBody"
	ResetSwarmMethod  = "/" + ServiceName + "/ResetSwarm"

	GetContactPlanMethod = "/" + ServiceName + "/GetContactPlan"
)

// FrameFeedServer is the server API of the frame feed.
type FrameFeedServer interface {
	// GetFrame returns the latest snapshot.
	GetFrame(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	// WatchFrames streams snapshots as they are published.
	WatchFrames(*emptypb.Empty, WatchFramesServer) error
	// GetBodyPath samples a body's path; request fields body_id, samples.
	GetBodyPath(context.Context, *structpb.Struct) (*structpb.Struct, error)
	// RemoveBody removes a body; request field body_id.
	RemoveBody(context.Context, *structpb.Struct) (*emptypb.Empty, error)
	// ResetSwarm restarts pursuit; an optional target_id retargets first.
	ResetSwarm(context.Context, *structpb.Struct) (*emptypb.Empty, error)
	// GetContactPlan predicts station contact windows; request fields
	// horizon, step (simulated seconds).
	GetContactPlan(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// WatchFramesServer is the server side of a WatchFrames stream.
type WatchFramesServer interface {
	Send(*structpb.Struct) error
	grpc.ServerStream
}

type watchFramesServer struct {
	grpc.ServerStream
}

func (s *watchFramesServer) Send(m *structpb.Struct) error {
	return s.ServerStream.SendMsg(m)
}

// ServiceDesc describes the frame feed for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*FrameFeedServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetFrame", Handler: getFrameHandler},
		{MethodName: "GetBodyPath", Handler: getBodyPathHandler},
		{MethodName: "RemoveBody", Handler: removeBodyHandler},
		{MethodName: "ResetSwarm", Handler: resetSwarmHandler},
		{MethodName: "GetContactPlan", Handler: getContactPlanHandler},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "WatchFrames", Handler: watchFramesHandler, ServerStreams: true},
	},
}

// RegisterFrameFeedServer registers srv on s.
func RegisterFrameFeedServer(s grpc.ServiceRegistrar, srv FrameFeedServer) {
	s.RegisterService(&ServiceDesc, srv)
}

func getFrameHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(FrameFeedServer).GetFrame(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: GetFrameMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(FrameFeedServer).GetFrame(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func getBodyPathHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(FrameFeedServer).GetBodyPath(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: GetBodyPathMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(FrameFeedServer).GetBodyPath(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func removeBodyHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(FrameFeedServer).RemoveBody(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: RemoveBodyMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(FrameFeedServer).RemoveBody(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func resetSwarmHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(FrameFeedServer).ResetSwarm(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ResetSwarmMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(FrameFeedServer).ResetSwarm(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func getContactPlanHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(FrameFeedServer).GetContactPlan(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: GetContactPlanMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(FrameFeedServer).GetContactPlan(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func watchFramesHandler(srv interface{}, stream grpc.ServerStream) error {
	in := new(emptypb.Empty)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(FrameFeedServer).WatchFrames(in, &watchFramesServer{stream})
}

// FrameFeedClient is the client API of the frame feed.
type FrameFeedClient struct {
	cc grpc.ClientConnInterface
}

// NewFrameFeedClient wraps a client connection.
func NewFrameFeedClient(cc grpc.ClientConnInterface) *FrameFeedClient {
	return &FrameFeedClient{cc: cc}
}

func (c *FrameFeedClient) GetFrame(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, GetFrameMethod, &emptypb.Empty{}, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *FrameFeedClient) GetBodyPath(ctx context.Context, bodyID string, samples int, opts ...grpc.CallOption) (*structpb.Struct, error) {
	in, err := structpb.NewStruct(map[string]any{"body_id": bodyID, "samples": float64(samples)})
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, GetBodyPathMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *FrameFeedClient) RemoveBody(ctx context.Context, bodyID string, opts ...grpc.CallOption) error {
	in, err := structpb.NewStruct(map[string]any{"body_id": bodyID})
	if err != nil {
		return err
	}
	return c.cc.Invoke(ctx, RemoveBodyMethod, in, new(emptypb.Empty), opts...)
}

// ResetSwarm restarts pursuit, retargeting first when targetID is set.
func (c *FrameFeedClient) ResetSwarm(ctx context.Context, targetID string, opts ...grpc.CallOption) error {
	fields := map[string]any{}
	if targetID != "" {
		fields["target_id"] = targetID
	}
	in, err := structpb.NewStruct(fields)
	if err != nil {
		return err
	}
	return c.cc.Invoke(ctx, ResetSwarmMethod, in, new(emptypb.Empty), opts...)
}

// GetContactPlan predicts contact windows over horizon simulated seconds.
// A zero step lets the server choose.
func (c *FrameFeedClient) GetContactPlan(ctx context.Context, horizon, step float64, opts ...grpc.CallOption) (*structpb.Struct, error) {
	fields := map[string]any{"horizon": horizon}
	if step > 0 {
		fields["step"] = step
	}
	in, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, GetContactPlanMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// FrameStream receives snapshots from WatchFrames.
type FrameStream struct {
	grpc.ClientStream
}

func (s *FrameStream) Recv() (*structpb.Struct, error) {
	m := new(structpb.Struct)
	if err := s.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (c *FrameFeedClient) WatchFrames(ctx context.Context, opts ...grpc.CallOption) (*FrameStream, error) {
	stream, err := c.cc.NewStream(ctx, &ServiceDesc.Streams[0], WatchFramesMethod, opts...)
	if err != nil {
		return nil, err
	}
	if err := stream.SendMsg(&emptypb.Empty{}); err != nil {
		return nil, err
	}
	if err := stream.CloseSend(); err != nil {
		return nil, err
	}
	return &FrameStream{ClientStream: stream}, nil
}
