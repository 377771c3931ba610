package proto

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const (
	ServiceName = "tetrion.Sessions"

	openMethod    = "/" + ServiceName + "/Open"
	commandMethod = "/" + ServiceName + "/Command"
	closeMethod   = "/" + ServiceName + "/Close"
	watchMethod   = "/" + ServiceName + "/Watch"
)

// SessionsServer hosts single player sessions for remote clients.
type SessionsServer interface {
	// Open creates an idle session and returns its id.
	Open(context.Context, *emptypb.Empty) (*wrapperspb.StringValue, error)
	// Command forwards a Command struct to its session.
	Command(context.Context, *structpb.Struct) (*emptypb.Empty, error)
	// Close ends the session with the given id.
	Close(context.Context, *wrapperspb.StringValue) (*emptypb.Empty, error)
	// Watch streams the View of the session with the given id.
	Watch(*wrapperspb.StringValue, grpc.ServerStreamingServer[structpb.Struct]) error
}

func RegisterSessionsServer(s grpc.ServiceRegistrar, srv SessionsServer) {
	s.RegisterService(&sessionsServiceDesc, srv)
}

var sessionsServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*SessionsServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Open", Handler: openHandler},
		{MethodName: "Command", Handler: commandHandler},
		{MethodName: "Close", Handler: closeHandler},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "Watch", Handler: watchHandler, ServerStreams: true},
	},
}

func openHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SessionsServer).Open(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: openMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(SessionsServer).Open(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func commandHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SessionsServer).Command(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: commandMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(SessionsServer).Command(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func closeHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SessionsServer).Close(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: closeMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(SessionsServer).Close(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

func watchHandler(srv any, stream grpc.ServerStream) error {
	in := new(wrapperspb.StringValue)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(SessionsServer).Watch(in, &grpc.GenericServerStream[wrapperspb.StringValue, structpb.Struct]{ServerStream: stream})
}

type SessionsClient interface {
	Open(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*wrapperspb.StringValue, error)
	Command(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*emptypb.Empty, error)
	Close(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*emptypb.Empty, error)
	Watch(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (grpc.ServerStreamingClient[structpb.Struct], error)
}

type sessionsClient struct {
	cc grpc.ClientConnInterface
}

func NewSessionsClient(cc grpc.ClientConnInterface) SessionsClient {
	return &sessionsClient{cc: cc}
}

func (c *sessionsClient) Open(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*wrapperspb.StringValue, error) {
	out := new(wrapperspb.StringValue)
	if err := c.cc.Invoke(ctx, openMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *sessionsClient) Command(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*emptypb.Empty, error) {
	out := new(emptypb.Empty)
	if err := c.cc.Invoke(ctx, commandMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *sessionsClient) Close(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*emptypb.Empty, error) {
	out := new(emptypb.Empty)
	if err := c.cc.Invoke(ctx, closeMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *sessionsClient) Watch(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (grpc.ServerStreamingClient[structpb.Struct], error) {
	stream, err := c.cc.NewStream(ctx, &sessionsServiceDesc.Streams[0], watchMethod, opts...)
	if err != nil {
		return nil, err
	}
	x := &grpc.GenericClientStream[wrapperspb.StringValue, structpb.Struct]{ClientStream: stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}
