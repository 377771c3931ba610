package server

import (
	"context"
	"errors"
	"fmt"
	"tetrion/proto"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

type sessionsServer struct {
	hub *Hub
}

// New returns the gRPC service for the sessions hosted in hub.
func New(hub *Hub) proto.SessionsServer {
	return &sessionsServer{hub: hub}
}

func (s *sessionsServer) Open(context.Context, *emptypb.Empty) (*wrapperspb.StringValue, error) {
	return wrapperspb.String(s.hub.Open()), nil
}

func (s *sessionsServer) Command(_ context.Context, in *structpb.Struct) (*emptypb.Empty, error) {
	c, err := proto.CommandFromStruct(in)
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "invalid command: %v", err)
	}
	if err := s.hub.Command(c); err != nil {
		return nil, statusError(err)
	}
	return &emptypb.Empty{}, nil
}

func (s *sessionsServer) Close(_ context.Context, in *wrapperspb.StringValue) (*emptypb.Empty, error) {
	if err := s.hub.Close(in.GetValue()); err != nil {
		return nil, statusError(err)
	}
	return &emptypb.Empty{}, nil
}

func (s *sessionsServer) Watch(in *wrapperspb.StringValue, stream grpc.ServerStreamingServer[structpb.Struct]) error {
	views, cancel, err := s.hub.Watch(in.GetValue())
	if err != nil {
		return statusError(err)
	}
	defer cancel()

	ctx := stream.Context()
	for {
		select {
		case v, ok := <-views:
			if !ok {
				return nil
			}
			if err := stream.Send(proto.ViewStruct(v)); err != nil {
				return fmt.Errorf("failed to send view: %w", err)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func statusError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, ErrRateLimited):
		return status.Error(codes.ResourceExhausted, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
