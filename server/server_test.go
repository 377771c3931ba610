package server

import (
	"context"
	"errors"
	"io"
	"log"
	"net"
	"testing"
	"tetrion/proto"
	"tetrion/tetris"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

func testGame() *tetris.Game {
	g, _, _ := tetris.NewTestGame(tetris.I, tetris.J, tetris.L, tetris.T)
	return g
}

func testServer(t *testing.T, o *Options) proto.SessionsClient {
	t.Helper()
	if o.NewGame == nil {
		o.NewGame = testGame
	}
	hub := NewHub(o)

	buffer := 1024 * 1024
	lis := bufconn.Listen(buffer)

	s := grpc.NewServer()
	proto.RegisterSessionsServer(s, New(hub))
	go func() {
		if err := s.Serve(lis); err != nil {
			log.Printf("unable to serve: %v", err)
		}
	}()

	conn, err := grpc.NewClient("passthrough:///bufnet", grpc.WithContextDialer(func(context.Context, string) (net.Conn, error) {
		return lis.Dial()
	}), grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)

	t.Cleanup(func() {
		conn.Close()
		s.Stop()
		hub.CloseAll()
	})
	return proto.NewSessionsClient(conn)
}

func command(id, op string, c tetris.Control) *structpb.Struct {
	return proto.Command{Session: id, Op: op, Control: c}.Struct()
}

func TestSessionsOpenAndWatch(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	client := testServer(t, &Options{})

	id, err := client.Open(ctx, &emptypb.Empty{})
	require.NoError(t, err)
	_, err = uuid.Parse(id.GetValue())
	assert.NoError(t, err, "session id should be a uuid")

	stream, err := client.Watch(ctx, id)
	require.NoError(t, err)

	_, err = client.Command(ctx, command(id.GetValue(), proto.OpStart, ""))
	require.NoError(t, err)

	// the first view may be the idle one, depending on when the watch lands.
	var v tetris.View
	for !v.Playing {
		msg, err := stream.Recv()
		require.NoError(t, err)
		v, err = proto.ViewFromStruct(msg)
		require.NoError(t, err)
	}
	assert.Equal(t, []tetris.Shape{tetris.I, tetris.J, tetris.L}, v.Upcoming)
	assert.Equal(t, tetris.Playing, v.State)

	_, err = client.Command(ctx, command(id.GetValue(), proto.OpPress, tetris.Hold))
	require.NoError(t, err)
	msg, err := stream.Recv()
	require.NoError(t, err)
	v, err = proto.ViewFromStruct(msg)
	require.NoError(t, err)
	assert.Equal(t, tetris.T, v.Held)
}

func TestSessionsCommandErrors(t *testing.T) {
	tests := []struct {
		name     string
		command  func(id string) *structpb.Struct
		wantCode codes.Code
	}{
		{
			name:     "unknown session",
			command:  func(string) *structpb.Struct { return command(uuid.NewString(), proto.OpStart, "") },
			wantCode: codes.NotFound,
		},
		{
			name:     "unknown op",
			command:  func(id string) *structpb.Struct { return command(id, "pause", "") },
			wantCode: codes.InvalidArgument,
		},
		{
			name:     "unknown control",
			command:  func(id string) *structpb.Struct { return command(id, proto.OpPress, "jump") },
			wantCode: codes.InvalidArgument,
		},
		{
			name:     "empty struct",
			command:  func(string) *structpb.Struct { return &structpb.Struct{} },
			wantCode: codes.InvalidArgument,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			client := testServer(t, &Options{})
			id, err := client.Open(ctx, &emptypb.Empty{})
			require.NoError(t, err)

			_, err = client.Command(ctx, tt.command(id.GetValue()))
			assert.Equal(t, tt.wantCode, status.Code(err))
		})
	}
}

func TestSessionsRateLimit(t *testing.T) {
	ctx := context.Background()
	client := testServer(t, &Options{Limit: rate.Every(time.Hour), Burst: 2})
	id, err := client.Open(ctx, &emptypb.Empty{})
	require.NoError(t, err)

	for range 2 {
		_, err = client.Command(ctx, command(id.GetValue(), proto.OpStart, ""))
		require.NoError(t, err)
	}
	_, err = client.Command(ctx, command(id.GetValue(), proto.OpStart, ""))
	assert.Equal(t, codes.ResourceExhausted, status.Code(err))
}

func TestSessionsClose(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	client := testServer(t, &Options{})
	id, err := client.Open(ctx, &emptypb.Empty{})
	require.NoError(t, err)

	stream, err := client.Watch(ctx, id)
	require.NoError(t, err)
	_, err = stream.Recv()
	require.NoError(t, err)

	_, err = client.Close(ctx, id)
	require.NoError(t, err)

	_, err = stream.Recv()
	assert.True(t, errors.Is(err, io.EOF), "wanted the watch to end, got %v", err)

	_, err = client.Close(ctx, id)
	assert.Equal(t, codes.NotFound, status.Code(err))
}

func TestSessionsWatchUnknown(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	client := testServer(t, &Options{})

	stream, err := client.Watch(ctx, wrapperspb.String(uuid.NewString()))
	require.NoError(t, err)
	_, err = stream.Recv()
	assert.Equal(t, codes.NotFound, status.Code(err))
}
