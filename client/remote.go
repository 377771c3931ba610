package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"tetrion/proto"
	"tetrion/tetris"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const commandTimeout = 2 * time.Second

// Remote plays a session hosted by a tetrion server.
type Remote struct {
	logger *slog.Logger
	conn   *grpc.ClientConn
	client proto.SessionsClient
	id     string

	updateCh chan tetris.View
	cancel   context.CancelFunc
	stopOnce sync.Once
}

// Dial connects to the server at addr and opens a session.
func Dial(ctx context.Context, addr string, l *slog.Logger, opts ...grpc.DialOption) (*Remote, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to create gRPC client: %w", err)
	}
	r, err := NewRemote(ctx, proto.NewSessionsClient(conn), l)
	if err != nil {
		conn.Close()
		return nil, err
	}
	r.conn = conn
	return r, nil
}

// NewRemote opens a session with c and starts watching it.
func NewRemote(ctx context.Context, c proto.SessionsClient, l *slog.Logger) (*Remote, error) {
	if l == nil {
		l = slog.New(slog.DiscardHandler)
	}
	id, err := c.Open(ctx, &emptypb.Empty{})
	if err != nil {
		return nil, fmt.Errorf("unable to open session: %w", err)
	}
	watchCtx, cancel := context.WithCancel(context.Background())
	stream, err := c.Watch(watchCtx, id)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("unable to watch session: %w", err)
	}
	r := &Remote{
		logger:   l.With(slog.String("session", id.GetValue())),
		client:   c,
		id:       id.GetValue(),
		updateCh: make(chan tetris.View, 1),
		cancel:   cancel,
	}
	go r.watch(stream)
	return r, nil
}

// ID is the id of the hosted session.
func (r *Remote) ID() string { return r.id }

func (r *Remote) Start()                   { r.command(proto.OpStart, "") }
func (r *Remote) Press(c tetris.Control)   { r.command(proto.OpPress, c) }
func (r *Remote) Release(c tetris.Control) { r.command(proto.OpRelease, c) }

func (r *Remote) Updates() <-chan tetris.View { return r.updateCh }

// Stop closes the hosted session and the connection.
func (r *Remote) Stop() {
	r.stopOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()
		if _, err := r.client.Close(ctx, wrapperspb.String(r.id)); err != nil {
			r.logger.Error("unable to close session", slog.String("error", err.Error()))
		}
		r.cancel()
		if r.conn != nil {
			if err := r.conn.Close(); err != nil {
				r.logger.Error("unable to close gRPC client", slog.String("error", err.Error()))
			}
		}
	})
}

func (r *Remote) command(op string, c tetris.Control) {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	cmd := proto.Command{Session: r.id, Op: op, Control: c}
	_, err := r.client.Command(ctx, cmd.Struct())
	if err == nil {
		return
	}
	if status.Code(err) == codes.ResourceExhausted {
		r.logger.Warn("command rate limited", slog.String("op", op), slog.String("control", string(c)))
		return
	}
	r.logger.Error("unable to send command", slog.String("op", op), slog.String("error", err.Error()))
}

func (r *Remote) watch(stream grpc.ServerStreamingClient[structpb.Struct]) {
	for {
		msg, err := stream.Recv()
		if err != nil {
			switch {
			case errors.Is(err, io.EOF):
				r.logger.Debug("watch closed with EOF")
			case status.Code(err) == codes.Canceled:
				r.logger.Debug("watch closed with Cancel")
			default:
				r.logger.Error("unable to receive view", slog.String("error", err.Error()))
			}
			return
		}
		v, err := proto.ViewFromStruct(msg)
		if err != nil {
			r.logger.Error("unable to decode view", slog.String("error", err.Error()))
			continue
		}
		r.publish(v)
	}
}

func (r *Remote) publish(v tetris.View) {
	select {
	case r.updateCh <- v:
		return
	default:
	}
	select {
	case <-r.updateCh:
	default:
	}
	select {
	case r.updateCh <- v:
	default:
	}
}
