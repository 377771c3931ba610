package client

import (
	"context"
	"log"
	"net"
	"testing"
	"tetrion/proto"
	"tetrion/server"
	"tetrion/tetris"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/test/bufconn"
)

func testServer(t *testing.T) (*server.Hub, grpc.DialOption) {
	t.Helper()
	hub := server.NewHub(&server.Options{NewGame: func() *tetris.Game {
		g, _, _ := tetris.NewTestGame(tetris.I, tetris.J, tetris.L, tetris.T)
		return g
	}})
	lis := bufconn.Listen(1024 * 1024)
	s := grpc.NewServer()
	proto.RegisterSessionsServer(s, server.New(hub))
	go func() {
		if err := s.Serve(lis); err != nil {
			log.Printf("unable to serve: %v", err)
		}
	}()
	t.Cleanup(func() {
		s.Stop()
		hub.CloseAll()
	})
	return hub, grpc.WithContextDialer(func(context.Context, string) (net.Conn, error) {
		return lis.Dial()
	})
}

func nextView(t *testing.T, r *Remote, ok func(tetris.View) bool) tetris.View {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case v := <-r.Updates():
			if ok(v) {
				return v
			}
		case <-timeout:
			t.Fatal("timed out waiting for a view")
			return tetris.View{}
		}
	}
}

func TestRemote(t *testing.T) {
	hub, dialer := testServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	r, err := Dial(ctx, "passthrough:///bufnet", nil, dialer)
	require.NoError(t, err)
	assert.Equal(t, []string{r.ID()}, hub.IDs())

	r.Start()
	v := nextView(t, r, func(v tetris.View) bool { return v.Playing })
	assert.Equal(t, []tetris.Shape{tetris.I, tetris.J, tetris.L}, v.Upcoming)

	r.Press(tetris.Hold)
	r.Release(tetris.Hold)
	v = nextView(t, r, func(v tetris.View) bool { return v.Held != tetris.Empty })
	assert.Equal(t, tetris.T, v.Held)

	r.Stop()
	r.Stop()
	assert.Empty(t, hub.IDs())
}

func TestRemoteOpenFails(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// a server without the sessions service.
	lis := bufconn.Listen(1024 * 1024)
	s := grpc.NewServer()
	go s.Serve(lis) //nolint:errcheck
	defer s.Stop()

	_, err := Dial(ctx, "passthrough:///bufnet", nil, grpc.WithContextDialer(func(context.Context, string) (net.Conn, error) {
		return lis.Dial()
	}))
	assert.Error(t, err)
}
