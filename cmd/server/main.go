package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"tetrion/proto"
	"tetrion/server"
	"tetrion/tetris"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
	"google.golang.org/grpc"
)

func main() {
	grpcAddr := flag.String("grpc", ":9000", "gRPC listen address")
	httpAddr := flag.String("http", ":8080", "HTTP listen address")
	limit := flag.Float64("limit", 50, "commands per second a session accepts")
	burst := flag.Int("burst", 20, "command burst a session accepts")
	bag := flag.Bool("bag", false, "draw pieces from a shuffled bag of seven")
	debug := flag.Bool("debug", false, "log debug messages")
	flag.Parse()

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	hub := server.NewHub(&server.Options{
		Logger: logger,
		Limit:  rate.Limit(*limit),
		Burst:  *burst,
		NewGame: func() *tetris.Game {
			o := &tetris.Options{Logger: logger}
			if *bag {
				o.Drawer = tetris.NewBag(uint64(time.Now().UnixNano()))
			}
			return tetris.NewGame(o)
		},
	})

	lis, err := net.Listen("tcp", *grpcAddr)
	if err != nil {
		logger.Error("failed to listen", slog.String("addr", *grpcAddr), slog.String("error", err.Error()))
		os.Exit(1)
	}
	s := grpc.NewServer()
	proto.RegisterSessionsServer(s, server.New(hub))

	gin.SetMode(gin.ReleaseMode)
	h := &http.Server{Addr: *httpAddr, Handler: server.NewHTTP(hub), ReadHeaderTimeout: 5 * time.Second}

	go func() {
		logger.Info("starting gRPC server", slog.String("addr", *grpcAddr))
		if err := s.Serve(lis); err != nil {
			logger.Error("failed to serve gRPC", slog.String("error", err.Error()))
		}
	}()
	go func() {
		logger.Info("starting HTTP server", slog.String("addr", *httpAddr))
		if err := h.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to serve HTTP", slog.String("error", err.Error()))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := h.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shut down HTTP", slog.String("error", err.Error()))
	}
	// watch streams only end with their sessions.
	hub.CloseAll()
	s.GracefulStop()
}
