package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"tetrion/client"
	"tetrion/input"
	"tetrion/tetris"
	"time"

	"golang.org/x/term"
)

func main() {
	keys := flag.String("keys", "", "key bindings as control=key pairs, e.g. left=ArrowLeft,right=ArrowRight")
	addr := flag.String("addr", "", "play on a tetrion server at this address instead of locally")
	logFile := flag.String("log", "", "write logs to this file")
	debug := flag.Bool("debug", false, "log debug messages")
	bag := flag.Bool("bag", false, "draw pieces from a shuffled bag of seven")
	flag.Parse()

	if !term.IsTerminal(int(os.Stdin.Fd())) {
		log.Fatal("tetrion needs an interactive terminal")
	}

	bindings, err := input.Parse(*keys)
	if err != nil {
		log.Fatalf("invalid key bindings: %v", err)
	}

	var w io.Writer = io.Discard
	if *logFile != "" {
		f, err := os.OpenFile(*logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			log.Fatalf("unable to open log file: %v", err)
		}
		defer f.Close()
		w = f
	}
	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))

	backend, err := newBackend(*addr, *bag, logger)
	if err != nil {
		log.Fatal(err)
	}

	c, err := client.New(&client.Options{
		Writer:   os.Stdout,
		Logger:   logger,
		Backend:  backend,
		Bindings: bindings,
	})
	if err != nil {
		backend.Stop()
		log.Fatalf("unable to start client: %v", err)
	}
	c.Start()
}

func newBackend(addr string, bag bool, l *slog.Logger) (client.Backend, error) {
	if addr == "" {
		o := &tetris.Options{Logger: l}
		if bag {
			o.Drawer = tetris.NewBag(uint64(time.Now().UnixNano()))
		}
		return tetris.NewGame(o), nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	r, err := client.Dial(ctx, addr, l)
	if err != nil {
		return nil, fmt.Errorf("unable to reach %s: %w", addr, err)
	}
	return r, nil
}
