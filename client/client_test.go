package client

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"tetrion/input"
	"tetrion/tetris"
	"time"

	"github.com/eiannone/keyboard"
	"github.com/stretchr/testify/assert"
)

type mockBackend struct {
	updateCh chan tetris.View
	mu       sync.Mutex
	calls    []string
}

func (m *mockBackend) record(s string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, s)
}

func (m *mockBackend) Start()                      { m.record("start") }
func (m *mockBackend) Press(c tetris.Control)      { m.record(fmt.Sprintf("press %s", c)) }
func (m *mockBackend) Release(c tetris.Control)    { m.record(fmt.Sprintf("release %s", c)) }
func (m *mockBackend) Updates() <-chan tetris.View { return m.updateCh }
func (m *mockBackend) Stop()                       { m.record("stop") }

func (m *mockBackend) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// Calls returns the recorded calls and forgets them.
func (m *mockBackend) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.calls
	m.calls = nil
	return c
}

type mockRender struct {
	mu         sync.Mutex
	gameCount  int
	lobbyCount int
}

func (m *mockRender) game(tetris.View) { m.mu.Lock(); m.gameCount++; m.mu.Unlock() }
func (m *mockRender) lobby(message)    { m.mu.Lock(); m.lobbyCount++; m.mu.Unlock() }

func (m *mockRender) counts() (int, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gameCount, m.lobbyCount
}

func TestClient(t *testing.T) {
	render := &mockRender{}
	backend := &mockBackend{updateCh: make(chan tetris.View)}
	kCh := make(chan keyboard.KeyEvent)
	cl := &Client{
		backend:      backend,
		render:       render,
		bindings:     input.Default(),
		logger:       slog.New(slog.DiscardHandler),
		writer:       io.Discard,
		kbCh:         kCh,
		releaseAfter: 200 * time.Millisecond,
		held:         make(map[tetris.Control]*time.Timer),
		doneCh:       make(chan struct{}),
	}
	cl.lobby.Store(true)

	done := make(chan struct{})
	go func() { cl.Start(); close(done) }()

	wantCalls := func(want ...string) {
		t.Helper()
		var got []string
		assert.Eventually(t, func() bool {
			got = append(got, backend.Calls()...)
			return len(got) >= len(want)
		}, time.Second, 5*time.Millisecond, "wanted calls %v", want)
		assert.Equal(t, want, got)
	}

	// game keys do nothing in the lobby.
	kCh <- keyboard.KeyEvent{Rune: 'a'}
	kCh <- keyboard.KeyEvent{Rune: 'p'}
	wantCalls("start")
	if cl.lobby.Load() {
		t.Errorf("wanted lobby to be false after 'p' key press")
	}

	t.Run("keys are tapped", func(t *testing.T) {
		tests := []struct {
			key     keyboard.KeyEvent
			control tetris.Control
		}{
			{key: keyboard.KeyEvent{Rune: 's'}, control: tetris.HardDrop},
			{key: keyboard.KeyEvent{Key: keyboard.KeyTab}, control: tetris.Hold},
			{key: keyboard.KeyEvent{Rune: 'l'}, control: tetris.RotateCW},
			{key: keyboard.KeyEvent{Rune: 'j'}, control: tetris.RotateCCW},
		}
		for _, tt := range tests {
			kCh <- tt.key
			wantCalls(fmt.Sprintf("press %s", tt.control), fmt.Sprintf("release %s", tt.control))
		}
	})

	t.Run("unbound keys are ignored", func(t *testing.T) {
		kCh <- keyboard.KeyEvent{Rune: 'x'}
		kCh <- keyboard.KeyEvent{Rune: 's'}
		wantCalls("press harddrop", "release harddrop")
	})

	t.Run("movement and soft drop are held while the key repeats", func(t *testing.T) {
		for _, k := range []rune{'a', 'd', 'w'} {
			kCh <- keyboard.KeyEvent{Rune: k}
			kCh <- keyboard.KeyEvent{Rune: k}
			kCh <- keyboard.KeyEvent{Rune: k}
		}
		var got []string
		assert.Eventually(t, func() bool {
			got = append(got, backend.Calls()...)
			return len(got) >= 6
		}, time.Second, 5*time.Millisecond)
		assert.ElementsMatch(t, []string{
			"press left", "release left",
			"press right", "release right",
			"press softdrop", "release softdrop",
		}, got)
	})

	// game over renders the view and goes back to the lobby.
	backend.updateCh <- tetris.View{Grid: tetris.NewGrid(tetris.Height)}
	backend.updateCh <- tetris.View{Grid: tetris.NewGrid(tetris.Height), State: tetris.GameOver}
	assert.Eventually(t, func() bool { return cl.lobby.Load() }, time.Second, 5*time.Millisecond)
	games, lobbies := render.counts()
	if games != 3 {
		t.Errorf("wanted render.game() to be called 3 times, got %d", games)
	}
	if lobbies != 2 {
		t.Errorf("wanted render.lobby() to be called 2 times, got %d", lobbies)
	}

	// 'q' quits from the lobby.
	kCh <- keyboard.KeyEvent{Rune: 'q'}
	select {
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for quit")
	case <-done:
	}
	wantCalls("stop")
}

func TestClientHeldControl(t *testing.T) {
	backend := &mockBackend{updateCh: make(chan tetris.View)}
	cl := &Client{
		backend:      backend,
		logger:       slog.New(slog.DiscardHandler),
		releaseAfter: 100 * time.Millisecond,
		held:         make(map[tetris.Control]*time.Timer),
		doneCh:       make(chan struct{}),
	}

	// a held key repeats faster than the release window.
	for range 3 {
		cl.control(tetris.Left)
		time.Sleep(20 * time.Millisecond)
	}
	assert.Equal(t, []string{"press left"}, backend.Calls(), "repeats only extend the window")

	assert.Eventually(t, func() bool { return backend.count() > 0 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"release left"}, backend.Calls())

	// pressing again after the release starts a new hold.
	cl.control(tetris.Left)
	assert.Equal(t, []string{"press left"}, backend.Calls())
	cl.close()
}

func TestClientCtrlC(t *testing.T) {
	backend := &mockBackend{updateCh: make(chan tetris.View)}
	kCh := make(chan keyboard.KeyEvent)
	cl, err := New(&Options{
		Writer:   io.Discard,
		Backend:  backend,
		Bindings: input.Default(),
		Keys:     kCh,
	})
	if err != nil {
		t.Fatalf("unable to create client: %v", err)
	}

	done := make(chan struct{})
	go func() { cl.Start(); close(done) }()
	kCh <- keyboard.KeyEvent{Rune: 'p'}
	kCh <- keyboard.KeyEvent{Key: keyboard.KeyCtrlC}
	select {
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for quit")
	case <-done:
	}
	assert.Equal(t, []string{"start", "stop"}, backend.Calls())
}

func TestSymbol(t *testing.T) {
	tests := []struct {
		event keyboard.KeyEvent
		want  string
	}{
		{event: keyboard.KeyEvent{Rune: 'a'}, want: "a"},
		{event: keyboard.KeyEvent{Rune: 'A'}, want: "A"},
		{event: keyboard.KeyEvent{Key: keyboard.KeyArrowLeft}, want: "ArrowLeft"},
		{event: keyboard.KeyEvent{Key: keyboard.KeySpace}, want: "Space"},
		{event: keyboard.KeyEvent{Key: keyboard.KeyTab}, want: "Tab"},
		{event: keyboard.KeyEvent{Key: keyboard.KeyF1}, want: fmt.Sprintf("Key%d", keyboard.KeyF1)},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			t.Parallel()
			if got := Symbol(tt.event); got != tt.want {
				t.Errorf("wanted %q, got %q", tt.want, got)
			}
		})
	}
}
