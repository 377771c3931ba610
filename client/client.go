// Package client is the terminal front end. It turns keyboard events into
// game controls and renders every View it gets back.
package client

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"tetrion/input"
	"tetrion/tetris"
	"time"

	"github.com/eiannone/keyboard"
)

// DefaultReleaseAfter is how long a held control survives without the
// terminal repeating its key.
const DefaultReleaseAfter = 600 * time.Millisecond

// Backend runs the game the client plays. Both *tetris.Game and *Remote
// satisfy it.
type Backend interface {
	Start()
	Press(tetris.Control)
	Release(tetris.Control)
	Updates() <-chan tetris.View
	Stop()
}

type renderer interface {
	game(tetris.View)
	lobby(message)
}

type Options struct {
	Writer   io.Writer
	Logger   *slog.Logger
	Backend  Backend
	Bindings input.Bindings
	// Keys replaces the keyboard, mostly for tests.
	Keys <-chan keyboard.KeyEvent
	// ReleaseAfter is the release window of held controls, DefaultReleaseAfter
	// if zero.
	ReleaseAfter time.Duration
}

type Client struct {
	backend      Backend
	render       renderer
	bindings     input.Bindings
	logger       *slog.Logger
	writer       io.Writer
	kbCh         <-chan keyboard.KeyEvent
	ownKeyboard  bool
	lobby        atomic.Bool
	releaseAfter time.Duration

	mu     sync.Mutex
	held   map[tetris.Control]*time.Timer
	doneCh chan struct{}
}

func New(o *Options) (*Client, error) {
	if o.Backend == nil {
		return nil, errors.New("missing backend")
	}
	c := &Client{
		backend:      o.Backend,
		bindings:     o.Bindings,
		logger:       o.Logger,
		writer:       o.Writer,
		kbCh:         o.Keys,
		releaseAfter: o.ReleaseAfter,
		held:         make(map[tetris.Control]*time.Timer),
		doneCh:       make(chan struct{}),
	}
	if c.logger == nil {
		c.logger = slog.New(slog.DiscardHandler)
	}
	if c.writer == nil {
		c.writer = os.Stdout
	}
	if c.releaseAfter == 0 {
		c.releaseAfter = DefaultReleaseAfter
	}
	r, err := newRender(c.writer, c.logger, c.bindings.Keys())
	if err != nil {
		return nil, fmt.Errorf("failed to load renderer: %w", err)
	}
	c.render = r
	if c.kbCh == nil {
		kb, err := keyboard.GetKeys(20)
		if err != nil {
			return nil, fmt.Errorf("failed to open keyboard: %w", err)
		}
		c.kbCh = kb
		c.ownKeyboard = true
	}
	c.lobby.Store(true)
	return c, nil
}

// Start shows the lobby and blocks until the player quits.
func (c *Client) Start() {
	fmt.Fprint(c.writer, hideCursor)
	defer fmt.Fprint(c.writer, showCursor)
	defer c.close()

	c.render.game(tetris.View{Grid: tetris.NewGrid(tetris.Height)})
	c.render.lobby(welcome())
	go c.listenUpdates()
	c.listenKB()
}

func (c *Client) close() {
	close(c.doneCh)
	c.mu.Lock()
	for _, t := range c.held {
		t.Stop()
	}
	c.mu.Unlock()
	c.backend.Stop()
	if c.ownKeyboard {
		if err := keyboard.Close(); err != nil {
			c.logger.Error("unable to close keyboard", slog.String("error", err.Error()))
		}
	}
}

func (c *Client) listenKB() {
	for {
		event, ok := <-c.kbCh
		if !ok {
			c.logger.Error("keyboard events channel closed unexpectedly")
			return
		}
		if event.Err != nil {
			c.logger.Error("keyboard event error", slog.String("error", event.Err.Error()))
			return
		}
		if event.Key == keyboard.KeyCtrlC {
			return
		}
		if c.lobby.Load() {
			switch event.Rune {
			case 'p':
				c.lobby.Store(false)
				// clear the screen after the lobby
				fmt.Fprint(c.writer, clearPos)
				c.backend.Start()
			case 'q':
				return
			}
			continue
		}
		key := Symbol(event)
		ctl, ok := c.bindings.Control(key)
		if !ok {
			c.logger.Debug("unbound key", slog.String("key", key))
			continue
		}
		c.control(ctl)
	}
}

// holdable controls stay down while their key repeats.
var holdable = map[tetris.Control]bool{
	tetris.Left:     true,
	tetris.Right:    true,
	tetris.SoftDrop: true,
}

// control forwards a key press. Terminals have no key up events: a holdable
// control is released once its key stops repeating for the release window,
// everything else is a tap.
func (c *Client) control(ctl tetris.Control) {
	if !holdable[ctl] {
		c.backend.Press(ctl)
		c.backend.Release(ctl)
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if t, ok := c.held[ctl]; ok && t.Stop() {
		// terminal key repeat, the control is still down.
		t.Reset(c.releaseAfter)
		return
	}
	c.backend.Press(ctl)
	c.held[ctl] = time.AfterFunc(c.releaseAfter, func() { c.backend.Release(ctl) })
}

func (c *Client) listenUpdates() {
	for {
		select {
		case v := <-c.backend.Updates():
			if c.lobby.Load() {
				continue
			}
			c.render.game(v)
			if v.State == tetris.GameOver {
				c.lobby.Store(true)
				c.render.lobby(gameOver(v))
			}
		case <-c.doneCh:
			return
		}
	}
}

var keyNames = map[keyboard.Key]string{
	keyboard.KeyArrowLeft:  "ArrowLeft",
	keyboard.KeyArrowRight: "ArrowRight",
	keyboard.KeyArrowUp:    "ArrowUp",
	keyboard.KeyArrowDown:  "ArrowDown",
	keyboard.KeySpace:      "Space",
	keyboard.KeyTab:        "Tab",
	keyboard.KeyEnter:      "Enter",
	keyboard.KeyEsc:        "Escape",
	keyboard.KeyBackspace:  "Backspace",
}

// Symbol names a keyboard event the way key bindings do: the character for
// printable keys, a name like "ArrowLeft" or "Tab" for the rest.
func Symbol(e keyboard.KeyEvent) string {
	if n, ok := keyNames[e.Key]; ok {
		return n
	}
	if e.Rune != 0 {
		return string(e.Rune)
	}
	return fmt.Sprintf("Key%d", e.Key)
}
