package tetris

import (
	"log/slog"
	"sync"
	"time"
)

// RepeatInterval is the auto-repeat period of a held left/right control.
const RepeatInterval = 300 * time.Millisecond

// Control is a player input understood by Game.
type Control string

const (
	Left      Control = "left"
	Right     Control = "right"
	RotateCW  Control = "rotatecw"
	RotateCCW Control = "rotateccw"
	SoftDrop  Control = "softdrop"
	HardDrop  Control = "harddrop"
	Hold      Control = "hold"
)

// Controls lists every Control.
var Controls = []Control{Left, Right, RotateCW, RotateCCW, SoftDrop, HardDrop, Hold}

type Ticker interface {
	C() <-chan time.Time
	Reset(time.Duration)
	Stop()
}

type wrappedTicker struct {
	ticker *time.Ticker
}

// newStoppedTicker returns a ticker that won't fire until Reset.
func newStoppedTicker() *wrappedTicker {
	t := time.NewTicker(time.Hour)
	t.Stop()
	return &wrappedTicker{ticker: t}
}

func (t *wrappedTicker) C() <-chan time.Time   { return t.ticker.C }
func (t *wrappedTicker) Stop()                 { t.ticker.Stop() }
func (t *wrappedTicker) Reset(d time.Duration) { t.ticker.Reset(d) }

type command int

const (
	cmdStart command = iota
	cmdPress
	cmdRelease
)

type input struct {
	cmd     command
	control Control
}

// Game runs a Session. Gravity ticks, movement repeats and player input
// are serialized on a single goroutine so no transition interleaves with
// another.
type Game struct {
	logger  *slog.Logger
	session *Session
	mu      sync.RWMutex

	ticker   Ticker // gravity
	repeat   Ticker // left/right auto-repeat
	interval time.Duration
	ticking  bool

	pressed map[Control]bool

	inputCh  chan input
	updateCh chan View
	doneCh   chan struct{}
	stopOnce sync.Once
}

type Options struct {
	Logger *slog.Logger
	Drawer Drawer
	// Ticker and Repeat replace the real tickers, mostly for tests.
	Ticker Ticker
	Repeat Ticker
}

// NewGame returns an idle game. Its loop runs until Stop.
func NewGame(o *Options) *Game {
	if o == nil {
		o = &Options{}
	}
	g := &Game{
		logger:   o.Logger,
		ticker:   o.Ticker,
		repeat:   o.Repeat,
		pressed:  make(map[Control]bool),
		inputCh:  make(chan input),
		updateCh: make(chan View, 1),
		doneCh:   make(chan struct{}),
	}
	if g.logger == nil {
		g.logger = slog.New(slog.DiscardHandler)
	}
	d := o.Drawer
	if d == nil {
		d = NewUniform(uint64(time.Now().UnixNano()))
	}
	g.session = NewSession(d)
	if g.ticker == nil {
		g.ticker = newStoppedTicker()
	}
	if g.repeat == nil {
		g.repeat = newStoppedTicker()
	}
	go g.listen()
	return g
}

// Start begins a new session, discarding the current one.
func (g *Game) Start() { g.send(input{cmd: cmdStart}) }

// Press reports a control going down.
func (g *Game) Press(c Control) { g.send(input{cmd: cmdPress, control: c}) }

// Release reports a control going up.
func (g *Game) Release(c Control) { g.send(input{cmd: cmdRelease, control: c}) }

// Updates returns the channel where a View is published after every
// transition. Only the latest View is kept if the reader falls behind.
func (g *Game) Updates() <-chan View { return g.updateCh }

// Stop ends the loop and both tickers. The Game can't be used afterwards.
func (g *Game) Stop() {
	g.stopOnce.Do(func() { close(g.doneCh) })
}

// Read returns a copy of the current session that's safe to use
// concurrently with the loop.
func (g *Game) Read() View {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.session.View()
}

func (g *Game) send(in input) {
	select {
	case g.inputCh <- in:
	case <-g.doneCh:
	}
}

func (g *Game) listen() {
	defer func() {
		g.ticker.Stop()
		g.repeat.Stop()
	}()
	for {
		select {
		case <-g.ticker.C():
			g.update(g.session.Tick)
		case <-g.repeat.C():
			g.update(func() { g.session.Move(g.heldMove()) })
		case in := <-g.inputCh:
			g.update(func() { g.handle(in) })
		case <-g.doneCh:
			return
		}
	}
}

// update runs fn under the lock, re-arms the gravity ticker if the interval
// changed and publishes the new View.
func (g *Game) update(fn func()) {
	g.mu.Lock()
	before := g.session.State()
	fn()
	after := g.session.State()
	g.syncTicker()
	v := g.session.View()
	g.mu.Unlock()

	if before != after {
		g.logger.Debug("session state changed", slog.String("from", before.String()), slog.String("to", after.String()))
		if after == GameOver {
			g.logger.Info("game over", slog.Int("score", v.Score), slog.Int("lines", v.Lines), slog.Int("pieces", v.Pieces))
		}
	}
	g.publish(v)
}

func (g *Game) publish(v View) {
	select {
	case g.updateCh <- v:
		return
	default:
	}
	// drop the stale view nobody read yet.
	select {
	case <-g.updateCh:
	default:
	}
	select {
	case g.updateCh <- v:
	default:
	}
}

// syncTicker makes the gravity ticker match the session interval. The
// ticker is always stopped before it's re-armed so no stale tick with the
// old interval is left pending.
func (g *Game) syncTicker() {
	d, ok := g.session.Interval()
	switch {
	case !ok && g.ticking:
		g.ticker.Stop()
		g.ticking = false
		g.stopRepeat()
	case ok && (!g.ticking || d != g.interval):
		g.ticker.Stop()
		g.ticker.Reset(d)
		g.ticking = true
		g.interval = d
	}
}

func (g *Game) handle(in input) {
	switch in.cmd {
	case cmdStart:
		g.stopRepeat()
		g.pressed = make(map[Control]bool)
		g.session.Start()
		g.ticking = false
		g.logger.Debug("session started")
	case cmdPress:
		if g.pressed[in.control] {
			// key repeat, only the first press edge counts.
			return
		}
		g.pressed[in.control] = true
		g.press(in.control)
	case cmdRelease:
		if !g.pressed[in.control] {
			return
		}
		delete(g.pressed, in.control)
		g.release(in.control)
	}
}

func (g *Game) press(c Control) {
	switch c {
	case Left, Right:
		g.updateMovement()
	case RotateCW:
		g.session.Move(Move{RotateClockwise: true})
	case RotateCCW:
		g.session.Move(Move{RotateAnticlockwise: true})
	case SoftDrop:
		g.session.SoftDrop(true)
	case HardDrop:
		g.session.HardDrop()
	case Hold:
		if g.session.Hold() {
			g.logger.Debug("piece held", slog.String("held", string(g.session.View().Held)))
		}
	default:
		g.logger.Warn("unknown control", slog.String("control", string(c)))
	}
}

func (g *Game) release(c Control) {
	switch c {
	case Left, Right:
		g.updateMovement()
	case SoftDrop:
		g.session.SoftDrop(false)
	}
}

// updateMovement moves the piece right away for the held left/right
// controls and re-arms the repeat ticker. The ticker is stopped first so a
// key transition never leaves two repeats pending.
func (g *Game) updateMovement() {
	g.stopRepeat()
	m := g.heldMove()
	if !m.Left && !m.Right || !g.session.Playing() {
		return
	}
	g.session.Move(m)
	g.repeat.Reset(RepeatInterval)
}

func (g *Game) stopRepeat() {
	g.repeat.Stop()
}

func (g *Game) heldMove() Move {
	return Move{Left: g.pressed[Left], Right: g.pressed[Right]}
}
