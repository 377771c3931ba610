package tetris

import "time"

// Tick intervals.
const (
	SpeedNormal  = 800 * time.Millisecond // first ramp baseline of a session
	SpeedSliding = 100 * time.Millisecond // lock delay
	SpeedFast    = 50 * time.Millisecond  // soft drop
	// SpeedHardDrop is as fast as the ticker allows, tickers need a positive period.
	SpeedHardDrop = time.Millisecond

	rampStep  = 30 * time.Millisecond
	rampFloor = 100 * time.Millisecond

	// QueueSize is the number of upcoming pieces the session looks ahead.
	QueueSize = 3
)

// State is the phase of a session.
type State int

const (
	Idle       State = iota // never started
	Playing                 // the piece falls with gravity
	Committing              // the piece is resting, it locks on the next tick
	GameOver                // a new piece could not spawn
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Playing:
		return "playing"
	case Committing:
		return "committing"
	case GameOver:
		return "game over"
	default:
		return "unknown"
	}
}

// View is the read model handed to renderers. It doesn't share memory with
// the session.
type View struct {
	// Grid is the full playfield with the falling piece merged in while
	// the session is playing.
	Grid Grid
	// Upcoming lists the next pieces front to back. The back is drawn next.
	Upcoming []Shape
	// Held is Empty when nothing is held.
	Held    Shape
	Score   int
	Lines   int
	Pieces  int
	State   State
	Playing bool
}

// Session is the game controller. It composes the board state machine with
// the score, the upcoming queue, the held piece and the tick interval.
// A Session is not safe for concurrent use, Game serializes the calls.
type Session struct {
	drawer Drawer

	board    Board
	state    State
	score    int
	lines    int
	pieces   int
	upcoming []Shape
	held     Shape
	canHold  bool
	tick     time.Duration
	ramp     time.Duration
}

func NewSession(d Drawer) *Session {
	return &Session{drawer: d, board: Board{Grid: NewGrid(Height)}}
}

// Start resets the session and spawns the first piece.
func (s *Session) Start() {
	s.upcoming = make([]Shape, QueueSize)
	for i := range s.upcoming {
		s.upcoming[i] = s.drawer.Draw()
	}
	s.held = Empty
	s.canHold = true
	s.score = 0
	s.lines = 0
	s.pieces = 0
	s.ramp = SpeedNormal
	s.tick = s.ramp
	s.state = Playing
	s.board = Reduce(s.board, Start{Shape: s.drawer.Draw()})
}

// Tick advances the session by one gravity step.
func (s *Session) Tick() {
	switch s.state {
	case Committing:
		s.commit()
	case Playing:
		if s.resting() {
			s.state = Committing
			s.tick = SpeedSliding
			return
		}
		s.board = Reduce(s.board, Drop{})
	}
}

// Move shifts and rotates the falling piece. It's a no-op if the result
// collides or the session isn't playing.
func (s *Session) Move(m Move) {
	if !s.active() {
		return
	}
	s.board = Reduce(s.board, m)
}

// Hold sets the falling piece aside. The first hold takes the replacement
// from the upcoming queue, later ones swap with the held piece. Only one
// hold is allowed per locked piece, Hold reports whether it happened.
func (s *Session) Hold() bool {
	if !s.active() || !s.canHold {
		return false
	}
	s.canHold = false

	next := s.held
	if next == Empty {
		next = s.next()
	}
	s.held = s.board.Shape
	s.board = Reduce(s.board, Commit{Grid: s.board.Grid, Shape: next})
	s.state = Playing
	s.spawned()
	return true
}

// SoftDrop speeds up gravity while on is true.
func (s *Session) SoftDrop(on bool) {
	if !s.active() {
		return
	}
	if on {
		s.tick = SpeedFast
		return
	}
	s.tick = s.ramp
}

// HardDrop makes the piece fall as fast as possible until it locks.
func (s *Session) HardDrop() {
	if !s.active() {
		return
	}
	s.tick = SpeedHardDrop
}

// Interval returns the current tick interval. ok is false when ticking is
// paused.
func (s *Session) Interval() (d time.Duration, ok bool) {
	if !s.active() {
		return 0, false
	}
	return s.tick, true
}

func (s *Session) State() State { return s.state }

// Playing reports whether a piece is falling, that is the state is Playing
// or Committing.
func (s *Session) Playing() bool { return s.active() }

func (s *Session) Board() Board { return s.board }

// View returns a snapshot of the session for rendering.
func (s *Session) View() View {
	g := s.board.Grid.Copy()
	if s.active() {
		g = Merge(s.board.Grid, s.board.Shape, s.board.Matrix, s.board.Row, s.board.Col)
	}
	upcoming := make([]Shape, len(s.upcoming))
	copy(upcoming, s.upcoming)
	return View{
		Grid:     g,
		Upcoming: upcoming,
		Held:     s.held,
		Score:    s.score,
		Lines:    s.lines,
		Pieces:   s.pieces,
		State:    s.state,
		Playing:  s.active(),
	}
}

func (s *Session) active() bool {
	return s.state == Playing || s.state == Committing
}

// resting reports whether the piece can't drop one more row.
func (s *Session) resting() bool {
	b := s.board
	return HasCollision(b.Grid, b.Matrix, b.Row+1, b.Col)
}

// commit runs the lock sequence once the lock delay has passed.
func (s *Session) commit() {
	if !s.resting() {
		// slid off the ledge during the lock delay.
		s.state = Playing
		s.tick = s.ramp
		return
	}

	b := s.board
	merged := Merge(b.Grid, b.Shape, b.Matrix, b.Row, b.Col)
	grid, cleared := ClearLines(merged)
	points := Points(cleared)

	s.board = Reduce(b, Commit{Grid: grid, Shape: s.next()})
	s.score += points
	s.lines += cleared
	s.pieces++
	s.canHold = true
	s.state = Playing
	s.spawned()

	s.ramp = max(s.ramp-rampStep, rampFloor)
}

// spawned ends the game if the new piece overlaps the grid, otherwise it
// resets the tick to the ramp baseline.
func (s *Session) spawned() {
	b := s.board
	if HasCollision(b.Grid, b.Matrix, b.Row, b.Col) {
		s.state = GameOver
		return
	}
	s.tick = s.ramp
}

// next pops the back of the upcoming queue and pushes a new draw to the front.
func (s *Session) next() Shape {
	n := len(s.upcoming) - 1
	shape := s.upcoming[n]
	upcoming := make([]Shape, 0, QueueSize)
	upcoming = append(upcoming, s.drawer.Draw())
	upcoming = append(upcoming, s.upcoming[:n]...)
	s.upcoming = upcoming
	return shape
}
