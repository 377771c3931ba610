package tetris

import "fmt"

// Spawn location of every new piece.
const (
	SpawnRow = 0
	SpawnCol = 3
)

// Board is the grid plus the falling piece. It is a value: Reduce never
// changes the Board it receives, it returns a new one.
type Board struct {
	Grid   Grid
	Shape  Shape
	Matrix Matrix
	Row    int
	Col    int
}

// Action is a transition of the board state machine. The set of actions is
// closed: Start, Drop, Commit and Move.
type Action interface {
	action()
}

// Start resets the grid and spawns Shape in its base orientation.
type Start struct {
	Shape Shape
}

// Drop moves the piece one row down. It doesn't check for collisions, the
// caller decides when a drop is legal.
type Drop struct{}

// Commit replaces the grid with the post-lock Grid and spawns Shape.
// A Grid shorter than Height is padded with empty rows on top.
type Commit struct {
	Grid  Grid
	Shape Shape
}

// Move rotates and/or shifts the piece one column. If both Left and Right
// are set Right wins, if both rotations are set RotateClockwise wins.
type Move struct {
	RotateClockwise     bool
	RotateAnticlockwise bool
	Left                bool
	Right               bool
}

func (Start) action()  {}
func (Drop) action()   {}
func (Commit) action() {}
func (Move) action()   {}

// Reduce applies a to b and returns the new board.
// It panics on an unknown action.
func Reduce(b Board, a Action) Board {
	switch a := a.(type) {
	case Start:
		return spawn(NewGrid(Height), a.Shape)
	case Drop:
		b.Row++
		return b
	case Commit:
		return spawn(pad(a.Grid), a.Shape)
	case Move:
		return move(b, a)
	default:
		panic(fmt.Sprintf("tetris: unhandled action %T", a))
	}
}

func spawn(g Grid, s Shape) Board {
	return Board{
		Grid:   g,
		Shape:  s,
		Matrix: s.Matrix(),
		Row:    SpawnRow,
		Col:    SpawnCol,
	}
}

func pad(g Grid) Grid {
	if len(g) > Height {
		panic(fmt.Sprintf("tetris: committed grid has %d rows, max is %d", len(g), Height))
	}
	for i, r := range g {
		if len(r) != Width {
			panic(fmt.Sprintf("tetris: committed grid row %d has %d cells, want %d", i, len(r), Width))
		}
	}
	return append(NewGrid(Height-len(g)), g...)
}

func move(b Board, m Move) Board {
	matrix := b.Matrix
	switch {
	case m.RotateClockwise:
		matrix = RotateClockwise(b.Matrix)
	case m.RotateAnticlockwise:
		matrix = RotateAnticlockwise(b.Matrix)
	}

	offset := 0
	if m.Left {
		offset = -1
	}
	if m.Right {
		offset = 1
	}

	if HasCollision(b.Grid, matrix, b.Row, b.Col+offset) {
		return b
	}
	b.Matrix = matrix
	b.Col += offset
	return b
}
