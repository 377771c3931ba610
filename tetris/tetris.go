// Package tetris contains the simulation core of the game: the grid, the
// piece catalog, collision and rotation, the board state machine and the
// session controller that drives it.
package tetris

import "fmt"

const (
	Width  = 10
	Height = 20
)

// Grid is the playfield. Rows are 0 > 19 top to bottom, columns are 0 > 9
// left to right. An Empty cell holds no block, any other value is the
// shape of the piece that was locked there.
type Grid [][]Shape

// NewGrid returns an all Empty grid with the given number of rows.
func NewGrid(height int) Grid {
	g := make(Grid, height)
	for i := range g {
		g[i] = make([]Shape, Width)
	}
	return g
}

// Copy returns a deep copy of the grid. No row is shared with g.
func (g Grid) Copy() Grid {
	if g == nil {
		return nil
	}
	c := make(Grid, len(g))
	for i := range g {
		c[i] = make([]Shape, len(g[i]))
		copy(c[i], g[i])
	}
	return c
}

func (g Grid) isFull(row int) bool {
	for _, c := range g[row] {
		if c == Empty {
			return false
		}
	}
	return true
}

// HasCollision reports whether matrix placed with its top-left corner at
// row, col overlaps a block or falls out of the grid.
//
// Rows of the matrix without any occupied cell are skipped and don't count
// toward the row offset, so a matrix like
//
//	. . .
//	. X .
//	X X X
//
// is probed as if its first occupied row were at row.
func HasCollision(g Grid, m Matrix, row, col int) bool {
	collision := false
	forEachCell(m, func(r, c int) {
		y, x := row+r, col+c
		if y >= len(g) || x >= Width || x < 0 {
			collision = true
			return
		}
		if y < 0 {
			panic(fmt.Sprintf("tetris: collision probe above the grid at row %d", y))
		}
		if g[y][x] != Empty {
			collision = true
		}
	})
	return collision
}

// Merge returns a copy of g with the occupied cells of m written as shape
// at row, col. The same empty row filter as HasCollision applies.
func Merge(g Grid, shape Shape, m Matrix, row, col int) Grid {
	merged := g.Copy()
	forEachCell(m, func(r, c int) {
		merged[row+r][col+c] = shape
	})
	return merged
}

// ClearLines removes every full row and pads the grid back to Height with
// empty rows on top. It returns the new grid and the number of rows removed.
func ClearLines(g Grid) (Grid, int) {
	kept := make(Grid, 0, len(g))
	cleared := 0
	// bottom to top, so kept is built reversed.
	for row := len(g) - 1; row >= 0; row-- {
		if g.isFull(row) {
			cleared++
			continue
		}
		r := make([]Shape, len(g[row]))
		copy(r, g[row])
		kept = append(kept, r)
	}

	out := NewGrid(Height - len(kept))
	for i := len(kept) - 1; i >= 0; i-- {
		out = append(out, kept[i])
	}
	return out, cleared
}

// Points returns the score awarded for clearing n rows with a single lock.
func Points(n int) int {
	switch n {
	case 0:
		return 0
	case 1:
		return 100
	case 2:
		return 300
	case 3:
		return 500
	case 4:
		return 800
	default:
		panic(fmt.Sprintf("tetris: unexpected number of rows cleared: %d", n))
	}
}

// RotateClockwise returns a new matrix with m rotated 90 degrees clockwise.
func RotateClockwise(m Matrix) Matrix {
	rows, cols := len(m), len(m[0])
	rotated := newMatrix(rows, cols)
	for r := range rows {
		for c := range cols {
			rotated[c][rows-1-r] = m[r][c]
		}
	}
	return rotated
}

// RotateAnticlockwise returns a new matrix with m rotated 90 degrees
// anticlockwise.
func RotateAnticlockwise(m Matrix) Matrix {
	rows, cols := len(m), len(m[0])
	rotated := newMatrix(rows, cols)
	for r := range rows {
		for c := range cols {
			rotated[rows-1-r][c] = m[c][r]
		}
	}
	return rotated
}

// forEachCell calls fn with the position of every occupied cell of m, where
// r counts only the rows of m that have at least one occupied cell.
func forEachCell(m Matrix, fn func(r, c int)) {
	r := 0
	for _, row := range m {
		if !anySet(row) {
			continue
		}
		for c, set := range row {
			if set {
				fn(r, c)
			}
		}
		r++
	}
}

func anySet(row []bool) bool {
	for _, v := range row {
		if v {
			return true
		}
	}
	return false
}
