package tetris

import (
	"fmt"
	"math/rand/v2"
)

// Shape is the value of a grid cell. Empty is a free cell, the rest are the
// seven tetrominoes.
type Shape string

const (
	Empty Shape = ""
	I     Shape = "I"
	J     Shape = "J"
	L     Shape = "L"
	O     Shape = "O"
	S     Shape = "S"
	T     Shape = "T"
	Z     Shape = "Z"
)

// Shapes is the piece catalog in a fixed order.
var Shapes = []Shape{I, J, L, O, S, T, Z}

// Matrix is an orientation of a piece. A true cell is occupied.
type Matrix [][]bool

func newMatrix(rows, cols int) Matrix {
	m := make(Matrix, rows)
	for i := range m {
		m[i] = make([]bool, cols)
	}
	return m
}

// Copy returns a deep copy of the matrix.
func (m Matrix) Copy() Matrix {
	c := make(Matrix, len(m))
	for i := range m {
		c[i] = make([]bool, len(m[i]))
		copy(c[i], m[i])
	}
	return c
}

// Cells returns the occupied cells of m as row, col pairs. Used to compare
// orientations by their occupied-cell pattern.
func (m Matrix) Cells() [][2]int {
	var cells [][2]int
	for r, row := range m {
		for c, set := range row {
			if set {
				cells = append(cells, [2]int{r, c})
			}
		}
	}
	return cells
}

/*
Base orientations, X marks an occupied cell. The occupied cells sit at the
bottom of the matrix and the collision filter drops the empty rows above
them, so every piece spawns flush with row 0.

.	I			.	J		.	L		.	O
.	. . . .		.	. . .	.	. . .	.	X X
.	. . . .		.	X . .	.	. . X	.	X X
.	X X X X		.	X X X	.	X X X
.	. . . .

.	S			.	T		.	Z
.	. . .		.	. . .	.	. . .
.	. X X		.	. X .	.	X X .
.	X X .		.	X X X	.	. X X
*/var catalog = map[Shape]Matrix{
	I: {
		{false, false, false, false},
		{false, false, false, false},
		{true, true, true, true},
		{false, false, false, false},
	},
	J: {
		{false, false, false},
		{true, false, false},
		{true, true, true},
	},
	L: {
		{false, false, false},
		{false, false, true},
		{true, true, true},
	},
	O: {
		{true, true},
		{true, true},
	},
	S: {
		{false, false, false},
		{false, true, true},
		{true, true, false},
	},
	T: {
		{false, false, false},
		{false, true, false},
		{true, true, true},
	},
	Z: {
		{false, false, false},
		{true, true, false},
		{false, true, true},
	},
}

// Matrix returns a fresh copy of the base orientation of s.
func (s Shape) Matrix() Matrix {
	m, ok := catalog[s]
	if !ok {
		panic(fmt.Sprintf("tetris: unknown shape %q", s))
	}
	return m.Copy()
}

// Drawer picks the next piece kind.
type Drawer interface {
	Draw() Shape
}

type uniform struct {
	rand *rand.Rand
}

// NewUniform returns a Drawer that picks every shape with the same
// probability on each draw.
func NewUniform(seed uint64) Drawer {
	return &uniform{rand: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (u *uniform) Draw() Shape {
	return Shapes[u.rand.IntN(len(Shapes))]
}

// Bag is the 7-bag randomizer from https://tetris.wiki/Random_Generator:
// every shape is drawn once before the bag is refilled.
type Bag struct {
	rand *rand.Rand
	bag  []Shape
}

func NewBag(seed uint64) *Bag {
	b := &Bag{rand: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
	b.fill()
	return b
}

func (b *Bag) fill() {
	b.bag = make([]Shape, len(Shapes))
	copy(b.bag, Shapes)
	b.rand.Shuffle(len(b.bag), func(i, j int) { b.bag[i], b.bag[j] = b.bag[j], b.bag[i] })
}

func (b *Bag) Draw() Shape {
	if len(b.bag) == 0 {
		b.fill()
	}
	s := b.bag[0]
	b.bag = b.bag[1:]
	return s
}

// Sequence draws a fixed list of shapes in order and then starts over.
type Sequence struct {
	shapes []Shape
	next   int
}

func NewSequence(shapes ...Shape) *Sequence {
	if len(shapes) == 0 {
		panic("tetris: empty sequence")
	}
	return &Sequence{shapes: shapes}
}

func (s *Sequence) Draw() Shape {
	shape := s.shapes[s.next%len(s.shapes)]
	s.next++
	return shape
}
