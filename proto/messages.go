// Package proto holds the wire format of the remote session service. Every
// message is a protobuf well-known type so no generated code is needed.
package proto

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"tetrion/tetris"

	"google.golang.org/protobuf/types/known/structpb"
)

// Command ops.
const (
	OpStart   = "start"
	OpPress   = "press"
	OpRelease = "release"
)

// emptyCell is how an Empty cell is written in an encoded grid row.
const emptyCell = '.'

// Command is a player input addressed to a hosted session.
type Command struct {
	Session string
	Op      string
	Control tetris.Control
}

func (c Command) Struct() *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"session": structpb.NewStringValue(c.Session),
		"op":      structpb.NewStringValue(c.Op),
		"control": structpb.NewStringValue(string(c.Control)),
	}}
}

// CommandFromStruct decodes and validates a Command.
func CommandFromStruct(s *structpb.Struct) (Command, error) {
	f := s.GetFields()
	c := Command{
		Session: f["session"].GetStringValue(),
		Op:      f["op"].GetStringValue(),
		Control: tetris.Control(f["control"].GetStringValue()),
	}
	if c.Session == "" {
		return Command{}, errors.New("missing session")
	}
	switch c.Op {
	case OpStart:
	case OpPress, OpRelease:
		if !slices.Contains(tetris.Controls, c.Control) {
			return Command{}, fmt.Errorf("unknown control %q", c.Control)
		}
	default:
		return Command{}, fmt.Errorf("unknown op %q", c.Op)
	}
	return c, nil
}

// EncodeGrid writes every row as a string, one character per cell.
func EncodeGrid(g tetris.Grid) []string {
	rows := make([]string, len(g))
	for i, r := range g {
		var b strings.Builder
		for _, c := range r {
			if c == tetris.Empty {
				b.WriteByte(emptyCell)
				continue
			}
			b.WriteString(string(c))
		}
		rows[i] = b.String()
	}
	return rows
}

func DecodeGrid(rows []string) (tetris.Grid, error) {
	g := make(tetris.Grid, len(rows))
	for i, r := range rows {
		if len(r) != tetris.Width {
			return nil, fmt.Errorf("row %d has %d cells, want %d", i, len(r), tetris.Width)
		}
		g[i] = make([]tetris.Shape, tetris.Width)
		for j, c := range r {
			if c == emptyCell {
				continue
			}
			s := tetris.Shape(string(c))
			if !slices.Contains(tetris.Shapes, s) {
				return nil, fmt.Errorf("row %d: unknown cell %q", i, c)
			}
			g[i][j] = s
		}
	}
	return g, nil
}

// ViewStruct encodes a View.
func ViewStruct(v tetris.View) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"grid":     stringList(EncodeGrid(v.Grid)),
		"upcoming": stringList(shapeStrings(v.Upcoming)),
		"held":     structpb.NewStringValue(string(v.Held)),
		"score":    structpb.NewNumberValue(float64(v.Score)),
		"lines":    structpb.NewNumberValue(float64(v.Lines)),
		"pieces":   structpb.NewNumberValue(float64(v.Pieces)),
		"state":    structpb.NewNumberValue(float64(v.State)),
		"playing":  structpb.NewBoolValue(v.Playing),
	}}
}

// ViewFromStruct decodes a View encoded with ViewStruct.
func ViewFromStruct(s *structpb.Struct) (tetris.View, error) {
	f := s.GetFields()
	var rows []string
	for _, r := range f["grid"].GetListValue().GetValues() {
		rows = append(rows, r.GetStringValue())
	}
	g, err := DecodeGrid(rows)
	if err != nil {
		return tetris.View{}, fmt.Errorf("failed to decode grid: %w", err)
	}
	upcoming := []tetris.Shape{}
	for _, u := range f["upcoming"].GetListValue().GetValues() {
		upcoming = append(upcoming, tetris.Shape(u.GetStringValue()))
	}
	return tetris.View{
		Grid:     g,
		Upcoming: upcoming,
		Held:     tetris.Shape(f["held"].GetStringValue()),
		Score:    int(f["score"].GetNumberValue()),
		Lines:    int(f["lines"].GetNumberValue()),
		Pieces:   int(f["pieces"].GetNumberValue()),
		State:    tetris.State(f["state"].GetNumberValue()),
		Playing:  f["playing"].GetBoolValue(),
	}, nil
}

func stringList(s []string) *structpb.Value {
	values := make([]*structpb.Value, len(s))
	for i, v := range s {
		values[i] = structpb.NewStringValue(v)
	}
	return structpb.NewListValue(&structpb.ListValue{Values: values})
}

func shapeStrings(s []tetris.Shape) []string {
	out := make([]string, len(s))
	for i, v := range s {
		out[i] = string(v)
	}
	return out
}
