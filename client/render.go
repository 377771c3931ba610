package client

import (
	_ "embed"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"tetrion/tetris"
	"text/template"
)

const (
	// ASCII colors.
	Cyan    = "36"
	Blue    = "34"
	Orange  = "38;5;214"
	Yellow  = "33"
	Green   = "32"
	Red     = "31"
	Magenta = "35"

	resetPos   = "\033[H" // Reset cursor position to 0,0
	clearPos   = "\033[2J\033[H"
	hideCursor = "\033[2J\033[?25l" // also clear screen
	showCursor = "\033[24;0H\n\r\033[?25h"

	empty    = "  "
	clearEOL = "\033[K"
)

//go:embed "layout.tmpl"
var layout string

var colorMap = map[tetris.Shape]string{
	tetris.I: Cyan,
	tetris.J: Blue,
	tetris.L: Orange,
	tetris.O: Yellow,
	tetris.S: Green,
	tetris.Z: Red,
	tetris.T: Magenta,
}

type templateData struct {
	View tetris.View
	Keys map[string]string
}

type render struct {
	writer   io.Writer
	logger   *slog.Logger
	template *template.Template
	keys     map[string]string
}

func newRender(w io.Writer, l *slog.Logger, keys map[tetris.Control]string) (*render, error) {
	tmp, err := loadTemplate()
	if err != nil {
		return nil, fmt.Errorf("failed to load template: %w", err)
	}
	k := make(map[string]string, len(keys))
	for c, key := range keys {
		k[string(c)] = key
	}
	return &render{
		writer:   w,
		logger:   l,
		template: tmp,
		keys:     k,
	}, nil
}

func (r *render) game(v tetris.View) {
	fmt.Fprint(r.writer, resetPos)
	if err := r.template.Execute(r.writer, &templateData{View: v, Keys: r.keys}); err != nil {
		r.logger.Error("unable to execute template", slog.String("error", err.Error()))
	}
}

type message []string

func welcome() message {
	return message{
		"      Welcome to Terminal Tetrion     ",
		"                                      ",
		"           (p)lay   (q)uit            ",
	}
}

func gameOver(v tetris.View) message {
	return message{
		"              Game Over :)            ",
		fmt.Sprintf("    score %-8d lines %-8d     ", v.Score, v.Lines),
		"           (p)lay   (q)uit            ",
	}
}

func (r *render) lobby(m message) {
	fmt.Fprint(r.writer, "\033[10;9H+--------------------------------------+")
	for i, l := range m {
		fmt.Fprintf(r.writer, "\033[%d;9H|%s|", 11+i, l)
	}
	fmt.Fprintf(r.writer, "\033[%d;9H+--------------------------------------+", 11+len(m))
}

func loadTemplate() (*template.Template, error) {
	funcMap := template.FuncMap{
		"stack": stack,
		"side":  side,
	}
	// the console is raw so new lines don't return the carriage, every new
	// line in the layout gets one.
	l := strings.ReplaceAll(layout, "\n", "\r\n")
	l = strings.ReplaceAll(l, "Terminal Tetrion", "\033[1mTerminal Tetrion\033[0m")
	return template.New("layout").Funcs(funcMap).Parse(l)
}

func cell(s tetris.Shape) string {
	c, ok := colorMap[s]
	if !ok {
		return empty
	}
	return fmt.Sprintf("\x1b[7m\x1b[%sm[]\x1b[0m", c)
}

// stack renders the grid top row first.
func stack(v tetris.View) [][]string {
	rendered := make([][]string, len(v.Grid))
	for y, row := range v.Grid {
		rendered[y] = make([]string, len(row))
		for x, s := range row {
			rendered[y][x] = cell(s)
		}
	}
	return rendered
}

// preview renders the occupied rows of a shape in its spawn orientation.
func preview(s tetris.Shape) []string {
	if s == tetris.Empty {
		return []string{strings.Repeat(empty, 4), strings.Repeat(empty, 4)}
	}
	var rendered []string
	for _, row := range s.Matrix() {
		var b strings.Builder
		set := false
		for x := range 4 {
			if x < len(row) && row[x] {
				b.WriteString(cell(s))
				set = true
				continue
			}
			b.WriteString(empty)
		}
		if set {
			rendered = append(rendered, b.String())
		}
	}
	for len(rendered) < 2 {
		rendered = append(rendered, strings.Repeat(empty, 4))
	}
	return rendered
}

// side renders the panel next to row y of the stack: held piece, the
// upcoming pieces with the next one first, and the counters.
func side(v tetris.View, y int) string {
	return panel(v, y) + clearEOL
}

func panel(v tetris.View, y int) string {
	held := preview(v.Held)
	var next []string
	for i := len(v.Upcoming) - 1; i >= 0; i-- {
		next = append(next, preview(v.Upcoming[i])...)
		next = append(next, "")
	}

	switch {
	case y == 0:
		return "  Hold"
	case y <= len(held):
		return "  " + held[y-1]
	case y == 4:
		return "  Next"
	case y > 4 && y-5 < len(next):
		return "  " + next[y-5]
	}
	switch y {
	case 15:
		return fmt.Sprintf("  Score  %d", v.Score)
	case 16:
		return fmt.Sprintf("  Lines  %d", v.Lines)
	case 17:
		return fmt.Sprintf("  Pieces %d", v.Pieces)
	}
	return ""
}
