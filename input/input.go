// Package input maps configurable key symbols to game controls.
package input

import (
	"fmt"
	"slices"
	"strings"
	"tetrion/tetris"
)

// Bindings maps opaque key symbols to controls. Keys are only ever compared
// for equality.
type Bindings struct {
	keys map[string]tetris.Control
}

// Default returns the classic layout: a/d move, w soft drop, s hard drop,
// l/j rotate and Tab holds. A terminal never reports Shift on its own.
func Default() Bindings {
	b, err := New(map[tetris.Control]string{
		tetris.Left:      "a",
		tetris.Right:     "d",
		tetris.SoftDrop:  "w",
		tetris.HardDrop:  "s",
		tetris.RotateCW:  "l",
		tetris.RotateCCW: "j",
		tetris.Hold:      "Tab",
	})
	if err != nil {
		panic(err)
	}
	return b
}

// New builds Bindings from one key per control. Two controls can't share a key.
func New(keys map[tetris.Control]string) (Bindings, error) {
	b := Bindings{keys: make(map[string]tetris.Control, len(keys))}
	for c, k := range keys {
		if k == "" {
			return Bindings{}, fmt.Errorf("empty key for %s", c)
		}
		if other, ok := b.keys[k]; ok {
			return Bindings{}, fmt.Errorf("key %q bound to both %s and %s", k, other, c)
		}
		b.keys[k] = c
	}
	return b, nil
}

// Parse overrides the default bindings with a comma separated list of
// control=key pairs, e.g. "left=ArrowLeft,right=ArrowRight".
func Parse(s string) (Bindings, error) {
	keys := Default().Keys()
	if strings.TrimSpace(s) == "" {
		return New(keys)
	}
	for _, pair := range strings.Split(s, ",") {
		name, key, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok {
			return Bindings{}, fmt.Errorf("invalid binding %q, want control=key", pair)
		}
		c := tetris.Control(strings.ToLower(strings.TrimSpace(name)))
		if !slices.Contains(tetris.Controls, c) {
			return Bindings{}, fmt.Errorf("unknown control %q", name)
		}
		keys[c] = strings.TrimSpace(key)
	}
	return New(keys)
}

// Control returns the control bound to key.
func (b Bindings) Control(key string) (tetris.Control, bool) {
	c, ok := b.keys[key]
	return c, ok
}

// Keys returns the key bound to every control.
func (b Bindings) Keys() map[tetris.Control]string {
	keys := make(map[tetris.Control]string, len(b.keys))
	for k, c := range b.keys {
		keys[c] = k
	}
	return keys
}
