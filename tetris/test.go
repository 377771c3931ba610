package tetris

import (
	"fmt"
	"sync"
	"time"
)

// MockTicker is a manual Ticker. It records every Stop and Reset in order.
type MockTicker struct {
	ch    chan time.Time
	mu    sync.Mutex
	calls []string
}

func NewMockTicker() *MockTicker { return &MockTicker{ch: make(chan time.Time)} }

func (m *MockTicker) C() <-chan time.Time { return m.ch }

// Tick fires the ticker. It blocks until the game loop receives it.
func (m *MockTicker) Tick() { m.ch <- time.Now() }

func (m *MockTicker) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "stop")
}

func (m *MockTicker) Reset(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, fmt.Sprintf("reset %v", d))
}

// Calls returns the recorded calls and forgets them.
func (m *MockTicker) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.calls
	m.calls = nil
	return c
}

// NewTestSession returns a started session whose pieces come from shapes in
// order: the first three fill the upcoming queue, the fourth is the falling
// piece and the rest are drawn as the queue is replenished.
func NewTestSession(shapes ...Shape) *Session {
	s := NewSession(NewSequence(shapes...))
	s.Start()
	return s
}

// NewTestGame returns a game driven by manual tickers.
func NewTestGame(shapes ...Shape) (*Game, *MockTicker, *MockTicker) {
	ticker, repeat := NewMockTicker(), NewMockTicker()
	g := NewGame(&Options{
		Drawer: NewSequence(shapes...),
		Ticker: ticker,
		Repeat: repeat,
	})
	return g, ticker, repeat
}
