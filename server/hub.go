package server

import (
	"errors"
	"log/slog"
	"slices"
	"sync"
	"tetrion/proto"
	"tetrion/tetris"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

var (
	ErrNotFound    = errors.New("session not found")
	ErrRateLimited = errors.New("too many commands")
)

const (
	defaultLimit rate.Limit = 50
	defaultBurst            = 20
)

type Options struct {
	Logger *slog.Logger
	// NewGame builds the game behind every opened session.
	NewGame func() *tetris.Game
	// Limit and Burst bound the commands a single session accepts.
	Limit rate.Limit
	Burst int
}

// Hub owns the hosted sessions.
type Hub struct {
	logger  *slog.Logger
	newGame func() *tetris.Game
	limit   rate.Limit
	burst   int

	mu       sync.Mutex
	sessions map[string]*hosted
}

func NewHub(o *Options) *Hub {
	if o == nil {
		o = &Options{}
	}
	h := &Hub{
		logger:   o.Logger,
		newGame:  o.NewGame,
		limit:    o.Limit,
		burst:    o.Burst,
		sessions: make(map[string]*hosted),
	}
	if h.logger == nil {
		h.logger = slog.New(slog.DiscardHandler)
	}
	if h.newGame == nil {
		h.newGame = func() *tetris.Game { return tetris.NewGame(&tetris.Options{Logger: h.logger}) }
	}
	if h.limit == 0 {
		h.limit = defaultLimit
	}
	if h.burst == 0 {
		h.burst = defaultBurst
	}
	return h
}

// Open hosts a new idle game and returns its id.
func (h *Hub) Open() string {
	id := uuid.New().String()
	s := newHosted(h.newGame(), rate.NewLimiter(h.limit, h.burst))

	h.mu.Lock()
	h.sessions[id] = s
	h.mu.Unlock()

	h.logger.Info("session opened", slog.String("session", id))
	return id
}

func (h *Hub) get(id string) (*hosted, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	s, ok := h.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

// View returns the latest View of a session.
func (h *Hub) View(id string) (tetris.View, error) {
	s, err := h.get(id)
	if err != nil {
		return tetris.View{}, err
	}
	return s.view(), nil
}

// Command forwards c to its session.
func (h *Hub) Command(c proto.Command) error {
	s, err := h.get(c.Session)
	if err != nil {
		return err
	}
	if !s.limiter.Allow() {
		h.logger.Warn("command dropped", slog.String("session", c.Session), slog.String("op", c.Op))
		return ErrRateLimited
	}
	switch c.Op {
	case proto.OpStart:
		s.game.Start()
	case proto.OpPress:
		s.game.Press(c.Control)
	case proto.OpRelease:
		s.game.Release(c.Control)
	}
	return nil
}

// Watch returns a channel with the current View followed by every update,
// and a func to stop watching. The channel is closed when the session is.
func (h *Hub) Watch(id string) (<-chan tetris.View, func(), error) {
	s, err := h.get(id)
	if err != nil {
		return nil, nil, err
	}
	ch, cancel := s.watch()
	return ch, cancel, nil
}

// Close stops a session and its watchers.
func (h *Hub) Close(id string) error {
	h.mu.Lock()
	s, ok := h.sessions[id]
	delete(h.sessions, id)
	h.mu.Unlock()
	if !ok {
		return ErrNotFound
	}
	s.close()
	h.logger.Info("session closed", slog.String("session", id))
	return nil
}

// IDs returns the open session ids, sorted.
func (h *Hub) IDs() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	ids := make([]string, 0, len(h.sessions))
	for id := range h.sessions {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// CloseAll closes every session.
func (h *Hub) CloseAll() {
	for _, id := range h.IDs() {
		_ = h.Close(id)
	}
}

// hosted is a game plus the watchers of its views.
type hosted struct {
	game    *tetris.Game
	limiter *rate.Limiter

	mu       sync.Mutex
	last     tetris.View
	watchers map[chan tetris.View]struct{}
	closed   bool

	doneCh chan struct{}
	once   sync.Once
}

func newHosted(g *tetris.Game, l *rate.Limiter) *hosted {
	s := &hosted{
		game:     g,
		limiter:  l,
		last:     g.Read(),
		watchers: make(map[chan tetris.View]struct{}),
		doneCh:   make(chan struct{}),
	}
	go s.fanOut()
	return s
}

func (s *hosted) fanOut() {
	for {
		select {
		case v := <-s.game.Updates():
			s.mu.Lock()
			s.last = v
			for ch := range s.watchers {
				offer(ch, v)
			}
			s.mu.Unlock()
		case <-s.doneCh:
			return
		}
	}
}

func (s *hosted) view() tetris.View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

func (s *hosted) watch() (<-chan tetris.View, func()) {
	ch := make(chan tetris.View, 1)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		close(ch)
		return ch, func() {}
	}
	ch <- s.last
	s.watchers[ch] = struct{}{}
	cancel := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if _, ok := s.watchers[ch]; ok {
			delete(s.watchers, ch)
			close(ch)
		}
	}
	return ch, cancel
}

func (s *hosted) close() {
	s.once.Do(func() {
		close(s.doneCh)
		s.game.Stop()
		s.mu.Lock()
		defer s.mu.Unlock()
		s.closed = true
		for ch := range s.watchers {
			delete(s.watchers, ch)
			close(ch)
		}
	})
}

// offer replaces a view the watcher hasn't read yet.
func offer(ch chan tetris.View, v tetris.View) {
	select {
	case ch <- v:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- v:
	default:
	}
}
