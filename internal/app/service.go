package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jaminalder/tictactoe-history/internal/domain"
)

// Errors exposed by the service layer. They only cover malformed input;
// clicks the rules reject are not errors.
var (
	ErrNotFound       = errors.New("game not found")
	ErrOutOfBounds    = errors.New("cell out of bounds")
	ErrStepOutOfRange = errors.New("step out of range")
)

// DefaultSubscriberBuffer is the channel size handed to each subscriber.
const DefaultSubscriberBuffer = 1

// Session is the in-memory state tracked per game.
type Session struct {
	ID      string
	Game    domain.Game
	Created time.Time
	Updated time.Time
}

type subscriber struct {
	ch        chan []byte
	closeOnce sync.Once
}

func (s *subscriber) close() { s.closeOnce.Do(func() { close(s.ch) }) }

// Service owns the current Game of every session and fans rendered
// snapshots out to subscribers.
type Service struct {
	mu      sync.Mutex
	log     *slog.Logger
	games   map[string]*Session
	subs    map[string]map[*subscriber]struct{}
	render  func(Session) []byte
	bufSize int
}

// NewService creates a service with a renderer that encodes nothing.
func NewService(logger *slog.Logger) *Service { return NewServiceWithRenderer(logger, nil) }

// NewServiceWithRenderer allows injecting a renderer for broadcast payloads.
func NewServiceWithRenderer(logger *slog.Logger, renderer func(Session) []byte) *Service {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if renderer == nil {
		renderer = func(Session) []byte { return nil }
	}
	return &Service{
		log:     logger.With("component", "service"),
		games:   make(map[string]*Session),
		subs:    make(map[string]map[*subscriber]struct{}),
		render:  renderer,
		bufSize: DefaultSubscriberBuffer,
	}
}

// SetRenderer replaces the broadcast renderer function.
func (s *Service) SetRenderer(renderer func(Session) []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if renderer == nil {
		s.render = func(Session) []byte { return nil }
		return
	}
	s.render = renderer
}

// SetSubscriberBuffer sets the channel size for subscriptions made after the
// call. Values below 1 are raised to 1.
func (s *Service) SetSubscriberBuffer(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n < 1 {
		n = 1
	}
	s.bufSize = n
}

// CreateGame creates and registers a new game.
func (s *Service) CreateGame() (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := uuid.NewString()
	now := time.Now()
	gs := &Session{ID: id, Game: domain.New(), Created: now, Updated: now}
	s.games[id] = gs
	s.log.Debug("game created", "game", id)
	cp := *gs
	return &cp, nil
}

// Get returns a copy of the session if present.
func (s *Service) Get(id string) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	gs, ok := s.games[id]
	if !ok {
		return nil, false
	}
	cp := *gs
	return &cp, true
}

// Play marks cell for the side to move. A click the rules ignore returns the
// unchanged session with a nil error.
func (s *Service) Play(id string, cell int) (*Session, error) {
	if cell < 0 || cell >= len(domain.Board{}) {
		s.log.Info("cell out of bounds", "game", id, "cell", cell)
		return s.current(id, ErrOutOfBounds)
	}
	return s.transition(id, "play", cell, func(g domain.Game) domain.Game { return g.Play(cell) })
}

// JumpTo shows the history entry at step.
func (s *Service) JumpTo(id string, step int) (*Session, error) {
	gs, ok := s.Get(id)
	if !ok {
		return nil, ErrNotFound
	}
	if step < 0 || step >= gs.Game.Len() {
		s.log.Info("step out of range", "game", id, "step", step, "len", gs.Game.Len())
		return gs, ErrStepOutOfRange
	}
	return s.transition(id, "jump", step, func(g domain.Game) domain.Game { return g.JumpTo(step) })
}

func (s *Service) current(id string, err error) (*Session, error) {
	gs, ok := s.Get(id)
	if !ok {
		return nil, ErrNotFound
	}
	return gs, err
}

// transition swaps in the Game produced by fn and broadcasts it when it
// differs from the previous one.
func (s *Service) transition(id, op string, arg int, fn func(domain.Game) domain.Game) (*Session, error) {
	s.mu.Lock()
	gs, ok := s.games[id]
	if !ok {
		s.mu.Unlock()
		return nil, ErrNotFound
	}
	prev := gs.Game
	next := fn(prev)
	if next.Step() == prev.Step() && next.Len() == prev.Len() {
		cp := *gs
		s.mu.Unlock()
		s.log.Debug(op+" ignored", "game", id, "arg", arg, "step", prev.Step())
		return &cp, nil
	}
	gs.Game = next
	gs.Updated = time.Now()
	cp := *gs

	// Fan-out under the lock; a full channel drops its subscriber.
	payload := s.render(cp)
	dropped := 0
	for sub := range s.subs[id] {
		select {
		case sub.ch <- payload:
		default:
			delete(s.subs[id], sub)
			sub.close()
			dropped++
		}
	}
	s.mu.Unlock()

	s.log.Debug(op+" applied", "game", id, "arg", arg, "step", next.Step(), "status", next.Status())
	if dropped > 0 {
		s.log.Info("dropped slow subscribers", "game", id, "count", dropped)
	}
	return &cp, nil
}

// Subscribe registers a subscriber for a game. Returns a channel and an
// unsubscribe func; the subscription also ends when ctx is done.
func (s *Service) Subscribe(ctx context.Context, id string) (<-chan []byte, func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.games[id]; !ok {
		return nil, func() {}, ErrNotFound
	}
	set := s.subs[id]
	if set == nil {
		set = make(map[*subscriber]struct{})
		s.subs[id] = set
	}
	sub := &subscriber{ch: make(chan []byte, s.bufSize)}
	set[sub] = struct{}{}

	unsubOnce := &sync.Once{}
	unsub := func() {
		unsubOnce.Do(func() {
			s.mu.Lock()
			if set, ok := s.subs[id]; ok {
				delete(set, sub)
				if len(set) == 0 {
					delete(s.subs, id)
				}
			}
			sub.close()
			s.mu.Unlock()
		})
	}
	go func() {
		<-ctx.Done()
		unsub()
	}()
	return sub.ch, unsub, nil
}
