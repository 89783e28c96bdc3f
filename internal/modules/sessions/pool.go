// Package sessions gives each logical caller its own computer and processor.
// A register is single-owner state, so all work on a session is serialized
// by the session's mutex while distinct sessions run in parallel.
package sessions

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/aristath/qengine/internal/modules/processor"
	"github.com/aristath/qengine/internal/modules/quantum"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var (
	// ErrSessionNotFound is returned for unknown or closed session IDs
	ErrSessionNotFound = errors.New("session not found")
	// ErrPoolFull is returned by Open when MaxSessions is reached
	ErrPoolFull = errors.New("session pool is full")
)

// Config configures the sessions a Pool opens
type Config struct {
	NumQubits   int
	Computer    quantum.Options
	Processor   processor.Config
	MaxSessions int // 0 for unlimited
}

// Session owns one computer and the processor bound to it
type Session struct {
	ID        string
	CreatedAt time.Time
	Computer  *quantum.Computer
	Processor *processor.Processor

	mu sync.Mutex
}

// Pool tracks open sessions
type Pool struct {
	cfg      Config
	sessions map[string]*Session
	opened   uint64
	mu       sync.RWMutex
	log      zerolog.Logger
}

// NewPool creates an empty pool
func NewPool(cfg Config, log zerolog.Logger) *Pool {
	return &Pool{
		cfg:      cfg,
		sessions: make(map[string]*Session),
		log:      log.With().Str("component", "session_pool").Logger(),
	}
}

// Open creates a session and returns its ID. With a fixed seed every session
// gets a distinct, reproducible seed derived from it.
func (p *Pool) Open() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cfg.MaxSessions > 0 && len(p.sessions) >= p.cfg.MaxSessions {
		return "", ErrPoolFull
	}

	opts := p.cfg.Computer
	if opts.Register.Seed != 0 {
		opts.Register.Seed += p.opened
	}

	id := uuid.New().String()
	sessionLog := p.log.With().Str("session", id).Logger()

	computer, err := quantum.NewComputer(p.cfg.NumQubits, opts, sessionLog)
	if err != nil {
		return "", fmt.Errorf("failed to create session computer: %w", err)
	}

	p.sessions[id] = &Session{
		ID:        id,
		CreatedAt: time.Now().UTC(),
		Computer:  computer,
		Processor: processor.New(computer, p.cfg.Processor, sessionLog),
	}
	p.opened++

	p.log.Debug().Str("session", id).Int("open", len(p.sessions)).Msg("Session opened")
	return id, nil
}

// With runs fn with exclusive access to the session
func (p *Pool) With(id string, fn func(*Session) error) error {
	p.mu.RLock()
	s, ok := p.sessions[id]
	p.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s)
}

// Close removes a session. It waits for a running With call on that session to finish.
func (p *Pool) Close(id string) error {
	p.mu.Lock()
	s, ok := p.sessions[id]
	delete(p.sessions, id)
	p.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p.log.Debug().Str("session", id).Msg("Session closed")
	return nil
}

// Len returns the number of open sessions
func (p *Pool) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.sessions)
}
