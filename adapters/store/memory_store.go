package store

import (
	"context"
	"crypto/rand"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/layer-3/verigate/core"
	"github.com/layer-3/verigate/ports"
)

// SessionIDPrefix is prepended to every generated session id
const SessionIDPrefix = "vg_"

// MemoryStore is a process-local implementation of the SessionStore interface
type MemoryStore struct {
	sessions map[string]core.Session
	mu       sync.RWMutex
}

// NewMemoryStore creates a new in-memory session store
func NewMemoryStore() ports.SessionStore {
	return &MemoryStore{
		sessions: make(map[string]core.Session),
	}
}

// Create allocates a fresh unsolved session bound to siteKey
func (s *MemoryStore) Create(ctx context.Context, siteKey string, cfg core.SiteConfig) (core.Session, error) {
	id, err := newSessionID()
	if err != nil {
		return core.Session{}, err
	}

	cfg.SiteKey = siteKey
	session := core.Session{
		ID:      id,
		SiteKey: siteKey,
		Config:  cfg,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[id] = session
	return session, nil
}

// Get returns the session stored under sessionID
func (s *MemoryStore) Get(ctx context.Context, sessionID string) (core.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[sessionID]
	return session, ok
}

// MarkSolved flips the session to solved
func (s *MemoryStore) MarkSolved(ctx context.Context, sessionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[sessionID]
	if !ok || session.Solved {
		return false
	}

	session.Solved = true
	s.sessions[sessionID] = session
	return true
}

// SetKind records the challenge kind picked for the session
func (s *MemoryStore) SetKind(ctx context.Context, sessionID string, kind core.ChallengeKind) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if session, ok := s.sessions[sessionID]; ok {
		session.Kind = kind
		s.sessions[sessionID] = session
	}
}

// Reset returns the session to its initial unsolved state
func (s *MemoryStore) Reset(ctx context.Context, sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if session, ok := s.sessions[sessionID]; ok {
		session.Solved = false
		session.Kind = ""
		s.sessions[sessionID] = session
	}
}

// Delete removes the session
func (s *MemoryStore) Delete(ctx context.Context, sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, sessionID)
}

// Len returns the number of live sessions
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.sessions)
}

// newSessionID builds a ULID from crypto/rand so ids cannot be predicted
func newSessionID() (string, error) {
	id, err := ulid.New(ulid.Timestamp(time.Now()), rand.Reader)
	if err != nil {
		return "", fmt.Errorf("failed to generate session id: %w", err)
	}
	return SessionIDPrefix + id.String(), nil
}
