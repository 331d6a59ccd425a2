package session

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps sessions in process memory.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*Session)}
}

func (s *MemoryStore) Get(ctx context.Context, sessionID string) (*Session, error) {
	s.mu.RLock()
	sess, ok := s.sessions[sessionID]
	s.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	if sess.IsExpired() {
		s.Delete(ctx, sessionID)
		return nil, nil
	}
	cp := *sess
	return &cp, nil
}

func (s *MemoryStore) Set(ctx context.Context, sess *Session) error {
	cp := *sess
	s.mu.Lock()
	s.sessions[sess.ID] = &cp
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	delete(s.sessions, sessionID)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Cleanup(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, sess := range s.sessions {
		if sess.IsExpired() {
			delete(s.sessions, id)
		}
	}
	return nil
}

func (s *MemoryStore) Close() error { return nil }

// MemoryStateStore keeps state tokens in process memory.
type MemoryStateStore struct {
	mu     sync.Mutex
	states map[string]time.Time
}

var _ StateStore = (*MemoryStateStore)(nil)

// NewMemoryStateStore returns an empty MemoryStateStore.
func NewMemoryStateStore() *MemoryStateStore {
	return &MemoryStateStore{states: make(map[string]time.Time)}
}

func (s *MemoryStateStore) Generate(ctx context.Context, ttl time.Duration) (string, error) {
	state, err := GenerateState()
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	s.states[state] = time.Now().Add(ttl)
	s.mu.Unlock()
	return state, nil
}

func (s *MemoryStateStore) Validate(ctx context.Context, state string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	exp, ok := s.states[state]
	if !ok {
		return false, nil
	}
	delete(s.states, state)
	return time.Now().Before(exp), nil
}

func (s *MemoryStateStore) Cleanup(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for state, exp := range s.states {
		if now.After(exp) {
			delete(s.states, state)
		}
	}
	return nil
}
