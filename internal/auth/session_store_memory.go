package auth

import (
	"context"
	"sync"
)

// InMemorySessionStore implements SessionStore for tests and the memory store driver.
// Sessions are indexed by token and by account so revoking an account is a map lookup.
type InMemorySessionStore struct {
	mu        sync.RWMutex
	sessions  map[string]Session
	byAccount map[string]map[string]struct{}
}

func NewInMemorySessionStore() *InMemorySessionStore {
	return &InMemorySessionStore{
		sessions:  make(map[string]Session),
		byAccount: make(map[string]map[string]struct{}),
	}
}

func (s *InMemorySessionStore) Save(_ context.Context, session Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.sessions[session.Token]; ok && prev.AccountID != session.AccountID {
		s.unindexLocked(prev)
	}
	s.sessions[session.Token] = session
	tokens, ok := s.byAccount[session.AccountID]
	if !ok {
		tokens = make(map[string]struct{})
		s.byAccount[session.AccountID] = tokens
	}
	tokens[session.Token] = struct{}{}
	return nil
}

func (s *InMemorySessionStore) Find(_ context.Context, token string) (Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[token]
	if !ok {
		return Session{}, ErrSessionNotFound
	}
	return session, nil
}

func (s *InMemorySessionStore) Delete(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if session, ok := s.sessions[token]; ok {
		delete(s.sessions, token)
		s.unindexLocked(session)
	}
	return nil
}

func (s *InMemorySessionStore) DeleteAccount(_ context.Context, accountID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tokens := s.byAccount[accountID]
	for token := range tokens {
		delete(s.sessions, token)
	}
	delete(s.byAccount, accountID)
	return len(tokens), nil
}

// Has reports whether a token exists.
func (s *InMemorySessionStore) Has(token string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.sessions[token]
	return ok
}

func (s *InMemorySessionStore) unindexLocked(session Session) {
	tokens := s.byAccount[session.AccountID]
	delete(tokens, session.Token)
	if len(tokens) == 0 {
		delete(s.byAccount, session.AccountID)
	}
}
