package client

import (
	"sync"

	"github.com/google/uuid"
)

// Store mints and remembers one opaque session token per game id, the
// identity a participant keeps across reconnects. Tokens live for the
// store's lifetime only; Clear is the explicit logout, forcing a fresh
// identity on the next GetOrCreate.
type Store struct {
	mu     sync.Mutex
	tokens map[string]string
}

func NewStore() *Store {
	return &Store{tokens: make(map[string]string)}
}

func (s *Store) GetOrCreate(gameID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if tok, ok := s.tokens[gameID]; ok {
		return tok
	}
	tok := uuid.NewString()
	s.tokens[gameID] = tok
	return tok
}

func (s *Store) Clear(gameID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tokens, gameID)
}
