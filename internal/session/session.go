// Package session tracks per-conversation chat history in memory.
//
// Histories are bounded: only the most recent exchanges are kept, so prompt
// size stays constant no matter how long a conversation runs. Sessions are
// not persisted; a restart starts every conversation fresh.
package session

import (
	"errors"
	"sync"

	"github.com/firebase/genkit/go/ai"
	"github.com/google/uuid"
)

// ErrNotFound indicates the requested session does not exist.
var ErrNotFound = errors.New("session not found")

// exchange is one completed user/assistant turn pair.
type exchange struct {
	user      string
	assistant string
}

// Store holds conversation histories keyed by session ID. It is safe for
// concurrent use by multiple goroutines.
type Store struct {
	mu           sync.RWMutex
	sessions     map[uuid.UUID][]exchange
	maxExchanges int
}

// NewStore creates a Store keeping at most maxExchanges user/assistant pairs
// per session. Values below 1 fall back to 2.
func NewStore(maxExchanges int) *Store {
	if maxExchanges < 1 {
		maxExchanges = 2
	}
	return &Store{
		sessions:     make(map[uuid.UUID][]exchange),
		maxExchanges: maxExchanges,
	}
}

// Create registers a new empty session and returns its ID.
func (s *Store) Create() uuid.UUID {
	id := uuid.New()

	s.mu.Lock()
	s.sessions[id] = nil
	s.mu.Unlock()

	return id
}

// AddExchange appends a completed user/assistant pair to a session, trimming
// the oldest pair when the bound is exceeded. Unknown session IDs are created
// implicitly so a client can keep using an ID across a server restart.
func (s *Store) AddExchange(id uuid.UUID, userMessage, assistantMessage string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	history := append(s.sessions[id], exchange{user: userMessage, assistant: assistantMessage})
	if len(history) > s.maxExchanges {
		history = history[len(history)-s.maxExchanges:]
	}
	s.sessions[id] = history
}

// History returns a session's retained exchanges as alternating user and
// model messages, oldest first, ready to prepend to a generate request.
// An unknown or empty session yields nil.
func (s *Store) History(id uuid.UUID) []*ai.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history := s.sessions[id]
	if len(history) == 0 {
		return nil
	}

	messages := make([]*ai.Message, 0, 2*len(history))
	for _, ex := range history {
		messages = append(messages,
			ai.NewUserMessage(ai.NewTextPart(ex.user)),
			ai.NewModelMessage(ai.NewTextPart(ex.assistant)))
	}
	return messages
}

// Exists reports whether a session ID is known to the store.
func (s *Store) Exists(id uuid.UUID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.sessions[id]
	return ok
}

// Delete removes a session and its history. Deleting an unknown session
// returns ErrNotFound.
func (s *Store) Delete(id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[id]; !ok {
		return ErrNotFound
	}
	delete(s.sessions, id)
	return nil
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.sessions)
}
