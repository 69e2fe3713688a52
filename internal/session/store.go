package session

import (
	"errors"
	"sync"

	"github.com/google/uuid"
)

var ErrSessionNotFound = errors.New("session not found")

// Store keeps sessions in memory. Nothing survives a restart.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

func NewStore() *Store {
	return &Store{sessions: make(map[string]*Session)}
}

// Create starts a session under a fresh random key.
func (st *Store) Create() *Session {
	s := New(uuid.NewString())

	st.mu.Lock()
	st.sessions[s.key] = s
	st.mu.Unlock()

	return s
}

func (st *Store) Get(key string) (*Session, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()

	s, ok := st.sessions[key]
	return s, ok
}

// GetOrCreate returns the session under key, creating it when missing.
func (st *Store) GetOrCreate(key string) *Session {
	st.mu.Lock()
	defer st.mu.Unlock()

	if s, ok := st.sessions[key]; ok {
		return s
	}

	s := New(key)
	st.sessions[key] = s
	return s
}

func (st *Store) Delete(key string) bool {
	st.mu.Lock()
	defer st.mu.Unlock()

	if _, ok := st.sessions[key]; !ok {
		return false
	}
	delete(st.sessions, key)
	return true
}

func (st *Store) Len() int {
	st.mu.Lock()
	defer st.mu.Unlock()

	return len(st.sessions)
}
