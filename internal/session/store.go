// Package session provides per-session conversation state: an injectable
// store interface, an in-memory default, and a sqlite-backed alternative.
package session

import (
	"context"
	"sort"
	"sync"

	"github.com/medassist/vha/internal/model"
)

// Store is the session persistence boundary. Appends for the same session id
// must be serialized by the caller holding the per-session execution lock;
// concurrent reads are always safe.
type Store interface {
	// Get returns the state for the session id. Unknown ids yield an empty
	// state; sessions are created lazily on first append.
	Get(ctx context.Context, sessionID string) (model.SessionState, error)
	// Append adds a completed turn to the session's history, creating the
	// session if needed.
	Append(ctx context.Context, sessionID string, rec model.TurnRecord) error
	// Sessions lists known session ids in lexical order.
	Sessions(ctx context.Context) ([]string, error)
}

// MemoryStore is the process-lifetime in-memory Store.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*model.SessionState
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*model.SessionState)}
}

// Get returns a copy of the session state so callers cannot mutate history.
func (s *MemoryStore) Get(_ context.Context, sessionID string) (model.SessionState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.sessions[sessionID]
	if !ok {
		return model.SessionState{SessionID: sessionID, History: []model.TurnRecord{}}, nil
	}
	out := model.SessionState{
		SessionID:  state.SessionID,
		History:    append([]model.TurnRecord(nil), state.History...),
		TotalTurns: state.TotalTurns,
	}
	return out, nil
}

// Append adds the turn, keeping total_turns equal to the history length.
func (s *MemoryStore) Append(_ context.Context, sessionID string, rec model.TurnRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.sessions[sessionID]
	if !ok {
		state = &model.SessionState{SessionID: sessionID}
		s.sessions[sessionID] = state
	}
	state.History = append(state.History, rec)
	state.TotalTurns = len(state.History)
	return nil
}

// Sessions lists known session ids.
func (s *MemoryStore) Sessions(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// KeyedMutex serializes work per key. The pipeline holds a session's mutex
// for the whole turn so turns within one session run in submission order
// while turns across sessions stay concurrent.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewKeyedMutex constructs a KeyedMutex.
func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: make(map[string]*sync.Mutex)}
}

// Lock locks the mutex for key and returns the unlock function.
func (k *KeyedMutex) Lock(key string) func() {
	k.mu.Lock()
	lock, ok := k.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		k.locks[key] = lock
	}
	k.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}
