package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"puzzle_webapp/internal/domain"
)

type MemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string]domain.Session
}

func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{sessions: make(map[string]domain.Session)}
}

func (s *MemorySessionStore) Create(_ context.Context, sess *domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.ID] = *sess
	return nil
}

func (s *MemorySessionStore) Get(_ context.Context, id string) (*domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return &sess, nil
}

func (s *MemorySessionStore) Touch(_ context.Context, id string, now, notBefore time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok || !sess.LastHeartbeat.After(notBefore) {
		return false, nil
	}
	sess.LastHeartbeat = now
	s.sessions[id] = sess
	return true, nil
}

func (s *MemorySessionStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
	return nil
}

func (s *MemorySessionStore) Expired(_ context.Context, cutoff time.Time) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []string
	for id, sess := range s.sessions {
		if !sess.LastHeartbeat.After(cutoff) {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (s *MemorySessionStore) Count(context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions), nil
}

type MemoryPuzzleStore struct {
	mu      sync.RWMutex
	puzzles map[PuzzleKey]domain.PuzzleState
}

func NewMemoryPuzzleStore() *MemoryPuzzleStore {
	return &MemoryPuzzleStore{puzzles: make(map[PuzzleKey]domain.PuzzleState)}
}

func (s *MemoryPuzzleStore) Get(_ context.Context, key PuzzleKey) (*domain.PuzzleState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.puzzles[key]
	if !ok {
		return nil, ErrPuzzleNotFound
	}
	out := st.Clone()
	return &out, nil
}

func (s *MemoryPuzzleStore) Put(_ context.Context, key PuzzleKey, st *domain.PuzzleState) error {
	s.mu.Lock()
	s.puzzles[key] = st.Clone()
	s.mu.Unlock()
	return nil
}

func (s *MemoryPuzzleStore) Delete(_ context.Context, key PuzzleKey) error {
	s.mu.Lock()
	delete(s.puzzles, key)
	s.mu.Unlock()
	return nil
}

func (s *MemoryPuzzleStore) Games(_ context.Context, sessionID string) ([]domain.GameType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.GameType
	for k := range s.puzzles {
		if k.SessionID == sessionID {
			out = append(out, k.Game)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func (s *MemoryPuzzleStore) Keys(context.Context) ([]PuzzleKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]PuzzleKey, 0, len(s.puzzles))
	for k := range s.puzzles {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out, nil
}
