package store

import (
	"context"
	"errors"
	"time"

	"puzzle_webapp/internal/domain"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrPuzzleNotFound  = errors.New("puzzle not found")
)

// SessionStore keeps session records and their liveness bookkeeping.
// It makes no liveness decisions beyond what the caller passes in.
type SessionStore interface {
	Create(ctx context.Context, s *domain.Session) error
	Get(ctx context.Context, id string) (*domain.Session, error)
	// Touch sets LastHeartbeat to now if the session exists and its last
	// heartbeat is after notBefore. It reports whether anything changed.
	Touch(ctx context.Context, id string, now, notBefore time.Time) (bool, error)
	Delete(ctx context.Context, id string) error
	// Expired lists sessions whose last heartbeat is not after cutoff.
	Expired(ctx context.Context, cutoff time.Time) ([]string, error)
	Count(ctx context.Context) (int, error)
}

// PuzzleKey addresses one authoritative puzzle.
type PuzzleKey struct {
	SessionID string
	Game      domain.GameType
}

func (k PuzzleKey) String() string {
	return k.SessionID + ":" + string(k.Game)
}

// PuzzleStore is the sole holder of authoritative puzzle state. Callers
// serialize access per key; the store only guarantees single-call atomicity.
type PuzzleStore interface {
	Get(ctx context.Context, key PuzzleKey) (*domain.PuzzleState, error)
	Put(ctx context.Context, key PuzzleKey, st *domain.PuzzleState) error
	Delete(ctx context.Context, key PuzzleKey) error
	// Games lists the game types a session has state for.
	Games(ctx context.Context, sessionID string) ([]domain.GameType, error)
	Keys(ctx context.Context) ([]PuzzleKey, error)
}
