package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"puzzle_webapp/internal/domain"
	"puzzle_webapp/internal/logger"
	"puzzle_webapp/internal/metrics"
	"puzzle_webapp/internal/store"
)

// IdentityVerifier turns the opaque identity a client presents into a
// user id. It is the only trust boundary for session creation.
type IdentityVerifier interface {
	Verify(ctx context.Context, identity string) (string, error)
}

// PuzzleDropper deletes all puzzle state owned by a session.
type PuzzleDropper interface {
	DropSession(ctx context.Context, sessionID string) error
}

// ExpiryNotifier is told about every destroyed session, reaped or explicit.
type ExpiryNotifier interface {
	SessionExpired(sessionID string)
}

const (
	reasonExplicit = "explicit"
	reasonReaped   = "reaped"
)

type Options struct {
	TTL      time.Duration
	Now      func() time.Time
	Notifier ExpiryNotifier
}

type Manager struct {
	sessions store.SessionStore
	verifier IdentityVerifier
	puzzles  PuzzleDropper
	notifier ExpiryNotifier
	ttl      time.Duration
	nowFn    func() time.Time
}

func NewManager(sessions store.SessionStore, verifier IdentityVerifier, puzzles PuzzleDropper, opts Options) *Manager {
	m := &Manager{
		sessions: sessions,
		verifier: verifier,
		puzzles:  puzzles,
		notifier: opts.Notifier,
		ttl:      opts.TTL,
		nowFn:    opts.Now,
	}
	if m.ttl <= 0 {
		m.ttl = 5 * time.Minute
	}
	if m.nowFn == nil {
		m.nowFn = time.Now
	}
	return m
}

func (m *Manager) TTL() time.Duration { return m.ttl }

// SetNotifier wires the expiry notifier after construction; the ws hub
// needs the manager first.
func (m *Manager) SetNotifier(n ExpiryNotifier) { m.notifier = n }

// Create verifies the identity and opens a new session for it.
func (m *Manager) Create(ctx context.Context, identity string) (*domain.Session, error) {
	identity = strings.TrimSpace(identity)
	if identity == "" {
		return nil, domain.ErrIdentityInvalid
	}
	userID, err := m.verifier.Verify(ctx, identity)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrIdentityInvalid, err)
	}
	if userID == "" {
		return nil, domain.ErrIdentityInvalid
	}

	id, err := randomHex(32)
	if err != nil {
		return nil, fmt.Errorf("generate session id: %w", err)
	}
	now := m.nowFn().UTC()
	sess := &domain.Session{
		ID:            id,
		UserID:        userID,
		CreatedAt:     now,
		LastHeartbeat: now,
	}
	if err := m.sessions.Create(ctx, sess); err != nil {
		return nil, err
	}

	metrics.SessionsCreated.Inc()
	logger.Info("session created", "user_id", userID)
	return sess, nil
}

// Heartbeat refreshes a live session. Unknown or expired ids and store
// errors are swallowed: heartbeats are telemetry, the reaper is the
// authority on liveness.
func (m *Manager) Heartbeat(ctx context.Context, id string) {
	if id == "" {
		metrics.Heartbeats.WithLabelValues("ignored").Inc()
		return
	}
	now := m.nowFn().UTC()
	ok, err := m.sessions.Touch(ctx, id, now, now.Add(-m.ttl))
	if err != nil {
		logger.Debug("heartbeat failed", "error", err)
		metrics.Heartbeats.WithLabelValues("error").Inc()
		return
	}
	if !ok {
		metrics.Heartbeats.WithLabelValues("ignored").Inc()
		return
	}
	metrics.Heartbeats.WithLabelValues("accepted").Inc()
}

// Lookup returns the session if it is still live.
func (m *Manager) Lookup(ctx context.Context, id string) (*domain.Session, error) {
	if id == "" {
		return nil, domain.ErrSessionExpired
	}
	sess, err := m.sessions.Get(ctx, id)
	if errors.Is(err, store.ErrSessionNotFound) {
		return nil, domain.ErrSessionExpired
	}
	if err != nil {
		return nil, err
	}
	if !sess.IsLive(m.nowFn(), m.ttl) {
		return nil, domain.ErrSessionExpired
	}
	return sess, nil
}

// Destroy removes the session and everything it owns. Best effort: both
// steps are attempted and failures only logged.
func (m *Manager) Destroy(ctx context.Context, id string) {
	if id == "" {
		return
	}
	m.destroy(ctx, id, reasonExplicit)
}

// destroy deletes the record before the puzzles: a start racing with it
// either lands before the cascade or finds the record gone.
func (m *Manager) destroy(ctx context.Context, id, reason string) {
	deleted := true
	if err := m.sessions.Delete(ctx, id); err != nil {
		logger.Warn("failed to delete session", "reason", reason, "error", err)
		deleted = false
	}
	if err := m.puzzles.DropSession(ctx, id); err != nil {
		logger.Warn("failed to drop session puzzles", "reason", reason, "error", err)
	}
	if m.notifier != nil {
		m.notifier.SessionExpired(id)
	}
	if deleted {
		metrics.SessionsDestroyed.WithLabelValues(reason).Inc()
	}
}

// Sweep destroys every session whose last heartbeat is at least TTL old.
func (m *Manager) Sweep(ctx context.Context) (int, error) {
	cutoff := m.nowFn().UTC().Add(-m.ttl)
	ids, err := m.sessions.Expired(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	for _, id := range ids {
		m.destroy(ctx, id, reasonReaped)
	}
	if n, err := m.sessions.Count(ctx); err == nil {
		metrics.SessionsActive.Set(float64(n))
	}
	return len(ids), nil
}

func randomHex(size int) (string, error) {
	buf := make([]byte, size)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
