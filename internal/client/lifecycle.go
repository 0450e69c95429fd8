package client

import (
	"context"
	"sync"
	"time"

	"puzzle_webapp/internal/logger"
)

const DefaultHeartbeatInterval = 25 * time.Second

// SessionAPI is the session half of the transport.
type SessionAPI interface {
	CreateSession(ctx context.Context, identity string) (*SessionInfo, error)
	Heartbeat(ctx context.Context) error
	DestroySession(ctx context.Context) error
}

// IdentitySource yields the host-issued credential. It is called again on
// every recreate since the credential itself may have expired.
type IdentitySource func(ctx context.Context) (string, error)

// Lifecycle owns one client session: creation, the heartbeat loop and
// teardown.
type Lifecycle struct {
	api      SessionAPI
	identity IdentitySource
	interval time.Duration

	mu     sync.Mutex
	info   *SessionInfo
	cancel context.CancelFunc
	done   chan struct{}
}

func NewLifecycle(api SessionAPI, identity IdentitySource, interval time.Duration) *Lifecycle {
	if interval <= 0 {
		interval = DefaultHeartbeatInterval
	}
	return &Lifecycle{api: api, identity: identity, interval: interval}
}

// Start creates the session and begins heartbeating.
func (l *Lifecycle) Start(ctx context.Context) (*SessionInfo, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stopLoop()
	return l.create(ctx)
}

// Recreate opens a fresh session after the previous one expired. The old
// one is not destroyed; the server has already reaped it.
func (l *Lifecycle) Recreate(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stopLoop()
	_, err := l.create(ctx)
	return err
}

// Stop ends the heartbeat loop and destroys the session, best effort.
func (l *Lifecycle) Stop(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stopLoop()
	if l.info == nil {
		return
	}
	if err := l.api.DestroySession(ctx); err != nil {
		logger.Debug("destroy session failed", "error", err)
	}
	l.info = nil
}

func (l *Lifecycle) Session() *SessionInfo {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.info
}

func (l *Lifecycle) create(ctx context.Context) (*SessionInfo, error) {
	identity, err := l.identity(ctx)
	if err != nil {
		return nil, err
	}
	info, err := l.api.CreateSession(ctx, identity)
	if err != nil {
		return nil, err
	}
	l.info = info

	loopCtx, cancel := context.WithCancel(context.Background())
	l.cancel = cancel
	l.done = make(chan struct{})
	go l.heartbeat(loopCtx, l.done)
	return info, nil
}

// stopLoop must be called with mu held.
func (l *Lifecycle) stopLoop() {
	if l.cancel == nil {
		return
	}
	l.cancel()
	<-l.done
	l.cancel = nil
	l.done = nil
}

func (l *Lifecycle) heartbeat(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			reqCtx, cancel := context.WithTimeout(ctx, l.interval)
			// failures are not acted on; liveness is decided server side
			if err := l.api.Heartbeat(reqCtx); err != nil {
				logger.Debug("heartbeat failed", "error", err)
			}
			cancel()
		}
	}
}
