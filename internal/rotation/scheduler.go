package rotation

import (
	"context"
	"sync"
	"time"

	"puzzle_webapp/internal/dispatch"
	"puzzle_webapp/internal/domain"
	"puzzle_webapp/internal/logger"
)

type Rotator interface {
	RotateAll(ctx context.Context, generation int64) ([]dispatch.Rotated, error)
}

// Notifier pushes rotation notices to connected clients.
type Notifier interface {
	PuzzleRotated(sessionID string, game domain.GameType, epoch int64)
}

// GenerationCloser finalizes per-generation bookkeeping (daily stats).
type GenerationCloser interface {
	CloseGeneration(ctx context.Context, generation int64) error
}

// Scheduler rotates every stored puzzle when a generation boundary passes.
// Start/dispatch also rotate lazily, so a missed tick only delays notices.
type Scheduler struct {
	clock    Clock
	rotator  Rotator
	notifier Notifier
	closer   GenerationCloser
	nowFn    func() time.Time

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewScheduler(clock Clock, rotator Rotator, notifier Notifier, closer GenerationCloser) *Scheduler {
	return &Scheduler{
		clock:    clock,
		rotator:  rotator,
		notifier: notifier,
		closer:   closer,
		nowFn:    time.Now,
	}
}

func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	go s.run(ctx, s.done)
}

func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (s *Scheduler) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	for {
		now := s.nowFn()
		next := s.clock.Next(now)
		logger.Info("next puzzle rotation scheduled", "at", next.UTC().Format(time.RFC3339))

		timer := time.NewTimer(next.Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		if err := s.RunOnce(ctx, s.clock.Generation(s.nowFn())); err != nil {
			logger.Error("puzzle rotation failed", "error", err)
		}
	}
}

// RunOnce rotates onto generation, notifies owners of rotated puzzles and
// closes the previous generation.
func (s *Scheduler) RunOnce(ctx context.Context, generation int64) error {
	rotated, err := s.rotator.RotateAll(ctx, generation)
	if s.notifier != nil {
		for _, r := range rotated {
			s.notifier.PuzzleRotated(r.Key.SessionID, r.Key.Game, r.Epoch)
		}
	}
	if err != nil {
		return err
	}
	logger.Info("puzzles rotated", "generation", generation, "count", len(rotated))

	if s.closer != nil {
		if err := s.closer.CloseGeneration(ctx, generation-1); err != nil {
			return err
		}
	}
	return nil
}
