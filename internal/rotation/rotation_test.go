package rotation

import (
	"context"
	"errors"
	"testing"
	"time"

	"puzzle_webapp/internal/dispatch"
	"puzzle_webapp/internal/domain"
	"puzzle_webapp/internal/store"
)

func TestClockGeneration(t *testing.T) {
	c := NewClock(6, 24*time.Hour)

	cases := []struct {
		at   time.Time
		want time.Time
	}{
		{time.Date(2026, 5, 10, 6, 0, 0, 0, time.UTC), time.Date(2026, 5, 10, 6, 0, 0, 0, time.UTC)},
		{time.Date(2026, 5, 10, 5, 59, 59, 0, time.UTC), time.Date(2026, 5, 9, 6, 0, 0, 0, time.UTC)},
		{time.Date(2026, 5, 10, 23, 0, 0, 0, time.UTC), time.Date(2026, 5, 10, 6, 0, 0, 0, time.UTC)},
	}
	for _, tc := range cases {
		gen := c.Generation(tc.at)
		if got := c.Start(gen); !got.Equal(tc.want) {
			t.Fatalf("%s: generation starts at %s, want %s", tc.at, got, tc.want)
		}
	}

	at := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)
	if next := c.Next(at); !next.Equal(time.Date(2026, 5, 11, 6, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected next rotation %s", next)
	}
	if c.Generation(c.Next(at)) != c.Generation(at)+1 {
		t.Fatalf("next must start the following generation")
	}
}

func TestClockBeforeOrigin(t *testing.T) {
	c := NewClock(0, time.Hour)
	if g := c.Generation(c.Origin.Add(-time.Minute)); g != -1 {
		t.Fatalf("expected -1, got %d", g)
	}
}

type stubRotator struct {
	rotated []dispatch.Rotated
	err     error
	gen     int64
}

func (r *stubRotator) RotateAll(_ context.Context, gen int64) ([]dispatch.Rotated, error) {
	r.gen = gen
	return r.rotated, r.err
}

type noticeRecorder struct{ epochs map[string]int64 }

func (n *noticeRecorder) PuzzleRotated(sessionID string, game domain.GameType, epoch int64) {
	n.epochs[sessionID+"/"+string(game)] = epoch
}

type closerRecorder struct{ closed []int64 }

func (c *closerRecorder) CloseGeneration(_ context.Context, gen int64) error {
	c.closed = append(c.closed, gen)
	return nil
}

func TestRunOnce(t *testing.T) {
	rot := &stubRotator{rotated: []dispatch.Rotated{
		{Key: store.PuzzleKey{SessionID: "a", Game: domain.GameTypeChessPuzzle}, Epoch: 3},
	}}
	notes := &noticeRecorder{epochs: map[string]int64{}}
	closer := &closerRecorder{}
	s := NewScheduler(NewClock(0, time.Hour), rot, notes, closer)

	if err := s.RunOnce(context.Background(), 12); err != nil {
		t.Fatalf("run: %v", err)
	}
	if rot.gen != 12 || notes.epochs["a/chess_puzzle"] != 3 {
		t.Fatalf("unexpected rotation %d %v", rot.gen, notes.epochs)
	}
	if len(closer.closed) != 1 || closer.closed[0] != 11 {
		t.Fatalf("previous generation should be closed: %v", closer.closed)
	}

	rot.err = errors.New("scan failed")
	if err := s.RunOnce(context.Background(), 13); err == nil {
		t.Fatalf("expected error")
	}
	if len(closer.closed) != 1 {
		t.Fatalf("failed rotation must not close the generation")
	}
}

func TestSchedulerFiresAtBoundary(t *testing.T) {
	rot := &stubRotator{}
	done := make(chan int64, 1)
	closer := closeFunc(func(gen int64) {
		select {
		case done <- gen:
		default:
		}
	})

	c := NewClock(0, 50*time.Millisecond)
	s := NewScheduler(c, rot, nil, closer)
	s.Start(context.Background())
	defer s.Stop()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("scheduler never fired")
	}
}

type closeFunc func(int64)

func (f closeFunc) CloseGeneration(_ context.Context, gen int64) error {
	f(gen)
	return nil
}
