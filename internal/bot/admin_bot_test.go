package bot

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"puzzle_webapp/internal/domain"
	"puzzle_webapp/internal/logger"
)

type fakeReporter struct {
	stats map[domain.GameType]*domain.DailyStats
	top   []domain.Ranking
}

func (f fakeReporter) Leaderboard(_ context.Context, _ domain.GameType, limit int) (int64, []domain.Ranking, error) {
	if limit < len(f.top) {
		return 7, f.top[:limit], nil
	}
	return 7, f.top, nil
}

func (f fakeReporter) DailyStats(_ context.Context, game domain.GameType) (*domain.DailyStats, error) {
	st, ok := f.stats[game]
	if !ok {
		return nil, errors.New("not found")
	}
	return st, nil
}

type fakeRotator struct{ gens []int64 }

func (r *fakeRotator) RunOnce(_ context.Context, gen int64) error {
	r.gens = append(r.gens, gen)
	return nil
}

func newTestBot(rot *fakeRotator) *AdminBot {
	rep := fakeReporter{
		stats: map[domain.GameType]*domain.DailyStats{
			domain.GameTypeMinesweeper: {Game: domain.GameTypeMinesweeper, Generation: 6, MaxScore: 40, Streak: 3},
		},
		top: []domain.Ranking{{UserID: "a", Score: 3}, {UserID: "b", Score: 5}},
	}
	return newAdminBot(nil, Ops{
		Reporter:    rep,
		Rotator:     rot,
		Generation:  func(time.Time) int64 { return 7 },
		Sessions:    func(context.Context) (int, error) { return 4, nil },
		Connections: func() int { return 2 },
		Games:       []domain.GameType{domain.GameTypeChessPuzzle, domain.GameTypeMinesweeper},
	}, []int64{100}, logger.With("component", "admin_bot"))
}

func TestRespond(t *testing.T) {
	rot := &fakeRotator{}
	b := newTestBot(rot)
	ctx := context.Background()

	tests := []struct {
		command, args string
		want          string
	}{
		{"help", "", "/rotate"},
		{"stats", "minesweeper", "ротация 6"},
		{"stats", "", "Нет данных по chess_puzzle"},
		{"top", "chess_puzzle 1", "1. a — 3"},
		{"sessions", "", "Сессий: 4"},
		{"nope", "", "Неизвестная команда"},
	}
	for _, tt := range tests {
		got := b.respond(ctx, tt.command, tt.args)
		if !strings.Contains(got, tt.want) {
			t.Errorf("/%s %s: expected %q in %q", tt.command, tt.args, tt.want, got)
		}
	}

	if got := b.respond(ctx, "top", "chess_puzzle 1"); strings.Contains(got, "2. b") {
		t.Errorf("limit not applied: %q", got)
	}
}

func TestRespondRotate(t *testing.T) {
	rot := &fakeRotator{}
	b := newTestBot(rot)
	if got := b.respond(context.Background(), "rotate", ""); !strings.Contains(got, "7") {
		t.Fatalf("unexpected reply %q", got)
	}
	if len(rot.gens) != 1 || rot.gens[0] != 7 {
		t.Fatalf("expected rotation of generation 7, got %v", rot.gens)
	}
}

func TestIsAdmin(t *testing.T) {
	b := newTestBot(&fakeRotator{})
	if !b.isAdmin(100) || b.isAdmin(101) {
		t.Fatalf("admin check is wrong")
	}
}
