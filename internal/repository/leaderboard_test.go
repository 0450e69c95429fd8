package repository

import (
	"context"
	"errors"
	"os"
	"strconv"
	"testing"
	"time"

	"puzzle_webapp/internal/domain"

	redis "github.com/redis/go-redis/v9"
)

func exerciseLeaderboard(t *testing.T, l Leaderboard, game domain.GameType, gen int64) {
	t.Helper()
	ctx := context.Background()

	// ascending: fewer attempts is better, only the best is kept
	l.Submit(ctx, game, gen, "alice", 5, true)
	l.Submit(ctx, game, gen, "alice", 7, true)
	l.Submit(ctx, game, gen, "bob", 3, true)
	l.Submit(ctx, game, gen, "carol", 4, true)
	l.Submit(ctx, game, gen, "alice", 2, true)

	top, err := l.Top(ctx, game, gen, true, 2)
	if err != nil {
		t.Fatalf("top: %v", err)
	}
	if len(top) != 2 || top[0] != (domain.Ranking{UserID: "alice", Score: 2}) || top[1].UserID != "bob" {
		t.Fatalf("unexpected ascending ranking %+v", top)
	}

	if played, _ := l.Played(ctx, game, gen); played {
		t.Fatalf("generation not played yet")
	}
	l.MarkPlayed(ctx, game, gen)
	l.MarkPlayed(ctx, game, gen)
	if played, _ := l.Played(ctx, game, gen); !played {
		t.Fatalf("generation should be played")
	}

	if err := l.Drop(ctx, game, gen); err != nil {
		t.Fatalf("drop: %v", err)
	}
	if top, _ := l.Top(ctx, game, gen, true, 0); len(top) != 0 {
		t.Fatalf("dropped board still has %v", top)
	}

	// descending: more is better
	l.Submit(ctx, game, gen+1, "alice", 10, false)
	l.Submit(ctx, game, gen+1, "alice", 8, false)
	l.Submit(ctx, game, gen+1, "bob", 12, false)
	top, _ = l.Top(ctx, game, gen+1, false, 0)
	if len(top) != 2 || top[0].UserID != "bob" || top[1].Score != 10 {
		t.Fatalf("unexpected descending ranking %+v", top)
	}
	l.Drop(ctx, game, gen+1)
}

func TestMemoryLeaderboard(t *testing.T) {
	exerciseLeaderboard(t, NewMemoryLeaderboard(), domain.GameTypeChessPuzzle, 1)
}

// Integration-style test: runs only if REDIS_ADDR env is set.
func TestRedisLeaderboardIntegration(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set; skipping integration test")
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr, Password: os.Getenv("REDIS_PASSWORD")})
	defer rdb.Close()

	gen := time.Now().UnixNano()
	exerciseLeaderboard(t, NewRedisLeaderboard(rdb, time.Minute), domain.GameType("test_"+strconv.FormatInt(gen, 36)), gen)
}

func TestMemoryStatsRepository(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryStatsRepository()

	if _, err := r.Latest(ctx, domain.GameTypeMinesweeper); !errors.Is(err, ErrStatsNotFound) {
		t.Fatalf("expected ErrStatsNotFound, got %v", err)
	}

	r.Save(ctx, &domain.DailyStats{Game: domain.GameTypeMinesweeper, Generation: 4, Streak: 2})
	r.Save(ctx, &domain.DailyStats{Game: domain.GameTypeMinesweeper, Generation: 3, Streak: 9})

	s, err := r.Latest(ctx, domain.GameTypeMinesweeper)
	if err != nil || s.Generation != 4 || s.Streak != 2 {
		t.Fatalf("older generation must not replace newer: %+v %v", s, err)
	}
}
