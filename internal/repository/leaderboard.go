package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"puzzle_webapp/internal/domain"

	redis "github.com/redis/go-redis/v9"
)

// Leaderboard keeps each player's best score per (game, generation).
// ascending=true means lower scores rank higher.
type Leaderboard interface {
	Submit(ctx context.Context, game domain.GameType, generation int64, userID string, score int, ascending bool) error
	Top(ctx context.Context, game domain.GameType, generation int64, ascending bool, limit int) ([]domain.Ranking, error)
	MarkPlayed(ctx context.Context, game domain.GameType, generation int64) error
	Played(ctx context.Context, game domain.GameType, generation int64) (bool, error)
	Drop(ctx context.Context, game domain.GameType, generation int64) error
}

func leaderboardKey(game domain.GameType, gen int64) string {
	return fmt.Sprintf("leaderboard:%s:%d", game, gen)
}

func playedKey(game domain.GameType, gen int64) string {
	return fmt.Sprintf("played:%s:%d", game, gen)
}

type RedisLeaderboard struct {
	rdb *redis.Client
	// keys outlive their generation long enough to be closed
	retention time.Duration
}

func NewRedisLeaderboard(rdb *redis.Client, retention time.Duration) *RedisLeaderboard {
	return &RedisLeaderboard{rdb: rdb, retention: retention}
}

func (l *RedisLeaderboard) Submit(ctx context.Context, game domain.GameType, gen int64, userID string, score int, ascending bool) error {
	key := leaderboardKey(game, gen)
	args := redis.ZAddArgs{
		GT:      !ascending,
		LT:      ascending,
		Members: []redis.Z{{Score: float64(score), Member: userID}},
	}
	_, err := l.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZAddArgs(ctx, key, args)
		pipe.Expire(ctx, key, l.retention)
		return nil
	})
	return err
}

func (l *RedisLeaderboard) Top(ctx context.Context, game domain.GameType, gen int64, ascending bool, limit int) ([]domain.Ranking, error) {
	stop := int64(limit) - 1
	if limit <= 0 {
		stop = -1
	}
	key := leaderboardKey(game, gen)

	var zs []redis.Z
	var err error
	if ascending {
		zs, err = l.rdb.ZRangeWithScores(ctx, key, 0, stop).Result()
	} else {
		zs, err = l.rdb.ZRevRangeWithScores(ctx, key, 0, stop).Result()
	}
	if err != nil {
		return nil, err
	}

	out := make([]domain.Ranking, 0, len(zs))
	for _, z := range zs {
		member, _ := z.Member.(string)
		out = append(out, domain.Ranking{UserID: member, Score: int(z.Score)})
	}
	return out, nil
}

func (l *RedisLeaderboard) MarkPlayed(ctx context.Context, game domain.GameType, gen int64) error {
	return l.rdb.SetNX(ctx, playedKey(game, gen), 1, l.retention).Err()
}

func (l *RedisLeaderboard) Played(ctx context.Context, game domain.GameType, gen int64) (bool, error) {
	n, err := l.rdb.Exists(ctx, playedKey(game, gen)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Drop removes a closed generation; called only after its stats are saved.
func (l *RedisLeaderboard) Drop(ctx context.Context, game domain.GameType, gen int64) error {
	return l.rdb.Del(ctx, leaderboardKey(game, gen), playedKey(game, gen)).Err()
}

type boardKey struct {
	game domain.GameType
	gen  int64
}

type MemoryLeaderboard struct {
	mu     sync.RWMutex
	boards map[boardKey]map[string]int
	played map[boardKey]bool
}

func NewMemoryLeaderboard() *MemoryLeaderboard {
	return &MemoryLeaderboard{
		boards: make(map[boardKey]map[string]int),
		played: make(map[boardKey]bool),
	}
}

func (l *MemoryLeaderboard) Submit(_ context.Context, game domain.GameType, gen int64, userID string, score int, ascending bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	k := boardKey{game, gen}
	board, ok := l.boards[k]
	if !ok {
		board = make(map[string]int)
		l.boards[k] = board
	}
	cur, seen := board[userID]
	if !seen || (ascending && score < cur) || (!ascending && score > cur) {
		board[userID] = score
	}
	return nil
}

func (l *MemoryLeaderboard) Top(_ context.Context, game domain.GameType, gen int64, ascending bool, limit int) ([]domain.Ranking, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	board := l.boards[boardKey{game, gen}]
	out := make([]domain.Ranking, 0, len(board))
	for uid, score := range board {
		out = append(out, domain.Ranking{UserID: uid, Score: score})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			if ascending {
				return out[i].Score < out[j].Score
			}
			return out[i].Score > out[j].Score
		}
		return out[i].UserID < out[j].UserID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (l *MemoryLeaderboard) MarkPlayed(_ context.Context, game domain.GameType, gen int64) error {
	l.mu.Lock()
	l.played[boardKey{game, gen}] = true
	l.mu.Unlock()
	return nil
}

func (l *MemoryLeaderboard) Played(_ context.Context, game domain.GameType, gen int64) (bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.played[boardKey{game, gen}], nil
}

func (l *MemoryLeaderboard) Drop(_ context.Context, game domain.GameType, gen int64) error {
	l.mu.Lock()
	delete(l.boards, boardKey{game, gen})
	delete(l.played, boardKey{game, gen})
	l.mu.Unlock()
	return nil
}
