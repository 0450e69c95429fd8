package repository

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"puzzle_webapp/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrStatsNotFound = errors.New("stats not found")

type StatsRepository struct {
	db *pgxpool.Pool
}

func NewStatsRepository(db *pgxpool.Pool) *StatsRepository {
	return &StatsRepository{db: db}
}

// Save записывает итоги ротации; повторная запись той же генерации игнорируется
func (r *StatsRepository) Save(ctx context.Context, s *domain.DailyStats) error {
	rankingsJSON, err := json.Marshal(s.Rankings)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx,
		`INSERT INTO daily_stats (game, generation, date, max_score, streak, rankings)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (game, generation) DO NOTHING`,
		s.Game, s.Generation, s.Date, s.MaxScore, s.Streak, rankingsJSON,
	)
	return err
}

func (r *StatsRepository) Latest(ctx context.Context, game domain.GameType) (*domain.DailyStats, error) {
	var s domain.DailyStats
	var rankingsJSON []byte
	err := r.db.QueryRow(ctx,
		`SELECT game, generation, date, max_score, streak, rankings
		 FROM daily_stats
		 WHERE game = $1
		 ORDER BY generation DESC
		 LIMIT 1`,
		game,
	).Scan(&s.Game, &s.Generation, &s.Date, &s.MaxScore, &s.Streak, &rankingsJSON)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrStatsNotFound
	}
	if err != nil {
		return nil, err
	}
	if len(rankingsJSON) > 0 {
		if err := json.Unmarshal(rankingsJSON, &s.Rankings); err != nil {
			return nil, err
		}
	}
	return &s, nil
}

// MemoryStatsRepository keeps stats for deployments without a database.
type MemoryStatsRepository struct {
	mu     sync.RWMutex
	latest map[domain.GameType]domain.DailyStats
}

func NewMemoryStatsRepository() *MemoryStatsRepository {
	return &MemoryStatsRepository{latest: make(map[domain.GameType]domain.DailyStats)}
}

func (r *MemoryStatsRepository) Save(_ context.Context, s *domain.DailyStats) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.latest[s.Game]; ok && cur.Generation >= s.Generation {
		return nil
	}
	cp := *s
	cp.Rankings = append([]domain.Ranking(nil), s.Rankings...)
	r.latest[s.Game] = cp
	return nil
}

func (r *MemoryStatsRepository) Latest(_ context.Context, game domain.GameType) (*domain.DailyStats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.latest[game]
	if !ok {
		return nil, ErrStatsNotFound
	}
	return &s, nil
}
