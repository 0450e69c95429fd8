package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"puzzle_webapp/internal/domain"
	"puzzle_webapp/internal/logger"
	"puzzle_webapp/internal/puzzle"
	"puzzle_webapp/internal/repository"
)

type ResultStore interface {
	Create(ctx context.Context, pr *domain.PuzzleResult) error
	GetByUser(ctx context.Context, userID string, limit int) ([]*domain.PuzzleResult, error)
}

type StatsStore interface {
	Save(ctx context.Context, s *domain.DailyStats) error
	Latest(ctx context.Context, game domain.GameType) (*domain.DailyStats, error)
}

type SessionGetter interface {
	Get(ctx context.Context, id string) (*domain.Session, error)
}

// Calendar maps between wall time and rotation generations.
type Calendar interface {
	Generation(t time.Time) int64
	Start(gen int64) time.Time
}

// ResultService records finished puzzles into the live leaderboard and the
// result history, and closes each generation into daily stats.
type ResultService struct {
	sessions SessionGetter
	games    *puzzle.Registry
	board    repository.Leaderboard
	stats    StatsStore
	results  ResultStore // nil without a database
	calendar Calendar
	nowFn    func() time.Time
}

func NewResultService(sessions SessionGetter, games *puzzle.Registry, board repository.Leaderboard, stats StatsStore, results ResultStore, calendar Calendar) *ResultService {
	return &ResultService{
		sessions: sessions,
		games:    games,
		board:    board,
		stats:    stats,
		results:  results,
		calendar: calendar,
		nowFn:    time.Now,
	}
}

func ascending(g puzzle.Game) bool {
	return g.Rules().RankOrder == puzzle.RankAsc
}

// Record is called once per puzzle that reaches game over.
func (s *ResultService) Record(ctx context.Context, sessionID string, st domain.PuzzleState) error {
	sess, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("resolve session owner: %w", err)
	}
	g, err := s.games.Get(st.Game)
	if err != nil {
		return err
	}

	if err := s.board.MarkPlayed(ctx, st.Game, st.Generation); err != nil {
		logger.Warn("failed to mark generation played", "game", st.Game, "error", err)
	}
	// a failed ascending puzzle has no meaningful score
	if st.Result == domain.GameResultWon || !ascending(g) {
		if err := s.board.Submit(ctx, st.Game, st.Generation, sess.UserID, st.Score, ascending(g)); err != nil {
			return fmt.Errorf("submit score: %w", err)
		}
	}

	if s.results == nil {
		return nil
	}
	return s.results.Create(ctx, &domain.PuzzleResult{
		UserID:     sess.UserID,
		Game:       st.Game,
		Generation: st.Generation,
		Epoch:      st.Epoch,
		ContentID:  st.ContentID,
		Score:      st.Score,
		Mistakes:   st.Mistakes,
		Result:     st.Result,
		Moves:      st.Moves,
		FinishedAt: s.nowFn().UTC(),
	})
}

// CloseGeneration saves the final rankings of a generation for every game
// and clears its live leaderboard. Closing twice is harmless.
func (s *ResultService) CloseGeneration(ctx context.Context, gen int64) error {
	var errs []error
	for _, g := range s.games.List() {
		if err := s.closeGame(ctx, g, gen); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", g.Type(), err))
		}
	}
	return errors.Join(errs...)
}

func (s *ResultService) closeGame(ctx context.Context, g puzzle.Game, gen int64) error {
	game := g.Type()
	prev, err := s.stats.Latest(ctx, game)
	if err != nil && !errors.Is(err, repository.ErrStatsNotFound) {
		return err
	}
	if prev != nil && prev.Generation >= gen {
		return nil
	}

	played, err := s.board.Played(ctx, game, gen)
	if err != nil {
		return err
	}
	rankings, err := s.board.Top(ctx, game, gen, ascending(g), 0)
	if err != nil {
		return err
	}

	// consecutive generations in which anyone finished a puzzle
	streak := 0
	if played {
		streak = 1
		if prev != nil && prev.Generation == gen-1 {
			streak = prev.Streak + 1
		}
	}
	maxScore := 0
	if len(rankings) > 0 {
		maxScore = rankings[0].Score
	}

	stats := &domain.DailyStats{
		Game:       game,
		Generation: gen,
		Date:       s.calendar.Start(gen).UTC(),
		MaxScore:   maxScore,
		Streak:     streak,
		Rankings:   rankings,
	}
	if err := s.stats.Save(ctx, stats); err != nil {
		return err
	}
	logger.Info("generation closed", "game", game, "generation", gen, "players", len(rankings), "streak", streak)

	// only after the save, so a failed save can be retried
	return s.board.Drop(ctx, game, gen)
}

// Leaderboard returns the live ranking of the current generation.
func (s *ResultService) Leaderboard(ctx context.Context, game domain.GameType, limit int) (int64, []domain.Ranking, error) {
	g, err := s.games.Get(game)
	if err != nil {
		return 0, nil, err
	}
	gen := s.calendar.Generation(s.nowFn())
	rankings, err := s.board.Top(ctx, game, gen, ascending(g), limit)
	return gen, rankings, err
}

func (s *ResultService) DailyStats(ctx context.Context, game domain.GameType) (*domain.DailyStats, error) {
	if _, err := s.games.Get(game); err != nil {
		return nil, err
	}
	return s.stats.Latest(ctx, game)
}

func (s *ResultService) History(ctx context.Context, userID string, limit int) ([]*domain.PuzzleResult, error) {
	if s.results == nil {
		return []*domain.PuzzleResult{}, nil
	}
	return s.results.GetByUser(ctx, userID, limit)
}
