package repository

import (
	"context"
	"encoding/json"

	"puzzle_webapp/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PuzzleResultRepository struct {
	db *pgxpool.Pool
}

func NewPuzzleResultRepository(db *pgxpool.Pool) *PuzzleResultRepository {
	return &PuzzleResultRepository{db: db}
}

// Create сохраняет результат завершённой головоломки
func (r *PuzzleResultRepository) Create(ctx context.Context, pr *domain.PuzzleResult) error {
	if pr.ID == "" {
		pr.ID = uuid.NewString()
	}
	movesJSON, err := json.Marshal(pr.Moves)
	if err != nil {
		movesJSON = []byte("[]")
	}

	_, err = r.db.Exec(ctx,
		`INSERT INTO puzzle_results
			(id, user_id, game, generation, epoch, content_id, score, mistakes, result, moves, finished_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 ON CONFLICT (id) DO NOTHING`,
		pr.ID,
		pr.UserID,
		pr.Game,
		pr.Generation,
		pr.Epoch,
		pr.ContentID,
		pr.Score,
		pr.Mistakes,
		pr.Result,
		movesJSON,
		pr.FinishedAt,
	)
	return err
}

// GetByUser возвращает последние результаты пользователя
func (r *PuzzleResultRepository) GetByUser(ctx context.Context, userID string, limit int) ([]*domain.PuzzleResult, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}

	rows, err := r.db.Query(ctx,
		`SELECT id, user_id, game, generation, epoch, content_id, score, mistakes, result, moves, finished_at
		 FROM puzzle_results
		 WHERE user_id = $1
		 ORDER BY finished_at DESC
		 LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return r.scanRows(rows)
}

func (r *PuzzleResultRepository) scanRows(rows pgx.Rows) ([]*domain.PuzzleResult, error) {
	var out []*domain.PuzzleResult
	for rows.Next() {
		var pr domain.PuzzleResult
		var movesJSON []byte
		if err := rows.Scan(
			&pr.ID,
			&pr.UserID,
			&pr.Game,
			&pr.Generation,
			&pr.Epoch,
			&pr.ContentID,
			&pr.Score,
			&pr.Mistakes,
			&pr.Result,
			&movesJSON,
			&pr.FinishedAt,
		); err != nil {
			return nil, err
		}
		if len(movesJSON) > 0 {
			_ = json.Unmarshal(movesJSON, &pr.Moves)
		}
		out = append(out, &pr)
	}
	return out, rows.Err()
}
