package puzzle

import (
	"fmt"

	"puzzle_webapp/internal/domain"
)

type Registry struct {
	games map[domain.GameType]Game
	order []domain.GameType
}

func NewRegistry(games ...Game) *Registry {
	r := &Registry{games: make(map[domain.GameType]Game)}
	for _, g := range games {
		if _, dup := r.games[g.Type()]; !dup {
			r.order = append(r.order, g.Type())
		}
		r.games[g.Type()] = g
	}
	return r
}

// Options configures the built-in games.
type Options struct {
	ChessMaxMistakes int
	MinesweeperMines int
}

// NewDefaultRegistry builds the chess puzzle and minesweeper games.
func NewDefaultRegistry(opts Options) (*Registry, error) {
	chessGame, err := NewChess(DefaultChessCatalog(), Rules{
		HouseTurn:   true,
		Wrong:       WrongRevert,
		MaxMistakes: opts.ChessMaxMistakes,
		RankOrder:   RankAsc,
	})
	if err != nil {
		return nil, fmt.Errorf("chess catalog: %w", err)
	}

	mines, err := NewMinesweeper(opts.MinesweeperMines)
	if err != nil {
		return nil, err
	}

	return NewRegistry(chessGame, mines), nil
}

func (r *Registry) Get(gameType domain.GameType) (Game, error) {
	g, ok := r.games[gameType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownGame, gameType)
	}
	return g, nil
}

// List returns games in registration order.
func (r *Registry) List() []Game {
	out := make([]Game, 0, len(r.order))
	for _, t := range r.order {
		out = append(out, r.games[t])
	}
	return out
}
