package puzzle

import (
	"errors"

	"puzzle_webapp/internal/domain"
)

var (
	// ErrIllegal is returned by an Oracle when the action is malformed or
	// breaks the game's rules. It is a normal outcome, not a failure.
	ErrIllegal        = errors.New("illegal move")
	ErrUnknownContent = errors.New("unknown puzzle content")
	ErrNoHouseTurn    = errors.New("game has no house turn")
)

// WrongPolicy decides what happens to the position on a legal but
// incorrect move. Mistake counters persist either way.
type WrongPolicy string

const (
	WrongRevert WrongPolicy = "revert"
	WrongKeep   WrongPolicy = "keep"
)

type RankOrder string

const (
	RankAsc  RankOrder = "asc"
	RankDesc RankOrder = "desc"
)

type Rules struct {
	HouseTurn   bool        `json:"house_turn"`
	Wrong       WrongPolicy `json:"wrong_policy"`
	MaxMistakes int         `json:"max_mistakes"` // 0 = unlimited
	RankOrder   RankOrder   `json:"rank_order"`
}

// Setup is the initial puzzle for one rotation generation.
type Setup struct {
	ContentID   string
	Position    string
	Orientation string
}

type Verdict struct {
	Correct  bool
	Terminal bool
	Won      bool
	Score    int
	// Position is the candidate to commit when the move is kept.
	Position string
}

type HouseMove struct {
	Move     string
	Position string
	Terminal bool
	Won      bool
}

// Oracle is the legality capability: it validates an action against the
// current position and returns the resulting position, or ErrIllegal.
type Oracle interface {
	Apply(st domain.PuzzleState, a domain.Action) (string, error)
}

type Game interface {
	Oracle
	Type() domain.GameType
	Rules() Rules
	Setup(generation int64) (Setup, error)
	Judge(st domain.PuzzleState, a domain.Action, candidate string) (Verdict, error)
	House(st domain.PuzzleState) (HouseMove, error)
}

// Finisher is implemented by games that reveal hidden information once a
// puzzle is over.
type Finisher interface {
	Finish(st domain.PuzzleState) string
}
