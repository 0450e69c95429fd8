package domain

import (
	"strings"
	"time"
)

// GameType - registered puzzle type
type GameType string

const (
	GameTypeChessPuzzle GameType = "chess_puzzle"
	GameTypeMinesweeper GameType = "minesweeper"
)

// GameResult - terminal outcome of a puzzle
type GameResult string

const (
	GameResultNone GameResult = ""
	GameResultWon  GameResult = "won"
	GameResultLost GameResult = "lost"
)

// PuzzleState is the authoritative per (session, game) puzzle record.
// The client only ever holds a read-only copy of it.
type PuzzleState struct {
	Game         GameType   `json:"game"`
	Epoch        int64      `json:"epoch"`
	ContentID    string     `json:"content_id"`
	Generation   int64      `json:"generation"`
	Position     string     `json:"position"`
	Orientation  string     `json:"orientation"`
	Score        int        `json:"score"`
	Mistakes     int        `json:"mistakes"`
	Ply          int        `json:"ply"`
	Moves        []string   `json:"moves"`
	HousePending bool       `json:"house_pending"`
	Gameover     bool       `json:"gameover"`
	Result       GameResult `json:"result,omitempty"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Clone returns a deep copy so callers never share the Moves slice.
func (s PuzzleState) Clone() PuzzleState {
	out := s
	if s.Moves != nil {
		out.Moves = append(make([]string, 0, len(s.Moves)), s.Moves...)
	}
	return out
}

// Action is a single complete move intent. Promotion-class moves carry
// their sub-choice; the server keeps no partial move state.
type Action struct {
	From      string `json:"from,omitempty"`
	To        string `json:"to,omitempty"`
	Promotion string `json:"promotion,omitempty"`
	UCI       string `json:"uci,omitempty"`
}

// Normalize lowercases the descriptor and expands UCI shorthand into
// from/to/promotion.
func (a Action) Normalize() Action {
	out := Action{
		From:      strings.ToLower(strings.TrimSpace(a.From)),
		To:        strings.ToLower(strings.TrimSpace(a.To)),
		Promotion: strings.ToLower(strings.TrimSpace(a.Promotion)),
	}
	uci := strings.ToLower(strings.TrimSpace(a.UCI))
	if out.From == "" && out.To == "" && len(uci) >= 4 {
		out.From = uci[0:2]
		out.To = uci[2:4]
		if len(uci) > 4 {
			out.Promotion = uci[4:]
		}
	}
	return out
}

// String renders the action in UCI form (or just the target for
// single-square games).
func (a Action) String() string {
	return a.From + a.To + a.Promotion
}

// DispatchResult is one classified dispatch outcome.
type DispatchResult struct {
	PuzzleState
	Illegal   bool   `json:"illegal,omitempty"`
	Wrong     bool   `json:"wrong,omitempty"`
	HouseMove string `json:"house_move,omitempty"`
}

// PuzzleResult - запись завершённой головоломки
type PuzzleResult struct {
	ID         string     `db:"id" json:"id"`
	UserID     string     `db:"user_id" json:"user_id"`
	Game       GameType   `db:"game" json:"game"`
	Generation int64      `db:"generation" json:"generation"`
	Epoch      int64      `db:"epoch" json:"epoch"`
	ContentID  string     `db:"content_id" json:"content_id"`
	Score      int        `db:"score" json:"score"`
	Mistakes   int        `db:"mistakes" json:"mistakes"`
	Result     GameResult `db:"result" json:"result"`
	Moves      []string   `db:"moves" json:"moves"`
	FinishedAt time.Time  `db:"finished_at" json:"finished_at"`
}

// Ranking is one leaderboard entry.
type Ranking struct {
	UserID string `json:"user_id"`
	Score  int    `json:"score"`
}

// DailyStats - итоги одной ротации
type DailyStats struct {
	Game       GameType  `db:"game" json:"game"`
	Generation int64     `db:"generation" json:"generation"`
	Date       time.Time `db:"date" json:"date"`
	MaxScore   int       `db:"max_score" json:"max_score"`
	Streak     int       `db:"streak" json:"streak"`
	Rankings   []Ranking `db:"rankings" json:"rankings"`
}
