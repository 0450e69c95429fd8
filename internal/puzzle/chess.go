package puzzle

import (
	"errors"
	"fmt"

	"puzzle_webapp/internal/domain"

	"github.com/notnil/chess"
)

// ChessPuzzle is a scripted line. Even indexes are the solver's moves,
// odd indexes are the house replies, so the line has odd length.
type ChessPuzzle struct {
	ID       string
	FEN      string
	Solution []string // UCI
	Rating   int
}

// Chess serves chess puzzles. Legality is delegated to notnil/chess; the
// engine itself only knows the scripted solution.
type Chess struct {
	catalog []ChessPuzzle
	byID    map[string]ChessPuzzle
	rules   Rules
}

func NewChess(catalog []ChessPuzzle, rules Rules) (*Chess, error) {
	if len(catalog) == 0 {
		return nil, errors.New("empty chess catalog")
	}
	c := &Chess{
		catalog: catalog,
		byID:    make(map[string]ChessPuzzle, len(catalog)),
		rules:   rules,
	}
	for _, p := range catalog {
		if err := validateChessPuzzle(p); err != nil {
			return nil, fmt.Errorf("puzzle %s: %w", p.ID, err)
		}
		c.byID[p.ID] = p
	}
	return c, nil
}

func validateChessPuzzle(p ChessPuzzle) error {
	if len(p.Solution)%2 == 0 {
		return errors.New("solution must end on a solver move")
	}
	pos, err := parseFEN(p.FEN)
	if err != nil {
		return err
	}
	for i, uci := range p.Solution {
		m := findMove(pos, domain.Action{UCI: uci}.Normalize())
		if m == nil {
			return fmt.Errorf("solution move %d (%s) is illegal", i, uci)
		}
		pos = pos.Update(m)
	}
	return nil
}

func (c *Chess) Type() domain.GameType { return domain.GameTypeChessPuzzle }

func (c *Chess) Rules() Rules { return c.rules }

func (c *Chess) Setup(generation int64) (Setup, error) {
	idx := int(generation % int64(len(c.catalog)))
	if idx < 0 {
		idx += len(c.catalog)
	}
	p := c.catalog[idx]

	pos, err := parseFEN(p.FEN)
	if err != nil {
		return Setup{}, err
	}

	orientation := "white"
	if pos.Turn() == chess.Black {
		orientation = "black"
	}

	return Setup{
		ContentID:   p.ID,
		Position:    pos.String(),
		Orientation: orientation,
	}, nil
}

func (c *Chess) Apply(st domain.PuzzleState, a domain.Action) (string, error) {
	pos, err := parseFEN(st.Position)
	if err != nil {
		// stored position is ours, so this is not the player's fault
		return "", fmt.Errorf("decode stored position: %w", err)
	}
	if len(a.From) != 2 || len(a.To) != 2 {
		return "", ErrIllegal
	}

	m := findMove(pos, a)
	if m == nil {
		return "", ErrIllegal
	}
	return pos.Update(m).String(), nil
}

func (c *Chess) Judge(st domain.PuzzleState, a domain.Action, candidate string) (Verdict, error) {
	p, ok := c.byID[st.ContentID]
	if !ok {
		return Verdict{}, fmt.Errorf("%w: %s", ErrUnknownContent, st.ContentID)
	}

	v := Verdict{
		Score:    st.Score + 1, // every legal attempt counts
		Position: candidate,
	}

	idx := st.Ply
	if idx >= len(p.Solution) {
		return v, nil
	}

	v.Correct = a.String() == p.Solution[idx]
	last := idx == len(p.Solution)-1

	// any mate finishes the puzzle, not only the scripted one
	if !v.Correct && last {
		pos, err := parseFEN(candidate)
		if err == nil && pos.Status() == chess.Checkmate {
			v.Correct = true
		}
	}

	if v.Correct && last {
		v.Terminal = true
		v.Won = true
	}
	return v, nil
}

func (c *Chess) House(st domain.PuzzleState) (HouseMove, error) {
	p, ok := c.byID[st.ContentID]
	if !ok {
		return HouseMove{}, fmt.Errorf("%w: %s", ErrUnknownContent, st.ContentID)
	}
	if st.Ply >= len(p.Solution) {
		return HouseMove{}, errors.New("no scripted reply left")
	}

	reply := domain.Action{UCI: p.Solution[st.Ply]}.Normalize()
	next, err := c.Apply(st, reply)
	if err != nil {
		return HouseMove{}, fmt.Errorf("scripted reply %s: %w", reply, err)
	}

	terminal := st.Ply+1 >= len(p.Solution)
	return HouseMove{
		Move:     reply.String(),
		Position: next,
		Terminal: terminal,
		Won:      terminal,
	}, nil
}

func parseFEN(fen string) (*chess.Position, error) {
	opt, err := chess.FEN(fen)
	if err != nil {
		return nil, err
	}
	return chess.NewGame(opt).Position(), nil
}

func findMove(pos *chess.Position, a domain.Action) *chess.Move {
	promo, ok := promotionPiece(a.Promotion)
	if !ok {
		return nil
	}
	for _, m := range pos.ValidMoves() {
		if m.S1().String() == a.From && m.S2().String() == a.To && m.Promo() == promo {
			return m
		}
	}
	return nil
}

func promotionPiece(s string) (chess.PieceType, bool) {
	switch s {
	case "":
		return chess.NoPieceType, true
	case "q":
		return chess.Queen, true
	case "r":
		return chess.Rook, true
	case "b":
		return chess.Bishop, true
	case "n":
		return chess.Knight, true
	default:
		return chess.NoPieceType, false
	}
}
