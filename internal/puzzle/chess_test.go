package puzzle

import (
	"errors"
	"testing"

	"puzzle_webapp/internal/domain"
)

func newTestChess(t *testing.T) *Chess {
	t.Helper()
	c, err := NewChess(DefaultChessCatalog(), Rules{HouseTurn: true, Wrong: WrongRevert, RankOrder: RankAsc})
	if err != nil {
		t.Fatalf("catalog should be valid: %v", err)
	}
	return c
}

// setupByID finds the generation that serves the given content.
func setupByID(t *testing.T, c *Chess, id string) domain.PuzzleState {
	t.Helper()
	for gen := int64(0); gen < int64(len(c.catalog)); gen++ {
		s, err := c.Setup(gen)
		if err != nil {
			t.Fatalf("setup: %v", err)
		}
		if s.ContentID == id {
			return domain.PuzzleState{ContentID: s.ContentID, Position: s.Position, Orientation: s.Orientation, Generation: gen}
		}
	}
	t.Fatalf("content %s not in catalog", id)
	return domain.PuzzleState{}
}

func TestNewChessRejectsBrokenPuzzles(t *testing.T) {
	cases := []struct {
		name string
		p    ChessPuzzle
	}{
		{"even-length", ChessPuzzle{ID: "x", FEN: "6k1/5ppp/8/8/8/8/8/R5K1 w - - 0 1", Solution: []string{"a1a8", "g8h8"}}},
		{"illegal-line", ChessPuzzle{ID: "y", FEN: "6k1/5ppp/8/8/8/8/8/R5K1 w - - 0 1", Solution: []string{"a1b2"}}},
		{"bad-fen", ChessPuzzle{ID: "z", FEN: "not a fen", Solution: []string{"a1a8"}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewChess([]ChessPuzzle{tc.p}, Rules{}); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestChessSetupRotatesThroughCatalog(t *testing.T) {
	c := newTestChess(t)
	a, _ := c.Setup(0)
	b, _ := c.Setup(int64(len(c.catalog)))
	if a.ContentID != b.ContentID {
		t.Fatalf("generation should wrap around the catalog: %s vs %s", a.ContentID, b.ContentID)
	}
	next, _ := c.Setup(1)
	if next.ContentID == a.ContentID {
		t.Fatalf("consecutive generations should serve different puzzles")
	}
	if a.Orientation != "white" {
		t.Fatalf("expected white orientation, got %s", a.Orientation)
	}
}

func TestChessApplyLegality(t *testing.T) {
	c := newTestChess(t)
	st := setupByID(t, c, "ruy-lopez")

	cases := []struct {
		name    string
		action  domain.Action
		illegal bool
	}{
		{"pawn-double-step", domain.Action{From: "e2", To: "e4"}, false},
		{"uci-shorthand", domain.Action{UCI: "g1f3"}, false},
		{"pawn-triple-step", domain.Action{From: "e2", To: "e5"}, true},
		{"opponent-piece", domain.Action{From: "e7", To: "e5"}, true},
		{"malformed", domain.Action{From: "zz", To: "e4"}, true},
		{"empty", domain.Action{}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			next, err := c.Apply(st, tc.action.Normalize())
			if tc.illegal {
				if !errors.Is(err, ErrIllegal) {
					t.Fatalf("expected ErrIllegal, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if next == st.Position {
				t.Fatalf("position should change")
			}
		})
	}
}

func TestChessPromotionNeedsSubChoice(t *testing.T) {
	c := newTestChess(t)
	st := setupByID(t, c, "promotion")

	if _, err := c.Apply(st, domain.Action{From: "e7", To: "e8"}); !errors.Is(err, ErrIllegal) {
		t.Fatalf("promotion without piece should be illegal, got %v", err)
	}
	if _, err := c.Apply(st, domain.Action{From: "e7", To: "e8", Promotion: "k"}); !errors.Is(err, ErrIllegal) {
		t.Fatalf("promotion to king should be illegal, got %v", err)
	}

	a := domain.Action{UCI: "e7e8q"}.Normalize()
	next, err := c.Apply(st, a)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	v, err := c.Judge(st, a, next)
	if err != nil {
		t.Fatalf("judge: %v", err)
	}
	if !v.Correct || !v.Terminal || !v.Won {
		t.Fatalf("expected winning verdict, got %+v", v)
	}
}

func TestChessJudgeAndHouse(t *testing.T) {
	c := newTestChess(t)
	st := setupByID(t, c, "scholars-mate")

	wrong := domain.Action{UCI: "d1f3"}.Normalize()
	cand, err := c.Apply(st, wrong)
	if err != nil {
		t.Fatalf("apply wrong: %v", err)
	}
	v, _ := c.Judge(st, wrong, cand)
	if v.Correct || v.Score != 1 {
		t.Fatalf("expected wrong verdict with score 1, got %+v", v)
	}

	right := domain.Action{UCI: "d1h5"}.Normalize()
	cand, _ = c.Apply(st, right)
	v, _ = c.Judge(st, right, cand)
	if !v.Correct || v.Terminal {
		t.Fatalf("expected correct non-terminal verdict, got %+v", v)
	}

	st.Position = cand
	st.Ply = 1
	hm, err := c.House(st)
	if err != nil {
		t.Fatalf("house: %v", err)
	}
	if hm.Move != "g8f6" || hm.Terminal {
		t.Fatalf("unexpected house move %+v", hm)
	}

	st.Position = hm.Position
	st.Ply = 2
	mate := domain.Action{UCI: "h5f7"}.Normalize()
	cand, err = c.Apply(st, mate)
	if err != nil {
		t.Fatalf("apply mate: %v", err)
	}
	v, _ = c.Judge(st, mate, cand)
	if !v.Correct || !v.Terminal || !v.Won {
		t.Fatalf("expected mate to win, got %+v", v)
	}
}

func TestChessJudgeUnknownContent(t *testing.T) {
	c := newTestChess(t)
	st := setupByID(t, c, "back-rank")
	st.ContentID = "gone"
	if _, err := c.Judge(st, domain.Action{UCI: "a1a8"}.Normalize(), st.Position); !errors.Is(err, ErrUnknownContent) {
		t.Fatalf("expected ErrUnknownContent, got %v", err)
	}
}
