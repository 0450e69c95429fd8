package puzzle

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"

	"puzzle_webapp/internal/domain"
)

const (
	MinesweeperSide  = 8
	MinesweeperCells = MinesweeperSide * MinesweeperSide
	MinesweeperMin   = 1
	MinesweeperMax   = MinesweeperCells - 1

	cellHidden = '.'
	cellMine   = '*'

	minesSalt = 0x9e3779b97f4a7c15
)

// Minesweeper is a daily 8x8 board. Every player of a generation gets the
// same mine layout, derived from the content id, so nothing secret has to
// be stored with the puzzle state.
//
// Position encoding: 64 bytes, a1..h1 then a2..h2 and so on.
// '.' hidden, '0'-'8' revealed neighbour count, '*' mine.
type Minesweeper struct {
	mines int
}

func NewMinesweeper(mines int) (*Minesweeper, error) {
	if mines < MinesweeperMin || mines > MinesweeperMax {
		return nil, fmt.Errorf("mines count must be between %d and %d", MinesweeperMin, MinesweeperMax)
	}
	return &Minesweeper{mines: mines}, nil
}

func (m *Minesweeper) Type() domain.GameType { return domain.GameTypeMinesweeper }

func (m *Minesweeper) Rules() Rules {
	return Rules{
		HouseTurn:   false,
		Wrong:       WrongKeep,
		MaxMistakes: 1,
		RankOrder:   RankDesc,
	}
}

func (m *Minesweeper) Setup(generation int64) (Setup, error) {
	return Setup{
		ContentID: fmt.Sprintf("ms-%d-%d", generation, m.mines),
		Position:  strings.Repeat(string(cellHidden), MinesweeperCells),
	}, nil
}

func (m *Minesweeper) Apply(st domain.PuzzleState, a domain.Action) (string, error) {
	if len(st.Position) != MinesweeperCells {
		return "", fmt.Errorf("stored board has %d cells", len(st.Position))
	}
	mines, err := minesFor(st.ContentID)
	if err != nil {
		return "", err
	}

	cell, ok := parseCell(a.To)
	if !ok || a.From != "" || a.Promotion != "" {
		return "", ErrIllegal
	}
	if st.Position[cell] != cellHidden {
		return "", ErrIllegal
	}

	board := []byte(st.Position)
	if mines[cell] {
		board[cell] = cellMine
		return string(board), nil
	}
	reveal(board, mines, cell)
	return string(board), nil
}

func (m *Minesweeper) Judge(st domain.PuzzleState, a domain.Action, candidate string) (Verdict, error) {
	cell, ok := parseCell(a.To)
	if !ok || len(candidate) != MinesweeperCells {
		return Verdict{}, errors.New("judge called with unapplied action")
	}
	mines, err := minesFor(st.ContentID)
	if err != nil {
		return Verdict{}, err
	}

	safe := 0
	for i := 0; i < MinesweeperCells; i++ {
		if candidate[i] != cellHidden && candidate[i] != cellMine {
			safe++
		}
	}

	v := Verdict{
		Correct:  !mines[cell],
		Score:    safe,
		Position: candidate,
	}
	if v.Correct && safe == MinesweeperCells-len(mines) {
		v.Terminal = true
		v.Won = true
	}
	return v, nil
}

func (m *Minesweeper) House(domain.PuzzleState) (HouseMove, error) {
	return HouseMove{}, ErrNoHouseTurn
}

// Finish reveals every mine once the puzzle is over.
func (m *Minesweeper) Finish(st domain.PuzzleState) string {
	mines, err := minesFor(st.ContentID)
	if err != nil || len(st.Position) != MinesweeperCells {
		return st.Position
	}
	board := []byte(st.Position)
	for cell := range mines {
		board[cell] = cellMine
	}
	return string(board)
}

func minesFor(contentID string) (map[int]bool, error) {
	var generation int64
	var count int
	if _, err := fmt.Sscanf(contentID, "ms-%d-%d", &generation, &count); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownContent, contentID)
	}
	if count < MinesweeperMin || count > MinesweeperMax {
		return nil, fmt.Errorf("%w: %s", ErrUnknownContent, contentID)
	}

	rng := rand.New(rand.NewPCG(uint64(generation), minesSalt))
	mines := make(map[int]bool, count)
	for len(mines) < count {
		mines[rng.IntN(MinesweeperCells)] = true
	}
	return mines, nil
}

// reveal opens cell and flood-fills through zero cells.
func reveal(board []byte, mines map[int]bool, cell int) {
	stack := []int{cell}
	for len(stack) > 0 {
		c := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if board[c] != cellHidden || mines[c] {
			continue
		}
		n := 0
		for _, nb := range neighbours(c) {
			if mines[nb] {
				n++
			}
		}
		board[c] = byte('0' + n)
		if n == 0 {
			stack = append(stack, neighbours(c)...)
		}
	}
}

func neighbours(cell int) []int {
	row, col := cell/MinesweeperSide, cell%MinesweeperSide
	out := make([]int, 0, 8)
	for dr := -1; dr <= 1; dr++ {
		for dc := -1; dc <= 1; dc++ {
			if dr == 0 && dc == 0 {
				continue
			}
			r, c := row+dr, col+dc
			if r < 0 || r >= MinesweeperSide || c < 0 || c >= MinesweeperSide {
				continue
			}
			out = append(out, r*MinesweeperSide+c)
		}
	}
	return out
}

// parseCell maps "a1".."h8" to a board index.
func parseCell(s string) (int, bool) {
	if len(s) != 2 {
		return 0, false
	}
	col := int(s[0] - 'a')
	row := int(s[1] - '1')
	if col < 0 || col >= MinesweeperSide || row < 0 || row >= MinesweeperSide {
		return 0, false
	}
	return row*MinesweeperSide + col, true
}

// CellName is the inverse of parseCell.
func CellName(cell int) string {
	return string([]byte{byte('a' + cell%MinesweeperSide), byte('1' + cell/MinesweeperSide)})
}
