package puzzle

// DefaultChessCatalog is the built-in rotation. The generation number picks
// the entry, so every player sees the same puzzle for a rotation.
func DefaultChessCatalog() []ChessPuzzle {
	return []ChessPuzzle{
		{
			ID:       "back-rank",
			FEN:      "6k1/5ppp/8/8/8/8/8/R5K1 w - - 0 1",
			Solution: []string{"a1a8"},
			Rating:   600,
		},
		{
			ID:       "scholars-mate",
			FEN:      "r1bqkbnr/pppp1ppp/2n5/4p3/2B1P3/8/PPPP1PPP/RNBQK1NR w KQkq - 2 3",
			Solution: []string{"d1h5", "g8f6", "h5f7"},
			Rating:   800,
		},
		{
			ID:       "ruy-lopez",
			FEN:      "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1",
			Solution: []string{"e2e4", "e7e5", "g1f3", "b8c6", "f1b5"},
			Rating:   900,
		},
		{
			ID:       "promotion",
			FEN:      "8/4P1k1/8/8/8/8/8/4K3 w - - 0 1",
			Solution: []string{"e7e8q"},
			Rating:   700,
		},
	}
}
