package ws

import "puzzle_webapp/internal/domain"

// Notice is pushed to every connection of a session.
type Notice struct {
	Type  string          `json:"type"`
	Game  domain.GameType `json:"game,omitempty"`
	Epoch int64           `json:"epoch,omitempty"`
}
