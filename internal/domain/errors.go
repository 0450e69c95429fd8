package domain

import (
	"errors"
	"fmt"
)

var (
	ErrIdentityInvalid = errors.New("identity invalid")
	ErrSessionExpired  = errors.New("session expired")
	ErrUnknownGame     = errors.New("unknown game")
)

// ConflictError means no dispatch happened against the epoch the client
// addressed. It is recoverable only through start/reset.
type ConflictError struct {
	CurrentEpoch int64
	// Started is false when there is no puzzle for the key at all.
	Started bool
}

func (e *ConflictError) Error() string {
	if !e.Started {
		return "conflict: puzzle not started"
	}
	return fmt.Sprintf("conflict: current epoch is %d", e.CurrentEpoch)
}

// IsConflict reports whether err carries a ConflictError.
func IsConflict(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce)
}
