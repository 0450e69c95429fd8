package domain

import "time"

// Session is a server-tracked activity session. The ID is the only
// capability a client holds.
type Session struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	CreatedAt     time.Time `json:"created_at"`
	LastHeartbeat time.Time `json:"last_heartbeat"`
}

// IsLive reports whether now - LastHeartbeat < ttl.
func (s *Session) IsLive(now time.Time, ttl time.Duration) bool {
	if s == nil {
		return false
	}
	return now.Sub(s.LastHeartbeat) < ttl
}
