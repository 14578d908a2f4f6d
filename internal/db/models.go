package db

import "time"

// Session is a stored web session. State holds the JSON-encoded visitor state.
type Session struct {
	ID        string
	State     []byte
	CreatedAt time.Time
	ExpiresAt time.Time
}
