package chat

import "time"

// Session is a client-chosen conversation key. Messages hang off it; nothing
// else about a session is kept in memory.
type Session struct {
	ID        string    `json:"session_id"`
	GuestID   *int64    `json:"guest_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

