package history

import "time"

// Role identifies who authored a chat turn.
type Role string

const (
	RoleUser  Role = "user"
	RoleAgent Role = "agent"
)

// Message is a single chat turn. The JSON shape is what the agent chat
// endpoint expects in its history field.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Record is a Message as written to the transcript archive.
type Record struct {
	ID        int64     `json:"id"`
	SessionID string    `json:"session_id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}
