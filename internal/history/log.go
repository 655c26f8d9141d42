// Package history keeps the ordered message log of a chat session and
// optionally archives every turn to SQLite.
package history

import (
	"sync"
	"time"
)

// Archive receives a copy of every appended message. It is write-only:
// nothing in a session ever reads a transcript back.
type Archive interface {
	Save(rec Record)
}

// Log is the ordered, append-only transcript of one chat session.
type Log struct {
	mu        sync.RWMutex
	sessionID string
	messages  []Message
	archive   Archive
	now       func() time.Time
}

// NewLog creates an empty log for sessionID. archive may be nil.
func NewLog(sessionID string, archive Archive) *Log {
	return &Log{
		sessionID: sessionID,
		archive:   archive,
		now:       time.Now,
	}
}

// SessionID returns the id the log was created with.
func (l *Log) SessionID() string { return l.sessionID }

// Append adds msg at the end of the transcript.
func (l *Log) Append(msg Message) {
	l.mu.Lock()
	l.messages = append(l.messages, msg)
	l.mu.Unlock()

	if l.archive != nil {
		l.archive.Save(Record{
			SessionID: l.sessionID,
			Role:      msg.Role,
			Content:   msg.Content,
			CreatedAt: l.now(),
		})
	}
}

// Snapshot returns a copy of the full transcript in append order.
func (l *Log) Snapshot() []Message {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Message, len(l.messages))
	copy(out, l.messages)
	return out
}

// Len returns the number of messages appended so far.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.messages)
}

// Last returns the most recent message, if any.
func (l *Log) Last() (Message, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if len(l.messages) == 0 {
		return Message{}, false
	}
	return l.messages[len(l.messages)-1], true
}
