// Package nav carries the terminal events the chat controller and the
// draft workspace emit. Whoever renders the application decides where to
// route and how long to wait before doing so.
package nav

import (
	"sync"

	"github.com/comigor/mailagent/internal/mail"
)

// Kind names a navigation-worthy event.
type Kind string

const (
	// DraftCreated asks to open the editor for a freshly generated draft.
	DraftCreated Kind = "draft_created"
	// DraftDeleted asks to leave the editor of a deleted draft.
	DraftDeleted Kind = "draft_deleted"
)

// Event is emitted once per terminal outcome.
type Event struct {
	Kind    Kind
	DraftID mail.DraftID
}

// Bridge receives events. Implementations must not block.
type Bridge interface {
	Navigate(ev Event)
}

// BridgeFunc adapts a function to Bridge.
type BridgeFunc func(ev Event)

func (f BridgeFunc) Navigate(ev Event) { f(ev) }

// Discard drops every event.
var Discard Bridge = BridgeFunc(func(Event) {})

// Recorder keeps every event it receives, for tests and headless use.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Navigate(ev Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

// Events returns the events received so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}
