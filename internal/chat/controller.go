// Package chat implements the chat session controller: a small state
// machine that routes user input either to the agent or, after an explicit
// confirmation, to draft generation.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/qmuntal/stateless"

	"github.com/comigor/mailagent/internal/api"
	"github.com/comigor/mailagent/internal/history"
	"github.com/comigor/mailagent/internal/intent"
	"github.com/comigor/mailagent/internal/logger"
	"github.com/comigor/mailagent/internal/mail"
	"github.com/comigor/mailagent/internal/nav"
)

// State of a chat session. Exactly one is active at a time.
type State string

const (
	StateIdle                 State = "Idle"
	StateAwaitingConfirmation State = "AwaitingConfirmation"
	StateSending              State = "Sending"
	StateGeneratingDraft      State = "GeneratingDraft"
)

// Trigger moves the session between states.
type Trigger string

const (
	TriggerQuery        Trigger = "Query"
	TriggerRequestDraft Trigger = "RequestDraft"
	TriggerConfirm      Trigger = "Confirm"
	TriggerCancel       Trigger = "Cancel"
	TriggerReplied      Trigger = "Replied"
	TriggerDraftDone    Trigger = "DraftDone"
)

// Agent-role texts appended by the controller itself.
const (
	ErrorReply        = "❌ Sorry, I encountered an error. Please try again."
	DraftCreatedReply = "✅ Draft created! Opening the editor..."
	DraftFailedReply  = "❌ Failed to generate draft. Please try again."
)

var (
	ErrEmptyInput        = errors.New("empty input")
	ErrBusy              = errors.New("a request is already in flight")
	ErrInvalidTransition = errors.New("action not allowed in current state")
)

// AgentQuerier answers free-form questions about the inbox.
type AgentQuerier interface {
	AgentChat(ctx context.Context, req api.ChatRequest) (string, error)
}

// DraftGenerator creates a reply draft. *draft.Workspace satisfies it.
type DraftGenerator interface {
	Generate(ctx context.Context, emailID mail.EmailID, instructions string) (*mail.Draft, error)
}

// Snapshot is what a renderer needs to draw the session.
type Snapshot struct {
	State            State
	Messages         []history.Message
	PendingDraftText string
	EmailID          mail.EmailID
}

// Observer is told about every change. It is called without the
// controller lock held, so it may read back through the controller.
type Observer func(Snapshot)

// Options configure a Controller. Agent and Drafts are required.
type Options struct {
	Agent  AgentQuerier
	Drafts DraftGenerator
	// EmailID binds the session to one email; empty means inbox-wide.
	EmailID mail.EmailID
	Bridge  nav.Bridge
	Archive history.Archive
	// Welcome seeds the transcript; empty disables it.
	Welcome  string
	Observer Observer
}

// Controller owns one conversation.
type Controller struct {
	agent    AgentQuerier
	drafts   DraftGenerator
	bridge   nav.Bridge
	observer Observer
	emailID  mail.EmailID

	mu      sync.Mutex
	fsm     *stateless.StateMachine
	log     *history.Log
	pending string
}

// New builds a controller in Idle with an optional welcome message.
func New(opts Options) *Controller {
	c := &Controller{
		agent:    opts.Agent,
		drafts:   opts.Drafts,
		bridge:   opts.Bridge,
		observer: opts.Observer,
		emailID:  opts.EmailID,
		log:      history.NewLog(uuid.NewString(), opts.Archive),
	}
	if c.bridge == nil {
		c.bridge = nav.Discard
	}
	c.fsm = c.newMachine()

	if opts.Welcome != "" {
		c.log.Append(history.Message{Role: history.RoleAgent, Content: opts.Welcome})
	}
	return c
}

func (c *Controller) newMachine() *stateless.StateMachine {
	sm := stateless.NewStateMachineWithMode(StateIdle, stateless.FiringImmediate)

	sm.Configure(StateIdle).
		OnEntry(func(_ context.Context, _ ...any) error {
			c.pending = ""
			return nil
		}).
		Permit(TriggerQuery, StateSending).
		Permit(TriggerRequestDraft, StateAwaitingConfirmation)

	sm.Configure(StateAwaitingConfirmation).
		OnEntryFrom(TriggerRequestDraft, func(_ context.Context, args ...any) error {
			c.pending = args[0].(string)
			return nil
		}).
		OnExit(func(_ context.Context, _ ...any) error {
			c.pending = ""
			return nil
		}).
		Permit(TriggerConfirm, StateGeneratingDraft).
		Permit(TriggerCancel, StateIdle)

	sm.Configure(StateSending).
		Permit(TriggerReplied, StateIdle)

	sm.Configure(StateGeneratingDraft).
		Permit(TriggerDraftDone, StateIdle)

	sm.OnUnhandledTrigger(func(_ context.Context, state stateless.State, trigger stateless.Trigger, _ []string) error {
		switch state {
		case StateSending, StateGeneratingDraft:
			return ErrBusy
		}
		return fmt.Errorf("%w: %s in %s", ErrInvalidTransition, trigger, state)
	})

	sm.OnTransitioned(func(_ context.Context, t stateless.Transition) {
		logger.L.Debug("chat transition", "session", c.log.SessionID(), "from", t.Source, "to", t.Destination, "trigger", t.Trigger)
	})
	return sm
}

// SessionID identifies the conversation in logs and the archive.
func (c *Controller) SessionID() string { return c.log.SessionID() }

// EmailID returns the bound email, empty when none.
func (c *Controller) EmailID() mail.EmailID { return c.emailID }

// State returns the active state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state()
}

func (c *Controller) state() State {
	return c.fsm.MustState().(State)
}

// Snapshot returns a consistent copy of the session.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshot()
}

func (c *Controller) snapshot() Snapshot {
	return Snapshot{
		State:            c.state(),
		Messages:         c.log.Snapshot(),
		PendingDraftText: c.pending,
		EmailID:          c.emailID,
	}
}

// Submit handles one line of user input. Draft requests for a bound email
// stop in AwaitingConfirmation; everything else is sent to the agent and
// Submit returns once the reply (or the error text) is in the log.
func (c *Controller) Submit(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyInput
	}

	c.mu.Lock()
	res := intent.Classify(text, c.emailID != "")
	if res.DraftIntent {
		err := c.fsm.FireCtx(ctx, TriggerRequestDraft, text)
		snap := c.snapshot()
		c.mu.Unlock()
		if err != nil {
			return err
		}
		logger.L.Info("draft intent detected, awaiting confirmation", "session", c.SessionID(), "term", res.Term)
		c.notify(snap)
		return nil
	}

	if err := c.fsm.FireCtx(ctx, TriggerQuery); err != nil {
		c.mu.Unlock()
		return err
	}
	req := api.ChatRequest{Query: text, EmailID: c.emailRef(), History: c.log.Snapshot()}
	c.log.Append(history.Message{Role: history.RoleUser, Content: text})
	snap := c.snapshot()
	c.mu.Unlock()
	c.notify(snap)

	reply, err := c.agent.AgentChat(ctx, req)
	if err != nil {
		logger.L.Error("agent query failed", "session", c.SessionID(), "error", err)
		reply = ErrorReply
	}

	c.finish(ctx, TriggerReplied, reply)
	return nil
}

// Confirm commits the pending draft request and generates the draft.
// On success a DraftCreated event is emitted after the status message.
func (c *Controller) Confirm(ctx context.Context) error {
	c.mu.Lock()
	instructions := c.pending
	if err := c.fsm.FireCtx(ctx, TriggerConfirm); err != nil {
		c.mu.Unlock()
		return err
	}
	c.log.Append(history.Message{Role: history.RoleUser, Content: instructions})
	snap := c.snapshot()
	c.mu.Unlock()
	c.notify(snap)

	log := logger.L.With("session", c.SessionID(), "email_id", c.emailID)
	d, err := c.drafts.Generate(ctx, c.emailID, instructions)
	if err != nil {
		log.Error("draft generation failed", "error", err)
		c.finish(ctx, TriggerDraftDone, DraftFailedReply)
		return nil
	}

	log.Info("draft created", "draft_id", d.ID)
	c.finish(ctx, TriggerDraftDone, DraftCreatedReply)
	c.bridge.Navigate(nav.Event{Kind: nav.DraftCreated, DraftID: d.ID})
	return nil
}

// Cancel drops the confirmation and keeps the request as a plain user
// message. The agent is not called.
func (c *Controller) Cancel(ctx context.Context) error {
	c.mu.Lock()
	text := c.pending
	if err := c.fsm.FireCtx(ctx, TriggerCancel); err != nil {
		c.mu.Unlock()
		return err
	}
	c.log.Append(history.Message{Role: history.RoleUser, Content: text})
	snap := c.snapshot()
	c.mu.Unlock()
	c.notify(snap)
	return nil
}

// finish appends the agent message and returns to Idle in one step.
func (c *Controller) finish(ctx context.Context, trigger Trigger, reply string) {
	c.mu.Lock()
	c.log.Append(history.Message{Role: history.RoleAgent, Content: reply})
	if err := c.fsm.FireCtx(ctx, trigger); err != nil {
		logger.L.Error("chat state machine rejected completion", "session", c.SessionID(), "trigger", trigger, "error", err)
	}
	snap := c.snapshot()
	c.mu.Unlock()
	c.notify(snap)
}

func (c *Controller) emailRef() *mail.EmailID {
	if c.emailID == "" {
		return nil
	}
	id := c.emailID
	return &id
}

func (c *Controller) notify(s Snapshot) {
	if c.observer != nil {
		c.observer(s)
	}
}
