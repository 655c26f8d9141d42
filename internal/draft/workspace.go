// Package draft holds the workspace for the one draft reply currently
// being viewed or edited, and keeps it in step with the draft store.
package draft

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/comigor/mailagent/internal/api"
	"github.com/comigor/mailagent/internal/logger"
	"github.com/comigor/mailagent/internal/mail"
	"github.com/comigor/mailagent/internal/nav"
)

var (
	ErrGenerationFailed = errors.New("draft generation failed")
	ErrNothingToSave    = errors.New("no draft to save, generate one first")
	ErrSaveFailed       = errors.New("failed to save draft")
	ErrDeleteFailed     = errors.New("failed to delete draft")
	ErrNotFound         = errors.New("draft not found")
	ErrNoActiveDraft    = errors.New("no active draft")
	ErrUnknownField     = errors.New("unknown draft field")
)

// DefaultInstructions are used when the user gives none.
const DefaultInstructions = "Reply to this email"

// SendNotice is what Send reports: mail is never actually transported.
const SendNotice = "This is a demo. Email not sent."

// Field names an editable draft field.
type Field string

const (
	FieldSubject Field = "subject"
	FieldBody    Field = "body"
)

// Store is the subset of the REST client the workspace needs.
type Store interface {
	CreateDraft(ctx context.Context, req api.DraftRequest) (*mail.Draft, error)
	GetDraft(ctx context.Context, id mail.DraftID) (*mail.Draft, error)
	UpdateDraft(ctx context.Context, id mail.DraftID, upd api.DraftUpdate) error
	DeleteDraft(ctx context.Context, id mail.DraftID) error
	GetEmail(ctx context.Context, id mail.EmailID) (*mail.Email, error)
}

// Workspace owns a single in-progress draft. Edits are local until Save.
type Workspace struct {
	store  Store
	bridge nav.Bridge

	mu    sync.Mutex
	draft *mail.Draft
	email *mail.Email
}

// New creates an empty workspace. email is the optional reply context;
// bridge may be nil.
func New(store Store, bridge nav.Bridge, email *mail.Email) *Workspace {
	if bridge == nil {
		bridge = nav.Discard
	}
	return &Workspace{store: store, bridge: bridge, email: email}
}

// Draft returns a copy of the held draft.
func (w *Workspace) Draft() (mail.Draft, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.draft == nil {
		return mail.Draft{}, false
	}
	return w.draft.Clone(), true
}

// HasDraft reports whether a draft is held.
func (w *Workspace) HasDraft() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.draft != nil
}

// Email returns the email being replied to, when known.
func (w *Workspace) Email() (mail.Email, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.email == nil {
		return mail.Email{}, false
	}
	return *w.email, true
}

// Generate asks the store to synthesize a reply to emailID. An empty
// emailID falls back to the bound email, then to the held draft's email.
// On failure the held draft is left exactly as it was.
func (w *Workspace) Generate(ctx context.Context, emailID mail.EmailID, instructions string) (*mail.Draft, error) {
	w.mu.Lock()
	if emailID == "" && w.email != nil {
		emailID = w.email.ID
	}
	if emailID == "" && w.draft != nil {
		emailID = w.draft.EmailID
	}
	w.mu.Unlock()

	if emailID == "" {
		return nil, fmt.Errorf("%w: no email to reply to", ErrGenerationFailed)
	}
	if strings.TrimSpace(instructions) == "" {
		instructions = DefaultInstructions
	}

	log := logger.L.With("email_id", emailID)
	log.Info("generating draft")

	d, err := w.store.CreateDraft(ctx, api.DraftRequest{EmailID: emailID, Instructions: instructions})
	if err != nil {
		log.Error("draft generation failed", "error", err)
		return nil, fmt.Errorf("%w: %w", ErrGenerationFailed, err)
	}

	held := d.Clone()
	w.mu.Lock()
	w.draft = &held
	w.mu.Unlock()

	log.Info("draft generated", "draft_id", d.ID)
	return d, nil
}

// Edit changes subject or body locally. Nothing is sent until Save.
func (w *Workspace) Edit(field Field, value string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.draft == nil {
		return ErrNoActiveDraft
	}
	switch field {
	case FieldSubject:
		w.draft.Subject = value
	case FieldBody:
		w.draft.Body = value
	default:
		return fmt.Errorf("%w: %q", ErrUnknownField, field)
	}
	return nil
}

// Save pushes the local fields to the store. A failed save leaves local
// state untouched and is not retried.
func (w *Workspace) Save(ctx context.Context) error {
	w.mu.Lock()
	if w.draft == nil || w.draft.ID == 0 {
		w.mu.Unlock()
		return ErrNothingToSave
	}
	d := w.draft.Clone()
	w.mu.Unlock()

	log := logger.L.With("draft_id", d.ID)
	err := w.store.UpdateDraft(ctx, d.ID, api.DraftUpdate{
		Subject:            d.Subject,
		Body:               d.Body,
		SuggestedFollowUps: d.SuggestedFollowUps,
		DraftMetadata:      d.Metadata,
	})
	if err != nil {
		log.Error("draft save failed", "error", err)
		return fmt.Errorf("%w: %w", ErrSaveFailed, err)
	}
	log.Info("draft saved")
	return nil
}

// Delete removes the draft from the store, empties the workspace and
// emits a DraftDeleted event. On failure the draft is retained.
func (w *Workspace) Delete(ctx context.Context) error {
	w.mu.Lock()
	if w.draft == nil || w.draft.ID == 0 {
		w.mu.Unlock()
		return ErrNoActiveDraft
	}
	id := w.draft.ID
	w.mu.Unlock()

	log := logger.L.With("draft_id", id)
	if err := w.store.DeleteDraft(ctx, id); err != nil {
		log.Error("draft delete failed", "error", err)
		return fmt.Errorf("%w: %w", ErrDeleteFailed, err)
	}

	w.mu.Lock()
	if w.draft != nil && w.draft.ID == id {
		w.draft = nil
	}
	w.mu.Unlock()

	log.Info("draft deleted")
	w.bridge.Navigate(nav.Event{Kind: nav.DraftDeleted, DraftID: id})
	return nil
}

// LoadExisting fetches a stored draft and, when it references one, its
// email. A missing draft is fatal for the caller's view and returns
// ErrNotFound; a missing email only leaves the context empty.
func (w *Workspace) LoadExisting(ctx context.Context, id mail.DraftID) (*mail.Draft, error) {
	log := logger.L.With("draft_id", id)
	log.Info("loading draft")

	d, err := w.store.GetDraft(ctx, id)
	if err != nil {
		log.Error("failed to fetch draft", "error", err)
		return nil, fmt.Errorf("%w: %d: %w", ErrNotFound, id, err)
	}

	var email *mail.Email
	if d.EmailID != "" {
		e, err := w.store.GetEmail(ctx, d.EmailID)
		if err != nil {
			log.Warn("email not found, continuing without it", "email_id", d.EmailID, "error", err)
		} else {
			email = e
		}
	}

	held := d.Clone()
	w.mu.Lock()
	w.draft = &held
	w.email = email
	w.mu.Unlock()

	return d, nil
}

// Send is simulated: it never transports mail.
func (w *Workspace) Send() (string, error) {
	if !w.HasDraft() {
		return "", ErrNoActiveDraft
	}
	return SendNotice, nil
}
