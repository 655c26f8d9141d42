// Package server is the reference backend for the mail agent REST API.
package server

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/comigor/mailagent/internal/assistant"
	"github.com/comigor/mailagent/internal/history"
	"github.com/comigor/mailagent/internal/logger"
	"github.com/comigor/mailagent/internal/mail"
	"github.com/comigor/mailagent/internal/store"
)

//go:embed mockdata/inbox.json
var defaultInbox []byte

// Server serves emails, prompts, drafts and agent chat.
type Server struct {
	store     *store.Store
	assistant *assistant.Assistant
	proc      *Processor
	mockInbox string
}

// New wires a server. mockInbox is an optional path overriding the
// embedded mock inbox.
func New(st *store.Store, a *assistant.Assistant, proc *Processor, mockInbox string) *Server {
	return &Server{store: st, assistant: a, proc: proc, mockInbox: mockInbox}
}

// Handler returns the routed API with logging and CORS applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	mux.HandleFunc("GET /emails", s.handleListEmails)
	mux.HandleFunc("GET /emails/load-mock", s.handleLoadMock)
	mux.HandleFunc("GET /emails/{id}", s.handleGetEmail)
	mux.HandleFunc("POST /emails/{id}/process", s.handleProcessEmail)

	mux.HandleFunc("GET /prompts", s.handleGetPrompts)
	mux.HandleFunc("POST /prompts", s.handleUpdatePrompts)

	mux.HandleFunc("POST /agent/chat", s.handleAgentChat)

	mux.HandleFunc("POST /drafts", s.handleCreateDraft)
	mux.HandleFunc("GET /drafts", s.handleListDrafts)
	mux.HandleFunc("GET /drafts/{id}", s.handleGetDraft)
	mux.HandleFunc("PUT /drafts/{id}", s.handleUpdateDraft)
	mux.HandleFunc("DELETE /drafts/{id}", s.handleDeleteDraft)

	return chainMiddlewares(mux, withCORS, withLogging)
}

// ListenAndServe runs the API on addr until ctx is cancelled, then shuts
// down gracefully and waits for background processing.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.L.Info("starting server", "address", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		s.proc.Close()
		return fmt.Errorf("listen %s: %w", addr, err)
	case <-ctx.Done():
	}

	logger.L.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	s.proc.Close()
	return err
}

// ─────────────────────────────────────────────
// Emails
// ─────────────────────────────────────────────

func (s *Server) handleListEmails(w http.ResponseWriter, r *http.Request) {
	emails, err := s.store.ListEmails(r.Context())
	if err != nil {
		internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, emails)
}

func (s *Server) handleGetEmail(w http.ResponseWriter, r *http.Request) {
	e, err := s.store.GetEmail(r.Context(), mail.EmailID(r.PathValue("id")))
	if errors.Is(err, store.ErrNotFound) {
		notFound(w, "Email not found")
		return
	}
	if err != nil {
		internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (s *Server) handleProcessEmail(w http.ResponseWriter, r *http.Request) {
	id := mail.EmailID(r.PathValue("id"))
	if _, err := s.store.GetEmail(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			notFound(w, "Email not found")
			return
		}
		internalError(w, err)
		return
	}
	s.proc.Enqueue(id)
	writeJSON(w, http.StatusOK, map[string]string{"status": "processing started", "email_id": string(id)})
}

func (s *Server) loadInbox() ([]mail.Email, error) {
	data := defaultInbox
	if s.mockInbox != "" {
		b, err := os.ReadFile(s.mockInbox)
		if err != nil {
			return nil, fmt.Errorf("read mock inbox: %w", err)
		}
		data = b
	}
	var emails []mail.Email
	if err := json.Unmarshal(data, &emails); err != nil {
		return nil, fmt.Errorf("decode mock inbox: %w", err)
	}
	return emails, nil
}

func (s *Server) handleLoadMock(w http.ResponseWriter, r *http.Request) {
	emails, err := s.loadInbox()
	if err != nil {
		internalError(w, err)
		return
	}
	added, err := s.store.AddEmails(r.Context(), emails)
	if err != nil {
		internalError(w, err)
		return
	}

	ids := make([]mail.EmailID, 0, len(emails))
	for _, e := range emails {
		ids = append(ids, e.ID)
	}
	s.proc.Enqueue(ids...)

	logger.L.Info("mock inbox loaded", "count", len(emails), "new", len(added))
	writeJSON(w, http.StatusOK, map[string]any{"status": "success", "count": len(emails)})
}

// ─────────────────────────────────────────────
// Prompts
// ─────────────────────────────────────────────

type promptUpdate struct {
	Categorization *string `json:"categorization"`
	ActionItem     *string `json:"action_item"`
	AutoReply      *string `json:"auto_reply"`
}

func (s *Server) handleGetPrompts(w http.ResponseWriter, r *http.Request) {
	prompts, err := s.store.Prompts(r.Context())
	if err != nil {
		internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, prompts)
}

func (s *Server) handleUpdatePrompts(w http.ResponseWriter, r *http.Request) {
	var req promptUpdate
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}

	updates := map[string]string{}
	if req.Categorization != nil {
		updates[mail.PromptCategorization] = *req.Categorization
	}
	if req.ActionItem != nil {
		updates[mail.PromptActionItem] = *req.ActionItem
	}
	if req.AutoReply != nil {
		updates[mail.PromptAutoReply] = *req.AutoReply
	}

	prompts, err := s.store.UpdatePrompts(r.Context(), updates)
	if err != nil {
		internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, prompts)
}

// ─────────────────────────────────────────────
// Agent chat
// ─────────────────────────────────────────────

type chatRequest struct {
	Query   string            `json:"query"`
	EmailID *mail.EmailID     `json:"email_id"`
	History []history.Message `json:"history"`
}

func (s *Server) handleAgentChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		badRequest(w, "query is required")
		return
	}

	emails, err := s.store.ListEmails(r.Context())
	if err != nil {
		internalError(w, err)
		return
	}

	var current *mail.Email
	if req.EmailID != nil && *req.EmailID != "" {
		current, err = s.store.GetEmail(r.Context(), *req.EmailID)
		if err != nil {
			logger.L.Warn("chat email context unavailable", "email_id", *req.EmailID, "error", err)
			current = nil
		}
	}

	answer := s.assistant.Chat(r.Context(), assistant.ChatRequest{
		Query:   req.Query,
		Context: assistant.InboxContext(emails, current),
		History: req.History,
		Focus:   current != nil,
	})
	writeJSON(w, http.StatusOK, map[string]string{"response": answer})
}

// ─────────────────────────────────────────────
// Drafts
// ─────────────────────────────────────────────

type draftRequest struct {
	EmailID      mail.EmailID `json:"email_id"`
	Instructions *string      `json:"instructions"`
}

// createdDraft is the POST /drafts response; metadata is under "metadata".
type createdDraft struct {
	ID                 mail.DraftID       `json:"id"`
	Subject            string             `json:"subject"`
	Body               string             `json:"body"`
	SuggestedFollowUps []string           `json:"suggested_follow_ups"`
	Metadata           mail.DraftMetadata `json:"metadata"`
}

// storedDraft is how drafts are read back; metadata is under "draft_metadata".
type storedDraft struct {
	ID                 mail.DraftID       `json:"id"`
	EmailID            mail.EmailID       `json:"email_id"`
	Subject            string             `json:"subject"`
	Body               string             `json:"body"`
	CreatedAt          mail.Timestamp     `json:"created_at"`
	SuggestedFollowUps []string           `json:"suggested_follow_ups"`
	DraftMetadata      mail.DraftMetadata `json:"draft_metadata"`
}

func toStoredDraft(d mail.Draft) storedDraft {
	return storedDraft{
		ID:                 d.ID,
		EmailID:            d.EmailID,
		Subject:            d.Subject,
		Body:               d.Body,
		CreatedAt:          d.CreatedAt,
		SuggestedFollowUps: d.SuggestedFollowUps,
		DraftMetadata:      d.Metadata,
	}
}

type draftUpdate struct {
	Subject            *string             `json:"subject"`
	Body               *string             `json:"body"`
	SuggestedFollowUps *[]string           `json:"suggested_follow_ups"`
	DraftMetadata      *mail.DraftMetadata `json:"draft_metadata"`
}

func (s *Server) handleCreateDraft(w http.ResponseWriter, r *http.Request) {
	var req draftRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}
	if req.EmailID == "" {
		badRequest(w, "email_id is required")
		return
	}
	instructions := "Reply to this email"
	if req.Instructions != nil {
		instructions = *req.Instructions
	}

	e, err := s.store.GetEmail(r.Context(), req.EmailID)
	if errors.Is(err, store.ErrNotFound) {
		notFound(w, "Email not found")
		return
	}
	if err != nil {
		internalError(w, err)
		return
	}

	out := s.assistant.GenerateDraft(r.Context(), assistant.DraftInput{
		Body:         e.Body,
		Instructions: instructions,
		Template:     s.store.Prompt(r.Context(), mail.PromptAutoReply, "Draft a reply to this email."),
		Category:     e.Category,
		ActionItems:  e.ActionItems,
	})

	d, err := s.store.CreateDraft(r.Context(), mail.Draft{
		EmailID:            e.ID,
		Subject:            "Re: " + e.Subject,
		Body:               out.Body,
		SuggestedFollowUps: out.SuggestedFollowUps,
		Metadata:           out.Metadata,
	})
	if err != nil {
		internalError(w, err)
		return
	}

	logger.L.Info("draft created", "draft_id", d.ID, "email_id", e.ID)
	writeJSON(w, http.StatusOK, createdDraft{
		ID:                 d.ID,
		Subject:            d.Subject,
		Body:               d.Body,
		SuggestedFollowUps: d.SuggestedFollowUps,
		Metadata:           d.Metadata,
	})
}

func (s *Server) handleListDrafts(w http.ResponseWriter, r *http.Request) {
	drafts, err := s.store.ListDrafts(r.Context())
	if err != nil {
		internalError(w, err)
		return
	}
	out := make([]storedDraft, 0, len(drafts))
	for _, d := range drafts {
		out = append(out, toStoredDraft(d))
	}
	writeJSON(w, http.StatusOK, out)
}

func draftID(w http.ResponseWriter, r *http.Request) (mail.DraftID, bool) {
	n, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		notFound(w, "Draft not found")
		return 0, false
	}
	return mail.DraftID(n), true
}

func (s *Server) handleGetDraft(w http.ResponseWriter, r *http.Request) {
	id, ok := draftID(w, r)
	if !ok {
		return
	}
	d, err := s.store.GetDraft(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		notFound(w, "Draft not found")
		return
	}
	if err != nil {
		internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toStoredDraft(*d))
}

func (s *Server) handleUpdateDraft(w http.ResponseWriter, r *http.Request) {
	id, ok := draftID(w, r)
	if !ok {
		return
	}
	var req draftUpdate
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}

	d, err := s.store.UpdateDraft(r.Context(), id, store.DraftPatch{
		Subject:            req.Subject,
		Body:               req.Body,
		SuggestedFollowUps: req.SuggestedFollowUps,
		Metadata:           req.DraftMetadata,
	})
	if errors.Is(err, store.ErrNotFound) {
		notFound(w, "Draft not found")
		return
	}
	if err != nil {
		internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toStoredDraft(*d))
}

func (s *Server) handleDeleteDraft(w http.ResponseWriter, r *http.Request) {
	id, ok := draftID(w, r)
	if !ok {
		return
	}
	err := s.store.DeleteDraft(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		notFound(w, "Draft not found")
		return
	}
	if err != nil {
		internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "deleted", "draft_id": id})
}
