package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/comigor/mailagent/internal/config"
	"github.com/comigor/mailagent/internal/history"
	"github.com/comigor/mailagent/internal/mail"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(config.APIConfig{BaseURL: srv.URL + "/", Timeout: 5 * time.Second})
}

func TestAgentChat_SendsQueryEmailAndHistory(t *testing.T) {
	var got map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/agent/chat", r.URL.Path)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"response":"You have 3 emails."}`))
	})

	id := mail.EmailID("42")
	out, err := c.AgentChat(context.Background(), ChatRequest{
		Query:   "What's new?",
		EmailID: &id,
		History: []history.Message{{Role: history.RoleAgent, Content: "hello"}},
	})
	require.NoError(t, err)
	require.Equal(t, "You have 3 emails.", out)

	require.Equal(t, "What's new?", got["query"])
	require.Equal(t, "42", got["email_id"])
	require.Equal(t, []any{map[string]any{"role": "agent", "content": "hello"}}, got["history"])
}

func TestAgentChat_NullEmailAndEmptyHistory(t *testing.T) {
	var raw map[string]json.RawMessage
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&raw))
		w.Write([]byte(`{"response":"ok"}`))
	})

	_, err := c.AgentChat(context.Background(), ChatRequest{Query: "hi"})
	require.NoError(t, err)
	require.JSONEq(t, `null`, string(raw["email_id"]))
	require.JSONEq(t, `[]`, string(raw["history"]))
}

func TestCreateDraft_DecodesMetadata(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/drafts", r.URL.Path)
		var req DraftRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, mail.EmailID("42"), req.EmailID)
		require.Equal(t, "say I'm busy", req.Instructions)
		w.Write([]byte(`{"id":7,"subject":"Re: Lunch","body":"Sorry, busy.","suggested_follow_ups":["Reschedule"],
			"metadata":{"category":"To-Do","action_items":[{"task":"Reply","deadline":"Friday"}]}}`))
	})

	d, err := c.CreateDraft(context.Background(), DraftRequest{EmailID: "42", Instructions: "say I'm busy"})
	require.NoError(t, err)
	require.Equal(t, mail.DraftID(7), d.ID)
	require.Equal(t, mail.EmailID("42"), d.EmailID, "email id is filled from the request when the response omits it")
	require.Equal(t, "To-Do", d.Metadata.Category)
	require.Equal(t, []mail.ActionItem{{Task: "Reply", Deadline: "Friday"}}, d.Metadata.ActionItems)
}

func TestGetDraft_StoredMetadataField(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/drafts/7", r.URL.Path)
		w.Write([]byte(`{"id":7,"email_id":"42","subject":"Re: Lunch","body":"b",
			"draft_metadata":{"category":"Important"},"created_at":"2025-01-15T10:30:00.123456"}`))
	})

	d, err := c.GetDraft(context.Background(), 7)
	require.NoError(t, err)
	require.Equal(t, "Important", d.Metadata.Category)
	require.Equal(t, 2025, d.CreatedAt.Year())
}

func TestUpdateDraft_Body(t *testing.T) {
	var got map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPut, r.Method)
		require.Equal(t, "/drafts/9", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{}`))
	})

	err := c.UpdateDraft(context.Background(), 9, DraftUpdate{
		Subject:            "s",
		Body:               "b",
		SuggestedFollowUps: []string{"f"},
		DraftMetadata:      mail.DraftMetadata{Category: "Spam"},
	})
	require.NoError(t, err)
	require.Equal(t, "s", got["subject"])
	require.Equal(t, "b", got["body"])
	require.Equal(t, []any{"f"}, got["suggested_follow_ups"])
	require.Equal(t, map[string]any{"category": "Spam"}, got["draft_metadata"])
}

func TestErrors_Taxonomy(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/drafts/1":
			http.Error(w, `{"detail":"Draft not found"}`, http.StatusNotFound)
		case "/drafts/2":
			http.Error(w, "boom", http.StatusInternalServerError)
		default:
			w.Write([]byte(`not json`))
		}
	})
	ctx := context.Background()

	_, err := c.GetDraft(ctx, 1)
	require.ErrorIs(t, err, ErrNotFound)
	var se *StatusError
	require.True(t, errors.As(err, &se))
	require.Equal(t, http.StatusNotFound, se.Code)

	err = c.DeleteDraft(ctx, 2)
	require.ErrorIs(t, err, ErrNetwork)
	require.NotErrorIs(t, err, ErrNotFound)

	_, err = c.GetEmail(ctx, "3")
	require.ErrorIs(t, err, ErrNetwork)
}

func TestTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	c := NewClient(config.APIConfig{BaseURL: srv.URL})

	_, err := c.ListEmails(context.Background())
	require.ErrorIs(t, err, ErrNetwork)
}

func TestPrompts_RoundTrip(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/prompts", r.URL.Path)
		if r.Method == http.MethodPost {
			var upd map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&upd))
			require.Equal(t, map[string]string{"auto_reply": "be brief"}, upd)
		}
		w.Write([]byte(`{"categorization":"c","action_item":"a","auto_reply":"be brief"}`))
	})

	p, err := c.UpdatePrompts(context.Background(), map[string]string{"auto_reply": "be brief"})
	require.NoError(t, err)
	require.Equal(t, mail.Prompts{Categorization: "c", ActionItem: "a", AutoReply: "be brief"}, p)
}
