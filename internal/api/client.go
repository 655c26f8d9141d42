// Package api is the JSON client for the mail agent REST API: agent chat,
// drafts, emails and prompt templates.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/comigor/mailagent/internal/config"
	"github.com/comigor/mailagent/internal/history"
	"github.com/comigor/mailagent/internal/logger"
	"github.com/comigor/mailagent/internal/mail"
)

var (
	// ErrNetwork covers failed requests, undecodable bodies and non-2xx
	// responses other than 404.
	ErrNetwork = errors.New("network failure")
	// ErrNotFound is returned for 404 responses.
	ErrNotFound = errors.New("not found")
)

// StatusError is a non-2xx response. It unwraps to ErrNotFound or ErrNetwork.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: unexpected status code %d: %s", e.Method, e.Path, e.Code, e.Body)
}

func (e *StatusError) Unwrap() error {
	if e.Code == http.StatusNotFound {
		return ErrNotFound
	}
	return ErrNetwork
}

// Client talks to the mail agent backend.
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient creates a new Client from the api section of the configuration.
func NewClient(cfg config.APIConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// ChatRequest is the body of POST /agent/chat.
type ChatRequest struct {
	Query   string            `json:"query"`
	EmailID *mail.EmailID     `json:"email_id"`
	History []history.Message `json:"history"`
}

type chatResponse struct {
	Response string `json:"response"`
}

// DraftRequest is the body of POST /drafts.
type DraftRequest struct {
	EmailID      mail.EmailID `json:"email_id"`
	Instructions string       `json:"instructions"`
}

// DraftUpdate is the body of PUT /drafts/{id}.
type DraftUpdate struct {
	Subject            string             `json:"subject"`
	Body               string             `json:"body"`
	SuggestedFollowUps []string           `json:"suggested_follow_ups"`
	DraftMetadata      mail.DraftMetadata `json:"draft_metadata"`
}

// LoadResult is returned by the mock inbox loader.
type LoadResult struct {
	Status string `json:"status"`
	Count  int    `json:"count"`
}

// AgentChat asks the agent a question, optionally grounded in one email.
func (c *Client) AgentChat(ctx context.Context, req ChatRequest) (string, error) {
	if req.History == nil {
		req.History = []history.Message{}
	}
	var out chatResponse
	if err := c.do(ctx, http.MethodPost, "/agent/chat", req, &out); err != nil {
		return "", err
	}
	return out.Response, nil
}

// CreateDraft asks the backend to synthesize and store a reply.
func (c *Client) CreateDraft(ctx context.Context, req DraftRequest) (*mail.Draft, error) {
	var d mail.Draft
	if err := c.do(ctx, http.MethodPost, "/drafts", req, &d); err != nil {
		return nil, err
	}
	if d.EmailID == "" {
		d.EmailID = req.EmailID
	}
	return &d, nil
}

// GetDraft fetches a stored draft.
func (c *Client) GetDraft(ctx context.Context, id mail.DraftID) (*mail.Draft, error) {
	var d mail.Draft
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/drafts/%d", id), nil, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// ListDrafts returns every stored draft.
func (c *Client) ListDrafts(ctx context.Context) ([]mail.Draft, error) {
	var out []mail.Draft
	if err := c.do(ctx, http.MethodGet, "/drafts", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateDraft pushes local draft fields to the store.
func (c *Client) UpdateDraft(ctx context.Context, id mail.DraftID, upd DraftUpdate) error {
	return c.do(ctx, http.MethodPut, fmt.Sprintf("/drafts/%d", id), upd, nil)
}

// DeleteDraft removes a stored draft.
func (c *Client) DeleteDraft(ctx context.Context, id mail.DraftID) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/drafts/%d", id), nil, nil)
}

// GetEmail fetches one email with its analysis.
func (c *Client) GetEmail(ctx context.Context, id mail.EmailID) (*mail.Email, error) {
	var e mail.Email
	if err := c.do(ctx, http.MethodGet, "/emails/"+string(id), nil, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

// ListEmails returns the inbox.
func (c *Client) ListEmails(ctx context.Context) ([]mail.Email, error) {
	var out []mail.Email
	if err := c.do(ctx, http.MethodGet, "/emails", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// LoadMockEmails seeds the inbox from the backend's mock data.
func (c *Client) LoadMockEmails(ctx context.Context) (LoadResult, error) {
	var out LoadResult
	err := c.do(ctx, http.MethodGet, "/emails/load-mock", nil, &out)
	return out, err
}

// ProcessEmail schedules AI analysis of one email.
func (c *Client) ProcessEmail(ctx context.Context, id mail.EmailID) error {
	return c.do(ctx, http.MethodPost, "/emails/"+string(id)+"/process", nil, nil)
}

// GetPrompts returns the prompt templates.
func (c *Client) GetPrompts(ctx context.Context) (mail.Prompts, error) {
	var out mail.Prompts
	err := c.do(ctx, http.MethodGet, "/prompts", nil, &out)
	return out, err
}

// UpdatePrompts replaces the named templates and returns the full set.
func (c *Client) UpdatePrompts(ctx context.Context, updates map[string]string) (mail.Prompts, error) {
	var out mail.Prompts
	err := c.do(ctx, http.MethodPost, "/prompts", updates, &out)
	return out, err
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("%w: create request: %w", ErrNetwork, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		logger.L.Warn("api request failed", "method", method, "path", path, "error", err)
		return fmt.Errorf("%w: %s %s: %w", ErrNetwork, method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		logger.L.Debug("api non-2xx response", "method", method, "path", path, "status", resp.StatusCode)
		return &StatusError{Method: method, Path: path, Code: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode %s %s: %w", ErrNetwork, method, path, err)
	}
	return nil
}
