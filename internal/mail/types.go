// Package mail holds the data shapes shared by the REST API, the draft
// workspace and the backend: emails, drafts and prompt templates.
package mail

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// EmailID identifies an email. The backend uses provider message ids, so
// it is a string even when it looks numeric.
type EmailID string

// DraftID is assigned by the draft store on generation.
type DraftID int64

// ActionItem is a task extracted from an email or a draft.
type ActionItem struct {
	Task     string `json:"task"`
	Deadline string `json:"deadline,omitempty"`
}

// UnmarshalJSON accepts both {"task": ..., "deadline": ...} and a bare
// string, which older analyses produced.
func (a *ActionItem) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var task string
		if err := json.Unmarshal(data, &task); err != nil {
			return err
		}
		*a = ActionItem{Task: task}
		return nil
	}
	type plain ActionItem
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*a = ActionItem(p)
	return nil
}

func (a ActionItem) String() string {
	if a.Deadline == "" {
		return a.Task
	}
	return fmt.Sprintf("%s (By: %s)", a.Task, a.Deadline)
}

// Timestamp decodes both RFC 3339 and the zone-less ISO form the original
// backend emits.
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999",
	"2006-01-02 15:04:05",
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*t = Timestamp{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*t = Timestamp{}
		return nil
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("unrecognised timestamp %q", s)
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Format(time.RFC3339))
}

// Email is read-only context for chat grounding and draft generation.
type Email struct {
	ID              EmailID      `json:"id"`
	Sender          string       `json:"sender"`
	Subject         string       `json:"subject"`
	Body            string       `json:"body"`
	Timestamp       Timestamp    `json:"timestamp"`
	Read            bool         `json:"read"`
	Category        string       `json:"category,omitempty"`
	Summary         string       `json:"summary,omitempty"`
	ActionItems     []ActionItem `json:"action_items,omitempty"`
	Processed       bool         `json:"processed"`
	ProcessingError string       `json:"processing_error,omitempty"`
}

// Excerpt returns the first n runes of the body followed by an ellipsis
// when the body is longer.
func (e Email) Excerpt(n int) string {
	r := []rune(e.Body)
	if len(r) <= n {
		return e.Body
	}
	return strings.TrimSpace(string(r[:n])) + "..."
}

// DraftMetadata is the structured analysis attached to a generated draft.
type DraftMetadata struct {
	Category    string       `json:"category,omitempty"`
	ActionItems []ActionItem `json:"action_items,omitempty"`
}

// IsZero reports whether the metadata carries nothing worth showing.
func (m DraftMetadata) IsZero() bool {
	return m.Category == "" && len(m.ActionItems) == 0
}

// Draft is a generated reply held by the draft store.
type Draft struct {
	ID                 DraftID       `json:"id"`
	EmailID            EmailID       `json:"email_id"`
	Subject            string        `json:"subject"`
	Body               string        `json:"body"`
	SuggestedFollowUps []string      `json:"suggested_follow_ups"`
	Metadata           DraftMetadata `json:"metadata"`
	CreatedAt          Timestamp     `json:"created_at"`
}

// UnmarshalJSON reads metadata from either "metadata" (draft creation
// responses) or "draft_metadata" (stored draft reads).
func (d *Draft) UnmarshalJSON(data []byte) error {
	type plain Draft
	var aux struct {
		plain
		StoredMetadata *DraftMetadata `json:"draft_metadata"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*d = Draft(aux.plain)
	if d.Metadata.IsZero() && aux.StoredMetadata != nil {
		d.Metadata = *aux.StoredMetadata
	}
	return nil
}

// Clone returns a deep copy so callers cannot mutate a held draft.
func (d Draft) Clone() Draft {
	c := d
	c.SuggestedFollowUps = append([]string(nil), d.SuggestedFollowUps...)
	c.Metadata.ActionItems = append([]ActionItem(nil), d.Metadata.ActionItems...)
	return c
}

// Prompt template names.
const (
	PromptCategorization = "categorization"
	PromptActionItem     = "action_item"
	PromptAutoReply      = "auto_reply"
)

// Prompts are the editable templates driving the backend's analysis.
type Prompts struct {
	Categorization string `json:"categorization"`
	ActionItem     string `json:"action_item"`
	AutoReply      string `json:"auto_reply"`
}
