// Package assistant runs the prompt-driven analysis behind the backend:
// categorization, action items, summaries, reply drafts and inbox chat.
//
// Every operation except Summarize degrades to a canned answer when the
// language model is unavailable, so the rest of the system keeps working
// offline.
package assistant

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/comigor/mailagent/internal/history"
	"github.com/comigor/mailagent/internal/logger"
	"github.com/comigor/mailagent/internal/mail"
)

// Canned answers used when the model cannot be reached.
const (
	FallbackCategory   = "Important"
	FallbackActionItem = "Review the email"
	FallbackDraftBody  = "Draft reply content based on instructions."
	FallbackChatAnswer = "This is a mock answer to your query."
)

// Generator produces text for a prompt. *llm.Generator satisfies it.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Assistant builds prompts and interprets the model's answers.
type Assistant struct {
	gen Generator
}

func New(gen Generator) *Assistant {
	return &Assistant{gen: gen}
}

// Categorize labels an email body using template.
func (a *Assistant) Categorize(ctx context.Context, body, template string) string {
	out, err := a.gen.Generate(ctx, template+"\n\nEmail Body:\n"+body)
	if err != nil {
		logger.L.Warn("categorization fell back", "error", err)
		return FallbackCategory
	}
	return strings.TrimSpace(out)
}

// ExtractActionItems returns the tasks found in body. Answers that are not
// a JSON list of tasks (or a single task object) yield no items.
func (a *Assistant) ExtractActionItems(ctx context.Context, body, template string) []mail.ActionItem {
	out, err := a.gen.Generate(ctx, template+"\n\nEmail Body:\n"+body)
	if err != nil {
		logger.L.Warn("action item extraction fell back", "error", err)
		return []mail.ActionItem{{Task: FallbackActionItem}}
	}
	items, err := parseActionItems(out)
	if err != nil {
		logger.L.Warn("action items answer was not usable", "error", err, "raw", out)
		return []mail.ActionItem{}
	}
	return items
}

func parseActionItems(raw string) ([]mail.ActionItem, error) {
	cleaned := stripFences(raw)

	var items []mail.ActionItem
	if err := json.Unmarshal([]byte(cleaned), &items); err == nil {
		return withTasks(items), nil
	}
	var single mail.ActionItem
	if err := json.Unmarshal([]byte(cleaned), &single); err != nil {
		return nil, fmt.Errorf("decode action items: %w", err)
	}
	return withTasks([]mail.ActionItem{single}), nil
}

func withTasks(items []mail.ActionItem) []mail.ActionItem {
	out := make([]mail.ActionItem, 0, len(items))
	for _, it := range items {
		if strings.TrimSpace(it.Task) != "" {
			out = append(out, it)
		}
	}
	return out
}

// Summarize returns a short summary of body. Unlike the other operations
// it has no canned answer: a failed summary is a processing error.
func (a *Assistant) Summarize(ctx context.Context, body string) (string, error) {
	out, err := a.gen.Generate(ctx, "Please provide a concise summary of the following email:\n\n"+body)
	if err != nil {
		return "", fmt.Errorf("summarize: %w", err)
	}
	return out, nil
}

// DraftInput is everything a reply draft is generated from.
type DraftInput struct {
	Body         string
	Instructions string
	Template     string
	Category     string
	ActionItems  []mail.ActionItem
}

// DraftOutput is the model's structured reply.
type DraftOutput struct {
	Body               string             `json:"body"`
	SuggestedFollowUps []string           `json:"suggested_follow_ups"`
	Metadata           mail.DraftMetadata `json:"metadata"`
}

// GenerateDraft asks for a reply as JSON {body, suggested_follow_ups,
// metadata}. Anything else is kept verbatim as the body.
func (a *Assistant) GenerateDraft(ctx context.Context, in DraftInput) DraftOutput {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n\nUser Instructions: %s\n\nEmail Body:\n%s\n", in.Template, in.Instructions, in.Body)
	if in.Category != "" {
		fmt.Fprintf(&b, "Email Category: %s\n", in.Category)
	}
	if len(in.ActionItems) > 0 {
		items, _ := json.Marshal(in.ActionItems)
		fmt.Fprintf(&b, "Email Action Items: %s\n", items)
	}

	out, err := a.gen.Generate(ctx, b.String())
	if err != nil {
		logger.L.Warn("draft generation fell back", "error", err)
		out = FallbackDraftBody
	}
	return parseDraft(out)
}

func parseDraft(raw string) DraftOutput {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal([]byte(stripFences(raw)), &probe); err == nil {
		_, hasBody := probe["body"]
		_, hasFollowUps := probe["suggested_follow_ups"]
		_, hasMeta := probe["metadata"]
		if hasBody && hasFollowUps && hasMeta {
			var d DraftOutput
			if err := json.Unmarshal([]byte(stripFences(raw)), &d); err == nil {
				if d.SuggestedFollowUps == nil {
					d.SuggestedFollowUps = []string{}
				}
				return d
			}
		}
	}
	logger.L.Debug("draft answer did not match the expected shape, using raw text", "raw", raw)
	return DraftOutput{Body: raw, SuggestedFollowUps: []string{}}
}

// ChatRequest is one question about the inbox.
type ChatRequest struct {
	Query   string
	Context string
	History []history.Message
	// Focus asks for short answers about the single email in view.
	Focus bool
}

// Chat answers a question grounded in the inbox context and history.
func (a *Assistant) Chat(ctx context.Context, req ChatRequest) string {
	var b strings.Builder
	if req.Focus {
		b.WriteString(focusInstruction)
	} else {
		b.WriteString(generalInstruction)
	}
	b.WriteString("\n\nContext:\n")
	b.WriteString(req.Context)
	b.WriteString("\n\n")
	if len(req.History) > 0 {
		b.WriteString("Conversation History:\n")
		for _, m := range req.History {
			role := "Agent"
			if m.Role == history.RoleUser {
				role = "User"
			}
			fmt.Fprintf(&b, "%s: %s\n", role, m.Content)
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "User Query: %s\n\nAnswer:", req.Query)

	out, err := a.gen.Generate(ctx, b.String())
	if err != nil {
		logger.L.Warn("chat fell back", "error", err)
		return FallbackChatAnswer
	}
	return out
}

func stripFences(s string) string {
	s = strings.ReplaceAll(s, "```json", "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}
