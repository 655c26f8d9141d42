package store

import (
	"context"
	"fmt"

	"github.com/comigor/mailagent/internal/logger"
	"github.com/comigor/mailagent/internal/mail"
)

// DefaultPrompts seed the prompts table.
var DefaultPrompts = map[string]string{
	mail.PromptCategorization: `Categorize emails into: Important, Newsletter, Spam, To-Do.
To-Do emails must include a direct request requiring user action.
Provide a brief plain text explanation (no markdown formatting, no asterisks or special characters).
Return ONLY the category name and explanation, nothing else.`,

	mail.PromptActionItem: `Extract tasks from the email. Respond in JSON format only:
{ "task": "...", "deadline": "..." }.
Use plain text in the task field, no markdown formatting.`,

	mail.PromptAutoReply: `Draft a polite and professional reply to this email, incorporating user instructions.
Additionally, suggest 2-3 concise follow-up actions related to the email, and provide JSON metadata including the email's category and any extracted action items.
Respond in JSON format as follows:

{
    "body": "[The drafted email body]",
    "suggested_follow_ups": ["[Follow-up 1]", "[Follow-up 2]"],
    "metadata": {
        "category": "[Email Category]",
        "action_items": [{"task": "[Task 1]", "deadline": "[Deadline 1]"}]
    }
}`,
}

// SeedPrompts inserts the default templates and resets any stored default
// whose text drifted from the shipped one.
func (s *Store) SeedPrompts(ctx context.Context) error {
	for name, template := range DefaultPrompts {
		res, err := s.db.ExecContext(ctx, `INSERT INTO prompts (name, template) VALUES (?, ?)
			ON CONFLICT(name) DO UPDATE SET template = excluded.template WHERE prompts.template <> excluded.template`,
			name, template)
		if err != nil {
			return fmt.Errorf("seed prompt %s: %w", name, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			logger.L.Debug("prompt seeded", "name", name)
		}
	}
	return nil
}

// Prompts returns every template keyed by name.
func (s *Store) Prompts(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name, template FROM prompts`)
	if err != nil {
		return nil, fmt.Errorf("list prompts: %w", err)
	}
	defer rows.Close()

	out := map[string]string{}
	for rows.Next() {
		var name, template string
		if err := rows.Scan(&name, &template); err != nil {
			return nil, err
		}
		out[name] = template
	}
	return out, rows.Err()
}

// Prompt returns one template, or fallback when it is not stored.
func (s *Store) Prompt(ctx context.Context, name, fallback string) string {
	var template string
	if err := s.db.QueryRowContext(ctx, `SELECT template FROM prompts WHERE name = ?`, name).Scan(&template); err != nil {
		logger.L.Warn("prompt not found, using fallback", "name", name, "error", err)
		return fallback
	}
	return template
}

// UpdatePrompts upserts the given templates and returns the full set.
func (s *Store) UpdatePrompts(ctx context.Context, updates map[string]string) (map[string]string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	for name, template := range updates {
		if _, err := tx.ExecContext(ctx, `INSERT INTO prompts (name, template) VALUES (?, ?)
			ON CONFLICT(name) DO UPDATE SET template = excluded.template`, name, template); err != nil {
			return nil, fmt.Errorf("update prompt %s: %w", name, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return s.Prompts(ctx)
}
