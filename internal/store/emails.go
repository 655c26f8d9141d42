package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/comigor/mailagent/internal/mail"
)

const emailColumns = `id, sender, subject, body, timestamp, read, category, action_items, summary, processed, processing_error`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEmail(row rowScanner) (mail.Email, error) {
	var e mail.Email
	var id string
	var ts, category, items, summary, pe sql.NullString
	if err := row.Scan(&id, &e.Sender, &e.Subject, &e.Body, &ts, &e.Read, &category, &items, &summary, &e.Processed, &pe); err != nil {
		return mail.Email{}, err
	}
	e.ID = mail.EmailID(id)
	e.Category, e.Summary, e.ProcessingError = category.String, summary.String, pe.String

	var err error
	if e.Timestamp, err = decodeTime(ts); err != nil {
		return mail.Email{}, fmt.Errorf("email %s timestamp: %w", id, err)
	}
	if err := decodeJSON(items, &e.ActionItems); err != nil {
		return mail.Email{}, fmt.Errorf("email %s action items: %w", id, err)
	}
	return e, nil
}

// ListEmails returns every email, newest first.
func (s *Store) ListEmails(ctx context.Context) ([]mail.Email, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+emailColumns+` FROM emails ORDER BY timestamp DESC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list emails: %w", err)
	}
	defer rows.Close()

	out := []mail.Email{}
	for rows.Next() {
		e, err := scanEmail(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// GetEmail returns ErrNotFound for unknown ids.
func (s *Store) GetEmail(ctx context.Context, id mail.EmailID) (*mail.Email, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+emailColumns+` FROM emails WHERE id = ?`, string(id))
	e, err := scanEmail(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("email %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get email %s: %w", id, err)
	}
	return &e, nil
}

// AddEmails inserts the emails whose id is not stored yet and returns the
// ids it inserted. Existing emails are left untouched.
func (s *Store) AddEmails(ctx context.Context, emails []mail.Email) ([]mail.EmailID, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	var added []mail.EmailID
	for _, e := range emails {
		ts := e.Timestamp.Time
		if ts.IsZero() {
			ts = s.now()
		}
		items, err := encodeJSON(e.ActionItems)
		if err != nil {
			return nil, err
		}
		res, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO emails (id, sender, subject, body, timestamp, read, action_items)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			string(e.ID), e.Sender, e.Subject, e.Body, encodeTime(ts), e.Read, items)
		if err != nil {
			return nil, fmt.Errorf("insert email %s: %w", e.ID, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			added = append(added, e.ID)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return added, nil
}

// Analysis is the outcome of processing one email.
type Analysis struct {
	Category    string
	ActionItems []mail.ActionItem
	Summary     string
}

// SaveAnalysis records a successful analysis and clears any earlier error.
func (s *Store) SaveAnalysis(ctx context.Context, id mail.EmailID, a Analysis) error {
	items, err := encodeJSON(a.ActionItems)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `UPDATE emails SET category = ?, action_items = ?, summary = ?, processed = 1, processing_error = NULL
		WHERE id = ?`, a.Category, items, a.Summary, string(id))
	return affected(res, err, "email", string(id))
}

// MarkFailed records that processing failed.
func (s *Store) MarkFailed(ctx context.Context, id mail.EmailID, reason string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE emails SET processed = 0, processing_error = ? WHERE id = ?`, reason, string(id))
	return affected(res, err, "email", string(id))
}

func affected(res sql.Result, err error, kind, id string) error {
	if err != nil {
		return fmt.Errorf("update %s %s: %w", kind, id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%s %s: %w", kind, id, ErrNotFound)
	}
	return nil
}
