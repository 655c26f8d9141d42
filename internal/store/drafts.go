package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/comigor/mailagent/internal/mail"
)

const draftColumns = `id, email_id, subject, body, created_at, suggested_follow_ups, draft_metadata`

func scanDraft(row rowScanner) (mail.Draft, error) {
	var d mail.Draft
	var emailID string
	var created, followUps, meta sql.NullString
	if err := row.Scan(&d.ID, &emailID, &d.Subject, &d.Body, &created, &followUps, &meta); err != nil {
		return mail.Draft{}, err
	}
	d.EmailID = mail.EmailID(emailID)

	var err error
	if d.CreatedAt, err = decodeTime(created); err != nil {
		return mail.Draft{}, fmt.Errorf("draft %d created_at: %w", d.ID, err)
	}
	if err := decodeJSON(followUps, &d.SuggestedFollowUps); err != nil {
		return mail.Draft{}, fmt.Errorf("draft %d follow-ups: %w", d.ID, err)
	}
	if err := decodeJSON(meta, &d.Metadata); err != nil {
		return mail.Draft{}, fmt.Errorf("draft %d metadata: %w", d.ID, err)
	}
	return d, nil
}

// CreateDraft stores d and returns it with its assigned id and creation time.
func (s *Store) CreateDraft(ctx context.Context, d mail.Draft) (mail.Draft, error) {
	followUps, err := encodeJSON(d.SuggestedFollowUps)
	if err != nil {
		return mail.Draft{}, err
	}
	meta, err := encodeJSON(d.Metadata)
	if err != nil {
		return mail.Draft{}, err
	}
	d.CreatedAt = mail.Timestamp{Time: s.now().UTC()}

	res, err := s.db.ExecContext(ctx, `INSERT INTO drafts (email_id, subject, body, created_at, suggested_follow_ups, draft_metadata)
		VALUES (?, ?, ?, ?, ?, ?)`,
		string(d.EmailID), d.Subject, d.Body, encodeTime(d.CreatedAt.Time), followUps, meta)
	if err != nil {
		return mail.Draft{}, fmt.Errorf("insert draft: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return mail.Draft{}, fmt.Errorf("draft id: %w", err)
	}
	d.ID = mail.DraftID(id)
	return d, nil
}

// GetDraft returns ErrNotFound for unknown ids.
func (s *Store) GetDraft(ctx context.Context, id mail.DraftID) (*mail.Draft, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+draftColumns+` FROM drafts WHERE id = ?`, int64(id))
	d, err := scanDraft(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("draft %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get draft %d: %w", id, err)
	}
	return &d, nil
}

// ListDrafts returns every draft in creation order.
func (s *Store) ListDrafts(ctx context.Context) ([]mail.Draft, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+draftColumns+` FROM drafts ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list drafts: %w", err)
	}
	defer rows.Close()

	out := []mail.Draft{}
	for rows.Next() {
		d, err := scanDraft(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// DraftPatch updates only the fields that are set.
type DraftPatch struct {
	Subject            *string
	Body               *string
	SuggestedFollowUps *[]string
	Metadata           *mail.DraftMetadata
}

// UpdateDraft applies p and returns the stored result.
func (s *Store) UpdateDraft(ctx context.Context, id mail.DraftID, p DraftPatch) (*mail.Draft, error) {
	d, err := s.GetDraft(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Subject != nil {
		d.Subject = *p.Subject
	}
	if p.Body != nil {
		d.Body = *p.Body
	}
	if p.SuggestedFollowUps != nil {
		d.SuggestedFollowUps = *p.SuggestedFollowUps
	}
	if p.Metadata != nil {
		d.Metadata = *p.Metadata
	}

	followUps, err := encodeJSON(d.SuggestedFollowUps)
	if err != nil {
		return nil, err
	}
	meta, err := encodeJSON(d.Metadata)
	if err != nil {
		return nil, err
	}
	res, err := s.db.ExecContext(ctx, `UPDATE drafts SET subject = ?, body = ?, suggested_follow_ups = ?, draft_metadata = ? WHERE id = ?`,
		d.Subject, d.Body, followUps, meta, int64(id))
	if err := affected(res, err, "draft", fmt.Sprint(id)); err != nil {
		return nil, err
	}
	return d, nil
}

// DeleteDraft returns ErrNotFound when nothing was deleted.
func (s *Store) DeleteDraft(ctx context.Context, id mail.DraftID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM drafts WHERE id = ?`, int64(id))
	return affected(res, err, "draft", fmt.Sprint(id))
}
