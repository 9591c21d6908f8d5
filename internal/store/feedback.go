package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/scdev/scd/internal/types"
)

// AddFeedback inserts a comment/suggestion/request anchored to an entity.
func (s *Store) AddFeedback(ctx context.Context, fb *types.Feedback) error {
	now := time.Now().UTC()
	if fb.CreatedAt.IsZero() {
		fb.CreatedAt = now
	}
	if fb.UpdatedAt.IsZero() {
		fb.UpdatedAt = fb.CreatedAt
	}

	var fromUUID sql.NullString
	if fb.FromUUID != nil {
		fromUUID = sql.NullString{String: fb.FromUUID.String(), Valid: true}
	}

	var line, offset sql.NullInt64
	var heading, before, after string
	if fb.Anchor != nil {
		line = sql.NullInt64{Int64: int64(fb.Anchor.Line), Valid: true}
		offset = sql.NullInt64{Int64: int64(fb.Anchor.OriginalOffset), Valid: true}
		heading, before, after = fb.Anchor.Heading, fb.Anchor.ContextBefore, fb.Anchor.ContextAfter
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO feedback (
			id, from_uuid, to_uuid, feedback_type, content,
			anchor_line, anchor_heading, anchor_context_before, anchor_context_after, anchor_original_offset,
			dismissed, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, fb.ID, fromUUID, fb.ToUUID.String(), string(fb.FeedbackType), fb.Content,
		line, heading, before, after, offset, fb.Dismissed, fb.CreatedAt, fb.UpdatedAt)
	return wrapDBError("add feedback", err)
}

// DismissFeedback marks a feedback item dismissed.
func (s *Store) DismissFeedback(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE feedback SET dismissed = 1, updated_at = ? WHERE id = ?`, time.Now().UTC(), id)
	if err != nil {
		return wrapDBError("dismiss feedback", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return wrapDBError("dismiss feedback", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteFeedbackForEntity removes every feedback item attached to an
// entity, used by JSONL import to replace an entity's feedback list
// wholesale with the incoming one rather than diffing item by item.
func (s *Store) DeleteFeedbackForEntity(ctx context.Context, toUUID uuid.UUID) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM feedback WHERE to_uuid = ?`, toUUID.String())
	return wrapDBError("delete feedback for entity", err)
}

// ListFeedback returns feedback attached to an entity, oldest first.
func (s *Store) ListFeedback(ctx context.Context, toUUID uuid.UUID) ([]types.Feedback, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, from_uuid, to_uuid, feedback_type, content,
			anchor_line, anchor_heading, anchor_context_before, anchor_context_after, anchor_original_offset,
			dismissed, created_at, updated_at
		FROM feedback WHERE to_uuid = ? ORDER BY created_at ASC
	`, toUUID.String())
	if err != nil {
		return nil, wrapDBError("list feedback", err)
	}
	defer func() { _ = rows.Close() }()

	var out []types.Feedback
	for rows.Next() {
		var fb types.Feedback
		var fromUUID sql.NullString
		var toUUIDStr string
		var line, offset sql.NullInt64
		var heading, before, after string

		if err := rows.Scan(&fb.ID, &fromUUID, &toUUIDStr, &fb.FeedbackType, &fb.Content,
			&line, &heading, &before, &after, &offset, &fb.Dismissed, &fb.CreatedAt, &fb.UpdatedAt); err != nil {
			return nil, wrapDBError("scan feedback", err)
		}

		to, err := uuid.Parse(toUUIDStr)
		if err != nil {
			return nil, fmt.Errorf("parse feedback to_uuid: %w", err)
		}
		fb.ToUUID = to

		if fromUUID.Valid {
			from, err := uuid.Parse(fromUUID.String)
			if err != nil {
				return nil, fmt.Errorf("parse feedback from_uuid: %w", err)
			}
			fb.FromUUID = &from
		}
		if line.Valid || heading != "" || before != "" || after != "" || offset.Valid {
			fb.Anchor = &types.Anchor{
				Line:           int(line.Int64),
				Heading:        heading,
				ContextBefore:  before,
				ContextAfter:   after,
				OriginalOffset: int(offset.Int64),
			}
		}
		out = append(out, fb)
	}
	return out, wrapDBError("iterate feedback", rows.Err())
}
