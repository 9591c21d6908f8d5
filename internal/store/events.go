package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/scdev/scd/internal/types"
)

// recordEvent appends an audit row for a mutation and forwards it to the
// store's event sink so the Event Bus can fan it out to watchers. It runs
// inside the caller's transaction so the audit trail is never visible
// without the mutation that produced it.
func (s *Store) recordEvent(ctx context.Context, tx *sql.Tx, entityUUID uuid.UUID, entityType types.EntityType, action, source, detail string) error {
	now := time.Now().UTC()
	res, err := tx.ExecContext(ctx, `
		INSERT INTO events (entity_uuid, entity_type, action, source, detail, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, entityUUID.String(), string(entityType), action, source, detail, now)
	if err != nil {
		return wrapDBError("record event", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return wrapDBError("record event: read id", err)
	}

	s.events.Publish(ctx, types.Event{
		ID:         id,
		EntityUUID: entityUUID,
		EntityType: entityType,
		Action:     action,
		Source:     source,
		Detail:     detail,
		CreatedAt:  now,
	})
	return nil
}

// ListEvents returns events for entityUUID, oldest first.
func (s *Store) ListEvents(ctx context.Context, entityUUID uuid.UUID) ([]*types.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, entity_uuid, entity_type, action, source, detail, created_at
		FROM events WHERE entity_uuid = ? ORDER BY id ASC
	`, entityUUID.String())
	if err != nil {
		return nil, wrapDBError("list events", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*types.Event
	for rows.Next() {
		var e types.Event
		var entityUUIDStr, entityTypeStr string
		if err := rows.Scan(&e.ID, &entityUUIDStr, &entityTypeStr, &e.Action, &e.Source, &e.Detail, &e.CreatedAt); err != nil {
			return nil, wrapDBError("scan event", err)
		}
		parsed, err := uuid.Parse(entityUUIDStr)
		if err != nil {
			return nil, fmt.Errorf("list events: parse entity_uuid: %w", err)
		}
		e.EntityUUID = parsed
		e.EntityType = types.EntityType(entityTypeStr)
		out = append(out, &e)
	}
	return out, wrapDBError("iterate events", rows.Err())
}
