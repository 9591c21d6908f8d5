package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/scdev/scd/internal/types"
)

// CreateSpec inserts spec and records its creation event.
func (s *Store) CreateSpec(ctx context.Context, spec *types.Spec) error {
	if err := spec.Validate(); err != nil {
		return err
	}
	now := time.Now().UTC()
	if spec.CreatedAt.IsZero() {
		spec.CreatedAt = now
	}
	if spec.UpdatedAt.IsZero() {
		spec.UpdatedAt = spec.CreatedAt
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		var parentUUID sql.NullString
		if spec.ParentUUID != nil {
			parentUUID = sql.NullString{String: spec.ParentUUID.String(), Valid: true}
		}

		_, err := tx.ExecContext(ctx, `
			INSERT INTO specs (
				id, uuid, title, file_path, content, priority,
				parent_uuid, archived, external_links, tags,
				created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, spec.ID, spec.UUID.String(), spec.Title, spec.FilePath, spec.Content, spec.Priority,
			parentUUID, spec.Archived, formatStringArray(spec.ExternalLinks), formatStringArray(spec.Tags),
			spec.CreatedAt, spec.UpdatedAt,
		)
		if err != nil {
			return wrapDBError("create spec", err)
		}
		return s.recordEvent(ctx, tx, spec.UUID, types.EntityTypeSpec, "created", "store", "")
	})
}

// GetSpecByID fetches a spec by its human-readable ID.
func (s *Store) GetSpecByID(ctx context.Context, id string) (*types.Spec, error) {
	return s.getSpec(ctx, "id = ?", id)
}

// GetSpecByUUID fetches a spec by its stable UUID.
func (s *Store) GetSpecByUUID(ctx context.Context, id uuid.UUID) (*types.Spec, error) {
	return s.getSpec(ctx, "uuid = ?", id.String())
}

func (s *Store) getSpec(ctx context.Context, where string, arg interface{}) (*types.Spec, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, uuid, title, file_path, content, priority,
			parent_uuid, archived, archived_at, external_links, tags,
			created_at, updated_at
		FROM specs WHERE `+where, arg)
	spec, err := scanSpec(row)
	if err != nil {
		return nil, wrapDBError("get spec", err)
	}
	return spec, nil
}

func scanSpec(row rowScanner) (*types.Spec, error) {
	var spec types.Spec
	var uuidStr string
	var parentUUID sql.NullString
	var archivedAt sql.NullTime
	var externalLinks, tags string

	err := row.Scan(&spec.ID, &uuidStr, &spec.Title, &spec.FilePath, &spec.Content, &spec.Priority,
		&parentUUID, &spec.Archived, &archivedAt, &externalLinks, &tags, &spec.CreatedAt, &spec.UpdatedAt)
	if err != nil {
		return nil, err
	}

	parsed, err := uuid.Parse(uuidStr)
	if err != nil {
		return nil, fmt.Errorf("parse spec uuid: %w", err)
	}
	spec.UUID = parsed
	spec.ExternalLinks = parseStringArray(externalLinks)
	spec.Tags = parseStringArray(tags)

	if parentUUID.Valid {
		p, err := uuid.Parse(parentUUID.String)
		if err != nil {
			return nil, fmt.Errorf("parse spec parent_uuid: %w", err)
		}
		spec.ParentUUID = &p
	}
	if archivedAt.Valid {
		spec.ArchivedAt = &archivedAt.Time
	}
	return &spec, nil
}

// ListSpecs returns specs matching filter, newest created_at first.
func (s *Store) ListSpecs(ctx context.Context, filter types.SpecFilter) ([]*types.Spec, error) {
	var where []string
	var args []interface{}

	if filter.Tag != "" {
		where = append(where, "(',' || tags || ',') LIKE ?")
		args = append(args, "%,"+filter.Tag+",%")
	}
	if filter.ParentUUID != "" {
		where = append(where, "parent_uuid = ?")
		args = append(args, filter.ParentUUID)
	}
	if !filter.IncludeArchived {
		where = append(where, "archived = 0")
	}

	query := `SELECT id, uuid, title, file_path, content, priority,
		parent_uuid, archived, archived_at, external_links, tags,
		created_at, updated_at FROM specs`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapDBError("list specs", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*types.Spec
	for rows.Next() {
		spec, err := scanSpec(rows)
		if err != nil {
			return nil, wrapDBError("scan spec", err)
		}
		out = append(out, spec)
	}
	return out, wrapDBError("iterate specs", rows.Err())
}

// UpdateSpec applies patch to the spec identified by id.
func (s *Store) UpdateSpec(ctx context.Context, id string, patch types.SpecPatch) (*types.Spec, error) {
	var updated *types.Spec
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := scanSpec(tx.QueryRowContext(ctx, `
			SELECT id, uuid, title, file_path, content, priority,
				parent_uuid, archived, archived_at, external_links, tags,
				created_at, updated_at
			FROM specs WHERE id = ?`, id))
		if err != nil {
			return wrapDBError("update spec", err)
		}

		set, args := buildSpecUpdate(patch)
		if len(set) > 0 {
			args = append(args, id)
			query := "UPDATE specs SET " + strings.Join(set, ", ") + " WHERE id = ?"
			if _, err := tx.ExecContext(ctx, query, args...); err != nil {
				return wrapDBError("update spec", err)
			}
		}

		updated, err = scanSpec(tx.QueryRowContext(ctx, `
			SELECT id, uuid, title, file_path, content, priority,
				parent_uuid, archived, archived_at, external_links, tags,
				created_at, updated_at
			FROM specs WHERE id = ?`, id))
		if err != nil {
			return wrapDBError("reload updated spec", err)
		}
		if len(set) == 0 {
			return nil
		}
		return s.recordEvent(ctx, tx, updated.UUID, types.EntityTypeSpec, "updated", "store", "")
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func buildSpecUpdate(patch types.SpecPatch) ([]string, []interface{}) {
	var set []string
	var args []interface{}

	if patch.Title != nil {
		set = append(set, "title = ?")
		args = append(args, *patch.Title)
	}
	if patch.FilePath != nil {
		set = append(set, "file_path = ?")
		args = append(args, *patch.FilePath)
	}
	if patch.Content != nil {
		set = append(set, "content = ?")
		args = append(args, *patch.Content)
	}
	if patch.Priority != nil {
		set = append(set, "priority = ?")
		args = append(args, *patch.Priority)
	}
	if patch.ParentUUID != nil {
		if *patch.ParentUUID == nil {
			set = append(set, "parent_uuid = NULL")
		} else {
			set = append(set, "parent_uuid = ?")
			args = append(args, (*patch.ParentUUID).String())
		}
	}
	if patch.Archived != nil {
		set = append(set, "archived = ?")
		args = append(args, *patch.Archived)
	}
	if patch.ExternalLinks != nil {
		if *patch.ExternalLinks == nil {
			set = append(set, "external_links = ''")
		} else {
			set = append(set, "external_links = ?")
			args = append(args, formatStringArray(**patch.ExternalLinks))
		}
	}
	if patch.Tags != nil {
		if *patch.Tags == nil {
			set = append(set, "tags = ''")
		} else {
			set = append(set, "tags = ?")
			args = append(args, formatStringArray(**patch.Tags))
		}
	}

	if len(set) > 0 {
		stamp := time.Now().UTC()
		if patch.UpdatedAt != nil {
			stamp = patch.UpdatedAt.UTC()
		}
		set = append(set, "updated_at = ?")
		args = append(args, stamp)
	}
	return set, args
}

// DeleteSpec permanently removes a spec along with its relationships.
func (s *Store) DeleteSpec(ctx context.Context, id string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		spec, err := scanSpec(tx.QueryRowContext(ctx, `SELECT id, uuid, title, file_path, content, priority,
			parent_uuid, archived, archived_at, external_links, tags,
			created_at, updated_at FROM specs WHERE id = ?`, id))
		if err != nil {
			return wrapDBError("delete spec", err)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM relationships WHERE from_uuid = ? OR to_uuid = ?`, spec.UUID.String(), spec.UUID.String()); err != nil {
			return wrapDBError("delete spec relationships", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM feedback WHERE to_uuid = ?`, spec.UUID.String()); err != nil {
			return wrapDBError("delete spec feedback", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM events WHERE entity_uuid = ?`, spec.UUID.String()); err != nil {
			return wrapDBError("delete spec events", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM specs WHERE id = ?`, id); err != nil {
			return wrapDBError("delete spec", err)
		}
		return nil
	})
}
