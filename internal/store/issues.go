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

// CreateIssue inserts issue and records its creation event. CreatedAt and
// UpdatedAt are stamped to now if zero.
func (s *Store) CreateIssue(ctx context.Context, issue *types.Issue) error {
	if err := issue.Validate(); err != nil {
		return err
	}
	now := time.Now().UTC()
	if issue.CreatedAt.IsZero() {
		issue.CreatedAt = now
	}
	if issue.UpdatedAt.IsZero() {
		issue.UpdatedAt = issue.CreatedAt
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		var parentUUID sql.NullString
		if issue.ParentUUID != nil {
			parentUUID = sql.NullString{String: issue.ParentUUID.String(), Valid: true}
		}
		var closedAt sql.NullTime
		if issue.ClosedAt != nil {
			closedAt = sql.NullTime{Time: *issue.ClosedAt, Valid: true}
		}

		_, err := tx.ExecContext(ctx, `
			INSERT INTO issues (
				id, uuid, title, file_path, content, status, priority, assignee,
				parent_uuid, archived, closed_at, external_links, tags,
				created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, issue.ID, issue.UUID.String(), issue.Title, "", issue.Content,
			string(issue.Status), issue.Priority, issue.Assignee, parentUUID,
			issue.Archived, closedAt, formatStringArray(issue.ExternalLinks), formatStringArray(issue.Tags),
			issue.CreatedAt, issue.UpdatedAt,
		)
		if err != nil {
			return wrapDBError("create issue", err)
		}
		return s.recordEvent(ctx, tx, issue.UUID, types.EntityTypeIssue, "created", "store", "")
	})
}

// SetIssueFilePath records the markdown filename written for an issue
// in its file_path column.
func (s *Store) SetIssueFilePath(ctx context.Context, id, filePath string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE issues SET file_path = ? WHERE id = ?`, filePath, id)
	return wrapDBError("set issue file path", err)
}

// GetIssueFilePath returns the markdown filename previously recorded via
// SetIssueFilePath, or "" if none has been assigned yet.
func (s *Store) GetIssueFilePath(ctx context.Context, id string) (string, error) {
	var path string
	err := s.db.QueryRowContext(ctx, `SELECT file_path FROM issues WHERE id = ?`, id).Scan(&path)
	if err != nil {
		return "", wrapDBError("get issue file path", err)
	}
	return path, nil
}

// GetIssueByID fetches an issue by its human-readable ID.
func (s *Store) GetIssueByID(ctx context.Context, id string) (*types.Issue, error) {
	return s.getIssue(ctx, "id = ?", id)
}

// GetIssueByUUID fetches an issue by its stable UUID.
func (s *Store) GetIssueByUUID(ctx context.Context, id uuid.UUID) (*types.Issue, error) {
	return s.getIssue(ctx, "uuid = ?", id.String())
}

func (s *Store) getIssue(ctx context.Context, where string, arg interface{}) (*types.Issue, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, uuid, title, content, status, priority, assignee,
			parent_uuid, archived, archived_at, closed_at, external_links, tags,
			created_at, updated_at
		FROM issues WHERE `+where, arg)
	issue, err := scanIssue(row)
	if err != nil {
		return nil, wrapDBError("get issue", err)
	}
	return issue, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanIssue(row rowScanner) (*types.Issue, error) {
	var issue types.Issue
	var uuidStr string
	var parentUUID sql.NullString
	var archivedAt, closedAt sql.NullTime
	var externalLinks, tags string
	var status string

	err := row.Scan(&issue.ID, &uuidStr, &issue.Title, &issue.Content, &status,
		&issue.Priority, &issue.Assignee, &parentUUID, &issue.Archived, &archivedAt,
		&closedAt, &externalLinks, &tags, &issue.CreatedAt, &issue.UpdatedAt)
	if err != nil {
		return nil, err
	}

	parsed, err := uuid.Parse(uuidStr)
	if err != nil {
		return nil, fmt.Errorf("parse issue uuid: %w", err)
	}
	issue.UUID = parsed
	issue.Status = types.IssueStatus(status)
	issue.ExternalLinks = parseStringArray(externalLinks)
	issue.Tags = parseStringArray(tags)

	if parentUUID.Valid {
		p, err := uuid.Parse(parentUUID.String)
		if err != nil {
			return nil, fmt.Errorf("parse issue parent_uuid: %w", err)
		}
		issue.ParentUUID = &p
	}
	if archivedAt.Valid {
		issue.ArchivedAt = &archivedAt.Time
	}
	if closedAt.Valid {
		issue.ClosedAt = &closedAt.Time
	}
	return &issue, nil
}

// ListIssues returns issues matching filter, newest created_at first.
func (s *Store) ListIssues(ctx context.Context, filter types.IssueFilter) ([]*types.Issue, error) {
	var where []string
	var args []interface{}

	if len(filter.Status) > 0 {
		placeholders := make([]string, len(filter.Status))
		for i, st := range filter.Status {
			placeholders[i] = "?"
			args = append(args, string(st))
		}
		where = append(where, "status IN ("+strings.Join(placeholders, ",")+")")
	}
	if filter.Assignee != "" {
		where = append(where, "assignee = ?")
		args = append(args, filter.Assignee)
	}
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

	query := `SELECT id, uuid, title, content, status, priority, assignee,
		parent_uuid, archived, archived_at, closed_at, external_links, tags,
		created_at, updated_at FROM issues`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapDBError("list issues", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*types.Issue
	for rows.Next() {
		issue, err := scanIssue(rows)
		if err != nil {
			return nil, wrapDBError("scan issue", err)
		}
		out = append(out, issue)
	}
	return out, wrapDBError("iterate issues", rows.Err())
}

// UpdateIssue applies patch to the issue identified by id, returning
// ErrNotFound if it does not exist. Undefined fields in patch are left
// untouched; explicit nulls clear the corresponding nullable column.
func (s *Store) UpdateIssue(ctx context.Context, id string, patch types.IssuePatch) (*types.Issue, error) {
	var updated *types.Issue
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		existing, err := scanIssue(tx.QueryRowContext(ctx, `
			SELECT id, uuid, title, content, status, priority, assignee,
				parent_uuid, archived, archived_at, closed_at, external_links, tags,
				created_at, updated_at
			FROM issues WHERE id = ?`, id))
		if err != nil {
			return wrapDBError("update issue", err)
		}

		set, args := buildIssueUpdate(patch)
		if len(set) == 0 {
			updated = existing
			return nil
		}
		args = append(args, id)
		query := "UPDATE issues SET " + strings.Join(set, ", ") + " WHERE id = ?"
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return wrapDBError("update issue", err)
		}

		updated, err = scanIssue(tx.QueryRowContext(ctx, `
			SELECT id, uuid, title, content, status, priority, assignee,
				parent_uuid, archived, archived_at, closed_at, external_links, tags,
				created_at, updated_at
			FROM issues WHERE id = ?`, id))
		if err != nil {
			return wrapDBError("reload updated issue", err)
		}
		return s.recordEvent(ctx, tx, updated.UUID, types.EntityTypeIssue, "updated", "store", "")
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// buildIssueUpdate translates patch into a SET clause and its bound
// arguments, honoring the undefined-vs-null sentinel convention described
// on types.IssuePatch. updated_at is always bumped when anything changes.
func buildIssueUpdate(patch types.IssuePatch) ([]string, []interface{}) {
	var set []string
	var args []interface{}

	if patch.Title != nil {
		set = append(set, "title = ?")
		args = append(args, *patch.Title)
	}
	if patch.Status != nil {
		set = append(set, "status = ?")
		args = append(args, string(*patch.Status))
	}
	if patch.Content != nil {
		set = append(set, "content = ?")
		args = append(args, *patch.Content)
	}
	if patch.Priority != nil {
		set = append(set, "priority = ?")
		args = append(args, *patch.Priority)
	}
	if patch.Assignee != nil {
		set = append(set, "assignee = ?")
		args = append(args, *patch.Assignee)
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
	if patch.ClosedAt != nil {
		if *patch.ClosedAt == nil {
			set = append(set, "closed_at = NULL")
		} else {
			set = append(set, "closed_at = ?")
			args = append(args, time.Unix(**patch.ClosedAt, 0).UTC())
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

// DeleteIssue permanently removes an issue along with its relationships
// and feedback.
func (s *Store) DeleteIssue(ctx context.Context, id string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		issue, err := scanIssue(tx.QueryRowContext(ctx, `SELECT id, uuid, title, content, status, priority, assignee,
			parent_uuid, archived, archived_at, closed_at, external_links, tags,
			created_at, updated_at FROM issues WHERE id = ?`, id))
		if err != nil {
			return wrapDBError("delete issue", err)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM relationships WHERE from_uuid = ? OR to_uuid = ?`, issue.UUID.String(), issue.UUID.String()); err != nil {
			return wrapDBError("delete issue relationships", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM feedback WHERE to_uuid = ?`, issue.UUID.String()); err != nil {
			return wrapDBError("delete issue feedback", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM events WHERE entity_uuid = ?`, issue.UUID.String()); err != nil {
			return wrapDBError("delete issue events", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM issues WHERE id = ?`, id); err != nil {
			return wrapDBError("delete issue", err)
		}
		return nil
	})
}
