package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/scdev/scd/internal/types"
)

// AddRelationship inserts a directed edge. Duplicate (from, to, type)
// triples are ignored rather than erroring, since relationship
// reconciliation during sync may re-apply the same edge.
func (s *Store) AddRelationship(ctx context.Context, rel types.Relationship) error {
	if !types.ValidRelationshipType(rel.Type) {
		return types.ErrBadRelationship
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO relationships (from_uuid, from_type, to_uuid, to_type, rel_type)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (from_uuid, to_uuid, rel_type) DO NOTHING
	`, rel.FromUUID.String(), string(rel.FromType), rel.ToUUID.String(), string(rel.ToType), string(rel.Type))
	return wrapDBError("add relationship", err)
}

// RemoveRelationship deletes a single edge.
func (s *Store) RemoveRelationship(ctx context.Context, rel types.Relationship) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM relationships WHERE from_uuid = ? AND to_uuid = ? AND rel_type = ?
	`, rel.FromUUID.String(), rel.ToUUID.String(), string(rel.Type))
	return wrapDBError("remove relationship", err)
}

// RelationshipsFrom returns every edge originating at uuid.
func (s *Store) RelationshipsFrom(ctx context.Context, from uuid.UUID) ([]types.Relationship, error) {
	return s.queryRelationships(ctx, `SELECT from_uuid, from_type, to_uuid, to_type, rel_type FROM relationships WHERE from_uuid = ?`, from.String())
}

// RelationshipsTo returns every edge terminating at uuid.
func (s *Store) RelationshipsTo(ctx context.Context, to uuid.UUID) ([]types.Relationship, error) {
	return s.queryRelationships(ctx, `SELECT from_uuid, from_type, to_uuid, to_type, rel_type FROM relationships WHERE to_uuid = ?`, to.String())
}

func (s *Store) queryRelationships(ctx context.Context, query string, arg interface{}) ([]types.Relationship, error) {
	rows, err := s.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, wrapDBError("query relationships", err)
	}
	defer func() { _ = rows.Close() }()

	var out []types.Relationship
	for rows.Next() {
		var rel types.Relationship
		var fromStr, toStr, fromType, toType, relType string
		if err := rows.Scan(&fromStr, &fromType, &toStr, &toType, &relType); err != nil {
			return nil, wrapDBError("scan relationship", err)
		}
		from, err := uuid.Parse(fromStr)
		if err != nil {
			return nil, wrapDBError("parse relationship from_uuid", err)
		}
		to, err := uuid.Parse(toStr)
		if err != nil {
			return nil, wrapDBError("parse relationship to_uuid", err)
		}
		rel.FromUUID, rel.ToUUID = from, to
		rel.FromType, rel.ToType = types.EntityType(fromType), types.EntityType(toType)
		rel.Type = types.RelationshipType(relType)
		out = append(out, rel)
	}
	return out, wrapDBError("iterate relationships", rows.Err())
}
