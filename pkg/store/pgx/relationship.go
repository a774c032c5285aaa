package pgx

import (
	"context"
	"errors"
	"fmt"

	"github.com/terra-graph/newsgraph/pkg/common"
	"github.com/terra-graph/newsgraph/pkg/store"

	"github.com/jackc/pgx/v5"
)

const getRelationshipSQL = `
SELECT id, source_entity, target_entity, relation_type, description, strength, source_docs
FROM relationships
WHERE id = $1;`

const upsertRelationshipSQL = `
INSERT INTO relationships (id, source_entity, target_entity, relation_type, description, strength, source_docs)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (id) DO UPDATE SET
	description = EXCLUDED.description,
	strength    = EXCLUDED.strength,
	source_docs = EXCLUDED.source_docs;`

const selectRelationshipsSQL = `
SELECT id, source_entity, target_entity, relation_type, description, strength, source_docs
FROM relationships
ORDER BY id;`

func scanRelationship(row pgx.Row) (*common.Relationship, error) {
	var r common.Relationship
	err := row.Scan(&r.ID, &r.SourceEntity, &r.TargetEntity, &r.RelationType, &r.Description, &r.Strength, &r.SourceDocs)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// MergeRelationship merges the incoming relationship into the stored record
// under its canonical id, averaging strength pairwise. Serialized by the
// store's merge mutex, same as MergeEntity.
func (s *Store) MergeRelationship(ctx context.Context, rel common.Relationship) (common.Relationship, error) {
	s.dbLock.Lock()
	defer s.dbLock.Unlock()

	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return common.Relationship{}, fmt.Errorf("%w: begin: %v", common.ErrMerge, err)
	}
	defer tx.Rollback(ctx)

	existing, err := scanRelationship(tx.QueryRow(ctx, getRelationshipSQL, rel.ID))
	if err != nil {
		return common.Relationship{}, fmt.Errorf("%w: read relationship %s: %v", common.ErrMerge, rel.ID, err)
	}

	merged := store.MergeRelationshipRecord(existing, rel)

	_, err = tx.Exec(ctx, upsertRelationshipSQL,
		merged.ID, merged.SourceEntity, merged.TargetEntity, merged.RelationType,
		merged.Description, merged.Strength, merged.SourceDocs,
	)
	if err != nil {
		return common.Relationship{}, fmt.Errorf("%w: upsert relationship %s: %v", common.ErrMerge, rel.ID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return common.Relationship{}, fmt.Errorf("%w: commit: %v", common.ErrMerge, err)
	}
	return merged, nil
}

// Relationship returns the stored relationship by canonical id, or nil when
// absent.
func (s *Store) Relationship(ctx context.Context, id string) (*common.Relationship, error) {
	return scanRelationship(s.conn.QueryRow(ctx, getRelationshipSQL, id))
}

// Relationships returns every stored relationship, ordered by id.
func (s *Store) Relationships(ctx context.Context) ([]common.Relationship, error) {
	rows, err := s.conn.Query(ctx, selectRelationshipsSQL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var relationships []common.Relationship
	for rows.Next() {
		var r common.Relationship
		err := rows.Scan(&r.ID, &r.SourceEntity, &r.TargetEntity, &r.RelationType, &r.Description, &r.Strength, &r.SourceDocs)
		if err != nil {
			return nil, err
		}
		relationships = append(relationships, r)
	}
	return relationships, rows.Err()
}
