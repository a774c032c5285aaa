package pgx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/terra-graph/newsgraph/pkg/common"
	"github.com/terra-graph/newsgraph/pkg/store"

	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"
)

const getEntitySQL = `
SELECT id, name, entity_type, description, attributes, source_docs
FROM entities
WHERE id = $1;`

const upsertEntitySQL = `
INSERT INTO entities (id, name, entity_type, description, attributes, source_docs, embedding)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (id) DO UPDATE SET
	description = EXCLUDED.description,
	attributes  = EXCLUDED.attributes,
	source_docs = EXCLUDED.source_docs,
	embedding   = COALESCE(EXCLUDED.embedding, entities.embedding);`

func scanEntity(row pgx.Row) (*common.Entity, error) {
	var e common.Entity
	var entityType string
	var attrs []byte
	err := row.Scan(&e.ID, &e.Name, &entityType, &e.Description, &attrs, &e.SourceDocs)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	e.Type = common.EntityType(entityType)
	if len(attrs) > 0 {
		if err := json.Unmarshal(attrs, &e.Attributes); err != nil {
			return nil, err
		}
	}
	return &e, nil
}

// MergeEntity merges the incoming entity into the stored record under its
// canonical id. The read, merge and upsert run in one transaction under the
// store's merge mutex so concurrent merges of the same entity cannot lose
// updates.
func (s *Store) MergeEntity(ctx context.Context, entity common.Entity) (common.Entity, error) {
	s.dbLock.Lock()
	defer s.dbLock.Unlock()

	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return common.Entity{}, fmt.Errorf("%w: begin: %v", common.ErrMerge, err)
	}
	defer tx.Rollback(ctx)

	existing, err := scanEntity(tx.QueryRow(ctx, getEntitySQL, entity.ID))
	if err != nil {
		return common.Entity{}, fmt.Errorf("%w: read entity %s: %v", common.ErrMerge, entity.ID, err)
	}

	merged := store.MergeEntityRecord(existing, entity)

	var embedding any
	if s.aiClient != nil {
		vec, err := s.aiClient.GenerateEmbedding(ctx, []byte(merged.Description))
		if err != nil {
			return common.Entity{}, fmt.Errorf("%w: embed entity %s: %v", common.ErrMerge, entity.ID, err)
		}
		embedding = pgvector.NewVector(vec)
	}

	attrs, err := json.Marshal(merged.Attributes)
	if err != nil {
		return common.Entity{}, fmt.Errorf("%w: encode attributes: %v", common.ErrMerge, err)
	}

	_, err = tx.Exec(ctx, upsertEntitySQL,
		merged.ID, merged.Name, string(merged.Type), merged.Description, attrs, merged.SourceDocs, embedding,
	)
	if err != nil {
		return common.Entity{}, fmt.Errorf("%w: upsert entity %s: %v", common.ErrMerge, entity.ID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return common.Entity{}, fmt.Errorf("%w: commit: %v", common.ErrMerge, err)
	}
	return merged, nil
}

// Entity returns the stored entity by canonical id, or nil when absent.
func (s *Store) Entity(ctx context.Context, id string) (*common.Entity, error) {
	return scanEntity(s.conn.QueryRow(ctx, getEntitySQL, id))
}
