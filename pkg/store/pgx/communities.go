package pgx

import (
	"context"
	"errors"
	"fmt"

	"github.com/terra-graph/newsgraph/pkg/common"

	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"
)

const deleteCommunityMembersSQL = `DELETE FROM community_members;`

const deleteCommunitiesSQL = `DELETE FROM communities;`

const insertCommunitySQL = `
INSERT INTO communities (cluster_id, parent_cluster, level, title, summary, rating, rating_explanation, document, embedding)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9);`

const insertCommunityMemberSQL = `
INSERT INTO community_members (cluster_id, entity_id)
VALUES ($1, $2);`

const selectCommunitiesSQL = `
SELECT cluster_id, parent_cluster, level, title, summary, rating, rating_explanation, document
FROM communities
ORDER BY level, cluster_id;`

const selectCommunitySQL = `
SELECT cluster_id, parent_cluster, level, title, summary, rating, rating_explanation, document
FROM communities
WHERE cluster_id = $1;`

const selectCommunityMembersSQL = `
SELECT entity_id FROM community_members WHERE cluster_id = $1 ORDER BY entity_id;`

const selectCommunityEntitiesSQL = `
SELECT e.id, e.name, e.entity_type, e.description, e.attributes, e.source_docs
FROM entities e
JOIN community_members m ON m.entity_id = e.id
WHERE m.cluster_id = $1
ORDER BY e.id;`

// ReplaceCommunities swaps the whole community set in one transaction.
// Detection regenerates every community per run, so partial updates are
// never needed.
func (s *Store) ReplaceCommunities(ctx context.Context, communities []common.Community) error {
	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, deleteCommunityMembersSQL); err != nil {
		return fmt.Errorf("clear community members: %w", err)
	}
	if _, err := tx.Exec(ctx, deleteCommunitiesSQL); err != nil {
		return fmt.Errorf("clear communities: %w", err)
	}

	for _, c := range communities {
		var embedding any
		if s.aiClient != nil {
			vec, err := s.aiClient.GenerateEmbedding(ctx, []byte(c.Summary))
			if err != nil {
				return fmt.Errorf("embed community %d: %w", c.ClusterID, err)
			}
			embedding = pgvector.NewVector(vec)
		}

		_, err := tx.Exec(ctx, insertCommunitySQL,
			c.ClusterID, c.ParentCluster, c.Level, c.Title, c.Summary,
			c.Rating, c.RatingExplanation, c.Document, embedding,
		)
		if err != nil {
			return fmt.Errorf("insert community %d: %w", c.ClusterID, err)
		}

		for _, member := range c.Members {
			if _, err := tx.Exec(ctx, insertCommunityMemberSQL, c.ClusterID, member); err != nil {
				return fmt.Errorf("insert member %s of community %d: %w", member, c.ClusterID, err)
			}
		}
	}

	return tx.Commit(ctx)
}

// Communities returns every stored community without member lists.
func (s *Store) Communities(ctx context.Context) ([]common.Community, error) {
	rows, err := s.conn.Query(ctx, selectCommunitiesSQL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var communities []common.Community
	for rows.Next() {
		var c common.Community
		err := rows.Scan(&c.ClusterID, &c.ParentCluster, &c.Level, &c.Title, &c.Summary,
			&c.Rating, &c.RatingExplanation, &c.Document)
		if err != nil {
			return nil, err
		}
		communities = append(communities, c)
	}
	return communities, rows.Err()
}

// Community returns one community with its member ids, or nil when absent.
func (s *Store) Community(ctx context.Context, clusterID int) (*common.Community, error) {
	var c common.Community
	err := s.conn.QueryRow(ctx, selectCommunitySQL, clusterID).Scan(
		&c.ClusterID, &c.ParentCluster, &c.Level, &c.Title, &c.Summary,
		&c.Rating, &c.RatingExplanation, &c.Document,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	rows, err := s.conn.Query(ctx, selectCommunityMembersSQL, clusterID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var member string
		if err := rows.Scan(&member); err != nil {
			return nil, err
		}
		c.Members = append(c.Members, member)
	}
	return &c, rows.Err()
}

// CommunityEntities returns the full entity records of a community's
// members.
func (s *Store) CommunityEntities(ctx context.Context, clusterID int) ([]common.Entity, error) {
	rows, err := s.conn.Query(ctx, selectCommunityEntitiesSQL, clusterID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entities []common.Entity
	for rows.Next() {
		entity, err := scanEntity(rows)
		if err != nil {
			return nil, err
		}
		if entity != nil {
			entities = append(entities, *entity)
		}
	}
	return entities, rows.Err()
}
