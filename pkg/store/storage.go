package store

import (
	"context"

	"github.com/terra-graph/newsgraph/pkg/common"
)

// ArticleStore is the intake side of the relational store. Articles are
// unprocessed until their batch id is stamped.
type ArticleStore interface {
	// InsertArticles inserts articles, ignoring ids already present.
	// Returns the number of newly inserted rows.
	InsertArticles(ctx context.Context, articles []common.Article) (int, error)
	// UnprocessedArticles returns up to limit articles without a batch id,
	// oldest publish date first.
	UnprocessedArticles(ctx context.Context, limit int) ([]common.Article, error)
	// MarkProcessed stamps the article's batch id. Called only after the
	// article's extraction results have been merged.
	MarkProcessed(ctx context.Context, itemID string, batchID string) error
}

// GraphRecordStore holds the deduplicated entities and relationships plus
// the append-only claims.
type GraphRecordStore interface {
	// MergeEntity merges an extracted entity into the stored record under
	// its canonical id and returns the merged record.
	MergeEntity(ctx context.Context, entity common.Entity) (common.Entity, error)
	// MergeRelationship merges an extracted relationship into the stored
	// record under its canonical id and returns the merged record.
	MergeRelationship(ctx context.Context, rel common.Relationship) (common.Relationship, error)
	// InsertClaims appends claims. Claims are never deduplicated.
	InsertClaims(ctx context.Context, claims []common.Claim) error

	Entity(ctx context.Context, id string) (*common.Entity, error)
	Relationship(ctx context.Context, id string) (*common.Relationship, error)
	// Relationships returns every stored relationship, the input for
	// community detection.
	Relationships(ctx context.Context) ([]common.Relationship, error)
}

// CommunityStore persists detected communities. Detection replaces the whole
// set each run.
type CommunityStore interface {
	ReplaceCommunities(ctx context.Context, communities []common.Community) error
	Communities(ctx context.Context) ([]common.Community, error)
	Community(ctx context.Context, clusterID int) (*common.Community, error)
	CommunityEntities(ctx context.Context, clusterID int) ([]common.Entity, error)
}

// Storage is the full relational contract the pipelines depend on.
type Storage interface {
	ArticleStore
	GraphRecordStore
	CommunityStore
}

// GraphWriter is the denormalized graph-store side. Ingest batch-upserts the
// nodes and edges it touched; there is no delete path during ingest.
type GraphWriter interface {
	UpsertNodes(ctx context.Context, entities []common.Entity) error
	UpsertEdges(ctx context.Context, relationships []common.Relationship) error
}
