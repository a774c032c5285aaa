package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/terra-graph/newsgraph/internal/util"
	"github.com/terra-graph/newsgraph/pkg/common"
	"github.com/terra-graph/newsgraph/pkg/extract"
	"github.com/terra-graph/newsgraph/pkg/logger"
	"github.com/terra-graph/newsgraph/pkg/pipeline"
	"github.com/terra-graph/newsgraph/pkg/state"
	"github.com/terra-graph/newsgraph/pkg/store"
)

const (
	defaultBatchLimit = 100
	defaultEncoder    = "cl100k_base"
	defaultMaxTokens  = 600
	mergeMaxTries     = 3
	mergeRetryDelay   = time.Second
)

// ChunkFunc splits an article body into extraction units.
type ChunkFunc func(text string, itemID string) ([]extract.Unit, error)

// Ingestor turns unprocessed articles into merged knowledge-graph records.
// One ProcessBatch call handles up to BatchLimit articles; each article
// fails in isolation.
type Ingestor struct {
	storage    store.Storage
	graph      store.GraphWriter
	state      state.Store
	stage      *extract.Stage
	chunk      ChunkFunc
	batchLimit int
}

// IngestorParams configures an Ingestor. Zero values fall back to a batch
// limit of 100, the cl100k_base encoder and 600 token units. Chunker
// overrides the default token-bounded chunking.
type IngestorParams struct {
	Storage    store.Storage
	Graph      store.GraphWriter
	State      state.Store
	Stage      *extract.Stage
	Chunker    ChunkFunc
	Encoder    string
	MaxTokens  int
	BatchLimit int
}

// NewIngestor creates an Ingestor.
func NewIngestor(params IngestorParams) *Ingestor {
	if params.Encoder == "" {
		params.Encoder = defaultEncoder
	}
	if params.MaxTokens <= 0 {
		params.MaxTokens = defaultMaxTokens
	}
	if params.BatchLimit <= 0 {
		params.BatchLimit = defaultBatchLimit
	}
	if params.Chunker == nil {
		encoder, maxTokens := params.Encoder, params.MaxTokens
		params.Chunker = func(text string, itemID string) ([]extract.Unit, error) {
			return extract.UnitsFromText(text, itemID, encoder, maxTokens)
		}
	}
	return &Ingestor{
		storage:    params.Storage,
		graph:      params.Graph,
		state:      params.State,
		stage:      params.Stage,
		chunk:      params.Chunker,
		batchLimit: params.BatchLimit,
	}
}

// ProcessBatch ingests the oldest unprocessed articles. Articles whose merge
// fails stay unstamped so a later batch retries them; extraction failures
// for single units are recorded but do not block the article. Returns an
// error only when the batch as a whole could not run.
func (in *Ingestor) ProcessBatch(ctx context.Context, correlationID string) error {
	articles, err := in.storage.UnprocessedArticles(ctx, in.batchLimit)
	if err != nil {
		return fmt.Errorf("select unprocessed articles: %w", err)
	}
	logger.Info("[Ingest] starting batch",
		"correlation_id", correlationID, "articles", len(articles))

	processed, failed := 0, 0
	for _, article := range articles {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if err := in.processArticle(ctx, article, correlationID); err != nil {
			failed++
			in.recordError(ctx, article.ItemID, err)
			continue
		}
		processed++
	}

	logger.Info("[Ingest] batch done",
		"correlation_id", correlationID, "processed", processed, "failed", failed)
	return nil
}

func (in *Ingestor) processArticle(ctx context.Context, article common.Article, correlationID string) error {
	units, err := in.chunk(article.Content, article.ItemID)
	if err != nil {
		return fmt.Errorf("chunk article: %w", err)
	}
	if len(units) == 0 {
		logger.Warn("[Ingest] article has no text units", "item_id", article.ItemID)
		return in.storage.MarkProcessed(ctx, article.ItemID, correlationID)
	}

	results := in.stage.Run(ctx, units)

	var entities []common.Entity
	var relationships []common.Relationship
	var claims []common.Claim
	failedUnits := 0
	for _, result := range results {
		if result.Err != nil {
			failedUnits++
			in.recordUnitError(ctx, article.ItemID, result)
			continue
		}
		entities = append(entities, result.Entities...)
		relationships = append(relationships, result.Relationships...)
		claims = append(claims, result.Claims...)
	}
	if failedUnits > 0 {
		logger.Warn("[Ingest] extraction partially failed",
			"item_id", article.ItemID, "failed_units", failedUnits, "total_units", len(units))
	}

	mergedEntities, mergedRelationships, err := in.merge(ctx, entities, relationships)
	if err != nil {
		return err
	}

	if len(claims) > 0 {
		if err := in.storage.InsertClaims(ctx, claims); err != nil {
			return fmt.Errorf("insert claims: %w", err)
		}
	}

	if err := in.writeGraph(ctx, mergedEntities, mergedRelationships); err != nil {
		return err
	}

	// the stamp is the last step, so a crash before this point re-ingests
	if err := in.storage.MarkProcessed(ctx, article.ItemID, correlationID); err != nil {
		return fmt.Errorf("mark processed: %w", err)
	}

	logger.Info("[Ingest] article merged", "item_id", article.ItemID,
		"entities", len(mergedEntities), "relationships", len(mergedRelationships), "claims", len(claims))
	return nil
}

// merge folds the extracted records into the relational store under their
// canonical ids and returns the merged rows for the graph upsert.
func (in *Ingestor) merge(
	ctx context.Context,
	entities []common.Entity,
	relationships []common.Relationship,
) ([]common.Entity, []common.Relationship, error) {
	mergedEntities := make([]common.Entity, 0, len(entities))
	for _, entity := range entities {
		merged, err := util.RetryBackoffWithContext(ctx, mergeMaxTries, mergeRetryDelay,
			func(ctx context.Context) (common.Entity, error) {
				return in.storage.MergeEntity(ctx, entity)
			})
		if err != nil {
			return nil, nil, fmt.Errorf("merge entity %s: %w", entity.ID, err)
		}
		mergedEntities = append(mergedEntities, merged)
	}

	mergedRelationships := make([]common.Relationship, 0, len(relationships))
	for _, relationship := range relationships {
		merged, err := util.RetryBackoffWithContext(ctx, mergeMaxTries, mergeRetryDelay,
			func(ctx context.Context) (common.Relationship, error) {
				return in.storage.MergeRelationship(ctx, relationship)
			})
		if err != nil {
			return nil, nil, fmt.Errorf("merge relationship %s: %w", relationship.ID, err)
		}
		mergedRelationships = append(mergedRelationships, merged)
	}

	return mergedEntities, mergedRelationships, nil
}

func (in *Ingestor) writeGraph(ctx context.Context, entities []common.Entity, relationships []common.Relationship) error {
	if len(entities) > 0 {
		if err := in.graph.UpsertNodes(ctx, entities); err != nil {
			return fmt.Errorf("upsert graph nodes: %w", err)
		}
	}
	if len(relationships) > 0 {
		if err := in.graph.UpsertEdges(ctx, relationships); err != nil {
			return fmt.Errorf("upsert graph edges: %w", err)
		}
	}
	return nil
}

func (in *Ingestor) recordError(ctx context.Context, itemID string, cause error) {
	logger.Error("[Ingest] article failed", "item_id", itemID, "err", cause)
	err := in.state.SaveError(ctx, pipeline.NewsNamespace, itemID, map[string]string{
		"item_id": itemID,
		"error":   cause.Error(),
	})
	if err != nil {
		logger.Error("[Ingest] writing error record failed", "item_id", itemID, "err", err)
	}
}

func (in *Ingestor) recordUnitError(ctx context.Context, itemID string, result extract.UnitResult) {
	err := in.state.SaveError(ctx, pipeline.NewsNamespace, itemID, map[string]string{
		"item_id": itemID,
		"unit_id": result.Unit.ID,
		"error":   result.Err.Error(),
	})
	if err != nil {
		logger.Error("[Ingest] writing error record failed", "item_id", itemID, "err", err)
	}
}
