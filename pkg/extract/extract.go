package extract

import (
	"context"
	"time"

	"github.com/terra-graph/newsgraph/internal/util"
	"github.com/terra-graph/newsgraph/pkg/ai"
	"github.com/terra-graph/newsgraph/pkg/common"
	"github.com/terra-graph/newsgraph/pkg/logger"

	"golang.org/x/sync/errgroup"
)

// EntitySource extracts entities from a unit.
type EntitySource interface {
	Extract(ctx context.Context, unit Unit) ([]common.Entity, error)
}

// RelationSource extracts relationships between the given entities.
type RelationSource interface {
	Extract(ctx context.Context, unit Unit, entities []common.Entity) ([]common.Relationship, error)
}

// ClaimSource extracts claims about the given entities.
type ClaimSource interface {
	Extract(ctx context.Context, unit Unit, entities []common.Entity) ([]common.Claim, error)
}

// UnitResult carries everything extracted from one unit. Err is set when the
// unit failed after exhausting its retry budget; the other fields are then
// nil.
type UnitResult struct {
	Unit          Unit
	Entities      []common.Entity
	Relationships []common.Relationship
	Claims        []common.Claim
	Err           error
}

// Stage runs the three extractors over a batch of units. Units are processed
// in parallel up to maxParallel; each unit retries with exponential backoff
// and fails in isolation.
type Stage struct {
	entities  EntitySource
	relations RelationSource
	claims    ClaimSource

	maxParallel int
	maxTries    int
	retryDelay  time.Duration
}

// StageParams configures a Stage. Zero values fall back to three tries, one
// second initial delay and a parallelism of one.
type StageParams struct {
	Entities  EntitySource
	Relations RelationSource
	Claims    ClaimSource

	MaxParallel int
	MaxTries    int
	RetryDelay  time.Duration
}

// NewStage creates a Stage from the given sources.
func NewStage(params StageParams) *Stage {
	if params.MaxParallel <= 0 {
		params.MaxParallel = 1
	}
	if params.MaxTries <= 0 {
		params.MaxTries = 3
	}
	if params.RetryDelay <= 0 {
		params.RetryDelay = time.Second
	}
	return &Stage{
		entities:    params.Entities,
		relations:   params.Relations,
		claims:      params.Claims,
		maxParallel: params.MaxParallel,
		maxTries:    params.MaxTries,
		retryDelay:  params.RetryDelay,
	}
}

// NewDefaultStage wires the three model-backed extractors onto one client.
func NewDefaultStage(client ai.Client, maxParallel int) *Stage {
	return NewStage(StageParams{
		Entities:    NewEntityExtractor(client),
		Relations:   NewRelationshipExtractor(client),
		Claims:      NewClaimExtractor(client),
		MaxParallel: maxParallel,
	})
}

// Run extracts entities, relationships and claims from every unit. The
// returned slice is index-aligned with units. A failed unit gets its Err set
// and never aborts sibling units; context cancellation does.
func (s *Stage) Run(ctx context.Context, units []Unit) []UnitResult {
	results := make([]UnitResult, len(units))

	eg, gCtx := errgroup.WithContext(ctx)
	eg.SetLimit(s.maxParallel)

	for i := range units {
		idx := i
		unit := units[i]

		eg.Go(func() error {
			results[idx] = s.runUnit(gCtx, unit)
			if results[idx].Err != nil {
				logger.Error("[Extract] unit failed", "unit", unit.ID, "item_id", unit.ItemID, "err", results[idx].Err)
			}
			return nil
		})
	}

	// errgroup funcs never return errors; failures stay per-unit
	_ = eg.Wait()

	return results
}

func (s *Stage) runUnit(ctx context.Context, unit Unit) UnitResult {
	result := UnitResult{Unit: unit}

	entities, err := util.RetryBackoffWithContext(ctx, s.maxTries, s.retryDelay, func(ctx context.Context) ([]common.Entity, error) {
		return s.entities.Extract(ctx, unit)
	})
	if err != nil {
		result.Err = err
		return result
	}
	if len(entities) == 0 {
		return result
	}
	result.Entities = entities

	relationships, err := util.RetryBackoffWithContext(ctx, s.maxTries, s.retryDelay, func(ctx context.Context) ([]common.Relationship, error) {
		return s.relations.Extract(ctx, unit, entities)
	})
	if err != nil {
		result.Err = err
		result.Entities = nil
		return result
	}
	result.Relationships = relationships

	claims, err := util.RetryBackoffWithContext(ctx, s.maxTries, s.retryDelay, func(ctx context.Context) ([]common.Claim, error) {
		return s.claims.Extract(ctx, unit, entities)
	})
	if err != nil {
		result.Err = err
		result.Entities = nil
		result.Relationships = nil
		return result
	}
	result.Claims = claims

	return result
}
