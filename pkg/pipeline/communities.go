package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/terra-graph/newsgraph/pkg/common"
	"github.com/terra-graph/newsgraph/pkg/community"
	"github.com/terra-graph/newsgraph/pkg/logger"
)

// CommunityNamespace scopes the community pipeline's state keys.
const CommunityNamespace = "communities"

const defaultCommunityInterval = 6 * time.Hour

// CommunitySource is the storage surface the community pipeline needs.
type CommunitySource interface {
	Relationships(ctx context.Context) ([]common.Relationship, error)
	ReplaceCommunities(ctx context.Context, communities []common.Community) error
}

// CommunityPipeline rebuilds the community hierarchy from the persisted
// relationship graph and replaces the stored set.
type CommunityPipeline struct {
	detector *community.Detector
	storage  CommunitySource
	interval time.Duration
}

// CommunityPipelineParams configures a CommunityPipeline. A zero Interval
// falls back to 6 hours.
type CommunityPipelineParams struct {
	Detector *community.Detector
	Storage  CommunitySource
	Interval time.Duration
}

// NewCommunityPipeline creates a CommunityPipeline.
func NewCommunityPipeline(params CommunityPipelineParams) *CommunityPipeline {
	if params.Interval <= 0 {
		params.Interval = defaultCommunityInterval
	}
	return &CommunityPipeline{
		detector: params.Detector,
		storage:  params.Storage,
		interval: params.Interval,
	}
}

func (p *CommunityPipeline) Namespace() string {
	return CommunityNamespace
}

// Run detects and summarizes communities over all stored relationships and
// replaces the previous set wholesale.
func (p *CommunityPipeline) Run(ctx context.Context) (time.Time, error) {
	now := time.Now().UTC()

	relationships, err := p.storage.Relationships(ctx)
	if err != nil {
		return time.Time{}, fmt.Errorf("load relationships: %w", err)
	}
	if len(relationships) == 0 {
		logger.Info("[Communities] no relationships yet, skipping detection")
		return now.Add(p.interval), nil
	}

	communities, err := p.detector.Detect(ctx, relationships)
	if err != nil {
		return time.Time{}, fmt.Errorf("detect communities: %w", err)
	}

	if err := p.storage.ReplaceCommunities(ctx, communities); err != nil {
		return time.Time{}, fmt.Errorf("replace communities: %w", err)
	}
	logger.Info("[Communities] rebuilt community set",
		"relationships", len(relationships), "communities", len(communities))

	return now.Add(p.interval), nil
}
