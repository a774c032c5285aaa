package community

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator"

	"github.com/terra-graph/newsgraph/internal/util"
	"github.com/terra-graph/newsgraph/pkg/ai"
	"github.com/terra-graph/newsgraph/pkg/common"
	"github.com/terra-graph/newsgraph/pkg/logger"
)

// Report is the structured output the model produces for one community.
type Report struct {
	Title                string  `json:"title"                  validate:"required" jsonschema_description:"Short name for the community naming its key entities"`
	Summary              string  `json:"summary"                validate:"required" jsonschema_description:"Executive summary of the community's structure and its entities"`
	ImpactSeverityRating float64 `json:"impact_severity_rating" jsonschema_description:"Severity of impact posed by entities within the community, 0 to 10"`
	RatingExplanation    string  `json:"rating_explanation"     jsonschema_description:"Single sentence explaining the impact severity rating"`
}

// Detector runs community detection over the relationship graph and
// summarizes each cluster with the model.
type Detector struct {
	client         ai.Client
	validate       *validator.Validate
	maxClusterSize int
	maxTries       int
	retryDelay     time.Duration
}

// DetectorParams configures a Detector. Zero values fall back to
// DefaultMaxClusterSize, 3 tries and a 1 second initial delay.
type DetectorParams struct {
	Client         ai.Client
	MaxClusterSize int
	MaxTries       int
	RetryDelay     time.Duration
}

// NewDetector creates a Detector.
func NewDetector(params DetectorParams) *Detector {
	if params.MaxClusterSize <= 0 {
		params.MaxClusterSize = DefaultMaxClusterSize
	}
	if params.MaxTries <= 0 {
		params.MaxTries = 3
	}
	if params.RetryDelay <= 0 {
		params.RetryDelay = time.Second
	}
	return &Detector{
		client:         params.Client,
		validate:       validator.New(),
		maxClusterSize: params.MaxClusterSize,
		maxTries:       params.MaxTries,
		retryDelay:     params.RetryDelay,
	}
}

// Detect partitions the relationship graph and produces a summarized
// community per cluster, across all hierarchy levels. Clusters whose
// summarization keeps failing are dropped so one bad cluster does not
// block the rest.
func (d *Detector) Detect(ctx context.Context, relationships []common.Relationship) ([]common.Community, error) {
	graph := BuildGraph(relationships)
	clusters := Partition(graph, d.maxClusterSize)
	logger.Info("[Community] partitioned graph",
		"nodes", len(graph.Nodes), "clusters", len(clusters))

	communities := make([]common.Community, 0, len(clusters))
	for _, cluster := range clusters {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		document := buildDocument(graph, cluster.Nodes)
		if document == "" {
			continue
		}

		report, err := util.RetryBackoffWithContext(ctx, d.maxTries, d.retryDelay,
			func(ctx context.Context) (*Report, error) {
				return d.summarize(ctx, document)
			})
		if err != nil {
			logger.Warn("[Community] dropping cluster, summarization failed",
				"cluster", cluster.ID, "error", err)
			continue
		}

		communities = append(communities, common.Community{
			ClusterID:         cluster.ID,
			ParentCluster:     cluster.Parent,
			Level:             cluster.Level,
			Members:           cluster.Nodes,
			Document:          document,
			Title:             report.Title,
			Summary:           report.Summary,
			Rating:            clampRating(report.ImpactSeverityRating),
			RatingExplanation: report.RatingExplanation,
		})
	}

	return communities, nil
}

func (d *Detector) summarize(ctx context.Context, document string) (*Report, error) {
	prompt := fmt.Sprintf(ai.PromptCommunityReport, document)

	var report Report
	err := d.client.GenerateCompletionWithFormat(ctx,
		"community_report",
		"Report summarizing a community of related entities",
		prompt,
		&report,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: generate community report: %v", common.ErrSummarization, err)
	}
	if err := d.validate.Struct(&report); err != nil {
		return nil, fmt.Errorf("%w: invalid community report: %v", common.ErrSummarization, err)
	}
	return &report, nil
}

// buildDocument renders the cluster's internal relationships as one line
// per edge. Edges with an endpoint outside the cluster are left out.
func buildDocument(g *Graph, nodes []string) string {
	member := make(map[string]bool, len(nodes))
	for _, n := range nodes {
		member[n] = true
	}

	var b strings.Builder
	for _, edge := range g.Edges {
		if !member[edge.SourceEntity] || !member[edge.TargetEntity] {
			continue
		}
		fmt.Fprintf(&b, "%s -> %s -> %s: %s\n",
			edge.SourceEntity, edge.RelationType, edge.TargetEntity, edge.Description)
	}
	return strings.TrimSpace(b.String())
}

func clampRating(rating float64) float64 {
	if rating < 0 {
		return 0
	}
	if rating > 10 {
		return 10
	}
	return rating
}
