package extract

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/terra-graph/newsgraph/pkg/ai"
	"github.com/terra-graph/newsgraph/pkg/common"
	"github.com/terra-graph/newsgraph/pkg/logger"

	"github.com/go-playground/validator"
)

type relationshipPayload struct {
	SourceEntity string  `json:"source_entity" validate:"required" jsonschema_description:"Name of the source entity from the entity list"`
	TargetEntity string  `json:"target_entity" validate:"required" jsonschema_description:"Name of the target entity from the entity list"`
	RelationType string  `json:"relation_type" validate:"required" jsonschema_description:"Short verb phrase naming the relation"`
	Description  string  `json:"description" validate:"required" jsonschema_description:"Explanation of why the entities are related"`
	Strength     float64 `json:"strength" jsonschema_description:"Score between 0.0 and 1.0 for how strongly the text supports the relationship"`
}

type relationshipOutput struct {
	Relationships []relationshipPayload `json:"relationships" jsonschema_description:"All relationships between the provided entities"`
}

// RelationshipExtractor extracts relationships between previously identified
// entities.
type RelationshipExtractor struct {
	client   ai.Client
	validate *validator.Validate
}

// NewRelationshipExtractor creates a RelationshipExtractor backed by the
// given client.
func NewRelationshipExtractor(client ai.Client) *RelationshipExtractor {
	return &RelationshipExtractor{
		client:   client,
		validate: validator.New(),
	}
}

func formatEntityList(entities []common.Entity) string {
	var b strings.Builder
	for _, e := range entities {
		fmt.Fprintf(&b, "- %s (%s): %s\n", e.Name, e.Type, e.Description)
	}
	return b.String()
}

// Extract runs relationship extraction over a single unit. A unit without
// entities yields no relationships and no model call. Relationships whose
// endpoints are not in the provided entity list are dropped.
func (e *RelationshipExtractor) Extract(
	ctx context.Context,
	unit Unit,
	entities []common.Entity,
) ([]common.Relationship, error) {
	if len(entities) == 0 {
		return nil, nil
	}

	prompt := fmt.Sprintf(
		ai.PromptExtractRelationships,
		time.Now().Format("2006-01-02"),
		formatEntityList(entities),
		unit.Text,
	)

	var out relationshipOutput
	err := e.client.GenerateCompletionWithFormat(
		ctx,
		"extracted_relationships",
		"Relationships between entities extracted from a news text",
		prompt,
		&out,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: unit %s: %v", common.ErrExtraction, unit.ID, err)
	}

	known := make(map[string]struct{}, len(entities))
	for _, ent := range entities {
		known[ent.ID] = struct{}{}
	}

	relationships := make([]common.Relationship, 0, len(out.Relationships))
	for _, payload := range out.Relationships {
		if err := e.validate.Struct(payload); err != nil {
			return nil, fmt.Errorf("%w: unit %s: invalid relationship: %v", common.ErrExtraction, unit.ID, err)
		}

		sourceID := common.EntityID(payload.SourceEntity)
		targetID := common.EntityID(payload.TargetEntity)
		if _, ok := known[sourceID]; !ok {
			logger.Debug("[Extract] dropping relationship with unknown source", "source", payload.SourceEntity, "unit", unit.ID)
			continue
		}
		if _, ok := known[targetID]; !ok {
			logger.Debug("[Extract] dropping relationship with unknown target", "target", payload.TargetEntity, "unit", unit.ID)
			continue
		}

		strength := payload.Strength
		if strength < 0 {
			strength = 0
		}
		if strength > 1 {
			strength = 1
		}

		relationships = append(relationships, common.Relationship{
			ID:           common.RelationshipID(sourceID, payload.RelationType, targetID),
			SourceEntity: sourceID,
			TargetEntity: targetID,
			RelationType: common.NormalizeName(payload.RelationType),
			Description:  strings.TrimSpace(payload.Description),
			Strength:     strength,
			SourceDocs:   []string{unit.ItemID},
		})
	}

	return relationships, nil
}
