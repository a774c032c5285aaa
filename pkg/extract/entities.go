package extract

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/terra-graph/newsgraph/pkg/ai"
	"github.com/terra-graph/newsgraph/pkg/common"

	"github.com/go-playground/validator"
)

type entityAttributePayload struct {
	Key   string `json:"key" validate:"required" jsonschema_description:"Attribute name, e.g. role, date, amount"`
	Value string `json:"value" validate:"required" jsonschema_description:"Attribute value"`
}

type entityPayload struct {
	Name        string                   `json:"name" validate:"required" jsonschema_description:"Name of the entity, capitalized as commonly written"`
	EntityType  string                   `json:"entity_type" validate:"required" jsonschema_description:"Type of the entity from the provided list"`
	Description string                   `json:"description" validate:"required" jsonschema_description:"Comprehensive description of the entity as described in the text"`
	Attributes  []entityAttributePayload `json:"attributes" jsonschema_description:"Key facts about the entity"`
}

type entityOutput struct {
	Entities   []entityPayload `json:"entities" jsonschema_description:"All entities found in the text"`
	NoEntities bool            `json:"no_entities" jsonschema_description:"True when the text contains no identifiable entities"`
}

// EntityExtractor extracts named entities from a text unit via
// schema-constrained model output.
type EntityExtractor struct {
	client   ai.Client
	validate *validator.Validate
}

// NewEntityExtractor creates an EntityExtractor backed by the given client.
func NewEntityExtractor(client ai.Client) *EntityExtractor {
	return &EntityExtractor{
		client:   client,
		validate: validator.New(),
	}
}

func entityTypeList() string {
	types := make([]string, len(common.EntityTypes))
	for i, t := range common.EntityTypes {
		types[i] = string(t)
	}
	return strings.Join(types, ", ")
}

// Extract runs entity extraction over a single unit. Entities with missing
// required fields fail the whole unit; unknown entity types are coerced to
// OTHER rather than rejected.
func (e *EntityExtractor) Extract(ctx context.Context, unit Unit) ([]common.Entity, error) {
	prompt := fmt.Sprintf(
		ai.PromptExtractEntities,
		entityTypeList(),
		time.Now().Format("2006-01-02"),
		unit.Text,
	)

	var out entityOutput
	err := e.client.GenerateCompletionWithFormat(
		ctx,
		"extracted_entities",
		"Entities extracted from a news text",
		prompt,
		&out,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: unit %s: %v", common.ErrExtraction, unit.ID, err)
	}

	if out.NoEntities || len(out.Entities) == 0 {
		return nil, nil
	}

	entities := make([]common.Entity, 0, len(out.Entities))
	for _, payload := range out.Entities {
		if err := e.validate.Struct(payload); err != nil {
			return nil, fmt.Errorf("%w: unit %s: invalid entity: %v", common.ErrExtraction, unit.ID, err)
		}

		name := strings.ToUpper(strings.TrimSpace(payload.Name))
		attributes := make(map[string]string, len(payload.Attributes))
		for _, attr := range payload.Attributes {
			attributes[strings.ToLower(strings.TrimSpace(attr.Key))] = attr.Value
		}

		entities = append(entities, common.Entity{
			ID:          common.EntityID(name),
			Name:        name,
			Type:        common.CoerceEntityType(payload.EntityType),
			Description: strings.TrimSpace(payload.Description),
			Attributes:  attributes,
			SourceDocs:  []string{unit.ItemID},
		})
	}

	return entities, nil
}
