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

type claimPayload struct {
	Subject     string   `json:"subject" validate:"required" jsonschema_description:"Entity making or being the subject of the claim"`
	Object      string   `json:"object" jsonschema_description:"Entity the claim is about, or NONE"`
	ClaimType   string   `json:"claim_type" validate:"required" jsonschema_description:"Type of the claim from the provided list"`
	Status      string   `json:"status" validate:"required" jsonschema_description:"TRUE, FALSE or SUSPECTED"`
	Description string   `json:"description" validate:"required" jsonschema_description:"Detailed description of the claim with supporting evidence"`
	Period      string   `json:"period" jsonschema_description:"Time period the claim refers to, ISO-8601 when determinable"`
	Quotes      []string `json:"quotes" jsonschema_description:"Direct quotes from the text supporting the claim"`
}

type claimOutput struct {
	Claims []claimPayload `json:"claims" jsonschema_description:"All claims made by or about the provided entities"`
}

// ClaimExtractor extracts claims attributed to previously identified
// entities.
type ClaimExtractor struct {
	client   ai.Client
	validate *validator.Validate
}

// NewClaimExtractor creates a ClaimExtractor backed by the given client.
func NewClaimExtractor(client ai.Client) *ClaimExtractor {
	return &ClaimExtractor{
		client:   client,
		validate: validator.New(),
	}
}

func claimTypeList() string {
	return strings.Join([]string{
		string(common.ClaimTypeFact),
		string(common.ClaimTypeOpinion),
		string(common.ClaimTypePrediction),
		string(common.ClaimTypeHypothesis),
		string(common.ClaimTypeDenial),
		string(common.ClaimTypeConfirmation),
		string(common.ClaimTypeAccusation),
		string(common.ClaimTypePromise),
		string(common.ClaimTypeWarning),
		string(common.ClaimTypeAnnouncement),
		string(common.ClaimTypeOther),
	}, ", ")
}

// Extract runs claim extraction over a single unit. A unit without entities
// yields no claims and no model call.
func (e *ClaimExtractor) Extract(
	ctx context.Context,
	unit Unit,
	entities []common.Entity,
) ([]common.Claim, error) {
	if len(entities) == 0 {
		return nil, nil
	}

	prompt := fmt.Sprintf(
		ai.PromptExtractClaims,
		claimTypeList(),
		time.Now().Format("2006-01-02"),
		formatEntityList(entities),
		unit.Text,
	)

	var out claimOutput
	err := e.client.GenerateCompletionWithFormat(
		ctx,
		"extracted_claims",
		"Claims extracted from a news text",
		prompt,
		&out,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: unit %s: %v", common.ErrExtraction, unit.ID, err)
	}

	claims := make([]common.Claim, 0, len(out.Claims))
	for _, payload := range out.Claims {
		if err := e.validate.Struct(payload); err != nil {
			return nil, fmt.Errorf("%w: unit %s: invalid claim: %v", common.ErrExtraction, unit.ID, err)
		}

		object := common.EntityID(payload.Object)
		if object == "NONE" {
			object = ""
		}

		claims = append(claims, common.Claim{
			Subject:     common.EntityID(payload.Subject),
			Object:      object,
			Type:        common.CoerceClaimType(payload.ClaimType),
			Status:      common.CoerceClaimStatus(payload.Status),
			Description: strings.TrimSpace(payload.Description),
			Period:      strings.TrimSpace(payload.Period),
			Quotes:      payload.Quotes,
			ItemID:      unit.ItemID,
		})
	}

	return claims, nil
}
