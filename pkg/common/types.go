package common

import "strings"

// EntityType classifies an extracted entity. Values the model returns outside
// this set are coerced to EntityTypeOther.
type EntityType string

const (
	EntityTypePerson         EntityType = "PERSON"
	EntityTypeOrganization   EntityType = "ORGANIZATION"
	EntityTypeIndustry       EntityType = "INDUSTRY"
	EntityTypeLocation       EntityType = "LOCATION"
	EntityTypeLanguage       EntityType = "LANGUAGE"
	EntityTypeCurrency       EntityType = "CURRENCY"
	EntityTypeGeopolitical   EntityType = "GEOPOLITICAL_ENTITY"
	EntityTypeGroup          EntityType = "NATIONALITY_OR_RELIGIOUS_OR_POLITICAL_GROUP"
	EntityTypeLegal          EntityType = "LEGAL_DOCUMENTS_OR_LAWS_OR_TREATIES"
	EntityTypeWorkOfArt      EntityType = "WORK_OF_ART"
	EntityTypeProduct        EntityType = "PRODUCT_OR_SERVICE"
	EntityTypeEvent          EntityType = "EVENT"
	EntityTypeInfrastructure EntityType = "INFRASTRUCTURE"
	EntityTypeOther          EntityType = "OTHER"
)

// EntityTypes lists every recognized entity type in the order presented to
// the extraction model.
var EntityTypes = []EntityType{
	EntityTypePerson,
	EntityTypeOrganization,
	EntityTypeIndustry,
	EntityTypeLocation,
	EntityTypeLanguage,
	EntityTypeCurrency,
	EntityTypeGeopolitical,
	EntityTypeGroup,
	EntityTypeLegal,
	EntityTypeWorkOfArt,
	EntityTypeProduct,
	EntityTypeEvent,
	EntityTypeInfrastructure,
	EntityTypeOther,
}

// CoerceEntityType maps a raw model output to a recognized EntityType,
// falling back to EntityTypeOther.
func CoerceEntityType(raw string) EntityType {
	candidate := EntityType(strings.ToUpper(strings.TrimSpace(raw)))
	for _, t := range EntityTypes {
		if candidate == t {
			return t
		}
	}
	return EntityTypeOther
}

// ClaimType classifies the nature of an extracted claim.
type ClaimType string

const (
	ClaimTypeFact         ClaimType = "FACT"
	ClaimTypeOpinion      ClaimType = "OPINION"
	ClaimTypePrediction   ClaimType = "PREDICTION"
	ClaimTypeHypothesis   ClaimType = "HYPOTHESIS"
	ClaimTypeDenial       ClaimType = "DENIAL"
	ClaimTypeConfirmation ClaimType = "CONFIRMATION"
	ClaimTypeAccusation   ClaimType = "ACCUSATION"
	ClaimTypePromise      ClaimType = "PROMISE"
	ClaimTypeWarning      ClaimType = "WARNING"
	ClaimTypeAnnouncement ClaimType = "ANNOUNCEMENT"
	ClaimTypeOther        ClaimType = "OTHER"
)

var claimTypes = []ClaimType{
	ClaimTypeFact,
	ClaimTypeOpinion,
	ClaimTypePrediction,
	ClaimTypeHypothesis,
	ClaimTypeDenial,
	ClaimTypeConfirmation,
	ClaimTypeAccusation,
	ClaimTypePromise,
	ClaimTypeWarning,
	ClaimTypeAnnouncement,
	ClaimTypeOther,
}

// CoerceClaimType maps a raw model output to a recognized ClaimType, falling
// back to ClaimTypeOther.
func CoerceClaimType(raw string) ClaimType {
	candidate := ClaimType(strings.ToUpper(strings.TrimSpace(raw)))
	for _, t := range claimTypes {
		if candidate == t {
			return t
		}
	}
	return ClaimTypeOther
}

// ClaimStatus captures whether a claim is verified.
type ClaimStatus string

const (
	ClaimStatusTrue      ClaimStatus = "TRUE"
	ClaimStatusFalse     ClaimStatus = "FALSE"
	ClaimStatusSuspected ClaimStatus = "SUSPECTED"
)

// CoerceClaimStatus maps a raw model output to a ClaimStatus. Anything
// unrecognized is treated as suspected rather than asserted.
func CoerceClaimStatus(raw string) ClaimStatus {
	switch ClaimStatus(strings.ToUpper(strings.TrimSpace(raw))) {
	case ClaimStatusTrue:
		return ClaimStatusTrue
	case ClaimStatusFalse:
		return ClaimStatusFalse
	default:
		return ClaimStatusSuspected
	}
}
