package store

// Pure merge rules shared by every Storage implementation. Keeping them
// here, outside the database code, makes the dedup semantics testable
// without a running postgres.

import "github.com/terra-graph/newsgraph/pkg/common"

// MergeDescriptions joins the stored and incoming descriptions with a
// single space. Empty sides collapse away.
func MergeDescriptions(old, new string) string {
	if old == "" {
		return new
	}
	if new == "" {
		return old
	}
	return old + " " + new
}

// MergeAttributes unions two attribute maps. On key conflicts the incoming
// value wins. Neither input map is mutated.
func MergeAttributes(old, new map[string]string) map[string]string {
	merged := make(map[string]string, len(old)+len(new))
	for k, v := range old {
		merged[k] = v
	}
	for k, v := range new {
		merged[k] = v
	}
	return merged
}

// MergeStrength is the pairwise running average used for relationship
// strength. Note this is order-dependent policy, not a weighted mean: each
// merge averages the current stored value with the incoming one.
func MergeStrength(old, new float64) float64 {
	return (old + new) / 2
}

// UnionDocs appends the incoming source-document ids that are not already
// present, preserving the stored order.
func UnionDocs(old, new []string) []string {
	seen := make(map[string]struct{}, len(old))
	merged := make([]string, 0, len(old)+len(new))
	for _, id := range old {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		merged = append(merged, id)
	}
	for _, id := range new {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		merged = append(merged, id)
	}
	return merged
}

func containsAllDocs(have, want []string) bool {
	if len(want) == 0 {
		return true
	}
	seen := make(map[string]struct{}, len(have))
	for _, id := range have {
		seen[id] = struct{}{}
	}
	for _, id := range want {
		if _, ok := seen[id]; !ok {
			return false
		}
	}
	return true
}

// MergeEntityRecord merges an incoming extracted entity into the existing
// stored record. A nil existing record yields the incoming entity as-is.
// When every incoming source document has already been merged the stored
// record is returned unchanged, which makes re-ingesting a document a no-op.
func MergeEntityRecord(existing *common.Entity, incoming common.Entity) common.Entity {
	if existing == nil {
		if incoming.Attributes == nil {
			incoming.Attributes = map[string]string{}
		}
		return incoming
	}
	if containsAllDocs(existing.SourceDocs, incoming.SourceDocs) {
		return *existing
	}

	return common.Entity{
		ID:          existing.ID,
		Name:        existing.Name,
		Type:        existing.Type,
		Description: MergeDescriptions(existing.Description, incoming.Description),
		Attributes:  MergeAttributes(existing.Attributes, incoming.Attributes),
		SourceDocs:  UnionDocs(existing.SourceDocs, incoming.SourceDocs),
	}
}

// MergeRelationshipRecord merges an incoming extracted relationship into the
// existing stored record, averaging strength pairwise. Re-ingesting an
// already-merged document returns the stored record unchanged.
func MergeRelationshipRecord(existing *common.Relationship, incoming common.Relationship) common.Relationship {
	if existing == nil {
		return incoming
	}
	if containsAllDocs(existing.SourceDocs, incoming.SourceDocs) {
		return *existing
	}

	return common.Relationship{
		ID:           existing.ID,
		SourceEntity: existing.SourceEntity,
		TargetEntity: existing.TargetEntity,
		RelationType: existing.RelationType,
		Description:  MergeDescriptions(existing.Description, incoming.Description),
		Strength:     MergeStrength(existing.Strength, incoming.Strength),
		SourceDocs:   UnionDocs(existing.SourceDocs, incoming.SourceDocs),
	}
}
