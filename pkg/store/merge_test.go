package store

import (
	"reflect"
	"testing"

	"github.com/terra-graph/newsgraph/pkg/common"
)

func TestMergeDescriptions(t *testing.T) {
	tests := []struct {
		old, new, want string
	}{
		{"", "new", "new"},
		{"old", "", "old"},
		{"old", "new", "old new"},
	}
	for _, tt := range tests {
		if got := MergeDescriptions(tt.old, tt.new); got != tt.want {
			t.Errorf("MergeDescriptions(%q, %q) = %q, want %q", tt.old, tt.new, got, tt.want)
		}
	}
}

func TestMergeAttributesNewWins(t *testing.T) {
	old := map[string]string{"role": "ceo", "country": "us"}
	new := map[string]string{"role": "chairman", "founded": "1999"}

	got := MergeAttributes(old, new)
	want := map[string]string{"role": "chairman", "country": "us", "founded": "1999"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}

	if old["role"] != "ceo" {
		t.Error("input map was mutated")
	}
}

func TestMergeAttributesUnionIsCommutativeOnDisjointKeys(t *testing.T) {
	a := map[string]string{"x": "1"}
	b := map[string]string{"y": "2"}
	if !reflect.DeepEqual(MergeAttributes(a, b), MergeAttributes(b, a)) {
		t.Error("disjoint-key union should not depend on order")
	}
}

func TestMergeStrengthPairwiseAverage(t *testing.T) {
	got := MergeStrength(0.8, 0.2)
	if got != 0.5 {
		t.Errorf("MergeStrength(0.8, 0.2) = %v, want 0.5", got)
	}
	// merging the result with another 0.5 stays at 0.5
	if got = MergeStrength(got, 0.5); got != 0.5 {
		t.Errorf("MergeStrength(0.5, 0.5) = %v, want 0.5", got)
	}
}

func TestUnionDocsPreservesOrderAndDedupes(t *testing.T) {
	got := UnionDocs([]string{"a", "b"}, []string{"b", "c", "a", "d"})
	want := []string{"a", "b", "c", "d"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestMergeEntityRecordFirstSight(t *testing.T) {
	incoming := common.Entity{
		ID:          "ACME CORP",
		Name:        "ACME CORP",
		Type:        common.EntityTypeOrganization,
		Description: "A corporation.",
		SourceDocs:  []string{"doc1"},
	}
	got := MergeEntityRecord(nil, incoming)
	if got.ID != "ACME CORP" || got.Description != "A corporation." {
		t.Errorf("got %+v, want incoming entity unchanged", got)
	}
	if got.Attributes == nil {
		t.Error("attributes should be initialized")
	}
}

func TestMergeEntityRecordCombines(t *testing.T) {
	existing := common.Entity{
		ID:          "ACME CORP",
		Name:        "ACME CORP",
		Type:        common.EntityTypeOrganization,
		Description: "A corporation.",
		Attributes:  map[string]string{"country": "us"},
		SourceDocs:  []string{"doc1"},
	}
	incoming := common.Entity{
		ID:          "ACME CORP",
		Name:        "ACME CORP",
		Type:        common.EntityTypeOrganization,
		Description: "Acquired Globex.",
		Attributes:  map[string]string{"country": "usa", "ceo": "jane roe"},
		SourceDocs:  []string{"doc2"},
	}

	got := MergeEntityRecord(&existing, incoming)
	if got.Description != "A corporation. Acquired Globex." {
		t.Errorf("description = %q", got.Description)
	}
	if got.Attributes["country"] != "usa" || got.Attributes["ceo"] != "jane roe" {
		t.Errorf("attributes = %v", got.Attributes)
	}
	if !reflect.DeepEqual(got.SourceDocs, []string{"doc1", "doc2"}) {
		t.Errorf("source docs = %v", got.SourceDocs)
	}
}

func TestMergeEntityRecordIdempotentPerDocument(t *testing.T) {
	existing := common.Entity{
		ID:          "ACME CORP",
		Name:        "ACME CORP",
		Description: "A corporation.",
		SourceDocs:  []string{"doc1"},
	}
	incoming := common.Entity{
		ID:          "ACME CORP",
		Name:        "ACME CORP",
		Description: "A corporation.",
		SourceDocs:  []string{"doc1"},
	}

	got := MergeEntityRecord(&existing, incoming)
	if !reflect.DeepEqual(got, existing) {
		t.Errorf("re-merging the same document changed the record: %+v", got)
	}
}

func TestMergeRelationshipRecordCombines(t *testing.T) {
	existing := common.Relationship{
		ID:           "ACME CORP_ACQUIRED_GLOBEX INC",
		SourceEntity: "ACME CORP",
		TargetEntity: "GLOBEX INC",
		RelationType: "ACQUIRED",
		Description:  "Acme acquired Globex.",
		Strength:     0.8,
		SourceDocs:   []string{"doc1"},
	}
	incoming := common.Relationship{
		ID:           "ACME CORP_ACQUIRED_GLOBEX INC",
		SourceEntity: "ACME CORP",
		TargetEntity: "GLOBEX INC",
		RelationType: "ACQUIRED",
		Description:  "The deal closed in May.",
		Strength:     0.2,
		SourceDocs:   []string{"doc2"},
	}

	got := MergeRelationshipRecord(&existing, incoming)
	if got.Strength != 0.5 {
		t.Errorf("strength = %v, want 0.5", got.Strength)
	}
	if got.Description != "Acme acquired Globex. The deal closed in May." {
		t.Errorf("description = %q", got.Description)
	}
}

func TestMergeRelationshipRecordIdempotentPerDocument(t *testing.T) {
	existing := common.Relationship{
		ID:         "ACME CORP_ACQUIRED_GLOBEX INC",
		Strength:   0.8,
		SourceDocs: []string{"doc1"},
	}
	incoming := existing

	got := MergeRelationshipRecord(&existing, incoming)
	if got.Strength != 0.8 {
		t.Errorf("strength changed on re-merge: %v", got.Strength)
	}
	if len(got.SourceDocs) != 1 {
		t.Errorf("source docs grew on re-merge: %v", got.SourceDocs)
	}
}
