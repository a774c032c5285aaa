package extract

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/terra-graph/newsgraph/pkg/common"
)

type fakeEntitySource struct {
	failFor map[string]bool
	byUnit  map[string][]common.Entity
	calls   map[string]int
}

func (f *fakeEntitySource) Extract(_ context.Context, unit Unit) ([]common.Entity, error) {
	if f.calls == nil {
		f.calls = map[string]int{}
	}
	f.calls[unit.ID]++
	if f.failFor[unit.ID] {
		return nil, errors.New("model unavailable")
	}
	return f.byUnit[unit.ID], nil
}

type fakeRelationSource struct {
	byUnit map[string][]common.Relationship
	calls  int
}

func (f *fakeRelationSource) Extract(_ context.Context, unit Unit, _ []common.Entity) ([]common.Relationship, error) {
	f.calls++
	return f.byUnit[unit.ID], nil
}

type fakeClaimSource struct {
	byUnit map[string][]common.Claim
	calls  int
}

func (f *fakeClaimSource) Extract(_ context.Context, unit Unit, _ []common.Entity) ([]common.Claim, error) {
	f.calls++
	return f.byUnit[unit.ID], nil
}

func testEntity(name string) common.Entity {
	return common.Entity{
		ID:   common.EntityID(name),
		Name: name,
		Type: common.EntityTypeOrganization,
	}
}

func TestStageIsolatesFailedUnits(t *testing.T) {
	units := []Unit{
		{ID: "u1", ItemID: "doc1", Text: "..."},
		{ID: "u2", ItemID: "doc2", Text: "..."},
		{ID: "u3", ItemID: "doc3", Text: "..."},
		{ID: "u4", ItemID: "doc4", Text: "..."},
		{ID: "u5", ItemID: "doc5", Text: "..."},
	}

	entities := &fakeEntitySource{
		failFor: map[string]bool{"u3": true},
		byUnit: map[string][]common.Entity{
			"u1": {testEntity("ACME CORP")},
			"u2": {testEntity("GLOBEX INC")},
			"u4": {testEntity("INITECH")},
			"u5": {testEntity("UMBRELLA")},
		},
	}
	stage := NewStage(StageParams{
		Entities:    entities,
		Relations:   &fakeRelationSource{},
		Claims:      &fakeClaimSource{},
		MaxParallel: 2,
		MaxTries:    3,
		RetryDelay:  time.Millisecond,
	})

	results := stage.Run(context.Background(), units)
	if len(results) != 5 {
		t.Fatalf("got %d results, want 5", len(results))
	}

	for i, res := range results {
		if res.Unit.ID != units[i].ID {
			t.Errorf("result %d is for unit %s, want %s", i, res.Unit.ID, units[i].ID)
		}
	}

	if results[2].Err == nil {
		t.Error("unit u3 should carry an error")
	}
	if results[2].Entities != nil {
		t.Error("failed unit must yield nil entities")
	}
	for _, i := range []int{0, 1, 3, 4} {
		if results[i].Err != nil {
			t.Errorf("unit %s failed: %v, siblings of a failed unit must succeed", units[i].ID, results[i].Err)
		}
		if len(results[i].Entities) != 1 {
			t.Errorf("unit %s has %d entities, want 1", units[i].ID, len(results[i].Entities))
		}
	}

	if entities.calls["u3"] != 3 {
		t.Errorf("failed unit was tried %d times, want 3", entities.calls["u3"])
	}
	if entities.calls["u1"] != 1 {
		t.Errorf("successful unit was tried %d times, want 1", entities.calls["u1"])
	}
}

func TestStageSkipsDownstreamWhenNoEntities(t *testing.T) {
	relations := &fakeRelationSource{}
	claims := &fakeClaimSource{}
	stage := NewStage(StageParams{
		Entities:   &fakeEntitySource{},
		Relations:  relations,
		Claims:     claims,
		RetryDelay: time.Millisecond,
	})

	results := stage.Run(context.Background(), []Unit{{ID: "empty", ItemID: "doc1"}})
	if results[0].Err != nil {
		t.Fatalf("unexpected error: %v", results[0].Err)
	}
	if relations.calls != 0 {
		t.Errorf("relationship extractor called %d times for an entity-less unit, want 0", relations.calls)
	}
	if claims.calls != 0 {
		t.Errorf("claim extractor called %d times for an entity-less unit, want 0", claims.calls)
	}
}

func TestStageCollectsAllStages(t *testing.T) {
	rel := common.Relationship{
		ID:           common.RelationshipID("ACME CORP", "ACQUIRED", "GLOBEX INC"),
		SourceEntity: "ACME CORP",
		TargetEntity: "GLOBEX INC",
		RelationType: "ACQUIRED",
		Strength:     0.8,
	}
	claim := common.Claim{
		Subject: "ACME CORP",
		Type:    common.ClaimTypeAnnouncement,
		Status:  common.ClaimStatusTrue,
		ItemID:  "doc1",
	}

	stage := NewStage(StageParams{
		Entities: &fakeEntitySource{byUnit: map[string][]common.Entity{
			"u1": {testEntity("ACME CORP"), testEntity("GLOBEX INC")},
		}},
		Relations:  &fakeRelationSource{byUnit: map[string][]common.Relationship{"u1": {rel}}},
		Claims:     &fakeClaimSource{byUnit: map[string][]common.Claim{"u1": {claim}}},
		RetryDelay: time.Millisecond,
	})

	results := stage.Run(context.Background(), []Unit{{ID: "u1", ItemID: "doc1"}})
	res := results[0]
	if res.Err != nil {
		t.Fatalf("unexpected error: %v", res.Err)
	}
	if len(res.Entities) != 2 || len(res.Relationships) != 1 || len(res.Claims) != 1 {
		t.Errorf("got %d entities, %d relationships, %d claims; want 2, 1, 1",
			len(res.Entities), len(res.Relationships), len(res.Claims))
	}
}
