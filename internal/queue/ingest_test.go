package queue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/terra-graph/newsgraph/pkg/common"
	"github.com/terra-graph/newsgraph/pkg/extract"
	"github.com/terra-graph/newsgraph/pkg/state"
	"github.com/terra-graph/newsgraph/pkg/store/memory"
)

// stub extractors keyed by the unit's item id

type stubEntitySource struct {
	byItem map[string][]common.Entity
	fail   map[string]bool
}

func (s *stubEntitySource) Extract(_ context.Context, unit extract.Unit) ([]common.Entity, error) {
	if s.fail[unit.ItemID] {
		return nil, errors.New("model returned garbage")
	}
	return s.byItem[unit.ItemID], nil
}

type stubRelationSource struct {
	byItem map[string][]common.Relationship
}

func (s *stubRelationSource) Extract(_ context.Context, unit extract.Unit, _ []common.Entity) ([]common.Relationship, error) {
	return s.byItem[unit.ItemID], nil
}

type stubClaimSource struct{}

func (s *stubClaimSource) Extract(_ context.Context, unit extract.Unit, entities []common.Entity) ([]common.Claim, error) {
	return []common.Claim{{
		Subject:     entities[0].ID,
		Type:        common.ClaimTypeAnnouncement,
		Status:      common.ClaimStatusTrue,
		Description: "Claim from " + unit.ItemID,
		ItemID:      unit.ItemID,
	}}, nil
}

type recordingGraph struct {
	mu    sync.Mutex
	nodes []common.Entity
	edges []common.Relationship
}

func (g *recordingGraph) UpsertNodes(_ context.Context, entities []common.Entity) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.nodes = append(g.nodes, entities...)
	return nil
}

func (g *recordingGraph) UpsertEdges(_ context.Context, relationships []common.Relationship) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.edges = append(g.edges, relationships...)
	return nil
}

func entity(name string, entityType common.EntityType, description string, doc string) common.Entity {
	return common.Entity{
		ID:          common.EntityID(name),
		Name:        common.NormalizeName(name),
		Type:        entityType,
		Description: description,
		Attributes:  map[string]string{},
		SourceDocs:  []string{doc},
	}
}

func acquisition(strength float64, doc string) common.Relationship {
	return common.Relationship{
		ID:           common.RelationshipID("ACME CORP", "ACQUIRED", "GLOBEX INC"),
		SourceEntity: "ACME CORP",
		TargetEntity: "GLOBEX INC",
		RelationType: "ACQUIRED",
		Description:  "Acme Corp acquired Globex Inc.",
		Strength:     strength,
		SourceDocs:   []string{doc},
	}
}

func oneUnitPerArticle(text string, itemID string) ([]extract.Unit, error) {
	return []extract.Unit{{
		ID:     "u-" + itemID,
		ItemID: itemID,
		Text:   text,
	}}, nil
}

func seedArticles(t *testing.T, storage *memory.Store, ids ...string) {
	t.Helper()
	base := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	var articles []common.Article
	for i, id := range ids {
		articles = append(articles, common.Article{
			ItemID:      id,
			Title:       "Article " + id,
			Content:     "Body of " + id + ".",
			URL:         "https://news.example/" + id,
			PublishDate: base.Add(time.Duration(i) * time.Hour),
		})
	}
	if _, err := storage.InsertArticles(context.Background(), articles); err != nil {
		t.Fatalf("seed articles: %v", err)
	}
}

func newTestIngestor(storage *memory.Store, graph *recordingGraph, st state.Store, entities *stubEntitySource, relations *stubRelationSource) *Ingestor {
	return NewIngestor(IngestorParams{
		Storage: storage,
		Graph:   graph,
		State:   st,
		Stage: extract.NewStage(extract.StageParams{
			Entities:   entities,
			Relations:  relations,
			Claims:     &stubClaimSource{},
			MaxTries:   2,
			RetryDelay: time.Millisecond,
		}),
		Chunker: oneUnitPerArticle,
	})
}

func TestProcessBatchMergesAcrossArticles(t *testing.T) {
	storage := memory.NewStore()
	graph := &recordingGraph{}
	st := state.NewMemoryStore()
	seedArticles(t, storage, "doc1", "doc2")

	entities := &stubEntitySource{byItem: map[string][]common.Entity{
		"doc1": {
			entity("Acme Corp", common.EntityTypeOrganization, "Acme makes anvils.", "doc1"),
			entity("Globex Inc", common.EntityTypeOrganization, "Globex is a conglomerate.", "doc1"),
		},
		"doc2": {
			entity("Acme Corp", common.EntityTypeOrganization, "Acme expanded overseas.", "doc2"),
			entity("Globex Inc", common.EntityTypeOrganization, "Globex was acquired.", "doc2"),
		},
	}}
	relations := &stubRelationSource{byItem: map[string][]common.Relationship{
		"doc1": {acquisition(0.8, "doc1")},
		"doc2": {acquisition(0.2, "doc2")},
	}}

	ingestor := newTestIngestor(storage, graph, st, entities, relations)
	if err := ingestor.ProcessBatch(context.Background(), "batch1"); err != nil {
		t.Fatalf("process batch: %v", err)
	}

	// both mentions collapse into one entity record per canonical id
	if storage.EntityCount() != 2 {
		t.Errorf("entity count = %d, want 2", storage.EntityCount())
	}
	acme, err := storage.Entity(context.Background(), "ACME CORP")
	if err != nil || acme == nil {
		t.Fatalf("acme lookup: %v, %v", acme, err)
	}
	if acme.Description != "Acme makes anvils. Acme expanded overseas." {
		t.Errorf("merged description = %q", acme.Description)
	}
	if fmt.Sprint(acme.SourceDocs) != "[doc1 doc2]" {
		t.Errorf("source docs = %v", acme.SourceDocs)
	}

	rel, err := storage.Relationship(context.Background(), common.RelationshipID("ACME CORP", "ACQUIRED", "GLOBEX INC"))
	if err != nil || rel == nil {
		t.Fatalf("relationship lookup: %v, %v", rel, err)
	}
	if rel.Strength != 0.5 {
		t.Errorf("merged strength = %v, want pairwise average 0.5", rel.Strength)
	}

	if len(storage.Claims()) != 2 {
		t.Errorf("claims = %d, want one per article", len(storage.Claims()))
	}

	// both articles stamped with the batch correlation id
	for _, id := range []string{"doc1", "doc2"} {
		article, ok := storage.Article(id)
		if !ok || article.BatchID != "batch1" {
			t.Errorf("article %s batch id = %q, want batch1", id, article.BatchID)
		}
	}

	// the merged rows, not the raw extractions, go to the graph store
	if len(graph.nodes) != 4 {
		t.Errorf("graph node upserts = %d, want 4", len(graph.nodes))
	}
	var lastAcme *common.Entity
	for i := range graph.nodes {
		if graph.nodes[i].ID == "ACME CORP" {
			lastAcme = &graph.nodes[i]
		}
	}
	if lastAcme == nil || !strings.Contains(lastAcme.Description, "Acme expanded overseas.") {
		t.Errorf("graph did not receive the merged entity: %+v", lastAcme)
	}
}

func TestProcessBatchExtractionFailureStillStamps(t *testing.T) {
	storage := memory.NewStore()
	st := state.NewMemoryStore()
	seedArticles(t, storage, "doc1", "doc2", "doc3")

	entities := &stubEntitySource{
		byItem: map[string][]common.Entity{
			"doc1": {entity("Acme Corp", common.EntityTypeOrganization, "Acme.", "doc1")},
			"doc3": {entity("Globex Inc", common.EntityTypeOrganization, "Globex.", "doc3")},
		},
		fail: map[string]bool{"doc2": true},
	}
	ingestor := newTestIngestor(storage, &recordingGraph{}, st, entities, &stubRelationSource{})

	if err := ingestor.ProcessBatch(context.Background(), "batch1"); err != nil {
		t.Fatalf("process batch: %v", err)
	}

	// a unit that failed extraction is recorded but its article does not
	// block; siblings merge normally
	for _, id := range []string{"doc1", "doc2", "doc3"} {
		article, ok := storage.Article(id)
		if !ok || article.BatchID != "batch1" {
			t.Errorf("article %s batch id = %q, want batch1", id, article.BatchID)
		}
	}
	record, err := st.Get(context.Background(), "news", "error:doc2")
	if err != nil || record == "" {
		t.Errorf("error record for doc2 = %q, err = %v", record, err)
	}
	if storage.EntityCount() != 2 {
		t.Errorf("entity count = %d, want the two surviving articles", storage.EntityCount())
	}
}

// failingMergeStore rejects merges for one canonical id.
type failingMergeStore struct {
	*memory.Store
	badID string
}

func (s *failingMergeStore) MergeEntity(ctx context.Context, e common.Entity) (common.Entity, error) {
	if e.ID == s.badID {
		return common.Entity{}, fmt.Errorf("%w: store unavailable", common.ErrMerge)
	}
	return s.Store.MergeEntity(ctx, e)
}

func TestProcessBatchMergeFailureLeavesArticleUnstamped(t *testing.T) {
	inner := memory.NewStore()
	storage := &failingMergeStore{Store: inner, badID: "BAD CORP"}
	st := state.NewMemoryStore()
	seedArticles(t, inner, "doc1", "doc2")

	entities := &stubEntitySource{byItem: map[string][]common.Entity{
		"doc1": {entity("Bad Corp", common.EntityTypeOrganization, "Keeps failing.", "doc1")},
		"doc2": {entity("Acme Corp", common.EntityTypeOrganization, "Fine.", "doc2")},
	}}
	ingestor := NewIngestor(IngestorParams{
		Storage: storage,
		Graph:   &recordingGraph{},
		State:   st,
		Stage: extract.NewStage(extract.StageParams{
			Entities:   entities,
			Relations:  &stubRelationSource{},
			Claims:     &stubClaimSource{},
			MaxTries:   1,
			RetryDelay: time.Millisecond,
		}),
		Chunker: oneUnitPerArticle,
	})

	if err := ingestor.ProcessBatch(context.Background(), "batch1"); err != nil {
		t.Fatalf("process batch: %v", err)
	}

	// doc1 stays unstamped for a later retry, doc2 is unaffected
	doc1, _ := inner.Article("doc1")
	if doc1.BatchID != "" {
		t.Errorf("doc1 batch id = %q, want unstamped", doc1.BatchID)
	}
	doc2, _ := inner.Article("doc2")
	if doc2.BatchID != "batch1" {
		t.Errorf("doc2 batch id = %q, want batch1", doc2.BatchID)
	}

	record, err := st.Get(context.Background(), "news", "error:doc1")
	if err != nil || !strings.Contains(record, "BAD CORP") {
		t.Errorf("error record for doc1 = %q, err = %v", record, err)
	}

	// a later batch picks doc1 up again
	remaining, err := inner.UnprocessedArticles(context.Background(), 10)
	if err != nil {
		t.Fatalf("unprocessed: %v", err)
	}
	if len(remaining) != 1 || remaining[0].ItemID != "doc1" {
		t.Errorf("remaining = %v, want doc1 only", remaining)
	}
}

func TestProcessBatchIdempotentReingest(t *testing.T) {
	storage := memory.NewStore()
	st := state.NewMemoryStore()
	seedArticles(t, storage, "doc1")

	entities := &stubEntitySource{byItem: map[string][]common.Entity{
		"doc1": {entity("Acme Corp", common.EntityTypeOrganization, "Acme makes anvils.", "doc1")},
	}}
	ingestor := newTestIngestor(storage, &recordingGraph{}, st, entities, &stubRelationSource{})

	if err := ingestor.ProcessBatch(context.Background(), "batch1"); err != nil {
		t.Fatalf("first batch: %v", err)
	}
	first, err := storage.Entity(context.Background(), "ACME CORP")
	if err != nil || first == nil {
		t.Fatalf("entity lookup: %v, %v", first, err)
	}

	// simulate a replayed trigger: force the article back to unprocessed
	// and ingest the identical content again
	if err := storage.MarkProcessed(context.Background(), "doc1", ""); err != nil {
		t.Fatalf("reset batch id: %v", err)
	}
	if err := ingestor.ProcessBatch(context.Background(), "batch2"); err != nil {
		t.Fatalf("second batch: %v", err)
	}

	second, err := storage.Entity(context.Background(), "ACME CORP")
	if err != nil || second == nil {
		t.Fatalf("entity lookup: %v, %v", second, err)
	}
	if second.Description != first.Description {
		t.Errorf("description changed on re-ingest: %q -> %q", first.Description, second.Description)
	}
	if fmt.Sprint(second.SourceDocs) != fmt.Sprint(first.SourceDocs) {
		t.Errorf("source docs changed on re-ingest: %v -> %v", first.SourceDocs, second.SourceDocs)
	}
}
