package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/terra-graph/newsgraph/pkg/common"
	"github.com/terra-graph/newsgraph/pkg/store"
)

// Store is an in-memory store.Storage used by tests and local development.
// It applies the same merge rules as the postgres store.
type Store struct {
	mu            sync.Mutex
	articles      map[string]common.Article
	entities      map[string]common.Entity
	relationships map[string]common.Relationship
	claims        []common.Claim
	communities   []common.Community
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		articles:      map[string]common.Article{},
		entities:      map[string]common.Entity{},
		relationships: map[string]common.Relationship{},
	}
}

func (s *Store) InsertArticles(_ context.Context, articles []common.Article) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inserted := 0
	for _, a := range articles {
		if _, ok := s.articles[a.ItemID]; ok {
			continue
		}
		s.articles[a.ItemID] = a
		inserted++
	}
	return inserted, nil
}

func (s *Store) UnprocessedArticles(_ context.Context, limit int) ([]common.Article, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []common.Article
	for _, a := range s.articles {
		if a.BatchID == "" {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].PublishDate.Before(out[j].PublishDate)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) MarkProcessed(_ context.Context, itemID string, batchID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.articles[itemID]
	if !ok {
		return fmt.Errorf("article %s not found", itemID)
	}
	a.BatchID = batchID
	s.articles[itemID] = a
	return nil
}

func (s *Store) MergeEntity(_ context.Context, entity common.Entity) (common.Entity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var existing *common.Entity
	if e, ok := s.entities[entity.ID]; ok {
		existing = &e
	}
	merged := store.MergeEntityRecord(existing, entity)
	s.entities[merged.ID] = merged
	return merged, nil
}

func (s *Store) MergeRelationship(_ context.Context, rel common.Relationship) (common.Relationship, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var existing *common.Relationship
	if r, ok := s.relationships[rel.ID]; ok {
		existing = &r
	}
	merged := store.MergeRelationshipRecord(existing, rel)
	s.relationships[merged.ID] = merged
	return merged, nil
}

func (s *Store) InsertClaims(_ context.Context, claims []common.Claim) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.claims = append(s.claims, claims...)
	return nil
}

func (s *Store) Entity(_ context.Context, id string) (*common.Entity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.entities[id]; ok {
		return &e, nil
	}
	return nil, nil
}

func (s *Store) Relationship(_ context.Context, id string) (*common.Relationship, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r, ok := s.relationships[id]; ok {
		return &r, nil
	}
	return nil, nil
}

func (s *Store) Relationships(_ context.Context) ([]common.Relationship, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]common.Relationship, 0, len(s.relationships))
	for _, r := range s.relationships {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) ReplaceCommunities(_ context.Context, communities []common.Community) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.communities = append([]common.Community(nil), communities...)
	return nil
}

func (s *Store) Communities(_ context.Context) ([]common.Community, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]common.Community(nil), s.communities...), nil
}

func (s *Store) Community(_ context.Context, clusterID int) (*common.Community, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range s.communities {
		if c.ClusterID == clusterID {
			return &c, nil
		}
	}
	return nil, nil
}

func (s *Store) CommunityEntities(_ context.Context, clusterID int) ([]common.Entity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range s.communities {
		if c.ClusterID != clusterID {
			continue
		}
		out := make([]common.Entity, 0, len(c.Members))
		for _, id := range c.Members {
			if e, ok := s.entities[id]; ok {
				out = append(out, e)
			}
		}
		return out, nil
	}
	return nil, nil
}

// Claims returns every inserted claim. Test helper.
func (s *Store) Claims() []common.Claim {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]common.Claim(nil), s.claims...)
}

// Article returns the stored article by id. Test helper.
func (s *Store) Article(itemID string) (common.Article, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.articles[itemID]
	return a, ok
}

// EntityCount returns the number of stored entities. Test helper.
func (s *Store) EntityCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entities)
}

// RelationshipCount returns the number of stored relationships. Test helper.
func (s *Store) RelationshipCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.relationships)
}
