package neo4j

import (
	"context"
	"fmt"
	"strings"

	"github.com/terra-graph/newsgraph/pkg/common"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Client writes the denormalized knowledge graph to neo4j. Nodes are
// labeled with their entity type and edges with their relation type, both
// batch-upserted via UNWIND so ingest touches the server once per label.
type Client struct {
	driver   neo4j.DriverWithContext
	database string
}

// ClientParams configures the neo4j connection.
type ClientParams struct {
	URI      string
	Username string
	Password string
	Database string
}

// NewClient connects to neo4j and verifies connectivity.
func NewClient(ctx context.Context, params ClientParams) (*Client, error) {
	driver, err := neo4j.NewDriverWithContext(
		params.URI,
		neo4j.BasicAuth(params.Username, params.Password, ""),
	)
	if err != nil {
		return nil, fmt.Errorf("create neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		return nil, fmt.Errorf("verify neo4j connectivity: %w", err)
	}
	return &Client{
		driver:   driver,
		database: params.Database,
	}, nil
}

// Close releases the underlying driver.
func (c *Client) Close(ctx context.Context) error {
	return c.driver.Close(ctx)
}

// sanitizeLabel maps a type name onto a safe cypher label. Labels cannot be
// parameterized, so the value is constrained to [A-Z0-9_] before being
// spliced into the query text.
func sanitizeLabel(raw string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(strings.TrimSpace(raw)) {
		switch {
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		case r == ' ', r == '-':
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		return "RELATED_TO"
	}
	return b.String()
}

// UpsertNodes merges entity nodes by canonical id, one UNWIND batch per
// entity type.
func (c *Client) UpsertNodes(ctx context.Context, entities []common.Entity) error {
	if len(entities) == 0 {
		return nil
	}

	byType := make(map[common.EntityType][]map[string]any)
	for _, e := range entities {
		props := map[string]any{
			"id":          e.ID,
			"name":        e.Name,
			"description": e.Description,
			"source_docs": e.SourceDocs,
		}
		for k, v := range e.Attributes {
			props["attr_"+k] = v
		}
		byType[e.Type] = append(byType[e.Type], props)
	}

	session := c.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: c.database})
	defer session.Close(ctx)

	for entityType, batch := range byType {
		query := fmt.Sprintf(`
UNWIND $nodes AS n
MERGE (e:%s {id: n.id})
SET e += n`, sanitizeLabel(string(entityType)))

		_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
			return tx.Run(ctx, query, map[string]any{"nodes": batch})
		})
		if err != nil {
			return fmt.Errorf("upsert %d %s nodes: %w", len(batch), entityType, err)
		}
	}
	return nil
}

// UpsertEdges merges relationship edges by canonical id, one UNWIND batch
// per relation type. Both endpoints are merged as bare nodes first so an
// edge never fails on a missing endpoint.
func (c *Client) UpsertEdges(ctx context.Context, relationships []common.Relationship) error {
	if len(relationships) == 0 {
		return nil
	}

	byType := make(map[string][]map[string]any)
	for _, r := range relationships {
		byType[sanitizeLabel(r.RelationType)] = append(byType[sanitizeLabel(r.RelationType)], map[string]any{
			"id":          r.ID,
			"source":      r.SourceEntity,
			"target":      r.TargetEntity,
			"description": r.Description,
			"strength":    r.Strength,
			"source_docs": r.SourceDocs,
		})
	}

	session := c.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: c.database})
	defer session.Close(ctx)

	for relationType, batch := range byType {
		query := fmt.Sprintf(`
UNWIND $edges AS r
MERGE (s {id: r.source})
MERGE (t {id: r.target})
MERGE (s)-[rel:%s {id: r.id}]->(t)
SET rel.description = r.description,
    rel.strength = r.strength,
    rel.source_docs = r.source_docs`, relationType)

		_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
			return tx.Run(ctx, query, map[string]any{"edges": batch})
		})
		if err != nil {
			return fmt.Errorf("upsert %d %s edges: %w", len(batch), relationType, err)
		}
	}
	return nil
}
