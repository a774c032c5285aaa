package common

import (
	"fmt"
	"strings"
	"time"
)

// Article is a single news item as delivered by the news API. Content is the
// full plain-text body used for extraction. BatchID is empty until the
// article has been merged into the knowledge graph.
type Article struct {
	ItemID        string    `json:"item_id"`
	Title         string    `json:"title"`
	Content       string    `json:"content"`
	Summary       string    `json:"summary"`
	URL           string    `json:"url"`
	Image         string    `json:"image"`
	Video         string    `json:"video"`
	PublishDate   time.Time `json:"publish_date"`
	Author        string    `json:"author"`
	Authors       []string  `json:"authors"`
	Category      string    `json:"category"`
	Language      string    `json:"language"`
	SourceCountry string    `json:"source_country"`
	Sentiment     float64   `json:"sentiment"`
	BatchID       string    `json:"batch_id"`
}

// Entity is a deduplicated node of the knowledge graph. ID is the canonical
// id derived from the name, see EntityID.
type Entity struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Type        EntityType        `json:"type"`
	Description string            `json:"description"`
	Attributes  map[string]string `json:"attributes"`
	SourceDocs  []string          `json:"source_docs"`
}

// Relationship is a deduplicated directed edge between two entities,
// referenced by their canonical ids.
type Relationship struct {
	ID           string   `json:"id"`
	SourceEntity string   `json:"source_entity"`
	TargetEntity string   `json:"target_entity"`
	RelationType string   `json:"relation_type"`
	Description  string   `json:"description"`
	Strength     float64  `json:"strength"`
	SourceDocs   []string `json:"source_docs"`
}

// Claim is an append-only statement attributed to an entity. Claims are never
// deduplicated; every extraction inserts new rows.
type Claim struct {
	Subject     string      `json:"subject"`
	Object      string      `json:"object"`
	Type        ClaimType   `json:"type"`
	Status      ClaimStatus `json:"status"`
	Description string      `json:"description"`
	Period      string      `json:"period"`
	Quotes      []string    `json:"quotes"`
	ItemID      string      `json:"item_id"`
}

// Community is a cluster of entities detected from the relationship graph,
// together with its generated report. ParentCluster is -1 for top-level
// communities.
type Community struct {
	ClusterID         int      `json:"cluster_id"`
	ParentCluster     int      `json:"parent_cluster"`
	Level             int      `json:"level"`
	Members           []string `json:"members"`
	Document          string   `json:"document"`
	Title             string   `json:"title"`
	Summary           string   `json:"summary"`
	Rating            float64  `json:"rating"`
	RatingExplanation string   `json:"rating_explanation"`
}

// NormalizeName upper-cases a name and replaces double quotes with spaces so
// the result is safe to use as a stable identifier.
func NormalizeName(name string) string {
	name = strings.ToUpper(name)
	name = strings.ReplaceAll(name, `"`, " ")
	return strings.TrimSpace(name)
}

// EntityID derives the canonical entity id from an entity name. The same
// real-world entity extracted from different documents maps to the same id.
func EntityID(name string) string {
	return NormalizeName(name)
}

// RelationshipID derives the canonical relationship id from the canonical
// source and target ids and the relation type.
func RelationshipID(sourceID, relationType, targetID string) string {
	return fmt.Sprintf("%s_%s_%s", sourceID, NormalizeName(relationType), targetID)
}
