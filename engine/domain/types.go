// Package domain defines the knowledge-graph schema, the document and chunk
// types flowing through ingestion, and the validation gate applied to LLM
// output before anything reaches the graph.
package domain

import (
	"fmt"
	"strings"
)

// EntityType is a node label in the knowledge graph.
type EntityType string

const (
	EntityConcept        EntityType = "Concept"
	EntityParameter      EntityType = "Parameter"
	EntityComponent      EntityType = "Component"
	EntityRecommendation EntityType = "Recommendation"
)

// EntityTypes describes every allowed entity type.
var EntityTypes = map[EntityType]string{
	EntityConcept:        `High-level technical ideas (e.g., "NUMA Optimization", "Memory Management")`,
	EntityParameter:      `Specific config settings (e.g., "sched.cpu.affinity", "numa.nodeAffinity")`,
	EntityComponent:      `Software/hardware pieces (e.g., "vSphere", "SAP HANA", "Guest OS")`,
	EntityRecommendation: "Best practice rules or guidelines",
}

// OrderedEntityTypes lists the entity types in presentation order.
var OrderedEntityTypes = []EntityType{EntityConcept, EntityParameter, EntityComponent, EntityRecommendation}

// RelationType is a relationship type in the knowledge graph.
type RelationType string

const (
	RelHasConcept         RelationType = "HAS_CONCEPT"
	RelDescribesParameter RelationType = "DESCRIBES_PARAMETER"
	RelInvolvesComponent  RelationType = "INVOLVES_COMPONENT"
	RelSetsParameter      RelationType = "SETS_PARAMETER"
	RelAffects            RelationType = "AFFECTS"
	RelForConcept         RelationType = "FOR_CONCEPT"
)

// RelationTypes describes every allowed relationship type.
var RelationTypes = map[RelationType]string{
	RelHasConcept:         "Document discusses concept",
	RelDescribesParameter: "Document describes parameter",
	RelInvolvesComponent:  "Concept involves component",
	RelSetsParameter:      "Recommendation sets parameter",
	RelAffects:            "Parameter affects component",
	RelForConcept:         "Recommendation for concept",
}

// ExtractedRelationTypes are the relationship types the extractor may emit
// between entities. The others link documents to entities.
var ExtractedRelationTypes = []RelationType{RelInvolvesComponent, RelSetsParameter, RelAffects, RelForConcept}

// DocumentLink returns the relationship type linking a Document node to an
// entity of type t.
func DocumentLink(t EntityType) RelationType {
	return RelationType("HAS_" + strings.ToUpper(string(t)))
}

// Entity is one extracted node.
type Entity struct {
	Type        EntityType `json:"type"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
}

// Relationship connects two entities by name.
type Relationship struct {
	From string       `json:"from"`
	To   string       `json:"to"`
	Type RelationType `json:"type"`
}

// Extraction is the structured result for one chunk.
type Extraction struct {
	Entities      []Entity       `json:"entities"`
	Relationships []Relationship `json:"relationships"`
	ChunkSummary  string         `json:"chunk_summary"`
}

// Empty reports whether nothing was extracted.
func (e Extraction) Empty() bool { return len(e.Entities) == 0 }

// Document is the text of one PDF page.
type Document struct {
	ID     string `json:"id"`
	Source string `json:"source"`
	Page   int    `json:"page"`
	Text   string `json:"text"`
}

// Chunk is a slice of a Document sized for the LLM.
type Chunk struct {
	ID     string `json:"id"`
	DocID  string `json:"doc_id"`
	Index  int    `json:"index"`
	Source string `json:"source"`
	Page   int    `json:"page"`
	Text   string `json:"text"`
}

// Triplet is one retrieved graph fact.
type Triplet struct {
	Subject   string `json:"subject"`
	Predicate string `json:"predicate"`
	Object    string `json:"object"`
}

func (t Triplet) String() string {
	return fmt.Sprintf("%s -[%s]-> %s", t.Subject, t.Predicate, t.Object)
}
