// Package graph stores extracted entities in Neo4j and retrieves the
// neighborhood facts used as answer context.
package graph

import (
	"context"
	"fmt"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/docgraph/docgraph/engine/domain"
	"github.com/docgraph/docgraph/pkg/repo"
)

// DefaultRetrieveLimit bounds Retrieve when no limit is given.
const DefaultRetrieveLimit = 30

// GraphStore provides knowledge-graph operations over a Neo4j database.
type GraphStore struct {
	driver    neo4j.DriverWithContext
	opener    SessionOpener
	documents *repo.Neo4jRepo[DocumentNode, string]
}

// Open creates a driver with basic auth without contacting the server.
func Open(uri, username, password, database string) (*GraphStore, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, fmt.Errorf("graph: driver: %w", err)
	}
	return New(driver, database), nil
}

// Connect opens a driver and verifies connectivity.
func Connect(ctx context.Context, uri, username, password, database string) (*GraphStore, error) {
	g, err := Open(uri, username, password, database)
	if err != nil {
		return nil, err
	}
	if err := g.driver.VerifyConnectivity(ctx); err != nil {
		g.Close(ctx)
		return nil, fmt.Errorf("graph: verify connectivity: %w", err)
	}
	return g, nil
}

// New creates a GraphStore on an existing driver. An empty database selects
// the server default.
func New(driver neo4j.DriverWithContext, database string) *GraphStore {
	g := NewWithOpener(driverOpener{driver: driver, database: database})
	g.driver = driver
	return g
}

// NewWithOpener creates a GraphStore whose sessions come from o.
func NewWithOpener(o SessionOpener) *GraphStore {
	g := &GraphStore{opener: o}
	g.documents = newDocumentRepo(o)
	return g
}

// Close releases the driver, if any.
func (g *GraphStore) Close(ctx context.Context) error {
	if g.driver == nil {
		return nil
	}
	return g.driver.Close(ctx)
}

// Documents exposes the Document node repository.
func (g *GraphStore) Documents() *repo.Neo4jRepo[DocumentNode, string] { return g.documents }

// Reset deletes every node and relationship.
func (g *GraphStore) Reset(ctx context.Context) error {
	sess := g.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	if _, err := sess.Run(ctx, `MATCH (n) DETACH DELETE n`, nil); err != nil {
		return fmt.Errorf("graph: reset: %w", err)
	}
	return nil
}

// SaveExtraction writes the chunk's Document node, its entities and their
// relationships in one write transaction. The extraction must already be
// sanitized; unknown types are rejected before anything is written.
func (g *GraphStore) SaveExtraction(ctx context.Context, chunk domain.Chunk, x domain.Extraction) error {
	for _, e := range x.Entities {
		if err := domain.ValidateEntity(e); err != nil {
			return err
		}
	}
	for _, r := range x.Relationships {
		if err := domain.ValidateRelationship(r); err != nil {
			return err
		}
	}

	sess := g.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	_, err := sess.ExecuteWrite(ctx, func(tx CypherRunner) (any, error) {
		if _, err := tx.Run(ctx,
			`MERGE (d:Document {chunk_id: $chunk_id})
			 SET d.summary = $summary, d.source = $source, d.page = $page`,
			map[string]any{
				"chunk_id": chunk.ID,
				"summary":  x.ChunkSummary,
				"source":   chunk.Source,
				"page":     int64(chunk.Page),
			}); err != nil {
			return nil, fmt.Errorf("document node: %w", err)
		}

		for _, e := range x.Entities {
			cypher := fmt.Sprintf(
				`MERGE (e:%s {name: $name})
				 SET e.description = CASE WHEN $description = '' THEN e.description ELSE $description END
				 WITH e
				 MATCH (d:Document {chunk_id: $chunk_id})
				 MERGE (d)-[:%s]->(e)`,
				e.Type, domain.DocumentLink(e.Type),
			)
			if _, err := tx.Run(ctx, cypher, map[string]any{
				"name":        e.Name,
				"description": e.Description,
				"chunk_id":    chunk.ID,
			}); err != nil {
				return nil, fmt.Errorf("entity %s %q: %w", e.Type, e.Name, err)
			}
		}

		for _, r := range x.Relationships {
			cypher := fmt.Sprintf(
				`MATCH (a) WHERE a.name = $from AND any(l IN labels(a) WHERE l IN $labels)
				 MATCH (b) WHERE b.name = $to AND any(l IN labels(b) WHERE l IN $labels)
				 MERGE (a)-[:%s]->(b)`,
				r.Type,
			)
			if _, err := tx.Run(ctx, cypher, map[string]any{
				"from":   r.From,
				"to":     r.To,
				"labels": schemaLabels(),
			}); err != nil {
				return nil, fmt.Errorf("relationship %s: %w", r.Type, err)
			}
		}
		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("graph: save %s: %w", chunk.ID, err)
	}
	return nil
}

// Retrieve returns one-hop facts around entities whose name contains any of
// the keywords, case-insensitively.
func (g *GraphStore) Retrieve(ctx context.Context, keywords []string, limit int) ([]domain.Triplet, error) {
	kws := make([]string, 0, len(keywords))
	for _, k := range keywords {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
			kws = append(kws, k)
		}
	}
	if len(kws) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = DefaultRetrieveLimit
	}

	sess := g.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	cypher := `MATCH (e)-[r]-(n)
		WHERE any(l IN labels(e) WHERE l IN $labels)
		  AND any(k IN $keywords WHERE toLower(e.name) CONTAINS k)
		  AND NOT n:Document
		WITH DISTINCT startNode(r) AS s, r, endNode(r) AS o
		RETURN s.name AS subject, type(r) AS predicate, o.name AS object
		LIMIT $limit`
	res, err := sess.Run(ctx, cypher, map[string]any{
		"labels":   schemaLabels(),
		"keywords": kws,
		"limit":    int64(limit),
	})
	if err != nil {
		return nil, fmt.Errorf("graph: retrieve: %w", err)
	}

	var out []domain.Triplet
	for res.Next(ctx) {
		rec := res.Record()
		out = append(out, domain.Triplet{
			Subject:   recString(rec, "subject"),
			Predicate: recString(rec, "predicate"),
			Object:    recString(rec, "object"),
		})
	}
	if err := res.Err(); err != nil {
		return nil, fmt.Errorf("graph: retrieve: %w", err)
	}
	return out, nil
}

func schemaLabels() []string {
	labels := make([]string, len(domain.OrderedEntityTypes))
	for i, t := range domain.OrderedEntityTypes {
		labels[i] = string(t)
	}
	return labels
}

func recString(rec *neo4j.Record, key string) string {
	v, _ := rec.Get(key)
	s, _ := v.(string)
	return s
}

func recInt(rec *neo4j.Record, key string) int64 {
	v, _ := rec.Get(key)
	n, _ := v.(int64)
	return n
}
