package graph

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"

	"github.com/docgraph/docgraph/pkg/repo"
)

// DocumentNode is the graph node written for each ingested chunk.
type DocumentNode struct {
	ChunkID string `json:"chunk_id"`
	Summary string `json:"summary"`
	Source  string `json:"source"`
	Page    int64  `json:"page"`
}

func newDocumentRepo(o SessionOpener) *repo.Neo4jRepo[DocumentNode, string] {
	return repo.NewNeo4jRepo[DocumentNode, string](
		nil,
		"Document",
		documentToMap,
		documentFromRecord,
		repo.WithIDKey[DocumentNode, string]("chunk_id"),
		repo.WithSessions[DocumentNode, string](func(ctx context.Context) repo.Session {
			return o.OpenSession(ctx)
		}),
	)
}

func documentToMap(d DocumentNode) map[string]any {
	return map[string]any{
		"chunk_id": d.ChunkID,
		"summary":  d.Summary,
		"source":   d.Source,
		"page":     d.Page,
	}
}

func documentFromRecord(rec *neo4j.Record) (DocumentNode, error) {
	raw, ok := rec.Get("n")
	if !ok {
		return DocumentNode{}, fmt.Errorf("graph: record has no node")
	}
	var props map[string]any
	switch v := raw.(type) {
	case dbtype.Node:
		props = v.Props
	case map[string]any:
		props = v
	default:
		return DocumentNode{}, fmt.Errorf("graph: unexpected node type %T", raw)
	}
	d := DocumentNode{
		ChunkID: strProp(props, "chunk_id"),
		Summary: strProp(props, "summary"),
		Source:  strProp(props, "source"),
	}
	if p, ok := props["page"].(int64); ok {
		d.Page = p
	}
	return d, nil
}

func strProp(props map[string]any, key string) string {
	if v, ok := props[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
