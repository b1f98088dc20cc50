package graph

import (
	"context"
	"fmt"

	"github.com/docgraph/docgraph/engine/domain"
)

// NodeCounts returns node counts grouped by label.
func (g *GraphStore) NodeCounts(ctx context.Context) (map[string]int64, error) {
	return g.countBy(ctx, `MATCH (n) RETURN labels(n)[0] AS type, count(*) AS count`)
}

// RelationshipCounts returns relationship counts grouped by type.
func (g *GraphStore) RelationshipCounts(ctx context.Context) (map[string]int64, error) {
	return g.countBy(ctx, `MATCH ()-[r]->() RETURN type(r) AS type, count(*) AS count`)
}

// Stats returns the node count of every schema entity type, zero included.
func (g *GraphStore) Stats(ctx context.Context) (map[domain.EntityType]int64, error) {
	counts, err := g.NodeCounts(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[domain.EntityType]int64, len(domain.OrderedEntityTypes))
	for _, t := range domain.OrderedEntityTypes {
		out[t] = counts[string(t)]
	}
	return out, nil
}

func (g *GraphStore) countBy(ctx context.Context, cypher string) (map[string]int64, error) {
	sess := g.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	res, err := sess.Run(ctx, cypher, nil)
	if err != nil {
		return nil, fmt.Errorf("graph: counts: %w", err)
	}
	counts := make(map[string]int64)
	for res.Next(ctx) {
		rec := res.Record()
		if t := recString(rec, "type"); t != "" {
			counts[t] = recInt(rec, "count")
		}
	}
	return counts, res.Err()
}

// Ping round-trips message through the database.
func (g *GraphStore) Ping(ctx context.Context, message string) (string, error) {
	sess := g.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	res, err := sess.Run(ctx, `RETURN $message AS message`, map[string]any{"message": message})
	if err != nil {
		return "", fmt.Errorf("graph: ping: %w", err)
	}
	if !res.Next(ctx) {
		if err := res.Err(); err != nil {
			return "", fmt.Errorf("graph: ping: %w", err)
		}
		return "", fmt.Errorf("graph: ping: no row returned")
	}
	return recString(res.Record(), "message"), nil
}

// VerifyConnectivity checks the driver when there is one, and otherwise
// falls back to a ping query.
func (g *GraphStore) VerifyConnectivity(ctx context.Context) error {
	if g.driver != nil {
		return g.driver.VerifyConnectivity(ctx)
	}
	_, err := g.Ping(ctx, "ping")
	return err
}

// PluginFunctions counts the APOC meta functions. Servers without APOC
// yield ErrPluginMissing.
func (g *GraphStore) PluginFunctions(ctx context.Context) (int64, error) {
	sess := g.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	res, err := sess.Run(ctx, `CALL apoc.help('meta') YIELD name RETURN count(name) AS functions`, nil)
	if err != nil {
		return 0, fmt.Errorf("graph: %w: %w", domain.ErrPluginMissing, err)
	}
	if !res.Next(ctx) {
		if err := res.Err(); err != nil {
			return 0, fmt.Errorf("graph: %w: %w", domain.ErrPluginMissing, err)
		}
		return 0, fmt.Errorf("graph: %w", domain.ErrPluginMissing)
	}
	n := recInt(res.Record(), "functions")
	if n == 0 {
		return 0, fmt.Errorf("graph: %w: no apoc functions registered", domain.ErrPluginMissing)
	}
	return n, nil
}
