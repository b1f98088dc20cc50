package repo

import (
	"context"
	"fmt"
	"regexp"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Result is the subset of a neo4j result the repository reads.
type Result interface {
	Next(ctx context.Context) bool
	Record() *neo4j.Record
	Err() error
}

// Session is the subset of a neo4j session the repository needs.
type Session interface {
	Run(ctx context.Context, cypher string, params map[string]any) (Result, error)
	Close(ctx context.Context) error
}

// Neo4jRepo stores values of T as nodes with a single label.
type Neo4jRepo[T any, ID comparable] struct {
	label      string
	idKey      string
	toMap      func(T) map[string]any
	fromRecord func(*neo4j.Record) (T, error)
	newSession func(ctx context.Context) Session
}

// Neo4jOption configures a Neo4jRepo.
type Neo4jOption[T any, ID comparable] func(*Neo4jRepo[T, ID])

// WithIDKey sets the property name used as the ID (default "id").
func WithIDKey[T any, ID comparable](key string) Neo4jOption[T, ID] {
	return func(r *Neo4jRepo[T, ID]) { r.idKey = key }
}

// WithSessions replaces the session factory, e.g. to share a store's
// database selection or to inject fakes.
func WithSessions[T any, ID comparable](f func(ctx context.Context) Session) Neo4jOption[T, ID] {
	return func(r *Neo4jRepo[T, ID]) { r.newSession = f }
}

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// NewNeo4jRepo creates a repository for nodes labelled label. The driver may
// be nil when WithSessions is given. It panics on a label or id key that is
// not a plain identifier, since both are interpolated into Cypher.
func NewNeo4jRepo[T any, ID comparable](
	driver neo4j.DriverWithContext,
	label string,
	toMap func(T) map[string]any,
	fromRecord func(*neo4j.Record) (T, error),
	opts ...Neo4jOption[T, ID],
) *Neo4jRepo[T, ID] {
	r := &Neo4jRepo[T, ID]{
		label:      label,
		idKey:      "id",
		toMap:      toMap,
		fromRecord: fromRecord,
	}
	for _, o := range opts {
		o(r)
	}
	if !identifier.MatchString(r.label) || !identifier.MatchString(r.idKey) {
		panic(fmt.Sprintf("repo: invalid label %q or id key %q", r.label, r.idKey))
	}
	if r.newSession == nil {
		r.newSession = func(ctx context.Context) Session {
			return &driverSession{sess: driver.NewSession(ctx, neo4j.SessionConfig{})}
		}
	}
	return r
}

var _ Repository[any, string] = (*Neo4jRepo[any, string])(nil)

type driverSession struct {
	sess neo4j.SessionWithContext
}

func (d *driverSession) Run(ctx context.Context, cypher string, params map[string]any) (Result, error) {
	return d.sess.Run(ctx, cypher, params)
}

func (d *driverSession) Close(ctx context.Context) error { return d.sess.Close(ctx) }

// Label returns the node label.
func (r *Neo4jRepo[T, ID]) Label() string { return r.label }

func (r *Neo4jRepo[T, ID]) Get(ctx context.Context, id ID) (T, error) {
	var zero T
	sess := r.newSession(ctx)
	defer sess.Close(ctx)

	cypher := fmt.Sprintf("MATCH (n:%s {%s: $id}) RETURN n", r.label, r.idKey)
	res, err := sess.Run(ctx, cypher, map[string]any{"id": id})
	if err != nil {
		return zero, err
	}
	if !res.Next(ctx) {
		if err := res.Err(); err != nil {
			return zero, err
		}
		return zero, fmt.Errorf("%s %v: %w", r.label, id, ErrNotFound)
	}
	return r.fromRecord(res.Record())
}

func (r *Neo4jRepo[T, ID]) List(ctx context.Context, opts ListOpts) ([]T, error) {
	sess := r.newSession(ctx)
	defer sess.Close(ctx)

	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}
	order := ""
	if opts.OrderBy != "" {
		if !identifier.MatchString(opts.OrderBy) {
			return nil, fmt.Errorf("repo: invalid order property %q", opts.OrderBy)
		}
		order = " ORDER BY n." + opts.OrderBy
	}

	cypher := fmt.Sprintf("MATCH (n:%s) RETURN n%s SKIP $offset LIMIT $limit", r.label, order)
	res, err := sess.Run(ctx, cypher, map[string]any{"offset": int64(opts.Offset), "limit": int64(limit)})
	if err != nil {
		return nil, err
	}

	var items []T
	for res.Next(ctx) {
		item, err := r.fromRecord(res.Record())
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, res.Err()
}

func (r *Neo4jRepo[T, ID]) Create(ctx context.Context, entity T) (T, error) {
	var zero T
	sess := r.newSession(ctx)
	defer sess.Close(ctx)

	cypher := fmt.Sprintf("CREATE (n:%s $props) RETURN n", r.label)
	res, err := sess.Run(ctx, cypher, map[string]any{"props": r.toMap(entity)})
	if err != nil {
		return zero, err
	}
	if !res.Next(ctx) {
		return zero, fmt.Errorf("repo: create %s returned no row", r.label)
	}
	return r.fromRecord(res.Record())
}

func (r *Neo4jRepo[T, ID]) Update(ctx context.Context, entity T) (T, error) {
	var zero T
	sess := r.newSession(ctx)
	defer sess.Close(ctx)

	props := r.toMap(entity)
	cypher := fmt.Sprintf("MATCH (n:%s {%s: $id}) SET n += $props RETURN n", r.label, r.idKey)
	res, err := sess.Run(ctx, cypher, map[string]any{"id": props[r.idKey], "props": props})
	if err != nil {
		return zero, err
	}
	if !res.Next(ctx) {
		return zero, fmt.Errorf("%s %v: %w", r.label, props[r.idKey], ErrNotFound)
	}
	return r.fromRecord(res.Record())
}

// Delete removes the node and its relationships.
func (r *Neo4jRepo[T, ID]) Delete(ctx context.Context, id ID) error {
	sess := r.newSession(ctx)
	defer sess.Close(ctx)

	cypher := fmt.Sprintf("MATCH (n:%s {%s: $id}) DETACH DELETE n", r.label, r.idKey)
	_, err := sess.Run(ctx, cypher, map[string]any{"id": id})
	return err
}

// Count returns the number of nodes with the label.
func (r *Neo4jRepo[T, ID]) Count(ctx context.Context) (int64, error) {
	sess := r.newSession(ctx)
	defer sess.Close(ctx)

	res, err := sess.Run(ctx, fmt.Sprintf("MATCH (n:%s) RETURN count(n) AS count", r.label), nil)
	if err != nil {
		return 0, err
	}
	if !res.Next(ctx) {
		return 0, res.Err()
	}
	v, _ := res.Record().Get("count")
	n, _ := v.(int64)
	return n, nil
}
