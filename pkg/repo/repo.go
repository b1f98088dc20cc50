// Package repo defines a generic repository over labelled graph nodes.
package repo

import (
	"context"
	"errors"
)

// ErrNotFound is returned when no node matches the requested id.
var ErrNotFound = errors.New("repo: not found")

// Repository is a generic CRUD interface.
type Repository[T any, ID comparable] interface {
	Get(ctx context.Context, id ID) (T, error)
	List(ctx context.Context, opts ListOpts) ([]T, error)
	Create(ctx context.Context, entity T) (T, error)
	Update(ctx context.Context, entity T) (T, error)
	Delete(ctx context.Context, id ID) error
	Count(ctx context.Context) (int64, error)
}

// ListOpts controls pagination for List.
type ListOpts struct {
	Offset int
	Limit  int
	// OrderBy is a node property name; empty keeps storage order.
	OrderBy string
}
