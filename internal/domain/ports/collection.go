// Package ports defines interfaces for storage, search and provider adapters.
package ports

import "context"

// CollectionManager handles the lifecycle of the alias vector collection.
type CollectionManager interface {
	// EnsureCollection creates the collection if it doesn't exist.
	EnsureCollection(ctx context.Context, vectorSize uint64) error

	// DeleteCollection removes the collection and all its data.
	DeleteCollection(ctx context.Context) error
}
