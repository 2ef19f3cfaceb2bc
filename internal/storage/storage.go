package storage

import (
	"context"

	"github.com/bcnelson/workspace-tree/internal/domain"
)

// Storage defines the interface for the storage layer.
// Implementations must be safe for concurrent use.
type Storage interface {
	// Close closes the storage connection.
	Close() error

	// Nodes
	CreateNode(ctx context.Context, node *domain.Entity) error
	GetNode(ctx context.Context, id string) (*domain.Entity, error)
	// ListChildren returns the children of parentID ordered by position.
	ListChildren(ctx context.Context, parentID string) ([]*domain.Entity, error)
	// ListLibraries returns the library roots of one REST type ordered by name.
	ListLibraries(ctx context.Context, resType string) ([]*domain.Entity, error)
	CountChildren(ctx context.Context, parentID string) (int, error)
	UpdateNode(ctx context.Context, node *domain.Entity) error
	DeleteNode(ctx context.Context, id string) error
	CountNodes(ctx context.Context) (int, error)

	// Transaction support
	BeginTx(ctx context.Context) (Transaction, error)
}

// Transaction represents a database transaction.
type Transaction interface {
	Storage
	Commit() error
	Rollback() error
}
