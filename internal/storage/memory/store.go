package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/bcnelson/workspace-tree/internal/domain"
	"github.com/bcnelson/workspace-tree/internal/storage"
)

// Store is an in-memory implementation of the storage interface for testing.
type Store struct {
	mu sync.RWMutex

	nodes map[string]*domain.Entity // key: id
}

// New creates a new in-memory store.
func New() *Store {
	return &Store{
		nodes: make(map[string]*domain.Entity),
	}
}

func (s *Store) Close() error { return nil }

func (s *Store) BeginTx(ctx context.Context) (storage.Transaction, error) {
	return &Tx{store: s}, nil
}

// Tx is a no-op transaction for in-memory store.
type Tx struct {
	store *Store
}

func (t *Tx) Commit() error   { return nil }
func (t *Tx) Rollback() error { return nil }
func (t *Tx) Close() error    { return nil }
func (t *Tx) BeginTx(ctx context.Context) (storage.Transaction, error) {
	return nil, domain.ErrInvalidInput
}

// Forward all Tx methods to the underlying store
func (t *Tx) CreateNode(ctx context.Context, node *domain.Entity) error {
	return t.store.CreateNode(ctx, node)
}
func (t *Tx) GetNode(ctx context.Context, id string) (*domain.Entity, error) {
	return t.store.GetNode(ctx, id)
}
func (t *Tx) ListChildren(ctx context.Context, parentID string) ([]*domain.Entity, error) {
	return t.store.ListChildren(ctx, parentID)
}
func (t *Tx) ListLibraries(ctx context.Context, resType string) ([]*domain.Entity, error) {
	return t.store.ListLibraries(ctx, resType)
}
func (t *Tx) CountChildren(ctx context.Context, parentID string) (int, error) {
	return t.store.CountChildren(ctx, parentID)
}
func (t *Tx) UpdateNode(ctx context.Context, node *domain.Entity) error {
	return t.store.UpdateNode(ctx, node)
}
func (t *Tx) DeleteNode(ctx context.Context, id string) error {
	return t.store.DeleteNode(ctx, id)
}
func (t *Tx) CountNodes(ctx context.Context) (int, error) {
	return t.store.CountNodes(ctx)
}

// Entities are copied in and out so callers never alias stored rows.
func clone(e *domain.Entity) *domain.Entity {
	c := *e
	if e.ParentID != nil {
		p := *e.ParentID
		c.ParentID = &p
	}
	return &c
}

func (s *Store) CreateNode(ctx context.Context, node *domain.Entity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.nodes[node.ID]; exists {
		return domain.ErrAlreadyExists
	}
	s.nodes[node.ID] = clone(node)
	return nil
}

func (s *Store) GetNode(ctx context.Context, id string) (*domain.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	node, exists := s.nodes[id]
	if !exists {
		return nil, domain.ErrNotFound
	}
	return clone(node), nil
}

func (s *Store) ListChildren(ctx context.Context, parentID string) ([]*domain.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var children []*domain.Entity
	for _, node := range s.nodes {
		if node.ParentID != nil && *node.ParentID == parentID {
			children = append(children, clone(node))
		}
	}
	sort.Slice(children, func(i, j int) bool {
		if children[i].Position != children[j].Position {
			return children[i].Position < children[j].Position
		}
		return children[i].ID < children[j].ID
	})
	return children, nil
}

func (s *Store) ListLibraries(ctx context.Context, resType string) ([]*domain.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var libraries []*domain.Entity
	for _, node := range s.nodes {
		if node.ParentID == nil && node.ResType == resType {
			libraries = append(libraries, clone(node))
		}
	}
	sort.Slice(libraries, func(i, j int) bool {
		return libraries[i].Name < libraries[j].Name
	})
	return libraries, nil
}

func (s *Store) CountChildren(ctx context.Context, parentID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, node := range s.nodes {
		if node.ParentID != nil && *node.ParentID == parentID {
			count++
		}
	}
	return count, nil
}

func (s *Store) UpdateNode(ctx context.Context, node *domain.Entity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.nodes[node.ID]; !exists {
		return domain.ErrNotFound
	}
	s.nodes[node.ID] = clone(node)
	return nil
}

func (s *Store) DeleteNode(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.nodes[id]; !exists {
		return domain.ErrNotFound
	}
	delete(s.nodes, id)
	return nil
}

func (s *Store) CountNodes(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.nodes), nil
}
