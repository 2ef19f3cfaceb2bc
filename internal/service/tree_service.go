package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/bcnelson/workspace-tree/internal/domain"
	"github.com/bcnelson/workspace-tree/internal/event"
	"github.com/bcnelson/workspace-tree/internal/storage"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// copyNameSuffix is appended to a copied node whose name collides with a
// sibling under the target.
const copyNameSuffix = "-Copy"

// TreeService implements the workspace browser endpoints on top of storage.
// Every mutation runs in one transaction so a rejected batch changes nothing.
// Committed mutations are announced on the bus as event.ContentChanged.
type TreeService struct {
	store  storage.Storage
	table  domain.TypeTable
	bus    *event.Bus
	logger zerolog.Logger
}

// NewTreeService creates a new TreeService. bus may be nil.
func NewTreeService(store storage.Storage, table domain.TypeTable, bus *event.Bus, logger zerolog.Logger) *TreeService {
	return &TreeService{
		store:  store,
		table:  table,
		bus:    bus,
		logger: logger.With().Str("component", "tree-service").Logger(),
	}
}

func (s *TreeService) announce(workspace string, op domain.ChangeOp, parents map[string]bool, nodes []string) {
	// Equivalent of slices.Sorted(maps.Keys(parents)) for Go 1.21.
	var parentKeys []string
	for k := range parents {
		parentKeys = append(parentKeys, k)
	}
	slices.Sort(parentKeys)
	s.bus.Publish(event.Event{Type: event.ContentChanged, Data: domain.ChangeNotice{
		Workspace: workspace,
		Op:        op,
		Parents:   parentKeys,
		Nodes:     nodes,
		At:        time.Now(),
	}})
}

// Table returns the type table the service enforces.
func (s *TreeService) Table() domain.TypeTable {
	return s.table
}

func (s *TreeService) withTx(ctx context.Context, fn func(tx storage.Transaction) error) error {
	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.logger.Error().Err(rbErr).Msg("rollback failed")
		}
		return err
	}
	return tx.Commit()
}

// Libraries lists the library roots of a workspace.
func (s *TreeService) Libraries(ctx context.Context, workspace string) ([]domain.NodeDescriptor, error) {
	libs, err := s.store.ListLibraries(ctx, domain.LibraryResType(workspace))
	if err != nil {
		return nil, err
	}
	return s.describe(ctx, s.store, libs)
}

// Content lists the children of the node addressed by workspace, semiType
// and id.
func (s *TreeService) Content(ctx context.Context, workspace, semiType, id string) ([]domain.NodeDescriptor, error) {
	node, err := s.resolve(ctx, s.store, workspace, semiType, id)
	if err != nil {
		return nil, err
	}
	if !s.table.CanContainNodes(node.DomType) {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotContainer, node.DomType)
	}
	children, err := s.store.ListChildren(ctx, node.ID)
	if err != nil {
		return nil, err
	}
	return s.describe(ctx, s.store, children)
}

// CreateNode appends a new node under parentID, or creates a library when
// parentID is empty.
func (s *TreeService) CreateNode(ctx context.Context, parentID string, e *domain.Entity) (*domain.Entity, error) {
	var ws string
	err := s.withTx(ctx, func(tx storage.Transaction) error {
		now := time.Now()
		if e.ID == "" {
			e.ID = uuid.New().String()
		}
		e.CreatedAt, e.UpdatedAt = now, now
		if parentID == "" {
			if !s.table.IsRoot(e.DomType) {
				return fmt.Errorf("%w: %s cannot be a library", domain.ErrInvalidInput, e.DomType)
			}
			if _, ok := domain.WorkspaceFromLibraryResType(e.ResType); !ok {
				return fmt.Errorf("%w: library resType %q", domain.ErrInvalidInput, e.ResType)
			}
			e.ParentID = nil
			e.LibraryID = e.ID
			ws, _ = domain.WorkspaceFromLibraryResType(e.ResType)
			return tx.CreateNode(ctx, e)
		}
		parent, err := tx.GetNode(ctx, parentID)
		if err != nil {
			return err
		}
		if !s.table.Allows(parent.DomType, e.DomType) {
			return fmt.Errorf("%w: %s under %s", domain.ErrNotAccepted, e.DomType, parent.DomType)
		}
		count, err := tx.CountChildren(ctx, parent.ID)
		if err != nil {
			return err
		}
		if ws, err = s.workspaceOf(ctx, tx, parent); err != nil {
			return err
		}
		e.ParentID = &parent.ID
		e.LibraryID = parent.LibraryID
		e.Position = count
		return tx.CreateNode(ctx, e)
	})
	if err != nil {
		return nil, err
	}
	s.announce(ws, domain.ChangeCreate, map[string]bool{parentID: true}, []string{e.ID})
	return e, nil
}

// Copy deep-copies nodeIDs under the addressed target. suffix is the path
// tail that selected the endpoint and must match the target's copy rule.
func (s *TreeService) Copy(ctx context.Context, workspace, semiType, id, suffix string, nodeIDs []string) ([]domain.NodeDescriptor, error) {
	var copies []*domain.Entity
	err := s.withTx(ctx, func(tx storage.Transaction) error {
		target, err := s.resolve(ctx, tx, workspace, semiType, id)
		if err != nil {
			return err
		}
		rule := s.table.Rule(target.DomType)
		if rule.CopySuffix == "" || rule.CopySuffix != suffix {
			return &domain.UnsupportedOperationError{Op: "copy", DomType: target.DomType}
		}

		siblings, err := tx.ListChildren(ctx, target.ID)
		if err != nil {
			return err
		}
		names := make(map[string]bool, len(siblings))
		for _, sib := range siblings {
			names[sib.Name] = true
		}
		ancestors, err := s.ancestorIDs(ctx, tx, target)
		if err != nil {
			return err
		}

		sources := make([]*domain.Entity, 0, len(nodeIDs))
		for _, nodeID := range nodeIDs {
			src, err := tx.GetNode(ctx, nodeID)
			if err != nil {
				return err
			}
			if err := s.checkContent(ctx, tx, target, src); err != nil {
				return err
			}
			if slices.Contains(ancestors, src.ID) {
				return fmt.Errorf("%w: %s cannot be copied into itself", domain.ErrNotAccepted, src.ID)
			}
			sources = append(sources, src)
		}

		position := len(siblings)
		for _, src := range sources {
			name := src.Name
			for names[name] {
				name += copyNameSuffix
			}
			names[name] = true

			c, err := s.copySubtree(ctx, tx, src, target, position, name)
			if err != nil {
				return err
			}
			copies = append(copies, c)
			position++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().Str("target", id).Int("count", len(copies)).Msg("copied nodes")
	ids := make([]string, len(copies))
	for i, c := range copies {
		ids[i] = c.ID
	}
	s.announce(workspace, domain.ChangeCopy, map[string]bool{id: true}, ids)
	return s.describe(ctx, s.store, copies)
}

// copySubtree clones src and its descendants under parent. Copies start out
// unsynchronized.
func (s *TreeService) copySubtree(ctx context.Context, tx storage.Transaction, src, parent *domain.Entity, position int, name string) (*domain.Entity, error) {
	now := time.Now()
	c := *src
	c.ID = uuid.New().String()
	c.ParentID = &parent.ID
	c.LibraryID = parent.LibraryID
	c.Name = name
	c.Position = position
	c.Synchronized = false
	c.CreatedAt, c.UpdatedAt = now, now
	if err := tx.CreateNode(ctx, &c); err != nil {
		return nil, err
	}

	children, err := tx.ListChildren(ctx, src.ID)
	if err != nil {
		return nil, err
	}
	for _, child := range children {
		if _, err := s.copySubtree(ctx, tx, child, &c, child.Position, child.Name); err != nil {
			return nil, err
		}
	}
	return &c, nil
}

// Move reparents nodeIDs under the addressed target, inserting them at
// position in the order given. Position -1, or one past the end, appends.
// suffix must match the target's move rule.
func (s *TreeService) Move(ctx context.Context, workspace, semiType, id, suffix string, nodeIDs []string, position int) (*domain.MoveResult, error) {
	result := &domain.MoveResult{Moved: []string{}}
	changed := map[string]bool{id: true}
	err := s.withTx(ctx, func(tx storage.Transaction) error {
		target, err := s.resolve(ctx, tx, workspace, semiType, id)
		if err != nil {
			return err
		}
		if rule := s.table.Rule(target.DomType); rule.MoveSuffix == "" || rule.MoveSuffix != suffix {
			return &domain.UnsupportedOperationError{Op: "move", DomType: target.DomType}
		}

		ancestors, err := s.ancestorIDs(ctx, tx, target)
		if err != nil {
			return err
		}

		moving := make([]*domain.Entity, 0, len(nodeIDs))
		for _, nodeID := range nodeIDs {
			n, err := tx.GetNode(ctx, nodeID)
			if err != nil {
				return err
			}
			if n.IsLibrary() {
				return domain.ErrRootMove
			}
			if err := s.checkContent(ctx, tx, target, n); err != nil {
				return err
			}
			if slices.Contains(ancestors, n.ID) {
				return fmt.Errorf("%w: %s would contain itself", domain.ErrNotAccepted, n.ID)
			}
			moving = append(moving, n)
		}

		movingIDs := make(map[string]bool, len(moving))
		formerParents := make(map[string]bool)
		for _, n := range moving {
			movingIDs[n.ID] = true
			if *n.ParentID != target.ID {
				formerParents[*n.ParentID] = true
				changed[*n.ParentID] = true
			}
		}

		for parentID := range formerParents {
			siblings, err := tx.ListChildren(ctx, parentID)
			if err != nil {
				return err
			}
			siblings = slices.DeleteFunc(siblings, func(e *domain.Entity) bool { return movingIDs[e.ID] })
			if err := renumber(ctx, tx, siblings); err != nil {
				return err
			}
		}

		siblings, err := tx.ListChildren(ctx, target.ID)
		if err != nil {
			return err
		}
		siblings = slices.DeleteFunc(siblings, func(e *domain.Entity) bool { return movingIDs[e.ID] })
		if position < 0 || position > len(siblings) {
			position = len(siblings)
		}

		// Synchronized requirements keep their flag only when the whole batch
		// stays within the target's library.
		libraries := map[string]bool{target.LibraryID: true}
		for _, n := range moving {
			libraries[n.LibraryID] = true
		}
		clearSync := len(libraries) > 1

		for _, n := range moving {
			n.ParentID = &target.ID
			if clearSync {
				cleared, err := s.relocateSubtree(ctx, tx, n, target.LibraryID)
				if err != nil {
					return err
				}
				result.SynchronizedCleared = append(result.SynchronizedCleared, cleared...)
			}
			result.Moved = append(result.Moved, n.ID)
		}

		return renumber(ctx, tx, slices.Insert(siblings, position, moving...))
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("target", id).
		Strs("moved", result.Moved).
		Int("synchronizedCleared", len(result.SynchronizedCleared)).
		Msg("moved nodes")
	s.announce(workspace, domain.ChangeMove, changed, result.Moved)
	return result, nil
}

// relocateSubtree rewrites the library of n and its descendants and clears
// the synchronized flag on every requirement among them. n itself is left
// for the caller to persist.
func (s *TreeService) relocateSubtree(ctx context.Context, tx storage.Transaction, n *domain.Entity, libraryID string) ([]string, error) {
	var cleared []string
	n.LibraryID = libraryID
	if n.DomType == domain.DomRequirement && n.Synchronized {
		n.Synchronized = false
		cleared = append(cleared, n.ID)
	}

	children, err := tx.ListChildren(ctx, n.ID)
	if err != nil {
		return nil, err
	}
	for _, child := range children {
		sub, err := s.relocateSubtree(ctx, tx, child, libraryID)
		if err != nil {
			return nil, err
		}
		cleared = append(cleared, sub...)
		child.UpdatedAt = time.Now()
		if err := tx.UpdateNode(ctx, child); err != nil {
			return nil, err
		}
	}
	return cleared, nil
}

// Delete removes nodes and their descendants. suffix is the path tail that
// selected the endpoint and must match every node's delete rule.
func (s *TreeService) Delete(ctx context.Context, workspace, suffix string, ids []string, removeFromIteration bool) (*domain.DeleteResult, error) {
	result := &domain.DeleteResult{Removed: []string{}}
	parents := make(map[string]bool)
	err := s.withTx(ctx, func(tx storage.Transaction) error {
		nodes := make([]*domain.Entity, 0, len(ids))
		flagged := false
		for _, id := range ids {
			n, err := tx.GetNode(ctx, id)
			if err != nil {
				return err
			}
			rule := s.table.Rule(n.DomType)
			if n.IsLibrary() || rule.DeleteSuffix == "" || rule.DeleteSuffix != suffix {
				return &domain.UnsupportedOperationError{Op: "delete", DomType: n.DomType}
			}
			ws, err := s.workspaceOf(ctx, tx, n)
			if err != nil {
				return err
			}
			if ws != workspace {
				return fmt.Errorf("%w: %s is not in workspace %s", domain.ErrNotFound, id, workspace)
			}
			if rule.DeleteFlag != "" {
				flagged = true
			}
			nodes = append(nodes, n)
		}

		for _, n := range nodes {
			if err := deleteSubtree(ctx, tx, n.ID); err != nil {
				return err
			}
			parents[*n.ParentID] = true
			result.Removed = append(result.Removed, n.ID)
		}

		for parentID := range parents {
			siblings, err := tx.ListChildren(ctx, parentID)
			if err != nil {
				return err
			}
			if err := renumber(ctx, tx, siblings); err != nil {
				return err
			}
		}
		result.RemovedFromIteration = flagged && removeFromIteration
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Strs("removed", result.Removed).
		Bool("removedFromIteration", result.RemovedFromIteration).
		Msg("deleted nodes")
	s.announce(workspace, domain.ChangeDelete, parents, result.Removed)
	return result, nil
}

// deleteSubtree removes the descendants of id before id itself. A node
// already removed as part of an earlier subtree in the same batch is not an
// error.
func deleteSubtree(ctx context.Context, tx storage.Transaction, id string) error {
	children, err := tx.ListChildren(ctx, id)
	if err != nil {
		return err
	}
	for _, child := range children {
		if err := deleteSubtree(ctx, tx, child.ID); err != nil {
			return err
		}
	}
	if err := tx.DeleteNode(ctx, id); err != nil && !errors.Is(err, domain.ErrNotFound) {
		return err
	}
	return nil
}

// renumber persists nodes with positions matching their slice order.
func renumber(ctx context.Context, tx storage.Transaction, nodes []*domain.Entity) error {
	now := time.Now()
	for i, n := range nodes {
		n.Position = i
		n.UpdatedAt = now
		if err := tx.UpdateNode(ctx, n); err != nil {
			return err
		}
	}
	return nil
}

// resolve loads the node behind a browser address and checks that the
// address segments agree with it.
func (s *TreeService) resolve(ctx context.Context, st storage.Storage, workspace, semiType, id string) (*domain.Entity, error) {
	n, err := st.GetNode(ctx, id)
	if err != nil {
		return nil, err
	}
	if domain.SemiSpecializedType(n.DomType, n.ResType) != semiType {
		return nil, fmt.Errorf("%w: %s %s", domain.ErrNotFound, semiType, id)
	}
	ws, err := s.workspaceOf(ctx, st, n)
	if err != nil {
		return nil, err
	}
	if ws != workspace {
		return nil, fmt.Errorf("%w: %s is not in workspace %s", domain.ErrNotFound, id, workspace)
	}
	return n, nil
}

func (s *TreeService) workspaceOf(ctx context.Context, st storage.Storage, n *domain.Entity) (string, error) {
	lib := n
	if !n.IsLibrary() {
		var err error
		if lib, err = st.GetNode(ctx, n.LibraryID); err != nil {
			return "", fmt.Errorf("library of %s: %w", n.ID, err)
		}
	}
	ws, ok := domain.WorkspaceFromLibraryResType(lib.ResType)
	if !ok {
		return "", fmt.Errorf("%w: library %s has resType %q", domain.ErrInvalidInput, lib.ID, lib.ResType)
	}
	return ws, nil
}

// checkContent rejects a node the target's kind or workspace cannot hold.
func (s *TreeService) checkContent(ctx context.Context, st storage.Storage, target, n *domain.Entity) error {
	if n.IsLibrary() || !s.table.Allows(target.DomType, n.DomType) {
		return fmt.Errorf("%w: %s under %s", domain.ErrNotAccepted, n.DomType, target.DomType)
	}
	targetWS, err := s.workspaceOf(ctx, st, target)
	if err != nil {
		return err
	}
	ws, err := s.workspaceOf(ctx, st, n)
	if err != nil {
		return err
	}
	if ws != targetWS {
		return fmt.Errorf("%w: %s belongs to workspace %s", domain.ErrNotAccepted, n.ID, ws)
	}
	return nil
}

// ancestorIDs returns the ids on the path from n up to its library, n included.
func (s *TreeService) ancestorIDs(ctx context.Context, st storage.Storage, n *domain.Entity) ([]string, error) {
	ids := []string{n.ID}
	for cur := n; cur.ParentID != nil; {
		parent, err := st.GetNode(ctx, *cur.ParentID)
		if err != nil {
			return nil, err
		}
		ids = append(ids, parent.ID)
		cur = parent
	}
	return ids, nil
}

func (s *TreeService) describe(ctx context.Context, st storage.Storage, nodes []*domain.Entity) ([]domain.NodeDescriptor, error) {
	descs := make([]domain.NodeDescriptor, 0, len(nodes))
	for _, n := range nodes {
		count, err := st.CountChildren(ctx, n.ID)
		if err != nil {
			return nil, err
		}
		descs = append(descs, n.Descriptor(count > 0))
	}
	return descs, nil
}
