package tree

import (
	"context"
	"fmt"
	"slices"

	"github.com/bcnelson/workspace-tree/internal/domain"
	"github.com/bcnelson/workspace-tree/internal/event"
	"github.com/rs/zerolog"
)

// Backend is the REST collaborator behind the engine.
type Backend interface {
	ContentFetcher
	Move(ctx context.Context, url string) error
	Copy(ctx context.Context, url string, nodeIDs []string) error
	Delete(ctx context.Context, url string) error
}

// Engine wires the tree components to a backend. It is the boundary where
// capability and compatibility checks happen before anything is mutated.
type Engine struct {
	Tree       *Tree
	Resolver   *Resolver
	Navigator  *Navigator
	Reparenter *Reparenter

	backend Backend
	logger  zerolog.Logger
}

func NewEngine(table domain.TypeTable, baseURL string, backend Backend, bus *event.Bus, logger zerolog.Logger) *Engine {
	t := New(table)
	r := NewResolver(baseURL, table)
	return &Engine{
		Tree:       t,
		Resolver:   r,
		Navigator:  NewNavigator(t, r, backend, bus, logger),
		Reparenter: NewReparenter(t, bus, logger),
		backend:    backend,
		logger:     logger,
	}
}

func (e *Engine) LoadRoots(ctx context.Context, workspace string) ([]*Node, error) {
	return e.Navigator.LoadRoots(ctx, workspace)
}

func (e *Engine) Load(ctx context.Context, n *Node) ([]*Node, error) {
	return e.Navigator.Load(ctx, n)
}

func (e *Engine) Refresh(ctx context.Context, n *Node) ([]*Node, error) {
	return e.Navigator.Refresh(ctx, n)
}

func (e *Engine) Open(ctx context.Context, n *Node) error {
	return e.Navigator.Open(ctx, n)
}

func (e *Engine) Close(n *Node) {
	e.Navigator.Close(n)
}

// Move reparents nodes under target. The tree is updated before the backend
// answers; a failed request puts everything back. A target that was loading
// is refreshed after the backend confirms.
func (e *Engine) Move(ctx context.Context, nodes []*Node, target *Node) (*Move, error) {
	if !e.Tree.Contains(target) {
		return nil, fmt.Errorf("%w: move target %s", domain.ErrNotFound, target)
	}
	for _, n := range nodes {
		if !e.Tree.Contains(n) {
			return nil, fmt.Errorf("%w: moving %s", domain.ErrNotFound, n)
		}
	}
	if !e.Resolver.SupportsMove(target.DomType()) || !e.Reparenter.AcceptsAsContent(target, nodes) {
		return nil, fmt.Errorf("%w: move into %s", domain.ErrNotAccepted, target)
	}
	if err := e.authorize(target, domain.PermCreate); err != nil {
		return nil, err
	}
	for _, n := range nodes {
		if err := e.authorize(n, domain.PermWrite); err != nil {
			return nil, err
		}
	}

	mv, err := e.Reparenter.ApplyThenConfirm(ctx, nodes, target, func(ctx context.Context, mv *Move) error {
		position := -1
		if !mv.Deferred {
			position = slices.Index(e.Tree.Children(target), mv.Nodes[0])
		}
		u := e.Resolver.MoveURL(target.Identity(), resIDs(mv.Nodes), position)
		if err := e.backend.Move(ctx, u); err != nil {
			e.logger.Error().Err(err).Str("url", u).Msg("move rejected by backend")
			return fmt.Errorf("move into %s: %w", target, err)
		}
		return nil
	})
	if err != nil || mv == nil || !mv.TargetLoading {
		return mv, err
	}

	// The load in flight may predate the move: wait for it, then fetch again.
	if _, err := e.Navigator.Load(ctx, target); err != nil {
		e.logger.Warn().Err(err).Stringer("target", target).Msg("load after move failed")
		return mv, nil
	}
	if _, err := e.Navigator.Refresh(ctx, target); err != nil {
		e.logger.Warn().Err(err).Stringer("target", target).Msg("refresh after move failed")
	}
	return mv, nil
}

// Copy asks the backend to copy nodes into target, then refreshes target so
// the copies show up with their new identities.
func (e *Engine) Copy(ctx context.Context, nodes []*Node, target *Node) ([]*Node, error) {
	if len(nodes) == 0 {
		return nil, nil
	}
	if !e.Resolver.SupportsCopy(target.DomType()) {
		return nil, fmt.Errorf("%w: copy into %s", domain.ErrNotAccepted, target)
	}
	for _, n := range nodes {
		if !e.Tree.table.Allows(target.DomType(), n.DomType()) || n.Workspace() != target.Workspace() {
			return nil, fmt.Errorf("%w: copy %s into %s", domain.ErrNotAccepted, n, target)
		}
		if err := e.authorize(n, domain.PermRead); err != nil {
			return nil, err
		}
	}
	if err := e.authorize(target, domain.PermCreate); err != nil {
		return nil, err
	}

	u := e.Resolver.CopyURL(target.Identity())
	if err := e.backend.Copy(ctx, u, resIDs(nodes)); err != nil {
		return nil, fmt.Errorf("copy into %s: %w", target, err)
	}
	e.logger.Info().Int("nodes", len(nodes)).Stringer("target", target).Msg("nodes copied")
	return e.Navigator.Refresh(ctx, target)
}

// Delete removes a type-homogeneous selection on the backend and then from
// the tree.
func (e *Engine) Delete(ctx context.Context, nodes []*Node, opts DeleteOptions) error {
	if len(nodes) == 0 {
		return nil
	}
	kind := nodes[0].DomType()
	sameWorkspace := AllShareAttributes(nodes, map[string]string{"workspace": nodes[0].Workspace()})
	if !sameWorkspace || !AreHomogeneousType(nodes, kind) || !e.Resolver.SupportsDelete(kind) {
		return fmt.Errorf("%w: cannot delete this selection", domain.ErrInvalidInput)
	}
	for _, n := range nodes {
		if err := e.authorize(n, domain.PermDelete); err != nil {
			return err
		}
	}

	ids := Collect(nodes, (*Node).Identity)
	u := e.Resolver.DeleteURL(opts, ids...)
	if err := e.backend.Delete(ctx, u); err != nil {
		return fmt.Errorf("delete %d %s nodes: %w", len(nodes), kind, err)
	}
	e.Reparenter.Remove(nodes)
	return nil
}

func (e *Engine) authorize(n *Node, p domain.Permission) error {
	if !e.Tree.IsAuthorized(n, p) {
		return fmt.Errorf("%w: %s on %s", domain.ErrForbidden, p, n)
	}
	return nil
}

func resIDs(nodes []*Node) []string {
	return Collect(nodes, (*Node).ResID)
}
