package tree

import (
	"context"
	"fmt"
	"slices"

	"github.com/bcnelson/workspace-tree/internal/domain"
	"github.com/bcnelson/workspace-tree/internal/event"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// ContentFetcher is the REST collaborator that lists children.
type ContentFetcher interface {
	FetchContent(ctx context.Context, url string) ([]domain.NodeDescriptor, error)
}

// LoadedEvent is published after a node's children were (re)materialized.
type LoadedEvent struct {
	Node     *Node
	Children []*Node
}

// Navigator drives the unloaded -> loading -> loaded state machine and the
// open/closed flag. Concurrent loads of one node share a single fetch.
type Navigator struct {
	tree     *Tree
	resolver *Resolver
	fetcher  ContentFetcher
	bus      *event.Bus
	logger   zerolog.Logger
	loads    singleflight.Group
}

func NewNavigator(t *Tree, r *Resolver, f ContentFetcher, bus *event.Bus, logger zerolog.Logger) *Navigator {
	return &Navigator{
		tree:     t,
		resolver: r,
		fetcher:  f,
		bus:      bus,
		logger:   logger,
	}
}

// LoadRoots fetches and materializes the libraries of a workspace.
func (nav *Navigator) LoadRoots(ctx context.Context, workspace string) ([]*Node, error) {
	u := nav.resolver.RootsURL(workspace)
	descs, err := nav.fetcher.FetchContent(ctx, u)
	if err != nil {
		return nil, fmt.Errorf("load %s libraries: %w", workspace, err)
	}
	roots, err := nav.tree.AddRoots(descs)
	if err != nil {
		return nil, err
	}
	nav.logger.Debug().Str("workspace", workspace).Int("libraries", len(roots)).Msg("roots loaded")
	return roots, nil
}

// Load fetches n's children once. Further calls return the materialized
// children without touching the backend. On failure n stays unloaded and the
// error is returned; nothing is retried.
func (nav *Navigator) Load(ctx context.Context, n *Node) ([]*Node, error) {
	t := nav.tree
	t.mu.RLock()
	if !t.containsLocked(n) {
		t.mu.RUnlock()
		return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, n)
	}
	if n.state == Loaded {
		children := slices.Clone(n.children)
		t.mu.RUnlock()
		return children, nil
	}
	t.mu.RUnlock()

	return nav.share(ctx, n.id, func(ctx context.Context) ([]*Node, error) {
		return nav.load(ctx, n)
	})
}

// share runs fn once per key for all concurrent callers. fn does not see
// any caller's cancellation, so one caller giving up does not fail the
// others; each caller still stops waiting when its own ctx is done.
func (nav *Navigator) share(ctx context.Context, key string, fn func(context.Context) ([]*Node, error)) ([]*Node, error) {
	detached := context.WithoutCancel(ctx)
	ch := nav.loads.DoChan(key, func() (any, error) {
		return fn(detached)
	})
	select {
	case res := <-ch:
		if res.Shared {
			nav.logger.Debug().Str("key", key).Msg("joined in-flight load")
		}
		if res.Err != nil {
			return nil, res.Err
		}
		return slices.Clone(res.Val.([]*Node)), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (nav *Navigator) load(ctx context.Context, n *Node) ([]*Node, error) {
	t := nav.tree
	t.mu.Lock()
	if n.state == Loaded {
		children := slices.Clone(n.children)
		t.mu.Unlock()
		return children, nil
	}
	if !t.table.CanContainNodes(n.identity.DomType) {
		n.state = Loaded
		n.expandable = false
		t.mu.Unlock()
		return nil, nil
	}
	n.state = Loading
	t.mu.Unlock()

	descs, err := nav.fetch(ctx, n)

	t.mu.Lock()
	if err != nil {
		n.state = Unloaded
		t.mu.Unlock()
		nav.logger.Debug().Err(err).Stringer("node", n).Msg("load failed")
		return nil, err
	}
	if !t.containsLocked(n) {
		n.state = Unloaded
		t.mu.Unlock()
		return nil, fmt.Errorf("%w: %s was removed while loading", domain.ErrNotFound, n)
	}
	children := t.materializeLocked(n, descs)
	n.state = Loaded
	t.mu.Unlock()

	nav.logger.Debug().Stringer("node", n).Int("children", len(children)).Msg("node loaded")
	nav.bus.Publish(event.Event{Type: event.NodesLoaded, Data: LoadedEvent{Node: n, Children: children}})
	return children, nil
}

// fetch lists and validates n's children without touching the tree.
func (nav *Navigator) fetch(ctx context.Context, n *Node) ([]domain.NodeDescriptor, error) {
	descs, err := nav.fetcher.FetchContent(ctx, nav.resolver.ContentURL(n.identity))
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", n, err)
	}
	if err := nav.tree.validateChildren(n, descs); err != nil {
		return nil, fmt.Errorf("load %s: %w", n, err)
	}
	return descs, nil
}

// materializeLocked appends descs as children of n in server order.
func (t *Tree) materializeLocked(n *Node, descs []domain.NodeDescriptor) []*Node {
	for i := range descs {
		t.newNodeLocked(&descs[i], n, n.identity.Workspace)
	}
	n.expandable = len(n.children) > 0
	return slices.Clone(n.children)
}

// Open expands n, loading it first when needed. If Close is called while
// the load is in flight the result is kept but n stays closed.
func (nav *Navigator) Open(ctx context.Context, n *Node) error {
	t := nav.tree
	t.mu.Lock()
	n.wantOpen = true
	if n.state == Loaded {
		n.open = true
		t.mu.Unlock()
		return nil
	}
	t.mu.Unlock()

	if _, err := nav.Load(ctx, n); err != nil {
		t.mu.Lock()
		n.wantOpen = false
		t.mu.Unlock()
		return err
	}
	t.mu.Lock()
	n.open = n.wantOpen
	t.mu.Unlock()
	return nil
}

// Close collapses n. Children are kept.
func (nav *Navigator) Close(n *Node) {
	t := nav.tree
	t.mu.Lock()
	defer t.mu.Unlock()
	n.wantOpen = false
	n.open = false
}

// Refresh re-fetches the children of a loaded container and replaces them.
// Selection of direct children is carried over by identity. Unloaded nodes
// are simply loaded.
func (nav *Navigator) Refresh(ctx context.Context, n *Node) ([]*Node, error) {
	if !nav.tree.CanContainNodes(n) || !n.Loaded() {
		return nav.Load(ctx, n)
	}
	return nav.share(ctx, "refresh:"+n.id, func(ctx context.Context) ([]*Node, error) {
		return nav.refresh(ctx, n)
	})
}

func (nav *Navigator) refresh(ctx context.Context, n *Node) ([]*Node, error) {
	descs, err := nav.fetch(ctx, n)
	if err != nil {
		return nil, err
	}

	t := nav.tree
	t.mu.Lock()
	if !t.containsLocked(n) {
		t.mu.Unlock()
		return nil, fmt.Errorf("%w: %s was removed while refreshing", domain.ErrNotFound, n)
	}
	selected := make(map[string]bool)
	for _, ch := range n.children {
		if ch.selected {
			selected[ch.identity.Key()] = true
		}
		t.unindexSubtreeLocked(ch)
	}
	n.children = nil
	children := t.materializeLocked(n, descs)
	for _, ch := range children {
		ch.selected = selected[ch.identity.Key()]
	}
	t.mu.Unlock()

	nav.logger.Debug().Stringer("node", n).Int("children", len(children)).Msg("node refreshed")
	nav.bus.Publish(event.Event{Type: event.NodesLoaded, Data: LoadedEvent{Node: n, Children: children}})
	return children, nil
}
