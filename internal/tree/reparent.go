package tree

import (
	"context"
	"fmt"
	"slices"

	"github.com/bcnelson/workspace-tree/internal/domain"
	"github.com/bcnelson/workspace-tree/internal/event"
	"github.com/rs/zerolog"
)

// MovedEvent is the payload of NodesMoved and NodesMoveReverted.
type MovedEvent struct {
	Nodes         []*Node
	Target        *Node
	FormerParents []*Node
}

// RemovedEvent is the payload of NodesRemoved.
type RemovedEvent struct {
	Nodes   []*Node
	Parents []*Node
}

type origin struct {
	parent *Node
	index  int
}

// Move records an applied reparenting so it can be reverted.
type Move struct {
	Nodes               []*Node
	Target              *Node
	FormerParents       []*Node
	SynchronizedCleared []*Node
	// Deferred is true when the target was not loaded: the nodes were
	// detached and will come back with the target's next load.
	Deferred bool
	// TargetLoading is set on a deferred move whose target had a load in
	// flight. That load may answer without the moved nodes, so the target
	// needs a refresh once the move is confirmed.
	TargetLoading bool

	origins          []origin
	selected         []*Node
	targetExpandable bool
	formerExpandable map[*Node]bool
}

// Reparenter validates and applies moves. It is the only writer of parent
// links and of the synchronized flag.
type Reparenter struct {
	tree   *Tree
	bus    *event.Bus
	logger zerolog.Logger
}

func NewReparenter(t *Tree, bus *event.Bus, logger zerolog.Logger) *Reparenter {
	return &Reparenter{tree: t, bus: bus, logger: logger}
}

// AcceptsAsContent reports whether target may receive every node in moving.
// It is false for an empty set, when target or any mover is no longer in the
// tree, for targets that cannot contain nodes, for kinds the target does not
// allow, for nodes from another workspace, and when target lies inside one of
// the moving subtrees.
func (r *Reparenter) AcceptsAsContent(target *Node, moving []*Node) bool {
	if target == nil || len(moving) == 0 {
		return false
	}
	t := r.tree
	if !t.CanContainNodes(target) {
		return false
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	if !t.containsLocked(target) {
		return false
	}
	chain := t.ancestorsLocked(target)
	for _, m := range moving {
		if !t.containsLocked(m) {
			return false
		}
		if !t.table.Allows(target.identity.DomType, m.identity.DomType) {
			return false
		}
		if m.identity.Workspace != target.identity.Workspace {
			return false
		}
		if slices.Contains(chain, m) {
			return false
		}
	}
	return true
}

// MoveTo detaches moving from their parents and attaches them to target.
// It trusts the caller: AcceptsAsContent must have been checked. Library
// nodes and nodes that are not part of the tree cause a panic. An empty
// set is a no-op and returns nil.
func (r *Reparenter) MoveTo(moving []*Node, target *Node) *Move {
	if len(moving) == 0 {
		return nil
	}
	t := r.tree
	t.mu.Lock()

	nodes := t.topmostLocked(moving)
	mv := &Move{
		Nodes:            nodes,
		Target:           target,
		origins:          make([]origin, len(nodes)),
		targetExpandable: target.expandable,
		formerExpandable: make(map[*Node]bool),
	}

	libraries := map[*Node]struct{}{t.owningLibraryLocked(target): {}}
	var moved []*Node
	for i, n := range nodes {
		if t.table.IsRoot(n.identity.DomType) {
			t.mu.Unlock()
			panic(fmt.Errorf("%w: %s", domain.ErrRootMove, n))
		}
		if !t.containsLocked(n) {
			t.mu.Unlock()
			panic(fmt.Errorf("%w: %s is not in the tree", domain.ErrNotFound, n))
		}
		parent := t.parentLocked(n)
		mv.origins[i] = origin{parent: parent, index: slices.Index(parent.children, n)}
		if _, seen := mv.formerExpandable[parent]; !seen {
			mv.formerExpandable[parent] = parent.expandable
			mv.FormerParents = append(mv.FormerParents, parent)
		}
		libraries[t.owningLibraryLocked(parent)] = struct{}{}
		moved = append(moved, n)
		moved = append(moved, t.subtreeLocked(n)...)
	}

	for _, n := range nodes {
		t.detachLocked(n)
	}
	if len(target.children) == 0 {
		target.expandable = true
	}
	if target.state == Loaded {
		for _, n := range nodes {
			n.parentID = target.id
			target.children = append(target.children, n)
		}
	} else {
		mv.Deferred = true
		mv.TargetLoading = target.state == Loading
		for _, n := range nodes {
			for _, x := range append([]*Node{n}, t.subtreeLocked(n)...) {
				if x.selected {
					mv.selected = append(mv.selected, x)
				}
			}
			t.unindexSubtreeLocked(n)
		}
	}

	if len(libraries) != 1 {
		for _, n := range moved {
			if n.identity.DomType == domain.DomRequirement && n.synchronized {
				n.synchronized = false
				mv.SynchronizedCleared = append(mv.SynchronizedCleared, n)
			}
		}
	}
	t.mu.Unlock()

	r.logger.Info().
		Int("nodes", len(nodes)).
		Stringer("target", target).
		Bool("deferred", mv.Deferred).
		Int("synchronized_cleared", len(mv.SynchronizedCleared)).
		Msg("nodes moved")
	r.bus.Publish(event.Event{Type: event.NodesMoved, Data: MovedEvent{
		Nodes:         slices.Clone(nodes),
		Target:        target,
		FormerParents: slices.Clone(mv.FormerParents),
	}})
	return mv
}

// topmostLocked deduplicates nodes and drops those whose ancestor is also in
// the set, keeping the original relative order.
func (t *Tree) topmostLocked(nodes []*Node) []*Node {
	set := make(map[*Node]bool, len(nodes))
	for _, n := range nodes {
		set[n] = true
	}
	var out []*Node
	seen := make(map[*Node]bool, len(nodes))
	for _, n := range nodes {
		if seen[n] {
			continue
		}
		seen[n] = true
		covered := false
		for p := t.parentLocked(n); p != nil; p = t.parentLocked(p) {
			if set[p] {
				covered = true
				break
			}
		}
		if !covered {
			out = append(out, n)
		}
	}
	return out
}

// detachLocked unlinks n from its parent. A loaded parent left empty becomes
// a leaf in the view.
func (t *Tree) detachLocked(n *Node) *Node {
	parent := t.parentLocked(n)
	n.parentID = ""
	if parent == nil {
		return nil
	}
	if i := slices.Index(parent.children, n); i >= 0 {
		parent.children = slices.Delete(parent.children, i, i+1)
	}
	if len(parent.children) == 0 && parent.state == Loaded {
		parent.expandable = false
	}
	return parent
}

// Revert undoes mv: nodes go back to their former parents at their former
// positions, container markers and cleared synchronized flags are restored.
func (r *Reparenter) Revert(mv *Move) {
	if mv == nil {
		return
	}
	t := r.tree
	t.mu.Lock()

	for _, n := range mv.Nodes {
		if mv.Deferred {
			t.reindexSubtreeLocked(n)
			continue
		}
		if i := slices.Index(mv.Target.children, n); i >= 0 {
			mv.Target.children = slices.Delete(mv.Target.children, i, i+1)
		}
	}

	order := make([]int, len(mv.Nodes))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int {
		return mv.origins[a].index - mv.origins[b].index
	})
	for _, i := range order {
		n, o := mv.Nodes[i], mv.origins[i]
		at := min(o.index, len(o.parent.children))
		o.parent.children = slices.Insert(o.parent.children, at, n)
		n.parentID = o.parent.id
	}

	mv.Target.expandable = mv.targetExpandable
	for p, expandable := range mv.formerExpandable {
		p.expandable = expandable
	}
	for _, n := range mv.SynchronizedCleared {
		n.synchronized = true
	}
	for _, n := range mv.selected {
		n.selected = true
	}
	t.mu.Unlock()

	r.logger.Warn().Int("nodes", len(mv.Nodes)).Stringer("target", mv.Target).Msg("move reverted")
	r.bus.Publish(event.Event{Type: event.NodesMoveReverted, Data: MovedEvent{
		Nodes:         slices.Clone(mv.Nodes),
		Target:        mv.Target,
		FormerParents: slices.Clone(mv.FormerParents),
	}})
}

// ApplyThenConfirm applies the move locally, then asks confirm to make it
// durable. When confirm fails the move is reverted and its error returned.
func (r *Reparenter) ApplyThenConfirm(ctx context.Context, moving []*Node, target *Node, confirm func(context.Context, *Move) error) (*Move, error) {
	mv := r.MoveTo(moving, target)
	if mv == nil {
		return nil, nil
	}
	if err := confirm(ctx, mv); err != nil {
		r.Revert(mv)
		return nil, err
	}
	return mv, nil
}

// Remove drops nodes and their subtrees from the tree after a delete.
func (r *Reparenter) Remove(nodes []*Node) {
	t := r.tree
	t.mu.Lock()
	nodes = t.topmostLocked(nodes)
	var removed, parents []*Node
	for _, n := range nodes {
		if !t.containsLocked(n) {
			continue
		}
		if parent := t.detachLocked(n); parent != nil && !slices.Contains(parents, parent) {
			parents = append(parents, parent)
		}
		if i := slices.Index(t.roots, n); i >= 0 {
			t.roots = slices.Delete(t.roots, i, i+1)
		}
		t.unindexSubtreeLocked(n)
		removed = append(removed, n)
	}
	t.mu.Unlock()

	if len(removed) == 0 {
		return
	}
	r.logger.Info().Int("nodes", len(removed)).Msg("nodes removed")
	r.bus.Publish(event.Event{Type: event.NodesRemoved, Data: RemovedEvent{Nodes: removed, Parents: parents}})
}
