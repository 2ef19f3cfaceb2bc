// Package tree is the client-side model of the workspace containment graph:
// libraries, folders, requirements, test cases, campaigns, iterations and
// test suites, loaded lazily from the backend and rearranged by the user.
package tree

import (
	"fmt"
	"slices"
	"sync"

	"github.com/bcnelson/workspace-tree/internal/domain"
	"github.com/google/uuid"
)

// Tree owns every materialized Node. It is safe for concurrent use; the
// structure is only mutated by the Navigator and the Reparenter.
type Tree struct {
	mu    sync.RWMutex
	table domain.TypeTable
	nodes map[string]*Node  // key: structural id
	byKey map[string]string // key: resType/resId -> structural id
	roots []*Node
}

// New creates an empty tree governed by table.
func New(table domain.TypeTable) *Tree {
	return &Tree{
		table: table,
		nodes: make(map[string]*Node),
		byKey: make(map[string]string),
	}
}

func (t *Tree) Table() domain.TypeTable { return t.table }

// Len returns the number of materialized nodes.
func (t *Tree) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.nodes)
}

// Node looks a node up by structural id.
func (t *Tree) Node(id string) (*Node, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n, ok := t.nodes[id]
	return n, ok
}

// Find looks a node up by its backend identity.
func (t *Tree) Find(resType, resID string) (*Node, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.findLocked(resType, resID)
}

func (t *Tree) findLocked(resType, resID string) (*Node, bool) {
	id, ok := t.byKey[domain.Identity{ResType: resType, ResID: resID}.Key()]
	if !ok {
		return nil, false
	}
	return t.nodes[id], true
}

// Contains reports whether n is currently part of the tree.
func (t *Tree) Contains(n *Node) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.containsLocked(n)
}

func (t *Tree) containsLocked(n *Node) bool {
	return n != nil && t.nodes[n.id] == n
}

// Roots returns the library nodes in the order they were added.
func (t *Tree) Roots() []*Node {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return slices.Clone(t.roots)
}

// AddRoots materializes library descriptors. A library that is already
// present is returned as is.
func (t *Tree) AddRoots(descs []domain.NodeDescriptor) ([]*Node, error) {
	for i := range descs {
		if err := t.validateRoot(&descs[i]); err != nil {
			return nil, err
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*Node, 0, len(descs))
	for i := range descs {
		d := &descs[i]
		if existing, ok := t.findLocked(d.ResType, d.ResID); ok {
			out = append(out, existing)
			continue
		}
		ws, _ := domain.WorkspaceFromLibraryResType(d.ResType)
		n := t.newNodeLocked(d, nil, ws)
		t.roots = append(t.roots, n)
		out = append(out, n)
	}
	return out, nil
}

func (t *Tree) validateRoot(d *domain.NodeDescriptor) error {
	if err := d.Validate(); err != nil {
		return err
	}
	if !t.table.IsRoot(d.DomType) {
		return fmt.Errorf("%w: %q is not a library type", domain.ErrInvalidDescriptor, d.DomType)
	}
	if _, ok := domain.WorkspaceFromLibraryResType(d.ResType); !ok {
		return fmt.Errorf("%w: library resType %q has no workspace", domain.ErrInvalidDescriptor, d.ResType)
	}
	return nil
}

// validateChildren checks a content listing before anything is materialized.
func (t *Tree) validateChildren(parent *Node, descs []domain.NodeDescriptor) error {
	for i := range descs {
		d := &descs[i]
		if err := d.Validate(); err != nil {
			return err
		}
		if t.table.IsRoot(d.DomType) {
			return fmt.Errorf("%w: library %s listed as content of %s", domain.ErrInvalidDescriptor, d.ResID, parent)
		}
	}
	return nil
}

// newNodeLocked creates, links and indexes a node.
func (t *Tree) newNodeLocked(d *domain.NodeDescriptor, parent *Node, workspace string) *Node {
	n := &Node{
		tree: t,
		id:   uuid.NewString(),
		identity: domain.Identity{
			DomType:   d.DomType,
			ResType:   d.ResType,
			ResID:     d.ResID,
			Workspace: workspace,
		},
		name:         d.Name,
		reference:    d.Reference,
		capabilities: d.Capabilities,
		synchronized: d.Synchronized,
		expandable:   t.table.CanContainNodes(d.DomType),
	}
	if t.table.IsRoot(d.DomType) {
		n.enabledWizards = d.EnabledWizards
	}
	if n.expandable && d.HasContent != nil {
		n.expandable = *d.HasContent
	}
	if parent != nil {
		n.parentID = parent.id
		parent.children = append(parent.children, n)
	}
	t.indexLocked(n)
	return n
}

func (t *Tree) indexLocked(n *Node) {
	t.nodes[n.id] = n
	t.byKey[n.identity.Key()] = n.id
}

// unindexSubtreeLocked forgets n and its materialized descendants. The node
// objects stay linked to each other so they can be re-indexed.
func (t *Tree) unindexSubtreeLocked(n *Node) {
	for _, x := range append([]*Node{n}, t.subtreeLocked(n)...) {
		delete(t.nodes, x.id)
		if t.byKey[x.identity.Key()] == x.id {
			delete(t.byKey, x.identity.Key())
		}
		x.selected = false
	}
}

func (t *Tree) reindexSubtreeLocked(n *Node) {
	for _, x := range append([]*Node{n}, t.subtreeLocked(n)...) {
		t.indexLocked(x)
	}
}

// CanContainNodes is decided by the static type table alone.
func (t *Tree) CanContainNodes(n *Node) bool {
	return t.table.CanContainNodes(n.DomType())
}

// Parent returns the parent of n, or nil for a library or a detached node.
func (t *Tree) Parent(n *Node) *Node {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.parentLocked(n)
}

func (t *Tree) parentLocked(n *Node) *Node {
	if n.parentID == "" {
		return nil
	}
	return t.nodes[n.parentID]
}

// Children returns the materialized children of n in display order.
func (t *Tree) Children(n *Node) []*Node {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return slices.Clone(n.children)
}

// Ancestors returns the chain from the library down to n, both included.
func (t *Tree) Ancestors(n *Node) []*Node {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.ancestorsLocked(n)
}

func (t *Tree) ancestorsLocked(n *Node) []*Node {
	var chain []*Node
	for cur := n; cur != nil; cur = t.parentLocked(cur) {
		chain = append(chain, cur)
	}
	slices.Reverse(chain)
	return chain
}

// FlatSubtree returns the materialized descendants of n in pre-order, n excluded.
func (t *Tree) FlatSubtree(n *Node) []*Node {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.subtreeLocked(n)
}

func (t *Tree) subtreeLocked(n *Node) []*Node {
	var out []*Node
	var walk func(*Node)
	walk = func(x *Node) {
		for _, ch := range x.children {
			out = append(out, ch)
			walk(ch)
		}
	}
	walk(n)
	return out
}

// OwningLibrary returns the library at the top of n's ancestor chain.
func (t *Tree) OwningLibrary(n *Node) *Node {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.owningLibraryLocked(n)
}

func (t *Tree) owningLibraryLocked(n *Node) *Node {
	if n == nil {
		return nil
	}
	chain := t.ancestorsLocked(n)
	top := chain[0]
	if !t.table.IsRoot(top.identity.DomType) {
		return nil
	}
	return top
}

// UpdateLabel renames a node in place.
func (t *Tree) UpdateLabel(n *Node, name, reference string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	n.name = name
	n.reference = reference
}

func (t *Tree) Select(n *Node) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.containsLocked(n) {
		n.selected = true
	}
}

func (t *Tree) Deselect(n *Node) {
	t.mu.Lock()
	defer t.mu.Unlock()
	n.selected = false
}

// Selected returns the selected nodes in display order.
func (t *Tree) Selected() []*Node {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var out []*Node
	for _, root := range t.roots {
		for _, x := range append([]*Node{root}, t.subtreeLocked(root)...) {
			if x.selected {
				out = append(out, x)
			}
		}
	}
	return out
}
