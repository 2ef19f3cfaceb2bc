package tree

import "github.com/bcnelson/workspace-tree/internal/domain"

// LoadState tracks whether a node's children have been fetched.
type LoadState int

const (
	Unloaded LoadState = iota
	Loading
	Loaded
)

func (s LoadState) String() string {
	switch s {
	case Unloaded:
		return "unloaded"
	case Loading:
		return "loading"
	case Loaded:
		return "loaded"
	}
	return "unknown"
}

// Node is a vertex of the workspace tree. Its identity never changes; every
// other field is owned by the Tree and read through accessors that take the
// tree lock.
type Node struct {
	tree     *Tree
	id       string
	identity domain.Identity

	parentID       string
	children       []*Node
	name           string
	reference      string
	capabilities   domain.Capabilities
	synchronized   bool
	enabledWizards string
	state          LoadState
	open           bool
	wantOpen       bool
	expandable     bool
	selected       bool
}

// ID is the structural identifier assigned when the node was materialized.
func (n *Node) ID() string { return n.id }

func (n *Node) Identity() domain.Identity { return n.identity }

func (n *Node) DomType() domain.DomType { return n.identity.DomType }

func (n *Node) ResType() string { return n.identity.ResType }

func (n *Node) ResID() string { return n.identity.ResID }

func (n *Node) Workspace() string { return n.identity.Workspace }

func (n *Node) Name() string {
	n.tree.mu.RLock()
	defer n.tree.mu.RUnlock()
	return n.name
}

func (n *Node) Reference() string {
	n.tree.mu.RLock()
	defer n.tree.mu.RUnlock()
	return n.reference
}

// Label is the display text: "reference - name" when a reference is set.
func (n *Node) Label() string {
	n.tree.mu.RLock()
	defer n.tree.mu.RUnlock()
	if n.reference == "" {
		return n.name
	}
	return n.reference + " - " + n.name
}

func (n *Node) Capabilities() domain.Capabilities {
	n.tree.mu.RLock()
	defer n.tree.mu.RUnlock()
	return n.capabilities
}

// Synchronized reports whether the node mirrors an external requirement source.
func (n *Node) Synchronized() bool {
	n.tree.mu.RLock()
	defer n.tree.mu.RUnlock()
	return n.synchronized
}

func (n *Node) State() LoadState {
	n.tree.mu.RLock()
	defer n.tree.mu.RUnlock()
	return n.state
}

func (n *Node) Loaded() bool {
	return n.State() == Loaded
}

func (n *Node) IsOpen() bool {
	n.tree.mu.RLock()
	defer n.tree.mu.RUnlock()
	return n.open
}

// Expandable is the container-state marker: false means the view shows the
// node as a leaf.
func (n *Node) Expandable() bool {
	n.tree.mu.RLock()
	defer n.tree.mu.RUnlock()
	return n.expandable
}

func (n *Node) Selected() bool {
	n.tree.mu.RLock()
	defer n.tree.mu.RUnlock()
	return n.selected
}

func (n *Node) String() string {
	return n.identity.String()
}
