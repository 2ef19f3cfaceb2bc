package tree

import (
	"slices"
	"strconv"

	"github.com/bcnelson/workspace-tree/internal/domain"
)

// Collect maps every node of a selection through fn, in selection order.
func Collect[T any](selection []*Node, fn func(*Node) T) []T {
	out := make([]T, len(selection))
	for i, n := range selection {
		out[i] = fn(n)
	}
	return out
}

// Attribute returns the string form of a named node attribute. Capability
// flags are addressed by their stored names ("editable", "milestone-editable").
func (n *Node) Attribute(name string) (string, bool) {
	switch name {
	case "domType":
		return string(n.identity.DomType), true
	case "resType":
		return n.identity.ResType, true
	case "resId":
		return n.identity.ResID, true
	case "workspace":
		return n.identity.Workspace, true
	case "name":
		return n.Name(), true
	case "reference":
		return n.Reference(), true
	case "synchronized":
		return strconv.FormatBool(n.Synchronized()), true
	}
	if v, ok := n.Capabilities().Flag(name); ok {
		return strconv.FormatBool(v), true
	}
	return "", false
}

// AllShareAttributes reports whether every node carries every attribute of
// match. An empty selection never matches.
func AllShareAttributes(selection []*Node, match map[string]string) bool {
	if len(selection) == 0 {
		return false
	}
	for _, n := range selection {
		for k, want := range match {
			if got, ok := n.Attribute(k); !ok || got != want {
				return false
			}
		}
	}
	return true
}

// AreHomogeneousType reports whether every node's domType is one of allowed.
// It holds vacuously for an empty selection.
func AreHomogeneousType(selection []*Node, allowed ...domain.DomType) bool {
	for _, n := range selection {
		if !slices.Contains(allowed, n.DomType()) {
			return false
		}
	}
	return true
}

// ShareLibrary reports whether the selection spans exactly one library.
func (t *Tree) ShareLibrary(selection []*Node) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	libs := make(map[*Node]struct{})
	for _, n := range selection {
		lib := t.owningLibraryLocked(n)
		if lib == nil {
			return false
		}
		libs[lib] = struct{}{}
	}
	return len(libs) == 1
}
