package tree

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/bcnelson/workspace-tree/internal/domain"
)

// Resolver derives REST addresses from node identities. Every method is a
// pure function of its arguments; open, loaded and selected state never
// influence an address.
type Resolver struct {
	baseURL string
	table   domain.TypeTable
}

func NewResolver(baseURL string, table domain.TypeTable) *Resolver {
	return &Resolver{
		baseURL: strings.TrimRight(baseURL, "/"),
		table:   table,
	}
}

// ResourceURL returns {baseUrl}/{resType}/{resId}.
func (r *Resolver) ResourceURL(id domain.Identity) string {
	return r.baseURL + "/" + id.ResType + "/" + id.ResID
}

// BrowserURL returns {baseUrl}/{workspace}-browser.
func (r *Resolver) BrowserURL(id domain.Identity) string {
	return r.workspaceBrowserURL(id.Workspace)
}

func (r *Resolver) workspaceBrowserURL(workspace string) string {
	return r.baseURL + "/" + workspace + "-browser"
}

// RootsURL lists the libraries of a workspace.
func (r *Resolver) RootsURL(workspace string) string {
	return r.workspaceBrowserURL(workspace) + "/libraries"
}

func (r *Resolver) nodeURL(id domain.Identity) string {
	return r.BrowserURL(id) + "/" + domain.SemiSpecializedType(id.DomType, id.ResType) + "/" + id.ResID
}

// ContentURL returns the lazy children listing of a node.
func (r *Resolver) ContentURL(id domain.Identity) string {
	return r.nodeURL(id) + "/content"
}

func (r *Resolver) SupportsCopy(d domain.DomType) bool   { return r.table.Rule(d).CopySuffix != "" }
func (r *Resolver) SupportsMove(d domain.DomType) bool   { return r.table.Rule(d).MoveSuffix != "" }
func (r *Resolver) SupportsDelete(d domain.DomType) bool { return r.table.Rule(d).DeleteSuffix != "" }

// CopyURL returns the address that copies nodes into id. It panics with an
// *domain.UnsupportedOperationError when id's kind cannot receive copies.
func (r *Resolver) CopyURL(id domain.Identity) string {
	rule := r.table.Rule(id.DomType)
	if rule.CopySuffix == "" {
		panic(&domain.UnsupportedOperationError{Op: "copy", DomType: id.DomType})
	}
	return r.nodeURL(id) + rule.CopySuffix
}

// MoveURL returns the address that moves nodeIDs into id at position.
// Position -1 appends. It panics like CopyURL for unsupported kinds.
func (r *Resolver) MoveURL(id domain.Identity, nodeIDs []string, position int) string {
	rule := r.table.Rule(id.DomType)
	if rule.MoveSuffix == "" {
		panic(&domain.UnsupportedOperationError{Op: "move", DomType: id.DomType})
	}
	return r.nodeURL(id) + rule.MoveSuffix + "/" + joinIDs(nodeIDs) + "/" + strconv.Itoa(position)
}

// DeleteOptions tunes delete addresses.
type DeleteOptions struct {
	// RemoveFromIteration also detaches test suites from their iteration's
	// test plan. Only meaningful for kinds whose rule declares a delete flag.
	RemoveFromIteration bool
}

// DeleteURL returns the address that deletes the given nodes. All nodes must
// share one domType; the flag query parameter is emitted only when set.
func (r *Resolver) DeleteURL(opts DeleteOptions, ids ...domain.Identity) string {
	if len(ids) == 0 {
		panic("tree: DeleteURL needs at least one node")
	}
	first := ids[0]
	rule := r.table.Rule(first.DomType)
	if rule.DeleteSuffix == "" {
		panic(&domain.UnsupportedOperationError{Op: "delete", DomType: first.DomType})
	}
	resIDs := make([]string, len(ids))
	for i, id := range ids {
		if id.DomType != first.DomType || id.Workspace != first.Workspace {
			panic(fmt.Sprintf("tree: DeleteURL mixes %s and %s", first, id))
		}
		resIDs[i] = id.ResID
	}
	u := r.BrowserURL(first) + rule.DeleteSuffix + "/" + joinIDs(resIDs)
	if rule.DeleteFlag != "" && opts.RemoveFromIteration {
		u += "?" + url.Values{rule.DeleteFlag: {"true"}}.Encode()
	}
	return u
}

func joinIDs(ids []string) string {
	return strings.Join(ids, ",")
}
