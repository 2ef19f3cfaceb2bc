package domain

import (
	"fmt"
	"strings"
	"time"
)

// Identity holds the immutable structural facts about a node. Every REST
// address is derived from it alone.
type Identity struct {
	DomType   DomType `json:"domType"`
	ResType   string  `json:"resType"`
	ResID     string  `json:"resId"`
	Workspace string  `json:"workspace"`
}

// Key identifies the backend entity behind a node; unique within ResType.
func (id Identity) Key() string {
	return id.ResType + "/" + id.ResID
}

func (id Identity) String() string {
	return fmt.Sprintf("%s(%s)", id.DomType, id.Key())
}

// NodeDescriptor is the wire shape of a node in content and roots listings.
type NodeDescriptor struct {
	DomType        DomType      `json:"domType"`
	ResType        string       `json:"resType"`
	ResID          string       `json:"resId"`
	Name           string       `json:"name"`
	Reference      string       `json:"reference,omitempty"`
	Capabilities   Capabilities `json:"capabilities"`
	Synchronized   bool         `json:"synchronized,omitempty"`
	EnabledWizards string       `json:"enabledWizards,omitempty"`
	HasContent     *bool        `json:"hasContent,omitempty"`
}

// Validate checks the fields every descriptor must carry.
func (d *NodeDescriptor) Validate() error {
	if !d.DomType.Valid() {
		return fmt.Errorf("%w: domType %q", ErrInvalidDescriptor, d.DomType)
	}
	if strings.TrimSpace(d.ResType) == "" {
		return fmt.Errorf("%w: missing resType", ErrInvalidDescriptor)
	}
	if strings.TrimSpace(d.ResID) == "" {
		return fmt.Errorf("%w: missing resId", ErrInvalidDescriptor)
	}
	return nil
}

// Entity is a backend record of one element of the containment graph.
type Entity struct {
	ID             string    `json:"id" db:"id"`
	LibraryID      string    `json:"library_id" db:"library_id"`
	ParentID       *string   `json:"parent_id,omitempty" db:"parent_id"`
	DomType        DomType   `json:"dom_type" db:"dom_type"`
	ResType        string    `json:"res_type" db:"res_type"`
	Name           string    `json:"name" db:"name"`
	Reference      string    `json:"reference" db:"reference"`
	Position       int       `json:"position" db:"position"`
	Synchronized   bool      `json:"synchronized" db:"synchronized"`
	Permissions    string    `json:"permissions" db:"permissions"`
	EnabledWizards string    `json:"enabled_wizards" db:"enabled_wizards"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`
}

// IsLibrary reports whether the entity is a library root.
func (e *Entity) IsLibrary() bool {
	return e.ParentID == nil
}

// Descriptor renders the entity for content listings. hasContent is supplied
// by the caller since it depends on sibling rows.
func (e *Entity) Descriptor(hasContent bool) NodeDescriptor {
	d := NodeDescriptor{
		DomType:      e.DomType,
		ResType:      e.ResType,
		ResID:        e.ID,
		Name:         e.Name,
		Reference:    e.Reference,
		Capabilities: ParseCapabilities(e.Permissions),
		Synchronized: e.Synchronized,
		HasContent:   &hasContent,
	}
	if e.IsLibrary() {
		d.EnabledWizards = e.EnabledWizards
	}
	return d
}

// CopyNodesRequest is the request body for copy endpoints.
type CopyNodesRequest struct {
	NodeIDs []string `json:"nodeIds"`
}

// MoveResult is returned by the move endpoint.
type MoveResult struct {
	Moved               []string `json:"moved"`
	SynchronizedCleared []string `json:"synchronizedCleared,omitempty"`
}

// DeleteResult is returned by delete endpoints.
type DeleteResult struct {
	Removed              []string `json:"removed"`
	RemovedFromIteration bool     `json:"removedFromIteration,omitempty"`
}

// ChangeOp names the mutation behind a ChangeNotice.
type ChangeOp string

const (
	ChangeCreate ChangeOp = "create"
	ChangeCopy   ChangeOp = "copy"
	ChangeMove   ChangeOp = "move"
	ChangeDelete ChangeOp = "delete"
)

// ChangeNotice tells watchers which containers of a workspace have new
// content. Parents lists container ids; an empty id stands for the
// workspace's library list.
type ChangeNotice struct {
	Workspace string    `json:"workspace"`
	Op        ChangeOp  `json:"op"`
	Parents   []string  `json:"parents"`
	Nodes     []string  `json:"nodes"`
	At        time.Time `json:"at"`
}
