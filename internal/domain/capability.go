package domain

import "strings"

// Capabilities holds the per-node permission flags granted by the backend.
type Capabilities struct {
	Readable                    bool `json:"readable"`
	Editable                    bool `json:"editable"`
	Creatable                   bool `json:"creatable"`
	Deletable                   bool `json:"deletable"`
	Executable                  bool `json:"executable"`
	Exportable                  bool `json:"exportable"`
	Importable                  bool `json:"importable"`
	Manageable                  bool `json:"manageable"`
	MilestoneEditable           bool `json:"milestone-editable"`
	MilestoneCreatableDeletable bool `json:"milestone-creatable-deletable"`
}

// capabilityFlags maps the stored flag names to their struct fields.
var capabilityFlags = []struct {
	name string
	get  func(*Capabilities) *bool
}{
	{"readable", func(c *Capabilities) *bool { return &c.Readable }},
	{"editable", func(c *Capabilities) *bool { return &c.Editable }},
	{"creatable", func(c *Capabilities) *bool { return &c.Creatable }},
	{"deletable", func(c *Capabilities) *bool { return &c.Deletable }},
	{"executable", func(c *Capabilities) *bool { return &c.Executable }},
	{"exportable", func(c *Capabilities) *bool { return &c.Exportable }},
	{"importable", func(c *Capabilities) *bool { return &c.Importable }},
	{"manageable", func(c *Capabilities) *bool { return &c.Manageable }},
	{"milestone-editable", func(c *Capabilities) *bool { return &c.MilestoneEditable }},
	{"milestone-creatable-deletable", func(c *Capabilities) *bool { return &c.MilestoneCreatableDeletable }},
}

// ParseCapabilities reads a comma-separated flag list. Unknown flags are ignored.
func ParseCapabilities(csv string) Capabilities {
	var c Capabilities
	for _, raw := range strings.Split(csv, ",") {
		name := strings.TrimSpace(raw)
		for _, f := range capabilityFlags {
			if f.name == name {
				*f.get(&c) = true
			}
		}
	}
	return c
}

// String renders the set flags as a comma-separated list in a stable order.
func (c Capabilities) String() string {
	var names []string
	for _, f := range capabilityFlags {
		if *f.get(&c) {
			names = append(names, f.name)
		}
	}
	return strings.Join(names, ",")
}

// Flag returns the value of a flag by its stored name.
func (c Capabilities) Flag(name string) (bool, bool) {
	for _, f := range capabilityFlags {
		if f.name == name {
			return *f.get(&c), true
		}
	}
	return false, false
}

// AllCapabilities grants every flag.
func AllCapabilities() Capabilities {
	var c Capabilities
	for _, f := range capabilityFlags {
		*f.get(&c) = true
	}
	return c
}

// Permission is a logical permission checked against a node's capabilities.
type Permission string

const (
	PermRead       Permission = "READ"
	PermWrite      Permission = "WRITE"
	PermCreate     Permission = "CREATE"
	PermDelete     Permission = "DELETE"
	PermExecute    Permission = "EXECUTE"
	PermExport     Permission = "EXPORT"
	PermImport     Permission = "IMPORT"
	PermManagement Permission = "MANAGEMENT"
	PermAny        Permission = "ANY"
)

// ParsePermission normalizes a permission name. Unknown names come back as
// they are; Granted treats them as not authorized.
func ParsePermission(s string) Permission {
	return Permission(strings.ToUpper(strings.TrimSpace(s)))
}

// Granted reports whether c authorizes p. ANY always does; unknown
// permissions never do.
func (c Capabilities) Granted(p Permission) bool {
	switch p {
	case PermAny:
		return true
	case PermRead:
		return c.Readable
	case PermWrite:
		return c.Editable
	case PermCreate:
		return c.Creatable
	case PermDelete:
		return c.Deletable
	case PermExecute:
		return c.Executable
	case PermExport:
		return c.Exportable
	case PermImport:
		return c.Importable
	case PermManagement:
		return c.Manageable
	default:
		return false
	}
}
