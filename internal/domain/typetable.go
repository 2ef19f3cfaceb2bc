package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"go.uber.org/multierr"
)

// TypeRule is the declarative description of one DomType: which kinds it may
// contain and which REST suffixes its copy, move and delete addresses use.
// An empty suffix means the operation has no address for this kind.
type TypeRule struct {
	Root            bool      `json:"root,omitempty"`
	AllowedChildren []DomType `json:"allowedChildren,omitempty"`
	CopySuffix      string    `json:"copySuffix,omitempty"`
	MoveSuffix      string    `json:"moveSuffix,omitempty"`
	DeleteSuffix    string    `json:"deleteSuffix,omitempty"`
	DeleteFlag      string    `json:"deleteFlag,omitempty"`
}

// TypeTable maps every DomType to its rule.
type TypeTable map[DomType]TypeRule

var contentKinds = []DomType{DomFolder, DomRequirement, DomTestCase, DomCampaign, DomDashboard, DomReport, DomChart}

// DefaultTypeTable returns the built-in compatibility table.
func DefaultTypeTable() TypeTable {
	return TypeTable{
		DomLibrary: {Root: true, AllowedChildren: slices.Clone(contentKinds)},
		DomDrive: {
			Root:            true,
			AllowedChildren: slices.Clone(contentKinds),
			CopySuffix:      "/content/new",
			MoveSuffix:      "/content",
		},
		DomFolder: {
			AllowedChildren: slices.Clone(contentKinds),
			CopySuffix:      "/content/new",
			MoveSuffix:      "/content",
			DeleteSuffix:    "/content",
		},
		DomRequirement: {
			AllowedChildren: []DomType{DomRequirement},
			CopySuffix:      "/content/new",
			MoveSuffix:      "/content",
			DeleteSuffix:    "/content",
		},
		DomTestCase: {DeleteSuffix: "/content"},
		DomCampaign: {
			AllowedChildren: []DomType{DomIteration},
			CopySuffix:      "/iterations/new",
			MoveSuffix:      "/content",
			DeleteSuffix:    "/content",
		},
		DomIteration: {
			AllowedChildren: []DomType{DomTestSuite},
			CopySuffix:      "/test-suites/new",
			DeleteSuffix:    "/iterations",
		},
		DomTestSuite: {DeleteSuffix: "/test-suites", DeleteFlag: "remove_from_iter"},
		DomDashboard: {DeleteSuffix: "/content"},
		DomReport:    {DeleteSuffix: "/content"},
		DomChart:     {DeleteSuffix: "/content"},
	}
}

// LoadTypeTable reads a table from a JSON file and validates it. An empty
// path yields the default table.
func LoadTypeTable(path string) (TypeTable, error) {
	if path == "" {
		return DefaultTypeTable(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ConfigError{Source: path, Err: err}
	}
	var raw map[string]TypeRule
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &ConfigError{Source: path, Err: err}
	}
	table := make(TypeTable, len(raw))
	var errs error
	for name, rule := range raw {
		d, err := ParseDomType(name)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		table[d] = rule
	}
	if errs != nil {
		return nil, &ConfigError{Source: path, Err: errs}
	}
	if err := table.Validate(); err != nil {
		var cerr *ConfigError
		if errors.As(err, &cerr) {
			cerr.Source = path
		}
		return nil, err
	}
	return table, nil
}

// Validate checks that every DomType has a rule and that the rules are
// internally consistent. All problems are reported together.
func (t TypeTable) Validate() error {
	var errs error
	for _, d := range AllDomTypes {
		rule, ok := t[d]
		if !ok {
			errs = multierr.Append(errs, fmt.Errorf("missing rule for %q", d))
			continue
		}
		for _, child := range rule.AllowedChildren {
			if !child.Valid() {
				errs = multierr.Append(errs, fmt.Errorf("%q: unknown child type %q", d, child))
				continue
			}
			if t[child].Root {
				errs = multierr.Append(errs, fmt.Errorf("%q: root type %q cannot be a child", d, child))
			}
		}
		for op, suffix := range map[string]string{"copy": rule.CopySuffix, "move": rule.MoveSuffix, "delete": rule.DeleteSuffix} {
			if suffix != "" && !strings.HasPrefix(suffix, "/") {
				errs = multierr.Append(errs, fmt.Errorf("%q: %s suffix %q must start with '/'", d, op, suffix))
			}
		}
		if len(rule.AllowedChildren) == 0 && (rule.CopySuffix != "" || rule.MoveSuffix != "") {
			errs = multierr.Append(errs, fmt.Errorf("%q: copy and move targets must be able to contain nodes", d))
		}
	}
	if errs != nil {
		return &ConfigError{Err: errs}
	}
	return nil
}

// Rule returns the rule for d; unknown kinds get the zero rule.
func (t TypeTable) Rule(d DomType) TypeRule {
	return t[d]
}

// CanContainNodes reports whether d may ever hold children.
func (t TypeTable) CanContainNodes(d DomType) bool {
	return len(t[d].AllowedChildren) > 0
}

// Allows reports whether a node of kind child may live under a parent of kind parent.
func (t TypeTable) Allows(parent, child DomType) bool {
	return slices.Contains(t[parent].AllowedChildren, child)
}

// IsRoot reports whether d is a library-level kind.
func (t TypeTable) IsRoot(d DomType) bool {
	return t[d].Root
}
