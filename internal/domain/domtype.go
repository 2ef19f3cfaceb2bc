package domain

import (
	"fmt"
	"strings"
)

// DomType is the structural kind of a tree node. The set is closed.
type DomType string

const (
	DomLibrary     DomType = "library"
	DomDrive       DomType = "drive"
	DomFolder      DomType = "folder"
	DomRequirement DomType = "requirement"
	DomTestCase    DomType = "test-case"
	DomCampaign    DomType = "campaign"
	DomIteration   DomType = "iteration"
	DomTestSuite   DomType = "test-suite"
	DomDashboard   DomType = "dashboard"
	DomReport      DomType = "report"
	DomChart       DomType = "chart"
)

// AllDomTypes lists every DomType in declaration order.
var AllDomTypes = []DomType{
	DomLibrary,
	DomDrive,
	DomFolder,
	DomRequirement,
	DomTestCase,
	DomCampaign,
	DomIteration,
	DomTestSuite,
	DomDashboard,
	DomReport,
	DomChart,
}

// Valid reports whether d is one of the known kinds.
func (d DomType) Valid() bool {
	switch d {
	case DomLibrary, DomDrive, DomFolder, DomRequirement, DomTestCase, DomCampaign,
		DomIteration, DomTestSuite, DomDashboard, DomReport, DomChart:
		return true
	}
	return false
}

// ParseDomType parses a domType name, case-insensitively.
func ParseDomType(s string) (DomType, error) {
	d := DomType(strings.ToLower(strings.TrimSpace(s)))
	if !d.Valid() {
		return "", fmt.Errorf("%w: unknown domType %q", ErrInvalidInput, s)
	}
	return d, nil
}

// SemiSpecializedType returns the path segment used for content listings.
// Folders and drives share one generic endpoint per workspace; every other
// kind uses its own REST type name.
func SemiSpecializedType(d DomType, resType string) string {
	switch d {
	case DomFolder:
		return "folders"
	case DomDrive:
		return "drives"
	default:
		return resType
	}
}

const librarySuffix = "-libraries"

// WorkspaceFromLibraryResType derives the workspace name from a library's
// REST type, e.g. "requirement-libraries" -> "requirement".
func WorkspaceFromLibraryResType(resType string) (string, bool) {
	ws, ok := strings.CutSuffix(resType, librarySuffix)
	if !ok || ws == "" {
		return "", false
	}
	return ws, true
}

// LibraryResType is the inverse of WorkspaceFromLibraryResType.
func LibraryResType(workspace string) string {
	return workspace + librarySuffix
}
