// Package validation checks the path segments and bodies accepted by the
// tree REST endpoints before they reach the service layer.
package validation

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/bcnelson/workspace-tree/internal/domain"
)

const (
	// MaxNodeIDLength bounds a single entity id.
	MaxNodeIDLength = 64
	// MaxBatchSize bounds the number of ids in one move, copy or delete.
	MaxBatchSize = 500
)

// isAlpha returns true if the byte is an ASCII letter.
func isAlpha(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

// isNum returns true if the byte is an ASCII digit.
func isNum(b byte) bool {
	return b >= '0' && b <= '9'
}

func isAlphaNum(b byte) bool {
	return isAlpha(b) || isNum(b)
}

// ValidateNodeID accepts letters, digits, hyphens and underscores. Commas
// and slashes would break the batch path segments.
func ValidateNodeID(id string) error {
	if id == "" {
		return fmt.Errorf("node id must not be empty")
	}
	if len(id) > MaxNodeIDLength {
		return fmt.Errorf("node id must be at most %d characters", MaxNodeIDLength)
	}
	for _, b := range []byte(id) {
		if !isAlphaNum(b) && b != '-' && b != '_' {
			return fmt.Errorf("node id can only contain letters, numbers, hyphens or underscores")
		}
	}
	return nil
}

// ValidateWorkspace accepts names such as "requirement" or "custom-report".
func ValidateWorkspace(ws string) error {
	if ws == "" {
		return fmt.Errorf("workspace must not be empty")
	}
	if !isAlpha(ws[0]) {
		return fmt.Errorf("workspace must start with a letter")
	}
	for _, b := range []byte(ws) {
		if !isAlpha(b) && !isNum(b) && b != '-' {
			return fmt.Errorf("workspace can only contain letters, numbers, or hyphens")
		}
	}
	return nil
}

// ValidateNodeIDs checks a batch: non-empty, bounded, valid and distinct.
func ValidateNodeIDs(field string, ids []string) ValidationErrors {
	var errs ValidationErrors
	if len(ids) == 0 {
		errs.Add(field, "", "at least one node id is required")
		return errs
	}
	if len(ids) > MaxBatchSize {
		errs.Add(field, strconv.Itoa(len(ids)), fmt.Sprintf("at most %d node ids per request", MaxBatchSize))
		return errs
	}
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if err := ValidateNodeID(id); err != nil {
			errs.Add(field, id, err.Error())
			continue
		}
		if seen[id] {
			errs.Add(field, id, "duplicate node id")
		}
		seen[id] = true
	}
	return errs
}

// ParseNodeIDs splits a comma-separated path segment and validates it.
func ParseNodeIDs(field, raw string) ([]string, error) {
	var ids []string
	if raw != "" {
		ids = strings.Split(raw, ",")
	}
	if errs := ValidateNodeIDs(field, ids); errs.HasErrors() {
		return nil, errs
	}
	return ids, nil
}

// ParsePosition reads a move position. -1 appends.
func ParsePosition(raw string) (int, error) {
	pos, err := strconv.Atoi(raw)
	if err != nil {
		return 0, NewValidationError("position", raw, "must be an integer")
	}
	if pos < -1 {
		return 0, NewValidationError("position", raw, "must be -1 or greater")
	}
	return pos, nil
}

// ParseFlag reads an optional boolean query flag. Absent means false.
func ParseFlag(field, raw string) (bool, error) {
	switch strings.ToLower(raw) {
	case "", "false":
		return false, nil
	case "true":
		return true, nil
	}
	return false, NewValidationError(field, raw, "must be true or false")
}

// ValidateCopyRequest checks the body of a copy endpoint.
func ValidateCopyRequest(req *domain.CopyNodesRequest) error {
	return ValidateNodeIDs("nodeIds", req.NodeIDs).Err()
}
