package domain

import (
	"errors"
	"fmt"
)

// Common errors used throughout the application.
var (
	ErrNotFound          = errors.New("not found")
	ErrAlreadyExists     = errors.New("already exists")
	ErrInvalidInput      = errors.New("invalid input")
	ErrNotAccepted       = errors.New("target does not accept these nodes as content")
	ErrNotContainer      = errors.New("node cannot contain other nodes")
	ErrInvalidDescriptor = errors.New("invalid node descriptor")
	ErrRootMove          = errors.New("library nodes cannot be reparented")
	ErrForbidden         = errors.New("operation not permitted by node capabilities")
)

// Error codes for standardized API error responses.
const (
	ErrCodeResourceNotFound      = "RESOURCE_NOT_FOUND"
	ErrCodeResourceAlreadyExists = "RESOURCE_ALREADY_EXISTS"
	ErrCodeInvalidInput          = "INVALID_INPUT"
	ErrCodeNotAccepted           = "NOT_ACCEPTED"
	ErrCodeForbidden             = "FORBIDDEN"
	ErrCodeValidationError       = "VALIDATION_ERROR"
	ErrCodeUnsupportedOperation  = "UNSUPPORTED_OPERATION"
	ErrCodeInternalError         = "INTERNAL_ERROR"
)

// APIError represents an error response from the API.
type APIError struct {
	Code      int    `json:"code"`
	ErrorCode string `json:"errorCode,omitempty"`
	Message   string `json:"message"`
	Details   string `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return e.Message
}

// UnsupportedOperationError reports a copy, move or delete address requested
// for a node type that has no template for it. Legitimate callers check the
// type table first, so this is raised as a panic value rather than returned.
type UnsupportedOperationError struct {
	Op      string
	DomType DomType
}

func (e *UnsupportedOperationError) Error() string {
	return fmt.Sprintf("unsupported operation: %s is not available for %q nodes", e.Op, e.DomType)
}

// ConfigError wraps everything wrong with a type table. It is fatal at
// initialization.
type ConfigError struct {
	Source string
	Err    error
}

func (e *ConfigError) Error() string {
	if e.Source == "" {
		return fmt.Sprintf("invalid type table: %v", e.Err)
	}
	return fmt.Sprintf("invalid type table %s: %v", e.Source, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }
