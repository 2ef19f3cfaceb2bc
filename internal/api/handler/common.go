package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/bcnelson/workspace-tree/internal/domain"
	"github.com/bcnelson/workspace-tree/internal/validation"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// respondJSON writes a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// respondError writes a JSON error response.
func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, &domain.APIError{
		Code:      status,
		ErrorCode: code,
		Message:   message,
	})
}

// handleError converts domain errors to HTTP errors.
func handleError(w http.ResponseWriter, logger zerolog.Logger, err error) {
	var (
		unsupported *domain.UnsupportedOperationError
		verr        *validation.ValidationError
		verrs       validation.ValidationErrors
	)
	switch {
	case errors.As(err, &verrs):
		respondValidationErrors(w, verrs)
	case errors.As(err, &verr):
		respondValidationErrors(w, validation.ValidationErrors{verr})
	case errors.As(err, &unsupported):
		respondError(w, http.StatusMethodNotAllowed, domain.ErrCodeUnsupportedOperation, unsupported.Error())
	case errors.Is(err, domain.ErrNotFound):
		respondError(w, http.StatusNotFound, domain.ErrCodeResourceNotFound, "not found")
	case errors.Is(err, domain.ErrAlreadyExists):
		respondError(w, http.StatusConflict, domain.ErrCodeResourceAlreadyExists, "already exists")
	case errors.Is(err, domain.ErrNotAccepted), errors.Is(err, domain.ErrRootMove):
		respondError(w, http.StatusUnprocessableEntity, domain.ErrCodeNotAccepted, err.Error())
	case errors.Is(err, domain.ErrNotContainer):
		respondError(w, http.StatusUnprocessableEntity, domain.ErrCodeNotAccepted, err.Error())
	case errors.Is(err, domain.ErrForbidden):
		respondError(w, http.StatusForbidden, domain.ErrCodeForbidden, err.Error())
	case errors.Is(err, domain.ErrInvalidInput):
		respondError(w, http.StatusBadRequest, domain.ErrCodeInvalidInput, "invalid input")
	default:
		logger.Error().Err(err).Msg("request failed")
		respondError(w, http.StatusInternalServerError, domain.ErrCodeInternalError, "internal server error")
	}
}

// decodeJSON decodes JSON from request body.
func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return domain.ErrInvalidInput
	}
	return nil
}

// respondValidationErrors writes a JSON response for validation errors.
func respondValidationErrors(w http.ResponseWriter, errs validation.ValidationErrors) {
	respondJSON(w, http.StatusBadRequest, map[string]any{
		"code":      http.StatusBadRequest,
		"errorCode": domain.ErrCodeValidationError,
		"errors":    errs,
	})
}

// urlParams reads the path parameters shared by the node-addressed routes.
func urlParams(r *http.Request) (semiType, id string, err error) {
	semiType = chi.URLParam(r, "semiType")
	id = chi.URLParam(r, "id")
	if err := validation.ValidateNodeID(id); err != nil {
		return "", "", validation.NewValidationError("id", id, err.Error())
	}
	return semiType, id, nil
}
