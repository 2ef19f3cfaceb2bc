package handler

import (
	"net/http"
	"strings"

	"github.com/bcnelson/workspace-tree/internal/domain"
	"github.com/bcnelson/workspace-tree/internal/service"
	"github.com/bcnelson/workspace-tree/internal/validation"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

const browserSuffix = "-browser"

// NodeHandler serves the workspace browser endpoints.
type NodeHandler struct {
	svc    *service.TreeService
	logger zerolog.Logger
}

// NewNodeHandler creates a new NodeHandler.
func NewNodeHandler(svc *service.TreeService, logger zerolog.Logger) *NodeHandler {
	return &NodeHandler{svc: svc, logger: logger}
}

// workspace extracts "requirement" from a "/requirement-browser/..." path.
func workspace(r *http.Request) (string, error) {
	segment := chi.URLParam(r, "browser")
	ws, ok := strings.CutSuffix(segment, browserSuffix)
	if !ok {
		return "", domain.ErrNotFound
	}
	if err := validation.ValidateWorkspace(ws); err != nil {
		return "", validation.NewValidationError("workspace", ws, err.Error())
	}
	return ws, nil
}

// Libraries lists the library roots of a workspace.
func (h *NodeHandler) Libraries(w http.ResponseWriter, r *http.Request) {
	ws, err := workspace(r)
	if err != nil {
		handleError(w, h.logger, err)
		return
	}
	libs, err := h.svc.Libraries(r.Context(), ws)
	if err != nil {
		handleError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, libs)
}

// Content lists the children of one node.
func (h *NodeHandler) Content(w http.ResponseWriter, r *http.Request) {
	ws, err := workspace(r)
	if err != nil {
		handleError(w, h.logger, err)
		return
	}
	semiType, id, err := urlParams(r)
	if err != nil {
		handleError(w, h.logger, err)
		return
	}
	content, err := h.svc.Content(r.Context(), ws, semiType, id)
	if err != nil {
		handleError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, content)
}

// Copy returns the handler for one copy endpoint. suffix is the route tail
// it is mounted on, e.g. "/content/new".
func (h *NodeHandler) Copy(suffix string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ws, err := workspace(r)
		if err != nil {
			handleError(w, h.logger, err)
			return
		}
		semiType, id, err := urlParams(r)
		if err != nil {
			handleError(w, h.logger, err)
			return
		}

		var req domain.CopyNodesRequest
		if err := decodeJSON(r, &req); err != nil {
			respondError(w, http.StatusBadRequest, domain.ErrCodeInvalidInput, "invalid request body")
			return
		}
		if err := validation.ValidateCopyRequest(&req); err != nil {
			handleError(w, h.logger, err)
			return
		}

		copies, err := h.svc.Copy(r.Context(), ws, semiType, id, suffix, req.NodeIDs)
		if err != nil {
			handleError(w, h.logger, err)
			return
		}
		respondJSON(w, http.StatusCreated, copies)
	}
}

// Move returns the handler that reparents the nodes named in the path under
// the addressed node. suffix is the route segment before the node ids.
func (h *NodeHandler) Move(suffix string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ws, err := workspace(r)
		if err != nil {
			handleError(w, h.logger, err)
			return
		}
		semiType, id, err := urlParams(r)
		if err != nil {
			handleError(w, h.logger, err)
			return
		}
		nodeIDs, err := validation.ParseNodeIDs("nodeIds", chi.URLParam(r, "nodeIds"))
		if err != nil {
			handleError(w, h.logger, err)
			return
		}
		position, err := validation.ParsePosition(chi.URLParam(r, "position"))
		if err != nil {
			handleError(w, h.logger, err)
			return
		}

		result, err := h.svc.Move(r.Context(), ws, semiType, id, suffix, nodeIDs, position)
		if err != nil {
			handleError(w, h.logger, err)
			return
		}
		respondJSON(w, http.StatusOK, result)
	}
}

// Delete returns the handler for one delete endpoint. suffix is the route
// tail it is mounted on, e.g. "/test-suites".
func (h *NodeHandler) Delete(suffix string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ws, err := workspace(r)
		if err != nil {
			handleError(w, h.logger, err)
			return
		}
		ids, err := validation.ParseNodeIDs("ids", chi.URLParam(r, "ids"))
		if err != nil {
			handleError(w, h.logger, err)
			return
		}
		removeFromIter, err := validation.ParseFlag("remove_from_iter", r.URL.Query().Get("remove_from_iter"))
		if err != nil {
			handleError(w, h.logger, err)
			return
		}

		result, err := h.svc.Delete(r.Context(), ws, suffix, ids, removeFromIter)
		if err != nil {
			handleError(w, h.logger, err)
			return
		}
		respondJSON(w, http.StatusOK, result)
	}
}
