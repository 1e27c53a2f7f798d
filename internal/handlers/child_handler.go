package handlers

import (
	"net/http"
	"strconv"
	"time"

	"kidsactivity/internal/service"
)

// ChildHandler handles child profile HTTP requests
type ChildHandler struct {
	childService *service.ChildService
}

// NewChildHandler creates a new child handler
func NewChildHandler(childService *service.ChildService) *ChildHandler {
	return &ChildHandler{childService: childService}
}

type childRequest struct {
	Name        string     `json:"name"`
	DateOfBirth *time.Time `json:"dateOfBirth"`
}

// CreateChild adds a child to the authenticated user's account
func (h *ChildHandler) CreateChild(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())

	var req childRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	child, err := h.childService.CreateChild(user.ID, req.Name, req.DateOfBirth)
	if err != nil {
		respondServiceError(w, "Error creating child", err)
		return
	}
	writeJSON(w, http.StatusCreated, toChildView(*child))
}

// ListChildren returns the authenticated user's children
func (h *ChildHandler) ListChildren(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())

	children, err := h.childService.GetChildren(user.ID)
	if err != nil {
		respondServiceError(w, "Error listing children", err)
		return
	}
	writeJSON(w, http.StatusOK, toChildViews(children))
}

// GetChild returns one child the user owns
func (h *ChildHandler) GetChild(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	childID, err := pathID(r, "id")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid child ID"})
		return
	}

	child, err := h.childService.GetChild(user.ID, childID)
	if err != nil {
		respondServiceError(w, "Error getting child", err)
		return
	}
	writeJSON(w, http.StatusOK, toChildView(*child))
}

// UpdateChild modifies a child profile
func (h *ChildHandler) UpdateChild(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	childID, err := pathID(r, "id")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid child ID"})
		return
	}

	var req childRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	child, err := h.childService.UpdateChild(user.ID, childID, req.Name, req.DateOfBirth)
	if err != nil {
		respondServiceError(w, "Error updating child", err)
		return
	}
	writeJSON(w, http.StatusOK, toChildView(*child))
}

// DeleteChild soft-deletes a child profile
func (h *ChildHandler) DeleteChild(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	childID, err := pathID(r, "id")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid child ID"})
		return
	}

	if err := h.childService.DeleteChild(user.ID, childID); err != nil {
		respondServiceError(w, "Error deleting child", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// pathID parses a numeric path parameter
func pathID(r *http.Request, name string) (int64, error) {
	return strconv.ParseInt(r.PathValue(name), 10, 64)
}
