package handlers

import (
	"net/http"
	"strconv"
	"time"

	"kidsactivity/internal/models"
	"kidsactivity/internal/service"
)

// ShareHandler handles share relationship HTTP requests
type ShareHandler struct {
	sharingService *service.SharingService
}

// NewShareHandler creates a new share handler
func NewShareHandler(sharingService *service.SharingService) *ShareHandler {
	return &ShareHandler{sharingService: sharingService}
}

// shareChildRequest carries per-child visibility flags. Omitted flags fall
// back to the conservative defaults rather than to false across the board.
type shareChildRequest struct {
	ChildID           int64 `json:"childId"`
	CanViewInterested *bool `json:"canViewInterested"`
	CanViewRegistered *bool `json:"canViewRegistered"`
	CanViewCompleted  *bool `json:"canViewCompleted"`
	CanViewNotes      *bool `json:"canViewNotes"`
}

func (r shareChildRequest) toConfig() service.ChildShareConfig {
	defaults := models.DefaultSharePermission()
	cfg := service.ChildShareConfig{
		ChildID:           r.ChildID,
		CanViewInterested: defaults.CanViewInterested,
		CanViewRegistered: defaults.CanViewRegistered,
		CanViewCompleted:  defaults.CanViewCompleted,
		CanViewNotes:      defaults.CanViewNotes,
	}
	if r.CanViewInterested != nil {
		cfg.CanViewInterested = *r.CanViewInterested
	}
	if r.CanViewRegistered != nil {
		cfg.CanViewRegistered = *r.CanViewRegistered
	}
	if r.CanViewCompleted != nil {
		cfg.CanViewCompleted = *r.CanViewCompleted
	}
	if r.CanViewNotes != nil {
		cfg.CanViewNotes = *r.CanViewNotes
	}
	return cfg
}

type configureShareRequest struct {
	SharedWithUserID int64               `json:"sharedWithUserId"`
	PermissionLevel  string              `json:"permissionLevel"`
	ExpiresAt        *time.Time          `json:"expiresAt"`
	Children         []shareChildRequest `json:"children"`
}

// ConfigureShare creates or fully replaces a share relationship
func (h *ShareHandler) ConfigureShare(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())

	var req configureShareRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	cfg := service.ShareConfig{
		SharedWithUserID: req.SharedWithUserID,
		PermissionLevel:  models.PermissionLevel(req.PermissionLevel),
		ExpiresAt:        req.ExpiresAt,
	}
	for _, c := range req.Children {
		cfg.Children = append(cfg.Children, c.toConfig())
	}

	share, err := h.sharingService.ConfigureSharing(r.Context(), user.ID, cfg)
	if err != nil {
		respondServiceError(w, "Error configuring share", err)
		return
	}
	writeJSON(w, http.StatusOK, toShareView(share))
}

// ListShares returns every share the user has configured
func (h *ShareHandler) ListShares(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())

	shares, err := h.sharingService.GetUserShares(user.ID)
	if err != nil {
		respondServiceError(w, "Error listing shares", err)
		return
	}

	views := make([]shareView, 0, len(shares))
	for i := range shares {
		views = append(views, toShareView(&shares[i]))
	}
	writeJSON(w, http.StatusOK, views)
}

// GetShare returns one share the user owns
func (h *ShareHandler) GetShare(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	shareID, err := pathID(r, "id")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid share ID"})
		return
	}

	share, err := h.sharingService.GetShare(user.ID, shareID)
	if err != nil {
		respondServiceError(w, "Error getting share", err)
		return
	}
	writeJSON(w, http.StatusOK, toShareView(share))
}

type updateShareRequest struct {
	PermissionLevel *string    `json:"permissionLevel"`
	ExpiresAt       *time.Time `json:"expiresAt"`
	ClearExpiresAt  bool       `json:"clearExpiresAt"`
	IsActive        *bool      `json:"isActive"`
}

// UpdateShare applies a partial update to a share
func (h *ShareHandler) UpdateShare(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	shareID, err := pathID(r, "id")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid share ID"})
		return
	}

	var req updateShareRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	update := service.ShareUpdate{
		ExpiresAt:      req.ExpiresAt,
		ClearExpiresAt: req.ClearExpiresAt,
		IsActive:       req.IsActive,
	}
	if req.PermissionLevel != nil {
		level := models.PermissionLevel(*req.PermissionLevel)
		update.PermissionLevel = &level
	}

	share, err := h.sharingService.UpdateShare(r.Context(), user.ID, shareID, update)
	if err != nil {
		respondServiceError(w, "Error updating share", err)
		return
	}
	writeJSON(w, http.StatusOK, toShareView(share))
}

// RevokeShare deactivates a share
func (h *ShareHandler) RevokeShare(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	shareID, err := pathID(r, "id")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid share ID"})
		return
	}

	if err := h.sharingService.RevokeShare(r.Context(), user.ID, shareID); err != nil {
		respondServiceError(w, "Error revoking share", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AddChildToShare adds one child profile to an existing share
func (h *ShareHandler) AddChildToShare(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	shareID, err := pathID(r, "id")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid share ID"})
		return
	}

	var req shareChildRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	perm, err := h.sharingService.AddChildToShare(user.ID, shareID, req.toConfig())
	if err != nil {
		respondServiceError(w, "Error adding child to share", err)
		return
	}
	writeJSON(w, http.StatusCreated, toPermissionView(*perm))
}

// UpdateChildPermissions rewrites one child's visibility flags
func (h *ShareHandler) UpdateChildPermissions(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	shareID, err := pathID(r, "id")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid share ID"})
		return
	}
	childID, err := pathID(r, "childId")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid child ID"})
		return
	}

	var req shareChildRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	req.ChildID = childID

	perm, err := h.sharingService.UpdateChildPermissions(user.ID, shareID, childID, req.toConfig())
	if err != nil {
		respondServiceError(w, "Error updating child permissions", err)
		return
	}
	writeJSON(w, http.StatusOK, toPermissionView(*perm))
}

// RemoveChildFromShare removes one child profile from a share
func (h *ShareHandler) RemoveChildFromShare(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	shareID, err := pathID(r, "id")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid share ID"})
		return
	}
	childID, err := pathID(r, "childId")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid child ID"})
		return
	}

	if err := h.sharingService.RemoveChildFromShare(user.ID, shareID, childID); err != nil {
		respondServiceError(w, "Error removing child from share", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListSharedChildren returns the viewer's filtered projection of everything
// shared with them, optionally narrowed to one owner.
func (h *ShareHandler) ListSharedChildren(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())

	var ownerID int64
	if raw := r.URL.Query().Get("owner"); raw != "" {
		var err error
		ownerID, err = strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid owner ID"})
			return
		}
	}

	shared, err := h.sharingService.GetSharedChildren(user.ID, ownerID)
	if err != nil {
		respondServiceError(w, "Error listing shared children", err)
		return
	}

	views := make([]sharedChildView, 0, len(shared))
	for _, sc := range shared {
		views = append(views, toSharedChildView(sc))
	}
	writeJSON(w, http.StatusOK, views)
}
