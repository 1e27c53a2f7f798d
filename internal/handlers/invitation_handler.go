package handlers

import (
	"net/http"

	"kidsactivity/internal/service"
)

// InvitationHandler handles sharing invitation HTTP requests
type InvitationHandler struct {
	invitationService *service.InvitationService
}

// NewInvitationHandler creates a new invitation handler
func NewInvitationHandler(invitationService *service.InvitationService) *InvitationHandler {
	return &InvitationHandler{invitationService: invitationService}
}

type createInvitationRequest struct {
	RecipientEmail string `json:"recipientEmail"`
	Message        string `json:"message"`
	ExpiresInDays  int    `json:"expiresInDays"` // 0 means the server default
}

// CreateInvitation sends a new sharing invitation
func (h *InvitationHandler) CreateInvitation(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())

	var req createInvitationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	invitation, err := h.invitationService.CreateInvitation(r.Context(), user.ID, req.RecipientEmail, req.Message, req.ExpiresInDays)
	if err != nil {
		respondServiceError(w, "Error creating invitation", err)
		return
	}
	writeJSON(w, http.StatusCreated, toInvitationView(*invitation))
}

// GetInvitation returns one invitation by token, visible only to its sender
// or addressed recipient.
func (h *InvitationHandler) GetInvitation(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	token := r.PathValue("token")

	invitation, err := h.invitationService.GetInvitationByToken(user.ID, token)
	if err != nil {
		respondServiceError(w, "Error getting invitation", err)
		return
	}
	writeJSON(w, http.StatusOK, toInvitationView(*invitation))
}

// AcceptInvitation resolves an invitation and returns the resulting share
func (h *InvitationHandler) AcceptInvitation(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	token := r.PathValue("token")

	share, err := h.invitationService.AcceptInvitation(r.Context(), user.ID, token)
	if err != nil {
		respondServiceError(w, "Error accepting invitation", err)
		return
	}
	writeJSON(w, http.StatusOK, toShareView(share))
}

// DeclineInvitation resolves an invitation without creating a share
func (h *InvitationHandler) DeclineInvitation(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	token := r.PathValue("token")

	if err := h.invitationService.DeclineInvitation(r.Context(), user.ID, token); err != nil {
		respondServiceError(w, "Error declining invitation", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CancelInvitation withdraws a pending invitation the user sent
func (h *InvitationHandler) CancelInvitation(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	invitationID, err := pathID(r, "id")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid invitation ID"})
		return
	}

	if err := h.invitationService.CancelInvitation(user.ID, invitationID); err != nil {
		respondServiceError(w, "Error cancelling invitation", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListSentInvitations returns every invitation the user has sent
func (h *InvitationHandler) ListSentInvitations(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())

	invitations, err := h.invitationService.GetSentInvitations(user.ID)
	if err != nil {
		respondServiceError(w, "Error listing sent invitations", err)
		return
	}
	writeJSON(w, http.StatusOK, toInvitationViews(invitations))
}

// ListReceivedInvitations returns live pending invitations addressed to the
// user's email.
func (h *InvitationHandler) ListReceivedInvitations(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())

	invitations, err := h.invitationService.GetReceivedInvitations(user.ID)
	if err != nil {
		respondServiceError(w, "Error listing received invitations", err)
		return
	}
	writeJSON(w, http.StatusOK, toInvitationViews(invitations))
}
