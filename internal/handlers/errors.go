package handlers

import (
	"errors"
	"log"
	"net/http"

	"kidsactivity/internal/security"
	"kidsactivity/internal/service"
	"kidsactivity/internal/validation"
)

// asValidationError unwraps a validation error whether it was returned by
// value or by pointer.
func asValidationError(err error) (*validation.ValidationError, bool) {
	var pe *validation.ValidationError
	if errors.As(err, &pe) {
		return pe, true
	}
	var ve validation.ValidationError
	if errors.As(err, &ve) {
		return &ve, true
	}
	return nil, false
}

// statusForError maps service-layer errors onto HTTP status codes. Anything
// unrecognized is a 500.
func statusForError(err error) int {
	if _, ok := asValidationError(err); ok {
		return http.StatusUnprocessableEntity
	}

	switch {
	case errors.Is(err, service.ErrShareNotFound),
		errors.Is(err, service.ErrChildNotFound),
		errors.Is(err, service.ErrViewerNotFound),
		errors.Is(err, service.ErrProfileNotFound),
		errors.Is(err, service.ErrInvitationNotFound),
		errors.Is(err, service.ErrActivityNotFound),
		errors.Is(err, service.ErrChildActivityNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrNotShareOwner),
		errors.Is(err, service.ErrChildNotOwned),
		errors.Is(err, service.ErrNotInvitationSender),
		errors.Is(err, service.ErrInvitationEmailMismatch):
		return http.StatusForbidden
	case errors.Is(err, service.ErrSelfShare),
		errors.Is(err, service.ErrSelfInvitation),
		errors.Is(err, service.ErrDuplicateChild),
		errors.Is(err, service.ErrDuplicateInvitation),
		errors.Is(err, service.ErrAlreadySharing),
		errors.Is(err, service.ErrDuplicateActivity),
		errors.Is(err, service.ErrInvitationNotPending),
		errors.Is(err, service.ErrEmailTaken):
		return http.StatusConflict
	case errors.Is(err, service.ErrInvitationExpired):
		return http.StatusGone
	case errors.Is(err, service.ErrInvitationLimitReached):
		return http.StatusTooManyRequests
	case errors.Is(err, service.ErrInvalidCredentials),
		errors.Is(err, service.ErrOAuthTokenInvalid),
		errors.Is(err, security.ErrInvalidToken):
		return http.StatusUnauthorized
	}
	return http.StatusInternalServerError
}

// respondServiceError translates a service error into a JSON error response.
// Internal errors are logged with context; everything else is returned to the
// client verbatim.
func respondServiceError(w http.ResponseWriter, logMsg string, err error) {
	status := statusForError(err)
	if status == http.StatusInternalServerError {
		log.Printf("%s: %v", logMsg, err)
		writeJSON(w, status, errorResponse{Error: "internal server error"})
		return
	}

	resp := errorResponse{Error: err.Error()}
	if ve, ok := asValidationError(err); ok {
		resp.Field = ve.Field
		resp.Error = ve.Message
	}
	writeJSON(w, status, resp)
}
