package handlers

import (
	"net/http"
	"strconv"
	"time"

	"kidsactivity/internal/models"
	"kidsactivity/internal/service"
)

// ActivityHandler handles catalog and tracked-activity HTTP requests
type ActivityHandler struct {
	activityService *service.ActivityService
}

// NewActivityHandler creates a new activity handler
func NewActivityHandler(activityService *service.ActivityService) *ActivityHandler {
	return &ActivityHandler{activityService: activityService}
}

// ListActivities returns catalog entries, filterable by category and start date
func (h *ActivityHandler) ListActivities(w http.ResponseWriter, r *http.Request) {
	category := r.URL.Query().Get("category")

	var startingAfter *time.Time
	if raw := r.URL.Query().Get("after"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid after date, expected RFC 3339"})
			return
		}
		startingAfter = &t
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, _ = strconv.Atoi(raw)
	}

	activities, err := h.activityService.ListActivities(category, startingAfter, limit)
	if err != nil {
		respondServiceError(w, "Error listing activities", err)
		return
	}
	writeJSON(w, http.StatusOK, toActivityViews(activities))
}

// GetActivity returns one catalog entry
func (h *ActivityHandler) GetActivity(w http.ResponseWriter, r *http.Request) {
	activityID, err := pathID(r, "id")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid activity ID"})
		return
	}

	activity, err := h.activityService.GetActivity(activityID)
	if err != nil {
		respondServiceError(w, "Error getting activity", err)
		return
	}
	writeJSON(w, http.StatusOK, toActivityView(*activity))
}

type importActivityRequest struct {
	ExternalID  string     `json:"externalId"`
	Name        string     `json:"name"`
	Category    string     `json:"category"`
	Description string     `json:"description"`
	Location    string     `json:"location"`
	Cost        float64    `json:"cost"`
	DateStart   *time.Time `json:"dateStart"`
	DateEnd     *time.Time `json:"dateEnd"`
}

// ImportActivity upserts a catalog entry from the scraper feed
func (h *ActivityHandler) ImportActivity(w http.ResponseWriter, r *http.Request) {
	var req importActivityRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	activity, err := h.activityService.ImportActivity(models.Activity{
		ExternalID:  &req.ExternalID,
		Name:        req.Name,
		Category:    req.Category,
		Description: req.Description,
		Location:    req.Location,
		Cost:        req.Cost,
		DateStart:   req.DateStart,
		DateEnd:     req.DateEnd,
	})
	if err != nil {
		respondServiceError(w, "Error importing activity", err)
		return
	}
	writeJSON(w, http.StatusOK, toActivityView(*activity))
}

type trackActivityRequest struct {
	ActivityID int64   `json:"activityId"`
	Status     string  `json:"status"`
	Notes      *string `json:"notes"`
}

// TrackActivity records an activity for one of the user's children
func (h *ActivityHandler) TrackActivity(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	childID, err := pathID(r, "id")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid child ID"})
		return
	}

	var req trackActivityRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	entry, err := h.activityService.TrackActivity(user.ID, childID, req.ActivityID, models.ActivityStatus(req.Status), req.Notes)
	if err != nil {
		respondServiceError(w, "Error tracking activity", err)
		return
	}
	writeJSON(w, http.StatusCreated, toChildActivityView(*entry))
}

// ListChildActivities returns a child's full activity history for its owner
func (h *ActivityHandler) ListChildActivities(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	childID, err := pathID(r, "id")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid child ID"})
		return
	}

	activities, err := h.activityService.GetChildActivities(user.ID, childID)
	if err != nil {
		respondServiceError(w, "Error listing child activities", err)
		return
	}
	writeJSON(w, http.StatusOK, toChildActivityViews(activities))
}

type updateTrackedRequest struct {
	Status string  `json:"status"`
	Notes  *string `json:"notes"`
	Rating *int    `json:"rating"`
}

// UpdateTrackedActivity changes status, notes, or rating of a tracked entry
func (h *ActivityHandler) UpdateTrackedActivity(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	entryID, err := pathID(r, "id")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid entry ID"})
		return
	}

	var req updateTrackedRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	entry, err := h.activityService.UpdateTrackedActivity(user.ID, entryID, models.ActivityStatus(req.Status), req.Notes, req.Rating)
	if err != nil {
		respondServiceError(w, "Error updating tracked activity", err)
		return
	}
	writeJSON(w, http.StatusOK, toChildActivityView(*entry))
}

// UntrackActivity removes a tracked entry
func (h *ActivityHandler) UntrackActivity(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	entryID, err := pathID(r, "id")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid entry ID"})
		return
	}

	if err := h.activityService.UntrackActivity(user.ID, entryID); err != nil {
		respondServiceError(w, "Error untracking activity", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
