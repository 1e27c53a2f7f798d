package handlers

import (
	"net/http"
	"time"

	"kidsactivity/internal/service"
)

// CalendarHandler handles merged calendar HTTP requests
type CalendarHandler struct {
	calendarService *service.CalendarService
}

// NewCalendarHandler creates a new calendar handler
func NewCalendarHandler(calendarService *service.CalendarService) *CalendarHandler {
	return &CalendarHandler{calendarService: calendarService}
}

// GetCalendar returns every visible dated activity in the requested window.
// The range defaults to the next 30 days.
func (h *CalendarHandler) GetCalendar(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())

	from := time.Now()
	to := from.AddDate(0, 0, 30)

	if raw := r.URL.Query().Get("from"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid from date, expected RFC 3339"})
			return
		}
		from = t
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid to date, expected RFC 3339"})
			return
		}
		to = t
	}

	entries, err := h.calendarService.GetCalendar(user.ID, from, to)
	if err != nil {
		respondServiceError(w, "Error building calendar", err)
		return
	}

	views := make([]calendarEntryView, 0, len(entries))
	for _, e := range entries {
		views = append(views, toCalendarEntryView(e))
	}
	writeJSON(w, http.StatusOK, views)
}
