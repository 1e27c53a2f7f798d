package models

// CalendarEntry is one dated activity in a user's merged calendar, drawn
// either from their own children or from children shared with them.
type CalendarEntry struct {
	ChildID   int64
	ChildName string
	OwnerName string // empty for the user's own children
	Shared    bool
	Activity  ChildActivity
}
