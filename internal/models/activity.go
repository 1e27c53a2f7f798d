package models

import "time"

// Activity is a catalog entry scraped from the municipal recreation site.
// The API treats the catalog as read-only.
type Activity struct {
	ID          int64
	ExternalID  *string
	Name        string
	Category    string
	Description string
	Location    string
	Cost        float64
	DateStart   *time.Time
	DateEnd     *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ActivityStatus is the lifecycle state of a scheduled activity for a child.
type ActivityStatus string

const (
	StatusInterested ActivityStatus = "interested"
	StatusRegistered ActivityStatus = "registered"
	StatusCompleted  ActivityStatus = "completed"
	StatusCancelled  ActivityStatus = "cancelled"
)

// Valid reports whether the status is one of the known values.
func (s ActivityStatus) Valid() bool {
	switch s {
	case StatusInterested, StatusRegistered, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// ChildActivity links a child to a catalog activity with scheduling state.
type ChildActivity struct {
	ID           int64
	ChildID      int64
	ActivityID   int64
	Status       ActivityStatus
	Notes        *string
	Rating       *int
	RegisteredAt *time.Time
	CompletedAt  *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
	Activity     *Activity // populated via JOIN
}
