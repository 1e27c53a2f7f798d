package models

import "time"

// Child represents a child profile owned by exactly one parent account.
// Deletion is a soft-delete: IsActive flips to false and the row stays.
type Child struct {
	ID          int64
	OwnerID     int64
	Name        string
	DateOfBirth *time.Time
	IsActive    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
