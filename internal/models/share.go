package models

import "time"

// PermissionLevel is the relationship-wide coarse policy for a share.
// Only view_future changes filtering behavior (a strict future-start cutoff);
// view_all and view_registered are currently advisory and the per-child flags
// decide everything else.
type PermissionLevel string

const (
	PermissionViewAll        PermissionLevel = "view_all"
	PermissionViewRegistered PermissionLevel = "view_registered"
	PermissionViewFuture     PermissionLevel = "view_future"
)

// Valid reports whether the permission level is one of the known tiers.
func (l PermissionLevel) Valid() bool {
	switch l {
	case PermissionViewAll, PermissionViewRegistered, PermissionViewFuture:
		return true
	}
	return false
}

// ShareRelationship is the agreement that one user's children are visible to
// a viewer. At most one row exists per ordered (sharing, viewer) pair;
// re-sharing updates the row in place. Rows are soft-disabled, never deleted.
type ShareRelationship struct {
	ID               int64
	SharingUserID    int64
	SharedWithUserID int64
	PermissionLevel  PermissionLevel
	ExpiresAt        *time.Time
	IsActive         bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
	Profiles         []SharePermission // populated when loaded with profiles
	SharingUserName  string            // populated via JOIN
	ViewerName       string            // populated via JOIN
}

// IsExpired reports whether the relationship's expiry has passed.
// A nil ExpiresAt never expires.
func (s *ShareRelationship) IsExpired() bool {
	return s.ExpiresAt != nil && time.Now().After(*s.ExpiresAt)
}

// IsLive reports whether the relationship currently grants any access.
func (s *ShareRelationship) IsLive() bool {
	return s.IsActive && !s.IsExpired()
}

// SharePermission is the per-child visibility policy within one share
// relationship: one row per (share, child) pair.
type SharePermission struct {
	ID                int64
	ShareID           int64
	ChildID           int64
	CanViewInterested bool
	CanViewRegistered bool
	CanViewCompleted  bool
	CanViewNotes      bool
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// DefaultSharePermission returns the conservative defaults applied when a
// child is shared without explicit flags: interested and registered visible,
// completed history and notes hidden.
func DefaultSharePermission() SharePermission {
	return SharePermission{
		CanViewInterested: true,
		CanViewRegistered: true,
		CanViewCompleted:  false,
		CanViewNotes:      false,
	}
}

// permissionFlag identifies which boolean on a SharePermission governs a
// given activity status.
type permissionFlag int

const (
	flagNone permissionFlag = iota
	flagInterested
	flagRegistered
	flagCompleted
)

// statusFlags is the closed mapping from activity status to permission flag.
// Statuses absent from this table (and cancelled, mapped to flagNone) are
// never visible to a viewer. A new status must be added here deliberately.
var statusFlags = map[ActivityStatus]permissionFlag{
	StatusInterested: flagInterested,
	StatusRegistered: flagRegistered,
	StatusCompleted:  flagCompleted,
	StatusCancelled:  flagNone,
}

// Allows reports whether an activity with the given status may be shown
// under this permission profile.
func (p *SharePermission) Allows(status ActivityStatus) bool {
	switch statusFlags[status] {
	case flagInterested:
		return p.CanViewInterested
	case flagRegistered:
		return p.CanViewRegistered
	case flagCompleted:
		return p.CanViewCompleted
	default:
		// Unknown statuses and cancelled activities are never shared.
		return false
	}
}

// SharedChild is the filtered projection of one child handed to a viewer:
// the child, its permitted activities, and the profile that was applied.
type SharedChild struct {
	Child           Child
	OwnerName       string
	ShareID         int64
	PermissionLevel PermissionLevel
	Permission      SharePermission
	Activities      []ChildActivity
}
