package models

import (
	"testing"
	"time"
)

func TestSharePermissionAllows(t *testing.T) {
	tests := []struct {
		name   string
		perm   SharePermission
		status ActivityStatus
		want   bool
	}{
		{
			name:   "interested allowed",
			perm:   SharePermission{CanViewInterested: true},
			status: StatusInterested,
			want:   true,
		},
		{
			name:   "interested hidden",
			perm:   SharePermission{CanViewRegistered: true, CanViewCompleted: true},
			status: StatusInterested,
			want:   false,
		},
		{
			name:   "registered allowed",
			perm:   SharePermission{CanViewRegistered: true},
			status: StatusRegistered,
			want:   true,
		},
		{
			name:   "completed allowed",
			perm:   SharePermission{CanViewCompleted: true},
			status: StatusCompleted,
			want:   true,
		},
		{
			name:   "cancelled never visible",
			perm:   SharePermission{CanViewInterested: true, CanViewRegistered: true, CanViewCompleted: true, CanViewNotes: true},
			status: StatusCancelled,
			want:   false,
		},
		{
			name:   "unknown status never visible",
			perm:   SharePermission{CanViewInterested: true, CanViewRegistered: true, CanViewCompleted: true},
			status: ActivityStatus("waitlisted"),
			want:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.perm.Allows(tt.status); got != tt.want {
				t.Errorf("Allows(%q) = %v, want %v", tt.status, got, tt.want)
			}
		})
	}
}

func TestDefaultSharePermission(t *testing.T) {
	perm := DefaultSharePermission()
	if !perm.CanViewInterested {
		t.Error("default should allow interested")
	}
	if !perm.CanViewRegistered {
		t.Error("default should allow registered")
	}
	if perm.CanViewCompleted {
		t.Error("default should hide completed")
	}
	if perm.CanViewNotes {
		t.Error("default should hide notes")
	}
}

func TestShareRelationshipIsLive(t *testing.T) {
	future := time.Now().Add(1 * time.Hour)
	past := time.Now().Add(-1 * time.Hour)

	tests := []struct {
		name      string
		isActive  bool
		expiresAt *time.Time
		want      bool
	}{
		{name: "active no expiry", isActive: true, expiresAt: nil, want: true},
		{name: "active future expiry", isActive: true, expiresAt: &future, want: true},
		{name: "active past expiry", isActive: true, expiresAt: &past, want: false},
		{name: "inactive", isActive: false, expiresAt: nil, want: false},
		{name: "inactive future expiry", isActive: false, expiresAt: &future, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			share := ShareRelationship{IsActive: tt.isActive, ExpiresAt: tt.expiresAt}
			if got := share.IsLive(); got != tt.want {
				t.Errorf("IsLive() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPermissionLevelValid(t *testing.T) {
	valid := []PermissionLevel{PermissionViewAll, PermissionViewRegistered, PermissionViewFuture}
	for _, level := range valid {
		if !level.Valid() {
			t.Errorf("expected %q to be valid", level)
		}
	}
	if PermissionLevel("view_everything").Valid() {
		t.Error("expected unknown level to be invalid")
	}
	if PermissionLevel("").Valid() {
		t.Error("expected empty level to be invalid")
	}
}

func TestActivityStatusValid(t *testing.T) {
	valid := []ActivityStatus{StatusInterested, StatusRegistered, StatusCompleted, StatusCancelled}
	for _, status := range valid {
		if !status.Valid() {
			t.Errorf("expected %q to be valid", status)
		}
	}
	if ActivityStatus("waitlisted").Valid() {
		t.Error("expected unknown status to be invalid")
	}
}

func TestInvitationStateHelpers(t *testing.T) {
	pending := Invitation{Status: InvitationPending, ExpiresAt: time.Now().Add(1 * time.Hour)}
	if !pending.IsPending() {
		t.Error("expected pending invitation to be pending")
	}
	if pending.IsTerminal() {
		t.Error("expected pending invitation to not be terminal")
	}
	if pending.IsExpired() {
		t.Error("expected future-dated invitation to not be expired")
	}

	overdue := Invitation{Status: InvitationPending, ExpiresAt: time.Now().Add(-1 * time.Minute)}
	if !overdue.IsExpired() {
		t.Error("expected overdue invitation to be expired")
	}
	if !overdue.IsPending() {
		t.Error("overdue invitation is still pending until the sweep records it")
	}

	for _, status := range []InvitationStatus{InvitationAccepted, InvitationDeclined, InvitationExpired, InvitationCancelled} {
		inv := Invitation{Status: status, ExpiresAt: time.Now().Add(1 * time.Hour)}
		if !inv.IsTerminal() {
			t.Errorf("expected %q to be terminal", status)
		}
		if inv.IsPending() {
			t.Errorf("expected %q to not be pending", status)
		}
	}
}
