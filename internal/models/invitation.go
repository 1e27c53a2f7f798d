package models

import "time"

// InvitationStatus is the state of a sharing invitation. Every state other
// than pending is terminal.
type InvitationStatus string

const (
	InvitationPending   InvitationStatus = "pending"
	InvitationAccepted  InvitationStatus = "accepted"
	InvitationDeclined  InvitationStatus = "declined"
	InvitationExpired   InvitationStatus = "expired"
	InvitationCancelled InvitationStatus = "cancelled"
)

// Invitation is a time-boxed, token-keyed offer to establish a share
// relationship. The recipient may not have an account yet; RecipientUserID is
// filled in once the email resolves to one.
type Invitation struct {
	ID              int64
	Token           string
	SenderID        int64
	RecipientEmail  string
	RecipientUserID *int64
	Status          InvitationStatus
	Message         string
	ExpiresAt       time.Time
	AcceptedAt      *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
	SenderName      string // populated via JOIN
	SenderEmail     string // populated via JOIN
}

// IsExpired reports whether the invitation's expiry has passed, regardless of
// whether the sweep has recorded it yet.
func (i *Invitation) IsExpired() bool {
	return time.Now().After(i.ExpiresAt)
}

// IsPending reports whether the invitation can still be acted on.
func (i *Invitation) IsPending() bool {
	return i.Status == InvitationPending
}

// IsTerminal reports whether the invitation has reached a final state.
func (i *Invitation) IsTerminal() bool {
	return i.Status != InvitationPending
}
