package handlers

import (
	"time"

	"kidsactivity/internal/models"
)

// JSON shapes returned to the mobile client. Models stay transport-agnostic;
// everything that crosses the wire is converted here.

type userView struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

type authView struct {
	Token string   `json:"token"`
	User  userView `json:"user"`
}

type childView struct {
	ID          int64      `json:"id"`
	Name        string     `json:"name"`
	DateOfBirth *time.Time `json:"dateOfBirth,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
}

type activityView struct {
	ID          int64      `json:"id"`
	ExternalID  *string    `json:"externalId,omitempty"`
	Name        string     `json:"name"`
	Category    string     `json:"category,omitempty"`
	Description string     `json:"description,omitempty"`
	Location    string     `json:"location,omitempty"`
	Cost        float64    `json:"cost"`
	DateStart   *time.Time `json:"dateStart,omitempty"`
	DateEnd     *time.Time `json:"dateEnd,omitempty"`
}

type childActivityView struct {
	ID           int64         `json:"id"`
	ChildID      int64         `json:"childId"`
	ActivityID   int64         `json:"activityId"`
	Status       string        `json:"status"`
	Notes        *string       `json:"notes"`
	Rating       *int          `json:"rating,omitempty"`
	RegisteredAt *time.Time    `json:"registeredAt,omitempty"`
	CompletedAt  *time.Time    `json:"completedAt,omitempty"`
	Activity     *activityView `json:"activity,omitempty"`
}

type permissionView struct {
	ChildID           int64 `json:"childId"`
	CanViewInterested bool  `json:"canViewInterested"`
	CanViewRegistered bool  `json:"canViewRegistered"`
	CanViewCompleted  bool  `json:"canViewCompleted"`
	CanViewNotes      bool  `json:"canViewNotes"`
}

type shareView struct {
	ID               int64            `json:"id"`
	SharedWithUserID int64            `json:"sharedWithUserId"`
	ViewerName       string           `json:"viewerName,omitempty"`
	PermissionLevel  string           `json:"permissionLevel"`
	ExpiresAt        *time.Time       `json:"expiresAt,omitempty"`
	IsActive         bool             `json:"isActive"`
	Children         []permissionView `json:"children"`
	CreatedAt        time.Time        `json:"createdAt"`
}

type sharedChildView struct {
	Child           childView           `json:"child"`
	OwnerName       string              `json:"ownerName"`
	ShareID         int64               `json:"shareId"`
	PermissionLevel string              `json:"permissionLevel"`
	Permission      permissionView      `json:"permission"`
	Activities      []childActivityView `json:"activities"`
}

type invitationView struct {
	ID             int64      `json:"id"`
	Token          string     `json:"token"`
	SenderName     string     `json:"senderName,omitempty"`
	SenderEmail    string     `json:"senderEmail,omitempty"`
	RecipientEmail string     `json:"recipientEmail"`
	Status         string     `json:"status"`
	Message        string     `json:"message,omitempty"`
	ExpiresAt      time.Time  `json:"expiresAt"`
	AcceptedAt     *time.Time `json:"acceptedAt,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
}

type calendarEntryView struct {
	ChildID   int64             `json:"childId"`
	ChildName string            `json:"childName"`
	OwnerName string            `json:"ownerName,omitempty"`
	Shared    bool              `json:"shared"`
	Activity  childActivityView `json:"activity"`
}

func toUserView(u *models.User) userView {
	return userView{ID: u.ID, Email: u.Email, Name: u.Name}
}

func toChildView(c models.Child) childView {
	return childView{ID: c.ID, Name: c.Name, DateOfBirth: c.DateOfBirth, CreatedAt: c.CreatedAt}
}

func toChildViews(children []models.Child) []childView {
	views := make([]childView, 0, len(children))
	for _, c := range children {
		views = append(views, toChildView(c))
	}
	return views
}

func toActivityView(a models.Activity) activityView {
	return activityView{
		ID:          a.ID,
		ExternalID:  a.ExternalID,
		Name:        a.Name,
		Category:    a.Category,
		Description: a.Description,
		Location:    a.Location,
		Cost:        a.Cost,
		DateStart:   a.DateStart,
		DateEnd:     a.DateEnd,
	}
}

func toActivityViews(activities []models.Activity) []activityView {
	views := make([]activityView, 0, len(activities))
	for _, a := range activities {
		views = append(views, toActivityView(a))
	}
	return views
}

func toChildActivityView(ca models.ChildActivity) childActivityView {
	view := childActivityView{
		ID:           ca.ID,
		ChildID:      ca.ChildID,
		ActivityID:   ca.ActivityID,
		Status:       string(ca.Status),
		Notes:        ca.Notes,
		Rating:       ca.Rating,
		RegisteredAt: ca.RegisteredAt,
		CompletedAt:  ca.CompletedAt,
	}
	if ca.Activity != nil {
		av := toActivityView(*ca.Activity)
		view.Activity = &av
	}
	return view
}

func toChildActivityViews(activities []models.ChildActivity) []childActivityView {
	views := make([]childActivityView, 0, len(activities))
	for _, ca := range activities {
		views = append(views, toChildActivityView(ca))
	}
	return views
}

func toPermissionView(p models.SharePermission) permissionView {
	return permissionView{
		ChildID:           p.ChildID,
		CanViewInterested: p.CanViewInterested,
		CanViewRegistered: p.CanViewRegistered,
		CanViewCompleted:  p.CanViewCompleted,
		CanViewNotes:      p.CanViewNotes,
	}
}

func toShareView(s *models.ShareRelationship) shareView {
	children := make([]permissionView, 0, len(s.Profiles))
	for _, p := range s.Profiles {
		children = append(children, toPermissionView(p))
	}
	return shareView{
		ID:               s.ID,
		SharedWithUserID: s.SharedWithUserID,
		ViewerName:       s.ViewerName,
		PermissionLevel:  string(s.PermissionLevel),
		ExpiresAt:        s.ExpiresAt,
		IsActive:         s.IsActive,
		Children:         children,
		CreatedAt:        s.CreatedAt,
	}
}

func toSharedChildView(sc models.SharedChild) sharedChildView {
	return sharedChildView{
		Child:           toChildView(sc.Child),
		OwnerName:       sc.OwnerName,
		ShareID:         sc.ShareID,
		PermissionLevel: string(sc.PermissionLevel),
		Permission:      toPermissionView(sc.Permission),
		Activities:      toChildActivityViews(sc.Activities),
	}
}

func toInvitationView(i models.Invitation) invitationView {
	return invitationView{
		ID:             i.ID,
		Token:          i.Token,
		SenderName:     i.SenderName,
		SenderEmail:    i.SenderEmail,
		RecipientEmail: i.RecipientEmail,
		Status:         string(i.Status),
		Message:        i.Message,
		ExpiresAt:      i.ExpiresAt,
		AcceptedAt:     i.AcceptedAt,
		CreatedAt:      i.CreatedAt,
	}
}

func toInvitationViews(invitations []models.Invitation) []invitationView {
	views := make([]invitationView, 0, len(invitations))
	for _, i := range invitations {
		views = append(views, toInvitationView(i))
	}
	return views
}

func toCalendarEntryView(e models.CalendarEntry) calendarEntryView {
	return calendarEntryView{
		ChildID:   e.ChildID,
		ChildName: e.ChildName,
		OwnerName: e.OwnerName,
		Shared:    e.Shared,
		Activity:  toChildActivityView(e.Activity),
	}
}
