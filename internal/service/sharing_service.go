package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"kidsactivity/internal/audit"
	"kidsactivity/internal/models"
	"kidsactivity/internal/repository"
	"kidsactivity/internal/validation"
)

var (
	ErrShareNotFound    = errors.New("share relationship not found")
	ErrNotShareOwner    = errors.New("user does not own this share relationship")
	ErrSelfShare        = errors.New("cannot share with yourself")
	ErrViewerNotFound   = errors.New("user to share with not found")
	ErrChildNotFound    = errors.New("child not found")
	ErrChildNotOwned    = errors.New("child does not belong to this user")
	ErrDuplicateChild   = errors.New("child is already part of this share")
	ErrProfileNotFound  = errors.New("child is not part of this share")
)

// SharingService handles share relationship and permission profile business
// logic, including the filtered projection viewers see.
type SharingService struct {
	shareRepo         *repository.ShareRepository
	childRepo         *repository.ChildRepository
	childActivityRepo *repository.ChildActivityRepository
	userRepo          *repository.UserRepository
	mailer            Mailer
	auditSink         audit.Sink
}

// NewSharingService creates a new sharing service
func NewSharingService(
	shareRepo *repository.ShareRepository,
	childRepo *repository.ChildRepository,
	childActivityRepo *repository.ChildActivityRepository,
	userRepo *repository.UserRepository,
	mailer Mailer,
	auditSink audit.Sink,
) *SharingService {
	return &SharingService{
		shareRepo:         shareRepo,
		childRepo:         childRepo,
		childActivityRepo: childActivityRepo,
		userRepo:          userRepo,
		mailer:            mailer,
		auditSink:         auditSink,
	}
}

// ChildShareConfig is the requested visibility for one child within a share
type ChildShareConfig struct {
	ChildID           int64
	CanViewInterested bool
	CanViewRegistered bool
	CanViewCompleted  bool
	CanViewNotes      bool
}

// ShareConfig is the full desired state of a share relationship. The children
// list replaces any existing profile set completely; children left out are
// removed from the share.
type ShareConfig struct {
	SharedWithUserID int64
	PermissionLevel  models.PermissionLevel
	ExpiresAt        *time.Time
	Children         []ChildShareConfig
}

// ConfigureSharing creates or fully reconfigures the share relationship from
// sharingUserID to the viewer in cfg. The operation is a complete replace:
// the resulting relationship and profile set match cfg exactly, whatever
// existed before.
func (s *SharingService) ConfigureSharing(ctx context.Context, sharingUserID int64, cfg ShareConfig) (*models.ShareRelationship, error) {
	if cfg.SharedWithUserID == sharingUserID {
		return nil, ErrSelfShare
	}

	viewer, err := s.userRepo.GetUserByID(cfg.SharedWithUserID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up viewer: %w", err)
	}
	if viewer == nil {
		return nil, ErrViewerNotFound
	}

	level := cfg.PermissionLevel
	if level == "" {
		level = models.PermissionViewRegistered
	}
	if !level.Valid() {
		return nil, &validation.ValidationError{Field: "permissionLevel", Message: "unknown permission level"}
	}
	if cfg.ExpiresAt != nil && !cfg.ExpiresAt.After(time.Now()) {
		return nil, &validation.ValidationError{Field: "expiresAt", Message: "expiry must be in the future"}
	}

	perms, childNames, err := s.buildProfiles(sharingUserID, cfg.Children)
	if err != nil {
		return nil, err
	}

	share, err := s.shareRepo.ReplaceShare(sharingUserID, cfg.SharedWithUserID, level, cfg.ExpiresAt, perms)
	if err != nil {
		return nil, err
	}

	s.auditSink.Record(audit.Event{
		Action:   audit.ActionShareConfigured,
		ActorID:  sharingUserID,
		TargetID: share.ID,
		Metadata: map[string]interface{}{
			"shared_with_user_id": cfg.SharedWithUserID,
			"permission_level":    string(level),
			"children":            len(perms),
		},
	})

	sharer, err := s.userRepo.GetUserByID(sharingUserID)
	if err == nil && sharer != nil {
		if err := s.mailer.SendShareConfiguredEmail(ctx, viewer.Email, viewer.Name, sharer.Name, childNames); err != nil {
			log.Printf("Warning: failed to send share configured email to %s: %v", viewer.Email, err)
		}
	}

	return share, nil
}

// buildProfiles validates the requested children and converts them into
// permission profiles, also collecting the children's names for the viewer
// notification. Every child must exist, be active, and belong to the sharing
// user; a child may appear at most once.
func (s *SharingService) buildProfiles(sharingUserID int64, children []ChildShareConfig) ([]models.SharePermission, []string, error) {
	seen := make(map[int64]bool, len(children))
	perms := make([]models.SharePermission, 0, len(children))
	names := make([]string, 0, len(children))

	for _, c := range children {
		if seen[c.ChildID] {
			return nil, nil, &validation.ValidationError{Field: "children", Message: "duplicate child in share configuration"}
		}
		seen[c.ChildID] = true

		child, err := s.childRepo.GetChildByID(c.ChildID)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to look up child: %w", err)
		}
		if child == nil || !child.IsActive {
			return nil, nil, ErrChildNotFound
		}
		if child.OwnerID != sharingUserID {
			return nil, nil, ErrChildNotOwned
		}

		perms = append(perms, models.SharePermission{
			ChildID:           c.ChildID,
			CanViewInterested: c.CanViewInterested,
			CanViewRegistered: c.CanViewRegistered,
			CanViewCompleted:  c.CanViewCompleted,
			CanViewNotes:      c.CanViewNotes,
		})
		names = append(names, child.Name)
	}
	return perms, names, nil
}

// GetUserShares retrieves every share relationship the user has configured,
// including inactive and expired ones so they can be reviewed and re-enabled.
func (s *SharingService) GetUserShares(sharingUserID int64) ([]models.ShareRelationship, error) {
	shares, err := s.shareRepo.GetSharesBySharingUser(sharingUserID)
	if err != nil {
		return nil, fmt.Errorf("failed to get shares: %w", err)
	}
	return shares, nil
}

// GetShare retrieves one share relationship owned by the user
func (s *SharingService) GetShare(sharingUserID, shareID int64) (*models.ShareRelationship, error) {
	share, err := s.shareRepo.GetShareByID(shareID)
	if err != nil {
		return nil, err
	}
	if share == nil {
		return nil, ErrShareNotFound
	}
	if share.SharingUserID != sharingUserID {
		return nil, ErrNotShareOwner
	}
	return share, nil
}

// ShareUpdate is a partial update of a share relationship. Nil fields are
// left unchanged; ClearExpiresAt removes the expiry entirely.
type ShareUpdate struct {
	PermissionLevel *models.PermissionLevel
	ExpiresAt       *time.Time
	ClearExpiresAt  bool
	IsActive        *bool
}

// UpdateShare applies a partial update to a share relationship the user owns
func (s *SharingService) UpdateShare(ctx context.Context, sharingUserID, shareID int64, update ShareUpdate) (*models.ShareRelationship, error) {
	share, err := s.GetShare(sharingUserID, shareID)
	if err != nil {
		return nil, err
	}

	level := share.PermissionLevel
	if update.PermissionLevel != nil {
		level = *update.PermissionLevel
		if !level.Valid() {
			return nil, &validation.ValidationError{Field: "permissionLevel", Message: "unknown permission level"}
		}
	}

	expiresAt := share.ExpiresAt
	if update.ClearExpiresAt {
		expiresAt = nil
	} else if update.ExpiresAt != nil {
		if !update.ExpiresAt.After(time.Now()) {
			return nil, &validation.ValidationError{Field: "expiresAt", Message: "expiry must be in the future"}
		}
		expiresAt = update.ExpiresAt
	}

	isActive := share.IsActive
	if update.IsActive != nil {
		isActive = *update.IsActive
	}

	if err := s.shareRepo.UpdateShare(shareID, level, expiresAt, isActive); err != nil {
		return nil, err
	}

	s.auditSink.Record(audit.Event{
		Action:   audit.ActionShareUpdated,
		ActorID:  sharingUserID,
		TargetID: shareID,
		Metadata: map[string]interface{}{
			"permission_level": string(level),
			"is_active":        isActive,
		},
	})

	// Turning a share off is worth telling the viewer about
	if share.IsActive && !isActive {
		s.notifyShareRevoked(ctx, share)
	}

	return s.shareRepo.GetShareByID(shareID)
}

// RevokeShare deactivates a share relationship the user owns
func (s *SharingService) RevokeShare(ctx context.Context, sharingUserID, shareID int64) error {
	share, err := s.GetShare(sharingUserID, shareID)
	if err != nil {
		return err
	}

	if err := s.shareRepo.DeactivateShare(shareID); err != nil {
		return err
	}

	s.auditSink.Record(audit.Event{
		Action:   audit.ActionShareUpdated,
		ActorID:  sharingUserID,
		TargetID: shareID,
		Metadata: map[string]interface{}{"is_active": false},
	})

	if share.IsActive {
		s.notifyShareRevoked(ctx, share)
	}
	return nil
}

func (s *SharingService) notifyShareRevoked(ctx context.Context, share *models.ShareRelationship) {
	viewer, err := s.userRepo.GetUserByID(share.SharedWithUserID)
	if err != nil || viewer == nil {
		return
	}
	sharer, err := s.userRepo.GetUserByID(share.SharingUserID)
	if err != nil || sharer == nil {
		return
	}
	if err := s.mailer.SendShareRevokedEmail(ctx, viewer.Email, viewer.Name, sharer.Name); err != nil {
		log.Printf("Warning: failed to send share revoked email to %s: %v", viewer.Email, err)
	}
}

// AddChildToShare adds one child profile to an existing share
func (s *SharingService) AddChildToShare(sharingUserID, shareID int64, cfg ChildShareConfig) (*models.SharePermission, error) {
	if _, err := s.GetShare(sharingUserID, shareID); err != nil {
		return nil, err
	}

	child, err := s.childRepo.GetChildByID(cfg.ChildID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up child: %w", err)
	}
	if child == nil || !child.IsActive {
		return nil, ErrChildNotFound
	}
	if child.OwnerID != sharingUserID {
		return nil, ErrChildNotOwned
	}

	existing, err := s.shareRepo.GetProfile(shareID, cfg.ChildID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrDuplicateChild
	}

	perm := models.SharePermission{
		ChildID:           cfg.ChildID,
		CanViewInterested: cfg.CanViewInterested,
		CanViewRegistered: cfg.CanViewRegistered,
		CanViewCompleted:  cfg.CanViewCompleted,
		CanViewNotes:      cfg.CanViewNotes,
	}
	if err := s.shareRepo.CreateProfile(shareID, perm); err != nil {
		return nil, err
	}

	s.auditSink.Record(audit.Event{
		Action:   audit.ActionShareChildAdded,
		ActorID:  sharingUserID,
		TargetID: shareID,
		Metadata: map[string]interface{}{"child_id": cfg.ChildID},
	})

	return s.shareRepo.GetProfile(shareID, cfg.ChildID)
}

// RemoveChildFromShare removes a child profile from a share. Removing the
// last profile deactivates the whole relationship, since a share with no
// profiles grants nothing.
func (s *SharingService) RemoveChildFromShare(sharingUserID, shareID, childID int64) error {
	if _, err := s.GetShare(sharingUserID, shareID); err != nil {
		return err
	}

	profile, err := s.shareRepo.GetProfile(shareID, childID)
	if err != nil {
		return err
	}
	if profile == nil {
		return ErrProfileNotFound
	}

	if err := s.shareRepo.DeleteProfile(shareID, childID); err != nil {
		return err
	}

	remaining, err := s.shareRepo.CountProfiles(shareID)
	if err != nil {
		return err
	}
	deactivated := false
	if remaining == 0 {
		if err := s.shareRepo.DeactivateShare(shareID); err != nil {
			return err
		}
		deactivated = true
	}

	s.auditSink.Record(audit.Event{
		Action:   audit.ActionShareChildRemoved,
		ActorID:  sharingUserID,
		TargetID: shareID,
		Metadata: map[string]interface{}{
			"child_id":          childID,
			"share_deactivated": deactivated,
		},
	})
	return nil
}

// UpdateChildPermissions rewrites the visibility flags of one child profile
func (s *SharingService) UpdateChildPermissions(sharingUserID, shareID, childID int64, cfg ChildShareConfig) (*models.SharePermission, error) {
	if _, err := s.GetShare(sharingUserID, shareID); err != nil {
		return nil, err
	}

	profile, err := s.shareRepo.GetProfile(shareID, childID)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, ErrProfileNotFound
	}

	perm := models.SharePermission{
		CanViewInterested: cfg.CanViewInterested,
		CanViewRegistered: cfg.CanViewRegistered,
		CanViewCompleted:  cfg.CanViewCompleted,
		CanViewNotes:      cfg.CanViewNotes,
	}
	if err := s.shareRepo.UpdateProfile(shareID, childID, perm); err != nil {
		return nil, err
	}

	s.auditSink.Record(audit.Event{
		Action:   audit.ActionSharePermissionsUpdated,
		ActorID:  sharingUserID,
		TargetID: shareID,
		Metadata: map[string]interface{}{"child_id": childID},
	})

	return s.shareRepo.GetProfile(shareID, childID)
}

// GetSharedChildren builds the viewer's projection of everything shared with
// them, optionally narrowed to one sharing user (0 means all). Each child
// appears with only the activities their profile allows; notes the viewer may
// not see are blanked out rather than dropping the activity.
func (s *SharingService) GetSharedChildren(viewerID, sharingUserID int64) ([]models.SharedChild, error) {
	now := time.Now()
	shares, err := s.shareRepo.GetLiveSharesForViewer(viewerID, sharingUserID, now)
	if err != nil {
		return nil, err
	}

	result := []models.SharedChild{}
	for _, share := range shares {
		for _, perm := range share.Profiles {
			child, err := s.childRepo.GetChildByID(perm.ChildID)
			if err != nil {
				return nil, fmt.Errorf("failed to load shared child: %w", err)
			}
			if child == nil || !child.IsActive {
				continue
			}

			activities, err := s.childActivityRepo.GetActivitiesForChild(perm.ChildID)
			if err != nil {
				return nil, fmt.Errorf("failed to load shared activities: %w", err)
			}

			filtered := filterActivities(activities, perm, share.PermissionLevel, now)

			result = append(result, models.SharedChild{
				Child:           *child,
				OwnerName:       share.SharingUserName,
				ShareID:         share.ID,
				PermissionLevel: share.PermissionLevel,
				Permission:      perm,
				Activities:      filtered,
			})
		}
	}
	return result, nil
}

// filterActivities applies the two projection stages: the per-status profile
// filter with notes redaction, then the future-only temporal cut when the
// relationship is view_future.
func filterActivities(activities []models.ChildActivity, perm models.SharePermission, level models.PermissionLevel, now time.Time) []models.ChildActivity {
	filtered := []models.ChildActivity{}
	for _, activity := range activities {
		if !perm.Allows(activity.Status) {
			continue
		}
		if level == models.PermissionViewFuture {
			// Strictly future start dates only; undated activities are hidden
			if activity.Activity == nil || activity.Activity.DateStart == nil || !activity.Activity.DateStart.After(now) {
				continue
			}
		}
		if !perm.CanViewNotes {
			activity.Notes = nil
		}
		filtered = append(filtered, activity)
	}
	return filtered
}

// HasAccessToChild reports whether a user may see a child at all, either as
// its owner or through a live share profile.
func (s *SharingService) HasAccessToChild(userID, childID int64) (bool, error) {
	child, err := s.childRepo.GetChildByID(childID)
	if err != nil {
		return false, err
	}
	if child == nil || !child.IsActive {
		return false, nil
	}
	if child.OwnerID == userID {
		return true, nil
	}
	return s.shareRepo.HasLiveProfileForChild(userID, childID, time.Now())
}

// CleanupExpiredShares deactivates every share whose expiry has passed and
// returns how many were touched. Running it again immediately returns zero.
func (s *SharingService) CleanupExpiredShares() (int64, error) {
	return s.shareRepo.DeactivateExpired(time.Now())
}
