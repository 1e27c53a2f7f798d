package service

import (
	"errors"
	"fmt"
	"time"

	"kidsactivity/internal/database"
	"kidsactivity/internal/models"
	"kidsactivity/internal/repository"
	"kidsactivity/internal/validation"
)

var (
	ErrActivityNotFound      = errors.New("activity not found")
	ErrChildActivityNotFound = errors.New("activity entry not found")
	ErrDuplicateActivity     = errors.New("activity is already tracked for this child")
)

// ActivityService handles the activity catalog and each child's tracked
// activities.
type ActivityService struct {
	db                *database.DB
	activityRepo      *repository.ActivityRepository
	childActivityRepo *repository.ChildActivityRepository
	childRepo         *repository.ChildRepository
}

// NewActivityService creates a new activity service
func NewActivityService(db *database.DB, activityRepo *repository.ActivityRepository, childActivityRepo *repository.ChildActivityRepository, childRepo *repository.ChildRepository) *ActivityService {
	return &ActivityService{
		db:                db,
		activityRepo:      activityRepo,
		childActivityRepo: childActivityRepo,
		childRepo:         childRepo,
	}
}

// ImportActivity inserts or refreshes a catalog entry keyed by its external
// ID. Scraper feeds call this repeatedly; re-imports update in place.
func (s *ActivityService) ImportActivity(a models.Activity) (*models.Activity, error) {
	if a.Name == "" {
		return nil, &validation.ValidationError{Field: "name", Message: "activity name is required"}
	}
	if a.ExternalID == nil || *a.ExternalID == "" {
		return nil, &validation.ValidationError{Field: "externalId", Message: "external id is required"}
	}
	if a.DateStart != nil && a.DateEnd != nil && a.DateEnd.Before(*a.DateStart) {
		return nil, &validation.ValidationError{Field: "dateEnd", Message: "end date cannot precede start date"}
	}
	return s.activityRepo.UpsertActivity(a)
}

// ListActivities retrieves catalog entries, optionally filtered by category
// and a minimum start date.
func (s *ActivityService) ListActivities(category string, startingAfter *time.Time, limit int) ([]models.Activity, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.activityRepo.ListActivities(category, startingAfter, limit)
}

// GetActivity retrieves one catalog entry
func (s *ActivityService) GetActivity(id int64) (*models.Activity, error) {
	activity, err := s.activityRepo.GetActivityByID(id)
	if err != nil {
		return nil, err
	}
	if activity == nil {
		return nil, ErrActivityNotFound
	}
	return activity, nil
}

// TrackActivity records an activity for a child the user owns. Each child
// tracks a catalog entry at most once.
func (s *ActivityService) TrackActivity(ownerID, childID, activityID int64, status models.ActivityStatus, notes *string) (*models.ChildActivity, error) {
	if err := s.verifyChildOwner(ownerID, childID); err != nil {
		return nil, err
	}
	if status == "" {
		status = models.StatusInterested
	}
	if !status.Valid() {
		return nil, &validation.ValidationError{Field: "status", Message: "unknown activity status"}
	}

	activity, err := s.activityRepo.GetActivityByID(activityID)
	if err != nil {
		return nil, err
	}
	if activity == nil {
		return nil, ErrActivityNotFound
	}

	entry, err := s.childActivityRepo.CreateChildActivity(childID, activityID, status, notes)
	if err != nil {
		if s.db.Dialect.IsUniqueViolation(err) {
			return nil, ErrDuplicateActivity
		}
		return nil, err
	}
	entry.Activity = activity
	return entry, nil
}

// GetChildActivities retrieves the full activity history of a child the user
// owns. Viewers looking at shared children go through the sharing projection
// instead, which filters by their permission profile.
func (s *ActivityService) GetChildActivities(ownerID, childID int64) ([]models.ChildActivity, error) {
	if err := s.verifyChildOwner(ownerID, childID); err != nil {
		return nil, err
	}
	return s.childActivityRepo.GetActivitiesForChild(childID)
}

// UpdateTrackedActivity changes the status, notes, or rating of an entry
func (s *ActivityService) UpdateTrackedActivity(ownerID, entryID int64, status models.ActivityStatus, notes *string, rating *int) (*models.ChildActivity, error) {
	entry, err := s.getOwnedEntry(ownerID, entryID)
	if err != nil {
		return nil, err
	}

	if status == "" {
		status = entry.Status
	}
	if !status.Valid() {
		return nil, &validation.ValidationError{Field: "status", Message: "unknown activity status"}
	}
	if rating != nil && (*rating < 1 || *rating > 5) {
		return nil, &validation.ValidationError{Field: "rating", Message: "rating must be between 1 and 5"}
	}

	if err := s.childActivityRepo.UpdateChildActivity(entryID, status, notes, rating); err != nil {
		return nil, err
	}
	return s.childActivityRepo.GetChildActivityByID(entryID)
}

// UntrackActivity removes an entry from a child's history
func (s *ActivityService) UntrackActivity(ownerID, entryID int64) error {
	if _, err := s.getOwnedEntry(ownerID, entryID); err != nil {
		return err
	}
	return s.childActivityRepo.DeleteChildActivity(entryID)
}

func (s *ActivityService) getOwnedEntry(ownerID, entryID int64) (*models.ChildActivity, error) {
	entry, err := s.childActivityRepo.GetChildActivityByID(entryID)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, ErrChildActivityNotFound
	}
	if err := s.verifyChildOwner(ownerID, entry.ChildID); err != nil {
		return nil, err
	}
	return entry, nil
}

func (s *ActivityService) verifyChildOwner(ownerID, childID int64) error {
	child, err := s.childRepo.GetChildByID(childID)
	if err != nil {
		return fmt.Errorf("failed to look up child: %w", err)
	}
	if child == nil || !child.IsActive {
		return ErrChildNotFound
	}
	if child.OwnerID != ownerID {
		return ErrChildNotOwned
	}
	return nil
}
