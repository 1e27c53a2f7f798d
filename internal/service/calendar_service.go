package service

import (
	"sort"
	"time"

	"kidsactivity/internal/models"
	"kidsactivity/internal/repository"
	"kidsactivity/internal/validation"
)

// CalendarService merges a user's own children's activities with everything
// shared with them into one dated view.
type CalendarService struct {
	childRepo         *repository.ChildRepository
	childActivityRepo *repository.ChildActivityRepository
	sharingService    *SharingService
}

// NewCalendarService creates a new calendar service
func NewCalendarService(childRepo *repository.ChildRepository, childActivityRepo *repository.ChildActivityRepository, sharingService *SharingService) *CalendarService {
	return &CalendarService{
		childRepo:         childRepo,
		childActivityRepo: childActivityRepo,
		sharingService:    sharingService,
	}
}

// GetCalendar returns every dated activity visible to the user whose window
// overlaps [from, to], sorted by start date. Shared activities have already
// been filtered by the owner's permission profiles; undated activities never
// appear on the calendar.
func (s *CalendarService) GetCalendar(userID int64, from, to time.Time) ([]models.CalendarEntry, error) {
	if to.Before(from) {
		return nil, &validation.ValidationError{Field: "to", Message: "end of range precedes start"}
	}

	entries := []models.CalendarEntry{}

	children, err := s.childRepo.GetChildrenByOwner(userID)
	if err != nil {
		return nil, err
	}
	for _, child := range children {
		activities, err := s.childActivityRepo.GetActivitiesForChild(child.ID)
		if err != nil {
			return nil, err
		}
		for _, activity := range activities {
			if !overlapsRange(activity, from, to) {
				continue
			}
			entries = append(entries, models.CalendarEntry{
				ChildID:   child.ID,
				ChildName: child.Name,
				Shared:    false,
				Activity:  activity,
			})
		}
	}

	shared, err := s.sharingService.GetSharedChildren(userID, 0)
	if err != nil {
		return nil, err
	}
	for _, sc := range shared {
		for _, activity := range sc.Activities {
			if !overlapsRange(activity, from, to) {
				continue
			}
			entries = append(entries, models.CalendarEntry{
				ChildID:   sc.Child.ID,
				ChildName: sc.Child.Name,
				OwnerName: sc.OwnerName,
				Shared:    true,
				Activity:  activity,
			})
		}
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Activity.Activity.DateStart.Before(*entries[j].Activity.Activity.DateStart)
	})
	return entries, nil
}

// overlapsRange reports whether the activity's date window intersects
// [from, to]. An activity without an end date occupies just its start date.
func overlapsRange(activity models.ChildActivity, from, to time.Time) bool {
	if activity.Activity == nil || activity.Activity.DateStart == nil {
		return false
	}
	start := *activity.Activity.DateStart
	end := start
	if activity.Activity.DateEnd != nil {
		end = *activity.Activity.DateEnd
	}
	return !end.Before(from) && !start.After(to)
}
