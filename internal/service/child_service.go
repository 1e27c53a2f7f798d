package service

import (
	"fmt"
	"time"

	"kidsactivity/internal/models"
	"kidsactivity/internal/repository"
	"kidsactivity/internal/validation"
)

// ChildService handles child profile business logic
type ChildService struct {
	childRepo *repository.ChildRepository
}

// NewChildService creates a new child service
func NewChildService(childRepo *repository.ChildRepository) *ChildService {
	return &ChildService{childRepo: childRepo}
}

// CreateChild adds a child profile to the user's account
func (s *ChildService) CreateChild(ownerID int64, name string, dateOfBirth *time.Time) (*models.Child, error) {
	if err := validation.ValidateName(name); err != nil {
		return nil, err
	}
	if dateOfBirth != nil && dateOfBirth.After(time.Now()) {
		return nil, &validation.ValidationError{Field: "dateOfBirth", Message: "date of birth cannot be in the future"}
	}

	child, err := s.childRepo.CreateChild(ownerID, name, dateOfBirth)
	if err != nil {
		return nil, fmt.Errorf("failed to create child: %w", err)
	}
	return child, nil
}

// GetChildren retrieves the user's active children
func (s *ChildService) GetChildren(ownerID int64) ([]models.Child, error) {
	children, err := s.childRepo.GetChildrenByOwner(ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to get children: %w", err)
	}
	return children, nil
}

// GetChild retrieves one child the user owns
func (s *ChildService) GetChild(ownerID, childID int64) (*models.Child, error) {
	child, err := s.childRepo.GetChildByID(childID)
	if err != nil {
		return nil, fmt.Errorf("failed to get child: %w", err)
	}
	if child == nil || !child.IsActive {
		return nil, ErrChildNotFound
	}
	if child.OwnerID != ownerID {
		return nil, ErrChildNotOwned
	}
	return child, nil
}

// UpdateChild modifies a child profile the user owns
func (s *ChildService) UpdateChild(ownerID, childID int64, name string, dateOfBirth *time.Time) (*models.Child, error) {
	if _, err := s.GetChild(ownerID, childID); err != nil {
		return nil, err
	}
	if err := validation.ValidateName(name); err != nil {
		return nil, err
	}

	if err := s.childRepo.UpdateChild(childID, name, dateOfBirth); err != nil {
		return nil, fmt.Errorf("failed to update child: %w", err)
	}
	return s.childRepo.GetChildByID(childID)
}

// DeleteChild soft-deletes a child profile. Activity history is kept; the
// child simply stops appearing anywhere, including in shares.
func (s *ChildService) DeleteChild(ownerID, childID int64) error {
	if _, err := s.GetChild(ownerID, childID); err != nil {
		return err
	}
	if err := s.childRepo.DeactivateChild(childID); err != nil {
		return fmt.Errorf("failed to delete child: %w", err)
	}
	return nil
}
