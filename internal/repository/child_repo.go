package repository

import (
	"database/sql"
	"fmt"
	"time"

	"kidsactivity/internal/database"
	"kidsactivity/internal/models"
)

// ChildRepository handles database operations for child profiles
type ChildRepository struct {
	db *database.DB
}

// NewChildRepository creates a new child repository
func NewChildRepository(db *database.DB) *ChildRepository {
	return &ChildRepository{db: db}
}

// CreateChild creates a new child profile for an owner
func (r *ChildRepository) CreateChild(ownerID int64, name string, dateOfBirth *time.Time) (*models.Child, error) {
	query := `INSERT INTO children (owner_id, name, date_of_birth) VALUES (?, ?, ?)`
	id, err := r.db.ExecReturningID(query, ownerID, name, nullTime(dateOfBirth))
	if err != nil {
		return nil, fmt.Errorf("failed to create child: %w", err)
	}
	return r.GetChildByID(id)
}

// GetChildByID retrieves a child by ID, or nil if none exists
func (r *ChildRepository) GetChildByID(id int64) (*models.Child, error) {
	query := `
		SELECT id, owner_id, name, date_of_birth, is_active, created_at, updated_at
		FROM children WHERE id = ?
	`
	return scanChild(r.db.QueryRow(query, id))
}

// GetChildrenByOwner retrieves all active children owned by a user
func (r *ChildRepository) GetChildrenByOwner(ownerID int64) ([]models.Child, error) {
	query := fmt.Sprintf(`
		SELECT id, owner_id, name, date_of_birth, is_active, created_at, updated_at
		FROM children
		WHERE owner_id = ? AND is_active = %s
		ORDER BY name ASC
	`, r.db.Dialect.BoolValue(true))

	rows, err := r.db.Query(query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query children: %w", err)
	}
	defer rows.Close()

	var children []models.Child
	for rows.Next() {
		child, err := scanChildRow(rows)
		if err != nil {
			return nil, err
		}
		children = append(children, *child)
	}
	return children, rows.Err()
}

// UpdateChild updates a child's profile fields
func (r *ChildRepository) UpdateChild(id int64, name string, dateOfBirth *time.Time) error {
	query := `UPDATE children SET name = ?, date_of_birth = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`
	if _, err := r.db.Exec(query, name, nullTime(dateOfBirth), id); err != nil {
		return fmt.Errorf("failed to update child: %w", err)
	}
	return nil
}

// DeactivateChild soft-deletes a child profile
func (r *ChildRepository) DeactivateChild(id int64) error {
	query := fmt.Sprintf(`UPDATE children SET is_active = %s, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		r.db.Dialect.BoolValue(false))
	if _, err := r.db.Exec(query, id); err != nil {
		return fmt.Errorf("failed to deactivate child: %w", err)
	}
	return nil
}

func scanChild(row *sql.Row) (*models.Child, error) {
	child := &models.Child{}
	var dob sql.NullTime
	err := row.Scan(
		&child.ID, &child.OwnerID, &child.Name, &dob,
		&child.IsActive, &child.CreatedAt, &child.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get child: %w", err)
	}
	if dob.Valid {
		child.DateOfBirth = &dob.Time
	}
	return child, nil
}

func scanChildRow(rows *sql.Rows) (*models.Child, error) {
	child := &models.Child{}
	var dob sql.NullTime
	err := rows.Scan(
		&child.ID, &child.OwnerID, &child.Name, &dob,
		&child.IsActive, &child.CreatedAt, &child.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan child: %w", err)
	}
	if dob.Valid {
		child.DateOfBirth = &dob.Time
	}
	return child, nil
}

// nullTime converts a *time.Time to a driver-friendly nullable value
func nullTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return *t
}
