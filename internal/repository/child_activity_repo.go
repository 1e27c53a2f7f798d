package repository

import (
	"database/sql"
	"fmt"
	"time"

	"kidsactivity/internal/database"
	"kidsactivity/internal/models"
)

// ChildActivityRepository handles database operations for scheduled
// activities (the child <-> catalog links).
type ChildActivityRepository struct {
	db *database.DB
}

// NewChildActivityRepository creates a new child activity repository
func NewChildActivityRepository(db *database.DB) *ChildActivityRepository {
	return &ChildActivityRepository{db: db}
}

// CreateChildActivity links a child to a catalog activity
func (r *ChildActivityRepository) CreateChildActivity(childID, activityID int64, status models.ActivityStatus, notes *string) (*models.ChildActivity, error) {
	var registeredAt interface{}
	if status == models.StatusRegistered {
		registeredAt = time.Now()
	}

	query := `
		INSERT INTO child_activities (child_id, activity_id, status, notes, registered_at)
		VALUES (?, ?, ?, ?, ?)
	`
	id, err := r.db.ExecReturningID(query, childID, activityID, string(status), nullString(notes), registeredAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create child activity: %w", err)
	}
	return r.GetChildActivityByID(id)
}

// GetChildActivityByID retrieves one scheduled activity with its catalog
// entry, or nil if none exists.
func (r *ChildActivityRepository) GetChildActivityByID(id int64) (*models.ChildActivity, error) {
	query := childActivitySelect + ` WHERE ca.id = ?`
	row := r.db.QueryRow(query, id)
	ca, err := scanChildActivityValues(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get child activity: %w", err)
	}
	return ca, nil
}

// GetActivitiesForChild retrieves the full scheduled-activity list for one
// child, newest first, each with its catalog entry joined in.
func (r *ChildActivityRepository) GetActivitiesForChild(childID int64) ([]models.ChildActivity, error) {
	query := childActivitySelect + ` WHERE ca.child_id = ? ORDER BY ca.created_at DESC`

	rows, err := r.db.Query(query, childID)
	if err != nil {
		return nil, fmt.Errorf("failed to query child activities: %w", err)
	}
	defer rows.Close()

	var activities []models.ChildActivity
	for rows.Next() {
		ca, err := scanChildActivityValues(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan child activity: %w", err)
		}
		activities = append(activities, *ca)
	}
	return activities, rows.Err()
}

// UpdateChildActivity updates status, notes, and rating. Status transitions
// stamp registered_at/completed_at the first time they are reached.
func (r *ChildActivityRepository) UpdateChildActivity(id int64, status models.ActivityStatus, notes *string, rating *int) error {
	query := `
		UPDATE child_activities
		SET status = ?, notes = ?, rating = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`
	if _, err := r.db.Exec(query, string(status), nullString(notes), nullInt(rating), id); err != nil {
		return fmt.Errorf("failed to update child activity: %w", err)
	}

	var stampColumn string
	switch status {
	case models.StatusRegistered:
		stampColumn = "registered_at"
	case models.StatusCompleted:
		stampColumn = "completed_at"
	default:
		return nil
	}

	stamp := fmt.Sprintf(`UPDATE child_activities SET %s = ? WHERE id = ? AND %s IS NULL`, stampColumn, stampColumn)
	if _, err := r.db.Exec(stamp, time.Now(), id); err != nil {
		return fmt.Errorf("failed to stamp child activity: %w", err)
	}
	return nil
}

// DeleteChildActivity removes a scheduled activity
func (r *ChildActivityRepository) DeleteChildActivity(id int64) error {
	query := `DELETE FROM child_activities WHERE id = ?`
	if _, err := r.db.Exec(query, id); err != nil {
		return fmt.Errorf("failed to delete child activity: %w", err)
	}
	return nil
}

const childActivitySelect = `
	SELECT ca.id, ca.child_id, ca.activity_id, ca.status, ca.notes, ca.rating,
	       ca.registered_at, ca.completed_at, ca.created_at, ca.updated_at,
	       a.id, a.external_id, a.name, a.category, a.description, a.location, a.cost,
	       a.date_start, a.date_end, a.created_at, a.updated_at
	FROM child_activities ca
	INNER JOIN activities a ON ca.activity_id = a.id
`

func scanChildActivityValues(scan func(...interface{}) error) (*models.ChildActivity, error) {
	ca := &models.ChildActivity{}
	activity := &models.Activity{}
	var notes sql.NullString
	var rating sql.NullInt64
	var registeredAt, completedAt sql.NullTime
	var externalID sql.NullString
	var dateStart, dateEnd sql.NullTime

	err := scan(
		&ca.ID, &ca.ChildID, &ca.ActivityID, &ca.Status, &notes, &rating,
		&registeredAt, &completedAt, &ca.CreatedAt, &ca.UpdatedAt,
		&activity.ID, &externalID, &activity.Name, &activity.Category,
		&activity.Description, &activity.Location, &activity.Cost,
		&dateStart, &dateEnd, &activity.CreatedAt, &activity.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if notes.Valid {
		ca.Notes = &notes.String
	}
	if rating.Valid {
		v := int(rating.Int64)
		ca.Rating = &v
	}
	if registeredAt.Valid {
		ca.RegisteredAt = &registeredAt.Time
	}
	if completedAt.Valid {
		ca.CompletedAt = &completedAt.Time
	}
	if externalID.Valid {
		activity.ExternalID = &externalID.String
	}
	if dateStart.Valid {
		activity.DateStart = &dateStart.Time
	}
	if dateEnd.Valid {
		activity.DateEnd = &dateEnd.Time
	}
	ca.Activity = activity
	return ca, nil
}

// nullInt converts a *int to a driver-friendly nullable value
func nullInt(n *int) interface{} {
	if n == nil {
		return nil
	}
	return *n
}
