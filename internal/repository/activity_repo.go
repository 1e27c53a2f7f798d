package repository

import (
	"database/sql"
	"fmt"
	"time"

	"kidsactivity/internal/database"
	"kidsactivity/internal/models"
)

// ActivityRepository handles database operations for the activity catalog.
// The catalog is fed by the scraper; the API reads it.
type ActivityRepository struct {
	db *database.DB
}

// NewActivityRepository creates a new activity repository
func NewActivityRepository(db *database.DB) *ActivityRepository {
	return &ActivityRepository{db: db}
}

// UpsertActivity inserts a catalog entry or updates it if the external ID is
// already known. Called by the scraper import path.
func (r *ActivityRepository) UpsertActivity(a models.Activity) (*models.Activity, error) {
	if a.ExternalID != nil {
		existing, err := r.getByExternalID(*a.ExternalID)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			query := `
				UPDATE activities
				SET name = ?, category = ?, description = ?, location = ?, cost = ?,
				    date_start = ?, date_end = ?, updated_at = CURRENT_TIMESTAMP
				WHERE id = ?
			`
			_, err := r.db.Exec(query, a.Name, a.Category, a.Description, a.Location, a.Cost,
				nullTime(a.DateStart), nullTime(a.DateEnd), existing.ID)
			if err != nil {
				return nil, fmt.Errorf("failed to update activity: %w", err)
			}
			return r.GetActivityByID(existing.ID)
		}
	}

	query := `
		INSERT INTO activities (external_id, name, category, description, location, cost, date_start, date_end)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	id, err := r.db.ExecReturningID(query, nullString(a.ExternalID), a.Name, a.Category,
		a.Description, a.Location, a.Cost, nullTime(a.DateStart), nullTime(a.DateEnd))
	if err != nil {
		return nil, fmt.Errorf("failed to create activity: %w", err)
	}
	return r.GetActivityByID(id)
}

// GetActivityByID retrieves a catalog entry by ID, or nil if none exists
func (r *ActivityRepository) GetActivityByID(id int64) (*models.Activity, error) {
	query := activitySelect + ` WHERE id = ?`
	row := r.db.QueryRow(query, id)
	activity, err := scanActivityValues(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get activity: %w", err)
	}
	return activity, nil
}

// ListActivities retrieves catalog entries, optionally filtered by category
// and a minimum start date.
func (r *ActivityRepository) ListActivities(category string, startingAfter *time.Time, limit int) ([]models.Activity, error) {
	query := activitySelect + ` WHERE 1 = 1`
	var args []interface{}

	if category != "" {
		query += ` AND category = ?`
		args = append(args, category)
	}
	if startingAfter != nil {
		query += ` AND date_start IS NOT NULL AND date_start > ?`
		args = append(args, *startingAfter)
	}
	query += ` ORDER BY date_start ASC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query activities: %w", err)
	}
	defer rows.Close()

	var activities []models.Activity
	for rows.Next() {
		activity, err := scanActivityValues(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan activity: %w", err)
		}
		activities = append(activities, *activity)
	}
	return activities, rows.Err()
}

func (r *ActivityRepository) getByExternalID(externalID string) (*models.Activity, error) {
	query := activitySelect + ` WHERE external_id = ?`
	row := r.db.QueryRow(query, externalID)
	activity, err := scanActivityValues(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get activity by external id: %w", err)
	}
	return activity, nil
}

const activitySelect = `
	SELECT id, external_id, name, category, description, location, cost,
	       date_start, date_end, created_at, updated_at
	FROM activities
`

// scanActivityValues scans one activities row through the given Scan func,
// handling the nullable columns.
func scanActivityValues(scan func(...interface{}) error) (*models.Activity, error) {
	activity := &models.Activity{}
	var externalID sql.NullString
	var dateStart, dateEnd sql.NullTime

	err := scan(
		&activity.ID, &externalID, &activity.Name, &activity.Category,
		&activity.Description, &activity.Location, &activity.Cost,
		&dateStart, &dateEnd, &activity.CreatedAt, &activity.UpdatedAt,
	)
	if err != nil {
		return nil, err
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
	return activity, nil
}

// nullString converts a *string to a driver-friendly nullable value
func nullString(s *string) interface{} {
	if s == nil {
		return nil
	}
	return *s
}
