package repository

import (
	"database/sql"
	"fmt"
	"time"

	"kidsactivity/internal/database"
	"kidsactivity/internal/models"
)

// ShareRepository handles database operations for share relationships and
// their per-child permission profiles.
type ShareRepository struct {
	db *database.DB
}

// NewShareRepository creates a new share repository
func NewShareRepository(db *database.DB) *ShareRepository {
	return &ShareRepository{db: db}
}

// ReplaceShare upserts the relationship for an ordered (sharing, viewer)
// pair and replaces its entire profile set, all inside one transaction.
// If a concurrent caller wins the insert race, the unique constraint on the
// pair rejects our insert and the whole transaction is retried once as an
// update, so callers never see a duplicate-key error.
func (r *ShareRepository) ReplaceShare(sharingUserID, viewerID int64, level models.PermissionLevel, expiresAt *time.Time, perms []models.SharePermission) (*models.ShareRelationship, error) {
	share, err := r.replaceShareTx(sharingUserID, viewerID, level, expiresAt, perms)
	if err != nil && r.db.Dialect.IsUniqueViolation(err) {
		share, err = r.replaceShareTx(sharingUserID, viewerID, level, expiresAt, perms)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to replace share: %w", err)
	}
	return share, nil
}

func (r *ShareRepository) replaceShareTx(sharingUserID, viewerID int64, level models.PermissionLevel, expiresAt *time.Time, perms []models.SharePermission) (*models.ShareRelationship, error) {
	tx, err := r.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var shareID int64
	existing, err := getShareByPair(tx, sharingUserID, viewerID)
	if err != nil {
		return nil, err
	}

	if existing != nil {
		shareID = existing.ID
		query := fmt.Sprintf(`
			UPDATE share_relationships
			SET permission_level = ?, expires_at = ?, is_active = %s, updated_at = CURRENT_TIMESTAMP
			WHERE id = ?
		`, tx.GetDialect().BoolValue(true))
		if _, err := tx.Exec(query, string(level), nullTime(expiresAt), shareID); err != nil {
			return nil, err
		}
	} else {
		query := `
			INSERT INTO share_relationships (sharing_user_id, shared_with_user_id, permission_level, expires_at)
			VALUES (?, ?, ?, ?)
		`
		shareID, err = tx.ExecReturningID(query, sharingUserID, viewerID, string(level), nullTime(expiresAt))
		if err != nil {
			return nil, err
		}
	}

	// Full replace: the submitted list is the complete new profile set.
	if _, err := tx.Exec(`DELETE FROM activity_share_profiles WHERE share_id = ?`, shareID); err != nil {
		return nil, err
	}
	for _, perm := range perms {
		if err := insertProfile(tx, shareID, perm); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return r.GetShareByID(shareID)
}

// CreateShare inserts a new relationship with no profiles. Runs on the given
// DBTX so invitation acceptance can include it in its transaction.
func (r *ShareRepository) CreateShare(q database.DBTX, sharingUserID, viewerID int64, level models.PermissionLevel, expiresAt *time.Time) (int64, error) {
	query := `
		INSERT INTO share_relationships (sharing_user_id, shared_with_user_id, permission_level, expires_at)
		VALUES (?, ?, ?, ?)
	`
	id, err := q.ExecReturningID(query, sharingUserID, viewerID, string(level), nullTime(expiresAt))
	if err != nil {
		return 0, fmt.Errorf("failed to create share: %w", err)
	}
	return id, nil
}

// ReactivateShare re-enables a relationship without touching its permission
// configuration.
func (r *ShareRepository) ReactivateShare(q database.DBTX, shareID int64) error {
	query := fmt.Sprintf(`
		UPDATE share_relationships
		SET is_active = %s, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, q.GetDialect().BoolValue(true))
	if _, err := q.Exec(query, shareID); err != nil {
		return fmt.Errorf("failed to reactivate share: %w", err)
	}
	return nil
}

// GetShareByID retrieves a relationship with its profiles, or nil
func (r *ShareRepository) GetShareByID(id int64) (*models.ShareRelationship, error) {
	query := shareSelect + ` WHERE s.id = ?`
	row := r.db.QueryRow(query, id)
	share, err := scanShareValues(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get share: %w", err)
	}

	share.Profiles, err = r.GetProfilesByShare(id)
	if err != nil {
		return nil, err
	}
	return share, nil
}

// GetShareByPair retrieves the relationship for an ordered pair, or nil
func (r *ShareRepository) GetShareByPair(sharingUserID, viewerID int64) (*models.ShareRelationship, error) {
	return getShareByPair(r.db, sharingUserID, viewerID)
}

// GetShareByPairTx is GetShareByPair running on a caller-owned transaction
func (r *ShareRepository) GetShareByPairTx(q database.DBTX, sharingUserID, viewerID int64) (*models.ShareRelationship, error) {
	return getShareByPair(q, sharingUserID, viewerID)
}

func getShareByPair(q database.DBTX, sharingUserID, viewerID int64) (*models.ShareRelationship, error) {
	query := shareSelect + ` WHERE s.sharing_user_id = ? AND s.shared_with_user_id = ?`
	row := q.QueryRow(query, sharingUserID, viewerID)
	share, err := scanShareValues(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get share by pair: %w", err)
	}
	return share, nil
}

// GetSharesBySharingUser retrieves every relationship a user has configured,
// with viewer names and profiles attached.
func (r *ShareRepository) GetSharesBySharingUser(sharingUserID int64) ([]models.ShareRelationship, error) {
	query := `
		SELECT s.id, s.sharing_user_id, s.shared_with_user_id, s.permission_level,
		       s.expires_at, s.is_active, s.created_at, s.updated_at, u.name
		FROM share_relationships s
		INNER JOIN users u ON s.shared_with_user_id = u.id
		WHERE s.sharing_user_id = ?
		ORDER BY s.created_at DESC
	`
	rows, err := r.db.Query(query, sharingUserID)
	if err != nil {
		return nil, fmt.Errorf("failed to query shares: %w", err)
	}
	defer rows.Close()

	var shares []models.ShareRelationship
	for rows.Next() {
		share := models.ShareRelationship{}
		var expiresAt sql.NullTime
		if err := rows.Scan(
			&share.ID, &share.SharingUserID, &share.SharedWithUserID, &share.PermissionLevel,
			&expiresAt, &share.IsActive, &share.CreatedAt, &share.UpdatedAt, &share.ViewerName,
		); err != nil {
			return nil, fmt.Errorf("failed to scan share: %w", err)
		}
		if expiresAt.Valid {
			share.ExpiresAt = &expiresAt.Time
		}
		shares = append(shares, share)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range shares {
		shares[i].Profiles, err = r.GetProfilesByShare(shares[i].ID)
		if err != nil {
			return nil, err
		}
	}
	return shares, nil
}

// GetLiveSharesForViewer retrieves all active, non-expired relationships
// where the user is the viewer, optionally narrowed to one sharing user
// (sharingUserID 0 means no narrowing). Sharing-user names are joined in;
// profiles are attached.
func (r *ShareRepository) GetLiveSharesForViewer(viewerID, sharingUserID int64, now time.Time) ([]models.ShareRelationship, error) {
	query := fmt.Sprintf(`
		SELECT s.id, s.sharing_user_id, s.shared_with_user_id, s.permission_level,
		       s.expires_at, s.is_active, s.created_at, s.updated_at, u.name
		FROM share_relationships s
		INNER JOIN users u ON s.sharing_user_id = u.id
		WHERE s.shared_with_user_id = ?
		  AND s.is_active = %s
		  AND (s.expires_at IS NULL OR s.expires_at > ?)
	`, r.db.Dialect.BoolValue(true))
	args := []interface{}{viewerID, now}

	if sharingUserID != 0 {
		query += ` AND s.sharing_user_id = ?`
		args = append(args, sharingUserID)
	}
	query += ` ORDER BY s.created_at ASC`

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query viewer shares: %w", err)
	}
	defer rows.Close()

	var shares []models.ShareRelationship
	for rows.Next() {
		share := models.ShareRelationship{}
		var expiresAt sql.NullTime
		if err := rows.Scan(
			&share.ID, &share.SharingUserID, &share.SharedWithUserID, &share.PermissionLevel,
			&expiresAt, &share.IsActive, &share.CreatedAt, &share.UpdatedAt, &share.SharingUserName,
		); err != nil {
			return nil, fmt.Errorf("failed to scan share: %w", err)
		}
		if expiresAt.Valid {
			share.ExpiresAt = &expiresAt.Time
		}
		shares = append(shares, share)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range shares {
		shares[i].Profiles, err = r.GetProfilesByShare(shares[i].ID)
		if err != nil {
			return nil, err
		}
	}
	return shares, nil
}

// UpdateShare writes the full set of mutable relationship fields
func (r *ShareRepository) UpdateShare(id int64, level models.PermissionLevel, expiresAt *time.Time, isActive bool) error {
	query := fmt.Sprintf(`
		UPDATE share_relationships
		SET permission_level = ?, expires_at = ?, is_active = %s, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, r.db.Dialect.BoolValue(isActive))
	if _, err := r.db.Exec(query, string(level), nullTime(expiresAt), id); err != nil {
		return fmt.Errorf("failed to update share: %w", err)
	}
	return nil
}

// DeactivateShare soft-disables a relationship
func (r *ShareRepository) DeactivateShare(id int64) error {
	query := fmt.Sprintf(`
		UPDATE share_relationships
		SET is_active = %s, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, r.db.Dialect.BoolValue(false))
	if _, err := r.db.Exec(query, id); err != nil {
		return fmt.Errorf("failed to deactivate share: %w", err)
	}
	return nil
}

// DeactivateExpired soft-disables every active relationship whose expiry has
// passed and returns the number of rows affected. Safe to run repeatedly.
func (r *ShareRepository) DeactivateExpired(now time.Time) (int64, error) {
	query := fmt.Sprintf(`
		UPDATE share_relationships
		SET is_active = %s, updated_at = CURRENT_TIMESTAMP
		WHERE is_active = %s AND expires_at IS NOT NULL AND expires_at <= ?
	`, r.db.Dialect.BoolValue(false), r.db.Dialect.BoolValue(true))

	result, err := r.db.Exec(query, now)
	if err != nil {
		return 0, fmt.Errorf("failed to deactivate expired shares: %w", err)
	}
	return result.RowsAffected()
}

// GetProfilesByShare retrieves the permission profiles of one relationship
func (r *ShareRepository) GetProfilesByShare(shareID int64) ([]models.SharePermission, error) {
	query := profileSelect + ` WHERE share_id = ? ORDER BY child_id ASC`

	rows, err := r.db.Query(query, shareID)
	if err != nil {
		return nil, fmt.Errorf("failed to query share profiles: %w", err)
	}
	defer rows.Close()

	var profiles []models.SharePermission
	for rows.Next() {
		perm := models.SharePermission{}
		if err := rows.Scan(
			&perm.ID, &perm.ShareID, &perm.ChildID,
			&perm.CanViewInterested, &perm.CanViewRegistered,
			&perm.CanViewCompleted, &perm.CanViewNotes,
			&perm.CreatedAt, &perm.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan share profile: %w", err)
		}
		profiles = append(profiles, perm)
	}
	return profiles, rows.Err()
}

// GetProfile retrieves one (share, child) profile, or nil
func (r *ShareRepository) GetProfile(shareID, childID int64) (*models.SharePermission, error) {
	query := profileSelect + ` WHERE share_id = ? AND child_id = ?`
	row := r.db.QueryRow(query, shareID, childID)

	perm := &models.SharePermission{}
	err := row.Scan(
		&perm.ID, &perm.ShareID, &perm.ChildID,
		&perm.CanViewInterested, &perm.CanViewRegistered,
		&perm.CanViewCompleted, &perm.CanViewNotes,
		&perm.CreatedAt, &perm.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get share profile: %w", err)
	}
	return perm, nil
}

// CreateProfile adds a child to a relationship's profile set
func (r *ShareRepository) CreateProfile(shareID int64, perm models.SharePermission) error {
	return insertProfile(r.db, shareID, perm)
}

func insertProfile(q database.DBTX, shareID int64, perm models.SharePermission) error {
	query := `
		INSERT INTO activity_share_profiles
			(share_id, child_id, can_view_interested, can_view_registered, can_view_completed, can_view_notes)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err := q.Exec(query, shareID, perm.ChildID,
		perm.CanViewInterested, perm.CanViewRegistered, perm.CanViewCompleted, perm.CanViewNotes)
	if err != nil {
		return fmt.Errorf("failed to create share profile: %w", err)
	}
	return nil
}

// UpdateProfile rewrites the four visibility flags of one profile
func (r *ShareRepository) UpdateProfile(shareID, childID int64, perm models.SharePermission) error {
	query := `
		UPDATE activity_share_profiles
		SET can_view_interested = ?, can_view_registered = ?, can_view_completed = ?, can_view_notes = ?,
		    updated_at = CURRENT_TIMESTAMP
		WHERE share_id = ? AND child_id = ?
	`
	_, err := r.db.Exec(query,
		perm.CanViewInterested, perm.CanViewRegistered, perm.CanViewCompleted, perm.CanViewNotes,
		shareID, childID)
	if err != nil {
		return fmt.Errorf("failed to update share profile: %w", err)
	}
	return nil
}

// DeleteProfile removes a child from a relationship's profile set
func (r *ShareRepository) DeleteProfile(shareID, childID int64) error {
	query := `DELETE FROM activity_share_profiles WHERE share_id = ? AND child_id = ?`
	if _, err := r.db.Exec(query, shareID, childID); err != nil {
		return fmt.Errorf("failed to delete share profile: %w", err)
	}
	return nil
}

// CountProfiles returns the number of profiles in a relationship
func (r *ShareRepository) CountProfiles(shareID int64) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM activity_share_profiles WHERE share_id = ?`
	if err := r.db.QueryRow(query, shareID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count share profiles: %w", err)
	}
	return count, nil
}

// HasLiveProfileForChild reports whether any active, non-expired
// relationship grants the viewer a profile on the child. Existence only;
// status and notes filtering remain the caller's responsibility.
func (r *ShareRepository) HasLiveProfileForChild(viewerID, childID int64, now time.Time) (bool, error) {
	query := fmt.Sprintf(`
		SELECT COUNT(*)
		FROM activity_share_profiles p
		INNER JOIN share_relationships s ON p.share_id = s.id
		WHERE s.shared_with_user_id = ?
		  AND p.child_id = ?
		  AND s.is_active = %s
		  AND (s.expires_at IS NULL OR s.expires_at > ?)
	`, r.db.Dialect.BoolValue(true))

	var count int
	if err := r.db.QueryRow(query, viewerID, childID, now).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to check child access: %w", err)
	}
	return count > 0, nil
}

const shareSelect = `
	SELECT s.id, s.sharing_user_id, s.shared_with_user_id, s.permission_level,
	       s.expires_at, s.is_active, s.created_at, s.updated_at
	FROM share_relationships s
`

const profileSelect = `
	SELECT id, share_id, child_id, can_view_interested, can_view_registered,
	       can_view_completed, can_view_notes, created_at, updated_at
	FROM activity_share_profiles
`

func scanShareValues(scan func(...interface{}) error) (*models.ShareRelationship, error) {
	share := &models.ShareRelationship{}
	var expiresAt sql.NullTime
	err := scan(
		&share.ID, &share.SharingUserID, &share.SharedWithUserID, &share.PermissionLevel,
		&expiresAt, &share.IsActive, &share.CreatedAt, &share.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if expiresAt.Valid {
		share.ExpiresAt = &expiresAt.Time
	}
	return share, nil
}
