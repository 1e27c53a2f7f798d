package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"kidsactivity/internal/database"
	"kidsactivity/internal/models"
)

// ErrInvitationResolved reports a status transition that found the
// invitation already out of the pending state.
var ErrInvitationResolved = errors.New("invitation is no longer pending")

// InvitationRepository handles database operations for sharing invitations
type InvitationRepository struct {
	db *database.DB
}

// NewInvitationRepository creates a new invitation repository
func NewInvitationRepository(db *database.DB) *InvitationRepository {
	return &InvitationRepository{db: db}
}

// CreateInvitation inserts a new pending invitation
func (r *InvitationRepository) CreateInvitation(invitation *models.Invitation) error {
	query := `
		INSERT INTO invitations (token, sender_id, recipient_email, status, message, expires_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	id, err := r.db.ExecReturningID(query,
		invitation.Token, invitation.SenderID, invitation.RecipientEmail,
		string(invitation.Status), invitation.Message, invitation.ExpiresAt)
	if err != nil {
		return fmt.Errorf("failed to create invitation: %w", err)
	}
	invitation.ID = id
	return nil
}

// GetByToken retrieves an invitation by its opaque token, with the sender's
// name and email joined in, or nil
func (r *InvitationRepository) GetByToken(token string) (*models.Invitation, error) {
	query := invitationSelect + ` WHERE i.token = ?`
	row := r.db.QueryRow(query, token)
	invitation, err := scanInvitationValues(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get invitation by token: %w", err)
	}
	return invitation, nil
}

// GetByID retrieves an invitation by ID, or nil
func (r *InvitationRepository) GetByID(id int64) (*models.Invitation, error) {
	query := invitationSelect + ` WHERE i.id = ?`
	row := r.db.QueryRow(query, id)
	invitation, err := scanInvitationValues(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get invitation: %w", err)
	}
	return invitation, nil
}

// GetPendingBySenderAndEmail retrieves a pending, non-expired invitation from
// a sender to a recipient email, or nil. Used to enforce one live invitation
// per pair.
func (r *InvitationRepository) GetPendingBySenderAndEmail(senderID int64, email string, now time.Time) (*models.Invitation, error) {
	query := invitationSelect + `
		WHERE i.sender_id = ? AND i.recipient_email = ? AND i.status = ? AND i.expires_at > ?
	`
	row := r.db.QueryRow(query, senderID, email, string(models.InvitationPending), now)
	invitation, err := scanInvitationValues(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get pending invitation: %w", err)
	}
	return invitation, nil
}

// CountPendingBySender returns how many live pending invitations a sender has
func (r *InvitationRepository) CountPendingBySender(senderID int64, now time.Time) (int, error) {
	var count int
	query := `
		SELECT COUNT(*) FROM invitations
		WHERE sender_id = ? AND status = ? AND expires_at > ?
	`
	err := r.db.QueryRow(query, senderID, string(models.InvitationPending), now).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count pending invitations: %w", err)
	}
	return count, nil
}

// GetBySender retrieves all invitations a user has sent, newest first
func (r *InvitationRepository) GetBySender(senderID int64) ([]models.Invitation, error) {
	query := invitationSelect + ` WHERE i.sender_id = ? ORDER BY i.created_at DESC`
	return r.queryInvitations(query, senderID)
}

// GetPendingByEmail retrieves all live pending invitations addressed to an
// email, newest first. This is the inbox of a recipient who may not have had
// an account when the invitations were sent.
func (r *InvitationRepository) GetPendingByEmail(email string, now time.Time) ([]models.Invitation, error) {
	query := invitationSelect + `
		WHERE i.recipient_email = ? AND i.status = ? AND i.expires_at > ?
		ORDER BY i.created_at DESC
	`
	return r.queryInvitations(query, email, string(models.InvitationPending), now)
}

// MarkAccepted transitions an invitation to accepted and binds it to the
// accepting user. Runs on the given DBTX so acceptance and share creation
// commit together. Returns ErrInvitationResolved if a concurrent writer got
// to the row first; non-pending statuses are terminal and never overwritten.
func (r *InvitationRepository) MarkAccepted(q database.DBTX, id, userID int64, now time.Time) error {
	query := `
		UPDATE invitations
		SET status = ?, recipient_user_id = ?, accepted_at = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND status = ?
	`
	result, err := q.Exec(query, string(models.InvitationAccepted), userID, now, id, string(models.InvitationPending))
	if err != nil {
		return fmt.Errorf("failed to mark invitation accepted: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to mark invitation accepted: %w", err)
	}
	if rows == 0 {
		return ErrInvitationResolved
	}
	return nil
}

// UpdateStatus moves a pending invitation to a terminal status. Returns
// ErrInvitationResolved when the row is no longer pending.
func (r *InvitationRepository) UpdateStatus(id int64, status models.InvitationStatus) error {
	query := `UPDATE invitations SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ? AND status = ?`
	result, err := r.db.Exec(query, string(status), id, string(models.InvitationPending))
	if err != nil {
		return fmt.Errorf("failed to update invitation status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update invitation status: %w", err)
	}
	if rows == 0 {
		return ErrInvitationResolved
	}
	return nil
}

// ExpirePending marks every pending invitation whose deadline has passed as
// expired and returns the number of rows affected. Safe to run repeatedly.
func (r *InvitationRepository) ExpirePending(now time.Time) (int64, error) {
	query := `
		UPDATE invitations
		SET status = ?, updated_at = CURRENT_TIMESTAMP
		WHERE status = ? AND expires_at <= ?
	`
	result, err := r.db.Exec(query, string(models.InvitationExpired), string(models.InvitationPending), now)
	if err != nil {
		return 0, fmt.Errorf("failed to expire invitations: %w", err)
	}
	return result.RowsAffected()
}

func (r *InvitationRepository) queryInvitations(query string, args ...interface{}) ([]models.Invitation, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query invitations: %w", err)
	}
	defer rows.Close()

	var invitations []models.Invitation
	for rows.Next() {
		invitation, err := scanInvitationValues(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan invitation: %w", err)
		}
		invitations = append(invitations, *invitation)
	}
	return invitations, rows.Err()
}

const invitationSelect = `
	SELECT i.id, i.token, i.sender_id, i.recipient_email, i.recipient_user_id,
	       i.status, i.message, i.expires_at, i.accepted_at, i.created_at, i.updated_at,
	       u.name, u.email
	FROM invitations i
	INNER JOIN users u ON i.sender_id = u.id
`

func scanInvitationValues(scan func(...interface{}) error) (*models.Invitation, error) {
	invitation := &models.Invitation{}
	var recipientUserID sql.NullInt64
	var message sql.NullString
	var acceptedAt sql.NullTime
	err := scan(
		&invitation.ID, &invitation.Token, &invitation.SenderID, &invitation.RecipientEmail,
		&recipientUserID, &invitation.Status, &message, &invitation.ExpiresAt,
		&acceptedAt, &invitation.CreatedAt, &invitation.UpdatedAt,
		&invitation.SenderName, &invitation.SenderEmail,
	)
	if err != nil {
		return nil, err
	}
	if recipientUserID.Valid {
		invitation.RecipientUserID = &recipientUserID.Int64
	}
	invitation.Message = message.String
	if acceptedAt.Valid {
		invitation.AcceptedAt = &acceptedAt.Time
	}
	return invitation, nil
}
