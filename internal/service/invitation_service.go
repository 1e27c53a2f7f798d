package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"kidsactivity/internal/audit"
	"kidsactivity/internal/database"
	"kidsactivity/internal/models"
	"kidsactivity/internal/repository"
	"kidsactivity/internal/security"
	"kidsactivity/internal/validation"
)

var (
	ErrInvitationNotFound      = errors.New("invitation not found")
	ErrInvitationExpired       = errors.New("invitation has expired")
	ErrInvitationNotPending    = errors.New("invitation has already been resolved")
	ErrInvitationEmailMismatch = errors.New("invitation was sent to a different email address")
	ErrSelfInvitation          = errors.New("cannot invite yourself")
	ErrDuplicateInvitation     = errors.New("a pending invitation to this email already exists")
	ErrAlreadySharing          = errors.New("an active share with this user already exists")
	ErrInvitationLimitReached  = errors.New("too many pending invitations")
	ErrNotInvitationSender     = errors.New("user did not send this invitation")
)

// InvitationService handles the sharing invitation workflow: a time-boxed,
// token-keyed state machine whose acceptance establishes (or reactivates) a
// share relationship.
type InvitationService struct {
	db             *database.DB
	invitationRepo *repository.InvitationRepository
	shareRepo      *repository.ShareRepository
	userRepo       *repository.UserRepository
	mailer         Mailer
	auditSink      audit.Sink
	expiry         time.Duration
	maxPending     int
}

// NewInvitationService creates a new invitation service
func NewInvitationService(
	db *database.DB,
	invitationRepo *repository.InvitationRepository,
	shareRepo *repository.ShareRepository,
	userRepo *repository.UserRepository,
	mailer Mailer,
	auditSink audit.Sink,
	expiry time.Duration,
	maxPending int,
) *InvitationService {
	return &InvitationService{
		db:             db,
		invitationRepo: invitationRepo,
		shareRepo:      shareRepo,
		userRepo:       userRepo,
		mailer:         mailer,
		auditSink:      auditSink,
		expiry:         expiry,
		maxPending:     maxPending,
	}
}

// CreateInvitation sends a new sharing invitation to an email address. The
// recipient does not need an account yet. A sender may hold at most one live
// pending invitation per recipient email and a bounded number overall.
// expiresInDays overrides the configured expiry window; zero means use it.
func (s *InvitationService) CreateInvitation(ctx context.Context, senderID int64, recipientEmail, message string, expiresInDays int) (*models.Invitation, error) {
	recipientEmail = validation.NormalizeEmail(recipientEmail)
	if err := validation.ValidateEmail(recipientEmail); err != nil {
		return nil, err
	}

	expiry := s.expiry
	if expiresInDays != 0 {
		if expiresInDays < 1 {
			return nil, &validation.ValidationError{Field: "expiresInDays", Message: "must be at least 1"}
		}
		expiry = time.Duration(expiresInDays) * 24 * time.Hour
	}

	sender, err := s.userRepo.GetUserByID(senderID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up sender: %w", err)
	}
	if sender == nil {
		return nil, ErrInvitationNotFound
	}
	if validation.NormalizeEmail(sender.Email) == recipientEmail {
		return nil, ErrSelfInvitation
	}

	now := time.Now()

	// If the recipient already has an account and a live share, there is
	// nothing for an invitation to establish.
	recipient, err := s.userRepo.GetUserByEmail(recipientEmail)
	if err != nil {
		return nil, fmt.Errorf("failed to look up recipient: %w", err)
	}
	if recipient != nil {
		share, err := s.shareRepo.GetShareByPair(senderID, recipient.ID)
		if err != nil {
			return nil, err
		}
		if share != nil && share.IsLive() {
			return nil, ErrAlreadySharing
		}
	}

	existing, err := s.invitationRepo.GetPendingBySenderAndEmail(senderID, recipientEmail, now)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrDuplicateInvitation
	}

	pending, err := s.invitationRepo.CountPendingBySender(senderID, now)
	if err != nil {
		return nil, err
	}
	if pending >= s.maxPending {
		return nil, ErrInvitationLimitReached
	}

	token, err := security.GenerateSecureToken(32)
	if err != nil {
		return nil, fmt.Errorf("failed to generate invitation token: %w", err)
	}

	invitation := &models.Invitation{
		Token:          token,
		SenderID:       senderID,
		RecipientEmail: recipientEmail,
		Status:         models.InvitationPending,
		Message:        message,
		ExpiresAt:      now.Add(expiry),
	}
	if err := s.invitationRepo.CreateInvitation(invitation); err != nil {
		return nil, err
	}
	invitation.SenderName = sender.Name
	invitation.SenderEmail = sender.Email

	s.auditSink.Record(audit.Event{
		Action:   audit.ActionInvitationCreated,
		ActorID:  senderID,
		TargetID: invitation.ID,
		Metadata: map[string]interface{}{"recipient_email": recipientEmail},
	})

	if err := s.mailer.SendInvitationEmail(ctx, recipientEmail, sender.Name, message, token, invitation.ExpiresAt); err != nil {
		log.Printf("Warning: failed to send invitation email to %s: %v", recipientEmail, err)
	}

	return invitation, nil
}

// GetInvitationByToken retrieves an invitation for display. Only the sender
// or the addressed recipient may see it.
func (s *InvitationService) GetInvitationByToken(userID int64, token string) (*models.Invitation, error) {
	invitation, err := s.invitationRepo.GetByToken(token)
	if err != nil {
		return nil, err
	}
	if invitation == nil {
		return nil, ErrInvitationNotFound
	}

	if invitation.SenderID != userID {
		user, err := s.userRepo.GetUserByID(userID)
		if err != nil {
			return nil, fmt.Errorf("failed to look up user: %w", err)
		}
		if user == nil || validation.NormalizeEmail(user.Email) != invitation.RecipientEmail {
			return nil, ErrInvitationNotFound
		}
	}
	return invitation, nil
}

// AcceptInvitation resolves a pending invitation and establishes the share
// relationship from sender to accepter. A brand-new relationship starts at
// the default permission level with no child profiles; the sender still has
// to configure which children are visible. An existing deactivated
// relationship is reactivated with its previous configuration intact.
// Acceptance and the share change commit in one transaction.
func (s *InvitationService) AcceptInvitation(ctx context.Context, userID int64, token string) (*models.ShareRelationship, error) {
	invitation, user, err := s.resolvePendingInvitation(userID, token)
	if err != nil {
		return nil, err
	}

	now := time.Now()

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.invitationRepo.MarkAccepted(tx, invitation.ID, userID, now); err != nil {
		if errors.Is(err, repository.ErrInvitationResolved) {
			return nil, ErrInvitationNotPending
		}
		return nil, err
	}

	share, err := s.shareRepo.GetShareByPairTx(tx, invitation.SenderID, userID)
	if err != nil {
		return nil, err
	}

	var shareID int64
	if share == nil {
		shareID, err = s.shareRepo.CreateShare(tx, invitation.SenderID, userID, models.PermissionViewRegistered, nil)
		if err != nil {
			return nil, err
		}
	} else {
		shareID = share.ID
		if !share.IsActive {
			if err := s.shareRepo.ReactivateShare(tx, shareID); err != nil {
				return nil, err
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.auditSink.Record(audit.Event{
		Action:   audit.ActionInvitationAccepted,
		ActorID:  userID,
		TargetID: invitation.ID,
		Metadata: map[string]interface{}{"share_id": shareID},
	})

	if err := s.mailer.SendInvitationAcceptedEmail(ctx, invitation.SenderEmail, invitation.SenderName, user.Name); err != nil {
		log.Printf("Warning: failed to send invitation accepted email to %s: %v", invitation.SenderEmail, err)
	}

	return s.shareRepo.GetShareByID(shareID)
}

// DeclineInvitation resolves a pending invitation without creating a share
func (s *InvitationService) DeclineInvitation(ctx context.Context, userID int64, token string) error {
	invitation, user, err := s.resolvePendingInvitation(userID, token)
	if err != nil {
		return err
	}

	if err := s.invitationRepo.UpdateStatus(invitation.ID, models.InvitationDeclined); err != nil {
		if errors.Is(err, repository.ErrInvitationResolved) {
			return ErrInvitationNotPending
		}
		return err
	}

	s.auditSink.Record(audit.Event{
		Action:   audit.ActionInvitationDeclined,
		ActorID:  userID,
		TargetID: invitation.ID,
	})

	if err := s.mailer.SendInvitationDeclinedEmail(ctx, invitation.SenderEmail, invitation.SenderName, user.Email); err != nil {
		log.Printf("Warning: failed to send invitation declined email to %s: %v", invitation.SenderEmail, err)
	}
	return nil
}

// resolvePendingInvitation loads an invitation by token and checks that it is
// still actionable by this user. An invitation found to be past its expiry is
// recorded as expired on the spot, without waiting for the sweep.
func (s *InvitationService) resolvePendingInvitation(userID int64, token string) (*models.Invitation, *models.User, error) {
	invitation, err := s.invitationRepo.GetByToken(token)
	if err != nil {
		return nil, nil, err
	}
	if invitation == nil {
		return nil, nil, ErrInvitationNotFound
	}
	if invitation.Status == models.InvitationExpired {
		return nil, nil, ErrInvitationExpired
	}
	if invitation.IsTerminal() {
		return nil, nil, ErrInvitationNotPending
	}
	if invitation.IsExpired() {
		err := s.invitationRepo.UpdateStatus(invitation.ID, models.InvitationExpired)
		if err != nil && !errors.Is(err, repository.ErrInvitationResolved) {
			log.Printf("Warning: failed to record invitation %d as expired: %v", invitation.ID, err)
		}
		return nil, nil, ErrInvitationExpired
	}

	user, err := s.userRepo.GetUserByID(userID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to look up user: %w", err)
	}
	if user == nil {
		return nil, nil, ErrInvitationNotFound
	}
	if validation.NormalizeEmail(user.Email) != invitation.RecipientEmail {
		return nil, nil, ErrInvitationEmailMismatch
	}
	return invitation, user, nil
}

// CancelInvitation withdraws a pending invitation. Only the sender may
// cancel, and only while the invitation is still pending.
func (s *InvitationService) CancelInvitation(senderID int64, invitationID int64) error {
	invitation, err := s.invitationRepo.GetByID(invitationID)
	if err != nil {
		return err
	}
	if invitation == nil {
		return ErrInvitationNotFound
	}
	if invitation.SenderID != senderID {
		return ErrNotInvitationSender
	}
	if !invitation.IsPending() {
		return ErrInvitationNotPending
	}

	if err := s.invitationRepo.UpdateStatus(invitationID, models.InvitationCancelled); err != nil {
		if errors.Is(err, repository.ErrInvitationResolved) {
			return ErrInvitationNotPending
		}
		return err
	}

	s.auditSink.Record(audit.Event{
		Action:   audit.ActionInvitationCancelled,
		ActorID:  senderID,
		TargetID: invitationID,
	})
	return nil
}

// GetSentInvitations retrieves every invitation the user has sent
func (s *InvitationService) GetSentInvitations(senderID int64) ([]models.Invitation, error) {
	return s.invitationRepo.GetBySender(senderID)
}

// GetReceivedInvitations retrieves the live pending invitations addressed to
// the user's email.
func (s *InvitationService) GetReceivedInvitations(userID int64) ([]models.Invitation, error) {
	user, err := s.userRepo.GetUserByID(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	if user == nil {
		return nil, ErrInvitationNotFound
	}
	return s.invitationRepo.GetPendingByEmail(validation.NormalizeEmail(user.Email), time.Now())
}

// CleanupExpiredInvitations marks every overdue pending invitation as expired
// and returns how many were touched. Running it again immediately returns
// zero.
func (s *InvitationService) CleanupExpiredInvitations() (int64, error) {
	return s.invitationRepo.ExpirePending(time.Now())
}
