package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kidsactivity/internal/audit"
	"kidsactivity/internal/models"
	"kidsactivity/internal/repository"
	"kidsactivity/internal/security"
	"kidsactivity/internal/validation"
)

func TestCreateInvitation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	sender := env.createUser(t, "sender@example.com", "Sana")

	invitation, err := env.invitations.CreateInvitation(ctx, sender.ID, "  Friend@Example.COM ", "come see our activities", 0)
	require.NoError(t, err)

	assert.Equal(t, "friend@example.com", invitation.RecipientEmail, "recipient email is normalized")
	assert.Equal(t, models.InvitationPending, invitation.Status)
	assert.NotEmpty(t, invitation.Token)
	assert.True(t, invitation.ExpiresAt.After(time.Now()))
	assert.Equal(t, audit.ActionInvitationCreated, env.audit.LastAction())
	assert.Contains(t, env.mailer.sentTo(), "invitation:friend@example.com")
}

func TestCreateInvitationCustomExpiry(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	sender := env.createUser(t, "sender@example.com", "Sana")

	invitation, err := env.invitations.CreateInvitation(ctx, sender.ID, "one@example.com", "", 1)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(24*time.Hour), invitation.ExpiresAt, time.Minute)

	var vErr *validation.ValidationError
	_, err = env.invitations.CreateInvitation(ctx, sender.ID, "two@example.com", "", -1)
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "expiresInDays", vErr.Field)

	// Omitted, the configured default applies
	invitation, err = env.invitations.CreateInvitation(ctx, sender.ID, "three@example.com", "", 0)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(7*24*time.Hour), invitation.ExpiresAt, time.Minute)
}

func TestCreateInvitationGuards(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	sender := env.createUser(t, "sender@example.com", "Sana")

	_, err := env.invitations.CreateInvitation(ctx, sender.ID, "Sender@example.com", "", 0)
	assert.ErrorIs(t, err, ErrSelfInvitation)

	_, err = env.invitations.CreateInvitation(ctx, sender.ID, "not-an-email", "", 0)
	assert.Error(t, err)

	_, err = env.invitations.CreateInvitation(ctx, sender.ID, "friend@example.com", "", 0)
	require.NoError(t, err)

	// One live pending invitation per (sender, email)
	_, err = env.invitations.CreateInvitation(ctx, sender.ID, "friend@example.com", "", 0)
	assert.ErrorIs(t, err, ErrDuplicateInvitation)

	// Someone else may still invite the same address
	other := env.createUser(t, "other@example.com", "Omar")
	_, err = env.invitations.CreateInvitation(ctx, other.ID, "friend@example.com", "", 0)
	assert.NoError(t, err)
}

func TestCreateInvitationRejectsExistingShare(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	sender := env.createUser(t, "sender@example.com", "Sana")
	viewer := env.createUser(t, "viewer@example.com", "Vik")
	child := env.createChild(t, sender.ID, "Maya")

	_, err := env.sharing.ConfigureSharing(ctx, sender.ID, ShareConfig{
		SharedWithUserID: viewer.ID,
		Children:         []ChildShareConfig{shareAllFlags(child.ID)},
	})
	require.NoError(t, err)

	// A live share already grants access; nothing to invite for.
	_, err = env.invitations.CreateInvitation(ctx, sender.ID, "Viewer@example.com", "", 0)
	assert.ErrorIs(t, err, ErrAlreadySharing)

	// A revoked share no longer blocks a fresh invitation.
	shares, err := env.sharing.GetUserShares(sender.ID)
	require.NoError(t, err)
	require.Len(t, shares, 1)
	require.NoError(t, env.sharing.RevokeShare(ctx, sender.ID, shares[0].ID))

	_, err = env.invitations.CreateInvitation(ctx, sender.ID, "viewer@example.com", "", 0)
	assert.NoError(t, err)
}

func TestCreateInvitationPendingLimit(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// A service with a tiny cap, same database
	limited := NewInvitationService(env.db, env.invitationRepo, env.shareRepo, env.userRepo, env.mailer, env.audit, 7*24*time.Hour, 2)
	sender := env.createUser(t, "sender@example.com", "Sana")

	_, err := limited.CreateInvitation(ctx, sender.ID, "one@example.com", "", 0)
	require.NoError(t, err)
	_, err = limited.CreateInvitation(ctx, sender.ID, "two@example.com", "", 0)
	require.NoError(t, err)

	_, err = limited.CreateInvitation(ctx, sender.ID, "three@example.com", "", 0)
	assert.ErrorIs(t, err, ErrInvitationLimitReached)
}

func TestAcceptInvitationCreatesDefaultShare(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	sender := env.createUser(t, "sender@example.com", "Sana")
	recipient := env.createUser(t, "friend@example.com", "Fay")

	invitation, err := env.invitations.CreateInvitation(ctx, sender.ID, "friend@example.com", "", 0)
	require.NoError(t, err)

	share, err := env.invitations.AcceptInvitation(ctx, recipient.ID, invitation.Token)
	require.NoError(t, err)
	require.NotNil(t, share)

	assert.Equal(t, sender.ID, share.SharingUserID)
	assert.Equal(t, recipient.ID, share.SharedWithUserID)
	assert.Equal(t, models.PermissionViewRegistered, share.PermissionLevel)
	assert.True(t, share.IsActive)
	assert.Empty(t, share.Profiles, "acceptance grants no child profiles; the sender configures those")

	resolved, err := env.invitationRepo.GetByToken(invitation.Token)
	require.NoError(t, err)
	assert.Equal(t, models.InvitationAccepted, resolved.Status)
	require.NotNil(t, resolved.RecipientUserID)
	assert.Equal(t, recipient.ID, *resolved.RecipientUserID)
	assert.NotNil(t, resolved.AcceptedAt)

	assert.Contains(t, env.mailer.sentTo(), "accepted:sender@example.com")

	// Terminal states stay terminal
	_, err = env.invitations.AcceptInvitation(ctx, recipient.ID, invitation.Token)
	assert.ErrorIs(t, err, ErrInvitationNotPending)
}

func TestAcceptInvitationReactivatesExistingShare(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	sender := env.createUser(t, "sender@example.com", "Sana")
	recipient := env.createUser(t, "friend@example.com", "Fay")
	emma := env.createChild(t, sender.ID, "Emma")

	configured, err := env.sharing.ConfigureSharing(ctx, sender.ID, ShareConfig{
		SharedWithUserID: recipient.ID,
		PermissionLevel:  models.PermissionViewAll,
		Children:         []ChildShareConfig{shareAllFlags(emma.ID)},
	})
	require.NoError(t, err)
	require.NoError(t, env.sharing.RevokeShare(ctx, sender.ID, configured.ID))

	invitation, err := env.invitations.CreateInvitation(ctx, sender.ID, "friend@example.com", "", 0)
	require.NoError(t, err)

	share, err := env.invitations.AcceptInvitation(ctx, recipient.ID, invitation.Token)
	require.NoError(t, err)

	assert.Equal(t, configured.ID, share.ID, "the pair's single relationship row is reused")
	assert.True(t, share.IsActive)
	assert.Equal(t, models.PermissionViewAll, share.PermissionLevel, "previous configuration survives reactivation")
	require.Len(t, share.Profiles, 1)
	assert.Equal(t, emma.ID, share.Profiles[0].ChildID)
}

func TestAcceptInvitationGuards(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	sender := env.createUser(t, "sender@example.com", "Sana")
	recipient := env.createUser(t, "friend@example.com", "Fay")
	stranger := env.createUser(t, "stranger@example.com", "Sam")

	invitation, err := env.invitations.CreateInvitation(ctx, sender.ID, "friend@example.com", "", 0)
	require.NoError(t, err)

	_, err = env.invitations.AcceptInvitation(ctx, recipient.ID, "no-such-token")
	assert.ErrorIs(t, err, ErrInvitationNotFound)

	_, err = env.invitations.AcceptInvitation(ctx, stranger.ID, invitation.Token)
	assert.ErrorIs(t, err, ErrInvitationEmailMismatch)

	// Still acceptable by the right person afterwards
	_, err = env.invitations.AcceptInvitation(ctx, recipient.ID, invitation.Token)
	assert.NoError(t, err)
}

func TestAcceptExpiredInvitationRecordsExpiry(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	sender := env.createUser(t, "sender@example.com", "Sana")
	recipient := env.createUser(t, "friend@example.com", "Fay")

	token, err := security.GenerateSecureToken(32)
	require.NoError(t, err)
	overdue := &models.Invitation{
		Token:          token,
		SenderID:       sender.ID,
		RecipientEmail: "friend@example.com",
		Status:         models.InvitationPending,
		ExpiresAt:      time.Now().Add(-1 * time.Hour),
	}
	require.NoError(t, env.invitationRepo.CreateInvitation(overdue))

	_, err = env.invitations.AcceptInvitation(ctx, recipient.ID, token)
	assert.ErrorIs(t, err, ErrInvitationExpired)

	resolved, err := env.invitationRepo.GetByToken(token)
	require.NoError(t, err)
	assert.Equal(t, models.InvitationExpired, resolved.Status, "live expiry check persists the state")

	// No share came into existence
	share, err := env.shareRepo.GetShareByPair(sender.ID, recipient.ID)
	require.NoError(t, err)
	assert.Nil(t, share)
}

func TestDeclineInvitation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	sender := env.createUser(t, "sender@example.com", "Sana")
	recipient := env.createUser(t, "friend@example.com", "Fay")

	invitation, err := env.invitations.CreateInvitation(ctx, sender.ID, "friend@example.com", "", 0)
	require.NoError(t, err)

	require.NoError(t, env.invitations.DeclineInvitation(ctx, recipient.ID, invitation.Token))

	resolved, err := env.invitationRepo.GetByToken(invitation.Token)
	require.NoError(t, err)
	assert.Equal(t, models.InvitationDeclined, resolved.Status)
	assert.Contains(t, env.mailer.sentTo(), "declined:sender@example.com")

	share, err := env.shareRepo.GetShareByPair(sender.ID, recipient.ID)
	require.NoError(t, err)
	assert.Nil(t, share, "declining never creates a share")

	_, err = env.invitations.AcceptInvitation(ctx, recipient.ID, invitation.Token)
	assert.ErrorIs(t, err, ErrInvitationNotPending)
}

func TestCancelInvitation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	sender := env.createUser(t, "sender@example.com", "Sana")
	other := env.createUser(t, "other@example.com", "Omar")

	invitation, err := env.invitations.CreateInvitation(ctx, sender.ID, "friend@example.com", "", 0)
	require.NoError(t, err)

	err = env.invitations.CancelInvitation(other.ID, invitation.ID)
	assert.ErrorIs(t, err, ErrNotInvitationSender)

	require.NoError(t, env.invitations.CancelInvitation(sender.ID, invitation.ID))

	resolved, err := env.invitationRepo.GetByID(invitation.ID)
	require.NoError(t, err)
	assert.Equal(t, models.InvitationCancelled, resolved.Status)

	err = env.invitations.CancelInvitation(sender.ID, invitation.ID)
	assert.ErrorIs(t, err, ErrInvitationNotPending)
}

func TestAcceptCannotOverwriteResolvedInvitation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	sender := env.createUser(t, "sender@example.com", "Sana")
	recipient := env.createUser(t, "friend@example.com", "Fay")

	invitation, err := env.invitations.CreateInvitation(ctx, sender.ID, "friend@example.com", "", 0)
	require.NoError(t, err)

	// An accept that read the row as pending may still lose to a cancel that
	// commits first. Cancelled is terminal; the guarded update must refuse to
	// overwrite it.
	require.NoError(t, env.invitations.CancelInvitation(sender.ID, invitation.ID))

	tx, err := env.db.Begin()
	require.NoError(t, err)
	err = env.invitationRepo.MarkAccepted(tx, invitation.ID, recipient.ID, time.Now())
	assert.ErrorIs(t, err, repository.ErrInvitationResolved)
	require.NoError(t, tx.Rollback())

	stored, err := env.invitationRepo.GetByID(invitation.ID)
	require.NoError(t, err)
	assert.Equal(t, models.InvitationCancelled, stored.Status)
	assert.Nil(t, stored.RecipientUserID)

	// The same guard protects the other terminal transitions
	err = env.invitationRepo.UpdateStatus(invitation.ID, models.InvitationDeclined)
	assert.ErrorIs(t, err, repository.ErrInvitationResolved)
}

func TestSentAndReceivedInvitations(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	sender := env.createUser(t, "sender@example.com", "Sana")
	recipient := env.createUser(t, "friend@example.com", "Fay")

	first, err := env.invitations.CreateInvitation(ctx, sender.ID, "friend@example.com", "", 0)
	require.NoError(t, err)
	_, err = env.invitations.CreateInvitation(ctx, sender.ID, "elsewhere@example.com", "", 0)
	require.NoError(t, err)

	sent, err := env.invitations.GetSentInvitations(sender.ID)
	require.NoError(t, err)
	assert.Len(t, sent, 2)

	received, err := env.invitations.GetReceivedInvitations(recipient.ID)
	require.NoError(t, err)
	require.Len(t, received, 1)
	assert.Equal(t, first.ID, received[0].ID)
	assert.Equal(t, "Sana", received[0].SenderName)

	// Resolved invitations drop out of the inbox
	_, err = env.invitations.AcceptInvitation(ctx, recipient.ID, first.Token)
	require.NoError(t, err)
	received, err = env.invitations.GetReceivedInvitations(recipient.ID)
	require.NoError(t, err)
	assert.Empty(t, received)
}

func TestCleanupExpiredInvitationsIsIdempotent(t *testing.T) {
	env := newTestEnv(t)

	sender := env.createUser(t, "sender@example.com", "Sana")

	for i, email := range []string{"a@example.com", "b@example.com"} {
		token, err := security.GenerateSecureToken(32)
		require.NoError(t, err)
		require.NoError(t, env.invitationRepo.CreateInvitation(&models.Invitation{
			Token:          token,
			SenderID:       sender.ID,
			RecipientEmail: email,
			Status:         models.InvitationPending,
			ExpiresAt:      time.Now().Add(time.Duration(-i-1) * time.Hour),
		}))
	}

	count, err := env.invitations.CleanupExpiredInvitations()
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	count, err = env.invitations.CleanupExpiredInvitations()
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}
