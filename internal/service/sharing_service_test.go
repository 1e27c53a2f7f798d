package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kidsactivity/internal/audit"
	"kidsactivity/internal/models"
	"kidsactivity/internal/validation"
)

func TestConfigureSharingCreatesShareWithProfiles(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	owner := env.createUser(t, "owner@example.com", "Olive")
	viewer := env.createUser(t, "viewer@example.com", "Vera")
	emma := env.createChild(t, owner.ID, "Emma")
	liam := env.createChild(t, owner.ID, "Liam")

	share, err := env.sharing.ConfigureSharing(ctx, owner.ID, ShareConfig{
		SharedWithUserID: viewer.ID,
		PermissionLevel:  models.PermissionViewAll,
		Children: []ChildShareConfig{
			shareAllFlags(emma.ID),
			{ChildID: liam.ID, CanViewRegistered: true},
		},
	})
	require.NoError(t, err)
	require.NotNil(t, share)

	assert.Equal(t, owner.ID, share.SharingUserID)
	assert.Equal(t, viewer.ID, share.SharedWithUserID)
	assert.Equal(t, models.PermissionViewAll, share.PermissionLevel)
	assert.True(t, share.IsActive)
	require.Len(t, share.Profiles, 2)

	assert.Equal(t, audit.ActionShareConfigured, env.audit.LastAction())
	assert.Contains(t, env.mailer.sentTo(), "configured:viewer@example.com")
	assert.ElementsMatch(t, []string{"Emma", "Liam"}, env.mailer.lastChildren(), "the notification names the shared children")
}

func TestConfigureSharingConcurrentLastWriterWins(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	owner := env.createUser(t, "owner@example.com", "Olive")
	viewer := env.createUser(t, "viewer@example.com", "Vera")
	emma := env.createChild(t, owner.ID, "Emma")
	liam := env.createChild(t, owner.ID, "Liam")

	configs := []ShareConfig{
		{SharedWithUserID: viewer.ID, Children: []ChildShareConfig{shareAllFlags(emma.ID)}},
		{SharedWithUserID: viewer.ID, Children: []ChildShareConfig{shareAllFlags(liam.ID)}},
	}

	var wg sync.WaitGroup
	errs := make([]error, len(configs))
	for i := range configs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = env.sharing.ConfigureSharing(ctx, owner.ID, configs[i])
		}(i)
	}
	wg.Wait()

	committed := 0
	for _, err := range errs {
		if err == nil {
			committed++
		}
	}
	require.GreaterOrEqual(t, committed, 1, "at least one configuration commits")

	// Whichever call loses the race, the stored state is exactly one call's
	// profile list. A merge of both would be two profiles.
	shares, err := env.sharing.GetUserShares(owner.ID)
	require.NoError(t, err)
	require.Len(t, shares, 1, "the unique pair constraint keeps a single relationship row")
	require.Len(t, shares[0].Profiles, 1)
	got := shares[0].Profiles[0].ChildID
	assert.True(t, got == emma.ID || got == liam.ID)
}

func TestConfigureSharingIsFullReplace(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	owner := env.createUser(t, "owner@example.com", "Olive")
	viewer := env.createUser(t, "viewer@example.com", "Vera")
	emma := env.createChild(t, owner.ID, "Emma")
	liam := env.createChild(t, owner.ID, "Liam")
	noah := env.createChild(t, owner.ID, "Noah")

	first, err := env.sharing.ConfigureSharing(ctx, owner.ID, ShareConfig{
		SharedWithUserID: viewer.ID,
		Children:         []ChildShareConfig{shareAllFlags(emma.ID), shareAllFlags(liam.ID)},
	})
	require.NoError(t, err)

	// Reconfigure with a different child set; same relationship row survives
	second, err := env.sharing.ConfigureSharing(ctx, owner.ID, ShareConfig{
		SharedWithUserID: viewer.ID,
		PermissionLevel:  models.PermissionViewFuture,
		Children:         []ChildShareConfig{shareAllFlags(noah.ID)},
	})
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID, "reconfiguring must reuse the pair's single relationship row")
	assert.Equal(t, models.PermissionViewFuture, second.PermissionLevel)
	require.Len(t, second.Profiles, 1)
	assert.Equal(t, noah.ID, second.Profiles[0].ChildID)
}

func TestConfigureSharingRejectsBadInput(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	owner := env.createUser(t, "owner@example.com", "Olive")
	viewer := env.createUser(t, "viewer@example.com", "Vera")
	other := env.createUser(t, "other@example.com", "Oscar")
	emma := env.createChild(t, owner.ID, "Emma")
	theirKid := env.createChild(t, other.ID, "Theo")

	_, err := env.sharing.ConfigureSharing(ctx, owner.ID, ShareConfig{SharedWithUserID: owner.ID})
	assert.ErrorIs(t, err, ErrSelfShare)

	_, err = env.sharing.ConfigureSharing(ctx, owner.ID, ShareConfig{SharedWithUserID: 99999})
	assert.ErrorIs(t, err, ErrViewerNotFound)

	_, err = env.sharing.ConfigureSharing(ctx, owner.ID, ShareConfig{
		SharedWithUserID: viewer.ID,
		Children:         []ChildShareConfig{shareAllFlags(theirKid.ID)},
	})
	assert.ErrorIs(t, err, ErrChildNotOwned)

	_, err = env.sharing.ConfigureSharing(ctx, owner.ID, ShareConfig{
		SharedWithUserID: viewer.ID,
		Children:         []ChildShareConfig{shareAllFlags(emma.ID), shareAllFlags(emma.ID)},
	})
	var ve *validation.ValidationError
	assert.ErrorAs(t, err, &ve, "duplicate child in one request is a validation failure")

	_, err = env.sharing.ConfigureSharing(ctx, owner.ID, ShareConfig{
		SharedWithUserID: viewer.ID,
		PermissionLevel:  models.PermissionLevel("view_everything"),
	})
	assert.ErrorAs(t, err, &ve)
}

func TestGetSharedChildrenFiltersByProfile(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	owner := env.createUser(t, "owner@example.com", "Olive")
	viewer := env.createUser(t, "viewer@example.com", "Vera")
	emma := env.createChild(t, owner.ID, "Emma")

	swim := env.createActivity(t, "swim", nil, nil)
	soccer := env.createActivity(t, "soccer", nil, nil)
	piano := env.createActivity(t, "piano", nil, nil)
	chess := env.createActivity(t, "chess", nil, nil)

	env.trackActivity(t, emma.ID, swim.ID, models.StatusInterested, nil)
	env.trackActivity(t, emma.ID, soccer.ID, models.StatusRegistered, strPtr("bring cleats"))
	env.trackActivity(t, emma.ID, piano.ID, models.StatusCompleted, nil)
	env.trackActivity(t, emma.ID, chess.ID, models.StatusCancelled, nil)

	_, err := env.sharing.ConfigureSharing(ctx, owner.ID, ShareConfig{
		SharedWithUserID: viewer.ID,
		Children: []ChildShareConfig{{
			ChildID:           emma.ID,
			CanViewRegistered: true,
			CanViewCompleted:  true,
		}},
	})
	require.NoError(t, err)

	shared, err := env.sharing.GetSharedChildren(viewer.ID, 0)
	require.NoError(t, err)
	require.Len(t, shared, 1)
	assert.Equal(t, "Olive", shared[0].OwnerName)

	statuses := map[models.ActivityStatus]bool{}
	for _, a := range shared[0].Activities {
		statuses[a.Status] = true
	}
	assert.False(t, statuses[models.StatusInterested], "interested hidden by profile")
	assert.True(t, statuses[models.StatusRegistered])
	assert.True(t, statuses[models.StatusCompleted])
	assert.False(t, statuses[models.StatusCancelled], "cancelled is never shared")
}

func TestGetSharedChildrenRedactsNotes(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	owner := env.createUser(t, "owner@example.com", "Olive")
	viewer := env.createUser(t, "viewer@example.com", "Vera")
	emma := env.createChild(t, owner.ID, "Emma")
	soccer := env.createActivity(t, "soccer", nil, nil)
	env.trackActivity(t, emma.ID, soccer.ID, models.StatusRegistered, strPtr("coach said arrive early"))

	_, err := env.sharing.ConfigureSharing(ctx, owner.ID, ShareConfig{
		SharedWithUserID: viewer.ID,
		Children:         []ChildShareConfig{{ChildID: emma.ID, CanViewRegistered: true}},
	})
	require.NoError(t, err)

	shared, err := env.sharing.GetSharedChildren(viewer.ID, 0)
	require.NoError(t, err)
	require.Len(t, shared, 1)
	require.Len(t, shared[0].Activities, 1, "the activity itself stays visible")
	assert.Nil(t, shared[0].Activities[0].Notes, "notes are blanked, not the activity dropped")

	// The owner's own data is untouched
	own, err := env.childActivityRepo.GetActivitiesForChild(emma.ID)
	require.NoError(t, err)
	require.Len(t, own, 1)
	require.NotNil(t, own[0].Notes)
	assert.Equal(t, "coach said arrive early", *own[0].Notes)
}

func TestGetSharedChildrenViewFutureCut(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	owner := env.createUser(t, "owner@example.com", "Olive")
	viewer := env.createUser(t, "viewer@example.com", "Vera")
	emma := env.createChild(t, owner.ID, "Emma")

	past := time.Now().Add(-48 * time.Hour)
	future := time.Now().Add(48 * time.Hour)
	oldSwim := env.createActivity(t, "old-swim", &past, nil)
	nextSwim := env.createActivity(t, "next-swim", &future, nil)
	undated := env.createActivity(t, "undated", nil, nil)

	env.trackActivity(t, emma.ID, oldSwim.ID, models.StatusRegistered, nil)
	env.trackActivity(t, emma.ID, nextSwim.ID, models.StatusRegistered, nil)
	env.trackActivity(t, emma.ID, undated.ID, models.StatusRegistered, nil)

	_, err := env.sharing.ConfigureSharing(ctx, owner.ID, ShareConfig{
		SharedWithUserID: viewer.ID,
		PermissionLevel:  models.PermissionViewFuture,
		Children:         []ChildShareConfig{{ChildID: emma.ID, CanViewRegistered: true}},
	})
	require.NoError(t, err)

	shared, err := env.sharing.GetSharedChildren(viewer.ID, 0)
	require.NoError(t, err)
	require.Len(t, shared, 1)
	require.Len(t, shared[0].Activities, 1, "only the strictly future activity survives")
	assert.Equal(t, nextSwim.ID, shared[0].Activities[0].ActivityID)
}

func TestShareWithZeroProfilesGrantsNothing(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	owner := env.createUser(t, "owner@example.com", "Olive")
	viewer := env.createUser(t, "viewer@example.com", "Vera")
	emma := env.createChild(t, owner.ID, "Emma")
	swim := env.createActivity(t, "swim", nil, nil)
	env.trackActivity(t, emma.ID, swim.ID, models.StatusRegistered, nil)

	_, err := env.sharing.ConfigureSharing(ctx, owner.ID, ShareConfig{
		SharedWithUserID: viewer.ID,
		PermissionLevel:  models.PermissionViewAll,
	})
	require.NoError(t, err)

	shared, err := env.sharing.GetSharedChildren(viewer.ID, 0)
	require.NoError(t, err)
	assert.Empty(t, shared, "a relationship with no profiles shares nothing")

	ok, err := env.sharing.HasAccessToChild(viewer.ID, emma.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRemoveLastChildDeactivatesShare(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	owner := env.createUser(t, "owner@example.com", "Olive")
	viewer := env.createUser(t, "viewer@example.com", "Vera")
	emma := env.createChild(t, owner.ID, "Emma")
	liam := env.createChild(t, owner.ID, "Liam")

	share, err := env.sharing.ConfigureSharing(ctx, owner.ID, ShareConfig{
		SharedWithUserID: viewer.ID,
		Children:         []ChildShareConfig{shareAllFlags(emma.ID), shareAllFlags(liam.ID)},
	})
	require.NoError(t, err)

	require.NoError(t, env.sharing.RemoveChildFromShare(owner.ID, share.ID, emma.ID))
	reloaded, err := env.sharing.GetShare(owner.ID, share.ID)
	require.NoError(t, err)
	assert.True(t, reloaded.IsActive, "share stays active while profiles remain")

	require.NoError(t, env.sharing.RemoveChildFromShare(owner.ID, share.ID, liam.ID))
	reloaded, err = env.sharing.GetShare(owner.ID, share.ID)
	require.NoError(t, err)
	assert.False(t, reloaded.IsActive, "removing the last profile deactivates the share")

	err = env.sharing.RemoveChildFromShare(owner.ID, share.ID, liam.ID)
	assert.ErrorIs(t, err, ErrProfileNotFound)
}

func TestAddAndUpdateChildPermissions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	owner := env.createUser(t, "owner@example.com", "Olive")
	viewer := env.createUser(t, "viewer@example.com", "Vera")
	emma := env.createChild(t, owner.ID, "Emma")
	liam := env.createChild(t, owner.ID, "Liam")

	share, err := env.sharing.ConfigureSharing(ctx, owner.ID, ShareConfig{
		SharedWithUserID: viewer.ID,
		Children:         []ChildShareConfig{shareAllFlags(emma.ID)},
	})
	require.NoError(t, err)

	perm, err := env.sharing.AddChildToShare(owner.ID, share.ID, ChildShareConfig{ChildID: liam.ID, CanViewRegistered: true})
	require.NoError(t, err)
	assert.True(t, perm.CanViewRegistered)
	assert.False(t, perm.CanViewNotes)

	_, err = env.sharing.AddChildToShare(owner.ID, share.ID, shareAllFlags(liam.ID))
	assert.ErrorIs(t, err, ErrDuplicateChild)

	updated, err := env.sharing.UpdateChildPermissions(owner.ID, share.ID, liam.ID, ChildShareConfig{
		ChildID:          liam.ID,
		CanViewCompleted: true,
	})
	require.NoError(t, err)
	assert.True(t, updated.CanViewCompleted)
	assert.False(t, updated.CanViewRegistered, "update is a full rewrite of the flags")

	// Only the owner may touch the share
	_, err = env.sharing.UpdateChildPermissions(viewer.ID, share.ID, liam.ID, shareAllFlags(liam.ID))
	assert.ErrorIs(t, err, ErrNotShareOwner)
}

func TestUpdateShareAndRevoke(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	owner := env.createUser(t, "owner@example.com", "Olive")
	viewer := env.createUser(t, "viewer@example.com", "Vera")
	emma := env.createChild(t, owner.ID, "Emma")

	share, err := env.sharing.ConfigureSharing(ctx, owner.ID, ShareConfig{
		SharedWithUserID: viewer.ID,
		Children:         []ChildShareConfig{shareAllFlags(emma.ID)},
	})
	require.NoError(t, err)

	level := models.PermissionViewFuture
	expiry := time.Now().Add(24 * time.Hour)
	updated, err := env.sharing.UpdateShare(ctx, owner.ID, share.ID, ShareUpdate{
		PermissionLevel: &level,
		ExpiresAt:       &expiry,
	})
	require.NoError(t, err)
	assert.Equal(t, models.PermissionViewFuture, updated.PermissionLevel)
	require.NotNil(t, updated.ExpiresAt)

	cleared, err := env.sharing.UpdateShare(ctx, owner.ID, share.ID, ShareUpdate{ClearExpiresAt: true})
	require.NoError(t, err)
	assert.Nil(t, cleared.ExpiresAt)

	require.NoError(t, env.sharing.RevokeShare(ctx, owner.ID, share.ID))
	reloaded, err := env.sharing.GetShare(owner.ID, share.ID)
	require.NoError(t, err)
	assert.False(t, reloaded.IsActive)
	assert.Contains(t, env.mailer.sentTo(), "revoked:viewer@example.com")

	shared, err := env.sharing.GetSharedChildren(viewer.ID, 0)
	require.NoError(t, err)
	assert.Empty(t, shared, "revoked share is invisible to the viewer")
}

func TestCleanupExpiredSharesIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	owner := env.createUser(t, "owner@example.com", "Olive")
	viewer := env.createUser(t, "viewer@example.com", "Vera")
	emma := env.createChild(t, owner.ID, "Emma")

	expiry := time.Now().Add(50 * time.Millisecond)
	share, err := env.sharing.ConfigureSharing(ctx, owner.ID, ShareConfig{
		SharedWithUserID: viewer.ID,
		ExpiresAt:        &expiry,
		Children:         []ChildShareConfig{shareAllFlags(emma.ID)},
	})
	require.NoError(t, err)

	time.Sleep(60 * time.Millisecond)

	count, err := env.sharing.CleanupExpiredShares()
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	reloaded, err := env.shareRepo.GetShareByID(share.ID)
	require.NoError(t, err)
	assert.False(t, reloaded.IsActive)

	count, err = env.sharing.CleanupExpiredShares()
	require.NoError(t, err)
	assert.Equal(t, int64(0), count, "second sweep finds nothing to do")
}

func TestHasAccessToChild(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	owner := env.createUser(t, "owner@example.com", "Olive")
	viewer := env.createUser(t, "viewer@example.com", "Vera")
	stranger := env.createUser(t, "stranger@example.com", "Sam")
	emma := env.createChild(t, owner.ID, "Emma")

	ok, err := env.sharing.HasAccessToChild(owner.ID, emma.ID)
	require.NoError(t, err)
	assert.True(t, ok, "owner always has access")

	ok, err = env.sharing.HasAccessToChild(viewer.ID, emma.ID)
	require.NoError(t, err)
	assert.False(t, ok, "no share yet")

	_, err = env.sharing.ConfigureSharing(ctx, owner.ID, ShareConfig{
		SharedWithUserID: viewer.ID,
		Children:         []ChildShareConfig{shareAllFlags(emma.ID)},
	})
	require.NoError(t, err)

	ok, err = env.sharing.HasAccessToChild(viewer.ID, emma.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = env.sharing.HasAccessToChild(stranger.ID, emma.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMailerFailureDoesNotFailSharing(t *testing.T) {
	env := newTestEnv(t)
	env.mailer.fail = true
	ctx := context.Background()

	owner := env.createUser(t, "owner@example.com", "Olive")
	viewer := env.createUser(t, "viewer@example.com", "Vera")
	emma := env.createChild(t, owner.ID, "Emma")

	share, err := env.sharing.ConfigureSharing(ctx, owner.ID, ShareConfig{
		SharedWithUserID: viewer.ID,
		Children:         []ChildShareConfig{shareAllFlags(emma.ID)},
	})
	require.NoError(t, err, "notification failures never fail the operation")
	require.NotNil(t, share)
}
