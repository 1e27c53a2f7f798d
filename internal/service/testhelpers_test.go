package service

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"kidsactivity/internal/audit"
	"kidsactivity/internal/database"
	"kidsactivity/internal/models"
	"kidsactivity/internal/repository"
	"kidsactivity/internal/security"
)

// stubMailer records notification sends so tests can assert on them, and can
// be told to fail to prove sends are best-effort.
type stubMailer struct {
	mu             sync.Mutex
	sent           []string
	lastChildNames []string
	fail           bool
}

func (m *stubMailer) record(kind, to string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errors.New("smtp is down")
	}
	m.sent = append(m.sent, kind+":"+to)
	return nil
}

func (m *stubMailer) SendInvitationEmail(ctx context.Context, toEmail, senderName, message, token string, expiresAt time.Time) error {
	return m.record("invitation", toEmail)
}

func (m *stubMailer) SendInvitationAcceptedEmail(ctx context.Context, toEmail, toName, accepterName string) error {
	return m.record("accepted", toEmail)
}

func (m *stubMailer) SendInvitationDeclinedEmail(ctx context.Context, toEmail, toName, declinerEmail string) error {
	return m.record("declined", toEmail)
}

func (m *stubMailer) SendShareConfiguredEmail(ctx context.Context, toEmail, toName, sharerName string, childNames []string) error {
	m.mu.Lock()
	m.lastChildNames = append([]string(nil), childNames...)
	m.mu.Unlock()
	return m.record("configured", toEmail)
}

func (m *stubMailer) SendShareRevokedEmail(ctx context.Context, toEmail, toName, sharerName string) error {
	return m.record("revoked", toEmail)
}

func (m *stubMailer) lastChildren() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.lastChildNames))
	copy(out, m.lastChildNames)
	return out
}

func (m *stubMailer) sentTo() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.sent))
	copy(out, m.sent)
	return out
}

// testEnv wires every service onto a real SQLite database in a temp dir.
type testEnv struct {
	db                *database.DB
	userRepo          *repository.UserRepository
	childRepo         *repository.ChildRepository
	activityRepo      *repository.ActivityRepository
	childActivityRepo *repository.ChildActivityRepository
	shareRepo         *repository.ShareRepository
	invitationRepo    *repository.InvitationRepository
	mailer            *stubMailer
	audit             *audit.Recorder
	sharing           *SharingService
	invitations       *InvitationService
	children          *ChildService
	activities        *ActivityService
	calendar          *CalendarService
	auth              *AuthService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := database.Initialize(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, db.RunMigrations("../../migrations"))

	env := &testEnv{
		db:                db,
		userRepo:          repository.NewUserRepository(db),
		childRepo:         repository.NewChildRepository(db),
		activityRepo:      repository.NewActivityRepository(db),
		childActivityRepo: repository.NewChildActivityRepository(db),
		shareRepo:         repository.NewShareRepository(db),
		invitationRepo:    repository.NewInvitationRepository(db),
		mailer:            &stubMailer{},
		audit:             &audit.Recorder{},
	}

	env.sharing = NewSharingService(env.shareRepo, env.childRepo, env.childActivityRepo, env.userRepo, env.mailer, env.audit)
	env.invitations = NewInvitationService(db, env.invitationRepo, env.shareRepo, env.userRepo, env.mailer, env.audit, 7*24*time.Hour, 50)
	env.children = NewChildService(env.childRepo)
	env.activities = NewActivityService(db, env.activityRepo, env.childActivityRepo, env.childRepo)
	env.calendar = NewCalendarService(env.childRepo, env.childActivityRepo, env.sharing)
	env.auth = NewAuthService(env.userRepo, security.NewTokenManager("test-secret", time.Hour))
	return env
}

func (env *testEnv) createUser(t *testing.T, email, name string) *models.User {
	t.Helper()
	user, err := env.userRepo.CreateUser(email, "unused-hash", name)
	require.NoError(t, err)
	return user
}

func (env *testEnv) createChild(t *testing.T, ownerID int64, name string) *models.Child {
	t.Helper()
	child, err := env.childRepo.CreateChild(ownerID, name, nil)
	require.NoError(t, err)
	return child
}

func (env *testEnv) createActivity(t *testing.T, name string, start, end *time.Time) *models.Activity {
	t.Helper()
	externalID := "ext-" + name
	activity, err := env.activityRepo.UpsertActivity(models.Activity{
		ExternalID: &externalID,
		Name:       name,
		Category:   "sports",
		DateStart:  start,
		DateEnd:    end,
	})
	require.NoError(t, err)
	return activity
}

func (env *testEnv) trackActivity(t *testing.T, childID, activityID int64, status models.ActivityStatus, notes *string) *models.ChildActivity {
	t.Helper()
	entry, err := env.childActivityRepo.CreateChildActivity(childID, activityID, status, notes)
	require.NoError(t, err)
	return entry
}

// shareAllFlags is a profile request granting full visibility
func shareAllFlags(childID int64) ChildShareConfig {
	return ChildShareConfig{
		ChildID:           childID,
		CanViewInterested: true,
		CanViewRegistered: true,
		CanViewCompleted:  true,
		CanViewNotes:      true,
	}
}

func strPtr(s string) *string { return &s }

func timePtr(t time.Time) *time.Time { return &t }

func uniqueEmail(prefix string) string {
	return fmt.Sprintf("%s-%d@example.com", prefix, time.Now().UnixNano())
}
