package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/charlesng35/kiddies/internal/database/testutil"
	"github.com/charlesng35/kiddies/internal/models"
	"github.com/charlesng35/kiddies/pkg/crypto"
	"github.com/charlesng35/kiddies/pkg/mail"
)

type recordingMailer struct {
	mu       sync.Mutex
	messages []mail.Message
	err      error
}

func (m *recordingMailer) Send(_ context.Context, msg mail.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.messages = append(m.messages, msg)
	return nil
}

func (m *recordingMailer) sent() []mail.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]mail.Message(nil), m.messages...)
}

type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFixedClock(t time.Time) *fixedClock {
	return &fixedClock{now: t}
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestInviteService(t *testing.T, db *gorm.DB, mailer mail.Mailer, clock *fixedClock) *InviteService {
	t.Helper()

	svc, err := NewInviteService(db, mailer,
		WithInviteBaseURL("https://kiddies.example.org/"),
		WithInviteClock(clock.Now),
	)
	require.NoError(t, err)
	return svc
}

func testRegistration(t *testing.T) Registration {
	t.Helper()

	hash, err := crypto.HashPassword("Secret123!")
	require.NoError(t, err)
	return Registration{
		FirstName:    "Jane",
		LastName:     "Doe",
		PhoneNumber:  "08012345678",
		PasswordHash: hash,
	}
}

func TestNewInviteServiceRequiresDB(t *testing.T) {
	_, err := NewInviteService(nil, nil)
	require.Error(t, err)
}

func TestCreateInviteSendsEmail(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	mailer := &recordingMailer{}
	clock := newFixedClock(time.Date(2025, 1, 5, 10, 0, 0, 0, time.UTC))
	svc := newTestInviteService(t, db, mailer, clock)

	issued, err := svc.CreateInvite(context.Background(), "  New@X.org ", "admin-id")
	require.NoError(t, err)
	require.False(t, issued.Reused)
	require.Equal(t, "new@x.org", issued.Invite.Email)
	require.NotEmpty(t, issued.Invite.Token)
	require.NotNil(t, issued.Invite.InvitedBy)
	require.Equal(t, "admin-id", *issued.Invite.InvitedBy)
	require.True(t, issued.Invite.ExpiresAt.Equal(clock.Now().Add(7*24*time.Hour)))
	require.Equal(t, "https://kiddies.example.org/onboarding?token="+issued.Invite.Token, issued.Link)

	sent := mailer.sent()
	require.Len(t, sent, 1)
	require.Equal(t, []string{"new@x.org"}, sent[0].To)
	require.Equal(t, "Invitation to Join Kiddies - Counting God's Army", sent[0].Subject)
	require.Contains(t, sent[0].HTML, "Welcome to Kiddies!")
	require.Contains(t, sent[0].HTML, "Complete Registration")
	require.Contains(t, sent[0].HTML, "7 days")
	require.Contains(t, sent[0].Body, issued.Link)
}

func TestCreateInviteValidatesEmail(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	svc := newTestInviteService(t, db, &recordingMailer{}, newFixedClock(time.Now()))

	_, err := svc.CreateInvite(context.Background(), "", "")
	require.Error(t, err)
	require.Contains(t, err.Error(), "Email is required")

	_, err = svc.CreateInvite(context.Background(), "not-an-email", "")
	require.Error(t, err)
	require.Contains(t, err.Error(), "valid email")
}

func TestCreateInviteRejectsRegisteredEmail(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	require.NoError(t, db.Create(&models.User{
		Email:        "taken@x.org",
		PasswordHash: "hash",
		FirstName:    "T",
		LastName:     "U",
		PhoneNumber:  "1",
	}).Error)

	mailer := &recordingMailer{}
	svc := newTestInviteService(t, db, mailer, newFixedClock(time.Now()))

	_, err := svc.CreateInvite(context.Background(), "TAKEN@x.org", "")
	require.ErrorIs(t, err, ErrAlreadyRegistered)
	require.Empty(t, mailer.sent())

	var count int64
	require.NoError(t, db.Model(&models.Invite{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestCreateInviteReusesLiveInvite(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	mailer := &recordingMailer{}
	clock := newFixedClock(time.Date(2025, 1, 5, 10, 0, 0, 0, time.UTC))
	svc := newTestInviteService(t, db, mailer, clock)

	first, err := svc.CreateInvite(context.Background(), "new@x.org", "admin-1")
	require.NoError(t, err)

	clock.Advance(3 * 24 * time.Hour)
	second, err := svc.CreateInvite(context.Background(), "new@x.org", "admin-2")
	require.NoError(t, err)
	require.True(t, second.Reused)
	require.Equal(t, first.Invite.ID, second.Invite.ID)
	require.Equal(t, first.Invite.Token, second.Invite.Token)
	require.True(t, second.Invite.ExpiresAt.Equal(first.Invite.ExpiresAt))
	require.Equal(t, "admin-1", *second.Invite.InvitedBy)
	require.Len(t, mailer.sent(), 2)

	var count int64
	require.NoError(t, db.Model(&models.Invite{}).Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestCreateInviteIssuesFreshInviteAfterExpiry(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	clock := newFixedClock(time.Date(2025, 1, 5, 10, 0, 0, 0, time.UTC))
	svc := newTestInviteService(t, db, &recordingMailer{}, clock)

	first, err := svc.CreateInvite(context.Background(), "new@x.org", "")
	require.NoError(t, err)

	clock.Advance(8 * 24 * time.Hour)
	_, err = svc.ConsumeInvite(context.Background(), first.Invite.Token, testRegistration(t))
	require.ErrorIs(t, err, ErrInviteExpired)

	second, err := svc.CreateInvite(context.Background(), "new@x.org", "")
	require.NoError(t, err)
	require.False(t, second.Reused)
	require.NotEqual(t, first.Invite.Token, second.Invite.Token)

	user, err := svc.ConsumeInvite(context.Background(), second.Invite.Token, testRegistration(t))
	require.NoError(t, err)
	require.Equal(t, "new@x.org", user.Email)
}

func TestCreateInviteReportsEmailFailure(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	mailer := &recordingMailer{err: errors.New("smtp down")}
	svc := newTestInviteService(t, db, mailer, newFixedClock(time.Now()))

	issued, err := svc.CreateInvite(context.Background(), "new@x.org", "")
	require.ErrorIs(t, err, ErrEmailDeliveryFailed)
	require.NotNil(t, issued)
	require.NotEmpty(t, issued.Invite.ID)

	var stored models.Invite
	require.NoError(t, db.First(&stored, "id = ?", issued.Invite.ID).Error)
	require.False(t, stored.IsUsed)
}

func TestCreateInviteWithoutMailerReportsEmailFailure(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	svc := newTestInviteService(t, db, nil, newFixedClock(time.Now()))

	issued, err := svc.CreateInvite(context.Background(), "new@x.org", "")
	require.ErrorIs(t, err, ErrEmailDeliveryFailed)
	require.ErrorIs(t, err, mail.ErrSMTPDisabled)
	require.NotNil(t, issued)
}

func TestVerifyInvite(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	clock := newFixedClock(time.Date(2025, 1, 5, 10, 0, 0, 0, time.UTC))
	svc := newTestInviteService(t, db, &recordingMailer{}, clock)

	issued, err := svc.CreateInvite(context.Background(), "new@x.org", "")
	require.NoError(t, err)

	invite, err := svc.VerifyInvite(context.Background(), issued.Invite.Token)
	require.NoError(t, err)
	require.Equal(t, "new@x.org", invite.Email)

	_, err = svc.VerifyInvite(context.Background(), "unknown")
	require.ErrorIs(t, err, ErrInviteInvalid)

	_, err = svc.VerifyInvite(context.Background(), "   ")
	require.Error(t, err)
}

func TestVerifyInviteExpiredOneSecondAgo(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	clock := newFixedClock(time.Date(2025, 1, 5, 10, 0, 0, 0, time.UTC))
	svc := newTestInviteService(t, db, &recordingMailer{}, clock)

	invite := &models.Invite{
		Email:     "late@x.org",
		Token:     "expired-token",
		ExpiresAt: clock.Now().Add(-time.Second),
	}
	require.NoError(t, db.Create(invite).Error)

	_, err := svc.VerifyInvite(context.Background(), "expired-token")
	require.ErrorIs(t, err, ErrInviteExpired)

	var stored models.Invite
	require.NoError(t, db.First(&stored, "id = ?", invite.ID).Error)
	require.False(t, stored.IsUsed)
}

func TestVerifyInviteUsedWinsOverExpired(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	clock := newFixedClock(time.Date(2025, 1, 5, 10, 0, 0, 0, time.UTC))
	svc := newTestInviteService(t, db, &recordingMailer{}, clock)

	invite := &models.Invite{
		Email:     "done@x.org",
		Token:     "spent-token",
		ExpiresAt: clock.Now().Add(-time.Hour),
		IsUsed:    true,
	}
	require.NoError(t, db.Create(invite).Error)
	require.Equal(t, models.InviteStatusUsed, invite.Status(clock.Now()))

	_, err := svc.VerifyInvite(context.Background(), "spent-token")
	require.ErrorIs(t, err, ErrInviteInvalid)
}

func TestConsumeInviteCreatesFirstUserAsAdmin(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	svc := newTestInviteService(t, db, &recordingMailer{}, newFixedClock(time.Now()))

	first, err := svc.CreateInvite(context.Background(), "first@x.org", "")
	require.NoError(t, err)
	second, err := svc.CreateInvite(context.Background(), "second@x.org", "")
	require.NoError(t, err)

	admin, err := svc.ConsumeInvite(context.Background(), first.Invite.Token, testRegistration(t))
	require.NoError(t, err)
	require.Equal(t, models.RoleAdmin, admin.Role)
	require.Equal(t, uuid.Version(7), uuid.MustParse(admin.ID).Version())
	require.True(t, admin.IsActive)

	user, err := svc.ConsumeInvite(context.Background(), second.Invite.Token, testRegistration(t))
	require.NoError(t, err)
	require.Equal(t, models.RoleUser, user.Role)

	var marker models.BootstrapMarker
	require.NoError(t, db.First(&marker, "key = ?", models.BootstrapAdminKey).Error)
	require.Equal(t, admin.ID, marker.UserID)
}

func TestConsumeInviteTwiceFails(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	svc := newTestInviteService(t, db, &recordingMailer{}, newFixedClock(time.Now()))

	issued, err := svc.CreateInvite(context.Background(), "new@x.org", "")
	require.NoError(t, err)

	_, err = svc.ConsumeInvite(context.Background(), issued.Invite.Token, testRegistration(t))
	require.NoError(t, err)

	_, err = svc.ConsumeInvite(context.Background(), issued.Invite.Token, testRegistration(t))
	require.ErrorIs(t, err, ErrInviteInvalid)

	_, err = svc.VerifyInvite(context.Background(), issued.Invite.Token)
	require.ErrorIs(t, err, ErrInviteInvalid)

	var users int64
	require.NoError(t, db.Model(&models.User{}).Count(&users).Error)
	require.EqualValues(t, 1, users)
}

func TestConsumeInviteRollsBackWhenAccountExists(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	svc := newTestInviteService(t, db, &recordingMailer{}, newFixedClock(time.Now()))

	issued, err := svc.CreateInvite(context.Background(), "new@x.org", "")
	require.NoError(t, err)

	require.NoError(t, db.Create(&models.User{
		Email:        "new@x.org",
		PasswordHash: "hash",
		FirstName:    "Out",
		LastName:     "OfBand",
		PhoneNumber:  "1",
	}).Error)

	_, err = svc.ConsumeInvite(context.Background(), issued.Invite.Token, testRegistration(t))
	require.ErrorIs(t, err, ErrAlreadyRegistered)

	var stored models.Invite
	require.NoError(t, db.First(&stored, "id = ?", issued.Invite.ID).Error)
	require.False(t, stored.IsUsed)
}

func TestConsumeInviteConcurrentSameToken(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	svc := newTestInviteService(t, db, &recordingMailer{}, newFixedClock(time.Now()))

	issued, err := svc.CreateInvite(context.Background(), "new@x.org", "")
	require.NoError(t, err)
	reg := testRegistration(t)

	const attempts = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.ConsumeInvite(context.Background(), issued.Invite.Token, reg); err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 1, successes)
}

func TestConcurrentRegistrationsYieldOneAdmin(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	svc := newTestInviteService(t, db, &recordingMailer{}, newFixedClock(time.Now()))
	reg := testRegistration(t)

	const registrations = 10
	tokens := make([]string, registrations)
	for i := range tokens {
		issued, err := svc.CreateInvite(context.Background(), fmt.Sprintf("user%d@x.org", i), "")
		require.NoError(t, err)
		tokens[i] = issued.Invite.Token
	}

	var wg sync.WaitGroup
	errs := make([]error, registrations)
	for i, token := range tokens {
		wg.Add(1)
		go func(i int, token string) {
			defer wg.Done()
			_, errs[i] = svc.ConsumeInvite(context.Background(), token, reg)
		}(i, token)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}

	var admins int64
	require.NoError(t, db.Model(&models.User{}).Where("role = ?", models.RoleAdmin).Count(&admins).Error)
	require.EqualValues(t, 1, admins)
}

func TestClaimBootstrapSingleWinner(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())

	won, err := claimBootstrap(db, "11111111-1111-1111-1111-111111111111")
	require.NoError(t, err)
	require.True(t, won)

	won, err = claimBootstrap(db, "22222222-2222-2222-2222-222222222222")
	require.NoError(t, err)
	require.False(t, won)
}

func TestEnsureBootstrapInvite(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	mailer := &recordingMailer{}
	svc := newTestInviteService(t, db, mailer, newFixedClock(time.Now()))

	issued, err := svc.EnsureBootstrapInvite(context.Background(), "")
	require.NoError(t, err)
	require.Nil(t, issued)

	issued, err = svc.EnsureBootstrapInvite(context.Background(), "Pastor@Church.org")
	require.NoError(t, err)
	require.NotNil(t, issued)
	require.Equal(t, "pastor@church.org", issued.Invite.Email)
	require.Nil(t, issued.Invite.InvitedBy)
	require.True(t, strings.HasPrefix(issued.Link, "https://kiddies.example.org/onboarding?token="))

	again, err := svc.EnsureBootstrapInvite(context.Background(), "pastor@church.org")
	require.NoError(t, err)
	require.True(t, again.Reused)

	_, err = svc.ConsumeInvite(context.Background(), issued.Invite.Token, testRegistration(t))
	require.NoError(t, err)

	issued, err = svc.EnsureBootstrapInvite(context.Background(), "pastor@church.org")
	require.NoError(t, err)
	require.Nil(t, issued)
}

func TestHumanDuration(t *testing.T) {
	require.Equal(t, "7 days", humanDuration(7*24*time.Hour))
	require.Equal(t, "1 day", humanDuration(24*time.Hour))
	require.Equal(t, "12 hours", humanDuration(12*time.Hour))
	require.Equal(t, "1 hour", humanDuration(30*time.Minute))
}
