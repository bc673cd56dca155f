package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/inkpost/inkpost/internal/models"
)

type resetFixture struct {
	svc    *PasswordResetService
	users  *UserService
	db     *gorm.DB
	mailer *recordingMailer
	now    *time.Time
}

func newResetFixture(t *testing.T) *resetFixture {
	t.Helper()

	db := testutilDB(t)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	users, err := NewUserService(db)
	require.NoError(t, err)

	limiter, err := NewResetLimiter(db, ResetLimiterConfig{
		Window: 12 * time.Hour,
		Clock:  func() time.Time { return now },
	})
	require.NoError(t, err)

	mailer := &recordingMailer{}

	svc, err := NewPasswordResetService(db, users, limiter, mailer,
		WithResetClock(func() time.Time { return now }),
		WithResetBaseURL("https://blog.example.com"),
		WithSyncDispatch(),
	)
	require.NoError(t, err)

	return &resetFixture{svc: svc, users: users, db: db, mailer: mailer, now: &now}
}

func (f *resetFixture) registerAlice(t *testing.T) *models.User {
	t.Helper()

	user, err := f.users.Register(context.Background(), RegisterInput{
		Name:     "Alice",
		Email:    "alice@example.com",
		Password: "original-password",
	})
	require.NoError(t, err)
	return user
}

func (f *resetFixture) storedToken(t *testing.T, email string) string {
	t.Helper()

	var record models.PasswordResetToken
	require.NoError(t, f.db.Take(&record, "email = ?", email).Error)
	return record.Token
}

func TestRequestResetOutcomeIdenticalForUnknownEmail(t *testing.T) {
	f := newResetFixture(t)
	f.registerAlice(t)

	knownErr := f.svc.RequestReset(context.Background(), "alice@example.com", "203.0.113.7")
	unknownErr := f.svc.RequestReset(context.Background(), "ghost@example.com", "198.51.100.9")

	// The caller-visible outcome must not depend on whether the email exists.
	require.NoError(t, knownErr)
	require.NoError(t, unknownErr)

	var count int64
	require.NoError(t, f.db.Model(&models.PasswordResetToken{}).Count(&count).Error)
	require.EqualValues(t, 1, count)

	require.Len(t, f.mailer.sent(), 1)
	require.Equal(t, []string{"alice@example.com"}, f.mailer.sent()[0].To)
}

func TestRequestResetTokenShape(t *testing.T) {
	f := newResetFixture(t)
	f.registerAlice(t)

	require.NoError(t, f.svc.RequestReset(context.Background(), "alice@example.com", "203.0.113.7"))

	token := f.storedToken(t, "alice@example.com")
	require.GreaterOrEqual(t, len(token), 64)

	body := f.mailer.sent()[0].Body
	require.Contains(t, body, token)
	require.Contains(t, body, "email=alice%40example.com")
}

func TestRequestResetThrottledBeforeTokenWork(t *testing.T) {
	f := newResetFixture(t)
	f.registerAlice(t)

	require.NoError(t, f.svc.RequestReset(context.Background(), "alice@example.com", "203.0.113.7"))
	first := f.storedToken(t, "alice@example.com")

	// Second request from the same IP inside the 12h window is rejected
	// before any token replacement happens.
	*f.now = f.now.Add(10 * time.Minute)
	err := f.svc.RequestReset(context.Background(), "alice@example.com", "203.0.113.7")
	require.ErrorIs(t, err, ErrResetThrottled)

	require.Equal(t, first, f.storedToken(t, "alice@example.com"))
	require.Len(t, f.mailer.sent(), 1)
}

func TestRequestResetPerIP(t *testing.T) {
	f := newResetFixture(t)
	f.registerAlice(t)

	require.NoError(t, f.svc.RequestReset(context.Background(), "alice@example.com", "203.0.113.7"))

	// A different IP is unaffected by the first IP's throttle entry.
	err := f.svc.RequestReset(context.Background(), "alice@example.com", "198.51.100.9")
	require.NoError(t, err)
}

func TestRequestResetThrottlesUnknownEmailsToo(t *testing.T) {
	f := newResetFixture(t)
	f.registerAlice(t)

	// If only known emails armed the throttle, the 429 on the second
	// request would reveal which emails are registered.
	require.NoError(t, f.svc.RequestReset(context.Background(), "ghost@example.com", "203.0.113.7"))

	err := f.svc.RequestReset(context.Background(), "alice@example.com", "203.0.113.7")
	require.ErrorIs(t, err, ErrResetThrottled)
}

func TestNewestTokenSupersedesOlder(t *testing.T) {
	f := newResetFixture(t)
	f.registerAlice(t)

	require.NoError(t, f.svc.RequestReset(context.Background(), "alice@example.com", "203.0.113.7"))
	t1 := f.storedToken(t, "alice@example.com")

	// Second request from a different IP so the limiter does not interfere.
	require.NoError(t, f.svc.RequestReset(context.Background(), "alice@example.com", "198.51.100.9"))
	t2 := f.storedToken(t, "alice@example.com")
	require.NotEqual(t, t1, t2)

	// The superseded token is invalid even though it has not aged out.
	require.ErrorIs(t, f.svc.ValidateToken(context.Background(), "alice@example.com", t1), ErrTokenInvalid)
	require.NoError(t, f.svc.ValidateToken(context.Background(), "alice@example.com", t2))
}

func TestValidateTokenExpiryPurgesRecord(t *testing.T) {
	f := newResetFixture(t)
	f.registerAlice(t)

	require.NoError(t, f.svc.RequestReset(context.Background(), "alice@example.com", "203.0.113.7"))
	token := f.storedToken(t, "alice@example.com")

	*f.now = f.now.Add(61 * time.Minute)

	require.ErrorIs(t, f.svc.ValidateToken(context.Background(), "alice@example.com", token), ErrTokenExpired)

	// Detection removed the row, so a retry is plain invalid.
	err := f.db.Take(&models.PasswordResetToken{}, "email = ?", "alice@example.com").Error
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
	require.ErrorIs(t, f.svc.ValidateToken(context.Background(), "alice@example.com", token), ErrTokenInvalid)
}

func TestValidateTokenMismatch(t *testing.T) {
	f := newResetFixture(t)
	f.registerAlice(t)

	require.NoError(t, f.svc.RequestReset(context.Background(), "alice@example.com", "203.0.113.7"))

	require.ErrorIs(t, f.svc.ValidateToken(context.Background(), "alice@example.com", "forged-token"), ErrTokenInvalid)
	require.ErrorIs(t, f.svc.ValidateToken(context.Background(), "other@example.com", f.storedToken(t, "alice@example.com")), ErrTokenInvalid)
}

func TestResetPasswordConsumesToken(t *testing.T) {
	f := newResetFixture(t)
	f.registerAlice(t)

	require.NoError(t, f.svc.RequestReset(context.Background(), "alice@example.com", "203.0.113.7"))
	token := f.storedToken(t, "alice@example.com")

	*f.now = f.now.Add(30 * time.Minute)

	require.NoError(t, f.svc.ResetPassword(context.Background(), "alice@example.com", token, "brand-new-password", "203.0.113.7"))

	_, err := f.users.Authenticate(context.Background(), "alice@example.com", "brand-new-password")
	require.NoError(t, err)
	_, err = f.users.Authenticate(context.Background(), "alice@example.com", "original-password")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	// The throttle entry for her IP was cleared on success.
	throttled, err := f.svc.limiter.IsThrottled(context.Background(), "203.0.113.7")
	require.NoError(t, err)
	require.False(t, throttled)

	// Replaying the consumed token a second later fails as invalid.
	*f.now = f.now.Add(time.Second)
	err = f.svc.ResetPassword(context.Background(), "alice@example.com", token, "yet-another-password", "203.0.113.7")
	require.ErrorIs(t, err, ErrTokenInvalid)
}

type recordingRevoker struct {
	revoked []string
}

func (r *recordingRevoker) RevokeUserSessions(_ context.Context, userID string) error {
	r.revoked = append(r.revoked, userID)
	return nil
}

func TestResetPasswordRevokesUserSessions(t *testing.T) {
	f := newResetFixture(t)
	user := f.registerAlice(t)

	revoker := &recordingRevoker{}
	WithSessionRevoker(revoker)(f.svc)

	require.NoError(t, f.svc.RequestReset(context.Background(), "alice@example.com", "203.0.113.7"))
	token := f.storedToken(t, "alice@example.com")

	require.NoError(t, f.svc.ResetPassword(context.Background(), "alice@example.com", token, "brand-new-password", "203.0.113.7"))
	require.Equal(t, []string{user.ID}, revoker.revoked)

	// A failed reset must not touch anyone's sessions.
	err := f.svc.ResetPassword(context.Background(), "alice@example.com", "forged-token", "new-password", "203.0.113.7")
	require.ErrorIs(t, err, ErrTokenInvalid)
	require.Len(t, revoker.revoked, 1)
}

func TestResetPasswordRejectsExpiredToken(t *testing.T) {
	f := newResetFixture(t)
	f.registerAlice(t)

	require.NoError(t, f.svc.RequestReset(context.Background(), "alice@example.com", "203.0.113.7"))
	token := f.storedToken(t, "alice@example.com")

	*f.now = f.now.Add(2 * time.Hour)

	err := f.svc.ResetPassword(context.Background(), "alice@example.com", token, "new-password", "203.0.113.7")
	require.ErrorIs(t, err, ErrTokenExpired)

	_, authErr := f.users.Authenticate(context.Background(), "alice@example.com", "original-password")
	require.NoError(t, authErr)
}

func TestDispatchFailureIsSwallowed(t *testing.T) {
	f := newResetFixture(t)
	f.registerAlice(t)
	f.mailer.fail = errors.New("smtp: connection refused")

	// Delivery failure must never surface to the requester.
	require.NoError(t, f.svc.RequestReset(context.Background(), "alice@example.com", "203.0.113.7"))
	require.Empty(t, f.mailer.sent())
}

func TestCleanupExpiredTokens(t *testing.T) {
	f := newResetFixture(t)
	f.registerAlice(t)

	require.NoError(t, f.svc.RequestReset(context.Background(), "alice@example.com", "203.0.113.7"))

	*f.now = f.now.Add(2 * time.Hour)

	removed, err := f.svc.CleanupExpired(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 1, removed)
}
