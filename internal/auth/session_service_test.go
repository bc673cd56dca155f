package auth

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/inkpost/inkpost/internal/database/testutil"
	"github.com/inkpost/inkpost/internal/models"
)

func newTestSessionService(t *testing.T, clock *time.Time) (*SessionService, *gorm.DB) {
	t.Helper()

	db := testutil.MustOpenTestDB(t)
	svc, err := NewSessionService(db, SessionConfig{
		SessionTTL:  24 * time.Hour,
		RememberTTL: 30 * 24 * time.Hour,
		Clock:       func() time.Time { return *clock },
	})
	require.NoError(t, err)
	return svc, db
}

// seedUser persists a user row so sessions have a valid owner; the sessions
// table enforces the user foreign key.
func seedUser(t *testing.T, db *gorm.DB) string {
	t.Helper()

	user := models.User{
		Name:     "Session Owner",
		Email:    fmt.Sprintf("owner+%d@example.com", time.Now().UnixNano()),
		Password: "irrelevant-hash",
	}
	require.NoError(t, db.Create(&user).Error)
	return user.ID
}

func TestIssueAndResolve(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	svc, db := newTestSessionService(t, &now)
	userID := seedUser(t, db)

	session, err := svc.Issue(context.Background(), userID, SessionMetadata{IPAddress: "10.0.0.1"}, false)
	require.NoError(t, err)
	require.NotEmpty(t, session.Token)
	require.Equal(t, now.Add(24*time.Hour), session.ExpiresAt)

	resolved, err := svc.Resolve(context.Background(), session.Token)
	require.NoError(t, err)
	require.Equal(t, userID, resolved.UserID)
}

func TestIssueRememberExtendsTTL(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	svc, db := newTestSessionService(t, &now)
	userID := seedUser(t, db)

	session, err := svc.Issue(context.Background(), userID, SessionMetadata{}, true)
	require.NoError(t, err)
	require.True(t, session.Remember)
	require.Equal(t, now.Add(30*24*time.Hour), session.ExpiresAt)
}

func TestRotateInvalidatesOldToken(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	svc, db := newTestSessionService(t, &now)
	userID := seedUser(t, db)

	old, err := svc.Issue(context.Background(), userID, SessionMetadata{}, false)
	require.NoError(t, err)

	fresh, err := svc.Rotate(context.Background(), old.Token, userID, SessionMetadata{}, false)
	require.NoError(t, err)
	require.NotEqual(t, old.Token, fresh.Token)

	_, err = svc.Resolve(context.Background(), old.Token)
	require.ErrorIs(t, err, ErrSessionRevoked)

	_, err = svc.Resolve(context.Background(), fresh.Token)
	require.NoError(t, err)
}

func TestRotateWithoutPriorSession(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	svc, db := newTestSessionService(t, &now)
	userID := seedUser(t, db)

	fresh, err := svc.Rotate(context.Background(), "", userID, SessionMetadata{}, false)
	require.NoError(t, err)
	require.NotEmpty(t, fresh.Token)

	// A stale token that no longer exists must not block rotation either.
	fresh2, err := svc.Rotate(context.Background(), "no-such-token", userID, SessionMetadata{}, false)
	require.NoError(t, err)
	require.NotEqual(t, fresh.Token, fresh2.Token)
}

func TestResolveExpired(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	svc, db := newTestSessionService(t, &now)
	userID := seedUser(t, db)

	session, err := svc.Issue(context.Background(), userID, SessionMetadata{}, false)
	require.NoError(t, err)

	now = now.Add(25 * time.Hour)

	_, err = svc.Resolve(context.Background(), session.Token)
	require.ErrorIs(t, err, ErrSessionExpired)
}

func TestRevoke(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	svc, db := newTestSessionService(t, &now)
	userID := seedUser(t, db)

	session, err := svc.Issue(context.Background(), userID, SessionMetadata{}, false)
	require.NoError(t, err)

	require.NoError(t, svc.Revoke(context.Background(), session.Token))
	require.ErrorIs(t, svc.Revoke(context.Background(), session.Token), ErrSessionNotFound)

	_, err = svc.Resolve(context.Background(), session.Token)
	require.ErrorIs(t, err, ErrSessionRevoked)
}

func TestRevokeUserSessions(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	svc, db := newTestSessionService(t, &now)
	userID := seedUser(t, db)

	first, err := svc.Issue(context.Background(), userID, SessionMetadata{}, false)
	require.NoError(t, err)
	second, err := svc.Issue(context.Background(), userID, SessionMetadata{}, true)
	require.NoError(t, err)

	require.NoError(t, svc.RevokeUserSessions(context.Background(), userID))

	_, err = svc.Resolve(context.Background(), first.Token)
	require.ErrorIs(t, err, ErrSessionRevoked)
	_, err = svc.Resolve(context.Background(), second.Token)
	require.ErrorIs(t, err, ErrSessionRevoked)
}

func TestCleanupExpired(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	svc, db := newTestSessionService(t, &now)
	userID := seedUser(t, db)

	_, err := svc.Issue(context.Background(), userID, SessionMetadata{}, false)
	require.NoError(t, err)
	live, err := svc.Issue(context.Background(), userID, SessionMetadata{}, true)
	require.NoError(t, err)

	now = now.Add(25 * time.Hour)

	removed, err := svc.CleanupExpired(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 1, removed)

	var count int64
	require.NoError(t, db.Model(&models.Session{}).Count(&count).Error)
	require.EqualValues(t, 1, count)

	_, err = svc.Resolve(context.Background(), live.Token)
	require.NoError(t, err)
}
