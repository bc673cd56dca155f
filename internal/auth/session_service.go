package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/inkpost/inkpost/internal/models"
	"github.com/inkpost/inkpost/pkg/crypto"
	"github.com/inkpost/inkpost/pkg/metrics"
)

const (
	// DefaultSessionTTL is the lifetime of a session issued without "remember me".
	DefaultSessionTTL = 24 * time.Hour
	// DefaultRememberTTL is the lifetime of a remembered session.
	DefaultRememberTTL = 30 * 24 * time.Hour
)

// SessionConfig describes tunable behaviour for the SessionService.
type SessionConfig struct {
	SessionTTL  time.Duration
	RememberTTL time.Duration
	TokenLength int
	Clock       func() time.Time
}

// SessionMetadata captures contextual information about the client.
type SessionMetadata struct {
	IPAddress string
	UserAgent string
}

var (
	// ErrSessionNotFound indicates that no session matches the provided token.
	ErrSessionNotFound = errors.New("session: not found")
	// ErrSessionRevoked marks a session that has been destroyed by a logout.
	ErrSessionRevoked = errors.New("session: revoked")
	// ErrSessionExpired signals that a session has reached its expiry.
	ErrSessionExpired = errors.New("session: expired")
	// ErrSessionInvalidToken is returned when the supplied token is malformed.
	ErrSessionInvalidToken = errors.New("session: invalid token")
)

// SessionService manages creation, rotation, and revocation of user sessions.
type SessionService struct {
	db          *gorm.DB
	sessionTTL  time.Duration
	rememberTTL time.Duration
	tokenLen    int
	now         func() time.Time
}

// NewSessionService constructs a session manager backed by the provided database.
func NewSessionService(db *gorm.DB, cfg SessionConfig) (*SessionService, error) {
	if db == nil {
		return nil, errors.New("session service: db is required")
	}

	ttl := cfg.SessionTTL
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}

	rememberTTL := cfg.RememberTTL
	if rememberTTL <= 0 {
		rememberTTL = DefaultRememberTTL
	}

	length := cfg.TokenLength
	if length <= 0 {
		length = 48
	}

	clock := time.Now
	if cfg.Clock != nil {
		clock = cfg.Clock
	}

	return &SessionService{
		db:          db,
		sessionTTL:  ttl,
		rememberTTL: rememberTTL,
		tokenLen:    length,
		now:         clock,
	}, nil
}

// Issue generates a new session for the user and returns it with its token.
func (s *SessionService) Issue(ctx context.Context, userID string, meta SessionMetadata, remember bool) (*models.Session, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, errors.New("session service: user id is required")
	}

	token, err := crypto.GenerateToken(s.tokenLen)
	if err != nil {
		return nil, fmt.Errorf("session service: generate token: %w", err)
	}

	now := s.now()
	ttl := s.sessionTTL
	if remember {
		ttl = s.rememberTTL
	}

	session := &models.Session{
		UserID:     userID,
		Token:      token,
		IPAddress:  strings.TrimSpace(meta.IPAddress),
		UserAgent:  strings.TrimSpace(meta.UserAgent),
		Remember:   remember,
		ExpiresAt:  now.Add(ttl),
		LastUsedAt: now,
	}

	if err := s.db.WithContext(ctx).Create(session).Error; err != nil {
		return nil, fmt.Errorf("session service: create session: %w", err)
	}

	metrics.ActiveSessions.Inc()

	return session, nil
}

// Rotate revokes the presented pre-event session, if any, and issues a fresh
// one for the user. Login and registration always go through here so the
// identifier seen before the privilege boundary is never valid after it.
func (s *SessionService) Rotate(ctx context.Context, oldToken, userID string, meta SessionMetadata, remember bool) (*models.Session, error) {
	if strings.TrimSpace(oldToken) != "" {
		if err := s.Revoke(ctx, oldToken); err != nil && !errors.Is(err, ErrSessionNotFound) {
			return nil, err
		}
	}
	return s.Issue(ctx, userID, meta, remember)
}

// Resolve looks up a session by its opaque token and verifies it is live.
// The expiry check here is authoritative; the cron sweep only reclaims rows.
func (s *SessionService) Resolve(ctx context.Context, token string) (*models.Session, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrSessionInvalidToken
	}

	var session models.Session
	err := s.db.WithContext(ctx).Where("token = ?", token).Take(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("session service: find session: %w", err)
	}

	now := s.now()

	if session.RevokedAt != nil {
		return nil, ErrSessionRevoked
	}
	if session.ExpiresAt.Before(now) {
		return nil, ErrSessionExpired
	}

	if err := s.db.WithContext(ctx).Model(&session).Update("last_used_at", now).Error; err != nil {
		return nil, fmt.Errorf("session service: touch session: %w", err)
	}
	session.LastUsedAt = now

	return &session, nil
}

// Revoke destroys the server-side state of a session.
func (s *SessionService) Revoke(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return ErrSessionInvalidToken
	}

	now := s.now()

	result := s.db.WithContext(ctx).Model(&models.Session{}).
		Where("token = ? AND revoked_at IS NULL", token).
		Update("revoked_at", now)
	if result.Error != nil {
		return fmt.Errorf("session service: revoke session: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrSessionNotFound
	}

	metrics.ActiveSessions.Sub(float64(result.RowsAffected))

	return nil
}

// RevokeUserSessions revokes every active session belonging to a user.
// Called after a completed password reset.
func (s *SessionService) RevokeUserSessions(ctx context.Context, userID string) error {
	if strings.TrimSpace(userID) == "" {
		return ErrSessionInvalidToken
	}

	result := s.db.WithContext(ctx).Model(&models.Session{}).
		Where("user_id = ? AND revoked_at IS NULL", userID).
		Update("revoked_at", s.now())
	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected > 0 {
		metrics.ActiveSessions.Sub(float64(result.RowsAffected))
	}
	return nil
}

// CleanupExpired removes expired and revoked sessions.
func (s *SessionService) CleanupExpired(ctx context.Context) (int64, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	now := s.now()

	var activeExpired int64
	if err := s.db.WithContext(ctx).
		Model(&models.Session{}).
		Where("expires_at < ? AND revoked_at IS NULL", now).
		Count(&activeExpired).Error; err != nil {
		return 0, fmt.Errorf("session service: count expired sessions: %w", err)
	}

	result := s.db.WithContext(ctx).
		Where("expires_at < ?", now).
		Or("revoked_at IS NOT NULL").
		Delete(&models.Session{})
	if result.Error != nil {
		return 0, fmt.Errorf("session service: cleanup expired sessions: %w", result.Error)
	}

	if activeExpired > 0 {
		metrics.ActiveSessions.Sub(float64(activeExpired))
	}

	return result.RowsAffected, nil
}
