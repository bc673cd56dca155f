package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/inkpost/inkpost/internal/models"
	"github.com/inkpost/inkpost/pkg/crypto"
	"github.com/inkpost/inkpost/pkg/logger"
	"github.com/inkpost/inkpost/pkg/mail"
	"github.com/inkpost/inkpost/pkg/metrics"
)

const (
	defaultResetExpiry     = time.Hour
	defaultResetTokenBytes = 48
	mailDispatchTimeout    = 15 * time.Second
)

var (
	// ErrTokenInvalid covers a missing row, a mismatched token, and a token
	// superseded by a newer request. Users see one generic message.
	ErrTokenInvalid = errors.New("password reset: invalid token")
	// ErrTokenExpired marks a matching token past its validity window. The
	// row is purged as a side effect of the detection.
	ErrTokenExpired = errors.New("password reset: expired token")
	// ErrResetThrottled signals too many requests from one IP. Unlike the
	// token errors this one is allowed to be visible: it reveals nothing
	// about which emails are registered.
	ErrResetThrottled = errors.New("password reset: throttled")
)

// SessionRevoker invalidates every live session belonging to a user. The
// session service satisfies this.
type SessionRevoker interface {
	RevokeUserSessions(ctx context.Context, userID string) error
}

// ResetOption customises the PasswordResetService.
type ResetOption func(*PasswordResetService)

// WithSessionRevoker makes a completed reset revoke the user's sessions, so
// anyone holding a stolen cookie is logged out along with the password change.
func WithSessionRevoker(r SessionRevoker) ResetOption {
	return func(s *PasswordResetService) {
		s.sessions = r
	}
}

// WithResetBaseURL sets the base URL used in reset links.
func WithResetBaseURL(u string) ResetOption {
	return func(s *PasswordResetService) {
		s.baseURL = strings.TrimRight(u, "/")
	}
}

// WithResetExpiry overrides the token validity window.
func WithResetExpiry(d time.Duration) ResetOption {
	return func(s *PasswordResetService) {
		if d > 0 {
			s.expiry = d
		}
	}
}

// WithResetTokenSize adjusts the number of random bytes in generated tokens.
func WithResetTokenSize(size int) ResetOption {
	return func(s *PasswordResetService) {
		if size > 0 {
			s.tokenLength = size
		}
	}
}

// WithResetClock injects a custom time source.
func WithResetClock(clock func() time.Time) ResetOption {
	return func(s *PasswordResetService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// WithSyncDispatch makes email dispatch synchronous. Tests use this to
// observe delivery without sleeping; failures are still swallowed.
func WithSyncDispatch() ResetOption {
	return func(s *PasswordResetService) {
		s.syncDispatch = true
	}
}

// PasswordResetService drives the single-use, time-limited reset token flow.
// Per email the state machine is absent -> active -> {consumed | expired};
// expiry is detected lazily when a validation is attempted.
type PasswordResetService struct {
	db           *gorm.DB
	users        *UserService
	limiter      *ResetLimiter
	mailer       mail.Mailer
	sessions     SessionRevoker
	baseURL      string
	expiry       time.Duration
	tokenLength  int
	now          func() time.Time
	syncDispatch bool
}

// NewPasswordResetService constructs the service with its collaborators.
func NewPasswordResetService(db *gorm.DB, users *UserService, limiter *ResetLimiter, mailer mail.Mailer, opts ...ResetOption) (*PasswordResetService, error) {
	if db == nil {
		return nil, errors.New("password reset service: db is required")
	}
	if users == nil {
		return nil, errors.New("password reset service: user service is required")
	}
	if limiter == nil {
		return nil, errors.New("password reset service: limiter is required")
	}

	service := &PasswordResetService{
		db:          db,
		users:       users,
		limiter:     limiter,
		mailer:      mailer,
		expiry:      defaultResetExpiry,
		tokenLength: defaultResetTokenBytes,
		now:         time.Now,
	}

	for _, opt := range opts {
		opt(service)
	}

	return service, nil
}

// RequestReset handles a "forgot password" submission. Apart from throttling,
// the caller-visible outcome is identical whether or not the email belongs to
// a registered user: that indistinguishability is the anti-enumeration
// contract, not an oversight.
func (s *PasswordResetService) RequestReset(ctx context.Context, email, ip string) error {
	ctx = ensureContext(ctx)
	email = strings.TrimSpace(email)

	throttled, err := s.limiter.IsThrottled(ctx, ip)
	if err != nil {
		return fmt.Errorf("password reset service: throttle check: %w", err)
	}
	if throttled {
		metrics.PasswordResets.WithLabelValues("throttled").Inc()
		return ErrResetThrottled
	}

	// Recorded for known and unknown emails alike; throttling only known
	// ones would leak registration state through the 429.
	if err := s.limiter.RecordAttempt(ctx, ip); err != nil {
		return fmt.Errorf("password reset service: record attempt: %w", err)
	}

	metrics.PasswordResets.WithLabelValues("requested").Inc()

	user, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, ErrUserNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("password reset service: resolve user: %w", err)
	}

	token, err := crypto.GenerateToken(s.tokenLength)
	if err != nil {
		return fmt.Errorf("password reset service: generate token: %w", err)
	}

	record := models.PasswordResetToken{
		Email:     user.Email,
		Token:     token,
		CreatedAt: s.now(),
	}

	// Atomic upsert keyed by email: a new request supersedes any prior
	// token for the address, so only the newest token is ever valid.
	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "email"}},
		DoUpdates: clause.AssignmentColumns([]string{"token", "created_at"}),
	}).Create(&record).Error
	if err != nil {
		return fmt.Errorf("password reset service: store token: %w", err)
	}

	s.dispatch(user.Email, token)

	return nil
}

// ValidateToken checks the supplied email/token pair. An expired match is
// deleted on the spot; this lazy check is the authoritative expiry mechanism.
func (s *PasswordResetService) ValidateToken(ctx context.Context, email, token string) error {
	ctx = ensureContext(ctx)

	email = strings.TrimSpace(email)
	token = strings.TrimSpace(token)
	if email == "" || token == "" {
		return ErrTokenInvalid
	}

	var record models.PasswordResetToken
	err := s.db.WithContext(ctx).Take(&record, "email = ?", email).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrTokenInvalid
	}
	if err != nil {
		return fmt.Errorf("password reset service: find token: %w", err)
	}

	if !crypto.SecureCompare(record.Token, token) {
		return ErrTokenInvalid
	}

	if s.now().Sub(record.CreatedAt) > s.expiry {
		if err := s.deleteToken(ctx, email); err != nil {
			return err
		}
		return ErrTokenExpired
	}

	return nil
}

// ResetPassword consumes a valid token and updates the user's password. The
// validation is re-run here regardless of any earlier ValidateToken call: a
// previously shown "valid" UI state is never trusted.
func (s *PasswordResetService) ResetPassword(ctx context.Context, email, token, newPassword, ip string) error {
	ctx = ensureContext(ctx)

	if err := s.ValidateToken(ctx, email, token); err != nil {
		metrics.PasswordResets.WithLabelValues("rejected").Inc()
		return err
	}

	email = strings.TrimSpace(email)

	user, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, ErrUserNotFound) {
		// Token row without a user: treat like any bad token.
		if err := s.deleteToken(ctx, email); err != nil {
			return err
		}
		return ErrTokenInvalid
	}
	if err != nil {
		return fmt.Errorf("password reset service: resolve user: %w", err)
	}

	if err := s.users.UpdatePassword(ctx, user.ID, newPassword); err != nil {
		return fmt.Errorf("password reset service: update password: %w", err)
	}

	// The old credential is dead; so is every session minted under it.
	if s.sessions != nil {
		if err := s.sessions.RevokeUserSessions(ctx, user.ID); err != nil {
			return fmt.Errorf("password reset service: revoke sessions: %w", err)
		}
	}

	// Single-use enforcement: the consumed token is gone before we return.
	if err := s.deleteToken(ctx, email); err != nil {
		return err
	}

	if err := s.limiter.Clear(ctx, ip); err != nil {
		return err
	}

	metrics.PasswordResets.WithLabelValues("completed").Inc()

	return nil
}

// CleanupExpired removes reset tokens past their validity window. The sweep
// is an optimisation only; ValidateToken remains the source of truth.
func (s *PasswordResetService) CleanupExpired(ctx context.Context) (int64, error) {
	ctx = ensureContext(ctx)

	cutoff := s.now().Add(-s.expiry)
	result := s.db.WithContext(ctx).
		Where("created_at < ?", cutoff).
		Delete(&models.PasswordResetToken{})
	if result.Error != nil {
		return 0, fmt.Errorf("password reset service: cleanup: %w", result.Error)
	}
	return result.RowsAffected, nil
}

func (s *PasswordResetService) deleteToken(ctx context.Context, email string) error {
	if err := s.db.WithContext(ctx).Delete(&models.PasswordResetToken{}, "email = ?", email).Error; err != nil {
		return fmt.Errorf("password reset service: delete token: %w", err)
	}
	return nil
}

// dispatch sends the reset mail without blocking the caller. Delivery
// failures are logged and counted, never surfaced to the requester.
func (s *PasswordResetService) dispatch(email, token string) {
	if s.mailer == nil {
		return
	}

	send := func() {
		ctx, cancel := context.WithTimeout(context.Background(), mailDispatchTimeout)
		defer cancel()

		msg := mail.Message{
			To:      []string{email},
			Subject: "Reset your inkpost password",
			Body:    s.resetBody(email, token),
		}
		if err := s.mailer.Send(ctx, msg); err != nil && !errors.Is(err, mail.ErrSMTPDisabled) {
			metrics.ResetMailFailures.Inc()
			logger.WithModule("password-reset").Error("reset email dispatch failed",
				zap.Error(err),
			)
		}
	}

	if s.syncDispatch {
		send()
		return
	}
	go send()
}

func (s *PasswordResetService) resetLink(email, token string) string {
	if s.baseURL == "" {
		return token
	}
	query := url.Values{}
	query.Set("token", token)
	query.Set("email", email)
	return fmt.Sprintf("%s/reset-password?%s", s.baseURL, query.Encode())
}

func (s *PasswordResetService) resetBody(email, token string) string {
	return fmt.Sprintf("Someone requested a password reset for your inkpost account.\n\nYou can choose a new password within the next hour by visiting the link below:\n%s\n\nIf you did not request this, you can ignore this message.\n", s.resetLink(email, token))
}
