package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/inkpost/inkpost/internal/models"
)

// DefaultThrottleWindow is how long one reset request blocks further
// requests from the same client IP.
const DefaultThrottleWindow = 12 * time.Hour

// ResetLimiterConfig describes tunable behaviour for the ResetLimiter.
type ResetLimiterConfig struct {
	Window time.Duration
	Clock  func() time.Time
}

// ResetLimiter tracks one throttle entry per client IP with a fixed TTL.
// The key is deliberately the raw client IP: coarse behind shared NATs, but
// that is the documented behaviour and callers depend on it.
type ResetLimiter struct {
	db     *gorm.DB
	window time.Duration
	now    func() time.Time
}

// NewResetLimiter constructs a limiter backed by the primary database.
func NewResetLimiter(db *gorm.DB, cfg ResetLimiterConfig) (*ResetLimiter, error) {
	if db == nil {
		return nil, errors.New("reset limiter: db is required")
	}

	window := cfg.Window
	if window <= 0 {
		window = DefaultThrottleWindow
	}

	clock := time.Now
	if cfg.Clock != nil {
		clock = cfg.Clock
	}

	return &ResetLimiter{db: db, window: window, now: clock}, nil
}

// IsThrottled reports whether a still-live throttle entry exists for ip.
// Entries past their expiry are treated as absent and reclaimed lazily.
func (l *ResetLimiter) IsThrottled(ctx context.Context, ip string) (bool, error) {
	ctx = ensureContext(ctx)

	ip = strings.TrimSpace(ip)
	if ip == "" {
		return false, nil
	}

	var entry models.ResetThrottle
	err := l.db.WithContext(ctx).Take(&entry, "ip = ?", ip).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("reset limiter: query entry: %w", err)
	}

	if !entry.ExpiresAt.After(l.now()) {
		if err := l.Clear(ctx, ip); err != nil {
			return false, err
		}
		return false, nil
	}

	return true, nil
}

// RecordAttempt creates or refreshes the throttle entry for ip. The upsert is
// a single atomic statement so concurrent requests cannot lose updates.
func (l *ResetLimiter) RecordAttempt(ctx context.Context, ip string) error {
	ctx = ensureContext(ctx)

	ip = strings.TrimSpace(ip)
	if ip == "" {
		return nil
	}

	entry := models.ResetThrottle{
		IP:        ip,
		ExpiresAt: l.now().Add(l.window),
	}

	err := l.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "ip"}},
		DoUpdates: clause.AssignmentColumns([]string{"expires_at"}),
	}).Create(&entry).Error
	if err != nil {
		return fmt.Errorf("reset limiter: record attempt: %w", err)
	}

	return nil
}

// Clear removes the throttle entry for ip so a user who just completed a
// reset is not locked out of requesting another link.
func (l *ResetLimiter) Clear(ctx context.Context, ip string) error {
	ctx = ensureContext(ctx)

	ip = strings.TrimSpace(ip)
	if ip == "" {
		return nil
	}

	if err := l.db.WithContext(ctx).Delete(&models.ResetThrottle{}, "ip = ?", ip).Error; err != nil {
		return fmt.Errorf("reset limiter: clear entry: %w", err)
	}
	return nil
}

// CleanupExpired removes throttle entries that have outlived their window.
func (l *ResetLimiter) CleanupExpired(ctx context.Context) (int64, error) {
	ctx = ensureContext(ctx)

	result := l.db.WithContext(ctx).
		Where("expires_at < ?", l.now()).
		Delete(&models.ResetThrottle{})
	if result.Error != nil {
		return 0, fmt.Errorf("reset limiter: cleanup: %w", result.Error)
	}
	return result.RowsAffected, nil
}
