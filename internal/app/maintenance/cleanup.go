package maintenance

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	iauth "github.com/inkpost/inkpost/internal/auth"
	"github.com/inkpost/inkpost/internal/services"
	"github.com/inkpost/inkpost/pkg/logger"
)

const (
	defaultSessionSpec  = "@hourly"
	defaultResetSpec    = "@hourly"
	defaultThrottleSpec = "@daily"
)

// Cleaner coordinates background maintenance: purging expired sessions,
// stale password reset tokens, and lapsed reset throttle entries.
type Cleaner struct {
	sessions *iauth.SessionService
	resets   *services.PasswordResetService
	limiter  *services.ResetLimiter
	cron     *cron.Cron
	now      func() time.Time
	log      *zap.Logger
	enabled  bool

	sessionSchedule  string
	resetSchedule    string
	throttleSchedule string
}

// Option customises the Cleaner.
type Option func(*Cleaner)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(cleaner *Cleaner) {
		if c != nil {
			cleaner.cron = c
		}
	}
}

// WithNow overrides the clock used for scheduling and cleanup comparisons.
func WithNow(now func() time.Time) Option {
	return func(cleaner *Cleaner) {
		if now != nil {
			cleaner.now = now
		}
	}
}

// WithSessionSchedule overrides the cron specification for session cleanup.
func WithSessionSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.sessionSchedule = spec
		}
	}
}

// WithResetSchedule overrides the cron specification for reset token cleanup.
func WithResetSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.resetSchedule = spec
		}
	}
}

// WithThrottleSchedule overrides the cron specification for throttle entry cleanup.
func WithThrottleSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.throttleSchedule = spec
		}
	}
}

// NewCleaner constructs a Cleaner with sensible defaults. Any nil dependency results in
// the corresponding cleanup job being skipped.
func NewCleaner(sessions *iauth.SessionService, resets *services.PasswordResetService, limiter *services.ResetLimiter, opts ...Option) *Cleaner {
	cleaner := &Cleaner{
		sessions:         sessions,
		resets:           resets,
		limiter:          limiter,
		now:              time.Now,
		sessionSchedule:  defaultSessionSpec,
		resetSchedule:    defaultResetSpec,
		throttleSchedule: defaultThrottleSpec,
		log:              logger.WithModule("maintenance"),
	}

	for _, opt := range opts {
		opt(cleaner)
	}

	if cleaner.cron == nil {
		cleaner.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}

	cleaner.enabled = cleaner.sessions != nil || cleaner.resets != nil || cleaner.limiter != nil

	return cleaner
}

// Start registers cleanup jobs with the cron scheduler and launches it if at least one cleanup is enabled.
func (c *Cleaner) Start() error {
	if !c.enabled {
		return nil
	}

	if c.sessions != nil {
		if _, err := c.cron.AddFunc(c.sessionSchedule, func() {
			if _, err := c.sessions.CleanupExpired(context.Background()); err != nil {
				c.log.Warn("session cleanup failed", zap.Error(err))
			}
		}); err != nil {
			return err
		}
	}

	if c.resets != nil {
		if _, err := c.cron.AddFunc(c.resetSchedule, func() {
			if _, err := c.resets.CleanupExpired(context.Background()); err != nil {
				c.log.Warn("reset token cleanup failed", zap.Error(err))
			}
		}); err != nil {
			return err
		}
	}

	if c.limiter != nil {
		if _, err := c.cron.AddFunc(c.throttleSchedule, func() {
			if _, err := c.limiter.CleanupExpired(context.Background()); err != nil {
				c.log.Warn("throttle cleanup failed", zap.Error(err))
			}
		}); err != nil {
			return err
		}
	}

	c.cron.Start()
	return nil
}

// Stop halts the underlying scheduler, waiting for any running jobs to complete.
func (c *Cleaner) Stop() context.Context {
	if c.cron == nil {
		return context.Background()
	}
	return c.cron.Stop()
}

// RunOnce executes all configured cleanup routines sequentially. Primarily used in tests
// and during graceful shutdown.
func (c *Cleaner) RunOnce(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var errs error

	if c.sessions != nil {
		if _, err := c.sessions.CleanupExpired(ctx); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	if c.resets != nil {
		if _, err := c.resets.CleanupExpired(ctx); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	if c.limiter != nil {
		if _, err := c.limiter.CleanupExpired(ctx); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	return errs
}
