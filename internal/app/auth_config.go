package app

import (
	"github.com/inkpost/inkpost/internal/auth"
	"github.com/inkpost/inkpost/internal/services"
)

// SessionServiceConfig converts AuthConfig into SessionService parameters.
func (c AuthConfig) SessionServiceConfig() auth.SessionConfig {
	ttl := c.Session.TTL
	if ttl <= 0 {
		ttl = auth.DefaultSessionTTL
	}

	remember := c.Session.RememberTTL
	if remember <= 0 {
		remember = auth.DefaultRememberTTL
	}

	length := c.Session.TokenLength
	if length <= 0 {
		length = 48
	}

	return auth.SessionConfig{
		SessionTTL:  ttl,
		RememberTTL: remember,
		TokenLength: length,
	}
}

// ResetLimiterConfig converts AuthConfig into ResetLimiter parameters.
func (c AuthConfig) ResetLimiterConfig() services.ResetLimiterConfig {
	window := c.Reset.ThrottleWindow
	if window <= 0 {
		window = services.DefaultThrottleWindow
	}
	return services.ResetLimiterConfig{Window: window}
}

// ResetServiceOptions builds PasswordResetService options from the loaded
// configuration. The frontend base URL anchors the links put into email.
func (c *Config) ResetServiceOptions() []services.ResetOption {
	opts := []services.ResetOption{
		services.WithResetBaseURL(c.Frontend.BaseURL),
	}
	if c.Auth.Reset.TokenTTL > 0 {
		opts = append(opts, services.WithResetExpiry(c.Auth.Reset.TokenTTL))
	}
	return opts
}
