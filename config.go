package authcore

import (
	"errors"
	"time"

	"github.com/nearbyhub/authcore/password"
)

// LockoutConfig controls the failed-login counter.
type LockoutConfig struct {
	// Threshold is the number of failed attempts inside Window after
	// which logins are rejected as locked. Default 5.
	Threshold int
	// Window is the rolling counter lifetime. Default 15 minutes.
	Window time.Duration
}

// DeletionConfig controls self-service account deletion.
type DeletionConfig struct {
	// GracePeriod is how long a deletion request remains cancellable.
	// Default 30 days.
	GracePeriod time.Duration
}

// OneTimeConfig holds lifetimes for store-backed one-time tokens.
type OneTimeConfig struct {
	// VerificationTTL bounds email-verification tokens. Default 24h.
	VerificationTTL time.Duration
	// ResetTTL bounds password-reset tokens. Default 1h.
	ResetTTL time.Duration
}

// OutboxConfig controls the non-blocking mail queue.
type OutboxConfig struct {
	// Buffer is the queue depth before messages are dropped. Default 256.
	Buffer int
	// Retries is how many delivery attempts each message gets. Default 3.
	Retries int
	// RetryDelay separates attempts. Default 2s.
	RetryDelay time.Duration
}

// Config is the account-service configuration. Zero values are filled by
// DefaultConfig; Validate rejects nonsensical combinations.
type Config struct {
	Lockout  LockoutConfig
	Deletion DeletionConfig
	OneTime  OneTimeConfig
	Outbox   OutboxConfig

	// PasswordHash configures argon2id. Zero value uses the package
	// defaults.
	PasswordHash password.Config
	// PasswordPolicy is the strength policy applied to new passwords.
	PasswordPolicy password.Policy

	// EnableMetrics turns on the in-process counters.
	EnableMetrics bool
}

// DefaultConfig returns the platform defaults.
func DefaultConfig() Config {
	return Config{
		Lockout: LockoutConfig{
			Threshold: 5,
			Window:    15 * time.Minute,
		},
		Deletion: DeletionConfig{
			GracePeriod: 30 * 24 * time.Hour,
		},
		OneTime: OneTimeConfig{
			VerificationTTL: 24 * time.Hour,
			ResetTTL:        time.Hour,
		},
		Outbox: OutboxConfig{
			Buffer:     256,
			Retries:    3,
			RetryDelay: 2 * time.Second,
		},
		PasswordHash:   password.DefaultConfig(),
		PasswordPolicy: password.DefaultPolicy(),
		EnableMetrics:  true,
	}
}

// Validate checks the configuration for values that would break the
// flows at runtime.
func (c Config) Validate() error {
	if c.Lockout.Threshold <= 0 {
		return errors.New("lockout threshold must be positive")
	}
	if c.Lockout.Window <= 0 {
		return errors.New("lockout window must be positive")
	}
	if c.Deletion.GracePeriod <= 0 {
		return errors.New("deletion grace period must be positive")
	}
	if c.OneTime.VerificationTTL <= 0 || c.OneTime.ResetTTL <= 0 {
		return errors.New("one-time token TTLs must be positive")
	}
	if c.Outbox.Buffer <= 0 {
		return errors.New("outbox buffer must be positive")
	}
	if c.Outbox.Retries < 1 {
		return errors.New("outbox retries must be at least 1")
	}
	return nil
}
