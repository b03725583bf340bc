package authcore

import (
	"context"
	"errors"
	"time"

	"github.com/nearbyhub/authcore/internal/metrics"
)

// Login authenticates an email/password pair and returns an access
// token. Refresh-token issuance and session creation stay in the caller,
// which also needs the refresh jti to build the session row.
//
// Unknown email and wrong password both return ErrInvalidCredentials.
// Accounts at or past the lockout threshold are rejected as locked
// before the password is even checked. A successful password is then
// gated on account status (suspended, deleted, pending each get their
// own error) and on the deletion grace period: inside the window login
// succeeds with DeletionPending set; past it the account is treated as
// already deleted.
func (s *Service) Login(ctx context.Context, email, pass string) (*LoginResult, error) {
	email = normalizeEmail(email)

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			// Burn a verify against the dummy hash so an unknown email
			// costs the same as a wrong password and the miss cannot be
			// told apart by response time.
			_, _ = s.hasher.Verify(pass, s.dummyHash)
			s.metrics.Inc(metrics.MetricLoginFailure)
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	locked, err := s.lockout.Locked(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	if locked {
		s.metrics.Inc(metrics.MetricLoginLocked)
		s.emitAudit(ctx, AuditEvent{
			EventType: AuditLoginLocked,
			UserID:    user.ID,
			Email:     email,
		})
		return nil, ErrAccountLocked
	}

	ok, err := s.hasher.Verify(pass, user.PasswordHash)
	if err != nil {
		return nil, err
	}
	if !ok {
		reached, err := s.lockout.RecordFailure(ctx, user.ID)
		if err != nil {
			return nil, err
		}
		s.metrics.Inc(metrics.MetricLoginFailure)
		if reached {
			s.metrics.Inc(metrics.MetricLoginLocked)
			s.emitAudit(ctx, AuditEvent{
				EventType: AuditLoginLocked,
				UserID:    user.ID,
				Email:     email,
			})
			return nil, ErrAccountLocked
		}
		return nil, ErrInvalidCredentials
	}

	switch user.Status {
	case StatusSuspended:
		return nil, ErrAccountSuspended
	case StatusDeleted:
		return nil, ErrAccountDeleted
	case StatusPending:
		return nil, ErrAccountPending
	}

	result := &LoginResult{User: user}
	if user.DeletionRequestedAt != nil {
		graceEnd := user.DeletionRequestedAt.Add(s.config.Deletion.GracePeriod)
		if time.Now().After(graceEnd) {
			// Grace period elapsed; the purge job owns the actual
			// removal. Treat as already deleted.
			return nil, ErrAccountDeleted
		}
		result.DeletionPending = true
		result.GraceExpiresAt = graceEnd
	}

	if err := s.lockout.Reset(ctx, user.ID); err != nil {
		return nil, err
	}

	s.maybeUpgradeHash(ctx, user, pass)

	access, err := s.tokens.IssueAccess(user.ID, string(user.Role), user.Email)
	if err != nil {
		return nil, err
	}
	result.AccessToken = access
	s.metrics.Inc(metrics.MetricTokenIssued)

	// Best-effort: a failed timestamp write must not fail the login.
	now := time.Now()
	user.LastLoginAt = &now
	user.UpdatedAt = now
	if err := s.users.Update(ctx, user); err != nil {
		s.log.Warn().Err(err).Str("user_id", user.ID).Msg("last-login update failed")
	}

	s.metrics.Inc(metrics.MetricLoginSuccess)
	s.emitAudit(ctx, AuditEvent{
		EventType: AuditLogin,
		UserID:    user.ID,
		Email:     email,
		Success:   true,
	})
	s.log.Info().Str("user_id", user.ID).Msg("login succeeded")

	return result, nil
}

// maybeUpgradeHash re-hashes the password when the stored hash was
// created with weaker parameters than currently configured. Best-effort:
// the plaintext is only available here, so failures just wait for the
// next login.
func (s *Service) maybeUpgradeHash(ctx context.Context, user *User, pass string) {
	upgrade, err := s.hasher.NeedsUpgrade(user.PasswordHash)
	if err != nil || !upgrade {
		return
	}
	hash, err := s.hasher.Hash(pass)
	if err != nil {
		s.log.Warn().Err(err).Str("user_id", user.ID).Msg("password hash upgrade failed")
		return
	}
	user.PasswordHash = hash
}
