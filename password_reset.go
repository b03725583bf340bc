package authcore

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/nearbyhub/authcore/internal/metrics"
	"github.com/nearbyhub/authcore/internal/stores"
)

// InitiatePasswordReset issues a single-use reset token and enqueues the
// reset email. Unknown addresses succeed silently so the endpoint cannot
// be used to probe for accounts.
func (s *Service) InitiatePasswordReset(ctx context.Context, email string) error {
	email = normalizeEmail(email)

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil
		}
		return err
	}

	tok, err := s.tokens.IssueOneTime()
	if err != nil {
		return err
	}
	if err := s.onetime.SaveReset(ctx, tok, user.ID, s.config.OneTime.ResetTTL); err != nil {
		return err
	}

	s.outbox.enqueue(Mail{
		To:       user.Email,
		Template: "password-reset",
		Data: map[string]string{
			"token": tok,
		},
	})

	s.metrics.Inc(metrics.MetricPasswordResetRequested)
	s.emitAudit(ctx, AuditEvent{
		EventType: AuditPasswordResetRequested,
		UserID:    user.ID,
		Email:     email,
		Success:   true,
	})

	return nil
}

// CompletePasswordReset consumes a reset token, stores the new password,
// and revokes every session the user has (forced global logout). A
// confirmation email is enqueued best-effort.
func (s *Service) CompletePasswordReset(ctx context.Context, tokenStr, newPassword string) error {
	if err := s.config.PasswordPolicy.Validate(newPassword); err != nil {
		return err
	}

	userID, err := s.onetime.ConsumeReset(ctx, tokenStr)
	if err != nil {
		if errors.Is(err, stores.ErrNotFound) {
			return ErrTokenInvalid
		}
		return err
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}
	user.PasswordHash = hash
	user.UpdatedAt = time.Now()
	if err := s.users.Update(ctx, user); err != nil {
		return err
	}

	if err := s.lockout.Reset(ctx, user.ID); err != nil {
		s.log.Warn().Err(err).Str("user_id", user.ID).Msg("lockout reset failed after password reset")
	}

	revoked, err := s.sessions.RevokeAll(ctx, user.ID, "")
	if err != nil {
		return err
	}
	s.metrics.Add(metrics.MetricSessionRevoked, uint64(revoked))

	s.outbox.enqueue(Mail{
		To:       user.Email,
		Template: "password-changed",
		Data:     map[string]string{"email": user.Email},
	})

	s.metrics.Inc(metrics.MetricPasswordResetCompleted)
	s.emitAudit(ctx, AuditEvent{
		EventType: AuditPasswordResetCompleted,
		UserID:    user.ID,
		Email:     user.Email,
		Success:   true,
		Metadata:  map[string]string{"sessions_revoked": strconv.Itoa(revoked)},
	})
	s.log.Info().Str("user_id", user.ID).Int("sessions_revoked", revoked).Msg("password reset completed")

	return nil
}

// ChangePassword verifies the current password, stores the new one, and
// revokes every other session so only the caller's stays live.
func (s *Service) ChangePassword(ctx context.Context, userID, current, newPassword, exceptSessionID string) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}

	ok, err := s.hasher.Verify(current, user.PasswordHash)
	if err != nil {
		return err
	}
	if !ok {
		return ErrInvalidCredentials
	}

	if err := s.config.PasswordPolicy.Validate(newPassword); err != nil {
		return err
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}
	user.PasswordHash = hash
	user.UpdatedAt = time.Now()
	if err := s.users.Update(ctx, user); err != nil {
		return err
	}

	revoked, err := s.sessions.RevokeAll(ctx, user.ID, exceptSessionID)
	if err != nil {
		return err
	}
	s.metrics.Add(metrics.MetricSessionRevoked, uint64(revoked))

	s.outbox.enqueue(Mail{
		To:       user.Email,
		Template: "password-changed",
		Data:     map[string]string{"email": user.Email},
	})

	s.metrics.Inc(metrics.MetricPasswordChanged)
	s.emitAudit(ctx, AuditEvent{
		EventType: AuditPasswordChanged,
		UserID:    user.ID,
		Email:     user.Email,
		Success:   true,
	})

	return nil
}
