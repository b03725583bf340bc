package authcore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nearbyhub/authcore/internal/metrics"
	"github.com/nearbyhub/authcore/internal/stores"
)

// Register creates a new account in status pending and enqueues a
// verification email. Mail delivery is best-effort and never fails the
// registration. Returns ErrEmailTaken when the address is already in
// use, a password policy error when the password is too weak.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*User, error) {
	email := normalizeEmail(in.Email)
	if email == "" {
		return nil, ErrInvalidCredentials
	}
	if err := s.config.PasswordPolicy.Validate(in.Password); err != nil {
		return nil, err
	}

	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		s.metrics.Inc(metrics.MetricRegisterConflict)
		return nil, ErrEmailTaken
	} else if !errors.Is(err, ErrUserNotFound) {
		return nil, err
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}

	role := in.Role
	if role == "" {
		role = RoleCommunity
	}

	now := time.Now()
	user := &User{
		Email:         email,
		PasswordHash:  hash,
		Role:          role,
		Status:        StatusPending,
		EmailVerified: false,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, ErrDuplicateEmail) {
			s.metrics.Inc(metrics.MetricRegisterConflict)
			return nil, ErrEmailTaken
		}
		return nil, err
	}

	s.sendVerification(ctx, user, email)

	s.metrics.Inc(metrics.MetricRegisterSuccess)
	s.emitAudit(ctx, AuditEvent{
		EventType: AuditRegister,
		UserID:    user.ID,
		Email:     email,
		Success:   true,
	})
	s.log.Info().Str("user_id", user.ID).Msg("account registered")

	return user, nil
}

// VerifyEmail consumes a verification token. On the first successful use
// the account moves to status active; a welcome email is enqueued.
// Returns ErrTokenInvalid for unknown, expired, or reused tokens.
func (s *Service) VerifyEmail(ctx context.Context, userID, tokenStr string) error {
	email, err := s.onetime.ConsumeVerification(ctx, userID, tokenStr)
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
	if user.Email != email {
		// Token was issued for a different address; treat as a
		// pending-email confirmation instead.
		if user.PendingEmail == email {
			return s.completeEmailChange(ctx, user, email)
		}
		return ErrTokenInvalid
	}

	user.EmailVerified = true
	if user.Status == StatusPending {
		user.Status = StatusActive
	}
	user.UpdatedAt = time.Now()
	if err := s.users.Update(ctx, user); err != nil {
		return err
	}

	s.outbox.enqueue(Mail{
		To:       user.Email,
		Template: "welcome",
		Data:     map[string]string{"email": user.Email},
	})

	s.metrics.Inc(metrics.MetricEmailVerified)
	s.emitAudit(ctx, AuditEvent{
		EventType: AuditEmailVerified,
		UserID:    user.ID,
		Email:     user.Email,
		Success:   true,
	})
	s.log.Info().Str("user_id", user.ID).Msg("email verified")

	return nil
}

// ResendVerification issues a fresh verification token. Unknown email
// addresses succeed silently to avoid leaking account existence; an
// already verified account is a real error so the UI can say so.
func (s *Service) ResendVerification(ctx context.Context, email string) error {
	email = normalizeEmail(email)

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil
		}
		return err
	}
	if user.EmailVerified {
		return ErrAlreadyVerified
	}

	s.sendVerification(ctx, user, user.Email)
	return nil
}

// sendVerification issues a one-time token and enqueues the message.
// Failures are logged and swallowed: verification can always be resent.
func (s *Service) sendVerification(ctx context.Context, user *User, email string) {
	tok, err := s.tokens.IssueOneTime()
	if err != nil {
		s.log.Error().Err(err).Str("user_id", user.ID).Msg("verification token generation failed")
		return
	}
	if err := s.onetime.SaveVerification(ctx, user.ID, tok, email, s.config.OneTime.VerificationTTL); err != nil {
		s.log.Error().Err(err).Str("user_id", user.ID).Msg("verification token save failed")
		return
	}

	s.outbox.enqueue(Mail{
		To:       email,
		Template: "verify-email",
		Data: map[string]string{
			"user_id": user.ID,
			"token":   tok,
			"expires": fmt.Sprintf("%dh", int(s.config.OneTime.VerificationTTL.Hours())),
		},
	})
}
