package authcore

import (
	"context"
	"errors"
	"time"

	"github.com/nearbyhub/authcore/internal/metrics"
	"github.com/nearbyhub/authcore/internal/stores"
)

// ChangeEmail starts the two-phase email change: the new address is
// stored as PendingEmail and a verification token is mailed to it. The
// account's email does not change until VerifyEmailChange. The conflict
// check against existing accounts runs before any token is issued.
func (s *Service) ChangeEmail(ctx context.Context, userID, newEmail string) error {
	newEmail = normalizeEmail(newEmail)
	if newEmail == "" {
		return ErrEmailTaken
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if user.Email == newEmail {
		return ErrEmailTaken
	}

	if _, err := s.users.GetByEmail(ctx, newEmail); err == nil {
		return ErrEmailTaken
	} else if !errors.Is(err, ErrUserNotFound) {
		return err
	}

	user.PendingEmail = newEmail
	user.UpdatedAt = time.Now()
	if err := s.users.Update(ctx, user); err != nil {
		return err
	}

	tok, err := s.tokens.IssueOneTime()
	if err != nil {
		return err
	}
	if err := s.onetime.SaveVerification(ctx, user.ID, tok, newEmail, s.config.OneTime.VerificationTTL); err != nil {
		return err
	}

	// Verification goes to the address being claimed, never the current
	// one.
	s.outbox.enqueue(Mail{
		To:       newEmail,
		Template: "verify-email-change",
		Data: map[string]string{
			"user_id": user.ID,
			"token":   tok,
		},
	})

	s.metrics.Inc(metrics.MetricEmailChangeRequested)
	s.emitAudit(ctx, AuditEvent{
		EventType: AuditEmailChangeRequested,
		UserID:    user.ID,
		Email:     user.Email,
		Success:   true,
		Metadata:  map[string]string{"pending_email": newEmail},
	})

	return nil
}

// VerifyEmailChange consumes the change token and swaps PendingEmail
// into Email. The collision check reruns at confirmation time: another
// account may have claimed the address while the token was outstanding.
func (s *Service) VerifyEmailChange(ctx context.Context, userID, tokenStr string) error {
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
	if user.PendingEmail == "" {
		return ErrNoPendingEmail
	}
	if user.PendingEmail != email {
		return ErrTokenInvalid
	}

	return s.completeEmailChange(ctx, user, email)
}

func (s *Service) completeEmailChange(ctx context.Context, user *User, newEmail string) error {
	if other, err := s.users.GetByEmail(ctx, newEmail); err == nil && other.ID != user.ID {
		return ErrEmailTaken
	} else if err != nil && !errors.Is(err, ErrUserNotFound) {
		return err
	}

	oldEmail := user.Email
	user.Email = newEmail
	user.PendingEmail = ""
	user.EmailVerified = true
	user.UpdatedAt = time.Now()
	if err := s.users.Update(ctx, user); err != nil {
		if errors.Is(err, ErrDuplicateEmail) {
			return ErrEmailTaken
		}
		return err
	}

	// Notify the old address so a hijacked account is noticed.
	s.outbox.enqueue(Mail{
		To:       oldEmail,
		Template: "email-changed",
		Data: map[string]string{
			"old_email": oldEmail,
			"new_email": newEmail,
		},
	})

	s.metrics.Inc(metrics.MetricEmailChangeConfirmed)
	s.emitAudit(ctx, AuditEvent{
		EventType: AuditEmailChangeConfirmed,
		UserID:    user.ID,
		Email:     newEmail,
		Success:   true,
		Metadata:  map[string]string{"old_email": oldEmail},
	})
	s.log.Info().Str("user_id", user.ID).Msg("email change confirmed")

	return nil
}
