package authcore

import (
	"context"
	"strconv"
	"time"

	"github.com/nearbyhub/authcore/internal/metrics"
)

// RequestDeletion marks the account for deletion. The account stays
// usable through the grace period and is purged by DeleteExpiredAccounts
// afterwards. Repeated requests keep the original timestamp so the
// grace period cannot be extended by re-requesting.
func (s *Service) RequestDeletion(ctx context.Context, userID string) (time.Time, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return time.Time{}, err
	}

	if user.DeletionRequestedAt == nil {
		now := time.Now()
		user.DeletionRequestedAt = &now
		user.UpdatedAt = now
		if err := s.users.Update(ctx, user); err != nil {
			return time.Time{}, err
		}

		s.metrics.Inc(metrics.MetricDeletionRequested)
		s.emitAudit(ctx, AuditEvent{
			EventType: AuditDeletionRequested,
			UserID:    user.ID,
			Email:     user.Email,
			Success:   true,
		})

		s.outbox.enqueue(Mail{
			To:       user.Email,
			Template: "deletion-requested",
			Data: map[string]string{
				"grace_expires": now.Add(s.config.Deletion.GracePeriod).Format(time.RFC3339),
			},
		})
	}

	return user.DeletionRequestedAt.Add(s.config.Deletion.GracePeriod), nil
}

// CancelDeletion clears a pending deletion request. Only possible while
// the grace period has not elapsed; afterwards the account belongs to
// the purge job.
func (s *Service) CancelDeletion(ctx context.Context, userID string) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if user.DeletionRequestedAt == nil {
		return ErrNoDeletionRequest
	}
	if time.Now().After(user.DeletionRequestedAt.Add(s.config.Deletion.GracePeriod)) {
		return ErrNoDeletionRequest
	}

	user.DeletionRequestedAt = nil
	user.UpdatedAt = time.Now()
	if err := s.users.Update(ctx, user); err != nil {
		return err
	}

	s.metrics.Inc(metrics.MetricDeletionCancelled)
	s.emitAudit(ctx, AuditEvent{
		EventType: AuditDeletionCancelled,
		UserID:    user.ID,
		Email:     user.Email,
		Success:   true,
	})

	return nil
}

// DeleteExpiredAccounts purges accounts whose deletion request predates
// the grace period. Final notices are enqueued best-effort before the
// bulk delete; sessions are revoked so outstanding refresh tokens die
// with the account. Safe to re-run: a second pass finds nothing.
func (s *Service) DeleteExpiredAccounts(ctx context.Context) (int, error) {
	cutoff := time.Now().Add(-s.config.Deletion.GracePeriod)

	expired, err := s.users.ListDeletionRequestedBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	for _, user := range expired {
		s.outbox.enqueue(Mail{
			To:       user.Email,
			Template: "account-deleted",
			Data:     map[string]string{"email": user.Email},
		})
		if _, err := s.sessions.RevokeAll(ctx, user.ID, ""); err != nil {
			s.log.Warn().Err(err).Str("user_id", user.ID).Msg("session revocation failed during purge")
		}
	}

	purged, err := s.users.DeleteWhereDeletionRequestedBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	if purged > 0 {
		s.metrics.Add(metrics.MetricAccountsPurged, uint64(purged))
		s.emitAudit(ctx, AuditEvent{
			EventType: AuditAccountsPurged,
			Success:   true,
			Metadata:  map[string]string{"count": strconv.Itoa(purged)},
		})
		s.log.Info().Int("count", purged).Msg("expired accounts purged")
	}

	return purged, nil
}
