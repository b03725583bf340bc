package authcore

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRequestDeletionSetsTimestamp(t *testing.T) {
	svc, users, mailer, _ := newTestService(t)
	ctx := context.Background()

	user := registerActive(t, svc, users, "alice@example.com", "ValidPass123")
	mailer.waitForMail(t, 1)

	expires, err := svc.RequestDeletion(ctx, user.ID)
	if err != nil {
		t.Fatalf("RequestDeletion: %v", err)
	}

	stored := users.mustGet(t, user.ID)
	if stored.DeletionRequestedAt == nil {
		t.Fatal("deletion timestamp must be set")
	}
	want := stored.DeletionRequestedAt.Add(30 * 24 * time.Hour)
	if !expires.Equal(want) {
		t.Fatalf("grace expiry mismatch: want %v, got %v", want, expires)
	}

	notice := mailer.waitForMail(t, 2)[1]
	if notice.Template != "deletion-requested" {
		t.Fatalf("expected deletion-requested mail, got %q", notice.Template)
	}
}

func TestRequestDeletionDoesNotExtendGrace(t *testing.T) {
	svc, users, _, _ := newTestService(t)
	ctx := context.Background()

	user := registerActive(t, svc, users, "bob@example.com", "ValidPass123")

	first, err := svc.RequestDeletion(ctx, user.ID)
	if err != nil {
		t.Fatalf("first request: %v", err)
	}
	second, err := svc.RequestDeletion(ctx, user.ID)
	if err != nil {
		t.Fatalf("second request: %v", err)
	}
	if !second.Equal(first) {
		t.Fatalf("re-requesting must keep the original deadline: %v vs %v", first, second)
	}
}

func TestCancelDeletion(t *testing.T) {
	svc, users, _, _ := newTestService(t)
	ctx := context.Background()

	user := registerActive(t, svc, users, "carol@example.com", "ValidPass123")

	if _, err := svc.RequestDeletion(ctx, user.ID); err != nil {
		t.Fatalf("RequestDeletion: %v", err)
	}
	if err := svc.CancelDeletion(ctx, user.ID); err != nil {
		t.Fatalf("CancelDeletion: %v", err)
	}

	stored := users.mustGet(t, user.ID)
	if stored.DeletionRequestedAt != nil {
		t.Fatal("deletion timestamp must be cleared")
	}

	// Nothing pending anymore.
	if err := svc.CancelDeletion(ctx, user.ID); !errors.Is(err, ErrNoDeletionRequest) {
		t.Fatalf("expected ErrNoDeletionRequest, got %v", err)
	}
}

func TestCancelDeletionAfterGraceRejected(t *testing.T) {
	svc, users, _, _ := newTestService(t)
	ctx := context.Background()

	user := registerActive(t, svc, users, "dave@example.com", "ValidPass123")

	requested := time.Now().Add(-31 * 24 * time.Hour)
	stored := users.mustGet(t, user.ID)
	stored.DeletionRequestedAt = &requested
	users.put(stored)

	if err := svc.CancelDeletion(ctx, user.ID); !errors.Is(err, ErrNoDeletionRequest) {
		t.Fatalf("cancellation past grace must be rejected, got %v", err)
	}
}

func TestDeleteExpiredAccountsIdempotent(t *testing.T) {
	svc, users, mailer, _ := newTestService(t)
	ctx := context.Background()

	expired := registerActive(t, svc, users, "old@example.com", "ValidPass123")
	fresh := registerActive(t, svc, users, "fresh@example.com", "ValidPass123")
	mailer.waitForMail(t, 2)

	past := time.Now().Add(-31 * 24 * time.Hour)
	stored := users.mustGet(t, expired.ID)
	stored.DeletionRequestedAt = &past
	users.put(stored)

	recent := time.Now().Add(-24 * time.Hour)
	stored = users.mustGet(t, fresh.ID)
	stored.DeletionRequestedAt = &recent
	users.put(stored)

	createSessions(t, svc, expired.ID, 2)

	purged, err := svc.DeleteExpiredAccounts(ctx)
	if err != nil {
		t.Fatalf("DeleteExpiredAccounts: %v", err)
	}
	if purged != 1 {
		t.Fatalf("expected 1 purged account, got %d", purged)
	}

	if _, err := users.GetByID(ctx, expired.ID); !errors.Is(err, ErrUserNotFound) {
		t.Fatal("expired account must be gone")
	}
	if _, err := users.GetByID(ctx, fresh.ID); err != nil {
		t.Fatal("account inside grace period must survive")
	}

	sessions, err := svc.sessions.List(ctx, expired.ID)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(sessions) != 0 {
		t.Fatalf("purged account's sessions must be revoked, %d remain", len(sessions))
	}

	notice := mailer.waitForMail(t, 3)[2]
	if notice.Template != "account-deleted" || notice.To != "old@example.com" {
		t.Fatalf("expected final notice to the purged address, got %+v", notice)
	}

	// Re-running finds nothing.
	purged, err = svc.DeleteExpiredAccounts(ctx)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if purged != 0 {
		t.Fatalf("second run must purge nothing, got %d", purged)
	}
}
