package authcore

import "errors"

var (
	// ErrInvalidCredentials is the generic login failure. It covers both
	// unknown email and wrong password so callers cannot probe which
	// addresses have accounts.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrAccountLocked means the failed-attempt counter crossed the
	// lockout threshold inside the current window.
	ErrAccountLocked = errors.New("account locked due to too many failed login attempts")
	// ErrAccountSuspended rejects logins for suspended accounts.
	ErrAccountSuspended = errors.New("account suspended")
	// ErrAccountDeleted rejects logins for deleted accounts, including
	// accounts whose deletion grace period has already elapsed.
	ErrAccountDeleted = errors.New("account deleted")
	// ErrAccountPending rejects logins for accounts that have not
	// verified their email address yet.
	ErrAccountPending = errors.New("please verify your email address")
	// ErrEmailTaken reports a registration or email-change conflict with
	// an existing account's address.
	ErrEmailTaken = errors.New("email address already in use")
	// ErrUserNotFound reports a lookup miss on the user store.
	ErrUserNotFound = errors.New("user not found")
	// ErrAlreadyVerified rejects resend-verification for accounts whose
	// email is already verified. Unknown addresses, by contrast, succeed
	// silently.
	ErrAlreadyVerified = errors.New("email address already verified")
	// ErrTokenInvalid reports an unknown, expired, or already-consumed
	// one-time token.
	ErrTokenInvalid = errors.New("invalid or expired token")
	// ErrNoPendingEmail rejects email-change confirmation when no change
	// was requested.
	ErrNoPendingEmail = errors.New("no pending email change")
	// ErrNoDeletionRequest rejects cancellation when no deletion was
	// requested or the grace period already elapsed.
	ErrNoDeletionRequest = errors.New("no pending deletion request")

	// ErrDuplicateEmail is the sentinel a UserStore implementation must
	// return when Create or Update would violate email uniqueness.
	ErrDuplicateEmail = errors.New("duplicate email")
	// ErrStoreUnavailable indicates a backing store could not be reached.
	// It must never be collapsed into a credential or not-found error.
	ErrStoreUnavailable = errors.New("store unavailable")
)
