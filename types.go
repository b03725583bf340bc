package authcore

import (
	"context"
	"time"
)

// Role is the platform role carried in access tokens and checked by the
// authorization gates.
type Role string

const (
	// RoleCommunity is the default member role.
	RoleCommunity Role = "community"
	// RoleModerator can moderate community content.
	RoleModerator Role = "moderator"
	// RoleAdmin can manage any account and resource.
	RoleAdmin Role = "admin"
	// RoleSuperAdmin can additionally manage admins.
	RoleSuperAdmin Role = "super_admin"
)

// IsAdmin reports whether the role bypasses ownership checks.
func (r Role) IsAdmin() bool {
	return r == RoleAdmin || r == RoleSuperAdmin
}

// AccountStatus is the account lifecycle state.
type AccountStatus string

const (
	// StatusPending means registered but email not yet verified.
	StatusPending AccountStatus = "pending"
	// StatusActive means the account may log in.
	StatusActive AccountStatus = "active"
	// StatusSuspended means the account is administratively blocked.
	StatusSuspended AccountStatus = "suspended"
	// StatusDeleted means the account is gone or past its deletion
	// grace period.
	StatusDeleted AccountStatus = "deleted"
)

// User is the account record as seen by this package. The backing store
// owns persistence; the fields here are the full set the auth flows read
// and write.
type User struct {
	ID            string
	Email         string
	PasswordHash  string
	PendingEmail  string
	Role          Role
	Status        AccountStatus
	EmailVerified bool

	DeletionRequestedAt *time.Time
	LastLoginAt         *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// UserStore is the persistence boundary for account records. Emails are
// stored and compared lower-cased; GetByEmail callers pass the already
// normalized form. Implementations return ErrUserNotFound for misses and
// ErrDuplicateEmail for uniqueness violations.
type UserStore interface {
	GetByID(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	Create(ctx context.Context, u *User) error
	Update(ctx context.Context, u *User) error

	// ListDeletionRequestedBefore returns users whose deletion request
	// predates cutoff, for the purge job.
	ListDeletionRequestedBefore(ctx context.Context, cutoff time.Time) ([]*User, error)
	// DeleteWhereDeletionRequestedBefore removes those users in bulk and
	// returns the count. Must be idempotent.
	DeleteWhereDeletionRequestedBefore(ctx context.Context, cutoff time.Time) (int, error)
}

// Mail is one outbound message. Rendering happens upstream; the auth
// flows only fill in the template name and its data.
type Mail struct {
	To       string
	Template string
	Data     map[string]string
}

// Mailer delivers one message. Implementations may block; the service
// always calls Mailer through the outbox, never inline.
type Mailer interface {
	Send(ctx context.Context, m Mail) error
}

// RegisterInput carries the fields needed to create an account.
type RegisterInput struct {
	Email    string
	Password string
	Role     Role // defaults to RoleCommunity when empty
}

// LoginResult is a successful authentication. Refresh-token issuance and
// session creation happen in the caller, which also needs the token's
// jti for the session row.
type LoginResult struct {
	User        *User
	AccessToken string

	// DeletionPending is set when the account is inside its deletion
	// grace period; callers should surface a warning with the deadline.
	DeletionPending bool
	GraceExpiresAt  time.Time
}
