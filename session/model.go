package session

import "time"

// Device is the parsed user-agent descriptor stored with a session, for
// display in the account's device list.
type Device struct {
	Class   string `json:"class"` // desktop, mobile, tablet, bot, unknown
	OS      string `json:"os"`
	Browser string `json:"browser"`
}

// Session is one bookkeeping row per outstanding refresh token.
// Fingerprint is the one-way hash of the refresh token's jti; the raw
// jti is never persisted.
type Session struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	Fingerprint  string    `json:"fingerprint"`
	Device       Device    `json:"device"`
	IP           string    `json:"ip"`
	CreatedAt    time.Time `json:"created_at"`
	LastActiveAt time.Time `json:"last_active_at"`
	ExpiresAt    time.Time `json:"expires_at"`
	IsCurrent    bool      `json:"is_current"`
}

// Expired reports whether the session's expiry has passed.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.After(now)
}
