package password

import (
	"errors"
	"unicode"
)

// Policy is the account password strength policy. The zero value is not
// usable; construct via DefaultPolicy.
type Policy struct {
	MinLength        int
	RequireUppercase bool
	RequireDigit     bool
}

// DefaultPolicy returns the platform password policy: minimum eight
// characters, at least one uppercase letter and one digit.
func DefaultPolicy() Policy {
	return Policy{
		MinLength:        8,
		RequireUppercase: true,
		RequireDigit:     true,
	}
}

var (
	// ErrTooShort is returned when the password is below the minimum length.
	ErrTooShort = errors.New("password must be at least 8 characters")
	// ErrNoUppercase is returned when the password lacks an uppercase letter.
	ErrNoUppercase = errors.New("password must contain at least one uppercase letter")
	// ErrNoDigit is returned when the password lacks a digit.
	ErrNoDigit = errors.New("password must contain at least one digit")
)

// Validate checks pw against the policy and returns the first violated
// rule, length before character classes.
func (p Policy) Validate(pw string) error {
	if len(pw) < p.MinLength {
		return ErrTooShort
	}

	var hasUpper, hasDigit bool
	for _, r := range pw {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}

	if p.RequireUppercase && !hasUpper {
		return ErrNoUppercase
	}
	if p.RequireDigit && !hasDigit {
		return ErrNoDigit
	}
	return nil
}
