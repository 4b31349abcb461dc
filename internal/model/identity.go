package model

import "strings"

// Identity is a signed-in user as seen by the workflow: a stable id plus
// the email address used for invitations and outbound mail.
type Identity struct {
	ID    string `json:"id" mapstructure:"id" yaml:"id"`
	Email string `json:"email" mapstructure:"email" yaml:"email"`
}

// IsZero reports whether neither id nor email is set.
func (i Identity) IsZero() bool {
	return i.ID == "" && i.Email == ""
}

// NormalizeEmail lowercases and trims an email address so comparisons
// between invite targets and responders are case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// SameEmail reports whether a and b name the same mailbox.
func SameEmail(a, b string) bool {
	return NormalizeEmail(a) == NormalizeEmail(b)
}
