package domain

import (
	"strings"
	"time"
)

// User models the authenticated account owning a set of invoices.
type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Initials     string    `json:"avatar"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Session is an issued sign-in. Token is what the client presents back.
type Session struct {
	ID        string
	Token     string
	User      *User
	ExpiresAt time.Time
}

// Initials returns the first two characters of name, upper-cased.
func Initials(name string) string {
	r := []rune(strings.TrimSpace(name))
	if len(r) > 2 {
		r = r[:2]
	}
	return strings.ToUpper(string(r))
}
