package user

import (
	"errors"
	"time"
)

type User struct {
	ID           string     `json:"id"`
	Email        string     `json:"email"`
	FirstName    string     `json:"firstName,omitempty"`
	LastName     string     `json:"lastName,omitempty"`
	PasswordHash string     `json:"-"` // never expose hash in JSON
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    *time.Time `json:"updatedAt,omitempty"` // nil until the first update
}

// Changes is a partial update. A nil field is left untouched by the store.
type Changes struct {
	FirstName    *string
	LastName     *string
	PasswordHash *string
}

// Apply merges the non-nil fields into u and stamps UpdatedAt.
// Stores without server-side merge (memory, redis) use it to keep one set of merge rules.
func (c Changes) Apply(u User, now time.Time) User {
	if c.FirstName != nil {
		u.FirstName = *c.FirstName
	}
	if c.LastName != nil {
		u.LastName = *c.LastName
	}
	if c.PasswordHash != nil {
		u.PasswordHash = *c.PasswordHash
	}
	u.UpdatedAt = &now

	return u
}

var ErrNotFound = errors.New("user not found")

// returned by a store when its own uniqueness constraint on email rejects a write.
var ErrDuplicateEmail = errors.New("email already registered")
