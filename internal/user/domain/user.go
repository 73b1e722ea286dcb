package domain

import (
	"strings"
	"time"
)

type ID string

// User is an account record. PasswordHash is never serialized to clients.
type User struct {
	ID                ID
	Email             string
	PasswordHash      string
	FirstName         string
	LastName          string
	PhoneNo           string
	IsActive          bool
	IsStaff           bool
	IsSuperuser       bool
	DateJoined        time.Time
	LastLogin         *time.Time
	PasswordChangedAt *time.Time
}

// Profile is the client-visible view of a user.
type Profile struct {
	Email     string `json:"email"`
	PhoneNo   string `json:"phone_no"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

func (u User) Profile() Profile {
	return Profile{
		Email:     u.Email,
		PhoneNo:   u.PhoneNo,
		FirstName: u.FirstName,
		LastName:  u.LastName,
	}
}

// ProfileChanges lists the mutable profile fields; nil means unchanged.
type ProfileChanges struct {
	Email     *string
	FirstName *string
	LastName  *string
	PhoneNo   *string
}

func (c ProfileChanges) Empty() bool {
	return c.Email == nil && c.FirstName == nil && c.LastName == nil && c.PhoneNo == nil
}

// Apply returns a copy of u with the changes applied. Email is normalized.
func (c ProfileChanges) Apply(u User) User {
	if c.Email != nil {
		u.Email = NormalizeEmail(*c.Email)
	}
	if c.FirstName != nil {
		u.FirstName = strings.TrimSpace(*c.FirstName)
	}
	if c.LastName != nil {
		u.LastName = strings.TrimSpace(*c.LastName)
	}
	if c.PhoneNo != nil {
		u.PhoneNo = strings.TrimSpace(*c.PhoneNo)
	}
	return u
}

// NormalizeEmail makes addresses comparable: surrounding space is dropped and
// the whole address is lower-cased.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
