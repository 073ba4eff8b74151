package identity

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrUsernameTaken      = errors.New("username already taken")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrNotFound           = errors.New("user not found")
)

// Built-in role names. Static reference data seeded by migration.
const (
	RoleAdmin     = "admin"
	RoleUser      = "user"
	RoleCaregiver = "caregiver"
)

// User is an account with a unique username. Identity is immutable once
// created; only role assignments change.
type User struct {
	ID           uuid.UUID `db:"id" json:"id"`
	Username     string    `db:"username" json:"username"`
	PasswordHash string    `db:"password_hash" json:"-"`
	FirstName    string    `db:"first_name" json:"first_name"`
	LastName     string    `db:"last_name" json:"last_name"`
	Email        string    `db:"email" json:"email"`
	Roles        []string  `db:"-" json:"roles"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// DisplayName is the name used in outbound notifications.
func (u *User) DisplayName() string {
	switch {
	case u.FirstName != "" && u.LastName != "":
		return u.FirstName + " " + u.LastName
	case u.FirstName != "":
		return u.FirstName
	default:
		return u.Username
	}
}
