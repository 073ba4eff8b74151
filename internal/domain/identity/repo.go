package identity

import (
	"context"

	"github.com/google/uuid"
)

type UserRepository interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	// AssignRole links the user to a role by name.
	AssignRole(ctx context.Context, userID uuid.UUID, role string) error
	RolesOf(ctx context.Context, userID uuid.UUID) ([]string, error)
}
