package identity

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/carebook/carebook/internal/platform/auth"
)

type Service struct {
	users  UserRepository
	tokens *auth.TokenIssuer
	inTx   TxRunner
}

// TxRunner executes fn inside a single transaction scope.
type TxRunner func(ctx context.Context, fn func(ctx context.Context) error) error

func NewService(users UserRepository, tokens *auth.TokenIssuer, inTx TxRunner) *Service {
	return &Service{users: users, tokens: tokens, inTx: inTx}
}

// RegisterRequest is the input to Register.
type RegisterRequest struct {
	Username  string `json:"username"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
}

// Register creates a user with the default role. The user row and the role
// assignment commit together.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*User, error) {
	if req.Username == "" || req.Password == "" {
		return nil, fmt.Errorf("username and password are required")
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	u := &User{
		ID:           uuid.New(),
		Username:     req.Username,
		PasswordHash: hash,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Email:        req.Email,
		Roles:        []string{RoleUser},
	}

	err = s.inTx(ctx, func(ctx context.Context) error {
		if err := s.users.Create(ctx, u); err != nil {
			return err
		}
		return s.users.AssignRole(ctx, u.ID, RoleUser)
	})
	if err != nil {
		return nil, err
	}
	return u, nil
}

// Login verifies credentials and issues a signed access token carrying the
// user's id and roles.
func (s *Service) Login(ctx context.Context, username, password, tenantID string) (string, *User, error) {
	u, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		// Same failure for unknown user and wrong password.
		return "", nil, ErrInvalidCredentials
	}
	if !auth.CheckPassword(password, u.PasswordHash) {
		return "", nil, ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(u.ID.String(), tenantID, u.Roles)
	if err != nil {
		return "", nil, fmt.Errorf("issuing token: %w", err)
	}
	return token, u, nil
}

func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return s.users.GetByID(ctx, id)
}
