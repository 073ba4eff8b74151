package identity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/carebook/carebook/internal/platform/auth"
)

type mockUserRepo struct {
	byID       map[uuid.UUID]*User
	byUsername map[string]*User
	roles      map[uuid.UUID][]string
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{
		byID:       make(map[uuid.UUID]*User),
		byUsername: make(map[string]*User),
		roles:      make(map[uuid.UUID][]string),
	}
}

func (m *mockUserRepo) Create(_ context.Context, u *User) error {
	if _, ok := m.byUsername[u.Username]; ok {
		return ErrUsernameTaken
	}
	cp := *u
	m.byID[u.ID] = &cp
	m.byUsername[u.Username] = &cp
	return nil
}

func (m *mockUserRepo) GetByID(_ context.Context, id uuid.UUID) (*User, error) {
	u, ok := m.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	cp.Roles = m.roles[id]
	return &cp, nil
}

func (m *mockUserRepo) GetByUsername(_ context.Context, username string) (*User, error) {
	u, ok := m.byUsername[username]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	cp.Roles = m.roles[u.ID]
	return &cp, nil
}

func (m *mockUserRepo) AssignRole(_ context.Context, userID uuid.UUID, role string) error {
	m.roles[userID] = append(m.roles[userID], role)
	return nil
}

func (m *mockUserRepo) RolesOf(_ context.Context, userID uuid.UUID) ([]string, error) {
	return m.roles[userID], nil
}

func passthroughTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func newTestService() (*Service, *mockUserRepo) {
	repo := newMockUserRepo()
	tokens := auth.NewTokenIssuer("carebook", []byte("test-key"), time.Hour)
	return NewService(repo, tokens, passthroughTx), repo
}

func TestRegister(t *testing.T) {
	svc, repo := newTestService()

	u, err := svc.Register(context.Background(), RegisterRequest{
		Username:  "jane",
		Password:  "s3cret",
		FirstName: "Jane",
		LastName:  "Doe",
		Email:     "jane@example.com",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if u.PasswordHash == "s3cret" || u.PasswordHash == "" {
		t.Error("password must be stored hashed")
	}
	roles := repo.roles[u.ID]
	if len(roles) != 1 || roles[0] != RoleUser {
		t.Errorf("expected default user role, got %v", roles)
	}
}

func TestRegister_UsernameTaken(t *testing.T) {
	svc, _ := newTestService()
	req := RegisterRequest{Username: "jane", Password: "x"}

	if _, err := svc.Register(context.Background(), req); err != nil {
		t.Fatalf("first register: %v", err)
	}
	_, err := svc.Register(context.Background(), req)
	if !errors.Is(err, ErrUsernameTaken) {
		t.Errorf("expected ErrUsernameTaken, got %v", err)
	}
}

func TestRegister_MissingFields(t *testing.T) {
	svc, _ := newTestService()
	if _, err := svc.Register(context.Background(), RegisterRequest{Username: "jane"}); err == nil {
		t.Error("expected error for missing password")
	}
	if _, err := svc.Register(context.Background(), RegisterRequest{Password: "x"}); err == nil {
		t.Error("expected error for missing username")
	}
}

func TestLogin(t *testing.T) {
	svc, _ := newTestService()
	if _, err := svc.Register(context.Background(), RegisterRequest{Username: "jane", Password: "s3cret"}); err != nil {
		t.Fatalf("register: %v", err)
	}

	token, u, err := svc.Login(context.Background(), "jane", "s3cret", "clinic_a")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if token == "" {
		t.Fatal("expected a token")
	}
	if u.Username != "jane" {
		t.Errorf("unexpected user: %q", u.Username)
	}

	issuer := auth.NewTokenIssuer("carebook", []byte("test-key"), time.Hour)
	claims, err := issuer.Parse(token)
	if err != nil {
		t.Fatalf("parsing issued token: %v", err)
	}
	if claims.Subject != u.ID.String() {
		t.Errorf("token subject %q, want %q", claims.Subject, u.ID)
	}
	if claims.TenantID != "clinic_a" {
		t.Errorf("token tenant %q, want clinic_a", claims.TenantID)
	}
	if len(claims.Roles) != 1 || claims.Roles[0] != RoleUser {
		t.Errorf("token roles %v, want [user]", claims.Roles)
	}
}

func TestLogin_InvalidCredentials(t *testing.T) {
	svc, _ := newTestService()
	if _, err := svc.Register(context.Background(), RegisterRequest{Username: "jane", Password: "s3cret"}); err != nil {
		t.Fatalf("register: %v", err)
	}

	if _, _, err := svc.Login(context.Background(), "jane", "wrong", ""); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("expected ErrInvalidCredentials for wrong password, got %v", err)
	}
	if _, _, err := svc.Login(context.Background(), "nobody", "s3cret", ""); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("expected ErrInvalidCredentials for unknown user, got %v", err)
	}
}

func TestUser_DisplayName(t *testing.T) {
	tests := []struct {
		user User
		want string
	}{
		{User{FirstName: "Jane", LastName: "Doe", Username: "jd"}, "Jane Doe"},
		{User{FirstName: "Jane", Username: "jd"}, "Jane"},
		{User{Username: "jd"}, "jd"},
	}
	for _, tt := range tests {
		if got := tt.user.DisplayName(); got != tt.want {
			t.Errorf("DisplayName() = %q, want %q", got, tt.want)
		}
	}
}
