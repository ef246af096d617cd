package service

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/quotaguard/gateway/internal/models"
)

type fakeUserStore struct {
	users map[string]*models.User // keyed by email
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{users: make(map[string]*models.User)}
}

func (f *fakeUserStore) Create(_ context.Context, user *models.User) error {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	f.users[user.Email] = user
	return nil
}

func (f *fakeUserStore) FindByEmail(_ context.Context, email string) (*models.User, error) {
	return f.users[email], nil
}

func (f *fakeUserStore) FindByID(_ context.Context, id string) (*models.User, error) {
	for _, user := range f.users {
		if user.ID.String() == id {
			return user, nil
		}
	}
	return nil, nil
}

func TestAuthService_RegisterAndLogin(t *testing.T) {
	store := newFakeUserStore()
	svc := NewAuthService(store, "test-secret", 1)
	ctx := context.Background()

	if err := svc.Register(ctx, "a@example.com", "password123", "A"); err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if err := svc.Register(ctx, "a@example.com", "password123", "A"); err == nil {
		t.Fatalf("duplicate email must be rejected")
	}

	token, err := svc.Login(ctx, "a@example.com", "password123")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}

	claims, err := svc.ValidateToken(token)
	if err != nil {
		t.Fatalf("issued token should validate: %v", err)
	}
	if claims["email"] != "a@example.com" {
		t.Fatalf("claims email = %v, want a@example.com", claims["email"])
	}

	if _, err := svc.Login(ctx, "a@example.com", "wrong-password"); err == nil {
		t.Fatalf("wrong password must be rejected")
	}
	if _, err := svc.Login(ctx, "nobody@example.com", "password123"); err == nil {
		t.Fatalf("unknown email must be rejected")
	}
}

func TestAuthService_UserByID(t *testing.T) {
	store := newFakeUserStore()
	svc := NewAuthService(store, "test-secret", 1)
	ctx := context.Background()

	if err := svc.Register(ctx, "a@example.com", "password123", "A"); err != nil {
		t.Fatalf("register failed: %v", err)
	}
	created := store.users["a@example.com"]

	user, err := svc.UserByID(ctx, created.ID.String())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user == nil || user.Email != "a@example.com" {
		t.Fatalf("UserByID returned %+v, want the registered account", user)
	}

	missing, err := svc.UserByID(ctx, uuid.NewString())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if missing != nil {
		t.Fatalf("unknown id should yield no user, got %+v", missing)
	}
}
