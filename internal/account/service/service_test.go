package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ysamarin/postline/backend/internal/common/clock"
	commonerrors "github.com/ysamarin/postline/backend/internal/common/errors"
	userdomain "github.com/ysamarin/postline/backend/internal/user/domain"
)

func setupAccountService(t *testing.T) (*AccountService, *mockUserRepo) {
	t.Helper()

	users := &mockUserRepo{}
	validator := NewRegisterValidator(users, 8)
	clk := clock.NewMockClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))

	svc := NewAccountService(
		users,
		validator,
		&mockHasher{},
		&mockIDGenerator{id: "user-123"},
		clk,
		testLogger(t),
	)
	return svc, users
}

func TestAccountService_Register_Success(t *testing.T) {
	svc, users := setupAccountService(t)

	var created userdomain.User
	users.createFunc = func(ctx context.Context, user userdomain.User) error {
		created = user
		return nil
	}

	profile, err := svc.Register(context.Background(), validInput())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if created.PasswordHash != "hashed_horse-staple-battery" {
		t.Errorf("expected hashed password to be stored, got %q", created.PasswordHash)
	}
	if created.ID != "user-123" {
		t.Errorf("expected generated id, got %q", created.ID)
	}
	if profile.ID != "user-123" || profile.Username != "newuser" || profile.Email != "new@example.com" {
		t.Errorf("unexpected profile: %+v", profile)
	}
	if profile.FirstName != "Ada" || profile.LastName != "Lovelace" {
		t.Errorf("unexpected names: %+v", profile)
	}
}

func TestAccountService_Register_ValidationFailure(t *testing.T) {
	svc, users := setupAccountService(t)

	users.createFunc = func(ctx context.Context, user userdomain.User) error {
		t.Error("create must not be called when validation fails")
		return nil
	}

	in := validInput()
	in.Password2 = "something-else"

	_, err := svc.Register(context.Background(), in)
	vErr, ok := AsValidationError(err)
	if !ok {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if got := vErr.Fields["password"]; len(got) != 1 || got[0] != msgPasswordMismatch {
		t.Errorf("expected mismatch field error, got %v", vErr.Fields)
	}
}

func TestAccountService_Register_UniquenessRace(t *testing.T) {
	svc, users := setupAccountService(t)

	users.createFunc = func(ctx context.Context, user userdomain.User) error {
		return commonerrors.ErrEmailAlreadyExists
	}

	_, err := svc.Register(context.Background(), validInput())
	vErr, ok := AsValidationError(err)
	if !ok {
		t.Fatalf("expected ValidationError from insert race, got %v", err)
	}
	if got := vErr.Fields["email"]; len(got) != 1 || got[0] != msgNotUnique {
		t.Errorf("expected email uniqueness error, got %v", vErr.Fields)
	}
}

func TestAccountService_Profile(t *testing.T) {
	svc, users := setupAccountService(t)

	users.findByIDFunc = func(ctx context.Context, id userdomain.ID) (userdomain.User, error) {
		if id != "user-123" {
			t.Errorf("expected lookup of user-123, got %s", id)
		}
		return userdomain.User{
			ID:        "user-123",
			Username:  "newuser",
			Email:     "new@example.com",
			FirstName: "Ada",
			LastName:  "Lovelace",
		}, nil
	}

	profile, err := svc.Profile(context.Background(), "user-123")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if profile.Username != "newuser" {
		t.Errorf("unexpected profile: %+v", profile)
	}
}

func TestAccountService_Profile_NotFound(t *testing.T) {
	svc, _ := setupAccountService(t)

	_, err := svc.Profile(context.Background(), "ghost")
	if !errors.Is(err, commonerrors.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}
