package service

import (
	"context"
	"errors"
	"testing"

	"github.com/ysamarin/postline/backend/internal/common/logger"
	userdomain "github.com/ysamarin/postline/backend/internal/user/domain"
	userrepo "github.com/ysamarin/postline/backend/internal/user/repository"
)

type mockUserRepo struct {
	createFunc           func(ctx context.Context, user userdomain.User) error
	findByIDFunc         func(ctx context.Context, id userdomain.ID) (userdomain.User, error)
	findByUsernameFunc   func(ctx context.Context, username string) (userdomain.User, error)
	existsByUsernameFunc func(ctx context.Context, username string) (bool, error)
	existsByEmailFunc    func(ctx context.Context, email string) (bool, error)
}

func (m *mockUserRepo) Create(ctx context.Context, user userdomain.User) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, user)
	}
	return nil
}

func (m *mockUserRepo) FindByID(ctx context.Context, id userdomain.ID) (userdomain.User, error) {
	if m.findByIDFunc != nil {
		return m.findByIDFunc(ctx, id)
	}
	return userdomain.User{}, userrepo.ErrUserNotFound
}

func (m *mockUserRepo) FindByUsername(ctx context.Context, username string) (userdomain.User, error) {
	if m.findByUsernameFunc != nil {
		return m.findByUsernameFunc(ctx, username)
	}
	return userdomain.User{}, userrepo.ErrUserNotFound
}

func (m *mockUserRepo) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	if m.existsByUsernameFunc != nil {
		return m.existsByUsernameFunc(ctx, username)
	}
	return false, nil
}

func (m *mockUserRepo) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	if m.existsByEmailFunc != nil {
		return m.existsByEmailFunc(ctx, email)
	}
	return false, nil
}

type mockHasher struct {
	hashFunc    func(password string) (string, error)
	compareFunc func(hash string, password string) error
}

func (m *mockHasher) Hash(password string) (string, error) {
	if m.hashFunc != nil {
		return m.hashFunc(password)
	}
	return "hashed_" + password, nil
}

func (m *mockHasher) Compare(hash string, password string) error {
	if m.compareFunc != nil {
		return m.compareFunc(hash, password)
	}
	if hash != "hashed_"+password {
		return errors.New("password mismatch")
	}
	return nil
}

type mockIDGenerator struct {
	id string
}

func (m *mockIDGenerator) NewID() (string, error) {
	if m.id != "" {
		return m.id, nil
	}
	return "generated-id", nil
}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("", "test", "CRITICAL")
	if err != nil {
		t.Fatalf("failed to build logger: %v", err)
	}
	return log
}

func validInput() RegisterInput {
	return RegisterInput{
		Username:  "newuser",
		Email:     "new@example.com",
		Password:  "horse-staple-battery",
		Password2: "horse-staple-battery",
		FirstName: "Ada",
		LastName:  "Lovelace",
	}
}
