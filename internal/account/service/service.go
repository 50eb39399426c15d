package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/ysamarin/postline/backend/internal/common/clock"
	"github.com/ysamarin/postline/backend/internal/common/crypto"
	commonerrors "github.com/ysamarin/postline/backend/internal/common/errors"
	"github.com/ysamarin/postline/backend/internal/common/logger"
	"github.com/ysamarin/postline/backend/internal/observability/metrics"
	"github.com/ysamarin/postline/backend/internal/user/domain"
	userrepo "github.com/ysamarin/postline/backend/internal/user/repository"
)

// RegisterInput carries the registration request body. Pointer-free on
// purpose: absence and emptiness are equivalent for every field here.
type RegisterInput struct {
	Username  string `json:"username" validate:"required"`
	Email     string `json:"email" validate:"required"`
	Password  string `json:"password" validate:"required"`
	Password2 string `json:"password2" validate:"required"`
	FirstName string `json:"first_name" validate:"required"`
	LastName  string `json:"last_name" validate:"required"`
}

// Profile is the authenticated-user representation returned by the
// profile endpoint.
type Profile struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

type AccountService struct {
	users     userrepo.Repository
	validator *RegisterValidator
	hasher    crypto.PasswordHasher
	ids       crypto.IDGenerator
	clock     clock.Clock
	log       *logger.Logger
}

func NewAccountService(
	users userrepo.Repository,
	validator *RegisterValidator,
	hasher crypto.PasswordHasher,
	ids crypto.IDGenerator,
	clk clock.Clock,
	log *logger.Logger,
) *AccountService {
	return &AccountService{
		users:     users,
		validator: validator,
		hasher:    hasher,
		ids:       ids,
		clock:     clk,
		log:       log,
	}
}

// Register validates the input, persists the user and returns the stored
// profile. Validation failures come back as *ValidationError with every
// violated field reported.
func (s *AccountService) Register(ctx context.Context, in RegisterInput) (Profile, error) {
	fieldErrors, err := s.validator.Validate(ctx, in)
	if err != nil {
		return Profile{}, fmt.Errorf("validate registration: %w", err)
	}
	if fieldErrors != nil {
		metrics.RegistrationRejected.Inc()
		s.log.WithFields(ctx, logger.Fields{
			"action":   "register",
			"username": in.Username,
		}).Warnf("registration rejected: %d invalid fields", len(fieldErrors))
		return Profile{}, &ValidationError{Fields: fieldErrors}
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return Profile{}, fmt.Errorf("hash password: %w", err)
	}

	id, err := s.ids.NewID()
	if err != nil {
		return Profile{}, fmt.Errorf("generate user id: %w", err)
	}

	user := domain.User{
		ID:           domain.ID(id),
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: hash,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		CreatedAt:    s.clock.Now().UTC(),
	}

	if err := s.users.Create(ctx, user); err != nil {
		// A concurrent registration can win the uniqueness race between
		// the validation pass and the insert. Report it the same way the
		// validator would have.
		if raced, field := uniquenessRace(err); raced {
			metrics.RegistrationRejected.Inc()
			fe := FieldErrors{}
			fe.add(field, msgNotUnique)
			return Profile{}, &ValidationError{Fields: fe}
		}
		return Profile{}, fmt.Errorf("create user: %w", err)
	}

	metrics.UsersRegistered.Inc()
	s.log.WithFields(ctx, logger.Fields{
		"action":   "register",
		"user_id":  id,
		"username": in.Username,
	}).Info("user registered")

	return profileFromUser(user), nil
}

// Profile returns the profile for the authenticated user id.
func (s *AccountService) Profile(ctx context.Context, userID string) (Profile, error) {
	user, err := s.users.FindByID(ctx, domain.ID(userID))
	if err != nil {
		if errors.Is(err, userrepo.ErrUserNotFound) {
			return Profile{}, commonerrors.ErrUserNotFound.WithCause(err)
		}
		return Profile{}, fmt.Errorf("find user: %w", err)
	}
	return profileFromUser(user), nil
}

func profileFromUser(user domain.User) Profile {
	return Profile{
		ID:        string(user.ID),
		Username:  user.Username,
		Email:     user.Email,
		FirstName: user.FirstName,
		LastName:  user.LastName,
	}
}

func uniquenessRace(err error) (bool, string) {
	switch {
	case errors.Is(err, commonerrors.ErrUsernameAlreadyExists):
		return true, "username"
	case errors.Is(err, commonerrors.ErrEmailAlreadyExists):
		return true, "email"
	}
	return false, ""
}
