package usecase

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"menu-planner/internal/auth"
	"menu-planner/internal/domain"
	"menu-planner/internal/repository"
)

type UserStore interface {
	CreateUser(ctx context.Context, user domain.User) error
	FindUser(ctx context.Context, username string) (domain.User, error)
}

type HouseholdCreator interface {
	CreateHouseholdIfNotExists(ctx context.Context, name, householdKey string) error
}

type TokenIssuer interface {
	Issue(ctx context.Context, id domain.Identity) (string, error)
}

type AccountService struct {
	users      UserStore
	households HouseholdCreator
	tokens     TokenIssuer
}

type RegisterInput struct {
	Username     string
	Email        string
	Password     string
	Household    string
	HouseholdKey string
}

func NewAccountService(u UserStore, h HouseholdCreator, t TokenIssuer) (*AccountService, error) {
	if u == nil {
		return nil, errors.New("usecase: user store must not be nil")
	}
	if h == nil {
		return nil, errors.New("usecase: household store must not be nil")
	}
	if t == nil {
		return nil, errors.New("usecase: token issuer must not be nil")
	}
	return &AccountService{users: u, households: h, tokens: t}, nil
}

// Register creates an account. Without a household key a new household is
// created; with one the user joins that household.
func (s *AccountService) Register(ctx context.Context, in RegisterInput) (domain.Identity, error) {
	username := strings.TrimSpace(in.Username)
	email := strings.TrimSpace(in.Email)
	household := strings.TrimSpace(in.Household)
	householdKey := strings.TrimSpace(in.HouseholdKey)

	if username == "" || email == "" || in.Password == "" {
		return domain.Identity{}, newError(ErrorInvalidInput, "missing_fields", nil)
	}
	if household == "" && householdKey == "" {
		return domain.Identity{}, newError(ErrorInvalidInput, "missing_household", nil)
	}
	if len(in.Password) < auth.MinPasswordLength {
		return domain.Identity{}, newError(ErrorInvalidInput, "password_too_short", nil)
	}

	_, err := s.users.FindUser(ctx, username)
	switch {
	case err == nil:
		return domain.Identity{}, newError(ErrorConflict, "username_taken", nil)
	case !errors.Is(err, repository.ErrNotFound):
		return domain.Identity{}, newError(ErrorInternal, "dynamodb_read_error", err)
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return domain.Identity{}, newError(ErrorInvalidInput, "password_rejected", err)
	}
	if householdKey == "" {
		householdKey = newUUID()
	}

	if err := s.households.CreateHouseholdIfNotExists(ctx, household, householdKey); err != nil {
		return domain.Identity{}, newError(ErrorInternal, "dynamodb_write_error", err)
	}
	user := domain.User{
		Username:     username,
		Email:        email,
		Household:    household,
		HouseholdKey: householdKey,
		PasswordHash: hash,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return domain.Identity{}, newError(ErrorConflict, "username_taken", err)
		}
		return domain.Identity{}, newError(ErrorInternal, "dynamodb_write_error", err)
	}
	return user.Identity(), nil
}

// Login verifies credentials and returns a bearer token.
func (s *AccountService) Login(ctx context.Context, username, password string) (string, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return "", newError(ErrorInvalidInput, "missing_credentials", nil)
	}

	user, err := s.users.FindUser(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", newError(ErrorUnauthorized, "invalid_credentials", nil)
		}
		return "", newError(ErrorInternal, "dynamodb_read_error", err)
	}
	if !auth.VerifyPassword(user.PasswordHash, password) {
		return "", newError(ErrorUnauthorized, "invalid_credentials", nil)
	}

	token, err := s.tokens.Issue(ctx, user.Identity())
	if err != nil {
		return "", newError(ErrorInternal, "token_issue_error", err)
	}
	return token, nil
}

// Profile returns the stored account behind an authenticated identity.
func (s *AccountService) Profile(ctx context.Context, id domain.Identity) (domain.Identity, error) {
	if id.Username == "" {
		return domain.Identity{}, newError(ErrorUnauthorized, "missing_identity", nil)
	}
	user, err := s.users.FindUser(ctx, id.Username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Identity{}, newError(ErrorNotFound, "user_not_found", err)
		}
		return domain.Identity{}, newError(ErrorInternal, "dynamodb_read_error", err)
	}
	return user.Identity(), nil
}

var newUUID = func() string {
	return uuid.NewString()
}
