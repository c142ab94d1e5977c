package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"fincontrol/internal/log"
	"fincontrol/internal/store"
)

const minPasswordLength = 8

var (
	ErrInvalidEmail    = errors.New("invalid email address")
	ErrPasswordTooWeak = fmt.Errorf("password must be at least %d characters", minPasswordLength)
)

// Service signs users up and in against a UserStore.
type Service struct {
	users  store.UserStore
	tokens *TokenManager
	logger *log.Logger
}

func NewService(users store.UserStore, tokens *TokenManager, logger *log.Logger) *Service {
	return &Service{
		users:  users,
		tokens: tokens,
		logger: logger.WithComponent(log.ComponentAuth),
	}
}

// SignUp registers a new account and returns a fresh token for it.
func (s *Service) SignUp(ctx context.Context, email, password string) (store.User, string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return store.User{}, "", ErrInvalidEmail
	}
	if len(password) < minPasswordLength {
		return store.User{}, "", ErrPasswordTooWeak
	}

	hash, err := HashPassword(password)
	if err != nil {
		return store.User{}, "", err
	}
	user := store.User{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: hash,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		return store.User{}, "", err
	}

	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return store.User{}, "", err
	}
	s.logger.InfoContext(ctx, "user signed up",
		log.FieldOperation, log.OpSignUp, log.FieldOwner, user.ID)
	return user, token, nil
}

// SignIn checks credentials and returns a fresh token. The same error is
// returned for unknown email and wrong password.
func (s *Service) SignIn(ctx context.Context, email, password string) (store.User, string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	user, err := s.users.UserByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return store.User{}, "", ErrInvalidCredentials
	}
	if err != nil {
		return store.User{}, "", err
	}
	if !CheckPassword(user.PasswordHash, password) {
		return store.User{}, "", ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return store.User{}, "", err
	}
	s.logger.InfoContext(ctx, "user signed in",
		log.FieldOperation, log.OpSignIn, log.FieldOwner, user.ID)
	return user, token, nil
}
