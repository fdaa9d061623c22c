package auth

import (
	"errors"
	"fmt"
	"log"

	"chatflow/pkg/types"
)

// Accounts is the slice of the state manager the auth service depends on.
type Accounts interface {
	RegisterUser(username, passwordHash, avatar string) (*types.User, error)
	GetUser(username string) (*types.User, error)
	Heartbeat(username string) error
}

// Service handles registration and login. It owns all password hashing
// and token issuance; the state manager only ever stores opaque hashes
// and receives verified usernames.
type Service struct {
	accounts Accounts
	hasher   *PasswordHasher
	tokens   *TokenManager
}

// NewService creates the auth service.
func NewService(accounts Accounts, tokens *TokenManager) *Service {
	return &Service{
		accounts: accounts,
		hasher:   NewPasswordHasher(),
		tokens:   tokens,
	}
}

// Register creates an account and returns a signed token for it.
func (s *Service) Register(username, password, avatar string) (string, *types.User, error) {
	if password == "" {
		return "", nil, fmt.Errorf("%w: %s", types.ErrInvalidInput, ErrMissingPassword)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return "", nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user, err := s.accounts.RegisterUser(username, hash, avatar)
	if err != nil {
		return "", nil, err
	}

	token, err := s.tokens.Issue(username)
	if err != nil {
		return "", nil, fmt.Errorf("failed to issue token: %w", err)
	}
	return token, user, nil
}

// Login verifies credentials and returns a signed token. A missing user
// and a wrong password are indistinguishable to the caller.
func (s *Service) Login(username, password string) (string, *types.User, error) {
	user, err := s.accounts.GetUser(username)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			return "", nil, fmt.Errorf("%w: %s", types.ErrForbidden, ErrInvalidCredentials)
		}
		return "", nil, err
	}

	if !s.hasher.Verify(user.PasswordHash, password) {
		return "", nil, fmt.Errorf("%w: %s", types.ErrForbidden, ErrInvalidCredentials)
	}

	if err := s.accounts.Heartbeat(username); err != nil {
		log.Printf("Login heartbeat failed: user=%s err=%v", username, err)
	}

	token, err := s.tokens.Issue(username)
	if err != nil {
		return "", nil, fmt.Errorf("failed to issue token: %w", err)
	}
	return token, user, nil
}

// HashRoomPassword hashes a room password for storage. Empty passwords
// stay empty: an empty hash marks an open room.
func (s *Service) HashRoomPassword(password string) (string, error) {
	if password == "" {
		return "", nil
	}
	return s.hasher.Hash(password)
}

// VerifyHash exposes hash comparison for injection into the state manager
// as its PasswordVerifier.
func (s *Service) VerifyHash(hash, password string) bool {
	return s.hasher.Verify(hash, password)
}

// VerifyToken resolves a bearer token to a username.
func (s *Service) VerifyToken(token string) (string, error) {
	return s.tokens.Verify(token)
}
