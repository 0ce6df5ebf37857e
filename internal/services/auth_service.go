package services

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/ssu526/path-builder-backend/internal/httperror"
	"github.com/ssu526/path-builder-backend/internal/models"
	"github.com/ssu526/path-builder-backend/internal/repositories"
)

// AuthService handles business logic for signup, login and user lookup.
type AuthService struct {
	userRepo repositories.UserRepository
}

// NewAuthService creates a new AuthService.
func NewAuthService(userRepo repositories.UserRepository) *AuthService {
	return &AuthService{
		userRepo: userRepo,
	}
}

// Signup registers a new user, hashes their password, and saves them to the
// database. Username and email uniqueness are checked independently, username
// first.
func (s *AuthService) Signup(username, email, password string) (*models.User, error) {
	if _, err := s.userRepo.GetByUsername(username); err == nil {
		return nil, httperror.Conflict("User name already taken.")
	} else if !errors.Is(err, repositories.ErrNotFound) {
		return nil, err
	}

	if _, err := s.userRepo.GetByEmail(email); err == nil {
		return nil, httperror.Conflict("Email address already taken.")
	} else if !errors.Is(err, repositories.ErrNotFound) {
		return nil, err
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Username: username,
		Email:    email,
		Password: string(hashedPassword), // Store the hashed password
	}
	if err := s.userRepo.Create(user); err != nil {
		return nil, fmt.Errorf("failed to register user: %w", err)
	}
	return user, nil
}

// Login authenticates a user by username and password. An unknown username and
// a wrong password produce the same error so callers cannot tell which check
// failed.
func (s *AuthService) Login(username, password string) (*models.User, error) {
	user, err := s.userRepo.GetByUsername(username)
	if err != nil {
		return nil, httperror.Unauthorized("Invalid credentials")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, httperror.Unauthorized("Invalid credentials")
	}

	return user, nil
}

// GetUser returns the user with the given id, flow summaries included.
func (s *AuthService) GetUser(id string) (*models.User, error) {
	return s.userRepo.GetByID(id)
}
