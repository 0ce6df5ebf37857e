package repositories

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ssu526/path-builder-backend/internal/models"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// GORMUserRepository is a GORM implementation of UserRepository.
type GORMUserRepository struct {
	db *gorm.DB
}

// NewGORMUserRepository creates a new instance of GORMUserRepository.
func NewGORMUserRepository(db *gorm.DB) *GORMUserRepository {
	return &GORMUserRepository{
		db: db,
	}
}

// Create creates a new user in the database.
func (r *GORMUserRepository) Create(user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	if err := r.db.Create(user).Error; err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetByUsername retrieves a user by their username from the database.
func (r *GORMUserRepository) GetByUsername(username string) (*models.User, error) {
	var user models.User
	if err := r.db.First(&user, "username = ?", username).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("user with username %s: %w", username, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get user by username %s: %w", username, err)
	}
	return &user, nil
}

// GetByEmail retrieves a user by their email from the database.
func (r *GORMUserRepository) GetByEmail(email string) (*models.User, error) {
	var user models.User
	if err := r.db.First(&user, "email = ?", email).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("user with email %s: %w", email, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get user by email %s: %w", email, err)
	}
	return &user, nil
}

// GetByID retrieves a user by their ID, including their flow summaries.
func (r *GORMUserRepository) GetByID(id string) (*models.User, error) {
	var user models.User
	if err := r.db.Preload("Flows").First(&user, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("user with ID %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get user by ID %s: %w", id, err)
	}
	return &user, nil
}

// SetFlowName updates the name on the user's summary for the given flow and
// returns the refreshed user.
func (r *GORMUserRepository) SetFlowName(userID, flowID, name string) (*models.User, error) {
	result := r.db.Model(&models.FlowSummary{}).
		Where("user_id = ? AND flow_id = ?", userID, flowID).
		Update("name", name)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to update flow name for flow %s: %w", flowID, result.Error)
	}
	return r.GetByID(userID)
}

// SetFlowProgress updates the progress on the user's summary for the given flow
// and returns the refreshed user.
func (r *GORMUserRepository) SetFlowProgress(userID, flowID, progress string) (*models.User, error) {
	result := r.db.Model(&models.FlowSummary{}).
		Where("user_id = ? AND flow_id = ?", userID, flowID).
		Update("progress", progress)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to update flow progress for flow %s: %w", flowID, result.Error)
	}
	return r.GetByID(userID)
}

// RemoveFlowSummary removes the user's summary entry for the given flow and
// returns the refreshed user.
func (r *GORMUserRepository) RemoveFlowSummary(userID, flowID string) (*models.User, error) {
	result := r.db.Where("user_id = ? AND flow_id = ?", userID, flowID).
		Delete(&models.FlowSummary{})
	if result.Error != nil {
		return nil, fmt.Errorf("failed to remove flow summary for flow %s: %w", flowID, result.Error)
	}
	return r.GetByID(userID)
}
