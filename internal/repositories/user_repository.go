package repositories

import "github.com/ssu526/path-builder-backend/internal/models"

// UserRepository defines the interface for user data access, including the flow
// summary list embedded in the user view.
type UserRepository interface {
	Create(user *models.User) error
	GetByUsername(username string) (*models.User, error)
	GetByEmail(email string) (*models.User, error)
	GetByID(id string) (*models.User, error)
	SetFlowName(userID, flowID, name string) (*models.User, error)
	SetFlowProgress(userID, flowID, progress string) (*models.User, error)
	RemoveFlowSummary(userID, flowID string) (*models.User, error)
}
