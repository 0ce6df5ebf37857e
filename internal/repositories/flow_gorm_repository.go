package repositories

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ssu526/path-builder-backend/internal/models"
)

// GORMFlowRepository is a GORM implementation of FlowRepository.
type GORMFlowRepository struct {
	db *gorm.DB
}

// NewGORMFlowRepository creates a new instance of GORMFlowRepository.
func NewGORMFlowRepository(db *gorm.DB) *GORMFlowRepository {
	return &GORMFlowRepository{
		db: db,
	}
}

// CreateWithSummary inserts the flow document and its summary entry in a single
// transaction. If either insert fails the transaction rolls back and neither
// row is visible.
func (r *GORMFlowRepository) CreateWithSummary(flow *models.Flow, summary *models.FlowSummary) error {
	if flow.ID == "" {
		flow.ID = uuid.New().String()
	}
	if summary.ID == "" {
		summary.ID = uuid.New().String()
	}
	summary.FlowID = flow.ID
	summary.UserID = flow.UserID

	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(flow).Error; err != nil {
			return err
		}
		if err := tx.Create(summary).Error; err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to create flow with summary: %w", err)
	}
	return nil
}

// GetByID retrieves a flow by its ID from the database.
func (r *GORMFlowRepository) GetByID(id string) (*models.Flow, error) {
	var flow models.Flow
	if err := r.db.First(&flow, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("flow with ID %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get flow by ID %s: %w", id, err)
	}
	return &flow, nil
}

// UpdateContent persists the flow's payload.
func (r *GORMFlowRepository) UpdateContent(flow *models.Flow) error {
	if err := r.db.Save(flow).Error; err != nil {
		return fmt.Errorf("failed to update flow %s: %w", flow.ID, err)
	}
	return nil
}

// Delete removes a flow document by its ID.
func (r *GORMFlowRepository) Delete(id string) error {
	if err := r.db.Delete(&models.Flow{}, "id = ?", id).Error; err != nil {
		return fmt.Errorf("failed to delete flow %s: %w", id, err)
	}
	return nil
}
