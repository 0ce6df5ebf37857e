package repositories

import "github.com/ssu526/path-builder-backend/internal/models"

// FlowRepository defines the interface for flow document data access.
//
// CreateWithSummary must insert the flow and its summary atomically: on any
// failure neither row may be visible afterwards.
type FlowRepository interface {
	CreateWithSummary(flow *models.Flow, summary *models.FlowSummary) error
	GetByID(id string) (*models.Flow, error)
	UpdateContent(flow *models.Flow) error
	Delete(id string) error
}
