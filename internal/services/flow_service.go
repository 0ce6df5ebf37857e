package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/ssu526/path-builder-backend/internal/httperror"
	"github.com/ssu526/path-builder-backend/internal/models"
	"github.com/ssu526/path-builder-backend/internal/repositories"
	"github.com/ssu526/path-builder-backend/pkg/rabbitmq"
)

// DefaultFlowName is the name every newly created flow summary starts with.
const DefaultFlowName = "Untitled"

// FlowService keeps the flow collection and each user's summary list mutually
// consistent, and gates every flow operation on ownership.
type FlowService struct {
	flowRepo repositories.FlowRepository
	userRepo repositories.UserRepository
	mqClient *rabbitmq.Client // optional; nil disables event publishing
}

// NewFlowService creates a new FlowService. mqClient may be nil.
func NewFlowService(flowRepo repositories.FlowRepository, userRepo repositories.UserRepository, mqClient *rabbitmq.Client) *FlowService {
	return &FlowService{
		flowRepo: flowRepo,
		userRepo: userRepo,
		mqClient: mqClient,
	}
}

// ownedFlow loads the flow and proves callerID owns it. Every flow operation
// runs this same predicate before touching anything.
func (s *FlowService) ownedFlow(flowID, callerID string) (*models.Flow, error) {
	flow, err := s.flowRepo.GetByID(flowID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, httperror.NotFound("Flow not found")
		}
		return nil, err
	}
	if flow.UserID != callerID {
		return nil, httperror.Unauthorized("Not Authorized")
	}
	return flow, nil
}

// CreateFlow creates an empty flow owned by ownerID together with its summary
// entry. The two inserts are one transaction: on failure neither is visible.
// Returns the new flow, the refreshed user and the flow's initial name.
func (s *FlowService) CreateFlow(ownerID string) (*models.Flow, *models.User, string, error) {
	flow := &models.Flow{
		UserID:  ownerID,
		Content: models.NewFlowContent(),
	}
	summary := &models.FlowSummary{
		Name:       DefaultFlowName,
		Progress:   models.ProgressPending,
		Visibility: models.VisibilityProtected,
	}

	if err := s.flowRepo.CreateWithSummary(flow, summary); err != nil {
		return nil, nil, "", fmt.Errorf("failed to create flow: %w", err)
	}

	user, err := s.userRepo.GetByID(ownerID)
	if err != nil {
		return nil, nil, "", err
	}

	s.publishEvent("flow.created", flow)

	return flow, user, DefaultFlowName, nil
}

// GetFlow returns the full flow document after the ownership check.
func (s *FlowService) GetFlow(flowID, callerID string) (*models.Flow, error) {
	return s.ownedFlow(flowID, callerID)
}

// RenameFlow updates the summary's name for the given flow. The flow document
// itself is untouched; the name lives only on the summary.
func (s *FlowService) RenameFlow(flowID, callerID, newName string) (*models.User, error) {
	if _, err := s.ownedFlow(flowID, callerID); err != nil {
		return nil, err
	}

	if strings.TrimSpace(newName) == "" {
		return nil, httperror.BadRequest("Flow must have a name")
	}

	return s.userRepo.SetFlowName(callerID, flowID, newName)
}

// UpdateProgress sets the summary's progress. Any of the four recognized values
// may be set at any time; there is no transition graph.
func (s *FlowService) UpdateProgress(flowID, callerID, progress string) (*models.User, error) {
	if _, err := s.ownedFlow(flowID, callerID); err != nil {
		return nil, err
	}

	if progress == "" {
		return nil, httperror.BadRequest("Progress is missing")
	}
	validProgress := map[string]bool{
		models.ProgressPending:    true,
		models.ProgressInProgress: true,
		models.ProgressCompleted:  true,
		models.ProgressTerminated: true,
	}
	if !validProgress[progress] {
		return nil, httperror.BadRequest("Invalid progress type")
	}

	return s.userRepo.SetFlowProgress(callerID, flowID, progress)
}

// UpdateContent replaces the flow's payload wholesale and persists it. No
// partial or merge semantics.
func (s *FlowService) UpdateContent(flowID, callerID string, content models.FlowContent) (*models.Flow, error) {
	flow, err := s.ownedFlow(flowID, callerID)
	if err != nil {
		return nil, err
	}

	flow.Content = content
	if err := s.flowRepo.UpdateContent(flow); err != nil {
		return nil, err
	}
	return flow, nil
}

// DeleteFlow removes the summary entry and then the flow document, in that
// order. The two writes are not transactional: a crash in between leaves an
// orphan flow document but never an orphan summary.
// TODO: decide with stakeholders whether delete should share one transaction
// the way create does.
func (s *FlowService) DeleteFlow(flowID, callerID string) (*models.User, error) {
	flow, err := s.ownedFlow(flowID, callerID)
	if err != nil {
		return nil, err
	}

	user, err := s.userRepo.RemoveFlowSummary(callerID, flowID)
	if err != nil {
		return nil, err
	}

	if err := s.flowRepo.Delete(flowID); err != nil {
		return nil, err
	}

	s.publishEvent("flow.deleted", flow)

	return user, nil
}

// publishEvent sends a flow lifecycle event when a broker is configured.
// Publishing failures are logged and never fail the request.
func (s *FlowService) publishEvent(eventType string, flow *models.Flow) {
	if s.mqClient == nil {
		return
	}

	message := map[string]interface{}{
		"event":  eventType,
		"flowId": flow.ID,
		"userId": flow.UserID,
	}
	body, err := json.Marshal(message)
	if err != nil {
		log.Printf("Failed to marshal %s event for flow %s: %v", eventType, flow.ID, err)
		return
	}
	if err := s.mqClient.Publish(eventType, body); err != nil {
		log.Printf("Warning: Failed to publish %s event for flow %s: %v", eventType, flow.ID, err)
	}
}
