package handlers

import (
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/ssu526/path-builder-backend/internal/httperror"
	"github.com/ssu526/path-builder-backend/internal/models"
	"github.com/ssu526/path-builder-backend/internal/services"
)

// FlowHandler handles HTTP requests for flows. Every route expects RequireAuth
// to have placed the caller's user id in the request Locals.
type FlowHandler struct {
	service *services.FlowService
}

// NewFlowHandler creates a new FlowHandler.
func NewFlowHandler(service *services.FlowService) *FlowHandler {
	return &FlowHandler{
		service: service,
	}
}

// RegisterRoutes registers the flow routes with the Fiber app. requireAuth
// guards the whole group; only the flows prefix is gated, never the paths
// around it.
func (h *FlowHandler) RegisterRoutes(router fiber.Router, requireAuth fiber.Handler) {
	flowRoutes := router.Group("/flows", requireAuth)
	flowRoutes.Post("/create", h.HandleCreateFlow)
	flowRoutes.Get("/:flowId", h.HandleGetFlow)
	flowRoutes.Put("/name/:flowId", h.HandleUpdateFlowName)
	flowRoutes.Put("/progress/:flowId", h.HandleUpdateFlowProgress)
	flowRoutes.Put("/detail/:flowId", h.HandleUpdateFlowDetail)
	flowRoutes.Delete("/:flowId", h.HandleDeleteFlow)
}

// flowIDParam extracts and validates the :flowId path parameter. Malformed ids
// are rejected before any store call.
func flowIDParam(c *fiber.Ctx) (string, error) {
	flowID := c.Params("flowId")
	if _, err := uuid.Parse(flowID); err != nil {
		return "", httperror.BadRequest("Flow id is not valid")
	}
	return flowID, nil
}

func callerID(c *fiber.Ctx) string {
	id, _ := c.Locals("user_id").(string)
	return id
}

// HandleCreateFlow creates an empty flow owned by the caller. Any failure in
// the paired insert surfaces as a 401 creation failure.
func (h *FlowHandler) HandleCreateFlow(c *fiber.Ctx) error {
	flow, user, flowName, err := h.service.CreateFlow(callerID(c))
	if err != nil {
		log.Printf("Error creating flow: %v", err)
		return httperror.Unauthorized("Failed to create the flow")
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"flowAdded": flow,
		"user":      user,
		"flowName":  flowName,
	})
}

// HandleGetFlow returns the full flow document, content included.
func (h *FlowHandler) HandleGetFlow(c *fiber.Ctx) error {
	flowID, err := flowIDParam(c)
	if err != nil {
		return err
	}

	flow, err := h.service.GetFlow(flowID, callerID(c))
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusOK).JSON(flow)
}

// HandleUpdateFlowName renames the flow's summary entry.
func (h *FlowHandler) HandleUpdateFlowName(c *fiber.Ctx) error {
	flowID, err := flowIDParam(c)
	if err != nil {
		return err
	}

	var req struct {
		Name string `json:"name"`
	}
	if err := c.BodyParser(&req); err != nil {
		return httperror.BadRequest("Invalid request body")
	}

	user, err := h.service.RenameFlow(flowID, callerID(c), req.Name)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusOK).JSON(user)
}

// HandleUpdateFlowProgress updates the summary's progress value.
func (h *FlowHandler) HandleUpdateFlowProgress(c *fiber.Ctx) error {
	flowID, err := flowIDParam(c)
	if err != nil {
		return err
	}

	var req struct {
		Progress string `json:"progress"`
	}
	if err := c.BodyParser(&req); err != nil {
		return httperror.BadRequest("Invalid request body")
	}

	user, err := h.service.UpdateProgress(flowID, callerID(c), req.Progress)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusOK).JSON(user)
}

// HandleUpdateFlowDetail replaces the flow's diagram payload wholesale.
func (h *FlowHandler) HandleUpdateFlowDetail(c *fiber.Ctx) error {
	flowID, err := flowIDParam(c)
	if err != nil {
		return err
	}

	var req struct {
		FlowBody models.FlowContent `json:"flowBody"`
	}
	if err := c.BodyParser(&req); err != nil {
		return httperror.BadRequest("Invalid request body")
	}

	flow, err := h.service.UpdateContent(flowID, callerID(c), req.FlowBody)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusOK).JSON(flow)
}

// HandleDeleteFlow removes the flow and its summary entry.
func (h *FlowHandler) HandleDeleteFlow(c *fiber.Ctx) error {
	flowID, err := flowIDParam(c)
	if err != nil {
		return err
	}

	user, err := h.service.DeleteFlow(flowID, callerID(c))
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusOK).JSON(user)
}
