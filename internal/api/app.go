// Package api builds the Fiber application: middleware stack, routes and the
// central error handler.
package api

import (
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	fiberrecover "github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/ssu526/path-builder-backend/internal/handlers"
	"github.com/ssu526/path-builder-backend/internal/httperror"
)

// New creates and configures the Fiber app with user and flow routes.
// requireAuth guards the flow routes and the current-user lookup.
func New(userHandler *handlers.UserHandler, flowHandler *handlers.FlowHandler, requireAuth fiber.Handler) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      "path-builder-backend API v1.0",
		ErrorHandler: errorHandler,
	})

	// Middleware
	app.Use(fiberrecover.New())
	app.Use(logger.New()) // Request logger

	// Health check endpoint
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	// API Routes
	apiV1 := app.Group("/api/v1")
	userHandler.RegisterRoutes(apiV1, requireAuth)
	flowHandler.RegisterRoutes(apiV1, requireAuth)

	// Unmatched routes
	app.Use(func(c *fiber.Ctx) error {
		return httperror.NotFound("Page not found")
	})

	return app
}

// errorHandler renders every error as {"error": message}. Errors without a
// status code fall through to 500 with a generic message.
func errorHandler(c *fiber.Ctx, err error) error {
	statusCode := httperror.StatusCode(err)
	if statusCode == fiber.StatusInternalServerError {
		log.Printf("Unhandled error on %s %s: %v", c.Method(), c.Path(), err)
	}
	return c.Status(statusCode).JSON(fiber.Map{
		"error": httperror.Message(err),
	})
}
