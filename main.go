package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/streadway/amqp"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/ssu526/path-builder-backend/internal/api"
	"github.com/ssu526/path-builder-backend/internal/config"
	"github.com/ssu526/path-builder-backend/internal/handlers"
	"github.com/ssu526/path-builder-backend/internal/middleware"
	"github.com/ssu526/path-builder-backend/internal/models"
	"github.com/ssu526/path-builder-backend/internal/repositories"
	"github.com/ssu526/path-builder-backend/internal/services"
	"github.com/ssu526/path-builder-backend/internal/session"
	"github.com/ssu526/path-builder-backend/pkg/rabbitmq"
)

func main() {
	cfg := config.Load()

	// --- Database ---
	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	if err := db.AutoMigrate(&models.User{}, &models.FlowSummary{}, &models.Flow{}); err != nil {
		log.Fatalf("Failed to auto-migrate database: %v", err)
	}

	// --- Session store ---
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPass,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := rdb.Ping(ctx).Err(); err != nil {
		cancel()
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	cancel()
	sessions := session.NewStore(rdb, "session", cfg.SessionTTL)

	// --- RabbitMQ (optional) ---
	var mqClient *rabbitmq.Client
	if cfg.RabbitMQURL != "" {
		mqClient, err = rabbitmq.NewClient(rabbitmq.Config{URL: cfg.RabbitMQURL})
		if err != nil {
			log.Fatalf("Failed to initialize RabbitMQ client: %v", err)
		}
		defer mqClient.Close() // Ensure the connection is closed on exit
	} else {
		log.Println("RABBITMQ_URL not set, flow event publishing disabled")
	}

	// --- Repositories ---
	userRepo := repositories.NewGORMUserRepository(db)
	flowRepo := repositories.NewGORMFlowRepository(db)

	// --- Services ---
	authService := services.NewAuthService(userRepo)
	flowService := services.NewFlowService(flowRepo, userRepo, mqClient)

	// --- Handlers ---
	userHandler := handlers.NewUserHandler(authService, sessions, cfg.CookieName, cfg.SessionTTL)
	flowHandler := handlers.NewFlowHandler(flowService)
	requireAuth := middleware.RequireAuth(sessions, cfg.CookieName)

	app := api.New(userHandler, flowHandler, requireAuth)

	// --- Start RabbitMQ Consumer in a Goroutine ---
	if mqClient != nil {
		go func() {
			log.Println("Starting RabbitMQ consumer for flow events...")
			messageHandler := func(msg amqp.Delivery) error {
				log.Printf("Received flow event %s (tag %d): %s", msg.Type, msg.DeliveryTag, string(msg.Body))
				return nil // Return nil to acknowledge
			}
			if consumerErr := mqClient.ConsumeFlowEvents(messageHandler); consumerErr != nil {
				log.Printf("Failed to start RabbitMQ consumer: %v", consumerErr)
			}
		}()
	}

	// --- Start HTTP Server ---
	log.Printf("Starting server on port %s", cfg.AppPort)

	// Graceful shutdown handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := app.Listen(cfg.AppPort); err != nil {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	<-quit
	log.Println("Shutting down server...")

	if err := app.Shutdown(); err != nil {
		log.Printf("Error during Fiber shutdown: %v", err)
	}

	if err := rdb.Close(); err != nil {
		log.Printf("Error closing Redis client: %v", err)
	}

	log.Println("Server gracefully stopped")
}
