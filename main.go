package main

import (
	"context"

	"github.com/getsentry/sentry-go"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"meetsync/config"
	"meetsync/middleware"
	"meetsync/routes"
	"meetsync/services"
	"meetsync/worker"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	// Load configuration
	if err := config.LoadConfig(); err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	// Error reporting
	if config.AppConfig.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         config.AppConfig.SentryDSN,
			Environment: config.AppConfig.Environment,
		}); err != nil {
			logger.Fatalf("Failed to initialize Sentry: %v", err)
		}
	}

	// Initialize database connection
	if err := config.ConnectDB(); err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}

	// Task queue: Redis in production, in-memory otherwise
	var queue worker.Queue
	if config.AppConfig.Redis.Enabled {
		queue = worker.NewRedisQueue(config.AppConfig.Redis, config.AppConfig.TaskQueueKey)
	} else {
		queue = worker.NewMemoryQueue(config.AppConfig.MemoryQueueCapacity)
	}
	defer queue.Close()

	// Wire the contact engines
	repo := service.NewContactRepository(config.DB)
	bookings := service.NewBookingSource(config.DB)
	importer := service.NewImporter(repo, logger)
	merger := service.NewMerger(repo, logger)
	syncer := service.NewStatsSyncer(repo, bookings, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start workers
	contactWorker := worker.NewContactWorker(queue, importer, merger, syncer, bookings, logger)
	go contactWorker.Start(ctx)

	statsWorker := worker.NewStatsWorker(queue, config.AppConfig.StatsSyncSchedule, logger)
	go statsWorker.Start(ctx)

	// Create Fiber app
	app := fiber.New(fiber.Config{
		BodyLimit: int(config.AppConfig.ImportMaxFileSize) + 1<<20,
	})
	app.Use(middleware.CORS())

	// Setup routes
	routes.SetupRoutes(app, config.DB, queue, logger)

	// Health check endpoint
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "running",
			"version": "1.0.0",
		})
	})

	// Start server
	logger.Printf("🚀 Server starting on port %s", config.AppConfig.ServerPort)
	if err := app.Listen(":" + config.AppConfig.ServerPort); err != nil {
		logger.Fatalf("Failed to start server: %v", err)
	}
}
