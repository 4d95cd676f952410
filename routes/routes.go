package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	controller "meetsync/controllers"
	"meetsync/middleware"
	"meetsync/worker"
)

func SetupRoutes(app *fiber.App, db *gorm.DB, queue worker.Queue, log *logrus.Logger) {
	contactController := controller.NewContactController(db, queue, log)

	api := app.Group("/api/v1", middleware.Protected(), logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))

	contacts := api.Group("/contacts")
	contacts.Post("/", contactController.CreateContact)
	contacts.Get("/", contactController.GetContacts)
	contacts.Get("/export", contactController.ExportContacts)
	contacts.Post("/import", middleware.ImportRateLimiter(), contactController.ImportContacts)
	contacts.Post("/merge", contactController.MergeContacts)
	contacts.Post("/stats/sync", contactController.SyncAllContactStats)
	contacts.Get("/:id", contactController.GetContact)
	contacts.Put("/:id", contactController.UpdateContact)
	contacts.Delete("/:id", contactController.DeleteContact)
	contacts.Get("/:id/interactions", contactController.GetContactInteractions)
	contacts.Post("/:id/stats/sync", contactController.SyncContactStats)

	// Called by the scheduling service, same token domain
	internal := app.Group("/internal", middleware.Protected())
	internal.Post("/bookings/:id/created", contactController.NotifyBookingCreated)

	log.Info("Contact routes initialized successfully")
}
