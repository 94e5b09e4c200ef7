package handlers

import (
	"race-registration-system/middleware"
	"race-registration-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupEventRoutes(app *fiber.App, eventService *services.EventService) {
	// 🔓 Public catalog routes — no user context, but still behind Gateway auth
	app.Get("/events", eventService.GetAllEventsEndpoint)
	app.Get("/events/:id", eventService.GetEventEndpoint)

	// 🔐 Organizer routes
	organizer := app.Group("/", middleware.UserContextMiddleware(), middleware.RequireOrganizer())
	organizer.Post("/events", eventService.CreateEventEndpoint)
	organizer.Patch("/events/:id/status", eventService.UpdateEventStatusEndpoint)
	organizer.Get("/events/:id/revenue", eventService.RevenueEndpoint)
}
