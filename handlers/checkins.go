package handlers

import (
	"race-registration-system/middleware"
	"race-registration-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupCheckinRoutes(app *fiber.App, checkinService *services.CheckinService, authClient *services.AuthServiceClient) {
	// 🔒 Scanning is an organizer desk action
	organizer := app.Group("/", middleware.UserContextMiddleware(), middleware.RequireOrganizer())
	organizer.Post("/checkin", checkinService.ScanEndpoint)
	organizer.Post("/checkin/manual", checkinService.ManualEndpoint)

	// Live feed for the organizer dashboard — EventSource can't set
	// headers, so this authenticates via query params against the auth
	// service instead of the Gateway context.
	app.Get("/events/:id/checkins/stream",
		middleware.SSEAuthMiddleware(authClient),
		checkinService.StreamEventCheckInsSSE)
}
