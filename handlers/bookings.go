package handlers

import (
	"race-registration-system/middleware"
	"race-registration-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupBookingRoutes(app *fiber.App, bookingService *services.BookingService, paymentService *services.PaymentService) {
	// 🔐 Authenticated participant routes
	secured := app.Group("/", middleware.UserContextMiddleware())

	secured.Post("/events/:id/bookings", bookingService.CreateBookingEndpoint)
	secured.Get("/bookings/:id", bookingService.GetBookingEndpoint)
	secured.Get("/users/me/bookings", bookingService.GetMyBookingsEndpoint)

	// Owner withdrawal / companion cancel-restore
	secured.Patch("/bookings/:id/cancel", bookingService.CancelBookingEndpoint)
	secured.Patch("/companions/:id/cancel", bookingService.CancelCompanionEndpoint)

	// Payment proof re-submission (multipart)
	secured.Post("/bookings/:id/proof", paymentService.SubmitProofEndpoint)

	// 🔒 Organizer payment decisions
	organizer := secured.Group("/", middleware.RequireOrganizer())
	organizer.Post("/bookings/:id/verify", paymentService.VerifyEndpoint)
	organizer.Post("/bookings/:id/refund", paymentService.RefundEndpoint)
	organizer.Get("/users/search", bookingService.SearchUsersEndpoint)
}
