package handlers

import (
	"race-registration-system/middleware"
	"race-registration-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupAchievementRoutes(app *fiber.App, achievementService *services.AchievementService) {
	secured := app.Group("/", middleware.UserContextMiddleware())

	secured.Get("/users/me/badges", achievementService.GetMyBadgesEndpoint)
	secured.Get("/users/me/borders", achievementService.GetMyBordersEndpoint)
	secured.Patch("/users/me/borders/:id/activate", achievementService.ActivateBorderEndpoint)
}
