package routes

import (
	"question-bank-backend/middleware"
	"question-bank-backend/search/controllers"

	"github.com/gofiber/fiber/v2"
)

func InitSearchRoutes(app *fiber.App, controller *controllers.SearchController, appCtx *middleware.AppContext) {
	api := app.Group("/api/v1/search", middleware.ProtectedRoute(appCtx))

	api.Get("/questions", controller.SearchQuestionsController)
}
