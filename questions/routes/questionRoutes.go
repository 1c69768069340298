package routes

import (
	"question-bank-backend/middleware"
	"question-bank-backend/questions/controllers"

	"github.com/gofiber/fiber/v2"
)

func InitQuestionRoutes(app *fiber.App, controller *controllers.QuestionController, appCtx *middleware.AppContext) {
	api := app.Group("/api/v1/questions", middleware.ProtectedRoute(appCtx))

	api.Get("/", controller.GetFilteredQuestionsController)
	api.Get("/:code", controller.GetQuestionByCodeController)
}
