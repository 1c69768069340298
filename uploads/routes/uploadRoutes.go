package routes

import (
	"question-bank-backend/middleware"
	"question-bank-backend/uploads/controllers"

	"github.com/gofiber/fiber/v2"
)

func InitUploadRoutes(app *fiber.App, controller *controllers.UploadController, appCtx *middleware.AppContext) {
	api := app.Group("/api/v1/uploads", middleware.ProtectedRoute(appCtx))

	api.Post("/jobs", controller.SubmitUploadController)
	api.Get("/jobs", controller.GetFilteredJobsController)
	api.Get("/jobs/:id", controller.GetJobStatusController)
	api.Get("/jobs/:id/rows", controller.GetRowOutcomesController)
	api.Post("/jobs/:id/cancel", controller.CancelJobController)
	api.Get("/jobs/:id/result", controller.GetResultArtifactController)
	api.Get("/template", controller.GetTemplateController)
}
