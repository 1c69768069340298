package controllers

import (
	"errors"

	"question-bank-backend/db/models"
	"question-bank-backend/middleware"
	"question-bank-backend/uploads/services"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// UploadController exposes the bulk-upload pipeline over HTTP. All handlers
// resolve the caller's owner context from locals and delegate to the job
// manager, which enforces ownership.
type UploadController struct {
	manager *services.JobManager
}

func NewUploadController(manager *services.JobManager) *UploadController {
	return &UploadController{manager: manager}
}

func (uc *UploadController) ownerOrUnauthorized(c *fiber.Ctx) (models.OwnerContext, bool) {
	owner, ok := middleware.OwnerFromLocals(c)
	if !ok {
		return models.OwnerContext{}, false
	}
	return owner, true
}

func parseJobID(c *fiber.Ctx) (uuid.UUID, error) {
	return uuid.Parse(c.Params("id"))
}

// statusForError maps pipeline sentinel errors onto HTTP statuses.
func statusForError(err error) int {
	switch {
	case errors.Is(err, services.ErrInvalidUpload):
		return fiber.StatusBadRequest
	case errors.Is(err, services.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, services.ErrForbidden):
		return fiber.StatusForbidden
	case errors.Is(err, services.ErrStorage):
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}
