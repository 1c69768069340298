package controllers

import (
	"github.com/gofiber/fiber/v2"
)

// CancelJobController requests cooperative cancellation. Cancelling a job
// that already reached a terminal state reports that state unchanged.
func (uc *UploadController) CancelJobController(c *fiber.Ctx) error {
	owner, ok := uc.ownerOrUnauthorized(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Authentication required",
		})
	}

	jobID, err := parseJobID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid job id",
		})
	}

	job, err := uc.manager.Cancel(c.Context(), jobID, owner)
	if err != nil {
		return c.Status(statusForError(err)).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"message": "Cancellation requested",
		"job":     job,
	})
}
