package controllers

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
)

// GetResultArtifactController streams the annotated result workbook for a
// terminal job. The stored reference is stable, so repeated downloads return
// the same artifact.
func (uc *UploadController) GetResultArtifactController(c *fiber.Ctx) error {
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

	artifact, job, err := uc.manager.GetResultArtifact(jobID, owner)
	if err != nil {
		return c.Status(statusForError(err)).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	// The stream is handed to the response writer, which closes it once the
	// body has been sent.
	c.Set(fiber.HeaderContentType, xlsxContentType)
	c.Set(fiber.HeaderContentDisposition,
		fmt.Sprintf(`attachment; filename="result_%s.xlsx"`, job.ID))
	return c.SendStream(artifact)
}
