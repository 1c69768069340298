package controllers

import (
	"question-bank-backend/config"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// SubmitUploadController accepts the workbook, creates the job and returns
// immediately; processing happens on the worker pool.
func (uc *UploadController) SubmitUploadController(c *fiber.Ctx) error {
	owner, ok := uc.ownerOrUnauthorized(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Authentication required",
		})
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Missing 'file' form field",
		})
	}

	file, err := fileHeader.Open()
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to read uploaded file",
		})
	}
	defer file.Close()

	job, err := uc.manager.Submit(c.Context(), fileHeader.Filename, fileHeader.Size, file, owner)
	if err != nil {
		config.Logger.Warn("Upload submission rejected",
			zap.String("filename", fileHeader.Filename),
			zap.Error(err),
		)
		return c.Status(statusForError(err)).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"message": "Upload accepted for processing",
		"job":     job,
	})
}
