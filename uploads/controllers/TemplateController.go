package controllers

import (
	"question-bank-backend/config"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// GetTemplateController streams the blank upload template.
func (uc *UploadController) GetTemplateController(c *fiber.Ctx) error {
	buf, err := uc.manager.GetTemplate()
	if err != nil {
		config.Logger.Error("Failed to generate upload template", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to generate template",
		})
	}

	c.Set(fiber.HeaderContentType, xlsxContentType)
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="question_upload_template.xlsx"`)
	return c.Send(buf.Bytes())
}
