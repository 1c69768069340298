package controllers

import (
	"strconv"

	"question-bank-backend/middleware"
	"question-bank-backend/questions/repositories"

	"github.com/gofiber/fiber/v2"
)

type QuestionController struct {
	repo repositories.QuestionRepository
}

func NewQuestionController(repo repositories.QuestionRepository) *QuestionController {
	return &QuestionController{repo: repo}
}

// GetFilteredQuestionsController lists the organization's questions with
// optional filters and pagination.
func (qc *QuestionController) GetFilteredQuestionsController(c *fiber.Ctx) error {
	owner, ok := middleware.OwnerFromLocals(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Authentication required",
		})
	}

	page, _ := strconv.Atoi(c.Query("page", "1"))
	if page < 1 {
		page = 1
	}
	pageSize, _ := strconv.Atoi(c.Query("page_size", "20"))
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	filters := map[string]string{}
	for _, key := range []string{"difficulty_id", "cognitive_learning_id", "taxonomy_id", "text"} {
		if value := c.Query(key); value != "" {
			filters[key] = value
		}
	}

	questions, total, err := qc.repo.GetFilteredQuestions(owner.OrganizationID, pageSize, (page-1)*pageSize, filters)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list questions",
		})
	}

	return c.JSON(fiber.Map{
		"questions": questions,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// GetQuestionByCodeController fetches a single question with its taxonomy.
func (qc *QuestionController) GetQuestionByCodeController(c *fiber.Ctx) error {
	owner, ok := middleware.OwnerFromLocals(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Authentication required",
		})
	}

	code := c.Params("code")
	question, err := qc.repo.GetQuestionByCode(owner.OrganizationID, code)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"question": question,
	})
}
