package controllers

import (
	"strconv"

	"question-bank-backend/middleware"
	"question-bank-backend/search/repositories"

	"github.com/gofiber/fiber/v2"
)

type SearchController struct {
	repo repositories.QuestionSearchRepositoryInterface
}

func NewSearchController(repo repositories.QuestionSearchRepositoryInterface) *SearchController {
	return &SearchController{repo: repo}
}

func (c *SearchController) SearchQuestionsController(ctx *fiber.Ctx) error {
	owner, ok := middleware.OwnerFromLocals(ctx)
	if !ok {
		return ctx.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Authentication required",
		})
	}

	query := ctx.Query("q")
	if query == "" {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Query parameter 'q' is required",
		})
	}

	size := 20
	if sizeStr := ctx.Query("size"); sizeStr != "" {
		val, err := strconv.Atoi(sizeStr)
		if err != nil || val <= 0 || val > 100 {
			return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid 'size' value",
			})
		}
		size = val
	}

	results, err := c.repo.SearchQuestions(owner.OrganizationID, query, size)
	if err != nil {
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Search failed",
		})
	}

	var matches []interface{}
	for _, hit := range results.Hits {
		matches = append(matches, hit.Fields)
	}

	return ctx.JSON(fiber.Map{
		"results": matches,
		"total":   results.Total,
	})
}
