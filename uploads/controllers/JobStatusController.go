package controllers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
)

// GetJobStatusController is the polling endpoint.
func (uc *UploadController) GetJobStatusController(c *fiber.Ctx) error {
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

	job, err := uc.manager.GetStatus(jobID, owner)
	if err != nil {
		return c.Status(statusForError(err)).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"job": job,
	})
}

// GetRowOutcomesController returns the per-row outcomes in row order.
func (uc *UploadController) GetRowOutcomesController(c *fiber.Ctx) error {
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

	outcomes, err := uc.manager.GetRowOutcomes(jobID, owner)
	if err != nil {
		return c.Status(statusForError(err)).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"row_outcomes": outcomes,
	})
}

// GetFilteredJobsController lists the organization's jobs with optional
// status, filename and uploader filters.
func (uc *UploadController) GetFilteredJobsController(c *fiber.Ctx) error {
	owner, ok := uc.ownerOrUnauthorized(c)
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
	for _, key := range []string{"status", "filename", "uploaded_by"} {
		if value := c.Query(key); value != "" {
			filters[key] = value
		}
	}

	jobs, total, err := uc.manager.ListJobs(owner, pageSize, (page-1)*pageSize, filters)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list jobs",
		})
	}

	return c.JSON(fiber.Map{
		"jobs":      jobs,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}
