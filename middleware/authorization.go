package middleware

import (
	"strings"

	"question-bank-backend/config"
	"question-bank-backend/db/models"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// ProtectedRoute verifies the access token and stores the caller's owner
// context in locals for the handlers downstream.
func ProtectedRoute(ctx *AppContext) fiber.Handler {
	return func(c *fiber.Ctx) error {
		accessToken := c.Cookies("access_token")
		if accessToken == "" {
			// Fall back to the Authorization header for non-browser clients.
			header := c.Get("Authorization")
			if strings.HasPrefix(header, "Bearer ") {
				accessToken = strings.TrimPrefix(header, "Bearer ")
			}
		}

		if accessToken == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"message": "Unauthorized",
				"error":   "Authentication required",
			})
		}

		payload, err := ctx.PasetoMaker.VerifyToken(accessToken)
		if err != nil {
			config.Logger.Debug("Invalid access token encountered", zap.Error(err))
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"message": "Unauthorized",
				"error":   "Session expired or invalid. Please log in again.",
			})
		}

		c.Locals("user", payload)
		c.Locals("owner", models.OwnerContext{
			UserEmail:      payload.Email,
			OrganizationID: payload.OrganizationID,
		})
		return c.Next()
	}
}

// OwnerFromLocals retrieves the owner context placed by ProtectedRoute.
func OwnerFromLocals(c *fiber.Ctx) (models.OwnerContext, bool) {
	owner, ok := c.Locals("owner").(models.OwnerContext)
	return owner, ok
}
