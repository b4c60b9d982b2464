// handlers/code_routes.go
package handlers

import (
	"dkp-loot-system/middleware"
	"dkp-loot-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupCodeRoutes(app *fiber.App, categoryService *services.CategoryService, codeService *services.CodeService) {
	secured := app.Group("/", middleware.UserContextMiddleware())

	// Reward categories — listing is open to everyone, mutation is mod-only
	secured.Get("/event-types", categoryService.GetCategories)

	mod := secured.Group("/", services.RequireModerator())
	mod.Post("/event-types", categoryService.CreateCategory)
	mod.Put("/event-types/:name", categoryService.UpdateCategory)
	mod.Delete("/event-types/:name", categoryService.DeleteCategory)

	// Redemption codes ("PINs")
	secured.Post("/redeem", codeService.RedeemPin)
	mod.Post("/pins", codeService.IssuePin)
	mod.Get("/pins", codeService.ListPins)
	mod.Post("/pins/:code/revoke", codeService.RevokePin)
}
