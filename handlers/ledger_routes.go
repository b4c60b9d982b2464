// handlers/ledger_routes.go
package handlers

import (
	"dkp-loot-system/middleware"
	"dkp-loot-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupLedgerRoutes(app *fiber.App, ledgerService *services.LedgerService) {
	// Every command carries a user context from the Gateway
	secured := app.Group("/", middleware.UserContextMiddleware())

	secured.Get("/balance", ledgerService.GetBalance)
	secured.Get("/balance/:id", ledgerService.GetBalance)
	secured.Get("/leaderboard", ledgerService.GetLeaderboard)
	secured.Get("/history", ledgerService.GetLootHistory)
}
