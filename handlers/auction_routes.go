// handlers/auction_routes.go
package handlers

import (
	"dkp-loot-system/middleware"
	"dkp-loot-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupAuctionRoutes(app *fiber.App, auctionService *services.AuctionService) {
	secured := app.Group("/", middleware.UserContextMiddleware())

	secured.Get("/auctions/status", auctionService.GetAuctionStatus)
	secured.Post("/bids", auctionService.PlaceBidHandler)

	mod := secured.Group("/", services.RequireModerator())
	mod.Post("/auctions", auctionService.OpenAuction)
	mod.Post("/auctions/cancel", auctionService.CancelAuction)
	mod.Post("/auctions/close", auctionService.CloseAuction)
}
