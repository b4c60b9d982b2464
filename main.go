package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"dkp-loot-system/handlers"
	"dkp-loot-system/middleware"
	"dkp-loot-system/models"
	"dkp-loot-system/services"
	"dkp-loot-system/utils"
	"dkp-loot-system/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}

	app := fiber.New()

	// Health probe first — the only route the Gateway auth does not cover
	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})

	// 🔐 GLOBAL: only Gateway requests allowed — no exceptions past this point
	app.Use(middleware.GatewayAuthMiddleware())

	allowedOriginsEnv := os.Getenv("ALLOWED_ORIGINS")
	if allowedOriginsEnv == "" {
		allowedOriginsEnv = "http://localhost:3000"
	}
	allowedOriginsList := strings.Split(allowedOriginsEnv, ",")
	for i, origin := range allowedOriginsList {
		allowedOriginsList[i] = strings.TrimSpace(origin)
	}
	allowedOriginsString := strings.Join(allowedOriginsList, ",")

	app.Use(cors.New(cors.Config{
		AllowOrigins: allowedOriginsString,
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS,PATCH",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-User-ID, X-User-Name, X-User-Roles, X-User-Moderator",
		MaxAge:       86400,
	}))

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL environment variable not set")
	}

	if err := utils.InitR2(); err != nil {
		log.Fatal("failed to initialize R2 client:", err)
	}

	// TranslateError lets transaction code branch on gorm.ErrDuplicatedKey
	// when a uniqueness constraint loses a race
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		log.Fatal("failed to connect to database:", err)
	}

	if err := db.AutoMigrate(
		&models.Participant{},
		&models.LedgerEntry{},
		&models.RewardCategory{},
		&models.RedemptionCode{},
		&models.Redemption{},
		&models.Auction{},
		&models.Bid{},
		&models.LootAward{},
	); err != nil {
		log.Fatal("failed to migrate database:", err)
	}

	ledgerService := services.NewLedgerService(db)
	categoryService := services.NewCategoryService(db)
	codeService := services.NewCodeService(db, ledgerService, categoryService)
	auctionService := services.NewAuctionService(db, ledgerService)

	gatewayBaseURL := os.Getenv("GATEWAY_BASE_URL")
	if gatewayBaseURL == "" {
		log.Fatal("GATEWAY_BASE_URL environment variable not set")
	}
	gatewayToken := os.Getenv("DKP_SERVICE_TOKEN")
	gatewayClient := services.NewGatewayClient(gatewayBaseURL, gatewayToken)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	archiveClient := workers.NewSettlementArchiveClient(db)
	go workers.PollSettlements(ctx, archiveClient, 60*time.Second)

	auctionService.StartExpirySweeper(codeService, gatewayClient)

	handlers.SetupLedgerRoutes(app, ledgerService)
	handlers.SetupCodeRoutes(app, categoryService, codeService)
	handlers.SetupAuctionRoutes(app, auctionService)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	go func() {
		if err := app.Listen(":" + port); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Printf("✅ Server running on http://localhost:%s", port)
	log.Println("✅ Expiry sweeper running (every 20s)")
	log.Println("✅ Settlement archive polling running (every 60s)")
	log.Println("✅ GatewayAuthMiddleware enforced globally — all requests must come from Gateway")

	<-ctx.Done()
	log.Println("Shutting down server...")
}
