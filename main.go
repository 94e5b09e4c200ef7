package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"race-registration-system/handlers"
	"race-registration-system/middleware"
	"race-registration-system/models"
	"race-registration-system/services"
	"race-registration-system/utils"
	"race-registration-system/workers"

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

	app := fiber.New(fiber.Config{
		BodyLimit: 20 * 1024 * 1024, // 20MB, payment proofs are photos
	})

	// 🔐 GLOBAL: Only Gateway requests allowed — no exceptions
	app.Use(middleware.GatewayAuthMiddleware())

	allowedOriginsEnv := os.Getenv("ALLOWED_ORIGINS")
	if allowedOriginsEnv == "" {
		log.Println("⚠️  ALLOWED_ORIGINS environment variable not set, using default: http://localhost:3000")
		allowedOriginsEnv = "http://localhost:3000"
	}
	allowedOriginsList := strings.Split(allowedOriginsEnv, ",")
	for i, origin := range allowedOriginsList {
		allowedOriginsList[i] = strings.TrimSpace(origin)
	}
	allowedOriginsString := strings.Join(allowedOriginsList, ",")

	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOriginsString,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH,HEAD",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, User-Agent, Cache-Control, X-Session-Token, X-Service-Token, X-Device-ID",
		ExposeHeaders:    "Content-Length, Content-Type, Authorization, X-Request-ID",
		AllowCredentials: true,
		MaxAge:           86400, // 24 hours
	}))

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL environment variable not set")
	}

	if err := utils.InitR2(); err != nil {
		log.Fatal("failed to initialize R2 client:", err)
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		log.Fatal("failed to connect to database:", err)
	}

	if err := db.AutoMigrate(
		&models.Event{},
		&models.DistanceTier{},
		&models.Booking{},
		&models.Companion{},
		&models.CheckIn{},
		&models.Badge{},
		&models.UserBadge{},
		&models.Border{},
		&models.UserBorder{},
		&models.EventUser{},
	); err != nil {
		log.Fatal("failed to migrate database:", err)
	}

	if err := utils.EnsureUploadDir(); err != nil {
		log.Fatal("failed to ensure upload dir:", err)
	}

	capacityService := services.NewCapacityService(db)
	tokenService := services.NewTokenService()
	eventService := services.NewEventService(db)
	bookingService := services.NewBookingService(db, capacityService, tokenService)
	paymentService := services.NewPaymentService(db, capacityService, tokenService)
	achievementService := services.NewAchievementService(db)

	if err := achievementService.EnsureSystemBadges(); err != nil {
		log.Fatal("failed to seed system badges:", err)
	}

	// --- Sibling service config ---
	syncServiceURL := os.Getenv("SYNC_SERVICE_URL")
	if syncServiceURL == "" {
		log.Fatal("SYNC_SERVICE_URL environment variable not set")
	}
	serviceToken := os.Getenv("BOOKING_SERVICE_TOKEN")
	if serviceToken == "" {
		log.Fatal("BOOKING_SERVICE_TOKEN environment variable not set")
	}
	authServiceURL := os.Getenv("AUTH_SERVICE_URL")
	if authServiceURL == "" {
		log.Fatal("AUTH_SERVICE_URL environment variable not set")
	}
	notifyServiceURL := os.Getenv("NOTIFY_SERVICE_URL") // optional, empty disables dispatch

	authClient := services.NewAuthServiceClient(authServiceURL, serviceToken)
	notifier := workers.NewNotifier(notifyServiceURL, serviceToken)

	checkinPool := workers.NewCheckinWorkerPool(achievementService, notifier, 2, 256)
	checkinService := services.NewCheckinService(db, tokenService, checkinPool)

	syncWorker := workers.NewEventUserSyncWorker(db, syncServiceURL, "/api/v1/public/profiles", serviceToken)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	checkinPool.Start(ctx)
	syncWorker.Start(ctx)
	eventService.StartCompletionScheduler()

	handlers.SetupEventRoutes(app, eventService)
	handlers.SetupBookingRoutes(app, bookingService, paymentService)
	handlers.SetupCheckinRoutes(app, checkinService, authClient)
	handlers.SetupAchievementRoutes(app, achievementService)

	app.Static("/uploads", "./uploads")

	go func() {
		if err := app.Listen(":5300"); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Println("✅ Server running on http://localhost:5300")
	log.Println("✅ Event User Sync Worker running")
	log.Println("✅ Check-in worker pool running")
	log.Println("✅ GatewayAuthMiddleware enforced globally — all requests must come from Gateway")
	log.Printf("✅ CORS configured for origins: %s", allowedOriginsString)

	<-ctx.Done()
	log.Println("Shutting down server...")
}
