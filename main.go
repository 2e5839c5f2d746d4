package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"yetkaz/internal/config"
	"yetkaz/internal/handlers"
	"yetkaz/internal/middleware"
	"yetkaz/internal/models"
	"yetkaz/internal/repositories"
	"yetkaz/internal/services"
	"yetkaz/pkg/rabbitmq"
)

func main() {
	cfg := config.Load()

	// --- Logging ---
	var zlog *zap.Logger
	var err error
	if cfg.Production() {
		zlog, err = zap.NewProduction()
	} else {
		zlog, err = zap.NewDevelopment()
	}
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer zlog.Sync()
	logger := zlog.Sugar()

	// --- Database ---
	db, err := openDatabase(cfg)
	if err != nil {
		logger.Fatalw("failed to connect to database", "error", err)
	}
	if err := db.AutoMigrate(
		&models.User{}, &models.Product{}, &models.Branch{},
		&models.Order{}, &models.OrderItem{}, &models.OrderCounter{},
		&models.Payment{}, &models.Coupon{}, &models.CouponUsage{},
	); err != nil {
		logger.Fatalw("failed to migrate database", "error", err)
	}

	// --- Redis (driver location store) ---
	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	locationStore := repositories.NewRedisLocationStore(redisClient)

	// --- RabbitMQ (notification dispatcher) ---
	// The core never waits on notifications; a missing broker only degrades
	// them to log lines.
	var notifier services.Notifier
	mqClient, err := rabbitmq.NewClient(rabbitmq.Config{URL: cfg.RabbitMQURL})
	if err != nil {
		logger.Warnw("RabbitMQ unavailable, notifications disabled", "error", err)
	} else {
		notifier = mqClient
		defer mqClient.Close()
	}

	// --- Repositories ---
	orderRepo := repositories.NewGORMOrderRepository(db)
	paymentRepo := repositories.NewGORMPaymentRepository(db)
	productRepo := repositories.NewGORMProductRepository(db)
	userRepo := repositories.NewGORMUserRepository(db)
	branchRepo := repositories.NewGORMBranchRepository(db)
	couponRepo := repositories.NewGORMCouponRepository(db)

	// --- Services ---
	couponService := services.NewCouponService(couponRepo)
	orderService := services.NewOrderService(orderRepo, productRepo, userRepo, couponService, logger)
	paymentService := services.NewPaymentService(paymentRepo, orderRepo, cfg, logger)
	trackingService := services.NewTrackingService(orderRepo, userRepo, branchRepo, locationStore, logger)

	// --- Handlers ---
	exposeInternal := !cfg.Production()
	orderHandler := handlers.NewOrderHandler(orderService, notifier, logger, exposeInternal)
	paymentHandler := handlers.NewPaymentHandler(paymentService, notifier, logger, exposeInternal)
	promoHandler := handlers.NewPromoHandler(couponService, exposeInternal)
	trackingHandler := handlers.NewTrackingHandler(trackingService, notifier, logger, exposeInternal)

	// --- Fiber app ---
	app := fiber.New()
	app.Use(fiberlogger.New())

	apiV1 := app.Group("/api/v1")

	// Provider callbacks authenticate by signature/merchant reference, not
	// by bearer token.
	paymentHandler.RegisterCallbackRoutes(apiV1)

	protected := apiV1.Group("", middleware.AuthRequired(cfg.JWTSecret))
	orderHandler.RegisterRoutes(protected)
	paymentHandler.RegisterRoutes(protected)
	promoHandler.RegisterRoutes(protected)
	trackingHandler.RegisterRoutes(protected)

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "healthy"})
	})

	// --- Start HTTP server with graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Infow("starting server", "port", cfg.AppPort, "env", cfg.Environment)
		if err := app.Listen(cfg.AppPort); err != nil {
			logger.Fatalw("server failed", "error", err)
		}
	}()

	<-quit
	logger.Info("shutting down server")
	if err := app.Shutdown(); err != nil {
		logger.Errorw("error during shutdown", "error", err)
	}
	logger.Info("server stopped")
}

// openDatabase connects to Postgres when DATABASE_URL is set and falls back
// to a local sqlite file for development.
func openDatabase(cfg config.Config) (*gorm.DB, error) {
	if cfg.DatabaseURL != "" {
		return gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{})
	}
	return gorm.Open(sqlite.Open("yetkaz.db"), &gorm.Config{})
}
