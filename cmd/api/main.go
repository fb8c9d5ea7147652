package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go-inventory-ledger/internal/config"
	"go-inventory-ledger/internal/handler"
	"go-inventory-ledger/internal/repository"
	"go-inventory-ledger/internal/service"
	"go-inventory-ledger/internal/stream"
	"go-inventory-ledger/internal/ws"
	"go-inventory-ledger/pkg/database"
	"go-inventory-ledger/pkg/jwt"
	applog "go-inventory-ledger/pkg/logger"
	"go-inventory-ledger/pkg/telemetry"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlog "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// 1. Load Env
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Telemetry and logging
	shutdownTelemetry, err := telemetry.Setup(ctx, telemetry.Config{
		Endpoint:    cfg.OtelEndpoint,
		ServiceName: cfg.ServiceName,
		Insecure:    cfg.OtelInsecure,
	})
	if err != nil {
		log.Fatalf("telemetry: %v", err)
	}

	zl, err := applog.New(cfg.AppEnv)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	if cfg.OtelEndpoint != "" {
		zl = applog.WithOTel(zl, cfg.ServiceName)
	}
	defer zl.Sync() //nolint:errcheck

	// 3. Setup Database
	db, err := database.Open(cfg.Database)
	if err != nil {
		zl.Fatal("database connection failed", zap.Error(err))
	}
	if err := repository.Migrate(db); err != nil {
		zl.Fatal("migration failed", zap.Error(err))
	}

	// 4. Observers
	hub := ws.NewHub(zl.Named("ws"))
	go hub.Run(ctx)

	observers := service.Observers{service.LogObserver{Log: zl.Named("ledger")}, hub}
	var publisher *stream.Publisher
	if len(cfg.KafkaBrokers) > 0 {
		publisher = stream.NewPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, zl.Named("kafka"))
		observers = append(observers, publisher)
	}

	// 5. Dependency Injection (Wiring Layers)
	txm := repository.NewTxManager(db)
	productRepo := repository.NewProductRepo(db)
	txRepo := repository.NewTransactionRepo(db)
	userRepo := repository.NewUserRepo(db)

	catalogService := service.NewCatalogService(txm, productRepo, observers, service.CatalogOptions{LogOpeningStock: cfg.LogOpeningStock})
	stockService := service.NewStockService(txm, observers)
	queryService := service.NewQueryService(productRepo, txRepo, cfg.Location)
	reconciler := service.NewReconciler(txm, productRepo, observers)
	dashService := service.NewDashboardService(productRepo, txRepo, cfg.Location)
	authService := service.NewAuthService(userRepo, jwt.NewManager(cfg.JWTSecret, 0))

	seedAdmin(ctx, zl, authService, userRepo, cfg)

	// 6. Setup Fiber
	app := fiber.New(fiber.Config{
		AppName: "Inventory Ledger v1.0",
	})

	// Middleware
	app.Use(fiberlog.New()) // Logging request
	app.Use(recover.New())  // Panic recovery
	app.Use(cors.New())     // CORS

	// 7. Routes
	handler.Routes{
		Auth:          handler.NewAuthHandler(authService, zl),
		Inventory:     handler.NewInventoryHandler(catalogService, stockService, queryService, zl),
		Admin:         handler.NewAdminHandler(reconciler, zl),
		Dashboard:     handler.NewDashboardHandler(dashService, zl),
		Hub:           hub,
		Authenticator: authService,
	}.Mount(app)

	// 8. Graceful Shutdown
	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			zl.Error("listen failed", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	zl.Info("shutting down server")

	if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		zl.Error("server forced to shutdown", zap.Error(err))
	}
	if publisher != nil {
		if err := publisher.Close(); err != nil {
			zl.Error("kafka writer close failed", zap.Error(err))
		}
	}

	flushCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := shutdownTelemetry(flushCtx); err != nil {
		zl.Error("telemetry shutdown failed", zap.Error(err))
	}

	zl.Info("server exited")
}

// seedAdmin creates the configured first account if it does not exist yet.
func seedAdmin(ctx context.Context, zl *zap.Logger, auth service.AuthService, users repository.UserRepository, cfg config.Config) {
	if cfg.AdminEmail == "" || cfg.AdminPassword == "" {
		return
	}
	if _, err := users.FindByEmail(ctx, cfg.AdminEmail); err == nil {
		return
	} else if !errors.Is(err, repository.ErrNotFound) {
		zl.Warn("admin lookup failed", zap.Error(err))
		return
	}

	_, err := auth.Register(ctx, service.RegisterInput{
		Email:    cfg.AdminEmail,
		Password: cfg.AdminPassword,
		FullName: "Administrator",
	})
	if err != nil {
		zl.Warn("failed to create admin user", zap.Error(err))
		return
	}
	zl.Info("admin user created", zap.String("email", cfg.AdminEmail))
}
