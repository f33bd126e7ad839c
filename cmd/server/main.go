package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"village-registry/internal/adapters/http/middleware"
	"village-registry/internal/adapters/http/routes"
	"village-registry/internal/adapters/lock"
	"village-registry/internal/adapters/persistence/models"
	"village-registry/internal/adapters/persistence/repositories"
	"village-registry/internal/adapters/render"
	"village-registry/internal/adapters/storage"
	"village-registry/internal/config"
	"village-registry/internal/core/services"
	"village-registry/internal/pkg/logger"
	"village-registry/internal/pkg/metrics"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// @title Village Registry API
// @version 1.0
// @description Resident registry with proof of address issuance and verification

// @BasePath /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

const issuerName = "Village Registry"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("failed to load configuration: %v", err)
	}

	log := logger.New(cfg.Log.Level, cfg.Log.Format)
	logrus.SetFormatter(log.Formatter)
	logrus.SetLevel(log.Level)

	// Connect to database
	db, err := config.ConnectDatabase(cfg)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer config.CloseDatabase(db)

	if err := models.AutoMigrate(db); err != nil {
		log.Fatalf("failed to auto migrate: %v", err)
	}
	log.Info("database migration completed")

	// Roles, permissions and the first administrator
	seedCtx, cancelSeed := context.WithTimeout(context.Background(), time.Minute)
	err = config.NewSeeder(db, cfg.Bootstrap, logger.Component(log, "seeder")).Run(seedCtx)
	cancelSeed()
	if err != nil {
		log.Fatalf("failed to seed roles: %v", err)
	}

	m := metrics.New(prometheus.DefaultRegisterer)
	repos := repositories.New(db)

	// Resident locks: shared through redis when configured, in-process otherwise
	var locker services.ResidentLocker = services.NewLocalResidentLocker()
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()

		pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
		err := rdb.Ping(pingCtx).Err()
		cancelPing()
		if err != nil {
			log.Fatalf("failed to connect to redis: %v", err)
		}
		locker = lock.NewRedisResidentLocker(rdb, 0, logger.Component(log, "locker"))
		log.WithField("addr", cfg.Redis.Addr).Info("resident locks held in redis")
	}

	// Artifact storage is optional; without it documents are verifiable by metadata only
	var artifacts services.ArtifactStore
	if cfg.Documents.StorageDir != "" {
		fs, err := storage.NewFileStore(cfg.Documents.StorageDir)
		if err != nil {
			log.Fatalf("failed to open document storage: %v", err)
		}
		artifacts = fs
	}

	sessions := services.NewSessionStore(cfg.Session.TTL)
	gate := services.NewSecurityGate(sessions, repos.Roles, m, logger.Component(log, "gate"))

	documentService := services.NewDocumentService(
		repos,
		services.NewReferenceGenerator(),
		render.NewPDFRenderer(issuerName),
		locker,
		services.DocumentOptions{
			Artifacts:        artifacts,
			Metrics:          m,
			Logger:           logger.Component(log, "documents"),
			MaxIssueAttempts: cfg.Documents.MaxIssueAttempts,
			StoreTimeout:     cfg.Database.Timeout,
		},
	)
	residentService := services.NewResidentService(repos, locker, m, logger.Component(log, "residents"), cfg.Database.Timeout)
	authService := services.NewAuthService(repos.Users, repos.Roles, sessions, cfg, logger.Component(log, "auth"))
	userService := services.NewUserService(repos.Users, repos.Roles, sessions, logger.Component(log, "users"))

	// Nightly artifact integrity sweep
	integrity := services.NewIntegrityService(repos.Documents, artifacts, cfg.Documents.IntegrityWorkers, m, logger.Component(log, "integrity"))
	if err := integrity.Start(cfg.Documents.IntegritySweepCron); err != nil {
		log.Fatalf("failed to schedule integrity sweep: %v", err)
	}
	defer integrity.Stop()

	// Create Fiber app
	app := fiber.New(fiber.Config{
		AppName:      "Village Registry API v1.0",
		ErrorHandler: middleware.CustomErrorHandler,
	})

	// Setup middlewares
	middleware.Setup(app, cfg, log)

	routes.Setup(app, &routes.Dependencies{
		DB:        db,
		Config:    cfg,
		Auth:      authService,
		Users:     userService,
		Gate:      gate,
		Residents: services.NewProtectedResidents(gate, residentService),
		Documents: services.NewProtectedDocuments(gate, documentService),
	})

	// Graceful shutdown
	go gracefulShutdown(app, log)

	log.WithFields(logrus.Fields{
		"port": cfg.Port,
		"mode": cfg.AppMode,
	}).Info("server starting")
	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatalf("failed to start server: %v", err)
	}
}

// gracefulShutdown handles graceful shutdown
func gracefulShutdown(app *fiber.App, log *logrus.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")
	if err := app.ShutdownWithTimeout(30 * time.Second); err != nil {
		log.Errorf("error during shutdown: %v", err)
	}
	log.Info("server stopped")
}
