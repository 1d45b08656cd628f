package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq"
	"github.com/pildhora/backend/internal/audit"
	"github.com/pildhora/backend/internal/blob"
	"github.com/pildhora/backend/internal/config"
	"github.com/pildhora/backend/internal/device"
	"github.com/pildhora/backend/internal/handler"
	"github.com/pildhora/backend/internal/middleware"
	"github.com/pildhora/backend/internal/pdf"
	"github.com/pildhora/backend/internal/repository"
	"github.com/pildhora/backend/internal/service"
	"go.uber.org/zap"
)

var (
	logger *zap.Logger
	pool   *pgxpool.Pool
	cfg    *config.Config
)

func main() {
	// Load configuration
	var err error
	cfg, err = config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize Zap logger
	if cfg.Server.Environment == "production" {
		logger, err = zap.NewProduction()
	} else {
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	logger.Info("Configuration loaded successfully",
		zap.String("environment", cfg.Server.Environment),
		zap.String("port", cfg.Server.Port),
	)

	// Initialize database connection pool with pgx
	pool, err = pgxpool.New(context.Background(), cfg.Database.URL)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer pool.Close()

	if err := pool.Ping(context.Background()); err != nil {
		logger.Fatal("Failed to ping database", zap.Error(err))
	}
	logger.Info("Successfully connected to database")

	// Initialize Redis-backed device registry
	redisClient, err := device.NewClient(context.Background(), cfg.Redis.URL)
	if err != nil {
		logger.Fatal("Failed to connect to redis", zap.Error(err))
	}
	registry := device.NewRegistry(redisClient, logger)
	defer registry.Close()

	// Initialize blob storage client for reports
	reportBlobClient, err := blob.NewClient(
		cfg.Storage.AccountName,
		cfg.Storage.AccountKey,
		cfg.Storage.ReportContainer,
		logger,
	)
	if err != nil {
		logger.Fatal("Failed to initialize report blob storage client", zap.Error(err))
	}

	// Initialize repositories
	medicationRepo := repository.NewMedicationRepository(pool, logger)
	eventRepo := repository.NewEventRepository(pool, logger)
	intakeRepo := repository.NewIntakeRepository(pool, logger)
	linkRepo := repository.NewDeviceLinkRepository(pool, logger)
	reportRepo := repository.NewReportRepository(pool, logger)

	// Initialize audit logger
	auditLogger := audit.NewLogger(pool, logger)

	// Initialize services
	alarmService := service.NewAlarmService(medicationRepo, linkRepo, registry, logger)
	medicationService := service.NewMedicationService(medicationRepo, eventRepo, intakeRepo, alarmService, logger)
	inventoryService := service.NewInventoryService(medicationRepo, logger)
	adherenceService := service.NewAdherenceService(intakeRepo, medicationRepo, logger)
	linkService := service.NewDeviceLinkService(linkRepo, auditLogger, logger)
	syncService := service.NewSyncService(eventRepo, registry, cfg.Sync, logger)
	gdprService := service.NewGDPRService(pool, auditLogger, logger)

	// Initialize PDF generator and report service
	pdfGenerator := pdf.NewGenerator(logger)
	reportService := service.NewReportService(
		reportRepo,
		eventRepo,
		medicationRepo,
		adherenceService,
		pdfGenerator,
		reportBlobClient,
		logger,
	)

	// Initialize handlers
	medicationHandler := handler.NewMedicationHandler(medicationService, inventoryService, linkService, logger)
	eventHandler := handler.NewEventHandler(syncService, adherenceService, linkService, logger)
	linkHandler := handler.NewDeviceLinkHandler(linkService, logger)
	deviceHandler := handler.NewDeviceHandler(registry, linkService, logger)
	reportHandler := handler.NewReportHandler(reportService, linkService, logger)
	gdprHandler := handler.NewGDPRHandler(gdprService, logger)

	// Start the event sync worker
	syncCtx, stopSync := context.WithCancel(context.Background())
	defer stopSync()
	go syncService.Run(syncCtx)

	// Set Gin mode
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Initialize Gin router
	r := gin.New()

	// Add recovery middleware (must be first)
	r.Use(middleware.RecoveryMiddleware(logger))

	// Add CORS middleware
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"}, // Configure appropriately for production
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID"},
		ExposeHeaders:    []string{"Content-Length", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// Add request ID middleware
	r.Use(middleware.RequestIDMiddleware())

	// Add request logging middleware
	r.Use(middleware.RequestLoggingMiddleware(logger))

	// Add error logging middleware
	r.Use(middleware.ErrorLoggingMiddleware(logger))

	// Health check endpoint
	r.GET("/health", healthCheck(registry))

	// Authenticated API routes
	v1 := r.Group("/api/v1")
	v1.Use(middleware.AuthMiddleware(cfg.Auth.JWTSecret, logger))
	{
		v1.POST("/medications", medicationHandler.CreateMedication)
		v1.GET("/medications/:id", medicationHandler.GetMedication)
		v1.PUT("/medications/:id", medicationHandler.UpdateMedication)
		v1.DELETE("/medications/:id", medicationHandler.DeleteMedication)
		v1.POST("/medications/:id/intakes", medicationHandler.RecordIntake)
		v1.POST("/medications/:id/refill", medicationHandler.Refill)
		v1.GET("/medications/:id/inventory", medicationHandler.GetInventory)

		v1.GET("/patients/:patientId/medications", medicationHandler.ListMedications)
		v1.GET("/patients/:patientId/inventory/low", medicationHandler.ListLowStock)
		v1.GET("/patients/:patientId/events", eventHandler.ListEvents)
		v1.POST("/patients/:patientId/events/requeue", eventHandler.RequeueEvents)
		v1.GET("/patients/:patientId/adherence", eventHandler.GetAdherence)
		v1.GET("/patients/:patientId/intakes", eventHandler.ListIntakes)

		v1.POST("/devices/codes", linkHandler.IssueCode)
		v1.POST("/devices/links", linkHandler.RedeemCode)
		v1.GET("/devices/links", linkHandler.ListLinks)
		v1.DELETE("/devices/links/:id", linkHandler.RevokeLink)

		v1.POST("/devices/:id/heartbeat", deviceHandler.Heartbeat)
		v1.GET("/devices/:id/state", deviceHandler.GetState)
		v1.POST("/devices/:id/commands", deviceHandler.SendCommand)
		v1.GET("/devices/:id/commands", deviceHandler.DrainCommands)

		v1.POST("/reports", reportHandler.GenerateReport)
		v1.GET("/reports/:id", reportHandler.GetReport)

		v1.DELETE("/users/:userId/data", gdprHandler.DeleteUserData)
		v1.GET("/users/:userId/export", gdprHandler.ExportUserData)
	}

	// Start server with graceful shutdown
	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: r,
	}

	go func() {
		logger.Info("Starting server", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	// Stop the sync worker before closing its backing stores
	stopSync()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	pool.Close()

	logger.Info("Server exited")
}

// healthCheck reports connectivity to the backing stores
func healthCheck(registry *device.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		if err := pool.Ping(ctx); err != nil {
			logger.Error("health check failed: database unreachable", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "unhealthy",
				"database": "disconnected",
				"error":    err.Error(),
			})
			return
		}

		if err := registry.Ping(ctx); err != nil {
			logger.Error("health check failed: redis unreachable", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unhealthy",
				"redis":  "disconnected",
				"error":  err.Error(),
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":   "healthy",
			"database": "connected",
			"redis":    "connected",
			"service":  "pildhora-backend",
			"version":  "1.0.0",
		})
	}
}
