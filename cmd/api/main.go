package main

import (
	"fmt"
	"net/http"
	"os"
	"registra/internal/config"
	"registra/internal/database"
	"registra/internal/handlers"
	"registra/internal/logger"
	"registra/internal/middleware"
	"registra/internal/services"
	"registra/internal/validator"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "registra/internal/docs" // Import swagger docs
)

// @title           Registra API
// @version         1.0
// @description     Registra is a share-registry service for dividend declarations: entitlement computation, multi-step approval, payment generation and reissue.
// @termsOfService  http://swagger.io/terms/

// @host      localhost:8080
// @BasePath  /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

func main() {
	// Initialize logger (use ENV var if available, default to development)
	logger.Init(os.Getenv("ENV"))
	defer logger.Sync()

	if err := run(); err != nil {
		logger.Get().Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	log := logger.Get()

	// Load configuration
	appConfig, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Initialize database configuration
	dbConfig, err := database.NewConfig()
	if err != nil {
		return fmt.Errorf("failed to load database configuration: %w", err)
	}

	// Create database manager
	dbManager, err := database.NewManager(dbConfig)
	if err != nil {
		return fmt.Errorf("failed to create database manager: %w", err)
	}

	// Run migrations
	if err := dbManager.Migrate(); err != nil {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}

	// Register custom binding validators
	validator.Register()

	// Initialize services
	db := dbManager.DB()
	eventService := services.NewEventService(db)
	declarationService := services.NewDeclarationService(db, eventService)
	entitlementService := services.NewEntitlementService(db)
	runService := services.NewRunService(db, eventService)
	workflowService := services.NewWorkflowService(db, eventService)
	paymentService := services.NewPaymentService(db, eventService)
	exportService := services.NewExportService(db, eventService)

	// Initialize handlers
	declarationHandler := handlers.NewDeclarationHandler(declarationService)
	entitlementHandler := handlers.NewEntitlementHandler(entitlementService, runService)
	workflowHandler := handlers.NewWorkflowHandler(workflowService, eventService)
	paymentHandler := handlers.NewPaymentHandler(paymentService)
	exportHandler := handlers.NewExportHandler(exportService)

	// Initialize Gin router
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogging())
	router.Use(middleware.ErrorHandler())

	// CORS middleware
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	// Swagger documentation
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Health check endpoint
	router.GET("/api/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// API v1 group; every route requires a bearer token from the identity
	// provider.
	v1 := router.Group("/api/v1")
	v1.Use(middleware.AuthMiddleware())

	// Declaration routes
	declarations := v1.Group("/declarations")
	declarations.POST("", declarationHandler.CreateDeclaration)
	declarations.GET("", declarationHandler.GetDeclarations)
	declarations.GET("/:id", declarationHandler.GetDeclaration)
	declarations.PUT("/:id", declarationHandler.UpdateDeclaration)
	declarations.DELETE("/:id", declarationHandler.DeleteDeclaration)

	// Entitlement computation and runs
	declarations.GET("/:id/entitlements/preview", entitlementHandler.PreviewEntitlements)
	declarations.GET("/:id/entitlements/totals", entitlementHandler.GetGrandTotals)
	declarations.POST("/:id/entitlements/preview-runs", entitlementHandler.RecordPreviewRun)
	declarations.POST("/:id/entitlements/freeze", entitlementHandler.FreezeEntitlements)
	declarations.GET("/:id/entitlements", entitlementHandler.GetFrozenEntitlements)
	declarations.GET("/:id/runs", entitlementHandler.GetRuns)

	// Workflow routes
	declarations.POST("/:id/submit", workflowHandler.SubmitDeclaration)
	declarations.POST("/:id/decisions", workflowHandler.RecordDecision)
	declarations.POST("/:id/go-live", workflowHandler.GoLive)
	declarations.POST("/:id/archive", workflowHandler.ArchiveDeclaration)
	declarations.POST("/:id/delegations", workflowHandler.CreateDelegation)
	declarations.GET("/:id/delegations", workflowHandler.GetDelegations)
	declarations.DELETE("/:id/delegations/:delegation_id", workflowHandler.RevokeDelegation)
	declarations.GET("/:id/actions", workflowHandler.GetActions)
	declarations.GET("/:id/events", workflowHandler.GetEvents)

	// Payment routes
	declarations.POST("/:id/payments/generate", paymentHandler.GeneratePayments)
	declarations.GET("/:id/payments", paymentHandler.GetPayments)
	payments := v1.Group("/payments")
	payments.PATCH("/:id/status", paymentHandler.UpdatePaymentStatus)
	payments.POST("/:id/reissue", paymentHandler.ReissuePayment)

	// Export routes
	declarations.GET("/:id/export/csv", exportHandler.ExportEntitlementsCSV)

	log.Infof("Starting Registra backend server on port %s", appConfig.Port)
	log.Infof("Swagger documentation available at http://localhost:%s/swagger/index.html", appConfig.Port)
	return router.Run(":" + appConfig.Port)
}
