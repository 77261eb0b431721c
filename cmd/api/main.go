package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"tienda/internal/config"
	"tienda/internal/database"
	"tienda/internal/handlers"
	"tienda/internal/locks"
	"tienda/internal/logger"
	"tienda/internal/middleware"
	"tienda/internal/services"
	"tienda/internal/validator"

	_ "tienda/internal/docs" // Import swagger docs
)

// @title           Tienda API
// @version         1.0
// @description     Tienda is a point-of-sale backend where outside investors fund store inventory and earn a share of the profit on every sale of the stock they financed.

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

	// Register custom request validators
	validator.Register()

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
	if err := dbManager.RunMigrations(); err != nil {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}

	// Initialize services
	db := dbManager.DB()
	registry := locks.NewRegistry()

	userService := services.NewUserService(db)
	auditService := services.NewAuditService(db)
	ledgerService := services.NewLedgerService(db, registry)
	stockService := services.NewStockService(db)
	productService := services.NewProductService(db, stockService)
	investorService := services.NewInvestorService(db, registry, ledgerService, stockService)
	allocationService := services.NewAllocationService(ledgerService)
	saleService := services.NewSaleService(db, registry, stockService, allocationService)
	layawayService := services.NewLayawayService(db, registry, stockService, allocationService)

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(userService)
	investorHandler := handlers.NewInvestorHandler(investorService, ledgerService, auditService)
	productHandler := handlers.NewProductHandler(productService, stockService, auditService)
	saleHandler := handlers.NewSaleHandler(saleService, auditService)
	layawayHandler := handlers.NewLayawayHandler(layawayService, auditService)

	// Initialize Gin router
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogging())
	router.Use(middleware.ErrorHandler())

	// CORS middleware
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
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

	// API v1 group
	v1 := router.Group("/api/v1")

	// Public routes
	auth := v1.Group("/auth")
	auth.POST("/register", authHandler.Register)
	auth.POST("/login", authHandler.Login)
	auth.POST("/refresh", authHandler.Refresh)

	// Protected routes
	protected := v1.Group("/")
	protected.Use(middleware.AuthMiddleware())

	// Investor routes
	investors := protected.Group("/investors")
	investors.POST("", middleware.RequireCapability("investor.manage"), investorHandler.CreateInvestor)
	investors.GET("", middleware.RequireCapability("investor.manage"), investorHandler.ListInvestors)
	investors.GET("/:id", middleware.RequireCapability("investor.view"), investorHandler.GetInvestor)
	investors.POST("/:id/deposit", middleware.RequireCapability("ledger.manage"), investorHandler.Deposit)
	investors.POST("/:id/withdraw", middleware.RequireCapability("ledger.manage"), investorHandler.Withdraw)
	investors.POST("/:id/reinvest", middleware.RequireCapability("ledger.manage"), investorHandler.Reinvest)
	investors.GET("/:id/ledger", middleware.RequireCapability("ledger.view"), investorHandler.Ledger)
	investors.POST("/:id/purchases", middleware.RequireCapability("ledger.manage"), investorHandler.Purchase)
	investors.GET("/:id/assignments", middleware.RequireCapability("investor.view"), investorHandler.Assignments)

	// Product routes
	products := protected.Group("/products")
	products.POST("", middleware.RequireCapability("catalog.manage"), productHandler.CreateProduct)
	products.GET("", productHandler.ListProducts)
	products.GET("/:id", productHandler.GetProduct)
	products.POST("/:id/movements", middleware.RequireCapability("catalog.manage"), productHandler.RecordMovement)
	products.GET("/:id/movements", productHandler.ListMovements)

	// Sale routes
	sales := protected.Group("/sales")
	sales.POST("", middleware.RequireCapability("sales.create"), saleHandler.CreateSale)
	sales.GET("", middleware.RequireCapability("sales.view"), saleHandler.ListSales)
	sales.GET("/:id", middleware.RequireCapability("sales.view"), saleHandler.GetSale)
	sales.POST("/:id/confirm", middleware.RequireCapability("sales.confirm"), saleHandler.Confirm)
	sales.POST("/:id/void", middleware.RequireCapability("sales.void"), saleHandler.Void)

	// Layaway routes
	layaways := protected.Group("/layaways")
	layaways.POST("", middleware.RequireCapability("layaway.manage"), layawayHandler.Create)
	layaways.GET("", middleware.RequireCapability("layaway.manage"), layawayHandler.List)
	layaways.GET("/:id", middleware.RequireCapability("layaway.manage"), layawayHandler.Get)
	layaways.POST("/:id/payments", middleware.RequireCapability("layaway.manage"), layawayHandler.AddPayments)
	layaways.POST("/:id/extend", middleware.RequireCapability("layaway.manage"), layawayHandler.Extend)
	layaways.POST("/:id/expire", middleware.RequireCapability("layaway.manage"), layawayHandler.Expire)

	// Customer routes
	customers := protected.Group("/customers")
	customers.GET("/:id/credit", middleware.RequireCapability("layaway.manage"), layawayHandler.CustomerCredit)

	log.Infof("Starting Tienda backend server on port %s", appConfig.Port)
	log.Infof("Swagger documentation available at http://localhost:%s/swagger/index.html", appConfig.Port)
	return router.Run(":" + appConfig.Port)
}
