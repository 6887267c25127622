// Package server assembles the HTTP API: services, handlers, middleware and
// routes.
package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"gorm.io/gorm"

	"solconta/internal/config"
	_ "solconta/internal/docs" // Import swagger docs
	"solconta/internal/handlers"
	"solconta/internal/mailer"
	"solconta/internal/middleware"
	"solconta/internal/oauth"
	"solconta/internal/ratelimit"
	"solconta/internal/services"
	"solconta/internal/validator"
)

// Options overrides collaborators that are otherwise built from the config.
type Options struct {
	Mailer    mailer.Sender
	Providers oauth.Registry
}

// NewRouter wires the API on top of db.
func NewRouter(cfg *config.Config, db *gorm.DB, opts Options) *gin.Engine {
	if opts.Mailer == nil {
		opts.Mailer = mailer.New(cfg)
	}
	if opts.Providers == nil {
		opts.Providers = oauth.NewRegistry(cfg)
	}

	validator.Register()

	// Services
	auditService := services.NewAuditService(db)
	identityService := services.NewIdentityService(db, services.IdentityOptions{
		AppURL:      cfg.AppURL,
		AutoConfirm: cfg.AutoConfirm,
		Mailer:      opts.Mailer,
		Providers:   opts.Providers,
	})
	categoryService := services.NewCategoryService(db)
	transactionService := services.NewTransactionService(db)
	dashboardService := services.NewDashboardService(transactionService, cfg.Location)

	// Handlers
	authHandler := handlers.NewAuthHandler(identityService, auditService, cfg.AppURL)
	categoryHandler := handlers.NewCategoryHandler(categoryService, auditService)
	transactionHandler := handlers.NewTransactionHandler(transactionService, auditService)
	dashboardHandler := handlers.NewDashboardHandler(dashboardService)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogging())
	router.Use(middleware.ErrorHandler())
	router.Use(cors())

	// Swagger documentation
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Health check endpoint
	router.GET("/api/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := router.Group("/api/v1")

	// Public routes
	auth := v1.Group("/auth")
	auth.POST("/refresh", authHandler.Refresh)
	auth.GET("/oauth/:provider", authHandler.OAuthStart)
	auth.GET("/oauth/:provider/callback", authHandler.OAuthCallback)

	// Credential and email endpoints are throttled per client IP.
	limiter := ratelimit.New(cfg.AuthRatePerMinute, cfg.AuthRatePerMinute)
	throttled := auth.Group("", middleware.RateLimit(limiter))
	throttled.POST("/signup", authHandler.SignUp)
	throttled.POST("/login", authHandler.Login)
	throttled.POST("/confirm", authHandler.Confirm)
	throttled.POST("/recover", authHandler.Recover)
	throttled.POST("/recover/verify", authHandler.RecoverVerify)

	// Protected routes
	protected := v1.Group("/")
	protected.Use(middleware.AuthMiddleware())

	protected.POST("/auth/logout", authHandler.Logout)
	protected.PUT("/auth/password", authHandler.UpdatePassword)
	protected.GET("/profile", authHandler.GetProfile)

	transactions := protected.Group("/transactions")
	transactions.GET("", transactionHandler.ListTransactions)
	transactions.POST("", transactionHandler.CreateTransaction)
	transactions.GET("/:id", transactionHandler.GetTransaction)
	transactions.PUT("/:id", transactionHandler.UpdateTransaction)
	transactions.DELETE("/:id", transactionHandler.DeleteTransaction)

	categories := protected.Group("/categories")
	categories.GET("", categoryHandler.ListCategories)
	categories.POST("", categoryHandler.CreateCategory)
	categories.DELETE("/:id", categoryHandler.DeleteCategory)

	protected.GET("/dashboard", dashboardHandler.GetDashboard)

	return router
}

func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
