package main

import (
	"log"
	"net/http"
	"os"
	"time"

	"habitquest-api/internal/api"
	"habitquest-api/internal/api/handlers"
	"habitquest-api/internal/config"
	"habitquest-api/internal/database"
	"habitquest-api/internal/llm"
	"habitquest-api/internal/migrations"
	"habitquest-api/internal/quota"
	"habitquest-api/internal/repository"
	"habitquest-api/internal/services"

	"github.com/joho/godotenv"
	"github.com/rs/cors"
	"github.com/stripe/stripe-go/v72"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: Error loading .env file: %v", err)
	}

	stripe.Key = os.Getenv("STRIPE_SECRET_KEY")

	// Initialize database connection
	db, err := database.InitDB()
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	// Get underlying *sql.DB instance for connection pool settings
	sqlDB, err := db.DB()
	if err != nil {
		log.Fatal("Failed to get underlying *sql.DB instance:", err)
	}

	// Configure connection pool
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(25)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)

	if err := migrations.SeedFounderInventory(db); err != nil {
		log.Fatal("Failed to seed founder inventory:", err)
	}

	// Initialize repositories
	userRepo := repository.NewUserRepository(db)
	subscriptionRepo := repository.NewSubscriptionRepository(db)
	rateLimitRepo := repository.NewRateLimitRepository(db)
	aiUsageRepo := repository.NewAIUsageRepository(db)
	founderRepo := repository.NewFounderRepository(db)
	questRepo := repository.NewQuestRepository(db)

	// Initialize services
	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		log.Fatal("JWT_SECRET environment variable is required")
	}

	quotaConfig := config.NewQuotaConfig()

	cacheService, err := services.NewRedisCacheService(config.NewCacheConfig())
	if err != nil {
		log.Fatal("Failed to connect to Redis:", err)
	}

	authService := services.NewAuthService(userRepo, subscriptionRepo, jwtSecret)
	quotaService := services.NewQuotaService(rateLimitRepo, quotaConfig)
	aiUsageService := services.NewAIUsageService(aiUsageRepo, quotaConfig)
	founderService := services.NewFounderService(founderRepo, subscriptionRepo)
	questService := services.NewQuestService(questRepo, userRepo, llm.NewClient())

	// In-memory limiter for anonymous traffic; per-instance by design.
	publicStore := quota.NewMemoryStore()
	publicStore.StartSweeper(time.Hour)
	defer publicStore.Close()

	// Initialize handlers
	routeHandlers := api.Handlers{
		Auth:   handlers.NewAuthHandler(authService),
		Quest:  handlers.NewQuestHandler(questService, quotaService, aiUsageService),
		Usage:  handlers.NewUsageHandler(quotaService, aiUsageService),
		Bonus:  handlers.NewBonusHandler(quotaService, userRepo),
		Admin:  handlers.NewAdminHandler(rateLimitRepo, founderService, cacheService),
		Stripe: handlers.NewStripeHandler(authService, founderService, userRepo),
	}

	router := api.SetupRoutes(db, authService, publicStore, routeHandlers)

	corsMiddleware := cors.New(cors.Options{
		AllowedOrigins: []string{getAllowedOrigin()},
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodPatch,
			http.MethodDelete,
			http.MethodOptions,
		},
		AllowedHeaders: []string{
			"Accept",
			"Authorization",
			"Content-Type",
			"X-CSRF-Token",
		},
		ExposedHeaders: []string{
			"X-RateLimit-Limit",
			"X-RateLimit-Remaining",
			"X-RateLimit-Reset",
		},
		AllowCredentials: true,
		MaxAge:           300, // Maximum value not ignored by any of major browsers
	})

	// Create server with timeouts
	srv := &http.Server{
		Handler:      corsMiddleware.Handler(router),
		Addr:         ":" + getPort(),
		WriteTimeout: 15 * time.Second,
		ReadTimeout:  15 * time.Second,
	}

	// Start server
	log.Printf("Server starting on port %s...", getPort())
	log.Fatal(srv.ListenAndServe())
}

func getPort() string {
	port := os.Getenv("PORT")
	if port == "" {
		port = "5050"
	}
	return port
}

func getAllowedOrigin() string {
	origin := os.Getenv("CORS_ORIGIN")
	if origin == "" {
		origin = "http://localhost:3000"
	}
	return origin
}
