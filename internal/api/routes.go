package api

import (
	"net/http"
	"time"

	"habitquest-api/internal/api/handlers"
	"habitquest-api/internal/middleware"
	"habitquest-api/internal/quota"
	"habitquest-api/internal/services"

	"github.com/gorilla/mux"
	"gorm.io/gorm"
)

// Handlers collects everything the router mounts.
type Handlers struct {
	Auth   *handlers.AuthHandler
	Quest  *handlers.QuestHandler
	Usage  *handlers.UsageHandler
	Bonus  *handlers.BonusHandler
	Admin  *handlers.AdminHandler
	Stripe *handlers.StripeHandler
}

// SetupRoutes wires the public, authenticated and admin route groups.
// Public routes sit behind the per-instance in-memory limiter keyed by
// client IP; authenticated routes rely on the persisted quotas inside the
// handlers.
func SetupRoutes(db *gorm.DB, authService services.AuthService, publicStore *quota.MemoryStore, h Handlers) *mux.Router {
	router := mux.NewRouter()
	router.Use(middleware.LoggingMiddleware)

	publicLimiter := middleware.NewPublicRateLimiter(publicStore, 20, 5*time.Minute)

	// Public routes
	public := router.NewRoute().Subrouter()
	public.Use(publicLimiter.RateLimit)
	public.HandleFunc("/auth/register", h.Auth.Register).Methods("POST")
	public.HandleFunc("/auth/login", h.Auth.Login).Methods("POST")

	router.HandleFunc("/health", handlers.HealthCheckHandler(db)).Methods("GET")

	// Stripe signs its own requests; no rate limiting in front of it.
	router.HandleFunc("/webhooks/stripe", h.Stripe.HandleStripeWebhook).Methods("POST")

	// API routes (protected)
	apiRouter := router.PathPrefix("/api/v1").Subrouter()
	apiRouter.Use(middleware.AuthMiddleware(authService))

	apiRouter.HandleFunc("/me", h.Auth.Me).Methods("GET")
	apiRouter.HandleFunc("/quests", h.Quest.ListQuests).Methods("GET")
	apiRouter.HandleFunc("/quests/transform", h.Quest.TransformTask).Methods("POST")
	apiRouter.HandleFunc("/quests/{id}/complete", h.Quest.CompleteQuest).Methods("POST")
	apiRouter.HandleFunc("/bonus/daily", h.Bonus.ClaimDailyBonus).Methods("POST")
	apiRouter.HandleFunc("/usage", h.Usage.GetCurrentUsage).Methods("GET")
	apiRouter.HandleFunc("/checkout", h.Stripe.HandleCreateCheckout).Methods("POST")

	// Admin routes
	adminRouter := router.PathPrefix("/admin").Subrouter()
	adminRouter.Use(middleware.AdminMiddleware(authService))

	adminRouter.HandleFunc("/rate-limits", h.Admin.GetRateLimits).Methods("GET")
	adminRouter.HandleFunc("/rate-limits/clear", h.Admin.ClearRateLimit).Methods("POST")
	adminRouter.HandleFunc("/founder-inventory", h.Admin.GetFounderInventory).Methods("GET")
	adminRouter.HandleFunc("/founder-inventory", h.Admin.AdjustFounderInventory).Methods("POST")

	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Not found", http.StatusNotFound)
	})

	return router
}
