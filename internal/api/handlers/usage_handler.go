package handlers

import (
	"net/http"

	"habitquest-api/internal/config"
	"habitquest-api/internal/services"
)

type UsageHandler struct {
	quotaService services.QuotaService
	aiUsage      services.AIUsageService
}

func NewUsageHandler(quotaService services.QuotaService, aiUsage services.AIUsageService) *UsageHandler {
	return &UsageHandler{
		quotaService: quotaService,
		aiUsage:      aiUsage,
	}
}

// GetCurrentUsage reports the caller's quest-transform window and AI
// feature usage for client display.
func (h *UsageHandler) GetCurrentUsage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, ok := services.UserFromContext(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	subscription, ok := services.SubscriptionFromContext(ctx)
	if !ok {
		respondWithError(w, http.StatusForbidden, "Subscription not found")
		return
	}

	endpointUsage, err := h.quotaService.Usage(ctx, user.ID.String(), subscription.PlanType, questTransformEndpoint)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Error fetching usage")
		return
	}

	aiUsage, err := h.aiUsage.CheckAIRateLimit(ctx, user.ID.String(), config.FeatureQuestTransform)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Error fetching AI usage")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"plan":     subscription.PlanType,
		"endpoint": endpointUsage,
		"ai":       aiUsage,
	})
}
