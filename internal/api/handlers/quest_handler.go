package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"habitquest-api/internal/config"
	"habitquest-api/internal/models"
	"habitquest-api/internal/services"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

const questTransformEndpoint = "quests/transform"

type QuestHandler struct {
	questService services.QuestService
	quotaService services.QuotaService
	aiUsage      services.AIUsageService
}

func NewQuestHandler(questService services.QuestService, quotaService services.QuotaService, aiUsage services.AIUsageService) *QuestHandler {
	return &QuestHandler{
		questService: questService,
		quotaService: quotaService,
		aiUsage:      aiUsage,
	}
}

type transformRequest struct {
	Task string `json:"task"`
}

// TransformTask converts a to-do item into a quest. Two quotas apply: the
// plan's daily endpoint window and the fixed per-feature AI limit derived
// from the usage log.
func (h *QuestHandler) TransformTask(w http.ResponseWriter, r *http.Request) {
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

	var req transformRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	req.Task = strings.TrimSpace(req.Task)
	if req.Task == "" {
		respondWithError(w, http.StatusBadRequest, "Task is required")
		return
	}

	decision, err := h.quotaService.Allow(ctx, user.ID.String(), subscription.PlanType, questTransformEndpoint)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Error checking rate limit")
		return
	}
	if !decision.Allowed {
		respondQuotaExceeded(w, decision.ResetAt)
		return
	}

	aiCheck, err := h.aiUsage.CheckAIRateLimit(ctx, user.ID.String(), config.FeatureQuestTransform)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Error checking AI quota")
		return
	}
	if !aiCheck.Allowed {
		respondQuotaExceeded(w, aiCheck.ResetAt)
		return
	}

	quest, err := h.questService.TransformTask(ctx, user.ID, req.Task)
	if err != nil {
		respondWithError(w, http.StatusBadGateway, "Error transforming task")
		return
	}

	h.aiUsage.LogAIUsage(ctx, user.ID.String(), config.FeatureQuestTransform, models.JSON{
		"quest_id": quest.ID.String(),
	})

	respondWithJSON(w, http.StatusCreated, map[string]interface{}{
		"quest":     quest,
		"remaining": aiCheck.Remaining - 1,
	})
}

func (h *QuestHandler) CompleteQuest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, ok := services.UserFromContext(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	questID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid quest ID")
		return
	}

	updated, err := h.questService.CompleteQuest(ctx, user.ID, questID)
	if err != nil {
		respondWithError(w, http.StatusNotFound, "Quest not found or already completed")
		return
	}

	respondWithJSON(w, http.StatusOK, updated)
}

func (h *QuestHandler) ListQuests(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, ok := services.UserFromContext(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	limit, offset := ParsePaginationParams(r)

	quests, err := h.questService.ListQuests(ctx, user.ID, limit, offset)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Error fetching quests")
		return
	}

	respondWithJSON(w, http.StatusOK, quests)
}

func respondQuotaExceeded(w http.ResponseWriter, resetAt time.Time) {
	wait := time.Until(resetAt).Round(time.Minute)
	if wait < time.Minute {
		wait = time.Minute
	}

	respondWithJSON(w, http.StatusTooManyRequests, map[string]interface{}{
		"error":    "quota_exceeded",
		"message":  "Daily limit reached. Try again in " + wait.String() + ".",
		"reset_at": resetAt,
	})
}
