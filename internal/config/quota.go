package config

import (
	"time"

	"habitquest-api/internal/models"
)

// FailurePolicy decides what a quota check does when the underlying
// store cannot be reached.
type FailurePolicy int

const (
	// FailClosed rejects the request when the check itself errors.
	FailClosed FailurePolicy = iota
	// FailOpen allows the request when the check itself errors.
	FailOpen
)

// QuotaConfig holds the per-plan endpoint limits and the fixed per-feature
// daily limits for AI-backed features.
type QuotaConfig struct {
	// Daily request limits per endpoint, keyed by subscription plan.
	// A limit of -1 means unlimited.
	EndpointLimits map[models.SubscriptionPlan]int

	// Daily call limits per AI feature, independent of plan.
	AIFeatureLimits map[string]int

	// Policy applied when a persisted quota lookup fails.
	EndpointFailure FailurePolicy
	// Policy applied when an AI usage lookup fails.
	AIFailure FailurePolicy

	// Window for the persisted endpoint counters.
	EndpointWindow time.Duration
}

const (
	FeatureQuestTransform = "quest_transform"
	FeatureBackstory      = "backstory"
	FeatureBossNarration  = "boss_narration"
)

func NewQuotaConfig() *QuotaConfig {
	return &QuotaConfig{
		EndpointLimits: map[models.SubscriptionPlan]int{
			models.FreePlan:    50,
			models.FounderPlan: 500,
		},
		AIFeatureLimits: map[string]int{
			FeatureQuestTransform: 20,
			FeatureBackstory:      5,
			FeatureBossNarration:  10,
		},
		// Endpoint counters guard cost directly, so a broken lookup blocks.
		// AI checks degrade to allow so an infrastructure hiccup never
		// locks legitimate users out of their quests.
		EndpointFailure: FailClosed,
		AIFailure:       FailOpen,
		EndpointWindow:  24 * time.Hour,
	}
}

// LimitFor returns the daily endpoint limit for a plan, falling back to the
// free tier for unknown plans.
func (c *QuotaConfig) LimitFor(plan models.SubscriptionPlan) int {
	if limit, ok := c.EndpointLimits[plan]; ok {
		return limit
	}
	return c.EndpointLimits[models.FreePlan]
}

// AILimitFor returns the daily limit for a feature, or 0 if the feature is
// unknown (unknown features are never allowed).
func (c *QuotaConfig) AILimitFor(feature string) int {
	return c.AIFeatureLimits[feature]
}
