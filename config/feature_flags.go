package config

import (
	"hash/fnv"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

// FeatureFlags manages feature toggles and gradual rollouts.
// Progression mechanics that reshape incentives (adaptive targets, the
// return protocol) are rolled out to a stable user bucket first, so a
// user's experience never flips back and forth between runs.
type FeatureFlags struct {
	mu sync.RWMutex

	features map[string]*Feature

	// Override rules (for testing/debugging)
	userOverrides map[string]map[string]bool // userID -> feature -> enabled
}

// Feature represents a single feature flag.
type Feature struct {
	Name        string
	Description string
	Enabled     bool

	// Rollout percentage (0-100)
	// Users are assigned based on hash of their ID
	RolloutPercent int

	// Time-based activation
	EnabledFrom  *time.Time
	EnabledUntil *time.Time
}

// FeatureContext provides context for feature flag evaluation.
type FeatureContext struct {
	UserID string
}

// Predefined feature flag names.
const (
	// === Progression Features ===
	FeatureProgressionDebuff     = "progression.debuff"     // Penalty after a missed day
	FeatureProgressionReturn     = "progression.return"     // Return protocol for absentees
	FeatureProgressionMilestones = "progression.milestones" // Milestone level celebrations

	// === Quest Features ===
	FeatureQuestAdaptiveTargets = "quest.adaptive_targets" // 14-day target adaptation
	FeatureQuestManualOverride  = "quest.manual_override"  // User-pinned targets
	FeatureQuestReset           = "quest.reset"            // Quest completion reversal

	// === Maintenance Features ===
	FeatureMaintenanceVerifyChains = "maintenance.verify_chains" // Periodic ledger audit

	// === Experimental Features ===
	FeatureExperimentalSnapshots = "experimental.snapshots" // Redis snapshot cache
)

// LoadFeatureFlags loads feature flags from environment variables.
func LoadFeatureFlags() *FeatureFlags {
	ff := &FeatureFlags{
		features:      make(map[string]*Feature),
		userOverrides: make(map[string]map[string]bool),
	}

	ff.initializeDefaults()
	ff.loadFromEnvironment()

	return ff
}

// initializeDefaults sets up all features with default values.
func (ff *FeatureFlags) initializeDefaults() {
	// Core progression mechanics - enabled by default
	ff.features[FeatureProgressionDebuff] = &Feature{
		Name:           FeatureProgressionDebuff,
		Description:    "Apply XP debuff after a missed day",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureProgressionReturn] = &Feature{
		Name:           FeatureProgressionReturn,
		Description:    "Offer the return protocol to long-absent users",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureProgressionMilestones] = &Feature{
		Name:           FeatureProgressionMilestones,
		Description:    "Celebrate milestone levels",
		Enabled:        true,
		RolloutPercent: 100,
	}

	// Quest features
	ff.features[FeatureQuestAdaptiveTargets] = &Feature{
		Name:           FeatureQuestAdaptiveTargets,
		Description:    "Adapt targets to the trailing 14-day window",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureQuestManualOverride] = &Feature{
		Name:           FeatureQuestManualOverride,
		Description:    "Allow users to pin a manual target",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureQuestReset] = &Feature{
		Name:           FeatureQuestReset,
		Description:    "Allow reversing a completed quest",
		Enabled:        true,
		RolloutPercent: 100,
	}

	// Maintenance
	ff.features[FeatureMaintenanceVerifyChains] = &Feature{
		Name:           FeatureMaintenanceVerifyChains,
		Description:    "Periodic ledger hash chain verification",
		Enabled:        true,
		RolloutPercent: 100,
	}

	// Experimental - gradual rollout
	ff.features[FeatureExperimentalSnapshots] = &Feature{
		Name:           FeatureExperimentalSnapshots,
		Description:    "Serve progression snapshots from Redis",
		Enabled:        true,
		RolloutPercent: 100,
	}
}

// loadFromEnvironment loads feature flag overrides from env vars.
// Format: FEATURE_<NAME>=true|false|<percent>
// Example: FEATURE_QUEST_ADAPTIVE_TARGETS=true
// Example: FEATURE_EXPERIMENTAL_SNAPSHOTS=50 (50% rollout)
func (ff *FeatureFlags) loadFromEnvironment() {
	for name, feature := range ff.features {
		envKey := featureNameToEnvKey(name)
		if val := os.Getenv(envKey); val != "" {
			// Try parsing as boolean
			if b, err := strconv.ParseBool(val); err == nil {
				feature.Enabled = b
				if b {
					feature.RolloutPercent = 100
				} else {
					feature.RolloutPercent = 0
				}
				continue
			}

			// Try parsing as percentage
			if p, err := strconv.Atoi(val); err == nil && p >= 0 && p <= 100 {
				feature.Enabled = p > 0
				feature.RolloutPercent = p
			}
		}
	}
}

// featureNameToEnvKey converts feature name to environment variable key.
// "quest.adaptive_targets" -> "FEATURE_QUEST_ADAPTIVE_TARGETS"
func featureNameToEnvKey(name string) string {
	key := strings.ToUpper(name)
	key = strings.ReplaceAll(key, ".", "_")
	return "FEATURE_" + key
}

// IsEnabled checks if a feature is enabled for the given context.
func (ff *FeatureFlags) IsEnabled(featureName string, ctx *FeatureContext) bool {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	// Check user overrides first
	if ctx != nil && ctx.UserID != "" {
		if userOverrides, ok := ff.userOverrides[ctx.UserID]; ok {
			if enabled, ok := userOverrides[featureName]; ok {
				return enabled
			}
		}
	}

	feature, ok := ff.features[featureName]
	if !ok {
		return false
	}

	if !feature.Enabled {
		return false
	}

	// Check time-based activation
	now := time.Now()
	if feature.EnabledFrom != nil && now.Before(*feature.EnabledFrom) {
		return false
	}
	if feature.EnabledUntil != nil && now.After(*feature.EnabledUntil) {
		return false
	}

	// Check rollout percentage
	if feature.RolloutPercent < 100 && ctx != nil && ctx.UserID != "" {
		return ff.isInRollout(ctx.UserID, featureName, feature.RolloutPercent)
	}

	return feature.RolloutPercent > 0
}

// isInRollout determines if a user is in the rollout percentage.
// Uses consistent hashing so users stay in their bucket.
func (ff *FeatureFlags) isInRollout(userID, featureName string, percent int) bool {
	h := fnv.New32a()
	h.Write([]byte(featureName))
	h.Write([]byte(userID))
	hash := h.Sum32()

	// Map to 0-99 range
	bucket := int(hash % 100)

	return bucket < percent
}

// SetUserOverride sets a feature override for a specific user.
// Useful for testing and debugging.
func (ff *FeatureFlags) SetUserOverride(userID, featureName string, enabled bool) {
	ff.mu.Lock()
	defer ff.mu.Unlock()

	if _, ok := ff.userOverrides[userID]; !ok {
		ff.userOverrides[userID] = make(map[string]bool)
	}
	ff.userOverrides[userID][featureName] = enabled
}

// ClearUserOverrides removes all overrides for a user.
func (ff *FeatureFlags) ClearUserOverrides(userID string) {
	ff.mu.Lock()
	defer ff.mu.Unlock()
	delete(ff.userOverrides, userID)
}

// SetRolloutPercent updates the rollout percentage for a feature.
// Thread-safe for live updates.
func (ff *FeatureFlags) SetRolloutPercent(featureName string, percent int) error {
	ff.mu.Lock()
	defer ff.mu.Unlock()

	feature, ok := ff.features[featureName]
	if !ok {
		return ErrFeatureNotFound
	}

	if percent < 0 || percent > 100 {
		return ErrInvalidRolloutPercent
	}

	feature.RolloutPercent = percent
	feature.Enabled = percent > 0

	return nil
}

// EnableFeature enables a feature at 100% rollout.
func (ff *FeatureFlags) EnableFeature(featureName string) error {
	return ff.SetRolloutPercent(featureName, 100)
}

// DisableFeature disables a feature completely.
func (ff *FeatureFlags) DisableFeature(featureName string) error {
	return ff.SetRolloutPercent(featureName, 0)
}

// GetAllFeatures returns a copy of all feature configurations.
func (ff *FeatureFlags) GetAllFeatures() map[string]*Feature {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	result := make(map[string]*Feature, len(ff.features))
	for k, v := range ff.features {
		featureCopy := *v
		result[k] = &featureCopy
	}
	return result
}

// --- Errors ---

var (
	ErrFeatureNotFound       = &FeatureFlagError{Message: "feature not found"}
	ErrInvalidRolloutPercent = &FeatureFlagError{Message: "rollout percent must be 0-100"}
)

// FeatureFlagError represents a feature flag error.
type FeatureFlagError struct {
	Message string
}

func (e *FeatureFlagError) Error() string {
	return e.Message
}
