package config

import (
	"math"
	"path/filepath"
	"sort"
)

// SetDefaults registers every documented default. dataDir holds the
// credit stores unless their paths are configured.
func SetDefaults(v interface{ SetDefault(string, any) }, dataDir string) {
	v.SetDefault("detection.threshold", "5m")
	v.SetDefault("detection.check_interval", "1s")
	v.SetDefault("detection.warning_seconds", []int{60, 30, 10})
	v.SetDefault("detection.warning_message", "You will be marked AFK in {seconds} seconds.")
	v.SetDefault("detection.enabled_worlds", []string{})
	v.SetDefault("detection.bypass_permission", "afkguard.bypass")

	v.SetDefault("activity.history_capacity", 100)
	v.SetDefault("activity.movement_epsilon", 0.1)
	v.SetDefault("activity.score_window", "5m")

	v.SetDefault("patterns.enabled", true)
	v.SetDefault("patterns.interval", "10s")
	v.SetDefault("patterns.window", 40)
	v.SetDefault("patterns.min_samples", 20)
	v.SetDefault("patterns.violation_threshold", 3)
	v.SetDefault("patterns.workers", 4)
	v.SetDefault("patterns.confined_extent", 5.0)
	v.SetDefault("patterns.circle_radius", 3.0)
	v.SetDefault("patterns.circle_min_delta", 0.1)
	v.SetDefault("patterns.circle_max_delta", math.Pi/2)
	v.SetDefault("patterns.circle_ratio", 0.6)
	v.SetDefault("patterns.repetition_similarity", 0.8)
	v.SetDefault("patterns.repetition_scale", 5.0)
	v.SetDefault("patterns.pendulum_step", 0.5)
	v.SetDefault("patterns.pendulum_ratio", 0.3)
	v.SetDefault("patterns.message", "Suspicious movement detected. You have been marked AFK.")
	v.SetDefault("patterns.hold_against_movement", true)

	v.SetDefault("action.enabled", true)
	v.SetDefault("action.mode", "kick")
	v.SetDefault("action.delay", "60s")
	v.SetDefault("action.warning_seconds", []int{30, 10, 5})
	v.SetDefault("action.apply_to_manual", false)
	v.SetDefault("action.kick_reason", "afk")
	v.SetDefault("action.kick_message", "You were removed for being AFK.")
	v.SetDefault("action.warning_message", "You will be removed for being AFK in {seconds} seconds.")

	v.SetDefault("credits.enabled", true)
	v.SetDefault("credits.earn_permission", "afkguard.credits.earn")
	v.SetDefault("credits.earn_interval", "60s")
	v.SetDefault("credits.min_session", "5m")
	v.SetDefault("credits.min_activity_score", 30.0)
	v.SetDefault("credits.min_distinct_kinds", 0)
	v.SetDefault("credits.consume_enabled", true)
	v.SetDefault("credits.consume_interval", "60s")
	v.SetDefault("credits.low_balance_threshold", 5)
	v.SetDefault("credits.flush_interval", "30s")
	v.SetDefault("credits.record_history", true)
	for _, tier := range defaultTiers {
		prefix := "credits.tiers." + tier.name + "."
		v.SetDefault(prefix+"permission", tier.permission)
		v.SetDefault(prefix+"ratio_active", tier.ratioActive)
		v.SetDefault(prefix+"ratio_credit", 1)
		v.SetDefault(prefix+"max_balance", tier.maxBalance)
	}
	v.SetDefault("credits.rewards.enabled", false)
	v.SetDefault("credits.rewards.bonus_minutes", 1)
	v.SetDefault("credits.decay.enabled", true)
	v.SetDefault("credits.decay.expire_after_days", 30)
	v.SetDefault("credits.decay.warning_days", 3)
	v.SetDefault("credits.decay.interval", "24h")
	v.SetDefault("credits.zone.enabled", false)
	v.SetDefault("credits.zone.return_cooldown", "30s")
	v.SetDefault("credits.zone.max_return_distance", 0.0)

	v.SetDefault("storage.backend", BackendSQLite)
	v.SetDefault("storage.path", filepath.Join(dataDir, "credits.toml"))
	v.SetDefault("storage.sqlite_path", filepath.Join(dataDir, "credits.db"))

	v.SetDefault("permissions.defaults", []string{"afkguard.credits.earn"})

	v.SetDefault("scheduler.workers", 8)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("metrics.addr", "")
}

var defaultTiers = []struct {
	name        string
	permission  string
	ratioActive int
	maxBalance  int
}{
	{name: "default", ratioActive: 5, maxBalance: 120},
	{name: "vip", permission: "afkguard.tier.vip", ratioActive: 4, maxBalance: 240},
	{name: "premium", permission: "afkguard.tier.premium", ratioActive: 3, maxBalance: 480},
	{name: "admin", permission: "afkguard.tier.admin", ratioActive: 1, maxBalance: 1440},
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
