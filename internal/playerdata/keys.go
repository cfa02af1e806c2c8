package playerdata

import "strings"

// Fixed keys of the player data namespace.
const (
	SettingsKey  = "playmate_settings"
	PurchasesKey = "playmate_purchases"
	AnalyticsKey = "playmate_analytics"
	SummaryKey   = "playmate_analytics_state"
)

const (
	progressSuffix = "_progress"
	unlockedSuffix = "_unlocked"
	unlockedValue  = "true"
)

// ProgressKey is the key holding the progress of gameID.
func ProgressKey(gameID string) string { return gameID + progressSuffix }

// UnlockKey is the key holding the unlock marker of gameID.
func UnlockKey(gameID string) string { return gameID + unlockedSuffix }

// Bulk resets and export match by substring, not suffix, so keys written by
// older builds with trailing qualifiers are still picked up.
func isProgressKey(key string) bool { return strings.Contains(key, progressSuffix) }

func isUnlockKey(key string) bool { return strings.Contains(key, unlockedSuffix) }

func isGameKey(key string) bool { return isProgressKey(key) || isUnlockKey(key) }
