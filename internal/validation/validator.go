// Package validation provides validation rules for player data and request parameters.
package validation

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	// MaxGameIDLength is the maximum length for game ids
	MaxGameIDLength = 64
	// MaxThemeLength is the maximum length for theme names
	MaxThemeLength = 32
	// MaxEventNameLength is the maximum length for analytics event names
	MaxEventNameLength = 64
	// MaxEventDataSize is the maximum size of an event payload in bytes
	MaxEventDataSize = 4 * 1024
	// MaxBundleSize is the maximum size of an import document in bytes
	MaxBundleSize = 5 * 1024 * 1024
	// MaxPlayTimeSeconds caps a single play time report
	MaxPlayTimeSeconds = 24 * 60 * 60
)

// idPattern matches lowercase alphanumeric characters and hyphens
var idPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]*$`)

// eventPattern matches lowercase alphanumeric characters and underscores
var eventPattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

var difficulties = map[string]bool{"easy": true, "normal": true, "hard": true}

// ValidationResult holds the result of validation
type ValidationResult struct {
	Valid  bool
	Errors map[string]string
}

// NewValidationResult creates a new validation result
func NewValidationResult() *ValidationResult {
	return &ValidationResult{
		Valid:  true,
		Errors: make(map[string]string),
	}
}

// AddError adds a field error and marks the result as invalid
func (v *ValidationResult) AddError(field, message string) {
	v.Valid = false
	v.Errors[field] = message
}

// Merge combines another validation result into this one
func (v *ValidationResult) Merge(other *ValidationResult) {
	if other == nil {
		return
	}
	for field, message := range other.Errors {
		v.AddError(field, message)
	}
}

// ValidateGameID validates a game id. Ids become key prefixes, so the marker suffixes
// are rejected.
func ValidateGameID(id string) *ValidationResult {
	result := NewValidationResult()

	if strings.TrimSpace(id) == "" {
		result.AddError("gameId", "Game id is required")
		return result
	}

	if utf8.RuneCountInString(id) > MaxGameIDLength {
		result.AddError("gameId", "Game id must not exceed 64 characters")
		return result
	}

	if !idPattern.MatchString(id) {
		result.AddError("gameId", "Game id must contain only lowercase letters, digits, and hyphens")
		return result
	}

	return result
}

// ProgressParams contains the parameters for validating a progress update
type ProgressParams struct {
	Level     int
	Score     int
	HighScore int
}

// ValidateProgress validates a progress update
func ValidateProgress(p ProgressParams) *ValidationResult {
	result := NewValidationResult()

	if p.Level < 1 {
		result.AddError("level", "Level must be at least 1")
	}
	if p.Score < 0 {
		result.AddError("score", "Score must not be negative")
	}
	if p.HighScore < 0 {
		result.AddError("highScore", "High score must not be negative")
	}

	return result
}

// SettingsParams contains the parameters for validating settings
type SettingsParams struct {
	Theme      string
	Difficulty string
}

// ValidateSettings validates a settings update
func ValidateSettings(s SettingsParams) *ValidationResult {
	result := NewValidationResult()

	theme := strings.TrimSpace(s.Theme)
	if theme == "" {
		result.AddError("theme", "Theme is required")
	} else if utf8.RuneCountInString(theme) > MaxThemeLength {
		result.AddError("theme", "Theme must not exceed 32 characters")
	}

	if !difficulties[s.Difficulty] {
		result.AddError("difficulty", "Difficulty must be one of easy, normal, hard")
	}

	return result
}

// ValidateEventName validates an analytics event name
func ValidateEventName(name string) *ValidationResult {
	result := NewValidationResult()

	if name == "" {
		result.AddError("event", "Event name is required")
		return result
	}

	if utf8.RuneCountInString(name) > MaxEventNameLength {
		result.AddError("event", "Event name must not exceed 64 characters")
		return result
	}

	if !eventPattern.MatchString(name) {
		result.AddError("event", "Event name must be snake_case")
	}

	return result
}

// ValidateEventDataSize validates the encoded size of an event payload
func ValidateEventDataSize(raw []byte) *ValidationResult {
	result := NewValidationResult()

	if len(raw) > MaxEventDataSize {
		result.AddError("data", "Event data must not exceed 4KB")
	}

	return result
}

// ValidatePlayTime validates a play time report in seconds
func ValidatePlayTime(seconds int) *ValidationResult {
	result := NewValidationResult()

	if seconds <= 0 || seconds > MaxPlayTimeSeconds {
		result.AddError("seconds", "Play time must be between 1 second and 24 hours")
	}

	return result
}
