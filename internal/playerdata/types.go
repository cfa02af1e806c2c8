package playerdata

import "time"

// Difficulty is the global difficulty preference.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyNormal Difficulty = "normal"
	DifficultyHard   Difficulty = "hard"
)

// Valid reports whether d is one of the known difficulties.
func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyEasy, DifficultyNormal, DifficultyHard:
		return true
	}
	return false
}

// Settings are the user's app-wide preferences.
type Settings struct {
	SoundEnabled bool       `json:"soundEnabled" yaml:"soundEnabled"`
	Theme        string     `json:"theme" yaml:"theme"`
	Difficulty   Difficulty `json:"difficulty" yaml:"difficulty"`
	AutoSave     bool       `json:"autoSave" yaml:"autoSave"`
}

// DefaultSettings returns the settings used when none are stored.
func DefaultSettings() Settings {
	return Settings{
		SoundEnabled: true,
		Theme:        "default",
		Difficulty:   DifficultyNormal,
		AutoSave:     true,
	}
}

// Progress is the saved state of one game.
type Progress struct {
	Level     int `json:"level" yaml:"level"`
	Score     int `json:"score" yaml:"score"`
	HighScore int `json:"highScore" yaml:"highScore"`
}

// DefaultProgress returns the progress of a game never played.
func DefaultProgress() Progress {
	return Progress{Level: 1, Score: 0, HighScore: 0}
}

// Purchase records one simulated unlock purchase.
type Purchase struct {
	GameID string  `json:"gameId" yaml:"gameId"`
	Price  float64 `json:"price" yaml:"price"`
	Date   string  `json:"date" yaml:"date"` // RFC 3339, millisecond precision, UTC
}

// Event is one analytics record.
type Event struct {
	Event     string         `json:"event" yaml:"event"`
	Timestamp string         `json:"timestamp" yaml:"timestamp"`
	Data      map[string]any `json:"data" yaml:"data"`
}

// EventLog is the persisted ring buffer of analytics events, oldest first.
type EventLog struct {
	Events []Event `json:"events" yaml:"events"`
}

// Summary aggregates play activity independently of the event log.
type Summary struct {
	GamesPlayed   int     `json:"gamesPlayed" yaml:"gamesPlayed"`
	TotalPlayTime int     `json:"totalPlayTime" yaml:"totalPlayTime"` // seconds
	LastPlayed    *string `json:"lastPlayed" yaml:"lastPlayed"`
}

// Bundle is the export document; Import accepts the same shape back.
type Bundle struct {
	Settings  Settings          `json:"settings" yaml:"settings"`
	Purchases []Purchase        `json:"purchases" yaml:"purchases"`
	Analytics EventLog          `json:"analytics" yaml:"analytics"`
	Games     map[string]string `json:"games" yaml:"games"`
}

// ImportResult reports what an import wrote.
type ImportResult struct {
	Settings  bool `json:"settings"`
	Purchases int  `json:"purchases"`
	GameKeys  int  `json:"gameKeys"`
}

// timestampLayout matches the ISO 8601 form browsers produce for Date.toISOString.
const timestampLayout = "2006-01-02T15:04:05.000Z"

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

// ParseTimestamp parses a timestamp written by this package.
func ParseTimestamp(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}
