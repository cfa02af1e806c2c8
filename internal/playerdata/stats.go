package playerdata

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/TimurManjosov/playmate/internal/catalog"
)

const recentActivityLimit = 5

// Stats is the statistics panel of the games page.
type Stats struct {
	GamesPlayed    int        `json:"gamesPlayed" yaml:"gamesPlayed"`
	TotalPlayTime  int        `json:"totalPlayTime" yaml:"totalPlayTime"`
	UnlockedGames  int        `json:"unlockedGames" yaml:"unlockedGames"`
	TotalGames     int        `json:"totalGames" yaml:"totalGames"`
	TotalSpent     float64    `json:"totalSpent" yaml:"totalSpent"`
	BestScore      int        `json:"bestScore" yaml:"bestScore"`
	LastPlayed     *string    `json:"lastPlayed" yaml:"lastPlayed"`
	RecentActivity []Activity `json:"recentActivity" yaml:"recentActivity"`
}

// Activity is one line of the recent activity list.
type Activity struct {
	Event     string `json:"event" yaml:"event"`
	Text      string `json:"text" yaml:"text"`
	Timestamp string `json:"timestamp" yaml:"timestamp"`
	Ago       string `json:"ago" yaml:"ago"`
}

// Stats computes the statistics over games.
func (m *Manager) Stats(ctx context.Context, games []catalog.Game) Stats {
	sum := m.state.Summary()
	st := Stats{
		GamesPlayed:    sum.GamesPlayed,
		TotalPlayTime:  sum.TotalPlayTime,
		TotalGames:     len(games),
		LastPlayed:     sum.LastPlayed,
		RecentActivity: []Activity{},
	}
	for _, g := range games {
		if g.Free || m.IsGameUnlocked(ctx, g.ID) {
			st.UnlockedGames++
		}
		if hs := m.GameProgress(ctx, g.ID).HighScore; hs > st.BestScore {
			st.BestScore = hs
		}
	}
	for _, p := range m.Purchases(ctx) {
		st.TotalSpent += p.Price
	}

	events := m.Events(ctx).Events
	now := m.clock.Now()
	for i := len(events) - 1; i >= 0 && len(st.RecentActivity) < recentActivityLimit; i-- {
		e := events[i]
		st.RecentActivity = append(st.RecentActivity, Activity{
			Event:     e.Event,
			Text:      describe(e),
			Timestamp: e.Timestamp,
			Ago:       timeAgo(e.Timestamp, now),
		})
	}
	return st
}

func describe(e Event) string {
	game, _ := e.Data["gameId"].(string)
	game = strings.Replace(game, "-", " ", 1)
	switch e.Event {
	case EventGameStart:
		return "Started " + game
	case EventGameComplete:
		return fmt.Sprintf("Completed %s (Score: %v)", game, e.Data["score"])
	case EventPurchase:
		return "Purchased " + game
	default:
		return strings.Replace(e.Event, "_", " ", 1)
	}
}

func timeAgo(ts string, now time.Time) string {
	t, err := ParseTimestamp(ts)
	if err != nil {
		return ""
	}
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "Just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d/time.Minute))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d/time.Hour))
	default:
		return fmt.Sprintf("%dd ago", int(d/(24*time.Hour)))
	}
}
