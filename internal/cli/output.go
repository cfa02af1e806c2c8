package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"gopkg.in/yaml.v3"

	"github.com/TimurManjosov/playmate/internal/client"
	"github.com/TimurManjosov/playmate/internal/playerdata"
)

// OutputFormat specifies the output format for CLI commands
type OutputFormat string

const (
	FormatTable OutputFormat = "table"
	FormatJSON  OutputFormat = "json"
	FormatYAML  OutputFormat = "yaml"
)

// render writes data as JSON or YAML, or hands a fresh table to fill for FormatTable.
func render(w io.Writer, format OutputFormat, data any, fill func(*tablewriter.Table) error) error {
	switch format {
	case FormatJSON:
		return printJSON(w, data)
	case FormatYAML:
		return printYAML(w, data)
	case FormatTable:
		table := tablewriter.NewWriter(w)
		if err := fill(table); err != nil {
			return err
		}
		return table.Render()
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

func printJSON(w io.Writer, data any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

func printYAML(w io.Writer, data any) error {
	encoder := yaml.NewEncoder(w)
	defer encoder.Close()
	encoder.SetIndent(2)
	return encoder.Encode(data)
}

// PrintSettings outputs the player settings
func PrintSettings(w io.Writer, s playerdata.Settings, format OutputFormat) error {
	return render(w, format, s, func(t *tablewriter.Table) error {
		t.Header("Setting", "Value")
		rows := [][]string{
			{"soundEnabled", strconv.FormatBool(s.SoundEnabled)},
			{"theme", s.Theme},
			{"difficulty", string(s.Difficulty)},
			{"autoSave", strconv.FormatBool(s.AutoSave)},
		}
		return t.Bulk(rows)
	})
}

// PrintProgress outputs the progress of one game
func PrintProgress(w io.Writer, gameID string, p playerdata.Progress, format OutputFormat) error {
	return render(w, format, p, func(t *tablewriter.Table) error {
		t.Header("Game", "Level", "Score", "High Score")
		return t.Append(gameID, strconv.Itoa(p.Level), strconv.Itoa(p.Score), strconv.Itoa(p.HighScore))
	})
}

// PrintGames outputs the catalog with unlock state
func PrintGames(w io.Writer, games []client.Game, format OutputFormat) error {
	return render(w, format, map[string][]client.Game{"games": games}, func(t *tablewriter.Table) error {
		t.Header("ID", "Title", "Category", "Price", "Unlocked", "High Score")
		for _, g := range games {
			if err := t.Append(
				g.ID,
				g.Title,
				string(g.Category),
				g.PriceLabel(),
				strconv.FormatBool(g.Unlocked),
				strconv.Itoa(g.Progress.HighScore),
			); err != nil {
				return err
			}
		}
		return nil
	})
}

// PrintPurchases outputs the purchase history
func PrintPurchases(w io.Writer, p client.Purchases, format OutputFormat) error {
	return render(w, format, p, func(t *tablewriter.Table) error {
		t.Header("Game", "Price", "Date")
		for _, pu := range p.Purchases {
			if err := t.Append(pu.GameID, fmt.Sprintf("$%.2f", pu.Price), pu.Date); err != nil {
				return err
			}
		}
		t.Footer("Total", fmt.Sprintf("$%.2f", p.TotalSpent), "")
		return nil
	})
}

// PrintStats outputs the statistics panel
func PrintStats(w io.Writer, s playerdata.Stats, format OutputFormat) error {
	return render(w, format, s, func(t *tablewriter.Table) error {
		lastPlayed := "never"
		if s.LastPlayed != nil {
			lastPlayed = *s.LastPlayed
		}
		t.Header("Stat", "Value")
		rows := [][]string{
			{"Games played", strconv.Itoa(s.GamesPlayed)},
			{"Play time", formatDuration(s.TotalPlayTime)},
			{"Unlocked", fmt.Sprintf("%d/%d", s.UnlockedGames, s.TotalGames)},
			{"Total spent", fmt.Sprintf("$%.2f", s.TotalSpent)},
			{"Best score", strconv.Itoa(s.BestScore)},
			{"Last played", lastPlayed},
		}
		for _, a := range s.RecentActivity {
			rows = append(rows, []string{a.Ago, a.Text})
		}
		return t.Bulk(rows)
	})
}

func formatDuration(seconds int) string {
	h, m := seconds/3600, (seconds%3600)/60
	if h > 0 {
		return fmt.Sprintf("%dh %dm", h, m)
	}
	return fmt.Sprintf("%dm %ds", m, seconds%60)
}
