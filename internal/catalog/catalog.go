// Package catalog holds the fixed list of games shipped with PlayMate.
package catalog

import "fmt"

// Category groups games on the games page.
type Category string

const (
	CategoryPuzzle      Category = "puzzle"
	CategoryEducational Category = "educational"
	CategoryAction      Category = "action"
)

// Game describes one catalog entry.
type Game struct {
	ID          string   `json:"id" yaml:"id"`
	Title       string   `json:"title" yaml:"title"`
	Description string   `json:"description" yaml:"description"`
	Category    Category `json:"category" yaml:"category"`
	Price       float64  `json:"price" yaml:"price"`
	Free        bool     `json:"free" yaml:"free"`
}

// PriceLabel formats the price the way game cards show it.
func (g Game) PriceLabel() string {
	if g.Free {
		return "FREE"
	}
	return fmt.Sprintf("$%.2f", g.Price)
}

var games = []Game{
	{ID: "word-search", Title: "Word Search", Description: "Find hidden words in a grid of letters", Category: CategoryPuzzle, Free: true},
	{ID: "memory-match", Title: "Memory Match", Description: "Flip cards and match the pairs", Category: CategoryPuzzle, Free: true},
	{ID: "2048", Title: "2048", Description: "Slide tiles and combine numbers to reach 2048", Category: CategoryPuzzle, Free: true},
	{ID: "color-match", Title: "Color Match", Description: "Match the color to its name before time runs out", Category: CategoryEducational, Free: true},
	{ID: "math-quiz", Title: "Math Quiz", Description: "Solve arithmetic problems against the clock", Category: CategoryEducational, Free: true},
	{ID: "platform-jump", Title: "Platform Jump", Description: "Jump between platforms and climb as high as you can", Category: CategoryAction, Free: true},
	{ID: "typing-test", Title: "Typing Test", Description: "Measure your typing speed and accuracy", Category: CategoryEducational, Free: true},
	{ID: "snake", Title: "Snake", Description: "Eat, grow, and avoid your own tail", Category: CategoryAction, Price: 0.05},
	{ID: "maze-runner", Title: "Maze Runner", Description: "Escape randomly generated mazes", Category: CategoryPuzzle, Price: 0.10},
	{ID: "brick-breaker", Title: "Brick Breaker", Description: "Break every brick with the bouncing ball", Category: CategoryAction, Price: 0.25},
}

// Games returns the catalog in display order. The returned slice is a copy.
func Games() []Game {
	out := make([]Game, len(games))
	copy(out, games)
	return out
}

// Lookup finds a game by id.
func Lookup(id string) (Game, bool) {
	for _, g := range games {
		if g.ID == id {
			return g, true
		}
	}
	return Game{}, false
}

// ByCategory returns the games of one category in display order.
func ByCategory(c Category) []Game {
	var out []Game
	for _, g := range games {
		if g.Category == c {
			out = append(out, g)
		}
	}
	return out
}
