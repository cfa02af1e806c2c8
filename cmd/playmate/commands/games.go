package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/TimurManjosov/playmate/internal/cli"
)

var gamesCategory string

var gamesCmd = &cobra.Command{
	Use:   "games",
	Short: "List the game catalog",
	Long: `List every game with its price, unlock state and high score.

Examples:
  playmate games
  playmate games --category puzzle --format json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		games, err := c.ListGames(context.Background(), gamesCategory)
		if err != nil {
			return fmt.Errorf("failed to list games: %w", err)
		}
		if quiet {
			return nil
		}
		return cli.PrintGames(cmd.OutOrStdout(), games, outputFormat())
	},
}

var unlockCmd = &cobra.Command{
	Use:   "unlock <game>",
	Short: "Unlock a paid game",
	Long: `Unlock a paid game and record the purchase at its catalog price.

Example:
  playmate unlock snake`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		res, err := c.Unlock(context.Background(), args[0])
		if err != nil {
			return fmt.Errorf("failed to unlock game: %w", err)
		}
		if quiet {
			return nil
		}
		if !res.Unlocked {
			fmt.Fprintf(cmd.OutOrStdout(), "%s is already unlocked\n", res.GameID)
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Unlocked %s for $%.2f\n", res.GameID, res.Price)
		return nil
	},
}

var purchasesCmd = &cobra.Command{
	Use:   "purchases",
	Short: "List recorded purchases",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		p, err := c.Purchases(context.Background())
		if err != nil {
			return fmt.Errorf("failed to list purchases: %w", err)
		}
		if quiet {
			return nil
		}
		return cli.PrintPurchases(cmd.OutOrStdout(), p, outputFormat())
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show play statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		s, err := c.Stats(context.Background())
		if err != nil {
			return fmt.Errorf("failed to get stats: %w", err)
		}
		if quiet {
			return nil
		}
		return cli.PrintStats(cmd.OutOrStdout(), s, outputFormat())
	},
}

func init() {
	rootCmd.AddCommand(gamesCmd)
	rootCmd.AddCommand(unlockCmd)
	rootCmd.AddCommand(purchasesCmd)
	rootCmd.AddCommand(statsCmd)

	gamesCmd.Flags().StringVar(&gamesCategory, "category", "", "Only list one category (puzzle, educational, action)")
}
