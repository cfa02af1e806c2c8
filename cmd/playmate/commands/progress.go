package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/TimurManjosov/playmate/internal/cli"
	"github.com/TimurManjosov/playmate/internal/playerdata"
)

var (
	progressLevel     int
	progressScore     int
	progressHighScore int
)

var progressCmd = &cobra.Command{
	Use:   "progress",
	Short: "Show or change the saved progress of a game",
}

var progressGetCmd = &cobra.Command{
	Use:   "get <game>",
	Short: "Show the saved progress of a game",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		p, err := c.Progress(context.Background(), args[0])
		if err != nil {
			return fmt.Errorf("failed to get progress: %w", err)
		}
		if quiet {
			return nil
		}
		return cli.PrintProgress(cmd.OutOrStdout(), args[0], p, outputFormat())
	},
}

var progressSetCmd = &cobra.Command{
	Use:   "set <game>",
	Short: "Overwrite the saved progress of a game",
	Long: `Overwrite the saved progress of a game. The high score defaults to the score.

Example:
  playmate progress set tetris --level 4 --score 1200`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p := playerdata.Progress{Level: progressLevel, Score: progressScore, HighScore: progressHighScore}
		if !cmd.Flags().Changed("high-score") {
			p.HighScore = p.Score
		}

		c, err := newClient()
		if err != nil {
			return err
		}
		if err := c.SetProgress(context.Background(), args[0], p); err != nil {
			return fmt.Errorf("failed to save progress: %w", err)
		}
		if quiet {
			return nil
		}
		return cli.PrintProgress(cmd.OutOrStdout(), args[0], p, outputFormat())
	},
}

var progressResetCmd = &cobra.Command{
	Use:   "reset <game>",
	Short: "Remove the saved progress of a game",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		if err := c.ResetProgress(context.Background(), args[0]); err != nil {
			return fmt.Errorf("failed to reset progress: %w", err)
		}
		if !quiet {
			fmt.Fprintf(cmd.OutOrStdout(), "Progress for %s reset\n", args[0])
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(progressCmd)
	progressCmd.AddCommand(progressGetCmd)
	progressCmd.AddCommand(progressSetCmd)
	progressCmd.AddCommand(progressResetCmd)

	progressSetCmd.Flags().IntVar(&progressLevel, "level", 1, "Current level")
	progressSetCmd.Flags().IntVar(&progressScore, "score", 0, "Current score")
	progressSetCmd.Flags().IntVar(&progressHighScore, "high-score", 0, "High score (defaults to --score)")
}
