package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/TimurManjosov/playmate/internal/client"
	"github.com/TimurManjosov/playmate/internal/shell"
)

var resetYes bool

var resetPrompts = map[string]string{
	"progress":  shell.PromptResetProgress,
	"purchases": shell.PromptResetPurchases,
	"all":       shell.PromptResetData,
}

var resetCmd = &cobra.Command{
	Use:       "reset <progress|purchases|all>",
	Short:     "Clear progress, purchases or all player data",
	ValidArgs: []string{"progress", "purchases", "all"},
	Long: `Clear player data. Asks for confirmation unless --yes is given.
Requires the admin API key.

Examples:
  playmate reset progress
  playmate reset all --yes`,
	Args: cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		scope := args[0]
		if !resetYes && !confirm(cmd, resetPrompts[scope]) {
			fmt.Fprintln(cmd.OutOrStdout(), "Cancelled")
			return nil
		}

		c, err := newClient()
		if err != nil {
			return err
		}
		err = c.Reset(context.Background(), scope, true)
		if errors.Is(err, client.ErrConfirmationRequired) {
			return fmt.Errorf("server refused the reset: %w", err)
		}
		if err != nil {
			return fmt.Errorf("reset failed: %w", err)
		}
		if !quiet {
			fmt.Fprintf(cmd.OutOrStdout(), "Reset %s\n", scope)
		}
		return nil
	},
}

// confirm asks prompt on the command's input and accepts y or yes.
func confirm(cmd *cobra.Command, prompt string) bool {
	fmt.Fprintf(cmd.OutOrStdout(), "%s [y/N]: ", prompt)
	line, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}

func init() {
	rootCmd.AddCommand(resetCmd)

	resetCmd.Flags().BoolVarP(&resetYes, "yes", "y", false, "Skip the confirmation prompt")
}
