package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/TimurManjosov/playmate/internal/cli"
	"github.com/TimurManjosov/playmate/internal/client"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show or change player settings",
}

var settingsGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Show the current settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		s, err := c.Settings(context.Background())
		if err != nil {
			return fmt.Errorf("failed to get settings: %w", err)
		}
		if quiet {
			return nil
		}
		return cli.PrintSettings(cmd.OutOrStdout(), s, outputFormat())
	},
}

var settingsSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Change one or more settings",
	Long: `Change settings. Only the flags that are given are updated.

Examples:
  playmate settings set --theme dark
  playmate settings set --sound=false --difficulty easy`,
	RunE: func(cmd *cobra.Command, args []string) error {
		var u client.SettingsUpdate
		flags := cmd.Flags()
		if flags.Changed("sound") {
			v, _ := flags.GetBool("sound")
			u.SoundEnabled = &v
		}
		if flags.Changed("theme") {
			v, _ := flags.GetString("theme")
			u.Theme = &v
		}
		if flags.Changed("difficulty") {
			v, _ := flags.GetString("difficulty")
			u.Difficulty = &v
		}
		if flags.Changed("auto-save") {
			v, _ := flags.GetBool("auto-save")
			u.AutoSave = &v
		}
		if u == (client.SettingsUpdate{}) {
			return fmt.Errorf("nothing to change: pass at least one of --sound, --theme, --difficulty, --auto-save")
		}

		c, err := newClient()
		if err != nil {
			return err
		}
		s, err := c.UpdateSettings(context.Background(), u)
		if err != nil {
			return fmt.Errorf("failed to save settings: %w", err)
		}
		if quiet {
			return nil
		}
		return cli.PrintSettings(cmd.OutOrStdout(), s, outputFormat())
	},
}

func init() {
	rootCmd.AddCommand(settingsCmd)
	settingsCmd.AddCommand(settingsGetCmd)
	settingsCmd.AddCommand(settingsSetCmd)

	settingsSetCmd.Flags().Bool("sound", true, "Enable sound")
	settingsSetCmd.Flags().String("theme", "", "Theme name")
	settingsSetCmd.Flags().String("difficulty", "", "Difficulty (easy, normal, hard)")
	settingsSetCmd.Flags().Bool("auto-save", true, "Save progress automatically")
}
