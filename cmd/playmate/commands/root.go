package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/TimurManjosov/playmate/internal/cli"
	"github.com/TimurManjosov/playmate/internal/client"
)

var (
	// Global flags
	baseURL string
	apiKey  string
	env     string
	format  string
	quiet   bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "playmate",
	Short: "CLI tool for managing playmate player data",
	Long: `Playmate is a command-line tool for the playmate game portal server.

It reads and changes settings and game progress, unlocks paid games,
shows statistics, and backs up or restores all player data.

Examples:
  playmate settings get
  playmate settings set --theme dark --difficulty hard
  playmate progress set snake --level 3 --score 120
  playmate unlock maze-runner
  playmate export --output backup.json
  playmate import backup.json --dry-run
  playmate reset all --yes`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags available to all commands
	rootCmd.PersistentFlags().StringVar(&baseURL, "base-url", "", "Base URL of the playmate API")
	rootCmd.PersistentFlags().StringVar(&apiKey, "api-key", "", "Admin API key (import and reset)")
	rootCmd.PersistentFlags().StringVar(&env, "env", "", "Named environment from the config file")
	rootCmd.PersistentFlags().StringVar(&format, "format", "table", "Output format (table, json, yaml)")
	rootCmd.PersistentFlags().BoolVar(&quiet, "quiet", false, "Suppress output")
}

func newClient() (*client.Client, error) {
	envCfg, err := cli.GetEnvConfig(env, baseURL, apiKey)
	if err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}
	return client.NewClient(envCfg.BaseURL, envCfg.APIKey), nil
}

func outputFormat() cli.OutputFormat { return cli.OutputFormat(format) }
