package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var importDryRun bool

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Restore player data from a backup",
	Long: `Restore a backup bundle written by 'playmate export'. YAML bundles are converted
to JSON before upload. Requires the admin API key.

Examples:
  playmate import backup.json
  playmate import backup.yaml --dry-run`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read file: %w", err)
		}
		body, err := toJSON(data)
		if err != nil {
			return fmt.Errorf("failed to parse file: %w", err)
		}

		c, err := newClient()
		if err != nil {
			return err
		}
		res, err := c.Import(context.Background(), body, importDryRun)
		if err != nil {
			return fmt.Errorf("import failed: %w", err)
		}
		if quiet {
			return nil
		}

		out := cmd.OutOrStdout()
		verb := "Imported"
		if res.DryRun {
			verb = "Dry run: would import"
		}
		fmt.Fprintf(out, "%s settings=%v, %d purchase(s), %d game key(s)\n",
			verb, res.Result.Settings, res.Result.Purchases, res.Result.GameKeys)
		return nil
	},
}

// toJSON passes JSON through unchanged and converts a YAML bundle to JSON.
func toJSON(data []byte) ([]byte, error) {
	if json.Valid(data) {
		return data, nil
	}
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, fmt.Errorf("empty document")
	}
	return json.Marshal(doc)
}

func init() {
	rootCmd.AddCommand(importCmd)

	importCmd.Flags().BoolVar(&importDryRun, "dry-run", false, "Validate without importing")
}
