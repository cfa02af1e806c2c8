package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var exportOutput string

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export all player data to a file",
	Long: `Export settings, purchases, analytics and every saved game key as a backup bundle.
The bundle is JSON unless --format yaml is given.

Examples:
  playmate export --output backup.json
  playmate export --format yaml > backup.yaml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}

		bundleFormat := "json"
		if format == "yaml" {
			bundleFormat = "yaml"
		}
		data, err := c.Export(context.Background(), bundleFormat)
		if err != nil {
			return fmt.Errorf("failed to export: %w", err)
		}

		if exportOutput == "" || exportOutput == "-" {
			_, err := cmd.OutOrStdout().Write(data)
			return err
		}
		if err := os.WriteFile(exportOutput, data, 0600); err != nil {
			return fmt.Errorf("failed to write output file: %w", err)
		}
		if !quiet {
			fmt.Fprintf(cmd.ErrOrStderr(), "Exported player data to %s\n", exportOutput)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Output file (default: stdout)")
}
