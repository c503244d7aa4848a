package main

import (
	"encoding/json"
	"fmt"

	"github.com/jonathan/gigmatch/internal/observability"
	"github.com/spf13/cobra"
)

var sweepJSON bool

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run one deadline sweep",
	Long: `Expire invitations whose deadline has passed, repair interrupted settlements
and refresh exhausted rotation batches. Meant for an external scheduler.`,
	RunE: runSweep,
}

func init() {
	sweepCmd.Flags().BoolVar(&sweepJSON, "json", false, "Print the report as JSON")
	rootCmd.AddCommand(sweepCmd)
}

func runSweep(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	report, err := a.sweeper().Run(ctx, a.manager.Now())
	if err != nil {
		return fmt.Errorf("sweep failed: %w", err)
	}

	if sweepJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}
	observability.NewPrinter(cmd.OutOrStdout()).PrintSweepReport(report)
	return nil
}
