package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/franz/audioset-prep/internal/report"
	"github.com/franz/audioset-prep/internal/store"
	"github.com/franz/audioset-prep/internal/util"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Generate a summary report for a download run",
	Long: `Generate a Markdown summary of a download run from the state database.

The report includes:
- Run parameters (seed, class slice, per-class limit)
- Per-class target, done and failure counts with the final state
- The most common rejection reasons
- Total bytes written

The report is saved to artifacts/reports/<timestamp>/summary.md`,
	RunE: runReport,
}

func init() {
	rootCmd.AddCommand(reportCmd)

	reportCmd.Flags().String("run", "", "Run id (default: latest run)")
	reportCmd.Flags().String("out", "", "Output directory for report (default: artifacts/reports/<timestamp>)")
	reportCmd.Flags().String("event-log", "", "Path to event log file (optional)")
}

func runReport(cmd *cobra.Command, args []string) error {
	dbPath := viper.GetString("db")
	applyLogFlags()

	util.InfoLog("=== Generating Summary Report ===")
	util.InfoLog("Database: %s", dbPath)

	if err := util.RequireFile(dbPath, "state database"); err != nil {
		return err
	}
	db, err := store.Open(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	runID, _ := cmd.Flags().GetString("run")
	eventLogPath, _ := cmd.Flags().GetString("event-log")

	summary, err := report.GenerateSummaryReport(db, runID, eventLogPath)
	if err != nil {
		return fmt.Errorf("failed to generate report: %w", err)
	}
	if summary.RunID == "" {
		util.WarnLog("No download runs recorded yet")
		return nil
	}
	summary.DatabasePath = dbPath
	summary.DatasetRoot = viper.GetString("dir.dataset_root")

	outputDir, _ := cmd.Flags().GetString("out")
	if outputDir == "" {
		timestamp := time.Now().Format("20060102-150405")
		outputDir = filepath.Join(GetConfigString("artifacts", "artifacts"), "reports", timestamp)
	}
	outputPath := filepath.Join(outputDir, "summary.md")

	util.InfoLog("Writing report to: %s", outputPath)
	if err := report.WriteMarkdownReport(summary, outputPath); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	util.SuccessLog("Report generated successfully!")
	util.InfoLog("")
	util.InfoLog("Summary:")
	util.InfoLog("  Run: %s (%s)", summary.RunID, summary.Status)
	util.InfoLog("  Classes processed: %d", summary.ClassesProcessed)
	util.InfoLog("  Clips acquired: %d", summary.Acquired)
	if summary.Rejected > 0 {
		util.InfoLog("  Candidates rejected: %d", summary.Rejected)
	}
	if summary.BytesAcquired > 0 {
		util.InfoLog("  Bytes written: %s", util.FormatBytes(summary.BytesAcquired))
	}
	return nil
}
