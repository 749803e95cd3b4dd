package main

import (
	"fmt"
	"path/filepath"

	"github.com/franz/audioset-prep/internal/acquire"
	"github.com/franz/audioset-prep/internal/ontology"
	"github.com/franz/audioset-prep/internal/store"
	"github.com/franz/audioset-prep/internal/util"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show per-class download progress",
	Long: `Show how far each selected class has got.

The done count comes from each class's progress log, which is what resume
uses. Target, failures and the last terminal state come from the state
database and are blank for classes that have never been run.`,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().Bool("all", false, "Show every class, not only the configured index range")
}

type classStatus struct {
	Class    ontology.Class
	Done     int
	LogErr   error
	Progress *store.ClassProgress
}

func runStatus(cmd *cobra.Command, args []string) error {
	applyLogFlags()

	cfg, err := loadSettings()
	if err != nil {
		return err
	}
	all, _ := cmd.Flags().GetBool("all")

	classes, err := ontology.ReadClassList(cfg.ClassFile)
	if err != nil {
		return err
	}
	if !all {
		start, end, err := util.SliceBounds(cfg.StartIndex, cfg.EndIndex, cfg.EndSet, len(classes))
		if err != nil {
			return err
		}
		classes = classes[start:end]
	}

	var db *store.Store
	if util.FileExists(cfg.DBPath) {
		db, err = store.Open(cfg.DBPath)
		if err != nil {
			util.WarnLog("Failed to open database: %v", err)
		} else {
			defer db.Close()
		}
	}

	rows := collectStatus(cfg.DatasetRoot, classes, db)
	printStatus(rows)
	return nil
}

func collectStatus(root string, classes []ontology.Class, db *store.Store) []classStatus {
	rows := make([]classStatus, 0, len(classes))
	for _, c := range classes {
		dir := filepath.Join(root, ontology.FolderName(c.DisplayName))
		row := classStatus{Class: c}

		records, err := acquire.NewCSVLog(acquire.ClassLogPath(dir)).Load()
		row.Done = len(records)
		row.LogErr = err

		if db != nil {
			if p, err := db.GetClassProgress(c.ID); err == nil {
				row.Progress = p
			}
		}
		rows = append(rows, row)
	}
	return rows
}

func printStatus(rows []classStatus) {
	fmt.Printf("\n%-40s %6s %6s %6s  %s\n", "CLASS", "DONE", "TARGET", "FAILED", "LAST STATE")

	total := 0
	for _, r := range rows {
		target, failed, state := "-", "-", ""
		if r.Progress != nil {
			target = fmt.Sprintf("%d", r.Progress.Target)
			failed = fmt.Sprintf("%d", r.Progress.Failed)
			state = r.Progress.Terminal
		}
		if r.LogErr != nil {
			state = fmt.Sprintf("log error: %v", r.LogErr)
		}
		fmt.Printf("%-40s %6d %6s %6s  %s\n", truncate(r.Class.DisplayName, 40), r.Done, target, failed, state)
		total += r.Done
	}
	fmt.Printf("\n%d classes, %d clips downloaded\n\n", len(rows), total)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
