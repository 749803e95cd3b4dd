package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/franz/audioset-prep/internal/acquire"
	"github.com/franz/audioset-prep/internal/fetch"
	"github.com/franz/audioset-prep/internal/metadata"
	"github.com/franz/audioset-prep/internal/ontology"
	"github.com/franz/audioset-prep/internal/report"
	"github.com/franz/audioset-prep/internal/store"
	"github.com/franz/audioset-prep/internal/util"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var downloadCmd = &cobra.Command{
	Use:   "download",
	Short: "Download and clip samples for each selected class",
	Long: `Download up to data.max_per_class clips for every class in
classes.file[start_index:end_index], one class at a time.

Candidates are drawn at random (seeded) from the compiled metadata. Each
candidate is probed, validated against its 10 second window, downloaded,
transcoded to WAV and trimmed. Rejected candidates are skipped; the class
continues until its target is met or its candidates run out.

Every success is written to the class's progress log immediately, so the
command can be interrupted and re-run at any time without repeating work.`,
	RunE: runDownload,
}

func init() {
	rootCmd.AddCommand(downloadCmd)

	downloadCmd.Flags().String("max-per-class", "", "Clips per class (number or None for all)")
	downloadCmd.Flags().Int("start", 0, "First class index")
	downloadCmd.Flags().String("end", "", "End class index, exclusive (number or None)")
	downloadCmd.Flags().Uint64("seed", 42, "Sampling seed")
	downloadCmd.Flags().String("cookies", "", "Cookies file passed to yt-dlp")

	viper.BindPFlag("data.max_per_class", downloadCmd.Flags().Lookup("max-per-class"))
	viper.BindPFlag("data.start_index", downloadCmd.Flags().Lookup("start"))
	viper.BindPFlag("data.end_index", downloadCmd.Flags().Lookup("end"))
	viper.BindPFlag("seed", downloadCmd.Flags().Lookup("seed"))
	viper.BindPFlag("dir.cookie_path", downloadCmd.Flags().Lookup("cookies"))
}

func runDownload(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	applyLogFlags()

	cfg, err := loadSettings()
	if err != nil {
		return err
	}

	if err := fetch.CheckDependencies(); err != nil {
		return err
	}

	// Inputs first: nothing useful can happen without them
	classes, err := ontology.ReadClassList(cfg.ClassFile)
	if err != nil {
		return err
	}
	start, end, err := util.SliceBounds(cfg.StartIndex, cfg.EndIndex, cfg.EndSet, len(classes))
	if err != nil {
		return err
	}
	classes = classes[start:end]
	if len(classes) == 0 {
		util.WarnLog("No classes in range [%d:%d) of %s", start, end, cfg.ClassFile)
		return nil
	}

	util.InfoLog("Loading metadata: %s", cfg.TableFile)
	table, err := metadata.LoadTable(cfg.TableFile)
	if err != nil {
		return err
	}
	util.DebugLog("Metadata: %d rows, %d labels", table.Rows(), table.Labels())

	targets := acquire.BuildTargets(cfg.DatasetRoot, ontology.Specs(classes), table, cfg.MaxPerClass)
	if err := acquire.EnsureLayout(cfg.DatasetRoot, targets); err != nil {
		return err
	}

	ytdlp, err := fetch.NewYTDLP(cfg.CookiePath, nil)
	if err != nil {
		return err
	}

	util.InfoLog("Opening database: %s", cfg.DBPath)
	db, err := store.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	endIndex := -1
	if cfg.EndSet {
		endIndex = cfg.EndIndex
	}
	run, err := db.StartRun(cfg.Seed, start, endIndex, cfg.MaxPerClass, len(targets))
	if err != nil {
		return fmt.Errorf("failed to record run: %w", err)
	}

	logger := openEvents(cfg.Artifacts)
	defer logger.Close()
	logger.SetRunID(run.ID)

	util.InfoLog("=== Downloading ===")
	util.InfoLog("Run: %s", run.ID)
	util.InfoLog("Classes: %d (index %d to %d)", len(targets), start, end)
	util.InfoLog("Per class: %s", limitString(cfg.MaxPerClass))
	util.InfoLog("Dataset root: %s", cfg.DatasetRoot)

	bar := newClassBar(len(targets))
	acquirer := acquire.New(&acquire.Config{
		Fetcher:  fetch.New(&fetch.Config{YTDLP: ytdlp}),
		Seed:     cfg.Seed,
		Observer: acquire.MultiObserver{acquire.NewJournal(db, logger, run.ID), bar},
	})

	started := time.Now()
	result, runErr := acquire.NewDriver(acquirer, nil).Run(ctx, targets)
	bar.finish()
	duration := time.Since(started)

	status := "completed"
	if runErr != nil {
		status = "interrupted"
	}
	if err := db.FinishRun(run.ID, status); err != nil {
		util.WarnLog("Failed to finish run record: %v", err)
	}

	util.InfoLog("")
	util.SuccessLog("=== Download Summary ===")
	util.InfoLog("Total time: %v", duration.Round(time.Second))
	util.InfoLog("Classes processed: %d/%d", len(result.Classes), len(targets))
	util.InfoLog("Clips acquired: %d", result.Acquired)
	util.InfoLog("Candidates rejected: %d", result.Failed)
	if result.Errored > 0 {
		util.WarnLog("Classes stopped on log errors: %d", result.Errored)
	}

	writeSummary(db, run.ID, logger.Path(), cfg, duration)

	if runErr != nil {
		if errors.Is(runErr, context.Canceled) {
			util.WarnLog("Interrupted; re-run the same command to resume")
		}
		return runErr
	}
	return nil
}

func writeSummary(db *store.Store, runID, eventLog string, cfg *settings, duration time.Duration) {
	util.InfoLog("")
	util.InfoLog("Generating summary report...")

	summary, err := report.GenerateSummaryReport(db, runID, eventLog)
	if err != nil {
		util.WarnLog("Failed to generate summary report: %v", err)
		return
	}
	summary.DatabasePath = cfg.DBPath
	summary.DatasetRoot = cfg.DatasetRoot
	summary.Duration = duration

	timestamp := time.Now().Format("20060102-150405")
	reportPath := filepath.Join(cfg.Artifacts, "reports", timestamp, "summary.md")
	if err := report.WriteMarkdownReport(summary, reportPath); err != nil {
		util.WarnLog("Failed to write summary report: %v", err)
		return
	}
	util.SuccessLog("Summary report saved to: %s", reportPath)
}

func limitString(maxPerClass int) string {
	if maxPerClass < 0 {
		return "all available"
	}
	return fmt.Sprintf("%d", maxPerClass)
}

// classBar draws one tick per finished class. It is a no-op when output is
// not a terminal.
type classBar struct {
	acquire.NopObserver
	bar *progressbar.ProgressBar
}

func newClassBar(total int) *classBar {
	b := &classBar{}
	if util.ShowProgress() {
		b.bar = progressbar.NewOptions(total,
			progressbar.OptionSetDescription("Classes"),
			progressbar.OptionSetWidth(40),
			progressbar.OptionShowCount(),
			progressbar.OptionSetItsString("classes"),
			progressbar.OptionThrottle(200*time.Millisecond),
			progressbar.OptionSetRenderBlankState(true),
		)
	}
	return b
}

func (b *classBar) ClassStarted(target *acquire.ClassTarget, done int) {
	if b.bar != nil {
		b.bar.Describe(fmt.Sprintf("%s (%d/%d)", target.DisplayName, done, target.TargetCount))
	}
}

func (b *classBar) ClassFinished(r *acquire.ClassResult) {
	if b.bar != nil {
		b.bar.Add(1)
	}
}

func (b *classBar) finish() {
	if b.bar != nil {
		b.bar.Finish()
	}
}
