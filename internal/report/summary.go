package report

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/franz/audioset-prep/internal/store"
	"github.com/franz/audioset-prep/internal/util"
)

// SummaryReport represents a complete summary of one download run
type SummaryReport struct {
	GeneratedAt time.Time
	Duration    time.Duration

	// Run
	RunID       string
	Seed        uint64
	Status      string
	StartIndex  int
	EndIndex    int
	MaxPerClass int

	// Class statistics
	ClassesProcessed int
	ClassesComplete  int // target reached or already satisfied
	ClassesExhausted int
	ClassesErrored   int

	// Candidate statistics
	Acquired      int
	Rejected      int
	BytesAcquired int64

	// Details
	Classes    []ClassRow
	TopReasons []ReasonCount

	// Metadata
	DatasetRoot  string
	DatabasePath string
	EventLogPath string
}

// ClassRow is one line of the per-class table
type ClassRow struct {
	ClassID     string
	DisplayName string
	Target      int
	Done        int
	Failed      int
	Terminal    string
}

// ReasonCount is a rejection reason with its count
type ReasonCount struct {
	Reason string
	Count  int
}

// GenerateSummaryReport builds a summary for runID from the database.
// An empty runID selects the latest run.
func GenerateSummaryReport(db *store.Store, runID string, eventLogPath string) (*SummaryReport, error) {
	report := &SummaryReport{
		GeneratedAt:  time.Now(),
		EventLogPath: eventLogPath,
		Classes:      make([]ClassRow, 0),
		TopReasons:   make([]ReasonCount, 0),
		EndIndex:     -1,
		MaxPerClass:  -1,
	}

	var run *store.Run
	var err error
	if runID == "" {
		run, err = db.LatestRun()
	} else {
		run, err = db.GetRun(runID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load run: %w", err)
	}
	if run == nil {
		return report, nil
	}

	report.RunID = run.ID
	report.Seed = run.Seed
	report.Status = run.Status
	report.StartIndex = run.StartIndex
	report.EndIndex = run.EndIndex
	report.MaxPerClass = run.MaxPerClass
	if !run.FinishedAt.IsZero() {
		report.Duration = run.FinishedAt.Sub(run.StartedAt)
	}

	progress, err := db.GetClassProgressByRun(run.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load class progress: %w", err)
	}
	for _, p := range progress {
		report.Classes = append(report.Classes, ClassRow{
			ClassID:     p.ClassID,
			DisplayName: p.DisplayName,
			Target:      p.Target,
			Done:        p.Done,
			Failed:      p.Failed,
			Terminal:    p.Terminal,
		})
		switch p.Terminal {
		case "target_reached", "already_satisfied":
			report.ClassesComplete++
		case "pool_exhausted":
			report.ClassesExhausted++
		case "error":
			report.ClassesErrored++
		}
	}
	report.ClassesProcessed = len(progress)

	report.Acquired, _ = db.CountAttempts(run.ID, "acquired")
	report.Rejected, _ = db.CountAttempts(run.ID, "rejected")
	report.BytesAcquired, _ = db.GetTotalBytesAcquired(run.ID)

	report.TopReasons = gatherTopReasons(db, run.ID, 10)

	return report, nil
}

// gatherTopReasons returns the most common rejection reasons
func gatherTopReasons(db *store.Store, runID string, limit int) []ReasonCount {
	counts, err := db.CountFailureReasons(runID)
	if err != nil {
		util.WarnLog("Failed to count rejection reasons: %v", err)
		return []ReasonCount{}
	}

	reasons := make([]ReasonCount, 0, len(counts))
	for reason, count := range counts {
		reasons = append(reasons, ReasonCount{Reason: reason, Count: count})
	}

	sort.Slice(reasons, func(i, j int) bool {
		if reasons[i].Count != reasons[j].Count {
			return reasons[i].Count > reasons[j].Count
		}
		return reasons[i].Reason < reasons[j].Reason
	})

	if len(reasons) > limit {
		reasons = reasons[:limit]
	}

	return reasons
}

// WriteMarkdownReport writes the summary report as Markdown
func WriteMarkdownReport(report *SummaryReport, outputPath string) error {
	dir := filepath.Dir(outputPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	var md strings.Builder

	md.WriteString("# AudioSet Prep - Download Summary\n\n")
	md.WriteString(fmt.Sprintf("**Generated:** %s\n\n", report.GeneratedAt.Format("2006-01-02 15:04:05")))

	if report.RunID != "" {
		md.WriteString(fmt.Sprintf("**Run:** `%s` (%s)\n\n", report.RunID, report.Status))
	}
	if report.DatasetRoot != "" {
		md.WriteString(fmt.Sprintf("**Dataset:** `%s`\n\n", report.DatasetRoot))
	}
	if report.DatabasePath != "" {
		md.WriteString(fmt.Sprintf("**Database:** `%s`\n\n", report.DatabasePath))
	}
	if report.EventLogPath != "" {
		md.WriteString(fmt.Sprintf("**Event Log:** `%s`\n\n", report.EventLogPath))
	}

	md.WriteString("---\n\n")

	// Overview
	md.WriteString("## Overview\n\n")
	md.WriteString("| Metric | Value |\n")
	md.WriteString("|--------|-------|\n")
	md.WriteString(fmt.Sprintf("| Seed | %d |\n", report.Seed))
	md.WriteString(fmt.Sprintf("| Class Slice | %s |\n", formatSlice(report.StartIndex, report.EndIndex)))
	md.WriteString(fmt.Sprintf("| Max per Class | %s |\n", formatLimit(report.MaxPerClass)))
	md.WriteString(fmt.Sprintf("| Classes Processed | %d |\n", report.ClassesProcessed))
	md.WriteString(fmt.Sprintf("| Classes Complete | %d |\n", report.ClassesComplete))
	if report.ClassesExhausted > 0 {
		md.WriteString(fmt.Sprintf("| Classes Exhausted | %d |\n", report.ClassesExhausted))
	}
	if report.ClassesErrored > 0 {
		md.WriteString(fmt.Sprintf("| Classes Stopped on Error | %d |\n", report.ClassesErrored))
	}
	md.WriteString(fmt.Sprintf("| Clips Acquired | %d |\n", report.Acquired))
	md.WriteString(fmt.Sprintf("| Candidates Rejected | %d |\n", report.Rejected))
	md.WriteString(fmt.Sprintf("| Bytes Written | %s |\n", util.FormatBytes(report.BytesAcquired)))
	if report.Duration > 0 {
		md.WriteString(fmt.Sprintf("| Run Time | %s |\n", report.Duration.Round(time.Second)))
	}
	md.WriteString("\n")

	// Per class
	if len(report.Classes) > 0 {
		md.WriteString("## Classes\n\n")
		md.WriteString("| Class | ID | Target | Done | Failed | Result |\n")
		md.WriteString("|-------|----|--------|------|--------|--------|\n")
		for _, c := range report.Classes {
			md.WriteString(fmt.Sprintf("| %s | `%s` | %d | %d | %d | %s |\n",
				escapeCell(truncatePath(c.DisplayName, 40)), c.ClassID, c.Target, c.Done, c.Failed, c.Terminal))
		}
		md.WriteString("\n")
	}

	// Reasons
	if len(report.TopReasons) > 0 {
		md.WriteString("## Top Rejection Reasons\n\n")
		md.WriteString("| Count | Reason |\n")
		md.WriteString("|-------|--------|\n")
		for _, r := range report.TopReasons {
			md.WriteString(fmt.Sprintf("| %d | %s |\n", r.Count, r.Reason))
		}
		md.WriteString("\n")
	}

	md.WriteString("---\n\n")
	md.WriteString("*Generated by asp - AudioSet dataset preparation*\n")

	if err := os.WriteFile(outputPath, []byte(md.String()), 0644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	return nil
}

func formatSlice(start, end int) string {
	if end < 0 {
		return fmt.Sprintf("[%d:]", start)
	}
	return fmt.Sprintf("[%d:%d]", start, end)
}

func formatLimit(n int) string {
	if n < 0 {
		return "all"
	}
	return fmt.Sprintf("%d", n)
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", "\\|")
}

// truncatePath truncates a path or name to a maximum length
func truncatePath(path string, maxLen int) string {
	if len(path) <= maxLen {
		return path
	}
	// Truncate from the middle, keeping start and end
	start := maxLen/2 - 2
	end := len(path) - (maxLen/2 - 2)
	return path[:start] + "..." + path[end:]
}
