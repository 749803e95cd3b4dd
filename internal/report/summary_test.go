package report

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/franz/audioset-prep/internal/store"
)

func openStore(t *testing.T) *store.Store {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestGenerateSummaryReport(t *testing.T) {
	db := openStore(t)
	runID := setupTestData(t, db)

	report, err := GenerateSummaryReport(db, "", "test-events.jsonl")
	if err != nil {
		t.Fatalf("GenerateSummaryReport failed: %v", err)
	}

	if report.RunID != runID {
		t.Errorf("Expected latest run %s, got %s", runID, report.RunID)
	}
	if report.ClassesProcessed != 3 || report.ClassesComplete != 1 || report.ClassesExhausted != 1 || report.ClassesErrored != 1 {
		t.Errorf("Unexpected class stats: %+v", report)
	}
	if report.Acquired != 2 || report.Rejected != 3 {
		t.Errorf("Expected 2 acquired / 3 rejected, got %d / %d", report.Acquired, report.Rejected)
	}
	if report.BytesAcquired != 3000 {
		t.Errorf("Expected 3000 bytes, got %d", report.BytesAcquired)
	}
	if len(report.TopReasons) != 2 || report.TopReasons[0].Reason != "too_short" {
		t.Errorf("Expected too_short first, got %+v", report.TopReasons)
	}
	if report.EventLogPath != "test-events.jsonl" {
		t.Errorf("Expected event log path 'test-events.jsonl', got '%s'", report.EventLogPath)
	}
}

func TestWriteMarkdownReport(t *testing.T) {
	tmpDir := t.TempDir()
	outputPath := filepath.Join(tmpDir, "reports", "summary.md")

	report := &SummaryReport{
		GeneratedAt:      time.Now(),
		RunID:            "0190a1b2-run",
		Status:           "completed",
		Seed:             42,
		StartIndex:       0,
		EndIndex:         -1,
		MaxPerClass:      200,
		ClassesProcessed: 2,
		ClassesComplete:  1,
		ClassesExhausted: 1,
		Acquired:         343,
		Rejected:         91,
		BytesAcquired:    660 * 1000 * 1000,
		Classes: []ClassRow{
			{ClassID: "/m/0bt9lr", DisplayName: "Dog", Target: 200, Done: 200, Failed: 40, Terminal: "target_reached"},
			{ClassID: "/m/07qrkrw", DisplayName: "Meow | cat", Target: 200, Done: 143, Failed: 51, Terminal: "pool_exhausted"},
		},
		TopReasons: []ReasonCount{{Reason: "retrieval", Count: 60}, {Reason: "too_short", Count: 31}},
	}

	if err := WriteMarkdownReport(report, outputPath); err != nil {
		t.Fatalf("WriteMarkdownReport failed: %v", err)
	}

	content, err := os.ReadFile(outputPath)
	if err != nil {
		t.Fatalf("Failed to read report: %v", err)
	}
	md := string(content)

	for _, want := range []string{
		"# AudioSet Prep - Download Summary",
		"| Class Slice | [0:] |",
		"| Max per Class | 200 |",
		"| Clips Acquired | 343 |",
		"| Bytes Written | 660 MB |",
		"| Dog | `/m/0bt9lr` | 200 | 200 | 40 | target_reached |",
		"Meow \\| cat",
		"| 60 | retrieval |",
		"Generated by",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("Report missing %q", want)
		}
	}
}

func TestTruncatePath(t *testing.T) {
	testCases := []struct {
		path   string
		maxLen int
	}{
		{"Dog", 40},
		{"Sound effect of a very long descriptive class name that keeps going", 40},
	}

	for _, tc := range testCases {
		result := truncatePath(tc.path, tc.maxLen)
		if len(result) > tc.maxLen {
			t.Errorf("truncatePath(%q) = %q exceeds %d", tc.path, result, tc.maxLen)
		}
		if len(tc.path) <= tc.maxLen && result != tc.path {
			t.Errorf("Short path should not be truncated: expected '%s', got '%s'", tc.path, result)
		}
	}
}

func TestReportWithEmptyData(t *testing.T) {
	db := openStore(t)

	report, err := GenerateSummaryReport(db, "", "")
	if err != nil {
		t.Fatalf("GenerateSummaryReport failed: %v", err)
	}
	if report.RunID != "" || report.ClassesProcessed != 0 {
		t.Errorf("Expected empty report, got %+v", report)
	}

	outputPath := filepath.Join(t.TempDir(), "empty-summary.md")
	if err := WriteMarkdownReport(report, outputPath); err != nil {
		t.Fatalf("WriteMarkdownReport failed on empty data: %v", err)
	}
	if _, err := os.Stat(outputPath); os.IsNotExist(err) {
		t.Error("Report file was not created for empty data")
	}
}

// setupTestData records one finished run with three classes
func setupTestData(t *testing.T, db *store.Store) string {
	t.Helper()

	run, err := db.StartRun(42, 0, 3, 2, 3)
	if err != nil {
		t.Fatalf("Failed to start run: %v", err)
	}

	attempts := []*store.Attempt{
		{RunID: run.ID, ClassID: "/m/dog", SourceID: "a", Outcome: "acquired", SizeBytes: 1000},
		{RunID: run.ID, ClassID: "/m/dog", SourceID: "b", Outcome: "acquired", SizeBytes: 2000},
		{RunID: run.ID, ClassID: "/m/cat", SourceID: "c", Outcome: "rejected", Reason: "too_short"},
		{RunID: run.ID, ClassID: "/m/cat", SourceID: "d", Outcome: "rejected", Reason: "too_short"},
		{RunID: run.ID, ClassID: "/m/cat", SourceID: "e", Outcome: "rejected", Reason: "retrieval"},
	}
	for _, a := range attempts {
		if err := db.InsertAttempt(a); err != nil {
			t.Fatalf("Failed to insert attempt: %v", err)
		}
	}

	progress := []*store.ClassProgress{
		{ClassID: "/m/dog", DisplayName: "Dog", Target: 2, Done: 2, Terminal: "target_reached", RunID: run.ID},
		{ClassID: "/m/cat", DisplayName: "Cat", Target: 2, Done: 0, Failed: 3, Terminal: "pool_exhausted", RunID: run.ID},
		{ClassID: "/m/cow", DisplayName: "Cow", Target: 2, Done: 0, Terminal: "error", RunID: run.ID},
	}
	for _, p := range progress {
		if err := db.UpsertClassProgress(p); err != nil {
			t.Fatalf("Failed to upsert progress: %v", err)
		}
	}

	if err := db.FinishRun(run.ID, "completed"); err != nil {
		t.Fatalf("Failed to finish run: %v", err)
	}
	return run.ID
}
