package store

import (
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "asp-state.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStoreOpenAndMigrate(t *testing.T) {
	store := openTestStore(t)

	version, err := store.getSchemaVersion()
	if err != nil {
		t.Fatalf("failed to get schema version: %v", err)
	}
	if version != currentSchemaVersion {
		t.Errorf("expected schema version %d, got %d", currentSchemaVersion, version)
	}

	tables := []string{"runs", "attempts", "class_progress", "schema_version"}
	for _, table := range tables {
		var count int
		err := store.db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&count)
		if err != nil {
			t.Fatalf("failed to query table %s: %v", table, err)
		}
		if count != 1 {
			t.Errorf("expected table %s to exist", table)
		}
	}

	v2Indexes := []string{
		"idx_attempts_outcome_reason",
		"idx_attempts_source",
		"idx_class_progress_terminal",
	}
	for _, index := range v2Indexes {
		var count int
		err := store.db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='index' AND name=?", index).Scan(&count)
		if err != nil {
			t.Fatalf("failed to query index %s: %v", index, err)
		}
		if count != 1 {
			t.Errorf("expected index %s to exist (schema v2)", index)
		}
	}
}

func TestReopenKeepsVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "asp-state.db")
	for i := 0; i < 2; i++ {
		s, err := Open(path)
		if err != nil {
			t.Fatalf("open %d failed: %v", i+1, err)
		}
		if err := s.CheckIntegrity(); err != nil {
			t.Errorf("integrity check failed: %v", err)
		}
		s.Close()
	}
}

func TestRunLifecycle(t *testing.T) {
	store := openTestStore(t)

	run, err := store.StartRun(1<<63+5, 0, 20, 200, 20)
	if err != nil {
		t.Fatalf("StartRun failed: %v", err)
	}
	if run.ID == "" {
		t.Fatal("expected run id")
	}

	if err := store.FinishRun(run.ID, "completed"); err != nil {
		t.Fatalf("FinishRun failed: %v", err)
	}

	got, err := store.LatestRun()
	if err != nil {
		t.Fatalf("LatestRun failed: %v", err)
	}
	if got == nil || got.ID != run.ID {
		t.Fatalf("expected latest run %s, got %+v", run.ID, got)
	}
	if got.Status != "completed" || got.Seed != 1<<63+5 || got.EndIndex != 20 {
		t.Errorf("unexpected run: %+v", got)
	}
	if got.FinishedAt.IsZero() {
		t.Error("expected finished_at to be set")
	}

	missing, err := store.GetRun("nope")
	if err != nil || missing != nil {
		t.Errorf("expected nil run for unknown id, got %+v, %v", missing, err)
	}
}

func TestAttempts(t *testing.T) {
	store := openTestStore(t)

	run, err := store.StartRun(42, 0, -1, 200, 1)
	if err != nil {
		t.Fatalf("StartRun failed: %v", err)
	}

	attempts := []*Attempt{
		{RunID: run.ID, ClassID: "/m/0bt9lr", SourceID: "a", Outcome: "acquired", OutputFile: "1.wav", SampleRate: 48000, SizeBytes: 1000},
		{RunID: run.ID, ClassID: "/m/0bt9lr", SourceID: "b", Outcome: "rejected", Reason: "too_short"},
		{RunID: run.ID, ClassID: "/m/0bt9lr", SourceID: "c", Outcome: "rejected", Reason: "too_short"},
		{RunID: run.ID, ClassID: "/m/0bt9lr", SourceID: "d", Outcome: "rejected", Reason: "retrieval", Error: "HTTP 403"},
		{RunID: run.ID, ClassID: "/m/01yrx", SourceID: "e", Outcome: "acquired", OutputFile: "1.wav", SizeBytes: 500},
	}
	for _, a := range attempts {
		if err := store.InsertAttempt(a); err != nil {
			t.Fatalf("InsertAttempt failed: %v", err)
		}
		if a.ID == 0 {
			t.Error("expected attempt id to be set")
		}
	}

	dog, err := store.GetAttemptsByClass("/m/0bt9lr")
	if err != nil {
		t.Fatalf("GetAttemptsByClass failed: %v", err)
	}
	if len(dog) != 4 || dog[0].SourceID != "a" || dog[3].Error != "HTTP 403" {
		t.Errorf("unexpected attempts: %+v", dog)
	}

	reasons, err := store.CountFailureReasons(run.ID)
	if err != nil {
		t.Fatalf("CountFailureReasons failed: %v", err)
	}
	if reasons["too_short"] != 2 || reasons["retrieval"] != 1 {
		t.Errorf("unexpected reason counts: %v", reasons)
	}

	total, err := store.GetTotalBytesAcquired("")
	if err != nil {
		t.Fatalf("GetTotalBytesAcquired failed: %v", err)
	}
	if total != 1500 {
		t.Errorf("expected 1500 bytes, got %d", total)
	}
}

func TestClassProgressUpsert(t *testing.T) {
	store := openTestStore(t)

	p := &ClassProgress{ClassID: "/m/0bt9lr", DisplayName: "Dog", Target: 200, Done: 10, Terminal: "cancelled"}
	if err := store.UpsertClassProgress(p); err != nil {
		t.Fatalf("UpsertClassProgress failed: %v", err)
	}
	p.Done = 200
	p.Failed = 31
	p.Terminal = "target_reached"
	if err := store.UpsertClassProgress(p); err != nil {
		t.Fatalf("UpsertClassProgress update failed: %v", err)
	}
	if err := store.UpsertClassProgress(&ClassProgress{ClassID: "/m/01yrx", DisplayName: "Cat", Target: 5, Done: 5}); err != nil {
		t.Fatalf("UpsertClassProgress failed: %v", err)
	}

	got, err := store.GetClassProgress("/m/0bt9lr")
	if err != nil {
		t.Fatalf("GetClassProgress failed: %v", err)
	}
	if got.Done != 200 || got.Failed != 31 || got.Terminal != "target_reached" {
		t.Errorf("unexpected progress: %+v", got)
	}

	all, err := store.GetAllClassProgress()
	if err != nil {
		t.Fatalf("GetAllClassProgress failed: %v", err)
	}
	if len(all) != 2 || all[0].DisplayName != "Cat" {
		t.Errorf("expected 2 classes ordered by name, got %+v", all)
	}
}
