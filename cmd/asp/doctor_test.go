package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/franz/audioset-prep/internal/store"
)

func TestCheckToolMissing(t *testing.T) {
	required := checkTool("asp-no-such-tool", true, "--version")
	if !required.error {
		t.Error("expected error for a missing required tool")
	}

	optional := checkTool("asp-no-such-tool", false, "--version")
	if optional.error || !optional.warning {
		t.Errorf("expected warning for a missing optional tool, got %+v", optional)
	}
}

func TestParseVersion(t *testing.T) {
	tests := []struct {
		name   string
		output string
		want   string
	}{
		{"ffmpeg", "ffmpeg version 6.1.1 Copyright (c) 2000-2023\nbuilt with gcc", "6.1.1"},
		{"ffprobe", "ffprobe version n7.0 Copyright", "n7.0"},
		{"yt-dlp", "2024.08.06\n", "2024.08.06"},
		{"yt-dlp", "", "unknown"},
	}
	for _, tt := range tests {
		if got := parseVersion(tt.name, tt.output); got != tt.want {
			t.Errorf("parseVersion(%q, %q) = %q, want %q", tt.name, tt.output, got, tt.want)
		}
	}
}

func TestCheckSQLite(t *testing.T) {
	result := checkSQLite()

	if result.error {
		t.Errorf("SQLite check failed: %s", result.message)
	}

	if result.message == "" {
		t.Error("expected version information in message")
	}
}

func TestCheckDatabase_NonExistent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nonexistent.db")

	result := checkDatabase(dbPath)

	// Should not error - database will be created on first run
	if result.error {
		t.Errorf("non-existent database check should not error: %s", result.message)
	}

	if result.message == "" {
		t.Error("expected message about database creation")
	}
}

func TestCheckDatabase_Existing(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	db, err := store.Open(dbPath)
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	err = db.UpsertClassProgress(&store.ClassProgress{
		ClassID:     "/m/0bt9lr",
		DisplayName: "Dog",
		Target:      10,
		Done:        3,
		Terminal:    "pool_exhausted",
	})
	if err != nil {
		t.Fatalf("failed to insert class progress: %v", err)
	}
	db.Close()

	result := checkDatabase(dbPath)

	if result.error {
		t.Errorf("database check failed: %s", result.message)
	}

	if result.message == "" {
		t.Error("expected message with database info")
	}
}

func TestCheckDatabase_Empty(t *testing.T) {
	result := checkDatabase("")

	if !result.warning {
		t.Error("expected warning for empty database path")
	}
}

func TestCheckSourceDirectory(t *testing.T) {
	if r := checkSourceDirectory(t.TempDir()); r.error {
		t.Errorf("meta folder check failed: %s", r.message)
	}

	if r := checkSourceDirectory("/nonexistent/path/that/does/not/exist"); !r.error {
		t.Error("expected error for non-existent directory")
	}

	filePath := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(filePath, []byte("test"), 0644); err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}
	if r := checkSourceDirectory(filePath); !r.error {
		t.Error("expected error when path is a file, not a directory")
	}
}

func TestCheckInput(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "big_data.csv")

	if r := checkInput(path, "Compiled metadata", "asp compile"); !r.warning || r.error {
		t.Errorf("expected warning for missing input, got %+v", r)
	}

	if err := os.WriteFile(path, []byte("source_id\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if r := checkInput(path, "Compiled metadata", "asp compile"); r.warning || r.error {
		t.Errorf("expected success for present input, got %+v", r)
	}
}

func TestCheckCookies(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cookies.txt")
	if r := checkCookies(path); !r.error {
		t.Error("expected error for configured but missing cookies file")
	}
	if err := os.WriteFile(path, []byte("# Netscape HTTP Cookie File\n"), 0600); err != nil {
		t.Fatal(err)
	}
	if r := checkCookies(path); r.error {
		t.Errorf("cookies check failed: %s", r.message)
	}
}

func TestCheckDestinationDirectory_Create(t *testing.T) {
	newDir := filepath.Join(t.TempDir(), "AudioSet_Data")

	result := checkDestinationDirectory(newDir)

	if result.error {
		t.Errorf("dataset root check failed: %s", result.message)
	}

	if _, err := os.Stat(newDir); os.IsNotExist(err) {
		t.Error("expected directory to be created")
	}

	if _, err := os.Stat(filepath.Join(newDir, ".asp_write_test")); !os.IsNotExist(err) {
		t.Error("write probe should be removed")
	}
}

func TestCheckDestinationDirectory_File(t *testing.T) {
	filePath := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(filePath, []byte("test"), 0644); err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}

	result := checkDestinationDirectory(filePath)

	if !result.error {
		t.Error("expected error when path is a file, not a directory")
	}
}

func TestCheckDiskSpace(t *testing.T) {
	result := checkDiskSpace(t.TempDir(), "test")

	if result.error {
		t.Errorf("disk space check failed: %s", result.message)
	}

	if result.message == "" {
		t.Error("expected message with disk space info")
	}
}

func TestCheckDiskSpace_NonExistent(t *testing.T) {
	result := checkDiskSpace("/nonexistent/path", "test")

	if !result.warning {
		t.Error("expected warning for non-existent path")
	}
}
