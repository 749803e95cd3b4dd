package report

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func readEvents(t *testing.T, path string) []Event {
	t.Helper()
	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("Failed to open log file: %v", err)
	}
	defer file.Close()

	var events []Event
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var decoded Event
		if err := json.Unmarshal(scanner.Bytes(), &decoded); err != nil {
			t.Fatalf("Failed to decode line %d: %v", len(events)+1, err)
		}
		events = append(events, decoded)
	}
	return events
}

func TestNewEventLogger(t *testing.T) {
	tmpDir := t.TempDir()

	logger, err := NewEventLogger(tmpDir, LevelDebug)
	if err != nil {
		t.Fatalf("NewEventLogger failed: %v", err)
	}
	defer logger.Close()

	if logger.path == "" {
		t.Error("EventLogger path is empty")
	}
	if _, err := os.Stat(logger.path); os.IsNotExist(err) {
		t.Errorf("Event log file was not created at %s", logger.path)
	}

	filename := filepath.Base(logger.path)
	if len(filename) < len("events-20060102-150405.jsonl") {
		t.Errorf("Event log filename format incorrect: %s", filename)
	}
}

func TestEventLogger_AcquireAndReject(t *testing.T) {
	tmpDir := t.TempDir()
	logger, err := NewEventLogger(tmpDir, LevelDebug)
	if err != nil {
		t.Fatalf("NewEventLogger failed: %v", err)
	}
	logger.SetRunID("run-1")

	if err := logger.LogAttempt("/m/0bt9lr", "abc", 30, 40); err != nil {
		t.Fatalf("LogAttempt failed: %v", err)
	}
	if err := logger.LogAcquire("/m/0bt9lr", "Dog", "abc", "/data/Dog/1.wav", 48000, 1920044, 3*time.Second, "webm"); err != nil {
		t.Fatalf("LogAcquire failed: %v", err)
	}
	if err := logger.LogReject("/m/0bt9lr", "def", "too_short", time.Second, errors.New("duration 9s")); err != nil {
		t.Fatalf("LogReject failed: %v", err)
	}
	logger.Close()

	events := readEvents(t, logger.Path())
	if len(events) != 3 {
		t.Fatalf("Expected 3 events, got %d", len(events))
	}

	acq := events[1]
	if acq.Event != EventAcquire || acq.SampleRate != 48000 || acq.Extra["container"] != "webm" {
		t.Errorf("Unexpected acquire event: %+v", acq)
	}
	if acq.RunID != "run-1" {
		t.Errorf("Expected run id to be stamped, got %q", acq.RunID)
	}

	rej := events[2]
	if rej.Level != LevelWarning || rej.Reason != "too_short" || rej.Error != "duration 9s" {
		t.Errorf("Unexpected reject event: %+v", rej)
	}
}

func TestEventLogger_LogClassDone(t *testing.T) {
	tmpDir := t.TempDir()
	logger, err := NewEventLogger(tmpDir, LevelInfo)
	if err != nil {
		t.Fatalf("NewEventLogger failed: %v", err)
	}

	if err := logger.LogClassDone("/m/01yrx", "Cat", "pool_exhausted", 200, 143, 57, time.Minute, nil); err != nil {
		t.Fatalf("LogClassDone failed: %v", err)
	}
	if err := logger.LogClassDone("/m/0bt9lr", "Dog", "error", 200, 3, 0, time.Second, errors.New("disk full")); err != nil {
		t.Fatalf("LogClassDone failed: %v", err)
	}
	logger.Close()

	events := readEvents(t, logger.Path())
	if len(events) != 2 {
		t.Fatalf("Expected 2 events, got %d", len(events))
	}
	if events[0].Extra["done"] != "143" || events[0].Reason != "pool_exhausted" {
		t.Errorf("Unexpected class_done event: %+v", events[0])
	}
	if events[1].Level != LevelError || events[1].Error != "disk full" {
		t.Errorf("Expected error-level class_done, got %+v", events[1])
	}
}

func TestEventLogger_ConcurrentWrites(t *testing.T) {
	tmpDir := t.TempDir()
	logger, err := NewEventLogger(tmpDir, LevelDebug)
	if err != nil {
		t.Fatalf("NewEventLogger failed: %v", err)
	}
	defer logger.Close()

	const numGoroutines = 10
	const eventsPerGoroutine = 20

	var wg sync.WaitGroup
	wg.Add(numGoroutines)

	for i := 0; i < numGoroutines; i++ {
		go func(id int) {
			defer wg.Done()
			for j := 0; j < eventsPerGoroutine; j++ {
				src := fmt.Sprintf("/npy/%d/%d.npy", id, j)
				if err := logger.LogConvert(src, src, 160000, false, nil); err != nil {
					t.Errorf("Concurrent log failed: %v", err)
				}
			}
		}(i)
	}

	wg.Wait()
	logger.Close()

	expected := numGoroutines * eventsPerGoroutine
	if got := len(readEvents(t, logger.path)); got != expected {
		t.Errorf("Expected %d events, got %d", expected, got)
	}
}

func TestEventLogger_NullLogger(t *testing.T) {
	logger := NullLogger()

	if err := logger.LogSkip("/x.npy", "exists"); err != nil {
		t.Errorf("NullLogger.LogSkip should not error: %v", err)
	}
	logger.SetRunID("ignored")
	if logger.Path() != "" {
		t.Errorf("NullLogger.Path() should return empty string, got %s", logger.Path())
	}
	if err := logger.Close(); err != nil {
		t.Errorf("NullLogger.Close() should not error: %v", err)
	}
}

func TestEventLogger_LogLevelFiltering(t *testing.T) {
	tests := []struct {
		name     string
		minLevel EventLevel
		expected int
	}{
		{"debug shows all", LevelDebug, 4},
		{"info skips debug", LevelInfo, 3},
		{"warning shows warning and error", LevelWarning, 2},
		{"error only", LevelError, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := NewEventLogger(t.TempDir(), tt.minLevel)
			if err != nil {
				t.Fatalf("NewEventLogger failed: %v", err)
			}

			logger.LogAttempt("/m/x", "a", 0, 10)                               // debug
			logger.LogSkip("/x.npy", "exists")                                  // info
			logger.LogReject("/m/x", "b", "retrieval", 0, nil)                  // warning
			logger.LogError(EventNormalize, "/y.npy", errors.New("bad header")) // error
			logger.Close()

			if got := len(readEvents(t, logger.Path())); got != tt.expected {
				t.Errorf("Expected %d events at min level %s, got %d", tt.expected, tt.minLevel, got)
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]EventLevel{
		"debug":   LevelDebug,
		"warn":    LevelWarning,
		"warning": LevelWarning,
		"error":   LevelError,
		"":        LevelInfo,
		"loud":    LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %s, expected %s", in, got, want)
		}
	}
}
