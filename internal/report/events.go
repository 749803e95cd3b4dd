package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// EventType represents the type of event
type EventType string

const (
	EventCompile   EventType = "compile"
	EventClasses   EventType = "classes"
	EventAttempt   EventType = "attempt"
	EventAcquire   EventType = "acquire"
	EventReject    EventType = "reject"
	EventClassDone EventType = "class_done"
	EventConvert   EventType = "convert"
	EventNormalize EventType = "normalize"
	EventSkip      EventType = "skip"
	EventError     EventType = "error"
)

// EventLevel represents the severity level
type EventLevel string

const (
	LevelDebug   EventLevel = "debug"
	LevelInfo    EventLevel = "info"
	LevelWarning EventLevel = "warning"
	LevelError   EventLevel = "error"
)

// levelPriority maps event levels to numeric priorities for comparison
var levelPriority = map[EventLevel]int{
	LevelDebug:   0,
	LevelInfo:    1,
	LevelWarning: 2,
	LevelError:   3,
}

// ParseLevel maps a config string to an EventLevel, defaulting to info
func ParseLevel(s string) EventLevel {
	switch EventLevel(s) {
	case LevelDebug, LevelInfo, LevelWarning, LevelError:
		return EventLevel(s)
	case "warn":
		return LevelWarning
	}
	return LevelInfo
}

// Event represents a single event in the pipeline
type Event struct {
	Timestamp  time.Time         `json:"ts"`
	Level      EventLevel        `json:"level"`
	Event      EventType         `json:"event"`
	RunID      string            `json:"run_id,omitempty"`
	ClassID    string            `json:"class_id,omitempty"`
	ClassName  string            `json:"class_name,omitempty"`
	SourceID   string            `json:"source_id,omitempty"`
	SrcPath    string            `json:"src_path,omitempty"`
	DestPath   string            `json:"dest_path,omitempty"`
	Reason     string            `json:"reason,omitempty"`
	SampleRate int               `json:"sample_rate,omitempty"`
	Bytes      int64             `json:"bytes,omitempty"`
	Duration   int64             `json:"duration_ms,omitempty"` // in milliseconds
	Error      string            `json:"error,omitempty"`
	Extra      map[string]string `json:"extra,omitempty"`
}

// EventLogger writes events to a JSONL file
type EventLogger struct {
	file     *os.File
	encoder  *json.Encoder
	mu       sync.Mutex
	path     string
	minLevel EventLevel
	runID    string
}

// NewEventLogger creates a new event logger with a minimum log level
// minLevel determines which events are written (e.g., LevelInfo skips LevelDebug)
func NewEventLogger(outputDir string, minLevel EventLevel) (*EventLogger, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	timestamp := time.Now().Format("20060102-150405")
	filename := fmt.Sprintf("events-%s.jsonl", timestamp)
	path := filepath.Join(outputDir, filename)

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to create event log: %w", err)
	}

	return &EventLogger{
		file:     file,
		encoder:  json.NewEncoder(file),
		path:     path,
		minLevel: minLevel,
	}, nil
}

// SetRunID stamps every following event with runID
func (l *EventLogger) SetRunID(runID string) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.runID = runID
}

// Log writes an event to the JSONL file
func (l *EventLogger) Log(event *Event) error {
	if l == nil || l.file == nil {
		return nil // Silently ignore if logger not initialized
	}

	if levelPriority[event.Level] < levelPriority[l.minLevel] {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if event.RunID == "" {
		event.RunID = l.runID
	}

	if err := l.encoder.Encode(event); err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	return nil
}

// LogCompile logs the metadata compile step
func (l *EventLogger) LogCompile(destPath string, rows, skipped int, sources []string) error {
	return l.Log(&Event{
		Level:    LevelInfo,
		Event:    EventCompile,
		DestPath: destPath,
		Extra: map[string]string{
			"rows":    fmt.Sprintf("%d", rows),
			"skipped": fmt.Sprintf("%d", skipped),
			"sources": fmt.Sprintf("%d", len(sources)),
		},
	})
}

// LogClasses logs the class selection step
func (l *EventLogger) LogClasses(destPath string, selected int, threshold float64, leafOnly bool) error {
	return l.Log(&Event{
		Level:    LevelInfo,
		Event:    EventClasses,
		DestPath: destPath,
		Extra: map[string]string{
			"selected":  fmt.Sprintf("%d", selected),
			"threshold": fmt.Sprintf("%.2f", threshold),
			"leaf_only": fmt.Sprintf("%t", leafOnly),
		},
	})
}

// LogAttempt logs a candidate being handed to the fetcher
func (l *EventLogger) LogAttempt(classID, sourceID string, clipStart, clipEnd int) error {
	return l.Log(&Event{
		Level:    LevelDebug,
		Event:    EventAttempt,
		ClassID:  classID,
		SourceID: sourceID,
		Extra: map[string]string{
			"clip_start": fmt.Sprintf("%d", clipStart),
			"clip_end":   fmt.Sprintf("%d", clipEnd),
		},
	})
}

// LogAcquire logs a successful acquisition
func (l *EventLogger) LogAcquire(classID, className, sourceID, destPath string, sampleRate int, bytes int64, duration time.Duration, container string) error {
	var extra map[string]string
	if container != "" {
		extra = map[string]string{"container": container}
	}
	return l.Log(&Event{
		Level:      LevelInfo,
		Event:      EventAcquire,
		ClassID:    classID,
		ClassName:  className,
		SourceID:   sourceID,
		DestPath:   destPath,
		SampleRate: sampleRate,
		Bytes:      bytes,
		Duration:   duration.Milliseconds(),
		Extra:      extra,
	})
}

// LogReject logs a discarded candidate
func (l *EventLogger) LogReject(classID, sourceID, reason string, duration time.Duration, err error) error {
	errMsg := ""
	if err != nil {
		errMsg = err.Error()
	}
	return l.Log(&Event{
		Level:    LevelWarning,
		Event:    EventReject,
		ClassID:  classID,
		SourceID: sourceID,
		Reason:   reason,
		Duration: duration.Milliseconds(),
		Error:    errMsg,
	})
}

// LogClassDone logs the end of a class loop
func (l *EventLogger) LogClassDone(classID, className, terminal string, target, done, failed int, elapsed time.Duration, err error) error {
	level := LevelInfo
	errMsg := ""
	if err != nil {
		level = LevelError
		errMsg = err.Error()
	}
	return l.Log(&Event{
		Level:     level,
		Event:     EventClassDone,
		ClassID:   classID,
		ClassName: className,
		Reason:    terminal,
		Duration:  elapsed.Milliseconds(),
		Error:     errMsg,
		Extra: map[string]string{
			"target": fmt.Sprintf("%d", target),
			"done":   fmt.Sprintf("%d", done),
			"failed": fmt.Sprintf("%d", failed),
		},
	})
}

// LogConvert logs one wav to npy conversion
func (l *EventLogger) LogConvert(srcPath, destPath string, samples int, resampled bool, err error) error {
	level := LevelDebug
	errMsg := ""
	if err != nil {
		level = LevelError
		errMsg = err.Error()
	}
	return l.Log(&Event{
		Level:    level,
		Event:    EventConvert,
		SrcPath:  srcPath,
		DestPath: destPath,
		Error:    errMsg,
		Extra: map[string]string{
			"samples":   fmt.Sprintf("%d", samples),
			"resampled": fmt.Sprintf("%t", resampled),
		},
	})
}

// LogNormalize logs one normalised array
func (l *EventLogger) LogNormalize(srcPath, destPath string, mean, std float64) error {
	return l.Log(&Event{
		Level:    LevelDebug,
		Event:    EventNormalize,
		SrcPath:  srcPath,
		DestPath: destPath,
		Extra: map[string]string{
			"mean": fmt.Sprintf("%g", mean),
			"std":  fmt.Sprintf("%g", std),
		},
	})
}

// LogSkip logs a file that was left alone
func (l *EventLogger) LogSkip(srcPath, reason string) error {
	return l.Log(&Event{
		Level:   LevelInfo,
		Event:   EventSkip,
		SrcPath: srcPath,
		Reason:  reason,
	})
}

// LogError logs an error event
func (l *EventLogger) LogError(event EventType, srcPath string, err error) error {
	return l.Log(&Event{
		Level:   LevelError,
		Event:   event,
		SrcPath: srcPath,
		Error:   err.Error(),
	})
}

// Close closes the event log file
func (l *EventLogger) Close() error {
	if l == nil || l.file == nil {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	return l.file.Close()
}

// Path returns the path to the event log file
func (l *EventLogger) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

// NullLogger returns a no-op event logger
func NullLogger() *EventLogger {
	return nil
}
