package acquire

import (
	"context"
	"fmt"
	"time"
)

// NominalClipSeconds is the length every AudioSet segment window should have
const NominalClipSeconds = 10

// Candidate is one metadata row: a source video and the window to extract
type Candidate struct {
	SourceID  string
	ClipStart int // seconds
	ClipEnd   int // seconds
}

// ClassTarget is the per-class unit of work handed to the orchestrator
type ClassTarget struct {
	ClassID     string
	DisplayName string
	Dir         string // class folder; holds the progress log and clips
	Pool        []Candidate
	TargetCount int
}

// Record is one successful acquisition as persisted in the progress log
type Record struct {
	SourceID         string
	ClassID          string
	ClassName        string
	OutputFileName   string
	OriginalFileName string
	SampleRate       int
}

// Request is what the orchestrator asks a Fetcher to produce
type Request struct {
	ClassID   string
	ClassName string
	Dir       string
	Index     int // output file number, 1-based and increasing per class
	Candidate Candidate
}

// Clip describes a validated, trimmed audio file on disk
type Clip struct {
	Path             string
	FileName         string
	OriginalFileName string
	SampleRate       int
	SizeBytes        int64
	Container        string
}

// FailureReason classifies why a candidate was not acquired
type FailureReason string

const (
	ReasonRetrieval     FailureReason = "retrieval"
	ReasonTooShort      FailureReason = "too_short"
	ReasonWindowPastEnd FailureReason = "window_past_end"
	ReasonWindowLength  FailureReason = "window_length"
	ReasonProcessing    FailureReason = "processing"
	ReasonPanic         FailureReason = "panic"
	ReasonUnknown       FailureReason = "error"
)

// Failure is the typed per-candidate failure returned by a Fetcher.
// It never aborts a class loop.
type Failure struct {
	Reason FailureReason
	Err    error
}

func (f *Failure) Error() string {
	if f.Err == nil {
		return string(f.Reason)
	}
	return fmt.Sprintf("%s: %v", f.Reason, f.Err)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// Fail builds a Failure
func Fail(reason FailureReason, err error) *Failure {
	return &Failure{Reason: reason, Err: err}
}

// Fetcher retrieves, validates and trims a single candidate.
// A non-nil error means the candidate is discarded; returning a *Failure
// lets the caller record a precise reason.
type Fetcher interface {
	Fetch(ctx context.Context, req Request) (*Clip, error)
}

// FetcherFunc adapts a function to the Fetcher interface
type FetcherFunc func(ctx context.Context, req Request) (*Clip, error)

func (f FetcherFunc) Fetch(ctx context.Context, req Request) (*Clip, error) {
	return f(ctx, req)
}

// ProgressLog is the durable per-class record of completed acquisitions
type ProgressLog interface {
	// Load returns the persisted records; a log that does not exist yet is empty
	Load() ([]Record, error)
	// Save durably replaces the log with records
	Save(records []Record) error
}

// TerminalReason says why a class loop stopped
type TerminalReason string

const (
	TerminalAlreadySatisfied TerminalReason = "already_satisfied"
	TerminalTargetReached    TerminalReason = "target_reached"
	TerminalPoolExhausted    TerminalReason = "pool_exhausted"
	TerminalCancelled        TerminalReason = "cancelled"
	TerminalError            TerminalReason = "error"
)

// Attempt is reported to the Observer once per drawn candidate
type Attempt struct {
	ClassID   string
	ClassName string
	Candidate Candidate
	Clip      *Clip // nil on failure
	Reason    FailureReason
	Err       error
	Duration  time.Duration
}

// Succeeded reports whether the attempt produced a clip
func (a *Attempt) Succeeded() bool {
	return a.Clip != nil
}

// ClassResult summarises one AcquireClass call
type ClassResult struct {
	ClassID     string
	DisplayName string
	Target      int
	Resumed     int // records already in the log at start
	Done        int // records in the log at the end
	Acquired    int // successes this run
	Failed      int
	Remaining   int // candidates never drawn
	Stale       int // logged source ids absent from the pool
	Failures    map[FailureReason]int
	Terminal    TerminalReason
	Err         error
	Elapsed     time.Duration
}

// Observer receives acquisition progress. Implementations must not block.
type Observer interface {
	ClassStarted(target *ClassTarget, done int)
	Attempted(attempt *Attempt)
	ClassFinished(result *ClassResult)
}

// NopObserver ignores everything
type NopObserver struct{}

func (NopObserver) ClassStarted(*ClassTarget, int) {}
func (NopObserver) Attempted(*Attempt)             {}
func (NopObserver) ClassFinished(*ClassResult)     {}

// ResolveTarget turns the configured per-class maximum into a concrete
// target. A negative maximum means every available candidate.
func ResolveTarget(maxPerClass int, poolSize int) int {
	if maxPerClass < 0 || maxPerClass > poolSize {
		return poolSize
	}
	return maxPerClass
}
