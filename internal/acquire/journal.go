package acquire

import (
	"github.com/franz/audioset-prep/internal/report"
	"github.com/franz/audioset-prep/internal/store"
	"github.com/franz/audioset-prep/internal/util"
)

// Journal records attempts and class results to the state database and the
// JSONL event log. Either sink may be nil. Write failures are logged and
// never interrupt acquisition.
type Journal struct {
	db     *store.Store
	events *report.EventLogger
	runID  string
}

// NewJournal creates a journal for runID
func NewJournal(db *store.Store, events *report.EventLogger, runID string) *Journal {
	return &Journal{db: db, events: events, runID: runID}
}

func (j *Journal) ClassStarted(target *ClassTarget, done int) {
	util.DebugLog("Class %s (%s): %d/%d done, pool %d", target.DisplayName, target.ClassID, done, target.TargetCount, len(target.Pool))
}

func (j *Journal) Attempted(a *Attempt) {
	j.events.LogAttempt(a.ClassID, a.Candidate.SourceID, a.Candidate.ClipStart, a.Candidate.ClipEnd)

	row := &store.Attempt{
		RunID:      j.runID,
		ClassID:    a.ClassID,
		SourceID:   a.Candidate.SourceID,
		DurationMs: a.Duration.Milliseconds(),
	}

	if a.Succeeded() {
		row.Outcome = "acquired"
		row.OutputFile = a.Clip.FileName
		row.SampleRate = a.Clip.SampleRate
		row.SizeBytes = a.Clip.SizeBytes
		j.events.LogAcquire(a.ClassID, a.ClassName, a.Candidate.SourceID, a.Clip.Path,
			a.Clip.SampleRate, a.Clip.SizeBytes, a.Duration, a.Clip.Container)
	} else {
		row.Outcome = "rejected"
		row.Reason = string(a.Reason)
		if a.Err != nil {
			row.Error = a.Err.Error()
		}
		j.events.LogReject(a.ClassID, a.Candidate.SourceID, string(a.Reason), a.Duration, a.Err)
	}

	if j.db == nil {
		return
	}
	if err := j.db.InsertAttempt(row); err != nil {
		util.WarnLog("Failed to record attempt %s: %v", a.Candidate.SourceID, err)
	}
}

func (j *Journal) ClassFinished(r *ClassResult) {
	j.events.LogClassDone(r.ClassID, r.DisplayName, string(r.Terminal), r.Target, r.Done, r.Failed, r.Elapsed, r.Err)

	if j.db == nil {
		return
	}

	// Failed accumulates across runs; an already satisfied class keeps its count
	failed := r.Failed
	if prev, err := j.db.GetClassProgress(r.ClassID); err == nil && prev != nil {
		failed += prev.Failed
	}

	err := j.db.UpsertClassProgress(&store.ClassProgress{
		ClassID:     r.ClassID,
		DisplayName: r.DisplayName,
		Target:      r.Target,
		Done:        r.Done,
		Failed:      failed,
		Terminal:    string(r.Terminal),
		RunID:       j.runID,
	})
	if err != nil {
		util.WarnLog("Failed to record progress for %s: %v", r.DisplayName, err)
	}
}

// MultiObserver fans out to several observers in order
type MultiObserver []Observer

func (m MultiObserver) ClassStarted(target *ClassTarget, done int) {
	for _, o := range m {
		o.ClassStarted(target, done)
	}
}

func (m MultiObserver) Attempted(a *Attempt) {
	for _, o := range m {
		o.Attempted(a)
	}
}

func (m MultiObserver) ClassFinished(r *ClassResult) {
	for _, o := range m {
		o.ClassFinished(r)
	}
}
