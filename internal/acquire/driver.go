package acquire

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/franz/audioset-prep/internal/util"
)

// ClassSpec is one entry of the class selection list
type ClassSpec struct {
	ClassID     string
	DisplayName string
	Folder      string // folder name under the dataset root
}

// CandidateSource supplies the metadata candidates for a class
type CandidateSource interface {
	Candidates(classID string) []Candidate
}

// BuildTargets joins the class list with the metadata table. maxPerClass < 0
// means every available candidate.
func BuildTargets(root string, classes []ClassSpec, src CandidateSource, maxPerClass int) []*ClassTarget {
	targets := make([]*ClassTarget, 0, len(classes))
	for _, c := range classes {
		pool := ActivePool(src.Candidates(c.ClassID), nil)
		folder := c.Folder
		if folder == "" {
			folder = c.DisplayName
		}
		targets = append(targets, &ClassTarget{
			ClassID:     c.ClassID,
			DisplayName: c.DisplayName,
			Dir:         filepath.Join(root, folder),
			Pool:        pool,
			TargetCount: ResolveTarget(maxPerClass, len(pool)),
		})
	}
	return targets
}

// EnsureLayout creates the dataset root and one folder per class.
// Folders that already exist are left alone.
func EnsureLayout(root string, targets []*ClassTarget) error {
	if _, err := util.EnsureDir(root); err != nil {
		return fmt.Errorf("dataset root: %w", err)
	}
	created := 0
	for _, t := range targets {
		ok, err := util.EnsureDir(t.Dir)
		if err != nil {
			return fmt.Errorf("class folder for %s: %w", t.ClassID, err)
		}
		if ok {
			created++
		}
	}
	util.DebugLog("Dataset layout ready under %s (%d new class folders)", root, created)
	return nil
}

// Driver runs the acquirer over an ordered list of classes, one at a time
type Driver struct {
	acquirer *Acquirer
	logFor   func(*ClassTarget) ProgressLog
}

// NewDriver creates a driver. logFor picks the progress log for a class;
// nil uses a CSVLog at ClassLogPath(target.Dir).
func NewDriver(acquirer *Acquirer, logFor func(*ClassTarget) ProgressLog) *Driver {
	if logFor == nil {
		logFor = func(t *ClassTarget) ProgressLog {
			return NewCSVLog(ClassLogPath(t.Dir))
		}
	}
	return &Driver{acquirer: acquirer, logFor: logFor}
}

// RunResult aggregates a driver run
type RunResult struct {
	Classes  []*ClassResult
	Acquired int
	Failed   int
	Errored  int // classes that stopped on a log error
}

// Run processes targets in order. A class that fails does not stop the
// ones after it; only cancellation ends the run early.
func (d *Driver) Run(ctx context.Context, targets []*ClassTarget) (*RunResult, error) {
	run := &RunResult{Classes: make([]*ClassResult, 0, len(targets))}

	for _, t := range targets {
		res, err := d.acquirer.AcquireClass(ctx, t, d.logFor(t))
		run.Classes = append(run.Classes, res)
		run.Acquired += res.Acquired
		run.Failed += res.Failed

		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				util.WarnLog("Interrupted during class %s after %d files", t.DisplayName, res.Done)
				return run, err
			}
			run.Errored++
			util.ErrorLog("Class %s stopped: %v", t.DisplayName, err)
			continue
		}

		switch res.Terminal {
		case TerminalAlreadySatisfied:
			util.DebugLog("Skipping %s: %d/%d already downloaded", t.DisplayName, res.Done, res.Target)
		default:
			util.InfoLog("%d files downloaded for class %s (%d failed, %s)",
				res.Done, t.DisplayName, res.Failed, res.Terminal)
		}
	}

	return run, nil
}
