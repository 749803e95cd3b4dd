package acquire

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/franz/audioset-prep/internal/util"
)

// Acquirer runs the per-class sample/fetch/log loop
type Acquirer struct {
	fetcher  Fetcher
	seed     uint64
	observer Observer
}

// Config holds acquirer configuration
type Config struct {
	Fetcher  Fetcher
	Seed     uint64
	Observer Observer // nil = no observer
}

// New creates a new Acquirer
func New(cfg *Config) *Acquirer {
	obs := cfg.Observer
	if obs == nil {
		obs = NopObserver{}
	}
	return &Acquirer{
		fetcher:  cfg.Fetcher,
		seed:     cfg.Seed,
		observer: obs,
	}
}

// AcquireClass brings one class up to its target count, or until its
// candidate pool runs out. Candidate failures are counted and never
// returned; an error means the progress log could not be read or written,
// or ctx was cancelled. The returned result is always non-nil.
func (a *Acquirer) AcquireClass(ctx context.Context, target *ClassTarget, log ProgressLog) (*ClassResult, error) {
	started := time.Now()
	result := &ClassResult{
		ClassID:     target.ClassID,
		DisplayName: target.DisplayName,
		Target:      target.TargetCount,
		Failures:    make(map[FailureReason]int),
	}
	finish := func(term TerminalReason, err error) (*ClassResult, error) {
		result.Terminal = term
		result.Err = err
		result.Elapsed = time.Since(started)
		a.observer.ClassFinished(result)
		return result, err
	}

	records, err := log.Load()
	if err != nil {
		return finish(TerminalError, fmt.Errorf("class %s: %w", target.ClassID, err))
	}

	done := len(records)
	result.Resumed = done
	result.Done = done

	logged := make(map[string]struct{}, len(records))
	for _, r := range records {
		logged[r.SourceID] = struct{}{}
	}
	result.Stale = countStale(logged, target.Pool)

	a.observer.ClassStarted(target, done)

	if done >= target.TargetCount {
		util.DebugLog("Class %s already has %d/%d samples", target.DisplayName, done, target.TargetCount)
		return finish(TerminalAlreadySatisfied, nil)
	}

	sampler := NewSampler(a.seed, target.ClassID, ActivePool(target.Pool, logged))

	for {
		if err := ctx.Err(); err != nil {
			result.Remaining = sampler.Len()
			return finish(TerminalCancelled, err)
		}

		cand, ok := sampler.Next()
		if !ok {
			return finish(TerminalPoolExhausted, nil)
		}

		req := Request{
			ClassID:   target.ClassID,
			ClassName: target.DisplayName,
			Dir:       target.Dir,
			Index:     done + 1,
			Candidate: cand,
		}

		attemptStart := time.Now()
		clip, ferr := a.fetch(ctx, req)
		attempt := &Attempt{
			ClassID:   target.ClassID,
			ClassName: target.DisplayName,
			Candidate: cand,
			Duration:  time.Since(attemptStart),
		}

		if ferr != nil {
			// An attempt cut short by cancellation leaves no trace and is
			// retried on the next run.
			if ctx.Err() != nil {
				result.Remaining = sampler.Len() + 1
				return finish(TerminalCancelled, ctx.Err())
			}
			attempt.Reason = reasonOf(ferr)
			attempt.Err = ferr
			result.Failed++
			result.Failures[attempt.Reason]++
			util.DebugLog("Class %s: %s rejected (%v)", target.DisplayName, cand.SourceID, ferr)
			a.observer.Attempted(attempt)
			continue
		}

		rec := Record{
			SourceID:         cand.SourceID,
			ClassID:          target.ClassID,
			ClassName:        target.DisplayName,
			OutputFileName:   clip.FileName,
			OriginalFileName: clip.OriginalFileName,
			SampleRate:       clip.SampleRate,
		}
		if err := log.Save(append(records, rec)); err != nil {
			result.Remaining = sampler.Len()
			return finish(TerminalError, fmt.Errorf("class %s: %w", target.ClassID, err))
		}
		records = append(records, rec)
		done++
		result.Done = done
		result.Acquired++

		attempt.Clip = clip
		a.observer.Attempted(attempt)

		if done >= target.TargetCount {
			result.Remaining = sampler.Len()
			return finish(TerminalTargetReached, nil)
		}
	}
}

// fetch calls the fetcher, turning a panic into a Failure
func (a *Acquirer) fetch(ctx context.Context, req Request) (clip *Clip, err error) {
	defer func() {
		if r := recover(); r != nil {
			clip = nil
			err = Fail(ReasonPanic, fmt.Errorf("fetcher panicked: %v", r))
		}
	}()

	clip, err = a.fetcher.Fetch(ctx, req)
	if err == nil && clip == nil {
		err = Fail(ReasonUnknown, errors.New("fetcher returned no clip"))
	}
	return clip, err
}

func reasonOf(err error) FailureReason {
	var f *Failure
	if errors.As(err, &f) {
		return f.Reason
	}
	return ReasonUnknown
}

func countStale(logged map[string]struct{}, pool []Candidate) int {
	if len(logged) == 0 {
		return 0
	}
	inPool := make(map[string]struct{}, len(pool))
	for _, c := range pool {
		inPool[c.SourceID] = struct{}{}
	}
	stale := 0
	for id := range logged {
		if _, ok := inPool[id]; !ok {
			stale++
		}
	}
	return stale
}
