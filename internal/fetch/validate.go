package fetch

import (
	"fmt"

	"github.com/franz/audioset-prep/internal/acquire"
)

// Rules are the acceptance limits for a candidate
type Rules struct {
	// MinDuration is the shortest acceptable source, in seconds. Sources of
	// exactly the clip length are often cut a second short, hence the margin.
	MinDuration float64
	ClipLength  int
}

// DefaultRules returns the AudioSet limits: 11s minimum, 10s windows
func DefaultRules() Rules {
	return Rules{MinDuration: 11, ClipLength: acquire.NominalClipSeconds}
}

// Validate applies the rejection rules in order and returns nil when the
// candidate is acceptable for a source of the given duration.
func Validate(c acquire.Candidate, duration float64, r Rules) *acquire.Failure {
	if duration < r.MinDuration {
		return acquire.Fail(acquire.ReasonTooShort,
			fmt.Errorf("source is %.1fs, need at least %.0fs", duration, r.MinDuration))
	}
	if float64(c.ClipEnd) >= duration {
		return acquire.Fail(acquire.ReasonWindowPastEnd,
			fmt.Errorf("window ends at %ds, source is %.1fs", c.ClipEnd, duration))
	}
	if c.ClipEnd-c.ClipStart != r.ClipLength {
		return acquire.Fail(acquire.ReasonWindowLength,
			fmt.Errorf("window [%d,%d) is %ds, want %ds", c.ClipStart, c.ClipEnd, c.ClipEnd-c.ClipStart, r.ClipLength))
	}
	return nil
}
