package dataset

import (
	"context"
	"fmt"
	"math"
	"os"

	"github.com/franz/audioset-prep/internal/npy"
	"github.com/franz/audioset-prep/internal/report"
	"github.com/franz/audioset-prep/internal/util"
)

// ExpectedLength is ten seconds at DefaultSampleRate
const ExpectedLength = 160000

// NormalizeOptions configures Normalize
type NormalizeOptions struct {
	Src     string
	Dst     string
	Length  int // required array length; 0 = ExpectedLength
	Workers int
	Events  *report.EventLogger
}

// NormalizeResult counts what Normalize did
type NormalizeResult struct {
	Normalized int
	Rejected   int // zero variance or wrong length
	Skipped    int // output already present
	Failed     int
}

// Normalize mirrors every .npy under Src to Dst scaled to mean 0 and
// standard deviation 1. Arrays with zero variance or the wrong length are
// not written.
func Normalize(ctx context.Context, opts NormalizeOptions) (*NormalizeResult, error) {
	if opts.Length <= 0 {
		opts.Length = ExpectedLength
	}
	if _, err := os.Stat(opts.Src); err != nil {
		return nil, fmt.Errorf("%w: array tree %s", util.ErrMissingInput, opts.Src)
	}

	jobs, err := collect(opts.Src, opts.Dst, ".npy", ".npy", nil)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", opts.Src, err)
	}
	util.InfoLog("Normalizing %d arrays from %s", len(jobs), opts.Src)

	var c counters
	err = runJobs(ctx, "Normalizing", jobs, opts.Workers, func(ctx context.Context, j job) {
		if exists(j.dst) {
			c.skipped.Add(1)
			opts.Events.LogSkip(j.src, "output exists")
			return
		}

		data, err := npy.Load(j.src)
		if err != nil {
			c.failed.Add(1)
			opts.Events.LogError(report.EventNormalize, j.src, err)
			util.ErrorLog("Failed to load %s: %v", j.src, err)
			return
		}

		mean, std := Stats(data)
		if reason := rejectReason(len(data), std, opts.Length); reason != "" {
			c.dropped.Add(1)
			opts.Events.LogSkip(j.src, reason)
			util.WarnLog("File: %s was not saved due to %s", j.src, reason)
			return
		}

		if err := npy.Save(j.dst, Standardize(data, mean, std)); err != nil {
			c.failed.Add(1)
			opts.Events.LogError(report.EventNormalize, j.src, err)
			util.ErrorLog("Failed to write %s: %v", j.dst, err)
			return
		}
		opts.Events.LogNormalize(j.src, j.dst, mean, std)
		c.done.Add(1)
	})

	return &NormalizeResult{
		Normalized: int(c.done.Load()),
		Rejected:   int(c.dropped.Load()),
		Skipped:    int(c.skipped.Load()),
		Failed:     int(c.failed.Load()),
	}, err
}

func rejectReason(n int, std float64, want int) string {
	if std == 0 {
		return "std=0"
	}
	if n != want {
		return fmt.Sprintf("length %d != %d", n, want)
	}
	return ""
}

// Stats returns the mean and population standard deviation of data,
// accumulated in float64
func Stats(data []float32) (mean, std float64) {
	if len(data) == 0 {
		return 0, 0
	}
	var sum float64
	for _, v := range data {
		sum += float64(v)
	}
	mean = sum / float64(len(data))

	var sq float64
	for _, v := range data {
		d := float64(v) - mean
		sq += d * d
	}
	return mean, math.Sqrt(sq / float64(len(data)))
}

// Standardize returns (x - mean) / std for every element
func Standardize(data []float32, mean, std float64) []float32 {
	out := make([]float32, len(data))
	for i, v := range data {
		out[i] = float32((float64(v) - mean) / std)
	}
	return out
}
