package dataset

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/franz/audioset-prep/internal/fetch"
	"github.com/franz/audioset-prep/internal/npy"
	"github.com/franz/audioset-prep/internal/report"
	"github.com/franz/audioset-prep/internal/util"
)

// DefaultSampleRate is the rate arrays are stored at
const DefaultSampleRate = 16000

// ConvertOptions configures Convert
type ConvertOptions struct {
	Src        string
	Dst        string
	SampleRate int      // 0 = DefaultSampleRate
	Skip       []string // top-level folders to ignore; nil = ["Other"]
	Workers    int
	FFmpeg     *fetch.FFmpeg
	Events     *report.EventLogger
}

// ConvertResult counts what Convert did
type ConvertResult struct {
	Converted int
	Resampled int
	Skipped   int // output already present
	Failed    int
}

// Convert mirrors every .wav under Src as a mono float32 .npy under Dst.
// Audio already at the target rate and mono is decoded directly; anything
// else goes through ffmpeg first.
func Convert(ctx context.Context, opts ConvertOptions) (*ConvertResult, error) {
	if opts.SampleRate <= 0 {
		opts.SampleRate = DefaultSampleRate
	}
	if opts.Skip == nil {
		opts.Skip = []string{"Other"}
	}
	if opts.FFmpeg == nil {
		opts.FFmpeg = fetch.NewFFmpeg(nil)
	}
	if _, err := os.Stat(opts.Src); err != nil {
		return nil, fmt.Errorf("%w: wav tree %s", util.ErrMissingInput, opts.Src)
	}

	jobs, err := collect(opts.Src, opts.Dst, ".wav", ".npy", opts.Skip)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", opts.Src, err)
	}
	util.InfoLog("Converting %d wav files from %s", len(jobs), opts.Src)

	var c counters
	err = runJobs(ctx, "Converting", jobs, opts.Workers, func(ctx context.Context, j job) {
		if exists(j.dst) {
			c.skipped.Add(1)
			opts.Events.LogSkip(j.src, "output exists")
			return
		}
		n, resampled, err := convertFile(ctx, j, opts)
		opts.Events.LogConvert(j.src, j.dst, n, resampled, err)
		if err != nil {
			c.failed.Add(1)
			util.ErrorLog("Failed to convert %s: %v", j.src, err)
			return
		}
		if resampled {
			c.resampled.Add(1)
		}
		c.done.Add(1)
	})

	return &ConvertResult{
		Converted: int(c.done.Load()),
		Resampled: int(c.resampled.Load()),
		Skipped:   int(c.skipped.Load()),
		Failed:    int(c.failed.Load()),
	}, err
}

func convertFile(ctx context.Context, j job, opts ConvertOptions) (int, bool, error) {
	data, rate, channels, err := fetch.ReadMonoWAV(j.src)
	resampled := false
	if err != nil || rate != opts.SampleRate || channels != 1 {
		data, err = resample(ctx, j, opts)
		if err != nil {
			return 0, false, err
		}
		resampled = true
	}
	if err := npy.Save(j.dst, data); err != nil {
		return 0, resampled, err
	}
	return len(data), resampled, nil
}

// resample has ffmpeg downmix and resample into a scratch file next to the
// output, then decodes that
func resample(ctx context.Context, j job, opts ConvertOptions) ([]float32, error) {
	tmp, err := os.CreateTemp(filepath.Dir(j.dst), ".resample-*.wav")
	if err != nil {
		return nil, err
	}
	tmp.Close()
	defer os.Remove(tmp.Name())

	if err := opts.FFmpeg.ToWAV(ctx, j.src, tmp.Name(), opts.SampleRate, 1); err != nil {
		return nil, fmt.Errorf("resample: %w", err)
	}
	data, rate, channels, err := fetch.ReadMonoWAV(tmp.Name())
	if err != nil {
		return nil, err
	}
	if rate != opts.SampleRate || channels != 1 {
		return nil, fmt.Errorf("%w: resampled to %d Hz %d ch", util.ErrUnsupported, rate, channels)
	}
	return data, nil
}
