package fetch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/franz/audioset-prep/internal/acquire"
	"github.com/franz/audioset-prep/internal/util"
)

// Fetcher retrieves, validates, transcodes and trims one AudioSet candidate.
// It implements acquire.Fetcher.
type Fetcher struct {
	ytdlp   *YTDLP
	ffmpeg  *FFmpeg
	ffprobe *FFprobe
	rules   Rules
}

// Config holds fetcher configuration
type Config struct {
	YTDLP   *YTDLP
	FFmpeg  *FFmpeg
	FFprobe *FFprobe
	Rules   *Rules // nil = DefaultRules()
}

// New creates a new Fetcher
func New(cfg *Config) *Fetcher {
	rules := DefaultRules()
	if cfg.Rules != nil {
		rules = *cfg.Rules
	}
	ffmpeg := cfg.FFmpeg
	if ffmpeg == nil {
		ffmpeg = NewFFmpeg(nil)
	}
	ffprobe := cfg.FFprobe
	if ffprobe == nil {
		ffprobe = NewFFprobe(nil)
	}
	return &Fetcher{
		ytdlp:   cfg.YTDLP,
		ffmpeg:  ffmpeg,
		ffprobe: ffprobe,
		rules:   rules,
	}
}

// Fetch produces <req.Dir>/<req.Index>.wav trimmed to the candidate window.
// Work happens in a scratch directory inside req.Dir which is always
// removed, so a failed or interrupted attempt leaves nothing behind.
func (f *Fetcher) Fetch(ctx context.Context, req acquire.Request) (*acquire.Clip, error) {
	cand := req.Candidate

	info, err := f.ytdlp.Probe(ctx, cand.SourceID)
	if err != nil {
		return nil, acquire.Fail(acquire.ReasonRetrieval, err)
	}

	// Reject early when the metadata already tells us enough
	if info.Duration > 0 {
		if fail := Validate(cand, info.Duration, f.rules); fail != nil {
			return nil, fail
		}
	}

	scratch, err := os.MkdirTemp(req.Dir, ".fetch-*")
	if err != nil {
		return nil, acquire.Fail(acquire.ReasonProcessing, err)
	}
	defer func() {
		if err := util.RetryableRemoveAll(scratch, nil); err != nil {
			util.WarnLog("Failed to remove scratch dir %s: %v", scratch, err)
		}
	}()

	raw, err := f.ytdlp.DownloadAudio(ctx, cand.SourceID, scratch)
	if err != nil {
		return nil, acquire.Fail(acquire.ReasonRetrieval, err)
	}

	if info.Duration <= 0 {
		probe, err := f.ffprobe.Probe(ctx, raw)
		if err != nil {
			return nil, acquire.Fail(acquire.ReasonRetrieval, fmt.Errorf("no duration: %w", err))
		}
		if fail := Validate(cand, probe.DurationSeconds(), f.rules); fail != nil {
			return nil, fail
		}
	}

	container := SniffContainer(raw)

	decoded := filepath.Join(scratch, "decoded.wav")
	if err := f.ffmpeg.ToWAV(ctx, raw, decoded, 0, 0); err != nil {
		return nil, acquire.Fail(acquire.ReasonProcessing, fmt.Errorf("transcode: %w", err))
	}

	trimmed := filepath.Join(scratch, "clip.wav")
	rate, err := ClipWAV(decoded, trimmed, cand.ClipStart, cand.ClipEnd)
	if err != nil {
		return nil, acquire.Fail(acquire.ReasonProcessing, err)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	name := fmt.Sprintf("%d.wav", req.Index)
	dst := filepath.Join(req.Dir, name)
	if err := util.RetryableRename(trimmed, dst, nil); err != nil {
		return nil, acquire.Fail(acquire.ReasonProcessing, err)
	}

	var size int64
	if st, err := os.Stat(dst); err == nil {
		size = st.Size()
	}

	return &acquire.Clip{
		Path:             dst,
		FileName:         name,
		OriginalFileName: filepath.Base(raw),
		SampleRate:       rate,
		SizeBytes:        size,
		Container:        container,
	}, nil
}
