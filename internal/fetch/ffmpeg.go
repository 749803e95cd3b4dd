package fetch

import (
	"context"
	"strconv"
)

// FFmpeg wraps the ffmpeg executable
type FFmpeg struct {
	binary string
	run    Runner
}

// NewFFmpeg creates a transcoder; nil run uses the real executable
func NewFFmpeg(run Runner) *FFmpeg {
	if run == nil {
		run = execRunner
	}
	return &FFmpeg{binary: "ffmpeg", run: run}
}

// ToWAV transcodes src into 16-bit PCM WAV at dst. A zero sampleRate or
// channels keeps the source value.
func (f *FFmpeg) ToWAV(ctx context.Context, src, dst string, sampleRate, channels int) error {
	args := []string{
		"-hide_banner", "-loglevel", "error", "-nostats", "-nostdin", "-y",
		"-i", src,
		"-vn",
		"-map_metadata", "-1",
		"-fflags", "+bitexact",
		"-flags:a", "+bitexact",
	}
	if sampleRate > 0 {
		args = append(args, "-ar", strconv.Itoa(sampleRate))
	}
	if channels > 0 {
		args = append(args, "-ac", strconv.Itoa(channels))
	}
	args = append(args, "-c:a", "pcm_s16le", "-f", "wav", dst)

	_, err := f.run(ctx, f.binary, args...)
	return err
}
