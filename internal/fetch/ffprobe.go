package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
)

// FFprobeInfo represents the output from ffprobe
type FFprobeInfo struct {
	Streams []FFprobeStream `json:"streams"`
	Format  *FFprobeFormat  `json:"format"`
}

// IntOrString can unmarshal both integers and strings from JSON
type IntOrString struct {
	Value int
}

// UnmarshalJSON implements custom unmarshaling for IntOrString
func (i *IntOrString) UnmarshalJSON(data []byte) error {
	var intVal int
	if err := json.Unmarshal(data, &intVal); err == nil {
		i.Value = intVal
		return nil
	}

	var strVal string
	if err := json.Unmarshal(data, &strVal); err != nil {
		return err
	}

	// "N/A", "" and junk all mean unknown
	parsed, err := strconv.Atoi(strVal)
	if err != nil {
		i.Value = 0
		return nil
	}
	i.Value = parsed
	return nil
}

// FFprobeStream represents an audio stream
type FFprobeStream struct {
	Index         int         `json:"index"`
	CodecName     string      `json:"codec_name"`
	CodecType     string      `json:"codec_type"`
	SampleRate    IntOrString `json:"sample_rate"`
	Channels      int         `json:"channels"`
	BitsPerSample IntOrString `json:"bits_per_sample"`
	Duration      string      `json:"duration"`
}

// FFprobeFormat represents container format metadata
type FFprobeFormat struct {
	Filename   string `json:"filename"`
	FormatName string `json:"format_name"`
	Duration   string `json:"duration"`
	Size       string `json:"size"`
}

// AudioStream returns the first audio stream, or nil
func (info *FFprobeInfo) AudioStream() *FFprobeStream {
	for i := range info.Streams {
		if info.Streams[i].CodecType == "audio" {
			return &info.Streams[i]
		}
	}
	return nil
}

// DurationSeconds returns the container duration, falling back to the
// audio stream. Zero means unknown.
func (info *FFprobeInfo) DurationSeconds() float64 {
	if info.Format != nil {
		if d, err := strconv.ParseFloat(info.Format.Duration, 64); err == nil {
			return d
		}
	}
	if s := info.AudioStream(); s != nil {
		if d, err := strconv.ParseFloat(s.Duration, 64); err == nil {
			return d
		}
	}
	return 0
}

// FFprobe wraps the ffprobe executable
type FFprobe struct {
	binary string
	run    Runner
}

// NewFFprobe creates a prober; nil run uses the real executable
func NewFFprobe(run Runner) *FFprobe {
	if run == nil {
		run = execRunner
	}
	return &FFprobe{binary: "ffprobe", run: run}
}

// Probe executes ffprobe and parses the JSON output
func (p *FFprobe) Probe(ctx context.Context, path string) (*FFprobeInfo, error) {
	output, err := p.run(ctx, p.binary,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)
	if err != nil {
		return nil, err
	}
	return parseFFprobe(output)
}

func parseFFprobe(output []byte) (*FFprobeInfo, error) {
	var info FFprobeInfo
	if err := json.Unmarshal(output, &info); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}
	return &info, nil
}
