package fetch

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/youpy/go-wav"

	"github.com/franz/audioset-prep/internal/util"
)

// ErrShortAudio means the decoded audio ends before the requested window does
var ErrShortAudio = errors.New("decoded audio shorter than window")

// ClipWAV copies frames [start*rate, end*rate) of the PCM WAV at src into a
// new WAV at dst with the same format, and returns the sample rate.
func ClipWAV(src, dst string, start, end int) (int, error) {
	if start < 0 || end <= start {
		return 0, fmt.Errorf("invalid window [%d,%d)", start, end)
	}

	in, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	defer in.Close()

	reader := wav.NewReader(in)
	format, err := reader.Format()
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", util.ErrCorrupt, src, err)
	}
	if format.NumChannels == 0 || format.NumChannels > 2 {
		return 0, fmt.Errorf("%w: %d channels", util.ErrUnsupported, format.NumChannels)
	}

	rate := int(format.SampleRate)
	first := start * rate
	last := end * rate // exclusive

	clip := make([]wav.Sample, 0, last-first)
	frame := 0
	for frame < last {
		samples, err := reader.ReadSamples()
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, fmt.Errorf("read %s: %w", src, err)
		}
		for _, s := range samples {
			if frame >= first && frame < last {
				clip = append(clip, s)
			}
			frame++
		}
	}
	if len(clip) < last-first {
		return 0, fmt.Errorf("%w: have %d of %d frames", ErrShortAudio, len(clip), last-first)
	}

	if err := writeWAV(dst, clip, format.NumChannels, format.SampleRate, format.BitsPerSample); err != nil {
		return 0, err
	}
	return rate, nil
}

func writeWAV(dst string, samples []wav.Sample, channels uint16, rate uint32, bits uint16) error {
	out, err := os.Create(dst)
	if err != nil {
		return err
	}

	w := wav.NewWriter(out, uint32(len(samples)), channels, rate, bits)
	if err := w.WriteSamples(samples); err != nil {
		out.Close()
		os.Remove(dst)
		return fmt.Errorf("write %s: %w", dst, err)
	}
	if err := out.Close(); err != nil {
		os.Remove(dst)
		return err
	}
	return nil
}

// ReadMonoWAV returns the first channel of a PCM WAV as floats in [-1, 1]
// along with its sample rate and channel count.
func ReadMonoWAV(path string) ([]float32, int, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, 0, err
	}
	defer f.Close()

	reader := wav.NewReader(f)
	format, err := reader.Format()
	if err != nil {
		return nil, 0, 0, fmt.Errorf("%w: %s: %v", util.ErrCorrupt, path, err)
	}

	var buffer []float32
	for {
		samples, err := reader.ReadSamples()
		if err == io.EOF {
			break
		} else if err != nil {
			return nil, 0, 0, err
		}
		for _, s := range samples {
			buffer = append(buffer, float32(reader.FloatValue(s, 0)))
		}
	}
	return buffer, int(format.SampleRate), int(format.NumChannels), nil
}

// WriteMonoWAV writes 16-bit mono PCM from floats in [-1, 1]
func WriteMonoWAV(path string, data []float32, rate int) error {
	samples := make([]wav.Sample, len(data))
	for i, v := range data {
		if v > 1 {
			v = 1
		} else if v < -1 {
			v = -1
		}
		samples[i] = wav.Sample{Values: [2]int{int(v * 32767), 0}}
	}
	return writeWAV(path, samples, 1, uint32(rate), 16)
}
